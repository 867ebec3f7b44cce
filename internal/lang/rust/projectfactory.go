package rust

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

type projectFactory struct{}

// CreatePackage implements plugin.ProjectFactory, scaffolding a minimal
// binary crate (Cargo.toml + src/main.rs) or a full crate that adds a
// library target and tests directory.
func (projectFactory) CreatePackage(ctx context.Context, cfg plugin.PackageConfig) error {
	if err := os.MkdirAll(filepath.Join(cfg.Dir, "src"), 0o755); err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "create crate src directory"), "create package")
	}

	cargoToml := fmt.Sprintf("[package]\nname = %q\nversion = \"0.1.0\"\nedition = \"2021\"\n\n[dependencies]\n", cfg.Name)
	if err := os.WriteFile(filepath.Join(cfg.Dir, "Cargo.toml"), []byte(cargoToml), 0o644); err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "write Cargo.toml"), "create package")
	}

	mainRs := "fn main() {\n    println!(\"hello from " + cfg.Name + "\");\n}\n"
	if err := os.WriteFile(filepath.Join(cfg.Dir, "src", "main.rs"), []byte(mainRs), 0o644); err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "write main.rs"), "create package")
	}

	if cfg.Template == plugin.TemplateFull {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, "tests"), 0o755); err != nil {
			return errors.Wrap(errs.Wrap(err, errs.KindIO, "create tests directory"), "create package")
		}
		libRs := "pub fn placeholder() -> bool {\n    true\n}\n"
		if err := os.WriteFile(filepath.Join(cfg.Dir, "src", "lib.rs"), []byte(libRs), 0o644); err != nil {
			return errors.Wrap(errs.Wrap(err, errs.KindIO, "write lib.rs"), "create package")
		}
	}

	return nil
}

var _ plugin.ProjectFactory = projectFactory{}
