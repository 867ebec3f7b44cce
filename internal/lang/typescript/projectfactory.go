package typescript

import (
	"context"
	"os"
	"path/filepath"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

type projectFactory struct{}

// CreatePackage implements plugin.ProjectFactory, scaffolding a minimal
// package.json + src/index.ts, or a full package that adds a test
// directory and a tsconfig.json.
func (projectFactory) CreatePackage(ctx context.Context, cfg plugin.PackageConfig) error {
	if err := os.MkdirAll(filepath.Join(cfg.Dir, "src"), 0o755); err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "create package src directory"), "create package")
	}

	pkg := map[string]any{
		"name":    cfg.Name,
		"version": "0.1.0",
		"main":    "src/index.ts",
	}
	if err := writePackageJSON(filepath.Join(cfg.Dir, "package.json"), pkg); err != nil {
		return err
	}

	indexTS := "export function placeholder(): boolean {\n  return true;\n}\n"
	if err := os.WriteFile(filepath.Join(cfg.Dir, "src", "index.ts"), []byte(indexTS), 0o644); err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "write index.ts"), "create package")
	}

	if cfg.Template == plugin.TemplateFull {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, "test"), 0o755); err != nil {
			return errors.Wrap(errs.Wrap(err, errs.KindIO, "create test directory"), "create package")
		}
		tsconfig := `{
  "compilerOptions": {
    "target": "ES2020",
    "module": "commonjs",
    "strict": true,
    "outDir": "dist"
  },
  "include": ["src"]
}
`
		if err := os.WriteFile(filepath.Join(cfg.Dir, "tsconfig.json"), []byte(tsconfig), 0o644); err != nil {
			return errors.Wrap(errs.Wrap(err, errs.KindIO, "write tsconfig.json"), "create package")
		}
	}

	return nil
}

var _ plugin.ProjectFactory = projectFactory{}
