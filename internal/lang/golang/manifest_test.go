package golang

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestAnalyzeManifestParsesModuleVersionAndRequires(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go.mod")
	content := `module github.com/example/widget

go 1.22

require (
	github.com/spf13/afero v1.11.0
	github.com/stretchr/testify v1.9.0 // indirect
)

require github.com/google/uuid v1.6.0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}

	p := New()
	data, err := p.AnalyzeManifest(context.Background(), path)
	if err != nil {
		t.Fatalf("AnalyzeManifest: %v", err)
	}
	if data.Name != "github.com/example/widget" {
		t.Fatalf("expected module name parsed, got %q", data.Name)
	}
	if data.Version != "1.22" {
		t.Fatalf("expected go version parsed, got %q", data.Version)
	}
	if data.Dependencies["github.com/spf13/afero"] != "v1.11.0" {
		t.Fatalf("expected afero dependency recorded, got %+v", data.Dependencies)
	}
	if data.Dependencies["github.com/google/uuid"] != "v1.6.0" {
		t.Fatalf("expected uuid dependency recorded outside the require block, got %+v", data.Dependencies)
	}
	if data.DevDependencies["github.com/stretchr/testify"] != "v1.9.0" {
		t.Fatalf("expected testify recorded as an indirect dependency, got %+v", data.DevDependencies)
	}
}
