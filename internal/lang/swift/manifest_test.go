package swift

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestAnalyzeManifestParsesPackageSwift(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Package.swift")
	content := `// swift-tools-version:5.9
import PackageDescription

let package = Package(
    name: "Widget",
    dependencies: [
        .package(url: "https://github.com/apple/swift-log.git", from: "1.5.0"),
        .package(url: "https://github.com/apple/swift-nio.git", from: "2.0.0"),
    ],
    targets: [
        .target(name: "Widget", dependencies: []),
    ]
)
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write Package.swift: %v", err)
	}

	p := New()
	data, err := p.AnalyzeManifest(context.Background(), path)
	if err != nil {
		t.Fatalf("AnalyzeManifest: %v", err)
	}
	if data.Name != "Widget" {
		t.Fatalf("expected the package name parsed, got %q", data.Name)
	}
	if _, ok := data.Dependencies["https://github.com/apple/swift-log.git"]; !ok {
		t.Fatalf("expected swift-log dependency recorded, got %+v", data.Dependencies)
	}
	if _, ok := data.Dependencies["https://github.com/apple/swift-nio.git"]; !ok {
		t.Fatalf("expected swift-nio dependency recorded, got %+v", data.Dependencies)
	}
}
