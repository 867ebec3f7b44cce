package swift

import (
	"bytes"
	"context"
	"testing"

	"github.com/pleme-io/typemill-sub012/internal/model"
)

func TestParseClassifiesVisibilityFromAccessModifiers(t *testing.T) {
	p := New()
	src := []byte(`public func doThing() {}

private func helper() {}

func unannotated() {}
`)
	result, err := p.Parse(context.Background(), src, "file:///a.swift")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !result.Degraded {
		t.Fatalf("expected Degraded=true, Swift has no tree-sitter grammar wired in")
	}
	got := map[string]model.Visibility{}
	for _, sym := range result.Symbols {
		got[sym.Name] = sym.Visibility
	}
	if got["doThing"] != model.VisibilityPublic {
		t.Fatalf("expected doThing public, got %+v", got)
	}
	if got["helper"] != model.VisibilityPrivate {
		t.Fatalf("expected helper private, got %+v", got)
	}
	if got["unannotated"] != model.VisibilityUnknown {
		t.Fatalf("expected an unannotated declaration classified unknown, got %+v", got)
	}
}

func TestListFunctionsMatchesFuncDeclarations(t *testing.T) {
	p := New()
	src := []byte(`struct Widget {
    func doThing() {}
    static func make() -> Widget { Widget() }
}
`)
	names, err := p.ListFunctions(context.Background(), src)
	if err != nil {
		t.Fatalf("ListFunctions: %v", err)
	}
	want := map[string]bool{"doThing": true, "make": true}
	if len(names) != len(want) {
		t.Fatalf("expected %d functions, got %v", len(want), names)
	}
}

func TestParseImportsReturnsModuleNamesOnly(t *testing.T) {
	p := New()
	is, ok := p.ImportSupport()
	if !ok {
		t.Fatalf("expected ImportSupport for swift")
	}
	src := []byte(`import Foundation
import struct Swift.Array
`)
	imports, err := is.ParseImports(context.Background(), src)
	if err != nil {
		t.Fatalf("ParseImports: %v", err)
	}
	for _, imp := range imports {
		if imp.IsRelative {
			t.Fatalf("expected every Swift import classified as non-relative, got %+v", imp)
		}
	}
	got := map[string]bool{}
	for _, imp := range imports {
		got[imp.Raw] = true
	}
	if !got["Foundation"] || !got["Swift.Array"] {
		t.Fatalf("expected both modules parsed, got %+v", imports)
	}
}

func TestRewriteImportsForRenameReplacesModuleName(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("import OldModule\n")
	out, n, err := is.RewriteImportsForRename(src, "OldModule", "NewModule")
	if err != nil {
		t.Fatalf("RewriteImportsForRename: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one rewrite, got %d", n)
	}
	if string(out) != "import NewModule\n" {
		t.Fatalf("got %q", out)
	}
}

func TestRewriteImportsForRenameNoMatchIsByteIdentical(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("import Unrelated\n")
	out, n, err := is.RewriteImportsForRename(src, "OldModule", "NewModule")
	if err != nil {
		t.Fatalf("RewriteImportsForRename: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected changeCount 0, got %d", n)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("expected byte-identical output when no import matches")
	}
}

// TestRewriteImportsForMoveIsAlwaysANoop: Swift imports name a module, not
// a file path, so a move never rewrites an import statement.
func TestRewriteImportsForMoveIsAlwaysANoop(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("import Foundation\n")
	out, n, err := is.RewriteImportsForMove(src, "old/Widget.swift", "new/Widget.swift")
	if err != nil {
		t.Fatalf("RewriteImportsForMove: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected changeCount 0 for a Swift move, got %d", n)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("expected byte-identical output for a Swift move")
	}
}

func TestAddImportIsNoopWhenAlreadyPresent(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("import Foundation\n")
	out, changed, err := is.AddImport(src, "Foundation")
	if err != nil {
		t.Fatalf("AddImport: %v", err)
	}
	if changed {
		t.Fatalf("expected no change when the import already exists")
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("expected byte-identical output for a no-op AddImport")
	}
}

func TestAddImportInsertsAfterLastImport(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("import Foundation\nimport UIKit\n\nfunc main() {}\n")
	out, changed, err := is.AddImport(src, "Combine")
	if err != nil {
		t.Fatalf("AddImport: %v", err)
	}
	if !changed {
		t.Fatalf("expected AddImport to report a change")
	}
	if !is.ContainsImport(out, "Combine") {
		t.Fatalf("expected the new import present, got %q", out)
	}
}

func TestRemoveImportDropsMatchingLine(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("import Foundation\nimport UIKit\n")
	out, removed, err := is.RemoveImport(src, "UIKit")
	if err != nil {
		t.Fatalf("RemoveImport: %v", err)
	}
	if !removed {
		t.Fatalf("expected RemoveImport to report a removal")
	}
	if is.ContainsImport(out, "UIKit") {
		t.Fatalf("expected UIKit import removed, got %q", out)
	}
	if !is.ContainsImport(out, "Foundation") {
		t.Fatalf("expected Foundation import left intact, got %q", out)
	}
}
