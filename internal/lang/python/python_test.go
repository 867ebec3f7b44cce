package python

import (
	"bytes"
	"context"
	"testing"
)

func TestListFunctionsFindsDefAndAsyncDef(t *testing.T) {
	p := New()
	src := []byte(`def plain():
    pass

async def fetch(url):
    pass

class Thing:
    def method(self):
        pass
`)
	names, err := p.ListFunctions(context.Background(), src)
	if err != nil {
		t.Fatalf("ListFunctions: %v", err)
	}
	want := map[string]bool{"plain": true, "fetch": true, "method": true}
	if len(names) != len(want) {
		t.Fatalf("expected %d functions, got %v", len(want), names)
	}
	for _, n := range names {
		if !want[n] {
			t.Fatalf("unexpected function name %q", n)
		}
	}
}

func TestParseImportsHandlesPlainAndFromForms(t *testing.T) {
	p := New()
	is, ok := p.ImportSupport()
	if !ok {
		t.Fatalf("expected ImportSupport for python")
	}
	src := []byte(`import os, sys as s
from .pkg import thing
from pkg.sub import other
`)
	imports, err := is.ParseImports(context.Background(), src)
	if err != nil {
		t.Fatalf("ParseImports: %v", err)
	}
	got := map[string]bool{}
	for _, imp := range imports {
		got[imp.Raw] = true
		if imp.Raw == ".pkg" && !imp.IsRelative {
			t.Fatalf("expected .pkg classified as relative")
		}
		if imp.Raw == "os" && imp.IsRelative {
			t.Fatalf("expected os classified as non-relative")
		}
	}
	for _, want := range []string{"os", "sys", ".pkg", "pkg.sub"} {
		if !got[want] {
			t.Fatalf("expected import %q to be parsed, got %+v", want, imports)
		}
	}
}

func TestRewriteImportsForRenameReplacesExactModule(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("from pkg.sub import thing\n")
	out, n, err := is.RewriteImportsForRename(src, "pkg.sub", "pkg.renamed")
	if err != nil {
		t.Fatalf("RewriteImportsForRename: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one rewrite, got %d", n)
	}
	if string(out) != "from pkg.renamed import thing\n" {
		t.Fatalf("got %q", out)
	}
}

func TestRewriteImportsForRenameReplacesDottedPrefix(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("from pkg.sub import thing\n")
	out, n, err := is.RewriteImportsForRename(src, "pkg", "renamed_pkg")
	if err != nil {
		t.Fatalf("RewriteImportsForRename: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one rewrite, got %d", n)
	}
	if string(out) != "from renamed_pkg.sub import thing\n" {
		t.Fatalf("got %q", out)
	}
}

func TestRewriteImportsForRenamePlainImportForm(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("import widgets\n")
	out, n, err := is.RewriteImportsForRename(src, "widgets", "gadgets")
	if err != nil {
		t.Fatalf("RewriteImportsForRename: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one rewrite, got %d", n)
	}
	if string(out) != "import gadgets\n" {
		t.Fatalf("got %q", out)
	}
}

func TestRewriteImportsForRenameNoMatchIsByteIdentical(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("from unrelated import thing\n")
	out, n, err := is.RewriteImportsForRename(src, "pkg", "renamed_pkg")
	if err != nil {
		t.Fatalf("RewriteImportsForRename: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected changeCount 0, got %d", n)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("expected byte-identical output when no import references the renamed module")
	}
}

// TestRewriteImportsForMoveIsAlwaysANoop mirrors the Rust plugin: Python
// imports address dotted module names, not file paths.
func TestRewriteImportsForMoveIsAlwaysANoop(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("from .pkg import thing\n")
	out, n, err := is.RewriteImportsForMove(src, "pkg/old.py", "pkg/new.py")
	if err != nil {
		t.Fatalf("RewriteImportsForMove: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected changeCount 0 for a Python move, got %d", n)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("expected byte-identical output for a Python move")
	}
}

func TestAddImportInsertsAfterLastImport(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("import os\nimport sys\n\nprint(os, sys)\n")
	out, changed, err := is.AddImport(src, "json")
	if err != nil {
		t.Fatalf("AddImport: %v", err)
	}
	if !changed {
		t.Fatalf("expected AddImport to report a change")
	}
	if !is.ContainsImport(out, "json") {
		t.Fatalf("expected the new import present, got %q", out)
	}
}

func TestContainsImportMatchesDottedPrefix(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("from pkg.sub import thing\n")
	if !is.ContainsImport(src, "pkg.sub") {
		t.Fatalf("expected an exact module match")
	}
	if !is.ContainsImport(src, "pkg") {
		t.Fatalf("expected a dotted-prefix match for the parent package")
	}
	if is.ContainsImport(src, "other") {
		t.Fatalf("expected no match for an unrelated module")
	}
}

func TestRemoveImportDropsMatchingLine(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("import os\nimport sys\n")
	out, removed, err := is.RemoveImport(src, "sys")
	if err != nil {
		t.Fatalf("RemoveImport: %v", err)
	}
	if !removed {
		t.Fatalf("expected RemoveImport to report a removal")
	}
	if is.ContainsImport(out, "sys") {
		t.Fatalf("expected sys import removed, got %q", out)
	}
	if !is.ContainsImport(out, "os") {
		t.Fatalf("expected os import left intact, got %q", out)
	}
}
