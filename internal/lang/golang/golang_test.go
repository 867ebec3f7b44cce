package golang

import (
	"bytes"
	"context"
	"testing"
)

func TestListFunctionsFindsTopLevelAndMethodFuncs(t *testing.T) {
	p := New()
	src := []byte(`package a

func Foo() {}

func (r *Receiver) Bar(x int) {}

func baz() {}
`)
	names, err := p.ListFunctions(context.Background(), src)
	if err != nil {
		t.Fatalf("ListFunctions: %v", err)
	}
	want := map[string]bool{"Foo": true, "Bar": true, "baz": true}
	if len(names) != len(want) {
		t.Fatalf("expected %d functions, got %v", len(want), names)
	}
	for _, n := range names {
		if !want[n] {
			t.Fatalf("unexpected function name %q", n)
		}
	}
}

func TestParseImportsHandlesBlockAndSingleLine(t *testing.T) {
	p := New()
	is, ok := p.ImportSupport()
	if !ok {
		t.Fatalf("expected ImportSupport to be available for go")
	}
	src := []byte(`package a

import "fmt"

import (
	"os"
	"context"
)
`)
	imports, err := is.ParseImports(context.Background(), src)
	if err != nil {
		t.Fatalf("ParseImports: %v", err)
	}
	got := map[string]bool{}
	for _, imp := range imports {
		got[imp.Raw] = true
	}
	for _, want := range []string{"fmt", "os", "context"} {
		if !got[want] {
			t.Fatalf("expected import %q to be parsed, got %+v", want, imports)
		}
	}
}

func TestRewriteImportsForRenameReplacesQuotedPath(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte(`import "example.com/old/pkg"
`)
	out, n, err := is.RewriteImportsForRename(src, "example.com/old/pkg", "example.com/new/pkg")
	if err != nil {
		t.Fatalf("RewriteImportsForRename: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one rewrite, got %d", n)
	}
	if string(out) != "import \"example.com/new/pkg\"\n" {
		t.Fatalf("got %q", out)
	}
}

// TestRewriteImportsForRenameNoMatchIsByteIdentical is the §8 boundary
// case: when the plugin finds no match, changeCount is 0 and the content
// returned is byte-identical to the input.
func TestRewriteImportsForRenameNoMatchIsByteIdentical(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte(`import "example.com/unrelated/pkg"
`)
	out, n, err := is.RewriteImportsForRename(src, "example.com/old/pkg", "example.com/new/pkg")
	if err != nil {
		t.Fatalf("RewriteImportsForRename: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected changeCount 0 for no match, got %d", n)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("expected byte-identical output when no match is found")
	}
}

func TestContainsImportMatchesByPackagePathOrSuffix(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte(`import "example.com/foo/bar"
`)
	if !is.ContainsImport(src, "example.com/foo/bar") {
		t.Fatalf("expected an exact-path match")
	}
	if is.ContainsImport(src, "example.com/other") {
		t.Fatalf("expected no match for an unrelated path")
	}
}

func TestAddImportInsertsIntoExistingBlock(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte(`package a

import (
	"fmt"
)
`)
	out, changed, err := is.AddImport(src, "os")
	if err != nil {
		t.Fatalf("AddImport: %v", err)
	}
	if !changed {
		t.Fatalf("expected AddImport to report a change")
	}
	if !is.ContainsImport(out, "os") {
		t.Fatalf("expected the new import present after AddImport, got %q", out)
	}
}

func TestAddImportIsNoopWhenAlreadyPresent(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte(`package a

import "fmt"
`)
	out, changed, err := is.AddImport(src, "fmt")
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

func TestRemoveImportDropsMatchingLine(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("package a\n\nimport (\n\t\"fmt\"\n\t\"os\"\n)\n")
	out, removed, err := is.RemoveImport(src, "os")
	if err != nil {
		t.Fatalf("RemoveImport: %v", err)
	}
	if !removed {
		t.Fatalf("expected RemoveImport to report a removal")
	}
	if is.ContainsImport(out, "os") {
		t.Fatalf("expected os import removed, got %q", out)
	}
	if !is.ContainsImport(out, "fmt") {
		t.Fatalf("expected fmt import left intact, got %q", out)
	}
}
