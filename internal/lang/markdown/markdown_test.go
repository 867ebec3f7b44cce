package markdown

import (
	"bytes"
	"context"
	"testing"
)

func TestParseTurnsHeadingsIntoSymbols(t *testing.T) {
	p := New()
	src := []byte("# Title\n\nSome text.\n\n## Section One\n\nMore text.\n")
	result, err := p.Parse(context.Background(), src, "file:///README.md")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Symbols) != 2 {
		t.Fatalf("expected 2 heading symbols, got %+v", result.Symbols)
	}
	names := map[string]bool{}
	for _, sym := range result.Symbols {
		names[sym.Name] = true
	}
	if !names["Title"] || !names["Section One"] {
		t.Fatalf("expected both heading texts captured, got %+v", result.Symbols)
	}
}

func TestParseImportsSkipsExternalURLsAndFragments(t *testing.T) {
	p := New()
	is, ok := p.ImportSupport()
	if !ok {
		t.Fatalf("expected ImportSupport for markdown")
	}
	src := []byte(`See [the guide](./docs/guide.md) and [external](https://example.com/page) and [anchor](#section).
`)
	imports, err := is.ParseImports(context.Background(), src)
	if err != nil {
		t.Fatalf("ParseImports: %v", err)
	}
	if len(imports) != 1 {
		t.Fatalf("expected only the local file reference parsed, got %+v", imports)
	}
	if imports[0].Raw != "./docs/guide.md" || !imports[0].IsRelative {
		t.Fatalf("expected a relative local file reference, got %+v", imports[0])
	}
}

func TestParseImportsIncludesReferenceStyleDefinitions(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("See [the guide][guide].\n\n[guide]: ./docs/guide.md\n")
	imports, err := is.ParseImports(context.Background(), src)
	if err != nil {
		t.Fatalf("ParseImports: %v", err)
	}
	found := false
	for _, imp := range imports {
		if imp.Raw == "./docs/guide.md" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the reference-style link definition parsed, got %+v", imports)
	}
}

func TestRewriteImportsForRenameUpdatesLinkBasenameAndProse(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("See [the guide](./docs/old.md) for details about old.md.\n")
	out, n, err := is.RewriteImportsForRename(src, "old.md", "new.md")
	if err != nil {
		t.Fatalf("RewriteImportsForRename: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected one link rewrite and one prose rewrite, got %d changes in %q", n, out)
	}
	if !bytes.Contains(out, []byte("./docs/new.md")) {
		t.Fatalf("expected the link path rewritten, got %q", out)
	}
	if !bytes.Contains(out, []byte("about new.md")) {
		t.Fatalf("expected the prose occurrence rewritten, got %q", out)
	}
}

func TestRewriteImportsForMoveRewritesExactAndPrefixedPaths(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("See [a](docs/guide.md) and [b](docs/guide.md#setup).\n")
	out, n, err := is.RewriteImportsForMove(src, "docs/guide.md", "manual/guide.md")
	if err != nil {
		t.Fatalf("RewriteImportsForMove: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected both link occurrences rewritten, got %d in %q", n, out)
	}
	if !bytes.Contains(out, []byte("(manual/guide.md)")) {
		t.Fatalf("expected the plain path rewritten, got %q", out)
	}
	if !bytes.Contains(out, []byte("(manual/guide.md#setup)")) {
		t.Fatalf("expected the anchor preserved across the rewrite, got %q", out)
	}
}

func TestAddImportAppendsReferenceStyleDefinition(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("# Title\n")
	out, changed, err := is.AddImport(src, "docs/new.md")
	if err != nil {
		t.Fatalf("AddImport: %v", err)
	}
	if !changed {
		t.Fatalf("expected AddImport to report a change")
	}
	if !is.ContainsImport(out, "docs/new.md") {
		t.Fatalf("expected the new reference present, got %q", out)
	}
}

func TestRemoveImportDropsMatchingReferenceDefinition(t *testing.T) {
	p := New()
	is, _ := p.ImportSupport()
	src := []byte("[guide]: docs/guide.md\n[other]: docs/other.md\n")
	out, removed, err := is.RemoveImport(src, "docs/guide.md")
	if err != nil {
		t.Fatalf("RemoveImport: %v", err)
	}
	if !removed {
		t.Fatalf("expected RemoveImport to report a removal")
	}
	if is.ContainsImport(out, "docs/guide.md") {
		t.Fatalf("expected docs/guide.md reference removed, got %q", out)
	}
	if !is.ContainsImport(out, "docs/other.md") {
		t.Fatalf("expected docs/other.md reference left intact, got %q", out)
	}
}
