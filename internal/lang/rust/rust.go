// Package rust implements the Rust language plugin: tree-sitter-backed
// parsing and "use" statement rewriting grounded on
// cb-lang-rust/src/import_support.rs. Unlike the Go plugin, Rust import
// paths are crate-relative rather than file-path-relative, so a file move
// never needs an import rewrite (ported faithfully from the source, which
// returns (content, 0) unconditionally for moves).
package rust

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/pleme-io/typemill-sub012/internal/model"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Plugin is the Rust language plugin.
type Plugin struct{}

// New returns a new Rust language plugin.
func New() *Plugin { return &Plugin{} }

var _ plugin.Plugin = (*Plugin)(nil)

// Metadata implements plugin.Plugin.
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "rust",
		Extensions:       []string{".rs"},
		ManifestFilename: "Cargo.toml",
		SourceDir:        "src",
		EntryPoint:       "main.rs",
		ModuleSeparator:  "::",
	}
}

// Capabilities implements plugin.Plugin.
func (p *Plugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{Imports: true, Workspace: true, ProjectFactory: true}
}

var fnDeclPattern = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)\s*[(<]`)
var structDeclPattern = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum|trait)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Parse implements plugin.Plugin with a tree-sitter-first strategy and a
// line-anchored regex fallback, matching the "Parse never fails" contract.
func (p *Plugin) Parse(ctx context.Context, source []byte, uri string) (*plugin.ParseResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil || tree.RootNode() == nil {
		return p.parseRegexFallback(source, uri), nil
	}

	root := tree.RootNode()
	var symbols []model.Symbol
	walkRustTree(root, source, uri, &symbols)

	return &plugin.ParseResult{
		AST:      map[string]any{"type": root.Type(), "childCt": root.ChildCount()},
		Symbols:  symbols,
		Degraded: false,
	}, nil
}

func walkRustTree(n *sitter.Node, source []byte, uri string, out *[]model.Symbol) {
	var kind model.Kind
	switch n.Type() {
	case "function_item":
		kind = model.KindFunction
	case "struct_item":
		kind = model.KindStruct
	case "enum_item":
		kind = model.KindClass
	case "trait_item":
		kind = model.KindInterface
	default:
		kind = ""
	}
	if kind != "" {
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(source)
			vis := model.VisibilityCrate
			if hasPubModifier(n, source) {
				vis = model.VisibilityPublic
			}
			*out = append(*out, model.NewSymbol(uri, name, kind, nodeRange(n), vis))
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walkRustTree(n.Child(i), source, uri, out)
	}
}

func hasPubModifier(n *sitter.Node, source []byte) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "visibility_modifier" {
			return true
		}
		if child.Content(source) == "pub" {
			return true
		}
	}
	return false
}

func nodeRange(n *sitter.Node) model.Range {
	start, end := n.StartPoint(), n.EndPoint()
	return model.Range{
		Start: model.Position{Line: int(start.Row), Column: int(start.Column)},
		End:   model.Position{Line: int(end.Row), Column: int(end.Column)},
	}
}

func (p *Plugin) parseRegexFallback(source []byte, uri string) *plugin.ParseResult {
	var symbols []model.Symbol
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	line := 0
	for scanner.Scan() {
		text := scanner.Text()
		vis := model.VisibilityCrate
		if strings.Contains(text, "pub ") || strings.Contains(text, "pub(") {
			vis = model.VisibilityPublic
		}
		rng := model.Range{Start: model.Position{Line: line, Column: 0}, End: model.Position{Line: line, Column: len(text)}}
		if m := fnDeclPattern.FindStringSubmatch(text); m != nil {
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindFunction, rng, vis))
		} else if m := structDeclPattern.FindStringSubmatch(text); m != nil {
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindStruct, rng, vis))
		}
		line++
	}
	return &plugin.ParseResult{AST: nil, Symbols: symbols, Degraded: true}
}

// ListFunctions implements plugin.Plugin.
func (p *Plugin) ListFunctions(ctx context.Context, source []byte) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		if m := fnDeclPattern.FindStringSubmatch(scanner.Text()); m != nil {
			names = append(names, m[1])
		}
	}
	return names, nil
}

// AnalyzeManifest implements plugin.Plugin for Cargo.toml.
func (p *Plugin) AnalyzeManifest(ctx context.Context, path string) (*plugin.ManifestData, error) {
	return parseCargoToml(path)
}

// ImportSupport implements plugin.Plugin.
func (p *Plugin) ImportSupport() (plugin.ImportSupport, bool) { return importSupport{}, true }

// WorkspaceSupport implements plugin.Plugin for Cargo workspaces.
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool) { return workspaceSupport{}, true }

// ProjectFactory implements plugin.Plugin, scaffolding a new crate.
func (p *Plugin) ProjectFactory() (plugin.ProjectFactory, bool) { return projectFactory{}, true }

type importSupport struct{}

var useStatementPattern = regexp.MustCompile(`^\s*(?:pub\s+)?use\s+([A-Za-z0-9_:]+)(?:::\{[^}]*\}|::\*|::[A-Za-z0-9_]+)?\s*;`)

// ParseImports implements plugin.ImportSupport, returning the module path
// for each use statement (the path up to but excluding the final imported
// symbol), grounded on RustImportSupport::parse_imports.
func (importSupport) ParseImports(ctx context.Context, source []byte) ([]plugin.ImportRecord, error) {
	var out []plugin.ImportRecord
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(trimmed, "use ") && !strings.HasPrefix(trimmed, "pub use ") {
			continue
		}
		modulePath := extractModulePath(trimmed)
		if modulePath == "" {
			continue
		}
		out = append(out, plugin.ImportRecord{Raw: modulePath, IsRelative: false})
	}
	return out, nil
}

// extractModulePath mirrors parser::parse_imports's module_path field: the
// use-tree path with the final leaf segment (the imported symbol, glob, or
// brace-group) stripped off.
func extractModulePath(line string) string {
	line = strings.TrimPrefix(line, "pub ")
	line = strings.TrimPrefix(line, "use ")
	line = strings.TrimSuffix(strings.TrimSpace(line), ";")
	line = strings.TrimSpace(line)

	if idx := strings.Index(line, "::{"); idx >= 0 {
		return line[:idx]
	}
	if strings.HasSuffix(line, "::*") {
		return strings.TrimSuffix(line, "::*")
	}
	if idx := strings.LastIndex(line, "::"); idx >= 0 {
		return line[:idx]
	}
	return line
}

// RewriteImportsForRename implements plugin.ImportSupport, replacing the
// leading crate/module segment of any use-tree path that starts with
// oldName, grounded on RustImportSupport::rewrite_imports_for_rename (the
// original uses syn/quote for AST-true rewriting; this port operates on the
// use-tree path textually since a tree-sitter reparse-and-splice round trip
// is not needed for a whole-segment replacement).
func (importSupport) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	lines := strings.Split(string(content), "\n")
	changes := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "use ") && !strings.HasPrefix(trimmed, "pub use ") {
			continue
		}
		if !useReferencesModule(trimmed, oldName) {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		rewritten := replaceLeadingSegment(trimmed, oldName, newName)
		if rewritten != trimmed {
			lines[i] = indent + rewritten
			changes++
		}
	}
	return []byte(strings.Join(lines, "\n")), changes, nil
}

func useReferencesModule(useLine, name string) bool {
	return strings.Contains(useLine, name)
}

// replaceLeadingSegment replaces the leftmost "name" path segment in a use
// statement with newName, e.g. "use old_crate::module::Thing;" ->
// "use new_crate::module::Thing;".
func replaceLeadingSegment(useLine, oldName, newName string) string {
	prefix := ""
	rest := useLine
	switch {
	case strings.HasPrefix(useLine, "pub use "):
		prefix, rest = "pub use ", strings.TrimPrefix(useLine, "pub use ")
	case strings.HasPrefix(useLine, "use "):
		prefix, rest = "use ", strings.TrimPrefix(useLine, "use ")
	}
	if strings.HasPrefix(rest, oldName+"::") {
		return prefix + newName + "::" + strings.TrimPrefix(rest, oldName+"::")
	}
	if rest == oldName+";" {
		return prefix + newName + ";"
	}
	return useLine
}

// RewriteImportsForMove implements plugin.ImportSupport. Rust imports refer
// to crate-relative module paths, not file paths, so a move never rewrites
// imports (ported verbatim from the source's no-op implementation).
func (importSupport) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	return content, 0, nil
}

// ContainsImport implements plugin.ImportSupport. target is matched against
// the whole use statement, so both a module path and a full item path (the
// form AddImport writes) are found.
func (importSupport) ContainsImport(content []byte, target string) bool {
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if (strings.HasPrefix(trimmed, "use ") || strings.HasPrefix(trimmed, "pub use ")) && strings.Contains(trimmed, target) {
			return true
		}
	}
	return false
}

// AddImport implements plugin.ImportSupport, inserting after the last "use"
// line, or at the top of the file if none exist, grounded on
// RustImportSupport::add_import.
func (importSupport) AddImport(content []byte, target string) ([]byte, bool, error) {
	text := string(content)
	lines := strings.Split(text, "\n")
	lastUseIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "use ") {
			lastUseIdx = i
		}
	}
	stmt := "use " + target + ";"

	if lastUseIdx >= 0 {
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:lastUseIdx+1]...)
		out = append(out, stmt)
		out = append(out, lines[lastUseIdx+1:]...)
		return []byte(strings.Join(out, "\n")), true, nil
	}

	if strings.TrimSpace(text) == "" {
		return []byte(stmt), true, nil
	}
	return []byte(stmt + "\n\n" + text), true, nil
}

// RemoveImport implements plugin.ImportSupport.
func (importSupport) RemoveImport(content []byte, target string) ([]byte, bool, error) {
	lines := strings.Split(string(content), "\n")
	out := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "use ") && strings.Contains(trimmed, target) {
			removed++
			continue
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n")), removed > 0, nil
}
