// Package golang implements the Go language plugin: tree-sitter-backed
// parsing with a regex fallback, and import rewriting grounded on
// cb-lang-go/src/import_support.rs's quoted-module-path replacement.
package golang

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/pleme-io/typemill-sub012/internal/lang/common"
	"github.com/pleme-io/typemill-sub012/internal/model"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Plugin is the Go language plugin.
type Plugin struct{}

// New returns a new Go language plugin.
func New() *Plugin { return &Plugin{} }

var _ plugin.Plugin = (*Plugin)(nil)

// Metadata implements plugin.Plugin.
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "go",
		Extensions:       []string{".go"},
		ManifestFilename: "go.mod",
		SourceDir:        ".",
		EntryPoint:       "main.go",
		ModuleSeparator:  "/",
	}
}

// Capabilities implements plugin.Plugin.
func (p *Plugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{Imports: true, Workspace: false, ProjectFactory: false}
}

var funcDeclPattern = regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// Parse implements plugin.Plugin. It prefers tree-sitter and degrades to a
// line-anchored regex scan for func/type declarations on any parser error,
// per the "Parse must never abort" rule in §4.A.
func (p *Plugin) Parse(ctx context.Context, source []byte, uri string) (*plugin.ParseResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil || tree.RootNode() == nil {
		return p.parseRegexFallback(source, uri), nil
	}

	root := tree.RootNode()
	var symbols []model.Symbol
	walkGoTree(root, source, uri, &symbols)

	return &plugin.ParseResult{
		AST:      astSummary(root),
		Symbols:  symbols,
		Degraded: false,
	}, nil
}

func astSummary(n *sitter.Node) map[string]any {
	return map[string]any{
		"type":    n.Type(),
		"childCt": n.ChildCount(),
	}
}

func walkGoTree(n *sitter.Node, source []byte, uri string, out *[]model.Symbol) {
	switch n.Type() {
	case "function_declaration", "method_declaration":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(source)
			vis := model.VisibilityPrivate
			if isExported(name) {
				vis = model.VisibilityPublic
			}
			*out = append(*out, model.NewSymbol(uri, name, model.KindFunction, nodeRange(n), vis))
		}
	case "type_declaration":
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() == "type_spec" {
				if nameNode := child.ChildByFieldName("name"); nameNode != nil {
					name := nameNode.Content(source)
					vis := model.VisibilityPrivate
					if isExported(name) {
						vis = model.VisibilityPublic
					}
					*out = append(*out, model.NewSymbol(uri, name, model.KindStruct, nodeRange(child), vis))
				}
			}
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walkGoTree(n.Child(i), source, uri, out)
	}
}

func nodeRange(n *sitter.Node) model.Range {
	start := n.StartPoint()
	end := n.EndPoint()
	return model.Range{
		Start: model.Position{Line: int(start.Row), Column: int(start.Column)},
		End:   model.Position{Line: int(end.Row), Column: int(end.Column)},
	}
}

func isExported(name string) bool {
	if name == "" {
		return false
	}
	r := rune(name[0])
	return r >= 'A' && r <= 'Z'
}

func (p *Plugin) parseRegexFallback(source []byte, uri string) *plugin.ParseResult {
	typeDeclPattern := regexp.MustCompile(`^\s*type\s+([A-Za-z_][A-Za-z0-9_]*)\b`)
	var symbols []model.Symbol
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	line := 0
	for scanner.Scan() {
		text := scanner.Text()
		kind := model.KindFunction
		m := funcDeclPattern.FindStringSubmatch(text)
		if m == nil {
			kind = model.KindStruct
			m = typeDeclPattern.FindStringSubmatch(text)
		}
		if m != nil {
			vis := model.VisibilityPrivate
			if isExported(m[1]) {
				vis = model.VisibilityPublic
			}
			rng := model.Range{
				Start: model.Position{Line: line, Column: 0},
				End:   model.Position{Line: line, Column: len(text)},
			}
			symbols = append(symbols, model.NewSymbol(uri, m[1], kind, rng, vis))
		}
		line++
	}
	return &plugin.ParseResult{AST: nil, Symbols: symbols, Degraded: true}
}

// ListFunctions implements plugin.Plugin using the regex scan directly,
// independent of Parse, per §4.A.
func (p *Plugin) ListFunctions(ctx context.Context, source []byte) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		if m := funcDeclPattern.FindStringSubmatch(scanner.Text()); m != nil {
			names = append(names, m[1])
		}
	}
	return names, nil
}

// AnalyzeManifest implements plugin.Plugin for go.mod files.
func (p *Plugin) AnalyzeManifest(ctx context.Context, path string) (*plugin.ManifestData, error) {
	return analyzeGoMod(path)
}

// ImportSupport implements plugin.Plugin.
func (p *Plugin) ImportSupport() (plugin.ImportSupport, bool) { return importSupport{}, true }

// WorkspaceSupport implements plugin.Plugin; Go modules have no
// sub-workspace concept analogous to Cargo workspaces in this engine.
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool) { return nil, false }

// ProjectFactory implements plugin.Plugin; scaffolding is not offered for Go.
func (p *Plugin) ProjectFactory() (plugin.ProjectFactory, bool) { return nil, false }

type importSupport struct{}

var (
	importSingleLine = regexp.MustCompile(`^\s*import\s+(?:[A-Za-z_][A-Za-z0-9_]*\s+)?"([^"]+)"`)
	importBlockLine  = regexp.MustCompile(`^\s*(?:[A-Za-z_][A-Za-z0-9_]*\s+)?"([^"]+)"`)
	importBlockStart = regexp.MustCompile(`^\s*import\s*\(`)
)

// ParseImports implements plugin.ImportSupport, grounded on
// GoImportSupport::parse_imports.
func (importSupport) ParseImports(ctx context.Context, source []byte) ([]plugin.ImportRecord, error) {
	var out []plugin.ImportRecord
	inBlock := false
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if !inBlock {
			if importBlockStart.MatchString(line) {
				inBlock = true
				continue
			}
			if m := importSingleLine.FindStringSubmatch(line); m != nil {
				out = append(out, plugin.ImportRecord{Raw: common.NormalizeImportPath(m[1]), IsRelative: false})
			}
			continue
		}
		if trimmed == ")" {
			inBlock = false
			continue
		}
		if m := importBlockLine.FindStringSubmatch(line); m != nil {
			out = append(out, plugin.ImportRecord{Raw: common.NormalizeImportPath(m[1]), IsRelative: false})
		}
	}
	return out, nil
}

// RewriteImportsForRename implements plugin.ImportSupport. Go imports are
// module paths, so a rename rewrites the quoted path wholesale.
func (importSupport) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	oldQuoted := fmt.Sprintf("%q", oldName)
	newQuoted := fmt.Sprintf("%q", newName)
	out, n := replaceInLines(string(content), oldQuoted, newQuoted)
	return []byte(out), n, nil
}

// RewriteImportsForMove implements plugin.ImportSupport, grounded on the
// source's simplification of using the file stem as the package
// identifier.
func (importSupport) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	oldPkg := stemOf(oldPath)
	newPkg := stemOf(newPath)
	if oldPkg == "" || newPkg == "" || oldPkg == newPkg {
		return content, 0, nil
	}
	oldQuoted := fmt.Sprintf("%q", oldPkg)
	newQuoted := fmt.Sprintf("%q", newPkg)
	out, n := replaceInLines(string(content), oldQuoted, newQuoted)
	return []byte(out), n, nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ContainsImport implements plugin.ImportSupport.
func (s importSupport) ContainsImport(content []byte, target string) bool {
	imports, _ := s.ParseImports(context.Background(), content)
	for _, imp := range imports {
		if imp.Raw == target || strings.HasSuffix(imp.Raw, "/"+target) {
			return true
		}
	}
	return false
}

// AddImport implements plugin.ImportSupport.
func (s importSupport) AddImport(content []byte, target string) ([]byte, bool, error) {
	if s.ContainsImport(content, target) {
		return content, false, nil
	}
	lines := strings.Split(string(content), "\n")

	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "import (") {
			newLine := fmt.Sprintf("\t%q", target)
			lines = insertLineAt(lines, i+1, newLine)
			return []byte(strings.Join(lines, "\n")), true, nil
		}
	}

	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "package ") {
			newImport := fmt.Sprintf("\nimport %q", target)
			lines = insertLineAt(lines, i+1, newImport)
			return []byte(strings.Join(lines, "\n")), true, nil
		}
	}

	newImport := fmt.Sprintf("\nimport %q", target)
	lines = insertLineAt(lines, len(lines), newImport)
	return []byte(strings.Join(lines, "\n")), true, nil
}

// RemoveImport implements plugin.ImportSupport.
func (importSupport) RemoveImport(content []byte, target string) ([]byte, bool, error) {
	quoted := fmt.Sprintf("%q", target)
	out, removed := removeLinesMatching(string(content), func(line string) bool {
		trimmed := strings.TrimSpace(line)
		return (strings.HasPrefix(trimmed, "import ") && strings.Contains(trimmed, quoted)) ||
			(strings.HasPrefix(trimmed, `"`) && strings.Contains(trimmed, quoted))
	})
	return []byte(out), removed > 0, nil
}

func replaceInLines(content, old, new string) (string, int) {
	return strings.ReplaceAll(content, old, new), strings.Count(content, old)
}

func insertLineAt(lines []string, idx int, newLine string) []string {
	if idx < 0 {
		idx = 0
	}
	if idx > len(lines) {
		idx = len(lines)
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:idx]...)
	out = append(out, newLine)
	out = append(out, lines[idx:]...)
	return out
}

func removeLinesMatching(content string, match func(string) bool) (string, int) {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	removed := 0
	for _, l := range lines {
		if match(l) {
			removed++
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n"), removed
}

// analyzeGoMod is implemented in manifest.go.
var analyzeGoMod = func(path string) (*plugin.ManifestData, error) {
	return parseGoMod(path)
}
