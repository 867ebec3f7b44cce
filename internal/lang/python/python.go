// Package python implements the Python language plugin: tree-sitter-backed
// parsing with a regex fallback, and requirements.txt/pyproject.toml
// manifest handling, grounded on cb-lang-python/src/lib.rs.
package python

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/pleme-io/typemill-sub012/internal/lang/common"
	"github.com/pleme-io/typemill-sub012/internal/model"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Plugin is the Python language plugin.
type Plugin struct{}

// New returns a new Python language plugin.
func New() *Plugin { return &Plugin{} }

var _ plugin.Plugin = (*Plugin)(nil)

// Metadata implements plugin.Plugin. Python has no single canonical
// manifest file; requirements.txt is used as the default per the source's
// manifest_filename().
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "python",
		Extensions:       []string{".py", ".pyi"},
		ManifestFilename: "requirements.txt",
		SourceDir:        "",
		EntryPoint:       "__init__.py",
		ModuleSeparator:  ".",
	}
}

// Capabilities implements plugin.Plugin.
func (p *Plugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{Imports: true, Workspace: false, ProjectFactory: false}
}

var (
	defPattern    = regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	classPattern  = regexp.MustCompile(`^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)`)
	constPattern  = regexp.MustCompile(`^([A-Z_][A-Z0-9_]*)\s*(?::\s*\S+\s*)?=`)
)

// Parse implements plugin.Plugin with tree-sitter-first AST extraction,
// degrading to a regex line scan, matching the "Parse never fails"
// contract the other plugins share.
func (p *Plugin) Parse(ctx context.Context, source []byte, uri string) (*plugin.ParseResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil || tree.RootNode() == nil {
		return p.parseRegexFallback(source, uri), nil
	}

	root := tree.RootNode()
	var symbols []model.Symbol
	walkPythonTree(root, source, uri, &symbols, true)

	return &plugin.ParseResult{
		AST:      map[string]any{"type": root.Type(), "childCt": root.ChildCount()},
		Symbols:  symbols,
		Degraded: false,
	}, nil
}

func walkPythonTree(n *sitter.Node, source []byte, uri string, out *[]model.Symbol, topLevel bool) {
	switch n.Type() {
	case "function_definition":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(source)
			kind := model.KindFunction
			if !topLevel {
				kind = model.KindMethod
			}
			*out = append(*out, model.NewSymbol(uri, name, kind, nodeRange(n), visibilityOf(name)))
		}
	case "class_definition":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(source)
			*out = append(*out, model.NewSymbol(uri, name, model.KindClass, nodeRange(n), visibilityOf(name)))
		}
	case "expression_statement":
		if topLevel {
			if assign := firstChildOfType(n, "assignment"); assign != nil {
				if left := assign.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
					name := left.Content(source)
					if name == strings.ToUpper(name) {
						*out = append(*out, model.NewSymbol(uri, name, model.KindConstant, nodeRange(n), visibilityOf(name)))
					}
				}
			}
		}
	}

	childTopLevel := topLevel && n.Type() != "function_definition" && n.Type() != "class_definition"
	for i := 0; i < int(n.ChildCount()); i++ {
		walkPythonTree(n.Child(i), source, uri, out, childTopLevel)
	}
}

func firstChildOfType(n *sitter.Node, t string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == t {
			return n.Child(i)
		}
	}
	return nil
}

func visibilityOf(name string) model.Visibility {
	if strings.HasPrefix(name, "_") {
		return model.VisibilityPrivate
	}
	return model.VisibilityPublic
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
		rng := model.Range{Start: model.Position{Line: line, Column: 0}, End: model.Position{Line: line, Column: len(text)}}
		switch {
		case defPattern.MatchString(text):
			m := defPattern.FindStringSubmatch(text)
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindFunction, rng, visibilityOf(m[1])))
		case classPattern.MatchString(text):
			m := classPattern.FindStringSubmatch(text)
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindClass, rng, visibilityOf(m[1])))
		case constPattern.MatchString(text):
			m := constPattern.FindStringSubmatch(text)
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindConstant, rng, visibilityOf(m[1])))
		}
		line++
	}
	return &plugin.ParseResult{AST: nil, Symbols: symbols, Degraded: true}
}

// ListFunctions implements plugin.Plugin using the regex scan directly,
// grounded on parser::extract_python_functions as the fallback path.
func (p *Plugin) ListFunctions(ctx context.Context, source []byte) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		if m := defPattern.FindStringSubmatch(scanner.Text()); m != nil {
			names = append(names, m[1])
		}
	}
	return names, nil
}

// AnalyzeManifest implements plugin.Plugin, dispatching on filename per
// PythonPlugin::analyze_manifest.
func (p *Plugin) AnalyzeManifest(ctx context.Context, path string) (*plugin.ManifestData, error) {
	return analyzeManifest(path)
}

// ImportSupport implements plugin.Plugin.
func (p *Plugin) ImportSupport() (plugin.ImportSupport, bool) { return importSupport{}, true }

// WorkspaceSupport implements plugin.Plugin; Python has no workspace
// manifest concept analogous to Cargo/npm workspaces.
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool) { return nil, false }

// ProjectFactory implements plugin.Plugin; scaffolding is not offered.
func (p *Plugin) ProjectFactory() (plugin.ProjectFactory, bool) { return nil, false }

type importSupport struct{}

var (
	importPattern     = regexp.MustCompile(`^\s*import\s+(.+)`)
	fromImportPattern = regexp.MustCompile(`^\s*from\s+(\.*[A-Za-z0-9_.]*)\s+import\s+(.+)`)
)

// ParseImports implements plugin.ImportSupport, covering "import x, y as z"
// and "from .pkg import a, b" forms.
func (importSupport) ParseImports(ctx context.Context, source []byte) ([]plugin.ImportRecord, error) {
	var out []plugin.ImportRecord
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		line := scanner.Text()
		if m := fromImportPattern.FindStringSubmatch(line); m != nil {
			module := m[1]
			out = append(out, plugin.ImportRecord{Raw: module, IsRelative: strings.HasPrefix(module, ".")})
			continue
		}
		if m := importPattern.FindStringSubmatch(line); m != nil {
			for _, item := range common.SplitImportList(m[1]) {
				out = append(out, plugin.ImportRecord{Raw: item.Name, IsRelative: false})
			}
		}
	}
	return out, nil
}

// RewriteImportsForRename implements plugin.ImportSupport, replacing the
// leading dotted module segment equal to oldName.
func (importSupport) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	lines := strings.Split(string(content), "\n")
	changes := 0
	for i, line := range lines {
		if m := fromImportPattern.FindStringSubmatchIndex(line); m != nil {
			module := line[m[2]:m[3]]
			if module == oldName || strings.HasPrefix(module, oldName+".") {
				rewritten := newName + strings.TrimPrefix(module, oldName)
				lines[i] = line[:m[2]] + rewritten + line[m[3]:]
				changes++
			}
			continue
		}
		if strings.Contains(line, "import "+oldName) {
			lines[i] = strings.ReplaceAll(line, "import "+oldName, "import "+newName)
			changes++
		}
	}
	return []byte(strings.Join(lines, "\n")), changes, nil
}

// RewriteImportsForMove implements plugin.ImportSupport. Python packages
// are addressed by dotted module name, not file path, so only relative
// ("from . import x") imports would need rewriting on a move, and since a
// single-file move doesn't change its package's relative depth in the
// common case, this mirrors the Rust plugin's no-op for moves.
func (importSupport) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	return content, 0, nil
}

// ContainsImport implements plugin.ImportSupport.
func (s importSupport) ContainsImport(content []byte, target string) bool {
	imports, _ := s.ParseImports(context.Background(), content)
	for _, imp := range imports {
		if imp.Raw == target || strings.HasPrefix(imp.Raw, target+".") {
			return true
		}
	}
	return false
}

// AddImport implements plugin.ImportSupport, inserting after the last
// top-level import statement, or at the top of the file if none exist.
func (importSupport) AddImport(content []byte, target string) ([]byte, bool, error) {
	lines := strings.Split(string(content), "\n")
	lastImportIdx := -1
	for i, line := range lines {
		if importPattern.MatchString(line) || fromImportPattern.MatchString(line) {
			lastImportIdx = i
		}
	}
	stmt := "import " + target
	if lastImportIdx >= 0 {
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:lastImportIdx+1]...)
		out = append(out, stmt)
		out = append(out, lines[lastImportIdx+1:]...)
		return []byte(strings.Join(out, "\n")), true, nil
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return []byte(stmt + "\n"), true, nil
	}
	return []byte(stmt + "\n\n" + text + "\n"), true, nil
}

// RemoveImport implements plugin.ImportSupport.
func (importSupport) RemoveImport(content []byte, target string) ([]byte, bool, error) {
	lines := strings.Split(string(content), "\n")
	out := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if (importPattern.MatchString(line) || fromImportPattern.MatchString(line)) && strings.Contains(line, target) {
			removed++
			continue
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n")), removed > 0, nil
}

var _ plugin.ImportSupport = importSupport{}
