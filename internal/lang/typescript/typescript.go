// Package typescript implements the combined TypeScript/JavaScript
// language plugin: tree-sitter-backed parsing with a regex fallback, ES
// module import rewriting, and package.json manifest handling grounded on
// mill-handlers/src/handlers/tools/workspace_extract/package_json.rs.
package typescript

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/pleme-io/typemill-sub012/internal/lang/common"
	"github.com/pleme-io/typemill-sub012/internal/model"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Plugin is the TypeScript/JavaScript language plugin.
type Plugin struct{}

// New returns a new TypeScript/JavaScript language plugin.
func New() *Plugin { return &Plugin{} }

var _ plugin.Plugin = (*Plugin)(nil)

// Metadata implements plugin.Plugin.
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "typescript",
		Extensions:       []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
		ManifestFilename: "package.json",
		SourceDir:        "src",
		EntryPoint:       "index.ts",
		ModuleSeparator:  "/",
	}
}

// Capabilities implements plugin.Plugin.
func (p *Plugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{Imports: true, Workspace: true, ProjectFactory: true}
}

var (
	fnDeclPattern    = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
	classDeclPattern = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	constFnPattern   = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?const\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s+)?(?:function|\([^)]*\)\s*(?::\s*\S+\s*)?=>|[A-Za-z_$][A-Za-z0-9_$]*\s*=>)`)
)

// Parse implements plugin.Plugin. It tries tree-sitter's TypeScript
// grammar (a strict superset-compatible parse works for plain JavaScript
// too) and degrades to a regex line scan on failure.
func (p *Plugin) Parse(ctx context.Context, source []byte, uri string) (*plugin.ParseResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(typescript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil || tree.RootNode() == nil {
		return p.parseRegexFallback(source, uri), nil
	}

	root := tree.RootNode()
	var symbols []model.Symbol
	walkTSTree(root, source, uri, &symbols)

	return &plugin.ParseResult{
		AST:      map[string]any{"type": root.Type(), "childCt": root.ChildCount()},
		Symbols:  symbols,
		Degraded: false,
	}, nil
}

func walkTSTree(n *sitter.Node, source []byte, uri string, out *[]model.Symbol) {
	switch n.Type() {
	case "function_declaration", "method_definition":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(source)
			*out = append(*out, model.NewSymbol(uri, name, model.KindFunction, nodeRange(n), model.VisibilityPublic))
		}
	case "class_declaration":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(source)
			*out = append(*out, model.NewSymbol(uri, name, model.KindClass, nodeRange(n), model.VisibilityPublic))
		}
	case "interface_declaration":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(source)
			*out = append(*out, model.NewSymbol(uri, name, model.KindInterface, nodeRange(n), model.VisibilityPublic))
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walkTSTree(n.Child(i), source, uri, out)
	}
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
		case fnDeclPattern.MatchString(text):
			m := fnDeclPattern.FindStringSubmatch(text)
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindFunction, rng, model.VisibilityPublic))
		case classDeclPattern.MatchString(text):
			m := classDeclPattern.FindStringSubmatch(text)
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindClass, rng, model.VisibilityPublic))
		case constFnPattern.MatchString(text):
			m := constFnPattern.FindStringSubmatch(text)
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindFunction, rng, model.VisibilityPublic))
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
		text := scanner.Text()
		if m := fnDeclPattern.FindStringSubmatch(text); m != nil {
			names = append(names, m[1])
		} else if m := constFnPattern.FindStringSubmatch(text); m != nil {
			names = append(names, m[1])
		}
	}
	return names, nil
}

// AnalyzeManifest implements plugin.Plugin for package.json.
func (p *Plugin) AnalyzeManifest(ctx context.Context, path string) (*plugin.ManifestData, error) {
	return parsePackageJSON(path)
}

// ImportSupport implements plugin.Plugin.
func (p *Plugin) ImportSupport() (plugin.ImportSupport, bool) { return importSupport{}, true }

// WorkspaceSupport implements plugin.Plugin for npm/yarn/pnpm workspaces.
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool) { return workspaceSupport{}, true }

// ProjectFactory implements plugin.Plugin, scaffolding a new package.
func (p *Plugin) ProjectFactory() (plugin.ProjectFactory, bool) { return projectFactory{}, true }

type importSupport struct{}

var (
	esImportPattern  = regexp.MustCompile(`^\s*import\s+(?:type\s+)?(?:[^'"]*\s+from\s+)?['"]([^'"]+)['"]`)
	esExportPattern  = regexp.MustCompile(`^\s*export\s+(?:\*\s+from|\{[^}]*\}\s+from)\s+['"]([^'"]+)['"]`)
	requirePattern   = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	dynImportPattern = regexp.MustCompile(`import\(\s*['"]([^'"]+)['"]\s*\)`)
)

// ParseImports implements plugin.ImportSupport covering ES "import",
// "export ... from", CommonJS require(), and dynamic import().
func (importSupport) ParseImports(ctx context.Context, source []byte) ([]plugin.ImportRecord, error) {
	var out []plugin.ImportRecord
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		line := scanner.Text()
		if m := esImportPattern.FindStringSubmatch(line); m != nil {
			out = append(out, plugin.ImportRecord{Raw: m[1], IsRelative: isRelative(m[1])})
		}
		if m := esExportPattern.FindStringSubmatch(line); m != nil {
			out = append(out, plugin.ImportRecord{Raw: m[1], IsRelative: isRelative(m[1])})
		}
		for _, m := range requirePattern.FindAllStringSubmatch(line, -1) {
			out = append(out, plugin.ImportRecord{Raw: m[1], IsRelative: isRelative(m[1])})
		}
		for _, m := range dynImportPattern.FindAllStringSubmatch(line, -1) {
			out = append(out, plugin.ImportRecord{Raw: m[1], IsRelative: isRelative(m[1])})
		}
	}
	return out, nil
}

func isRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// RewriteImportsForRename implements plugin.ImportSupport, rewriting any
// quoted specifier whose final path segment equals oldName. When oldName
// carries a .ts/.tsx/.js/.jsx/.mjs/.cjs extension, a path specifier whose
// final segment is oldName without it is rewritten to newName without its
// extension.
func (importSupport) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	oldStem, newStem := trimExt(oldName), trimExt(newName)
	pattern := regexp.MustCompile(`(['"])([^'"]*/)?(` + regexp.QuoteMeta(oldName) + `|` + regexp.QuoteMeta(oldStem) + `)(['"])`)
	changes := 0
	out := pattern.ReplaceAllStringFunc(string(content), func(match string) string {
		m := pattern.FindStringSubmatch(match)
		replacement := newName
		if m[3] != oldName {
			if m[2] == "" {
				return match
			}
			replacement = newStem
		}
		changes++
		return m[1] + m[2] + replacement + m[4]
	})
	return []byte(out), changes, nil
}

// RewriteImportsForMove implements plugin.ImportSupport, grounded on the
// common module's shared import-path classification: only relative
// specifiers are path-like and need rewriting on a move.
func (importSupport) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	oldStem := common.NormalizeImportPath(trimExt(oldPath))
	newStem := common.NormalizeImportPath(trimExt(newPath))
	if oldStem == newStem {
		return content, 0, nil
	}
	pattern := regexp.MustCompile(`(['"])(\.\.?/[^'"]*)(['"])`)
	changes := 0
	out := pattern.ReplaceAllStringFunc(string(content), func(match string) string {
		m := pattern.FindStringSubmatch(match)
		if trimExt(m[2]) != oldStem {
			return match
		}
		changes++
		return m[1] + newStem + m[3]
	})
	return []byte(out), changes, nil
}

func trimExt(path string) string {
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"} {
		if strings.HasSuffix(path, ext) {
			return strings.TrimSuffix(path, ext)
		}
	}
	return path
}

// ContainsImport implements plugin.ImportSupport.
func (s importSupport) ContainsImport(content []byte, target string) bool {
	imports, _ := s.ParseImports(context.Background(), content)
	for _, imp := range imports {
		if imp.Raw == target {
			return true
		}
	}
	return false
}

// AddImport implements plugin.ImportSupport, inserting a bare side-effect
// import after the last existing import statement.
func (importSupport) AddImport(content []byte, target string) ([]byte, bool, error) {
	lines := strings.Split(string(content), "\n")
	lastImportIdx := -1
	for i, line := range lines {
		if esImportPattern.MatchString(line) {
			lastImportIdx = i
		}
	}
	stmt := "import '" + target + "';"
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
	return []byte(stmt + "\n" + text + "\n"), true, nil
}

// RemoveImport implements plugin.ImportSupport.
func (importSupport) RemoveImport(content []byte, target string) ([]byte, bool, error) {
	lines := strings.Split(string(content), "\n")
	out := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if esImportPattern.MatchString(line) && strings.Contains(line, target) {
			removed++
			continue
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n")), removed > 0, nil
}

var _ plugin.ImportSupport = importSupport{}
