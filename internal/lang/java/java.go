// Package java implements the Java language plugin. Import handling is
// grounded on cb-lang-java/src/import_support.rs's semantics (package-path
// import matching, file_path_to_package's src/main/java marker lookup),
// but reimplemented as an in-process tree-sitter parse and regex rewrite
// instead of shelling out to an embedded JavaParser JAR: this engine never
// spawns an external JVM for a capability a native Go parser already
// covers, and embedding a prebuilt JAR would mean vendoring a binary
// blob behind this module, which this codebase doesn't do for any other
// plugin either.
package java

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/pleme-io/typemill-sub012/internal/model"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Plugin is the Java language plugin.
type Plugin struct{}

// New returns a new Java language plugin.
func New() *Plugin { return &Plugin{} }

var _ plugin.Plugin = (*Plugin)(nil)

// Metadata implements plugin.Plugin. pom.xml is the only manifest filename
// registered, so the registry's manifest lookup does not resolve
// build.gradle; AnalyzeManifest still parses a build.gradle path it is
// given.
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "java",
		Extensions:       []string{".java"},
		ManifestFilename: "pom.xml",
		SourceDir:        "src/main/java",
		EntryPoint:       "Main.java",
		ModuleSeparator:  ".",
	}
}

// Capabilities implements plugin.Plugin.
func (p *Plugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{Imports: true, Workspace: false, ProjectFactory: false}
}

var (
	classDeclPattern = regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+)?(?:static\s+|final\s+|abstract\s+)*(?:class|interface|enum)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	methodPattern     = regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+|final\s+|abstract\s+|synchronized\s+)*[A-Za-z_$][A-Za-z0-9_$<>\[\],.\s]*\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\([^;]*$`)
)

// Parse implements plugin.Plugin with tree-sitter-first AST extraction and
// a regex-scan fallback.
func (p *Plugin) Parse(ctx context.Context, source []byte, uri string) (*plugin.ParseResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil || tree.RootNode() == nil {
		return p.parseRegexFallback(source, uri), nil
	}

	root := tree.RootNode()
	var symbols []model.Symbol
	walkJavaTree(root, source, uri, &symbols)

	return &plugin.ParseResult{
		AST:      map[string]any{"type": root.Type(), "childCt": root.ChildCount()},
		Symbols:  symbols,
		Degraded: false,
	}, nil
}

func walkJavaTree(n *sitter.Node, source []byte, uri string, out *[]model.Symbol) {
	var kind model.Kind
	switch n.Type() {
	case "class_declaration":
		kind = model.KindClass
	case "interface_declaration":
		kind = model.KindInterface
	case "enum_declaration":
		kind = model.KindClass
	case "method_declaration", "constructor_declaration":
		kind = model.KindMethod
	default:
		kind = ""
	}
	if kind != "" {
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(source)
			*out = append(*out, model.NewSymbol(uri, name, kind, nodeRange(n), visibilityOf(n, source)))
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walkJavaTree(n.Child(i), source, uri, out)
	}
}

func visibilityOf(n *sitter.Node, source []byte) model.Visibility {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() != "modifiers" {
			continue
		}
		text := child.Content(source)
		switch {
		case strings.Contains(text, "public"):
			return model.VisibilityPublic
		case strings.Contains(text, "protected"):
			return model.VisibilityRestricted
		case strings.Contains(text, "private"):
			return model.VisibilityPrivate
		}
	}
	return model.VisibilityCrate
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
		if m := classDeclPattern.FindStringSubmatch(text); m != nil {
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindClass, rng, model.VisibilityPublic))
		} else if m := methodPattern.FindStringSubmatch(text); m != nil {
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindMethod, rng, model.VisibilityPublic))
		}
		line++
	}
	return &plugin.ParseResult{AST: nil, Symbols: symbols, Degraded: true}
}

// ListFunctions implements plugin.Plugin, returning method names.
func (p *Plugin) ListFunctions(ctx context.Context, source []byte) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		if m := methodPattern.FindStringSubmatch(scanner.Text()); m != nil {
			names = append(names, m[1])
		}
	}
	return names, nil
}

// AnalyzeManifest implements plugin.Plugin for pom.xml.
func (p *Plugin) AnalyzeManifest(ctx context.Context, path string) (*plugin.ManifestData, error) {
	return parsePomXML(path)
}

// ImportSupport implements plugin.Plugin.
func (p *Plugin) ImportSupport() (plugin.ImportSupport, bool) { return importSupport{}, true }

// WorkspaceSupport implements plugin.Plugin; multi-module Maven reactors
// are out of scope for this engine's supported operations.
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool) { return nil, false }

// ProjectFactory implements plugin.Plugin; scaffolding is not offered.
func (p *Plugin) ProjectFactory() (plugin.ProjectFactory, bool) { return nil, false }

type importSupport struct{}

var javaImportPattern = regexp.MustCompile(`^\s*import\s+(static\s+)?([A-Za-z0-9_.$]+(?:\.\*)?)\s*;`)
var sourceRootMarkers = []string{"src/main/java/", "src/test/java/", "src/"}

// ParseImports implements plugin.ImportSupport, grounded on
// JavaImportSupport::parse_imports: a static import is prefixed "static ".
func (importSupport) ParseImports(ctx context.Context, source []byte) ([]plugin.ImportRecord, error) {
	var out []plugin.ImportRecord
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		if m := javaImportPattern.FindStringSubmatch(scanner.Text()); m != nil {
			path := m[2]
			if m[1] != "" {
				path = "static " + path
			}
			out = append(out, plugin.ImportRecord{Raw: path, IsRelative: false})
		}
	}
	return out, nil
}

// RewriteImportsForRename implements plugin.ImportSupport: rewrites any
// import whose package path equals or is prefixed by oldName.
func (importSupport) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	lines := strings.Split(string(content), "\n")
	changes := 0
	for i, line := range lines {
		m := javaImportPattern.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		path := line[m[4]:m[5]]
		var rewritten string
		switch {
		case path == oldName:
			rewritten = newName
		case strings.HasPrefix(path, oldName+"."):
			rewritten = newName + strings.TrimPrefix(path, oldName)
		default:
			continue
		}
		lines[i] = line[:m[4]] + rewritten + line[m[5]:]
		changes++
	}
	return []byte(strings.Join(lines, "\n")), changes, nil
}

// RewriteImportsForMove implements plugin.ImportSupport, converting the old
// and new file paths to package paths via filePathToPackage and delegating
// to RewriteImportsForRename, grounded on
// JavaImportSupport::rewrite_imports_for_move.
func (s importSupport) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	oldPackage := filePathToPackage(oldPath)
	newPackage := filePathToPackage(newPath)
	if oldPackage == "" || newPackage == "" {
		return content, 0, nil
	}
	return s.RewriteImportsForRename(content, oldPackage, newPackage)
}

// filePathToPackage converts a source file path to its dotted package
// path, e.g. "src/main/java/com/example/Foo.java" -> "com.example.Foo",
// grounded on file_path_to_package.
func filePathToPackage(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	for _, marker := range sourceRootMarkers {
		idx := strings.Index(normalized, marker)
		if idx < 0 {
			continue
		}
		rest := normalized[idx+len(marker):]
		rest = strings.TrimSuffix(rest, ".java")
		return strings.ReplaceAll(rest, "/", ".")
	}
	return ""
}

// ContainsImport implements plugin.ImportSupport.
func (s importSupport) ContainsImport(content []byte, module string) bool {
	imports, _ := s.ParseImports(context.Background(), content)
	for _, imp := range imports {
		switch {
		case imp.Raw == module:
			return true
		case strings.HasSuffix(imp.Raw, "."+module):
			return true
		case strings.HasSuffix(imp.Raw, ".*") && strings.HasPrefix(module, strings.TrimSuffix(imp.Raw, "*")):
			return true
		}
	}
	return false
}

// AddImport implements plugin.ImportSupport, inserting after the last
// import statement, or after the package declaration if there are none.
func (s importSupport) AddImport(content []byte, module string) ([]byte, bool, error) {
	if s.ContainsImport(content, module) {
		return content, false, nil
	}
	lines := strings.Split(string(content), "\n")
	lastImportIdx := -1
	packageIdx := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if javaImportPattern.MatchString(line) {
			lastImportIdx = i
		}
		if packageIdx < 0 && strings.HasPrefix(trimmed, "package ") {
			packageIdx = i
		}
	}
	stmt := "import " + module + ";"
	insertAt := lastImportIdx + 1
	if lastImportIdx < 0 {
		insertAt = packageIdx + 1
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insertAt]...)
	out = append(out, stmt)
	out = append(out, lines[insertAt:]...)
	return []byte(strings.Join(out, "\n")), true, nil
}

// RemoveImport implements plugin.ImportSupport.
func (importSupport) RemoveImport(content []byte, module string) ([]byte, bool, error) {
	lines := strings.Split(string(content), "\n")
	out := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if javaImportPattern.MatchString(line) && strings.Contains(line, module) {
			removed++
			continue
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n")), removed > 0, nil
}

var _ plugin.ImportSupport = importSupport{}
