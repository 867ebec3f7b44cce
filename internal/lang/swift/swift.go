// Package swift implements the Swift language plugin. The pack carries no
// parser/manifest source for this language (original_source only ships
// mill-lang-swift's refactoring.rs, a transform-planning helper with no
// parse/import surface), so this plugin runs the regex-fallback strategy
// directly, in the same shape csharp.go uses for the same reason.
package swift

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	"github.com/pleme-io/typemill-sub012/internal/model"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Plugin is the Swift language plugin.
type Plugin struct{}

// New returns a new Swift language plugin.
func New() *Plugin { return &Plugin{} }

var _ plugin.Plugin = (*Plugin)(nil)

// Metadata implements plugin.Plugin.
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "swift",
		Extensions:       []string{".swift"},
		ManifestFilename: "Package.swift",
		SourceDir:        "Sources",
		EntryPoint:       "main.swift",
		ModuleSeparator:  ".",
	}
}

// Capabilities implements plugin.Plugin.
func (p *Plugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{Imports: true, Workspace: false, ProjectFactory: false}
}

var (
	typePattern = regexp.MustCompile(`^\s*(?:public|private|internal|fileprivate|open)?\s*(?:final\s+)?(class|struct|enum|protocol|extension)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	funcPattern = regexp.MustCompile(`^\s*(?:public|private|internal|fileprivate|open)?\s*(?:static\s+|class\s+|mutating\s+|override\s+)*func\s+([A-Za-z_][A-Za-z0-9_]*)\s*[(<]`)
	varPattern  = regexp.MustCompile(`^\s*(?:public|private|internal|fileprivate|open)?\s*(?:static\s+)?(?:let|var)\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// Parse implements plugin.Plugin. Swift has no tree-sitter grammar wired
// into this module's dependency surface, so the regex scan is the only
// strategy and Degraded is always true, mirroring csharp's approach.
func (p *Plugin) Parse(ctx context.Context, source []byte, uri string) (*plugin.ParseResult, error) {
	var symbols []model.Symbol
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	line := 0
	for scanner.Scan() {
		text := scanner.Text()
		rng := model.Range{Start: model.Position{Line: line, Column: 0}, End: model.Position{Line: line, Column: len(text)}}
		switch {
		case typePattern.MatchString(text):
			m := typePattern.FindStringSubmatch(text)
			symbols = append(symbols, model.NewSymbol(uri, m[2], kindOf(m[1]), rng, visibilityOf(text)))
		case funcPattern.MatchString(text):
			m := funcPattern.FindStringSubmatch(text)
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindFunction, rng, visibilityOf(text)))
		case varPattern.MatchString(text):
			m := varPattern.FindStringSubmatch(text)
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindVariable, rng, visibilityOf(text)))
		}
		line++
	}
	return &plugin.ParseResult{AST: nil, Symbols: symbols, Degraded: true}, nil
}

func kindOf(keyword string) model.Kind {
	switch keyword {
	case "class":
		return model.KindClass
	case "struct":
		return model.KindStruct
	case "protocol":
		return model.KindInterface
	case "extension":
		return model.KindClass
	default:
		return model.KindVariable
	}
}

// visibilityOf maps an explicit access modifier directly; a declaration
// with none of Swift's access keywords is VisibilityUnknown (Swift's own
// default access level is "internal"), which the dead-code analyzer treats
// the same as VisibilityPublic.
func visibilityOf(line string) model.Visibility {
	switch {
	case strings.Contains(line, "private "):
		return model.VisibilityPrivate
	case strings.Contains(line, "fileprivate "):
		return model.VisibilityPrivate
	case strings.Contains(line, "internal "):
		return model.VisibilityRestricted
	case strings.Contains(line, "public "), strings.Contains(line, "open "):
		return model.VisibilityPublic
	default:
		return model.VisibilityUnknown
	}
}

// ListFunctions implements plugin.Plugin independent of Parse.
func (p *Plugin) ListFunctions(ctx context.Context, source []byte) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		if m := funcPattern.FindStringSubmatch(scanner.Text()); m != nil {
			names = append(names, m[1])
		}
	}
	return names, nil
}

// AnalyzeManifest implements plugin.Plugin for Package.swift.
func (p *Plugin) AnalyzeManifest(ctx context.Context, path string) (*plugin.ManifestData, error) {
	return parsePackageSwift(path)
}

// ImportSupport implements plugin.Plugin for "import Module" statements.
func (p *Plugin) ImportSupport() (plugin.ImportSupport, bool) { return importSupport{}, true }

// WorkspaceSupport implements plugin.Plugin; Swift packages in this engine
// are treated as single-manifest units with no sub-workspace member list.
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool) { return nil, false }

// ProjectFactory implements plugin.Plugin; scaffolding is not offered.
func (p *Plugin) ProjectFactory() (plugin.ProjectFactory, bool) { return nil, false }

type importSupport struct{}

var importPattern = regexp.MustCompile(`^\s*import\s+(?:(?:struct|class|enum|protocol|func|var|let)\s+)?([A-Za-z_][A-Za-z0-9_.]*)`)

// ParseImports implements plugin.ImportSupport. Swift imports name a
// module, never a relative path, so every import is non-relative.
func (importSupport) ParseImports(ctx context.Context, source []byte) ([]plugin.ImportRecord, error) {
	var out []plugin.ImportRecord
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		if m := importPattern.FindStringSubmatch(scanner.Text()); m != nil {
			out = append(out, plugin.ImportRecord{Raw: m[1], IsRelative: false})
		}
	}
	return out, nil
}

// RewriteImportsForRename implements plugin.ImportSupport, rewriting the
// module name in "import X" statements.
func (importSupport) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	lines := strings.Split(string(content), "\n")
	changes := 0
	for i, line := range lines {
		m := importPattern.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		name := line[m[2]:m[3]]
		if name != oldName {
			continue
		}
		lines[i] = line[:m[2]] + newName + line[m[3]:]
		changes++
	}
	return []byte(strings.Join(lines, "\n")), changes, nil
}

// RewriteImportsForMove implements plugin.ImportSupport; Swift module
// imports name the target's module, not its file path, so a move within
// the same module never requires a rewrite.
func (importSupport) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	return content, 0, nil
}

// ContainsImport implements plugin.ImportSupport.
func (s importSupport) ContainsImport(content []byte, module string) bool {
	imports, _ := s.ParseImports(context.Background(), content)
	for _, imp := range imports {
		if imp.Raw == module {
			return true
		}
	}
	return false
}

// AddImport implements plugin.ImportSupport, inserting after the last
// existing import statement or at the top of the file.
func (s importSupport) AddImport(content []byte, module string) ([]byte, bool, error) {
	if s.ContainsImport(content, module) {
		return content, false, nil
	}
	lines := strings.Split(string(content), "\n")
	insertAt := 0
	for i, line := range lines {
		if importPattern.MatchString(line) {
			insertAt = i + 1
		}
	}
	stmt := "import " + module
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
		if m := importPattern.FindStringSubmatch(line); m != nil && m[1] == module {
			removed++
			continue
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n")), removed > 0, nil
}

var _ plugin.ImportSupport = importSupport{}
