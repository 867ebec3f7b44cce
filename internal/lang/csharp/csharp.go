// Package csharp implements the C# language plugin, grounded on
// mill-lang-csharp's parser/manifest/workspace_support modules.
package csharp

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	"github.com/pleme-io/typemill-sub012/internal/model"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Plugin is the C# language plugin.
type Plugin struct{}

// New returns a new C# language plugin.
func New() *Plugin { return &Plugin{} }

var _ plugin.Plugin = (*Plugin)(nil)

// Metadata implements plugin.Plugin.
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "csharp",
		Extensions:       []string{".cs"},
		ManifestFilename: "*.csproj",
		SourceDir:        "",
		EntryPoint:       "Program.cs",
		ModuleSeparator:  ".",
	}
}

// Capabilities implements plugin.Plugin.
func (p *Plugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{Imports: true, Workspace: true, ProjectFactory: false}
}

// symbolPattern mirrors mill-lang-csharp's SYMBOL_REGEX fallback: a
// modifier-qualified class/interface/struct/enum/using declaration anchored
// to the start of a line.
var symbolPattern = regexp.MustCompile(`^\s*(?:public|private|internal|protected)?\s*(class|interface|struct|enum|using)\s+([\w.]+)`)
var methodPattern = regexp.MustCompile(`^\s*(?:public|private|internal|protected)\s+(?:static\s+|virtual\s+|override\s+|async\s+)*[\w<>\[\],.\s]+\s+([A-Za-z_][A-Za-z0-9_]*)\s*\([^;{]*\)\s*\{?\s*$`)

// Parse implements plugin.Plugin. The original shells out to a standalone
// csharp-parser binary that isn't present anywhere in this module's
// dependency surface, so this port runs the regex fallback path directly
// as its primary (and only) strategy rather than fabricating a parser
// executable dependency.
func (p *Plugin) Parse(ctx context.Context, source []byte, uri string) (*plugin.ParseResult, error) {
	var symbols []model.Symbol
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	line := 0
	for scanner.Scan() {
		text := scanner.Text()
		rng := model.Range{Start: model.Position{Line: line, Column: 0}, End: model.Position{Line: line, Column: len(text)}}
		if m := symbolPattern.FindStringSubmatch(text); m != nil {
			symbols = append(symbols, model.NewSymbol(uri, m[2], kindOf(m[1]), rng, model.VisibilityPublic))
		} else if m := methodPattern.FindStringSubmatch(text); m != nil {
			symbols = append(symbols, model.NewSymbol(uri, m[1], model.KindMethod, rng, model.VisibilityPublic))
		}
		line++
	}
	return &plugin.ParseResult{AST: nil, Symbols: symbols, Degraded: true}, nil
}

func kindOf(keyword string) model.Kind {
	switch keyword {
	case "class":
		return model.KindClass
	case "interface":
		return model.KindInterface
	case "struct":
		return model.KindStruct
	case "enum":
		return model.KindClass
	case "using":
		return model.KindModule
	default:
		return model.KindVariable
	}
}

// ListFunctions implements plugin.Plugin, filtering parsed symbols for
// method kinds, grounded on list_functions.
func (p *Plugin) ListFunctions(ctx context.Context, source []byte) ([]string, error) {
	result, err := p.Parse(ctx, source, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, sym := range result.Symbols {
		if sym.Kind == model.KindMethod {
			names = append(names, sym.Name)
		}
	}
	return names, nil
}

// AnalyzeManifest implements plugin.Plugin for .csproj files.
func (p *Plugin) AnalyzeManifest(ctx context.Context, path string) (*plugin.ManifestData, error) {
	return parseCsproj(path)
}

// ImportSupport implements plugin.Plugin for "using" directives.
func (p *Plugin) ImportSupport() (plugin.ImportSupport, bool) { return importSupport{}, true }

// WorkspaceSupport implements plugin.Plugin for .sln files.
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool) { return workspaceSupport{}, true }

// ProjectFactory implements plugin.Plugin; scaffolding .csproj/.sln trees is
// not offered.
func (p *Plugin) ProjectFactory() (plugin.ProjectFactory, bool) { return nil, false }

type importSupport struct{}

var usingPattern = regexp.MustCompile(`^\s*(global\s+)?using\s+(static\s+)?([\w.]+)\s*;`)

// ParseImports implements plugin.ImportSupport for "using NS;" directives.
func (importSupport) ParseImports(ctx context.Context, source []byte) ([]plugin.ImportRecord, error) {
	var out []plugin.ImportRecord
	scanner := bufio.NewScanner(strings.NewReader(string(source)))
	for scanner.Scan() {
		if m := usingPattern.FindStringSubmatch(scanner.Text()); m != nil {
			path := m[3]
			if m[2] != "" {
				path = "static " + path
			}
			out = append(out, plugin.ImportRecord{Raw: path, IsRelative: false})
		}
	}
	return out, nil
}

// RewriteImportsForRename implements plugin.ImportSupport, rewriting the
// namespace segment matching oldName.
func (importSupport) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	lines := strings.Split(string(content), "\n")
	changes := 0
	for i, line := range lines {
		m := usingPattern.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		path := line[m[6]:m[7]]
		var rewritten string
		switch {
		case path == oldName:
			rewritten = newName
		case strings.HasPrefix(path, oldName+"."):
			rewritten = newName + strings.TrimPrefix(path, oldName)
		default:
			continue
		}
		lines[i] = line[:m[6]] + rewritten + line[m[7]:]
		changes++
	}
	return []byte(strings.Join(lines, "\n")), changes, nil
}

// RewriteImportsForMove implements plugin.ImportSupport; C# namespaces are
// declared independently of file layout by convention only, so a file move
// does not imply a namespace rewrite.
func (importSupport) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	return content, 0, nil
}

// ContainsImport implements plugin.ImportSupport.
func (s importSupport) ContainsImport(content []byte, module string) bool {
	imports, _ := s.ParseImports(context.Background(), content)
	for _, imp := range imports {
		if imp.Raw == module || strings.HasSuffix(imp.Raw, "."+module) {
			return true
		}
	}
	return false
}

// AddImport implements plugin.ImportSupport, inserting after the last
// existing using directive, or at the top of the file.
func (s importSupport) AddImport(content []byte, module string) ([]byte, bool, error) {
	if s.ContainsImport(content, module) {
		return content, false, nil
	}
	lines := strings.Split(string(content), "\n")
	insertAt := 0
	for i, line := range lines {
		if usingPattern.MatchString(line) {
			insertAt = i + 1
		}
	}
	stmt := "using " + module + ";"
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
		if usingPattern.MatchString(line) && strings.Contains(line, module) {
			removed++
			continue
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n")), removed > 0, nil
}

var _ plugin.ImportSupport = importSupport{}
