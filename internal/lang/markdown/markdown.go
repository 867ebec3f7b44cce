// Package markdown implements the Markdown language plugin: it treats
// links (inline, reference-style, autolinks) and path-shaped prose as
// "imports" for the purpose of file rename/move tracking, grounded on
// cb-lang-markdown/src/import_support_impl.rs. Structural parsing uses
// goldmark so headings become symbols for the document outline.
package markdown

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pleme-io/typemill-sub012/internal/model"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Plugin is the Markdown language plugin.
type Plugin struct{}

// New returns a new Markdown language plugin.
func New() *Plugin { return &Plugin{} }

var _ plugin.Plugin = (*Plugin)(nil)

// Metadata implements plugin.Plugin.
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "markdown",
		Extensions:       []string{".md", ".markdown"},
		ManifestFilename: "",
		SourceDir:        ".",
		EntryPoint:       "README.md",
		ModuleSeparator:  "/",
	}
}

// Capabilities implements plugin.Plugin.
func (p *Plugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{Imports: true, Workspace: false, ProjectFactory: false}
}

// Parse implements plugin.Plugin using goldmark's AST, turning each heading
// into a Symbol so documents get a navigable outline.
func (p *Plugin) Parse(ctx context.Context, source []byte, uri string) (*plugin.ParseResult, error) {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var symbols []model.Symbol
	if doc != nil {
		walkHeadings(doc, source, uri, &symbols)
	}

	return &plugin.ParseResult{
		AST:      map[string]any{"headingCount": len(symbols)},
		Symbols:  symbols,
		Degraded: false,
	}, nil
}

func walkHeadings(n ast.Node, source []byte, uri string, out *[]model.Symbol) {
	if h, ok := n.(*ast.Heading); ok {
		name := string(h.Text(source))
		lines := h.Lines()
		rng := model.Range{}
		if lines.Len() > 0 {
			seg := lines.At(0)
			startLine, _ := lineColAt(source, seg.Start)
			endLine, _ := lineColAt(source, seg.Stop)
			rng = model.Range{
				Start: model.Position{Line: startLine, Column: 0},
				End:   model.Position{Line: endLine, Column: 0},
			}
		}
		*out = append(*out, model.NewSymbol(uri, name, model.KindModule, rng, model.VisibilityPublic))
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		walkHeadings(c, source, uri, out)
	}
}

func lineColAt(source []byte, offset int) (line, col int) {
	for i := 0; i < offset && i < len(source); i++ {
		if source[i] == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return line, col
}

// ListFunctions implements plugin.Plugin; Markdown has no callable
// functions, so this always returns an empty slice.
func (p *Plugin) ListFunctions(ctx context.Context, source []byte) ([]string, error) {
	return nil, nil
}

// AnalyzeManifest implements plugin.Plugin; Markdown carries no package
// manifest.
func (p *Plugin) AnalyzeManifest(ctx context.Context, path string) (*plugin.ManifestData, error) {
	return &plugin.ManifestData{
		Name:            filepath.Base(path),
		Dependencies:    map[string]string{},
		DevDependencies: map[string]string{},
	}, nil
}

// ImportSupport implements plugin.Plugin.
func (p *Plugin) ImportSupport() (plugin.ImportSupport, bool) { return importSupport{}, true }

// WorkspaceSupport implements plugin.Plugin; Markdown has no workspace
// manifest concept.
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool) { return nil, false }

// ProjectFactory implements plugin.Plugin; no scaffold is offered.
func (p *Plugin) ProjectFactory() (plugin.ProjectFactory, bool) { return nil, false }

type importSupport struct{}

var (
	inlineLinkPattern = regexp.MustCompile(`!?\[([^\]]+)\]\(([^)]+)\)`)
	refDefPattern     = regexp.MustCompile(`(?m)^[ \t]*\[([^\]]+)\]:[ \t]*(\S+)`)
	autolinkPattern   = regexp.MustCompile(`<([^>]+)>`)
)

// ParseImports implements plugin.ImportSupport, returning every file
// reference found in inline links, reference-style link definitions, and
// autolinks, grounded on MarkdownImportSupport's regex set.
func (importSupport) ParseImports(ctx context.Context, source []byte) ([]plugin.ImportRecord, error) {
	content := string(source)
	var out []plugin.ImportRecord

	for _, m := range inlineLinkPattern.FindAllStringSubmatch(content, -1) {
		path := pathWithoutAnchor(m[2])
		if isFileReference(path) {
			out = append(out, plugin.ImportRecord{Raw: path, IsRelative: isRelativePath(path)})
		}
	}
	for _, m := range refDefPattern.FindAllStringSubmatch(content, -1) {
		path := pathWithoutAnchor(m[2])
		if isFileReference(path) {
			out = append(out, plugin.ImportRecord{Raw: path, IsRelative: isRelativePath(path)})
		}
	}
	for _, m := range autolinkPattern.FindAllStringSubmatch(content, -1) {
		path := pathWithoutAnchor(m[1])
		if isFileReference(path) && looksLikePath(m[1]) {
			out = append(out, plugin.ImportRecord{Raw: path, IsRelative: isRelativePath(path)})
		}
	}
	return out, nil
}

func isFileReference(path string) bool {
	// An empty path is what a fragment-only link ("#section") leaves once
	// its anchor is stripped.
	return path != "" &&
		!strings.HasPrefix(path, "http://") &&
		!strings.HasPrefix(path, "https://") &&
		!strings.HasPrefix(path, "mailto:") &&
		!strings.HasPrefix(path, "ftp://") &&
		!strings.HasPrefix(path, "#")
}

func looksLikePath(text string) bool {
	if !strings.Contains(text, "/") && !strings.Contains(text, `\`) {
		return false
	}
	if strings.ContainsAny(text, `"()`) {
		return false
	}
	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") || strings.HasPrefix(text, "mailto:") {
		return false
	}
	if strings.Contains(text, " ") && strings.Contains(text, "--") {
		return false
	}
	for _, prefix := range commandPrefixes {
		if strings.HasPrefix(text, prefix) {
			return false
		}
	}
	return true
}

var commandPrefixes = []string{
	"cargo ", "npm ", "yarn ", "pnpm ", "git ", "docker ", "kubectl ", "python ", "node ",
	"rustc ", "gcc ", "make ", "cmake ", "go ", "mvn ", "gradle ", "java ", "javac ",
	"dotnet ", "ruby ", "perl ",
}

func pathWithoutAnchor(path string) string {
	if idx := strings.Index(path, "#"); idx >= 0 {
		return path[:idx]
	}
	return path
}

func extractAnchor(path string) string {
	if idx := strings.Index(path, "#"); idx >= 0 {
		return path[idx:]
	}
	return ""
}

func isRelativePath(path string) bool {
	return strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || !strings.Contains(path, "://")
}

// RewriteImportsForRename implements plugin.ImportSupport. A "rename" in
// Markdown terms means the file at a path changed its basename only, so
// this rewrites every link whose path's basename equals oldName, and also
// updates prose occurrences of oldName as a bare identifier.
func (importSupport) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	text, changed := rewriteLinksByBasename(string(content), oldName, newName)
	prose, proseChanges := updateProseIdentifiers(text, oldName, newName)
	return []byte(prose), changed + proseChanges, nil
}

// RewriteImportsForMove implements plugin.ImportSupport, rewriting inline
// links and images that reference oldPath (exactly, or as a directory
// prefix) to newPath. Reference-style definitions and autolinks are left
// unchanged.
func (importSupport) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	oldSlash, newSlash := filepath.ToSlash(oldPath), filepath.ToSlash(newPath)
	text := string(content)
	changes := 0

	text = inlineLinkPattern.ReplaceAllStringFunc(text, func(full string) string {
		m := inlineLinkPattern.FindStringSubmatch(full)
		linkText, path := m[1], m[2]
		rewritten, did := rewritePathReference(path, oldSlash, newSlash)
		if !did {
			return full
		}
		changes++
		prefix := ""
		if strings.HasPrefix(full, "!") {
			prefix = "!"
		}
		return prefix + "[" + linkText + "](" + rewritten + extractAnchor(path) + ")"
	})

	return []byte(text), changes, nil
}

func rewritePathReference(path, oldPath, newPath string) (string, bool) {
	bare := pathWithoutAnchor(path)
	normalized := strings.TrimPrefix(bare, "./")
	if normalized == oldPath {
		return newPath, true
	}
	if strings.HasPrefix(normalized, oldPath+"/") {
		return newPath + strings.TrimPrefix(normalized, oldPath), true
	}
	return path, false
}

func rewriteLinksByBasename(content, oldName, newName string) (string, int) {
	changes := 0
	result := inlineLinkPattern.ReplaceAllStringFunc(content, func(full string) string {
		m := inlineLinkPattern.FindStringSubmatch(full)
		linkText, path := m[1], m[2]
		bare := pathWithoutAnchor(path)
		if filepath.Base(bare) != oldName {
			return full
		}
		newPath := bare[:len(bare)-len(oldName)] + newName
		changes++
		prefix := ""
		if strings.HasPrefix(full, "!") {
			prefix = "!"
		}
		return prefix + "[" + linkText + "](" + newPath + extractAnchor(path) + ")"
	})
	return result, changes
}

// updateProseIdentifiers rewrites bare-word occurrences of oldName as
// newName, grounded on MarkdownImportSupport::update_prose_identifiers'
// non-alphanumeric-boundary matching (Go's RE2 has no lookaround, so
// boundary characters are captured and re-emitted instead of asserted).
func updateProseIdentifiers(content, oldName, newName string) (string, int) {
	pattern := regexp.MustCompile(`(^|[^a-zA-Z0-9])` + regexp.QuoteMeta(oldName) + `($|[^a-zA-Z0-9])`)
	changes := 0
	result := content
	for {
		loc := pattern.FindStringSubmatchIndex(result)
		if loc == nil {
			break
		}
		before := result[loc[2]:loc[3]]
		after := result[loc[4]:loc[5]]
		replacement := before + newName + after
		result = result[:loc[0]] + replacement + result[loc[1]:]
		changes++
	}
	return result, changes
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

// AddImport implements plugin.ImportSupport, appending a reference-style
// link definition at the end of the document.
func (importSupport) AddImport(content []byte, target string) ([]byte, bool, error) {
	text := strings.TrimRight(string(content), "\n")
	label := filepath.Base(target)
	line := "[" + label + "]: " + target
	if text == "" {
		return []byte(line + "\n"), true, nil
	}
	return []byte(text + "\n\n" + line + "\n"), true, nil
}

// RemoveImport implements plugin.ImportSupport, dropping any reference-style
// link definition whose path matches target.
func (importSupport) RemoveImport(content []byte, target string) ([]byte, bool, error) {
	lines := strings.Split(string(content), "\n")
	out := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if m := refDefPattern.FindStringSubmatch(line); m != nil && pathWithoutAnchor(m[2]) == target {
			removed++
			continue
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n")), removed > 0, nil
}

var _ plugin.ImportSupport = importSupport{}
