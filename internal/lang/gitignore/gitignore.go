// Package gitignore implements the .gitignore language plugin: it rewrites
// directory/file path patterns when the path they reference moves, while
// leaving comments, blank lines, and generic glob patterns untouched.
// Grounded on languages/mill-lang-gitignore/src/lib.rs. Matching paths
// against patterns is done with monochromegane/go-gitignore by
// planner.Workspace's file walk (not this package), which
// needs .gitignore content unmodified by anything but this rewrite.
package gitignore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Plugin is the .gitignore language plugin. It has no file extension of
// its own; it is matched purely by manifest filename.
type Plugin struct{}

// New returns a new .gitignore plugin.
func New() *Plugin { return &Plugin{} }

var _ plugin.Plugin = (*Plugin)(nil)

// Metadata implements plugin.Plugin.
func (p *Plugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:             "gitignore",
		Extensions:       nil,
		ManifestFilename: ".gitignore",
		SourceDir:        ".",
		EntryPoint:       ".gitignore",
		ModuleSeparator:  "/",
	}
}

// Capabilities implements plugin.Plugin.
func (p *Plugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{Imports: true, Workspace: false, ProjectFactory: false}
}

// Parse implements plugin.Plugin; .gitignore has no symbols of its own.
func (p *Plugin) Parse(ctx context.Context, source []byte, uri string) (*plugin.ParseResult, error) {
	return &plugin.ParseResult{AST: map[string]any{}, Symbols: nil, Degraded: false}, nil
}

// ListFunctions implements plugin.Plugin.
func (p *Plugin) ListFunctions(ctx context.Context, source []byte) ([]string, error) {
	return nil, nil
}

// AnalyzeManifest implements plugin.Plugin. .gitignore is not a package
// manifest, so this returns minimal placeholder data, grounded on
// GitignoreLanguagePlugin::analyze_manifest.
func (p *Plugin) AnalyzeManifest(ctx context.Context, path string) (*plugin.ManifestData, error) {
	if filepath.Base(path) != ".gitignore" {
		return nil, &os.PathError{Op: "analyze manifest", Path: path, Err: os.ErrInvalid}
	}
	return &plugin.ManifestData{
		Name:            ".gitignore",
		Version:         "0.0.0",
		Dependencies:    map[string]string{},
		DevDependencies: map[string]string{},
	}, nil
}

// ImportSupport implements plugin.Plugin.
func (p *Plugin) ImportSupport() (plugin.ImportSupport, bool) { return importSupport{}, true }

// WorkspaceSupport implements plugin.Plugin; not applicable.
func (p *Plugin) WorkspaceSupport() (plugin.WorkspaceSupport, bool) { return nil, false }

// ProjectFactory implements plugin.Plugin; not applicable.
func (p *Plugin) ProjectFactory() (plugin.ProjectFactory, bool) { return nil, false }

type importSupport struct{}

// ParseImports implements plugin.ImportSupport, returning every non-comment,
// non-blank, path-shaped pattern line (patterns without a slash, like
// "*.log", carry nothing to rewrite on a path move and are skipped).
func (importSupport) ParseImports(ctx context.Context, source []byte) ([]plugin.ImportRecord, error) {
	var out []plugin.ImportRecord
	for _, line := range strings.Split(string(source), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		pattern := strings.TrimPrefix(trimmed, "!")
		if !strings.Contains(strings.TrimSuffix(pattern, "/"), "/") {
			continue
		}
		out = append(out, plugin.ImportRecord{Raw: pattern, IsRelative: true})
	}
	return out, nil
}

// RewriteImportsForRename implements plugin.ImportSupport via the move
// path: a basename rename is a move of the last path segment.
func (s importSupport) RewriteImportsForRename(content []byte, oldName, newName string) ([]byte, int, error) {
	return s.rewritePatterns(content, oldName, newName, true)
}

// RewriteImportsForMove implements plugin.ImportSupport, grounded on
// GitignoreImportSupport::rewrite_gitignore_patterns: a pattern is rewritten
// when it equals oldPath or names a descendant of oldPath, preserving
// comments, blank lines, and the "!" negation and trailing "/" markers.
func (s importSupport) RewriteImportsForMove(content []byte, oldPath, newPath string) ([]byte, int, error) {
	return s.rewritePatterns(content, filepath.ToSlash(oldPath), filepath.ToSlash(newPath), false)
}

func (importSupport) rewritePatterns(content []byte, oldTarget, newTarget string, byBasename bool) ([]byte, int, error) {
	oldTarget = strings.TrimSuffix(strings.TrimPrefix(oldTarget, "./"), "/")
	newTarget = strings.TrimSuffix(newTarget, "/")

	lines := strings.Split(string(content), "\n")
	changes := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		negated := strings.HasPrefix(trimmed, "!")
		pattern := strings.TrimPrefix(trimmed, "!")
		hasTrailingSlash := strings.HasSuffix(pattern, "/")
		bare := strings.TrimSuffix(pattern, "/")

		matchKey := bare
		if byBasename {
			matchKey = filepath.Base(bare)
		}

		var rewritten string
		var matched bool
		switch {
		case matchKey == oldTarget:
			if byBasename {
				rewritten = bare[:len(bare)-len(oldTarget)] + newTarget
			} else {
				rewritten = newTarget
			}
			matched = true
		case !byBasename && strings.HasPrefix(bare, oldTarget+"/"):
			rewritten = newTarget + strings.TrimPrefix(bare, oldTarget)
			matched = true
		}
		if !matched {
			continue
		}

		newLine := rewritten
		if hasTrailingSlash {
			newLine += "/"
		}
		if negated {
			newLine = "!" + newLine
		}
		lines[i] = newLine
		changes++
	}
	return []byte(strings.Join(lines, "\n")), changes, nil
}

// ContainsImport implements plugin.ImportSupport.
func (s importSupport) ContainsImport(content []byte, target string) bool {
	// Scans every pattern line rather than ParseImports' result, which
	// leaves out slashless patterns such as "build/" or "*.log".
	target = strings.TrimSuffix(target, "/")
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.TrimSuffix(strings.TrimPrefix(trimmed, "!"), "/") == target {
			return true
		}
	}
	return false
}

// AddImport implements plugin.ImportSupport, appending target as a new
// ignore pattern.
func (importSupport) AddImport(content []byte, target string) ([]byte, bool, error) {
	text := strings.TrimRight(string(content), "\n")
	if text == "" {
		return []byte(target + "\n"), true, nil
	}
	return []byte(text + "\n" + target + "\n"), true, nil
}

// RemoveImport implements plugin.ImportSupport.
func (importSupport) RemoveImport(content []byte, target string) ([]byte, bool, error) {
	target = strings.TrimSuffix(target, "/")
	lines := strings.Split(string(content), "\n")
	out := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		trimmed := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(line), "!"), "/")
		if trimmed == target {
			removed++
			continue
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\n")), removed > 0, nil
}

var _ plugin.ImportSupport = importSupport{}
