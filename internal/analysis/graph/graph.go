// Package graph builds the transient, request-scoped module dependency
// graph described in §3/§4.E. No pack library covers directed-graph SCC
// detection, so the graph itself is an ordinary adjacency-list structure
// built with ordinary Go idioms; see internal/analysis/cycles for the
// Tarjan SCC pass over it.
package graph

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// DependencyKind classifies an edge.
type DependencyKind string

// Known dependency kinds. ReExport edges collapse to Import per §3's
// invariant that cross-language edges and re-export distinctions don't
// survive into the graph's edge set.
const (
	DependencyImport   DependencyKind = "Import"
	DependencyExport   DependencyKind = "Export"
	DependencyReExport DependencyKind = "ReExport"
)

// ModuleNode is one file-level vertex in the graph.
type ModuleNode struct {
	Path     string
	Language string
	Exports  []string
}

// Dependency is one edge's payload.
type Dependency struct {
	Kind    DependencyKind
	Symbols []string
}

// Edge is a directed dependency from From to To.
type Edge struct {
	From, To string
	Dependency
}

// Graph is the transient, in-memory dependency graph. Nodes are uniquely
// identified by absolute path: inserting a node for a path that already
// exists returns the existing node (§3's "one node per path" invariant).
type Graph struct {
	nodes map[string]*ModuleNode
	edges map[string][]Edge // keyed by From
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*ModuleNode), edges: make(map[string][]Edge)}
}

// AddNode inserts path if absent and returns its node either way.
func (g *Graph) AddNode(path, language string, exports []string) *ModuleNode {
	if n, ok := g.nodes[path]; ok {
		return n
	}
	n := &ModuleNode{Path: path, Language: language, Exports: exports}
	g.nodes[path] = n
	return n
}

// Node returns the node at path, if any.
func (g *Graph) Node(path string) (*ModuleNode, bool) {
	n, ok := g.nodes[path]
	return n, ok
}

// Nodes returns every node, in no particular order.
func (g *Graph) Nodes() []*ModuleNode {
	out := make([]*ModuleNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// AddEdge records a dependency from -> to. Both endpoints must already
// exist and share a language (§3's cross-language-edge invariant); callers
// violating this get a silently-dropped edge rather than a panic, since
// the builder below only ever calls AddEdge after resolving both sides.
func (g *Graph) AddEdge(from, to string, kind DependencyKind, symbols []string) {
	fn, fok := g.nodes[from]
	tn, tok := g.nodes[to]
	if !fok || !tok || fn.Language != tn.Language {
		return
	}
	if kind == DependencyReExport {
		kind = DependencyImport
	}
	g.edges[from] = append(g.edges[from], Edge{From: from, To: to, Dependency: Dependency{Kind: kind, Symbols: symbols}})
}

// EdgesFrom returns the outgoing edges of path.
func (g *Graph) EdgesFrom(path string) []Edge {
	return g.edges[path]
}

// AllEdges returns every edge in the graph.
func (g *Graph) AllEdges() []Edge {
	var out []Edge
	for _, es := range g.edges {
		out = append(out, es...)
	}
	return out
}

// Reachable returns the set of paths transitively reachable from start via
// outgoing edges, excluding start itself, per §8 invariant 4.
func (g *Graph) Reachable(start string) map[string]struct{} {
	visited := make(map[string]struct{})
	var stack []string
	stack = append(stack, start)
	seen := map[string]struct{}{start: {}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.edges[cur] {
			if _, ok := seen[e.To]; ok {
				continue
			}
			seen[e.To] = struct{}{}
			visited[e.To] = struct{}{}
			stack = append(stack, e.To)
		}
	}
	return visited
}

// ignoredDirs is the default directory ignore list from §4.E.
var ignoredDirs = map[string]struct{}{
	".git": {}, "target": {}, "node_modules": {}, "dist": {}, "build": {},
	".venv": {}, "__pycache__": {}, ".idea": {}, ".vscode": {},
}

// Builder walks a workspace and builds its dependency graph, dispatching
// each file to its plugin's ParseImports and resolving each import string
// to an absolute path using language-specific rules.
type Builder struct {
	Registry *plugin.Registry
	Resolver PathResolver
}

// PathResolver resolves an import string, seen from sourcePath, to an
// absolute file path, or ("", false) if it can't be resolved (e.g. an
// external package dependency with no corresponding workspace file).
type PathResolver interface {
	Resolve(sourcePath, importPath string) (string, bool)
}

// Build walks root (skipping ignoredDirs), parses every recognized file's
// imports via its plugin, and returns the resulting Graph.
func (b *Builder) Build(ctx context.Context, root string) (*Graph, error) {
	g := New()

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if d.IsDir() {
			if _, skip := ignoredDirs[base]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		p, ok := b.Registry.PluginForPath(path)
		if !ok {
			return nil
		}
		files = append(files, path)
		g.AddNode(path, p.Metadata().Name, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, path := range files {
		p, ok := b.Registry.PluginForPath(path)
		if !ok {
			continue
		}
		support, ok := p.ImportSupport()
		if !ok {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		imports, err := support.ParseImports(ctx, content)
		if err != nil {
			continue
		}
		for _, imp := range imports {
			target, ok := b.Resolver.Resolve(path, imp.Raw)
			if !ok {
				continue
			}
			if _, exists := g.Node(target); !exists {
				continue
			}
			g.AddEdge(path, target, DependencyImport, []string{imp.Raw})
		}
	}

	return g, nil
}

// SimpleResolver resolves relative import strings against the importing
// file's directory by probing a fixed list of source extensions and
// index/manifest-style filenames, falling back to "not found" for
// anything that looks like a package-identifier import (no leading `.`).
// It covers the common case well enough for module-dependency analysis
// without needing a full per-language resolution pass (that precision
// lives in each plugin's ImportSupport, used instead by the planners).
type SimpleResolver struct {
	Extensions []string
}

// NewSimpleResolver returns a SimpleResolver with the engine's supported
// source extensions.
func NewSimpleResolver() *SimpleResolver {
	return &SimpleResolver{Extensions: []string{
		".go", ".rs", ".ts", ".tsx", ".js", ".jsx", ".py", ".java", ".cs", ".swift", ".md",
	}}
}

// Resolve implements PathResolver.
func (r *SimpleResolver) Resolve(sourcePath, importPath string) (string, bool) {
	if len(importPath) == 0 || importPath[0] != '.' {
		return "", false
	}
	base := filepath.Join(filepath.Dir(sourcePath), importPath)
	if fi, err := os.Stat(base); err == nil && !fi.IsDir() {
		return base, true
	}
	for _, ext := range r.Extensions {
		if candidate := base + ext; fileExists(candidate) {
			return candidate, true
		}
	}
	for _, ext := range r.Extensions {
		if candidate := filepath.Join(base, "index"+ext); fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
