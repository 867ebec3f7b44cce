// Package cycles finds strongly-connected components of size >= minSize
// in a dependency graph.Graph using Tarjan's algorithm, and attaches a
// fixed catalog of refactor suggestions to each cycle found (§4.E).
package cycles

import (
	"fmt"
	"sort"

	"github.com/pleme-io/typemill-sub012/internal/analysis"
	"github.com/pleme-io/typemill-sub012/internal/analysis/graph"
)

// Cycle is one strongly-connected component reported as an ordered list
// of module paths plus the edges that close the loop.
type Cycle struct {
	Modules []string
	Links   []graph.Edge
}

// Detect finds every SCC of size >= minSize (default 2 when minSize <= 0)
// in g, deterministically ordered by (length, lexicographic first path),
// per the invariant in §8.5.
func Detect(g *graph.Graph, minSize int) []Cycle {
	if minSize <= 0 {
		minSize = 2
	}

	t := &tarjan{
		graph:   g,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, n := range g.Nodes() {
		if _, visited := t.index[n.Path]; !visited {
			t.strongConnect(n.Path)
		}
	}

	var cycles []Cycle
	for _, scc := range t.sccs {
		if len(scc) < minSize {
			continue
		}
		cycles = append(cycles, Cycle{
			Modules: orderCycle(g, scc),
			Links:   closingEdges(g, scc),
		})
	}

	sort.Slice(cycles, func(i, j int) bool {
		if len(cycles[i].Modules) != len(cycles[j].Modules) {
			return len(cycles[i].Modules) < len(cycles[j].Modules)
		}
		return cycles[i].Modules[0] < cycles[j].Modules[0]
	})
	return cycles
}

type tarjan struct {
	graph   *graph.Graph
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, e := range t.graph.EdgesFrom(v) {
		w := e.To
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}

// orderCycle returns scc's members ordered so that consecutive members
// (wrapping) are connected by a real edge, satisfying §8 invariant 5: for
// cycle [m1,...,mk], an edge m_i -> m_(i+1 mod k) exists in the graph.
func orderCycle(g *graph.Graph, scc []string) []string {
	if len(scc) <= 1 {
		out := append([]string(nil), scc...)
		sort.Strings(out)
		return out
	}
	members := make(map[string]struct{}, len(scc))
	for _, m := range scc {
		members[m] = struct{}{}
	}

	start := scc[0]
	for _, m := range scc {
		if m < start {
			start = m
		}
	}

	ordered := []string{start}
	visited := map[string]struct{}{start: {}}
	cur := start
	for len(ordered) < len(scc) {
		next := ""
		for _, e := range g.EdgesFrom(cur) {
			if _, inSCC := members[e.To]; !inSCC {
				continue
			}
			if _, seen := visited[e.To]; seen {
				continue
			}
			if next == "" || e.To < next {
				next = e.To
			}
		}
		if next == "" {
			// Disconnected remainder (shouldn't happen for a true SCC);
			// append whatever's left deterministically rather than loop.
			for _, m := range scc {
				if _, seen := visited[m]; !seen {
					next = m
					break
				}
			}
		}
		ordered = append(ordered, next)
		visited[next] = struct{}{}
		cur = next
	}
	return ordered
}

func closingEdges(g *graph.Graph, scc []string) []graph.Edge {
	members := make(map[string]struct{}, len(scc))
	for _, m := range scc {
		members[m] = struct{}{}
	}
	var links []graph.Edge
	for _, m := range scc {
		for _, e := range g.EdgesFrom(m) {
			if _, ok := members[e.To]; ok {
				links = append(links, e)
			}
		}
	}
	return links
}

// suggestionCatalog is the fixed catalog referenced by §4.E: entries are
// chosen by cycle length, each carrying a static confidence score.
var suggestionCatalog = []struct {
	minLen     int
	action     string
	desc       string
	confidence float64
}{
	{2, "extract_interface", "Extract a shared interface both modules depend on instead of each other", 0.75},
	{2, "inject_dependency", "Invert one edge via dependency injection to break the cycle", 0.6},
	{3, "extract_shared_module", "Pull the common behavior into a new module both sides import", 0.55},
	{4, "merge", "Merge the cycle's modules; the boundary between them may not be meaningful", 0.35},
}

// Suggestions returns the fixed-catalog suggestions applicable to a cycle
// of the given length.
func Suggestions(cycleLen int) []analysis.Suggestion {
	var out []analysis.Suggestion
	for _, s := range suggestionCatalog {
		if cycleLen < s.minLen {
			continue
		}
		out = append(out, analysis.Suggestion{
			Action:          s.action,
			Description:     s.desc,
			EstimatedImpact: fmt.Sprintf("breaks a %d-module cycle", cycleLen),
			Safety:          analysis.SafetyRequiresReview,
			Confidence:      s.confidence,
			Reversible:      true,
		})
	}
	return out
}
