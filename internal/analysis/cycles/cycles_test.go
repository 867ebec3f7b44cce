package cycles

import (
	"testing"

	"github.com/pleme-io/typemill-sub012/internal/analysis/graph"
)

// TestDetectTwoModuleCycle is seed scenario 4 from §8: two files each
// importing the other.
func TestDetectTwoModuleCycle(t *testing.T) {
	g := graph.New()
	g.AddNode("/ws/a.rs", "rust", nil)
	g.AddNode("/ws/b.rs", "rust", nil)
	g.AddEdge("/ws/a.rs", "/ws/b.rs", graph.DependencyImport, []string{"b"})
	g.AddEdge("/ws/b.rs", "/ws/a.rs", graph.DependencyImport, []string{"a"})

	found := Detect(g, 2)
	if len(found) != 1 {
		t.Fatalf("expected exactly one cycle, got %d: %+v", len(found), found)
	}
	if len(found[0].Modules) != 2 {
		t.Fatalf("expected a 2-module cycle, got %d modules", len(found[0].Modules))
	}
}

// TestDetectCycleEdgesExist is §8 invariant #5: every reported cycle
// [m1..mk] has an edge m_i -> m_(i+1 mod k) in the graph.
func TestDetectCycleEdgesExist(t *testing.T) {
	g := graph.New()
	g.AddNode("/ws/a.rs", "rust", nil)
	g.AddNode("/ws/b.rs", "rust", nil)
	g.AddNode("/ws/c.rs", "rust", nil)
	g.AddEdge("/ws/a.rs", "/ws/b.rs", graph.DependencyImport, nil)
	g.AddEdge("/ws/b.rs", "/ws/c.rs", graph.DependencyImport, nil)
	g.AddEdge("/ws/c.rs", "/ws/a.rs", graph.DependencyImport, nil)

	found := Detect(g, 2)
	if len(found) != 1 {
		t.Fatalf("expected exactly one cycle, got %d", len(found))
	}
	mods := found[0].Modules
	edgeExists := func(from, to string) bool {
		for _, e := range g.EdgesFrom(from) {
			if e.To == to {
				return true
			}
		}
		return false
	}
	for i := range mods {
		next := mods[(i+1)%len(mods)]
		if !edgeExists(mods[i], next) {
			t.Fatalf("expected edge %s -> %s to exist in the graph", mods[i], next)
		}
	}
}

func TestDetectRespectsMinSize(t *testing.T) {
	g := graph.New()
	g.AddNode("/ws/a.rs", "rust", nil)
	g.AddNode("/ws/b.rs", "rust", nil)
	g.AddEdge("/ws/a.rs", "/ws/b.rs", graph.DependencyImport, nil)

	if found := Detect(g, 2); len(found) != 0 {
		t.Fatalf("expected no cycles for an acyclic graph, got %d", len(found))
	}
}

func TestSuggestionsNonEmptyForEveryCycleLength(t *testing.T) {
	for _, n := range []int{2, 3, 5} {
		if s := Suggestions(n); len(s) == 0 {
			t.Fatalf("expected at least one suggestion for cycle length %d", n)
		}
	}
}
