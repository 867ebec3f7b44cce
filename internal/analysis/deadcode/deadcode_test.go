package deadcode

import (
	"testing"

	"github.com/pleme-io/typemill-sub012/internal/model"
)

func sym(name string, vis model.Visibility, startLine, endLine int) model.Symbol {
	return model.NewSymbol("file:///a.rs", name, model.KindFunction, model.Range{
		Start: model.Position{Line: startLine},
		End:   model.Position{Line: endLine},
	}, vis)
}

func TestBFSReachableTransitivelyMarksRootDescendants(t *testing.T) {
	a := sym("a", model.VisibilityPublic, 0, 1)
	b := sym("b", model.VisibilityPrivate, 2, 3)
	c := sym("c", model.VisibilityPrivate, 4, 5)

	roots := map[string]struct{}{a.ID: {}}
	refs := []reference{{fromID: a.ID, toID: b.ID}, {fromID: b.ID, toID: c.ID}}

	reachable := bfsReachable(roots, refs)
	for _, want := range []string{a.ID, b.ID, c.ID} {
		if _, ok := reachable[want]; !ok {
			t.Fatalf("expected %s reachable via transitive closure", want)
		}
	}
}

func TestClassifyNoReferencesIsHighestConfidence(t *testing.T) {
	s := sym("orphan", model.VisibilityPrivate, 0, 1)
	reason, fallback, confidence := classify(s, nil, map[string]struct{}{})
	if reason != ReasonNoReferences {
		t.Fatalf("expected ReasonNoReferences, got %s", reason)
	}
	if fallback {
		t.Fatalf("expected fallback=false when there are no referrers at all")
	}
	if confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", confidence)
	}
}

func TestClassifyOnlyDeadReferencesIsMediumConfidence(t *testing.T) {
	target := sym("target", model.VisibilityPrivate, 0, 1)
	deadCaller := sym("caller", model.VisibilityPrivate, 2, 3)
	refs := []reference{{fromID: deadCaller.ID, toID: target.ID}}

	reason, _, confidence := classify(target, refs, map[string]struct{}{})
	if reason != ReasonOnlyDeadReferences {
		t.Fatalf("expected ReasonOnlyDeadReferences, got %s", reason)
	}
	if confidence != 0.7 {
		t.Fatalf("expected confidence 0.7, got %v", confidence)
	}
}

func TestClassifyUnreachableFromEntryIsLowestConfidence(t *testing.T) {
	target := sym("target", model.VisibilityPrivate, 0, 1)
	liveCaller := sym("caller", model.VisibilityPrivate, 2, 3)
	refs := []reference{{fromID: liveCaller.ID, toID: target.ID}}

	reason, _, confidence := classify(target, refs, map[string]struct{}{liveCaller.ID: {}})
	if reason != ReasonUnreachableFromEntry {
		t.Fatalf("expected ReasonUnreachableFromEntry, got %s", reason)
	}
	if confidence != 0.5 {
		t.Fatalf("expected confidence 0.5, got %v", confidence)
	}
}

// TestAttributePrefersSmallestEnclosingRange covers §4.E's
// smallest-enclosing-range rule: a reference inside a nested function
// must attribute to the inner function, not the outer one.
func TestAttributePrefersSmallestEnclosingRange(t *testing.T) {
	outer := sym("outer", model.VisibilityPrivate, 0, 10)
	inner := sym("inner", model.VisibilityPrivate, 3, 5)

	id, fallback := attribute([]model.Symbol{outer, inner}, 4)
	if id != inner.ID {
		t.Fatalf("expected attribution to the smaller enclosing symbol %q, got %q", inner.Name, id)
	}
	if fallback {
		t.Fatalf("expected no fallback when a symbol truly encloses the line")
	}
}

func TestAttributeFallsBackToClosestPrecedingSymbol(t *testing.T) {
	first := sym("first", model.VisibilityPrivate, 0, 1)
	second := sym("second", model.VisibilityPrivate, 5, 6)

	id, fallback := attribute([]model.Symbol{first, second}, 8)
	if id != second.ID {
		t.Fatalf("expected fallback attribution to the closest preceding symbol, got %q", id)
	}
	if !fallback {
		t.Fatalf("expected fallback=true when no symbol truly encloses the line")
	}
}

func TestRootSetIncludesMainTestsAndPublicExports(t *testing.T) {
	a := &Analyzer{}
	mainSym := sym("main", model.VisibilityPrivate, 0, 1)
	testSym := sym("TestFoo", model.VisibilityPrivate, 2, 3)
	pubSym := sym("Exported", model.VisibilityPublic, 4, 5)
	privSym := sym("helper", model.VisibilityPrivate, 6, 7)

	roots := a.rootSet([]model.Symbol{mainSym, testSym, pubSym, privSym}, nil, RootSetConfig{
		IncludeMain:       true,
		IncludeTests:      true,
		IncludePubExports: true,
	})

	for _, want := range []string{mainSym.ID, testSym.ID, pubSym.ID} {
		if _, ok := roots[want]; !ok {
			t.Fatalf("expected %s in the root set", want)
		}
	}
	if _, ok := roots[privSym.ID]; ok {
		t.Fatalf("expected a private, non-test, non-main symbol excluded from the root set")
	}
}

func TestRefactorCallForTargetsDeleteBySymbol(t *testing.T) {
	s := sym("dead", model.VisibilityPrivate, 0, 1)
	call := RefactorCallFor(s)
	if call.Command != "delete.plan" {
		t.Fatalf("expected a delete.plan follow-up, got %s", call.Command)
	}
}
