package plan

import (
	"encoding/json"
	"reflect"
	"testing"
)

func samplePlan() *Plan {
	return &Plan{
		PlanType:      TypeRename,
		Summary:       "rename foo to bar",
		FileChecksums: map[string]string{"a.go": Sha256Hex([]byte("package a\n"))},
		Edits: []TextEdit{
			{FilePath: "a.go", EditType: EditReplace, Location: Location{StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 3}, OriginalText: "foo", NewText: "bar", Priority: 10, Description: "rename symbol"},
		},
		Warnings: []Warning{{Code: WarningCrossLanguageImportSkipped, Message: "skipped"}},
		Metadata: Metadata{
			PlanVersion: PlanVersion,
			Kind:        TypeRename,
			IntentName:  "rename.plan",
			CreatedAt:   "2026-07-31T00:00:00Z",
			Complexity:  2,
		},
		OldTarget: &Target{Kind: TargetSymbol, Path: "a.go", SymbolName: "foo"},
		NewName:   "bar",
	}
}

// TestPlanRoundTrip is §8's round-trip law: deserialize(serialize(plan)) == plan.
func TestPlanRoundTrip(t *testing.T) {
	p := samplePlan()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Plan
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(p, &out) {
		t.Fatalf("round trip mismatch:\n got: %+v\nwant: %+v", out, p)
	}
}

func TestSortedEditsPriorityThenReversePosition(t *testing.T) {
	edits := []TextEdit{
		{FilePath: "a.go", Priority: 1, Location: Location{StartLine: 1}},
		{FilePath: "a.go", Priority: 5, Location: Location{StartLine: 2}},
		{FilePath: "a.go", Priority: 5, Location: Location{StartLine: 10}},
	}
	sorted := SortedEdits(edits)
	if sorted[0].Priority != 5 || sorted[0].Location.StartLine != 10 {
		t.Fatalf("expected highest-priority, latest-position edit first, got %+v", sorted[0])
	}
	if sorted[1].Priority != 5 || sorted[1].Location.StartLine != 2 {
		t.Fatalf("expected second-highest-priority edit second, got %+v", sorted[1])
	}
	if sorted[2].Priority != 1 {
		t.Fatalf("expected lowest priority last, got %+v", sorted[2])
	}
}

func TestEditsByFileGroupsAndPreservesOrder(t *testing.T) {
	edits := []TextEdit{
		{FilePath: "a.go", Location: Location{StartLine: 1}},
		{FilePath: "b.go", Location: Location{StartLine: 1}},
		{FilePath: "a.go", Location: Location{StartLine: 2}},
	}
	grouped := EditsByFile(edits)
	if len(grouped["a.go"]) != 2 || len(grouped["b.go"]) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}
	if grouped["a.go"][0].Location.StartLine != 1 || grouped["a.go"][1].Location.StartLine != 2 {
		t.Fatalf("expected relative order preserved, got %+v", grouped["a.go"])
	}
}

func TestSha256HexDeterministic(t *testing.T) {
	a := Sha256Hex([]byte("hello"))
	b := Sha256Hex([]byte("hello"))
	if a != b {
		t.Fatalf("expected deterministic hash, got %s vs %s", a, b)
	}
	if a == Sha256Hex([]byte("world")) {
		t.Fatalf("expected different content to hash differently")
	}
}
