package planner

import (
	"context"
	"testing"

	"github.com/pleme-io/typemill-sub012/internal/plan"
)

func TestExtractPlannerBuildsInsertAndReplaceEdits(t *testing.T) {
	ws := newTestWorkspace(t, "/repo", map[string]string{
		"/repo/src/widget.ts": "function run() {\n  const x = 1 + 2;\n  return x;\n}\n",
	})
	ep := &ExtractPlanner{Workspace: ws}
	req := ExtractRequest{
		FilePath:    "/repo/src/widget.ts",
		Kind:        plan.ExtractFunction,
		Location:    plan.Location{StartLine: 1, StartCol: 12, EndLine: 1, EndCol: 17},
		NewName:     "addOneTwo",
		Declaration: "function addOneTwo() { return 1 + 2; }\n",
		InsertAt:    plan.Location{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 0},
		CallSite:    "addOneTwo()",
	}
	p, err := ep.Plan(context.Background(), req)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if p.PlanType != plan.TypeExtract {
		t.Fatalf("expected an extractPlan, got %q", p.PlanType)
	}
	if len(p.Edits) != 2 {
		t.Fatalf("expected an insert edit and a replace edit, got %+v", p.Edits)
	}
	if p.Edits[0].EditType != plan.EditInsert || p.Edits[0].NewText != req.Declaration {
		t.Fatalf("expected the declaration inserted first, got %+v", p.Edits[0])
	}
	if p.Edits[1].EditType != plan.EditReplace || p.Edits[1].NewText != req.CallSite {
		t.Fatalf("expected the span replaced with the call site, got %+v", p.Edits[1])
	}
	if p.Edits[1].OriginalText != "1 + 2" {
		t.Fatalf("expected spanText to capture the original span, got %q", p.Edits[1].OriginalText)
	}
	if p.NewSymbolName != "addOneTwo" {
		t.Fatalf("expected NewSymbolName set, got %q", p.NewSymbolName)
	}
}

func TestExtractPlannerRequiresNewName(t *testing.T) {
	ws := newTestWorkspace(t, "/repo", map[string]string{
		"/repo/src/widget.ts": "function run() {}\n",
	})
	ep := &ExtractPlanner{Workspace: ws}
	_, err := ep.Plan(context.Background(), ExtractRequest{FilePath: "/repo/src/widget.ts"})
	if err == nil {
		t.Fatalf("expected an error when NewName is empty")
	}
}

func TestExtractPlannerNotFound(t *testing.T) {
	ws := newTestWorkspace(t, "/repo", map[string]string{})
	ep := &ExtractPlanner{Workspace: ws}
	_, err := ep.Plan(context.Background(), ExtractRequest{FilePath: "/repo/missing.ts", NewName: "fn"})
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestSpanTextAcrossMultipleLines(t *testing.T) {
	content := []byte("line one\nline two\nline three\n")
	loc := plan.Location{StartLine: 0, StartCol: 5, EndLine: 2, EndCol: 4}
	got := spanText(content, loc)
	want := "one\nline two\nline"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSpanTextClampsOutOfRangeLine(t *testing.T) {
	content := []byte("only line\n")
	loc := plan.Location{StartLine: 5, StartCol: 0, EndLine: 5, EndCol: 3}
	if got := spanText(content, loc); got != "" {
		t.Fatalf("expected an empty span for an out-of-range start line, got %q", got)
	}
}
