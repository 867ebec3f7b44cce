package planner

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plan"
)

// ExtractRequest is the caller-supplied description of what to pull out
// of a file: the exact span to lift plus the new symbol's name. Planners
// trust the caller's span (typically chosen via an editor selection or an
// LSP range) rather than re-deriving it, since the core is not a
// compiler/type-checker (§1 Non-goals).
type ExtractRequest struct {
	FilePath string
	Kind     plan.ExtractKind
	Location plan.Location
	NewName  string
	// Declaration is the text inserted at InsertAt to declare the new
	// function/variable/constant/module; callers construct it (the core
	// performs no code generation beyond verbatim text movement).
	Declaration string
	// InsertAt is where Declaration is inserted (typically just before the
	// enclosing function for `function`/`variable`/`constant`, or the top
	// of file for `module`).
	InsertAt plan.Location
	// CallSite is the text that replaces the original span (a call to the
	// newly extracted symbol).
	CallSite string
}

// ExtractPlanner builds extractPlan documents (§3, §4.G).
type ExtractPlanner struct {
	Workspace *Workspace
}

// Plan produces an extractPlan lifting req.Location out into a new
// top-level declaration named req.NewName.
func (ep *ExtractPlanner) Plan(ctx context.Context, req ExtractRequest) (*plan.Plan, error) {
	ws := ep.Workspace
	content, err := afero.ReadFile(ws.Fs, req.FilePath)
	if err != nil {
		return nil, newPlanNotFound(req.FilePath)
	}
	if req.NewName == "" {
		return nil, errs.New(errs.KindInvalidParams, "extract requires a new symbol name")
	}

	edits := []plan.TextEdit{
		{
			FilePath:    req.FilePath,
			EditType:    plan.EditInsert,
			Location:    req.InsertAt,
			NewText:     req.Declaration,
			Priority:    20,
			Description: fmt.Sprintf("insert extracted %s %s", req.Kind, req.NewName),
		},
		{
			FilePath:     req.FilePath,
			EditType:     plan.EditReplace,
			Location:     req.Location,
			OriginalText: spanText(content, req.Location),
			NewText:      req.CallSite,
			Priority:     10,
			Description:  fmt.Sprintf("replace extracted span with call to %s", req.NewName),
		},
	}

	checksums, err := Checksums(ws.Fs, []string{req.FilePath})
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		PlanType:      plan.TypeExtract,
		Summary:       fmt.Sprintf("Extract %s %s in %s", req.Kind, req.NewName, req.FilePath),
		FileChecksums: checksums,
		Edits:         edits,
		Metadata:      newMetadata(plan.TypeExtract, "extract.plan", map[string]any{"file": req.FilePath, "newName": req.NewName, "kind": req.Kind}, 2),
		ExtractKind:   req.Kind,
		Range:         &plan.SourceRange{FilePath: req.FilePath, Location: req.Location},
		NewSymbolName: req.NewName,
	}, nil
}

// spanText extracts the substring loc covers from content, best-effort
// (used only to populate TextEdit.OriginalText for audit/preview display;
// apply never reads it back).
func spanText(content []byte, loc plan.Location) string {
	lines := splitLinesKeep(content)
	if loc.StartLine < 0 || loc.StartLine >= len(lines) {
		return ""
	}
	endLine := loc.EndLine
	if endLine >= len(lines) {
		endLine = len(lines) - 1
	}
	if loc.StartLine == endLine {
		line := lines[loc.StartLine]
		return clampSlice(line, loc.StartCol, loc.EndCol)
	}
	var out string
	out += clampSlice(lines[loc.StartLine], loc.StartCol, len(lines[loc.StartLine])) + "\n"
	for i := loc.StartLine + 1; i < endLine; i++ {
		out += lines[i] + "\n"
	}
	out += clampSlice(lines[endLine], 0, loc.EndCol)
	return out
}

func splitLinesKeep(content []byte) []string {
	var lines []string
	start := 0
	s := string(content)
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func clampSlice(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start > len(s) {
		start = len(s)
	}
	if end < start {
		end = start
	}
	return s[start:end]
}
