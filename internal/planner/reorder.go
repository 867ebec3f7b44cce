package planner

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plan"
)

// ReorderItem is one named, contiguous block within a file that can be
// relocated (a top-level declaration, an import group, a struct field).
type ReorderItem struct {
	Name     string
	Location plan.Location
}

// ReorderRequest describes rearranging a file's top-level items into a new
// order. Ordering names Items by Name; any item whose name is absent from
// Ordering keeps its relative position among the unlisted items, appended
// after the named ones (a stable partial order, matching how the teacher's
// dependency-graph sort handles ties).
type ReorderRequest struct {
	FilePath string
	Items    []ReorderItem
	Ordering []string
}

// ReorderPlanner builds reorderPlan documents (§3, §4.G): splicing a file's
// top-level items into Ordering's sequence without altering any item's
// internal text.
type ReorderPlanner struct {
	Workspace *Workspace
}

// Plan produces a reorderPlan rearranging req.Items per req.Ordering.
func (rop *ReorderPlanner) Plan(ctx context.Context, req ReorderRequest) (*plan.Plan, error) {
	ws := rop.Workspace
	if len(req.Items) == 0 {
		return nil, errs.New(errs.KindInvalidParams, "reorder requires at least one item")
	}
	content, err := afero.ReadFile(ws.Fs, req.FilePath)
	if err != nil {
		return nil, newPlanNotFound(req.FilePath)
	}

	order := resolveOrder(req.Items, req.Ordering)

	rebuilt, err := spliceReordered(content, req.Items, order)
	if err != nil {
		return nil, err
	}

	touched := []string{req.FilePath}
	checksums, err := Checksums(ws.Fs, touched)
	if err != nil {
		return nil, err
	}

	edits := []plan.TextEdit{wholeFileReplace(req.FilePath, rebuilt, "rearrange top-level items")}

	return &plan.Plan{
		PlanType:      plan.TypeReorder,
		Summary:       fmt.Sprintf("Reorder %d item(s) in %s", len(req.Items), req.FilePath),
		FileChecksums: checksums,
		Edits:         edits,
		Metadata:      newMetadata(plan.TypeReorder, "reorder.plan", map[string]any{"file": req.FilePath, "ordering": order}, complexityFor(len(touched))),
		Ordering:      order,
	}, nil
}

// resolveOrder places every name in req.Ordering first (skipping unknown
// or duplicate names), then appends any items req.Ordering left out in
// their original relative order.
func resolveOrder(items []ReorderItem, ordering []string) []string {
	byName := make(map[string]bool, len(items))
	for _, it := range items {
		byName[it.Name] = true
	}

	order := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, name := range ordering {
		if byName[name] && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}
	for _, it := range items {
		if !seen[it.Name] {
			order = append(order, it.Name)
			seen[it.Name] = true
		}
	}
	return order
}

type reorderSpan struct {
	name       string
	start, end int
	text       string
}

// spliceReordered cuts every item's text out of content by Location,
// discards whatever separated them (blank lines, comments between
// declarations are assumed captured within a Location by the caller), and
// re-concatenates the pieces in order, newline-joined, between the text
// that came before the first item and after the last.
func spliceReordered(content []byte, items []ReorderItem, order []string) ([]byte, error) {
	lines := splitLinesKeep(content)

	spans := make([]reorderSpan, 0, len(items))
	for _, it := range items {
		start := lineOffset(lines, it.Location.StartLine) + it.Location.StartCol
		end := lineOffset(lines, it.Location.EndLine) + it.Location.EndCol
		if end > len(content) {
			end = len(content)
		}
		if start < 0 || start > end {
			return nil, errs.New(errs.KindInvalidParams, fmt.Sprintf("invalid reorder span for %s", it.Name))
		}
		spans = append(spans, reorderSpan{name: it.Name, start: start, end: end, text: string(content[start:end])})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	textByName := make(map[string]string, len(spans))
	minStart, maxEnd := spans[0].start, spans[0].end
	for _, sp := range spans {
		textByName[sp.name] = sp.text
		if sp.start < minStart {
			minStart = sp.start
		}
		if sp.end > maxEnd {
			maxEnd = sp.end
		}
	}

	var out bytes.Buffer
	out.Write(content[:minStart])
	for i, name := range order {
		text, ok := textByName[name]
		if !ok {
			continue
		}
		out.WriteString(text)
		if i != len(order)-1 {
			out.WriteByte('\n')
		}
	}
	out.Write(content[maxEnd:])
	return out.Bytes(), nil
}

func lineOffset(lines []string, line int) int {
	if line < 0 {
		return 0
	}
	offset := 0
	for i := 0; i < line && i < len(lines); i++ {
		offset += len(lines[i]) + 1
	}
	return offset
}
