package planner

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/plan"
)

// MoveOptions configures MovePlanner.Plan.
type MoveOptions struct {
	// Consolidate, when non-nil and false, suppresses auto-detection of
	// CONSOLIDATION_MANUAL_STEP (§4.G's explicit-override rule); true leaves
	// the result to auto-detection.
	Consolidate *bool
}

// MovePlanner builds movePlan documents (§3, §4.G): moving a file or an
// entire directory to a new parent, rewriting every importer's
// path-relative import along the way.
type MovePlanner struct {
	Workspace *Workspace
}

// Plan moves source to destination, which may be a file or directory.
func (mp *MovePlanner) Plan(ctx context.Context, source, destination string, opts MoveOptions) (*plan.Plan, error) {
	ws := mp.Workspace
	isDir, err := afero.DirExists(ws.Fs, source)
	if err != nil {
		return nil, newPlanNotFound(source)
	}
	if isDir {
		return mp.planDirectoryMove(ctx, source, destination, opts)
	}
	exists, err := afero.Exists(ws.Fs, source)
	if err != nil || !exists {
		return nil, newPlanNotFound(source)
	}
	return mp.planFileMove(ctx, source, destination, opts)
}

func (mp *MovePlanner) planFileMove(ctx context.Context, source, destination string, opts MoveOptions) (*plan.Plan, error) {
	ws := mp.Workspace

	cross := crossLanguage(ws, source, destination)
	var importers []Importer
	if !cross {
		var err error
		importers, err = FindImporters(ctx, ws, source, destination)
		if err != nil {
			return nil, err
		}
	}

	touched := []string{source}
	edits := []plan.TextEdit{{
		FilePath:        source,
		EditType:        plan.EditMove,
		MoveDestination: destination,
		Priority:        100,
		Description:     fmt.Sprintf("move %s to %s", source, destination),
	}}
	for _, imp := range importers {
		touched = append(touched, imp.Path)
		edits = append(edits, wholeFileReplace(imp.Path, imp.NewContent, fmt.Sprintf("update import of %s", source)))
	}

	var warnings []plan.Warning
	if cross {
		warnings = append(warnings, plan.Warning{Code: plan.WarningCrossLanguageImportSkipped, Message: "move crosses a language boundary; import rewrite was skipped"})
	}
	if c := DetectConsolidation(ws, filepath.Dir(source), destination, opts.Consolidate); c != nil {
		warnings = append(warnings, plan.Warning{Code: plan.WarningConsolidationManualStep, Message: "destination appears to consolidate a workspace member into another; review manifest changes manually"})
	}

	checksums, err := Checksums(ws.Fs, touched)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		PlanType:      plan.TypeMove,
		Summary:       fmt.Sprintf("Move %s to %s", source, destination),
		FileChecksums: checksums,
		Edits:         edits,
		Warnings:      warnings,
		Metadata:      newMetadata(plan.TypeMove, "move.plan", map[string]any{"source": source, "destination": destination}, complexityFor(len(touched))),
		Source:        source,
		Destination:   destination,
	}, nil
}

func (mp *MovePlanner) planDirectoryMove(ctx context.Context, source, destination string, opts MoveOptions) (*plan.Plan, error) {
	ws := mp.Workspace
	members, err := listFilesUnder(ws, source)
	if err != nil {
		return nil, err
	}

	touched := append([]string(nil), members...)
	edits := make([]plan.TextEdit, 0, len(members))
	destFor := make(map[string]string, len(members))
	for _, m := range members {
		rel := mustRel(source, m)
		dest := filepath.Join(destination, rel)
		destFor[m] = dest
		edits = append(edits, plan.TextEdit{
			FilePath:        m,
			EditType:        plan.EditMove,
			MoveDestination: dest,
			Priority:        100,
			Description:     fmt.Sprintf("move %s to %s", m, dest),
		})
	}

	var warnings []plan.Warning
	for _, m := range members {
		importers, err := FindImporters(ctx, ws, m, destFor[m])
		if err != nil {
			return nil, err
		}
		for _, imp := range importers {
			if contains(touched, imp.Path) {
				continue
			}
			touched = append(touched, imp.Path)
			edits = append(edits, wholeFileReplace(imp.Path, imp.NewContent, fmt.Sprintf("update import of %s", m)))
		}
	}

	if c := DetectConsolidation(ws, source, destination, opts.Consolidate); c != nil {
		warnings = append(warnings, plan.Warning{Code: plan.WarningConsolidationManualStep, Message: "destination appears to consolidate a workspace member into another; review manifest changes manually"})
	}

	checksums, err := Checksums(ws.Fs, touched)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		PlanType:      plan.TypeMove,
		Summary:       fmt.Sprintf("Move directory %s to %s", source, destination),
		FileChecksums: checksums,
		Edits:         edits,
		Warnings:      warnings,
		Metadata:      newMetadata(plan.TypeMove, "move.plan", map[string]any{"source": source, "destination": destination}, complexityFor(len(touched))),
		Source:        source,
		Destination:   destination,
	}, nil
}
