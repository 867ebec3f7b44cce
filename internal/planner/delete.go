package planner

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plan"
)

// DeletePlanner builds deletePlan documents (§3, §4.G): a set of paths to
// remove, plus one DANGLING_IMPORT warning for each deleted file that other
// files still import, giving the number of importers. Importers of files
// inside a deleted directory are not scanned. Deletion never rewrites the
// importing files — there is no replacement target — it only surfaces the
// fact that they'll be left referencing a path that no longer exists.
type DeletePlanner struct {
	Workspace *Workspace
}

// Plan deletes every path in targets (files or directories).
func (dp *DeletePlanner) Plan(ctx context.Context, targets []plan.Target) (*plan.Plan, error) {
	ws := dp.Workspace
	if len(targets) == 0 {
		return nil, errs.New(errs.KindInvalidParams, "delete plan requires at least one target")
	}

	var deletions []plan.Deletion
	var touched []string
	var warnings []plan.Warning

	for _, t := range targets {
		switch t.Kind {
		case plan.TargetFile:
			exists, err := afero.Exists(ws.Fs, t.Path)
			if err != nil || !exists {
				return nil, newPlanNotFound(t.Path)
			}
			deletions = append(deletions, plan.Deletion{Path: t.Path, Kind: plan.TargetFile})
			touched = append(touched, t.Path)

			referencing, err := ScanReferencingFiles(ctx, ws, t.Path)
			if err != nil {
				return nil, err
			}
			if len(referencing) > 0 {
				warnings = append(warnings, plan.Warning{
					Code:    "DANGLING_IMPORT",
					Message: fmt.Sprintf("%d file(s) still import %s; those references are left unmodified", len(referencing), t.Path),
				})
			}
		case plan.TargetDirectory:
			exists, err := afero.DirExists(ws.Fs, t.Path)
			if err != nil || !exists {
				return nil, newPlanNotFound(t.Path)
			}
			members, err := listFilesUnder(ws, t.Path)
			if err != nil {
				return nil, err
			}
			deletions = append(deletions, plan.Deletion{Path: t.Path, Kind: plan.TargetDirectory})
			touched = append(touched, members...)
		default:
			return nil, errs.New(errs.KindInvalidParams, "unsupported delete target kind: "+string(t.Kind))
		}
	}

	checksums, err := Checksums(ws.Fs, touched)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		PlanType:      plan.TypeDelete,
		Summary:       fmt.Sprintf("Delete %d path(s)", len(deletions)),
		FileChecksums: checksums,
		Warnings:      warnings,
		Metadata:      newMetadata(plan.TypeDelete, "delete.plan", map[string]any{"targets": targetPaths(targets)}, complexityFor(len(touched))),
		Deletions:     deletions,
	}, nil
}

func targetPaths(targets []plan.Target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Path
	}
	return out
}
