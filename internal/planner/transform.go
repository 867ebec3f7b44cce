package planner

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plan"
)

// Known transformation kinds a TransformPlanner can be asked to perform.
// The core only moves text the caller already computed; it performs no
// parsing of the transformation itself (§1 Non-goals: no type checking or
// semantic rewriting beyond verbatim substitution).
const (
	TransformAsyncify        = "asyncify"
	TransformSyncify         = "syncify"
	TransformConvertLoop     = "convert_loop"
	TransformRewriteSignature = "rewrite_signature"
)

// TransformRequest describes a single-range text rewrite.
type TransformRequest struct {
	FilePath string
	Kind     string
	Location plan.Location
	NewText  string
	// DependencyUpdates lets a transform also adjust a manifest (e.g.
	// adding an async runtime dependency alongside an asyncify rewrite).
	DependencyUpdates []plan.DependencyUpdate
}

// TransformPlanner builds transformPlan documents (§3, §4.G): a
// caller-driven text replacement over a single named range, tagged with
// the kind of transformation it represents for audit/preview purposes.
type TransformPlanner struct {
	Workspace *Workspace
}

// Plan produces a transformPlan replacing req.Location with req.NewText.
func (tp *TransformPlanner) Plan(ctx context.Context, req TransformRequest) (*plan.Plan, error) {
	ws := tp.Workspace
	if req.Kind == "" {
		return nil, errs.New(errs.KindInvalidParams, "transform requires a kind")
	}
	content, err := afero.ReadFile(ws.Fs, req.FilePath)
	if err != nil {
		return nil, newPlanNotFound(req.FilePath)
	}

	touched := []string{req.FilePath}
	for _, du := range req.DependencyUpdates {
		if du.ManifestPath != "" && du.ManifestPath != req.FilePath {
			touched = append(touched, du.ManifestPath)
		}
	}

	edits := []plan.TextEdit{{
		FilePath:     req.FilePath,
		EditType:     plan.EditReplace,
		Location:     req.Location,
		OriginalText: spanText(content, req.Location),
		NewText:      req.NewText,
		Priority:     10,
		Description:  fmt.Sprintf("apply %s transform", req.Kind),
	}}

	checksums, err := Checksums(ws.Fs, touched)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		PlanType:          plan.TypeTransform,
		Summary:           fmt.Sprintf("Apply %s to %s", req.Kind, req.FilePath),
		FileChecksums:      checksums,
		Edits:              edits,
		DependencyUpdates:  req.DependencyUpdates,
		Metadata:           newMetadata(plan.TypeTransform, "transform.plan", map[string]any{"file": req.FilePath, "kind": req.Kind}, complexityFor(len(touched))),
		TransformKind:      req.Kind,
		Range:              &plan.SourceRange{FilePath: req.FilePath, Location: req.Location},
	}, nil
}
