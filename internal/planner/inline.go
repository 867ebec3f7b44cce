package planner

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plan"
)

// InlineRequest is the caller-supplied description of an inline: the
// declaration to remove plus every call site to replace with its body.
type InlineRequest struct {
	// DeclFile/DeclLocation name the declaration being inlined away.
	DeclFile     string
	DeclLocation plan.Location
	// Sites are every call site to replace; each entry names its own file.
	Sites []InlineSite
}

// InlineSite is one call-site replacement.
type InlineSite struct {
	FilePath string
	Location plan.Location
	// Body is the declaration's body text, substituted verbatim for the
	// call-site text at Location (the core performs no parameter binding
	// or capture analysis — callers resolve substitution themselves, per
	// the text-level transform Non-goal in §1).
	Body string
}

// InlinePlanner builds inlinePlan documents (§3, §4.G): the inverse of
// extract — a declaration's body replaces every call site, and the
// declaration itself is deleted.
type InlinePlanner struct {
	Workspace *Workspace
}

// Plan produces an inlinePlan removing req.DeclLocation and replacing every
// req.Sites entry with its Body.
func (ip *InlinePlanner) Plan(ctx context.Context, req InlineRequest) (*plan.Plan, error) {
	ws := ip.Workspace
	if len(req.Sites) == 0 {
		return nil, errs.New(errs.KindInvalidParams, "inline requires at least one call site")
	}

	declExists, err := afero.Exists(ws.Fs, req.DeclFile)
	if err != nil || !declExists {
		return nil, newPlanNotFound(req.DeclFile)
	}

	touchedSet := map[string]bool{req.DeclFile: true}
	edits := []plan.TextEdit{{
		FilePath:    req.DeclFile,
		EditType:    plan.EditDelete,
		Location:    req.DeclLocation,
		Priority:    10,
		Description: "remove inlined declaration",
	}}

	for _, site := range req.Sites {
		exists, err := afero.Exists(ws.Fs, site.FilePath)
		if err != nil || !exists {
			return nil, newPlanNotFound(site.FilePath)
		}
		touchedSet[site.FilePath] = true
		edits = append(edits, plan.TextEdit{
			FilePath:    site.FilePath,
			EditType:    plan.EditReplace,
			Location:    site.Location,
			NewText:     site.Body,
			Priority:    10,
			Description: "inline call site",
		})
	}

	touched := make([]string, 0, len(touchedSet))
	for p := range touchedSet {
		touched = append(touched, p)
	}

	checksums, err := Checksums(ws.Fs, touched)
	if err != nil {
		return nil, err
	}

	var site *plan.SourceRange
	if len(req.Sites) > 0 {
		site = &plan.SourceRange{FilePath: req.Sites[0].FilePath, Location: req.Sites[0].Location}
	}

	return &plan.Plan{
		PlanType:      plan.TypeInline,
		Summary:       fmt.Sprintf("Inline declaration in %s across %d site(s)", req.DeclFile, len(req.Sites)),
		FileChecksums: checksums,
		Edits:         edits,
		Metadata:      newMetadata(plan.TypeInline, "inline.plan", map[string]any{"file": req.DeclFile, "sites": len(req.Sites)}, complexityFor(len(touched))),
		Range:         &plan.SourceRange{FilePath: req.DeclFile, Location: req.DeclLocation},
		Site:          site,
	}, nil
}
