// Package deadcode implements the reachability-based dead-code analyzer
// from §4.E: it gathers every symbol in the workspace, gathers a reference
// graph from the LSP adapter's findReferences results, then reports
// symbols unreachable from a configured root set. No plugin-side call
// extraction feeds the reference graph, so with no LSP attached it has no
// edges at all.
// The (fromId,toId) reference dedup set uses bits-and-blooms/bloom/v3,
// carried from nmxmxh-inos_v1's dependency surface, matching the fixed
// dedup-set grounding recorded in DESIGN.md.
package deadcode

import (
	"context"
	"fmt"
	"time"

	bloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/pleme-io/typemill-sub012/internal/analysis"
	"github.com/pleme-io/typemill-sub012/internal/lspadapter"
	"github.com/pleme-io/typemill-sub012/internal/model"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// RootSetConfig selects which symbols seed reachability.
type RootSetConfig struct {
	IncludeMain       bool
	IncludeTests      bool
	IncludePubExports bool
	Custom            []string // explicit symbol IDs
}

// Reason classifies why a symbol was judged dead.
type Reason string

// Known reasons, per §4.E.
const (
	ReasonNoReferences           Reason = "NoReferences"
	ReasonOnlyDeadReferences     Reason = "OnlyDeadReferences"
	ReasonUnreachableFromEntry   Reason = "UnreachableFromEntryPoints"
)

// FileSource is one file's parsed content, keyed by absolute path.
type FileSource struct {
	Path    string
	URI     string
	Content []byte
	Plugin  plugin.Plugin
}

// reference is one (from,to) symbol reference edge.
type reference struct {
	fromID, toID   string
	fallbackAttrib bool
}

// Analyzer runs the dead-code pass over a fixed set of files.
type Analyzer struct {
	LSP           lspadapter.Adapter
	MinConfidence float64
	RefTimeout    time.Duration
}

// NewAnalyzer returns an Analyzer with the §4.E default 5s per-symbol LSP
// reference-query timeout.
func NewAnalyzer(lsp lspadapter.Adapter) *Analyzer {
	return &Analyzer{LSP: lsp, MinConfidence: 0, RefTimeout: 5 * time.Second}
}

// Analyze runs the full pipeline: parse every file for symbols, open each
// in the LSP and query references (pausing 500ms after open per §4.E),
// attribute references to a containing symbol by smallest enclosing range,
// compute the dead set, and shape the result. References come from the LSP
// only; plugins contribute symbols, not call sites.
func (a *Analyzer) Analyze(ctx context.Context, files []FileSource, cfg RootSetConfig, nowRFC3339 string) (analysis.Result, error) {
	start := time.Now()

	allSymbols, bySymbolID, byFile := a.gatherSymbols(ctx, files)
	refs := a.gatherReferences(ctx, files, allSymbols, byFile)

	roots := a.rootSet(allSymbols, byFile, cfg)
	reachable := bfsReachable(roots, refs)

	findings := make([]analysis.Finding, 0)
	for _, sym := range allSymbols {
		if _, ok := reachable[sym.ID]; ok {
			continue
		}
		reason, fallback, confidence := classify(sym, refs, reachable)
		if confidence < a.MinConfidence {
			continue
		}
		metrics := map[string]any{"confidence": confidence}
		if fallback {
			metrics["fallbackAttribution"] = true
		}
		refactorCall := RefactorCallFor(sym)
		findings = append(findings, analysis.Finding{
			ID:       fmt.Sprintf("dead-%s", sym.ID),
			Kind:     "dead_code",
			Severity: severityFor(sym),
			Location: analysis.Location{FilePath: sym.URI, Range: &sym.Range, Symbol: sym.Name, SymbolKind: sym.Kind},
			Metrics:  metrics,
			Message:  fmt.Sprintf("%q (%s) %s", sym.Name, sym.Kind, string(reason)),
			Suggestions: []analysis.Suggestion{{
				Action:          "delete",
				Description:     fmt.Sprintf("Remove unreferenced %s %q", sym.Kind, sym.Name),
				Target:          sym.Name,
				EstimatedImpact: "removes dead code",
				Safety:          analysis.SafetyRequiresReview,
				Confidence:      confidence,
				Reversible:      false,
				RefactorCall:    &refactorCall,
			}},
		})
	}

	elapsed := time.Since(start).Milliseconds()
	symbolsAnalyzed := len(allSymbols)
	return analysis.Result{
		Findings: findings,
		Summary: analysis.Summary{
			TotalFindings:    len(findings),
			ReturnedFindings: len(findings),
			HasMore:          false,
			BySeverity:       tallySeverity(findings),
			FilesAnalyzed:    len(files),
			SymbolsAnalyzed:  &symbolsAnalyzed,
			AnalysisTimeMs:   elapsed,
		},
		Metadata: analysis.Metadata{
			Category:  "code_health",
			Kind:      "dead_code",
			Scope:     "workspace",
			Timestamp: nowRFC3339,
		},
	}, nil
}

// RefactorCallFor is exported for tests that want to assert a delete
// suggestion's follow-up command shape without re-deriving it.
func RefactorCallFor(sym model.Symbol) analysis.RefactorCall {
	return analysis.RefactorCall{
		Command: "delete.plan",
		Arguments: map[string]any{
			"target": map[string]any{"kind": "symbol", "path": sym.URI, "symbolName": sym.Name},
		},
	}
}

func severityFor(sym model.Symbol) analysis.Severity {
	if sym.Visibility == model.VisibilityPublic || sym.Visibility == model.VisibilityUnknown {
		return analysis.SeverityLow
	}
	return analysis.SeverityMedium
}

func tallySeverity(findings []analysis.Finding) analysis.BySeverity {
	var by analysis.BySeverity
	for _, f := range findings {
		switch f.Severity {
		case analysis.SeverityHigh:
			by.High++
		case analysis.SeverityMedium:
			by.Medium++
		case analysis.SeverityLow:
			by.Low++
		}
	}
	return by
}

func (a *Analyzer) gatherSymbols(ctx context.Context, files []FileSource) ([]model.Symbol, map[string]model.Symbol, map[string][]model.Symbol) {
	var all []model.Symbol
	byID := make(map[string]model.Symbol)
	byFile := make(map[string][]model.Symbol)
	for _, f := range files {
		res, err := f.Plugin.Parse(ctx, f.Content, f.URI)
		if err != nil || res == nil {
			continue
		}
		for _, sym := range res.Symbols {
			all = append(all, sym)
			byID[sym.ID] = sym
			byFile[f.Path] = append(byFile[f.Path], sym)
		}
	}
	return all, byID, byFile
}

// gatherReferences opens every file in the LSP and queries findReferences
// per symbol; it adds no plugin-derived call sites, and returns no
// references when a.LSP is nil. References are deduplicated by (fromID,toID) via a bloom
// filter sized for the symbol count; a false positive here only means an
// occasional real edge gets dropped from an already best-effort heuristic
// graph, which is an acceptable trade against the alternative of an
// unbounded exact set for very large workspaces.
func (a *Analyzer) gatherReferences(ctx context.Context, files []FileSource, allSymbols []model.Symbol, byFile map[string][]model.Symbol) []reference {
	filter := bloom.NewWithEstimates(uint(len(allSymbols)*4+16), 0.01)
	var refs []reference

	add := func(from, to string, fallback bool) {
		key := []byte(from + "->" + to)
		if filter.Test(key) {
			return
		}
		filter.Add(key)
		refs = append(refs, reference{fromID: from, toID: to, fallbackAttrib: fallback})
	}

	for _, f := range files {
		if a.LSP != nil {
			_ = a.LSP.OpenDocument(ctx, f.URI, string(f.Content))
			time.Sleep(500 * time.Millisecond)
		}
		syms := byFile[f.Path]
		for _, sym := range syms {
			if a.LSP != nil {
				rctx, cancel := context.WithTimeout(ctx, a.RefTimeout)
				locs, err := a.LSP.FindReferences(rctx, f.URI, sym.Range.Start.Line, sym.Range.Start.Column)
				cancel()
				if err == nil {
					for _, loc := range locs {
						containerID, fallback := attribute(byFile[uriToPath(string(loc.URI), f.Path)], int(loc.Range.Start.Line))
						if containerID == "" {
							continue
						}
						add(containerID, sym.ID, fallback)
					}
				}
			}
		}
	}
	return refs
}

func uriToPath(uri, fallback string) string {
	if uri == "" {
		return fallback
	}
	return uri
}

// attribute finds the smallest symbol in syms whose range contains line,
// falling back to the closest symbol whose start line precedes it (§9
// open question 1: this fallback can attribute to an unrelated top-level
// item when no symbol truly encloses the site; callers are told via the
// fallback bool).
func attribute(syms []model.Symbol, line int) (id string, fallback bool) {
	best := model.Symbol{}
	found := false
	bestSize := -1
	for _, s := range syms {
		if s.Range.Start.Line <= line && line <= s.Range.End.Line {
			size := s.Range.Size()
			if !found || size < bestSize {
				best = s
				bestSize = size
				found = true
			}
		}
	}
	if found {
		return best.ID, false
	}

	// Fallback: closest preceding line.
	bestLine := -1
	for _, s := range syms {
		if s.Range.Start.Line <= line && s.Range.Start.Line > bestLine {
			bestLine = s.Range.Start.Line
			best = s
			found = true
		}
	}
	if found {
		return best.ID, true
	}
	return "", false
}

func (a *Analyzer) rootSet(all []model.Symbol, byFile map[string][]model.Symbol, cfg RootSetConfig) map[string]struct{} {
	roots := make(map[string]struct{})
	for _, id := range cfg.Custom {
		roots[id] = struct{}{}
	}
	for _, sym := range all {
		if cfg.IncludeMain && sym.Name == "main" {
			roots[sym.ID] = struct{}{}
		}
		if cfg.IncludePubExports && (sym.Visibility == model.VisibilityPublic || sym.Visibility == model.VisibilityUnknown) {
			roots[sym.ID] = struct{}{}
		}
		if cfg.IncludeTests && isTestSymbol(sym.Name) {
			roots[sym.ID] = struct{}{}
		}
	}
	return roots
}

func isTestSymbol(name string) bool {
	return len(name) >= 4 && (name[:4] == "Test" || name[:4] == "test")
}

func bfsReachable(roots map[string]struct{}, refs []reference) map[string]struct{} {
	adj := make(map[string][]string)
	for _, r := range refs {
		adj[r.fromID] = append(adj[r.fromID], r.toID)
	}

	reachable := make(map[string]struct{}, len(roots))
	var queue []string
	for id := range roots {
		reachable[id] = struct{}{}
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if _, ok := reachable[next]; ok {
				continue
			}
			reachable[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return reachable
}

// classify picks a Reason for a dead symbol and a heuristic confidence
// score: a symbol with literally no incoming reference edges is more
// confidently dead than one whose only referrers are themselves dead.
func classify(sym model.Symbol, refs []reference, reachable map[string]struct{}) (Reason, bool, float64) {
	var referrers []reference
	fallback := false
	for _, r := range refs {
		if r.toID == sym.ID {
			referrers = append(referrers, r)
			if r.fallbackAttrib {
				fallback = true
			}
		}
	}
	if len(referrers) == 0 {
		return ReasonNoReferences, fallback, 0.9
	}
	allReferrersDead := true
	for _, r := range referrers {
		if _, ok := reachable[r.fromID]; ok {
			allReferrersDead = false
			break
		}
	}
	if allReferrersDead {
		return ReasonOnlyDeadReferences, fallback, 0.7
	}
	return ReasonUnreachableFromEntry, fallback, 0.5
}
