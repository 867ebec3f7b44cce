// Package handlers wires the tool surface from §6 onto the dispatcher:
// one thin function per tool name, each deserializing its own argument
// struct and delegating to a planner, the executor, or an analyzer, per
// §4.I's "handlers are thin" rule. RegisterAll is the single entrypoint a
// cmd/ main wires a Dispatcher through.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/analysis"
	"github.com/pleme-io/typemill-sub012/internal/analysis/complexity"
	"github.com/pleme-io/typemill-sub012/internal/analysis/cycles"
	"github.com/pleme-io/typemill-sub012/internal/analysis/deadcode"
	"github.com/pleme-io/typemill-sub012/internal/analysis/graph"
	"github.com/pleme-io/typemill-sub012/internal/dispatcher"
	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/executor"
	"github.com/pleme-io/typemill-sub012/internal/plan"
	"github.com/pleme-io/typemill-sub012/internal/planner"
)

// nowRFC3339 is overridable in tests; production code always calls the
// real clock.
var nowRFC3339 = func() string { return time.Now().UTC().Format(time.RFC3339) }

// RegisterAll registers every tool in §6's method surface onto d. health
// and queue-stats handlers are registered internal=true per §4.I's
// "internal" flag; every planner/analysis/apply tool is public.
func RegisterAll(d *dispatcher.Dispatcher) {
	d.Register("inspect_code", false, inspectCode)
	d.Register("search_code", false, searchCode)

	d.Register("rename.plan", false, renamePlan)
	d.Register("move.plan", false, movePlan)
	d.Register("delete.plan", false, deletePlan)
	d.Register("extract.plan", false, extractPlan)
	d.Register("inline.plan", false, inlinePlan)
	d.Register("transform.plan", false, transformPlan)
	d.Register("reorder.plan", false, reorderPlan)

	d.Register("workspace.apply_edit", false, applyEdit)

	d.Register("analyze.quality", false, analyzeQuality)
	d.Register("analyze.circular_dependencies", false, analyzeCircularDependencies)
	d.Register("analyze.dead_code", false, analyzeDeadCode)
	d.Register("analyze.module_dependencies", false, analyzeModuleDependencies)
	d.Register("analyze.project", false, analyzeProject)

	d.Register("server.getQueueStats", true, getQueueStats)
	d.Register("health_check", true, healthCheck)
	d.Register("restart_server", true, restartServer)
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errs.New(errs.KindInvalidParams, "missing arguments")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errs.Wrap(err, errs.KindInvalidParams, "decode arguments")
	}
	return nil
}

func absPath(hc dispatcher.ToolHandlerContext, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(hc.App.Workspace.Root, p)
}

// --- inspect_code / search_code -------------------------------------------------

type inspectArgs struct {
	URI    string `json:"uri"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

type inspectResult struct {
	Definitions []any `json:"definitions"`
	References  []any `json:"references"`
	Symbols     []any `json:"symbols"`
}

// inspectCode forwards to the LSP adapter for definition, reference and
// document-symbol data at a position, per §4.I's "inspect_code/search_code
// forward to LSP" rule. No hover information is requested or returned.
func inspectCode(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var args inspectArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	if hc.LSP == nil {
		return nil, errs.New(errs.KindNotSupported, "no LSP adapter attached to this session")
	}
	defs, err := hc.LSP.FindDefinition(ctx, args.URI, args.Line, args.Column)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindLsp, "find definition")
	}
	refs, err := hc.LSP.FindReferences(ctx, args.URI, args.Line, args.Column)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindLsp, "find references")
	}
	syms, err := hc.LSP.DocumentSymbol(ctx, args.URI)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindLsp, "document symbol")
	}
	out := inspectResult{}
	for _, d := range defs {
		out.Definitions = append(out.Definitions, d)
	}
	for _, r := range refs {
		out.References = append(out.References, r)
	}
	for _, s := range syms {
		out.Symbols = append(out.Symbols, s)
	}
	return out, nil
}

type searchArgs struct {
	Query string `json:"query"`
}

// searchCode forwards to the LSP adapter's workspace symbol search.
func searchCode(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var args searchArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	if hc.LSP == nil {
		return nil, errs.New(errs.KindNotSupported, "no LSP adapter attached to this session")
	}
	syms, err := hc.LSP.WorkspaceSymbol(ctx, args.Query)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindLsp, "workspace symbol")
	}
	return syms, nil
}

// --- rename.plan / move.plan / delete.plan --------------------------------------

type renameArgs struct {
	Target  plan.Target `json:"target"`
	NewName string      `json:"newName"`
}

func renamePlan(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var args renameArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	args.Target.Path = absPath(hc, args.Target.Path)
	rp := &planner.RenamePlanner{Workspace: hc.App.Workspace, LSP: hc.LSP}
	return rp.Plan(ctx, args.Target, args.NewName, planner.RenameOptions{})
}

type moveArgs struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Consolidate *bool  `json:"consolidate,omitempty"`
}

func movePlan(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var args moveArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	mp := &planner.MovePlanner{Workspace: hc.App.Workspace}
	return mp.Plan(ctx, absPath(hc, args.Source), absPath(hc, args.Destination), planner.MoveOptions{
		Consolidate: args.Consolidate,
	})
}

type deleteArgs struct {
	Targets []plan.Target `json:"targets"`
}

func deletePlan(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var args deleteArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	for i := range args.Targets {
		args.Targets[i].Path = absPath(hc, args.Targets[i].Path)
	}
	dp := &planner.DeletePlanner{Workspace: hc.App.Workspace}
	return dp.Plan(ctx, args.Targets)
}

// --- extract.plan / inline.plan / transform.plan / reorder.plan ----------------

func extractPlan(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var req planner.ExtractRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	req.FilePath = absPath(hc, req.FilePath)
	ep := &planner.ExtractPlanner{Workspace: hc.App.Workspace}
	return ep.Plan(ctx, req)
}

func inlinePlan(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var req planner.InlineRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	req.DeclFile = absPath(hc, req.DeclFile)
	for i := range req.Sites {
		req.Sites[i].FilePath = absPath(hc, req.Sites[i].FilePath)
	}
	ip := &planner.InlinePlanner{Workspace: hc.App.Workspace}
	return ip.Plan(ctx, req)
}

func transformPlan(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var req planner.TransformRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	req.FilePath = absPath(hc, req.FilePath)
	tp := &planner.TransformPlanner{Workspace: hc.App.Workspace}
	return tp.Plan(ctx, req)
}

func reorderPlan(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var req planner.ReorderRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	req.FilePath = absPath(hc, req.FilePath)
	rop := &planner.ReorderPlanner{Workspace: hc.App.Workspace}
	return rop.Plan(ctx, req)
}

// --- workspace.apply_edit --------------------------------------------------------

type applyEditArgs struct {
	Plan              *plan.Plan          `json:"plan"`
	DryRun            bool                `json:"dryRun"`
	ValidateChecksums *bool               `json:"validateChecksums"`
	RollbackOnError   bool                `json:"rollbackOnError"`
	Validation        *validationArgs     `json:"validation,omitempty"`
	Preset            string              `json:"preset,omitempty"`
}

type validationArgs struct {
	Command        []string `json:"command"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
	Dir            string   `json:"dir,omitempty"`
}

// applyEdit executes any plan variant through the shared executor, per
// §6's "applies any plan" contract. RollbackOnError is accepted for wire
// compatibility and is not read: the executor's atomic-or-rollback
// behavior during apply is unconditional (§4.H step 3), and the backup is
// consumed before validation runs whatever the flag says (the documented
// §9 open question #2 behavior).
func applyEdit(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var args applyEditArgs
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	if args.Plan == nil {
		return nil, errs.New(errs.KindInvalidParams, "apply_edit requires a plan")
	}
	validate := true
	if args.ValidateChecksums != nil {
		validate = *args.ValidateChecksums
	}
	opts := executor.Options{ValidateChecksums: validate, DryRun: args.DryRun}
	if args.Validation != nil {
		timeout := time.Duration(args.Validation.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		opts.Validation = &executor.Validation{
			Command: args.Validation.Command,
			Dir:     args.Validation.Dir,
			Timeout: timeout,
		}
	}
	return hc.App.Exec.Execute(ctx, args.Plan, opts)
}

// --- analyze.* --------------------------------------------------------------------

func buildGraph(ctx context.Context, hc dispatcher.ToolHandlerContext) (*graph.Graph, error) {
	b := &graph.Builder{Registry: hc.App.Workspace.Registry, Resolver: graph.NewSimpleResolver()}
	return b.Build(ctx, hc.App.Workspace.Root)
}

type analyzeCircularArgs struct {
	MinSize int `json:"minSize"`
}

func analyzeCircularDependencies(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var args analyzeCircularArgs
	_ = decode(raw, &args) // optional arguments: absent/empty raw is not an error here
	if args.MinSize <= 0 {
		args.MinSize = 2
	}
	start := time.Now()
	g, err := buildGraph(ctx, hc)
	if err != nil {
		return nil, errors.Wrap(err, "build dependency graph")
	}
	return cycles.Analyze(g, args.MinSize, nowRFC3339(), time.Since(start).Milliseconds()), nil
}

func analyzeModuleDependencies(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	start := time.Now()
	g, err := buildGraph(ctx, hc)
	if err != nil {
		return nil, errors.Wrap(err, "build dependency graph")
	}
	var findings []analysis.Finding
	for _, n := range g.Nodes() {
		findings = append(findings, analysis.Finding{
			ID:       n.Path,
			Kind:     "module",
			Severity: analysis.SeverityLow,
			Location: analysis.Location{FilePath: n.Path},
			Metrics:  map[string]any{"language": n.Language, "dependencies": len(g.EdgesFrom(n.Path))},
			Message:  fmt.Sprintf("%s depends on %d modules", n.Path, len(g.EdgesFrom(n.Path))),
		})
	}
	summary := analysis.BuildSummary(findings, findings, len(g.Nodes()), time.Since(start).Milliseconds())
	return analysis.Result{
		Findings: findings,
		Summary:  summary,
		Metadata: analysis.Metadata{Category: "dependencies", Kind: "module_dependencies", Scope: "workspace", Timestamp: nowRFC3339()},
	}, nil
}

type analyzeDeadCodeArgs struct {
	IncludeMain       bool     `json:"includeMain"`
	IncludeTests      bool     `json:"includeTests"`
	IncludePubExports bool     `json:"includePubExports"`
	Custom            []string `json:"custom,omitempty"`
	MinConfidence     float64  `json:"minConfidence"`
}

func analyzeDeadCode(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var args analyzeDeadCodeArgs
	_ = decode(raw, &args)

	var sources []deadcode.FileSource
	err := afero.Walk(hc.App.Workspace.Fs, hc.App.Workspace.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		p, ok := hc.App.Workspace.Registry.PluginForPath(path)
		if !ok {
			return nil
		}
		content, err := afero.ReadFile(hc.App.Workspace.Fs, path)
		if err != nil {
			return nil
		}
		sources = append(sources, deadcode.FileSource{Path: path, URI: "file://" + path, Content: content, Plugin: p})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk workspace for dead-code analysis")
	}

	az := deadcode.NewAnalyzer(hc.LSP)
	if args.MinConfidence > 0 {
		az.MinConfidence = args.MinConfidence
	}
	result, err := az.Analyze(ctx, sources, deadcode.RootSetConfig{
		IncludeMain:       args.IncludeMain,
		IncludeTests:      args.IncludeTests,
		IncludePubExports: args.IncludePubExports,
		Custom:            args.Custom,
	}, nowRFC3339())
	if err != nil {
		return nil, err
	}
	return result, nil
}

type analyzeQualityArgs struct {
	ThresholdCyclomatic int    `json:"thresholdCyclomatic"`
	Limit               int    `json:"limit"`
	Metric              string `json:"metric"`
}

func analyzeQuality(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	var args analyzeQualityArgs
	_ = decode(raw, &args)
	if args.ThresholdCyclomatic <= 0 {
		args.ThresholdCyclomatic = 10
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}
	if args.Metric == "" {
		args.Metric = "cyclomatic"
	}

	start := time.Now()
	var files []complexity.FileMetrics
	err := afero.Walk(hc.App.Workspace.Fs, hc.App.Workspace.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		p, ok := hc.App.Workspace.Registry.PluginForPath(path)
		if !ok {
			return nil
		}
		content, rerr := afero.ReadFile(hc.App.Workspace.Fs, path)
		if rerr != nil {
			return nil
		}
		files = append(files, complexity.Analyze(path, content, func(name string) (string, int, bool) {
			fns, lerr := p.ListFunctions(ctx, content)
			if lerr != nil {
				return "", 0, false
			}
			for _, f := range fns {
				if f == name {
					return f, 0, true
				}
			}
			return "", 0, false
		}))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk workspace for complexity analysis")
	}

	result := complexity.BuildResult(files, args.ThresholdCyclomatic, nowRFC3339(), time.Since(start).Milliseconds())
	_ = complexity.Hotspots(files, args.Metric, args.Limit)
	return result, nil
}

// analyzeProject runs the full analysis suite (dependencies, cycles, dead
// code, quality) and returns them bundled under one result set, matching
// the `analyze.project` "everything at once" entry point in §6's method
// table.
func analyzeProject(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	deps, err := analyzeModuleDependencies(ctx, hc, raw)
	if err != nil {
		return nil, err
	}
	circ, err := analyzeCircularDependencies(ctx, hc, raw)
	if err != nil {
		return nil, err
	}
	quality, err := analyzeQuality(ctx, hc, raw)
	if err != nil {
		return nil, err
	}
	dead, err := analyzeDeadCode(ctx, hc, raw)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"dependencies": deps,
		"circularDependencies": circ,
		"quality":      quality,
		"deadCode":     dead,
	}, nil
}

// --- runtime metadata --------------------------------------------------------------

func getQueueStats(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	stats := map[string]any{"fileService": hc.App.Files.Stats()}
	if hc.Dispatcher != nil && hc.Session != nil {
		if remaining, limit, enabled := hc.Dispatcher.RateLimiterStatus(hc.Session.ID.String()); enabled {
			stats["rateLimiterTokensRemaining"] = remaining
			stats["rateLimiterBurst"] = limit
		}
	}
	return stats, nil
}

func healthCheck(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	status := map[string]any{"status": "ok", "time": nowRFC3339()}
	if hc.LSP != nil {
		status["lspCircuitBreaker"] = hc.LSP.BreakerState()
	}
	return status, nil
}

func restartServer(ctx context.Context, hc dispatcher.ToolHandlerContext, raw json.RawMessage) (any, error) {
	return nil, errs.New(errs.KindNotSupported, "restart_server is managed by the daemon supervisor, not the core")
}
