package cycles

import (
	"fmt"
	"strings"

	"github.com/pleme-io/typemill-sub012/internal/analysis"
	"github.com/pleme-io/typemill-sub012/internal/analysis/graph"
)

// Analyze runs cycle detection over g and shapes the result into the
// uniform analysis.Result envelope every analyzer returns.
func Analyze(g *graph.Graph, minSize int, nowRFC3339 string, elapsedMs int64) analysis.Result {
	found := Detect(g, minSize)

	findings := make([]analysis.Finding, 0, len(found))
	for i, c := range found {
		sev := analysis.SeverityMedium
		if len(c.Modules) == 2 {
			sev = analysis.SeverityHigh
		}
		findings = append(findings, analysis.Finding{
			ID:       fmt.Sprintf("cycle-%d", i),
			Kind:     "circular_dependency",
			Severity: sev,
			Location: analysis.Location{FilePath: c.Modules[0]},
			Metrics:  map[string]any{"length": len(c.Modules), "modules": c.Modules},
			Message:  fmt.Sprintf("circular dependency among %s", strings.Join(c.Modules, " -> ")),
			Suggestions: Suggestions(len(c.Modules)),
		})
	}

	return analysis.Result{
		Findings: findings,
		Summary:  analysis.BuildSummary(findings, findings, len(g.Nodes()), elapsedMs),
		Metadata: analysis.Metadata{
			Category:  "dependencies",
			Kind:      "circular_dependencies",
			Scope:     "workspace",
			Timestamp: nowRFC3339,
		},
	}
}
