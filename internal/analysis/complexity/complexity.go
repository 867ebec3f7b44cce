// Package complexity implements the per-function/class/file/project
// complexity roll-up from §4.E: cyclomatic, cognitive, SLOC, parameter
// count, and nesting depth, computed from a language-agnostic textual
// scan (no pack library does language-independent complexity metrics, so
// this is a hand-rolled line scanner, named here per the standard-library
// justification rule).
package complexity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pleme-io/typemill-sub012/internal/analysis"
)

// branchKeywords increment cyclomatic complexity by one occurrence each,
// a conservative language-agnostic approximation (if/else-if/for/while/
// case/catch/&&/||/?:) common to every language this engine supports.
var branchKeywords = []string{"if ", "if(", "else if", "elif ", "for ", "for(", "while ", "while(", "case ", "catch ", "&&", "||", "?", "except "}

// FunctionMetrics is one function's computed metrics.
type FunctionMetrics struct {
	Name        string
	FilePath    string
	StartLine   int
	EndLine     int
	Cyclomatic  int
	Cognitive   int
	SLOC        int
	Parameters  int
	MaxNesting  int
}

// FileMetrics aggregates its functions' metrics.
type FileMetrics struct {
	Path       string
	Functions  []FunctionMetrics
	SLOC       int
	Cyclomatic int
}

// Analyze scans source for function bodies (a function starts at a line
// matching funcLine and ends when the brace/indentation nesting returns to
// its starting depth) and computes metrics for each.
func Analyze(path string, source []byte, funcLine func(string) (name string, params int, ok bool)) FileMetrics {
	lines := strings.Split(string(source), "\n")
	fm := FileMetrics{Path: path, SLOC: countSLOC(lines)}

	i := 0
	for i < len(lines) {
		name, params, ok := funcLine(lines[i])
		if !ok {
			i++
			continue
		}
		start := i
		end, maxNesting := scanBody(lines, i)
		body := lines[start:min(end+1, len(lines))]

		fn := FunctionMetrics{
			Name:       name,
			FilePath:   path,
			StartLine:  start,
			EndLine:    end,
			Cyclomatic: cyclomaticOf(body),
			Cognitive:  cognitiveOf(body, maxNesting),
			SLOC:       countSLOC(body),
			Parameters: params,
			MaxNesting: maxNesting,
		}
		fm.Functions = append(fm.Functions, fn)
		fm.Cyclomatic += fn.Cyclomatic
		i = end + 1
	}
	return fm
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func countSLOC(lines []string) int {
	n := 0
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t != "" && !strings.HasPrefix(t, "//") && !strings.HasPrefix(t, "#") {
			n++
		}
	}
	return n
}

// scanBody finds where a function body ends by brace-depth tracking,
// falling back to indentation-return for brace-less languages (Python),
// and returns the deepest nesting level reached along the way.
func scanBody(lines []string, start int) (end int, maxNesting int) {
	depth := 0
	opened := false
	baseIndent := indentOf(lines[start])
	for i := start; i < len(lines); i++ {
		line := lines[i]
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")
		depth += opens - closes
		if opens > 0 {
			opened = true
		}
		if depth > maxNesting {
			maxNesting = depth
		}
		if opened && depth <= 0 && i > start {
			return i, maxNesting
		}
		if !opened && i > start && strings.TrimSpace(line) != "" && indentOf(line) <= baseIndent {
			return i - 1, maxNesting
		}
	}
	return len(lines) - 1, maxNesting
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 4
		} else {
			break
		}
	}
	return n
}

func cyclomaticOf(body []string) int {
	complexity := 1
	for _, line := range body {
		for _, kw := range branchKeywords {
			complexity += strings.Count(line, kw)
		}
		// "else if" and "elif " also contain "if "/"if(", so each would
		// otherwise be counted twice.
		complexity -= strings.Count(line, "else if") + strings.Count(line, "elif ")
	}
	return complexity
}

// cognitiveOf approximates cognitive complexity as branch count weighted
// by nesting depth (each branch inside deeper nesting counts more), the
// same spirit as SonarSource's metric without replicating its exact AST
// walk (no AST is available to every plugin uniformly here).
func cognitiveOf(body []string, maxNesting int) int {
	score := 0
	depth := 0
	for _, line := range body {
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")
		branchHere := 0
		for _, kw := range branchKeywords {
			branchHere += strings.Count(line, kw)
		}
		if branchHere > 0 {
			score += branchHere * (1 + depth)
		}
		depth += opens - closes
		if depth < 0 {
			depth = 0
		}
	}
	return score
}

// Hotspots sorts files by the given metric descending and truncates to
// limit, per §4.E's hotspot report contract.
func Hotspots(files []FileMetrics, metric string, limit int) []FileMetrics {
	out := append([]FileMetrics(nil), files...)
	sort.Slice(out, func(i, j int) bool {
		return valueOf(out[i], metric) > valueOf(out[j], metric)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func valueOf(f FileMetrics, metric string) int {
	switch metric {
	case "sloc":
		return f.SLOC
	default:
		return f.Cyclomatic
	}
}

// BuildResult shapes file-level metrics into the uniform analysis.Result.
func BuildResult(files []FileMetrics, thresholdCyclomatic int, nowRFC3339 string, elapsedMs int64) analysis.Result {
	var findings []analysis.Finding
	for _, f := range files {
		for _, fn := range f.Functions {
			if fn.Cyclomatic < thresholdCyclomatic {
				continue
			}
			findings = append(findings, analysis.Finding{
				ID:       fmt.Sprintf("complexity-%s-%s", f.Path, fn.Name),
				Kind:     "high_complexity",
				Severity: severityFor(fn.Cyclomatic, thresholdCyclomatic),
				Location: analysis.Location{FilePath: f.Path, Symbol: fn.Name},
				Metrics: map[string]any{
					"cyclomatic": fn.Cyclomatic,
					"cognitive":  fn.Cognitive,
					"sloc":       fn.SLOC,
					"parameters": fn.Parameters,
					"maxNesting": fn.MaxNesting,
				},
				Message: fmt.Sprintf("%s has cyclomatic complexity %d", fn.Name, fn.Cyclomatic),
				Suggestions: []analysis.Suggestion{{
					Action:          "extract_function",
					Description:     "Extract nested branches into smaller helper functions",
					Target:          fn.Name,
					EstimatedImpact: "reduces cyclomatic complexity",
					Safety:          analysis.SafetyRequiresReview,
					Confidence:      0.5,
					Reversible:      true,
				}},
			})
		}
	}
	return analysis.Result{
		Findings: findings,
		Summary:  analysis.BuildSummary(findings, findings, len(files), elapsedMs),
		Metadata: analysis.Metadata{
			Category:   "code_health",
			Kind:       "complexity",
			Scope:      "workspace",
			Timestamp:  nowRFC3339,
			Thresholds: map[string]any{"cyclomatic": thresholdCyclomatic},
		},
	}
}

func severityFor(value, threshold int) analysis.Severity {
	switch {
	case value >= threshold*2:
		return analysis.SeverityHigh
	case value >= threshold:
		return analysis.SeverityMedium
	default:
		return analysis.SeverityLow
	}
}
