// Package analysis defines the uniform Finding/Suggestion/AnalysisResult
// shape every analyzer (dependency graph, cycle detector, dead-code,
// complexity, markdown fixers) emits, per §4.E.
package analysis

import "github.com/pleme-io/typemill-sub012/internal/model"

// Severity is a finding's urgency.
type Severity string

// Known severities.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Safety classifies how confidently a suggestion's refactor can be
// auto-applied without human review.
type Safety string

// Known safety levels.
const (
	SafetySafe            Safety = "Safe"
	SafetyRequiresReview  Safety = "RequiresReview"
	SafetyExperimental    Safety = "Experimental"
)

// RefactorCall lets a consumer turn a Suggestion into a follow-up plan
// request without re-deriving the arguments.
type RefactorCall struct {
	Command   string         `json:"command"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Suggestion is one actionable proposal attached to a Finding.
type Suggestion struct {
	Action         string        `json:"action"`
	Description    string        `json:"description"`
	Target         string        `json:"target,omitempty"`
	EstimatedImpact string       `json:"estimatedImpact,omitempty"`
	Safety         Safety        `json:"safety"`
	Confidence     float64       `json:"confidence"`
	Reversible     bool          `json:"reversible"`
	RefactorCall   *RefactorCall `json:"refactorCall,omitempty"`
}

// Location pinpoints where a Finding occurred.
type Location struct {
	FilePath   string      `json:"filePath"`
	Range      *model.Range `json:"range,omitempty"`
	Symbol     string      `json:"symbol,omitempty"`
	SymbolKind model.Kind  `json:"symbolKind,omitempty"`
}

// Finding is one diagnostic produced by an analyzer.
type Finding struct {
	ID          string                 `json:"id"`
	Kind        string                 `json:"kind"`
	Severity    Severity               `json:"severity"`
	Location    Location               `json:"location"`
	Metrics     map[string]any         `json:"metrics,omitempty"`
	Message     string                 `json:"message"`
	Suggestions []Suggestion           `json:"suggestions,omitempty"`
}

// BySeverity tallies findings by severity.
type BySeverity struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Summary is the AnalysisResult's roll-up block.
type Summary struct {
	TotalFindings    int        `json:"totalFindings"`
	ReturnedFindings int        `json:"returnedFindings"`
	HasMore          bool       `json:"hasMore"`
	BySeverity       BySeverity `json:"bySeverity"`
	FilesAnalyzed    int        `json:"filesAnalyzed"`
	SymbolsAnalyzed  *int       `json:"symbolsAnalyzed,omitempty"`
	AnalysisTimeMs   int64      `json:"analysisTimeMs"`
}

// Metadata describes what kind of analysis produced a result.
type Metadata struct {
	Category   string            `json:"category"`
	Kind       string            `json:"kind"`
	Scope      string            `json:"scope"`
	Language   string            `json:"language,omitempty"`
	Timestamp  string            `json:"timestamp"`
	Thresholds map[string]any    `json:"thresholds,omitempty"`
}

// Result is the uniform output every analyzer returns.
type Result struct {
	Findings []Finding `json:"findings"`
	Summary  Summary   `json:"summary"`
	Metadata Metadata  `json:"metadata"`
}

// BuildSummary derives a Summary from the full finding set and the subset
// actually returned (findings may be truncated by a caller-supplied limit
// upstream of this helper).
func BuildSummary(all []Finding, returned []Finding, filesAnalyzed int, analysisTimeMs int64) Summary {
	var by BySeverity
	for _, f := range all {
		switch f.Severity {
		case SeverityHigh:
			by.High++
		case SeverityMedium:
			by.Medium++
		case SeverityLow:
			by.Low++
		}
	}
	return Summary{
		TotalFindings:    len(all),
		ReturnedFindings: len(returned),
		HasMore:          len(returned) < len(all),
		BySeverity:       by,
		FilesAnalyzed:    filesAnalyzed,
		AnalysisTimeMs:   analysisTimeMs,
	}
}
