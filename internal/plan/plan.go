// Package plan defines the closed, JSON-discriminated Plan union described
// in the data model: every mutating tool produces a Plan, and a single
// executor (internal/executor) applies any of them. The discriminator
// pattern mirrors upbound-up/pkg/migration/meta/v1alpha1's versioned
// metadata structs generalized to a sum type instead of a single shape.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Type is the planType discriminator.
type Type string

// The closed set of plan discriminators. Extending the union means adding
// a new value here plus a case in every exhaustive switch (planner,
// executor, wire [de]serialization) — see DESIGN.md for the open/closed
// tradeoff this spec calls for.
const (
	TypeRename    Type = "renamePlan"
	TypeMove      Type = "movePlan"
	TypeDelete    Type = "deletePlan"
	TypeExtract   Type = "extractPlan"
	TypeInline    Type = "inlinePlan"
	TypeTransform Type = "transformPlan"
	TypeReorder   Type = "reorderPlan"
)

// EditType is the kind of mutation a TextEdit performs.
type EditType string

// Known edit types.
const (
	EditReplace EditType = "Replace"
	EditInsert  EditType = "Insert"
	EditDelete  EditType = "Delete"
	EditCreate  EditType = "Create"
	EditMove    EditType = "Move"
)

// Location is a half-open text span within a single file, 0-indexed.
type Location struct {
	StartLine int `json:"startLine"`
	StartCol  int `json:"startCol"`
	EndLine   int `json:"endLine"`
	EndCol    int `json:"endCol"`
}

// TextEdit is one atomic content or path mutation within a Plan.
type TextEdit struct {
	FilePath     string   `json:"filePath,omitempty"`
	EditType     EditType `json:"editType"`
	Location     Location `json:"location"`
	OriginalText string   `json:"originalText"`
	NewText      string   `json:"newText"`
	// Priority orders application: higher first. TextEdits at equal
	// priority within one file apply in reverse position order so an
	// earlier edit's offset shift never invalidates a later one.
	Priority    int32  `json:"priority"`
	Description string `json:"description"`

	// MoveDestination is set for EditMove edits: the new path FilePath is
	// moved to.
	MoveDestination string `json:"moveDestination,omitempty"`
}

// Warning is a human-actionable caveat attached to a Plan.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Well-known warning codes emitted by planners (§4.G).
const (
	WarningConsolidationManualStep   = "CONSOLIDATION_MANUAL_STEP"
	WarningCrossLanguageImportSkipped = "CROSS_LANGUAGE_IMPORT_SKIPPED"
)

// ValidationRule is a post-apply check the executor should run.
type ValidationRule struct {
	Kind        string         `json:"kind"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// DependencyUpdate records a manifest-level dependency rewrite a planner
// performed (e.g. a Cargo.toml path dependency's name/path changing).
type DependencyUpdate struct {
	ManifestPath string `json:"manifestPath"`
	Name         string `json:"name"`
	OldValue     string `json:"oldValue"`
	NewValue     string `json:"newValue"`
}

// Metadata is the plan.metadata envelope from §3.
type Metadata struct {
	PlanVersion     string         `json:"planVersion"`
	Kind            Type           `json:"kind"`
	IntentName      string         `json:"intentName"`
	IntentArguments map[string]any `json:"intentArguments,omitempty"`
	CreatedAt       string         `json:"createdAt"`
	Complexity      int            `json:"complexity"`
	ImpactAreas     []string       `json:"impactAreas,omitempty"`
	Consolidation   *Consolidation `json:"consolidation,omitempty"`
}

// Consolidation records that a rename/move plan is an auto-detected or
// explicit consolidation (§4.G's decision table).
type Consolidation struct {
	IsConsolidation bool   `json:"isConsolidation"`
	SourceMember    string `json:"sourceMember"`
	DestinationMember string `json:"destinationMember"`
}

// PlanVersion is the current metadata.planVersion value every plan carries.
const PlanVersion = "1.0"

// Target identifies what a rename/move/delete operates on.
type TargetKind string

// Known target kinds.
const (
	TargetFile      TargetKind = "file"
	TargetDirectory TargetKind = "directory"
	TargetSymbol    TargetKind = "symbol"
)

// Target is a rename/move operation's subject.
type Target struct {
	Kind TargetKind `json:"kind"`
	Path string     `json:"path"`
	// SymbolName is set when Kind == TargetSymbol.
	SymbolName string `json:"symbolName,omitempty"`
}

// Deletion is one path slated for removal by a deletePlan.
type Deletion struct {
	Path string     `json:"path"`
	Kind TargetKind `json:"kind"`
}

// ExtractKind selects what an extractPlan pulls out.
type ExtractKind string

// Known extract kinds.
const (
	ExtractFunction ExtractKind = "function"
	ExtractVariable ExtractKind = "variable"
	ExtractConstant ExtractKind = "constant"
	ExtractModule   ExtractKind = "module"
)

// SourceRange names a file span an extract/inline/transform plan targets.
type SourceRange struct {
	FilePath  string   `json:"filePath"`
	Location  Location `json:"location"`
}

// Plan is the discriminated union described in §3. Exactly one of the
// per-variant fields is meaningful, selected by PlanType. Plans are
// immutable from creation through apply: callers must not mutate a Plan
// after Validate/Checksums are computed.
type Plan struct {
	PlanType Type `json:"planType"`
	Summary  string `json:"summary"`

	// FileChecksums maps every touched path to sha256(content) at plan
	// creation time, hex-encoded. Invariant: every path here existed on
	// disk when the plan was produced (a Create-only target is exempt and
	// is recorded instead in the corresponding Edits/Deletions entry).
	FileChecksums map[string]string `json:"fileChecksums"`
	Edits         []TextEdit        `json:"edits"`
	DependencyUpdates []DependencyUpdate `json:"dependencyUpdates,omitempty"`
	Validations   []ValidationRule  `json:"validations,omitempty"`
	Warnings      []Warning         `json:"warnings,omitempty"`
	Metadata      Metadata          `json:"metadata"`

	// Rename
	OldTarget *Target `json:"oldTarget,omitempty"`
	NewName   string  `json:"newName,omitempty"`

	// Move
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`

	// Delete
	Deletions []Deletion `json:"deletions,omitempty"`

	// Extract / Inline / Transform
	ExtractKind       ExtractKind  `json:"extractKind,omitempty"`
	TransformKind     string       `json:"transformKind,omitempty"`
	Range             *SourceRange `json:"range,omitempty"`
	Site              *SourceRange `json:"site,omitempty"`
	NewSymbolName     string       `json:"newSymbolName,omitempty"`

	// Reorder
	Ordering []string `json:"ordering,omitempty"`
}

// Sha256Hex hashes content and hex-encodes it, the checksum form used
// throughout fileChecksums and the markdown fixers' optimistic-concurrency
// guard.
func Sha256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// SortedEdits returns a copy of edits ordered priority-desc, then by
// reverse position within each file, per §3's TextEdit apply-order rule.
// This guarantees that applying edits for one file in the returned order
// never has an earlier edit invalidate a later edit's offsets.
func SortedEdits(edits []TextEdit) []TextEdit {
	out := make([]TextEdit, len(edits))
	copy(out, edits)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return locationLess(b.Location, a.Location)
	})
	return out
}

func locationLess(a, b Location) bool {
	if a.StartLine != b.StartLine {
		return a.StartLine < b.StartLine
	}
	return a.StartCol < b.StartCol
}

// EditsByFile groups edits (already in SortedEdits order) by FilePath,
// preserving relative order within each group.
func EditsByFile(edits []TextEdit) map[string][]TextEdit {
	out := make(map[string][]TextEdit)
	for _, e := range edits {
		if e.FilePath == "" {
			continue
		}
		out[e.FilePath] = append(out[e.FilePath], e)
	}
	return out
}

// Plan needs no custom MarshalJSON/UnmarshalJSON: every variant's fields
// are already optional/omitempty and PlanType alone selects which ones are
// populated, so the default struct codec already satisfies the round-trip
// law (deserialize(serialize(p)) == p).

// String implements fmt.Stringer for debug logging.
func (p Plan) String() string {
	return fmt.Sprintf("Plan{%s: %s}", p.PlanType, p.Summary)
}
