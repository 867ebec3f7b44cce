// Package markdownfix implements the Markdown hygiene fixers from §4.E:
// trailing whitespace, missing code-fence language, malformed heading,
// reversed link, and auto-TOC. Each Fixer reports edits as byte-offset
// ranges (not the line/column scheme internal/fileservice/materialize.go
// uses for the generic plan model) so trailing whitespace and exact
// newline placement survive the round trip, per §9.
package markdownfix

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plan"
)

// ByteRange is a half-open [Start, End) byte span into the original
// content.
type ByteRange struct {
	Start, End int
}

// Edit is one fixer-produced change.
type Edit struct {
	Range   ByteRange
	NewText string
	Reason  string
}

// Warning is a non-fatal note attached to a fix result (e.g. a fixer
// declining to act on an ambiguous construct).
type Warning struct {
	Code    string
	Message string
}

// Config controls which fixers run and whether edits are materialized or
// only previewed.
type Config struct {
	// DryRun, when true, returns the edits and preview content without
	// requiring PreFixHash to match (no apply, no concurrency guard).
	DryRun bool
	// PreFixHash is the SHA-256 hex of the content the caller last read.
	// Apply refuses with errs.KindConflict if it doesn't match the
	// current content's hash, per §4.E's optimistic-concurrency rule.
	PreFixHash string
	// TOCHeading, if set, is the heading text under which an auto-TOC is
	// inserted/replaced (defaults to "Table of Contents").
	TOCHeading string
}

// Result is one fixer's outcome.
type Result struct {
	FixerID  string
	Edits    []Edit
	Preview  string
	Warnings []Warning
}

// Fixer is one Markdown hygiene rule.
type Fixer interface {
	ID() string
	Apply(ctx context.Context, content []byte, cfg Config) (Result, error)
}

// All returns every known fixer, in the fixed order they're applied when
// run as a group (§4.E lists them in this order).
func All() []Fixer {
	return []Fixer{
		TrailingWhitespaceFixer{},
		CodeFenceLanguageFixer{},
		MalformedHeadingFixer{},
		ReversedLinkFixer{},
		AutoTOCFixer{},
	}
}

// ApplyAll runs every fixer in fs against content in sequence, feeding
// each fixer's output content forward to the next, and returns the
// combined edits (re-based against the original content is not possible
// once fixers compose, so ApplyAll returns only the final content plus
// the per-fixer results against their own input).
func ApplyAll(ctx context.Context, content []byte, cfg Config, fixers []Fixer) ([]byte, []Result, error) {
	if cfg.PreFixHash != "" && !cfg.DryRun {
		if got := plan.Sha256Hex(content); got != cfg.PreFixHash {
			return nil, nil, errs.New(errs.KindConflict, fmt.Sprintf("content changed since hash %s was computed (now %s)", cfg.PreFixHash, got))
		}
	}

	cur := content
	var results []Result
	for _, f := range fixers {
		res, err := f.Apply(ctx, cur, Config{DryRun: true, TOCHeading: cfg.TOCHeading})
		if err != nil {
			return nil, nil, err
		}
		results = append(results, res)
		if len(res.Edits) == 0 {
			continue
		}
		cur = ApplyEdits(cur, res.Edits)
	}
	return cur, results, nil
}

// ApplyEdits materializes edits against content by replacing byte ranges
// in reverse (highest Start first) so earlier offsets stay valid, per
// §4.E's "byte-offset replacement in reverse order" rule.
func ApplyEdits(content []byte, edits []Edit) []byte {
	ordered := append([]Edit(nil), edits...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Range.Start > ordered[j].Range.Start })

	out := append([]byte(nil), content...)
	for _, e := range ordered {
		start, end := clampRange(e.Range.Start, e.Range.End, len(out))
		var buf bytes.Buffer
		buf.Write(out[:start])
		buf.WriteString(e.NewText)
		buf.Write(out[end:])
		out = buf.Bytes()
	}
	return out
}

func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > n {
		start = n
	}
	if end < start {
		end = start
	}
	return start, end
}

// --- trailing whitespace -----------------------------------------------

// TrailingWhitespaceFixer strips trailing space/tab runs at line ends,
// preserving the line terminator itself.
type TrailingWhitespaceFixer struct{}

func (TrailingWhitespaceFixer) ID() string { return "trailing_whitespace" }

var trailingWSPattern = regexp.MustCompile(`[ \t]+(\r?\n|$)`)

func (f TrailingWhitespaceFixer) Apply(ctx context.Context, content []byte, cfg Config) (Result, error) {
	var edits []Edit
	for _, m := range trailingWSPattern.FindAllSubmatchIndex(content, -1) {
		wsStart, wsEnd := m[0], m[1]
		eolStart, eolEnd := m[2], m[3]
		if eolStart == eolEnd {
			// end-of-string with no terminator: whole match is whitespace.
			edits = append(edits, Edit{Range: ByteRange{wsStart, wsEnd}, NewText: "", Reason: "trailing whitespace"})
			continue
		}
		edits = append(edits, Edit{
			Range:   ByteRange{wsStart, eolStart},
			NewText: "",
			Reason:  "trailing whitespace",
		})
	}
	return finish(f.ID(), content, edits, cfg)
}

// --- missing code-fence language ---------------------------------------

// CodeFenceLanguageFixer tags bare ``` fences with "text" so renderers
// stop guessing a syntax-highlighting language.
type CodeFenceLanguageFixer struct{}

func (CodeFenceLanguageFixer) ID() string { return "code_fence_language" }

func (f CodeFenceLanguageFixer) Apply(ctx context.Context, content []byte, cfg Config) (Result, error) {
	var edits []Edit
	inFence := false
	var fenceMarker string
	for _, m := range allLineRanges(content) {
		line := string(content[m[0]:m[1]])
		trimmed := strings.TrimRight(line, "\r\n")
		isFenceLine := strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
		if !isFenceLine {
			continue
		}
		marker := trimmed[:3]
		if !inFence {
			lang := strings.TrimSpace(trimmed[3:])
			if lang == "" {
				insertAt := m[0] + 3
				edits = append(edits, Edit{Range: ByteRange{insertAt, insertAt}, NewText: "text", Reason: "missing code-fence language"})
			}
			inFence = true
			fenceMarker = marker
		} else if marker == fenceMarker {
			inFence = false
		}
	}
	return finish(f.ID(), content, edits, cfg)
}

func allLineRanges(content []byte) [][2]int {
	var out [][2]int
	start := 0
	for i, b := range content {
		if b == '\n' {
			out = append(out, [2]int{start, i + 1})
			start = i + 1
		}
	}
	if start < len(content) {
		out = append(out, [2]int{start, len(content)})
	}
	return out
}

// --- malformed heading ---------------------------------------------------

// MalformedHeadingFixer inserts the space ATX headings require between
// the `#` run and the heading text (e.g. "##Title" -> "## Title").
type MalformedHeadingFixer struct{}

func (MalformedHeadingFixer) ID() string { return "malformed_heading" }

var malformedHeadingPattern = regexp.MustCompile(`(?m)^(#{1,6})([^# \t\r\n])`)

func (f MalformedHeadingFixer) Apply(ctx context.Context, content []byte, cfg Config) (Result, error) {
	var edits []Edit
	for _, m := range malformedHeadingPattern.FindAllSubmatchIndex(content, -1) {
		insertAt := m[3] // start of group 2, the first non-space char
		edits = append(edits, Edit{Range: ByteRange{insertAt, insertAt}, NewText: " ", Reason: "missing space after heading marker"})
	}
	return finish(f.ID(), content, edits, cfg)
}

// --- reversed link -------------------------------------------------------

// ReversedLinkFixer repairs a link written as "(text)[url]" into the
// correct "[text](url)" form.
type ReversedLinkFixer struct{}

func (ReversedLinkFixer) ID() string { return "reversed_link" }

var reversedLinkPattern = regexp.MustCompile(`\(([^()\[\]]+)\)\[([^\[\]]+)\]`)

func (f ReversedLinkFixer) Apply(ctx context.Context, content []byte, cfg Config) (Result, error) {
	var edits []Edit
	for _, m := range reversedLinkPattern.FindAllSubmatchIndex(content, -1) {
		text := string(content[m[2]:m[3]])
		url := string(content[m[4]:m[5]])
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			// (url)[text] form, not a reversal; leave alone.
			continue
		}
		edits = append(edits, Edit{
			Range:   ByteRange{m[0], m[1]},
			NewText: "[" + text + "](" + url + ")",
			Reason:  "reversed link syntax",
		})
	}
	return finish(f.ID(), content, edits, cfg)
}

// --- auto TOC --------------------------------------------------------------

// AutoTOCFixer maintains a generated table of contents under a heading
// named cfg.TOCHeading (default "Table of Contents"), built from every
// level-2/3 heading in the document. If the heading is absent, no TOC is
// inserted (auto-TOC only refreshes an existing section); that omission
// is reported as a Warning rather than silently doing nothing.
type AutoTOCFixer struct{}

func (AutoTOCFixer) ID() string { return "auto_toc" }

func (f AutoTOCFixer) Apply(ctx context.Context, content []byte, cfg Config) (Result, error) {
	heading := cfg.TOCHeading
	if heading == "" {
		heading = "Table of Contents"
	}

	headings, err := collectHeadings(content)
	if err != nil {
		return Result{}, errs.Wrap(err, errs.KindParse, "auto_toc: parsing markdown")
	}

	tocRange, found := findTOCSectionRange(content, heading)
	if !found {
		return Result{
			FixerID: f.ID(),
			Warnings: []Warning{{
				Code:    "no_toc_section",
				Message: fmt.Sprintf("no %q heading found; auto-TOC only refreshes an existing section", heading),
			}},
		}, nil
	}

	var toc strings.Builder
	for _, h := range headings {
		if h.level < 2 || h.level > 3 || h.text == heading {
			continue
		}
		indent := strings.Repeat("  ", h.level-2)
		anchor := slugify(h.text)
		fmt.Fprintf(&toc, "%s- [%s](#%s)\n", indent, h.text, anchor)
	}

	edit := Edit{Range: ByteRange{tocRange.Start, tocRange.End}, NewText: toc.String(), Reason: "refresh auto-generated TOC"}
	return finish(f.ID(), content, []Edit{edit}, cfg)
}

type headingRef struct {
	level int
	text  string
	start int
	end   int
}

func collectHeadings(content []byte) ([]headingRef, error) {
	md := goldmark.New()
	reader := text.NewReader(content)
	root := md.Parser().Parse(reader)

	var out []headingRef
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		if h, ok := n.(*ast.Heading); ok {
			lines := h.Lines()
			start, end := 0, 0
			if lines.Len() > 0 {
				start = lines.At(0).Start
				end = lines.At(lines.Len() - 1).Stop
			}
			out = append(out, headingRef{level: h.Level, text: string(h.Text(content)), start: start, end: end})
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

// findTOCSectionRange finds the byte range covering the body of the
// section headed by `heading` (everything after the heading line up to,
// but excluding, the next heading of the same or shallower level, or EOF).
func findTOCSectionRange(content []byte, heading string) (ByteRange, bool) {
	headings, err := collectHeadings(content)
	if err != nil {
		return ByteRange{}, false
	}
	idx := -1
	for i, h := range headings {
		if h.text == heading {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ByteRange{}, false
	}

	bodyStart := headings[idx].end
	if bodyStart < len(content) && content[bodyStart] == '\n' {
		bodyStart++
	}
	bodyEnd := len(content)
	for j := idx + 1; j < len(headings); j++ {
		if headings[j].level <= headings[idx].level {
			// headings[j].start is where the heading's text begins; back up
			// to the start of its line so the `#` marker stays outside.
			bodyEnd = headings[j].start
			for bodyEnd > bodyStart && content[bodyEnd-1] != '\n' {
				bodyEnd--
			}
			break
		}
	}
	return ByteRange{Start: bodyStart, End: bodyEnd}, true
}

var slugNonWord = regexp.MustCompile(`[^a-z0-9 -]`)
var slugSpaces = regexp.MustCompile(`\s+`)

func slugify(text string) string {
	s := strings.ToLower(text)
	s = slugNonWord.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// finish builds a Result, materializing Preview whenever there are edits,
// whatever cfg.DryRun says (ApplyAll composes the real content forward
// itself from the edits).
func finish(id string, content []byte, edits []Edit, cfg Config) (Result, error) {
	res := Result{FixerID: id, Edits: edits}
	if len(edits) > 0 {
		res.Preview = string(ApplyEdits(content, edits))
	}
	return res, nil
}
