package markdownfix

import (
	"context"
	"testing"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plan"
)

func TestTrailingWhitespaceFixerStripsButKeepsNewline(t *testing.T) {
	content := []byte("hello   \nworld\n")
	res, err := TrailingWhitespaceFixer{}.Apply(context.Background(), content, Config{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Edits) != 1 {
		t.Fatalf("expected one edit, got %d", len(res.Edits))
	}
	if res.Preview != "hello\nworld\n" {
		t.Fatalf("got preview %q", res.Preview)
	}
}

func TestCodeFenceLanguageFixerTagsBareFence(t *testing.T) {
	content := []byte("```\ncode here\n```\n")
	res, err := CodeFenceLanguageFixer{}.Apply(context.Background(), content, Config{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Edits) != 1 {
		t.Fatalf("expected one edit for the opening bare fence, got %d", len(res.Edits))
	}
	if res.Preview != "```text\ncode here\n```\n" {
		t.Fatalf("got preview %q", res.Preview)
	}
}

func TestCodeFenceLanguageFixerLeavesTaggedFenceAlone(t *testing.T) {
	content := []byte("```go\ncode\n```\n")
	res, err := CodeFenceLanguageFixer{}.Apply(context.Background(), content, Config{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Edits) != 0 {
		t.Fatalf("expected no edits for an already-tagged fence, got %d", len(res.Edits))
	}
}

func TestMalformedHeadingFixerInsertsSpace(t *testing.T) {
	content := []byte("##Title\n\nbody\n")
	res, err := MalformedHeadingFixer{}.Apply(context.Background(), content, Config{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Preview != "## Title\n\nbody\n" {
		t.Fatalf("got preview %q", res.Preview)
	}
}

func TestReversedLinkFixerSwapsToCorrectForm(t *testing.T) {
	content := []byte("see (the docs)[https://example.com]\n")
	res, err := ReversedLinkFixer{}.Apply(context.Background(), content, Config{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Preview != "see [the docs](https://example.com)\n" {
		t.Fatalf("got preview %q", res.Preview)
	}
}

func TestReversedLinkFixerIgnoresURLFirstForm(t *testing.T) {
	content := []byte("(https://example.com)[a link]\n")
	res, err := ReversedLinkFixer{}.Apply(context.Background(), content, Config{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Edits) != 0 {
		t.Fatalf("expected no edits for a URL-first parenthetical, got %d", len(res.Edits))
	}
}

func TestAutoTOCFixerWarnsWhenSectionMissing(t *testing.T) {
	content := []byte("# Doc\n\n## Section One\n")
	res, err := AutoTOCFixer{}.Apply(context.Background(), content, Config{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != "no_toc_section" {
		t.Fatalf("expected a no_toc_section warning, got %+v", res.Warnings)
	}
}

func TestAutoTOCFixerRefreshesExistingSection(t *testing.T) {
	content := []byte("# Doc\n\n## Table of Contents\n\nstale\n\n## Section One\n\nbody\n")
	res, err := AutoTOCFixer{}.Apply(context.Background(), content, Config{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Edits) != 1 {
		t.Fatalf("expected one TOC-refresh edit, got %d", len(res.Edits))
	}
	if !contains(res.Preview, "- [Section One](#section-one)") {
		t.Fatalf("expected the refreshed TOC to list Section One, got %q", res.Preview)
	}
}

func TestApplyAllRejectsStaleHash(t *testing.T) {
	content := []byte("hello   \n")
	_, _, err := ApplyAll(context.Background(), content, Config{PreFixHash: "deadbeef"}, All())
	if err == nil {
		t.Fatalf("expected a stale-hash Conflict error")
	}
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("expected errs.KindConflict, got %v", err)
	}
}

func TestApplyAllAcceptsMatchingHash(t *testing.T) {
	content := []byte("hello   \n")
	hash := plan.Sha256Hex(content)
	out, results, err := ApplyAll(context.Background(), content, Config{PreFixHash: hash}, All())
	if err != nil {
		t.Fatalf("ApplyAll: %v", err)
	}
	if string(out) != "hello\n" {
		t.Fatalf("expected trailing whitespace stripped end-to-end, got %q", out)
	}
	if len(results) != len(All()) {
		t.Fatalf("expected one result per fixer, got %d", len(results))
	}
}

func TestApplyAllDryRunIgnoresHashMismatch(t *testing.T) {
	content := []byte("hello   \n")
	_, _, err := ApplyAll(context.Background(), content, Config{DryRun: true, PreFixHash: "deadbeef"}, All())
	if err != nil {
		t.Fatalf("expected dry run to skip the hash check, got %v", err)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
