package errs

import (
	"errors"
	"testing"
)

func TestKindOfDefaultsToInternalForUnclassifiedErrors(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("expected KindInternal for an unclassified error, got %s", got)
	}
}

func TestKindOfExtractsWrappedKind(t *testing.T) {
	err := Wrap(errors.New("stale"), KindConflict, "checksum mismatch")
	if got := KindOf(err); got != KindConflict {
		t.Fatalf("expected KindConflict, got %s", got)
	}
	if !Is(err, KindConflict) {
		t.Fatalf("expected Is(err, KindConflict) to be true")
	}
}

func TestWrapNilCauseReturnsNil(t *testing.T) {
	if err := Wrap(nil, KindIO, "irrelevant"); err != nil {
		t.Fatalf("expected Wrap(nil, ...) to return nil, got %v", err)
	}
}

func TestWithDataAttachesPayload(t *testing.T) {
	err := WithData(New(KindValidationFailed, "command failed"), map[string]int{"exitCode": 1})
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected error to be an *Error")
	}
	data, ok := e.Data.(map[string]int)
	if !ok || data["exitCode"] != 1 {
		t.Fatalf("expected attached data to survive, got %+v", e.Data)
	}
}

func TestJSONRPCCodeMapsStandardKinds(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidRequest: CodeInvalidRequest,
		KindInvalidParams:  CodeInvalidParams,
		KindParse:          CodeParseError,
		KindConflict:       CodeInternalError,
		KindInternal:       CodeInternalError,
	}
	for kind, want := range cases {
		if got := JSONRPCCode(kind); got != want {
			t.Fatalf("JSONRPCCode(%s) = %d, want %d", kind, got, want)
		}
	}
}
