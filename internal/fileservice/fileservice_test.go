// Copyright 2024 Upbound Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fileservice

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/plan"
)

func newTestService(t *testing.T) (afero.Fs, *FileService) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return fs, New(fs, Config{}, nil)
}

// TestApplyEditPlanModifiesFile covers the ordinary, successful path: an
// in-place Replace edit is materialized and written through the queue.
func TestApplyEditPlanModifiesFile(t *testing.T) {
	fs, svc := newTestService(t)
	if err := afero.WriteFile(fs, "/ws/a.go", []byte("package a\n\nfunc Foo() {}\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := &plan.Plan{
		PlanType:      plan.TypeRename,
		FileChecksums: map[string]string{"/ws/a.go": plan.Sha256Hex([]byte("package a\n\nfunc Foo() {}\n"))},
		Edits: []plan.TextEdit{
			{FilePath: "/ws/a.go", EditType: plan.EditReplace, Location: plan.Location{StartLine: 2, StartCol: 5, EndLine: 2, EndCol: 8}, NewText: "Bar"},
		},
	}

	result, err := svc.ApplyEditPlan(context.Background(), p)
	if err != nil {
		t.Fatalf("ApplyEditPlan: %v", err)
	}
	if len(result.ModifiedFiles) != 1 || result.ModifiedFiles[0] != "/ws/a.go" {
		t.Fatalf("expected a.go reported modified, got %+v", result)
	}

	got, err := afero.ReadFile(fs, "/ws/a.go")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	want := "package a\n\nfunc Bar() {}\n"
	if string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestApplyEditPlanRestoresOnFailure is §8 invariant #1: on any internal
// failure, every touched file reverts to its pre-apply content.
func TestApplyEditPlanRestoresOnFailure(t *testing.T) {
	fs, svc := newTestService(t)
	original := []byte("package a\nfunc Foo() {}\n")
	if err := afero.WriteFile(fs, "/ws/a.go", original, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := &plan.Plan{
		PlanType:      plan.TypeRename,
		FileChecksums: map[string]string{"/ws/a.go": plan.Sha256Hex(original)},
		Edits: []plan.TextEdit{
			// StartLine 99 is out of range for a 2-line file: materialize
			// fails and the whole apply must roll back.
			{FilePath: "/ws/a.go", EditType: plan.EditReplace, Location: plan.Location{StartLine: 99, StartCol: 0, EndLine: 99, EndCol: 1}, NewText: "x"},
		},
	}

	if _, err := svc.ApplyEditPlan(context.Background(), p); err == nil {
		t.Fatalf("expected ApplyEditPlan to fail for an out-of-range edit")
	}

	got, err := afero.ReadFile(fs, "/ws/a.go")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != string(original) {
		t.Fatalf("expected content restored to %q, got %q", original, got)
	}
}

// TestApplyEditPlanRestoresCreatedFileOnLaterFailure: a plan that creates
// one file successfully but fails on a later step (here, moving a
// nonexistent source) must remove the created file too (the
// "recreate/undo Create" half of §4.D.7).
func TestApplyEditPlanRestoresCreatedFileOnLaterFailure(t *testing.T) {
	fs, svc := newTestService(t)

	p := &plan.Plan{
		PlanType:      plan.TypeExtract,
		FileChecksums: map[string]string{},
		Edits: []plan.TextEdit{
			{FilePath: "/ws/new.go", EditType: plan.EditCreate, NewText: "package a\n"},
			{FilePath: "/ws/missing.go", EditType: plan.EditMove, MoveDestination: "/ws/elsewhere.go"},
		},
	}

	if _, err := svc.ApplyEditPlan(context.Background(), p); err == nil {
		t.Fatalf("expected ApplyEditPlan to fail when moving a nonexistent source")
	}

	if exists, _ := afero.Exists(fs, "/ws/new.go"); exists {
		t.Fatalf("expected the created file to be rolled back")
	}
}

func TestStatsExposesQueueCounters(t *testing.T) {
	fs, svc := newTestService(t)
	if err := afero.WriteFile(fs, "/ws/a.go", []byte("x\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	p := &plan.Plan{
		PlanType:      plan.TypeRename,
		FileChecksums: map[string]string{"/ws/a.go": plan.Sha256Hex([]byte("x\n"))},
		Edits: []plan.TextEdit{
			{FilePath: "/ws/a.go", EditType: plan.EditReplace, Location: plan.Location{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 1}, NewText: "y"},
		},
	}
	if _, err := svc.ApplyEditPlan(context.Background(), p); err != nil {
		t.Fatalf("ApplyEditPlan: %v", err)
	}
	stats := svc.Stats()
	if stats.Completed == 0 {
		t.Fatalf("expected at least one completed queue operation, got %+v", stats)
	}
}
