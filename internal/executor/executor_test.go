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

package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/fileservice"
	"github.com/pleme-io/typemill-sub012/internal/plan"
	"github.com/pleme-io/typemill-sub012/internal/watch"
)

func newTestExecutor(t *testing.T) (afero.Fs, *Executor) {
	t.Helper()
	fs := afero.NewMemMapFs()
	svc := fileservice.New(fs, fileservice.Config{}, nil)
	return fs, New(fs, svc, nil)
}

// TestExecuteRejectsStaleChecksum is §8 seed scenario 2: a plan built
// against a snapshot that has since changed on disk is rejected with a
// Conflict error and the file is left untouched.
func TestExecuteRejectsStaleChecksum(t *testing.T) {
	fs, ex := newTestExecutor(t)
	if err := afero.WriteFile(fs, "/ws/a.go", []byte("package a\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := &plan.Plan{
		PlanType:      plan.TypeRename,
		FileChecksums: map[string]string{"/ws/a.go": "0000000000000000000000000000000000000000000000000000000000000000"[:64]},
		Edits: []plan.TextEdit{
			{FilePath: "/ws/a.go", EditType: plan.EditReplace, Location: plan.Location{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 7}, NewText: "library"},
		},
	}

	_, err := ex.Execute(context.Background(), p, Options{ValidateChecksums: true})
	if err == nil {
		t.Fatalf("expected a stale-checksum Conflict error")
	}
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("expected errs.KindConflict, got %v", err)
	}

	got, _ := afero.ReadFile(fs, "/ws/a.go")
	if string(got) != "package a\n" {
		t.Fatalf("expected the file untouched after a rejected plan, got %q", got)
	}
}

// TestExecuteDryRunNeverTouchesDisk is §8 invariant #3: DryRun computes
// the same file classification Execute would report without writing.
func TestExecuteDryRunNeverTouchesDisk(t *testing.T) {
	fs, ex := newTestExecutor(t)
	original := []byte("package a\n")
	if err := afero.WriteFile(fs, "/ws/a.go", original, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := &plan.Plan{
		PlanType:      plan.TypeRename,
		FileChecksums: map[string]string{"/ws/a.go": plan.Sha256Hex(original)},
		Edits: []plan.TextEdit{
			{FilePath: "/ws/a.go", EditType: plan.EditReplace, Location: plan.Location{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 7}, NewText: "library"},
		},
	}

	result, err := ex.Execute(context.Background(), p, Options{ValidateChecksums: true, DryRun: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || result.RollbackAvailable {
		t.Fatalf("expected a successful, non-rollbackable dry run, got %+v", result)
	}
	if len(result.AppliedFiles) != 1 || result.AppliedFiles[0] != "/ws/a.go" {
		t.Fatalf("expected a.go reported as applied, got %+v", result.AppliedFiles)
	}

	got, err := afero.ReadFile(fs, "/ws/a.go")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != string(original) {
		t.Fatalf("expected dry run to leave file content untouched, got %q", got)
	}
}

// TestExecuteRunsValidationAfterApply is §8 seed scenario 5: a
// successful apply followed by a failing validation command reports
// Validation details and a non-nil error, while the apply itself
// already happened (no second rollback of a successfully applied plan).
func TestExecuteRunsValidationAfterApply(t *testing.T) {
	fs, ex := newTestExecutor(t)
	original := []byte("package a\n")
	if err := afero.WriteFile(fs, "/ws/a.go", original, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := &plan.Plan{
		PlanType:      plan.TypeRename,
		FileChecksums: map[string]string{"/ws/a.go": plan.Sha256Hex(original)},
		Edits: []plan.TextEdit{
			{FilePath: "/ws/a.go", EditType: plan.EditReplace, Location: plan.Location{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 7}, NewText: "library"},
		},
	}

	result, err := ex.Execute(context.Background(), p, Options{
		ValidateChecksums: true,
		Validation:        &Validation{Command: []string{"false"}},
	})
	if err == nil {
		t.Fatalf("expected the failing validation command to surface an error")
	}
	if !errs.Is(err, errs.KindValidationFailed) {
		t.Fatalf("expected errs.KindValidationFailed, got %v", err)
	}
	if result == nil || result.Validation == nil || result.Validation.ExitCode == 0 {
		t.Fatalf("expected a non-zero validation exit code recorded, got %+v", result)
	}
	if result.RollbackAvailable {
		t.Fatalf("expected RollbackAvailable=false once validation fails post-apply, got true")
	}

	got, err := afero.ReadFile(fs, "/ws/a.go")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "library a\n" {
		t.Fatalf("expected the edit to have been applied despite validation failing, got %q", got)
	}
}

// TestExecuteFailsFastOnWatcherObservedChange is §4.D.2: once an attached
// watcher has seen an external change for a path, checkChecksums rejects
// the plan as Conflict before re-reading the file, the same outcome a
// stale checksum would produce (§8 seed scenario 2) but cheaper.
func TestExecuteFailsFastOnWatcherObservedChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	original := []byte("package a\n")
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	realFs := afero.NewOsFs()
	svc := fileservice.New(realFs, fileservice.Config{}, nil)
	w, err := watch.New(dir, nil)
	if err != nil {
		t.Fatalf("watch.New: %v", err)
	}
	defer w.Close()
	svc.AttachWatcher(w)
	ex := New(realFs, svc, nil)

	if err := os.WriteFile(path, []byte("package a // changed\n"), 0o644); err != nil {
		t.Fatalf("external write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !w.IsStale(path) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !w.IsStale(path) {
		t.Fatalf("expected the watcher to observe the external write")
	}

	p := &plan.Plan{
		PlanType:      plan.TypeRename,
		FileChecksums: map[string]string{path: plan.Sha256Hex(original)},
		Edits: []plan.TextEdit{
			{FilePath: path, EditType: plan.EditReplace, Location: plan.Location{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 7}, NewText: "library"},
		},
	}

	_, err = ex.Execute(context.Background(), p, Options{ValidateChecksums: true})
	if err == nil {
		t.Fatalf("expected the watcher-observed change to fail the plan as Conflict")
	}
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("expected errs.KindConflict, got %v", err)
	}
}

func TestExecuteSuccessfulValidation(t *testing.T) {
	fs, ex := newTestExecutor(t)
	original := []byte("package a\n")
	if err := afero.WriteFile(fs, "/ws/a.go", original, 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	p := &plan.Plan{
		PlanType:      plan.TypeRename,
		FileChecksums: map[string]string{"/ws/a.go": plan.Sha256Hex(original)},
		Edits: []plan.TextEdit{
			{FilePath: "/ws/a.go", EditType: plan.EditReplace, Location: plan.Location{StartLine: 0, StartCol: 0, EndLine: 0, EndCol: 7}, NewText: "library"},
		},
	}

	result, err := ex.Execute(context.Background(), p, Options{
		ValidateChecksums: true,
		Validation:        &Validation{Command: []string{"true"}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Validation == nil || result.Validation.ExitCode != 0 {
		t.Fatalf("expected a zero validation exit code, got %+v", result.Validation)
	}
	if !result.RollbackAvailable {
		t.Fatalf("expected RollbackAvailable for a disk-applying execute")
	}
}
