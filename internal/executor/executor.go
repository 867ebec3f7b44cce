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

// Package executor applies an approved plan.Plan to disk (§4.H): validate
// checksums, hand the plan to the file service, optionally run a caller
// supplied validation command, and report what happened. The staged
// validate-then-apply-then-verify shape mirrors
// upbound-up/pkg/migration/exporter/export.go's archive-then-validate
// pipeline, generalized from a fixed archive format to an arbitrary Plan.
package executor

import (
	"context"
	"os/exec"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/fileservice"
	"github.com/pleme-io/typemill-sub012/internal/plan"
)

// Validation describes an external command to run after a plan applies
// cleanly, e.g. a build or test invocation the caller wants gated on.
type Validation struct {
	Command []string
	Dir     string
	Timeout time.Duration
}

// Options configures a single Execute call.
type Options struct {
	// ValidateChecksums, when true (the default the caller should apply
	// when unset), rejects the plan with a Conflict error if any of
	// plan.FileChecksums no longer matches the file's current content —
	// the optimistic-concurrency guard the whole system relies on for
	// plans built against a snapshot that may have gone stale.
	ValidateChecksums bool
	// DryRun computes the same file lists Execute would report without
	// touching disk or running Validation.
	DryRun bool
	// Validation, if non-nil, runs once the plan has been applied.
	Validation *Validation
}

// ValidationResult records the outcome of a configured Validation command.
type ValidationResult struct {
	Command  []string `json:"command"`
	ExitCode int      `json:"exitCode"`
	Output   string   `json:"output"`
	TimedOut bool     `json:"timedOut"`
}

// Result is execute's outcome (§4.H).
type Result struct {
	Success          bool               `json:"success"`
	AppliedFiles     []string           `json:"appliedFiles"`
	CreatedFiles     []string           `json:"createdFiles"`
	DeletedFiles     []string           `json:"deletedFiles"`
	Warnings         []plan.Warning     `json:"warnings,omitempty"`
	Validation       *ValidationResult  `json:"validation,omitempty"`
	RollbackAvailable bool              `json:"rollbackAvailable"`
}

// Executor applies plans through a FileService.
type Executor struct {
	fs  afero.Fs
	svc *fileservice.FileService
	log logging.Logger
}

// New returns an Executor that applies plans through svc, reading checksum
// verification content from fs (the same filesystem svc was built over).
func New(fs afero.Fs, svc *fileservice.FileService, log logging.Logger) *Executor {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Executor{fs: fs, svc: svc, log: log}
}

// Execute applies p per opts, per §4.H's five-step contract.
func (ex *Executor) Execute(ctx context.Context, p *plan.Plan, opts Options) (*Result, error) {
	if opts.ValidateChecksums {
		if err := ex.checkChecksums(p); err != nil {
			return nil, err
		}
	}

	if opts.DryRun {
		applied, created, deleted := dryRunFileLists(p)
		return &Result{
			Success:           true,
			AppliedFiles:      applied,
			CreatedFiles:      created,
			DeletedFiles:      deleted,
			Warnings:          p.Warnings,
			RollbackAvailable: false,
		}, nil
	}

	applyResult, err := ex.svc.ApplyEditPlan(ctx, p)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Success:           true,
		AppliedFiles:      applyResult.ModifiedFiles,
		CreatedFiles:      applyResult.CreatedFiles,
		DeletedFiles:      applyResult.DeletedFiles,
		Warnings:          p.Warnings,
		RollbackAvailable: true,
	}

	if opts.Validation != nil {
		vr, err := ex.runValidation(ctx, *opts.Validation)
		result.Validation = vr
		if err != nil {
			ex.log.Debug("plan validation failed", "error", err)
			result.RollbackAvailable = false
			return result, errs.WithData(errs.New(errs.KindValidationFailed, "post-apply validation failed"), vr)
		}
	}

	return result, nil
}

// checkChecksums rejects p with a Conflict error if any path in
// p.FileChecksums has changed on disk since the plan was built.
func (ex *Executor) checkChecksums(p *plan.Plan) error {
	for path, want := range p.FileChecksums {
		if ex.svc.IsPathStale(path) {
			return errs.WithData(
				errs.New(errs.KindConflict, "file changed since plan was created: "+path),
				map[string]string{"path": path, "expected": want},
			)
		}
		content, err := afero.ReadFile(ex.fs, path)
		if err != nil {
			return errs.Wrap(err, errs.KindConflict, "read "+path+" to verify checksum")
		}
		got := plan.Sha256Hex(content)
		if got != want {
			return errs.WithData(
				errs.New(errs.KindConflict, "file changed since plan was created: "+path),
				map[string]string{"path": path, "expected": want, "actual": got},
			)
		}
	}
	return nil
}

// dryRunFileLists reports what Execute would touch without applying
// anything, classifying each edit the same way ApplyEditPlan's result
// does (modified vs. created vs. deleted).
func dryRunFileLists(p *plan.Plan) (applied, created, deleted []string) {
	for _, e := range p.Edits {
		switch e.EditType {
		case plan.EditCreate:
			created = append(created, e.FilePath)
		case plan.EditMove:
			deleted = append(deleted, e.FilePath)
			created = append(created, e.MoveDestination)
		case plan.EditReplace, plan.EditInsert, plan.EditDelete:
			if _, existed := p.FileChecksums[e.FilePath]; existed {
				applied = append(applied, e.FilePath)
			} else {
				created = append(created, e.FilePath)
			}
		}
	}
	for _, d := range p.Deletions {
		deleted = append(deleted, d.Path)
	}
	return applied, created, deleted
}

// runValidation spawns opts.Command, returning a ValidationResult and a
// non-nil error on a non-zero exit or timeout. There's no ecosystem
// library in the pack for "run an arbitrary external command with a
// timeout" beyond what os/exec + context already does, so this stays on
// the standard library by design.
func (ex *Executor) runValidation(ctx context.Context, v Validation) (*ValidationResult, error) {
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if len(v.Command) == 0 {
		return nil, errs.New(errs.KindInvalidParams, "validation command is empty")
	}

	cmd := exec.CommandContext(cctx, v.Command[0], v.Command[1:]...)
	if v.Dir != "" {
		cmd.Dir = v.Dir
	}
	out, runErr := cmd.CombinedOutput()

	vr := &ValidationResult{
		Command: v.Command,
		Output:  string(out),
	}
	if cctx.Err() == context.DeadlineExceeded {
		vr.TimedOut = true
		vr.ExitCode = -1
		return vr, errs.New(errs.KindValidationFailed, "validation command timed out")
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			vr.ExitCode = exitErr.ExitCode()
		} else {
			vr.ExitCode = -1
		}
		return vr, errs.Wrap(runErr, errs.KindValidationFailed, "validation command failed")
	}
	vr.ExitCode = 0
	return vr, nil
}
