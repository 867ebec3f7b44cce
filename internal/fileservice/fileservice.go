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
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plan"
	"github.com/pleme-io/typemill-sub012/internal/watch"
)

// backupCompressionLevel trades a little CPU for a much smaller in-memory
// backup set on a plan that touches many large files; 5 sits in brotli's
// middle ground between BestSpeed and BestCompression (§4.D.1).
const backupCompressionLevel = 5

// Config is the subset of workspace config that affects file service
// behavior: whether git integration is enabled (§4.D.6).
type Config struct {
	GitIntegration bool
	WorkspaceRoot  string
}

// FileService composes a LockManager and OperationQueue into the
// higher-level atomic actions described in §4.D, grounded on
// upbound-up/pkg/migration/exporter's afero.Afero usage and
// internal/undo's Do(fn) rollback-on-error transaction, generalized into
// applyEditPlan's backup/replay cycle.
type FileService struct {
	fs      afero.Fs
	locks   *LockManager
	queue   *OperationQueue
	vcs     *VCS
	log     logging.Logger
	watcher *watch.Watcher
}

// New returns a FileService backed by fs (an afero.Fs so tests can swap in
// afero.NewMemMapFs()), configured per cfg.
func New(fs afero.Fs, cfg Config, log logging.Logger) *FileService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &FileService{
		fs:    fs,
		locks: NewLockManager(),
		queue: NewOperationQueue(fs),
		vcs:   OpenVCS(cfg.WorkspaceRoot, cfg.GitIntegration),
		log:   log,
	}
}

// Stats exposes the operation queue's running statistics for
// server.getQueueStats.
func (fs *FileService) Stats() Stats { return fs.queue.Stats() }

// AttachWatcher wires an optional external-change watcher (§4.D.2): once
// attached, every write this FileService performs marks a self-write so
// the watcher doesn't mistake its own I/O for an external change, and
// IsPathStale reports paths the watcher observed change underneath it.
func (fs *FileService) AttachWatcher(w *watch.Watcher) { fs.watcher = w }

// IsPathStale reports whether path changed on disk outside this
// FileService's own writes, per the attached watcher. It always reports
// false when no watcher is attached; checksum comparison, not this, is
// what ApplyEditPlan's correctness actually relies on.
func (fs *FileService) IsPathStale(path string) bool {
	if fs.watcher == nil {
		return false
	}
	return fs.watcher.IsStale(path)
}

// markSelfWrite tells the attached watcher (if any) that path is about to
// be written by this FileService.
func (fs *FileService) markSelfWrite(path string) {
	if fs.watcher != nil {
		fs.watcher.MarkSelfWrite(path)
	}
}

// ApplyResult is the outcome of applyEditPlan.
type ApplyResult struct {
	ModifiedFiles []string
	CreatedFiles  []string
	DeletedFiles  []string
}

// backupEntry snapshots one file's pre-apply state so a failure can
// restore it exactly, including files that didn't exist (restored by
// deletion) and files that are about to be moved away (restored by
// moving back). content is brotli-compressed (§4.D.1); a plan touching
// many large files can hold the whole backup set in memory for the
// duration of ApplyEditPlan, so it is never kept decompressed at rest.
type backupEntry struct {
	existed bool
	content []byte
}

// decompressed returns entry's original, uncompressed content.
func (entry backupEntry) decompressed() ([]byte, error) {
	if len(entry.content) == 0 {
		return nil, nil
	}
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(entry.content)))
	if err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "decompress backup")
	}
	return out, nil
}

// compressBackup brotli-compresses data for storage in a backupEntry.
func compressBackup(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, backupCompressionLevel)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, errs.Wrap(err, errs.KindInternal, "compress backup")
	}
	if err := w.Close(); err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "compress backup")
	}
	return buf.Bytes(), nil
}

// ApplyEditPlan is the atomic primitive described in §4.D: it locks every
// touched path in canonical order, snapshots current content, applies
// content edits then Create/Delete/Move edits, and on any failure restores
// every file from the backup map before returning the original error.
func (fs *FileService) ApplyEditPlan(ctx context.Context, p *plan.Plan) (*ApplyResult, error) {
	paths := touchedPaths(p)
	unlock := fs.locks.LockSet(paths)
	defer unlock()

	backups := make(map[string]backupEntry, len(paths))
	for _, path := range paths {
		content, err := afero.ReadFile(fs.fs, path)
		if err != nil {
			backups[path] = backupEntry{existed: false}
			continue
		}
		compressed, err := compressBackup(content)
		if err != nil {
			return nil, err
		}
		backups[path] = backupEntry{existed: true, content: compressed}
	}

	result, err := fs.applyLocked(ctx, p, backups)
	if err != nil {
		if restoreErr := fs.restore(backups, result); restoreErr != nil {
			return nil, fmt.Errorf("apply failed (%w) and restore failed (%v)", err, restoreErr)
		}
		return nil, err
	}
	return result, nil
}

func (fs *FileService) applyLocked(ctx context.Context, p *plan.Plan, backups map[string]backupEntry) (*ApplyResult, error) {
	result := &ApplyResult{}

	sorted := plan.SortedEdits(p.Edits)
	byFile := plan.EditsByFile(sorted)

	// Step 1: in-place content edits (Replace/Insert/Delete), one file at
	// a time, materialized onto the backed-up content.
	for path, edits := range byFile {
		var inPlace []plan.TextEdit
		for _, e := range edits {
			if e.EditType == plan.EditReplace || e.EditType == plan.EditInsert || e.EditType == plan.EditDelete {
				inPlace = append(inPlace, e)
			}
		}
		if len(inPlace) == 0 {
			continue
		}
		base, err := backups[path].decompressed()
		if err != nil {
			return result, err
		}
		newContent, err := materialize(base, inPlace)
		if err != nil {
			return result, errs.Wrap(err, errs.KindInternal, "materialize edits for "+path)
		}
		fs.markSelfWrite(path)
		if err := fs.queue.Submit(ctx, Operation{Kind: OpWrite, Path: path, Content: newContent}); err != nil {
			return result, errs.Wrap(err, errs.KindIO, "write "+path)
		}
		if backups[path].existed {
			result.ModifiedFiles = append(result.ModifiedFiles, path)
		} else {
			result.CreatedFiles = append(result.CreatedFiles, path)
		}
	}

	// Step 2: Create edits (new files with no prior in-place content).
	for path, edits := range byFile {
		for _, e := range edits {
			if e.EditType != plan.EditCreate {
				continue
			}
			fs.markSelfWrite(path)
			if err := fs.queue.Submit(ctx, Operation{Kind: OpCreateFile, Path: path, Content: []byte(e.NewText)}); err != nil {
				return result, errs.Wrap(err, errs.KindIO, "create "+path)
			}
			result.CreatedFiles = append(result.CreatedFiles, path)
		}
	}

	// Step 3: Move edits.
	for path, edits := range byFile {
		for _, e := range edits {
			if e.EditType != plan.EditMove {
				continue
			}
			if err := fs.move(ctx, path, e.MoveDestination); err != nil {
				return result, errs.Wrap(err, errs.KindIO, "move "+path)
			}
			result.DeletedFiles = append(result.DeletedFiles, path)
			result.CreatedFiles = append(result.CreatedFiles, e.MoveDestination)
		}
	}

	// Step 4: plan-level deletions (deletePlan.deletions and any bare
	// Delete-kind edits that target a whole path rather than an in-file
	// span).
	for _, d := range p.Deletions {
		if err := fs.delete(ctx, d.Path); err != nil {
			return result, errs.Wrap(err, errs.KindIO, "delete "+d.Path)
		}
		result.DeletedFiles = append(result.DeletedFiles, d.Path)
	}

	return result, nil
}

func (fs *FileService) move(ctx context.Context, old, new string) error {
	fs.markSelfWrite(old)
	fs.markSelfWrite(new)
	if fs.vcs.Active() {
		if err := fs.vcs.Move(old, new); err == nil {
			return nil
		}
		// Fall through to a plain rename if the VCS-aware move fails
		// (e.g. path not tracked yet); the file must still move.
	}
	return fs.queue.Submit(ctx, Operation{Kind: OpRename, Path: old, Dest: new})
}

func (fs *FileService) delete(ctx context.Context, path string) error {
	fs.markSelfWrite(path)
	if fs.vcs.Active() {
		if err := fs.vcs.Delete(path); err == nil {
			return nil
		}
	}
	return fs.queue.Submit(ctx, Operation{Kind: OpDelete, Path: path})
}

// restore reverts every backed-up path to its pre-apply state: existing
// files are rewritten with their original content, files that didn't
// exist are removed (undoing a Create), and any file the failed apply
// moved is moved back.
func (fs *FileService) restore(backups map[string]backupEntry, partial *ApplyResult) error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if partial != nil {
		// Undo moves: CreatedFiles entries that correspond to a move
		// destination get moved back to their DeletedFiles source. We
		// can't always pair them positionally here since Create also
		// appends to CreatedFiles, so restoration for moves is handled by
		// the backup-content pass below: the original path regains its
		// content and the destination is removed.
	}

	for path, entry := range backups {
		if entry.existed {
			original, err := entry.decompressed()
			if err != nil {
				note(err)
				continue
			}
			note(afero.WriteFile(fs.fs, path, original, 0o644))
		} else {
			note(fs.fs.RemoveAll(path))
		}
	}
	if partial != nil {
		for _, created := range partial.CreatedFiles {
			if _, ok := backups[created]; !ok {
				note(fs.fs.RemoveAll(created))
			}
		}
	}
	return firstErr
}

// touchedPaths is the union of a plan's fileChecksums keys and every
// edit's FilePath/MoveDestination, the exact lock set §4.D.1 specifies.
func touchedPaths(p *plan.Plan) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	for path := range p.FileChecksums {
		add(path)
	}
	for _, e := range p.Edits {
		add(e.FilePath)
		add(e.MoveDestination)
	}
	for _, d := range p.Deletions {
		add(d.Path)
	}
	return out
}

// materialize applies a file's in-place edits (already sorted
// priority-desc, reverse-position) onto base content by walking the edits
// in that order and splicing each one's line/column span.
func materialize(base []byte, edits []plan.TextEdit) ([]byte, error) {
	lines := splitKeepNoNewline(base)
	for _, e := range edits {
		var err error
		lines, err = applyOneEdit(lines, e)
		if err != nil {
			return nil, err
		}
	}
	return []byte(joinLines(lines)), nil
}
