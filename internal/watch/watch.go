// Package watch is the optional external-change tripwire described in
// SPEC_FULL.md's added §4.D.2: an `fsnotify`-backed watcher that a
// FileService can attach to a workspace root so edits made outside this
// process (a user's editor, `git checkout`, another tool) are noticed
// proactively instead of only being caught the next time a plan's
// checksums are re-read. It is an optimization layered on top of
// fileservice's checksum comparison, never a substitute for it, grounded
// on upbound-up/internal/xpls/server's fsnotify-driven reload loop.
package watch

import (
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
)

// selfWriteTTL bounds how long a MarkSelfWrite entry is honored before an
// observed event for that path is treated as external again; a write that
// takes longer than this to reach the filesystem is rare enough that
// treating the stale entry as external (a false positive, not a false
// negative) is the safe failure mode.
const selfWriteTTL = 2 * time.Second

// Watcher watches a directory tree and tracks which paths have changed
// underneath this process without going through the FileService that owns
// them.
type Watcher struct {
	fw  *fsnotify.Watcher
	log logging.Logger

	mu         sync.Mutex
	selfWrites map[string]time.Time
	stale      map[string]struct{}

	done chan struct{}
}

// New starts watching every directory under root (fsnotify has no native
// recursive mode, so the tree is walked once up front and each directory
// added individually, the same approach upbound-up's xpls server takes for
// workspace-wide reload triggers).
func New(root string, log logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addTreeToWatcher(fw, root); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		fw:         fw,
		log:        log,
		selfWrites: make(map[string]time.Time),
		stale:      make(map[string]struct{}),
		done:       make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the underlying fsnotify watcher and its event loop.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	return err
}

// MarkSelfWrite records that path is about to be written by the owning
// FileService, so the event the watcher is about to observe for it isn't
// mistaken for an external change.
func (w *Watcher) MarkSelfWrite(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selfWrites[filepath.Clean(path)] = time.Now()
}

// IsStale reports whether path has changed on disk since it was last
// observed, outside of a tracked self-write.
func (w *Watcher) IsStale(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.stale[filepath.Clean(path)]
	return ok
}

// ClearStale drops path's stale marker, e.g. once a plan touching it has
// been rebuilt against current content.
func (w *Watcher) ClearStale(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.stale, filepath.Clean(path))
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Debug("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.selfWrites[path]; ok {
		delete(w.selfWrites, path)
		if time.Since(t) < selfWriteTTL {
			return
		}
	}
	w.stale[path] = struct{}{}
}

// ignoredDirNames is a subset of the directories the analysis graph walk
// skips (internal/analysis/graph/graph.go's ignoredDirs, which also lists
// __pycache__, .idea and .vscode), so the watcher doesn't burn
// an inotify handle per node_modules/.git subdirectory.
var ignoredDirNames = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"target":       {},
	"dist":         {},
	"build":        {},
	".venv":        {},
}

func addTreeToWatcher(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := ignoredDirNames[d.Name()]; skip && path != root {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
