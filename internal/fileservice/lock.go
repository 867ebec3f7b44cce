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

// Package fileservice implements the coupled LockManager/OperationQueue
// pair and the FileService that composes them into applyEditPlan, the
// atomic primitive every mutating tool ultimately goes through (§4.D).
package fileservice

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LockManager issues per-path advisory write locks, keyed by the cleaned
// path alone: a lock on "a/b" and a lock on "a" are independent, so holding
// one does not block the other (a map[path]*sync.Mutex guarded by a short
// critical section, callers request in sorted order to avoid deadlock).
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu       sync.Mutex
	waiters  int
}

// NewLockManager returns an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*pathLock)}
}

// LockSet acquires write locks on every path in paths, in canonical
// (lexicographic) order. Only the listed paths are locked; their ancestors
// and descendants are not. It returns an unlock func that releases every
// acquired lock.
func (lm *LockManager) LockSet(paths []string) (unlock func()) {
	sorted := canonicalOrder(paths)

	held := make([]*pathLock, 0, len(sorted))
	for _, p := range sorted {
		l := lm.getOrCreate(p)
		lm.noteWaiter(p, 1)
		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		for _, p := range sorted {
			lm.noteWaiter(p, -1)
		}
	}
}

func (lm *LockManager) getOrCreate(path string) *pathLock {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	l, ok := lm.locks[path]
	if !ok {
		l = &pathLock{}
		lm.locks[path] = l
	}
	return l
}

func (lm *LockManager) noteWaiter(path string, delta int) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if l, ok := lm.locks[path]; ok {
		l.waiters += delta
		if l.waiters <= 0 {
			delete(lm.locks, path)
		}
	}
}

// canonicalOrder deduplicates and sorts paths lexicographically, which is
// sufficient deadlock-avoidance ordering because every caller in this
// package acquires the same globally-sorted set before touching the
// filesystem.
func canonicalOrder(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	var out []string
	for _, p := range paths {
		clean := filepath.Clean(p)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	sort.Strings(out)
	return out
}

// IsDescendant reports whether child is path-equal to or nested under
// ancestor.
func IsDescendant(ancestor, child string) bool {
	ancestor = filepath.Clean(ancestor)
	child = filepath.Clean(child)
	if ancestor == child {
		return true
	}
	return strings.HasPrefix(child, ancestor+string(filepath.Separator))
}
