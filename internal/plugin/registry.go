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

package plugin

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
)

const (
	errUnsupportedExt      = "no plugin registered for extension"
	errUnsupportedManifest = "no plugin registered for manifest"
)

// Registry is a read-mostly store of language plugins, keyed by
// canonicalized extension and by manifest filename. It is initialized once
// at startup and is safe for concurrent reads, matching the read-mostly
// registry idiom in upbound-up/internal/xpkg/snapshot.
type Registry struct {
	mu         sync.RWMutex
	byExt      map[string]Plugin
	byManifest map[string]Plugin
	ordered    []Plugin
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt:      make(map[string]Plugin),
		byManifest: make(map[string]Plugin),
	}
}

// Register adds p to the registry under every extension and manifest
// filename it declares. Later registrations for the same key win, so
// callers should register plugins in priority order.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()

	md := p.Metadata()
	for _, ext := range md.Extensions {
		r.byExt[canonicalExt(ext)] = p
	}
	if md.ManifestFilename != "" {
		r.byManifest[md.ManifestFilename] = p
	}
	r.ordered = append(r.ordered, p)
}

// PluginFor returns the plugin registered for ext (with or without a
// leading dot), or (nil, false) if none is registered.
func (r *Registry) PluginFor(ext string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExt[canonicalExt(ext)]
	return p, ok
}

// PluginForManifest returns the plugin that owns the manifest file named
// filename (e.g. "Cargo.toml", "package.json"), or (nil, false).
func (r *Registry) PluginForManifest(filename string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byManifest[filename]
	return p, ok
}

// IterPlugins calls fn for every registered plugin exactly once, in
// registration order, stopping early if fn returns false.
func (r *Registry) IterPlugins(fn func(Plugin) bool) {
	r.mu.RLock()
	ordered := append([]Plugin(nil), r.ordered...)
	r.mu.RUnlock()

	for _, p := range ordered {
		if !fn(p) {
			return
		}
	}
}

// PluginForPath is a convenience wrapper resolving a plugin by a file
// path's extension.
func (r *Registry) PluginForPath(path string) (Plugin, bool) {
	return r.PluginFor(filepath.Ext(path))
}

func canonicalExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// lockFilePrecedence orders package-manager lock files from highest to
// lowest priority when multiple are present alongside package.json.
var lockFilePrecedence = []string{"yarn.lock", "pnpm-lock.yaml", "package-lock.json"}

// PackageManager identifies an npm-ecosystem package manager.
type PackageManager string

// Known package managers.
const (
	PackageManagerYarn PackageManager = "yarn"
	PackageManagerPNPM PackageManager = "pnpm"
	PackageManagerNPM  PackageManager = "npm"
	PackageManagerNone PackageManager = ""
)

// DirLister abstracts the directory listing needed by DetectPackageManager
// and DetectProjectLanguage so both can be unit tested without a real
// filesystem.
type DirLister interface {
	// Exists reports whether name exists directly inside dir.
	Exists(dir, name string) bool
}

// DetectPackageManager inspects dir for lock-file precedence
// (yarn.lock > pnpm-lock.yaml > package-lock.json) and returns the
// winning package manager, or PackageManagerNone if dir has no
// package.json at all.
func DetectPackageManager(lister DirLister, dir string) PackageManager {
	if !lister.Exists(dir, "package.json") {
		return PackageManagerNone
	}
	for _, lock := range lockFilePrecedence {
		if lister.Exists(dir, lock) {
			switch lock {
			case "yarn.lock":
				return PackageManagerYarn
			case "pnpm-lock.yaml":
				return PackageManagerPNPM
			case "package-lock.json":
				return PackageManagerNPM
			}
		}
	}
	return PackageManagerNPM
}

// DetectProjectLanguage iterates the registry's plugins and returns the
// name of the first one whose manifest filename exists in dir.
func (r *Registry) DetectProjectLanguage(ctx context.Context, lister DirLister, dir string) (string, error) {
	var found string
	r.IterPlugins(func(p Plugin) bool {
		md := p.Metadata()
		if md.ManifestFilename != "" && lister.Exists(dir, md.ManifestFilename) {
			found = md.Name
			return false
		}
		return true
	})
	if found == "" {
		return "", errors.Wrap(errs.New(errs.KindNotFound, errUnsupportedManifest), "detect project language")
	}
	return found, nil
}
