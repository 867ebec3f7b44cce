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
	"testing"

	"github.com/pleme-io/typemill-sub012/internal/model"
)

// fakePlugin is the minimal Plugin implementation needed to exercise the
// registry without pulling in a real language plugin.
type fakePlugin struct {
	md Metadata
}

func (f *fakePlugin) Metadata() Metadata           { return f.md }
func (f *fakePlugin) Capabilities() Capabilities   { return Capabilities{} }
func (f *fakePlugin) Parse(ctx context.Context, source []byte, uri string) (*ParseResult, error) {
	return &ParseResult{Symbols: []model.Symbol{}}, nil
}
func (f *fakePlugin) AnalyzeManifest(ctx context.Context, path string) (*ManifestData, error) {
	return &ManifestData{}, nil
}
func (f *fakePlugin) ListFunctions(ctx context.Context, source []byte) ([]string, error) {
	return nil, nil
}
func (f *fakePlugin) ImportSupport() (ImportSupport, bool)       { return nil, false }
func (f *fakePlugin) WorkspaceSupport() (WorkspaceSupport, bool) { return nil, false }
func (f *fakePlugin) ProjectFactory() (ProjectFactory, bool)     { return nil, false }

var _ Plugin = (*fakePlugin)(nil)

func TestRegistryPluginForExtensionCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakePlugin{md: Metadata{Name: "rust", Extensions: []string{".rs"}, ManifestFilename: "Cargo.toml"}})

	if _, ok := r.PluginFor(".rs"); !ok {
		t.Fatalf("expected a plugin registered for .rs")
	}
	if _, ok := r.PluginFor("RS"); !ok {
		t.Fatalf("expected extension lookup to be case-insensitive and tolerate a missing leading dot")
	}
	if _, ok := r.PluginFor(".go"); ok {
		t.Fatalf("expected no plugin for an unregistered extension")
	}
}

func TestRegistryPluginForManifest(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakePlugin{md: Metadata{Name: "rust", Extensions: []string{".rs"}, ManifestFilename: "Cargo.toml"}})

	if _, ok := r.PluginForManifest("Cargo.toml"); !ok {
		t.Fatalf("expected a plugin registered for Cargo.toml")
	}
	if _, ok := r.PluginForManifest("package.json"); ok {
		t.Fatalf("expected no plugin for an unregistered manifest")
	}
}

func TestRegistryLaterRegistrationWinsForSharedExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakePlugin{md: Metadata{Name: "first", Extensions: []string{".x"}}})
	r.Register(&fakePlugin{md: Metadata{Name: "second", Extensions: []string{".x"}}})

	p, ok := r.PluginFor(".x")
	if !ok || p.Metadata().Name != "second" {
		t.Fatalf("expected the later registration to win, got %+v", p.Metadata())
	}
}

func TestPluginForPathUsesExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakePlugin{md: Metadata{Name: "go", Extensions: []string{".go"}}})

	if _, ok := r.PluginForPath("/ws/internal/foo.go"); !ok {
		t.Fatalf("expected PluginForPath to resolve by extension")
	}
}

type fakeLister struct {
	files map[string]bool
}

func (f fakeLister) Exists(dir, name string) bool { return f.files[name] }

func TestDetectPackageManagerPrecedence(t *testing.T) {
	cases := []struct {
		name  string
		files map[string]bool
		want  PackageManager
	}{
		{"none", map[string]bool{}, PackageManagerNone},
		{"npm-only", map[string]bool{"package.json": true}, PackageManagerNPM},
		{"yarn-over-pnpm", map[string]bool{"package.json": true, "yarn.lock": true, "pnpm-lock.yaml": true}, PackageManagerYarn},
		{"pnpm-over-npm-lock", map[string]bool{"package.json": true, "pnpm-lock.yaml": true, "package-lock.json": true}, PackageManagerPNPM},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectPackageManager(fakeLister{files: tc.files}, "/ws")
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
