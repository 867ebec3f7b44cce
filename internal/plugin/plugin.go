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

// Package plugin defines the language-plugin capability trait and the
// registry that dispatches to a concrete plugin by extension or manifest
// filename. It is a generalization of upbound-up/internal/parser's single
// hardcoded Crossplane-YAML Parser into an N-language registry.
package plugin

import (
	"context"

	"github.com/pleme-io/typemill-sub012/internal/model"
)

// Metadata describes the static facts about a language a plugin supports.
type Metadata struct {
	Name             string
	Extensions       []string
	ManifestFilename string
	SourceDir        string
	EntryPoint       string
	ModuleSeparator  string
}

// Capabilities is the bitset of optional capability traits a plugin
// advertises beyond the required Parse/AnalyzeManifest/ListFunctions.
type Capabilities struct {
	Imports        bool
	Workspace      bool
	ProjectFactory bool
}

// ParseResult is the output of Parse: an opaque AST payload plus the
// symbols extracted from it.
type ParseResult struct {
	// AST is intentionally untyped JSON — callers that need structure walk
	// Symbols instead; AST is there for debugging/inspection tools.
	AST     any            `json:"ast"`
	Symbols []model.Symbol `json:"symbols"`
	// Degraded is true when Parse fell back to the regex/heuristic strategy
	// because the primary AST strategy failed or was unavailable. Parse
	// itself never errors for malformed input — it degrades instead.
	Degraded bool `json:"degraded"`
}

// ManifestData is the normalized view over a language's manifest file
// (Cargo.toml, package.json, go.mod, pom.xml, ...).
type ManifestData struct {
	Name            string
	Version         string
	Dependencies    map[string]string
	DevDependencies map[string]string
	// Raw is the manifest's own parsed representation (e.g. a toml.Tree,
	// a map[string]any from encoding/json) for callers that need fields
	// ManifestData does not normalize.
	Raw any
}

// Plugin is the capability trait every language plugin implements.
type Plugin interface {
	Metadata() Metadata
	Capabilities() Capabilities

	// Parse must succeed (possibly degraded) on any input; it never
	// returns an error for malformed source. It may return an error only
	// for I/O-adjacent failures the caller should see (not applicable when
	// source is already in memory, which is the common case).
	Parse(ctx context.Context, source []byte, uri string) (*ParseResult, error)

	// AnalyzeManifest parses the manifest file at path.
	AnalyzeManifest(ctx context.Context, path string) (*ManifestData, error)

	// ListFunctions returns function/method names found in source, using
	// whichever strategy is most reliable for this plugin, independent of
	// Parse.
	ListFunctions(ctx context.Context, source []byte) ([]string, error)

	// ImportSupport returns the plugin's import-rewrite capability, or
	// (nil, false) if it doesn't implement one.
	ImportSupport() (ImportSupport, bool)

	// WorkspaceSupport returns the plugin's workspace-manifest capability,
	// or (nil, false) if it doesn't implement one.
	WorkspaceSupport() (WorkspaceSupport, bool)

	// ProjectFactory returns the plugin's package-scaffolding capability,
	// or (nil, false) if it doesn't implement one.
	ProjectFactory() (ProjectFactory, bool)
}

// Template selects a scaffold variant for ProjectFactory.CreatePackage.
type Template string

// Known scaffold templates.
const (
	TemplateMinimal Template = "minimal"
	TemplateFull    Template = "full"
)

// PackageConfig configures ProjectFactory.CreatePackage.
type PackageConfig struct {
	Name     string
	Dir      string
	Template Template
}

// ProjectFactory scaffolds a new package/crate/module for a language.
type ProjectFactory interface {
	CreatePackage(ctx context.Context, cfg PackageConfig) error
}
