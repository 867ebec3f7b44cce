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

import "context"

// ImportRecord is one import statement found in a source file.
type ImportRecord struct {
	// Raw is the import path/specifier exactly as written in source
	// ("../util", "@scope/pkg", "github.com/foo/bar").
	Raw string
	// IsRelative is true for path-relative imports that a move/rename must
	// rewrite; false for absolute package identifiers that survive moves
	// unchanged.
	IsRelative bool
	Range      struct {
		StartLine, EndLine int
	}
}

// ImportSupport is the optional import-rewrite capability. All methods are
// pure and operate on a single file's content.
type ImportSupport interface {
	ParseImports(ctx context.Context, source []byte) ([]ImportRecord, error)

	// RewriteImportsForRename rewrites references to oldName as newName in
	// content, returning the new content and how many occurrences changed.
	// changeCount == 0 implies content is byte-identical to the input.
	RewriteImportsForRename(content []byte, oldName, newName string) (newContent []byte, changeCount int, err error)

	// RewriteImportsForMove resolves relative imports against the file's
	// old and new paths, rewriting only path-relative specifiers.
	RewriteImportsForMove(content []byte, oldPath, newPath string) (newContent []byte, changeCount int, err error)

	ContainsImport(content []byte, target string) bool

	AddImport(content []byte, target string) (newContent []byte, changed bool, err error)

	RemoveImport(content []byte, target string) (newContent []byte, changed bool, err error)
}

// WorkspaceSupport is the optional multi-package-manifest capability
// (Cargo workspaces, npm workspaces, .sln project lists, ...).
type WorkspaceSupport interface {
	IsWorkspaceManifest(ctx context.Context, path string) (bool, error)

	ListWorkspaceMembers(ctx context.Context, manifestPath string) ([]string, error)

	AddWorkspaceMember(ctx context.Context, manifestPath, memberPath string) error

	RemoveWorkspaceMember(ctx context.Context, manifestPath, memberPath string) error

	UpdatePackageName(ctx context.Context, manifestPath, newName string) error
}
