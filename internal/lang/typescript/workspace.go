package typescript

import (
	"context"
	"path/filepath"

	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

type workspaceSupport struct{}

// IsWorkspaceManifest implements plugin.WorkspaceSupport: package.json
// declares a workspace when it carries a non-empty top-level "workspaces"
// field (npm/yarn) array or object.
func (workspaceSupport) IsWorkspaceManifest(ctx context.Context, path string) (bool, error) {
	pkg, err := readRawPackageJSON(path)
	if err != nil {
		return false, err
	}
	switch v := pkg["workspaces"].(type) {
	case []any:
		return len(v) > 0, nil
	case map[string]any:
		return len(v) > 0, nil
	}
	return false, nil
}

// ListWorkspaceMembers implements plugin.WorkspaceSupport, returning the
// glob patterns from the "workspaces" array (or its "packages" key for the
// Yarn object form).
func (workspaceSupport) ListWorkspaceMembers(ctx context.Context, manifestPath string) ([]string, error) {
	pkg, err := readRawPackageJSON(manifestPath)
	if err != nil {
		return nil, err
	}
	return extractWorkspaceGlobs(pkg["workspaces"]), nil
}

func extractWorkspaceGlobs(v any) []string {
	switch val := v.(type) {
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		return extractWorkspaceGlobs(val["packages"])
	}
	return nil
}

// AddWorkspaceMember implements plugin.WorkspaceSupport, appending the
// member's directory-relative glob to the "workspaces" array if absent.
func (workspaceSupport) AddWorkspaceMember(ctx context.Context, manifestPath, memberPath string) error {
	pkg, err := readRawPackageJSON(manifestPath)
	if err != nil {
		return err
	}
	root := filepath.Dir(manifestPath)
	rel, err := filepath.Rel(root, memberPath)
	if err != nil {
		return err
	}
	rel = filepath.ToSlash(rel)

	globs := extractWorkspaceGlobs(pkg["workspaces"])
	for _, g := range globs {
		if g == rel {
			return nil
		}
	}
	pkg["workspaces"] = append(globs, rel)
	return writePackageJSON(manifestPath, pkg)
}

// RemoveWorkspaceMember implements plugin.WorkspaceSupport.
func (workspaceSupport) RemoveWorkspaceMember(ctx context.Context, manifestPath, memberPath string) error {
	pkg, err := readRawPackageJSON(manifestPath)
	if err != nil {
		return err
	}
	root := filepath.Dir(manifestPath)
	rel, err := filepath.Rel(root, memberPath)
	if err != nil {
		return err
	}
	rel = filepath.ToSlash(rel)

	globs := extractWorkspaceGlobs(pkg["workspaces"])
	kept := make([]string, 0, len(globs))
	for _, g := range globs {
		if g != rel {
			kept = append(kept, g)
		}
	}
	pkg["workspaces"] = kept
	return writePackageJSON(manifestPath, pkg)
}

// UpdatePackageName implements plugin.WorkspaceSupport for the top-level
// "name" field.
func (workspaceSupport) UpdatePackageName(ctx context.Context, manifestPath, newName string) error {
	pkg, err := readRawPackageJSON(manifestPath)
	if err != nil {
		return err
	}
	pkg["name"] = newName
	return writePackageJSON(manifestPath, pkg)
}

var _ plugin.WorkspaceSupport = workspaceSupport{}
