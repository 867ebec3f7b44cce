package rust

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

type workspaceSupport struct{}

var membersArrayPattern = regexp.MustCompile(`(?s)members\s*=\s*\[(.*?)\]`)
var memberEntryPattern = regexp.MustCompile(`"([^"]+)"`)

// IsWorkspaceManifest implements plugin.WorkspaceSupport, grounded on
// workspace::is_workspace_manifest.
func (workspaceSupport) IsWorkspaceManifest(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrap(errs.Wrap(err, errs.KindIO, "read Cargo.toml"), "check workspace manifest")
	}
	return strings.Contains(string(data), "[workspace]"), nil
}

// ListWorkspaceMembers implements plugin.WorkspaceSupport, returning the
// relative member paths from the `[workspace] members = [...]` array.
func (workspaceSupport) ListWorkspaceMembers(ctx context.Context, manifestPath string) ([]string, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "read Cargo.toml"), "list workspace members")
	}
	m := membersArrayPattern.FindStringSubmatch(string(data))
	if m == nil {
		return nil, nil
	}
	var members []string
	for _, entry := range memberEntryPattern.FindAllStringSubmatch(m[1], -1) {
		members = append(members, entry[1])
	}
	return members, nil
}

// AddWorkspaceMember implements plugin.WorkspaceSupport, grounded on
// workspace::add_workspace_member: computes memberPath relative to the
// workspace root and appends it to the members array if not already
// present.
func (w workspaceSupport) AddWorkspaceMember(ctx context.Context, manifestPath, memberPath string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "read Cargo.toml"), "add workspace member")
	}
	content := string(data)

	root := filepath.Dir(manifestPath)
	rel, err := filepath.Rel(root, memberPath)
	if err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindInvalidParams, "compute relative workspace member path"), "add workspace member")
	}
	rel = filepath.ToSlash(rel)

	existing, err := w.ListWorkspaceMembers(ctx, manifestPath)
	if err != nil {
		return err
	}
	for _, m := range existing {
		if m == rel {
			return nil
		}
	}

	if !strings.Contains(content, "[workspace]") {
		content = strings.TrimRight(content, "\n") + "\n\n[workspace]\nmembers = []\n"
	}
	if !membersArrayPattern.MatchString(content) {
		content = strings.Replace(content, "[workspace]", "[workspace]\nmembers = []", 1)
	}

	content = membersArrayPattern.ReplaceAllStringFunc(content, func(block string) string {
		m := membersArrayPattern.FindStringSubmatch(block)
		inner := strings.TrimSpace(m[1])
		if inner == "" {
			return `members = ["` + rel + `"]`
		}
		return `members = [` + inner + `, "` + rel + `"]`
	})

	return os.WriteFile(manifestPath, []byte(content), 0o644)
}

// RemoveWorkspaceMember implements plugin.WorkspaceSupport.
func (w workspaceSupport) RemoveWorkspaceMember(ctx context.Context, manifestPath, memberPath string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "read Cargo.toml"), "remove workspace member")
	}
	content := string(data)

	root := filepath.Dir(manifestPath)
	rel, err := filepath.Rel(root, memberPath)
	if err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindInvalidParams, "compute relative workspace member path"), "remove workspace member")
	}
	rel = filepath.ToSlash(rel)

	content = membersArrayPattern.ReplaceAllStringFunc(content, func(block string) string {
		m := membersArrayPattern.FindStringSubmatch(block)
		var kept []string
		for _, entry := range memberEntryPattern.FindAllStringSubmatch(m[1], -1) {
			if entry[1] != rel {
				kept = append(kept, `"`+entry[1]+`"`)
			}
		}
		return "members = [" + strings.Join(kept, ", ") + "]"
	})

	return os.WriteFile(manifestPath, []byte(content), 0o644)
}

// UpdatePackageName implements plugin.WorkspaceSupport for the [package]
// name field.
func (workspaceSupport) UpdatePackageName(ctx context.Context, manifestPath, newName string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "read Cargo.toml"), "update package name")
	}
	namePattern := regexp.MustCompile(`(?m)^(\s*name\s*=\s*)"[^"]*"`)
	lines := strings.Split(string(data), "\n")
	inPackage := false
	for i, line := range lines {
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "[") {
			inPackage = trimmed == "[package]"
			continue
		}
		if inPackage {
			lines[i] = namePattern.ReplaceAllString(line, `${1}"`+newName+`"`)
		}
	}
	content := strings.Join(lines, "\n")
	return os.WriteFile(manifestPath, []byte(content), 0o644)
}

var _ plugin.WorkspaceSupport = workspaceSupport{}
