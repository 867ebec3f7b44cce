package csharp

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/google/uuid"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// projectPattern matches a .sln "Project(...)" entry, grounded on
// mill-lang-csharp's PROJECT_REGEX.
var projectPattern = regexp.MustCompile(`Project\("\{([^}]+)\}"\) = "([^"]+)", "([^"]+)", "\{([^}]+)\}"`)

const csharpProjectTypeGUID = "FAE04EC0-301F-11D3-BF4B-00C04F79EFBC"

type workspaceSupport struct{}

// IsWorkspaceManifest implements plugin.WorkspaceSupport for .sln files.
func (workspaceSupport) IsWorkspaceManifest(ctx context.Context, path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrap(errs.Wrap(err, errs.KindIO, "read solution file"), "check workspace manifest")
	}
	return strings.HasPrefix(strings.TrimSpace(string(raw)), "Microsoft Visual Studio Solution File"), nil
}

// ListWorkspaceMembers implements plugin.WorkspaceSupport, returning each
// referenced project's relative path.
func (workspaceSupport) ListWorkspaceMembers(ctx context.Context, manifestPath string) ([]string, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "read solution file"), "list workspace members")
	}
	return listSlnMembers(string(raw)), nil
}

func listSlnMembers(content string) []string {
	var members []string
	for _, m := range projectPattern.FindAllStringSubmatch(content, -1) {
		members = append(members, m[3])
	}
	return members
}

// AddWorkspaceMember implements plugin.WorkspaceSupport, inserting a new
// Project/EndProject block before the "Global" section and wiring default
// Debug/Release configuration entries, grounded on
// CsharpWorkspaceSupport::add_workspace_member.
func (workspaceSupport) AddWorkspaceMember(ctx context.Context, manifestPath, memberPath string) error {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "read solution file"), "add workspace member")
	}
	root := filepath.Dir(manifestPath)
	rel, err := filepath.Rel(root, memberPath)
	if err != nil {
		return errors.Wrap(err, "add workspace member")
	}
	rel = filepath.FromSlash(rel)

	content := string(raw)
	for _, existing := range listSlnMembers(content) {
		if existing == rel {
			return nil
		}
	}

	projectName := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	projectGUID := strings.ToUpper(uuid.New().String())

	lines := strings.Split(content, "\n")
	newProjectLine := `Project("{` + csharpProjectTypeGUID + `}") = "` + projectName + `", "` + rel + `", "{` + projectGUID + `}"`

	globalIdx := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "Global" {
			globalIdx = i
			break
		}
	}
	if globalIdx >= 0 {
		lines = insertLinesAt(lines, globalIdx, []string{newProjectLine, "EndProject"})
	} else {
		lines = append(lines, newProjectLine, "EndProject")
	}

	configIdx := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "GlobalSection(ProjectConfigurationPlatforms) = postSolution" {
			configIdx = i
			break
		}
	}
	if configIdx >= 0 {
		configs := []string{
			"\t\t{" + projectGUID + "}.Debug|Any CPU.ActiveCfg = Debug|Any CPU",
			"\t\t{" + projectGUID + "}.Debug|Any CPU.Build.0 = Debug|Any CPU",
			"\t\t{" + projectGUID + "}.Release|Any CPU.ActiveCfg = Release|Any CPU",
			"\t\t{" + projectGUID + "}.Release|Any CPU.Build.0 = Release|Any CPU",
		}
		lines = insertLinesAt(lines, configIdx+1, configs)
	}

	return os.WriteFile(manifestPath, []byte(strings.Join(lines, "\n")), 0o644)
}

func insertLinesAt(lines []string, idx int, newLines []string) []string {
	out := make([]string, 0, len(lines)+len(newLines))
	out = append(out, lines[:idx]...)
	out = append(out, newLines...)
	out = append(out, lines[idx:]...)
	return out
}

// RemoveWorkspaceMember implements plugin.WorkspaceSupport, deleting the
// matching Project/EndProject block and any configuration-platform lines
// referencing its GUID.
func (workspaceSupport) RemoveWorkspaceMember(ctx context.Context, manifestPath, memberPath string) error {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "read solution file"), "remove workspace member")
	}
	root := filepath.Dir(manifestPath)
	rel, err := filepath.Rel(root, memberPath)
	if err != nil {
		return errors.Wrap(err, "remove workspace member")
	}
	rel = filepath.FromSlash(rel)

	content := string(raw)
	var projectGUID string
	for _, m := range projectPattern.FindAllStringSubmatch(content, -1) {
		if m[3] == rel {
			projectGUID = m[4]
			break
		}
	}
	if projectGUID == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	idx := -1
	for i, line := range lines {
		if strings.Contains(line, rel) {
			idx = i
			break
		}
	}
	if idx >= 0 {
		lines = append(lines[:idx], lines[idx+1:]...)
		if idx < len(lines) && strings.TrimSpace(lines[idx]) == "EndProject" {
			lines = append(lines[:idx], lines[idx+1:]...)
		}
	}

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.Contains(line, projectGUID) {
			kept = append(kept, line)
		}
	}

	return os.WriteFile(manifestPath, []byte(strings.Join(kept, "\n")), 0o644)
}

// UpdatePackageName implements plugin.WorkspaceSupport; .sln files carry no
// renamable solution-level name field, grounded on
// CsharpWorkspaceSupport::update_package_name's no-op behavior.
func (workspaceSupport) UpdatePackageName(ctx context.Context, manifestPath, newName string) error {
	return nil
}

var _ plugin.WorkspaceSupport = workspaceSupport{}
