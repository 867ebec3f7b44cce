package typescript

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testWorkspacePackageJSON = `{
  "name": "root",
  "private": true,
  "workspaces": ["packages/foo", "packages/bar"]
}
`

func TestIsWorkspaceManifestDetectsWorkspacesField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	if err := os.WriteFile(path, []byte(testWorkspacePackageJSON), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
	ws := workspaceSupport{}
	ok, err := ws.IsWorkspaceManifest(context.Background(), path)
	if err != nil {
		t.Fatalf("IsWorkspaceManifest: %v", err)
	}
	if !ok {
		t.Fatalf("expected a top-level workspaces field to be recognized")
	}
}

func TestIsWorkspaceManifestFalseWithoutWorkspacesField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	if err := os.WriteFile(path, []byte(`{"name": "widget"}`), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
	ws := workspaceSupport{}
	ok, err := ws.IsWorkspaceManifest(context.Background(), path)
	if err != nil {
		t.Fatalf("IsWorkspaceManifest: %v", err)
	}
	if ok {
		t.Fatalf("expected no workspaces field to be recognized as non-workspace")
	}
}

func TestListWorkspaceMembersReturnsArrayGlobs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	if err := os.WriteFile(path, []byte(testWorkspacePackageJSON), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
	ws := workspaceSupport{}
	members, err := ws.ListWorkspaceMembers(context.Background(), path)
	if err != nil {
		t.Fatalf("ListWorkspaceMembers: %v", err)
	}
	want := map[string]bool{"packages/foo": true, "packages/bar": true}
	if len(members) != len(want) {
		t.Fatalf("expected %d members, got %+v", len(want), members)
	}
	for _, m := range members {
		if !want[m] {
			t.Fatalf("unexpected member %q", m)
		}
	}
}

func TestListWorkspaceMembersReturnsYarnObjectPackagesField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	content := `{"name": "root", "workspaces": {"packages": ["apps/*"], "nohoist": ["**/react-native"]}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
	ws := workspaceSupport{}
	members, err := ws.ListWorkspaceMembers(context.Background(), path)
	if err != nil {
		t.Fatalf("ListWorkspaceMembers: %v", err)
	}
	if len(members) != 1 || members[0] != "apps/*" {
		t.Fatalf("expected the Yarn object form's packages key used, got %+v", members)
	}
}

func TestAddWorkspaceMemberAppendsRelativeGlob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	if err := os.WriteFile(path, []byte(testWorkspacePackageJSON), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
	memberDir := filepath.Join(dir, "packages", "baz")
	if err := os.MkdirAll(memberDir, 0o755); err != nil {
		t.Fatalf("mkdir packages/baz: %v", err)
	}

	ws := workspaceSupport{}
	if err := ws.AddWorkspaceMember(context.Background(), path, memberDir); err != nil {
		t.Fatalf("AddWorkspaceMember: %v", err)
	}
	members, err := ws.ListWorkspaceMembers(context.Background(), path)
	if err != nil {
		t.Fatalf("ListWorkspaceMembers: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members after add, got %+v", members)
	}
	found := false
	for _, m := range members {
		if m == "packages/baz" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected packages/baz added, got %+v", members)
	}
}

func TestAddWorkspaceMemberIsNoopWhenAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	if err := os.WriteFile(path, []byte(testWorkspacePackageJSON), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
	memberDir := filepath.Join(dir, "packages", "foo")

	ws := workspaceSupport{}
	if err := ws.AddWorkspaceMember(context.Background(), path, memberDir); err != nil {
		t.Fatalf("AddWorkspaceMember: %v", err)
	}
	members, err := ws.ListWorkspaceMembers(context.Background(), path)
	if err != nil {
		t.Fatalf("ListWorkspaceMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected the existing members left untouched, got %+v", members)
	}
}

func TestRemoveWorkspaceMemberDropsEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	if err := os.WriteFile(path, []byte(testWorkspacePackageJSON), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
	memberDir := filepath.Join(dir, "packages", "foo")

	ws := workspaceSupport{}
	if err := ws.RemoveWorkspaceMember(context.Background(), path, memberDir); err != nil {
		t.Fatalf("RemoveWorkspaceMember: %v", err)
	}
	members, err := ws.ListWorkspaceMembers(context.Background(), path)
	if err != nil {
		t.Fatalf("ListWorkspaceMembers: %v", err)
	}
	if len(members) != 1 || members[0] != "packages/bar" {
		t.Fatalf("expected only packages/bar left, got %+v", members)
	}
}

func TestUpdatePackageNameRewritesNameField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	if err := os.WriteFile(path, []byte(`{"name": "widget"}`), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
	ws := workspaceSupport{}
	if err := ws.UpdatePackageName(context.Background(), path, "gadget"); err != nil {
		t.Fatalf("UpdatePackageName: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read package.json: %v", err)
	}
	if !strings.Contains(string(raw), `"name": "gadget"`) {
		t.Fatalf("expected the package name rewritten, got %q", raw)
	}
}
