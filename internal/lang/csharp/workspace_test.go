package csharp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Member paths use forward slashes: filepath.Rel/FromSlash compute
// forward-slash-separated relative paths on the non-Windows platform
// these tests run on.
const testSln = `
Microsoft Visual Studio Solution File, Format Version 12.00
# Visual Studio Version 17
Project("{FAE04EC0-301F-11D3-BF4B-00C04F79EFBC}") = "Widget", "Widget/Widget.csproj", "{AAAAAAAA-AAAA-AAAA-AAAA-AAAAAAAAAAAA}"
EndProject
Global
	GlobalSection(SolutionConfigurationPlatforms) = preSolution
		Debug|Any CPU = Debug|Any CPU
		Release|Any CPU = Release|Any CPU
	EndGlobalSection
	GlobalSection(ProjectConfigurationPlatforms) = postSolution
		{AAAAAAAA-AAAA-AAAA-AAAA-AAAAAAAAAAAA}.Debug|Any CPU.ActiveCfg = Debug|Any CPU
		{AAAAAAAA-AAAA-AAAA-AAAA-AAAAAAAAAAAA}.Debug|Any CPU.Build.0 = Debug|Any CPU
	EndGlobalSection
EndGlobal
`

func TestIsWorkspaceManifestRecognizesSolutionHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Widget.sln")
	if err := os.WriteFile(path, []byte(testSln), 0o644); err != nil {
		t.Fatalf("write sln: %v", err)
	}
	ws := workspaceSupport{}
	ok, err := ws.IsWorkspaceManifest(context.Background(), path)
	if err != nil {
		t.Fatalf("IsWorkspaceManifest: %v", err)
	}
	if !ok {
		t.Fatalf("expected a .sln with the standard header to be recognized")
	}
}

func TestListWorkspaceMembersReturnsProjectPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Widget.sln")
	if err := os.WriteFile(path, []byte(testSln), 0o644); err != nil {
		t.Fatalf("write sln: %v", err)
	}
	ws := workspaceSupport{}
	members, err := ws.ListWorkspaceMembers(context.Background(), path)
	if err != nil {
		t.Fatalf("ListWorkspaceMembers: %v", err)
	}
	if len(members) != 1 || members[0] != "Widget/Widget.csproj" {
		t.Fatalf("expected one member path, got %+v", members)
	}
}

func TestAddWorkspaceMemberInsertsProjectBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Widget.sln")
	if err := os.WriteFile(path, []byte(testSln), 0o644); err != nil {
		t.Fatalf("write sln: %v", err)
	}
	memberPath := filepath.Join(dir, "Gadget", "Gadget.csproj")

	ws := workspaceSupport{}
	if err := ws.AddWorkspaceMember(context.Background(), path, memberPath); err != nil {
		t.Fatalf("AddWorkspaceMember: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sln: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, `"Gadget"`) {
		t.Fatalf("expected the new project name present, got %q", content)
	}
	members, err := ws.ListWorkspaceMembers(context.Background(), path)
	if err != nil {
		t.Fatalf("ListWorkspaceMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected two workspace members after add, got %+v", members)
	}
}

func TestAddWorkspaceMemberIsNoopWhenAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Widget.sln")
	if err := os.WriteFile(path, []byte(testSln), 0o644); err != nil {
		t.Fatalf("write sln: %v", err)
	}
	memberPath := filepath.Join(dir, "Widget", "Widget.csproj")

	ws := workspaceSupport{}
	if err := ws.AddWorkspaceMember(context.Background(), path, memberPath); err != nil {
		t.Fatalf("AddWorkspaceMember: %v", err)
	}
	members, err := ws.ListWorkspaceMembers(context.Background(), path)
	if err != nil {
		t.Fatalf("ListWorkspaceMembers: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected the existing member left untouched, got %+v", members)
	}
}

func TestRemoveWorkspaceMemberDeletesProjectBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Widget.sln")
	if err := os.WriteFile(path, []byte(testSln), 0o644); err != nil {
		t.Fatalf("write sln: %v", err)
	}
	memberPath := filepath.Join(dir, "Widget", "Widget.csproj")

	ws := workspaceSupport{}
	if err := ws.RemoveWorkspaceMember(context.Background(), path, memberPath); err != nil {
		t.Fatalf("RemoveWorkspaceMember: %v", err)
	}
	members, err := ws.ListWorkspaceMembers(context.Background(), path)
	if err != nil {
		t.Fatalf("ListWorkspaceMembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected no workspace members after removal, got %+v", members)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sln: %v", err)
	}
	if strings.Contains(string(raw), "AAAAAAAA-AAAA-AAAA-AAAA-AAAAAAAAAAAA") {
		t.Fatalf("expected the project's GUID-tagged configuration lines removed too")
	}
}

func TestUpdatePackageNameIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Widget.sln")
	if err := os.WriteFile(path, []byte(testSln), 0o644); err != nil {
		t.Fatalf("write sln: %v", err)
	}
	ws := workspaceSupport{}
	if err := ws.UpdatePackageName(context.Background(), path, "NewName"); err != nil {
		t.Fatalf("UpdatePackageName: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sln: %v", err)
	}
	if string(raw) != testSln {
		t.Fatalf("expected the solution file left byte-identical")
	}
}
