package planner

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	lsp "github.com/sourcegraph/go-lsp"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/lspadapter"
	"github.com/pleme-io/typemill-sub012/internal/plan"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// hugeCol is a deliberately oversized column/line value used for
// whole-line/whole-file replace edits; materialize's spliceLines clamps
// any out-of-range end position to the true end of content.
const hugeCol = 1 << 30

// RenameOptions configures RenamePlanner.Plan.
type RenameOptions struct {
	// Consolidate is accepted for callers that reuse RenameOptions for a
	// rename-that-is-really-a-move. Plan does not read it: directory renames
	// always use auto-detection of a CONSOLIDATION_MANUAL_STEP warning.
	Consolidate *bool
}

// RenamePlanner builds renamePlan documents (§3, §4.G). LSP is optional:
// when set, symbol renames use textDocument/references for precision;
// otherwise they fall back to the target plugin's boundary-aware text
// substitution.
type RenamePlanner struct {
	Workspace *Workspace
	LSP       lspadapter.Adapter
}

// Plan resolves target and produces a renamePlan renaming it to newName.
func (rp *RenamePlanner) Plan(ctx context.Context, target plan.Target, newName string, opts RenameOptions) (*plan.Plan, error) {
	switch target.Kind {
	case plan.TargetFile:
		return rp.planFileRename(ctx, target.Path, newName)
	case plan.TargetDirectory:
		return rp.planDirectoryRename(ctx, target.Path, newName)
	case plan.TargetSymbol:
		return rp.planSymbolRename(ctx, target.Path, target.SymbolName, newName)
	default:
		return nil, errs.New(errs.KindInvalidParams, "unknown rename target kind: "+string(target.Kind))
	}
}

func (rp *RenamePlanner) planFileRename(ctx context.Context, oldPath, newBasename string) (*plan.Plan, error) {
	ws := rp.Workspace
	exists, err := afero.Exists(ws.Fs, oldPath)
	if err != nil || !exists {
		return nil, newPlanNotFound(oldPath)
	}
	newPath := filepath.Join(filepath.Dir(oldPath), newBasename)

	oldBase := filepath.Base(oldPath)
	cross := crossLanguage(ws, oldPath, newPath)
	var importers []Importer
	if !cross {
		importers, err = RewriteRenameAcrossWorkspace(ctx, ws, oldBase, newBasename)
		if err != nil {
			return nil, err
		}
	}

	touched := []string{oldPath}
	edits := []plan.TextEdit{{
		FilePath:        oldPath,
		EditType:        plan.EditMove,
		MoveDestination: newPath,
		Priority:        100,
		Description:     fmt.Sprintf("rename %s to %s", oldPath, newPath),
	}}
	for _, imp := range importers {
		touched = append(touched, imp.Path)
		edits = append(edits, wholeFileReplace(imp.Path, imp.NewContent, fmt.Sprintf("update references to %s", oldBase)))
	}

	checksums, err := Checksums(ws.Fs, touched)
	if err != nil {
		return nil, err
	}

	var warnings []plan.Warning
	if cross {
		warnings = append(warnings, plan.Warning{Code: plan.WarningCrossLanguageImportSkipped, Message: "rename crosses a language boundary; import rewrite was skipped"})
	}

	return &plan.Plan{
		PlanType:      plan.TypeRename,
		Summary:       fmt.Sprintf("Rename %s to %s", oldPath, newPath),
		FileChecksums: checksums,
		Edits:         edits,
		Warnings:      warnings,
		Metadata:      newMetadata(plan.TypeRename, "rename.plan", map[string]any{"target": oldPath, "newName": newBasename}, complexityFor(len(touched))),
		OldTarget:     &plan.Target{Kind: plan.TargetFile, Path: oldPath},
		NewName:       newBasename,
	}, nil
}

func (rp *RenamePlanner) planDirectoryRename(ctx context.Context, oldDir, newBasename string) (*plan.Plan, error) {
	ws := rp.Workspace
	exists, err := afero.DirExists(ws.Fs, oldDir)
	if err != nil || !exists {
		return nil, newPlanNotFound(oldDir)
	}
	newDir := filepath.Join(filepath.Dir(oldDir), newBasename)

	members, err := listFilesUnder(ws, oldDir)
	if err != nil {
		return nil, err
	}

	touched := append([]string(nil), members...)
	edits := make([]plan.TextEdit, 0, len(members))
	for _, m := range members {
		rel, err := filepath.Rel(oldDir, m)
		if err != nil {
			return nil, err
		}
		dest := filepath.Join(newDir, rel)
		edits = append(edits, plan.TextEdit{
			FilePath:        m,
			EditType:        plan.EditMove,
			MoveDestination: dest,
			Priority:        100,
			Description:     fmt.Sprintf("move %s to %s", m, dest),
		})
	}

	var warnings []plan.Warning
	for _, m := range members {
		importers, err := FindImporters(ctx, ws, m, filepath.Join(newDir, mustRel(oldDir, m)))
		if err != nil {
			return nil, err
		}
		for _, imp := range importers {
			if contains(touched, imp.Path) {
				continue
			}
			touched = append(touched, imp.Path)
			edits = append(edits, wholeFileReplace(imp.Path, imp.NewContent, fmt.Sprintf("update references to %s", m)))
		}
	}

	if DetectConsolidation(ws, oldDir, newDir, nil) != nil {
		warnings = append(warnings, plan.Warning{Code: plan.WarningConsolidationManualStep, Message: "destination appears to consolidate a workspace member into another; review manifest changes manually"})
	}

	checksums, err := Checksums(ws.Fs, touched)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		PlanType:      plan.TypeRename,
		Summary:       fmt.Sprintf("Rename directory %s to %s", oldDir, newDir),
		FileChecksums: checksums,
		Edits:         edits,
		Warnings:      warnings,
		Metadata:      newMetadata(plan.TypeRename, "rename.plan", map[string]any{"target": oldDir, "newName": newBasename}, complexityFor(len(touched))),
		OldTarget:     &plan.Target{Kind: plan.TargetDirectory, Path: oldDir},
		NewName:       newBasename,
	}, nil
}

func (rp *RenamePlanner) planSymbolRename(ctx context.Context, path, oldName, newName string) (*plan.Plan, error) {
	ws := rp.Workspace
	content, err := afero.ReadFile(ws.Fs, path)
	if err != nil {
		return nil, newPlanNotFound(path)
	}
	p, ok := ws.Registry.PluginForPath(path)
	if !ok {
		return nil, errs.New(errs.KindNotSupported, "no plugin for "+path)
	}

	declLine, declCol, found := findSymbolOccurrence(content, oldName)
	if !found {
		return nil, errs.New(errs.KindNotFound, fmt.Sprintf("symbol %q not found in %s", oldName, path))
	}

	sites := map[string][]plan.TextEdit{}
	if rp.LSP != nil {
		uri := "file://" + path
		_ = rp.LSP.OpenDocument(ctx, uri, string(content))
		refs, err := rp.LSP.FindReferences(ctx, uri, declLine, declCol)
		if err == nil {
			for _, r := range refs {
				fp := uriToPath(string(r.URI))
				sites[fp] = append(sites[fp], symbolReplaceEdit(r, oldName, newName))
			}
		}
	}

	if len(sites) == 0 {
		support, ok := p.ImportSupport()
		if ok {
			rewritten, n, err := support.RewriteImportsForRename(content, oldName, newName)
			if err == nil && n > 0 {
				sites[path] = []plan.TextEdit{wholeFileReplace(path, rewritten, fmt.Sprintf("rename %s to %s", oldName, newName))}
			}
		}
		if len(sites) == 0 {
			sites[path] = []plan.TextEdit{wholeFileReplace(path, replaceIdentifier(content, oldName, newName), fmt.Sprintf("rename %s to %s", oldName, newName))}
		}
	}

	var touched []string
	var edits []plan.TextEdit
	for file, es := range sites {
		touched = append(touched, file)
		edits = append(edits, es...)
	}
	sort.Strings(touched)

	checksums, err := Checksums(ws.Fs, touched)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		PlanType:      plan.TypeRename,
		Summary:       fmt.Sprintf("Rename symbol %s to %s", oldName, newName),
		FileChecksums: checksums,
		Edits:         edits,
		Metadata:      newMetadata(plan.TypeRename, "rename.plan", map[string]any{"target": path, "symbol": oldName, "newName": newName}, complexityFor(len(touched))),
		OldTarget:     &plan.Target{Kind: plan.TargetSymbol, Path: path, SymbolName: oldName},
		NewName:       newName,
	}, nil
}

func symbolReplaceEdit(loc lsp.Location, oldName, newName string) plan.TextEdit {
	return plan.TextEdit{
		FilePath: uriToPath(string(loc.URI)),
		EditType: plan.EditReplace,
		Location: plan.Location{
			StartLine: int(loc.Range.Start.Line),
			StartCol:  int(loc.Range.Start.Character),
			EndLine:   int(loc.Range.Start.Line),
			EndCol:    int(loc.Range.Start.Character) + len(oldName),
		},
		OriginalText: oldName,
		NewText:      newName,
		Priority:     50,
		Description:  fmt.Sprintf("rename reference %s -> %s", oldName, newName),
	}
}

func uriToPath(uri string) string {
	const prefix = "file://"
	if len(uri) > len(prefix) && uri[:len(prefix)] == prefix {
		return uri[len(prefix):]
	}
	return uri
}

// RewriteRenameAcrossWorkspace calls every ImportSupport plugin's
// RewriteImportsForRename(oldName, newName) against each workspace file's
// content, returning every file whose content actually changed.
func RewriteRenameAcrossWorkspace(ctx context.Context, ws *Workspace, oldName, newName string) ([]Importer, error) {
	var out []Importer
	err := ws.walkFiles(func(path string, p plugin.Plugin) error {
		support, ok := p.ImportSupport()
		if !ok {
			return nil
		}
		content, err := afero.ReadFile(ws.Fs, path)
		if err != nil {
			return nil
		}
		rewritten, n, err := support.RewriteImportsForRename(content, oldName, newName)
		if err != nil || n == 0 {
			return nil
		}
		out = append(out, Importer{Path: path, NewContent: rewritten, Changes: n})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
