// Package planner turns a tool call plus workspace state into a plan.Plan
// (§4.G): one planner per plan variant, each resolving its target, finding
// every file the change could touch, and producing TextEdits plus
// checksums and warnings. Planners never write to disk — that is the
// executor's job (internal/executor) once a plan is approved.
package planner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	ignorelib "github.com/monochromegane/go-gitignore"
	"github.com/spf13/afero"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plan"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Workspace is the read-only view planners need of the project: a
// filesystem rooted at Root, and the plugin registry used to resolve each
// file's language capabilities.
type Workspace struct {
	Fs       afero.Fs
	Root     string
	Registry *plugin.Registry
}

// ignoredDirs mirrors analysis/graph's walk-skip list; planners scanning
// for importers must skip the same directories or risk rewriting vendored
// copies of a renamed file.
var ignoredDirs = map[string]struct{}{
	".git": {}, "target": {}, "node_modules": {}, "dist": {}, "build": {},
	".venv": {}, "__pycache__": {}, ".idea": {}, ".vscode": {},
}

// gitignoreMatcher loads ws.Root's top-level .gitignore, if any, via
// monochromegane/go-gitignore, returning nil when there is none to read.
// The hardcoded ignoredDirs list stays as a fallback for workspaces with
// no .gitignore at all; this supplements it with whatever patterns the
// project itself declares.
func (ws *Workspace) gitignoreMatcher() ignorelib.IgnoreMatcher {
	content, err := afero.ReadFile(ws.Fs, filepath.Join(ws.Root, ".gitignore"))
	if err != nil {
		return nil
	}
	return ignorelib.NewGitIgnoreFromReader(ws.Root, bytes.NewReader(content))
}

// walkFiles visits every regular file under ws.Root that the registry can
// map to a plugin, skipping ignoredDirs and anything ws.Root's .gitignore
// excludes.
func (ws *Workspace) walkFiles(fn func(path string, p plugin.Plugin) error) error {
	matcher := ws.gitignoreMatcher()
	return afero.Walk(ws.Fs, ws.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if info.IsDir() {
			if _, skip := ignoredDirs[base]; skip {
				return filepath.SkipDir
			}
			if matcher != nil && path != ws.Root && matcher.Match(path, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher != nil && matcher.Match(path, false) {
			return nil
		}
		p, ok := ws.Registry.PluginForPath(path)
		if !ok {
			return nil
		}
		return fn(path, p)
	})
}

// Checksums computes plan.FileChecksums for every path in paths by
// reading its current on-disk content, per §4.G step 4.
func Checksums(fs afero.Fs, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		content, err := afero.ReadFile(fs, p)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s for checksum", p)
		}
		out[p] = plan.Sha256Hex(content)
	}
	return out, nil
}

// Importer is one file that imports a target path, along with the new
// content that results from rewriting that import.
type Importer struct {
	Path       string
	NewContent []byte
	Changes    int
}

// FindImporters scans the workspace for every file whose ImportSupport
// resolves a relative import to targetPath (resolved against the
// importing file's directory, per §4.B's move-resolution rule), and
// returns the rewritten content for a move from oldPath to newPath.
// Absolute/package-identifier imports are left untouched by the plugin
// itself; FindImporters only decides which files are candidates.
func FindImporters(ctx context.Context, ws *Workspace, oldPath, newPath string) ([]Importer, error) {
	var out []Importer
	specifierFrom := func(importer, target string) string {
		rel, err := filepath.Rel(filepath.Dir(importer), target)
		if err != nil {
			return filepath.Base(target)
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, "../") {
			rel = "./" + rel
		}
		return rel
	}
	err := ws.walkFiles(func(path string, p plugin.Plugin) error {
		support, ok := p.ImportSupport()
		if !ok {
			return nil
		}
		if filepath.Clean(path) == filepath.Clean(oldPath) {
			return nil
		}
		content, err := afero.ReadFile(ws.Fs, path)
		if err != nil {
			return nil
		}
		imports, err := support.ParseImports(ctx, content)
		if err != nil || len(imports) == 0 {
			return nil
		}
		if !referencesPath(ws, path, imports, oldPath) {
			return nil
		}
		rewritten, n, err := support.RewriteImportsForMove(content, relOrBase(ws.Root, oldPath), relOrBase(ws.Root, newPath))
		if err == nil && n == 0 {
			// Relative specifiers are written from the importing file's directory.
			rewritten, n, err = support.RewriteImportsForMove(content, specifierFrom(path, oldPath), specifierFrom(path, newPath))
		}
		if err != nil || n == 0 {
			return nil
		}
		out = append(out, Importer{Path: path, NewContent: rewritten, Changes: n})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan workspace for importers")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ScanReferencingFiles returns every file (other than targetPath itself)
// whose parsed imports resolve to targetPath, without rewriting anything.
// Used by the delete planner to surface a DANGLING_IMPORT warning.
func ScanReferencingFiles(ctx context.Context, ws *Workspace, targetPath string) ([]string, error) {
	var out []string
	err := ws.walkFiles(func(path string, p plugin.Plugin) error {
		support, ok := p.ImportSupport()
		if !ok {
			return nil
		}
		if filepath.Clean(path) == filepath.Clean(targetPath) {
			return nil
		}
		content, err := afero.ReadFile(ws.Fs, path)
		if err != nil {
			return nil
		}
		imports, err := support.ParseImports(ctx, content)
		if err != nil || len(imports) == 0 {
			return nil
		}
		if referencesPath(ws, path, imports, targetPath) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan workspace for references")
	}
	sort.Strings(out)
	return out, nil
}

// referencesPath reports whether any of importer's parsed imports could
// plausibly resolve to targetPath: relative imports are resolved against
// importer's directory; absolute ones are compared by suffix against the
// workspace-relative target.
func referencesPath(ws *Workspace, importer string, imports []plugin.ImportRecord, targetPath string) bool {
	targetRel := relOrBase(ws.Root, targetPath)
	targetBase := strings.TrimSuffix(filepath.Base(targetPath), filepath.Ext(targetPath))
	for _, imp := range imports {
		if imp.IsRelative {
			resolved := filepath.Clean(filepath.Join(filepath.Dir(importer), imp.Raw))
			if sameModulePath(resolved, targetPath) {
				return true
			}
			continue
		}
		if strings.Contains(imp.Raw, targetRel) || strings.HasSuffix(imp.Raw, targetBase) {
			return true
		}
	}
	return false
}

// sameModulePath compares two paths ignoring a missing source-file
// extension on either side (an import of "./util" should match
// "util.go", "util.ts", etc.).
func sameModulePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if a == b {
		return true
	}
	aNoExt := strings.TrimSuffix(a, filepath.Ext(a))
	bNoExt := strings.TrimSuffix(b, filepath.Ext(b))
	return aNoExt == bNoExt
}

func relOrBase(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return filepath.Base(path)
}

// ManifestFiles returns every file under ws.Root, outside ignored
// directories, whose name the registry recognizes as a manifest
// (Cargo.toml, package.json, .gitignore, ...), used by rename/move planners to widen their affected-file set per
// §4.G step 2.
func ManifestFiles(ws *Workspace) ([]string, error) {
	var out []string
	seen := map[string]struct{}{}
	var visit func(dir string) error
	visit = func(dir string) error {
		entries, err := afero.ReadDir(ws.Fs, dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			if e.IsDir() {
				if _, skip := ignoredDirs[e.Name()]; skip {
					continue
				}
				if err := visit(full); err != nil {
					return err
				}
				continue
			}
			if _, ok := ws.Registry.PluginForManifest(e.Name()); ok {
				if _, dup := seen[full]; !dup {
					seen[full] = struct{}{}
					out = append(out, full)
				}
			}
		}
		return nil
	}
	if err := visit(ws.Root); err != nil {
		return nil, errors.Wrap(err, "scan workspace for manifests")
	}
	sort.Strings(out)
	return out, nil
}

// IsWorkspaceMember reports whether dir directly contains a manifest file
// recognized by the registry, the test §4.G's consolidation auto-detection
// rule uses for "is a workspace member".
func IsWorkspaceMember(ws *Workspace, dir string) (string, bool) {
	entries, err := afero.ReadDir(ws.Fs, dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := ws.Registry.PluginForManifest(e.Name()); ok {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

// DetectConsolidation implements §4.G's auto-detection rule: sourceDir is a
// workspace-member directory and the destination's parent directory
// directly holds the manifest of a different member. A destination nested
// deeper inside another member (for example under its src/) is not
// detected. An explicit false suppresses detection; an explicit true does
// not force a result, which is still decided by detection.
func DetectConsolidation(ws *Workspace, sourceDir, destDir string, explicit *bool) *plan.Consolidation {
	if explicit != nil && !*explicit {
		return nil
	}
	srcManifest, srcIsMember := IsWorkspaceMember(ws, sourceDir)
	if !srcIsMember {
		return nil
	}
	dstManifest, dstIsMember := IsWorkspaceMember(ws, filepath.Dir(destDir))
	if !dstIsMember {
		return nil
	}
	if filepath.Clean(filepath.Dir(srcManifest)) == filepath.Clean(filepath.Dir(dstManifest)) {
		return nil
	}
	return &plan.Consolidation{
		IsConsolidation:   true,
		SourceMember:      filepath.Dir(srcManifest),
		DestinationMember: filepath.Dir(dstManifest),
	}
}

// crossLanguage reports whether old and new paths resolve to different
// plugins, the condition that triggers CROSS_LANGUAGE_IMPORT_SKIPPED.
func crossLanguage(ws *Workspace, oldPath, newPath string) bool {
	op, ok1 := ws.Registry.PluginForPath(oldPath)
	np, ok2 := ws.Registry.PluginForPath(newPath)
	if !ok1 || !ok2 {
		return false
	}
	return op.Metadata().Name != np.Metadata().Name
}

// newPlanNotFound is the standard NotFound error planners return when a
// target path doesn't exist in the workspace filesystem.
func newPlanNotFound(path string) error {
	return errs.New(errs.KindNotFound, "no such path in workspace: "+path)
}

// wholeFileReplace builds a single Replace TextEdit that swaps a file's
// entire content for newContent. Location uses an oversized end position
// (hugeCol) that fileservice's spliceLines clamps to the file's real end,
// so the planner doesn't need to count lines itself.
func wholeFileReplace(path string, newContent []byte, description string) plan.TextEdit {
	return plan.TextEdit{
		FilePath: path,
		EditType: plan.EditReplace,
		Location: plan.Location{StartLine: 0, StartCol: 0, EndLine: hugeCol, EndCol: hugeCol},
		NewText:  string(newContent),
		Priority: 10,
		Description: description,
	}
}

// newMetadata builds the plan.Metadata envelope common to every planner,
// leaving CreatedAt for the caller to stamp (planners don't call
// time.Now themselves so results stay deterministic in tests; the
// dispatcher/executor layer stamps it when a plan is actually returned to
// a client).
func newMetadata(kind plan.Type, intent string, args map[string]any, complexity int) plan.Metadata {
	return plan.Metadata{
		PlanVersion:     plan.PlanVersion,
		Kind:            kind,
		IntentName:      intent,
		IntentArguments: args,
		Complexity:      complexity,
	}
}

// complexityFor maps an affected-file count onto the 1..10 scale §3
// requires, saturating at 10.
func complexityFor(filesTouched int) int {
	switch {
	case filesTouched <= 1:
		return 1
	case filesTouched >= 10:
		return 10
	default:
		return filesTouched
	}
}

// listFilesUnder returns every regular file under dir, recursively,
// sorted lexicographically.
func listFilesUnder(ws *Workspace, dir string) ([]string, error) {
	matcher := ws.gitignoreMatcher()
	var out []string
	err := afero.Walk(ws.Fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if _, skip := ignoredDirs[filepath.Base(path)]; skip {
				return filepath.SkipDir
			}
			if matcher != nil && path != ws.Root && matcher.Match(path, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher != nil && matcher.Match(path, false) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// mustRel returns filepath.Rel(base, target), or target itself if the
// paths share no common root (shouldn't happen for paths both under the
// workspace, but this keeps callers panic-free).
func mustRel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// findSymbolOccurrence returns the 0-indexed line/column of the first
// occurrence of name as a whole word in content, used to seed an LSP
// references query from a bare symbol name.
func findSymbolOccurrence(content []byte, name string) (line, col int, found bool) {
	text := string(content)
	idx := indexWholeWord(text, name)
	if idx < 0 {
		return 0, 0, false
	}
	for i := 0; i < idx; i++ {
		if text[i] == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return line, col, true
}

func indexWholeWord(text, word string) int {
	start := 0
	for {
		i := indexFrom(text, word, start)
		if i < 0 {
			return -1
		}
		before := byte(0)
		if i > 0 {
			before = text[i-1]
		}
		after := byte(0)
		if i+len(word) < len(text) {
			after = text[i+len(word)]
		}
		if !isWordByte(before) && !isWordByte(after) {
			return i
		}
		start = i + 1
	}
}

func indexFrom(text, sub string, from int) int {
	if from >= len(text) {
		return -1
	}
	idx := strings.Index(text[from:], sub)
	if idx < 0 {
		return -1
	}
	return from + idx
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// replaceIdentifier rewrites every whole-word occurrence of oldName in
// content to newName, the last-resort fallback when a plugin has no
// ImportSupport to ask for a boundary-aware rewrite.
func replaceIdentifier(content []byte, oldName, newName string) []byte {
	text := string(content)
	var out strings.Builder
	i := 0
	for {
		idx := indexWholeWord(text[i:], oldName)
		if idx < 0 {
			out.WriteString(text[i:])
			break
		}
		abs := i + idx
		out.WriteString(text[i:abs])
		out.WriteString(newName)
		i = abs + len(oldName)
	}
	return []byte(out.String())
}
