package csharp

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// csprojProject mirrors the subset of a .csproj this engine reads,
// grounded on mill-lang-csharp/src/manifest.rs's Project/PropertyGroup/
// ItemGroup structs.
type csprojProject struct {
	XMLName        xml.Name              `xml:"Project"`
	PropertyGroups []csprojPropertyGroup `xml:"PropertyGroup"`
	ItemGroups     []csprojItemGroup     `xml:"ItemGroup"`
}

type csprojPropertyGroup struct {
	AssemblyName string `xml:"AssemblyName"`
	Version      string `xml:"Version"`
}

type csprojItemGroup struct {
	PackageReferences []csprojPackageReference `xml:"PackageReference"`
	ProjectReferences []csprojProjectReference `xml:"ProjectReference"`
}

type csprojPackageReference struct {
	Name    string `xml:"Include,attr"`
	Version string `xml:"Version,attr"`
}

type csprojProjectReference struct {
	Path string `xml:"Include,attr"`
}

// parseCsproj implements AnalyzeManifest for .csproj files, grounded on
// manifest.rs's analyze_manifest: the assembly name falls back to the
// file's stem when no <AssemblyName> is present, and project references
// are recorded as path-sourced dependencies alongside version-sourced
// package references.
func parseCsproj(path string) (*plugin.ManifestData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "read csproj"), "analyze manifest")
	}

	var project csprojProject
	if err := xml.Unmarshal(raw, &project); err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindParse, "decode csproj"), "analyze manifest")
	}

	name := ""
	version := ""
	for _, pg := range project.PropertyGroups {
		if name == "" && pg.AssemblyName != "" {
			name = pg.AssemblyName
		}
		if version == "" && pg.Version != "" {
			version = pg.Version
		}
	}
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	data := &plugin.ManifestData{
		Name:            name,
		Version:         version,
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
		Raw:             project,
	}
	for _, group := range project.ItemGroups {
		for _, pkg := range group.PackageReferences {
			data.Dependencies[pkg.Name] = pkg.Version
		}
		for _, proj := range group.ProjectReferences {
			data.Dependencies[proj.Path] = "path:" + strings.ReplaceAll(proj.Path, "\\", "/")
		}
	}
	return data, nil
}
