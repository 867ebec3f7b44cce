package typescript

import (
	"encoding/json"
	"os"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// packageJSONSections lists every dependency section this plugin reads,
// grounded on PackageJsonManifest::sections.
var packageJSONSections = []string{"dependencies", "devDependencies", "peerDependencies", "optionalDependencies"}

type packageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	Workspaces           json.RawMessage   `json:"workspaces"`
}

// parsePackageJSON parses package.json, grounded on PackageJsonManifest::parse
// and the section precedence in find_dependency.
func parsePackageJSON(path string) (*plugin.ManifestData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "read package.json"), "analyze manifest")
	}

	var pkg packageJSON
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindParse, "decode package.json"), "analyze manifest")
	}

	data := &plugin.ManifestData{
		Name:            pkg.Name,
		Version:         pkg.Version,
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
		Raw:             pkg,
	}
	for name, version := range pkg.Dependencies {
		data.Dependencies[name] = version
	}
	for name, version := range pkg.PeerDependencies {
		data.Dependencies[name] = version
	}
	for name, version := range pkg.OptionalDependencies {
		data.Dependencies[name] = version
	}
	for name, version := range pkg.DevDependencies {
		data.DevDependencies[name] = version
	}
	return data, nil
}

// writePackageJSON re-serializes pkg with npm-standard 2-space indentation
// and a trailing newline, grounded on PackageJsonManifest::serialize.
func writePackageJSON(path string, pkg map[string]any) error {
	out, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindInternal, "encode package.json"), "write manifest")
	}
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrap(errs.Wrap(err, errs.KindIO, "write package.json"), "write manifest")
	}
	return nil
}

func readRawPackageJSON(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "read package.json"), "read manifest")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindParse, "decode package.json"), "read manifest")
	}
	return m, nil
}
