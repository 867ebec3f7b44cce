package rust

import (
	"github.com/BurntSushi/toml"
	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

type cargoManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
	Dependencies    map[string]tomlDependency `toml:"dependencies"`
	DevDependencies map[string]tomlDependency `toml:"dev-dependencies"`
}

// tomlDependency accepts both "serde = \"1.0\"" and
// "serde = { version = \"1.0\", features = [...] }" forms.
type tomlDependency struct {
	Version string
	Path    string
}

func (d *tomlDependency) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		d.Version = val
	case map[string]any:
		if ver, ok := val["version"].(string); ok {
			d.Version = ver
		}
		if path, ok := val["path"].(string); ok {
			d.Path = path
			if d.Version == "" {
				d.Version = "path:" + path
			}
		}
	}
	return nil
}

// parseCargoToml parses path as a Cargo.toml file using BurntSushi/toml,
// grounded on the manifest handling the teacher repo does for its own
// crossplane.yaml via BurntSushi-style decode-into-struct.
func parseCargoToml(path string) (*plugin.ManifestData, error) {
	var manifest cargoManifest
	meta, err := toml.DecodeFile(path, &manifest)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindParse, "decode Cargo.toml"), "analyze manifest")
	}
	_ = meta

	data := &plugin.ManifestData{
		Name:            manifest.Package.Name,
		Version:         manifest.Package.Version,
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
		Raw:             manifest,
	}
	for name, dep := range manifest.Dependencies {
		data.Dependencies[name] = dep.Version
	}
	for name, dep := range manifest.DevDependencies {
		data.DevDependencies[name] = dep.Version
	}
	return data, nil
}
