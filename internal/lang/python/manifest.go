package python

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// analyzeManifest dispatches on filename, grounded on
// PythonPlugin::analyze_manifest's match over
// requirements.txt/pyproject.toml/setup.py/Pipfile.
func analyzeManifest(path string) (*plugin.ManifestData, error) {
	switch filepath.Base(path) {
	case "requirements.txt":
		return parseRequirementsTxt(path)
	case "pyproject.toml":
		return parsePyprojectToml(path)
	case "setup.py":
		return parseSetupPy(path)
	case "Pipfile":
		return parsePipfile(path)
	default:
		return nil, errors.Wrap(errs.New(errs.KindNotSupported, "unsupported Python manifest file: "+filepath.Base(path)), "analyze manifest")
	}
}

var requirementPattern = regexp.MustCompile(`^([A-Za-z0-9_.\-\[\]]+)\s*(==|>=|<=|~=|!=|>|<)?\s*([A-Za-z0-9_.\-]*)`)

// parseRequirementsTxt implements a pip requirements.txt reader: one
// dependency per line, skipping comments, blanks, and -r/-e directives.
func parseRequirementsTxt(path string) (*plugin.ManifestData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "open requirements.txt"), "analyze manifest")
	}
	defer f.Close()

	data := &plugin.ManifestData{
		Name:            "requirements.txt",
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if m := requirementPattern.FindStringSubmatch(line); m != nil {
			version := m[3]
			if version == "" {
				version = "*"
			}
			data.Dependencies[m[1]] = version
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindParse, "scan requirements.txt"), "analyze manifest")
	}
	return data, nil
}

type pyprojectToml struct {
	Project struct {
		Name            string   `toml:"name"`
		Version         string   `toml:"version"`
		Dependencies    []string `toml:"dependencies"`
		OptionalDepends map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name         string            `toml:"name"`
			Version      string            `toml:"version"`
			Dependencies map[string]any    `toml:"dependencies"`
			DevDeps      map[string]any    `toml:"dev-dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

var pep508Pattern = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)\s*(.*)$`)

// parsePyprojectToml supports both PEP 621 [project] tables and Poetry's
// [tool.poetry] table.
func parsePyprojectToml(path string) (*plugin.ManifestData, error) {
	var doc pyprojectToml
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindParse, "decode pyproject.toml"), "analyze manifest")
	}

	data := &plugin.ManifestData{
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
		Raw:             doc,
	}

	if doc.Project.Name != "" {
		data.Name = doc.Project.Name
		data.Version = doc.Project.Version
		for _, dep := range doc.Project.Dependencies {
			if m := pep508Pattern.FindStringSubmatch(dep); m != nil {
				version := strings.TrimSpace(m[2])
				if version == "" {
					version = "*"
				}
				data.Dependencies[m[1]] = version
			}
		}
		return data, nil
	}

	data.Name = doc.Tool.Poetry.Name
	data.Version = doc.Tool.Poetry.Version
	for name, v := range doc.Tool.Poetry.Dependencies {
		data.Dependencies[name] = poetryVersionString(v)
	}
	for name, v := range doc.Tool.Poetry.DevDeps {
		data.DevDependencies[name] = poetryVersionString(v)
	}
	return data, nil
}

func poetryVersionString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if ver, ok := val["version"].(string); ok {
			return ver
		}
	}
	return "*"
}

var setupPyNamePattern = regexp.MustCompile(`name\s*=\s*["']([^"']+)["']`)
var setupPyVersionPattern = regexp.MustCompile(`version\s*=\s*["']([^"']+)["']`)
var setupPyInstallRequiresPattern = regexp.MustCompile(`(?s)install_requires\s*=\s*\[(.*?)\]`)
var setupPyRequirementEntryPattern = regexp.MustCompile(`["']([^"']+)["']`)

// parseSetupPy extracts name/version/install_requires via a textual scan;
// setup.py is arbitrary Python, so this deliberately does not execute it.
func parseSetupPy(path string) (*plugin.ManifestData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "read setup.py"), "analyze manifest")
	}
	content := string(raw)

	data := &plugin.ManifestData{
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
	}
	if m := setupPyNamePattern.FindStringSubmatch(content); m != nil {
		data.Name = m[1]
	}
	if m := setupPyVersionPattern.FindStringSubmatch(content); m != nil {
		data.Version = m[1]
	}
	if m := setupPyInstallRequiresPattern.FindStringSubmatch(content); m != nil {
		for _, entry := range setupPyRequirementEntryPattern.FindAllStringSubmatch(m[1], -1) {
			if req := requirementPattern.FindStringSubmatch(entry[1]); req != nil {
				version := req[3]
				if version == "" {
					version = "*"
				}
				data.Dependencies[req[1]] = version
			}
		}
	}
	return data, nil
}

type pipfileDoc struct {
	Packages    map[string]any `toml:"packages"`
	DevPackages map[string]any `toml:"dev-packages"`
}

// parsePipfile reads a Pipfile, which is TOML despite the extensionless
// name.
func parsePipfile(path string) (*plugin.ManifestData, error) {
	var doc pipfileDoc
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindParse, "decode Pipfile"), "analyze manifest")
	}
	data := &plugin.ManifestData{
		Name:            "Pipfile",
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
		Raw:             doc,
	}
	for name, v := range doc.Packages {
		data.Dependencies[name] = poetryVersionString(v)
	}
	for name, v := range doc.DevPackages {
		data.DevDependencies[name] = poetryVersionString(v)
	}
	return data, nil
}
