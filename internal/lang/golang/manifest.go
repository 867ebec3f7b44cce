package golang

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

var (
	modulePattern     = regexp.MustCompile(`^module\s+(\S+)`)
	goVersionPattern  = regexp.MustCompile(`^go\s+(\S+)`)
	requireLinePattern = regexp.MustCompile(`^\s*([^\s]+)\s+(v\S+)(\s*//\s*indirect)?`)
	requireBlockStart = regexp.MustCompile(`^require\s*\(`)
)

// parseGoMod reads path as a go.mod file and extracts the module path,
// Go version, and require entries, marking "// indirect" lines as dev
// dependencies since they are transitive, not hand-picked.
func parseGoMod(path string) (*plugin.ManifestData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "open go.mod"), "analyze manifest")
	}
	defer f.Close()

	data := &plugin.ManifestData{
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
	}

	inRequireBlock := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if data.Name == "" {
			if m := modulePattern.FindStringSubmatch(trimmed); m != nil {
				data.Name = m[1]
				continue
			}
		}
		if data.Version == "" {
			if m := goVersionPattern.FindStringSubmatch(trimmed); m != nil {
				data.Version = m[1]
				continue
			}
		}

		if !inRequireBlock {
			if requireBlockStart.MatchString(trimmed) {
				inRequireBlock = true
				continue
			}
			if strings.HasPrefix(trimmed, "require ") {
				if m := requireLinePattern.FindStringSubmatch(strings.TrimPrefix(trimmed, "require ")); m != nil {
					assignRequire(data, m)
				}
				continue
			}
			continue
		}

		if trimmed == ")" {
			inRequireBlock = false
			continue
		}
		if m := requireLinePattern.FindStringSubmatch(trimmed); m != nil {
			assignRequire(data, m)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindParse, "scan go.mod"), "analyze manifest")
	}

	data.Raw = map[string]any{
		"module": data.Name,
		"go":     data.Version,
	}
	return data, nil
}

func assignRequire(data *plugin.ManifestData, m []string) {
	name, version := m[1], m[2]
	if m[3] != "" {
		data.DevDependencies[name] = version
		return
	}
	data.Dependencies[name] = version
}
