package swift

import (
	"os"
	"regexp"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// Package.swift is Swift source, not data, so it is scanned textually
// rather than parsed as a manifest format. No library in this module's
// dependency surface evaluates Swift source; a regex scan of the literal
// `.package(...)`/`name:` calls is the only option and is named here per
// the standard-library justification rule.
var (
	packageNamePattern = regexp.MustCompile(`name:\s*"([^"]+)"`)
	packageDepPattern  = regexp.MustCompile(`\.package\(url:\s*"([^"]+)"`)
)

func parsePackageSwift(path string) (*plugin.ManifestData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "read Package.swift"), "parse Package.swift")
	}
	content := string(data)

	name := ""
	if m := packageNamePattern.FindStringSubmatch(content); m != nil {
		name = m[1]
	}

	deps := make(map[string]string)
	for _, m := range packageDepPattern.FindAllStringSubmatch(content, -1) {
		deps[m[1]] = ""
	}

	return &plugin.ManifestData{
		Name:         name,
		Dependencies: deps,
		Raw:          content,
	}, nil
}
