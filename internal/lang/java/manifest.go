package java

import (
	"bufio"
	"encoding/xml"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/pleme-io/typemill-sub012/internal/errs"
	"github.com/pleme-io/typemill-sub012/internal/plugin"
)

// pomXML mirrors the subset of a Maven pom.xml this engine reads: artifact
// coordinates and the dependency list, with test-scoped dependencies
// treated as dev dependencies.
type pomXML struct {
	XMLName      xml.Name `xml:"project"`
	ArtifactID   string   `xml:"artifactId"`
	Version      string   `xml:"version"`
	Dependencies struct {
		Dependency []pomDependency `xml:"dependency"`
	} `xml:"dependencies"`
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}

// AnalyzeManifest dispatches on the manifest's filename: pom.xml for Maven,
// build.gradle/build.gradle.kts for Gradle.
func parsePomXML(path string) (*plugin.ManifestData, error) {
	switch filepath.Base(path) {
	case "build.gradle", "build.gradle.kts":
		return parseBuildGradle(path)
	default:
		return parseMaven(path)
	}
}

func parseMaven(path string) (*plugin.ManifestData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "read pom.xml"), "analyze manifest")
	}

	var pom pomXML
	if err := xml.Unmarshal(raw, &pom); err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindParse, "decode pom.xml"), "analyze manifest")
	}

	data := &plugin.ManifestData{
		Name:            pom.ArtifactID,
		Version:         pom.Version,
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
		Raw:             pom,
	}
	for _, dep := range pom.Dependencies.Dependency {
		coordinate := dep.GroupID + ":" + dep.ArtifactID
		if dep.Scope == "test" {
			data.DevDependencies[coordinate] = dep.Version
		} else {
			data.Dependencies[coordinate] = dep.Version
		}
	}
	return data, nil
}

var (
	gradleImplementationPattern = regexp.MustCompile(`^\s*(?:implementation|api|compile)\s*\(?['"]([^'"]+)['"]`)
	gradleTestPattern            = regexp.MustCompile(`^\s*(?:testImplementation|testCompile|testRuntimeOnly)\s*\(?['"]([^'"]+)['"]`)
	gradleVersionPattern         = regexp.MustCompile(`^\s*version\s*=?\s*['"]([^'"]+)['"]`)
)

// parseBuildGradle performs a textual scan of a Gradle build script rather
// than evaluating it: build.gradle is a Groovy/Kotlin script, not a data
// format, and this engine never executes project build files.
func parseBuildGradle(path string) (*plugin.ManifestData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "read build.gradle"), "analyze manifest")
	}
	defer f.Close()

	data := &plugin.ManifestData{
		Name:            filepath.Base(filepath.Dir(path)),
		Dependencies:    make(map[string]string),
		DevDependencies: make(map[string]string),
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if m := gradleVersionPattern.FindStringSubmatch(line); m != nil {
			data.Version = m[1]
			continue
		}
		if m := gradleTestPattern.FindStringSubmatch(line); m != nil {
			coordinate, version := splitGradleCoordinate(m[1])
			data.DevDependencies[coordinate] = version
			continue
		}
		if m := gradleImplementationPattern.FindStringSubmatch(line); m != nil {
			coordinate, version := splitGradleCoordinate(m[1])
			data.Dependencies[coordinate] = version
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errs.Wrap(err, errs.KindIO, "scan build.gradle"), "analyze manifest")
	}
	return data, nil
}

// splitGradleCoordinate splits a "group:artifact:version" dependency
// notation into a "group:artifact" key and its version.
func splitGradleCoordinate(notation string) (coordinate, version string) {
	parts := strings.Split(notation, ":")
	if len(parts) >= 3 {
		return parts[0] + ":" + parts[1], parts[2]
	}
	if len(parts) == 2 {
		return parts[0] + ":" + parts[1], ""
	}
	return notation, ""
}
