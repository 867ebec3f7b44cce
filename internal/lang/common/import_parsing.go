// Package common holds language-agnostic helpers shared by the individual
// plugins in internal/lang/*: parsing "name as alias" clauses, splitting
// comma-separated import lists, classifying external-vs-internal import
// paths, and a few path and word-boundary helpers. Each plugin keeps its
// own regex fallback; none lives in this package.
package common

import (
	"regexp"
	"strings"
)

// ParseImportAlias splits "name as alias" into its parts, the form of
// Python ("import foo as bar") and TypeScript ("import { foo as bar }")
// import clauses. Go's `alias "package"` form has no " as " and comes back
// unsplit.
func ParseImportAlias(text string) (name string, alias string, hasAlias bool) {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, " as "); idx >= 0 {
		return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+len(" as "):]), true
	}
	return text, "", false
}

// AliasedName is one entry from SplitImportList.
type AliasedName struct {
	Name     string
	Alias    string
	HasAlias bool
}

// SplitImportList splits a comma-separated import clause, stripping a
// surrounding `{ }` brace pair if present, e.g. "{ foo, bar as b }".
func SplitImportList(text string) []AliasedName {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}

	var out []AliasedName
	for _, item := range strings.Split(text, ",") {
		name, alias, hasAlias := ParseImportAlias(strings.TrimSpace(item))
		if name == "" {
			continue
		}
		out = append(out, AliasedName{Name: name, Alias: alias, HasAlias: hasAlias})
	}
	return out
}

// ExternalDependencyDetector classifies an import path as external
// (resolved through a package manager) or internal (relative/workspace).
type ExternalDependencyDetector struct {
	relativePrefixes []string
	internalPatterns []*regexp.Regexp
}

// NewExternalDependencyDetector returns a detector with no configured
// patterns; everything is external until prefixes/patterns are added.
func NewExternalDependencyDetector() *ExternalDependencyDetector {
	return &ExternalDependencyDetector{}
}

// WithRelativePrefix registers a literal prefix (e.g. "./", "../") that
// marks a path as internal.
func (d *ExternalDependencyDetector) WithRelativePrefix(prefix string) *ExternalDependencyDetector {
	d.relativePrefixes = append(d.relativePrefixes, prefix)
	return d
}

// WithInternalPattern registers a regex that marks a path as internal
// (e.g. "^@/" for a workspace path alias). Invalid patterns are silently
// ignored, matching the source's tolerant construction.
func (d *ExternalDependencyDetector) WithInternalPattern(pattern string) *ExternalDependencyDetector {
	if re, err := regexp.Compile(pattern); err == nil {
		d.internalPatterns = append(d.internalPatterns, re)
	}
	return d
}

// IsExternal reports whether path is an external dependency.
func (d *ExternalDependencyDetector) IsExternal(path string) bool {
	for _, prefix := range d.relativePrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	for _, re := range d.internalPatterns {
		if re.MatchString(path) {
			return false
		}
	}
	return true
}

// IsInternal is the negation of IsExternal.
func (d *ExternalDependencyDetector) IsInternal(path string) bool {
	return !d.IsExternal(path)
}

// ExtractPackageName returns the package-level name from a possibly
// deep import path: scoped packages keep their scope ("@types/node/fs" ->
// "@types/node"), domain-qualified paths keep three segments
// ("github.com/user/repo/subpkg" -> "github.com/user/repo"), everything
// else keeps the first segment ("lodash/fp" -> "lodash").
func ExtractPackageName(path string) string {
	if strings.HasPrefix(path, "@") {
		parts := strings.SplitN(path, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return path
	}

	if strings.Contains(path, ".") && strings.Contains(path, "/") {
		parts := strings.SplitN(path, "/", 4)
		if len(parts) >= 3 {
			return parts[0] + "/" + parts[1] + "/" + parts[2]
		}
	}

	if idx := strings.Index(path, "/"); idx >= 0 {
		return path[:idx]
	}
	return path
}

// NormalizeImportPath strips surrounding quotes/backticks and whitespace.
func NormalizeImportPath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, `"'`+"`")
	return strings.TrimSpace(path)
}

// WordBoundaryPattern builds a regex matching ident as a whole word.
func WordBoundaryPattern(ident string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^a-zA-Z0-9_])` + regexp.QuoteMeta(ident) + `(?:$|[^a-zA-Z0-9_])`)
}
