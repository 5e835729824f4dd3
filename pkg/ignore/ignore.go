// Package ignore compiles ignore rules into a predicate consumed by the copy
// engine. Rules come from two places: a list of ignore names (VCS metadata
// directories and the like, matched against any path component) and an
// optional ignore file whose patterns use simple prefix semantics — folder
// patterns end in a separator, file patterns do not. The compiled predicate
// is a pure function of its inputs; it performs no I/O and can therefore be
// evaluated once per path during enumeration without workers re-checking.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/paulschiretz/pgl-copy/pkg/util"
)

// Predicate reports whether the given relative path key should be ignored.
// relPathKey uses forward slashes with no leading separator; isDir tells the
// predicate whether the path names a directory.
type Predicate func(relPathKey string, isDir bool) bool

// DefaultIgnoreNames are path components that are always skipped as whole
// subtrees unless overridden by configuration.
var DefaultIgnoreNames = []string{".git", ".svn", ".hg", "node_modules"}

// IgnoreFileName is the per-source ignore file loaded by the CLI when present.
const IgnoreFileName = ".pglignore"

// ruleSet holds the categorized, precompiled rules.
type ruleSet struct {
	// names are matched against every path component; a hit ignores the
	// whole subtree (".git" anywhere, at any depth).
	names map[string]struct{}
	// dirPrefixes are component-wise prefixes from folder patterns ("build/").
	dirPrefixes [][]string
	// filePrefixes are plain string prefixes matched against the full
	// relative path of files ("docs/draft-").
	filePrefixes []string
}

// Compile builds a Predicate from ignore names and ignore-file patterns.
// Patterns ending in a separator are folder rules, everything else is a file
// rule. Empty inputs compile to a predicate that ignores nothing.
func Compile(ignoreNames, patterns []string) Predicate {
	rs := &ruleSet{names: make(map[string]struct{}, len(ignoreNames))}

	for _, name := range ignoreNames {
		name = normalizePattern(name)
		if name == "" {
			continue
		}
		rs.names[name] = struct{}{}
	}

	for _, p := range patterns {
		p = normalizePattern(p)
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "/") {
			rs.dirPrefixes = append(rs.dirPrefixes, strings.Split(strings.TrimSuffix(p, "/"), "/"))
		} else {
			rs.filePrefixes = append(rs.filePrefixes, p)
		}
	}

	return rs.matches
}

// matches implements Predicate.
func (rs *ruleSet) matches(relPathKey string, isDir bool) bool {
	if relPathKey == "" || relPathKey == "." {
		return false // The root itself is never ignored.
	}

	components := strings.Split(relPathKey, "/")

	// 1. Ignore names match any single component, file or directory.
	for _, c := range components {
		if _, ok := rs.names[c]; ok {
			return true
		}
	}

	if isDir {
		// 2. Folder patterns are prefix matches on path components, so
		// "build/" ignores "build" and everything below it but never
		// "build-tools".
		for _, prefix := range rs.dirPrefixes {
			if hasComponentPrefix(components, prefix) {
				return true
			}
		}
		return false
	}

	// 3. File patterns are plain prefix matches on the relative path.
	for _, prefix := range rs.filePrefixes {
		if strings.HasPrefix(relPathKey, prefix) {
			return true
		}
	}
	return false
}

// hasComponentPrefix reports whether path starts with all of prefix's
// components, compared component-wise.
func hasComponentPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i, p := range prefix {
		if path[i] != p {
			return false
		}
	}
	return true
}

// normalizePattern brings a configured pattern into key format while
// preserving a trailing separator, which distinguishes folder rules.
func normalizePattern(p string) string {
	p = strings.TrimSpace(p)
	hadSlash := strings.HasSuffix(p, "/") || strings.HasSuffix(p, "\\")
	p = util.NormalizePath(strings.TrimRight(p, "/\\"))
	if p == "" || p == "." {
		return ""
	}
	if hadSlash {
		return p + "/"
	}
	return p
}

// LoadPatterns reads an ignore file: one pattern per line, blank lines and
// '#' comments skipped. A missing file is not an error; it simply yields no
// patterns.
func LoadPatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open ignore file %s: %w", path, err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ignore file %s: %w", path, err)
	}
	return patterns, nil
}
