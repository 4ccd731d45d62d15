// Package ignore filters source discovery with gitignore semantics using go-git.
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the composer-specific ignore file read from the source root.
const FileName = ".composerignore"

// Matcher decides whether a path under the source root is skipped.
type Matcher struct {
	root    string
	matcher gitignore.Matcher
}

// NewMatcher layers ignore patterns for root:
// 1. built-in defaults (.git and editor backups)
// 2. .gitignore files found under root
// 3. .composerignore at root
func NewMatcher(root string) (*Matcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fs := osfs.New(abs)

	var patterns []gitignore.Pattern
	for _, p := range []string{".git/", "*~", "*.swp"} {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	// ReadPatterns walks nested .gitignore files; errors mean there is none.
	if gitPatterns, err := gitignore.ReadPatterns(fs, nil); err == nil {
		patterns = append(patterns, gitPatterns...)
	}

	composerPatterns, err := readIgnoreFile(filepath.Join(abs, FileName))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, p := range composerPatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	return &Matcher{root: abs, matcher: gitignore.NewMatcher(patterns)}, nil
}

// readIgnoreFile reads patterns, skipping blank lines and comments
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- fixed name under the source root
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

// IsIgnored reports whether path is ignored. path may be absolute or
// relative to the matcher root.
func (m *Matcher) IsIgnored(path string, isDir bool) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(m.root, path)
		if err != nil {
			return false
		}
		rel = r
	}

	parts := splitPath(filepath.ToSlash(rel))
	if len(parts) == 0 || parts[0] == ".." {
		return false
	}
	return m.matcher.Match(parts, isDir)
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	if path == "" || path == "." {
		return nil
	}
	path = strings.TrimPrefix(path, "/")

	parts := strings.Split(path, "/")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}
