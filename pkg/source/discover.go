package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/ignore"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/logger"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/safeio"
)

// ErrMissingRoleFile marks a role file that was named but does not exist or
// lies outside the source root.
var ErrMissingRoleFile = errors.New("role file not found")

// Options selects what Discover reads. Role paths are relative to Root.
type Options struct {
	Root       string
	Header     string
	Namespace  string
	Entrypoint string
	Footer     string
	// Exclude holds doublestar globs matched against slash relative paths.
	Exclude []string
	// NoIgnore disables .gitignore and .composerignore filtering.
	NoIgnore bool
}

// Bundle is the role-tagged set of files handed to the build.
type Bundle struct {
	Root       string
	Header     *Module
	Namespace  *Module
	Entrypoint *Module
	Footer     *Module
	// Core is sorted by ID.
	Core []*Module
}

// Discover resolves the role files and collects every other .lua file under
// Root as a core module.
func Discover(opts Options) (*Bundle, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source directory: %w", err)
	}
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source directory not accessible: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", root)
	}
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	b := &Bundle{Root: root}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("%w: namespace file is required", ErrMissingRoleFile)
	}
	if opts.Entrypoint == "" {
		return nil, fmt.Errorf("%w: entrypoint file is required", ErrMissingRoleFile)
	}
	roles := []struct {
		role Role
		rel  string
		dst  **Module
	}{
		{RoleHeader, opts.Header, &b.Header},
		{RoleNamespace, opts.Namespace, &b.Namespace},
		{RoleEntrypoint, opts.Entrypoint, &b.Entrypoint},
		{RoleFooter, opts.Footer, &b.Footer},
	}
	taken := make(map[string]Role)
	for _, r := range roles {
		if r.rel == "" {
			continue
		}
		m, err := loadRole(root, r.rel, r.role)
		if err != nil {
			return nil, err
		}
		if prev, ok := taken[m.Path]; ok {
			return nil, fmt.Errorf("%s file %s is already used as the %s file", r.role, m.RelPath, prev)
		}
		taken[m.Path] = r.role
		*r.dst = m
	}

	var matcher *ignore.Matcher
	if !opts.NoIgnore {
		if matcher, err = ignore.NewMatcher(root); err != nil {
			return nil, fmt.Errorf("failed to load ignore files: %w", err)
		}
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		slashRel := filepath.ToSlash(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if matcher != nil && matcher.IsIgnored(slashRel, true) {
				logger.Debug("Skipping ignored directory", logger.String("dir", slashRel))
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".lua") {
			return nil
		}
		if _, ok := taken[path]; ok {
			return nil
		}
		if excluded(opts.Exclude, slashRel) {
			logger.Debug("Excluding file", logger.String("file", slashRel))
			return nil
		}
		if matcher != nil && matcher.IsIgnored(slashRel, false) {
			logger.Debug("Skipping ignored file", logger.String("file", slashRel))
			return nil
		}
		m, err := load(path, slashRel, RoleCore)
		if err != nil {
			return err
		}
		b.Core = append(b.Core, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover source files: %w", err)
	}

	sort.Slice(b.Core, func(i, j int) bool { return b.Core[i].ID < b.Core[j].ID })
	return b, nil
}

// Modules returns the namespace, core modules and entrypoint, the files
// that take part in the dependency graph.
func (b *Bundle) Modules() []*Module {
	out := make([]*Module, 0, len(b.Core)+2)
	out = append(out, b.Namespace)
	out = append(out, b.Core...)
	return append(out, b.Entrypoint)
}

func loadRole(root, rel string, role Role) (*Module, error) {
	clean, err := safeio.CleanUserPath(rel)
	if err != nil {
		return nil, fmt.Errorf("%w: %s file %q resolves outside the source directory", ErrMissingRoleFile, role, rel)
	}
	path, err := safeio.ResolveContained(root, clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %s file %q resolves outside the source directory", ErrMissingRoleFile, role, rel)
	}
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return nil, fmt.Errorf("%w: %s file %q not found at %s", ErrMissingRoleFile, role, rel, path)
	}
	slashRel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}
	return load(path, filepath.ToSlash(slashRel), role)
}

func load(path, rel string, role Role) (*Module, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is under the source root
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	text, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	return &Module{
		ID:      ModuleID(rel),
		Path:    path,
		RelPath: rel,
		Dir:     DirKey(rel),
		Role:    role,
		Source:  text,
	}, nil
}

func excluded(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
