package safeio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideBase is returned when a path escapes its base directory.
var ErrOutsideBase = errors.New("path is outside base directory")

// CleanUserPath cleans a user-provided relative path and rejects traversal
// attempts. Returns paths with forward slashes for cross-platform consistency.
func CleanUserPath(p string) (string, error) {
	c := filepath.Clean(p)
	for _, part := range strings.Split(filepath.ToSlash(c), "/") {
		if part == ".." {
			return "", errors.New("path traversal detected")
		}
	}
	return filepath.ToSlash(c), nil
}

// ResolveContained joins rel onto baseDir and returns the absolute result,
// rejecting anything that resolves outside baseDir. Symlinks are followed
// for the parts of the path that exist.
func ResolveContained(baseDir, rel string) (string, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	target := rel
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, rel)
	}
	target = filepath.Clean(target)

	if !within(base, target) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, rel)
	}
	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return target, nil
	}
	if realTarget, err := filepath.EvalSymlinks(target); err == nil && !within(realBase, realTarget) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, rel)
	}
	return target, nil
}

func within(base, target string) bool {
	r, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}

// ReadFileContained reads rel relative to baseDir, refusing paths that
// escape it.
func ReadFileContained(baseDir, rel string) ([]byte, error) {
	path, err := ResolveContained(baseDir, rel)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path containment verified above
	return os.ReadFile(path)
}

// WriteFileAtomic writes data to a sibling temp file and renames it over
// path, so readers never observe a partial file. An existing file's mode is
// preserved; new files get 0644.
func WriteFileAtomic(path string, data []byte) error {
	var mode os.FileMode = 0o644
	if st, err := os.Stat(path); err == nil {
		if m := st.Mode() & 0o777; m != 0 {
			mode = m
		}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
