// Package external declares, fetches and sequences the third-party Lua
// libraries that are vendored into a composed script.
package external

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind is where a dependency comes from.
type Kind string

const (
	KindGitHubRelease Kind = "github_release"
	KindURL           Kind = "url"
	KindLocal         Kind = "local"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindGitHubRelease, KindURL, KindLocal}

// ErrInvalidDependency marks a malformed declaration.
var ErrInvalidDependency = errors.New("invalid dependency")

// Dependency is one declared external library.
type Dependency struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Type        Kind   `json:"type" yaml:"type" mapstructure:"type"`
	Source      string `json:"source" yaml:"source" mapstructure:"source"`
	File        string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
	License     string `json:"license,omitempty" yaml:"license,omitempty" mapstructure:"license"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// Validate checks the fields a declaration must carry.
func (d Dependency) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: dependency must have a 'name' field", ErrInvalidDependency)
	}
	if d.Type == "" {
		return fmt.Errorf("%w: dependency '%s' must have a 'type' field", ErrInvalidDependency, d.Name)
	}
	known := false
	for _, k := range Kinds {
		if d.Type == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: dependency '%s' has invalid type: %s", ErrInvalidDependency, d.Name, d.Type)
	}
	if strings.TrimSpace(d.Source) == "" {
		return fmt.Errorf("%w: dependency '%s' must have a 'source' field", ErrInvalidDependency, d.Name)
	}
	if d.Type == KindGitHubRelease {
		if d.File == "" {
			return fmt.Errorf("%w: GitHub release dependency '%s' must specify a 'file' field", ErrInvalidDependency, d.Name)
		}
		if _, err := ParseReleaseSource(d.Source); err != nil {
			return fmt.Errorf("%w: dependency '%s': %v", ErrInvalidDependency, d.Name, err)
		}
	}
	return nil
}

// ValidateAll validates each declaration and rejects duplicate names.
func ValidateAll(deps []Dependency) error {
	seen := make(map[string]bool, len(deps))
	for _, d := range deps {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: duplicate dependency name '%s'", ErrInvalidDependency, d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// ParseList decodes a JSON array of declarations, as passed on the command
// line or stored in .composerrc, and validates it. Empty input is no
// dependencies.
func ParseList(raw string) ([]Dependency, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var deps []Dependency
	if err := json.Unmarshal([]byte(raw), &deps); err != nil {
		return nil, fmt.Errorf("%w: dependencies must be a JSON list: %v", ErrInvalidDependency, err)
	}
	if err := ValidateAll(deps); err != nil {
		return nil, err
	}
	return deps, nil
}

// Names returns the declared names in order.
func Names(deps []Dependency) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, d.Name)
	}
	return out
}
