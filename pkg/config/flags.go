package config

import (
	"fmt"
	"slices"
	"strings"
)

// EnumValue is a pflag.Value restricted to a fixed set of strings.
type EnumValue struct {
	allowed []string
	value   string
}

// NewEnumValue returns an enum flag value with the given default.
func NewEnumValue(def string, allowed ...string) *EnumValue {
	return &EnumValue{allowed: allowed, value: def}
}

func (e *EnumValue) String() string { return e.value }

// Set accepts any allowed value, case-insensitively.
func (e *EnumValue) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	if !slices.Contains(e.allowed, s) {
		return fmt.Errorf("must be one of: %s", strings.Join(e.allowed, ", "))
	}
	e.value = s
	return nil
}

// Type is shown in help output.
func (e *EnumValue) Type() string { return strings.Join(e.allowed, "|") }

// Allowed returns the accepted values.
func (e *EnumValue) Allowed() []string { return slices.Clone(e.allowed) }
