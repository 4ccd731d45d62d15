// Package config loads composer settings from .composerrc, LUACOMPOSER_*
// environment variables and command line flags.
//
// Precedence, highest first: flags, environment, .composerrc, defaults.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/compose"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/finalizer"
)

// RCFileName is the project configuration file looked up in the workspace.
const RCFileName = ".composerrc"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LUACOMPOSER"

// Config holds all composer settings
type Config struct {
	SourceDirectory   string                `mapstructure:"source_directory"`
	OutputFile        string                `mapstructure:"output_file"`
	HeaderFile        string                `mapstructure:"header_file"`
	NamespaceFile     string                `mapstructure:"namespace_file"`
	EntrypointFile    string                `mapstructure:"entrypoint_file"`
	FooterFile        string                `mapstructure:"footer_file"`
	DCSStrictSanitize bool                  `mapstructure:"dcs_strict_sanitize"`
	Scope             string                `mapstructure:"scope"`
	Dependencies      []external.Dependency `mapstructure:"-"`
	Exclude           []string              `mapstructure:"exclude"`
	IgnoreRequires    []string              `mapstructure:"ignore_requires"`
	Parallel          int                   `mapstructure:"parallel"`
	LineEndings       string                `mapstructure:"line_endings"`
	DependencyPolicy  string                `mapstructure:"dependency_policy"`
	CacheDir          string                `mapstructure:"cache_dir"`

	// File is the .composerrc that was read, "" when none.
	File string `mapstructure:"-"`
	// Warnings collects non-fatal problems such as unknown keys.
	Warnings []string `mapstructure:"-"`
}

// KnownKeys lists every key .composerrc may contain.
var KnownKeys = []string{
	"source_directory",
	"output_file",
	"header_file",
	"namespace_file",
	"entrypoint_file",
	"footer_file",
	"dcs_strict_sanitize",
	"scope",
	"dependencies",
	"exclude",
	"ignore_requires",
	"parallel",
	"line_endings",
	"dependency_policy",
	"cache_dir",
}

// DefaultParallel bounds concurrent fetches and sanitization.
const DefaultParallel = 4

func setDefaults(v *viper.Viper) {
	v.SetDefault("source_directory", "")
	v.SetDefault("output_file", "")
	v.SetDefault("header_file", "")
	v.SetDefault("namespace_file", "")
	v.SetDefault("entrypoint_file", "")
	v.SetDefault("footer_file", "")
	v.SetDefault("dcs_strict_sanitize", true)
	v.SetDefault("scope", string(compose.ScopeGlobal))
	v.SetDefault("dependencies", nil)
	v.SetDefault("exclude", []string{})
	v.SetDefault("ignore_requires", []string{})
	v.SetDefault("parallel", DefaultParallel)
	v.SetDefault("line_endings", string(finalizer.LF))
	v.SetDefault("dependency_policy", "")
	v.SetDefault("cache_dir", "")
}

// LoadOptions says where settings come from.
type LoadOptions struct {
	// File is an explicit config path. When empty, Dir/.composerrc is used
	// if it exists.
	File string
	Dir  string
	// Flags maps config keys to the flags that override them. Only flags
	// the user actually set take effect.
	Flags    *pflag.FlagSet
	FlagKeys map[string]string
}

// Load merges defaults, .composerrc, environment and flags, then validates
// the result.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config

	path, explicit := opts.File, opts.File != ""
	if !explicit {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, RCFileName)
	}
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- operator supplied config path
	switch {
	case err == nil:
		unknown, err := ValidateRC(data)
		if err != nil {
			return nil, &Error{Key: path, Message: "invalid configuration file", Err: err}
		}
		if len(unknown) > 0 {
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("Unknown keys in %s will be ignored: %s", RCFileName, strings.Join(unknown, ", ")))
		}
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, &Error{Key: path, Message: "failed to read configuration file", Err: err}
		}
		cfg.File = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, &Error{Key: path, Message: "configuration file not accessible", Err: err}
	}

	if opts.Flags != nil {
		for key, name := range opts.FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, &Error{Key: key, Message: "failed to bind flag --" + name, Err: err}
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Message: "failed to decode configuration", Err: err}
	}
	deps, err := decodeDependencies(v.Get("dependencies"))
	if err != nil {
		return nil, &Error{Key: "dependencies", Message: "invalid dependency list", Err: err}
	}
	cfg.Dependencies = deps

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeDependencies accepts the list as parsed JSON (from the file) or as a
// JSON string (from a flag or environment variable).
func decodeDependencies(raw interface{}) ([]external.Dependency, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return external.ParseList(val)
	case []external.Dependency:
		return val, external.ValidateAll(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		var deps []external.Dependency
		if err := json.Unmarshal(data, &deps); err != nil {
			return nil, fmt.Errorf("dependencies must be a list of objects: %w", err)
		}
		return deps, external.ValidateAll(deps)
	}
}

// Validate checks enumerated values and bounds.
func (c *Config) Validate() error {
	if _, err := compose.ParseScope(c.Scope); err != nil {
		return &Error{Key: "scope", Message: err.Error()}
	}
	if _, err := finalizer.ParseLineEnding(c.LineEndings); err != nil {
		return &Error{Key: "line_endings", Message: err.Error()}
	}
	if c.Parallel < 1 {
		return &Error{Key: "parallel", Message: fmt.Sprintf("must be at least 1, got %d", c.Parallel)}
	}
	return nil
}

// ValidateForBuild additionally requires the inputs a build cannot run
// without.
func (c *Config) ValidateForBuild() error {
	return c.require(
		[2]string{"source_directory", c.SourceDirectory},
		[2]string{"output_file", c.OutputFile},
		[2]string{"namespace_file", c.NamespaceFile},
		[2]string{"entrypoint_file", c.EntrypointFile},
	)
}

// ValidateForPlan is ValidateForBuild without the output file.
func (c *Config) ValidateForPlan() error {
	return c.require(
		[2]string{"source_directory", c.SourceDirectory},
		[2]string{"namespace_file", c.NamespaceFile},
		[2]string{"entrypoint_file", c.EntrypointFile},
	)
}

func (c *Config) require(fields ...[2]string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return &Error{Key: f[0], Message: "is required"}
		}
	}
	return nil
}

// unknownKeys returns the top level keys of doc that are not KnownKeys.
func unknownKeys(doc map[string]interface{}) []string {
	known := make(map[string]bool, len(KnownKeys))
	for _, k := range KnownKeys {
		known[k] = true
	}
	var out []string
	for k := range doc {
		if !known[k] && k != "$schema" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
