package build

import (
	"os"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/compose"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/config"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external/policy"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/finalizer"
)

// OptionsFromConfig converts loaded settings into build options. workDir
// anchors local dependencies; doer overrides the fetcher transport when
// non-nil.
func OptionsFromConfig(cfg *config.Config, workDir string, doer external.HTTPDoer) (Options, error) {
	scope, err := compose.ParseScope(cfg.Scope)
	if err != nil {
		return Options{}, &config.Error{Key: "scope", Message: "invalid value", Err: err}
	}
	ending, err := finalizer.ParseLineEnding(cfg.LineEndings)
	if err != nil {
		return Options{}, &config.Error{Key: "line_endings", Message: "invalid value", Err: err}
	}

	opts := Options{
		SourceDir:      cfg.SourceDirectory,
		OutputFile:     cfg.OutputFile,
		HeaderFile:     cfg.HeaderFile,
		NamespaceFile:  cfg.NamespaceFile,
		EntrypointFile: cfg.EntrypointFile,
		FooterFile:     cfg.FooterFile,
		Strict:         cfg.DCSStrictSanitize,
		Scope:          scope,
		Dependencies:   cfg.Dependencies,
		Exclude:        cfg.Exclude,
		IgnoreRequires: cfg.IgnoreRequires,
		Parallel:       cfg.Parallel,
		LineEnding:     ending,
	}

	if cfg.DependencyPolicy != "" {
		engine, err := policy.LoadFile(cfg.DependencyPolicy)
		if err != nil {
			return Options{}, &config.Error{Key: "dependency_policy", Message: "failed to load policy", Err: err}
		}
		opts.Policy = engine
	}

	if len(cfg.Dependencies) > 0 {
		fetcher, err := NewFetcher(cfg, workDir, doer)
		if err != nil {
			return Options{}, err
		}
		opts.Fetcher = fetcher
	}
	return opts, nil
}

// NewFetcher creates a dependency fetcher with the configured cache.
// GITHUB_TOKEN authenticates release lookups when set.
func NewFetcher(cfg *config.Config, workDir string, doer external.HTTPDoer) (*external.Fetcher, error) {
	dir := cfg.CacheDir
	if dir == "" {
		dir = external.DefaultCacheDir()
	}
	cache, err := external.NewCache(dir)
	if err != nil {
		return nil, &config.Error{Key: "cache_dir", Message: "cache directory unusable", Err: err}
	}
	return external.NewFetcher(external.Options{
		BaseDir:  workDir,
		Token:    os.Getenv("GITHUB_TOKEN"),
		HTTP:     doer,
		Cache:    cache,
		Parallel: cfg.Parallel,
	}), nil
}
