package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/build"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/config"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/logger"
)

// inputFlagKeys maps .composerrc keys to the flags that override them.
var inputFlagKeys = map[string]string{
	"header_file":         "header",
	"namespace_file":      "namespace",
	"entrypoint_file":     "entrypoint",
	"footer_file":         "footer",
	"scope":               "scope",
	"dcs_strict_sanitize": "dcs-strict-sanitize",
	"dependencies":        "dependencies",
	"exclude":             "exclude",
	"ignore_requires":     "ignore-require",
	"parallel":            "parallel",
	"line_endings":        "line-endings",
	"dependency_policy":   "policy",
	"cache_dir":           "cache-dir",
}

// addInputFlags registers the flags shared by build and plan.
func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "Path to a configuration file (default: ./"+config.RCFileName+")")
	f.String("header", "", "Header file, relative to the source directory")
	f.String("namespace", "", "Namespace file, relative to the source directory")
	f.String("entrypoint", "", "Entrypoint file, relative to the source directory")
	f.String("footer", "", "Footer file, relative to the source directory")
	f.Var(config.NewEnumValue("global", "global", "local"), "scope", "Wrap the body in a do ... end block when local")
	f.Var(config.NewEnumValue("true", "true", "false"), "dcs-strict-sanitize", "Fail on os, io and lfs usage")
	f.String("dependencies", "", "External dependencies as a JSON list")
	f.StringSlice("exclude", nil, "Glob of source files to skip (repeatable)")
	f.StringSlice("ignore-require", nil, "Glob of module identities provided by the host (repeatable)")
	f.Int("parallel", config.DefaultParallel, "Maximum concurrent fetches and sanitizer runs")
	f.Var(config.NewEnumValue("lf", "lf", "crlf"), "line-endings", "Line endings of the output")
	f.String("policy", "", "YAML dependency policy checked before fetching")
	f.String("cache-dir", "", "Download cache directory (default: user cache dir)")
	f.Bool("no-ignore", false, "Do not apply .gitignore and .composerignore during discovery")
}

// loadInputs merges .composerrc, environment and flags. Positional
// arguments, when given, name the source directory and output file.
func loadInputs(cmd *cobra.Command, args []string) (*config.Config, error) {
	explicit, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{
		File:     explicit,
		Flags:    cmd.Flags(),
		FlagKeys: inputFlagKeys,
	})
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.SourceDirectory = args[0]
	}
	if len(args) > 1 {
		cfg.OutputFile = args[1]
	}
	if cfg.File != "" {
		logger.Debug("Loaded configuration", logger.String("file", cfg.File))
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	return cfg, nil
}

// builderFor turns loaded settings into a Builder rooted at the working
// directory.
func builderFor(cmd *cobra.Command, cfg *config.Config, doer external.HTTPDoer) (*build.Builder, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	opts, err := build.OptionsFromConfig(cfg, wd, doer)
	if err != nil {
		return nil, err
	}
	opts.NoIgnore, _ = cmd.Flags().GetBool("no-ignore")
	return build.New(opts), nil
}
