package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/build"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/config"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external/policy"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/logger"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/report"
)

func newDepsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deps",
		Aliases: []string{"dependencies"},
		Short:   "Inspect, prefetch and cache external dependencies",
	}

	list := &cobra.Command{
		Use:          "list",
		Short:        "List declared external dependencies",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runDepsList,
	}
	list.Flags().Var(config.NewEnumValue("text", "text", "json", "yaml", "toml"), "format", "Output format")

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Download declared dependencies into the cache",
		Long: `Fetch checks the dependency policy, then downloads every declared
dependency into the cache so later builds can run offline.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runDepsFetch,
	}

	clean := &cobra.Command{
		Use:          "clean-cache",
		Short:        "Remove cached downloads",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runDepsCleanCache,
	}

	for _, c := range []*cobra.Command{list, fetch, clean} {
		c.Flags().String("config", "", "Path to a configuration file (default: ./"+config.RCFileName+")")
		c.Flags().String("dependencies", "", "External dependencies as a JSON list")
		c.Flags().String("cache-dir", "", "Download cache directory (default: user cache dir)")
		c.Flags().String("policy", "", "YAML dependency policy")
		c.Flags().Int("parallel", config.DefaultParallel, "Maximum concurrent fetches")
	}
	cmd.AddCommand(list, fetch, clean)
	return cmd
}

var depsFlagKeys = map[string]string{
	"dependencies":      "dependencies",
	"cache_dir":         "cache-dir",
	"dependency_policy": "policy",
	"parallel":          "parallel",
}

func loadDepsConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{File: explicit, Flags: cmd.Flags(), FlagKeys: depsFlagKeys})
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	return cfg, nil
}

func runDepsList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadDepsConfig(cmd)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cmd.Flags().Lookup("format").Value.String())
	if err != nil {
		return err
	}
	deps := make([]report.PlanDependency, 0, len(cfg.Dependencies))
	for _, d := range cfg.Dependencies {
		deps = append(deps, report.PlanDependency{Name: d.Name, Type: string(d.Type), Source: d.Source, File: d.File})
	}
	return report.RenderDependencies(cmd.OutOrStdout(), deps, format)
}

func runDepsFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadDepsConfig(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Dependencies) == 0 {
		logger.Info("No external dependencies declared")
		return nil
	}
	if cfg.DependencyPolicy != "" {
		engine, err := policy.LoadFile(cfg.DependencyPolicy)
		if err != nil {
			return &config.Error{Key: "dependency_policy", Message: "failed to load policy", Err: err}
		}
		if err := engine.Check(cmd.Context(), cfg.Dependencies); err != nil {
			return err
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}
	fetcher, err := build.NewFetcher(cfg, wd, fetchTransport)
	if err != nil {
		return err
	}
	payloads, err := fetcher.FetchAll(cmd.Context(), cfg.Dependencies)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range external.Pair(cfg.Dependencies, payloads) {
		for _, w := range r.Payload.Warnings {
			logger.Warn(w, logger.String("dependency", r.Dependency.Name))
		}
		version := r.Payload.Tag
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(out, "%s\t%s\t%d bytes\n", r.Dependency.Name, version, len(r.Payload.Content))
	}
	return nil
}

func runDepsCleanCache(cmd *cobra.Command, _ []string) error {
	cfg, err := loadDepsConfig(cmd)
	if err != nil {
		return err
	}
	cache, err := external.NewCache(cfg.CacheDir)
	if err != nil {
		return &config.Error{Key: "cache_dir", Message: "cache directory unusable", Err: err}
	}
	removed, err := cache.Clean()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached file(s) from %s\n", removed, cache.Dir())
	return nil
}
