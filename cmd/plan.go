package cmd

import (
	"github.com/spf13/cobra"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/config"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/report"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [src_dir]",
		Short: "Show the resolved module order without building",
		Long: `Plan discovers and parses the project, resolves require edges and prints
the emission order. Nothing is fetched, sanitized or written.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         runPlan,
	}
	addInputFlags(cmd)
	cmd.Flags().Var(config.NewEnumValue("text", "text", "json", "yaml", "toml"), "format", "Output format")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadInputs(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.ValidateForPlan(); err != nil {
		return err
	}
	format, err := report.ParseFormat(cmd.Flags().Lookup("format").Value.String())
	if err != nil {
		return err
	}

	builder, err := builderFor(cmd, cfg, fetchTransport)
	if err != nil {
		return err
	}
	res, err := builder.Plan(cmd.Context())
	if err != nil {
		return err
	}
	return report.RenderPlan(cmd.OutOrStdout(), res.Plan, format)
}
