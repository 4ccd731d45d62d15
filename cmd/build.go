package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/build"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/external"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/logger"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/report"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/safeio"
)

// fetchTransport overrides the HTTP client used for dependencies in tests.
var fetchTransport external.HTTPDoer

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [src_dir] [output_file]",
		Short: "Compose and sanitize the project into one script",
		Long: `Build discovers every .lua file under the source directory, orders core
modules by their require calls, sanitizes them for the DCS mission
environment and writes a single script.

Settings come from flags, LUACOMPOSER_* environment variables and
.composerrc, in that order of precedence. The output file is only written
when every step succeeds.`,
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		RunE:         runBuild,
	}
	addInputFlags(cmd)
	cmd.Flags().String("report", "", "Write warnings and errors as checkstyle XML to this file")
	cmd.Flags().Bool("no-op", false, "Compose and validate without writing the output file")
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadInputs(cmd, args)
	if err != nil {
		return err
	}
	noOp, _ := cmd.Flags().GetBool("no-op")
	if noOp {
		err = cfg.ValidateForPlan()
	} else {
		err = cfg.ValidateForBuild()
	}
	if err != nil {
		return err
	}

	builder, err := builderFor(cmd, cfg, fetchTransport)
	if err != nil {
		return err
	}

	var res *build.Result
	if noOp {
		res, err = builder.Compose(cmd.Context())
	} else {
		res, err = builder.Build(cmd.Context())
	}
	reportPath, _ := cmd.Flags().GetString("report")
	if err != nil {
		if repErr := publishDiagnostics(cmd, reportPath, build.FailureDiagnostics(err)); repErr != nil {
			logger.Warn("Failed to publish diagnostics", logger.Err(repErr))
		}
		return err
	}

	for _, d := range res.Diagnostics {
		logger.Warn(d.Message,
			logger.String("rule", d.Rule),
			logger.String("file", location(d)))
	}
	if err := publishDiagnostics(cmd, reportPath, res.Diagnostics); err != nil {
		return err
	}
	if noOp {
		logger.Info("Composition succeeded; output not written",
			logger.Int("core_modules", len(res.Order)),
			logger.Int("bytes", len(res.Output)))
	}
	return nil
}

// publishDiagnostics writes the checkstyle report when requested and emits
// workflow annotations when running in GitHub Actions.
func publishDiagnostics(cmd *cobra.Command, reportPath string, diags []report.Diagnostic) error {
	if reportPath != "" {
		path, err := safeio.CleanUserPath(reportPath)
		if err != nil {
			return fmt.Errorf("invalid report path: %w", err)
		}
		var buf bytes.Buffer
		if err := report.WriteCheckstyle(&buf, diags); err != nil {
			return err
		}
		if err := safeio.WriteFileAtomic(path, buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write report %s: %w", path, err)
		}
		logger.Debug("Wrote checkstyle report", logger.String("path", path))
	}
	if report.InGitHubActions() {
		return report.WriteAnnotations(cmd.OutOrStdout(), diags)
	}
	return nil
}

func location(d report.Diagnostic) string {
	switch {
	case d.File == "":
		return "-"
	case d.Line == 0:
		return d.File
	default:
		return fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
	}
}
