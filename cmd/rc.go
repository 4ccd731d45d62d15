package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/config"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/logger"
)

func newRCCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rc [workspace]",
		Short: "Export .composerrc values as workflow step outputs",
		Long: `rc reads <workspace>/.composerrc, validates it and writes each known key as
rc_<key>=<value> to the file named by GITHUB_OUTPUT. Without GITHUB_OUTPUT
the legacy ::set-output commands are printed instead.

A missing .composerrc is not an error; nothing is written.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         runRC,
	}
}

func runRC(cmd *cobra.Command, args []string) error {
	workspace := "."
	if len(args) == 1 {
		workspace = args[0]
	}
	rc, err := config.ReadRC(workspace)
	if err != nil {
		return err
	}
	if rc == nil {
		logger.Info("No .composerrc file found, using action inputs only", logger.String("workspace", workspace))
		return nil
	}
	logger.Info(".composerrc file found and loaded", logger.String("path", rc.Path))
	if len(rc.Unknown) > 0 {
		logger.Warn("Unknown keys in .composerrc will be ignored", logger.Strings("keys", rc.Unknown))
	}
	return rc.WriteOutputs(os.Getenv("GITHUB_OUTPUT"), cmd.OutOrStdout())
}
