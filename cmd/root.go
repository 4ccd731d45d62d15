package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/buildinfo"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/config"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/exitcode"
	"github.com/YoloWingPixie/dcs-lua-composer-action/pkg/logger"
)

// newRootCommand creates a fresh root command instance.
// Tests build isolated command trees from it.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "luacomposer",
		Short: "Compose a multi-file Lua project into one DCS mission script",
		Long: `luacomposer combines a multi-file Lua project into a single script for the
DCS World mission scripting environment. Module order is inferred from
require calls, and every module is sanitized for the mission sandbox.

Examples:
   luacomposer build src dist/mission.lua --namespace namespace.lua --entrypoint main.lua
   luacomposer plan src --namespace namespace.lua --entrypoint main.lua --format json
   luacomposer deps list
   luacomposer rc .`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadDotEnv(); err != nil {
				return err
			}
			initializeLogger(cmd)
			return nil
		},
	}

	cmd.PersistentFlags().Var(config.NewEnumValue("info", "trace", "debug", "info", "warn", "error"), "log-level", "Set log level")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("luacomposer {{.Version}}\n")
	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newPlanCommand())
	cmd.AddCommand(newDepsCommand())
	cmd.AddCommand(newRCCommand())
	cmd.AddCommand(newVersionCommand())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

func init() {
	registerSubcommands(rootCmd)
}

// Execute runs the CLI and exits with the code matching the failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := exitCodeFor(err)
		logger.Error("Command execution failed",
			logger.Err(err),
			logger.String("category", exitcode.String(code)))
		os.Exit(code)
	}
}

// loadDotEnv reads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return &config.Error{Key: ".env", Message: "failed to load environment file", Err: err}
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	level := "info"
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		level = f.Value.String()
	}
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	noOp := false
	if f := cmd.Flags().Lookup("no-op"); f != nil {
		noOp = f.Value.String() == "true"
	}

	cfg := logger.Config{
		Level:     logger.ParseLevel(level),
		UseColor:  !noColor && os.Getenv("NO_COLOR") == "",
		JSON:      jsonLogs,
		Component: "luacomposer",
		NoOp:      noOp,
	}
	if err := logger.Initialize(cfg); err != nil {
		_, _ = os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(exitcode.ConfigError)
	}
}
