package main

import (
	"github.com/spf13/cobra"

	"pomo/internal/daemonrun"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var overrides overrideFlags
	var logLevel string

	ctx := newCommandContext(&configFlag, &overrides)

	rootCmd := &cobra.Command{
		Use:           "pomo",
		Short:         "Pomodoro timer daemon for status bars",
		Long:          "Run without a subcommand to start the daemon. Subcommands control a running daemon.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().IntVar(&overrides.workTime, "worktime", 0, "Work phase length in seconds")
	rootCmd.Flags().IntVar(&overrides.breakTime, "breaktime", 0, "Break phase length in seconds")
	rootCmd.Flags().StringVar(&overrides.tag, "tag", "", "Tag for new work sessions")
	rootCmd.PersistentFlags().StringVar(&overrides.database, "database", "", "Path to the session history database")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	for _, cmd := range newControlCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
