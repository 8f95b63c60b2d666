package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pomo/internal/notifications"
	"pomo/internal/preflight"
	"pomo/internal/status"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check directories, notifier binaries, and the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var failures int
			fmt.Fprintln(out, "Paths and services")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := checkOK
				if !result.Passed {
					kind = checkError
					failures++
				}
				fmt.Fprintln(out, renderCheckLine(result.Name, kind, result.Detail, colorize))
			}

			deps := preflight.CheckSystemDeps(cfg)
			if len(deps) > 0 {
				fmt.Fprintln(out, "Notifiers")
				for _, dep := range deps {
					kind, detail := checkOK, dep.Path
					if !dep.Available {
						kind, detail = checkWarn, dep.Detail+"; "+dep.Description+" is skipped"
					}
					fmt.Fprintln(out, renderCheckLine(dep.Name, kind, detail, colorize))
				}
			}

			fmt.Fprintln(out, "Daemon")
			daemon := preflight.CheckDaemon(cfg.Paths.StatusSocket)
			kind := checkInfo
			if !daemon.Passed {
				kind = checkError
				failures++
			}
			fmt.Fprintln(out, renderCheckLine(daemon.Name, kind, daemon.Detail, colorize))
			fmt.Fprintln(out, renderCheckLine("Phases", checkInfo, fmt.Sprintf("%s %ds, %s %ds",
				notifications.PhaseTitle(status.PhaseWork), cfg.Timer.WorkTime,
				notifications.PhaseTitle(status.PhaseBreak), cfg.Timer.BreakTime), colorize))
			fmt.Fprintln(out, renderCheckLine("History", checkInfo, fmt.Sprintf("%s (%s)",
				yesNo(cfg.History.Enabled), cfg.Paths.Database), colorize))

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			return nil
		},
	}
}
