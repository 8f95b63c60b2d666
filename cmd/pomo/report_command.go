package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pomo/internal/history"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var from string
	var to string
	var sessions bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize recorded work time",
		Long:  "Summarize recorded work time between two dates, inclusive. Defaults to the current month.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("session history is disabled (history.enabled = false)")
			}
			start, end := defaultReportRange(time.Now().In(cfg.Location()))
			if strings.TrimSpace(from) != "" {
				start = strings.TrimSpace(from)
			}
			if strings.TrimSpace(to) != "" {
				end = strings.TrimSpace(to)
			}

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			report, err := store.Report(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderReport(out, report)

			if sessions {
				list, err := store.Sessions(cmd.Context(), start, end)
				if err != nil {
					return err
				}
				renderSessions(out, list)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day to include (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&sessions, "sessions", false, "List individual sessions")
	return cmd
}

// defaultReportRange spans the first of now's month through now.
func defaultReportRange(now time.Time) (string, string) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.Format(history.DateLayout), now.Format(history.DateLayout)
}

func renderReport(w io.Writer, report history.Report) {
	fmt.Fprintf(w, "Total time between %s and %s: %s\n", report.From, report.To, history.FormatHoursMinutes(report.TotalSeconds))
	if len(report.ByDay) == 0 {
		fmt.Fprintln(w, "No finished sessions in range")
		return
	}

	fmt.Fprintln(w)
	rows := make([][]string, 0, len(report.ByDay))
	for _, day := range report.ByDay {
		rows = append(rows, []string{day.Key, history.FormatHoursMinutes(day.Seconds)})
	}
	fmt.Fprintln(w, renderTable([]string{"Day", "Time"}, rows, []columnAlignment{alignLeft, alignRight}))

	fmt.Fprintln(w)
	rows = rows[:0]
	for _, tag := range report.ByTag {
		rows = append(rows, []string{tag.Key, history.FormatHoursMinutes(tag.Seconds), percentOf(tag.Seconds, report.TotalSeconds)})
	}
	fmt.Fprintln(w, renderTable([]string{"Tag", "Time", "Share"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
}

func renderSessions(w io.Writer, sessions []history.Session) {
	fmt.Fprintln(w)
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions in range")
		return
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		duration := history.FormatHoursMinutes(s.Duration)
		if s.Open {
			duration = "open"
		}
		rows = append(rows, []string{s.Date, s.Start, s.Tag, duration})
	}
	fmt.Fprintln(w, renderTable([]string{"Date", "Start", "Tag", "Time"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
}

func percentOf(part, total int64) string {
	if total <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", float64(part)*100/float64(total))
}
