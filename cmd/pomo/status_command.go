package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pomo/internal/broadcast"
)

const statusReconnect = 5 * time.Second

const (
	iconWork  = "🍅"
	iconBreak = "☕"
	iconPause = "⏸"

	polybarIconColor = "%{F#555}"
	polybarReset     = "%{F-}"
)

type statusStyle int

const (
	stylePlain statusStyle = iota
	stylePolybar
	styleJSON
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var jsonOut bool
	var polybar bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the timer as a status-bar line",
		Long: "Print the current timer once, or keep printing every update with --follow.\n" +
			"Following reconnects every 5 seconds while no daemon is running.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			style := stylePlain
			switch {
			case jsonOut:
				style = styleJSON
			case polybar:
				style = stylePolybar
			}
			out := cmd.OutOrStdout()

			if !follow {
				reader, err := broadcast.Dial(cfg.Paths.StatusSocket)
				if err != nil {
					return fmt.Errorf("pomo daemon is not running (no status endpoint at %s)", cfg.Paths.StatusSocket)
				}
				defer reader.Close()
				msg, err := reader.Next()
				if err != nil {
					return fmt.Errorf("read status: %w", err)
				}
				return writeStatus(out, msg, style)
			}

			return broadcast.Subscribe(cmd.Context(), cfg.Paths.StatusSocket, broadcast.SubscribeOptions{
				Reconnect: statusReconnect,
			}, func(msg broadcast.Message) error {
				return writeStatus(out, msg, style)
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing every update")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print raw status messages")
	cmd.Flags().BoolVar(&polybar, "polybar", false, "Color the icon with polybar format tags")
	return cmd
}

func writeStatus(w io.Writer, msg broadcast.Message, style statusStyle) error {
	if style == styleJSON {
		return json.NewEncoder(w).Encode(msg)
	}
	_, err := fmt.Fprintln(w, statusLine(msg, style))
	return err
}

// statusLine renders "<icon> <timer>" the way bar integrations show it.
func statusLine(msg broadcast.Message, style statusStyle) string {
	icon := iconWork
	if msg.Status == "break" {
		icon = iconBreak
	}
	if !msg.Active {
		icon = iconPause
	}
	if style == stylePolybar {
		icon = polybarIconColor + icon + polybarReset
	}
	return icon + " " + msg.Timer
}
