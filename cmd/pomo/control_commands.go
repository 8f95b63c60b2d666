package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pomo/internal/control"
)

func newControlCommands(ctx *commandContext) []*cobra.Command {
	simple := func(use, short string, cmd control.Command) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, args []string) error {
				return ctx.send(cmd)
			},
		}
	}

	tagCmd := &cobra.Command{
		Use:   "tag <name>",
		Short: "Change the tag of the current timer",
		Long:  "Change the tag of the current timer. Only the first word is kept.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return ctx.send(control.SetTag(strings.Join(args, " ")))
		},
	}

	return []*cobra.Command{
		simple("toggle", "Start or pause the timer", control.Toggle()),
		simple("end", "End the current phase and switch to the next", control.End()),
		simple("lock", "Lock or unlock time adjustments", control.Lock()),
		simple("exit", "Ask the running daemon to exit", control.Exit()),
		tagCmd,
		newTimeCommand(ctx),
	}
}

// newTimeCommand parses its own arguments so a negative delta is not read as
// a flag.
func newTimeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:                "time (+N|-N)",
		Short:              "Add or remove seconds from the current timer",
		Example:            "  pomo time +300\n  pomo time -60",
		DisableFlagParsing: true,
		Annotations:        map[string]string{"skipConfigLoad": "true"},
		RunE: func(c *cobra.Command, args []string) error {
			delta, help, err := parseTimeArgs(args, ctx)
			if err != nil {
				return err
			}
			if help {
				return c.Help()
			}
			cmd, err := control.ParseDelta(delta)
			if err != nil {
				return err
			}
			return ctx.send(cmd)
		},
	}
}

func parseTimeArgs(args []string, ctx *commandContext) (string, bool, error) {
	var delta string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			return "", true, nil
		case arg == "-c" || arg == "--config" || arg == "--database":
			if i+1 >= len(args) {
				return "", false, fmt.Errorf("flag %s needs a value", arg)
			}
			setPersistent(ctx, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="):
			setPersistent(ctx, "--config", strings.TrimPrefix(arg, "--config="))
		case strings.HasPrefix(arg, "--database="):
			setPersistent(ctx, "--database", strings.TrimPrefix(arg, "--database="))
		case delta == "":
			delta = arg
		default:
			return "", false, fmt.Errorf("time takes one argument, got %q and %q", delta, arg)
		}
	}
	if delta == "" {
		return "", false, fmt.Errorf("time needs a delta such as +300 or -60")
	}
	return delta, false, nil
}

func setPersistent(ctx *commandContext, flag, value string) {
	switch flag {
	case "--database":
		if ctx.overrides != nil {
			ctx.overrides.database = value
		}
	default:
		if ctx.configFlag != nil {
			*ctx.configFlag = value
		}
	}
}
