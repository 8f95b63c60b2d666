package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"pomo/internal/config"
	"pomo/internal/control"
)

type overrideFlags struct {
	workTime  int
	breakTime int
	tag       string
	database  string
}

type commandContext struct {
	configFlag *string
	overrides  *overrideFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, overrides *overrideFlags) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		overrides:  overrides,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if c.overrides != nil {
			err := cfg.Apply(config.Overrides{
				WorkTime:  c.overrides.workTime,
				BreakTime: c.overrides.breakTime,
				Tag:       c.overrides.tag,
				Database:  c.overrides.database,
			})
			if err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// send delivers cmd to the running daemon.
func (c *commandContext) send(cmd control.Command) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if err := control.Send(cfg.Paths.ControlSocket, cmd); err != nil {
		return wrapSendError(err, cfg.Paths.ControlSocket)
	}
	return nil
}

func wrapSendError(err error, socket string) error {
	if errors.Is(err, control.ErrNoDaemon) {
		return fmt.Errorf("pomo daemon is not running (no listener on %s); start it with `pomo`", socket)
	}
	return fmt.Errorf("send to daemon: %w", err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
