package notifications

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"pomo/internal/config"
	"pomo/internal/status"
)

// Runner executes an external command to completion.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Run()
}

// Desktop raises notify-send alerts and plays sounds through an external
// player. Missing binaries are skipped silently.
type Desktop struct {
	NotifyCommand string
	SoundCommand  string
	EndingSound   string
	EndSound      string
	Run           Runner
}

// NewDesktop configures a desktop notifier from cfg.
func NewDesktop(cfg *config.Config) *Desktop {
	return &Desktop{
		NotifyCommand: cfg.Notifications.NotifyCommand,
		SoundCommand:  cfg.Notifications.SoundCommand,
		EndingSound:   cfg.Notifications.EndingSound,
		EndSound:      cfg.Notifications.EndSound,
		Run:           execRunner,
	}
}

func (d *Desktop) NotifyEndingSoon(ctx context.Context, _ status.Phase) error {
	return d.play(ctx, d.EndingSound)
}

func (d *Desktop) NotifyPhaseEnded(ctx context.Context, phase status.Phase) error {
	var errs []error
	if name := strings.TrimSpace(d.NotifyCommand); name != "" {
		err := d.run(ctx, name, "-t", "0", "-u", "critical", "Pomodoro", EndedMessage(phase))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	errs = append(errs, d.play(ctx, d.EndSound))
	return errors.Join(errs...)
}

func (d *Desktop) play(ctx context.Context, sound string) error {
	player := strings.TrimSpace(d.SoundCommand)
	if player == "" || strings.TrimSpace(sound) == "" {
		return nil
	}
	if err := d.run(ctx, player, sound); err != nil {
		return fmt.Errorf("%s: %w", player, err)
	}
	return nil
}

func (d *Desktop) run(ctx context.Context, name string, args ...string) error {
	run := d.Run
	if run == nil {
		run = execRunner
	}
	err := run(ctx, name, args...)
	if errors.Is(err, exec.ErrNotFound) {
		return nil
	}
	return err
}
