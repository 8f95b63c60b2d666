package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"

	"pomo/internal/control"
	"pomo/internal/history"
	"pomo/internal/logging"
	"pomo/internal/notifications"
	"pomo/internal/status"
	"pomo/internal/timer"
)

const (
	defaultPollBudget = 900 * time.Millisecond
	hookTimeout       = 5 * time.Second
)

// Source yields control commands. Receive waits at most budget and reports
// ok=false when nothing arrived.
type Source interface {
	Receive(budget time.Duration) (control.Command, bool, error)
}

// Recorder persists work sessions. history.Store satisfies it.
type Recorder interface {
	StartSession(ctx context.Context, tag string) (history.Session, bool, error)
	FinishSession(ctx context.Context, elapsed time.Duration) (history.Session, bool, error)
	UpdateTag(ctx context.Context, tag string) (bool, error)
}

// Outcome says why Run returned.
type Outcome int

const (
	// OutcomeExit means an exit command was received.
	OutcomeExit Outcome = iota
	// OutcomeInterrupted means the run context was cancelled.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	if o == OutcomeExit {
		return "exit"
	}
	return "interrupted"
}

// Options configures a Daemon. Zero values fall back to a real clock, the
// default poll budget, and no-op hooks.
type Options struct {
	Clock      clockwork.Clock
	PollBudget time.Duration
	Recorder   Recorder
	Notifier   notifications.Service
	Logger     *slog.Logger
}

// Daemon is the single writer of a status.Machine. Each iteration ticks the
// machine, then waits briefly for one control command and applies it.
type Daemon struct {
	machine  *status.Machine
	source   Source
	clock    clockwork.Clock
	budget   time.Duration
	recorder Recorder
	notifier notifications.Service
	logger   *slog.Logger
}

// New returns a daemon driving machine from source.
func New(machine *status.Machine, source Source, opts Options) *Daemon {
	d := &Daemon{
		machine:  machine,
		source:   source,
		clock:    opts.Clock,
		budget:   opts.PollBudget,
		recorder: opts.Recorder,
		notifier: opts.Notifier,
		logger:   logging.NewComponentLogger(opts.Logger, "daemon"),
	}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	if d.budget <= 0 {
		d.budget = defaultPollBudget
	}
	if d.recorder == nil {
		d.recorder = noopRecorder{}
	}
	if d.notifier == nil {
		d.notifier = notifications.Noop()
	}
	return d
}

// Run loops until an exit command arrives or ctx is cancelled. Before
// returning it closes the open work session with its elapsed time. A transport
// failure of the source ends the loop with an error.
func (d *Daemon) Run(ctx context.Context) (Outcome, error) {
	d.logger.Info("daemon loop started",
		logging.Duration("poll_budget", d.budget),
		logging.Phase(d.machine.Phase()),
	)
	for {
		if ctx.Err() != nil {
			d.logger.Info("interrupted; shutting down",
				logging.String(logging.FieldEventType, "daemon_interrupt"),
			)
			d.shutdown(ctx)
			return OutcomeInterrupted, nil
		}

		d.tick()

		cmd, ok, err := d.source.Receive(d.budget)
		if err != nil {
			if errors.Is(err, control.ErrUnknownCommand) || errors.Is(err, control.ErrMalformedCommand) {
				logging.WarnWithContext(d.logger, "control message dropped", "control_message_invalid",
					logging.Error(err),
					logging.String(logging.FieldImpact, "command ignored"),
					logging.String(logging.FieldErrorHint, "send one of: toggle, end, lock, exit, tag <name>, time add|sub <seconds>"),
				)
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				d.shutdown(ctx)
				return OutcomeInterrupted, err
			}
			logging.WarnWithContext(d.logger, "control receive failed", "control_receive_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "commands delayed"),
			)
			d.clock.Sleep(d.budget)
			continue
		}
		if !ok {
			continue
		}
		if cmd.Kind == control.KindExit {
			d.logger.Info("exit requested; shutting down",
				logging.String(logging.FieldEventType, "daemon_exit_requested"),
			)
			d.shutdown(ctx)
			return OutcomeExit, nil
		}
		d.apply(ctx, cmd)
	}
}

func (d *Daemon) tick() {
	events := d.machine.Tick(d.clock.Now())
	if events == 0 {
		return
	}
	phase := d.machine.Phase()
	ctx := context.Background()
	if events.Has(timer.EndingSoon) {
		d.logger.Debug("phase ending soon", logging.Phase(phase))
		_ = d.notifier.NotifyEndingSoon(ctx, phase)
	}
	if events.Has(timer.Ended) {
		d.logger.Info("phase time is over",
			logging.Phase(phase),
			logging.String(logging.FieldEventType, "phase_ended"),
		)
		_ = d.notifier.NotifyPhaseEnded(ctx, phase)
	}
}

// apply performs one command. Session hooks run before the state change they
// belong to and never prevent it.
func (d *Daemon) apply(ctx context.Context, cmd control.Command) {
	logger := d.logger.With(logging.String(logging.FieldCommand, cmd.Kind.String()))
	switch cmd.Kind {
	case control.KindToggle:
		snap := d.machine.Snapshot()
		if snap.Phase == status.PhaseWork {
			d.startSession(ctx, snap.Tag)
		}
		active := d.machine.Toggle()
		logger.Info("timer toggled", logging.Bool("active", active))
	case control.KindEnd:
		snap := d.machine.Snapshot()
		if snap.Phase == status.PhaseWork {
			d.finishSession(ctx, time.Duration(snap.ElapsedSeconds)*time.Second)
		}
		tr := d.machine.NextPhase(d.clock.Now())
		logger.Info("phase changed",
			logging.String("from", string(tr.From)),
			logging.Phase(tr.To),
			logging.Duration("elapsed", tr.Elapsed),
		)
	case control.KindLock:
		locked := d.machine.ToggleLock()
		logger.Info("lock toggled", logging.Bool("locked", locked))
	case control.KindTag:
		tag, changed := d.machine.ChangeTag(cmd.Tag)
		if !changed {
			logger.Debug("tag unchanged", logging.Tag(tag))
			return
		}
		logger.Info("tag changed", logging.Tag(tag))
		d.updateTag(ctx, tag)
	case control.KindTime:
		if !d.machine.Adjust(cmd.Op, cmd.Delta()) {
			logger.Info("time adjustment ignored while locked", logging.Int64("seconds", cmd.Seconds))
			return
		}
		logger.Info("time adjusted",
			logging.String("op", string(cmd.Op)),
			logging.Int64("seconds", cmd.Seconds),
		)
	}
}

func (d *Daemon) shutdown(ctx context.Context) {
	snap := d.machine.Snapshot()
	if snap.Phase == status.PhaseWork {
		d.finishSession(ctx, time.Duration(snap.ElapsedSeconds)*time.Second)
	}
	d.logger.Info("daemon loop stopped",
		logging.Phase(snap.Phase),
		logging.Tag(snap.Tag),
	)
}

func hookContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
}

func (d *Daemon) startSession(ctx context.Context, tag string) {
	hctx, cancel := hookContext(ctx)
	defer cancel()
	session, created, err := d.recorder.StartSession(hctx, tag)
	if err != nil {
		d.hookFailed("start", err)
		return
	}
	if created {
		d.logger.Info("session started",
			logging.SessionID(session.ID),
			logging.Tag(session.Tag),
		)
	}
}

func (d *Daemon) finishSession(ctx context.Context, elapsed time.Duration) {
	hctx, cancel := hookContext(ctx)
	defer cancel()
	session, finished, err := d.recorder.FinishSession(hctx, elapsed)
	if err != nil {
		d.hookFailed("finish", err)
		return
	}
	if finished {
		d.logger.Info("session finished",
			logging.SessionID(session.ID),
			logging.Int64("seconds", session.Duration),
		)
	}
}

func (d *Daemon) updateTag(ctx context.Context, tag string) {
	hctx, cancel := hookContext(ctx)
	defer cancel()
	if _, err := d.recorder.UpdateTag(hctx, tag); err != nil {
		d.hookFailed("update_tag", err)
	}
}

func (d *Daemon) hookFailed(hook string, err error) {
	logging.WarnWithContext(d.logger, "session history update failed", "history_hook_failed",
		logging.String("hook", hook),
		logging.Error(err),
		logging.String(logging.FieldImpact, "session history may be incomplete"),
		logging.String(logging.FieldErrorHint, "check that the database path is writable"),
	)
}

type noopRecorder struct{}

func (noopRecorder) StartSession(context.Context, string) (history.Session, bool, error) {
	return history.Session{}, false, nil
}

func (noopRecorder) FinishSession(context.Context, time.Duration) (history.Session, bool, error) {
	return history.Session{}, false, nil
}

func (noopRecorder) UpdateTag(context.Context, string) (bool, error) { return false, nil }
