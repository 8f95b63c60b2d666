package status

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"pomo/internal/timer"
)

// Phase identifies the active timer mode.
type Phase string

const (
	PhaseWork  Phase = "work"
	PhaseBreak Phase = "break"
)

// Next returns the only legal successor of p.
func (p Phase) Next() Phase {
	if p == PhaseWork {
		return PhaseBreak
	}
	return PhaseWork
}

// Config seeds a Machine.
type Config struct {
	WorkTime   time.Duration
	BreakTime  time.Duration
	DefaultTag string
	EndingSoon time.Duration
	// Unlocked starts the machine with manual adjustments allowed.
	Unlocked bool
}

// Snapshot is an immutable point-in-time view of the machine.
type Snapshot struct {
	Phase            Phase
	Active           bool
	Locked           bool
	Tag              string
	Formatted        string
	RemainingSeconds int64
	TotalSeconds     int64
	ElapsedSeconds   int64
}

// Transition describes a completed phase change.
type Transition struct {
	From      Phase
	To        Phase
	WasActive bool
	// Elapsed is the time charged to the phase that just ended.
	Elapsed time.Duration
}

// Machine owns the phase timer and every flag readers see. Mutations take the
// write lock; Snapshot takes the read lock, so a reader never observes a
// partially applied change.
type Machine struct {
	mu     sync.RWMutex
	cfg    Config
	phase  Phase
	active bool
	locked bool
	tag    string
	timer  *timer.Timer
}

// New returns a machine in the Work phase, paused, locked unless cfg says
// otherwise.
func New(cfg Config, now time.Time) *Machine {
	tag := SanitizeTag(cfg.DefaultTag)
	if tag == "" {
		tag = "pomo"
	}
	cfg.DefaultTag = tag
	return &Machine{
		cfg:    cfg,
		phase:  PhaseWork,
		locked: !cfg.Unlocked,
		tag:    tag,
		timer:  timer.New(cfg.WorkTime, now, cfg.EndingSoon),
	}
}

// Tick advances the timer when active and always refreshes the tick
// reference, so a long pause is never charged to the session.
func (m *Machine) Tick(now time.Time) timer.Events {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		m.timer.Touch(now)
		return 0
	}
	return m.timer.Advance(now)
}

// Toggle flips between running and paused and returns the new active flag.
// The lock does not prevent pausing.
func (m *Machine) Toggle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = !m.active
	return m.active
}

// ToggleLock flips the adjustment lock and returns the new value.
func (m *Machine) ToggleLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = !m.locked
	return m.locked
}

// Adjust changes the remaining time unless locked. It reports whether the
// change was applied.
func (m *Machine) Adjust(op timer.Op, d time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	if op != timer.OpAdd && op != timer.OpSub {
		return false
	}
	m.timer.Adjust(op, d)
	return true
}

// NextPhase switches Work to Break or Break to Work. The new phase starts
// paused with a fresh timer; tag and lock carry over.
func (m *Machine) NextPhase(now time.Time) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr := Transition{
		From:      m.phase,
		To:        m.phase.Next(),
		WasActive: m.active,
		Elapsed:   m.timer.Elapsed(),
	}
	m.phase = tr.To
	m.active = false
	m.timer = timer.New(m.durationFor(tr.To), now, m.cfg.EndingSoon)
	return tr
}

// ChangeTag stores the sanitized tag. It returns the stored value and whether
// anything changed; empty or identical input is a no-op.
func (m *Machine) ChangeTag(raw string) (string, bool) {
	tag := SanitizeTag(raw)
	m.mu.Lock()
	defer m.mu.Unlock()
	if tag == "" || tag == m.tag {
		return m.tag, false
	}
	m.tag = tag
	return tag, true
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Snapshot assembles a consistent view under the read lock.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Phase:            m.phase,
		Active:           m.active,
		Locked:           m.locked,
		Tag:              m.tag,
		Formatted:        m.timer.Format(),
		RemainingSeconds: timer.Seconds(m.timer.Remaining()),
		TotalSeconds:     timer.Seconds(m.timer.Total()),
		ElapsedSeconds:   timer.Seconds(m.timer.Elapsed()),
	}
}

func (m *Machine) durationFor(p Phase) time.Duration {
	if p == PhaseBreak {
		return m.cfg.BreakTime
	}
	return m.cfg.WorkTime
}

// SanitizeTag keeps the first whitespace-delimited token in NFC form.
func SanitizeTag(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return norm.NFC.String(fields[0])
}
