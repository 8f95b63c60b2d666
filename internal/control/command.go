package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pomo/internal/timer"
)

var (
	// ErrUnknownCommand marks a datagram whose verb is not part of the protocol.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMalformedCommand marks a known verb with missing or invalid arguments.
	ErrMalformedCommand = errors.New("malformed command")
)

// Kind enumerates the control verbs.
type Kind int

const (
	KindToggle Kind = iota + 1
	KindEnd
	KindLock
	KindTag
	KindTime
	KindExit
)

func (k Kind) String() string {
	switch k {
	case KindToggle:
		return "toggle"
	case KindEnd:
		return "end"
	case KindLock:
		return "lock"
	case KindTag:
		return "tag"
	case KindTime:
		return "time"
	case KindExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Command is one decoded control datagram. Tag is set only for KindTag; Op
// and Seconds only for KindTime.
type Command struct {
	Kind    Kind
	Tag     string
	Op      timer.Op
	Seconds int64
}

func Toggle() Command { return Command{Kind: KindToggle} }

func End() Command { return Command{Kind: KindEnd} }

func Lock() Command { return Command{Kind: KindLock} }

func Exit() Command { return Command{Kind: KindExit} }

func SetTag(tag string) Command { return Command{Kind: KindTag, Tag: tag} }

func AdjustTime(op timer.Op, seconds int64) Command {
	return Command{Kind: KindTime, Op: op, Seconds: seconds}
}

// Delta returns the adjustment of a KindTime command as a duration.
func (c Command) Delta() time.Duration {
	return time.Duration(c.Seconds) * time.Second
}

// String encodes the command in its wire form.
func (c Command) String() string {
	switch c.Kind {
	case KindTag:
		return "tag " + c.Tag
	case KindTime:
		return fmt.Sprintf("time %s %d", c.Op, c.Seconds)
	default:
		return c.Kind.String()
	}
}

// Parse decodes a single datagram payload. The tag value is kept verbatim;
// the state machine reduces it to its first token.
func Parse(raw string) (Command, error) {
	text := strings.TrimSpace(raw)
	verb, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "toggle", "end", "lock", "exit":
		if rest != "" {
			return Command{}, fmt.Errorf("%w: %q takes no arguments", ErrMalformedCommand, verb)
		}
		switch verb {
		case "toggle":
			return Toggle(), nil
		case "end":
			return End(), nil
		case "lock":
			return Lock(), nil
		default:
			return Exit(), nil
		}
	case "tag":
		if rest == "" {
			return Command{}, fmt.Errorf("%w: tag requires a value", ErrMalformedCommand)
		}
		return SetTag(rest), nil
	case "time":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%w: expected \"time <add|sub> <seconds>\"", ErrMalformedCommand)
		}
		op, ok := timer.ParseOp(fields[0])
		if !ok {
			return Command{}, fmt.Errorf("%w: unknown time operator %q", ErrMalformedCommand, fields[0])
		}
		seconds, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || seconds < 0 {
			return Command{}, fmt.Errorf("%w: invalid seconds %q", ErrMalformedCommand, fields[1])
		}
		return AdjustTime(op, seconds), nil
	case "":
		return Command{}, fmt.Errorf("%w: empty datagram", ErrMalformedCommand)
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}
}

// ParseDelta accepts the CLI form "+N" or "-N" and returns the matching
// time command. The sign is mandatory.
func ParseDelta(value string) (Command, error) {
	value = strings.TrimSpace(value)
	if len(value) < 2 || (value[0] != '+' && value[0] != '-') {
		return Command{}, fmt.Errorf("time format should be +num or -num to add or remove time, got %q", value)
	}
	digits := value[1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return Command{}, fmt.Errorf("expected number after +/- but saw %q", digits)
		}
	}
	seconds, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Command{}, fmt.Errorf("parse seconds %q: %w", digits, err)
	}
	op := timer.OpAdd
	if value[0] == '-' {
		op = timer.OpSub
	}
	return AdjustTime(op, seconds), nil
}
