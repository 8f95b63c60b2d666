package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pomo/internal/config"
	"pomo/internal/logging"
	"pomo/internal/status"
)

const userAgent = "pomo/0.1.0"

// Service defines the notification surface exposed to the daemon loop.
type Service interface {
	NotifyEndingSoon(ctx context.Context, phase status.Phase) error
	NotifyPhaseEnded(ctx context.Context, phase status.Phase) error
}

// NewService builds the notifiers enabled in cfg. With nothing enabled a
// noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	var services []Service
	if cfg.Notifications.Desktop {
		services = append(services, NewDesktop(cfg))
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		services = append(services, NewNtfy(topic, cfg.NotifyTimeout()))
	}
	switch len(services) {
	case 0:
		return noopService{}
	case 1:
		return services[0]
	default:
		return multiService(services)
	}
}

// PhaseTitle renders a phase for humans ("Work", "Break").
func PhaseTitle(phase status.Phase) string {
	return cases.Title(language.English).String(string(phase))
}

// EndedMessage is the body of a phase-ended alert.
func EndedMessage(phase status.Phase) string {
	return PhaseTitle(phase) + " time is over"
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// NewNtfy returns a notifier that posts to an ntfy topic URL.
func NewNtfy(endpoint string, timeout time.Duration) Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyEndingSoon(ctx context.Context, phase status.Phase) error {
	data := payload{
		title:    "Pomodoro",
		message:  fmt.Sprintf("%s time is almost over", PhaseTitle(phase)),
		tags:     []string{"pomo", string(phase), "ending"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPhaseEnded(ctx context.Context, phase status.Phase) error {
	data := payload{
		title:    "Pomodoro",
		message:  EndedMessage(phase),
		tags:     []string{"pomo", string(phase), "ended"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type multiService []Service

func (m multiService) NotifyEndingSoon(ctx context.Context, phase status.Phase) error {
	var errs []error
	for _, svc := range m {
		errs = append(errs, svc.NotifyEndingSoon(ctx, phase))
	}
	return errors.Join(errs...)
}

func (m multiService) NotifyPhaseEnded(ctx context.Context, phase status.Phase) error {
	var errs []error
	for _, svc := range m {
		errs = append(errs, svc.NotifyPhaseEnded(ctx, phase))
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) NotifyEndingSoon(context.Context, status.Phase) error { return nil }
func (noopService) NotifyPhaseEnded(context.Context, status.Phase) error { return nil }

// Noop returns a Service that does nothing.
func Noop() Service { return noopService{} }

// Async dispatches each notification on its own goroutine so callers never
// wait on a subprocess or the network. Failures are logged.
type Async struct {
	inner   Service
	logger  *slog.Logger
	timeout time.Duration
	pending chan struct{}
	wg      sync.WaitGroup
}

// NewAsync wraps inner. Each dispatch is bounded by timeout.
func NewAsync(inner Service, logger *slog.Logger, timeout time.Duration) *Async {
	if inner == nil {
		inner = noopService{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{
		inner:   inner,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		timeout: timeout,
		pending: make(chan struct{}, 16),
	}
}

func (a *Async) NotifyEndingSoon(_ context.Context, phase status.Phase) error {
	a.dispatch("ending_soon", phase, a.inner.NotifyEndingSoon)
	return nil
}

func (a *Async) NotifyPhaseEnded(_ context.Context, phase status.Phase) error {
	a.dispatch("phase_ended", phase, a.inner.NotifyPhaseEnded)
	return nil
}

// Wait blocks until every dispatched notification has finished or ctx ends.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) dispatch(event string, phase status.Phase, fn func(context.Context, status.Phase) error) {
	select {
	case a.pending <- struct{}{}:
	default:
		logging.WarnWithContext(a.logger, "notification dropped; too many in flight", "notification_dropped",
			logging.String("event", event),
			logging.Phase(phase),
			logging.String(logging.FieldImpact, "one alert was not delivered"),
			logging.String(logging.FieldErrorHint, "check that notify_command and sound_command exit promptly"),
		)
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() { <-a.pending }()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := fn(ctx, phase); err != nil {
			logging.WarnWithContext(a.logger, "notification failed", "notification_failed",
				logging.String("event", event),
				logging.Phase(phase),
				logging.Error(err),
				logging.String(logging.FieldImpact, "alert was not delivered"),
				logging.String(logging.FieldErrorHint, "run pomo check to verify notifier binaries and ntfy reachability"),
			)
			return
		}
		a.logger.Debug("notification delivered",
			logging.String("event", event),
			logging.Phase(phase),
		)
	}()
}
