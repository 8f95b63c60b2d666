package broadcast_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"pomo/internal/broadcast"
	"pomo/internal/fileutil"
	"pomo/internal/status"
)

type fakeSource struct {
	mu   sync.Mutex
	snap status.Snapshot
}

func (f *fakeSource) Snapshot() status.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) setTag(tag string) {
	f.mu.Lock()
	f.snap.Tag = tag
	f.mu.Unlock()
}

func newSource() *fakeSource {
	return &fakeSource{snap: status.Snapshot{
		Phase:            status.PhaseWork,
		Locked:           true,
		Tag:              "pomo",
		Formatted:        "40:00",
		RemainingSeconds: 2400,
		TotalSeconds:     2400,
	}}
}

func startServer(t *testing.T, source broadcast.Source, opts broadcast.Options) (string, *broadcast.Server, func() error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pomo-status.sock")
	srv, err := broadcast.NewServer(path, source, opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var (
		once    sync.Once
		stopErr error
	)
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case stopErr = <-done:
			case <-time.After(5 * time.Second):
				stopErr = errors.New("server did not stop")
			}
		})
		return stopErr
	}
	t.Cleanup(func() { _ = stop() })

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Skip("skipping status socket test: endpoint never became ready")
	}
	return path, srv, stop
}

func dial(t *testing.T, path string) *broadcast.Reader {
	t.Helper()
	r, err := broadcast.Dial(path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestMessageWireFields(t *testing.T) {
	msg := broadcast.FromSnapshot(status.Snapshot{
		Phase:            status.PhaseBreak,
		Active:           true,
		Tag:              "foo",
		Formatted:        "-00:05",
		RemainingSeconds: -5,
		TotalSeconds:     600,
	})
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"status", "timer", "active", "remaining", "tag", "total_time", "locked"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing key %q in %s", key, data)
		}
	}
	if fields["status"] != "break" || fields["timer"] != "-00:05" || fields["remaining"] != float64(-5) {
		t.Fatalf("unexpected payload %s", data)
	}
	if msg.TotalTime != 600 {
		t.Fatalf("total_time = %d, want 600", msg.TotalTime)
	}
}

func TestServerPushesToEveryReader(t *testing.T) {
	source := newSource()
	path, _, _ := startServer(t, source, broadcast.Options{Interval: 20 * time.Millisecond})

	before := dial(t, path)
	msg, err := before.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if msg.Status != "work" || msg.Tag != "pomo" || msg.TotalTime != 2400 || !msg.Locked {
		t.Fatalf("unexpected first message %+v", msg)
	}

	source.setTag("foo")
	after := dial(t, path)

	for name, reader := range map[string]*broadcast.Reader{"before": before, "after": after} {
		deadline := time.Now().Add(2 * time.Second)
		for {
			msg, err := reader.Next()
			if err != nil {
				t.Fatalf("%s reader: %v", name, err)
			}
			if msg.Tag == "foo" {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("%s reader never saw the new tag", name)
			}
		}
	}
}

func TestDeadReaderDoesNotAffectOthers(t *testing.T) {
	source := newSource()
	path, srv, _ := startServer(t, source, broadcast.Options{Interval: 10 * time.Millisecond})

	gone, err := broadcast.Dial(path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	live := dial(t, path)
	if _, err := gone.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	_ = gone.Close()

	for i := 0; i < 10; i++ {
		if _, err := live.Next(); err != nil {
			t.Fatalf("live reader broke after peer left: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected dead handler to exit, clients=%d", srv.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunCleansUpOnCancel(t *testing.T) {
	path, srv, stop := startServer(t, newSource(), broadcast.Options{Interval: 10 * time.Millisecond})
	reader := dial(t, path)
	if _, err := reader.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}

	if err := stop(); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if fileutil.Exists(path) {
		t.Fatal("expected status socket to be removed")
	}
	if srv.Clients() != 0 {
		t.Fatalf("expected all readers closed, clients=%d", srv.Clients())
	}
	for i := 0; ; i++ {
		if _, err := reader.Next(); err != nil {
			break
		}
		if i > 100 {
			t.Fatal("reader still receiving after shutdown")
		}
	}
}

func TestCadenceFollowsClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	source := newSource()
	path, _, _ := startServer(t, source, broadcast.Options{Interval: time.Second, Clock: clock})

	reader := dial(t, path)
	if msg, err := reader.Next(); err != nil || msg.Tag != "pomo" {
		t.Fatalf("expected immediate push, got %+v, %v", msg, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("handler never armed its ticker: %v", err)
	}
	source.setTag("later")
	clock.Advance(time.Second)

	msg, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if msg.Tag != "later" {
		t.Fatalf("tag = %q, want later", msg.Tag)
	}
}

func TestSubscribeReconnects(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pomo-status.sock")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan broadcast.Message, 1)
	subDone := make(chan error, 1)
	go func() {
		subDone <- broadcast.Subscribe(ctx, path, broadcast.SubscribeOptions{Reconnect: 20 * time.Millisecond},
			func(msg broadcast.Message) error {
				received <- msg
				return broadcast.ErrStop
			})
	}()

	// The daemon is not up yet; the subscriber keeps retrying until it is.
	time.Sleep(60 * time.Millisecond)
	srv, err := broadcast.NewServer(path, newSource(), broadcast.Options{Interval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srvCtx, srvCancel := context.WithCancel(context.Background())
	srvDone := make(chan error, 1)
	go func() { srvDone <- srv.Run(srvCtx) }()
	defer func() {
		srvCancel()
		<-srvDone
	}()

	select {
	case msg := <-received:
		if msg.Status != "work" {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-ctx.Done():
		t.Skip("skipping: status socket unavailable in this environment")
	}
	if err := <-subDone; err != nil {
		t.Fatalf("Subscribe returned %v", err)
	}
}

func TestSubscribeWithoutReconnectReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")
	err := broadcast.Subscribe(context.Background(), path, broadcast.SubscribeOptions{}, func(broadcast.Message) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected connection error")
	}
	if errors.Is(err, broadcast.ErrStop) {
		t.Fatalf("unexpected stop error %v", err)
	}
}
