package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"pomo/internal/history"
	"pomo/internal/testsupport"
)

func TestReportCommandSummarizesSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, cfg, history.WithClock(clock))

	ctx := context.Background()
	for _, s := range []struct {
		tag     string
		seconds int
	}{{"thesis", 3000}, {"mail", 600}, {"thesis", 2400}} {
		if _, _, err := store.StartSession(ctx, s.tag); err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		if _, _, err := store.FinishSession(ctx, time.Duration(s.seconds)*time.Second); err != nil {
			t.Fatalf("FinishSession: %v", err)
		}
		clock.Advance(time.Hour)
	}
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, path, "report", "--from", "2024-03-01", "--to", "2024-03-31", "--sessions")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	requireContains(t, out, "Total time between 2024-03-01 and 2024-03-31: 01h40min")
	requireContains(t, out, "2024-03-06")
	requireContains(t, out, "thesis")
	requireContains(t, out, "90%")
	requireContains(t, out, "10%")
	if strings.Index(out, "thesis") > strings.Index(out, "mail") {
		t.Fatalf("tags should be ordered by time spent:\n%s", out)
	}
	requireContains(t, out, "09:00:00")
}

func TestReportCommandEmptyRange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, path, "report", "--from", "2020-01-01", "--to", "2020-01-02")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	requireContains(t, out, "00h00min")
	requireContains(t, out, "No finished sessions in range")
}

func TestReportCommandRejectsBadRange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)

	if _, _, err := runCLI(t, path, "report", "--from", "2024-03-10", "--to", "2024-03-01"); err == nil {
		t.Fatal("expected error for reversed range")
	}
	if _, _, err := runCLI(t, path, "report", "--from", "March"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestDefaultReportRange(t *testing.T) {
	from, to := defaultReportRange(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC))
	if from != "2024-02-01" || to != "2024-02-29" {
		t.Fatalf("range = %s..%s", from, to)
	}
}
