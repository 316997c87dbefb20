package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"linkguard/pkg/logx"
)

func TestAddIntervalRequiresStart(t *testing.T) {
	s := New(Config{}, logx.Nop())
	if _, err := s.AddInterval("x", time.Minute, 0, func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("AddInterval before Start must fail")
	}
}

func TestAddIntervalRejectsNonPositive(t *testing.T) {
	s := New(Config{}, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	if _, err := s.AddInterval("x", 0, 0, func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("zero interval must be rejected")
	}
}

func TestAddRemoveJobs(t *testing.T) {
	s := New(Config{Workers: 1}, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())

	id, err := s.AddInterval("rotation", time.Hour, 0, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].ID != id || jobs[0].Name != "rotation" {
		t.Fatalf("jobs = %+v", jobs)
	}
	if jobs[0].Spec != "@every 1h0m0s" {
		t.Fatalf("spec = %q", jobs[0].Spec)
	}
	if jobs[0].Next.IsZero() {
		t.Fatal("scheduled job must report a next run time")
	}

	if !s.Remove(id) {
		t.Fatal("Remove must report success for a live job")
	}
	if s.Remove(id) {
		t.Fatal("Remove must report failure for an unknown id")
	}
	if len(s.Jobs()) != 0 {
		t.Fatal("removed job must not be listed")
	}
}

func TestHistoryTrimsToLimit(t *testing.T) {
	s := New(Config{HistorySize: 3}, logx.Nop())
	for i := 0; i < 5; i++ {
		n := i
		s.execOne(context.Background(), task{
			name: fmt.Sprintf("job-%d", n),
			run: func(ctx context.Context) error {
				if n%2 == 1 {
					return fmt.Errorf("boom %d", n)
				}
				return nil
			},
		})
	}

	hist := s.History(0)
	if len(hist) != 3 {
		t.Fatalf("history size = %d, want 3", len(hist))
	}
	// newest three survive
	if hist[0].Name != "job-2" || hist[2].Name != "job-4" {
		t.Fatalf("history = %+v", hist)
	}
	if hist[1].Error == "" {
		t.Fatal("failed run must record its error")
	}

	if got := s.History(2); len(got) != 2 || got[1].Name != "job-4" {
		t.Fatalf("History(2) = %+v", got)
	}
}

func TestExecOneAppliesTimeout(t *testing.T) {
	s := New(Config{}, logx.Nop())
	var sawDeadline bool
	s.execOne(context.Background(), task{
		name:    "bounded",
		timeout: 10 * time.Millisecond,
		run: func(ctx context.Context) error {
			_, sawDeadline = ctx.Deadline()
			return nil
		},
	})
	if !sawDeadline {
		t.Fatal("task context must carry the configured deadline")
	}
}
