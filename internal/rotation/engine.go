package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"linkguard/internal/kit"
	"linkguard/internal/storage"
	"linkguard/pkg/logx"
)

var (
	// ErrNotConfigured means target channel or source chats are missing.
	ErrNotConfigured = errors.New("target channel and source chats are not configured")
	// ErrAllSourcesFailed aborts a cycle before anything is published.
	ErrAllSourcesFailed = errors.New("all invite link generations failed")
	// ErrNoActiveJob is returned by StopPosting when nothing is scheduled.
	ErrNoActiveJob = errors.New("no active posting job")
)

// Scheduler is the slice of the job scheduler the engine consumes.
type Scheduler interface {
	AddInterval(name string, every time.Duration, timeout time.Duration, job func(ctx context.Context) error) (string, error)
	Remove(id string) bool
}

// Notifier delivers operator alerts for failures the scheduler path would
// otherwise only log.
type Notifier interface {
	Notify(ctx context.Context, n kit.Notification) error
}

const rotationJobName = "link_rotation"

// Engine orchestrates one full cycle (generate links, render, reconcile)
// and owns the recurring schedule. Cycles are mutually exclusive: a manual
// trigger overlapping a timer firing serializes instead of racing on the
// published-message handle.
type Engine struct {
	settings *Settings
	gen      *Generator
	rec      *Reconciler
	sched    Scheduler
	notifier Notifier
	audit    storage.Store
	log      logx.Logger

	cycleMu chan struct{} // 1-slot semaphore so waiting honors ctx
}

func NewEngine(settings *Settings, gen *Generator, rec *Reconciler, sched Scheduler, notifier Notifier, audit storage.Store, log logx.Logger) *Engine {
	return &Engine{
		settings: settings,
		gen:      gen,
		rec:      rec,
		sched:    sched,
		notifier: notifier,
		audit:    audit,
		log:      log,
		cycleMu:  make(chan struct{}, 1),
	}
}

// RunCycle executes one generate-render-reconcile pass. Overlapping calls
// serialize; waiting respects ctx cancellation. trigger is recorded in the
// audit trail ("command", "schedule", "start_posting").
func (e *Engine) RunCycle(ctx context.Context, trigger string, actorID int64) error {
	select {
	case e.cycleMu <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.cycleMu }()

	start := time.Now()
	err := e.runCycleLocked(ctx, trigger)
	e.recordCycle(ctx, trigger, actorID, start, err)
	return err
}

func (e *Engine) runCycleLocked(ctx context.Context, trigger string) error {
	snap := e.settings.Snapshot()
	if !snap.Configured() {
		return ErrNotConfigured
	}

	log := e.log.With(logx.String("trigger", trigger))
	log.Info("rotation cycle started", logx.Int("sources", len(snap.Sources)))

	interval := time.Duration(snap.IntervalMinutes) * time.Minute
	results := e.gen.Generate(ctx, snap.Sources, interval, snap.MemberLimit)

	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	if ok == 0 {
		log.Error("rotation cycle aborted", logx.Int("sources", len(results)), logx.Err(ErrAllSourcesFailed))
		return ErrAllSourcesFailed
	}

	text := Render(snap.Template, snap.Sources, results, log)

	if err := e.rec.Publish(ctx, TargetFor(snap.Target), snap.Mode, text, e.settings); err != nil {
		return fmt.Errorf("publish announcement: %w", err)
	}
	log.Info("rotation cycle finished", logx.Int("links_ok", ok), logx.Int("sources", len(results)))
	return nil
}

// StartPosting cancels any previously scheduled job, runs one cycle
// immediately, then arms the recurring timer with the current interval. The
// immediate cycle's outcome is returned separately: a failed first cycle
// does not prevent the schedule from arming, matching the next-cycle-
// retries error model.
func (e *Engine) StartPosting(ctx context.Context, actorID int64) (cycleErr, err error) {
	snap := e.settings.Snapshot()
	if !snap.Configured() {
		return nil, ErrNotConfigured
	}

	if prev := e.settings.ActiveJobID(); prev != "" {
		e.sched.Remove(prev)
		e.settings.SetActiveJobID("")
	}

	cycleErr = e.RunCycle(ctx, "start_posting", actorID)

	every := time.Duration(snap.IntervalMinutes) * time.Minute
	id, err := e.sched.AddInterval(rotationJobName, every, 0, e.scheduledCycle)
	if err != nil {
		return cycleErr, fmt.Errorf("schedule rotation job: %w", err)
	}
	e.settings.SetActiveJobID(id)
	e.log.Info("auto-posting activated", logx.String("job_id", id), logx.Duration("interval", every))
	return cycleErr, nil
}

// StopPosting cancels the recurring job. An in-flight cycle finishes;
// only future firings stop.
func (e *Engine) StopPosting() error {
	id := e.settings.ActiveJobID()
	if id == "" {
		return ErrNoActiveJob
	}
	e.sched.Remove(id)
	e.settings.SetActiveJobID("")
	e.log.Info("auto-posting stopped", logx.String("job_id", id))
	return nil
}

func (e *Engine) Active() bool { return e.settings.ActiveJobID() != "" }

func (e *Engine) Settings() *Settings { return e.settings }

// scheduledCycle is the timer callback. Failures there have no command
// reply to land in, so the operator is alerted through the notifier.
func (e *Engine) scheduledCycle(ctx context.Context) error {
	err := e.RunCycle(ctx, "schedule", 0)
	if err != nil && e.notifier != nil {
		nerr := e.notifier.Notify(ctx, kit.Notification{
			Priority: kit.PriorityCritical,
			Text:     "Scheduled link rotation failed: " + err.Error(),
		})
		if nerr != nil {
			e.log.Warn("failed to alert operator about cycle failure", logx.Err(nerr))
		}
	}
	return err
}

func (e *Engine) recordCycle(ctx context.Context, trigger string, actorID int64, start time.Time, cycleErr error) {
	if e.audit == nil {
		return
	}
	entry := storage.AuditEntry{
		At:      start,
		ActorID: actorID,
		Action:  "cycle",
		Target:  e.settings.Snapshot().Target,
		OK:      cycleErr == nil,
		TookMS:  time.Since(start).Milliseconds(),
		Meta:    "trigger=" + trigger,
	}
	if cycleErr != nil {
		entry.Error = cycleErr.Error()
	}
	if err := e.audit.AppendAudit(ctx, entry); err != nil && !errors.Is(err, storage.ErrDisabled) {
		e.log.Warn("audit append failed", logx.Err(err))
	}
}
