// Package scheduler runs recurring jobs on a cron-backed timer with a
// bounded worker queue and a bounded run history. Jobs are identified by
// the id returned from Add*; re-adding under the same name does not replace
// an existing entry — callers remove the old id first.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"linkguard/pkg/logx"
)

type Config struct {
	Workers        int
	DefaultTimeout time.Duration
	HistorySize    int
	Timezone       string // IANA TZ, e.g. "Asia/Jakarta"
}

type JobInfo struct {
	ID   string
	Name string
	Spec string
	Next time.Time
}

type RunRecord struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

type jobDef struct {
	id      string
	name    string
	spec    string
	timeout time.Duration
	job     func(ctx context.Context) error
}

type task struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config

	parser  cron.Parser
	c       *cron.Cron
	defs    map[string]jobDef
	entries map[string]cron.EntryID

	queue  chan task
	stopCh chan struct{}

	seq uint64

	hmu     sync.Mutex
	history []RunRecord
}

func New(cfg Config, log logx.Logger) *Service {
	return &Service{
		cfg:     cfg,
		log:     log,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:    map[string]jobDef{},
		entries: map[string]cron.EntryID{},
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	s.queue = make(chan task, 64)

	loc := s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))

	// re-register defs surviving a restart
	for id, d := range s.defs {
		s.registerLocked(id, d)
	}

	for i := 0; i < workers; i++ {
		go s.worker(ctx)
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Int("workers", workers), logx.String("tz", loc.String()))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	if s.c != nil {
		stopCtx := s.c.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		s.c = nil
	}
	s.entries = map[string]cron.EntryID{}
	s.log.Info("scheduler stopped")
}

// AddInterval schedules job every `every`, first firing after one full
// interval. Returns the job id used with Remove.
func (s *Service) AddInterval(name string, every time.Duration, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	if every <= 0 {
		return "", fmt.Errorf("interval must be positive, got %s", every)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return "", errors.New("scheduler not started")
	}
	id := fmt.Sprintf("interval:%d", atomic.AddUint64(&s.seq, 1))
	d := jobDef{
		id:      id,
		name:    name,
		spec:    fmt.Sprintf("@every %s", every.String()),
		timeout: s.resolveTimeout(timeout),
		job:     job,
	}
	s.defs[id] = d
	if err := s.registerLocked(id, d); err != nil {
		delete(s.defs, id)
		return "", err
	}
	return id, nil
}

// Remove cancels the job with the given id. Returns false if no such job
// exists. Future firings stop; an in-flight run finishes.
func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[id]
	if !ok {
		return false
	}
	delete(s.defs, id)
	if eid, ok := s.entries[id]; ok && s.c != nil {
		s.c.Remove(eid)
	}
	delete(s.entries, id)
	s.log.Debug("job removed", logx.String("id", id), logx.String("name", d.name))
	return true
}

func (s *Service) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.defs))
	for id, d := range s.defs {
		info := JobInfo{ID: id, Name: d.name, Spec: d.spec}
		if eid, ok := s.entries[id]; ok && s.c != nil {
			info.Next = s.c.Entry(eid).Next
		}
		out = append(out, info)
	}
	return out
}

func (s *Service) History(limit int) []RunRecord {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RunRecord, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

func (s *Service) registerLocked(id string, d jobDef) error {
	eid, err := s.c.AddFunc(d.spec, func() {
		s.enqueue(task{name: d.name, timeout: d.timeout, run: d.job})
	})
	if err != nil {
		return err
	}
	s.entries[id] = eid
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) resolveTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return s.cfg.DefaultTimeout
}

func (s *Service) enqueue(t task) {
	select {
	case s.queue <- t:
	default:
		s.log.Warn("scheduler queue full, dropping run", logx.String("job", t.name))
	}
}

func (s *Service) worker(ctx context.Context) {
	s.mu.Lock()
	stopCh := s.stopCh
	queue := s.queue
	s.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	start := time.Now()
	runCtx := ctx
	var cancel func()
	if t.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	err := t.run(runCtx)

	rec := RunRecord{
		Name:     t.name,
		Started:  start,
		Duration: time.Since(start),
	}
	if err != nil {
		rec.Error = err.Error()
		s.log.Warn("job run failed", logx.String("job", t.name), logx.Err(err))
	} else {
		s.log.Info("job run ok", logx.String("job", t.name), logx.Duration("took", rec.Duration))
	}

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, rec)
	max := s.cfg.HistorySize
	if max <= 0 {
		max = 100
	}
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
}
