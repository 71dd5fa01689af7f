package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"monotub_dashboard/internal/logger"
)

// ErrSchedulerStopped is returned for refresh requests after Run has returned.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// Refresher runs refreshes of view targets and reports their outcome.
type Refresher interface {
	Refresh(ctx context.Context, targets ...Target) error
}

// Worker performs a single refresh of one target.
type Worker interface {
	Work(ctx context.Context, t Target) error
}

// Clock receives the periodic clock tick.
type Clock interface {
	Tick(now time.Time)
}

// directRefresher calls the worker on the caller's goroutine, targets in parallel.
type directRefresher struct {
	worker Worker
}

func (d directRefresher) Refresh(ctx context.Context, targets ...Target) error {
	if len(targets) == 1 {
		return d.worker.Work(ctx, targets[0])
	}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			errs[i] = d.worker.Work(ctx, t)
		}(i, t)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Intervals configures the periodic work of the scheduler.
type Intervals struct {
	Status  time.Duration
	History time.Duration
	Clock   time.Duration
}

func (iv Intervals) withDefaults() Intervals {
	if iv.Status <= 0 {
		iv.Status = 5 * time.Second
	}
	if iv.History <= 0 {
		iv.History = time.Minute
	}
	if iv.Clock <= 0 {
		iv.Clock = time.Second
	}
	return iv
}

// Scheduler drives the periodic refreshes and serializes every refresh per target:
// at most one run is in flight per target, and requests that arrive while a run
// is queued join that run.
type Scheduler struct {
	worker    Worker
	clock     Clock
	intervals Intervals
	log       *logger.Logger
	runners   map[Target]*runner
}

func NewScheduler(w Worker, clock Clock, iv Intervals, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	s := &Scheduler{
		worker:    w,
		clock:     clock,
		intervals: iv.withDefaults(),
		log:       log,
		runners:   make(map[Target]*runner),
	}
	for _, t := range []Target{TargetStatus, TargetTempChart, TargetHumChart} {
		s.runners[t] = newRunner(t)
	}
	return s
}

// Refresh queues targets and waits for the runs serving them. Requests made
// before Run starts are served once it does. ctx bounds the wait only.
func (s *Scheduler) Refresh(ctx context.Context, targets ...Target) error {
	var errs []error
	jobs := make([]*job, 0, len(targets))
	for _, t := range targets {
		r, ok := s.runners[t]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownTarget, t))
			continue
		}
		j, err := r.request()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		jobs = append(jobs, j)
	}
	for _, j := range jobs {
		select {
		case <-j.done:
			if j.err != nil {
				errs = append(errs, j.err)
			}
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		}
	}
	return errors.Join(errs...)
}

// Run refreshes everything once, then on the configured intervals until ctx is canceled.
// Run must be called at most once.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, r := range s.runners {
		wg.Add(1)
		go func(r *runner) {
			defer wg.Done()
			r.loop(ctx, s.worker)
		}(r)
	}
	defer wg.Wait()

	s.log.Infow("scheduler_started",
		"status_interval", s.intervals.Status,
		"history_interval", s.intervals.History,
		"clock_interval", s.intervals.Clock)

	if s.clock != nil {
		s.clock.Tick(time.Now())
	}
	s.enqueue(TargetStatus, TargetTempChart, TargetHumChart)

	status := time.NewTicker(s.intervals.Status)
	defer status.Stop()
	history := time.NewTicker(s.intervals.History)
	defer history.Stop()
	clock := time.NewTicker(s.intervals.Clock)
	defer clock.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("scheduler_stopped")
			return
		case <-status.C:
			s.enqueue(TargetStatus)
		case <-history.C:
			s.enqueue(TargetTempChart, TargetHumChart)
		case now := <-clock.C:
			if s.clock != nil {
				s.clock.Tick(now)
			}
		}
	}
}

// enqueue requests targets without waiting. Outcomes are handled by the worker.
func (s *Scheduler) enqueue(targets ...Target) {
	for _, t := range targets {
		if _, err := s.runners[t].request(); err != nil {
			s.log.Debugw("refresh_not_queued", "target", t, "error", err)
		}
	}
}

type job struct {
	done chan struct{}
	err  error
}

type runner struct {
	target Target
	kick   chan struct{}

	mu      sync.Mutex
	pending *job
	stopped bool
}

func newRunner(t Target) *runner {
	return &runner{target: t, kick: make(chan struct{}, 1)}
}

// request returns the queued job for the target, creating one if none is queued.
func (r *runner) request() (*job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, ErrSchedulerStopped
	}
	if r.pending == nil {
		r.pending = &job{done: make(chan struct{})}
		select {
		case r.kick <- struct{}{}:
		default:
		}
	}
	return r.pending, nil
}

func (r *runner) loop(ctx context.Context, w Worker) {
	for {
		select {
		case <-ctx.Done():
			r.stop(ctx.Err())
			return
		case <-r.kick:
		}

		r.mu.Lock()
		j := r.pending
		r.pending = nil
		r.mu.Unlock()
		if j == nil {
			continue
		}
		j.err = w.Work(ctx, r.target)
		close(j.done)
	}
}

func (r *runner) stop(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.pending != nil {
		r.pending.err = err
		close(r.pending.done)
		r.pending = nil
	}
}
