// Package scheduler runs probe cycles over every registered endpoint, on a
// fixed interval and on external wake-ups.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazz-dev/everwatch/internal/alert"
	"github.com/hazz-dev/everwatch/internal/checker"
	"github.com/hazz-dev/everwatch/internal/endpoint"
	"github.com/hazz-dev/everwatch/internal/metrics"
)

// Cycle triggers, used in logs and metrics.
const (
	TriggerTimer  = "timer"
	TriggerWake   = "wake"
	TriggerManual = "manual"
)

// DefaultMaxConcurrent bounds in-flight probes when no limit is configured.
const DefaultMaxConcurrent = 16

// Registry is the endpoint registry as seen by the scheduler.
type Registry interface {
	List() []endpoint.Endpoint
	Dispatch(id string) (endpoint.Ticket, error)
	Apply(t endpoint.Ticket, fn func() error) error
	Release(t endpoint.Ticket)
}

// Decider applies one probe outcome.
type Decider interface {
	Handle(id string, out checker.Outcome, at time.Time) (alert.Decision, error)
}

// Persister writes the registry snapshot.
type Persister interface {
	Persist(ctx context.Context) error
}

// Rearmer schedules the next external wake-up.
type Rearmer interface {
	Rearm()
}

// CheckerFactory creates a Checker for an endpoint.
type CheckerFactory func(ep endpoint.Endpoint, timeout time.Duration) checker.Checker

// Options configures a Scheduler.
type Options struct {
	Interval      time.Duration
	ProbeTimeout  time.Duration
	MaxConcurrent int
	// Factory defaults to checker.New.
	Factory CheckerFactory
}

// Scheduler fans out one probe per endpoint per cycle. Outcomes for one
// endpoint are applied in the order their probes were dispatched.
type Scheduler struct {
	reg       Registry
	decider   Decider
	persister Persister
	opts      Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
	wg        sync.WaitGroup

	mu      sync.Mutex
	trigger Rearmer
}

// New creates a new Scheduler. Pass nil logger to use the default logger.
func New(reg Registry, decider Decider, persister Persister, opts Options, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Factory == nil {
		opts.Factory = checker.New
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Scheduler{
		reg:       reg,
		decider:   decider,
		persister: persister,
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

// SetTrigger sets the trigger Wake re-arms.
func (s *Scheduler) SetTrigger(t Rearmer) {
	s.mu.Lock()
	s.trigger = t
	s.mu.Unlock()
}

// Start runs a cycle immediately and then one per interval until ctx is
// done. It is non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the interval loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	// Run immediately.
	s.runLogged(ctx, TriggerTimer)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runLogged(ctx, TriggerTimer)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context, trigger string) {
	if err := s.RunCycle(ctx, trigger); err != nil {
		s.logger.Error("probe cycle", "trigger", trigger, "error", err)
	}
}

// Wake re-arms the external trigger and then runs exactly one cycle. The
// returned error reports whether the cycle succeeded.
func (s *Scheduler) Wake(ctx context.Context) error {
	s.mu.Lock()
	t := s.trigger
	s.mu.Unlock()
	if t != nil {
		t.Rearm()
	}
	return s.RunCycle(ctx, TriggerWake)
}

// RunCycle probes every endpoint concurrently and applies each outcome as it
// completes. It returns the first error among the applications.
func (s *Scheduler) RunCycle(ctx context.Context, trigger string) error {
	start := time.Now()
	eps := s.reg.List()
	s.metrics.SetEndpoints(len(eps))

	// All tickets are taken before any probe runs, fixing this cycle's place
	// in every endpoint's order.
	type job struct {
		ep     endpoint.Endpoint
		ticket endpoint.Ticket
	}
	jobs := make([]job, 0, len(eps))
	for _, ep := range eps {
		t, err := s.reg.Dispatch(ep.ID)
		if err != nil {
			// Removed since List.
			continue
		}
		jobs = append(jobs, job{ep: ep, ticket: t})
	}

	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrent)
	for _, j := range jobs {
		g.Go(func() error {
			return s.probe(ctx, j.ep, j.ticket)
		})
	}
	err := g.Wait()

	elapsed := time.Since(start)
	s.metrics.ObserveCycle(trigger, elapsed)
	s.logger.Info("probe cycle complete",
		"trigger", trigger,
		"endpoints", len(jobs),
		"duration", elapsed,
	)
	return err
}

func (s *Scheduler) probe(ctx context.Context, ep endpoint.Endpoint, t endpoint.Ticket) error {
	if ctx.Err() != nil {
		s.reg.Release(t)
		return nil
	}

	out := s.opts.Factory(ep, s.opts.ProbeTimeout).Check(ctx)
	if ctx.Err() != nil {
		// Shutting down; the cancellation is not an observation of the endpoint.
		s.reg.Release(t)
		return nil
	}

	s.logger.Info("probe result",
		"endpoint", ep.Name,
		"url", ep.URL,
		"status", out.Description,
	)

	return s.reg.Apply(t, func() error {
		if _, err := s.decider.Handle(ep.ID, out, t.DispatchedAt); err != nil {
			if errors.Is(err, endpoint.ErrNotFound) {
				s.logger.Debug("endpoint removed before its probe was applied", "endpoint", ep.ID)
				return nil
			}
			return fmt.Errorf("applying probe of %q: %w", ep.Name, err)
		}
		return s.persister.Persist(context.WithoutCancel(ctx))
	})
}
