// Package engine schedules recurring trace runs and feeds their results
// through enrichment, persistence, statistics, route-change detection,
// and alert evaluation.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/pathwatch/internal/alerts"
	"github.com/user/pathwatch/internal/live"
	"github.com/user/pathwatch/internal/model"
	"github.com/user/pathwatch/internal/probes"
	"github.com/user/pathwatch/internal/route"
)

// Resolver enriches hop addresses with reverse names.
type Resolver interface {
	Resolve(addr string) string
}

// SampleStore is the persistence surface for samples.
type SampleStore interface {
	Append(ctx context.Context, targetID int64, at time.Time, hops []model.Hop) error
	Recent(ctx context.Context, targetID int64, hopNumber, limit int) ([]model.Sample, error)
}

// RuleSource supplies the enabled alert rules for a target.
type RuleSource interface {
	Rules(ctx context.Context, targetID int64, enabledOnly bool) ([]model.AlertRule, error)
}

// EventSink records alert state transitions.
type EventSink interface {
	AppendEvent(ctx context.Context, ev *model.AlertEvent) error
}

// job is one target's registry entry. The cancelled flag makes a
// deactivated target's in-flight run discard its outcome.
type job struct {
	id        uuid.UUID
	cancelled atomic.Bool
}

// Engine owns the target registry: one recurring, mutually independent
// job per active target. Jobs run in singleton mode, so a slow run is
// skipped over rather than queued behind.
type Engine struct {
	tracer    probes.Tracer
	resolver  Resolver
	samples   SampleStore
	rules     RuleSource
	events    EventSink
	detector  *route.Detector
	evaluator *alerts.Evaluator
	hub       *live.Hub
	logger    *zap.Logger
	focusSize int

	scheduler gocron.Scheduler

	mu   sync.Mutex
	jobs map[int64]*job

	ctx    context.Context
	cancel context.CancelFunc
}

// Options collects the engine's collaborators.
type Options struct {
	Tracer    probes.Tracer
	Resolver  Resolver
	Samples   SampleStore
	Rules     RuleSource
	Events    EventSink
	Detector  *route.Detector
	Evaluator *alerts.Evaluator
	Hub       *live.Hub
	Logger    *zap.Logger
	FocusSize int
}

// New creates an engine with an idle scheduler.
func New(opts Options) (*Engine, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if opts.FocusSize <= 0 {
		opts.FocusSize = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		tracer:    opts.Tracer,
		resolver:  opts.Resolver,
		samples:   opts.Samples,
		rules:     opts.Rules,
		events:    opts.Events,
		detector:  opts.Detector,
		evaluator: opts.Evaluator,
		hub:       opts.Hub,
		logger:    opts.Logger,
		focusSize: opts.FocusSize,
		scheduler: scheduler,
		jobs:      make(map[int64]*job),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start begins firing jobs for targets registered so far.
func (e *Engine) Start() {
	e.scheduler.Start()
	e.logger.Info("sampling scheduler started")
}

// Activate registers a recurring job for the target. An existing job
// for the same target is replaced.
func (e *Engine) Activate(target model.Target) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.jobs[target.ID]; ok {
		old.cancelled.Store(true)
		_ = e.scheduler.RemoveJob(old.id)
		delete(e.jobs, target.ID)
	}

	interval := target.Probe.TraceInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	j := &job{}
	gj, err := e.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { e.collect(target, j) }),
		gocron.WithName(fmt.Sprintf("trace-%d", target.ID)),
		// Skip-if-running: never two concurrent runs for one target,
		// never a backlog behind a consistently slow one.
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create job for target %d: %w", target.ID, err)
	}
	j.id = gj.ID()
	e.jobs[target.ID] = j

	e.logger.Info("target activated",
		zap.Int64("target_id", target.ID),
		zap.String("host", target.Host),
		zap.Duration("interval", interval))
	return nil
}

// Deactivate cancels the target's future firings. An in-flight run
// finishes naturally but its outcome is discarded.
func (e *Engine) Deactivate(targetID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, ok := e.jobs[targetID]
	if !ok {
		return
	}
	j.cancelled.Store(true)
	_ = e.scheduler.RemoveJob(j.id)
	delete(e.jobs, targetID)

	e.logger.Info("target deactivated", zap.Int64("target_id", targetID))
}

// Active returns the IDs of targets with a registered job.
func (e *Engine) Active() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int64, 0, len(e.jobs))
	for id := range e.jobs {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown deterministically cancels all jobs and stops the scheduler.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	for id, j := range e.jobs {
		j.cancelled.Store(true)
		delete(e.jobs, id)
	}
	e.mu.Unlock()

	e.cancel()
	if err := e.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	e.logger.Info("sampling scheduler stopped")
	return nil
}
