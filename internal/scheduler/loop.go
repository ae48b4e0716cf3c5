package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/me/dicomfn/internal/config"
	"github.com/me/dicomfn/internal/logging"
	"github.com/me/dicomfn/internal/orchestration"
	"github.com/me/dicomfn/internal/store"
	"github.com/me/dicomfn/internal/tracing"
	"github.com/me/dicomfn/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	Interval   time.Duration
	PageSize   int
	Preemption config.PreemptionConfig
}

// DefaultConfig returns the defaults of config.Default.
func DefaultConfig() Config {
	return ConfigFrom(config.Default())
}

// ConfigFrom extracts the scheduler settings from a loaded configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Interval:   cfg.Scheduler.Interval,
		PageSize:   cfg.Scheduler.PageSize,
		Preemption: cfg.Preemption,
	}
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithPageSize overrides the page size used to enumerate instances.
func WithPageSize(n int) Option {
	return func(l *Loop) { l.config.PageSize = n }
}

// activeStatuses are the statuses the scheduler considers.
var activeStatuses = []model.RuntimeStatus{model.RuntimeStatusRunning, model.RuntimeStatusPending}

// Loop implements the Scheduler interface with a ticker-driven preemption loop.
type Loop struct {
	source orchestration.StatusSource
	raiser orchestration.EventRaiser
	store  store.Store
	config Config
	logger *slog.Logger
	now    func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ Scheduler = (*Loop)(nil)

// NewLoop creates a new scheduler loop.
func NewLoop(src orchestration.StatusSource, raiser orchestration.EventRaiser, st store.Store, cfg Config, logger *slog.Logger, opts ...Option) *Loop {
	l := &Loop{
		source: src,
		raiser: raiser,
		store:  st,
		config: cfg,
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start begins the scheduling loop. Blocks until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	defer close(l.doneCh)

	l.logger.Info("scheduler started", "interval", l.config.Interval, "step", l.config.Preemption.Step)
	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopping (context cancelled)")
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			return nil
		case fired := <-ticker.C:
			if fired.Sub(last) > 2*l.config.Interval {
				l.logger.Warn("timer is running behind", "since_last_tick", fired.Sub(last))
			}
			last = fired
			if err := l.Tick(ctx); err != nil {
				l.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for the current tick to finish.
// It must only be called after Start.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	<-l.doneCh
	return nil
}

// Tick runs a single scheduling iteration.
func (l *Loop) Tick(ctx context.Context) error {
	_, err := l.Run(ctx)
	return err
}

// Run performs one decision cycle and reports it. Enumeration failures abort
// the cycle before the store is touched. Store and signal failures for
// individual instances are logged and do not fail the cycle.
func (l *Loop) Run(ctx context.Context) (res Result, err error) {
	ctx, span := tracing.StartSpan(ctx, "preemption.tick", trace.SpanKindInternal)
	defer func() {
		span.SetAttributes(
			attribute.String("action", string(res.Action)),
			attribute.Int("instances", len(res.Instances)),
			attribute.Int("signal_failures", res.SignalFailures),
		)
		tracing.EndSpan(span, err)
	}()

	now := l.now()
	l.logger.Debug("running preemptive scheduler", "time", now)

	statuses, err := l.listActive(ctx)
	if err != nil {
		return Result{Action: ActionNone}, fmt.Errorf("list instances: %w", err)
	}

	snap := classify(statuses, &l.config.Preemption, now)
	if snap.stalled != nil {
		res = Result{Action: ActionPause, Stalled: snap.stalled, Idle: snap.idle}
		logger := logging.ForInstance(l.logger, snap.stalled.Ref())
		logger.Info("high-priority orchestration has not made progress; preempting low-priority orchestrations", "idle", snap.idle)
		if snap.idle > l.config.Preemption.MaxDelay {
			logger.Warn("high-priority orchestration delayed beyond max delay", "idle", snap.idle, "max_delay", l.config.Preemption.MaxDelay)
		}
		res.Instances, res.SignalFailures, err = l.pause(ctx, snap.candidates, now)
		return res, err
	}

	res = Result{Action: ActionResume}
	res.Instances, res.SignalFailures, err = l.resume(ctx, now)
	return res, err
}

// listActive pages through every RUNNING or PENDING instance. Empty pages do
// not end enumeration; only an empty continuation token does.
func (l *Loop) listActive(ctx context.Context) ([]model.OrchestrationStatus, error) {
	var all []model.OrchestrationStatus
	q := model.StatusQuery{RuntimeStatus: activeStatuses, PageSize: l.config.PageSize}
	for {
		page, err := l.source.ListInstances(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.ContinuationToken == "" {
			return all, nil
		}
		q.ContinuationToken = page.ContinuationToken
	}
}

// pause records up to Step new pauses from candidates, in order, then signals them.
func (l *Loop) pause(ctx context.Context, candidates []model.OrchestrationStatus, now time.Time) ([]model.InstanceRef, int, error) {
	already, err := l.store.ListPaused(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list paused: %w", err)
	}

	paused := []model.InstanceRef{}
	for i := 0; i < len(candidates) && len(paused) < l.config.Preemption.Step; i++ {
		ref := candidates[i].Ref()
		if _, ok := already[ref]; ok {
			continue
		}
		added, err := l.store.Pause(ctx, ref, now)
		if err != nil {
			logging.ForInstance(l.logger, ref).Error("record pause", "error", err)
			continue
		}
		if added {
			paused = append(paused, ref)
		}
	}

	failures := l.signal(ctx, paused, l.config.Preemption.PauseEventName, now)

	if len(paused) > 0 {
		l.logger.Info("paused orchestrations", "instances", logging.Refs(paused))
	} else {
		l.logger.Warn("could not pause any additional orchestrations")
	}
	return paused, failures, nil
}

// resume releases up to Step of the most recently paused instances and signals them.
func (l *Loop) resume(ctx context.Context, now time.Time) ([]model.InstanceRef, int, error) {
	resumed, err := l.store.Resume(ctx, l.config.Preemption.Step)
	if err != nil {
		return nil, 0, fmt.Errorf("resume: %w", err)
	}

	failures := l.signal(ctx, resumed, l.config.Preemption.ResumeEventName, now)

	if len(resumed) > 0 {
		l.logger.Info("resumed orchestrations", "instances", logging.Refs(resumed))
	} else {
		l.logger.Debug("no orchestration instances are currently paused")
	}
	return resumed, failures, nil
}

// signal raises event on every ref concurrently, stamped with now, and waits
// for the whole batch. Failures are logged and counted.
func (l *Loop) signal(ctx context.Context, refs []model.InstanceRef, event string, now time.Time) int {
	if len(refs) == 0 {
		return 0
	}

	var (
		mu       sync.Mutex
		failures int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(l.config.Preemption.MaxParallelSignals, 1))
	for _, ref := range refs {
		g.Go(func() error {
			if err := l.raiser.RaiseEvent(gctx, ref.InstanceID, event, now); err != nil {
				logging.ForInstance(l.logger, ref).Error("raise event", "event", event, "error", err)
				mu.Lock()
				failures++
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return failures
}
