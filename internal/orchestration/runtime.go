package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/dicomfn/internal/logging"
	"github.com/me/dicomfn/pkg/model"
)

// Runtime is an in-process orchestration engine. Each instance runs on its
// own goroutine; external events are buffered per instance until consumed.
type Runtime struct {
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time

	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	seq       uint64
	order     []*instance
	instances map[string]*instance
	closed    bool
	wg        sync.WaitGroup
}

type instance struct {
	seq    uint64
	status model.OrchestrationStatus
	done   chan struct{}
	events map[string][]json.RawMessage
	// notify is closed and replaced whenever an event is buffered.
	notify chan struct{}
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeClock overrides the time source used for status timestamps.
func WithRuntimeClock(now func() time.Time) RuntimeOption {
	return func(r *Runtime) { r.now = now }
}

var _ Client = (*Runtime)(nil)

// NewRuntime creates a Runtime that runs the orchestrators in registry.
func NewRuntime(registry *Registry, logger *slog.Logger, opts ...RuntimeOption) *Runtime {
	base, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		registry:  registry,
		logger:    logger.With("component", "orchestration"),
		now:       time.Now,
		base:      base,
		cancel:    cancel,
		instances: make(map[string]*instance),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// StartNew schedules a new instance of the named orchestration and returns its id.
func (r *Runtime) StartNew(_ context.Context, name string, input any) (string, error) {
	canonical, fn, err := r.registry.Orchestrator(name)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal input: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRuntimeClosed
	}
	now := r.now()
	r.seq++
	inst := &instance{
		seq: r.seq,
		status: model.OrchestrationStatus{
			Name:            canonical,
			InstanceID:      uuid.New().String(),
			RuntimeStatus:   model.RuntimeStatusPending,
			CreatedTime:     now,
			LastUpdatedTime: now,
		},
		done:   make(chan struct{}),
		events: make(map[string][]json.RawMessage),
		notify: make(chan struct{}),
	}
	r.order = append(r.order, inst)
	r.instances[inst.status.InstanceID] = inst
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(inst, fn, raw)

	r.logger.Info("orchestration started", "name", canonical, "instance_id", inst.status.InstanceID)
	return inst.status.InstanceID, nil
}

func (r *Runtime) run(inst *instance, fn OrchestratorFunc, input json.RawMessage) {
	defer r.wg.Done()
	defer close(inst.done)

	ref := inst.status.Ref()
	logger := logging.ForInstance(r.logger, ref)
	oc := &Context{rt: r, inst: inst, ref: ref, logger: logger}

	r.transition(inst, model.RuntimeStatusRunning, nil, "")

	out, err := r.invoke(inst, fn, oc, input)
	switch {
	case err == nil:
		r.transition(inst, model.RuntimeStatusCompleted, out, "")
		logger.Info("orchestration completed")
	case errors.Is(err, context.Canceled) && r.base.Err() != nil:
		r.transition(inst, model.RuntimeStatusTerminated, nil, err.Error())
		logger.Info("orchestration terminated")
	default:
		r.transition(inst, model.RuntimeStatusFailed, nil, err.Error())
		logger.Error("orchestration failed", "error", err)
	}
}

func (r *Runtime) invoke(inst *instance, fn OrchestratorFunc, oc *Context, input json.RawMessage) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("orchestrator panic: %v", p)
		}
	}()
	return fn(r.base, oc, input)
}

func (r *Runtime) transition(inst *instance, to model.RuntimeStatus, output any, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := inst.status.RuntimeStatus
	if !from.CanTransitionTo(to) {
		r.logger.Warn("invalid status transition",
			"error", &model.InvalidTransitionError{ID: inst.status.InstanceID, From: from, To: to})
		return
	}
	inst.status.RuntimeStatus = to
	inst.status.LastUpdatedTime = r.now()
	inst.status.Output = output
	inst.status.Error = errMsg
}

// touch records progress on inst.
func (r *Runtime) touch(inst *instance) {
	r.mu.Lock()
	inst.status.LastUpdatedTime = r.now()
	r.mu.Unlock()
}

// RaiseEvent buffers an event for the instance. Events raised before the
// instance waits for them are delivered in FIFO order per event name.
func (r *Runtime) RaiseEvent(_ context.Context, instanceID, eventName string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[instanceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	if inst.status.RuntimeStatus.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrInstanceNotRunning, instanceID, inst.status.RuntimeStatus)
	}
	inst.events[eventName] = append(inst.events[eventName], raw)
	close(inst.notify)
	inst.notify = make(chan struct{})
	r.logger.Debug("event raised", "instance_id", instanceID, "event", eventName)
	return nil
}

// takeEvent pops the oldest buffered event named name. When none is buffered
// it returns the channel that will be closed by the next RaiseEvent.
func (r *Runtime) takeEvent(inst *instance, name string) (json.RawMessage, <-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue := inst.events[name]
	if len(queue) == 0 {
		return nil, inst.notify, false
	}
	payload := queue[0]
	if len(queue) == 1 {
		delete(inst.events, name)
	} else {
		inst.events[name] = queue[1:]
	}
	inst.status.LastUpdatedTime = r.now()
	return payload, nil, true
}

// Status returns a snapshot of one instance.
func (r *Runtime) Status(_ context.Context, instanceID string) (*model.OrchestrationStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	st := inst.status
	return &st, nil
}

// ListInstances returns instances in creation order. The continuation token
// is the sequence number of the last instance on the page.
func (r *Runtime) ListInstances(_ context.Context, q model.StatusQuery) (*model.StatusPage, error) {
	var after uint64
	if q.ContinuationToken != "" {
		n, err := strconv.ParseUint(q.ContinuationToken, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid continuation token %q", q.ContinuationToken)
		}
		after = n
	}
	size := model.ClampPageSize(q.PageSize)

	r.mu.Lock()
	defer r.mu.Unlock()

	page := &model.StatusPage{Items: []model.OrchestrationStatus{}}
	var last uint64
	for _, inst := range r.order {
		if inst.seq <= after || !q.Matches(&inst.status) {
			continue
		}
		if len(page.Items) == size {
			page.ContinuationToken = strconv.FormatUint(last, 10)
			break
		}
		page.Items = append(page.Items, inst.status)
		last = inst.seq
	}
	return page, nil
}

// WaitForCompletion blocks until the instance reaches a terminal status or ctx is done.
func (r *Runtime) WaitForCompletion(ctx context.Context, instanceID string) (*model.OrchestrationStatus, error) {
	r.mu.Lock()
	inst, ok := r.instances[instanceID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}

	select {
	case <-inst.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.Status(ctx, instanceID)
}

// Shutdown cancels every running instance and waits for them to finish.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("orchestration runtime stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
