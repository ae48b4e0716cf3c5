// Package orchestration defines the boundary between the preemptive scheduler
// and the orchestration engine, plus an in-process engine that satisfies it.
package orchestration

import (
	"context"
	"errors"
	"time"

	"github.com/me/dicomfn/pkg/model"
)

var (
	// ErrEventTimeout is returned when a bounded wait for an external event expires.
	ErrEventTimeout = errors.New("orchestration: timed out waiting for event")
	// ErrInstanceNotFound is returned for unknown instance ids.
	ErrInstanceNotFound = errors.New("orchestration: instance not found")
	// ErrInstanceNotRunning is returned when an event targets a finished instance.
	ErrInstanceNotRunning = errors.New("orchestration: instance is not running")
	// ErrUnknownOrchestration is returned when no orchestrator is registered under a name.
	ErrUnknownOrchestration = errors.New("orchestration: unknown orchestration")
	// ErrRuntimeClosed is returned by StartNew after Shutdown.
	ErrRuntimeClosed = errors.New("orchestration: runtime is shut down")
)

// StatusSource enumerates orchestration instances one page at a time.
type StatusSource interface {
	ListInstances(ctx context.Context, q model.StatusQuery) (*model.StatusPage, error)
}

// EventRaiser delivers a named external event to a running instance.
type EventRaiser interface {
	RaiseEvent(ctx context.Context, instanceID, eventName string, payload any) error
}

// Client is the full engine surface used by the server and the CLI.
type Client interface {
	StatusSource
	EventRaiser
	StartNew(ctx context.Context, name string, input any) (string, error)
	Status(ctx context.Context, instanceID string) (*model.OrchestrationStatus, error)
}

// EventWaiter is the part of an orchestration context a pause point needs.
// A timeout <= 0 waits until ctx is done.
type EventWaiter interface {
	WaitForExternalEvent(ctx context.Context, name string, timeout time.Duration, out any) error
}
