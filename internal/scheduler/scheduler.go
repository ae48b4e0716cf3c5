package scheduler

import "context"

// Scheduler periodically decides whether low-priority orchestrations should
// yield to stalled high-priority ones, and signals them accordingly.
type Scheduler interface {
	// Start begins the scheduling loop. Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler.
	Stop() error

	// Tick runs a single scheduling iteration.
	Tick(ctx context.Context) error
}
