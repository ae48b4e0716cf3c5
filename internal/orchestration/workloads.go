package orchestration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/me/dicomfn/internal/config"
)

// Built-in orchestration and activity names.
const (
	ReindexOrchestration = "Reindex"
	ReindexActivity      = "Reindex_Batch"
	CleanupOrchestration = "Cleanup"
	CleanupActivity      = "Cleanup_Batch"
)

// WorkloadResult is the output of the built-in orchestrations.
type WorkloadResult struct {
	Units  int `json:"units"`
	Pauses int `json:"pauses"`
}

// RegisterWorkloads registers the built-in Reindex and Cleanup orchestrations.
// Reindex is a bulk loop with no checkpoints. Cleanup calls pp before every
// unit and can therefore be preempted.
func RegisterWorkloads(reg *Registry, cfg config.WorkloadsConfig, pp PausePoint) {
	reg.RegisterActivity(ReindexActivity, batchActivity(cfg.Reindex.Work))
	reg.RegisterActivity(CleanupActivity, batchActivity(cfg.Cleanup.Work))

	reg.RegisterOrchestrator(ReindexOrchestration, func(ctx context.Context, oc *Context, _ json.RawMessage) (any, error) {
		var res WorkloadResult
		for i := 1; i <= cfg.Reindex.Units; i++ {
			if err := oc.CallActivity(ctx, ReindexActivity, i, nil); err != nil {
				return nil, err
			}
			res.Units++
			if err := oc.CreateTimer(ctx, cfg.Reindex.Interval); err != nil {
				return nil, err
			}
		}
		return res, nil
	})

	reg.RegisterOrchestrator(CleanupOrchestration, func(ctx context.Context, oc *Context, _ json.RawMessage) (any, error) {
		var res WorkloadResult
		for i := 1; i <= cfg.Cleanup.Units; i++ {
			paused, err := pp.Check(ctx, oc, oc.Logger())
			if err != nil {
				return nil, err
			}
			if paused {
				res.Pauses++
			}
			if err := oc.CallActivity(ctx, CleanupActivity, i, nil); err != nil {
				return nil, err
			}
			res.Units++
			if err := oc.CreateTimer(ctx, cfg.Cleanup.Interval); err != nil {
				return nil, err
			}
		}
		return res, nil
	})
}

// batchActivity simulates one unit of work taking d.
func batchActivity(d time.Duration) ActivityFunc {
	return func(ctx context.Context, input json.RawMessage) (any, error) {
		var unit int
		if err := json.Unmarshal(input, &unit); err != nil {
			return nil, err
		}
		if d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return unit, nil
	}
}
