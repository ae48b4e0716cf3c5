package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/me/dicomfn/internal/config"
	"github.com/me/dicomfn/internal/logging"
	"github.com/me/dicomfn/internal/orchestration"
	"github.com/me/dicomfn/internal/store"
	"github.com/me/dicomfn/pkg/model"
)

// TestPreemptionEndToEnd runs the built-in workloads on the in-process
// runtime: a stalled Reindex pauses Cleanup, and once Reindex finishes the
// next tick resumes it.
func TestPreemptionEndToEnd(t *testing.T) {
	logger := logging.Discard()
	cfg := config.Default()
	cfg.Workloads = config.WorkloadsConfig{
		Reindex: config.WorkloadConfig{Units: 2, Interval: 200 * time.Millisecond},
		Cleanup: config.WorkloadConfig{Units: 10, Interval: 20 * time.Millisecond},
	}

	reg := orchestration.NewRegistry(logger)
	orchestration.RegisterWorkloads(reg, cfg.Workloads, orchestration.PausePoint{
		PauseEvent:  cfg.Preemption.PauseEventName,
		ResumeEvent: cfg.Preemption.ResumeEventName,
		Timeout:     50 * time.Millisecond,
	})
	rt := orchestration.NewRuntime(reg, logger)
	defer rt.Shutdown(context.Background())

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	defer st.Close()

	// Run ahead of the runtime so the high-priority instance always reads as idle.
	loop := NewLoop(rt, rt, st, ConfigFrom(cfg), logger,
		WithClock(func() time.Time { return time.Now().Add(time.Second) }))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cleanupID, err := rt.StartNew(ctx, orchestration.CleanupOrchestration, nil)
	if err != nil {
		t.Fatalf("start cleanup: %v", err)
	}
	reindexID, err := rt.StartNew(ctx, orchestration.ReindexOrchestration, nil)
	if err != nil {
		t.Fatalf("start reindex: %v", err)
	}
	waitStatus(t, rt, cleanupID, model.RuntimeStatusRunning)
	waitStatus(t, rt, reindexID, model.RuntimeStatusRunning)

	res, err := loop.Run(ctx)
	if err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if res.Action != ActionPause || len(res.Instances) != 1 || res.Instances[0].InstanceID != cleanupID {
		t.Fatalf("tick 1 = %+v, want Cleanup paused", res)
	}

	reindex, err := rt.WaitForCompletion(ctx, reindexID)
	if err != nil {
		t.Fatalf("wait reindex: %v", err)
	}
	if reindex.RuntimeStatus != model.RuntimeStatusCompleted {
		t.Fatalf("reindex = %s (%s)", reindex.RuntimeStatus, reindex.Error)
	}
	cl, err := rt.Status(ctx, cleanupID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if cl.RuntimeStatus != model.RuntimeStatusRunning {
		t.Fatalf("cleanup = %s, want RUNNING while paused", cl.RuntimeStatus)
	}

	res, err = loop.Run(ctx)
	if err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if res.Action != ActionResume || len(res.Instances) != 1 || res.Instances[0].InstanceID != cleanupID {
		t.Fatalf("tick 2 = %+v, want Cleanup resumed", res)
	}

	cl, err = rt.WaitForCompletion(ctx, cleanupID)
	if err != nil {
		t.Fatalf("wait cleanup: %v", err)
	}
	if cl.RuntimeStatus != model.RuntimeStatusCompleted {
		t.Fatalf("cleanup = %s (%s)", cl.RuntimeStatus, cl.Error)
	}
	out, ok := cl.Output.(orchestration.WorkloadResult)
	if !ok || out.Pauses != 1 || out.Units != 10 {
		t.Errorf("cleanup output = %#v, want 10 units with 1 pause", cl.Output)
	}

	paused, err := st.ListPaused(ctx)
	if err != nil {
		t.Fatalf("ListPaused: %v", err)
	}
	if len(paused) != 0 {
		t.Errorf("store still holds %v", paused)
	}
}

func waitStatus(t *testing.T, rt *orchestration.Runtime, id string, want model.RuntimeStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		st, err := rt.Status(context.Background(), id)
		if err == nil && st.RuntimeStatus == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("instance %s never reached %s", id, want)
		}
		time.Sleep(time.Millisecond)
	}
}
