package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/dicomfn/internal/config"
	"github.com/me/dicomfn/internal/orchestration"
	"github.com/me/dicomfn/internal/scheduler"
	"github.com/me/dicomfn/internal/server"
	"github.com/me/dicomfn/internal/store"
	"github.com/me/dicomfn/pkg/model"
)

type testServer struct {
	url   string
	rt    *orchestration.Runtime
	store store.Store
}

// startTestServer starts a server backed by an in-process runtime and a memory store.
func startTestServer(t *testing.T) *testServer {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))

	reg := orchestration.NewRegistry(srvLogger)
	resumeEvent := config.Default().Preemption.ResumeEventName
	reg.RegisterOrchestrator("Waiter", func(ctx context.Context, oc *orchestration.Context, _ json.RawMessage) (any, error) {
		var at time.Time
		if err := oc.WaitForExternalEvent(ctx, resumeEvent, 0, &at); err != nil {
			return nil, err
		}
		return "resumed", nil
	})
	rt := orchestration.NewRuntime(reg, srvLogger)
	t.Cleanup(func() { rt.Shutdown(context.Background()) })

	st := store.NewMemoryStore()
	loop := scheduler.NewLoop(rt, rt, st, scheduler.DefaultConfig(), srvLogger)
	srv := server.New(config.Default().Server, rt, st, srvLogger, server.WithScheduler(loop))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{url: ts.URL, rt: rt, store: st}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

var startedRE = regexp.MustCompile(`Started (\S+): (\S+)`)

func startWaiter(t *testing.T, ts *testServer) string {
	t.Helper()
	out, err := runCLI(t, "--server", ts.url, "start", "waiter", `{"k":1}`)
	if err != nil {
		t.Fatalf("start error: %v\noutput: %s", err, out)
	}
	m := startedRE.FindStringSubmatch(out)
	if m == nil || m[1] != "Waiter" {
		t.Fatalf("unexpected start output: %s", out)
	}
	return m[2]
}

func TestStartAndStatusCommands(t *testing.T) {
	ts := startTestServer(t)
	id := startWaiter(t, ts)

	out, err := runCLI(t, "--server", ts.url, "status", id)
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	if !strings.Contains(out, "Instance: "+id) || !strings.Contains(out, "Name:    Waiter") {
		t.Errorf("unexpected status output: %s", out)
	}

	out, err = runCLI(t, "--server", ts.url, "status", "--page-size", "1")
	if err != nil {
		t.Fatalf("status list error: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "CREATED") {
		t.Errorf("unexpected list output: %s", out)
	}
}

func TestStatusListPagesThroughEveryInstance(t *testing.T) {
	ts := startTestServer(t)
	ids := []string{startWaiter(t, ts), startWaiter(t, ts), startWaiter(t, ts)}

	out, err := runCLI(t, "--server", ts.url, "status", "--page-size", "1")
	if err != nil {
		t.Fatalf("status list error: %v", err)
	}
	for _, id := range ids {
		if !strings.Contains(out, id) {
			t.Errorf("instance %s missing from output: %s", id, out)
		}
	}
}

func TestStatusYAMLOutput(t *testing.T) {
	ts := startTestServer(t)
	id := startWaiter(t, ts)

	out, err := runCLI(t, "--server", ts.url, "-o", "yaml", "status", id)
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	var st model.OrchestrationStatus
	if err := yaml.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("output is not yaml: %v\n%s", err, out)
	}
	if st.InstanceID != id || st.Name != "Waiter" {
		t.Errorf("decoded = %+v", st)
	}
}

func TestResumeCommand(t *testing.T) {
	ts := startTestServer(t)
	id := startWaiter(t, ts)

	out, err := runCLI(t, "--server", ts.url, "resume", id)
	if err != nil {
		t.Fatalf("resume error: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "Raised ResumeOrchestration on "+id) {
		t.Errorf("unexpected resume output: %s", out)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := ts.rt.WaitForCompletion(ctx, id)
	if err != nil {
		t.Fatalf("WaitForCompletion: %v", err)
	}
	if st.RuntimeStatus != model.RuntimeStatusCompleted || st.Output != "resumed" {
		t.Errorf("final status = %+v", st)
	}
}

func TestRaiseCommandErrors(t *testing.T) {
	ts := startTestServer(t)

	if _, err := runCLI(t, "--server", ts.url, "raise", "nope", "Go"); err == nil ||
		!strings.Contains(err.Error(), "not found") {
		t.Errorf("raise on unknown instance: err = %v", err)
	}
	if _, err := runCLI(t, "--server", ts.url, "raise", "nope", "Go", "{bad"); err == nil ||
		!strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("raise with bad payload: err = %v", err)
	}
}

func TestPausedCommand(t *testing.T) {
	ts := startTestServer(t)

	out, err := runCLI(t, "--server", ts.url, "paused")
	if err != nil {
		t.Fatalf("paused error: %v", err)
	}
	if !strings.Contains(out, "No orchestrations are paused.") {
		t.Errorf("unexpected output: %s", out)
	}

	ts.store.Pause(context.Background(), model.InstanceRef{Name: "Cleanup", InstanceID: "c1"}, time.Now().Add(-time.Hour))
	out, err = runCLI(t, "--server", ts.url, "paused")
	if err != nil {
		t.Fatalf("paused error: %v", err)
	}
	if !strings.Contains(out, "c1") || !strings.Contains(out, "1 hour ago") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestTickCommand(t *testing.T) {
	ts := startTestServer(t)
	ts.store.Pause(context.Background(), model.InstanceRef{Name: "Cleanup", InstanceID: "c1"}, time.Now())

	out, err := runCLI(t, "--server", ts.url, "tick")
	if err != nil {
		t.Fatalf("tick error: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "Action: resume") || !strings.Contains(out, "(Cleanup, c1)") {
		t.Errorf("unexpected tick output: %s", out)
	}
	// c1 is not a live instance, so its resume signal fails.
	if !strings.Contains(out, "Signal failures: 1") {
		t.Errorf("expected signal failure in output: %s", out)
	}
}

func TestInvalidOutputFlag(t *testing.T) {
	ts := startTestServer(t)
	if _, err := runCLI(t, "--server", ts.url, "-o", "xml", "paused"); err == nil {
		t.Error("expected error for unsupported output format")
	}
}
