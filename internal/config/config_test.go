package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/dicomfn/pkg/model"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestPreemptionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *PreemptionConfig)
		wantErr string
	}{
		{"missing pause event", func(p *PreemptionConfig) { p.PauseEventName = "" }, "pause_event_name is required"},
		{"missing resume event", func(p *PreemptionConfig) { p.ResumeEventName = " " }, "resume_event_name is required"},
		{"empty high", func(p *PreemptionConfig) { p.HighPriority = nil }, "high_priority is required"},
		{"empty low", func(p *PreemptionConfig) { p.LowPriority = nil }, "low_priority is required"},
		{"overlap ignores case", func(p *PreemptionConfig) { p.LowPriority = []string{"REINDEX"} }, "both high and low priority"},
		{"zero step", func(p *PreemptionConfig) { p.Step = 0 }, "step must be >= 1"},
		{"delay too short", func(p *PreemptionConfig) { p.MaxDelay = 30 * time.Second }, "max_delay"},
		{"delay too long", func(p *PreemptionConfig) { p.MaxDelay = 25 * time.Hour }, "max_delay"},
		{"bad preference", func(p *PreemptionConfig) { p.PreemptivePreference = "random" }, "preemptive_preference"},
		{"no signal slots", func(p *PreemptionConfig) { p.MaxParallelSignals = 0 }, "max_parallel_signals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default().Preemption
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPreemptionConfig_ValidateBoundaries(t *testing.T) {
	p := Default().Preemption
	p.MaxDelay = time.Minute
	assert.NoError(t, p.Validate())
	p.MaxDelay = 24 * time.Hour
	assert.NoError(t, p.Validate())
}

func TestConfig_ValidateAggregates(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "postgres"
	cfg.Preemption.Step = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
	assert.Contains(t, err.Error(), "step must be >= 1")
}

func TestPreemptionConfig_Classify(t *testing.T) {
	p := Default().Preemption
	assert.Equal(t, model.PriorityHigh, p.Classify("reindex"))
	assert.Equal(t, model.PriorityLow, p.Classify("CLEANUP"))
	assert.Equal(t, model.PriorityNone, p.Classify("Export"))
}

func TestLoader_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := NewLoader().WithEnvPrefix("DICOMFN_TEST_DEFAULTS").Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoader_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dicomfn.yaml")
	content := `
store:
  backend: sqlite
  path: ":memory:"
scheduler:
  interval: 30s
preemption:
  high_priority: [Reindex, Export]
  low_priority: [Cleanup]
  step: 3
  max_delay: 1h
  preemptive_preference: newest
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("DICOMFN_PREEMPTION_STEP", "5")

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, path, loader.ConfigFile())
	assert.Equal(t, StoreBackendSQLite, cfg.Store.Backend)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, []string{"Reindex", "Export"}, cfg.Preemption.HighPriority)
	assert.Equal(t, 5, cfg.Preemption.Step)
	assert.Equal(t, time.Hour, cfg.Preemption.MaxDelay)
	assert.Equal(t, model.PreferNewest, cfg.Preemption.Preference())
	assert.Equal(t, "PauseOrchestration", cfg.Preemption.PauseEventName)
}

func TestLoader_InvalidFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dicomfn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("preemption:\n  step: 0\n"), 0o644))

	_, err := NewLoader().WithConfigFile(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoader_MissingExplicitFile(t *testing.T) {
	_, err := NewLoader().WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.Error(t, err)
}
