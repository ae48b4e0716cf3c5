// Package config holds the server, store, scheduler and preemption settings.
// Configuration is loaded once at startup and treated as read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/me/dicomfn/pkg/model"
)

// Config is the full process configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" yaml:"scheduler"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
	Preemption PreemptionConfig `mapstructure:"preemption" yaml:"preemption"`
	Workloads  WorkloadsConfig  `mapstructure:"workloads" yaml:"workloads"`
}

// ServerConfig holds configuration for the admin HTTP server.
type ServerConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`             // Listen address (default ":8080")
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`   // debug, info, warn, error
	LogFormat string `mapstructure:"log_format" yaml:"log_format"` // text, json
}

// Store backends.
const (
	StoreBackendMemory = "memory"
	StoreBackendSQLite = "sqlite"
)

// StoreConfig selects the preemption store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Path is the SQLite database path (default ~/.dicomfn/preemption.db, ":memory:" for testing).
	Path string `mapstructure:"path" yaml:"path"`
}

// SchedulerConfig controls the tick source of the preemptive scheduler.
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	PageSize int           `mapstructure:"page_size" yaml:"page_size"`
}

// TracingConfig enables the stdout OpenTelemetry exporter.
type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Output  string `mapstructure:"output" yaml:"output"` // empty means stdout
}

// PreemptionConfig classifies orchestrations and tunes the scheduler.
type PreemptionConfig struct {
	PauseEventName       string                     `mapstructure:"pause_event_name" yaml:"pause_event_name"`
	ResumeEventName      string                     `mapstructure:"resume_event_name" yaml:"resume_event_name"`
	HighPriority         []string                   `mapstructure:"high_priority" yaml:"high_priority"`
	LowPriority          []string                   `mapstructure:"low_priority" yaml:"low_priority"`
	PreemptivePreference model.PreemptivePreference `mapstructure:"preemptive_preference" yaml:"preemptive_preference"`
	// Step is the maximum number of instances paused or resumed per tick.
	Step     int           `mapstructure:"step" yaml:"step"`
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	// MaxParallelSignals bounds concurrent event deliveries within one tick.
	MaxParallelSignals int `mapstructure:"max_parallel_signals" yaml:"max_parallel_signals"`
	// PauseCheckTimeout is how long a pause point waits for a pause signal.
	PauseCheckTimeout time.Duration `mapstructure:"pause_check_timeout" yaml:"pause_check_timeout"`
}

// WorkloadConfig tunes one built-in orchestration.
type WorkloadConfig struct {
	Units    int           `mapstructure:"units" yaml:"units"`       // units of work per instance
	Interval time.Duration `mapstructure:"interval" yaml:"interval"` // durable timer between units
	Work     time.Duration `mapstructure:"work" yaml:"work"`         // simulated activity duration
}

// WorkloadsConfig holds the built-in orchestrations.
type WorkloadsConfig struct {
	Reindex WorkloadConfig `mapstructure:"reindex" yaml:"reindex"`
	Cleanup WorkloadConfig `mapstructure:"cleanup" yaml:"cleanup"`
}

const (
	MinMaxDelay = time.Minute
	MaxMaxDelay = 24 * time.Hour
)

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Store: StoreConfig{Backend: StoreBackendMemory},
		Scheduler: SchedulerConfig{
			Interval: 10 * time.Second,
			PageSize: model.DefaultPageSize,
		},
		Preemption: PreemptionConfig{
			PauseEventName:       "PauseOrchestration",
			ResumeEventName:      "ResumeOrchestration",
			HighPriority:         []string{"Reindex"},
			LowPriority:          []string{"Cleanup"},
			PreemptivePreference: model.PreferOldest,
			Step:                 1,
			MaxDelay:             15 * time.Minute,
			MaxParallelSignals:   16,
			PauseCheckTimeout:    time.Second,
		},
		Workloads: WorkloadsConfig{
			Reindex: WorkloadConfig{Units: 10, Interval: time.Minute},
			Cleanup: WorkloadConfig{Units: 10, Interval: 3 * time.Minute},
		},
	}
}

// Validate returns every invalid setting joined into one error, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	switch c.Store.Backend {
	case StoreBackendMemory, StoreBackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.backend %q must be %q or %q", c.Store.Backend, StoreBackendMemory, StoreBackendSQLite))
	}
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval must be > 0"))
	}
	if c.Scheduler.PageSize < 0 {
		errs = append(errs, fmt.Errorf("scheduler.page_size must be >= 0"))
	}
	if err := c.Preemption.Validate(); err != nil {
		errs = append(errs, err)
	}
	for name, w := range map[string]WorkloadConfig{"reindex": c.Workloads.Reindex, "cleanup": c.Workloads.Cleanup} {
		if w.Units < 0 || w.Interval < 0 || w.Work < 0 {
			errs = append(errs, fmt.Errorf("workloads.%s values must not be negative", name))
		}
	}
	return errors.Join(errs...)
}

// Validate checks the preemption settings.
func (p *PreemptionConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(p.PauseEventName) == "" {
		errs = append(errs, errors.New("preemption.pause_event_name is required"))
	}
	if strings.TrimSpace(p.ResumeEventName) == "" {
		errs = append(errs, errors.New("preemption.resume_event_name is required"))
	}
	if len(p.HighPriority) == 0 {
		errs = append(errs, errors.New("preemption.high_priority is required"))
	}
	if len(p.LowPriority) == 0 {
		errs = append(errs, errors.New("preemption.low_priority is required"))
	}
	high := make(map[string]bool, len(p.HighPriority))
	for _, name := range p.HighPriority {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("preemption.high_priority contains an empty name"))
			continue
		}
		high[strings.ToLower(name)] = true
	}
	for _, name := range p.LowPriority {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("preemption.low_priority contains an empty name"))
			continue
		}
		if high[strings.ToLower(name)] {
			errs = append(errs, fmt.Errorf("orchestration %q is both high and low priority", name))
		}
	}
	if _, ok := model.ParsePreemptivePreference(string(p.PreemptivePreference)); !ok {
		errs = append(errs, fmt.Errorf("preemption.preemptive_preference %q is not supported", p.PreemptivePreference))
	}
	if p.Step < 1 {
		errs = append(errs, fmt.Errorf("preemption.step must be >= 1, got %d", p.Step))
	}
	if p.MaxDelay < MinMaxDelay || p.MaxDelay > MaxMaxDelay {
		errs = append(errs, fmt.Errorf("preemption.max_delay %s must be between %s and %s", p.MaxDelay, MinMaxDelay, MaxMaxDelay))
	}
	if p.MaxParallelSignals < 1 {
		errs = append(errs, fmt.Errorf("preemption.max_parallel_signals must be >= 1"))
	}
	if p.PauseCheckTimeout <= 0 {
		errs = append(errs, fmt.Errorf("preemption.pause_check_timeout must be > 0"))
	}
	return errors.Join(errs...)
}

// Classify returns the priority of an orchestration name. Names are compared
// case-insensitively; names in neither list are PriorityNone.
func (p *PreemptionConfig) Classify(name string) model.Priority {
	for _, n := range p.LowPriority {
		if strings.EqualFold(n, name) {
			return model.PriorityLow
		}
	}
	for _, n := range p.HighPriority {
		if strings.EqualFold(n, name) {
			return model.PriorityHigh
		}
	}
	return model.PriorityNone
}

// Preference returns the normalised pause-candidate preference.
func (p *PreemptionConfig) Preference() model.PreemptivePreference {
	pref, ok := model.ParsePreemptivePreference(string(p.PreemptivePreference))
	if !ok {
		return model.PreferOldest
	}
	return pref
}
