package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from defaults, a YAML file and the environment.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "DICOMFN",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads configuration from all sources and validates it.
// Precedence (highest to lowest):
// 1. Values set on the viper instance (flags)
// 2. Environment variables (DICOMFN_*)
// 3. Config file (explicit, or dicomfn.yaml in . or ~/.config/dicomfn)
// 4. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("dicomfn")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "dicomfn"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) setDefaults() {
	d := Default()

	l.v.SetDefault("server.addr", d.Server.Addr)
	l.v.SetDefault("server.log_level", d.Server.LogLevel)
	l.v.SetDefault("server.log_format", d.Server.LogFormat)

	l.v.SetDefault("store.backend", d.Store.Backend)
	l.v.SetDefault("store.path", d.Store.Path)

	l.v.SetDefault("scheduler.interval", d.Scheduler.Interval)
	l.v.SetDefault("scheduler.page_size", d.Scheduler.PageSize)

	l.v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	l.v.SetDefault("tracing.output", d.Tracing.Output)

	l.v.SetDefault("preemption.pause_event_name", d.Preemption.PauseEventName)
	l.v.SetDefault("preemption.resume_event_name", d.Preemption.ResumeEventName)
	l.v.SetDefault("preemption.high_priority", d.Preemption.HighPriority)
	l.v.SetDefault("preemption.low_priority", d.Preemption.LowPriority)
	l.v.SetDefault("preemption.preemptive_preference", string(d.Preemption.PreemptivePreference))
	l.v.SetDefault("preemption.step", d.Preemption.Step)
	l.v.SetDefault("preemption.max_delay", d.Preemption.MaxDelay)
	l.v.SetDefault("preemption.max_parallel_signals", d.Preemption.MaxParallelSignals)
	l.v.SetDefault("preemption.pause_check_timeout", d.Preemption.PauseCheckTimeout)

	l.v.SetDefault("workloads.reindex.units", d.Workloads.Reindex.Units)
	l.v.SetDefault("workloads.reindex.interval", d.Workloads.Reindex.Interval)
	l.v.SetDefault("workloads.reindex.work", d.Workloads.Reindex.Work)
	l.v.SetDefault("workloads.cleanup.units", d.Workloads.Cleanup.Units)
	l.v.SetDefault("workloads.cleanup.interval", d.Workloads.Cleanup.Interval)
	l.v.SetDefault("workloads.cleanup.work", d.Workloads.Cleanup.Work)
}
