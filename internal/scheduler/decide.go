package scheduler

import (
	"sort"
	"time"

	"github.com/me/dicomfn/internal/config"
	"github.com/me/dicomfn/pkg/model"
)

// Action is the path a tick took.
type Action string

const (
	ActionNone   Action = "none"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
)

// Result reports what one tick decided and did.
type Result struct {
	Action Action `json:"action" yaml:"action"`
	// Instances are the refs newly paused or resumed by this tick.
	Instances []model.InstanceRef `json:"instances" yaml:"instances"`
	// Stalled is the high-priority instance that triggered a pause, if any.
	Stalled *model.OrchestrationStatus `json:"stalled,omitempty" yaml:"stalled,omitempty"`
	// Idle is how long Stalled had gone without progress.
	Idle           time.Duration `json:"idle" yaml:"idle"`
	SignalFailures int           `json:"signal_failures" yaml:"signal_failures"`
}

// Changed reports whether at least one instance was paused or resumed.
func (r Result) Changed() bool {
	return len(r.Instances) > 0
}

// snapshot is the classified view of the active instances at one instant.
type snapshot struct {
	// candidates are the low-priority instances in pause order.
	candidates []model.OrchestrationStatus
	// stalled is the high-priority instance with the longest idle time.
	stalled *model.OrchestrationStatus
	idle    time.Duration
}

// classify splits statuses into pause candidates and the most stalled
// high-priority instance. Instances in neither priority list are ignored.
// Only a strictly positive idle time counts as stalled, and among equal idle
// times the first one enumerated wins.
func classify(statuses []model.OrchestrationStatus, cfg *config.PreemptionConfig, now time.Time) snapshot {
	var s snapshot
	for i := range statuses {
		st := statuses[i]
		switch cfg.Classify(st.Name) {
		case model.PriorityLow:
			s.candidates = append(s.candidates, st)
		case model.PriorityHigh:
			if idle := now.Sub(st.LastUpdatedTime); idle > s.idle {
				s.stalled = &st
				s.idle = idle
			}
		}
	}

	newest := cfg.Preference() == model.PreferNewest
	sort.SliceStable(s.candidates, func(i, j int) bool {
		if newest {
			return s.candidates[i].CreatedTime.After(s.candidates[j].CreatedTime)
		}
		return s.candidates[i].CreatedTime.Before(s.candidates[j].CreatedTime)
	})
	return s
}
