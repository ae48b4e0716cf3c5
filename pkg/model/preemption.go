package model

import (
	"strings"
	"time"
)

// PauseRecord records when an orchestration instance was paused by the scheduler.
type PauseRecord struct {
	Ref      InstanceRef `json:"ref" yaml:"ref"`
	PausedAt time.Time   `json:"paused_at" yaml:"paused_at"`
}

// Priority is the preemption class of an orchestration.
type Priority string

const (
	PriorityNone Priority = ""
	PriorityHigh Priority = "high"
	PriorityLow  Priority = "low"
)

// PreemptivePreference selects the order in which low-priority instances are
// considered for pausing.
type PreemptivePreference string

const (
	// PreferOldest considers the earliest-created instances first.
	PreferOldest PreemptivePreference = "oldest"
	// PreferNewest considers the most recently created instances first.
	PreferNewest PreemptivePreference = "newest"
)

// ParsePreemptivePreference converts a case-insensitive name into a preference.
// The empty string maps to PreferOldest.
func ParsePreemptivePreference(s string) (PreemptivePreference, bool) {
	switch PreemptivePreference(strings.ToLower(strings.TrimSpace(s))) {
	case "", PreferOldest:
		return PreferOldest, true
	case PreferNewest:
		return PreferNewest, true
	}
	return "", false
}
