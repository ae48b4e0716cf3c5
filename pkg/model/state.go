package model

import "strings"

// RuntimeStatus represents the lifecycle state of an orchestration instance.
type RuntimeStatus string

const (
	RuntimeStatusPending    RuntimeStatus = "PENDING"
	RuntimeStatusRunning    RuntimeStatus = "RUNNING"
	RuntimeStatusCompleted  RuntimeStatus = "COMPLETED"
	RuntimeStatusFailed     RuntimeStatus = "FAILED"
	RuntimeStatusTerminated RuntimeStatus = "TERMINATED"
)

// String returns the string representation of the runtime status.
func (s RuntimeStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the instance will never run again.
func (s RuntimeStatus) IsTerminal() bool {
	switch s {
	case RuntimeStatusCompleted, RuntimeStatusFailed, RuntimeStatusTerminated:
		return true
	}
	return false
}

// IsActive returns true for instances the preemptive scheduler looks at.
func (s RuntimeStatus) IsActive() bool {
	return s == RuntimeStatusPending || s == RuntimeStatusRunning
}

// ValidRuntimeTransitions defines the allowed status transitions for orchestration instances.
var ValidRuntimeTransitions = map[RuntimeStatus][]RuntimeStatus{
	RuntimeStatusPending: {RuntimeStatusRunning, RuntimeStatusTerminated},
	RuntimeStatusRunning: {RuntimeStatusCompleted, RuntimeStatusFailed, RuntimeStatusTerminated},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s RuntimeStatus) CanTransitionTo(next RuntimeStatus) bool {
	for _, allowed := range ValidRuntimeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseRuntimeStatus converts a case-insensitive name into a RuntimeStatus.
func ParseRuntimeStatus(s string) (RuntimeStatus, bool) {
	switch RuntimeStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case RuntimeStatusPending:
		return RuntimeStatusPending, true
	case RuntimeStatusRunning:
		return RuntimeStatusRunning, true
	case RuntimeStatusCompleted:
		return RuntimeStatusCompleted, true
	case RuntimeStatusFailed:
		return RuntimeStatusFailed, true
	case RuntimeStatusTerminated:
		return RuntimeStatusTerminated, true
	}
	return "", false
}
