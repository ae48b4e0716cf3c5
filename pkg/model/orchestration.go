package model

import (
	"fmt"
	"strings"
	"time"
)

// InstanceRef identifies one orchestration instance by its orchestrator name and instance id.
// It is a comparable value and is used directly as a map key.
type InstanceRef struct {
	Name       string `json:"name" yaml:"name"`
	InstanceID string `json:"instance_id" yaml:"instance_id"`
}

// String renders the ref as "(name, id)".
func (r InstanceRef) String() string {
	return fmt.Sprintf("(%s, %s)", r.Name, r.InstanceID)
}

// Validate rejects refs with an empty name or instance id.
func (r InstanceRef) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("invalid orchestration name %q", r.Name)
	}
	if strings.TrimSpace(r.InstanceID) == "" {
		return fmt.Errorf("invalid instance id %q", r.InstanceID)
	}
	return nil
}

// OrchestrationStatus is a point-in-time view of one orchestration instance.
type OrchestrationStatus struct {
	Name            string        `json:"name" yaml:"name"`
	InstanceID      string        `json:"instance_id" yaml:"instance_id"`
	RuntimeStatus   RuntimeStatus `json:"runtime_status" yaml:"runtime_status"`
	CreatedTime     time.Time     `json:"created_time" yaml:"created_time"`
	LastUpdatedTime time.Time     `json:"last_updated_time" yaml:"last_updated_time"`
	Output          any           `json:"output,omitempty" yaml:"output,omitempty"`
	Error           string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Ref returns the identity of the instance.
func (s *OrchestrationStatus) Ref() InstanceRef {
	return InstanceRef{Name: s.Name, InstanceID: s.InstanceID}
}

// StatusQuery selects one page of orchestration instances.
type StatusQuery struct {
	// RuntimeStatus restricts results to the listed statuses. Empty means all.
	RuntimeStatus []RuntimeStatus
	// CreatedFrom and CreatedTo bound the creation time. Zero values are open.
	CreatedFrom time.Time
	CreatedTo   time.Time
	PageSize    int
	// ContinuationToken is the opaque cursor returned by the previous page.
	ContinuationToken string
}

// Matches reports whether st satisfies the status and creation-time filters.
func (q *StatusQuery) Matches(st *OrchestrationStatus) bool {
	if len(q.RuntimeStatus) > 0 {
		found := false
		for _, s := range q.RuntimeStatus {
			if s == st.RuntimeStatus {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !q.CreatedFrom.IsZero() && st.CreatedTime.Before(q.CreatedFrom) {
		return false
	}
	if !q.CreatedTo.IsZero() && st.CreatedTime.After(q.CreatedTo) {
		return false
	}
	return true
}

// StatusPage is one page of a paginated instance listing. An empty
// ContinuationToken means there are no further pages.
type StatusPage struct {
	Items             []OrchestrationStatus `json:"items" yaml:"items"`
	ContinuationToken string                `json:"continuation_token,omitempty" yaml:"continuation_token,omitempty"`
}
