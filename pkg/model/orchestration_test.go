package model

import (
	"testing"
	"time"
)

func TestInstanceRef_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ref     InstanceRef
		wantErr bool
	}{
		{"valid", InstanceRef{Name: "Cleanup", InstanceID: "a1"}, false},
		{"empty name", InstanceRef{InstanceID: "a1"}, true},
		{"blank name", InstanceRef{Name: "  ", InstanceID: "a1"}, true},
		{"empty id", InstanceRef{Name: "Cleanup"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.ref.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInstanceRef_ValueEquality(t *testing.T) {
	set := map[InstanceRef]struct{}{{Name: "Cleanup", InstanceID: "a1"}: {}}
	if _, ok := set[InstanceRef{Name: "Cleanup", InstanceID: "a1"}]; !ok {
		t.Error("equal refs must hit the same map key")
	}
	if _, ok := set[InstanceRef{Name: "cleanup", InstanceID: "a1"}]; ok {
		t.Error("refs compare by exact value")
	}
}

func TestStatusQuery_Matches(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := &OrchestrationStatus{Name: "Cleanup", InstanceID: "a1", RuntimeStatus: RuntimeStatusRunning, CreatedTime: t0}

	q := StatusQuery{RuntimeStatus: []RuntimeStatus{RuntimeStatusRunning, RuntimeStatusPending}}
	if !q.Matches(st) {
		t.Error("running instance should match running|pending")
	}
	q = StatusQuery{RuntimeStatus: []RuntimeStatus{RuntimeStatusCompleted}}
	if q.Matches(st) {
		t.Error("running instance should not match completed")
	}
	q = StatusQuery{CreatedFrom: t0.Add(time.Second)}
	if q.Matches(st) {
		t.Error("instance created before CreatedFrom should not match")
	}
	q = StatusQuery{CreatedTo: t0.Add(-time.Second)}
	if q.Matches(st) {
		t.Error("instance created after CreatedTo should not match")
	}
}

func TestClampPageSize(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultPageSize},
		{-1, DefaultPageSize},
		{5000, MaxPageSize},
		{10, 10},
	}
	for _, tt := range tests {
		if got := ClampPageSize(tt.in); got != tt.want {
			t.Errorf("ClampPageSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParsePreemptivePreference(t *testing.T) {
	if p, ok := ParsePreemptivePreference(""); !ok || p != PreferOldest {
		t.Errorf("empty preference = %q, %v", p, ok)
	}
	if p, ok := ParsePreemptivePreference("Newest"); !ok || p != PreferNewest {
		t.Errorf("Newest preference = %q, %v", p, ok)
	}
	if _, ok := ParsePreemptivePreference("random"); ok {
		t.Error("unknown preference should fail")
	}
}
