package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds continuation metadata for list endpoints.
type Pagination struct {
	PageSize          int    `json:"page_size"`
	ContinuationToken string `json:"continuation_token,omitempty"`
	HasMore           bool   `json:"has_more"`
}

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// ClampPageSize enforces page size limits (max 1000, default 100).
func ClampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
