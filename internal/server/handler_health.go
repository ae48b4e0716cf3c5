package server

import (
	"net/http"
	"runtime"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Scheduler string `json:"scheduler"`
	Store     string `json:"store"`
	Paused    int    `json:"paused"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Scheduler: "not_configured",
		Store:     "ok",
	}
	if s.scheduler != nil {
		resp.Scheduler = "configured"
	}
	paused, err := s.store.ListPaused(r.Context())
	if err != nil {
		s.logger.Error("health: store unavailable", "error", err)
		resp.Status = "degraded"
		resp.Store = "unavailable"
	} else {
		resp.Paused = len(paused)
	}
	respondOK(w, reqID, resp)
}
