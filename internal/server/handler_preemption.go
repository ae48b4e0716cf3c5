package server

import (
	"net/http"

	"github.com/me/dicomfn/pkg/model"
)

func (s *Server) handleListPaused(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	recs, err := s.store.Records(r.Context())
	if err != nil {
		respondFailure(w, reqID, err)
		return
	}
	respondOK(w, reqID, recs)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	if s.scheduler == nil {
		respondError(w, reqID, http.StatusConflict, model.NewConflictError("scheduler is not configured"))
		return
	}
	res, err := s.scheduler.Run(r.Context())
	if err != nil {
		respondFailure(w, reqID, err)
		return
	}
	respondOK(w, reqID, res)
}
