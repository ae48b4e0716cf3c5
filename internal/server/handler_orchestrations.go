package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/dicomfn/pkg/model"
)

// maxBodyBytes bounds orchestration inputs and event payloads.
const maxBodyBytes = 1 << 20

func (s *Server) handleListOrchestrations(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	q, fieldErrs := parseStatusQuery(r)
	if len(fieldErrs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid query", fieldErrs...))
		return
	}

	page, err := s.client.ListInstances(r.Context(), q)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}

	respondList(w, reqID, page.Items, &model.Pagination{
		PageSize:          model.ClampPageSize(q.PageSize),
		ContinuationToken: page.ContinuationToken,
		HasMore:           page.ContinuationToken != "",
	})
}

func parseStatusQuery(r *http.Request) (model.StatusQuery, []model.FieldError) {
	var (
		q    model.StatusQuery
		errs []model.FieldError
	)
	v := r.URL.Query()

	if raw := v.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, ok := model.ParseRuntimeStatus(part)
			if !ok {
				errs = append(errs, model.FieldError{Field: "status", Message: "unknown runtime status " + strconv.Quote(part)})
				continue
			}
			q.RuntimeStatus = append(q.RuntimeStatus, st)
		}
	}
	if raw := v.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, model.FieldError{Field: "page_size", Message: "must be a non-negative integer"})
		}
		q.PageSize = n
	}
	for _, f := range []struct {
		name string
		dst  *time.Time
	}{{"created_from", &q.CreatedFrom}, {"created_to", &q.CreatedTo}} {
		raw := v.Get(f.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			errs = append(errs, model.FieldError{Field: f.name, Message: "must be an RFC 3339 timestamp"})
			continue
		}
		*f.dst = t
	}
	q.ContinuationToken = v.Get("continuation_token")
	return q, errs
}

func (s *Server) handleGetOrchestration(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	st, err := s.client.Status(r.Context(), id)
	if err != nil {
		respondFailure(w, reqID, err)
		return
	}
	respondOK(w, reqID, st)
}

type startResponse struct {
	Name       string `json:"name"`
	InstanceID string `json:"instance_id"`
}

func (s *Server) handleStartOrchestration(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "id")

	input, ok := readJSONBody(w, r, reqID)
	if !ok {
		return
	}

	id, err := s.client.StartNew(r.Context(), name, input)
	if err != nil {
		respondFailure(w, reqID, err)
		return
	}
	st, err := s.client.Status(r.Context(), id)
	if err != nil {
		respondFailure(w, reqID, err)
		return
	}
	respondCreated(w, reqID, startResponse{Name: st.Name, InstanceID: id})
}

type raiseResponse struct {
	InstanceID string `json:"instance_id"`
	Event      string `json:"event"`
}

func (s *Server) handleRaiseEvent(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	event := chi.URLParam(r, "event")

	payload, ok := readJSONBody(w, r, reqID)
	if !ok {
		return
	}

	if err := s.client.RaiseEvent(r.Context(), id, event, payload); err != nil {
		respondFailure(w, reqID, err)
		return
	}
	s.logger.Info("event raised", "instance_id", id, "event", event)
	respondAccepted(w, reqID, raiseResponse{InstanceID: id, Event: event})
}

// readJSONBody returns the request body as raw JSON, or nil when the body is
// empty. It writes a validation error and returns false for malformed JSON.
func readJSONBody(w http.ResponseWriter, r *http.Request, reqID string) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("failed to read request body"))
		return nil, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, true
	}
	if !json.Valid(body) {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("request body is not valid JSON"))
		return nil, false
	}
	return json.RawMessage(body), true
}
