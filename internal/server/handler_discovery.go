package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "dicomfn API",
		Version:     "v1",
		Description: "Preemptive scheduling of background orchestrations",
		Endpoints: []endpointInfo{
			{"/api/v1/orchestrations", []string{"GET"}, "List orchestration instances. Accepts status, created_from, created_to, page_size, continuation_token"},
			{"/api/v1/orchestrations/{name}", []string{"POST"}, "Start an instance of the named orchestration; the JSON body is its input"},
			{"/api/v1/orchestrations/{id}", []string{"GET"}, "Status of one instance"},
			{"/api/v1/orchestrations/{id}/events/{event}", []string{"POST"}, "Raise an external event; the JSON body is its payload"},
			{"/api/v1/preemption/paused", []string{"GET"}, "Instances currently paused by the scheduler, most recent first"},
			{"/api/v1/preemption/tick", []string{"POST"}, "Run one scheduler tick and return its result"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
