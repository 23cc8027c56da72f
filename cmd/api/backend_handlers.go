package main

import (
	"net/http"
	"sync"

	"promptpipe/internal/llm"
	"promptpipe/internal/registry"
)

type backendView struct {
	registry.Backend
	Status llm.BackendStatus `json:"status"`
}

// handleListBackends reports the registry plus a short-timeout health
// probe per backend. Probes run concurrently; a dead backend costs at
// most the probe timeout, not one timeout per backend.
func (s *apiServer) handleListBackends(w http.ResponseWriter, r *http.Request) {
	backends := s.backends.All()
	views := make([]backendView, len(backends))

	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func(i int, b registry.Backend) {
			defer wg.Done()
			views[i] = backendView{Backend: b, Status: s.gateway.Probe(r.Context(), b.Address)}
		}(i, b)
	}
	wg.Wait()

	writeJSON(w, http.StatusOK, map[string]any{"backends": views})
}
