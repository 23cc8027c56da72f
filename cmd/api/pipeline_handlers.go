package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"promptpipe/internal/pipeline"
	"promptpipe/internal/store"
)

func (s *apiServer) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := s.store.ListPipelines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pipelines == nil {
		pipelines = []pipeline.Pipeline{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pipelines": pipelines})
}

func (s *apiServer) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	p, err := s.store.GetPipeline(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "pipeline "+id+" not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleSavePipeline is a thin passthrough to the store so a fresh
// deployment (or the in-memory store) can be seeded over HTTP.
func (s *apiServer) handleSavePipeline(w http.ResponseWriter, r *http.Request) {
	var p pipeline.Pipeline
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(p.ID) == "" {
		writeError(w, http.StatusBadRequest, "pipeline id is required")
		return
	}
	if err := s.store.SavePipeline(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}
