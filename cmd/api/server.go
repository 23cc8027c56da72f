package main

import (
	"encoding/json"
	"log"
	"net/http"

	"promptpipe/internal/engine"
	"promptpipe/internal/llm"
	"promptpipe/internal/registry"
	"promptpipe/internal/store"
)

type apiServer struct {
	store       store.Store
	coordinator *engine.Coordinator
	gateway     *llm.Gateway
	backends    *registry.Registry
}

func (s *apiServer) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/pipelines", s.handleListPipelines)
	mux.HandleFunc("POST /api/pipelines", s.handleSavePipeline)
	mux.HandleFunc("GET /api/pipelines/{id}", s.handleGetPipeline)
	mux.HandleFunc("POST /api/pipelines/{id}/runs", s.handleStartRun)
	mux.HandleFunc("GET /api/runs/{id}", s.handlePollRun)
	mux.HandleFunc("GET /api/backends", s.handleListBackends)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
