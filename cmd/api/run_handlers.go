package main

import (
	"errors"
	"net/http"
	"strings"

	"promptpipe/internal/engine"
	"promptpipe/internal/pipeline"
	"promptpipe/internal/store"
)

// handleStartRun kicks off a run and returns immediately; execution
// continues in the background and can be followed via polling or the
// websocket feed.
func (s *apiServer) handleStartRun(w http.ResponseWriter, r *http.Request) {
	pipelineID := strings.TrimSpace(r.PathValue("id"))
	if pipelineID == "" {
		writeError(w, http.StatusBadRequest, "pipeline id is required")
		return
	}

	runID, err := s.coordinator.Start(r.Context(), pipelineID)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusNotFound, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"runId":  runID,
		"status": string(pipeline.RunStatusRunning),
	})
}

func (s *apiServer) handlePollRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("id"))
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	run, results, err := s.coordinator.Poll(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run "+runID+" not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []pipeline.Result{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":     run,
		"results": results,
	})
}
