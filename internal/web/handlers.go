package web

import (
	"net/http"
	"strings"

	"github.com/dependify/modernize/internal/pipeline"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBatches lists batches, newest first. ?status= filters by lifecycle
// state.
func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	batches, err := s.store.List(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if batches == nil {
		batches = []pipeline.BatchState{}
	}
	writeJSON(w, http.StatusOK, batches)
}

// batchDetail is the full view of one batch: lifecycle state plus the final
// result once one exists.
type batchDetail struct {
	State  *pipeline.BatchState  `json:"state"`
	Result *pipeline.BatchResult `json:"result,omitempty"`
}

// handleBatchDetail serves /api/batches/{id} and
// /api/batches/{id}/artifacts/{artifactID}/events.
func (s *Server) handleBatchDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	parts := strings.SplitN(rest, "/", 3)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing batch id")
		return
	}

	if len(parts) == 3 && parts[1] == "artifacts" && strings.HasSuffix(parts[2], "/events") {
		artifactID := strings.TrimSuffix(parts[2], "/events")
		s.handleArtifactEvents(w, id, artifactID)
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	state, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	detail := batchDetail{State: state}
	if result, err := s.store.GetResult(id); err == nil {
		detail.Result = result
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleArtifactEvents serves one artifact's full event stream in emission
// order.
func (s *Server) handleArtifactEvents(w http.ResponseWriter, batchID, artifactID string) {
	events, err := s.events.ArtifactStream(batchID, artifactID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}
