package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// handleEventStream serves a Server-Sent Events feed of batch progress.
// Query params: batch (required), after (last event id already seen, for
// reconnect catch-up). The stream tails the durable log rather than the
// in-process fan-out so it survives missing a live delivery and can serve
// events from a batch run by another process.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("batch")
	if batchID == "" {
		writeError(w, http.StatusBadRequest, "missing batch param")
		return
	}

	afterID := int64(0)
	if after := r.URL.Query().Get("after"); after != "" {
		id, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after param")
			return
		}
		afterID = id
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering if present

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		events, err := s.events.Replay(batchID, afterID)
		if err != nil {
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
			flusher.Flush()
			return
		}

		for _, e := range events {
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", e.ID, data)
			afterID = e.ID
		}
		if len(events) > 0 {
			flusher.Flush()
		}

		// A terminal batch state means no more events will arrive.
		if state, err := s.store.Get(batchID); err == nil && isTerminal(state.Status) {
			fmt.Fprintf(w, "event: done\ndata: %s\n\n", state.Status)
			flusher.Flush()
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
		}
	}
}

func isTerminal(status string) bool {
	switch status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}
