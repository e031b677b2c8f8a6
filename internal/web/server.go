// Package web serves the read-only observer API: batch listings, per-batch
// detail, and a live progress stream. It exposes state; it never mutates a
// running batch.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dependify/modernize/internal/db"
	"github.com/dependify/modernize/internal/event"
	"github.com/dependify/modernize/internal/pipeline"
)

// Server is the read-only observer server.
type Server struct {
	store  *pipeline.Store
	db     *db.DB
	events *event.Publisher
	port   int
}

// NewServer creates a Server.
func NewServer(store *pipeline.Store, database *db.DB, events *event.Publisher, port int) *Server {
	return &Server{store: store, db: database, events: events, port: port}
}

// Routes returns the server's handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/batches", s.handleBatches)
	mux.HandleFunc("/api/batches/", s.handleBatchDetail)
	mux.HandleFunc("/api/events/stream", s.handleEventStream)
	return mux
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("observer listening on http://localhost:%d", s.port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
