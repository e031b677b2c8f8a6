package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dependify/modernize/internal/db"
	"github.com/dependify/modernize/internal/event"
	"github.com/dependify/modernize/internal/pipeline"
)

func testServer(t *testing.T) (*Server, *pipeline.Store, *event.Publisher) {
	t.Helper()

	store := pipeline.NewStore(t.TempDir())
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatal(err)
	}

	events := event.NewPublisher(database)
	return NewServer(store, database, events, 0), store, events
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := get(t, srv.Routes(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestListBatches(t *testing.T) {
	srv, store, _ := testServer(t)

	if _, err := store.Create("b1", "owner/repo", 3); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create("b2", "owner/other", 1); err != nil {
		t.Fatal(err)
	}
	if err := store.Update("b2", func(bs *pipeline.BatchState) { bs.Status = "completed" }); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv.Routes(), "/api/batches")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var batches []pipeline.BatchState
	if err := json.Unmarshal(rec.Body.Bytes(), &batches); err != nil {
		t.Fatal(err)
	}
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}

	rec = get(t, srv.Routes(), "/api/batches?status=completed")
	batches = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &batches); err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || batches[0].ID != "b2" {
		t.Errorf("filtered batches = %+v, want [b2]", batches)
	}
}

func TestListBatchesEmpty(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := get(t, srv.Routes(), "/api/batches")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty listing = %s, want []", body)
	}
}

func TestBatchDetail(t *testing.T) {
	srv, store, _ := testServer(t)

	if _, err := store.Create("b1", "owner/repo", 2); err != nil {
		t.Fatal(err)
	}
	result := &pipeline.BatchResult{BatchID: "b1", RepoRef: "owner/repo"}
	if err := store.SaveResult("b1", result); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv.Routes(), "/api/batches/b1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var detail batchDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatal(err)
	}
	if detail.State == nil || detail.State.ID != "b1" {
		t.Errorf("state = %+v", detail.State)
	}
	if detail.Result == nil || detail.Result.BatchID != "b1" {
		t.Errorf("result = %+v", detail.Result)
	}

	rec = get(t, srv.Routes(), "/api/batches/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing batch status = %d, want 404", rec.Code)
	}
}

func TestArtifactEvents(t *testing.T) {
	srv, _, events := testServer(t)

	for _, stage := range []string{event.StageReading, event.StageWriting, event.StageAccepted} {
		if err := events.Emit(event.Event{BatchID: "b1", ArtifactID: "a.js", Stage: stage}); err != nil {
			t.Fatal(err)
		}
	}
	if err := events.Emit(event.Event{BatchID: "b1", ArtifactID: "b.js", Stage: event.StageReading}); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv.Routes(), "/api/batches/b1/artifacts/a.js/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var stream []event.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &stream); err != nil {
		t.Fatal(err)
	}
	if len(stream) != 3 {
		t.Fatalf("got %d events, want 3", len(stream))
	}
	if stream[0].Stage != event.StageReading || stream[2].Stage != event.StageAccepted {
		t.Errorf("stream order = %+v", stream)
	}
}

func TestEventStreamReplaysAndFinishes(t *testing.T) {
	srv, store, events := testServer(t)

	if _, err := store.Create("b1", "owner/repo", 1); err != nil {
		t.Fatal(err)
	}
	if err := events.Emit(event.Event{BatchID: "b1", ArtifactID: "a.js", Stage: event.StageReading}); err != nil {
		t.Fatal(err)
	}
	if err := events.Emit(event.Event{BatchID: "b1", ArtifactID: "a.js", Stage: event.StageAccepted}); err != nil {
		t.Fatal(err)
	}
	// Terminal state makes the stream finish instead of tailing forever.
	if err := store.Update("b1", func(bs *pipeline.BatchState) { bs.Status = "completed" }); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv.Routes(), "/api/events/stream?batch=b1")
	body := rec.Body.String()

	if !strings.Contains(body, "READING") || !strings.Contains(body, "ACCEPTED") {
		t.Errorf("stream missing events:\n%s", body)
	}
	if !strings.Contains(body, "event: done\ndata: completed") {
		t.Errorf("stream missing done event:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

func TestEventStreamAfterParam(t *testing.T) {
	srv, store, events := testServer(t)

	if _, err := store.Create("b1", "owner/repo", 1); err != nil {
		t.Fatal(err)
	}
	if err := events.Emit(event.Event{BatchID: "b1", ArtifactID: "a.js", Stage: event.StageReading}); err != nil {
		t.Fatal(err)
	}
	if err := events.Emit(event.Event{BatchID: "b1", ArtifactID: "a.js", Stage: event.StageAccepted}); err != nil {
		t.Fatal(err)
	}
	if err := store.Update("b1", func(bs *pipeline.BatchState) { bs.Status = "completed" }); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv.Routes(), "/api/events/stream?batch=b1&after=1")
	body := rec.Body.String()
	if strings.Contains(body, "READING") {
		t.Errorf("stream replayed already-seen event:\n%s", body)
	}
	if !strings.Contains(body, "ACCEPTED") {
		t.Errorf("stream missing newer event:\n%s", body)
	}

	rec = get(t, srv.Routes(), "/api/events/stream")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing batch param status = %d, want 400", rec.Code)
	}
}
