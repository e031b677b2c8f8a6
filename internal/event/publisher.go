// Package event implements the progress-event publisher: a durable,
// ordered, append-only log with in-process subscription fan-out.
//
// Durability and ordering come from the SQLite log (autoincrement ids);
// subscribers get a best-effort live feed and are expected to Replay from
// the log if they fall behind. Emission is at-least-once: a consumer that
// sees the same event twice after a crash must treat events idempotently.
package event

import (
	"fmt"
	"sync"
	"time"

	"github.com/dependify/modernize/internal/db"
)

// Stage values for progress events. The first four mirror the per-artifact
// state machine; ACCEPTED and EXHAUSTED are artifact-terminal; the PUBLISH
// stages are batch-level events carrying an empty artifact id.
const (
	StageReading       = "READING"
	StageWriting       = "WRITING"
	StageVerifying     = "VERIFYING"
	StageFixing        = "FIXING"
	StageAccepted      = "ACCEPTED"
	StageExhausted     = "EXHAUSTED"
	StagePublished     = "PUBLISHED"
	StagePublishFailed = "PUBLISH_FAILED"
)

// Event is one progress record. Within a single artifact's stream the order
// of events is causal; across artifacts events interleave arbitrarily.
type Event struct {
	ID         int64     `json:"id"`
	BatchID    string    `json:"batch_id"`
	ArtifactID string    `json:"artifact_id"`
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	Attempt    int       `json:"attempt"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher appends events to the durable log and fans them out to live
// subscribers. Safe for concurrent writers.
type Publisher struct {
	db *db.DB

	mu      sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewPublisher creates a Publisher backed by the given database.
func NewPublisher(database *db.DB) *Publisher {
	return &Publisher{
		db:   database,
		subs: make(map[int]chan Event),
	}
}

// Emit durably appends the event, then delivers it to live subscribers.
// The append happens before any fan-out so a crash can duplicate delivery
// but never lose a durably emitted event.
func (p *Publisher) Emit(e Event) error {
	id, err := p.db.AppendEvent(e.BatchID, e.ArtifactID, e.Stage, e.Message, e.Attempt)
	if err != nil {
		return fmt.Errorf("emit %s event for %s: %w", e.Stage, e.ArtifactID, err)
	}
	e.ID = id
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is not keeping up; it can Replay from the log.
		}
	}
	return nil
}

// Subscribe registers a live event feed. The returned cancel func must be
// called to release the subscription; the channel is closed on cancel.
func (p *Publisher) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Replay returns all durably logged events for a batch with id greater than
// afterID, in emission order.
func (p *Publisher) Replay(batchID string, afterID int64) ([]Event, error) {
	rows, err := p.db.EventsSince(batchID, afterID, 0)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, fromRow(r))
	}
	return events, nil
}

// ArtifactStream returns one artifact's full event stream in emission order.
func (p *Publisher) ArtifactStream(batchID, artifactID string) ([]Event, error) {
	rows, err := p.db.ArtifactEvents(batchID, artifactID)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, fromRow(r))
	}
	return events, nil
}

// fromRow converts a stored row to an Event.
func fromRow(r db.BatchEvent) Event {
	ts, _ := time.Parse("2006-01-02 15:04:05", r.Timestamp)
	return Event{
		ID:         r.ID,
		BatchID:    r.BatchID,
		ArtifactID: r.ArtifactID,
		Stage:      r.Stage,
		Message:    r.Message,
		Attempt:    r.Attempt,
		Timestamp:  ts,
	}
}
