package db

import (
	"database/sql"
	"fmt"
)

// BatchEvent is one row of the append-only progress log. Rows are ordered by
// the autoincrement id; per-artifact emission order is preserved because each
// artifact's events are inserted from a single goroutine.
type BatchEvent struct {
	ID         int64  `json:"id"`
	BatchID    string `json:"batch_id"`
	ArtifactID string `json:"artifact_id"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
	Attempt    int    `json:"attempt"`
	Timestamp  string `json:"timestamp"`
}

// AppendEvent inserts a progress event and returns its assigned id.
func (d *DB) AppendEvent(batchID, artifactID, stage, message string, attempt int) (int64, error) {
	res, err := d.conn.Exec(
		`INSERT INTO batch_events (batch_id, artifact_id, stage, message, attempt) VALUES (?, ?, ?, ?, ?)`,
		batchID, artifactID, stage, message, attempt,
	)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("event id: %w", err)
	}
	return id, nil
}

// EventsSince returns up to limit events for a batch with id greater than
// afterID, in insertion order. Pass limit <= 0 for no limit.
func (d *DB) EventsSince(batchID string, afterID int64, limit int) ([]BatchEvent, error) {
	query := `SELECT id, batch_id, artifact_id, stage, message, attempt, timestamp
	          FROM batch_events WHERE batch_id = ? AND id > ? ORDER BY id`
	args := []interface{}{batchID, afterID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ArtifactEvents returns the full event stream for one artifact in a batch,
// in emission order.
func (d *DB) ArtifactEvents(batchID, artifactID string) ([]BatchEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, batch_id, artifact_id, stage, message, attempt, timestamp
		 FROM batch_events WHERE batch_id = ? AND artifact_id = ? ORDER BY id`,
		batchID, artifactID,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifact events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// LatestEventID returns the highest event id recorded for a batch, or 0.
func (d *DB) LatestEventID(batchID string) (int64, error) {
	var id sql.NullInt64
	err := d.conn.QueryRow(`SELECT MAX(id) FROM batch_events WHERE batch_id = ?`, batchID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("latest event id: %w", err)
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

// LogPublishAttempt records one publish attempt for a batch.
func (d *DB) LogPublishAttempt(batchID string, attempt int, status string, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO publish_attempts (batch_id, attempt, status, detail) VALUES (?, ?, ?, ?)`,
		batchID, attempt, status, detail,
	)
	if err != nil {
		return fmt.Errorf("log publish attempt: %w", err)
	}
	return nil
}

// PublishAttempt is one recorded publish try.
type PublishAttempt struct {
	ID        int64  `json:"id"`
	BatchID   string `json:"batch_id"`
	Attempt   int    `json:"attempt"`
	Status    string `json:"status"`
	Detail    string `json:"detail"`
	Timestamp string `json:"timestamp"`
}

// PublishHistory returns all recorded publish attempts for a batch in order.
func (d *DB) PublishHistory(batchID string) ([]PublishAttempt, error) {
	rows, err := d.conn.Query(
		`SELECT id, batch_id, attempt, status, detail, timestamp
		 FROM publish_attempts WHERE batch_id = ? ORDER BY id`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query publish attempts: %w", err)
	}
	defer rows.Close()

	var attempts []PublishAttempt
	for rows.Next() {
		var a PublishAttempt
		var detail sql.NullString
		if err := rows.Scan(&a.ID, &a.BatchID, &a.Attempt, &a.Status, &detail, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan publish attempt: %w", err)
		}
		a.Detail = detail.String
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// scanEvents reads BatchEvent rows from a result set.
func scanEvents(rows *sql.Rows) ([]BatchEvent, error) {
	var events []BatchEvent
	for rows.Next() {
		var e BatchEvent
		var msg sql.NullString
		if err := rows.Scan(&e.ID, &e.BatchID, &e.ArtifactID, &e.Stage, &msg, &e.Attempt, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Message = msg.String
		events = append(events, e)
	}
	return events, rows.Err()
}
