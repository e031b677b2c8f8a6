// Package analytics computes aggregate statistics from the durable event
// log: how long each stage takes, how often artifacts are accepted, and how
// many attempts acceptance costs.
package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
}

// StageDuration holds duration stats for a stage.
type StageDuration struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg_seconds"`
	P50   float64 `json:"p50_seconds"`
	P95   float64 `json:"p95_seconds"`
}

// timestamp formats to try when parsing timestamps from the database
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

// QueryStageDurations returns average and percentile durations per stage.
// Each event is paired with the previous event for the same artifact; the
// gap is attributed to the later event's stage, so WRITING measures how long
// the transform took, VERIFYING the verification, and so on. Pass "" for
// batchID to aggregate across all batches.
func QueryStageDurations(database DB, batchID string) ([]StageDuration, error) {
	query := `
		SELECT e1.batch_id, e1.artifact_id, e1.stage, e1.timestamp as end_ts,
			(SELECT MAX(e2.timestamp) FROM batch_events e2
			 WHERE e2.batch_id = e1.batch_id
			 AND e2.artifact_id = e1.artifact_id
			 AND e2.id < e1.id) as start_ts
		FROM batch_events e1
		WHERE e1.artifact_id != ''
		AND e1.stage != 'READING'`

	args := []interface{}{}
	if batchID != "" {
		query += ` AND e1.batch_id = ?`
		args = append(args, batchID)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stage durations: %w", err)
	}
	defer rows.Close()

	stageDurations := make(map[string][]float64)
	for rows.Next() {
		var batch, artifact, stage, endTS string
		var startTS sql.NullString
		if err := rows.Scan(&batch, &artifact, &stage, &endTS, &startTS); err != nil {
			return nil, fmt.Errorf("scan stage duration: %w", err)
		}
		if !startTS.Valid {
			continue
		}
		start, err := parseTimestamp(startTS.String)
		if err != nil {
			continue
		}
		end, err := parseTimestamp(endTS)
		if err != nil {
			continue
		}
		seconds := end.Sub(start).Seconds()
		if seconds >= 0 {
			stageDurations[stage] = append(stageDurations[stage], seconds)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []StageDuration
	for stage, durations := range stageDurations {
		sort.Float64s(durations)
		results = append(results, StageDuration{
			Stage: stage,
			Count: len(durations),
			Avg:   avg(durations),
			P50:   percentile(durations, 50),
			P95:   percentile(durations, 95),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Stage < results[j].Stage
	})
	return results, nil
}

// OutcomeStats summarizes how a batch's artifacts terminated.
type OutcomeStats struct {
	Artifacts     int     `json:"artifacts"`
	Accepted      int     `json:"accepted"`
	Exhausted     int     `json:"exhausted"`
	AcceptancePct float64 `json:"acceptance_pct"`
	AvgAttempts   float64 `json:"avg_attempts"`
	HealedPct     float64 `json:"healed_pct"` // accepted after more than one attempt
}

// QueryOutcomeStats aggregates terminal events. Pass "" for batchID to
// aggregate across all batches.
func QueryOutcomeStats(database DB, batchID string) (*OutcomeStats, error) {
	query := `
		SELECT stage, attempt FROM batch_events
		WHERE stage IN ('ACCEPTED', 'EXHAUSTED') AND artifact_id != ''`
	args := []interface{}{}
	if batchID != "" {
		query += ` AND batch_id = ?`
		args = append(args, batchID)
	}

	rows, err := database.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	stats := &OutcomeStats{}
	totalAttempts := 0
	healed := 0
	for rows.Next() {
		var stage string
		var attempt int
		if err := rows.Scan(&stage, &attempt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		stats.Artifacts++
		totalAttempts += attempt
		if stage == "ACCEPTED" {
			stats.Accepted++
			if attempt > 1 {
				healed++
			}
		} else {
			stats.Exhausted++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Artifacts > 0 {
		stats.AcceptancePct = round1(100 * float64(stats.Accepted) / float64(stats.Artifacts))
		stats.AvgAttempts = round1(float64(totalAttempts) / float64(stats.Artifacts))
	}
	if stats.Accepted > 0 {
		stats.HealedPct = round1(100 * float64(healed) / float64(stats.Accepted))
	}
	return stats, nil
}

func avg(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return round1(sum / float64(len(xs)))
}

// percentile expects xs sorted ascending.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(xs)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(xs) {
		idx = len(xs) - 1
	}
	return round1(xs[idx])
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
