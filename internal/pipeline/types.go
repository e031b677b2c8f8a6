package pipeline

import (
	"time"

	"github.com/dependify/modernize/internal/capability"
)

// Artifact is one unit of work carried through the pipeline: an immutable
// identifier plus the original content snapshot, read exactly once at batch
// start and never mutated.
type Artifact struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Status is the terminal state of an artifact.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusExhausted Status = "exhausted"
)

// Exhaustion reasons reported in ArtifactOutcome.Reason.
const (
	ReasonAnalysisFailed  = "analysis-failed"
	ReasonAlreadyCurrent  = "already-current"
	ReasonCapabilityError = "capability-error"
	ReasonVerifyRejected  = "verification-rejected"
	ReasonTimeout         = "timeout"
	ReasonCancelled       = "cancelled"
	ReasonWorkerCrashed   = "worker-crashed"
)

// AttemptRecord pairs one candidate with the verdict it received. Attempts
// where the transform itself failed carry an empty candidate and a
// capability-error verdict.
type AttemptRecord struct {
	Attempt   int                  `json:"attempt"`
	Candidate capability.Candidate `json:"candidate"`
	Verdict   capability.Verdict   `json:"verdict"`
}

// ArtifactOutcome is the terminal per-artifact result. It is created once,
// when the stage executor terminates, and read-only afterward.
type ArtifactOutcome struct {
	ArtifactID     string                `json:"artifact_id"`
	Path           string                `json:"path"`
	Status         Status                `json:"status"`
	Reason         string                `json:"reason,omitempty"`
	FinalCandidate *capability.Candidate `json:"final_candidate,omitempty"`
	AttemptCount   int                   `json:"attempt_count"`
	History        []AttemptRecord       `json:"history,omitempty"`
}

// PublishStatus is the outcome of the commit coordinator.
type PublishStatus string

const (
	PublishSuccess PublishStatus = "success"
	PublishFailed  PublishStatus = "failed"
	PublishSkipped PublishStatus = "skipped"
)

// PublishResult describes what the commit coordinator did with the accepted
// set: a reference on success, a reason otherwise.
type PublishResult struct {
	Status    PublishStatus `json:"status"`
	Reference string        `json:"reference,omitempty"`
	Branch    string        `json:"branch,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Attempts  int           `json:"attempts,omitempty"`
}

// BatchResult aggregates every artifact outcome plus the publish result.
// Outcomes appear in the caller-supplied artifact order.
type BatchResult struct {
	BatchID    string            `json:"batch_id"`
	RepoRef    string            `json:"repo_ref"`
	Accepted   []ArtifactOutcome `json:"accepted"`
	Exhausted  []ArtifactOutcome `json:"exhausted"`
	Publish    PublishResult     `json:"publish"`
	Cancelled  bool              `json:"cancelled,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// BatchState is the persisted lifecycle record for a batch.
type BatchState struct {
	ID            string `json:"id"`
	RepoRef       string `json:"repo_ref"`
	Status        string `json:"status"` // "pending", "running", "publishing", "completed", "failed", "cancelled"
	ArtifactCount int    `json:"artifact_count"`
	Accepted      int    `json:"accepted"`
	Exhausted     int    `json:"exhausted"`
	Branch        string `json:"branch,omitempty"`
	ChangeRequest string `json:"change_request,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}
