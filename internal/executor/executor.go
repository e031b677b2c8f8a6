// Package executor runs the per-artifact state machine:
//
//	PENDING → ANALYZING → TRANSFORMING → VERIFYING →
//	    {ACCEPTED | DIAGNOSING → TRANSFORMING (retry) | EXHAUSTED}
//
// A rejected verification below the retry ceiling routes through the
// diagnoser, whose refined plan feeds the next transform attempt. Hard
// capability failures count as rejected verdicts against the same ceiling;
// they are never silently swallowed.
package executor

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/dependify/modernize/internal/capability"
	"github.com/dependify/modernize/internal/event"
	"github.com/dependify/modernize/internal/pipeline"
)

// Capabilities is the external capability boundary the executor drives.
// Every call is assumed safe to retry.
type Capabilities interface {
	Analyze(ctx context.Context, path string, content string) (*capability.ChangePlan, error)
	Transform(ctx context.Context, path string, content string, plan *capability.ChangePlan, attempt int) (*capability.Candidate, error)
	Verify(ctx context.Context, path string, original string, candidate string) (*capability.Verdict, error)
	Diagnose(ctx context.Context, path string, original string, candidate string, failureReason string) (*capability.ChangePlan, error)
}

// Emitter receives one progress event per state transition.
type Emitter interface {
	Emit(e event.Event) error
}

// Executor runs artifacts through the analyze→transform→verify→heal loop.
// Stateless between artifacts; safe for concurrent use by the worker pool.
type Executor struct {
	caps        Capabilities
	events      Emitter
	maxAttempts int // additional attempts after the first
	progress    io.Writer
}

// New creates an Executor. maxAttempts is the number of retries after the
// first attempt; values below zero are treated as zero.
func New(caps Capabilities, events Emitter, maxAttempts int) *Executor {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &Executor{caps: caps, events: events, maxAttempts: maxAttempts}
}

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (e *Executor) SetProgress(w io.Writer) {
	e.progress = w
}

func (e *Executor) logf(format string, args ...interface{}) {
	if e.progress != nil {
		fmt.Fprintf(e.progress, "  → "+format+"\n", args...)
	}
}

// emit publishes one progress event synchronously, before the state machine
// proceeds. Emit failures are logged, never fatal to the artifact.
func (e *Executor) emit(batchID string, artifactID string, stage string, message string, attempt int) {
	if e.events == nil {
		return
	}
	err := e.events.Emit(event.Event{
		BatchID:    batchID,
		ArtifactID: artifactID,
		Stage:      stage,
		Message:    message,
		Attempt:    attempt,
	})
	if err != nil {
		e.logf("warning: emit %s for %s: %v", stage, artifactID, err)
	}
}

// Run executes the full lifecycle for one artifact and returns its terminal
// outcome. It never panics across this boundary and never returns a
// non-terminal state.
func (e *Executor) Run(ctx context.Context, batchID string, art pipeline.Artifact) pipeline.ArtifactOutcome {
	out := pipeline.ArtifactOutcome{ArtifactID: art.ID, Path: art.Path}
	name := path.Base(art.Path)

	e.emit(batchID, art.ID, event.StageReading, "Reading "+name, 0)
	e.logf("%s: analyzing", art.Path)

	if ctx.Err() != nil {
		return e.cancel(batchID, name, out)
	}

	plan, err := e.analyzeWithRetry(ctx, art)
	if err != nil {
		if ctx.Err() != nil {
			return e.cancel(batchID, name, out)
		}
		e.logf("%s: analysis failed: %v", art.Path, err)
		out.Status = pipeline.StatusExhausted
		out.Reason = pipeline.ReasonAnalysisFailed
		e.emit(batchID, art.ID, event.StageExhausted, fmt.Sprintf("Analysis failed for %s: %v", name, err), 0)
		return out
	}
	if plan == nil {
		// Analyzer says the content is already current. Excluded from the
		// publish set, reported alongside other non-accepted artifacts.
		e.logf("%s: already current", art.Path)
		out.Status = pipeline.StatusExhausted
		out.Reason = pipeline.ReasonAlreadyCurrent
		e.emit(batchID, art.ID, event.StageExhausted, name+" is already current", 0)
		return out
	}

	maxTotal := e.maxAttempts + 1
	currentPlan := plan
	var lastCandidate *capability.Candidate
	var lastVerdict capability.Verdict

	for attempt := 1; attempt <= maxTotal; attempt++ {
		if ctx.Err() != nil {
			return e.cancel(batchID, name, out)
		}

		e.emit(batchID, art.ID, event.StageWriting, fmt.Sprintf("Updating %s (attempt %d)", name, attempt), attempt)
		record := pipeline.AttemptRecord{Attempt: attempt}

		cand, err := e.caps.Transform(ctx, art.Path, art.Content, currentPlan, attempt)
		if err != nil {
			if ctx.Err() != nil {
				return e.cancel(batchID, name, out)
			}
			e.logf("%s: transform failed (attempt %d): %v", art.Path, attempt, err)
			record.Verdict = capability.Verdict{
				Reason: pipeline.ReasonCapabilityError,
				Issues: []string{err.Error()},
			}
		} else {
			lastCandidate = cand
			record.Candidate = *cand

			e.emit(batchID, art.ID, event.StageVerifying, fmt.Sprintf("Verifying %s (attempt %d)", name, attempt), attempt)
			verdict, verr := e.caps.Verify(ctx, art.Path, art.Content, cand.Content)
			if verr != nil {
				if ctx.Err() != nil {
					return e.cancel(batchID, name, out)
				}
				e.logf("%s: verify failed (attempt %d): %v", art.Path, attempt, verr)
				record.Verdict = capability.Verdict{
					Reason: pipeline.ReasonCapabilityError,
					Issues: []string{verr.Error()},
				}
			} else {
				record.Verdict = *verdict
			}
		}

		out.History = append(out.History, record)
		out.AttemptCount = attempt
		lastVerdict = record.Verdict

		if record.Verdict.Accepted {
			e.logf("%s: accepted on attempt %d", art.Path, attempt)
			out.Status = pipeline.StatusAccepted
			out.FinalCandidate = lastCandidate
			e.emit(batchID, art.ID, event.StageAccepted, "Verified "+name, attempt)
			return out
		}

		if attempt < maxTotal {
			e.emit(batchID, art.ID, event.StageFixing, fmt.Sprintf("Analyzing & fixing %s", name), attempt)
			currentPlan = e.diagnose(ctx, art, lastCandidate, record.Verdict)
			if ctx.Err() != nil {
				return e.cancel(batchID, name, out)
			}
		}
	}

	// Retry ceiling reached: terminal with the best-effort last candidate
	// and the full attempt history.
	e.logf("%s: exhausted after %d attempts", art.Path, out.AttemptCount)
	out.Status = pipeline.StatusExhausted
	out.Reason = exhaustionReason(lastVerdict)
	out.FinalCandidate = lastCandidate
	e.emit(batchID, art.ID, event.StageExhausted,
		fmt.Sprintf("Gave up on %s after %d attempts", name, out.AttemptCount), out.AttemptCount)
	return out
}

// analyzeWithRetry invokes the analyzer, retrying once on a hard failure or
// an unusable plan before giving up.
func (e *Executor) analyzeWithRetry(ctx context.Context, art pipeline.Artifact) (*capability.ChangePlan, error) {
	var lastErr error
	for try := 0; try < 2; try++ {
		plan, err := e.caps.Analyze(ctx, art.Path, art.Content)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		if plan == nil {
			return nil, nil // definitive: nothing to change
		}
		if plan.Empty() {
			lastErr = fmt.Errorf("empty change plan")
			continue
		}
		return plan, nil
	}
	return nil, lastErr
}

// diagnose asks for a refined plan after a rejection. If the diagnoser
// itself fails, the verdict's issues become the retry instructions so the
// loop keeps its ceiling instead of escalating.
func (e *Executor) diagnose(ctx context.Context, art pipeline.Artifact, cand *capability.Candidate, verdict capability.Verdict) *capability.ChangePlan {
	content := ""
	if cand != nil {
		content = cand.Content
	}
	refined, err := e.caps.Diagnose(ctx, art.Path, art.Content, content, verdict.FailureDetail())
	if err != nil {
		e.logf("%s: diagnosis failed: %v", art.Path, err)
		return &capability.ChangePlan{
			Reason:       verdict.FailureDetail(),
			Instructions: verdict.Issues,
			Refined:      true,
		}
	}
	refined.Refined = true
	return refined
}

// cancel finalizes an artifact stopped at a suspension point.
func (e *Executor) cancel(batchID string, name string, out pipeline.ArtifactOutcome) pipeline.ArtifactOutcome {
	out.Status = pipeline.StatusExhausted
	out.Reason = pipeline.ReasonCancelled
	e.emit(batchID, out.ArtifactID, event.StageExhausted, "Cancelled "+name, out.AttemptCount)
	return out
}

// exhaustionReason maps the final verdict to the outcome reason.
func exhaustionReason(v capability.Verdict) string {
	if v.Reason == pipeline.ReasonCapabilityError {
		return pipeline.ReasonCapabilityError
	}
	return pipeline.ReasonVerifyRejected
}
