// Package orchestrator drives a batch end to end: fan the artifacts out
// across the worker pool, fan the outcomes back in, partition them, and hand
// the accepted set to the commit coordinator. The orchestrator owns batch
// identity and lifecycle state; per-artifact semantics live in the executor.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dependify/modernize/internal/event"
	"github.com/dependify/modernize/internal/pipeline"
	"github.com/dependify/modernize/internal/publish"
	"github.com/dependify/modernize/internal/worker"
)

// Runner executes one artifact to a terminal outcome.
type Runner interface {
	Run(ctx context.Context, batchID string, art pipeline.Artifact) pipeline.ArtifactOutcome
}

// Publisher lands a batch's accepted candidates.
type Publisher interface {
	Publish(ctx context.Context, req publish.Request) pipeline.PublishResult
}

// Emitter publishes batch-level progress events.
type Emitter interface {
	Emit(e event.Event) error
}

// BatchSpec describes one batch run.
type BatchSpec struct {
	RepoRef            string
	CloneURL           string
	Artifacts          []pipeline.Artifact
	Concurrency        int
	PerArtifactTimeout time.Duration

	BaseBranch   string
	BranchPrefix string
	Title        string
	Draft        bool
}

// Orchestrator runs batches. Construct with New; one instance serves many
// sequential batches.
type Orchestrator struct {
	store     *pipeline.Store
	runner    Runner
	publisher Publisher
	events    Emitter
	progress  io.Writer
}

// New creates an Orchestrator.
func New(store *pipeline.Store, runner Runner, publisher Publisher, events Emitter) *Orchestrator {
	return &Orchestrator{store: store, runner: runner, publisher: publisher, events: events}
}

// SetProgress sets a writer for live progress output.
func (o *Orchestrator) SetProgress(w io.Writer) {
	o.progress = w
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.progress != nil {
		fmt.Fprintf(o.progress, format+"\n", args...)
	}
}

// RunBatch executes one batch and returns its aggregated result. Outcomes
// appear in the order the artifacts were supplied, regardless of completion
// order. A cancelled context drains in-flight work, records the partial
// result, and skips publishing.
func (o *Orchestrator) RunBatch(ctx context.Context, spec BatchSpec) (*pipeline.BatchResult, error) {
	if len(spec.Artifacts) == 0 {
		return nil, fmt.Errorf("batch has no artifacts")
	}
	seen := make(map[string]bool, len(spec.Artifacts))
	for _, art := range spec.Artifacts {
		if art.ID == "" {
			return nil, fmt.Errorf("artifact with empty id (path %q)", art.Path)
		}
		if seen[art.ID] {
			return nil, fmt.Errorf("duplicate artifact id %q", art.ID)
		}
		seen[art.ID] = true
	}

	batchID := uuid.NewString()
	if _, err := o.store.Create(batchID, spec.RepoRef, len(spec.Artifacts)); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	o.logf("Batch %s: %d artifact(s), concurrency %d", batchID, len(spec.Artifacts), spec.Concurrency)

	result := &pipeline.BatchResult{
		BatchID:   batchID,
		RepoRef:   spec.RepoRef,
		StartedAt: time.Now().UTC(),
	}

	if err := o.store.Update(batchID, func(bs *pipeline.BatchState) {
		bs.Status = "running"
	}); err != nil {
		return nil, err
	}

	runner := o.runner
	if spec.PerArtifactTimeout > 0 {
		runner = &deadlineRunner{inner: o.runner, limit: spec.PerArtifactTimeout}
	}
	pool := worker.NewPool(runner, batchID, spec.Concurrency)

	// Submit in caller order and keep the futures in the same order so the
	// result is deterministic however completion interleaves.
	futures := make([]*worker.Future, 0, len(spec.Artifacts))
	for _, art := range spec.Artifacts {
		f, err := pool.Submit(ctx, art)
		if err != nil {
			return nil, fmt.Errorf("submit %s: %w", art.ID, err)
		}
		futures = append(futures, f)
	}

	for _, f := range futures {
		out := f.Wait()
		if out.Status == pipeline.StatusAccepted {
			result.Accepted = append(result.Accepted, out)
		} else {
			result.Exhausted = append(result.Exhausted, out)
		}
	}
	pool.Wait()

	result.Cancelled = ctx.Err() != nil
	o.logf("Batch %s: %d accepted, %d exhausted", batchID, len(result.Accepted), len(result.Exhausted))

	if err := o.store.Update(batchID, func(bs *pipeline.BatchState) {
		bs.Accepted = len(result.Accepted)
		bs.Exhausted = len(result.Exhausted)
		bs.Status = "publishing"
	}); err != nil {
		return nil, err
	}

	result.Publish = o.publisher.Publish(ctx, publish.Request{
		BatchID:      batchID,
		CloneURL:     spec.CloneURL,
		BaseBranch:   spec.BaseBranch,
		BranchPrefix: spec.BranchPrefix,
		Title:        spec.Title,
		Body:         publish.Body(result.Accepted, result.Exhausted),
		Draft:        spec.Draft,
		Accepted:     result.Accepted,
		Cancelled:    result.Cancelled,
	})
	result.FinishedAt = time.Now().UTC()

	o.finish(batchID, result)

	if err := o.store.SaveResult(batchID, result); err != nil {
		o.logf("warning: save result for %s: %v", batchID, err)
	}
	return result, nil
}

// finish records the terminal batch state and emits the batch-level event.
func (o *Orchestrator) finish(batchID string, result *pipeline.BatchResult) {
	status := "completed"
	stage := event.StagePublished
	message := "Published " + result.Publish.Reference

	switch result.Publish.Status {
	case pipeline.PublishFailed:
		status = "failed"
		stage = event.StagePublishFailed
		message = "Publish failed: " + result.Publish.Reason
	case pipeline.PublishSkipped:
		if result.Cancelled {
			status = "cancelled"
		}
		stage = ""
		message = ""
	}

	if err := o.store.Update(batchID, func(bs *pipeline.BatchState) {
		bs.Status = status
		bs.Branch = result.Publish.Branch
		bs.ChangeRequest = result.Publish.Reference
	}); err != nil {
		o.logf("warning: update batch %s: %v", batchID, err)
	}

	if stage != "" && o.events != nil {
		err := o.events.Emit(event.Event{
			BatchID: batchID,
			Stage:   stage,
			Message: message,
		})
		if err != nil {
			o.logf("warning: emit %s for %s: %v", stage, batchID, err)
		}
	}
}

// deadlineRunner caps each artifact's wall-clock time. An artifact stopped
// by its own deadline reports timeout; one stopped by batch cancellation
// keeps reporting cancelled.
type deadlineRunner struct {
	inner Runner
	limit time.Duration
}

func (r *deadlineRunner) Run(ctx context.Context, batchID string, art pipeline.Artifact) pipeline.ArtifactOutcome {
	runCtx, cancel := context.WithTimeout(ctx, r.limit)
	defer cancel()

	out := r.inner.Run(runCtx, batchID, art)
	if out.Reason == pipeline.ReasonCancelled && ctx.Err() == nil && runCtx.Err() == context.DeadlineExceeded {
		out.Reason = pipeline.ReasonTimeout
	}
	return out
}
