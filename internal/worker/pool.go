// Package worker provides the bounded-concurrency pool that fans artifact
// work out across goroutines. Admission is gated by a weighted semaphore so
// at most the configured number of artifacts are in flight at once; the rest
// queue on acquisition in submission order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/dependify/modernize/internal/pipeline"
)

// Runner executes one artifact to a terminal outcome.
type Runner interface {
	Run(ctx context.Context, batchID string, art pipeline.Artifact) pipeline.ArtifactOutcome
}

// Future resolves to one artifact's terminal outcome.
type Future struct {
	done    chan struct{}
	outcome pipeline.ArtifactOutcome
}

// Wait blocks until the outcome is available.
func (f *Future) Wait() pipeline.ArtifactOutcome {
	<-f.done
	return f.outcome
}

// Done returns a channel closed when the outcome is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) resolve(out pipeline.ArtifactOutcome) {
	f.outcome = out
	close(f.done)
}

// Pool runs artifacts through a Runner with a hard concurrency cap. A pool
// serves one batch; duplicate artifact ids within the batch are rejected.
type Pool struct {
	runner  Runner
	batchID string
	sem     *semaphore.Weighted

	mu   sync.Mutex
	seen map[string]bool

	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// NewPool creates a pool capped at limit concurrent artifacts. A limit below
// one is raised to one.
func NewPool(runner Runner, batchID string, limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{
		runner:  runner,
		batchID: batchID,
		sem:     semaphore.NewWeighted(int64(limit)),
		seen:    make(map[string]bool),
	}
}

// Submit enqueues one artifact and returns a Future for its outcome. The
// returned error is non-nil only for duplicate artifact ids; execution
// errors (including timeouts and cancellation) surface as exhausted
// outcomes on the Future, never as Submit errors.
func (p *Pool) Submit(ctx context.Context, art pipeline.Artifact) (*Future, error) {
	p.mu.Lock()
	if p.seen[art.ID] {
		p.mu.Unlock()
		return nil, fmt.Errorf("duplicate artifact %q in batch %s", art.ID, p.batchID)
	}
	p.seen[art.ID] = true
	p.mu.Unlock()

	f := &Future{done: make(chan struct{})}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			// Batch cancelled while queued; the artifact never started.
			f.resolve(pipeline.ArtifactOutcome{
				ArtifactID: art.ID,
				Path:       art.Path,
				Status:     pipeline.StatusExhausted,
				Reason:     pipeline.ReasonCancelled,
			})
			return
		}
		defer p.sem.Release(1)

		p.inFlight.Add(1)
		defer p.inFlight.Add(-1)

		f.resolve(p.run(ctx, art))
	}()
	return f, nil
}

// run executes the artifact, converting a runner panic into a terminal
// worker-crashed outcome so one bad artifact cannot take down the batch.
func (p *Pool) run(ctx context.Context, art pipeline.Artifact) (out pipeline.ArtifactOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = pipeline.ArtifactOutcome{
				ArtifactID: art.ID,
				Path:       art.Path,
				Status:     pipeline.StatusExhausted,
				Reason:     pipeline.ReasonWorkerCrashed,
			}
		}
	}()
	return p.runner.Run(ctx, p.batchID, art)
}

// InFlight reports how many artifacts are currently executing (admitted past
// the semaphore, not yet terminal).
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Wait blocks until every submitted artifact has resolved.
func (p *Pool) Wait() {
	p.wg.Wait()
}
