// Package publish implements the commit coordinator: it takes a batch's
// accepted candidates and lands them in the target repository as exactly one
// branch, one commit, and one change request, or leaves no remote trace at
// all. Partial publishes are rolled back before the error is reported.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dependify/modernize/internal/gitops"
	"github.com/dependify/modernize/internal/pipeline"
)

// Sink is the repository boundary the coordinator drives. gitops.Client
// satisfies it; tests substitute a fake to observe ordering and rollback.
type Sink interface {
	Clone(ctx context.Context, url string, dir string) error
	CreateBranch(ctx context.Context, dir string, name string) error
	StageFiles(ctx context.Context, dir string, files map[string]string) error
	Commit(ctx context.Context, dir string, message string) error
	Push(ctx context.Context, dir string, branch string) error
	OpenChangeRequest(ctx context.Context, dir string, opts gitops.ChangeRequestOpts) (string, error)
	DeleteRemoteBranch(ctx context.Context, dir string, branch string) error
	Discard(ctx context.Context, dir string) error
}

// AttemptLog records publish attempts durably. Optional.
type AttemptLog interface {
	LogPublishAttempt(batchID string, attempt int, status string, detail string) error
}

// Request describes one publish: where to push and what to include.
type Request struct {
	BatchID      string
	CloneURL     string
	BaseBranch   string
	BranchPrefix string
	Title        string
	Body         string
	Draft        bool
	Accepted     []pipeline.ArtifactOutcome
	Cancelled    bool
}

// Coordinator lands accepted candidates atomically. One Coordinator serves
// many batches; each Publish call is independent.
type Coordinator struct {
	sink        Sink
	log         AttemptLog
	stagingRoot string
	maxRetries  int
	sleep       func(time.Duration)
	progress    io.Writer
}

// NewCoordinator creates a Coordinator. stagingRoot is where per-attempt
// working copies are created (os.TempDir() when empty); maxRetries caps the
// total number of attempts and is raised to 1 when lower.
func NewCoordinator(sink Sink, stagingRoot string, maxRetries int) *Coordinator {
	if stagingRoot == "" {
		stagingRoot = os.TempDir()
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Coordinator{
		sink:        sink,
		stagingRoot: stagingRoot,
		maxRetries:  maxRetries,
		sleep:       time.Sleep,
	}
}

// SetAttemptLog wires durable attempt recording.
func (c *Coordinator) SetAttemptLog(log AttemptLog) {
	c.log = log
}

// SetProgress sets a writer for live progress output.
func (c *Coordinator) SetProgress(w io.Writer) {
	c.progress = w
}

// SetSleep replaces the inter-attempt sleep. Tests use this to avoid real
// backoff delays.
func (c *Coordinator) SetSleep(fn func(time.Duration)) {
	c.sleep = fn
}

func (c *Coordinator) logf(format string, args ...interface{}) {
	if c.progress != nil {
		fmt.Fprintf(c.progress, format+"\n", args...)
	}
}

// Publish lands the accepted set. It refuses cancelled batches and empty
// accepted sets with a skipped result, retries transient failures with
// exponential backoff, and rolls back any partial remote state before
// reporting failure.
func (c *Coordinator) Publish(ctx context.Context, req Request) pipeline.PublishResult {
	if req.Cancelled {
		return pipeline.PublishResult{Status: pipeline.PublishSkipped, Reason: "batch cancelled"}
	}
	files := candidateFiles(req.Accepted)
	if len(files) == 0 {
		return pipeline.PublishResult{Status: pipeline.PublishSkipped, Reason: "no accepted artifacts"}
	}

	branch := req.BranchPrefix + "/" + shortID(req.BatchID)
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		c.logf("Publishing %d file(s) to %s (attempt %d/%d)", len(files), branch, attempt, c.maxRetries)
		ref, err := c.attempt(ctx, req, branch, files)
		if err == nil {
			c.record(req.BatchID, attempt, "success", ref)
			return pipeline.PublishResult{
				Status:    pipeline.PublishSuccess,
				Reference: ref,
				Branch:    branch,
				Attempts:  attempt,
			}
		}

		lastErr = err
		c.record(req.BatchID, attempt, "failed", err.Error())
		c.logf("Publish attempt %d failed: %v", attempt, err)

		if !isTransient(err) || attempt == c.maxRetries {
			return pipeline.PublishResult{
				Status:   pipeline.PublishFailed,
				Branch:   branch,
				Reason:   err.Error(),
				Attempts: attempt,
			}
		}
		c.sleep(backoff(attempt))
	}

	reason := "publish aborted"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return pipeline.PublishResult{Status: pipeline.PublishFailed, Branch: branch, Reason: reason}
}

// attempt runs one full clone→branch→stage→commit→push→PR sequence in a
// fresh staging directory. On any step failure it rolls back everything the
// attempt created, local and remote, before returning the step error.
func (c *Coordinator) attempt(ctx context.Context, req Request, branch string, files map[string]string) (ref string, err error) {
	dir, err := os.MkdirTemp(c.stagingRoot, "modernize-publish-")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	pushed := false
	defer func() {
		if err == nil {
			// Success: only the local staging copy goes away.
			if derr := c.sink.Discard(context.Background(), dir); derr != nil {
				c.logf("warning: discard staging dir: %v", derr)
			}
			return
		}
		c.rollback(dir, branch, pushed)
	}()

	if err = c.sink.Clone(ctx, req.CloneURL, dir); err != nil {
		return "", err
	}
	if err = c.sink.CreateBranch(ctx, dir, branch); err != nil {
		return "", err
	}
	if err = c.sink.StageFiles(ctx, dir, files); err != nil {
		return "", err
	}
	if err = c.sink.Commit(ctx, dir, req.Title); err != nil {
		return "", err
	}
	if err = c.sink.Push(ctx, dir, branch); err != nil {
		return "", err
	}
	pushed = true

	ref, err = c.sink.OpenChangeRequest(ctx, dir, gitops.ChangeRequestOpts{
		Title: req.Title,
		Body:  req.Body,
		Base:  req.BaseBranch,
		Head:  branch,
		Draft: req.Draft,
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// rollback undoes a failed attempt. It uses a background context so a
// cancelled batch still cleans up, and it never masks the original error.
func (c *Coordinator) rollback(dir string, branch string, pushed bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if pushed {
		if err := c.sink.DeleteRemoteBranch(ctx, dir, branch); err != nil {
			c.logf("warning: rollback of remote branch %s failed: %v", branch, err)
		}
	}
	if err := c.sink.Discard(ctx, dir); err != nil {
		c.logf("warning: discard staging dir: %v", err)
	}
}

func (c *Coordinator) record(batchID string, attempt int, status string, detail string) {
	if c.log == nil {
		return
	}
	if err := c.log.LogPublishAttempt(batchID, attempt, status, detail); err != nil {
		c.logf("warning: record publish attempt: %v", err)
	}
}

// candidateFiles collects path→content for every accepted outcome that
// carries a final candidate.
func candidateFiles(accepted []pipeline.ArtifactOutcome) map[string]string {
	files := make(map[string]string, len(accepted))
	for _, out := range accepted {
		if out.Status != pipeline.StatusAccepted || out.FinalCandidate == nil {
			continue
		}
		files[out.Path] = out.FinalCandidate.Content
	}
	return files
}

// backoff returns the delay before the next attempt: 1s, 2s, 4s, ...
func backoff(attempt int) time.Duration {
	return time.Second << (attempt - 1)
}

// shortID trims a batch id (usually a UUID) to a branch-friendly suffix.
func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "batch"
	}
	return id
}

// Body renders the change-request body for a batch result: one line per
// accepted artifact with its attempt count, sorted, plus a note about
// exhausted ones.
func Body(accepted []pipeline.ArtifactOutcome, exhausted []pipeline.ArtifactOutcome) string {
	var b strings.Builder
	b.WriteString("Automated dependency modernization.\n\n## Updated files\n\n")

	lines := make([]string, 0, len(accepted))
	for _, out := range accepted {
		attempts := "1 attempt"
		if out.AttemptCount > 1 {
			attempts = fmt.Sprintf("%d attempts", out.AttemptCount)
		}
		lines = append(lines, fmt.Sprintf("- `%s` (%s)\n", out.Path, attempts))
	}
	sort.Strings(lines)
	for _, line := range lines {
		b.WriteString(line)
	}

	if len(exhausted) > 0 {
		b.WriteString("\n## Skipped\n\n")
		skipped := make([]string, 0, len(exhausted))
		for _, out := range exhausted {
			skipped = append(skipped, fmt.Sprintf("- `%s` (%s)", out.Path, out.Reason))
		}
		sort.Strings(skipped)
		b.WriteString(strings.Join(skipped, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
