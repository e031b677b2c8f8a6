package capability

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ModelRunner sends a prompt to a named model and returns the raw response
// text. Interface for testing.
type ModelRunner interface {
	Run(ctx context.Context, model string, prompt string) (string, error)
}

// ExecRunner runs prompts through the claude CLI.
type ExecRunner struct{}

func (r *ExecRunner) Run(ctx context.Context, model string, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, "claude", "--print", "--model", model, prompt)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("claude --print: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Models names the model used for each capability. The analyzer and diagnoser
// run on a higher-capability model than the transformer and verifier.
type Models struct {
	Analyzer    string
	Transformer string
	Verifier    string
	Diagnoser   string
}

// Client invokes the four pipeline capabilities through a ModelRunner.
// Every call is safe to retry; no call assumes exactly-once invocation.
type Client struct {
	runner ModelRunner
	models Models
}

// NewClient creates a capability client.
func NewClient(runner ModelRunner, models Models) *Client {
	return &Client{runner: runner, models: models}
}

// Analyze inspects an artifact and returns a ChangePlan, or nil when the
// content is already current.
func (c *Client) Analyze(ctx context.Context, path string, content string) (*ChangePlan, error) {
	out, err := c.runner.Run(ctx, c.models.Analyzer, buildAnalyzePrompt(path, content))
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}
	plan, err := parseAnalysis(out)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}
	return plan, nil
}

// Transform produces a replacement Candidate for an artifact from a plan.
// On retries the plan is the diagnosis output of the prior failed attempt.
func (c *Client) Transform(ctx context.Context, path string, content string, plan *ChangePlan, attempt int) (*Candidate, error) {
	out, err := c.runner.Run(ctx, c.models.Transformer, buildTransformPrompt(path, content, plan))
	if err != nil {
		return nil, fmt.Errorf("transform %s (attempt %d): %w", path, attempt, err)
	}
	cand, err := parseTransform(out, attempt)
	if err != nil {
		return nil, fmt.Errorf("transform %s (attempt %d): %w", path, attempt, err)
	}
	return cand, nil
}

// Verify checks a candidate against the original content with a fast model.
func (c *Client) Verify(ctx context.Context, path string, original string, candidate string) (*Verdict, error) {
	out, err := c.runner.Run(ctx, c.models.Verifier, buildVerifyPrompt(original, candidate))
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", path, err)
	}
	verdict, err := parseVerdict(out)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", path, err)
	}
	return verdict, nil
}

// Diagnose runs the deeper failure analysis after a rejected verdict and
// returns a refined plan for the next transform attempt.
func (c *Client) Diagnose(ctx context.Context, path string, original string, candidate string, failureReason string) (*ChangePlan, error) {
	out, err := c.runner.Run(ctx, c.models.Diagnoser, buildDiagnosePrompt(original, candidate, failureReason))
	if err != nil {
		return nil, fmt.Errorf("diagnose %s: %w", path, err)
	}
	plan, err := parseDiagnosis(out)
	if err != nil {
		return nil, fmt.Errorf("diagnose %s: %w", path, err)
	}
	return plan, nil
}
