package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a BatchConfig for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *BatchConfig) []ValidationError {
	var errs []ValidationError
	b := cfg.Batch

	if b.Repo == "" {
		errs = append(errs, ValidationError{Field: "batch.repo", Message: "is required"})
	} else if !strings.Contains(b.Repo, "/") || strings.Count(b.Repo, "/") != 1 {
		errs = append(errs, ValidationError{Field: "batch.repo", Message: "must be owner/name"})
	}

	if b.ConcurrencyLimit < 1 {
		errs = append(errs, ValidationError{Field: "batch.concurrency_limit", Message: "must be at least 1"})
	}
	if b.MaxAttempts < 0 {
		errs = append(errs, ValidationError{Field: "batch.max_attempts", Message: "must not be negative"})
	}

	if b.PerArtifactTimeout != "" {
		if _, err := time.ParseDuration(b.PerArtifactTimeout); err != nil {
			errs = append(errs, ValidationError{
				Field:   "batch.per_artifact_timeout",
				Message: fmt.Sprintf("invalid duration %q", b.PerArtifactTimeout),
			})
		}
	}

	for field, model := range map[string]string{
		"batch.models.analyzer":    b.Models.Analyzer,
		"batch.models.transformer": b.Models.Transformer,
		"batch.models.verifier":    b.Models.Verifier,
		"batch.models.diagnoser":   b.Models.Diagnoser,
	} {
		if model == "" {
			errs = append(errs, ValidationError{Field: field, Message: "is required"})
		}
	}

	if strings.ContainsAny(b.Publish.BranchPrefix, " ~^:?*[\\") {
		errs = append(errs, ValidationError{
			Field:   "batch.publish.branch_prefix",
			Message: fmt.Sprintf("invalid characters in %q", b.Publish.BranchPrefix),
		})
	}

	return errs
}

// Timeout returns the parsed per-artifact timeout, or 0 when unset/invalid.
func (b Batch) Timeout() time.Duration {
	if b.PerArtifactTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(b.PerArtifactTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Owner returns the repository owner part of batch.repo.
func (b Batch) Owner() string {
	parts := strings.SplitN(b.Repo, "/", 2)
	return parts[0]
}

// RepoName returns the repository name part of batch.repo.
func (b Batch) RepoName() string {
	parts := strings.SplitN(b.Repo, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
