package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modernize.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `batch:
  name: nightly
  repo: owner/repo
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	b := cfg.Batch

	if b.ConcurrencyLimit != 8 {
		t.Errorf("concurrency = %d, want 8", b.ConcurrencyLimit)
	}
	if b.MaxAttempts != 2 {
		t.Errorf("max attempts = %d, want 2", b.MaxAttempts)
	}
	if b.Timeout() != 5*time.Minute {
		t.Errorf("timeout = %s, want 5m", b.Timeout())
	}
	if b.Models.Analyzer != "sonnet" || b.Models.Transformer != "haiku" {
		t.Errorf("models = %+v", b.Models)
	}
	if b.Models.Diagnoser != b.Models.Analyzer {
		t.Errorf("diagnoser = %q, want analyzer default", b.Models.Diagnoser)
	}
	if b.Publish.BaseBranch != "main" || b.Publish.BranchPrefix != "modernize" || b.Publish.MaxRetries != 3 {
		t.Errorf("publish = %+v", b.Publish)
	}
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `batch:
  repo: owner/repo
  concurrency_limit: 2
  max_attempts: 4
  per_artifact_timeout: 90s
  models:
    analyzer: opus
    diagnoser: sonnet
  publish:
    base_branch: develop
    draft: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	b := cfg.Batch

	if b.ConcurrencyLimit != 2 || b.MaxAttempts != 4 {
		t.Errorf("limits = %d/%d", b.ConcurrencyLimit, b.MaxAttempts)
	}
	if b.Timeout() != 90*time.Second {
		t.Errorf("timeout = %s", b.Timeout())
	}
	if b.Models.Analyzer != "opus" || b.Models.Diagnoser != "sonnet" {
		t.Errorf("models = %+v", b.Models)
	}
	if b.Publish.BaseBranch != "develop" || !b.Publish.Draft {
		t.Errorf("publish = %+v", b.Publish)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "batch: [not: a: mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("bad yaml accepted")
	}
}

func TestValidate(t *testing.T) {
	valid := &BatchConfig{}
	valid.Batch.Repo = "owner/repo"
	valid.Batch.ConcurrencyLimit = 4
	valid.Batch.Models = Models{Analyzer: "a", Transformer: "b", Verifier: "c", Diagnoser: "d"}

	if errs := Validate(valid); len(errs) != 0 {
		t.Errorf("valid config rejected: %v", errs)
	}

	cases := []struct {
		name   string
		mutate func(*BatchConfig)
		field  string
	}{
		{"missing repo", func(c *BatchConfig) { c.Batch.Repo = "" }, "batch.repo"},
		{"bad repo ref", func(c *BatchConfig) { c.Batch.Repo = "just-a-name" }, "batch.repo"},
		{"zero concurrency", func(c *BatchConfig) { c.Batch.ConcurrencyLimit = 0 }, "batch.concurrency_limit"},
		{"negative attempts", func(c *BatchConfig) { c.Batch.MaxAttempts = -1 }, "batch.max_attempts"},
		{"bad timeout", func(c *BatchConfig) { c.Batch.PerArtifactTimeout = "soon" }, "batch.per_artifact_timeout"},
		{"missing model", func(c *BatchConfig) { c.Batch.Models.Verifier = "" }, "batch.models.verifier"},
		{"bad branch prefix", func(c *BatchConfig) { c.Batch.Publish.BranchPrefix = "my branch" }, "batch.publish.branch_prefix"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *valid
			tc.mutate(&cfg)
			errs := Validate(&cfg)
			found := false
			for _, e := range errs {
				if e.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for %s, got %v", tc.field, errs)
			}
		})
	}
}

func TestOwnerAndRepoName(t *testing.T) {
	var b Batch
	b.Repo = "dependify/webapp"
	if b.Owner() != "dependify" || b.RepoName() != "webapp" {
		t.Errorf("owner/name = %q/%q", b.Owner(), b.RepoName())
	}

	b.Repo = "bare"
	if b.RepoName() != "" {
		t.Errorf("name for bare ref = %q, want empty", b.RepoName())
	}
}
