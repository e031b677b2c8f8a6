package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "modernize version 1.2.3") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modernize.yaml")
	cfg := `batch:
  name: nightly
  repo: owner/repo
`
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "validate", path)
	if err != nil {
		t.Fatalf("valid config rejected: %v\n%s", err, out)
	}
	if !strings.Contains(out, "config OK") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigValidateCommandRejectsBadRepo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modernize.yaml")
	cfg := `batch:
  repo: not-a-repo-ref
`
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "config", "validate", path); err == nil {
		t.Fatal("invalid config accepted")
	}
}

func TestRunDryRunListsFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("var x = require('left-pad')\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfgPath := filepath.Join(t.TempDir(), "modernize.yaml")
	cfg := `batch:
  repo: owner/repo
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "run", dir, "--config", cfgPath, "--dry-run")
	if err != nil {
		t.Fatalf("dry run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "app.js") {
		t.Errorf("dry run output missing scanned file:\n%s", out)
	}
}
