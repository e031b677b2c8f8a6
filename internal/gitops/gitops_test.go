package gitops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner scripts gh and git invocations. Responses are keyed by the
// first few args joined with spaces.
type fakeRunner struct {
	ghCalls   []string
	gitCalls  []string
	responses map[string]string
	errors    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		responses: make(map[string]string),
		errors:    make(map[string]error),
	}
}

func (r *fakeRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	call := strings.Join(args, " ")
	r.ghCalls = append(r.ghCalls, call)
	for prefix, err := range r.errors {
		if strings.HasPrefix(call, prefix) {
			return "", err
		}
	}
	for prefix, resp := range r.responses {
		if strings.HasPrefix(call, prefix) {
			return resp, nil
		}
	}
	return "", nil
}

func (r *fakeRunner) RunGit(ctx context.Context, dir string, args ...string) (string, error) {
	call := strings.Join(args, " ")
	r.gitCalls = append(r.gitCalls, call)
	for prefix, err := range r.errors {
		if strings.HasPrefix(call, prefix) {
			return "", err
		}
	}
	return "", nil
}

func TestResolveRepoWithWriteAccess(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["repo view owner/repo"] = `{"url": "https://example.com/owner/repo", "viewerPermission": "WRITE"}`
	client := NewClient(runner)

	info, err := client.ResolveRepo(context.Background(), "owner", "repo")
	if err != nil {
		t.Fatal(err)
	}
	if info.Owner != "owner" || info.IsFork {
		t.Errorf("info = %+v", info)
	}
	if info.CloneURL != "https://example.com/owner/repo.git" {
		t.Errorf("clone url = %q", info.CloneURL)
	}
	for _, call := range runner.ghCalls {
		if strings.HasPrefix(call, "repo fork") {
			t.Error("forked despite write access")
		}
	}
}

func TestResolveRepoForksWithoutAccess(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["repo view owner/repo"] = `{"url": "https://example.com/owner/repo", "viewerPermission": "READ"}`
	runner.responses["api user"] = "contributor"
	runner.responses["repo view contributor/repo"] = `{"url": "https://example.com/contributor/repo"}`
	client := NewClient(runner)

	info, err := client.ResolveRepo(context.Background(), "owner", "repo")
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsFork || info.Owner != "contributor" {
		t.Errorf("info = %+v", info)
	}
	if info.CloneURL != "https://example.com/contributor/repo.git" {
		t.Errorf("clone url = %q", info.CloneURL)
	}

	forked := false
	for _, call := range runner.ghCalls {
		if strings.HasPrefix(call, "repo fork owner/repo --clone=false") {
			forked = true
		}
	}
	if !forked {
		t.Errorf("fork never requested; calls = %v", runner.ghCalls)
	}
}

func TestStageFilesWritesAndStagesSorted(t *testing.T) {
	runner := newFakeRunner()
	client := NewClient(runner)
	dir := t.TempDir()

	files := map[string]string{
		"src/b.js": "bbb",
		"a.js":     "aaa",
	}
	if err := client.StageFiles(context.Background(), dir, files); err != nil {
		t.Fatal(err)
	}

	for rel, want := range files {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != want {
			t.Errorf("%s content = %q", rel, data)
		}
	}

	if len(runner.gitCalls) != 1 {
		t.Fatalf("git calls = %v", runner.gitCalls)
	}
	if runner.gitCalls[0] != "add -- a.js src/b.js" {
		t.Errorf("stage call = %q, want sorted add", runner.gitCalls[0])
	}
}

func TestBranchNameValidation(t *testing.T) {
	client := NewClient(newFakeRunner())

	if err := client.CreateBranch(context.Background(), "/tmp/x", "-evil"); err == nil {
		t.Error("leading-dash branch accepted")
	}
	if err := client.Push(context.Background(), "/tmp/x", ""); err == nil {
		t.Error("empty branch accepted")
	}
	if err := client.DeleteRemoteBranch(context.Background(), "/tmp/x", "-evil"); err == nil {
		t.Error("leading-dash delete accepted")
	}
}

func TestOpenChangeRequestBuildsArgs(t *testing.T) {
	runner := newFakeRunner()
	runner.responses["pr create"] = "https://example.com/owner/repo/pull/5"
	client := NewClient(runner)

	url, err := client.OpenChangeRequest(context.Background(), "/tmp/x", ChangeRequestOpts{
		Title: "Modernize",
		Body:  "details",
		Base:  "main",
		Head:  "modernize/abc",
		Draft: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://example.com/owner/repo/pull/5" {
		t.Errorf("url = %q", url)
	}

	call := runner.ghCalls[len(runner.ghCalls)-1]
	for _, want := range []string{"--title Modernize", "--head modernize/abc", "--base main", "--draft"} {
		if !strings.Contains(call, want) {
			t.Errorf("pr create call %q missing %q", call, want)
		}
	}
}

func TestDiscardRefusesRoot(t *testing.T) {
	client := NewClient(newFakeRunner())

	if err := client.Discard(context.Background(), "/"); err == nil {
		t.Error("discard of / accepted")
	}
	if err := client.Discard(context.Background(), ""); err == nil {
		t.Error("discard of empty dir accepted")
	}

	dir := t.TempDir()
	sub := filepath.Join(dir, "staging")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := client.Discard(context.Background(), sub); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Error("staging dir survived discard")
	}
}

func TestGitErrorsAreWrapped(t *testing.T) {
	runner := newFakeRunner()
	runner.errors["push"] = fmt.Errorf("remote rejected")
	client := NewClient(runner)

	err := client.Push(context.Background(), "/tmp/x", "modernize/abc")
	if err == nil || !strings.Contains(err.Error(), "push branch") {
		t.Errorf("err = %v, want wrapped push error", err)
	}
}
