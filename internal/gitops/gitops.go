// Package gitops implements the artifact sink boundary over gh and git
// subprocesses. All repository access during publish goes through this
// package; workers never touch the working copy directly.
package gitops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// CmdRunner provides gh command execution. Interface for testing.
type CmdRunner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// GitRunner provides git command execution. Interface for testing.
type GitRunner interface {
	RunGit(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner runs gh and git commands via exec.
type ExecRunner struct{}

func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("gh %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// RunGit implements GitRunner using exec.CommandContext.
func (r *ExecRunner) RunGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Client provides repository operations.
type Client struct {
	cmd CmdRunner
	git GitRunner
}

// NewClient creates a gitops client. If cmd also implements GitRunner, it
// will be used for git operations.
func NewClient(cmd CmdRunner) *Client {
	c := &Client{cmd: cmd}
	if git, ok := cmd.(GitRunner); ok {
		c.git = git
	}
	return c
}

// NewClientWithGit creates a gitops client with a separate git runner.
func NewClientWithGit(cmd CmdRunner, git GitRunner) *Client {
	return &Client{cmd: cmd, git: git}
}

// RepoInfo describes the repository a batch will publish against. When the
// caller lacks push access to the target, CloneURL points at a fork owned
// by the authenticated user and IsFork is true.
type RepoInfo struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	CloneURL string `json:"clone_url"`
	IsFork   bool   `json:"is_fork"`
}

// writePermissions are viewer permissions that allow pushing directly.
var writePermissions = map[string]bool{
	"ADMIN":    true,
	"MAINTAIN": true,
	"WRITE":    true,
}

// ResolveRepo determines where to push: the repository itself when the
// authenticated user can write to it, otherwise a fork (created if needed).
func (c *Client) ResolveRepo(ctx context.Context, owner string, name string) (*RepoInfo, error) {
	ref := owner + "/" + name
	out, err := c.cmd.Run(ctx, "", "repo", "view", ref, "--json", "url,viewerPermission")
	if err != nil {
		return nil, fmt.Errorf("view repo %s: %w", ref, err)
	}

	var view struct {
		URL              string `json:"url"`
		ViewerPermission string `json:"viewerPermission"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		return nil, fmt.Errorf("parse repo view JSON: %w", err)
	}

	if writePermissions[view.ViewerPermission] {
		return &RepoInfo{Owner: owner, Name: name, CloneURL: view.URL + ".git"}, nil
	}

	// No push access: fork (idempotent if the fork already exists).
	if _, err := c.cmd.Run(ctx, "", "repo", "fork", ref, "--clone=false"); err != nil {
		return nil, fmt.Errorf("fork repo %s: %w", ref, err)
	}
	login, err := c.cmd.Run(ctx, "", "api", "user", "--jq", ".login")
	if err != nil {
		return nil, fmt.Errorf("resolve fork owner: %w", err)
	}

	forkRef := login + "/" + name
	forkOut, err := c.cmd.Run(ctx, "", "repo", "view", forkRef, "--json", "url")
	if err != nil {
		return nil, fmt.Errorf("view fork %s: %w", forkRef, err)
	}
	var fork struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(forkOut), &fork); err != nil {
		return nil, fmt.Errorf("parse fork view JSON: %w", err)
	}

	return &RepoInfo{Owner: login, Name: name, CloneURL: fork.URL + ".git", IsFork: true}, nil
}

// Clone clones a repository into dir.
func (c *Client) Clone(ctx context.Context, url string, dir string) error {
	if c.git == nil {
		return fmt.Errorf("git runner not configured")
	}
	if _, err := c.git.RunGit(ctx, "", "clone", "--depth", "1", url, dir); err != nil {
		return fmt.Errorf("clone %s: %w", url, err)
	}
	return nil
}

// CreateBranch creates and checks out a new branch in dir.
func (c *Client) CreateBranch(ctx context.Context, dir string, name string) error {
	if c.git == nil {
		return fmt.Errorf("git runner not configured")
	}
	if err := validBranchName(name); err != nil {
		return err
	}
	if _, err := c.git.RunGit(ctx, dir, "checkout", "-b", name); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

// StageFiles writes every file in the mapping (path relative to dir) and
// stages the changes. Paths are processed in sorted order so staging is
// deterministic.
func (c *Client) StageFiles(ctx context.Context, dir string, files map[string]string) error {
	if c.git == nil {
		return fmt.Errorf("git runner not configured")
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("mkdir for %s: %w", rel, err)
		}
		if err := os.WriteFile(abs, []byte(files[rel]), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}

	if _, err := c.git.RunGit(ctx, dir, append([]string{"add", "--"}, paths...)...); err != nil {
		return fmt.Errorf("stage files: %w", err)
	}
	return nil
}

// Commit records the staged changes as a single commit.
func (c *Client) Commit(ctx context.Context, dir string, message string) error {
	if c.git == nil {
		return fmt.Errorf("git runner not configured")
	}
	if _, err := c.git.RunGit(ctx, dir, "commit", "-m", message); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Push pushes a branch to the remote.
func (c *Client) Push(ctx context.Context, dir string, branch string) error {
	if c.git == nil {
		return fmt.Errorf("git runner not configured")
	}
	if err := validBranchName(branch); err != nil {
		return err
	}
	if _, err := c.git.RunGit(ctx, dir, "push", "-u", "origin", branch); err != nil {
		return fmt.Errorf("push branch: %w", err)
	}
	return nil
}

// ChangeRequestOpts holds options for opening a change request.
type ChangeRequestOpts struct {
	Title string
	Body  string
	Base  string
	Head  string
	Draft bool
}

// OpenChangeRequest opens a pull request for the pushed branch and returns
// its URL.
func (c *Client) OpenChangeRequest(ctx context.Context, dir string, opts ChangeRequestOpts) (string, error) {
	args := []string{"pr", "create", "--title", opts.Title, "--body", opts.Body, "--head", opts.Head}
	if opts.Base != "" {
		args = append(args, "--base", opts.Base)
	}
	if opts.Draft {
		args = append(args, "--draft")
	}

	out, err := c.cmd.Run(ctx, dir, args...)
	if err != nil {
		return "", fmt.Errorf("create change request: %w", err)
	}
	return out, nil
}

// DeleteRemoteBranch removes a pushed branch from the remote. Used for
// rollback after a failed publish.
func (c *Client) DeleteRemoteBranch(ctx context.Context, dir string, branch string) error {
	if c.git == nil {
		return fmt.Errorf("git runner not configured")
	}
	if err := validBranchName(branch); err != nil {
		return err
	}
	if _, err := c.git.RunGit(ctx, dir, "push", "origin", "--delete", branch); err != nil {
		return fmt.Errorf("delete remote branch: %w", err)
	}
	return nil
}

// Discard removes a staging working copy from disk.
func (c *Client) Discard(ctx context.Context, dir string) error {
	if dir == "" || dir == "/" {
		return fmt.Errorf("refusing to remove %q", dir)
	}
	return os.RemoveAll(dir)
}

// validBranchName rejects branch names git could mistake for flags.
func validBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("empty branch name")
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("invalid branch name %q: must not start with -", name)
	}
	return nil
}
