package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dependify/modernize/internal/capability"
	"github.com/dependify/modernize/internal/config"
	"github.com/dependify/modernize/internal/event"
	"github.com/dependify/modernize/internal/executor"
	"github.com/dependify/modernize/internal/gitops"
	"github.com/dependify/modernize/internal/orchestrator"
	"github.com/dependify/modernize/internal/pipeline"
	"github.com/dependify/modernize/internal/publish"
	"github.com/dependify/modernize/internal/scan"
)

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Run a modernization batch over a checked-out repository",
	Long: `Scan a local checkout for eligible files, run each through the
analyze/transform/verify loop, and publish the accepted rewrites as one
branch, one commit, and one change request on the configured repository.

The batch config is read from --config, ./modernize.yaml, or
~/.modernize/batch.yaml, in that order. Ctrl-C drains in-flight work and
records a partial result without publishing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		cfgPath, _ := cmd.Flags().GetString("config")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, err := loadBatchConfig(cfgPath)
		if err != nil {
			return err
		}
		b := cfg.Batch

		artifacts, err := collectArtifacts(root, b)
		if err != nil {
			return err
		}
		if len(artifacts) == 0 {
			return fmt.Errorf("no eligible files under %s", root)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Found %d eligible file(s) under %s\n", len(artifacts), root)

		if dryRun {
			for _, art := range artifacts {
				fmt.Fprintln(cmd.OutOrStdout(), "  "+art.Path)
			}
			return nil
		}

		settings, err := config.LoadSettings()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()
		store, err := openStore()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		git := gitops.NewClient(&gitops.ExecRunner{})
		repo, err := git.ResolveRepo(ctx, b.Owner(), b.RepoName())
		if err != nil {
			return fmt.Errorf("resolve repo %s: %w", b.Repo, err)
		}
		if repo.IsFork {
			fmt.Fprintf(cmd.OutOrStdout(), "No push access to %s; publishing via fork %s/%s\n", b.Repo, repo.Owner, repo.Name)
		}

		events := event.NewPublisher(database)

		caps := capability.NewClient(&capability.ExecRunner{}, capability.Models{
			Analyzer:    b.Models.Analyzer,
			Transformer: b.Models.Transformer,
			Verifier:    b.Models.Verifier,
			Diagnoser:   b.Models.Diagnoser,
		})
		exec := executor.New(caps, events, b.MaxAttempts)
		exec.SetProgress(cmd.ErrOrStderr())

		coord := publish.NewCoordinator(git, settings.StagingDir, b.Publish.MaxRetries)
		coord.SetAttemptLog(database)
		coord.SetProgress(cmd.ErrOrStderr())

		orch := orchestrator.New(store, exec, coord, events)
		orch.SetProgress(cmd.OutOrStdout())

		title := b.Publish.Title
		if title == "" {
			title = "Modernize " + b.Repo
		}

		result, err := orch.RunBatch(ctx, orchestrator.BatchSpec{
			RepoRef:            b.Repo,
			CloneURL:           repo.CloneURL,
			Artifacts:          artifacts,
			Concurrency:        b.ConcurrencyLimit,
			PerArtifactTimeout: b.Timeout(),
			BaseBranch:         b.Publish.BaseBranch,
			BranchPrefix:       b.Publish.BranchPrefix,
			Title:              title,
			Draft:              b.Publish.Draft,
		})
		if err != nil {
			return err
		}

		printSummary(cmd, result)
		if result.Publish.Status == pipeline.PublishFailed {
			return fmt.Errorf("publish failed: %s", result.Publish.Reason)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to the batch config (default: ./modernize.yaml, ~/.modernize/batch.yaml)")
	runCmd.Flags().Bool("dry-run", false, "List eligible files and exit without processing")
}

func loadBatchConfig(path string) (*config.BatchConfig, error) {
	var cfg *config.BatchConfig
	var err error
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, "config error:", e.Error())
		}
		return nil, fmt.Errorf("invalid batch config (%d error(s))", len(errs))
	}
	return cfg, nil
}

func collectArtifacts(root string, b config.Batch) ([]pipeline.Artifact, error) {
	artifacts, err := scan.Collect(root, scan.Options{
		Include:      b.Scan.Include,
		Exclude:      b.Scan.Exclude,
		MaxFileBytes: int64(b.Scan.MaxFileKB) * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if max := b.Scan.MaxArtifacts; max > 0 && len(artifacts) > max {
		artifacts = artifacts[:max]
	}
	return artifacts, nil
}

func printSummary(cmd *cobra.Command, result *pipeline.BatchResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nBatch %s finished in %s\n", result.BatchID, result.FinishedAt.Sub(result.StartedAt).Round(time.Second))
	fmt.Fprintf(out, "  accepted:  %d\n", len(result.Accepted))
	fmt.Fprintf(out, "  exhausted: %d\n", len(result.Exhausted))
	for _, e := range result.Exhausted {
		fmt.Fprintf(out, "    %s (%s)\n", e.Path, e.Reason)
	}

	switch result.Publish.Status {
	case pipeline.PublishSuccess:
		fmt.Fprintf(out, "  change request: %s\n", result.Publish.Reference)
	case pipeline.PublishSkipped:
		fmt.Fprintf(out, "  publish skipped: %s\n", result.Publish.Reason)
	case pipeline.PublishFailed:
		fmt.Fprintf(out, "  publish FAILED after %d attempt(s): %s\n", result.Publish.Attempts, result.Publish.Reason)
	}
	if result.Cancelled {
		fmt.Fprintln(out, "  batch was cancelled; partial result recorded")
	}
}
