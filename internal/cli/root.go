package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dependify/modernize/internal/config"
	"github.com/dependify/modernize/internal/db"
	"github.com/dependify/modernize/internal/pipeline"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "modernize",
	Short: "modernize — batch dependency modernization for repositories",
	Long: `modernize scans a repository for outdated code, rewrites each file through
an analyze/transform/verify loop with automatic failure diagnosis, and lands
the accepted changes as a single reviewable change request.

All state is stored in ~/.modernize/ (SQLite for events, JSON for batches).`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(config.InitSettings)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(batchesCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}

// openDatabase opens and migrates the event database from settings.
func openDatabase() (*db.DB, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	database, err := db.Open(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database, nil
}

// openStore opens the batch store rooted under the configured data dir.
func openStore() (*pipeline.Store, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	dir := filepath.Join(settings.DataDir, "batches")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return pipeline.NewStore(dir), nil
}
