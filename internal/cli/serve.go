package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dependify/modernize/internal/config"
	"github.com/dependify/modernize/internal/event"
	"github.com/dependify/modernize/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local observer API",
	Long: `Start a read-only HTTP API on localhost exposing batch state, results,
and a live progress event stream (SSE). The API observes batches run by any
process sharing the same data directory; it never mutates a running batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = settings.Port
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

		events := event.NewPublisher(database)
		return web.NewServer(store, database, events, port).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (default from settings)")
}
