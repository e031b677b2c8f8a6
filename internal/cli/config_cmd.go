package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dependify/modernize/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved batch config and settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings()
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# settings (~/.modernize/config.yaml, MODERNIZE_* env)\n")
		fmt.Fprintf(out, "data_dir: %s\ndb_path: %s\nport: %d\nstaging_dir: %s\n\n",
			settings.DataDir, settings.DBPath, settings.Port, settings.StagingDir)

		cfg, err := config.LoadDefault()
		if err != nil {
			fmt.Fprintf(out, "# batch config: %v\n", err)
			return nil
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# batch config (resolved)\n%s", data)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a batch config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg *config.BatchConfig
		var err error
		if len(args) == 1 {
			cfg, err = config.Load(args[0])
		} else {
			cfg, err = config.LoadDefault()
		}
		if err != nil {
			return err
		}

		errs := config.Validate(cfg)
		if len(errs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return nil
		}
		for _, e := range errs {
			fmt.Fprintln(cmd.ErrOrStderr(), "config error:", e.Error())
		}
		return fmt.Errorf("%d validation error(s)", len(errs))
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}
