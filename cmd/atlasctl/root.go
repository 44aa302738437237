package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/promptatlas/promptatlas/internal/store"
	"github.com/promptatlas/promptatlas/pkg/config"
	"github.com/promptatlas/promptatlas/pkg/logging"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "atlasctl",
	Short: "Collect and inspect AI model prompt guides",
	Long: `atlasctl runs the prompt guide collection pipeline from the
terminal: it discovers sources for each model, extracts structured
guidance, scores it, and stores versioned guides.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		// CLI runs keep log noise down unless asked for.
		if cfg.Logging.Level == "info" {
			cfg.Logging.Level = "warn"
		}
		cfg.Logging.Format = "pretty"
		return logging.SetupLogger(&cfg.Logging)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

// openStore picks Postgres when configured, in-memory otherwise.
func openStore(ctx context.Context) (store.GuideStore, error) {
	if cfg.Database.URL == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewPostgresStore(ctx, cfg.Database.URL)
}
