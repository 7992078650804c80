package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/config"
)

var (
	cfg *config.Config

	logLevel    string
	databaseURL string
)

var rootCmd = &cobra.Command{
	Use:   "roadrisk",
	Short: "Road accident injury-risk pipeline",
	Long: "Normalizes yearly road accident records, trains an injury-risk model, " +
		"scores every accident and ranks the most dangerous records and road segments.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		if databaseURL != "" {
			c.Store.DatabaseURL = databaseURL
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db", "", "override store.database_url")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
