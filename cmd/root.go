package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/areascope/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "areascope",
	Short: "Fetch business and consumer records for geographic areas",
	Long: `areascope parses KML, KMZ, and zipped-shapefile area files and fetches
business records, consumer records, or demographic insights for the
polygons they contain.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
