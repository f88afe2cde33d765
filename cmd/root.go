package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/road-distance-cli/internal/config"
)

var cfg *config.Config

var (
	inputPath   string
	outputPath  string
	workers     int
	previewRows int
)

var rootCmd = &cobra.Command{
	Use:   "road-distance-cli",
	Short: "Add road distances from reference locations to a facility table",
	Long: "Reads a CSV of facility locations, queries the Bing Maps Routes API for the driving distance " +
		"from each configured reference location to every facility, and writes the table with one " +
		"road_distance_<name> column per reference.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyFlags(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runPipeline(cmd.Context(), cfg, cmd.OutOrStdout())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.Flags().StringVar(&inputPath, "input", "", "facility CSV to read (overrides files.input)")
	rootCmd.Flags().StringVar(&outputPath, "output", "", "CSV to write (overrides files.output)")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "concurrent lookups, each throttled separately (overrides throttle.workers)")
	rootCmd.Flags().IntVar(&previewRows, "preview", 0, "rows to print after writing (overrides preview.rows)")
}

// applyFlags lets explicitly set flags win over file and environment config.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		c.Files.Input = inputPath
	}
	if flags.Changed("output") {
		c.Files.Output = outputPath
	}
	if flags.Changed("workers") {
		c.Throttle.Workers = workers
	}
	if flags.Changed("preview") {
		c.Preview.Rows = previewRows
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
