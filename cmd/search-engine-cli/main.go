// Package main provides the search engine CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shoplens-ai/search-engine/internal/config"
	"github.com/shoplens-ai/search-engine/internal/observability"
)

var (
	cfgFile    string
	outputJSON bool
	noColor    bool

	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
)

var rootCmd = &cobra.Command{
	Use:   "search-engine-cli",
	Short: "Search engine CLI for product search, recommendations, and catalog administration",
	Long: `Search engine CLI provides commands for working with the product catalog.

Use this tool to:
- Run hybrid product searches with reranking and price-intent handling
- Get user, item, and hybrid recommendations
- Look up offers that bundle a product
- Ingest product snapshots into the catalog

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Observability.LogLevel,
			Format:      logFormat,
			ServiceName: "search-engine-cli",
		})

		ui = NewUI(outputJSON, noColor)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newRecommendCmd())
	rootCmd.AddCommand(newSimilarCmd())
	rootCmd.AddCommand(newOffersCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Minute)
}

// printJSON emits machine-readable output for --json mode.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("search-engine-cli v0.3.0")
		},
	}
}
