package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	pipelinePath string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "leadscore",
	Short: "Conversion feature pipeline",
	Long: `leadscore builds a leakage-free training table for conversion forecasting.

Paying and non-paying company tables plus daily usage logs are turned into one
row per (company, weekly snapshot) with rolling usage features and a
"converts within the horizon" label.

Usage:
  go run ./cmd/leadscore [command]

Examples:
  go run ./cmd/leadscore config validate
  go run ./cmd/leadscore build
  go run ./cmd/leadscore serve --schedule
  go run ./cmd/leadscore handoff top --scores scores.csv --k 50`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&pipelinePath, "pipeline", "", "pipeline YAML (default $PIPELINE_CONFIG or config/pipeline.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
