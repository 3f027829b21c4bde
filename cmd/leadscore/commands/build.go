package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/storage"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the feature table once",
	Long: `Reads the configured sources, runs the six stages and writes the table.

Outputs:
- <OUTPUT_DIR>/features_<run_id>.csv and run_<run_id>.json
- <OUTPUT_DIR>/features_latest.csv and run_latest.json
- Postgres feature_runs / feature_rows when DATABASE_URL is set (--persist)

Example:
  go run ./cmd/leadscore build
  go run ./cmd/leadscore build --source postgres
  go run ./cmd/leadscore build --paying paying.csv --non-paying free.csv --usage usage.csv --out out/`,
	RunE: runBuild,
}

var (
	buildSource    string
	buildPaying    string
	buildNonPaying string
	buildUsage     string
	buildOut       string
	buildPersist   bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildSource, "source", "", "csv | postgres (default $SOURCE_KIND)")
	buildCmd.Flags().StringVar(&buildPaying, "paying", "", "paying companies CSV")
	buildCmd.Flags().StringVar(&buildNonPaying, "non-paying", "", "non-paying companies CSV")
	buildCmd.Flags().StringVar(&buildUsage, "usage", "", "usage log CSV")
	buildCmd.Flags().StringVar(&buildOut, "out", "", "output directory (default $OUTPUT_DIR)")
	buildCmd.Flags().BoolVar(&buildPersist, "persist", true, "also write to Postgres when DATABASE_URL is set")
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	applyBuildFlags(a)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !buildPersist {
		a.cfg.Database.URL = ""
	}
	if err := a.connect(ctx, false); err != nil {
		return err
	}
	defer a.close()

	writers := []contracts.FeatureWriter{a.exporter()}
	if repo := a.featureRepository(); repo != nil {
		writers = append(writers, repo)
	}

	runner, err := a.newRunner(writers...)
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx)
	if err != nil {
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		return fmt.Errorf("build failed: %w", err)
	}

	printReport(cmd.OutOrStdout(), report)
	printSuccess(cmd.OutOrStdout(), "Feature table written to "+a.cfg.OutputDir)
	return nil
}

func applyBuildFlags(a *app) {
	if buildSource != "" {
		a.cfg.Source.Kind = buildSource
	}
	if buildPaying != "" {
		a.cfg.Source.PayingCSV = buildPaying
	}
	if buildNonPaying != "" {
		a.cfg.Source.NonPayingCSV = buildNonPaying
	}
	if buildUsage != "" {
		a.cfg.Source.UsageCSV = buildUsage
	}
	if buildOut != "" {
		a.cfg.OutputDir = buildOut
	}
}

// buildInMemory runs the pipeline without any sink
func buildInMemory(ctx context.Context, a *app) (*contracts.FeatureTable, error) {
	store := storage.NewMemoryStore()
	runner, err := a.newRunner(store)
	if err != nil {
		return nil, err
	}
	if _, err := runner.Run(ctx); err != nil {
		return nil, err
	}
	return store.LatestTable(ctx)
}
