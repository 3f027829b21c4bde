package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/leadscore/internal/pipeline"
	"github.com/wonny/leadscore/internal/s3_features"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Pipeline configuration tools",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipeline YAML and print the resulting columns",
	Long: `Loads the process and pipeline configuration, validates every option and
prints the config hash recorded on each run plus the feature columns.

Example:
  go run ./cmd/leadscore config validate
  go run ./cmd/leadscore config validate --pipeline config/pipeline.yaml`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	p, err := pipeline.New(a.pipeline, nil, a.log)
	if err != nil {
		return err
	}

	pc := a.pipeline
	out := cmd.OutOrStdout()

	printHeader(out, "Pipeline config "+a.cfg.PipelineConfigPath)
	printKeyValue(out, "Pipeline", pc.Meta.PipelineID+" v"+pc.Meta.Version)
	printKeyValue(out, "Config hash", p.ConfigHash())
	printKeyValue(out, "Cadence", cadence(pc.Cadence.Kind, pc.Cadence.Weekday))
	printKeyValue(out, "Windows (days)", joinInts(pc.WindowsDays))
	printKeyValue(out, "Label horizon (days)", strconv.Itoa(pc.LabelHorizonDays))
	printKeyValue(out, "Recency sentinel", strconv.Itoa(pc.Recency.SentinelDays))
	printKeyValue(out, "Duplicate policy", pc.DuplicatePolicy)
	printKeyValue(out, "Source", a.cfg.Source.Kind)
	fmt.Fprintln(out, singleLine)

	schema := s3_features.FeatureNames(pc.Columns.Counters, pc.WindowsDays)
	fmt.Fprintf(out, "   %d feature columns:\n", schema.Len())
	for _, name := range schema.Names {
		fmt.Fprintf(out, "   • %s\n", name)
	}
	fmt.Fprintln(out, doubleLine)

	printSuccess(out, "Configuration is valid")
	return nil
}

func cadence(kind, weekday string) string {
	if kind == "daily" {
		return kind
	}
	return kind + " (" + weekday + ")"
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
