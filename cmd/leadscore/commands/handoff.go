package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/handoff"
	"github.com/wonny/leadscore/pkg/httputil"
	"github.com/wonny/leadscore/pkg/redis"
)

// handoffCmd represents the handoff command
var handoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Boundary to the scoring and segmentation collaborators",
}

var (
	handoffTopCmd = &cobra.Command{
		Use:   "top",
		Short: "Rank feature rows by externally computed scores",
		Long: `Reads entity_id,snapshot_date,score rows and prints the top-k feature
rows as CSV (rank, score, then the feature table columns).

The table comes from Postgres when DATABASE_URL is set, otherwise it is
rebuilt in memory from the configured sources.

Example:
  go run ./cmd/leadscore handoff top --scores scores.csv --k 50 > top.csv`,
		RunE: runHandoffTop,
	}

	handoffScoreCmd = &cobra.Command{
		Use:   "score",
		Short: "Score feature rows through the scoring service and rank them",
		Long: `Sends the feature table (labels excluded) to SCORING_URL in batches and
prints the top-k rows as CSV. Requests are rate limited through Redis when
REDIS_ENABLED=true.

Example:
  SCORING_URL=http://model:8000/score go run ./cmd/leadscore handoff score --k 50`,
		RunE: runHandoffScore,
	}

	handoffAnnotateCmd = &cobra.Command{
		Use:   "annotate",
		Short: "Validate a segmentation annotation read from stdin",
		Long: `Parses collaborator output (JSON, optionally in a markdown code fence)
and keeps only categories from the taxonomy.

Example:
  cat reply.txt | go run ./cmd/leadscore handoff annotate`,
		RunE: runHandoffAnnotate,
	}
)

var (
	handoffScores   string
	handoffK        int
	handoffTaxonomy string
	handoffURL      string
)

func init() {
	rootCmd.AddCommand(handoffCmd)
	handoffCmd.AddCommand(handoffTopCmd)
	handoffCmd.AddCommand(handoffScoreCmd)
	handoffCmd.AddCommand(handoffAnnotateCmd)

	handoffTopCmd.Flags().StringVar(&handoffScores, "scores", "", "scores CSV (entity_id,snapshot_date,score)")
	handoffTopCmd.Flags().IntVar(&handoffK, "k", 50, "number of rows to keep (0 = all scored rows)")
	_ = handoffTopCmd.MarkFlagRequired("scores")

	handoffScoreCmd.Flags().StringVar(&handoffURL, "url", "", "scoring endpoint (default SCORING_URL)")
	handoffScoreCmd.Flags().IntVar(&handoffK, "k", 50, "number of rows to keep (0 = all scored rows)")

	handoffAnnotateCmd.Flags().StringVar(&handoffTaxonomy, "taxonomy", "", "taxonomy YAML (default built-in)")
}

func runHandoffTop(cmd *cobra.Command, args []string) error {
	f, err := os.Open(handoffScores)
	if err != nil {
		return fmt.Errorf("open scores: %w", err)
	}
	defer f.Close()

	scores, err := handoff.ReadScores(f)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := a.connect(ctx, false); err != nil {
		return err
	}
	defer a.close()

	table, err := loadTable(cmd, a)
	if err != nil {
		return err
	}

	ranked, err := handoff.TopK(table, scores, handoffK)
	if err != nil {
		return err
	}

	a.log.WithFields(map[string]interface{}{
		"scores": len(scores),
		"ranked": len(ranked),
	}).Info("Handoff ranking done")

	return writeRanked(cmd.OutOrStdout(), table, ranked)
}

func runHandoffScore(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	url := handoffURL
	if url == "" {
		url = a.cfg.Scoring.URL
	}
	if url == "" {
		return fmt.Errorf("scoring endpoint not set: use --url or SCORING_URL")
	}

	ctx := cmd.Context()
	if err := a.connect(ctx, false); err != nil {
		return err
	}
	defer a.close()

	table, err := loadTable(cmd, a)
	if err != nil {
		return err
	}

	limit := int(math.Ceil(a.cfg.Scoring.RateLimit))
	client := httputil.New(a.cfg.Scoring.Timeout, a.log).
		WithRateLimiter(redis.NewRateLimiter(a.redis, "leadscore"), redis.RateLimitConfig{
			Key:    "scoring",
			Limit:  limit,
			Window: time.Duration(float64(limit) / a.cfg.Scoring.RateLimit * float64(time.Second)),
		})

	start := time.Now()
	scores, err := handoff.NewScoringClient(client, url, a.cfg.Scoring.BatchSize).Score(ctx, table)
	if err != nil {
		return fmt.Errorf("score feature table: %w", err)
	}

	ranked, err := handoff.TopK(table, scores, handoffK)
	if err != nil {
		return err
	}

	a.log.WithFields(map[string]interface{}{
		"rows":     len(table.Rows),
		"scores":   len(scores),
		"ranked":   len(ranked),
		"duration": time.Since(start).String(),
	}).Info("Scoring done")

	return writeRanked(cmd.OutOrStdout(), table, ranked)
}

// loadTable reads the latest table from Postgres, or rebuilds it in memory
// when no database is configured.
func loadTable(cmd *cobra.Command, a *app) (*contracts.FeatureTable, error) {
	var (
		table *contracts.FeatureTable
		err   error
	)
	if repo := a.featureRepository(); repo != nil {
		table, err = repo.LatestTable(cmd.Context())
	} else {
		table, err = buildInMemory(cmd.Context(), a)
	}
	if err != nil {
		return nil, fmt.Errorf("load feature table: %w", err)
	}
	return table, nil
}

func writeRanked(w io.Writer, table *contracts.FeatureTable, ranked []handoff.Ranked) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"rank", "score"}, table.Header()...)); err != nil {
		return err
	}
	for _, r := range ranked {
		rec := []string{strconv.Itoa(r.Rank), strconv.FormatFloat(r.Score, 'f', -1, 64)}
		if err := cw.Write(append(rec, table.Record(r.Row)...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func runHandoffAnnotate(cmd *cobra.Command, args []string) error {
	taxonomy, err := handoff.LoadTaxonomy(handoffTaxonomy)
	if err != nil {
		return err
	}

	text, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read annotation: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(handoff.ParseAnnotation(string(text), taxonomy))
}
