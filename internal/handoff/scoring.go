package handoff

import (
	"context"
	"fmt"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/pkg/httputil"
)

// ScoringClient asks the model-training collaborator for per-row
// conversion probabilities. Labels are never sent.
type ScoringClient struct {
	client    *httputil.Client
	url       string
	batchSize int
}

// NewScoringClient creates a new scoring client
func NewScoringClient(client *httputil.Client, url string, batchSize int) *ScoringClient {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &ScoringClient{client: client, url: url, batchSize: batchSize}
}

// ScoringRow is the wire form of one unlabeled feature row
type ScoringRow struct {
	EntityID         string             `json:"entity_id"`
	SnapshotDate     string             `json:"snapshot_date"`
	Firmographics    map[string]*string `json:"firmographics"`
	EmployeeMidpoint *float64           `json:"employee_midpoint,omitempty"`
	Features         map[string]float64 `json:"features"`
	RecencyDays      int                `json:"recency_days"`
}

// ScoringRequest is one batch sent to the collaborator
type ScoringRequest struct {
	Rows []ScoringRow `json:"rows"`
}

// ScoringResponse carries one score per requested row
type ScoringResponse struct {
	Scores []struct {
		EntityID     string  `json:"entity_id"`
		SnapshotDate string  `json:"snapshot_date"`
		Score        float64 `json:"score"`
	} `json:"scores"`
}

// Score sends the table in batches and collects the returned scores.
// Scores for rows outside the batch are rejected.
func (s *ScoringClient) Score(ctx context.Context, table *contracts.FeatureTable) ([]Score, error) {
	var scores []Score

	for start := 0; start < len(table.Rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(table.Rows) {
			end = len(table.Rows)
		}
		batch := table.Rows[start:end]

		req := ScoringRequest{Rows: make([]ScoringRow, len(batch))}
		sent := make(map[contracts.RowKey]bool, len(batch))
		for i := range batch {
			req.Rows[i] = toScoringRow(table, &batch[i])
			sent[batch[i].Key()] = true
		}

		var resp ScoringResponse
		if err := s.client.PostJSON(ctx, s.url, req, &resp); err != nil {
			return nil, fmt.Errorf("score rows %d-%d: %w", start, end, err)
		}

		for _, sc := range resp.Scores {
			date, err := contracts.ParseDate(sc.SnapshotDate)
			if err != nil {
				return nil, fmt.Errorf("score rows %d-%d: snapshot_date %q: %w", start, end, sc.SnapshotDate, err)
			}
			score := Score{EntityID: sc.EntityID, SnapshotDate: date, Score: sc.Score}
			if !sent[score.Key()] {
				return nil, &UnknownRowError{Key: score.Key()}
			}
			scores = append(scores, score)
		}
	}

	return scores, nil
}

func toScoringRow(table *contracts.FeatureTable, row *contracts.FeatureRow) ScoringRow {
	out := ScoringRow{
		EntityID:         row.EntityID,
		SnapshotDate:     row.SnapshotDate.Format(contracts.DateLayout),
		Firmographics:    make(map[string]*string, len(table.FirmographicColumns)),
		EmployeeMidpoint: row.EmployeeMidpoint,
		Features:         make(map[string]float64, len(row.Features)),
		RecencyDays:      row.RecencyDays,
	}
	for i, col := range table.FirmographicColumns {
		if i >= len(row.Firmographics) || row.Firmographics[i].Missing {
			out.Firmographics[col] = nil
			continue
		}
		v := row.Firmographics[i].Value
		out.Firmographics[col] = &v
	}
	for i, name := range table.Schema.Names {
		if i < len(row.Features) {
			out.Features[name] = row.Features[i]
		}
	}
	return out
}
