package handoff

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wonny/leadscore/internal/contracts"
)

// Score is one externally supplied conversion probability
type Score struct {
	EntityID     string    `json:"entity_id"`
	SnapshotDate time.Time `json:"snapshot_date"`
	Score        float64   `json:"score"`
}

// Key returns the row key the score refers to
func (s Score) Key() contracts.RowKey {
	return contracts.RowKey{EntityID: s.EntityID, SnapshotDate: contracts.Day(s.SnapshotDate)}
}

// Ranked is a feature row with its score and 1-based rank
type Ranked struct {
	Rank  int                   `json:"rank"`
	Score float64               `json:"score"`
	Row   *contracts.FeatureRow `json:"row"`
}

// UnknownRowError is returned for a score that refers to no table row.
// Collaborators may only address rows the table contains.
type UnknownRowError struct {
	Key contracts.RowKey
}

func (e *UnknownRowError) Error() string {
	return fmt.Sprintf("score for unknown row: entity %q snapshot %s",
		e.Key.EntityID, e.Key.SnapshotDate.Format(contracts.DateLayout))
}

// InvalidScoreError is returned for a score that cannot be ranked:
// a non-finite value or a second score for the same row.
type InvalidScoreError struct {
	Key    contracts.RowKey
	Reason string
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid score for entity %q snapshot %s: %s",
		e.Key.EntityID, e.Key.SnapshotDate.Format(contracts.DateLayout), e.Reason)
}

// TopK returns the k highest scored rows, ties broken by table order.
// Rows without a score are not ranked; k <= 0 ranks every scored row.
// Every score must be finite and name a distinct table row.
// The table is never modified.
func TopK(table *contracts.FeatureTable, scores []Score, k int) ([]Ranked, error) {
	index := table.Index()

	type candidate struct {
		pos   int
		score float64
	}
	byPos := make(map[int]float64, len(scores))
	for _, s := range scores {
		pos, ok := index[s.Key()]
		if !ok {
			return nil, &UnknownRowError{Key: s.Key()}
		}
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
			return nil, &InvalidScoreError{Key: s.Key(), Reason: fmt.Sprintf("non-finite value %v", s.Score)}
		}
		if _, dup := byPos[pos]; dup {
			return nil, &InvalidScoreError{Key: s.Key(), Reason: "duplicate score"}
		}
		byPos[pos] = s.Score
	}

	candidates := make([]candidate, 0, len(byPos))
	for pos, score := range byPos {
		candidates = append(candidates, candidate{pos: pos, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].pos < candidates[j].pos
	})

	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}

	out := make([]Ranked, k)
	for i := 0; i < k; i++ {
		c := candidates[i]
		row := table.Rows[c.pos]
		out[i] = Ranked{Rank: i + 1, Score: c.score, Row: &row}
	}
	return out, nil
}
