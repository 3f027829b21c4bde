package handoff

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/wonny/leadscore/internal/contracts"
)

// ReadScores parses entity_id,snapshot_date,score rows (header required,
// column order free)
func ReadScores(in io.Reader) ([]Score, error) {
	r := csv.NewReader(in)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read scores header: %w", err)
	}

	pos := map[string]int{}
	for i, name := range header {
		pos[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"entity_id", "snapshot_date", "score"} {
		if _, ok := pos[required]; !ok {
			return nil, fmt.Errorf("scores: missing column %q", required)
		}
	}
	r.FieldsPerRecord = len(header)

	var scores []Score
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scores line %d: %w", line, err)
		}

		date, err := contracts.ParseDate(strings.TrimSpace(rec[pos["snapshot_date"]]))
		if err != nil {
			return nil, fmt.Errorf("scores line %d: snapshot_date: %w", line, err)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(rec[pos["score"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("scores line %d: score: %w", line, err)
		}
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("scores line %d: score %q is not finite", line, rec[pos["score"]])
		}

		scores = append(scores, Score{
			EntityID:     strings.TrimSpace(rec[pos["entity_id"]]),
			SnapshotDate: date,
			Score:        score,
		})
	}

	return scores, nil
}
