package contracts

import "time"

// Snapshot is one entity observed as of one cadence date
// ⭐ SSOT: S2 → S3 → S4 → S5 스냅샷 전달
//
// Created by the snapshot generator, enriched by the feature builder and the
// label assigner, then consumed read-only by the assembler.
type Snapshot struct {
	EntityID string    `json:"entity_id"`
	Date     time.Time `json:"snapshot_date"`

	// Features follows FeatureSchema.Names order
	Features []float64 `json:"features"`

	// RecencyDays is days since the last day with any nonzero counter
	RecencyDays int `json:"recency_days"`

	Label int `json:"label"`
}

// FeatureSchema names the window/recency/momentum columns
type FeatureSchema struct {
	Names []string `json:"names"`
}

// Index returns the position of a feature column, or -1
func (s FeatureSchema) Index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Len returns the number of feature columns
func (s FeatureSchema) Len() int {
	return len(s.Names)
}
