package contracts

import "time"

// RunReport summarizes one pipeline run.
// Per-entity sparsity is absorbed and recorded here, never fatal.
type RunReport struct {
	RunID      string    `json:"run_id"`
	ConfigHash string    `json:"config_hash"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Entities           int `json:"entities"`
	ConvertingEntities int `json:"converting_entities"`
	RawUsageRows       int `json:"raw_usage_rows"`

	DroppedAfterConversion int `json:"dropped_after_conversion"`
	UnknownEntityRows      int `json:"unknown_entity_rows"`
	MissingFirmographics   int `json:"missing_firmographics"`

	// EmptyActivity counts entities without any usable daily record
	EmptyActivity int `json:"empty_activity"`
	// NoSnapshots counts entities with activity but no eligible cadence date
	NoSnapshots int `json:"no_snapshots"`

	Rows      int `json:"rows"`
	Positives int `json:"positives"`

	Stages []StageResult `json:"stages,omitempty"`
}

// Duration returns the wall time of the run
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// PositiveRate returns positives / rows
func (r *RunReport) PositiveRate() float64 {
	if r.Rows == 0 {
		return 0.0
	}
	return float64(r.Positives) / float64(r.Rows)
}
