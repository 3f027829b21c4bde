package contracts

import (
	"context"
	"time"
)

// SourceTables holds the three raw inputs of a run
type SourceTables struct {
	Paying    []SourceEntity
	NonPaying []SourceEntity
	Usage     []RawUsage
}

// SourceEntity is one raw row of the paying or non-paying table.
// Firmographics holds only the columns present in the source row.
type SourceEntity struct {
	ID             string
	ConversionDate *time.Time
	Revenue        *float64
	Firmographics  map[string]string
}

// SourceReader loads the raw inputs (CSV or Postgres)
// ⭐ SSOT: 입력 소스 인터페이스
type SourceReader interface {
	Read(ctx context.Context) (*SourceTables, error)
}

// FeatureWriter persists an assembled feature table
// ⭐ SSOT: 출력 싱크 인터페이스
type FeatureWriter interface {
	Write(ctx context.Context, report *RunReport, table *FeatureTable) error
}

// FeatureStore serves the latest persisted table to collaborators
type FeatureStore interface {
	LatestRun(ctx context.Context) (*RunReport, error)
	LatestTable(ctx context.Context) (*FeatureTable, error)
}
