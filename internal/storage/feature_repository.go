package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/leadscore/internal/contracts"
)

// ErrNoRun is returned when no feature run has been persisted yet
var ErrNoRun = errors.New("no feature run found")

// tableMeta is the column layout persisted with each run
type tableMeta struct {
	FirmographicColumns []string `json:"firmographic_columns"`
	EmployeeMidpoint    bool     `json:"employee_midpoint"`
	FeatureNames        []string `json:"feature_names"`
}

// FeatureRepository persists feature tables and serves the latest one
// ⭐ SSOT: feature_runs / feature_rows 접근은 여기서만
type FeatureRepository struct {
	pool   *pgxpool.Pool
	schema string
}

// NewFeatureRepository creates a new FeatureRepository
func NewFeatureRepository(pool *pgxpool.Pool, schema string) *FeatureRepository {
	return &FeatureRepository{pool: pool, schema: schema}
}

func (r *FeatureRepository) table(name string) string {
	return pgx.Identifier{r.schema, name}.Sanitize()
}

// Write implements contracts.FeatureWriter.
// The run row and all feature rows are committed in one transaction.
func (r *FeatureRepository) Write(ctx context.Context, report *contracts.RunReport, table *contracts.FeatureTable) error {
	runID, err := uuid.Parse(report.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", report.RunID, err)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	metaJSON, err := json.Marshal(tableMeta{
		FirmographicColumns: table.FirmographicColumns,
		EmployeeMidpoint:    table.EmployeeMidpoint,
		FeatureNames:        table.Schema.Names,
	})
	if err != nil {
		return fmt.Errorf("marshal table meta: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO %s (
			run_id, config_hash, started_at, finished_at,
			row_count, positives, report, table_meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.table("feature_runs"))

	_, err = tx.Exec(ctx, query,
		runID,
		report.ConfigHash,
		report.StartedAt,
		report.FinishedAt,
		table.Count(),
		table.Positives(),
		reportJSON,
		metaJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{r.schema, "feature_rows"},
		[]string{"run_id", "entity_id", "snapshot_date", "firmographics", "employee_midpoint", "features", "recency_days", "label"},
		pgx.CopyFromSlice(len(table.Rows), func(i int) ([]any, error) {
			row := &table.Rows[i]
			return []any{
				runID,
				row.EntityID,
				row.SnapshotDate,
				firmographicsToSQL(row.Firmographics),
				row.EmployeeMidpoint,
				row.Features,
				row.RecencyDays,
				int16(row.Label),
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy feature rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// LatestRun implements contracts.FeatureStore
func (r *FeatureRepository) LatestRun(ctx context.Context) (*contracts.RunReport, error) {
	report, _, err := r.latest(ctx)
	return report, err
}

// LatestTable implements contracts.FeatureStore
func (r *FeatureRepository) LatestTable(ctx context.Context) (*contracts.FeatureTable, error) {
	report, meta, err := r.latest(ctx)
	if err != nil {
		return nil, err
	}
	runID, err := uuid.Parse(report.RunID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", report.RunID, err)
	}
	return r.loadTable(ctx, runID, meta)
}

func (r *FeatureRepository) latest(ctx context.Context) (*contracts.RunReport, *tableMeta, error) {
	query := fmt.Sprintf(`
		SELECT report, table_meta
		FROM %s
		ORDER BY finished_at DESC
		LIMIT 1
	`, r.table("feature_runs"))

	var reportJSON, metaJSON []byte
	err := r.pool.QueryRow(ctx, query).Scan(&reportJSON, &metaJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNoRun
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query latest run: %w", err)
	}

	report := &contracts.RunReport{}
	if err := json.Unmarshal(reportJSON, report); err != nil {
		return nil, nil, fmt.Errorf("unmarshal report: %w", err)
	}
	meta := &tableMeta{}
	if err := json.Unmarshal(metaJSON, meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshal table meta: %w", err)
	}

	return report, meta, nil
}

func (r *FeatureRepository) loadTable(ctx context.Context, runID uuid.UUID, meta *tableMeta) (*contracts.FeatureTable, error) {
	query := fmt.Sprintf(`
		SELECT entity_id, snapshot_date, firmographics, employee_midpoint,
			   features, recency_days, label
		FROM %s
		WHERE run_id = $1
		ORDER BY snapshot_date, entity_id
	`, r.table("feature_rows"))

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query feature rows: %w", err)
	}
	defer rows.Close()

	table := &contracts.FeatureTable{
		FirmographicColumns: meta.FirmographicColumns,
		EmployeeMidpoint:    meta.EmployeeMidpoint,
		Schema:              contracts.FeatureSchema{Names: meta.FeatureNames},
	}

	for rows.Next() {
		var (
			row   contracts.FeatureRow
			firmo []*string
			label int16
			date  time.Time
		)
		if err := rows.Scan(&row.EntityID, &date, &firmo, &row.EmployeeMidpoint,
			&row.Features, &row.RecencyDays, &label); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		row.SnapshotDate = contracts.Day(date)
		row.Firmographics = firmographicsFromSQL(firmo)
		row.Label = int(label)
		table.Rows = append(table.Rows, row)
	}

	return table, rows.Err()
}

// Missing firmographics are stored as NULL array elements
func firmographicsToSQL(attrs []contracts.Attribute) []*string {
	out := make([]*string, len(attrs))
	for i := range attrs {
		if !attrs[i].Missing {
			v := attrs[i].Value
			out[i] = &v
		}
	}
	return out
}

func firmographicsFromSQL(values []*string) []contracts.Attribute {
	out := make([]contracts.Attribute, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = contracts.MissingAttribute()
			continue
		}
		out[i] = contracts.Present(*v)
	}
	return out
}
