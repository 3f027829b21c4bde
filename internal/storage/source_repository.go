package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/pipelineconfig"
	"github.com/wonny/leadscore/pkg/logger"
)

// SourceTables names the three raw input tables (optionally schema-qualified)
type SourceTables struct {
	Paying    string
	NonPaying string
	Usage     string
}

// SourceRepository reads the raw inputs from Postgres.
// Column names come from the pipeline config; configured firmographic
// columns absent from a table are treated as missing, not as an error.
type SourceRepository struct {
	pool    *pgxpool.Pool
	tables  SourceTables
	columns pipelineconfig.Columns
	logger  *logger.Logger
}

// NewSourceRepository creates a new SourceRepository
func NewSourceRepository(pool *pgxpool.Pool, tables SourceTables, columns pipelineconfig.Columns, log *logger.Logger) *SourceRepository {
	return &SourceRepository{
		pool:    pool,
		tables:  tables,
		columns: columns,
		logger:  log.WithComponent("storage.source"),
	}
}

// Read implements contracts.SourceReader
func (r *SourceRepository) Read(ctx context.Context) (*contracts.SourceTables, error) {
	out := &contracts.SourceTables{}

	var err error
	if out.Paying, err = r.readEntities(ctx, r.tables.Paying, true); err != nil {
		return nil, fmt.Errorf("read paying entities: %w", err)
	}
	if out.NonPaying, err = r.readEntities(ctx, r.tables.NonPaying, false); err != nil {
		return nil, fmt.Errorf("read non-paying entities: %w", err)
	}
	if out.Usage, err = r.readUsage(ctx); err != nil {
		return nil, fmt.Errorf("read usage: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"paying":     len(out.Paying),
		"non_paying": len(out.NonPaying),
		"usage_rows": len(out.Usage),
	}).Info("Source tables loaded from postgres")

	return out, nil
}

func (r *SourceRepository) readEntities(ctx context.Context, table string, paying bool) ([]contracts.SourceEntity, error) {
	present, err := r.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	// 설정 컬럼명 → 실제 컬럼명 (대소문자 무시)
	cols := r.columns
	cols.EntityID = resolve(present, cols.EntityID)
	cols.ConversionDate = resolve(present, cols.ConversionDate)
	cols.Revenue = resolve(present, cols.Revenue)

	var firmographics, actual []string
	for _, col := range r.columns.Firmographics {
		if name, ok := present[strings.ToLower(col)]; ok {
			firmographics = append(firmographics, col)
			actual = append(actual, name)
		}
	}
	_, hasRevenue := present[strings.ToLower(r.columns.Revenue)]
	withRevenue := paying && r.columns.Revenue != "" && hasRevenue

	query := entityQuery(table, cols, actual, paying, withRevenue)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []contracts.SourceEntity
	for rows.Next() {
		var (
			id      string
			conv    *time.Time
			revenue *float64
			values  = make([]*string, len(firmographics))
		)

		dest := []any{&id}
		if paying {
			dest = append(dest, &conv)
		}
		if withRevenue {
			dest = append(dest, &revenue)
		}
		for i := range values {
			dest = append(dest, &values[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		src := contracts.SourceEntity{
			ID:             id,
			ConversionDate: conv,
			Revenue:        revenue,
			Firmographics:  make(map[string]string, len(firmographics)),
		}
		for i, col := range firmographics {
			if values[i] != nil {
				src.Firmographics[col] = *values[i]
			}
		}
		out = append(out, src)
	}

	return out, rows.Err()
}

func (r *SourceRepository) readUsage(ctx context.Context) ([]contracts.RawUsage, error) {
	present, err := r.tableColumns(ctx, r.tables.Usage)
	if err != nil {
		return nil, err
	}

	cols := r.columns
	cols.EntityID = resolve(present, cols.EntityID)
	cols.EventTime = resolve(present, cols.EventTime)
	cols.Counters = make([]string, len(r.columns.Counters))
	for i, name := range r.columns.Counters {
		cols.Counters[i] = resolve(present, name)
	}

	rows, err := r.pool.Query(ctx, usageQuery(r.tables.Usage, cols))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.tables.Usage, err)
	}
	defer rows.Close()

	var out []contracts.RawUsage
	counters := make([]float64, len(r.columns.Counters))
	for rows.Next() {
		row := contracts.RawUsage{Counters: make(map[string]float64, len(counters))}

		dest := []any{&row.EntityID, &row.Timestamp}
		for i := range counters {
			dest = append(dest, &counters[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}

		for i, name := range r.columns.Counters {
			row.Counters[name] = counters[i]
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// tableColumns maps lowercased column names to their actual names
func (r *SourceRepository) tableColumns(ctx context.Context, table string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", quoteTable(table)))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	present := make(map[string]string)
	for _, fd := range rows.FieldDescriptions() {
		present[strings.ToLower(fd.Name)] = fd.Name
	}
	return present, rows.Err()
}

// resolve returns the actual column name, or name itself when absent
// (the query then fails with a clear missing-column error)
func resolve(present map[string]string, name string) string {
	if actual, ok := present[strings.ToLower(name)]; ok {
		return actual
	}
	return name
}

// entityQuery selects id, [conversion], [revenue], firmographics... as text
func entityQuery(table string, c pipelineconfig.Columns, firmographics []string, paying, withRevenue bool) string {
	cols := []string{fmt.Sprintf("TRIM(%s::text)", quoteIdent(c.EntityID))}
	if paying {
		cols = append(cols, fmt.Sprintf("%s::timestamptz", quoteIdent(c.ConversionDate)))
	}
	if withRevenue {
		cols = append(cols, fmt.Sprintf("%s::float8", quoteIdent(c.Revenue)))
	}
	for _, f := range firmographics {
		cols = append(cols, fmt.Sprintf("%s::text", quoteIdent(f)))
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteTable(table))
}

// usageQuery selects id, event time and counters (NULL → 0)
func usageQuery(table string, c pipelineconfig.Columns) string {
	cols := []string{
		fmt.Sprintf("TRIM(%s::text)", quoteIdent(c.EntityID)),
		fmt.Sprintf("%s::timestamptz", quoteIdent(c.EventTime)),
	}
	for _, name := range c.Counters {
		cols = append(cols, fmt.Sprintf("COALESCE(%s, 0)::float8", quoteIdent(name)))
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteTable(table))
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// quoteTable quotes "schema.table" as two identifiers
func quoteTable(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
