package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/pipelineconfig"
	"github.com/wonny/leadscore/pkg/logger"
)

// Paths locates the three source tables
type Paths struct {
	Paying    string
	NonPaying string
	Usage     string
}

// CSVReader reads the source tables from CSV files with a header row.
// Column names come from the pipeline config and match case-insensitively.
type CSVReader struct {
	paths   Paths
	columns pipelineconfig.Columns
	logger  *logger.Logger
}

// NewCSVReader creates a new CSV source reader
func NewCSVReader(paths Paths, columns pipelineconfig.Columns, log *logger.Logger) *CSVReader {
	return &CSVReader{
		paths:   paths,
		columns: columns,
		logger:  log.WithComponent("ingest"),
	}
}

// Read implements contracts.SourceReader
func (r *CSVReader) Read(ctx context.Context) (*contracts.SourceTables, error) {
	tables := &contracts.SourceTables{}

	var err error
	if tables.Paying, err = r.readEntities(ctx, r.paths.Paying, true); err != nil {
		return nil, fmt.Errorf("paying table: %w", err)
	}
	if tables.NonPaying, err = r.readEntities(ctx, r.paths.NonPaying, false); err != nil {
		return nil, fmt.Errorf("non-paying table: %w", err)
	}
	if tables.Usage, err = r.readUsage(ctx, r.paths.Usage); err != nil {
		return nil, fmt.Errorf("usage table: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"paying":     len(tables.Paying),
		"non_paying": len(tables.NonPaying),
		"usage_rows": len(tables.Usage),
	}).Info("Source tables loaded")

	return tables, nil
}

// ReadEntities parses a paying (paying=true) or non-paying entity table
func (r *CSVReader) ReadEntities(in io.Reader, paying bool) ([]contracts.SourceEntity, error) {
	t, err := newTable(in)
	if err != nil {
		return nil, err
	}

	idCol, err := t.require(r.columns.EntityID)
	if err != nil {
		return nil, err
	}
	convCol, revCol := -1, -1
	if paying {
		if convCol, err = t.require(r.columns.ConversionDate); err != nil {
			return nil, err
		}
		revCol = t.index(r.columns.Revenue)
	}

	var out []contracts.SourceEntity
	for {
		rec, line, err := t.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		src := contracts.SourceEntity{
			ID:            rec[idCol],
			Firmographics: make(map[string]string, len(r.columns.Firmographics)),
		}

		if paying {
			conv, err := ParseTimestamp(rec[convCol])
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, r.columns.ConversionDate, err)
			}
			src.ConversionDate = &conv

			if revCol >= 0 && strings.TrimSpace(rec[revCol]) != "" {
				rev, err := strconv.ParseFloat(strings.TrimSpace(rec[revCol]), 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %s: %w", line, r.columns.Revenue, err)
				}
				src.Revenue = &rev
			}
		}

		// 헤더에 없는 firmographic 컬럼은 map에서 빠짐 → registry에서 missing 처리
		for _, col := range r.columns.Firmographics {
			if i := t.index(col); i >= 0 {
				src.Firmographics[col] = rec[i]
			}
		}

		out = append(out, src)
	}
}

// ReadUsage parses the usage events table. Blank counter cells are zero.
func (r *CSVReader) ReadUsage(in io.Reader) ([]contracts.RawUsage, error) {
	t, err := newTable(in)
	if err != nil {
		return nil, err
	}

	idCol, err := t.require(r.columns.EntityID)
	if err != nil {
		return nil, err
	}
	timeCol, err := t.require(r.columns.EventTime)
	if err != nil {
		return nil, err
	}
	counterCols := make([]int, len(r.columns.Counters))
	for i, name := range r.columns.Counters {
		if counterCols[i], err = t.require(name); err != nil {
			return nil, err
		}
	}

	var out []contracts.RawUsage
	for {
		rec, line, err := t.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		ts, err := ParseTimestamp(rec[timeCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, r.columns.EventTime, err)
		}

		row := contracts.RawUsage{
			EntityID:  strings.TrimSpace(rec[idCol]),
			Timestamp: ts,
			Counters:  make(map[string]float64, len(counterCols)),
		}
		for i, col := range counterCols {
			cell := strings.TrimSpace(rec[col])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, r.columns.Counters[i], err)
			}
			row.Counters[r.columns.Counters[i]] = v
		}

		out = append(out, row)
	}
}

func (r *CSVReader) readEntities(ctx context.Context, path string, paying bool) ([]contracts.SourceEntity, error) {
	f, err := openChecked(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return r.ReadEntities(f, paying)
}

func (r *CSVReader) readUsage(ctx context.Context, path string) ([]contracts.RawUsage, error) {
	f, err := openChecked(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return r.ReadUsage(f)
}

func openChecked(ctx context.Context, path string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(path)
}

// table is a header-indexed csv.Reader
type table struct {
	reader *csv.Reader
	header map[string]int
	line   int
}

func newTable(in io.Reader) (*table, error) {
	reader := csv.NewReader(in)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	reader.FieldsPerRecord = len(header)

	t := &table{reader: reader, header: make(map[string]int, len(header)), line: 1}
	for i, name := range header {
		// UTF-8 BOM (엑셀 export)
		name = strings.TrimPrefix(name, "\ufeff")
		t.header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return t, nil
}

func (t *table) index(name string) int {
	if name == "" {
		return -1
	}
	if i, ok := t.header[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

func (t *table) require(name string) (int, error) {
	i := t.index(name)
	if i < 0 {
		return -1, fmt.Errorf("missing required column %q", name)
	}
	return i, nil
}

func (t *table) next() ([]string, int, error) {
	rec, err := t.reader.Read()
	t.line++
	if err != nil {
		return nil, t.line, err
	}
	return rec, t.line, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	contracts.DateLayout,
	"2006/01/02",
}

// ParseTimestamp accepts the date/time layouts seen in source exports.
// Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
