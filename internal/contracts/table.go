package contracts

import (
	"strconv"
	"time"
)

// FeatureRow is the flat representation of one labeled snapshot
type FeatureRow struct {
	EntityID      string      `json:"entity_id"`
	SnapshotDate  time.Time   `json:"snapshot_date"`
	Firmographics []Attribute `json:"firmographics"`

	// EmployeeMidpoint is nil when not configured or unparseable
	EmployeeMidpoint *float64 `json:"employee_midpoint,omitempty"`

	Features    []float64 `json:"features"`
	RecencyDays int       `json:"recency_days"`
	Label       int       `json:"label"`
}

// RowKey identifies one feature row
type RowKey struct {
	EntityID     string
	SnapshotDate time.Time
}

// Key returns the (entity, snapshot date) key of the row
func (r *FeatureRow) Key() RowKey {
	return RowKey{EntityID: r.EntityID, SnapshotDate: Day(r.SnapshotDate)}
}

// FeatureTable is the sole handoff to the training and segmentation
// collaborators
// ⭐ SSOT: S5 → 외부 협력자 전달
type FeatureTable struct {
	FirmographicColumns []string      `json:"firmographic_columns"`
	EmployeeMidpoint    bool          `json:"employee_midpoint"`
	Schema              FeatureSchema `json:"schema"`
	Rows                []FeatureRow  `json:"rows"`
}

// Count returns the number of rows
func (t *FeatureTable) Count() int {
	return len(t.Rows)
}

// Positives returns the number of rows with label 1
func (t *FeatureTable) Positives() int {
	n := 0
	for i := range t.Rows {
		if t.Rows[i].Label == 1 {
			n++
		}
	}
	return n
}

// Find returns the row for (entity, date)
func (t *FeatureTable) Find(entityID string, date time.Time) (*FeatureRow, bool) {
	day := Day(date)
	for i := range t.Rows {
		if t.Rows[i].EntityID == entityID && t.Rows[i].SnapshotDate.Equal(day) {
			return &t.Rows[i], true
		}
	}
	return nil, false
}

// ByEntity returns the rows of a single entity in table order
func (t *FeatureTable) ByEntity(entityID string) []FeatureRow {
	var rows []FeatureRow
	for i := range t.Rows {
		if t.Rows[i].EntityID == entityID {
			rows = append(rows, t.Rows[i])
		}
	}
	return rows
}

// Index builds a key → position lookup
func (t *FeatureTable) Index() map[RowKey]int {
	idx := make(map[RowKey]int, len(t.Rows))
	for i := range t.Rows {
		idx[t.Rows[i].Key()] = i
	}
	return idx
}

// Fixed output columns around the configured and generated ones
const (
	ColumnEntityID         = "entity_id"
	ColumnSnapshotDate     = "snapshot_date"
	ColumnEmployeeMidpoint = "employee_midpoint"
	ColumnRecencyDays      = "recency_days"
	ColumnLabel            = "label"
)

// Header returns the flat column names
func (t *FeatureTable) Header() []string {
	header := []string{ColumnEntityID, ColumnSnapshotDate}
	header = append(header, t.FirmographicColumns...)
	if t.EmployeeMidpoint {
		header = append(header, ColumnEmployeeMidpoint)
	}
	header = append(header, t.Schema.Names...)
	header = append(header, ColumnRecencyDays, ColumnLabel)
	return header
}

// Record flattens a row into strings following Header order.
// Missing values become empty cells.
func (t *FeatureTable) Record(row *FeatureRow) []string {
	rec := make([]string, 0, len(t.Header()))
	rec = append(rec, row.EntityID, row.SnapshotDate.Format(DateLayout))
	for _, attr := range row.Firmographics {
		if attr.Missing {
			rec = append(rec, "")
			continue
		}
		rec = append(rec, attr.Value)
	}
	if t.EmployeeMidpoint {
		if row.EmployeeMidpoint == nil {
			rec = append(rec, "")
		} else {
			rec = append(rec, formatFloat(*row.EmployeeMidpoint))
		}
	}
	for _, v := range row.Features {
		rec = append(rec, formatFloat(v))
	}
	rec = append(rec, strconv.Itoa(row.RecencyDays), strconv.Itoa(row.Label))
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
