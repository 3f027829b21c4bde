package s5_assembly

import (
	"fmt"
	"sort"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/s2_snapshots"
	"github.com/wonny/leadscore/pkg/logger"
)

// Config holds assembler options
type Config struct {
	Firmographics []string
	// EmployeeRange names the firmographic parsed into employee_midpoint ("" = off)
	EmployeeRange string
	Schema        contracts.FeatureSchema
}

// Assembler joins labeled snapshots with firmographics into the final table
// ⭐ SSOT: S5 최종 테이블 불변식 검증은 여기서만
type Assembler struct {
	config Config
	logger *logger.Logger
}

// NewAssembler creates a new feature table assembler
func NewAssembler(config Config, log *logger.Logger) *Assembler {
	return &Assembler{
		config: config,
		logger: log.WithComponent(contracts.StageAssembly.String()),
	}
}

// Assemble produces one flat row per (entity, snapshot date), sorted by
// snapshot date then entity id.
//
// Fatal: a snapshot not strictly before its entity's conversion date
// (LeakageViolation) and a repeated (entity, date) pair (DuplicateRowError).
// Snapshots are read only.
func (a *Assembler) Assemble(entities *contracts.EntitySet, snapshots []contracts.Snapshot) (*contracts.FeatureTable, error) {
	table := &contracts.FeatureTable{
		FirmographicColumns: a.config.Firmographics,
		EmployeeMidpoint:    a.config.EmployeeRange != "",
		Schema:              a.config.Schema,
		Rows:                make([]contracts.FeatureRow, 0, len(snapshots)),
	}

	seen := make(map[contracts.RowKey]struct{}, len(snapshots))
	unparsed := 0

	for i := range snapshots {
		s := &snapshots[i]

		entity, ok := entities.Get(s.EntityID)
		if !ok {
			return nil, fmt.Errorf("snapshot references unknown entity %q", s.EntityID)
		}

		if err := s2_snapshots.CheckSnapshot(s, entity); err != nil {
			return nil, err
		}

		if len(s.Features) != a.config.Schema.Len() {
			return nil, fmt.Errorf("entity %s snapshot %s: %d features, schema has %d",
				s.EntityID, s.Date.Format(contracts.DateLayout), len(s.Features), a.config.Schema.Len())
		}

		row := contracts.FeatureRow{
			EntityID:      s.EntityID,
			SnapshotDate:  contracts.Day(s.Date),
			Firmographics: a.firmographics(entity),
			Features:      append([]float64(nil), s.Features...),
			RecencyDays:   s.RecencyDays,
			Label:         s.Label,
		}

		key := row.Key()
		if _, dup := seen[key]; dup {
			return nil, &contracts.DuplicateRowError{EntityID: key.EntityID, SnapshotDate: key.SnapshotDate}
		}
		seen[key] = struct{}{}

		if table.EmployeeMidpoint {
			attr := entity.Firmographic(a.config.EmployeeRange)
			if mid, ok := ParseEmployeeRange(attr.Value); ok && !attr.Missing {
				row.EmployeeMidpoint = &mid
			} else if !attr.Missing {
				unparsed++
			}
		}

		table.Rows = append(table.Rows, row)
	}

	SortRows(table.Rows)

	a.logger.WithFields(map[string]interface{}{
		"rows":               table.Count(),
		"positives":          table.Positives(),
		"features":           table.Schema.Len(),
		"unparsed_employees": unparsed,
	}).Info("Feature table assembled")

	return table, nil
}

func (a *Assembler) firmographics(entity *contracts.Entity) []contracts.Attribute {
	attrs := make([]contracts.Attribute, len(a.config.Firmographics))
	for i, col := range a.config.Firmographics {
		attrs[i] = entity.Firmographic(col)
	}
	return attrs
}

// SortRows orders rows by snapshot date, then entity id
func SortRows(rows []contracts.FeatureRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].SnapshotDate.Equal(rows[j].SnapshotDate) {
			return rows[i].SnapshotDate.Before(rows[j].SnapshotDate)
		}
		return rows[i].EntityID < rows[j].EntityID
	})
}
