package s2_snapshots

import (
	"time"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/pkg/logger"
)

// Config holds cadence options
type Config struct {
	// Daily emits a snapshot for every day in the activity range
	Daily bool
	// Weekday is the weekly cadence boundary (ignored when Daily)
	Weekday time.Weekday
}

// Generator emits snapshots on cadence boundaries
// ⭐ SSOT: 누수 방지 제외 조건은 여기서만 적용
type Generator struct {
	config Config
	logger *logger.Logger
}

// NewGenerator creates a new snapshot generator
func NewGenerator(config Config, log *logger.Logger) *Generator {
	return &Generator{
		config: config,
		logger: log.WithComponent(contracts.StageSnapshots.String()),
	}
}

// Generate returns the snapshots of one entity in date order.
//
// A cadence date is kept when it lies within [series.Start, series.End] and
// passes Eligible. Entities too short-lived to contain a cadence date, or
// converting before the first one, yield nil.
func (g *Generator) Generate(series *contracts.DailySeries, entity *contracts.Entity) []contracts.Snapshot {
	if series == nil || series.Empty() {
		return nil
	}

	var snapshots []contracts.Snapshot
	excluded := 0

	for _, date := range g.CadenceDates(series.Start(), series.End()) {
		if !Eligible(date, entity) {
			excluded++
			continue
		}
		snapshots = append(snapshots, contracts.Snapshot{
			EntityID: entity.ID,
			Date:     date,
		})
	}

	if excluded > 0 {
		// S1이 전환일 이후 사용량을 이미 잘라내므로 정상 입력에선 0
		g.logger.WithEntity(entity.ID).
			WithField("excluded", excluded).
			Warn("cadence dates on/after conversion excluded")
	}

	return snapshots
}

// CadenceDates lists cadence boundaries between start and end (inclusive)
func (g *Generator) CadenceDates(start, end time.Time) []time.Time {
	start, end = contracts.Day(start), contracts.Day(end)
	if end.Before(start) {
		return nil
	}

	step := 7
	first := start
	if g.config.Daily {
		step = 1
	} else {
		offset := (int(g.config.Weekday) - int(start.Weekday()) + 7) % 7
		first = contracts.AddDays(start, offset)
	}

	var dates []time.Time
	for d := first; !d.After(end); d = contracts.AddDays(d, step) {
		dates = append(dates, d)
	}
	return dates
}

// Eligible is the leakage exclusion predicate: a snapshot date must be
// strictly before the entity's conversion date.
func Eligible(date time.Time, entity *contracts.Entity) bool {
	if entity.ConversionDate == nil {
		return true
	}
	return contracts.Day(date).Before(*entity.ConversionDate)
}

// CheckSnapshot returns a LeakageViolation when s fails Eligible.
// S4 and S5 call it as an assertion; they never filter.
func CheckSnapshot(s *contracts.Snapshot, entity *contracts.Entity) error {
	if Eligible(s.Date, entity) {
		return nil
	}
	return &contracts.LeakageViolation{
		EntityID:       entity.ID,
		SnapshotDate:   s.Date,
		ConversionDate: *entity.ConversionDate,
	}
}

// CheckLeakage runs CheckSnapshot over one entity's snapshots
func CheckLeakage(snapshots []contracts.Snapshot, entity *contracts.Entity) error {
	for i := range snapshots {
		if err := CheckSnapshot(&snapshots[i], entity); err != nil {
			return err
		}
	}
	return nil
}
