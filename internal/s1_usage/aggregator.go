package s1_usage

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/pkg/logger"
)

// Config holds aggregator options
type Config struct {
	// Counters is the configured usage counter list (output order)
	Counters []string
}

// Aggregator converts raw usage rows into dense per-entity daily series
// ⭐ SSOT: S1 일별 사용량 집계는 여기서만
type Aggregator struct {
	config Config
	logger *logger.Logger
}

// NewAggregator creates a new usage aggregator
func NewAggregator(config Config, log *logger.Logger) *Aggregator {
	return &Aggregator{
		config: config,
		logger: log.WithComponent(contracts.StageUsage.String()),
	}
}

// Grouped is raw usage split per entity
type Grouped struct {
	ByEntity map[string][]contracts.RawUsage
	// Unknown counts rows whose entity is not registered
	Unknown int
}

// Group splits raw rows per registered entity. Rows of unknown entities are
// counted and skipped.
func (a *Aggregator) Group(rows []contracts.RawUsage, entities *contracts.EntitySet) *Grouped {
	g := &Grouped{ByEntity: make(map[string][]contracts.RawUsage)}
	for _, row := range rows {
		if _, ok := entities.Get(row.EntityID); !ok {
			g.Unknown++
			continue
		}
		g.ByEntity[row.EntityID] = append(g.ByEntity[row.EntityID], row)
	}
	return g
}

// Densify builds one entity's continuous daily series.
//
// Timestamps are truncated to the UTC day and same-day rows are summed.
// Rows dated on/after the conversion day are dropped (returned as dropped).
// The range spans first to last observed day; gaps inside get zero counters,
// nothing is synthesized outside it. Returns ErrEmptyActivityRange (wrapped)
// with an empty series when no usable row remains.
func (a *Aggregator) Densify(entity *contracts.Entity, rows []contracts.RawUsage) (*contracts.DailySeries, int, error) {
	series := &contracts.DailySeries{
		EntityID: entity.ID,
		Counters: a.config.Counters,
	}

	// day → counter index → contributing values
	byDay := make(map[time.Time][][]float64)
	dropped := 0

	for _, row := range rows {
		day := contracts.Day(row.Timestamp)
		if entity.ConversionDate != nil && !day.Before(*entity.ConversionDate) {
			dropped++
			continue
		}

		values, ok := byDay[day]
		if !ok {
			values = make([][]float64, len(a.config.Counters))
			byDay[day] = values
		}
		for i, name := range a.config.Counters {
			if v, ok := row.Counters[name]; ok {
				values[i] = append(values[i], v)
			}
		}
	}

	if dropped > 0 {
		a.logger.WithEntity(entity.ID).
			WithField("dropped_rows", dropped).
			Warn("usage on/after conversion date dropped")
	}

	if len(byDay) == 0 {
		return series, dropped, fmt.Errorf("entity %s: %w", entity.ID, contracts.ErrEmptyActivityRange)
	}

	first, last := bounds(byDay)
	n := contracts.DaysBetween(first, last) + 1
	series.Days = make([]contracts.DailyUsageRecord, n)

	for i := 0; i < n; i++ {
		day := contracts.AddDays(first, i)
		counters := make([]float64, len(a.config.Counters))
		if values, ok := byDay[day]; ok {
			for c := range counters {
				counters[c] = stableSum(values[c])
			}
		}
		series.Days[i] = contracts.DailyUsageRecord{Date: day, Counters: counters}
	}

	return series, dropped, nil
}

// stableSum sums values in sorted order so the result does not depend on
// input row order (float addition is not associative).
func stableSum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	total := 0.0
	for _, v := range sorted {
		total += v
	}
	return total
}

func bounds(byDay map[time.Time][][]float64) (time.Time, time.Time) {
	var first, last time.Time
	for day := range byDay {
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if last.IsZero() || day.After(last) {
			last = day
		}
	}
	return first, last
}
