package s3_features

import (
	"fmt"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/pkg/logger"
)

// Config holds feature builder options
type Config struct {
	Counters       []string
	WindowsDays    []int
	SentinelDays   int
	MomentumWindow int
	Smoothing      float64
}

// Builder computes window, recency and momentum features per snapshot
// ⭐ SSOT: S3 윈도우 피처 계산은 여기서만
type Builder struct {
	config   Config
	schema   contracts.FeatureSchema
	momentum *MomentumCalculator
	logger   *logger.Logger
}

// NewBuilder creates a new feature builder
func NewBuilder(config Config, log *logger.Logger) *Builder {
	return &Builder{
		config:   config,
		schema:   FeatureNames(config.Counters, config.WindowsDays),
		momentum: NewMomentumCalculator(config.MomentumWindow, config.Smoothing),
		logger:   log.WithComponent(contracts.StageFeatures.String()),
	}
}

// Schema returns the feature column names
func (b *Builder) Schema() contracts.FeatureSchema {
	return b.schema
}

// Build fills Features and RecencyDays of every snapshot of one entity.
// Snapshots are updated in place; only days of the entity's own series are
// read. Windows reaching before the first activity day count those days as
// zero.
func (b *Builder) Build(series *contracts.DailySeries, snapshots []contracts.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	if series == nil || series.Empty() {
		return fmt.Errorf("entity %s: %w", snapshots[0].EntityID, contracts.ErrEmptyActivityRange)
	}
	if len(series.Counters) != len(b.config.Counters) {
		return fmt.Errorf("entity %s: series has %d counters, expected %d",
			series.EntityID, len(series.Counters), len(b.config.Counters))
	}

	windows := newCounterWindows(series)
	last := newLastActive(series)

	for i := range snapshots {
		s := &snapshots[i]
		if s.EntityID != series.EntityID {
			return fmt.Errorf("snapshot of %s built against series of %s", s.EntityID, series.EntityID)
		}
		s.Features = b.compute(windows, last, series.IndexOf(s.Date))
		s.RecencyDays = recency(last.any, series.IndexOf(s.Date), b.config.SentinelDays)
	}

	return nil
}

// compute follows FeatureNames order
func (b *Builder) compute(windows *counterWindows, last *lastActive, offset int) []float64 {
	features := make([]float64, 0, b.schema.Len())

	for c := range b.config.Counters {
		for _, w := range b.config.WindowsDays {
			sum := windows.windowSum(c, offset, w)
			features = append(features, sum, sum/float64(w))
		}
	}

	for c := range b.config.Counters {
		features = append(features,
			float64(recency(last.perCounter[c], offset, b.config.SentinelDays)),
			b.momentum.calculateAt(windows, c, offset),
		)
	}

	return features
}
