package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/metrics"
	"github.com/wonny/leadscore/internal/pipelineconfig"
	"github.com/wonny/leadscore/internal/s0_entities"
	"github.com/wonny/leadscore/internal/s1_usage"
	"github.com/wonny/leadscore/internal/s2_snapshots"
	"github.com/wonny/leadscore/internal/s3_features"
	"github.com/wonny/leadscore/internal/s4_labels"
	"github.com/wonny/leadscore/internal/s5_assembly"
	"github.com/wonny/leadscore/pkg/logger"
)

// Pipeline coordinates the six stages
// ⭐ SSOT: 파이프라인 조율은 여기서만
//
// S0 → S1 → S2 → S3 → S4 → S5
// S1..S4 are sharded per entity; every shard writes only its own slot and
// results are merged in sorted entity order.
type Pipeline struct {
	registry   *s0_entities.Registry
	aggregator *s1_usage.Aggregator
	generator  *s2_snapshots.Generator
	builder    *s3_features.Builder
	assigner   *s4_labels.Assigner
	assembler  *s5_assembly.Assembler

	configHash  string
	parallelism int

	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// New wires every stage from a validated pipeline config.
// Each stage receives only its own options.
func New(cfg *pipelineconfig.Config, m *metrics.Metrics, log *logger.Logger) (*Pipeline, error) {
	hash, err := pipelineconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash pipeline config: %w", err)
	}

	weekday, _ := cfg.Cadence.WeekdayValue()
	features := s3_features.Config{
		Counters:       cfg.Columns.Counters,
		WindowsDays:    cfg.WindowsDays,
		SentinelDays:   cfg.Recency.SentinelDays,
		MomentumWindow: cfg.Momentum.WindowDays,
		Smoothing:      cfg.Momentum.Smoothing,
	}
	builder := s3_features.NewBuilder(features, log)

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	return &Pipeline{
		registry: s0_entities.NewRegistry(s0_entities.Config{
			Firmographics: cfg.Columns.Firmographics,
			PreferPaying:  cfg.DuplicatePolicy == pipelineconfig.DuplicatePreferPaying,
		}, log),
		aggregator: s1_usage.NewAggregator(s1_usage.Config{
			Counters: cfg.Columns.Counters,
		}, log),
		generator: s2_snapshots.NewGenerator(s2_snapshots.Config{
			Daily:   cfg.Cadence.Kind == pipelineconfig.CadenceDaily,
			Weekday: weekday,
		}, log),
		builder: builder,
		assigner: s4_labels.NewAssigner(s4_labels.Config{
			HorizonDays: cfg.LabelHorizonDays,
		}, log),
		assembler: s5_assembly.NewAssembler(s5_assembly.Config{
			Firmographics: cfg.Columns.Firmographics,
			EmployeeRange: cfg.Columns.EmployeeRange,
			Schema:        builder.Schema(),
		}, log),
		configHash:  hash,
		parallelism: parallelism,
		metrics:     m,
		logger:      log,
		now:         time.Now,
	}, nil
}

// ConfigHash returns the hash of the pipeline config this pipeline runs with
func (p *Pipeline) ConfigHash() string {
	return p.configHash
}

// entityShard is the per-entity working set for S1..S4
type entityShard struct {
	entity    *contracts.Entity
	raw       []contracts.RawUsage
	series    *contracts.DailySeries
	dropped   int
	empty     bool
	snapshots []contracts.Snapshot
	positives int
}

// Run executes S0..S5 on in-memory source tables.
// The report is returned even on failure, filled up to the failing stage.
func (p *Pipeline) Run(ctx context.Context, inputs *contracts.SourceTables) (*contracts.FeatureTable, *contracts.RunReport, error) {
	report := &contracts.RunReport{
		RunID:        uuid.New().String(),
		ConfigHash:   p.configHash,
		StartedAt:    p.now().UTC(),
		RawUsageRows: len(inputs.Usage),
	}
	log := p.logger.WithRun(report.RunID, p.configHash)

	log.WithFields(map[string]interface{}{
		"paying":      len(inputs.Paying),
		"non_paying":  len(inputs.NonPaying),
		"usage_rows":  len(inputs.Usage),
		"parallelism": p.parallelism,
	}).Info("Starting pipeline run")

	table, err := p.run(ctx, inputs, report)
	report.FinishedAt = p.now().UTC()
	p.metrics.ObserveRun(report, err)

	if err != nil {
		log.WithError(err).WithField("fatal", contracts.IsFatal(err)).Error("Pipeline run failed")
		return nil, report, err
	}

	log.WithFields(map[string]interface{}{
		"entities":                 report.Entities,
		"rows":                     report.Rows,
		"positives":                report.Positives,
		"positive_rate":            report.PositiveRate(),
		"empty_activity":           report.EmptyActivity,
		"no_snapshots":             report.NoSnapshots,
		"dropped_after_conversion": report.DroppedAfterConversion,
		"duration_ms":              report.Duration().Milliseconds(),
	}).Info("Pipeline run completed")

	return table, report, nil
}

func (p *Pipeline) run(ctx context.Context, inputs *contracts.SourceTables, report *contracts.RunReport) (*contracts.FeatureTable, error) {
	// S0: Entities
	var entities *contracts.EntitySet
	err := p.stage(report, contracts.StageEntities, len(inputs.Paying)+len(inputs.NonPaying), func() (int, error) {
		var err error
		entities, err = p.registry.Build(inputs.Paying, inputs.NonPaying)
		if err != nil {
			return 0, err
		}
		return entities.Count(), nil
	})
	if err != nil {
		return nil, err
	}
	report.Entities = entities.Count()
	report.ConvertingEntities = entities.ConvertingCount()
	report.MissingFirmographics = entities.MissingFirmographics

	grouped := p.aggregator.Group(inputs.Usage, entities)
	report.UnknownEntityRows = grouped.Unknown

	ids := entities.IDs()
	shards := make([]*entityShard, len(ids))
	for i, id := range ids {
		entity, _ := entities.Get(id)
		shards[i] = &entityShard{entity: entity, raw: grouped.ByEntity[id]}
	}

	// S1: Usage
	err = p.stage(report, contracts.StageUsage, len(inputs.Usage)-grouped.Unknown, func() (int, error) {
		err := p.forEachShard(ctx, shards, func(s *entityShard) error {
			series, dropped, err := p.aggregator.Densify(s.entity, s.raw)
			if err != nil && !errors.Is(err, contracts.ErrEmptyActivityRange) {
				return err
			}
			s.series, s.dropped, s.empty = series, dropped, err != nil
			return nil
		})
		days := 0
		for _, s := range shards {
			report.DroppedAfterConversion += s.dropped
			if s.empty {
				report.EmptyActivity++
			}
			if s.series != nil {
				days += len(s.series.Days)
			}
		}
		return days, err
	})
	if err != nil {
		return nil, err
	}

	// S2: Snapshots
	err = p.stage(report, contracts.StageSnapshots, len(shards), func() (int, error) {
		err := p.forEachShard(ctx, shards, func(s *entityShard) error {
			s.snapshots = p.generator.Generate(s.series, s.entity)
			return nil
		})
		n := 0
		for _, s := range shards {
			if !s.empty && len(s.snapshots) == 0 {
				report.NoSnapshots++
			}
			n += len(s.snapshots)
		}
		return n, err
	})
	if err != nil {
		return nil, err
	}
	total := countSnapshots(shards)

	// S3: Features
	err = p.stage(report, contracts.StageFeatures, total, func() (int, error) {
		return total, p.forEachShard(ctx, shards, func(s *entityShard) error {
			return p.builder.Build(s.series, s.snapshots)
		})
	})
	if err != nil {
		return nil, err
	}

	// S4: Labels
	err = p.stage(report, contracts.StageLabels, total, func() (int, error) {
		err := p.forEachShard(ctx, shards, func(s *entityShard) error {
			positives, err := p.assigner.Assign(s.snapshots, s.entity)
			s.positives = positives
			return err
		})
		positives := 0
		for _, s := range shards {
			positives += s.positives
		}
		return positives, err
	})
	if err != nil {
		return nil, err
	}

	// S5: Assembly
	var table *contracts.FeatureTable
	err = p.stage(report, contracts.StageAssembly, total, func() (int, error) {
		snapshots := make([]contracts.Snapshot, 0, total)
		for _, s := range shards {
			snapshots = append(snapshots, s.snapshots...)
		}

		var err error
		table, err = p.assembler.Assemble(entities, snapshots)
		if err != nil {
			return 0, err
		}
		return table.Count(), nil
	})
	if err != nil {
		return nil, err
	}

	report.Rows = table.Count()
	report.Positives = table.Positives()
	return table, nil
}

// stage times fn and appends its StageResult to the report
func (p *Pipeline) stage(report *contracts.RunReport, stage contracts.Stage, input int, fn func() (int, error)) error {
	start := time.Now()
	output, err := fn()
	elapsed := time.Since(start)

	result := contracts.StageResult{
		Stage:       stage,
		InputCount:  input,
		OutputCount: output,
		Duration:    elapsed.Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	report.Stages = append(report.Stages, result)
	p.metrics.ObserveStage(stage, elapsed)

	if err != nil {
		return fmt.Errorf("%s failed: %w", stage.ShortName(), err)
	}
	return nil
}

// forEachShard runs fn for every shard with bounded parallelism.
// Cancellation is checked before each shard starts.
func (p *Pipeline) forEachShard(ctx context.Context, shards []*entityShard, fn func(*entityShard) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)

	for _, s := range shards {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(s)
		})
	}

	return g.Wait()
}

func countSnapshots(shards []*entityShard) int {
	n := 0
	for _, s := range shards {
		n += len(s.snapshots)
	}
	return n
}
