package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/internal/pipeline"
	"github.com/wonny/leadscore/internal/scheduler"
	"github.com/wonny/leadscore/pkg/logger"
)

// Runner runs the full read → build → write cycle
type Runner interface {
	Run(ctx context.Context) (*contracts.RunReport, error)
}

// RebuildJob rebuilds the feature table on the snapshot cadence
// ⭐ SSOT: 피처 테이블 재생성 스케줄은 이 Job에서만
type RebuildJob struct {
	runner   Runner
	schedule string
	logger   *logger.Logger
}

// NewRebuildJob creates a new rebuild job
func NewRebuildJob(runner Runner, schedule string, log *logger.Logger) *RebuildJob {
	return &RebuildJob{
		runner:   runner,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RebuildJob) Name() string {
	return "feature_rebuild"
}

// Schedule returns the cron schedule (default: Sunday 03:00 UTC)
func (j *RebuildJob) Schedule() string {
	return j.schedule
}

// Run executes one rebuild.
// Duplicate ids and leakage are data problems: retrying cannot fix them.
func (j *RebuildJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled feature rebuild")

	report, err := j.runner.Run(ctx)
	if err != nil {
		if contracts.IsFatal(err) || errors.Is(err, pipeline.ErrRunInProgress) {
			return scheduler.Permanent(err)
		}
		return fmt.Errorf("feature rebuild: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":        report.RunID,
		"entities":      report.Entities,
		"rows":          report.Rows,
		"positives":     report.Positives,
		"positive_rate": report.PositiveRate(),
	}).Info("Feature rebuild completed")

	return nil
}
