package jobs

import (
	"context"

	"github.com/wonny/leadscore/pkg/logger"
)

// Pruner removes old exports, keeping the most recent runs
type Pruner interface {
	Prune(keep int) (int, error)
}

// RetentionJob prunes per-run exports from the output directory
type RetentionJob struct {
	pruner Pruner
	keep   int
	logger *logger.Logger
}

// NewRetentionJob creates a new retention job
func NewRetentionJob(pruner Pruner, keep int, log *logger.Logger) *RetentionJob {
	return &RetentionJob{
		pruner: pruner,
		keep:   keep,
		logger: log,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "export_retention"
}

// Schedule returns the cron schedule (every day at 04:00, after the rebuild)
func (j *RetentionJob) Schedule() string {
	return "0 0 4 * * *"
}

// Run executes the pruning
func (j *RetentionJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.logger.Debug("Starting scheduled export retention")

	_, err := j.pruner.Prune(j.keep)
	return err
}
