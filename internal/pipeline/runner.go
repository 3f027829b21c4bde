package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wonny/leadscore/internal/contracts"
	"github.com/wonny/leadscore/pkg/logger"
)

// Runner reads sources, runs the pipeline and hands the table to every sink.
// Used by the build command and the scheduler.
type Runner struct {
	pipeline *Pipeline
	reader   contracts.SourceReader
	writers  []contracts.FeatureWriter
	logger   *logger.Logger

	mu    sync.Mutex
	last  *contracts.RunReport
	inRun bool
}

// NewRunner creates a new runner
func NewRunner(p *Pipeline, reader contracts.SourceReader, log *logger.Logger, writers ...contracts.FeatureWriter) *Runner {
	return &Runner{
		pipeline: p,
		reader:   reader,
		writers:  writers,
		logger:   log,
	}
}

// ErrRunInProgress is returned when a run is requested while another is active
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Run performs one full read → build → write cycle.
// Writers are skipped when the pipeline fails.
func (r *Runner) Run(ctx context.Context) (*contracts.RunReport, error) {
	r.mu.Lock()
	if r.inRun {
		r.mu.Unlock()
		return nil, ErrRunInProgress
	}
	r.inRun = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inRun = false
		r.mu.Unlock()
	}()

	inputs, err := r.reader.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	table, report, err := r.pipeline.Run(ctx, inputs)
	if err != nil {
		return report, err
	}

	for _, w := range r.writers {
		if err := w.Write(ctx, report, table); err != nil {
			return report, fmt.Errorf("write feature table: %w", err)
		}
	}

	r.mu.Lock()
	r.last = report
	r.mu.Unlock()

	r.logger.WithFields(map[string]interface{}{
		"run_id":  report.RunID,
		"rows":    report.Rows,
		"writers": len(r.writers),
	}).Info("Feature table published")

	return report, nil
}

// LastReport returns the report of the last successful run (nil if none)
func (r *Runner) LastReport() *contracts.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
