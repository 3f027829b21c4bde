package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/leadscore/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	calls    atomic.Int32
	errs     []error
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(context.Context) error {
	n := int(j.calls.Add(1)) - 1
	if n < len(j.errs) {
		return j.errs[n]
	}
	return nil
}

func newTestScheduler(maxRetries int) *Scheduler {
	return New(logger.Nop(), WithRetry(maxRetries, time.Millisecond))
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "0 0 3 * * 0"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "0 0 3 * * 0"}), "duplicate name")
	assert.Error(t, s.AddJob(&fakeJob{name: "b", schedule: "not a schedule"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "c", schedule: "@weekly"}))

	assert.Equal(t, []string{"a", "c"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"c"}, s.GetAllJobs())
}

func TestRunJobRetries(t *testing.T) {
	s := newTestScheduler(3)
	defer s.Stop()

	job := &fakeJob{name: "flaky", schedule: "@daily", errs: []error{errors.New("db down"), errors.New("db down")}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob("flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), job.calls.Load())

	_, err = s.RunJob("missing")
	assert.Error(t, err)
}

func TestRunJobGivesUp(t *testing.T) {
	s := newTestScheduler(2)
	defer s.Stop()

	boom := errors.New("boom")
	job := &fakeJob{name: "broken", schedule: "@daily", errs: []error{boom, boom, boom, boom}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob("broken")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "boom", result.Error)
}

func TestRunJobPermanentNotRetried(t *testing.T) {
	s := newTestScheduler(5)
	defer s.Stop()

	job := &fakeJob{name: "leaky", schedule: "@daily", errs: []error{Permanent(errors.New("leakage"))}}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob("leaky")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "leakage", result.Error)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("duplicate entity")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}

func TestJobStats(t *testing.T) {
	s := newTestScheduler(0)
	defer s.Stop()

	job := &fakeJob{name: "rebuild", schedule: "0 0 3 * * 0", errs: []error{errors.New("x")}}
	require.NoError(t, s.AddJob(job))

	_, _ = s.RunJob("rebuild")
	_, _ = s.RunJob("rebuild")

	stats := s.GetJobStats()["rebuild"]
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	require.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)

	history, err := s.GetJobHistory("rebuild")
	require.NoError(t, err)
	assert.Len(t, history.Results, 2)

	_, err = s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestNextRunIsSundayUTC(t *testing.T) {
	s := newTestScheduler(0)
	require.NoError(t, s.AddJob(&fakeJob{name: "rebuild", schedule: "0 0 3 * * 0"}))

	s.Start()
	defer s.Stop()

	next, err := s.NextRun("rebuild")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, next.Weekday())
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, time.UTC, next.Location())
}

func TestJobHistoryCap(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+20; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(5))
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}
