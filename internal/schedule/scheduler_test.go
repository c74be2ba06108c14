package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&countingJob{}, "every now and then"))
	require.NoError(t, s.AddJob(&countingJob{}, "0 3 * * *"))
	require.NoError(t, s.AddJob(&countingJob{}, "@hourly"))
}

func TestWrapRunsJob(t *testing.T) {
	s := NewCronScheduler()
	job := &countingJob{err: errors.New("boom")}
	run := s.wrap(job)
	run()
	run()
	require.Equal(t, int32(2), job.runs.Load())
	s.runOnce(&countingJob{}, zap.NewNop())
}
