package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wartburg/mcsp/core"
)

type sweeperMock struct {
	calls  int
	maxAge time.Duration
	n      int
	err    error
}

func (m *sweeperMock) SweepOrphans(_ context.Context, maxAge time.Duration) (int, error) {
	m.calls++
	m.maxAge = maxAge
	return m.n, m.err
}

type loggerMock struct {
	infos, errors []string
}

func (l *loggerMock) Debug(string, ...interface{})       {}
func (l *loggerMock) Info(msg string, _ ...interface{})  { l.infos = append(l.infos, msg) }
func (l *loggerMock) Warn(string, ...interface{})        {}
func (l *loggerMock) Error(msg string, _ ...interface{}) { l.errors = append(l.errors, msg) }
func (l *loggerMock) Fatal(string, ...interface{})       {}

func conf(schedule string) *core.Config {
	return &core.Config{Jobs: core.JobsConfig{SweepSchedule: schedule, OrphanMaxAge: time.Hour}}
}

func TestNewScheduler(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantJobs int
		wantErr  bool
	}{
		{name: "disabled", schedule: "", wantJobs: 0},
		{name: "descriptor", schedule: "@daily", wantJobs: 1},
		{name: "cron spec", schedule: "30 3 * * *", wantJobs: 1},
		{name: "invalid", schedule: "every now and then", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScheduler(conf(tt.schedule), &sweeperMock{}, &loggerMock{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantJobs, s.Jobs())
		})
	}
}

func TestScheduler_sweep(t *testing.T) {
	sweeper := &sweeperMock{n: 3}
	logger := &loggerMock{}
	s, err := NewScheduler(conf("@daily"), sweeper, logger)
	require.NoError(t, err)

	s.sweep()
	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, time.Hour, sweeper.maxAge)
	assert.Equal(t, []string{"swept 3 orphaned upload(s)"}, logger.infos)

	sweeper.err = errors.New("boom")
	s.sweep()
	assert.Len(t, logger.errors, 1)
}
