// Package jobs runs the periodic background jobs of the web app.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/wartburg/mcsp/core"
)

// Sweeper deletes stored uploads no course or handout references anymore.
type Sweeper interface {
	SweepOrphans(ctx context.Context, maxAge time.Duration) (int, error)
}

type Scheduler struct {
	cron         *cron.Cron
	sweeper      Sweeper
	orphanMaxAge time.Duration
	timeout      time.Duration
	logger       core.Logger
}

func NewScheduler(conf *core.Config, sweeper Sweeper, logger core.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:         cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		sweeper:      sweeper,
		orphanMaxAge: conf.Jobs.OrphanMaxAge,
		timeout:      10 * time.Minute,
		logger:       logger,
	}
	if conf.Jobs.SweepSchedule == "" {
		return s, nil
	}
	if _, err := s.cron.AddFunc(conf.Jobs.SweepSchedule, s.sweep); err != nil {
		return nil, errors.Wrapf(err, "scheduling upload sweep %q", conf.Jobs.SweepSchedule)
	}
	return s, nil
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.sweeper.SweepOrphans(ctx, s.orphanMaxAge)
	if err != nil {
		s.logger.Error(fmt.Sprintf("sweeping orphaned uploads: %v", err), err)
		return
	}
	if n > 0 {
		s.logger.Info(fmt.Sprintf("swept %d orphaned upload(s)", n))
	}
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and returns a context done once running jobs complete.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
