// Package sweeper runs periodic cleanup jobs until its context is cancelled.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/example/rbacauth/internal/logging"
)

// Job deletes expired records and reports how many were removed.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

type Sweeper struct {
	jobs []Job
	log  logging.Logger
}

func New(log logging.Logger, jobs ...Job) *Sweeper {
	return &Sweeper{jobs: jobs, log: log}
}

// Run starts one ticker per job, runs each job once immediately, and
// blocks until ctx is done and every job has returned.
func (s *Sweeper) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		if j.Interval <= 0 {
			s.log.Warn(ctx, "sweep job disabled", "job", j.Name)
			continue
		}
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context, j Job) {
	t := time.NewTicker(j.Interval)
	defer t.Stop()
	s.once(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.once(ctx, j)
		}
	}
}

func (s *Sweeper) once(ctx context.Context, j Job) {
	n, err := j.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error(ctx, "sweep failed", "job", j.Name, "error", err)
		}
		return
	}
	if n > 0 {
		s.log.Info(ctx, "sweep removed expired records", "job", j.Name, "count", n)
	}
}
