// Package cleanup runs the periodic sweep that deletes expired refresh
// tokens, OAuth states and blacklist rows. The sweep is housekeeping
// only; correctness never depends on it because every read path checks
// expiry itself.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one named sweep returning how many rows it removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Job drives the tasks on a fixed interval. Tasks are isolated: one
// failing leaves the rest running, this cycle and the next.
type Job struct {
	tasks    []Task
	interval time.Duration
	logger   zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

type Option func(*Job)

// WithInterval overrides the default 24 hour sweep interval
func WithInterval(interval time.Duration) Option {
	return func(j *Job) {
		j.interval = interval
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(j *Job) {
		j.logger = logger
	}
}

func NewJob(tasks []Task, options ...Option) *Job {
	j := &Job{
		tasks:    tasks,
		interval: 24 * time.Hour,
		logger:   zerolog.Nop(),
		stop:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(j)
	}
	return j
}

// RunOnce executes every task and reports the total rows removed. The
// first error is returned after all tasks have run.
func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	var total int64
	var firstErr error
	for _, task := range j.tasks {
		removed, err := task.Run(ctx)
		if err != nil {
			j.logger.Error().Err(err).Str("task", task.Name).Msg("cleanup task failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += removed
		if removed > 0 {
			j.logger.Info().Str("task", task.Name).Int64("removed", removed).Msg("cleanup task done")
		}
	}
	return total, firstErr
}

// Start launches the background sweep. Call Stop to shut it down.
func (j *Job) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := j.RunOnce(ctx); err != nil {
					j.logger.Warn().Err(err).Msg("cleanup cycle completed with errors")
				}
			case <-j.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the sweep goroutine. Safe to call more than once, and
// safe without a prior Start.
func (j *Job) Stop() {
	j.stopOnce.Do(func() {
		close(j.stop)
	})
}
