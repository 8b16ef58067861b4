package handler

import (
	"fmt"
	"time"

	"pr_panel/log"

	"github.com/go-co-op/gocron/v2"
)

// CancelFunc removes a submitted task from its executor. Calling it more than
// once is harmless.
type CancelFunc func()

// Executor runs a task with a fixed delay: the next run starts one period
// after the previous one finished, so a task never overlaps with itself.
type Executor interface {
	Submit(task func(), initialDelay, period time.Duration) (CancelFunc, error)
}

// GocronExecutor is the shared periodic executor backed by one gocron scheduler.
type GocronExecutor struct {
	scheduler gocron.Scheduler
}

func NewGocronExecutor() (*GocronExecutor, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s.Start()
	return &GocronExecutor{scheduler: s}, nil
}

func (e *GocronExecutor) Submit(task func(), initialDelay, period time.Duration) (CancelFunc, error) {
	start := gocron.WithStartImmediately()
	if initialDelay > 0 {
		start = gocron.WithStartDateTime(time.Now().Add(initialDelay))
	}

	job, err := e.scheduler.NewJob(
		gocron.DurationJob(period),
		gocron.NewTask(task),
		gocron.WithStartAt(start),
		// fixed delay: the period counts from the end of the previous run
		gocron.WithIntervalFromCompletion(),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("submit periodic task: %w", err)
	}

	id := job.ID()
	return func() {
		if err := e.scheduler.RemoveJob(id); err != nil {
			log.Debugf("Remove job %s: %v", id, err)
		}
	}, nil
}

// Shutdown stops the scheduler and waits for running tasks.
func (e *GocronExecutor) Shutdown() error {
	return e.scheduler.Shutdown()
}
