package quests

import (
	"context"

	"github.com/pixil98/go-log"
)

const DefaultQueueSize = 1024

type job struct {
	name string
	fn   func(context.Context) error
}

// Queue runs ledger work on its own goroutine so the simulation never waits
// on storage. It is a service worker.
type Queue struct {
	jobs chan job
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{jobs: make(chan job, size)}
}

// Defer schedules fn without blocking. It reports false, and the job is
// dropped, when the queue is full.
func (q *Queue) Defer(name string, fn func(context.Context) error) bool {
	select {
	case q.jobs <- job{name: name, fn: fn}:
		return true
	default:
		return false
	}
}

// Start runs queued jobs until ctx is cancelled. Jobs still queued at that
// point are drained before returning.
func (q *Queue) Start(ctx context.Context) error {
	logger := log.GetLogger(ctx)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case j := <-q.jobs:
					q.run(context.WithoutCancel(ctx), j)
				default:
					logger.Info("ledger queue stopped")
					return nil
				}
			}
		case j := <-q.jobs:
			q.run(ctx, j)
		}
	}
}

func (q *Queue) run(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			log.GetLogger(ctx).WithField("job", j.name).Errorf("ledger job panicked: %v", r)
		}
	}()

	if err := j.fn(ctx); err != nil {
		log.GetLogger(ctx).WithError(err).WithField("job", j.name).Error("ledger job failed")
	}
}
