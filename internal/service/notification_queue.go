package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/wealthwizard/finance-api/internal/model"
	"golang.org/x/sync/errgroup"
)

// NotificationQueue accepts events for later delivery. Enqueue never blocks.
type NotificationQueue interface {
	Enqueue(userID string, ev model.Event)
}

type notificationJob struct {
	userID string
	event  model.Event
}

// AsyncQueue hands events to a fixed pool of workers over a buffered
// channel. Events are dropped with a warning when the buffer is full.
type AsyncQueue struct {
	jobs       chan notificationJob
	notifier   Notifier
	workers    int
	jobTimeout time.Duration
}

func NewAsyncQueue(notifier Notifier, size, workers int) *AsyncQueue {
	return &AsyncQueue{
		jobs:       make(chan notificationJob, size),
		notifier:   notifier,
		workers:    max(workers, 1),
		jobTimeout: time.Minute,
	}
}

func (q *AsyncQueue) Enqueue(userID string, ev model.Event) {
	select {
	case q.jobs <- notificationJob{userID: userID, event: ev}:
	default:
		slog.Warn("notification queue full, dropping event", "user_id", userID, "event", ev.Kind())
	}
}

// Run processes events until ctx is cancelled, then delivers whatever is
// still buffered and returns.
func (q *AsyncQueue) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			q.work(ctx)
			return nil
		})
	}
	err := g.Wait()

	slog.Info("notification queue stopped", "pending", len(q.jobs))
	return err
}

func (q *AsyncQueue) work(ctx context.Context) {
	for {
		select {
		case job := <-q.jobs:
			q.deliver(ctx, job)
		case <-ctx.Done():
			q.drain(ctx)
			return
		}
	}
}

func (q *AsyncQueue) drain(ctx context.Context) {
	for {
		select {
		case job := <-q.jobs:
			q.deliver(ctx, job)
		default:
			return
		}
	}
}

// deliver runs one job detached from ctx cancellation so that shutdown
// does not abort a send in flight.
func (q *AsyncQueue) deliver(ctx context.Context, job notificationJob) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.jobTimeout)
	defer cancel()

	q.notifier.Notify(jobCtx, job.userID, job.event)
}
