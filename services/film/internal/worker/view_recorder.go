package worker

import (
	"context"
	"errors"
	"time"

	"reelshare/pkg/logger"
	"reelshare/pkg/queue"
)

var ErrQueueFull = errors.New("view queue is full")

type ViewConsumer interface {
	ConsumeViews(handler func(event queue.ViewEvent) error) error
}

type ViewRecorderFunc func(ctx context.Context, event queue.ViewEvent) error

// ViewRecorder writes queued stream views to the content contract through
// the platform wallet, one transaction per view.
type ViewRecorder struct {
	consumer ViewConsumer
	record   ViewRecorderFunc
	timeout  time.Duration
	logger   *logger.Logger
}

func NewViewRecorder(consumer ViewConsumer, record ViewRecorderFunc, timeout time.Duration, logger *logger.Logger) *ViewRecorder {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &ViewRecorder{
		consumer: consumer,
		record:   record,
		timeout:  timeout,
		logger:   logger,
	}
}

func (w *ViewRecorder) Start() error {
	w.logger.Info("Starting view recorder...")
	return w.consumer.ConsumeViews(w.handle)
}

func (w *ViewRecorder) handle(event queue.ViewEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.record(ctx, event); err != nil {
		return err
	}
	w.logger.Info("[VIEW RECORDER] Recorded view of content %s (chain id %s on %s) by %s", event.ContentID, event.ChainID, event.Network, event.ViewerID)
	return nil
}

// Backlog reports how many view events are waiting to be recorded.
type Backlog interface {
	QueueLength() (int, error)
}

// LocalQueue is an in-process view queue used when RabbitMQ is unavailable.
// Events are lost on restart.
type LocalQueue struct {
	events chan queue.ViewEvent
	logger *logger.Logger
}

func NewLocalQueue(size int, logger *logger.Logger) *LocalQueue {
	return &LocalQueue{events: make(chan queue.ViewEvent, size), logger: logger}
}

func (q *LocalQueue) PublishView(event queue.ViewEvent) error {
	select {
	case q.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *LocalQueue) ConsumeViews(handler func(event queue.ViewEvent) error) error {
	go func() {
		for event := range q.events {
			if err := handler(event); err != nil {
				q.logger.Error("[VIEW RECORDER] Failed to record view for content %s: %v", event.ContentID, err)
			}
		}
	}()
	return nil
}

// QueueLength returns the number of buffered view events.
func (q *LocalQueue) QueueLength() (int, error) {
	return len(q.events), nil
}

func (q *LocalQueue) Close() {
	close(q.events)
}
