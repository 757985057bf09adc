package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reelshare/pkg/logger"
	"reelshare/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	mu     sync.Mutex
	events []queue.ViewEvent
}

func (r *recorded) record(ctx context.Context, event queue.ViewEvent) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	if event.ChainID == "" {
		return errors.New("no chain id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorded) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestViewRecorder_ConsumesLocalQueue(t *testing.T) {
	log := logger.New()
	q := NewLocalQueue(8, log)
	defer q.Close()
	rec := &recorded{}

	w := NewViewRecorder(q, rec.record, time.Second, log)
	require.NoError(t, w.Start())

	require.NoError(t, q.PublishView(queue.ViewEvent{ContentID: "c-1", ChainID: "4", Network: "sepolia"}))
	require.NoError(t, q.PublishView(queue.ViewEvent{ContentID: "c-2"}))
	require.NoError(t, q.PublishView(queue.ViewEvent{ContentID: "c-3", ChainID: "9", Network: "sepolia"}))

	assert.Eventually(t, func() bool { return rec.len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "4", rec.events[0].ChainID)
}

func TestLocalQueue_Full(t *testing.T) {
	q := NewLocalQueue(1, logger.New())
	require.NoError(t, q.PublishView(queue.ViewEvent{ContentID: "c-1"}))
	assert.ErrorIs(t, q.PublishView(queue.ViewEvent{ContentID: "c-2"}), ErrQueueFull)
}

func TestLocalQueue_QueueLength(t *testing.T) {
	q := NewLocalQueue(4, logger.New())
	n, err := q.QueueLength()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, q.PublishView(queue.ViewEvent{ContentID: "c-1"}))
	n, err = q.QueueLength()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
