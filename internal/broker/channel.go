package broker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ChannelQueue is an in-process MessageQueue backed by a buffered channel.
type ChannelQueue struct {
	messages chan []byte
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewChannelQueue(size int, logger *zap.Logger) *ChannelQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelQueue{
		messages: make(chan []byte, size),
		logger:   logger,
	}
}

func (q *ChannelQueue) Publish(ctx context.Context, data []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.messages <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers messages until the queue is closed and empty, returning
// nil. When ctx is done it first hands over everything still buffered and
// then returns ctx.Err().
func (q *ChannelQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case data, ok := <-q.messages:
			if !ok {
				return nil
			}
			q.handle(handler, data)
		case <-ctx.Done():
			return q.drain(ctx, handler)
		}
	}
}

func (q *ChannelQueue) drain(ctx context.Context, handler Handler) error {
	for {
		select {
		case data, ok := <-q.messages:
			if !ok {
				return nil
			}
			q.handle(handler, data)
		default:
			return ctx.Err()
		}
	}
}

func (q *ChannelQueue) handle(handler Handler, data []byte) {
	if err := handler(data); err != nil {
		q.logger.Warn("error processing message", zap.Error(err))
	}
}

func (q *ChannelQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.messages)
	}
	return nil
}
