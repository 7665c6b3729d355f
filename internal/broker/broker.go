package broker

import (
	"context"
	"errors"
)

var ErrQueueClosed = errors.New("message queue closed")

// Handler processes one message. A returned error is logged by the queue and
// consumption continues.
type Handler func(data []byte) error

type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

type MessageQueue interface {
	Publisher
	// Consume delivers messages to handler until ctx is done or the queue is
	// closed. Messages already fetched are handed over before it returns.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
