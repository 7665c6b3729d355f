package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/richd0tcom/sensordocs/internal/domain"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type Dialer[C any] func(ctx context.Context) (C, error)

type Closer[C any] func(ctx context.Context, conn C) error

// ConnectionManager hands out store connections.
//
// In per-invocation mode every Acquire dials a new connection and the
// returned release closes it. In shared mode the first Acquire dials under a
// lock, later calls reuse that connection, release is a no-op and only
// Shutdown closes it.
type ConnectionManager[C any] struct {
	dial   Dialer[C]
	close  Closer[C]
	shared bool

	mu   sync.Mutex
	conn C
	open bool
}

func NewConnectionManager[C any](dial Dialer[C], close Closer[C], shared bool) *ConnectionManager[C] {
	return &ConnectionManager[C]{
		dial:   dial,
		close:  close,
		shared: shared,
	}
}

func (m *ConnectionManager[C]) Acquire(ctx context.Context) (C, func(context.Context) error, error) {
	if !m.shared {
		conn, err := m.dial(ctx)
		if err != nil {
			var zero C
			return zero, nil, err
		}
		return conn, func(ctx context.Context) error { return m.close(ctx, conn) }, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		conn, err := m.dial(ctx)
		if err != nil {
			var zero C
			return zero, nil, err
		}
		m.conn = conn
		m.open = true
	}
	return m.conn, func(context.Context) error { return nil }, nil
}

// Shutdown closes the shared connection, if one was created.
func (m *ConnectionManager[C]) Shutdown(ctx context.Context) error {
	if !m.shared {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil
	}
	conn := m.conn
	var zero C
	m.conn = zero
	m.open = false
	return m.close(ctx, conn)
}

func NewMongoConnectionManager(uri string, shared bool) *ConnectionManager[*mongo.Client] {
	return NewConnectionManager(
		func(ctx context.Context) (*mongo.Client, error) {
			return NewMongoConnection(ctx, uri)
		},
		DisconnectMongo,
		shared,
	)
}

// MongoOpener opens a MongoSensorStore per batch on a managed connection.
type MongoOpener struct {
	conns    *ConnectionManager[*mongo.Client]
	database string
}

func NewMongoOpener(conns *ConnectionManager[*mongo.Client], database string) *MongoOpener {
	return &MongoOpener{conns: conns, database: database}
}

func (o *MongoOpener) Open(ctx context.Context) (domain.DocumentStore, func(context.Context) error, error) {
	client, release, err := o.conns.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	return NewMongoSensorStore(client, o.database), release, nil
}
