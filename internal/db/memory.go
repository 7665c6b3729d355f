package db

import (
	"context"
	"sync"

	"github.com/richd0tcom/sensordocs/internal/domain"
)

// MemoryStore is an in-process DocumentStore with the same uniqueness and
// version semantics as MongoSensorStore. Used for local runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[domain.DocumentID]domain.SensorDocument
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[domain.DocumentID]domain.SensorDocument)}
}

func (s *MemoryStore) Get(_ context.Context, id domain.DocumentID) (*domain.SensorDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	cp := doc.Clone()
	return &cp, nil
}

func (s *MemoryStore) Insert(_ context.Context, doc domain.SensorDocument) (domain.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; ok {
		return domain.CommitConflict, nil
	}
	stored := doc.Clone()
	stored.Version = 1
	s.docs[doc.ID] = stored
	return domain.CommitWritten, nil
}

func (s *MemoryStore) Save(_ context.Context, doc domain.SensorDocument, expectedVersion int64) (domain.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.docs[doc.ID]
	if !ok || current.Version != expectedVersion {
		return domain.CommitConflict, nil
	}
	stored := doc.Clone()
	stored.Version = expectedVersion + 1
	s.docs[doc.ID] = stored
	return domain.CommitWritten, nil
}

// Open satisfies domain.StoreOpener; there is no connection to release.
func (s *MemoryStore) Open(context.Context) (domain.DocumentStore, func(context.Context) error, error) {
	return s, func(context.Context) error { return nil }, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
