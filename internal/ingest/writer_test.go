package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/richd0tcom/sensordocs/internal/db"
	"github.com/richd0tcom/sensordocs/internal/domain"
)

// scriptedStore wraps a MemoryStore and lets tests inject behaviour per call.
type scriptedStore struct {
	*db.MemoryStore
	gets, inserts, saves int

	getErr   error
	onInsert func(n int, doc domain.SensorDocument) (domain.CommitResult, error, bool)
	onSave   func(n int, doc domain.SensorDocument, expected int64) (domain.CommitResult, error, bool)
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{MemoryStore: db.NewMemoryStore()}
}

func (s *scriptedStore) Get(ctx context.Context, id domain.DocumentID) (*domain.SensorDocument, error) {
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, id)
}

func (s *scriptedStore) Insert(ctx context.Context, doc domain.SensorDocument) (domain.CommitResult, error) {
	s.inserts++
	if s.onInsert != nil {
		if res, err, handled := s.onInsert(s.inserts, doc); handled {
			return res, err
		}
	}
	return s.MemoryStore.Insert(ctx, doc)
}

func (s *scriptedStore) Save(ctx context.Context, doc domain.SensorDocument, expected int64) (domain.CommitResult, error) {
	s.saves++
	if s.onSave != nil {
		if res, err, handled := s.onSave(s.saves, doc, expected); handled {
			return res, err
		}
	}
	return s.MemoryStore.Save(ctx, doc, expected)
}

func incomingDoc(detailed domain.Detailed) domain.SensorDocument {
	return domain.SensorDocument{ID: testID, Detailed: detailed}
}

func TestWriter_FreshInsert(t *testing.T) {
	store := newScriptedStore()
	w := NewWriter(store, nil, nil)

	out := w.Write(context.Background(), incomingDoc(domain.Detailed{13: {26: 27.9}}))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Mode != domain.WriteInsert || out.Attempts != 1 || out.Version != 1 {
		t.Errorf("unexpected outcome %+v", out)
	}

	stored, _ := store.MemoryStore.Get(context.Background(), testID)
	if stored == nil || stored.Summary[13] != 27.9 || stored.Version != 1 {
		t.Errorf("unexpected stored document %+v", stored)
	}
}

func TestWriter_UpdatesExisting(t *testing.T) {
	store := newScriptedStore()
	ctx := context.Background()
	store.MemoryStore.Insert(ctx, incomingDoc(domain.Detailed{1: {1: 1.5, 4: 4.0}, 5: {5: 5.0}}))

	out := NewWriter(store, nil, nil).Write(ctx, incomingDoc(domain.Detailed{1: {1: 1.0, 2: 2.0}, 2: {3: 3.0}}))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Mode != domain.WriteUpdate || out.Version != 2 {
		t.Errorf("unexpected outcome %+v", out)
	}

	stored, _ := store.MemoryStore.Get(ctx, testID)
	if len(stored.Detailed) != 3 || len(stored.Detailed[1]) != 3 || stored.Detailed[1][1] != 1.0 || stored.Detailed[5][5] != 5.0 {
		t.Errorf("unexpected merged document %v", stored.Detailed)
	}
	if stored.Summary[5] != 5.0 {
		t.Errorf("summary not recomputed: %v", stored.Summary)
	}
}

func TestWriter_InsertRaceFallsBackToSave(t *testing.T) {
	store := newScriptedStore()
	ctx := context.Background()

	// Another writer inserts between our fetch and our insert.
	store.onInsert = func(n int, _ domain.SensorDocument) (domain.CommitResult, error, bool) {
		if n == 1 {
			store.MemoryStore.Insert(ctx, incomingDoc(domain.Detailed{7: {0: 7.0}}))
			return domain.CommitConflict, nil, true
		}
		return 0, nil, false
	}

	out := NewWriter(store, nil, nil).Write(ctx, incomingDoc(domain.Detailed{8: {0: 8.0}}))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Attempts != 2 || out.Mode != domain.WriteUpdate {
		t.Errorf("expected update on 2nd attempt, got %+v", out)
	}

	stored, _ := store.MemoryStore.Get(ctx, testID)
	if stored.Detailed[7][0] != 7.0 || stored.Detailed[8][0] != 8.0 {
		t.Errorf("concurrent insert lost data: %v", stored.Detailed)
	}
}

func TestWriter_VersionConflictRefetches(t *testing.T) {
	store := newScriptedStore()
	ctx := context.Background()
	store.MemoryStore.Insert(ctx, incomingDoc(domain.Detailed{1: {0: 1.0}}))

	// Another writer updates between our fetch and our save, twice.
	store.onSave = func(n int, _ domain.SensorDocument, expected int64) (domain.CommitResult, error, bool) {
		if n <= 2 {
			cur, _ := store.MemoryStore.Get(ctx, testID)
			cur.Detailed.Set(2, n, float64(n))
			store.MemoryStore.Save(ctx, *cur, cur.Version)
			return domain.CommitConflict, nil, true
		}
		return 0, nil, false
	}

	out := NewWriter(store, nil, nil).Write(ctx, incomingDoc(domain.Detailed{3: {0: 3.0}}))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Attempts != 3 || store.gets != 3 {
		t.Errorf("expected 3 attempts with 3 fetches, got %+v gets=%d", out, store.gets)
	}

	stored, _ := store.MemoryStore.Get(ctx, testID)
	if stored.Version != 4 {
		t.Errorf("expected version 4, got %d", stored.Version)
	}
	for _, hm := range [][2]int{{1, 0}, {2, 1}, {2, 2}, {3, 0}} {
		if _, ok := stored.Detailed[hm[0]][hm[1]]; !ok {
			t.Errorf("missing %d:%d in %v", hm[0], hm[1], stored.Detailed)
		}
	}
}

func TestWriter_GivesUpAfterMaxAttempts(t *testing.T) {
	store := newScriptedStore()
	store.onInsert = func(int, domain.SensorDocument) (domain.CommitResult, error, bool) {
		return domain.CommitConflict, nil, true
	}

	out := NewWriter(store, nil, nil).Write(context.Background(), incomingDoc(domain.Detailed{1: {1: 1}}))

	if store.inserts != MaxWriteAttempts || store.gets != MaxWriteAttempts {
		t.Errorf("expected exactly %d attempts, got inserts=%d gets=%d", MaxWriteAttempts, store.inserts, store.gets)
	}
	if !errors.Is(out.Err, domain.ErrRetriesExhausted) {
		t.Fatalf("expected retries exhausted, got %v", out.Err)
	}
	var wf *WriteFailure
	if !errors.As(out.Err, &wf) {
		t.Fatalf("expected *WriteFailure, got %T", out.Err)
	}
	if wf.Key != testID || wf.Attempts != MaxWriteAttempts {
		t.Errorf("unexpected failure %+v", wf)
	}
}

func TestWriter_StoreFailureIsNotRetried(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		store := newScriptedStore()
		store.getErr = fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)

		out := NewWriter(store, nil, nil).Write(context.Background(), incomingDoc(domain.Detailed{1: {1: 1}}))
		if !errors.Is(out.Err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected store unavailable, got %v", out.Err)
		}
		if errors.Is(out.Err, domain.ErrRetriesExhausted) {
			t.Error("store failure must be distinguishable from retry exhaustion")
		}
		if store.gets != 1 || out.Attempts != 1 {
			t.Errorf("expected a single attempt, got gets=%d attempts=%d", store.gets, out.Attempts)
		}
	})

	t.Run("save", func(t *testing.T) {
		store := newScriptedStore()
		ctx := context.Background()
		store.MemoryStore.Insert(ctx, incomingDoc(domain.Detailed{1: {0: 1.0}}))
		store.onSave = func(int, domain.SensorDocument, int64) (domain.CommitResult, error, bool) {
			return domain.CommitFatal, fmt.Errorf("%w: socket closed", domain.ErrStoreUnavailable), true
		}

		out := NewWriter(store, nil, nil).Write(ctx, incomingDoc(domain.Detailed{1: {1: 1}}))
		if !errors.Is(out.Err, domain.ErrStoreUnavailable) || store.saves != 1 {
			t.Errorf("expected one fatal save, got err=%v saves=%d", out.Err, store.saves)
		}
	})
}
