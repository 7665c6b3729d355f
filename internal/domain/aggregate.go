package domain

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable marks transport and driver failures. These are never retried.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrRetriesExhausted is returned when every write attempt hit a conflict.
	ErrRetriesExhausted = errors.New("write retries exhausted")
)

// CommitResult is the outcome of an Insert or Save.
type CommitResult int

const (
	CommitWritten CommitResult = iota
	CommitConflict
	CommitFatal
)

func (r CommitResult) String() string {
	switch r {
	case CommitWritten:
		return "written"
	case CommitConflict:
		return "conflict"
	case CommitFatal:
		return "fatal"
	}
	return "unknown"
}

// DocumentStore is the storage contract the write path relies on.
//
// Get returns (nil, nil) when no document exists for id. Insert must report
// CommitConflict when a document with the same id already exists. Save must
// atomically check that the stored version equals expectedVersion, store the
// document with version expectedVersion+1 and report CommitConflict on mismatch.
// CommitFatal is always accompanied by a non-nil error.
type DocumentStore interface {
	Get(ctx context.Context, id DocumentID) (*SensorDocument, error)
	Insert(ctx context.Context, doc SensorDocument) (CommitResult, error)
	Save(ctx context.Context, doc SensorDocument, expectedVersion int64) (CommitResult, error)
}

// StoreOpener hands out a store for the duration of one batch.
// The returned release func must be called when the batch is done.
type StoreOpener interface {
	Open(ctx context.Context) (DocumentStore, func(context.Context) error, error)
}

// WriteMode tells whether a document was created or updated.
type WriteMode string

const (
	WriteInsert WriteMode = "insert"
	WriteUpdate WriteMode = "update"
)

// DocumentOutcome records what happened to one document of a batch.
type DocumentOutcome struct {
	ID       DocumentID
	Mode     WriteMode
	Attempts int
	Version  int64
	Err      error
}

type BatchReport struct {
	Received  int
	Accepted  int
	Dropped   int
	Documents []DocumentOutcome
}

// Failed returns the outcomes that were not written.
func (r BatchReport) Failed() []DocumentOutcome {
	var out []DocumentOutcome
	for _, d := range r.Documents {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}
