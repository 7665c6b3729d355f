package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/richd0tcom/sensordocs/internal/domain"
	"github.com/richd0tcom/sensordocs/internal/metrics"
)

// MaxWriteAttempts bounds the fetch-merge-commit cycle per document.
const MaxWriteAttempts = 10

// WriteFailure is returned when a document could not be written.
// Err is domain.ErrRetriesExhausted or wraps domain.ErrStoreUnavailable.
type WriteFailure struct {
	Key      domain.DocumentID
	Attempts int
	Err      error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("write %s failed after %d attempt(s): %v", e.Key, e.Attempts, e.Err)
}

func (e *WriteFailure) Unwrap() error {
	return e.Err
}

// Writer commits documents under optimistic concurrency, retrying on conflicts.
type Writer struct {
	store       domain.DocumentStore
	maxAttempts int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewWriter(store domain.DocumentStore, m *metrics.Metrics, logger *zap.Logger) *Writer {
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:       store,
		maxAttempts: MaxWriteAttempts,
		metrics:     m,
		logger:      logger,
	}
}

// Write merges doc into the stored document for its key and commits the result.
// Conflicts loop back to the fetch step until MaxWriteAttempts is reached.
// Store failures are not retried.
func (w *Writer) Write(ctx context.Context, doc domain.SensorDocument) domain.DocumentOutcome {
	log := w.logger.With(zap.Stringer("key", doc.ID))
	outcome := domain.DocumentOutcome{ID: doc.ID}

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		outcome.Attempts = attempt

		existing, err := w.store.Get(ctx, doc.ID)
		if err != nil {
			return w.fail(log, outcome, err)
		}

		var (
			result domain.CommitResult
			merged domain.SensorDocument
		)
		if existing == nil {
			outcome.Mode = domain.WriteInsert
			merged = Merge(doc, nil)
			result, err = w.store.Insert(ctx, merged)
			outcome.Version = 1
		} else {
			outcome.Mode = domain.WriteUpdate
			expected := existing.Version
			merged = Merge(doc, existing)
			result, err = w.store.Save(ctx, merged, expected)
			outcome.Version = expected + 1
		}

		switch result {
		case domain.CommitWritten:
			w.metrics.DocumentsWritten.WithLabelValues(string(outcome.Mode)).Inc()
			log.Debug("record written",
				zap.String("mode", string(outcome.Mode)),
				zap.Int("attempts", attempt),
				zap.Int64("version", outcome.Version))
			return outcome
		case domain.CommitConflict:
			w.metrics.WriteConflicts.Inc()
			log.Debug("concurrent modification, retrying",
				zap.String("mode", string(outcome.Mode)),
				zap.Int("attempt", attempt))
		default:
			if err == nil {
				err = fmt.Errorf("%w: commit returned %s", domain.ErrStoreUnavailable, result)
			}
			return w.fail(log, outcome, err)
		}
	}

	outcome.Version = 0
	return w.fail(log, outcome, domain.ErrRetriesExhausted)
}

func (w *Writer) fail(log *zap.Logger, outcome domain.DocumentOutcome, err error) domain.DocumentOutcome {
	w.metrics.WriteFailures.Inc()
	outcome.Err = &WriteFailure{Key: outcome.ID, Attempts: outcome.Attempts, Err: err}
	log.Error("giving up on record", zap.Int("attempts", outcome.Attempts), zap.Error(err))
	return outcome
}
