package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/richd0tcom/sensordocs/internal/broker"
	"github.com/richd0tcom/sensordocs/internal/domain"
	"github.com/richd0tcom/sensordocs/internal/ingest"
	"github.com/richd0tcom/sensordocs/internal/senml"
)

type BatchProcessor interface {
	ProcessBatch(ctx context.Context, measurements []domain.Measurement) (domain.BatchReport, error)
}

type Config struct {
	WorkerCount   int
	BatchSize     int
	FlushInterval time.Duration
	// DeadLetter receives the unwritten measurements of a failed batch as a
	// SenML payload. Without one they are logged at error level.
	DeadLetter broker.Publisher
}

// Worker consumes ingest payloads from a message queue, decodes them and
// hands accumulated measurements to the processor.
type Worker struct {
	processor BatchProcessor
	decoder   ingest.Decoder
	cfg       Config
	logger    *zap.Logger
}

func NewWorker(processor BatchProcessor, decoder ingest.Decoder, cfg Config, logger *zap.Logger) *Worker {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		processor: processor,
		decoder:   decoder,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start blocks until the queue stops delivering, then flushes what is
// pending and waits for every worker to finish.
func (w *Worker) Start(ctx context.Context, mq broker.MessageQueue) error {
	jobs := make(chan []domain.Measurement)

	var wg sync.WaitGroup
	for i := range w.cfg.WorkerCount {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.worker(ctx, workerID, jobs)
		}(i)
	}

	handler := func(data []byte) error {
		ms, err := w.decoder.Decode(data)
		if err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}
		if len(ms) == 0 {
			return nil
		}
		// Workers read until jobs is closed, so this never blocks for good.
		jobs <- ms
		return nil
	}

	err := mq.Consume(ctx, handler)
	close(jobs)
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) worker(ctx context.Context, workerID int, jobs <-chan []domain.Measurement) {
	log := w.logger.With(zap.Int("worker", workerID))
	log.Debug("worker started")
	defer log.Debug("worker stopped")

	batch := make([]domain.Measurement, 0, w.cfg.BatchSize)
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.processBatch(context.WithoutCancel(ctx), log, batch)
		batch = make([]domain.Measurement, 0, w.cfg.BatchSize)
	}

	for {
		select {
		case ms, ok := <-jobs:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ms...)
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, log *zap.Logger, batch []domain.Measurement) {
	start := time.Now()

	report, err := w.processor.ProcessBatch(ctx, batch)
	if err != nil {
		log.Error("failed to process batch",
			zap.Int("measurements", len(batch)),
			zap.Int("failed", len(report.Failed())),
			zap.Error(err))
		w.deadLetter(ctx, log, ingest.Unwritten(batch, report))
		return
	}

	log.Info("processed batch",
		zap.Int("measurements", report.Received),
		zap.Int("documents", len(report.Documents)),
		zap.Duration("duration", time.Since(start)))
}

func (w *Worker) deadLetter(ctx context.Context, log *zap.Logger, ms []domain.Measurement) {
	if len(ms) == 0 {
		return
	}

	payload, err := senml.Encode(ms)
	if err != nil {
		log.Error("failed to encode unwritten measurements", zap.Int("measurements", len(ms)), zap.Error(err))
		return
	}

	if w.cfg.DeadLetter == nil {
		log.Error("no dead-letter queue, unwritten measurements follow",
			zap.Int("measurements", len(ms)),
			zap.ByteString("payload", payload))
		return
	}
	if err := w.cfg.DeadLetter.Publish(ctx, payload); err != nil {
		log.Error("failed to dead-letter unwritten measurements",
			zap.Int("measurements", len(ms)),
			zap.ByteString("payload", payload),
			zap.Error(err))
		return
	}
	log.Warn("dead-lettered unwritten measurements", zap.Int("measurements", len(ms)))
}
