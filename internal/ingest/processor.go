package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/richd0tcom/sensordocs/internal/domain"
	"github.com/richd0tcom/sensordocs/internal/metrics"
)

// Processor runs validate -> aggregate -> write for a batch of measurements.
type Processor struct {
	stores      domain.StoreOpener
	concurrency int
	observers   []domain.BatchObserver
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

type Option func(*Processor)

// WithConcurrency sets how many documents are written in parallel. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n < 1 {
			n = 1
		}
		p.concurrency = n
	}
}

func WithObserver(o domain.BatchObserver) Option {
	return func(p *Processor) {
		p.observers = append(p.observers, o)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = l
	}
}

func NewProcessor(stores domain.StoreOpener, opts ...Option) *Processor {
	p := &Processor{
		stores:      stores,
		concurrency: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.NewMetrics(nil)
	}
	return p
}

// ProcessBatch writes every document derived from measurements.
//
// An empty or fully invalid batch succeeds without touching the store. Each
// document is written independently; the returned error joins one
// *WriteFailure per document that could not be written. Documents written
// before a failure stay written.
func (p *Processor) ProcessBatch(ctx context.Context, measurements []domain.Measurement) (domain.BatchReport, error) {
	start := time.Now()
	defer func() {
		p.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	batch, rejected := Aggregate(measurements)
	for _, r := range rejected {
		p.logger.Debug("dropping measurement", zap.Int("index", r.Index), zap.Error(r.Err))
	}

	report := domain.BatchReport{
		Received: len(measurements),
		Accepted: len(measurements) - len(rejected),
		Dropped:  len(rejected),
	}
	p.metrics.Measurements.WithLabelValues("accepted").Add(float64(report.Accepted))
	p.metrics.Measurements.WithLabelValues("dropped").Add(float64(report.Dropped))

	docs := batch.Documents()
	p.logger.Debug("writing records",
		zap.Int("measurements", report.Received),
		zap.Int("dropped", report.Dropped),
		zap.Int("documents", len(docs)))
	if len(docs) == 0 {
		p.notify(report)
		return report, nil
	}

	store, release, err := p.stores.Open(ctx)
	if err != nil {
		return report, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("failed to release store connection", zap.Error(err))
		}
	}()

	writer := NewWriter(store, p.metrics, p.logger.Named("writer"))
	report.Documents = make([]domain.DocumentOutcome, len(docs))

	// Goroutines never return an error so one failed key cannot cancel the others.
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			report.Documents[i] = writer.Write(ctx, *doc)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, d := range report.Documents {
		if d.Err != nil {
			errs = append(errs, d.Err)
		}
	}

	p.notify(report)
	return report, errors.Join(errs...)
}

func (p *Processor) notify(report domain.BatchReport) {
	for _, o := range p.observers {
		if err := o.Process(report); err != nil {
			p.logger.Warn("batch observer failed", zap.Error(err))
		}
	}
}

// Unwritten returns the valid measurements of a failed batch whose documents
// were not written. When no document outcome failed, the batch failed before
// writing and every valid measurement is returned.
func Unwritten(measurements []domain.Measurement, report domain.BatchReport) []domain.Measurement {
	failed := report.Failed()
	keys := make(map[domain.DocumentID]struct{}, len(failed))
	for _, d := range failed {
		keys[d.ID] = struct{}{}
	}

	var out []domain.Measurement
	for _, m := range measurements {
		if !m.IsValid() {
			continue
		}
		if len(keys) > 0 {
			if _, ok := keys[m.DocumentID()]; !ok {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
