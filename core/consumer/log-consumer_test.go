package consumer

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/richd0tcom/sensordocs/internal/domain"
)

func TestLogConsumer_Process(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := NewLogConsumer("batches", zap.New(core))

	date := domain.NewDate(2017, time.January, 31)
	report := domain.BatchReport{
		Received: 3,
		Accepted: 2,
		Dropped:  1,
		Documents: []domain.DocumentOutcome{
			{ID: domain.DocumentID{Device: "d1", Type: "temp", Date: date}, Mode: domain.WriteInsert, Attempts: 1, Version: 1},
			{ID: domain.DocumentID{Device: "d2", Type: "temp", Date: date}, Attempts: 10, Err: errors.New("write retries exhausted")},
		},
	}
	if err := c.Process(report); err != nil {
		t.Fatalf("Process: %v", err)
	}

	summary := logs.FilterMessage("batch processed").All()
	if len(summary) != 1 {
		t.Fatalf("expected one summary line, got %d", len(summary))
	}
	fields := summary[0].ContextMap()
	if fields["failed"] != int64(1) || fields["dropped"] != int64(1) {
		t.Errorf("unexpected summary fields %v", fields)
	}
	if summary[0].LoggerName != "batches" {
		t.Errorf("expected named logger, got %q", summary[0].LoggerName)
	}

	if n := logs.FilterMessage("document written").Len(); n != 1 {
		t.Errorf("expected one written line, got %d", n)
	}
	failed := logs.FilterMessage("document not written").All()
	if len(failed) != 1 || failed[0].ContextMap()["key"] != "d2/temp/2017-01-31" {
		t.Errorf("unexpected failure lines %v", failed)
	}
}
