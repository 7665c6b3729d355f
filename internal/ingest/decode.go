package ingest

import (
	"go.uber.org/zap"

	"github.com/richd0tcom/sensordocs/internal/domain"
	"github.com/richd0tcom/sensordocs/internal/envelope"
	"github.com/richd0tcom/sensordocs/internal/senml"
)

// Decoder turns a raw ingest payload into measurements.
type Decoder struct {
	// DisableUnwrap passes SNS notifications to the parser untouched.
	DisableUnwrap bool
	// LogInput logs every raw payload at debug level.
	LogInput bool
	Logger   *zap.Logger
}

func (d Decoder) Decode(data []byte) ([]domain.Measurement, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.LogInput {
		logger.Debug("received payload", zap.ByteString("payload", data))
	}

	if !d.DisableUnwrap {
		if msg, ok := envelope.Unwrap(data); ok {
			logger.Debug("removed sns envelope")
			data = msg
		}
	}

	ms, err := senml.Parse(data)
	if err != nil {
		return nil, err
	}
	logger.Debug("parsed payload", zap.Int("records", len(ms)))
	return ms, nil
}
