package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingDevice    = errors.New("missing device id")
	ErrMissingType      = errors.New("missing measurement type")
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrMissingValue     = errors.New("missing value")
)

// Measurement is one raw reading as produced by the payload parser.
// Timestamp is in seconds since the epoch and may carry a fraction.
type Measurement struct {
	DeviceID        string   `json:"device_id"`
	MeasurementType string   `json:"measurement_type"`
	Unit            string   `json:"unit,omitempty"`
	Timestamp       *float64 `json:"timestamp,omitempty"`
	Value           *float64 `json:"value,omitempty"`
}

// Validate reports the first missing field, or nil if the measurement can be aggregated.
func (m Measurement) Validate() error {
	switch {
	case m.DeviceID == "":
		return ErrMissingDevice
	case m.MeasurementType == "":
		return ErrMissingType
	case m.Timestamp == nil:
		return ErrMissingTimestamp
	case m.Value == nil:
		return ErrMissingValue
	}
	return nil
}

func (m Measurement) IsValid() bool {
	return m.Validate() == nil
}

// DocumentID is the key of the document m belongs to. m must be valid.
func (m Measurement) DocumentID() DocumentID {
	return DocumentID{
		Device: m.DeviceID,
		Type:   m.MeasurementType,
		Date:   DateOf(*m.Timestamp),
	}
}

// DocumentID is the composite key of a stored document.
type DocumentID struct {
	Device string
	Type   string
	Date   Date
}

func (id DocumentID) String() string {
	return fmt.Sprintf("%s/%s/%s", id.Device, id.Type, id.Date)
}

// Detailed maps hour of day to minute of hour to value.
type Detailed map[int]map[int]float64

// Set stores value at (hour, minute), creating the hour bucket if needed.
func (d Detailed) Set(hour, minute int, value float64) {
	minutes, ok := d[hour]
	if !ok {
		minutes = make(map[int]float64)
		d[hour] = minutes
	}
	minutes[minute] = value
}

func (d Detailed) Clone() Detailed {
	if d == nil {
		return nil
	}
	out := make(Detailed, len(d))
	for hour, minutes := range d {
		if minutes == nil {
			out[hour] = nil
			continue
		}
		cp := make(map[int]float64, len(minutes))
		for minute, v := range minutes {
			cp[minute] = v
		}
		out[hour] = cp
	}
	return out
}

// Summary maps hour of day to the average of that hour's minute values.
type Summary map[int]float64

// SensorDocument is the per device, type and day aggregate.
// Version is zero until the document has been stored.
type SensorDocument struct {
	ID       DocumentID
	Detailed Detailed
	Summary  Summary
	Version  int64
}

func NewSensorDocument(id DocumentID) *SensorDocument {
	return &SensorDocument{
		ID:       id,
		Detailed: make(Detailed),
	}
}

// Clone returns a copy that shares no maps with d.
func (d SensorDocument) Clone() SensorDocument {
	out := SensorDocument{
		ID:       d.ID,
		Detailed: d.Detailed.Clone(),
		Version:  d.Version,
	}
	if d.Summary != nil {
		out.Summary = make(Summary, len(d.Summary))
		for h, v := range d.Summary {
			out.Summary[h] = v
		}
	}
	return out
}

// BatchObserver is notified after every processed batch.
type BatchObserver interface {
	Process(report BatchReport) error
}
