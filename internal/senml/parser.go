// Package senml decodes the limited SenML payloads sent by the sensor gateways:
//
//	{"d":[{"bn":"urn:dev:mac:784b87a58c3d;temp1","bt":1485869189.215,"n":"temp","u":"Cel","v":27.9}],
//	 "clientid":"edison-1","timestamp":1485869189339,"topic":"iot/sensordata/prod/json"}
//
// bn names the device, n the measurement type, bt the base time in Unix
// seconds and v the value. A record without bn or bt inherits the last one
// seen earlier in the same payload, and t is an offset added to the base time.
package senml

import (
	"encoding/json"
	"fmt"

	"github.com/richd0tcom/sensordocs/internal/domain"
)

// Payload is the gateway message.
type Payload struct {
	Data      []Record `json:"d"`
	ClientID  string   `json:"clientid,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Topic     string   `json:"topic,omitempty"`
}

type Record struct {
	BaseName string   `json:"bn,omitempty"`
	BaseTime *float64 `json:"bt,omitempty"`
	Name     string   `json:"n,omitempty"`
	Unit     string   `json:"u,omitempty"`
	Time     *float64 `json:"t,omitempty"`
	Value    *float64 `json:"v,omitempty"`
}

// Parse decodes data into measurements in payload order.
// Incomplete records are returned as is; validation happens downstream.
func Parse(data []byte) ([]domain.Measurement, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode senml payload: %w", err)
	}
	return p.Measurements(), nil
}

func (p Payload) Measurements() []domain.Measurement {
	out := make([]domain.Measurement, 0, len(p.Data))

	var (
		baseName string
		baseTime *float64
	)
	for _, r := range p.Data {
		if r.BaseName != "" {
			baseName = r.BaseName
		}
		if r.BaseTime != nil {
			baseTime = r.BaseTime
		}

		m := domain.Measurement{
			DeviceID:        baseName,
			MeasurementType: r.Name,
			Unit:            r.Unit,
			Value:           r.Value,
		}
		switch {
		case baseTime != nil && r.Time != nil:
			ts := *baseTime + *r.Time
			m.Timestamp = &ts
		case baseTime != nil:
			ts := *baseTime
			m.Timestamp = &ts
		case r.Time != nil:
			ts := *r.Time
			m.Timestamp = &ts
		}
		out = append(out, m)
	}
	return out
}

// Encode writes measurements as a payload that Parse reads back unchanged.
// Every record carries its own bn and bt, so only valid measurements survive
// the trip exactly; an empty device would inherit the previous record's.
func Encode(ms []domain.Measurement) ([]byte, error) {
	p := Payload{Data: make([]Record, 0, len(ms))}
	for _, m := range ms {
		p.Data = append(p.Data, Record{
			BaseName: m.DeviceID,
			BaseTime: m.Timestamp,
			Name:     m.MeasurementType,
			Unit:     m.Unit,
			Value:    m.Value,
		})
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode senml payload: %w", err)
	}
	return data, nil
}
