package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/richd0tcom/sensordocs/internal/domain"
	"github.com/richd0tcom/sensordocs/internal/senml"
)

type sensorKind struct {
	name     string
	unit     string
	min, max float64
}

var kinds = []sensorKind{
	{"temperature", "Cel", 10, 60},
	{"humidity", "%RH", 0, 100},
	{"pressure", "hPa", 900, 1100},
	{"light", "lx", 0, 1000},
	{"sound", "dB", 20, 100},
}

// generator builds SenML payloads for a fixed fleet of devices. Readings are
// spread over the last hour so consecutive requests hit the same documents.
type generator struct {
	rnd     *rand.Rand
	devices []string
}

func newGenerator(seed int64, devices int) *generator {
	g := &generator{rnd: rand.New(rand.NewSource(seed))}
	for i := 0; i < devices; i++ {
		g.devices = append(g.devices, fmt.Sprintf("urn:dev:load:%03d", i))
	}
	return g
}

func (g *generator) measurements(n int, now time.Time) []domain.Measurement {
	device := g.devices[g.rnd.Intn(len(g.devices))]
	ms := make([]domain.Measurement, 0, n)
	for i := 0; i < n; i++ {
		k := kinds[g.rnd.Intn(len(kinds))]
		ts := float64(now.Add(-time.Duration(g.rnd.Intn(3600))*time.Second).UnixMilli()) / 1000
		v := k.min + g.rnd.Float64()*(k.max-k.min)
		ms = append(ms, domain.Measurement{
			DeviceID:        device,
			MeasurementType: k.name,
			Unit:            k.unit,
			Timestamp:       &ts,
			Value:           &v,
		})
	}
	return ms
}

func (g *generator) payload(n int, now time.Time) ([]byte, error) {
	return senml.Encode(g.measurements(n, now))
}
