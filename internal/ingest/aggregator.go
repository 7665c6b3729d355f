package ingest

import (
	"sort"

	"github.com/richd0tcom/sensordocs/internal/domain"
)

// Batch holds the documents folded from one batch, keyed device -> type -> date.
type Batch map[string]map[string]map[domain.Date]*domain.SensorDocument

// Rejection is a measurement that was dropped before aggregation.
type Rejection struct {
	Index int
	Err   error
}

// Aggregate folds measurements into one document per device, type and UTC day.
// Later measurements for the same minute overwrite earlier ones. Invalid
// measurements are skipped and reported as rejections.
func Aggregate(measurements []domain.Measurement) (Batch, []Rejection) {
	batch := make(Batch)
	var rejected []Rejection

	for i, m := range measurements {
		if err := m.Validate(); err != nil {
			rejected = append(rejected, Rejection{Index: i, Err: err})
			continue
		}
		doc := batch.document(m.DocumentID())
		hour, minute := domain.HourMinuteOf(*m.Timestamp)
		doc.Detailed.Set(hour, minute, *m.Value)
	}

	return batch, rejected
}

func (b Batch) document(id domain.DocumentID) *domain.SensorDocument {
	types, ok := b[id.Device]
	if !ok {
		types = make(map[string]map[domain.Date]*domain.SensorDocument)
		b[id.Device] = types
	}
	dates, ok := types[id.Type]
	if !ok {
		dates = make(map[domain.Date]*domain.SensorDocument)
		types[id.Type] = dates
	}
	doc, ok := dates[id.Date]
	if !ok {
		doc = domain.NewSensorDocument(id)
		dates[id.Date] = doc
	}
	return doc
}

func (b Batch) Len() int {
	n := 0
	for _, types := range b {
		for _, dates := range types {
			n += len(dates)
		}
	}
	return n
}

// Documents returns every document ordered by device, type and date.
func (b Batch) Documents() []*domain.SensorDocument {
	docs := make([]*domain.SensorDocument, 0, b.Len())
	for _, types := range b {
		for _, dates := range types {
			for _, doc := range dates {
				docs = append(docs, doc)
			}
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		a, c := docs[i].ID, docs[j].ID
		if a.Device != c.Device {
			return a.Device < c.Device
		}
		if a.Type != c.Type {
			return a.Type < c.Type
		}
		return a.Date.Before(c.Date)
	})
	return docs
}
