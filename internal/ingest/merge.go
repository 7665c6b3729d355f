package ingest

import "github.com/richd0tcom/sensordocs/internal/domain"

// Merge folds incoming into existing and recomputes the summary.
//
// With no existing document the result is a copy of incoming. Otherwise
// existing is updated in place: incoming minutes overwrite colliding minutes,
// every other stored minute is kept. incoming is never modified.
func Merge(incoming domain.SensorDocument, existing *domain.SensorDocument) domain.SensorDocument {
	src := incoming.Clone()

	if existing == nil {
		if src.Detailed == nil {
			src.Detailed = make(domain.Detailed)
		}
		src.Summary = Summarize(src.Detailed)
		return src
	}

	if existing.Detailed == nil {
		existing.Detailed = make(domain.Detailed, len(src.Detailed))
	}
	for hour, minutes := range src.Detailed {
		current, ok := existing.Detailed[hour]
		if !ok || current == nil {
			if minutes == nil {
				minutes = make(map[int]float64)
			}
			existing.Detailed[hour] = minutes
			continue
		}
		for minute, v := range minutes {
			current[minute] = v
		}
	}
	existing.Summary = Summarize(existing.Detailed)
	return *existing
}
