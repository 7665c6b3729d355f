package ingest

import "github.com/richd0tcom/sensordocs/internal/domain"

// Summarize averages each hour of detailed. Hours without minute values get no entry.
func Summarize(detailed domain.Detailed) domain.Summary {
	summary := make(domain.Summary, len(detailed))
	for hour, minutes := range detailed {
		if len(minutes) == 0 {
			continue
		}
		var sum float64
		for _, v := range minutes {
			sum += v
		}
		summary[hour] = sum / float64(len(minutes))
	}
	return summary
}
