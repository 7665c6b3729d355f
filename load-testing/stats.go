package main

import (
	"sort"
	"sync"
	"time"
)

type stats struct {
	mu        sync.Mutex
	latencies []time.Duration
	failures  int
	errors    map[string]int
}

func newStats() *stats {
	return &stats{errors: make(map[string]int)}
}

func (s *stats) record(latency time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latencies = append(s.latencies, latency)
	if err != nil {
		s.failures++
		s.errors[err.Error()]++
	}
}

type summary struct {
	Requests      int
	Failures      int
	P50, P95, P99 time.Duration
	Max           time.Duration
	Errors        map[string]int
}

func (s *stats) summary() summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]time.Duration(nil), s.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := summary{
		Requests: len(sorted),
		Failures: s.failures,
		Errors:   make(map[string]int, len(s.errors)),
	}
	for k, v := range s.errors {
		out.Errors[k] = v
	}
	if len(sorted) == 0 {
		return out
	}
	out.P50 = percentile(sorted, 50)
	out.P95 = percentile(sorted, 95)
	out.P99 = percentile(sorted, 99)
	out.Max = sorted[len(sorted)-1]
	return out
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
