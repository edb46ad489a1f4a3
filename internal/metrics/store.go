package metrics

import (
	"sync"
	"time"
)

// Default is the process-wide store that New recorders flush into.
var Default = NewStore()

// Store holds counters and timing aggregates since process start.
// It is safe for concurrent use.
type Store struct {
	started time.Time

	mu       sync.Mutex
	counters map[string]int64
	timings  map[string]*timing
}

type timing struct {
	count int64
	total float64
	max   float64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		started:  time.Now(),
		counters: make(map[string]int64),
		timings:  make(map[string]*timing),
	}
}

// Add increments the named counter by delta.
func (s *Store) Add(name string, delta int64) {
	s.mu.Lock()
	s.counters[name] += delta
	s.mu.Unlock()
}

// Observe records one duration sample in milliseconds.
func (s *Store) Observe(name string, ms float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timings[name]
	if !ok {
		t = &timing{}
		s.timings[name] = t
	}
	t.count++
	t.total += ms
	if ms > t.max {
		t.max = ms
	}
}

// Counter returns the current value of a counter.
func (s *Store) Counter(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

// TimingSnapshot summarises the samples recorded for one timing.
type TimingSnapshot struct {
	Count   int64   `json:"count"`
	TotalMs float64 `json:"totalMs"`
	AvgMs   float64 `json:"avgMs"`
	MaxMs   float64 `json:"maxMs"`
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	UptimeSeconds float64                   `json:"uptimeSeconds"`
	Counters      map[string]int64          `json:"counters"`
	Timings       map[string]TimingSnapshot `json:"timings"`
}

// Snapshot copies the current values.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(s.started).Seconds(),
		Counters:      make(map[string]int64, len(s.counters)),
		Timings:       make(map[string]TimingSnapshot, len(s.timings)),
	}
	for k, v := range s.counters {
		snap.Counters[k] = v
	}
	for k, t := range s.timings {
		snap.Timings[k] = TimingSnapshot{
			Count:   t.count,
			TotalMs: t.total,
			AvgMs:   t.total / float64(t.count),
			MaxMs:   t.max,
		}
	}
	return snap
}
