// Package collector implements a local ingestion endpoint for agentpulse events.
// It keeps recent events in memory and streams them to dashboards over SSE.
package collector

import (
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// DefaultCapacity is the number of events kept in memory.
const DefaultCapacity = 1000

// Record is one accepted event.
type Record struct {
	Seq        uint64          `json:"seq"`
	ReceivedAt time.Time       `json:"received_at"`
	Type       string          `json:"type"`
	Event      json.RawMessage `json:"event"`
}

// Store is a fixed-size ring buffer of records. Oldest records are overwritten.
type Store struct {
	mu      sync.RWMutex
	records []Record
	next    int
	full    bool
	seq     uint64
}

// NewStore creates a Store holding at most capacity records.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{records: make([]Record, capacity)}
}

// Add appends an event and returns its record.
func (s *Store) Add(eventType string, raw json.RawMessage) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec := Record{
		Seq:        s.seq,
		ReceivedAt: time.Now().UTC(),
		Type:       eventType,
		Event:      raw,
	}
	s.records[s.next] = rec
	s.next = (s.next + 1) % len(s.records)
	if s.next == 0 {
		s.full = true
	}
	return rec
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.records)
	}
	return s.next
}

// Recent returns up to limit records, oldest first. limit <= 0 returns all.
func (s *Store) Recent(limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	start := 0
	if s.full {
		n = len(s.records)
		start = s.next
	}
	if limit > 0 && limit < n {
		start = (start + n - limit) % len(s.records)
		n = limit
	}

	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.records[(start+i)%len(s.records)])
	}
	return out
}
