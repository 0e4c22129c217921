package engine

import "time"

// MetricsSnapshot is a flat, immutable copy of the counters, suitable for
// periodic export.
type MetricsSnapshot struct {
	WritesInserted    int64  `json:"writesInserted"`
	WritesUpdated     int64  `json:"writesUpdated"`
	WritesSkipped     int64  `json:"writesSkipped"`
	DuplicateSkips    int64  `json:"duplicateSkips"`
	ConflictCount     int64  `json:"conflictCount"`
	RetrievalRequests int64  `json:"retrievalRequests"`
	RetrievalHits     int64  `json:"retrievalHits"`
	RetrievalMisses   int64  `json:"retrievalMisses"`
	ArchivedCount     int64  `json:"archivedCount"`
	TokenCost         int64  `json:"tokenCost"`
	UpdatedAt         string `json:"updatedAt"`
}

// Metrics holds process-wide monotonic counters. Not safe for
// uncoordinated concurrent use; callers sharing one instance across
// goroutines must serialize access or shard per worker.
type Metrics struct {
	writesInserted    int64
	writesUpdated     int64
	writesSkipped     int64
	duplicateSkips    int64
	conflictCount     int64
	retrievalRequests int64
	retrievalHits     int64
	retrievalMisses   int64
	archivedCount     int64
	tokenCost         int64
}

// NewMetrics returns a zeroed collector. Each engine instance gets its
// own so tenants never cross-contaminate counts.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordWrite counts one write decision; a duplicate skip also counts
// toward duplicateSkips.
func (m *Metrics) RecordWrite(action WriteAction, duplicate bool) {
	switch action {
	case ActionInsert:
		m.writesInserted++
	case ActionUpdate:
		m.writesUpdated++
	case ActionSkip:
		m.writesSkipped++
	}
	if duplicate {
		m.duplicateSkips++
	}
}

func (m *Metrics) RecordConflict(count int) {
	if count > 0 {
		m.conflictCount += int64(count)
	}
}

// RecordRetrieval counts one request and exactly one of hits/misses.
func (m *Metrics) RecordRetrieval(hitCount int) {
	m.retrievalRequests++
	if hitCount > 0 {
		m.retrievalHits++
	} else {
		m.retrievalMisses++
	}
}

func (m *Metrics) RecordArchived(count int) {
	if count > 0 {
		m.archivedCount += int64(count)
	}
}

func (m *Metrics) RecordTokenCost(tokens int) {
	if tokens > 0 {
		m.tokenCost += int64(tokens)
	}
}

// Snapshot copies the counters with the current timestamp. It never
// resets state.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		WritesInserted:    m.writesInserted,
		WritesUpdated:     m.writesUpdated,
		WritesSkipped:     m.writesSkipped,
		DuplicateSkips:    m.duplicateSkips,
		ConflictCount:     m.conflictCount,
		RetrievalRequests: m.retrievalRequests,
		RetrievalHits:     m.retrievalHits,
		RetrievalMisses:   m.retrievalMisses,
		ArchivedCount:     m.archivedCount,
		TokenCost:         m.tokenCost,
		UpdatedAt:         time.Now().UTC().Format(time.RFC3339),
	}
}
