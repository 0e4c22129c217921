package engine

import "testing"

func TestMetrics_RecordWrite(t *testing.T) {
	m := NewMetrics()
	m.RecordWrite(ActionInsert, false)
	m.RecordWrite(ActionUpdate, false)
	m.RecordWrite(ActionSkip, true)
	m.RecordWrite(ActionSkip, false)

	snap := m.Snapshot()
	if snap.WritesInserted != 1 || snap.WritesUpdated != 1 || snap.WritesSkipped != 2 {
		t.Errorf("write counters wrong: %+v", snap)
	}
	if snap.DuplicateSkips != 1 {
		t.Errorf("duplicate skips %d, want 1", snap.DuplicateSkips)
	}
}

func TestMetrics_RecordRetrieval(t *testing.T) {
	m := NewMetrics()
	m.RecordRetrieval(3)
	m.RecordRetrieval(0)
	m.RecordRetrieval(1)

	snap := m.Snapshot()
	if snap.RetrievalRequests != 3 {
		t.Errorf("requests %d, want 3", snap.RetrievalRequests)
	}
	if snap.RetrievalHits != 2 || snap.RetrievalMisses != 1 {
		t.Errorf("hits %d misses %d, want 2/1", snap.RetrievalHits, snap.RetrievalMisses)
	}
	if snap.RetrievalHits+snap.RetrievalMisses != snap.RetrievalRequests {
		t.Error("every request must count as exactly one hit or miss")
	}
}

func TestMetrics_NegativeCountsIgnored(t *testing.T) {
	m := NewMetrics()
	m.RecordConflict(-1)
	m.RecordArchived(-5)
	m.RecordTokenCost(-100)

	snap := m.Snapshot()
	if snap.ConflictCount != 0 || snap.ArchivedCount != 0 || snap.TokenCost != 0 {
		t.Errorf("negative inputs must not move counters: %+v", snap)
	}
}

func TestMetrics_SnapshotDoesNotReset(t *testing.T) {
	m := NewMetrics()
	m.RecordArchived(4)
	m.RecordTokenCost(120)

	first := m.Snapshot()
	second := m.Snapshot()
	if first.ArchivedCount != second.ArchivedCount || first.TokenCost != second.TokenCost {
		t.Error("snapshot must be read-only")
	}
	if second.UpdatedAt == "" {
		t.Error("snapshot should carry a timestamp")
	}
}
