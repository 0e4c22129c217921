package engine

import (
	"context"
	"fmt"
	"time"
)

// WriteAction is the write gate's admission verdict.
type WriteAction string

const (
	ActionInsert WriteAction = "insert"
	ActionUpdate WriteAction = "update"
	ActionSkip   WriteAction = "skip"
)

// WritePatch carries the fields to apply to the target on an update.
type WritePatch struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Version    int     `json:"version"`
	UpdatedAt  string  `json:"updatedAt"`
	ObservedAt string  `json:"observedAt,omitempty"`
}

// WriteDecision is the outcome of admitting one candidate. Target and
// Patch are set on updates; Duplicate marks a value-equality skip;
// Conflict is reported for metrics even when the action is a skip.
type WriteDecision struct {
	Action    WriteAction       `json:"action"`
	Reason    string            `json:"reason,omitempty"`
	Target    *StoredMemoryNode `json:"target,omitempty"`
	Patch     *WritePatch       `json:"patch,omitempty"`
	Conflict  bool              `json:"conflict,omitempty"`
	Duplicate bool              `json:"duplicate,omitempty"`
}

// GateOptions tunes the write gate; the zero value uses defaults.
type GateOptions struct {
	Resolve ResolveOptions
}

// newestNode returns the node with the latest UpdatedAt. Unparsable
// timestamps sort oldest; ties keep the later list entry so a freshly
// appended batch overlay wins.
func newestNode(nodes []StoredMemoryNode) *StoredMemoryNode {
	var best *StoredMemoryNode
	var bestAt time.Time
	for i := range nodes {
		at, err := time.Parse(time.RFC3339, nodes[i].UpdatedAt)
		if err != nil {
			at = time.Time{}
		}
		if best == nil || !at.Before(bestAt) {
			best = &nodes[i]
			bestAt = at
		}
	}
	return best
}

// DecideWrite decides insert, update, or skip for one candidate against
// the existing nodes at its path.
//
// If no node exists at the path the candidate inserts. If the newest
// node's normalized value equals the candidate's, the write is a duplicate
// skip. Anything else defers to the conflict resolver under the
// candidate's policy (registry default when absent).
func DecideWrite(existing []StoredMemoryNode, incoming CanonicalMemory, opts GateOptions) WriteDecision {
	var atPath []StoredMemoryNode
	for _, n := range existing {
		if n.MoryPath == incoming.Path {
			atPath = append(atPath, n)
		}
	}
	if len(atPath) == 0 {
		return WriteDecision{Action: ActionInsert}
	}

	newest := newestNode(atPath)
	if NormalizeValue(newest.Value) == NormalizeValue(incoming.Value) {
		return WriteDecision{
			Action:    ActionSkip,
			Reason:    "duplicate: value already stored",
			Target:    newest,
			Duplicate: true,
		}
	}

	// The gate sees unversioned nodes; the resolver needs a version to
	// increment. Version 1 stands in here, and the orchestrator re-resolves
	// with the real persisted version before applying.
	versioned := VersionedMemoryNode{StoredMemoryNode: *newest, Version: 1}
	res := ResolveMemoryConflict(versioned, incoming, opts.Resolve)

	switch res.Action {
	case ReplaceExisting, MergeValues:
		return WriteDecision{
			Action: ActionUpdate,
			Reason: res.Reason,
			Target: newest,
			Patch: &WritePatch{
				Value:      res.Next.Value,
				Confidence: res.Next.Confidence,
				Version:    res.Next.Version,
				UpdatedAt:  res.Next.UpdatedAt,
				ObservedAt: res.Next.ObservedAt,
			},
			Conflict: res.Conflict,
		}
	case FlagConflict:
		return WriteDecision{
			Action:   ActionSkip,
			Reason:   res.Reason,
			Target:   newest,
			Conflict: true,
		}
	default:
		return WriteDecision{
			Action:   ActionSkip,
			Reason:   res.Reason,
			Target:   newest,
			Conflict: res.Conflict,
		}
	}
}

// GatedMemory pairs a candidate with its decision.
type GatedMemory struct {
	Canonical CanonicalMemory `json:"canonical"`
	Decision  WriteDecision   `json:"decision"`
}

// FetchExistingFunc returns the stored nodes at a canonical path.
type FetchExistingFunc func(ctx context.Context, moryPath string) ([]StoredMemoryNode, error)

// BatchDecideWrite gates a batch of candidates in input order. Existing
// nodes are fetched at most once per distinct path; decisions that mutate
// the logical record update an in-memory overlay so later candidates in
// the same batch observe earlier ones without a second storage trip.
func BatchDecideWrite(ctx context.Context, incoming []CanonicalMemory, fetch FetchExistingFunc, opts GateOptions) ([]GatedMemory, error) {
	cache := make(map[string][]StoredMemoryNode)
	pendingID := 0

	results := make([]GatedMemory, 0, len(incoming))
	for _, mem := range incoming {
		existing, ok := cache[mem.Path]
		if !ok {
			fetched, err := fetch(ctx, mem.Path)
			if err != nil {
				return nil, fmt.Errorf("writegate: fetch existing for %s: %w", mem.Path, err)
			}
			existing = fetched
			cache[mem.Path] = existing
		}

		decision := DecideWrite(existing, mem, opts)

		switch decision.Action {
		case ActionInsert:
			cache[mem.Path] = append(existing, StoredMemoryNode{
				ID:         fmt.Sprintf("batch-pending-%d", pendingID),
				MoryPath:   mem.Path,
				Value:      mem.Value,
				Confidence: mem.Confidence,
				UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
			})
			pendingID++
		case ActionUpdate:
			updated := make([]StoredMemoryNode, len(existing))
			copy(updated, existing)
			for i := range updated {
				if updated[i].ID == decision.Target.ID {
					updated[i].Value = decision.Patch.Value
					updated[i].Confidence = decision.Patch.Confidence
					updated[i].UpdatedAt = decision.Patch.UpdatedAt
				}
			}
			cache[mem.Path] = updated
		}

		results = append(results, GatedMemory{Canonical: mem, Decision: decision})
	}
	return results, nil
}
