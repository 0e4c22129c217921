package engine

import (
	"fmt"
	"strings"
	"time"
)

// ConflictAction is the resolver's verdict for one existing/incoming pair.
type ConflictAction string

const (
	KeepExisting    ConflictAction = "keep_existing"
	ReplaceExisting ConflictAction = "replace_existing"
	MergeValues     ConflictAction = "merge"
	FlagConflict    ConflictAction = "flag_conflict"
)

// ConflictResolution is the outcome of resolving one incoming candidate
// against one existing versioned record. Next is the proposed replacement
// snapshot for replace/merge actions; the caller persists it.
type ConflictResolution struct {
	Action   ConflictAction       `json:"action"`
	Conflict bool                 `json:"conflict"`
	Reason   string               `json:"reason"`
	Next     *VersionedMemoryNode `json:"next,omitempty"`
}

// ResolveOptions tunes the conflict heuristics. Zero values take the
// defaults below.
type ResolveOptions struct {
	// ConfidenceMargin is the decision margin for highest_confidence and
	// the "too close to call" band that turns a contradiction into a
	// flag_conflict.
	ConfidenceMargin float64
	// HighConfidence is the floor both values must clear before a
	// contradiction is considered at all.
	HighConfidence float64
	// ContradictionSimilarity: two high-confidence values less similar
	// than this are judged substantively contradictory.
	ContradictionSimilarity float64
	Similarity              SimilarityFunc
}

const (
	defaultConfidenceMargin        = 0.05
	defaultHighConfidence          = 0.7
	defaultContradictionSimilarity = 0.35
)

func (o ResolveOptions) withDefaults() ResolveOptions {
	if o.ConfidenceMargin == 0 {
		o.ConfidenceMargin = defaultConfidenceMargin
	}
	if o.HighConfidence == 0 {
		o.HighConfidence = defaultHighConfidence
	}
	if o.ContradictionSimilarity == 0 {
		o.ContradictionSimilarity = defaultContradictionSimilarity
	}
	if o.Similarity == nil {
		o.Similarity = CombinedSimilarity
	}
	return o
}

// mergeValueStrings append-merges two values, skipping containment cases.
func mergeValueStrings(existing, incoming string) string {
	if strings.Contains(existing, incoming) {
		return existing
	}
	if strings.Contains(incoming, existing) {
		return incoming
	}
	return strings.TrimRight(existing, " \t\n") + "; " + strings.TrimLeft(incoming, " \t\n")
}

func nextSnapshot(existing VersionedMemoryNode, incoming CanonicalMemory, value string, confidence float64, conflictFlag bool) *VersionedMemoryNode {
	now := time.Now().UTC().Format(time.RFC3339)
	next := existing
	next.Value = value
	next.Confidence = clamp01(confidence)
	next.UpdatedAt = now
	next.Version = existing.Version + 1
	next.Supersedes = existing.ID
	next.ConflictFlag = conflictFlag
	next.ObservedAt = incoming.ObservedAt
	if next.ObservedAt == "" {
		next.ObservedAt = now
	}
	if incoming.Source != "" {
		next.Source = incoming.Source
	}
	return &next
}

// ResolveMemoryConflict decides what to do with an incoming candidate when
// a versioned record already exists at the same path.
//
// Two values are contradictory when both carry high confidence yet their
// similarity falls below the contradiction threshold. Contradiction is
// reported through Conflict regardless of the chosen action; only a
// highest_confidence standoff (confidences within the margin) escalates to
// flag_conflict.
func ResolveMemoryConflict(existing VersionedMemoryNode, incoming CanonicalMemory, opts ResolveOptions) ConflictResolution {
	opts = opts.withDefaults()

	similarity := opts.Similarity(existing.Value, incoming.Value)
	contradictory := existing.Confidence >= opts.HighConfidence &&
		incoming.Confidence >= opts.HighConfidence &&
		similarity < opts.ContradictionSimilarity

	policy := incoming.UpdatedPolicy
	if policy == "" {
		policy = PolicyForRawPath(incoming.Path)
	}

	switch policy {
	case PolicyOverwrite:
		return ConflictResolution{
			Action:   ReplaceExisting,
			Conflict: contradictory,
			Reason:   "policy overwrite",
			Next:     nextSnapshot(existing, incoming, incoming.Value, incoming.Confidence, contradictory),
		}

	case PolicyHighestConfidence:
		diff := incoming.Confidence - existing.Confidence
		if diff > opts.ConfidenceMargin {
			return ConflictResolution{
				Action:   ReplaceExisting,
				Conflict: contradictory,
				Reason:   fmt.Sprintf("incoming confidence %.2f exceeds existing %.2f", incoming.Confidence, existing.Confidence),
				Next:     nextSnapshot(existing, incoming, incoming.Value, incoming.Confidence, contradictory),
			}
		}
		if contradictory && diff >= -opts.ConfidenceMargin {
			return ConflictResolution{
				Action:   FlagConflict,
				Conflict: true,
				Reason:   "contradiction with confidences too close to call",
			}
		}
		return ConflictResolution{
			Action:   KeepExisting,
			Conflict: contradictory,
			Reason:   fmt.Sprintf("existing confidence %.2f retained", existing.Confidence),
		}

	case PolicyMergeAppend:
		merged := mergeValueStrings(existing.Value, incoming.Value)
		return ConflictResolution{
			Action:   MergeValues,
			Conflict: contradictory,
			Reason:   "policy merge_append",
			Next:     nextSnapshot(existing, incoming, merged, maxFloat(existing.Confidence, incoming.Confidence), contradictory),
		}
	}

	return ConflictResolution{
		Action: KeepExisting,
		Reason: fmt.Sprintf("unknown policy %q", policy),
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
