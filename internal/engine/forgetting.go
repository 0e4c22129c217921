package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// ForgettingPolicy bounds how many active records a scope may retain.
type ForgettingPolicy struct {
	Capacity          int     `json:"capacity"`
	MinRetentionScore float64 `json:"minRetentionScore,omitempty"` // default 0.25
	HalfLifeDays      float64 `json:"halfLifeDays,omitempty"`      // default 21
}

// ForgettingPlan partitions the input into keep and archive. The two sets
// are disjoint and together cover the input.
type ForgettingPlan struct {
	Keep        []PersistedMemoryNode `json:"keep"`
	Archive     []PersistedMemoryNode `json:"archive"`
	ArchivedIDs []string              `json:"archivedIds"`
}

const (
	defaultMinRetentionScore = 0.25
	defaultHalfLifeDays      = 21.0
	// recencyFallback applies when a timestamp cannot be parsed: neither
	// fully fresh nor fully stale, so one bad row cannot trigger mass
	// eviction.
	recencyFallback = 0.2
)

func recencyWeight(updatedAt string, halfLifeDays float64, now time.Time) float64 {
	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil || ts.IsZero() || ts.Unix() <= 0 {
		return recencyFallback
	}
	ageDays := math.Max(0, now.Sub(ts).Hours()/24)
	lambda := math.Ln2 / math.Max(1, halfLifeDays)
	return math.Exp(-lambda * ageDays)
}

func frequencyWeight(accessCount int) float64 {
	if accessCount < 0 {
		accessCount = 0
	}
	return clamp01(math.Log(1+float64(accessCount)) / math.Log(21))
}

// RetentionScore ranks a node's worth in [0,1]: importance 0.45,
// confidence 0.15, access frequency 0.20, recency 0.20.
func RetentionScore(node PersistedMemoryNode, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = defaultHalfLifeDays
	}
	recency := recencyWeight(node.UpdatedAt, halfLifeDays, time.Now().UTC())
	frequency := frequencyWeight(node.AccessCount)
	return clamp01(
		clamp01(node.Importance)*0.45 +
			clamp01(node.Confidence)*0.15 +
			frequency*0.20 +
			recency*0.20)
}

// PlanForgetting computes which nodes survive a capacity bound. Under
// capacity everything is kept. Over capacity, nodes sort descending by
// retention score (stable, so ties keep input order); up to Capacity nodes
// at or above the score floor are kept, everything else is archived.
func PlanForgetting(nodes []PersistedMemoryNode, policy ForgettingPolicy) ForgettingPlan {
	if len(nodes) <= policy.Capacity {
		return ForgettingPlan{Keep: nodes, Archive: []PersistedMemoryNode{}, ArchivedIDs: []string{}}
	}

	minScore := policy.MinRetentionScore
	if minScore == 0 {
		minScore = defaultMinRetentionScore
	}
	halfLife := policy.HalfLifeDays
	if halfLife == 0 {
		halfLife = defaultHalfLifeDays
	}

	type scored struct {
		node  PersistedMemoryNode
		score float64
	}
	items := make([]scored, len(nodes))
	for i, n := range nodes {
		items[i] = scored{node: n, score: RetentionScore(n, halfLife)}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })

	plan := ForgettingPlan{Archive: []PersistedMemoryNode{}, ArchivedIDs: []string{}}
	for _, item := range items {
		if len(plan.Keep) < policy.Capacity && item.score >= minScore {
			plan.Keep = append(plan.Keep, item.node)
			continue
		}
		plan.Archive = append(plan.Archive, item.node)
		plan.ArchivedIDs = append(plan.ArchivedIDs, item.node.ID)
	}
	return plan
}

// ApplyForgettingPolicy fetches active records for a user, plans the
// eviction, and issues at most one archive call. Storage failures
// propagate unchanged with no partial side effect.
func ApplyForgettingPolicy(ctx context.Context, storage Storage, userID string, policy ForgettingPolicy) (ForgettingPlan, error) {
	limit := policy.Capacity * 5
	if limit < 200 {
		limit = 200
	}
	rows, err := storage.List(ctx, userID, ListOptions{Limit: limit})
	if err != nil {
		return ForgettingPlan{}, fmt.Errorf("forgetting: list active nodes: %w", err)
	}
	plan := PlanForgetting(rows, policy)
	if len(plan.ArchivedIDs) > 0 {
		if _, err := storage.Archive(ctx, userID, plan.ArchivedIDs); err != nil {
			return ForgettingPlan{}, fmt.Errorf("forgetting: archive %d nodes: %w", len(plan.ArchivedIDs), err)
		}
	}
	return plan, nil
}
