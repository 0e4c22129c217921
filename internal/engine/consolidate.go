package engine

import (
	"math"
	"sort"
)

// EpisodicMemory is a raw, low-confidence observation. It is never trusted
// as a long-term fact until consolidated.
type EpisodicMemory struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	Type       MemoryType `json:"type"`
	Subject    string     `json:"subject"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	ObservedAt string     `json:"observedAt,omitempty"`
}

// SemanticRule aggregates corroborating episodes sharing a path/subject.
type SemanticRule struct {
	Path         string     `json:"path"`
	Type         MemoryType `json:"type"`
	Subject      string     `json:"subject"`
	Value        string     `json:"value"`
	Confidence   float64    `json:"confidence"`
	SupportCount int        `json:"supportCount"`
	SourceIDs    []string   `json:"sourceIds"`
}

// ConsolidateOptions tunes consolidation; the zero value uses defaults.
type ConsolidateOptions struct {
	MinSupport          int     // default 2
	SimilarityThreshold float64 // default 0.45, peer-relatedness filter
	Similarity          SimilarityFunc
}

// ConsolidateEpisodes compresses repeated episodic observations into
// semantic rules. Episodes group by path (falling back to type+subject);
// a group emits a rule only when at least MinSupport members corroborate
// each other, an uncorroborated outlier inside a group does not count.
// The representative value is the highest-confidence member's; the rule
// confidence is the group average plus a small support bonus.
func ConsolidateEpisodes(episodes []EpisodicMemory, opts ConsolidateOptions) []SemanticRule {
	minSupport := opts.MinSupport
	if minSupport == 0 {
		minSupport = 2
	}
	simThreshold := opts.SimilarityThreshold
	if simThreshold == 0 {
		simThreshold = 0.45
	}
	sim := opts.Similarity
	if sim == nil {
		sim = CombinedSimilarity
	}
	if len(episodes) == 0 {
		return nil
	}

	grouped := make(map[string][]EpisodicMemory)
	var order []string
	for _, ep := range episodes {
		key := ep.Path
		if key == "" {
			key = string(ep.Type) + "::" + ep.Subject
		}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], ep)
	}

	var rules []SemanticRule
	for _, key := range order {
		bucket := grouped[key]
		if len(bucket) < minSupport {
			continue
		}

		var related []EpisodicMemory
		for _, item := range bucket {
			hasPeer := false
			for _, other := range bucket {
				if other.ID != item.ID && sim(item.Value, other.Value) >= simThreshold {
					hasPeer = true
					break
				}
			}
			if hasPeer {
				related = append(related, item)
			}
		}
		if len(related) < minSupport {
			continue
		}

		best := related[0]
		sum := 0.0
		ids := make([]string, 0, len(related))
		for _, item := range related {
			sum += item.Confidence
			ids = append(ids, item.ID)
			if item.Confidence > best.Confidence {
				best = item
			}
		}
		avg := sum / float64(len(related))
		bonus := math.Min(0.15, math.Log(1+float64(len(related)))/20)

		rules = append(rules, SemanticRule{
			Path:         related[0].Path,
			Type:         related[0].Type,
			Subject:      related[0].Subject,
			Value:        best.Value,
			Confidence:   clamp01(avg + bonus),
			SupportCount: len(related),
			SourceIDs:    ids,
		})
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].SupportCount != rules[j].SupportCount {
			return rules[i].SupportCount > rules[j].SupportCount
		}
		return rules[i].Confidence > rules[j].Confidence
	})
	return rules
}

// ToCanonicalFromRule converts a rule into a write candidate. A
// consolidated fact is authoritative, so it always carries the overwrite
// policy and supersedes its episodic evidence.
func ToCanonicalFromRule(rule SemanticRule) CanonicalMemory {
	utility := 0.7
	if rule.Type == MemoryTask {
		utility = 0.9
	}
	return CanonicalMemory{
		Path:          rule.Path,
		Type:          rule.Type,
		Subject:       rule.Subject,
		Value:         rule.Value,
		Confidence:    rule.Confidence,
		UpdatedPolicy: PolicyOverwrite,
		Importance:    math.Min(1, 0.5+float64(rule.SupportCount)/10),
		Utility:       utility,
		Title:         rule.Subject,
	}
}
