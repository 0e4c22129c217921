package engine

import "fmt"

// ScoreMode selects the admission scoring formula.
type ScoreMode string

const (
	// ModeWeighted averages novelty and confidence with equal weight.
	ModeWeighted ScoreMode = "weighted"
	// ModeProduct multiplies them. For inputs in [0,1] the product never
	// exceeds the weighted average, so this is the stricter criterion.
	ModeProduct ScoreMode = "product"
)

// ScoreComponents breaks an admission score into its inputs.
type ScoreComponents struct {
	Novelty    float64 `json:"novelty"`
	Confidence float64 `json:"confidence"`
}

// ScoreOptions tunes admission scoring; the zero value uses defaults.
type ScoreOptions struct {
	Mode       ScoreMode
	Threshold  float64 // default 0.55
	MinNovelty float64 // default 0
	Similarity SimilarityFunc
}

// ScoreResult is the admission verdict for one candidate.
type ScoreResult struct {
	Score       float64         `json:"score"`
	ShouldWrite bool            `json:"shouldWrite"`
	Threshold   float64         `json:"threshold"`
	Components  ScoreComponents `json:"components"`
	Mode        ScoreMode       `json:"mode"`
	Reason      string          `json:"reason"`
}

const defaultScoreThreshold = 0.55

// DeriveNovelty is 1 minus the maximum similarity between the incoming
// value and any existing value. No existing records means fully novel.
func DeriveNovelty(existing []StoredMemoryNode, incomingValue string, sim SimilarityFunc) float64 {
	if len(existing) == 0 {
		return 1
	}
	if sim == nil {
		sim = CombinedSimilarity
	}
	maxSim := 0.0
	for _, node := range existing {
		if s := sim(node.Value, incomingValue); s > maxSim {
			maxSim = s
		}
	}
	return clamp01(1 - maxSim)
}

// ScoreWriteCandidate scores a candidate against existing nodes at its
// path. The write is admitted when the combined score clears the threshold
// and novelty clears MinNovelty; a failing reason names the blocker.
func ScoreWriteCandidate(existing []StoredMemoryNode, incoming CanonicalMemory, opts ScoreOptions) ScoreResult {
	mode := opts.Mode
	if mode == "" {
		mode = ModeWeighted
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = defaultScoreThreshold
	}

	components := ScoreComponents{
		Novelty:    DeriveNovelty(existing, incoming.Value, opts.Similarity),
		Confidence: clamp01(incoming.Confidence),
	}

	if components.Novelty < opts.MinNovelty {
		return ScoreResult{
			ShouldWrite: false,
			Threshold:   threshold,
			Components:  components,
			Mode:        mode,
			Reason:      fmt.Sprintf("Novelty %.2f below minimum %.2f", components.Novelty, opts.MinNovelty),
		}
	}

	var score float64
	if mode == ModeProduct {
		score = components.Novelty * components.Confidence
	} else {
		score = (components.Novelty + components.Confidence) / 2
	}
	score = clamp01(score)

	result := ScoreResult{
		Score:      score,
		Threshold:  threshold,
		Components: components,
		Mode:       mode,
	}
	if score >= threshold {
		result.ShouldWrite = true
		result.Reason = fmt.Sprintf("score %.2f meets threshold %.2f", score, threshold)
	} else {
		result.Reason = fmt.Sprintf("score %.2f below threshold %.2f", score, threshold)
	}
	return result
}
