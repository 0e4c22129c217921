package engine

import (
	"math"
	"strings"
	"testing"
)

func TestScoreWriteCandidate_FullyNovel(t *testing.T) {
	result := ScoreWriteCandidate(nil, CanonicalMemory{
		Type:       MemoryUserFact,
		Value:      "works as a marine biologist",
		Confidence: 0.9,
	}, ScoreOptions{})
	if result.Components.Novelty != 1 {
		t.Errorf("no existing records means novelty 1, got %f", result.Components.Novelty)
	}
	if !result.ShouldWrite {
		t.Errorf("high-confidence novel candidate should pass: %s", result.Reason)
	}
}

func TestScoreWriteCandidate_ProductNeverExceedsWeighted(t *testing.T) {
	candidate := CanonicalMemory{Type: MemoryUserFact, Value: "lives near the coast", Confidence: 0.6}
	weighted := ScoreWriteCandidate(nil, candidate, ScoreOptions{Mode: ModeWeighted})
	product := ScoreWriteCandidate(nil, candidate, ScoreOptions{Mode: ModeProduct})
	if product.Score > weighted.Score {
		t.Errorf("product %f should not exceed weighted %f", product.Score, weighted.Score)
	}
}

func TestScoreWriteCandidate_NearDuplicateBlockedByNovelty(t *testing.T) {
	existing := []StoredMemoryNode{{
		ID:       "n1",
		MoryPath: "mory://user_preference/tone",
		Value:    "prefers formal polite tone",
	}}
	result := ScoreWriteCandidate(existing, CanonicalMemory{
		Type:       MemoryUserPreference,
		Value:      "prefers formal polite tone",
		Confidence: 0.9,
	}, ScoreOptions{MinNovelty: 0.2})
	if result.Components.Novelty > 0.05 {
		t.Errorf("near-duplicate should have novelty near 0, got %f", result.Components.Novelty)
	}
	if result.ShouldWrite {
		t.Error("near-duplicate should not pass with a non-trivial minNovelty")
	}
	if !strings.Contains(result.Reason, "Novelty") {
		t.Errorf("failing reason should name novelty, got %q", result.Reason)
	}
}

func TestScoreWriteCandidate_NaNConfidenceTreatedAsZero(t *testing.T) {
	result := ScoreWriteCandidate(nil, CanonicalMemory{
		Type:       MemoryEvent,
		Value:      "observed something",
		Confidence: math.NaN(),
	}, ScoreOptions{})
	if result.Components.Confidence != 0 {
		t.Errorf("NaN confidence should clamp to 0, got %f", result.Components.Confidence)
	}
	if result.Score < 0 || result.Score > 1 {
		t.Errorf("score must stay in [0,1], got %f", result.Score)
	}
}

func TestScoreWriteCandidate_ThresholdBlocksLowScore(t *testing.T) {
	existing := []StoredMemoryNode{{
		ID:    "n1",
		Value: "enjoys hiking in the alps every summer",
	}}
	result := ScoreWriteCandidate(existing, CanonicalMemory{
		Type:       MemoryEvent,
		Value:      "enjoys hiking in the alps every summer weekend",
		Confidence: 0.3,
	}, ScoreOptions{})
	if result.ShouldWrite {
		t.Errorf("low novelty + low confidence should fail the threshold: %+v", result)
	}
	if !strings.Contains(result.Reason, "threshold") {
		t.Errorf("reason should name the threshold, got %q", result.Reason)
	}
}
