package engine

import "testing"

func episode(id, path, value string, confidence float64) EpisodicMemory {
	return EpisodicMemory{
		ID:         id,
		Path:       path,
		Type:       MemoryEvent,
		Subject:    "standup",
		Value:      value,
		Confidence: confidence,
	}
}

func TestConsolidateEpisodes_CorroboratingPairEmitsRule(t *testing.T) {
	episodes := []EpisodicMemory{
		episode("e1", "mory://event/2026-08-01.standup", "mentioned migrating the billing service", 0.5),
		episode("e2", "mory://event/2026-08-01.standup", "mentioned migrating the billing service again", 0.6),
	}
	rules := ConsolidateEpisodes(episodes, ConsolidateOptions{})
	if len(rules) != 1 {
		t.Fatalf("want 1 rule, got %d", len(rules))
	}
	rule := rules[0]
	if rule.SupportCount != 2 {
		t.Errorf("support count %d, want 2", rule.SupportCount)
	}
	// Representative value comes from the highest-confidence member.
	if rule.Value != episodes[1].Value {
		t.Errorf("representative value %q, want the higher-confidence episode's", rule.Value)
	}
	avg := (0.5 + 0.6) / 2
	if rule.Confidence <= avg {
		t.Errorf("rule confidence %f should exceed the group average %f", rule.Confidence, avg)
	}
	if rule.Confidence > 1 {
		t.Errorf("rule confidence %f out of range", rule.Confidence)
	}
	if len(rule.SourceIDs) != 2 {
		t.Errorf("source ids %v, want both episodes", rule.SourceIDs)
	}
}

func TestConsolidateEpisodes_SingleEpisodeNoRule(t *testing.T) {
	episodes := []EpisodicMemory{
		episode("e1", "mory://event/2026-08-01.standup", "mentioned the migration once", 0.5),
	}
	if rules := ConsolidateEpisodes(episodes, ConsolidateOptions{}); len(rules) != 0 {
		t.Errorf("a single episode must not produce a rule, got %d", len(rules))
	}
}

func TestConsolidateEpisodes_UnrelatedOutlierFiltered(t *testing.T) {
	episodes := []EpisodicMemory{
		episode("e1", "mory://event/2026-08-01.standup", "discussed the billing migration plan", 0.5),
		episode("e2", "mory://event/2026-08-01.standup", "discussed the billing migration plan again", 0.6),
		episode("e3", "mory://event/2026-08-01.standup", "ordered pizza for lunch", 0.9),
	}
	rules := ConsolidateEpisodes(episodes, ConsolidateOptions{})
	if len(rules) != 1 {
		t.Fatalf("want 1 rule, got %d", len(rules))
	}
	if rules[0].SupportCount != 2 {
		t.Errorf("outlier should not count toward support, got %d", rules[0].SupportCount)
	}
	if rules[0].Value == episodes[2].Value {
		t.Error("outlier must not become the representative value")
	}
}

func TestConsolidateEpisodes_GroupsByTypeSubjectWhenPathEmpty(t *testing.T) {
	episodes := []EpisodicMemory{
		{ID: "e1", Type: MemoryEvent, Subject: "deploy", Value: "deployed the api gateway", Confidence: 0.5},
		{ID: "e2", Type: MemoryEvent, Subject: "deploy", Value: "deployed the api gateway twice", Confidence: 0.5},
	}
	rules := ConsolidateEpisodes(episodes, ConsolidateOptions{})
	if len(rules) != 1 {
		t.Fatalf("pathless episodes sharing type+subject should group, got %d rules", len(rules))
	}
}

func TestConsolidateEpisodes_SortedBySupportThenConfidence(t *testing.T) {
	episodes := []EpisodicMemory{
		episode("a1", "mory://event/2026-08-01.alpha", "alpha thing happened", 0.5),
		episode("a2", "mory://event/2026-08-01.alpha", "alpha thing happened again", 0.5),
		episode("b1", "mory://event/2026-08-01.beta", "beta thing happened", 0.9),
		episode("b2", "mory://event/2026-08-01.beta", "beta thing happened again", 0.9),
		episode("b3", "mory://event/2026-08-01.beta", "beta thing happened once more", 0.9),
	}
	rules := ConsolidateEpisodes(episodes, ConsolidateOptions{})
	if len(rules) != 2 {
		t.Fatalf("want 2 rules, got %d", len(rules))
	}
	if rules[0].SupportCount < rules[1].SupportCount {
		t.Errorf("rules should sort by support desc: %d before %d", rules[0].SupportCount, rules[1].SupportCount)
	}
}

func TestToCanonicalFromRule(t *testing.T) {
	rule := SemanticRule{
		Path:         "mory://user_fact/goals",
		Type:         MemoryUserFact,
		Subject:      "goals",
		Value:        "wants to ship the migration",
		Confidence:   0.74,
		SupportCount: 3,
	}
	canon := ToCanonicalFromRule(rule)
	if canon.UpdatedPolicy != PolicyOverwrite {
		t.Errorf("consolidated facts always overwrite, got %q", canon.UpdatedPolicy)
	}
	if diff := canon.Importance - 0.8; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("importance 0.5 + 3/10 = 0.8, got %f", canon.Importance)
	}
	if canon.Utility != 0.7 {
		t.Errorf("non-task utility should be 0.7, got %f", canon.Utility)
	}
	task := ToCanonicalFromRule(SemanticRule{Path: "mory://task/current", Type: MemoryTask, Value: "x", SupportCount: 2})
	if task.Utility != 0.9 {
		t.Errorf("task utility should be 0.9, got %f", task.Utility)
	}
}
