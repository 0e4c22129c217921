package engine

import (
	"strings"
	"testing"
)

func TestNodeTitle(t *testing.T) {
	withTitle := PersistedMemoryNode{Title: "preferred language", Subject: "language", Value: "answers in German"}
	if got := nodeTitle(withTitle); got != "preferred language" {
		t.Errorf("explicit title should win, got %q", got)
	}

	noTitle := PersistedMemoryNode{Subject: "language", Value: "answers in German"}
	if got := nodeTitle(noTitle); got != "language: answers in German" {
		t.Errorf("got %q", got)
	}

	long := PersistedMemoryNode{Subject: "notes", Value: strings.Repeat("x", 40)}
	if got := nodeTitle(long); len(got) > len("notes: ")+22 {
		t.Errorf("value excerpt should be capped, got %q", got)
	}
}

func TestFormatPromptContext_Layers(t *testing.T) {
	result := RetrievalResult{
		L0: []ContextItem{{Path: "mory://user_fact/name", Text: "name: Sam"}},
		L1: []ContextItem{{Path: "mory://user_fact/name", Text: "calls themselves Sam"}},
		L2: []ContextItem{{Path: "mory://user_fact/name", Text: "introduced as Sam during onboarding"}},
	}
	got := formatPromptContext(result)
	for _, header := range []string{"[L0 Memory Index]", "[L1 Summary]", "[L2 Detail]"} {
		if !strings.Contains(got, header) {
			t.Errorf("missing %s in:\n%s", header, got)
		}
	}
}

func TestFormatPromptContext_EmptyLayersOmitted(t *testing.T) {
	got := formatPromptContext(RetrievalResult{
		L1: []ContextItem{{Path: "mory://user_fact/name", Text: "calls themselves Sam"}},
	})
	if strings.Contains(got, "[L0") || strings.Contains(got, "[L2") {
		t.Errorf("empty layers should not render headers:\n%s", got)
	}
}

func TestFormatMemoryRecord(t *testing.T) {
	node := PersistedMemoryNode{
		Path:         "mory://user_fact/name",
		MemoryType:   "user_fact",
		Subject:      "name",
		Value:        "calls themselves Sam",
		Confidence:   0.9,
		Importance:   0.85,
		Version:      2,
		Supersedes:   "prev-id",
		ConflictFlag: true,
	}
	got := FormatMemoryRecord(node)
	for _, want := range []string{"path: mory://user_fact/name", "version: 2", "supersedes: prev-id", "conflict_flag: true"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	plain := FormatMemoryRecord(PersistedMemoryNode{Path: "p", Value: "v"})
	if strings.Contains(plain, "supersedes") || strings.Contains(plain, "conflict_flag") {
		t.Error("optional lines should only render when set")
	}
}

func TestRetrievalRecency(t *testing.T) {
	if got := retrievalRecency("garbage"); got != 0.3 {
		t.Errorf("unparsable timestamp should use the neutral fallback, got %f", got)
	}
}
