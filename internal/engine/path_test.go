package engine

import (
	"strings"
	"testing"
)

func TestNormalizeMoryPath_LegacyProfilePath(t *testing.T) {
	got := NormalizeMoryPath("/profile/preferences/language")
	if got != "mory://user_preference/language" {
		t.Errorf("got %q, want mory://user_preference/language", got)
	}
}

func TestNormalizeMoryPath_DynamicSlug(t *testing.T) {
	got := NormalizeMoryPath("mory://skill/python/fastapi")
	if got != "mory://skill/python.fastapi" {
		t.Errorf("got %q, want mory://skill/python.fastapi", got)
	}
}

func TestNormalizeMoryPath_SubjectAlias(t *testing.T) {
	got := NormalizeMoryPath("mory://user/lang_pref")
	if got != "mory://user_preference/language" {
		t.Errorf("got %q, want mory://user_preference/language", got)
	}
}

func TestNormalizeMoryPath_CanonicalPassThrough(t *testing.T) {
	for _, path := range []string{
		"mory://user_preference/answer_length",
		"mory://user_fact/name",
		"mory://task/current",
	} {
		if got := NormalizeMoryPath(path); got != path {
			t.Errorf("NormalizeMoryPath(%q) = %q, want unchanged", path, got)
		}
	}
}

func TestNormalizeMoryPath_EmptyFallsBackToDatedEvent(t *testing.T) {
	got := NormalizeMoryPath("")
	if !strings.HasPrefix(got, "mory://event/") {
		t.Errorf("empty path should fall back to a dated event path, got %q", got)
	}
	if !strings.HasSuffix(got, ".unknown") {
		t.Errorf("empty path fallback should end with .unknown, got %q", got)
	}
}

func TestNormalizeMoryPath_UnmappableKeepsHintSlug(t *testing.T) {
	got := NormalizeMoryPath("zzqx unmappable gibberish")
	if !strings.HasPrefix(got, "mory://event/") {
		t.Errorf("unmappable path should fall back to event, got %q", got)
	}
	if !strings.Contains(got, "zzqx") {
		t.Errorf("fallback should carry a hint slug, got %q", got)
	}
}

func TestBuildMoryPath(t *testing.T) {
	tests := []struct {
		memType MemoryType
		subject string
		want    string
	}{
		{MemoryUserPreference, "answer_length", "mory://user_preference/answer_length"},
		{MemorySkill, "python/fastapi", "mory://skill/python.fastapi"},
		{MemorySkill, "Python FastAPI", "mory://skill/python.fastapi"},
		{MemoryTask, "current", "mory://task/current"},
	}
	for _, tt := range tests {
		if got := BuildMoryPath(tt.memType, tt.subject); got != tt.want {
			t.Errorf("BuildMoryPath(%s, %q) = %q, want %q", tt.memType, tt.subject, got, tt.want)
		}
	}
}

func TestIsCanonicalMoryPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"mory://user_preference/language", true},
		{"mory://skill/python.fastapi", true},
		{"mory://skill/", false}, // empty dynamic subject
		{"not-a-uri", false},
		{"mory://bogus_type/thing", false},
	}
	for _, tt := range tests {
		if got := IsCanonicalMoryPath(tt.path); got != tt.want {
			t.Errorf("IsCanonicalMoryPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMoryPathLabel(t *testing.T) {
	if got := MoryPathLabel("mory://user_preference/answer_length"); got != "user_preference / answer_length" {
		t.Errorf("got %q", got)
	}
	if got := MoryPathLabel("plain text"); got != "plain text" {
		t.Errorf("non-URI input should pass through, got %q", got)
	}
}

func TestPolicyForRawPath(t *testing.T) {
	tests := []struct {
		raw  string
		want UpdatePolicy
	}{
		{"mory://user_preference/language", PolicyOverwrite},
		{"mory://user_fact/goals", PolicyMergeAppend},
		{"mory://skill/golang", PolicyMergeAppend},
		{"mory://world_knowledge/golang.history", PolicyHighestConfidence},
	}
	for _, tt := range tests {
		if got := PolicyForRawPath(tt.raw); got != tt.want {
			t.Errorf("PolicyForRawPath(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestExtractTypeFromPath(t *testing.T) {
	if got := ExtractTypeFromPath("mory://skill/python"); got != MemorySkill {
		t.Errorf("got %q, want skill", got)
	}
	if got := ExtractTypeFromPath("mory://nonsense/x"); got != "" {
		t.Errorf("unknown type should return empty, got %q", got)
	}
	if got := ExtractTypeFromPath("plain"); got != "" {
		t.Errorf("non-URI should return empty, got %q", got)
	}
}

func TestDefaultPolicyFor(t *testing.T) {
	if got := DefaultPolicyFor(MemoryUserPreference); got != PolicyOverwrite {
		t.Errorf("user_preference default should be overwrite, got %q", got)
	}
	if got := DefaultPolicyFor(MemorySkill); got != PolicyMergeAppend {
		t.Errorf("skill default should be merge_append, got %q", got)
	}
	if got := DefaultPolicyFor(MemoryWorldKnowledge); got != PolicyHighestConfidence {
		t.Errorf("world_knowledge default should be highest_confidence, got %q", got)
	}
}
