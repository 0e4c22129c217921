package engine

import "strings"

// MemoryType is the closed set of memory categories.
type MemoryType string

const (
	MemoryUserPreference MemoryType = "user_preference"
	MemoryUserFact       MemoryType = "user_fact"
	MemorySkill          MemoryType = "skill"
	MemoryEvent          MemoryType = "event"
	MemoryTask           MemoryType = "task"
	MemoryWorldKnowledge MemoryType = "world_knowledge"
)

// AllMemoryTypes lists every registered memory type.
var AllMemoryTypes = []MemoryType{
	MemoryUserPreference,
	MemoryUserFact,
	MemorySkill,
	MemoryEvent,
	MemoryTask,
	MemoryWorldKnowledge,
}

// IsMemoryType reports whether s names a registered memory type.
func IsMemoryType(s string) bool {
	for _, t := range AllMemoryTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// UpdatePolicy describes how an incoming memory is reconciled with an
// existing one at the same canonical path.
type UpdatePolicy string

const (
	PolicyOverwrite         UpdatePolicy = "overwrite"
	PolicyHighestConfidence UpdatePolicy = "highest_confidence"
	PolicyMergeAppend       UpdatePolicy = "merge_append"
)

// CanonicalMemory is a fully typed, structured write candidate. It flows
// through the write gate once and is discarded; its accepted effect is a
// persisted node.
type CanonicalMemory struct {
	Path          string       `json:"path"`
	Type          MemoryType   `json:"type"`
	Subject       string       `json:"subject"`
	Value         string       `json:"value"`
	Confidence    float64      `json:"confidence"`
	UpdatedPolicy UpdatePolicy `json:"updatedPolicy"`

	// Optional fields. Zero means unset; insert-time defaults come from
	// the per-type priors below.
	Importance float64 `json:"importance,omitempty"`
	Utility    float64 `json:"utility,omitempty"`
	Source     string  `json:"source,omitempty"`
	ObservedAt string  `json:"observedAt,omitempty"`
	Title      string  `json:"title,omitempty"`
}

// PathRegistryEntry describes a known canonical path. Static entries match
// exactly; dynamic entries match by prefix and the caller supplies the
// final slug.
type PathRegistryEntry struct {
	Path          string
	Type          MemoryType
	Subject       string
	Dynamic       bool
	DefaultPolicy UpdatePolicy
	Description   string
}

// PathRegistry is the canonical path whitelist.
//
// Naming convention: mory://{type}/{subject}, dots separating sub-topics
// within a subject (skill/python.fastapi).
var PathRegistry = []PathRegistryEntry{
	{Path: "mory://user_preference/answer_length", Type: MemoryUserPreference, Subject: "answer_length", DefaultPolicy: PolicyOverwrite, Description: "preferred response length"},
	{Path: "mory://user_preference/language", Type: MemoryUserPreference, Subject: "language", DefaultPolicy: PolicyOverwrite, Description: "preferred response language"},
	{Path: "mory://user_preference/tone", Type: MemoryUserPreference, Subject: "tone", DefaultPolicy: PolicyOverwrite, Description: "preferred tone"},
	{Path: "mory://user_preference/code_style", Type: MemoryUserPreference, Subject: "code_style", DefaultPolicy: PolicyOverwrite, Description: "code formatting preferences"},
	{Path: "mory://user_preference/output_format", Type: MemoryUserPreference, Subject: "output_format", DefaultPolicy: PolicyOverwrite, Description: "preferred output format"},

	{Path: "mory://user_fact/name", Type: MemoryUserFact, Subject: "name", DefaultPolicy: PolicyOverwrite, Description: "user's name or alias"},
	{Path: "mory://user_fact/location", Type: MemoryUserFact, Subject: "location", DefaultPolicy: PolicyOverwrite, Description: "user's city / country"},
	{Path: "mory://user_fact/occupation", Type: MemoryUserFact, Subject: "occupation", DefaultPolicy: PolicyOverwrite, Description: "user's job or role"},
	{Path: "mory://user_fact/timezone", Type: MemoryUserFact, Subject: "timezone", DefaultPolicy: PolicyOverwrite, Description: "user's timezone"},
	{Path: "mory://user_fact/goals", Type: MemoryUserFact, Subject: "goals", DefaultPolicy: PolicyMergeAppend, Description: "user's stated long-term goals"},

	{Path: "mory://skill/", Type: MemorySkill, Dynamic: true, DefaultPolicy: PolicyMergeAppend, Description: "knowledge/skill node, dynamic topic"},
	{Path: "mory://event/", Type: MemoryEvent, Dynamic: true, DefaultPolicy: PolicyMergeAppend, Description: "time-anchored event, dynamic slug"},

	{Path: "mory://task/current", Type: MemoryTask, Subject: "current", DefaultPolicy: PolicyOverwrite, Description: "the task being actively worked on"},
	{Path: "mory://task/", Type: MemoryTask, Dynamic: true, DefaultPolicy: PolicyOverwrite, Description: "named project/workspace, dynamic slug"},

	{Path: "mory://world_knowledge/", Type: MemoryWorldKnowledge, Dynamic: true, DefaultPolicy: PolicyHighestConfidence, Description: "general knowledge, dynamic topic"},
}

// typeDefaultPolicy maps each memory type to its single default policy.
var typeDefaultPolicy = map[MemoryType]UpdatePolicy{
	MemoryUserPreference: PolicyOverwrite,
	MemoryUserFact:       PolicyOverwrite,
	MemorySkill:          PolicyMergeAppend,
	MemoryEvent:          PolicyMergeAppend,
	MemoryTask:           PolicyOverwrite, // short-lived: workspace records carry a TTL expectation
	MemoryWorldKnowledge: PolicyHighestConfidence,
}

// typeImportancePrior and typeUtilityPrior supply insert-time defaults when
// the extraction pipeline only emits confidence.
var typeImportancePrior = map[MemoryType]float64{
	MemoryUserPreference: 0.9,
	MemoryUserFact:       0.85,
	MemorySkill:          0.7,
	MemoryEvent:          0.55,
	MemoryTask:           0.8,
	MemoryWorldKnowledge: 0.5,
}

var typeUtilityPrior = map[MemoryType]float64{
	MemoryUserPreference: 0.95,
	MemoryUserFact:       0.85,
	MemorySkill:          0.75,
	MemoryEvent:          0.5,
	MemoryTask:           0.9,
	MemoryWorldKnowledge: 0.45,
}

// LookupRegistryEntry finds the registry entry for a path: exact static
// match first, then dynamic prefix match. Returns nil when unregistered.
func LookupRegistryEntry(path string) *PathRegistryEntry {
	for i := range PathRegistry {
		if !PathRegistry[i].Dynamic && PathRegistry[i].Path == path {
			return &PathRegistry[i]
		}
	}
	for i := range PathRegistry {
		if PathRegistry[i].Dynamic && strings.HasPrefix(path, PathRegistry[i].Path) {
			return &PathRegistry[i]
		}
	}
	return nil
}

// DefaultPolicyFor returns the single default update policy for a memory
// type. Unknown types fall back to merge_append, the least destructive
// choice.
func DefaultPolicyFor(t MemoryType) UpdatePolicy {
	if p, ok := typeDefaultPolicy[t]; ok {
		return p
	}
	return PolicyMergeAppend
}

// IsMoryURI reports whether value is syntactically a mory:// URI. It does
// not check the registry.
func IsMoryURI(value string) bool {
	return strings.HasPrefix(value, "mory://") && len(value) > len("mory://")
}

// ExtractTypeFromPath extracts the memory type from a mory:// path, or ""
// if the path is malformed or the type unregistered.
func ExtractTypeFromPath(path string) MemoryType {
	if !IsMoryURI(path) {
		return ""
	}
	seg, _, _ := strings.Cut(path[len("mory://"):], "/")
	if IsMemoryType(seg) {
		return MemoryType(seg)
	}
	return ""
}

// DeriveImportance returns the candidate's importance, falling back to the
// per-type prior when unset.
func DeriveImportance(m CanonicalMemory) float64 {
	if m.Importance > 0 {
		return clamp01(m.Importance)
	}
	return typeImportancePrior[m.Type]
}

// DeriveUtility returns the candidate's utility, falling back to the
// per-type prior when unset.
func DeriveUtility(m CanonicalMemory) float64 {
	if m.Utility > 0 {
		return clamp01(m.Utility)
	}
	return typeUtilityPrior[m.Type]
}
