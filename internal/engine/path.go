package engine

import (
	"regexp"
	"strings"
	"time"
)

// Path normalization for the mory:// URI scheme.
//
// Upstream extraction emits inconsistent paths for the same concept:
// "/profile/preferences/language", "mory://user/lang_pref",
// "mory://profile/language". This file maps any raw path to the nearest
// canonical registry path with pure string work, no embedding model.

// typeAliases maps loose tokens to a memory type. Keys are lowercase.
var typeAliases = map[string]MemoryType{
	"preference":      MemoryUserPreference,
	"preferences":     MemoryUserPreference,
	"pref":            MemoryUserPreference,
	"prefs":           MemoryUserPreference,
	"user_pref":       MemoryUserPreference,
	"user_preference": MemoryUserPreference,
	"setting":         MemoryUserPreference,
	"settings":        MemoryUserPreference,
	"style":           MemoryUserPreference,
	"lang_pref":       MemoryUserPreference,
	"language_pref":   MemoryUserPreference,
	"code_style":      MemoryUserPreference,
	"answer_style":    MemoryUserPreference,

	"fact":     MemoryUserFact,
	"facts":    MemoryUserFact,
	"user":     MemoryUserFact,
	"profile":  MemoryUserFact,
	"info":     MemoryUserFact,
	"about":    MemoryUserFact,
	"personal": MemoryUserFact,

	"skill":      MemorySkill,
	"skills":     MemorySkill,
	"knowledge":  MemorySkill,
	"expertise":  MemorySkill,
	"tech":       MemorySkill,
	"technology": MemorySkill,

	"event":    MemoryEvent,
	"events":   MemoryEvent,
	"incident": MemoryEvent,
	"history":  MemoryEvent,
	"log":      MemoryEvent,
	"diary":    MemoryEvent,

	"task":      MemoryTask,
	"tasks":     MemoryTask,
	"project":   MemoryTask,
	"workspace": MemoryTask,
	"work":      MemoryTask,
	"current":   MemoryTask,

	"world_knowledge": MemoryWorldKnowledge,
	"world":           MemoryWorldKnowledge,
	"knowledge_base":  MemoryWorldKnowledge,
	"general":         MemoryWorldKnowledge,
	"kb":              MemoryWorldKnowledge,
}

// preferencePriorityAliases are checked across all segments before any
// user_fact alias, so compound slugs like "lang_pref" beat generic tokens
// like "user".
var preferencePriorityAliases = map[string]bool{
	"preference": true, "preferences": true, "pref": true, "prefs": true,
	"user_pref": true, "user_preference": true,
	"setting": true, "settings": true,
	"lang_pref": true, "language_pref": true, "code_style": true, "answer_style": true,
}

var preferenceSubjectAliases = map[string]string{
	"lang":            "language",
	"lang_pref":       "language",
	"language_pref":   "language",
	"reply_length":    "answer_length",
	"response_length": "answer_length",
	"length":          "answer_length",
	"answer_style":    "answer_length",
	"coding_style":    "code_style",
	"coding":          "code_style",
	"format":          "output_format",
	"output":          "output_format",
	"response_format": "output_format",
}

var factSubjectAliases = map[string]string{
	"username":  "name",
	"nickname":  "name",
	"handle":    "name",
	"city":      "location",
	"country":   "location",
	"region":    "location",
	"job":       "occupation",
	"role":      "occupation",
	"position":  "occupation",
	"title":     "occupation",
	"tz":        "timezone",
	"time_zone": "timezone",
	"goal":      "goals",
	"objective": "goals",
}

// noiseSubjectTokens carry no subject information and are dropped when
// assembling the subject remainder.
var noiseSubjectTokens = map[string]bool{
	"profile": true, "user": true, "info": true, "about": true, "personal": true,
	"preference": true, "preferences": true, "pref": true, "prefs": true,
	"setting": true, "settings": true,
	"fact": true, "facts": true,
}

var pathSplitRe = regexp.MustCompile(`[/. \t]+`)

// tokenizePath lowercases and splits on "/", ".", and whitespace only, so
// compound slugs like "code_style" and "project_a" survive intact.
func tokenizePath(input string) []string {
	lowered := strings.ToLower(input)
	lowered = strings.TrimPrefix(lowered, "mory://")
	parts := pathSplitRe.Split(lowered, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" && p != "mory" {
			out = append(out, p)
		}
	}
	return out
}

func jaccardTokens(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[t] = true
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// inferPathType recovers a memory type from raw path segments. Exact type
// names win over preference priority aliases, which win over the general
// alias map.
func inferPathType(segments []string) (MemoryType, bool) {
	for _, seg := range segments {
		lo := strings.ReplaceAll(strings.ToLower(seg), "-", "_")
		if IsMemoryType(lo) {
			return MemoryType(lo), true
		}
	}
	for _, seg := range segments {
		if preferencePriorityAliases[strings.ToLower(seg)] {
			return MemoryUserPreference, true
		}
	}
	for _, seg := range segments {
		lo := strings.ToLower(seg)
		if t, ok := typeAliases[lo]; ok {
			return t, true
		}
		if strings.HasSuffix(lo, "s") {
			if t, ok := typeAliases[lo[:len(lo)-1]]; ok {
				return t, true
			}
		}
	}
	return "", false
}

var subjectCleanRe = regexp.MustCompile(`[\- ]+`)

func resolveSubjectAlias(t MemoryType, rawSubject string) string {
	lo := subjectCleanRe.ReplaceAllString(strings.ToLower(rawSubject), "_")
	switch t {
	case MemoryUserPreference:
		if v, ok := preferenceSubjectAliases[lo]; ok {
			return v
		}
	case MemoryUserFact:
		if v, ok := factSubjectAliases[lo]; ok {
			return v
		}
	}
	return lo
}

// buildBestPath assembles the best canonical path for a type and subject
// segments. Subjects join with "_" for alias lookup (keeps code_style,
// lang_pref whole); dynamic paths join multiple segments with "." per the
// registry convention (skill/python.fastapi).
func buildBestPath(t MemoryType, subjectSegments []string) string {
	if len(subjectSegments) == 0 {
		return "mory://" + string(t) + "/unknown"
	}

	resolved := resolveSubjectAlias(t, strings.Join(subjectSegments, "_"))
	candidate := "mory://" + string(t) + "/" + resolved

	if entry := LookupRegistryEntry(candidate); entry != nil && !entry.Dynamic {
		return candidate
	}

	for i := range PathRegistry {
		if PathRegistry[i].Dynamic && PathRegistry[i].Type == t {
			slug := resolved
			if len(subjectSegments) > 1 {
				slug = strings.Join(subjectSegments, ".")
			}
			return PathRegistry[i].Path + slug
		}
	}
	return candidate
}

// bestRegistryMatch returns the registry entry most token-similar to the
// raw tokens, or nil if nothing scores at least 0.2.
func bestRegistryMatch(rawTokens []string) *PathRegistryEntry {
	var best *PathRegistryEntry
	bestScore := 0.0
	for i := range PathRegistry {
		score := jaccardTokens(rawTokens, tokenizePath(PathRegistry[i].Path))
		if best == nil || score > bestScore {
			best = &PathRegistry[i]
			bestScore = score
		}
	}
	if best != nil && bestScore >= 0.2 {
		return best
	}
	return nil
}

var (
	slugSepRe     = regexp.MustCompile(`[/\s\-]+`)
	slugUnsafeRe  = regexp.MustCompile(`[^a-z0-9_.]`)
	slugMultiDot  = regexp.MustCompile(`\.{2,}`)
	slugEdgeDotRe = regexp.MustCompile(`^\.+|\.+$`)
)

func normalizeSlug(slug string) string {
	s := strings.ToLower(slug)
	s = slugSepRe.ReplaceAllString(s, ".")
	s = slugUnsafeRe.ReplaceAllString(s, "")
	s = slugMultiDot.ReplaceAllString(s, ".")
	s = slugEdgeDotRe.ReplaceAllString(s, "")
	return s
}

// normalizeDynamicSegment canonicalizes the free slug of a dynamic entry,
// e.g. "mory://skill/Python / FastAPI" becomes "mory://skill/python.fastapi".
func normalizeDynamicSegment(entry *PathRegistryEntry, fullPath string) string {
	slug := normalizeSlug(fullPath[len(entry.Path):])
	if slug == "" {
		return entry.Path + "unknown"
	}
	return entry.Path + slug
}

// fallbackMoryPath generates the dated last-resort path for unmappable
// memories.
func fallbackMoryPath(hint string) string {
	today := time.Now().UTC().Format("2006-01-02")
	slug := "unknown"
	if hint != "" {
		tokens := tokenizePath(hint)
		if len(tokens) > 3 {
			tokens = tokens[:3]
		}
		if joined := strings.Join(tokens, "_"); joined != "" {
			slug = joined
		}
	}
	return "mory://event/" + today + "." + slug
}

// NormalizeMoryPath maps any raw path to the nearest canonical mory:// URI.
//
// Strategy, in order: a registered mory:// URI passes through (dynamic
// slugs still normalized); an unregistered mory:// URI with a known type is
// repaired from its remainder; otherwise the tokens are matched through the
// type alias maps; then token Jaccard against the full registry; finally
// the dated event fallback.
func NormalizeMoryPath(rawPath string) string {
	trimmed := strings.TrimSpace(rawPath)
	if trimmed == "" {
		return fallbackMoryPath("")
	}

	if IsMoryURI(trimmed) {
		if entry := LookupRegistryEntry(trimmed); entry != nil {
			if !entry.Dynamic {
				return trimmed
			}
			return normalizeDynamicSegment(entry, trimmed)
		}
		if knownType := ExtractTypeFromPath(trimmed); knownType != "" {
			remainder := trimmed[len("mory://"+string(knownType)+"/"):]
			return buildBestPath(knownType, tokenizePath(remainder))
		}
	}

	tokens := tokenizePath(trimmed)

	if inferred, ok := inferPathType(tokens); ok {
		// Locate the segment that triggered the type match; it is removed
		// from the subject along with generic noise tokens.
		typeIdx := -1
		for i, tok := range tokens {
			lo := strings.ReplaceAll(strings.ToLower(tok), "-", "_")
			if IsMemoryType(lo) || preferencePriorityAliases[lo] || typeAliases[lo] != "" {
				typeIdx = i
				break
			}
		}
		var subject []string
		for i, tok := range tokens {
			if i != typeIdx && !noiseSubjectTokens[tok] {
				subject = append(subject, tok)
			}
		}
		if len(subject) == 0 && typeIdx >= 0 {
			// The trigger token doubles as a subject hint (lang_pref).
			return buildBestPath(inferred, []string{tokens[typeIdx]})
		}
		return buildBestPath(inferred, subject)
	}

	if match := bestRegistryMatch(tokens); match != nil {
		if !match.Dynamic {
			return match.Path
		}
		prefixTokens := tokenizePath(match.Path)
		inPrefix := make(map[string]bool, len(prefixTokens))
		for _, t := range prefixTokens {
			inPrefix[t] = true
		}
		var slugParts []string
		for _, t := range tokens {
			if !inPrefix[t] {
				slugParts = append(slugParts, t)
			}
		}
		if slug := strings.Join(slugParts, "."); slug != "" {
			return match.Path + slug
		}
		return match.Path + "unknown"
	}

	return fallbackMoryPath(trimmed)
}

// BuildMoryPath builds a canonical path from a memory's type and subject.
func BuildMoryPath(t MemoryType, subject string) string {
	slug := normalizeSlug(subject)
	candidate := "mory://" + string(t) + "/" + slug
	if entry := LookupRegistryEntry(candidate); entry != nil {
		if !entry.Dynamic {
			return candidate
		}
		return normalizeDynamicSegment(entry, candidate)
	}
	return candidate
}

// IsCanonicalMoryPath reports whether path is a registry-recognized
// mory:// URI. Dynamic entries require a non-empty slug.
func IsCanonicalMoryPath(path string) bool {
	if !IsMoryURI(path) {
		return false
	}
	entry := LookupRegistryEntry(path)
	if entry == nil {
		return false
	}
	if entry.Dynamic {
		return len(path) > len(entry.Path)
	}
	return true
}

// MoryPathLabel renders a display label for a path, e.g.
// "user_preference / answer_length".
func MoryPathLabel(path string) string {
	if !IsMoryURI(path) {
		return path
	}
	return strings.ReplaceAll(path[len("mory://"):], "/", " / ")
}

// PolicyForRawPath normalizes a raw path and returns its update policy:
// the registry entry's default, falling back to the type default.
func PolicyForRawPath(rawPath string) UpdatePolicy {
	canonical := NormalizeMoryPath(rawPath)
	if entry := LookupRegistryEntry(canonical); entry != nil {
		return entry.DefaultPolicy
	}
	if t := ExtractTypeFromPath(canonical); t != "" {
		return DefaultPolicyFor(t)
	}
	return PolicyMergeAppend
}
