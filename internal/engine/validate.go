package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValidationIssue is one field-level problem in an extraction payload.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating one raw memory object.
type ValidationResult struct {
	OK     bool              `json:"ok"`
	Memory *CanonicalMemory  `json:"memory,omitempty"`
	Issues []ValidationIssue `json:"issues"`
}

// ValidateOptions stamps provenance onto accepted memories. StrictPath
// rejects paths that normalize to something outside the registry.
type ValidateOptions struct {
	Source     string
	ObservedAt string
	StrictPath bool
}

func toStringSafe(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func toFloatSafe(v any, fallback float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
	}
	return fallback
}

// ValidateCanonicalMemory normalizes one loosely typed extraction object
// into a CanonicalMemory, collecting issues instead of failing fast. A
// missing path is rebuilt from type+subject; an unknown type is inferred
// from the path, falling back to world_knowledge.
func ValidateCanonicalMemory(raw map[string]any, opts ValidateOptions) ValidationResult {
	if raw == nil {
		return ValidationResult{Issues: []ValidationIssue{{Field: "memory", Message: "memory must be an object"}}}
	}
	var issues []ValidationIssue

	pathRaw := toStringSafe(raw["path"])
	if pathRaw == "" {
		pathRaw = toStringSafe(raw["moryPath"])
	}
	typeRaw := toStringSafe(raw["type"])
	subjectRaw := toStringSafe(raw["subject"])
	valueRaw := toStringSafe(raw["value"])
	if valueRaw == "" {
		valueRaw = toStringSafe(raw["summary"])
	}
	if valueRaw == "" {
		valueRaw = toStringSafe(raw["content"])
	}
	if valueRaw == "" {
		issues = append(issues, ValidationIssue{Field: "value", Message: "value is required"})
	}

	var path string
	if pathRaw != "" {
		path = NormalizeMoryPath(pathRaw)
	} else {
		inferred := MemoryWorldKnowledge
		if IsMemoryType(typeRaw) {
			inferred = MemoryType(typeRaw)
		}
		subject := subjectRaw
		if subject == "" {
			subject = "unknown"
		}
		path = NormalizeMoryPath("mory://" + string(inferred) + "/" + subject)
	}

	if opts.StrictPath && !IsCanonicalMoryPath(path) {
		issues = append(issues, ValidationIssue{Field: "path", Message: "path is not canonical: " + path})
	}

	memType := MemoryType(typeRaw)
	if !IsMemoryType(typeRaw) {
		memType = ExtractTypeFromPath(path)
		if memType == "" {
			memType = MemoryWorldKnowledge
		}
	}

	subject := subjectRaw
	if subject == "" {
		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			subject = path[idx+1:]
		}
		if subject == "" {
			subject = "unknown"
		}
	}

	policy := UpdatePolicy(toStringSafe(raw["updatedPolicy"]))
	switch policy {
	case PolicyOverwrite, PolicyHighestConfidence, PolicyMergeAppend:
	default:
		policy = PolicyForRawPath(path)
	}

	if len(issues) > 0 {
		return ValidationResult{Issues: issues}
	}

	mem := CanonicalMemory{
		Path:          path,
		Type:          memType,
		Subject:       subject,
		Value:         valueRaw,
		Confidence:    clamp01(toFloatSafe(raw["confidence"], 0.7)),
		UpdatedPolicy: policy,
		Source:        opts.Source,
		ObservedAt:    opts.ObservedAt,
		Title:         toStringSafe(raw["title"]),
	}
	if imp, ok := raw["importance"].(float64); ok {
		mem.Importance = clamp01(imp)
	}
	if util, ok := raw["utility"].(float64); ok {
		mem.Utility = clamp01(util)
	}
	return ValidationResult{OK: true, Memory: &mem, Issues: []ValidationIssue{}}
}

// ExtractionPayload is the JSON envelope emitted by the extraction
// pipeline.
type ExtractionPayload struct {
	Memories []map[string]any `json:"memories"`
}

// ValidateExtractionPayload validates every entry of a payload,
// accumulating per-index issues for the rejects.
func ValidateExtractionPayload(payload ExtractionPayload, opts ValidateOptions) ([]CanonicalMemory, []ValidationIssue) {
	var memories []CanonicalMemory
	var issues []ValidationIssue
	for i, raw := range payload.Memories {
		res := ValidateCanonicalMemory(raw, opts)
		if res.OK && res.Memory != nil {
			memories = append(memories, *res.Memory)
			continue
		}
		for _, issue := range res.Issues {
			issues = append(issues, ValidationIssue{
				Field:   fmt.Sprintf("memories[%d].%s", i, issue.Field),
				Message: issue.Message,
			})
		}
	}
	return memories, issues
}

// ParseExtractionJSON parses raw extraction text into a payload and
// rejects envelopes without a memories array.
func ParseExtractionJSON(text string) (ExtractionPayload, error) {
	var payload ExtractionPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return ExtractionPayload{}, fmt.Errorf("validate: parse extraction json: %w", err)
	}
	if payload.Memories == nil {
		return ExtractionPayload{}, fmt.Errorf("validate: extraction json must contain a memories array")
	}
	return payload, nil
}
