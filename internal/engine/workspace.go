package engine

import (
	"regexp"
	"strings"
	"time"
)

// Session-scoped working memory lives under mory://task/session.* and is
// subject to TTL expiry rather than the retention formula.

const workspacePrefix = "mory://task/session."

var (
	workspaceUnsafe = regexp.MustCompile(`[^a-z0-9._-]+`)
	workspaceRepeat = regexp.MustCompile(`_{2,}`)
)

func workspaceSlug(input string) string {
	s := strings.ToLower(input)
	s = workspaceUnsafe.ReplaceAllString(s, "_")
	s = workspaceRepeat.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// BuildWorkspacePath addresses a session's working memory slot. An empty
// key defaults to "state".
func BuildWorkspacePath(sessionID, key string) string {
	if key == "" {
		key = "state"
	}
	return workspacePrefix + workspaceSlug(sessionID) + "." + workspaceSlug(key)
}

// IsWorkspacePath reports whether a path addresses working memory.
func IsWorkspacePath(path string) bool {
	return strings.HasPrefix(path, workspacePrefix)
}

// ShouldExpireWorkingMemory reports whether a working-memory record has
// outlived its TTL. Unparsable timestamps never expire so a single bad
// timestamp cannot cause data loss. A non-positive ttlHours takes the
// 24h default.
func ShouldExpireWorkingMemory(updatedAt string, ttlHours float64) bool {
	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return false
	}
	if ttlHours <= 0 {
		ttlHours = 24
	}
	ttl := time.Duration(ttlHours * float64(time.Hour))
	if ttl < time.Hour {
		ttl = time.Hour
	}
	return time.Since(ts) > ttl
}

// ToWorkingMemory stamps a payload as working memory: workspace path,
// task type, overwrite policy, and conservative importance/utility
// defaults when unspecified.
func ToWorkingMemory(payload CanonicalMemory, sessionID, key string) CanonicalMemory {
	payload.Path = BuildWorkspacePath(sessionID, key)
	payload.Type = MemoryTask
	payload.UpdatedPolicy = PolicyOverwrite
	if payload.Importance == 0 {
		payload.Importance = 0.7
	}
	if payload.Utility == 0 {
		payload.Utility = 0.9
	}
	return payload
}
