package engine

import "strings"

// RetrievalIntent is the lexical classification of a free-text query.
type RetrievalIntent string

const (
	IntentChat     RetrievalIntent = "chat"
	IntentWork     RetrievalIntent = "work"
	IntentLearning RetrievalIntent = "learning"
	IntentIncident RetrievalIntent = "incident"
	IntentProfile  RetrievalIntent = "profile"
)

// RetrievalPlan scopes what storage should return for one query.
type RetrievalPlan struct {
	Intent       RetrievalIntent `json:"intent"`
	MemoryTypes  []MemoryType    `json:"memoryTypes"`
	PathPrefixes []string        `json:"pathPrefixes"`
	TopK         int             `json:"topK"`
	Rationale    string          `json:"rationale"`
}

// PlannerOptions tunes plan budgets; the zero value uses defaults.
type PlannerOptions struct {
	DefaultTopK int // default 8
	WorkTopK    int // default 10
	ChatTopK    int // default 6
}

var intentHints = map[RetrievalIntent][]string{
	IntentChat:     {"随便聊", "聊天", "最近", "today", "today's", "just chat"},
	IntentWork:     {"项目", "任务", "debug", "fix", "deploy", "roadmap", "实现", "方案"},
	IntentLearning: {"学习", "教程", "how to", "example", "最佳实践", "best practice"},
	IntentIncident: {"事故", "故障", "报错", "incident", "error", "宕机", "异常"},
	IntentProfile:  {"我喜欢", "偏好", "我的", "my preference", "my name", "call me"},
}

func hasAnyHint(text string, intent RetrievalIntent) bool {
	for _, hint := range intentHints[intent] {
		if strings.Contains(text, strings.ToLower(hint)) {
			return true
		}
	}
	return false
}

// InferRetrievalIntent classifies a query by keyword hints. Incident and
// work hints dominate; anything unrecognized is treated as chat.
func InferRetrievalIntent(query string) RetrievalIntent {
	q := strings.ToLower(query)
	switch {
	case hasAnyHint(q, IntentIncident):
		return IntentIncident
	case hasAnyHint(q, IntentWork):
		return IntentWork
	case hasAnyHint(q, IntentLearning):
		return IntentLearning
	case hasAnyHint(q, IntentProfile):
		return IntentProfile
	default:
		return IntentChat
	}
}

// BuildRetrievalPlan maps a query to a static per-intent plan.
func BuildRetrievalPlan(query string, opts PlannerOptions) RetrievalPlan {
	defaultTopK := opts.DefaultTopK
	if defaultTopK == 0 {
		defaultTopK = 8
	}
	workTopK := opts.WorkTopK
	if workTopK == 0 {
		workTopK = 10
	}
	chatTopK := opts.ChatTopK
	if chatTopK == 0 {
		chatTopK = 6
	}

	switch InferRetrievalIntent(query) {
	case IntentWork:
		return RetrievalPlan{
			Intent:       IntentWork,
			MemoryTypes:  []MemoryType{MemoryTask, MemorySkill, MemoryEvent, MemoryUserPreference},
			PathPrefixes: []string{"mory://task/", "mory://skill/", "mory://event/", "mory://user_preference/"},
			TopK:         workTopK,
			Rationale:    "work query: prioritize task state, skills, and relevant incidents",
		}
	case IntentLearning:
		return RetrievalPlan{
			Intent:       IntentLearning,
			MemoryTypes:  []MemoryType{MemorySkill, MemoryWorldKnowledge, MemoryTask},
			PathPrefixes: []string{"mory://skill/", "mory://world_knowledge/", "mory://task/"},
			TopK:         defaultTopK,
			Rationale:    "learning query: prioritize skills and reusable knowledge",
		}
	case IntentIncident:
		return RetrievalPlan{
			Intent:       IntentIncident,
			MemoryTypes:  []MemoryType{MemoryEvent, MemoryTask, MemoryWorldKnowledge},
			PathPrefixes: []string{"mory://event/", "mory://task/", "mory://world_knowledge/"},
			TopK:         defaultTopK,
			Rationale:    "incident query: prioritize event timeline and operational context",
		}
	case IntentProfile:
		return RetrievalPlan{
			Intent:       IntentProfile,
			MemoryTypes:  []MemoryType{MemoryUserPreference, MemoryUserFact, MemoryTask},
			PathPrefixes: []string{"mory://user_preference/", "mory://user_fact/", "mory://task/current"},
			TopK:         chatTopK,
			Rationale:    "profile query: prioritize stable preferences and user facts",
		}
	default:
		return RetrievalPlan{
			Intent:       IntentChat,
			MemoryTypes:  []MemoryType{MemoryUserPreference, MemoryUserFact, MemoryEvent},
			PathPrefixes: []string{"mory://user_preference/", "mory://user_fact/", "mory://event/"},
			TopK:         chatTopK,
			Rationale:    "general chat: prioritize personalization and recent events",
		}
	}
}
