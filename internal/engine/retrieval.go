package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// RetrieveOptions tunes one retrieval execution.
type RetrieveOptions struct {
	Planner PlannerOptions
	TopK    int // overrides the plan's budget when > 0
	L0Limit int
	L1Limit int
	L2Limit int
}

// RerankedNode is one retrieval hit with its score breakdown.
type RerankedNode struct {
	Node         PersistedMemoryNode `json:"node"`
	Score        float64             `json:"score"`
	LexicalScore float64             `json:"lexicalScore"`
	RecencyScore float64             `json:"recencyScore"`
}

// ContextItem is one line of layered prompt context.
type ContextItem struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// RetrievalResult carries the plan, ranked hits, and the layered
// L0 index / L1 summary / L2 detail prompt context.
type RetrievalResult struct {
	Plan          RetrievalPlan  `json:"plan"`
	Hits          []RerankedNode `json:"hits"`
	L0            []ContextItem  `json:"l0"`
	L1            []ContextItem  `json:"l1"`
	L2            []ContextItem  `json:"l2"`
	PromptContext string         `json:"promptContext"`
}

func queryLexicalScore(query, text string) float64 {
	return CombinedSimilarity(query, text)
}

func retrievalRecency(updatedAt string) float64 {
	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil || ts.Unix() <= 0 {
		return 0.3
	}
	ageDays := math.Max(0, time.Since(ts).Hours()/24)
	return math.Exp(-ageDays / 14)
}

func nodeTitle(node PersistedMemoryNode) string {
	if node.Title != "" {
		return node.Title
	}
	subject := node.Subject
	if subject == "" {
		if idx := strings.LastIndex(node.Path, "/"); idx >= 0 {
			subject = node.Path[idx+1:]
		}
	}
	if subject == "" {
		subject = "unknown"
	}
	value := node.Value
	if len(value) > 22 {
		value = value[:22]
	}
	return subject + ": " + value
}

func formatPromptContext(result RetrievalResult) string {
	var lines []string
	if len(result.L0) > 0 {
		lines = append(lines, "[L0 Memory Index]")
		for _, item := range result.L0 {
			lines = append(lines, fmt.Sprintf("- %s | %s", item.Path, item.Text))
		}
	}
	if len(result.L1) > 0 {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "[L1 Summary]")
		for _, item := range result.L1 {
			lines = append(lines, fmt.Sprintf("- %s: %s", item.Path, item.Text))
		}
	}
	if len(result.L2) > 0 {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "[L2 Detail]")
		for _, item := range result.L2 {
			lines = append(lines, fmt.Sprintf("- %s: %s", item.Path, item.Text))
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExecuteRetrieval runs plan, pool fetch, rerank, and context assembly for
// one query. Ranking is lexical-first with confidence, importance and
// recency as secondary signals.
func ExecuteRetrieval(ctx context.Context, storage Storage, userID, query string, opts RetrieveOptions) (RetrievalResult, error) {
	plan := BuildRetrievalPlan(query, opts.Planner)
	topK := opts.TopK
	if topK <= 0 {
		topK = plan.TopK
	}

	types := make([]string, len(plan.MemoryTypes))
	for i, t := range plan.MemoryTypes {
		types[i] = string(t)
	}
	poolLimit := topK * 6
	if poolLimit < 60 {
		poolLimit = 60
	}
	pool, err := storage.List(ctx, userID, ListOptions{
		MemoryTypes:  types,
		PathPrefixes: plan.PathPrefixes,
		Limit:        poolLimit,
	})
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("retrieval: list pool: %w", err)
	}

	reranked := make([]RerankedNode, 0, len(pool))
	for _, node := range pool {
		lexical := queryLexicalScore(query, node.Title+" "+node.Value)
		recency := retrievalRecency(node.UpdatedAt)
		score := clamp01(
			lexical*0.55 +
				clamp01(node.Confidence)*0.15 +
				clamp01(node.Importance)*0.15 +
				recency*0.15)
		reranked = append(reranked, RerankedNode{
			Node:         node,
			Score:        score,
			LexicalScore: lexical,
			RecencyScore: recency,
		})
	}
	// Ties keep storage order.
	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })
	if len(reranked) > topK {
		reranked = reranked[:topK]
	}

	l0Limit := opts.L0Limit
	if l0Limit <= 0 {
		l0Limit = min(3, len(reranked))
	}
	l1Limit := opts.L1Limit
	if l1Limit <= 0 {
		l1Limit = min(6, len(reranked))
	}
	l2Limit := opts.L2Limit
	if l2Limit <= 0 {
		l2Limit = min(2, len(reranked))
	}

	result := RetrievalResult{Plan: plan, Hits: reranked}
	for _, item := range reranked[:min(l0Limit, len(reranked))] {
		result.L0 = append(result.L0, ContextItem{Path: item.Node.Path, Text: nodeTitle(item.Node)})
	}
	for _, item := range reranked[:min(l1Limit, len(reranked))] {
		result.L1 = append(result.L1, ContextItem{Path: item.Node.Path, Text: item.Node.Value})
	}
	for _, item := range reranked {
		if len(result.L2) >= l2Limit {
			break
		}
		if item.Node.Detail != "" {
			result.L2 = append(result.L2, ContextItem{Path: item.Node.Path, Text: item.Node.Detail})
		}
	}
	result.PromptContext = formatPromptContext(result)
	return result, nil
}

// FormatMemoryRecord renders a single persisted record for tool output.
func FormatMemoryRecord(node PersistedMemoryNode) string {
	lines := []string{
		"path: " + node.Path,
		"type: " + node.MemoryType,
		"subject: " + node.Subject,
		"value: " + node.Value,
		fmt.Sprintf("confidence: %.2f", node.Confidence),
		fmt.Sprintf("importance: %.2f", node.Importance),
		fmt.Sprintf("version: %d", node.Version),
	}
	if node.Detail != "" {
		lines = append(lines, "detail: "+node.Detail)
	}
	if node.Supersedes != "" {
		lines = append(lines, "supersedes: "+node.Supersedes)
	}
	if node.ConflictFlag {
		lines = append(lines, "conflict_flag: true")
	}
	return strings.Join(lines, "\n")
}
