package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Engine is the effectful shell around the pure decision core. It owns a
// storage adapter and a metrics collector and serializes all metric
// mutation behind its own mutex, so one engine instance is safe to share
// across HTTP handlers.
type Engine struct {
	storage Storage
	logger  *log.Logger

	mu      sync.Mutex
	metrics *Metrics

	Gate    GateOptions
	Score   ScoreOptions
	nowFunc func() string
}

// Options configures a new engine. Storage is required.
type Options struct {
	Storage Storage
	Metrics *Metrics
	Logger  *log.Logger
	Now     func() string
}

func New(opts Options) *Engine {
	m := opts.Metrics
	if m == nil {
		m = NewMetrics()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() string { return time.Now().UTC().Format(time.RFC3339) }
	}
	return &Engine{
		storage: opts.Storage,
		logger:  logger,
		metrics: m,
		nowFunc: now,
	}
}

// IngestInput is one write request: a raw (possibly loosely typed) memory
// plus provenance.
type IngestInput struct {
	UserID     string         `json:"userId"`
	Memory     map[string]any `json:"memory"`
	Source     string         `json:"source,omitempty"`
	ObservedAt string         `json:"observedAt,omitempty"`
}

// IngestResult reports the outcome for one candidate.
type IngestResult struct {
	Action WriteAction       `json:"action"`
	Path   string            `json:"path"`
	ID     string            `json:"id,omitempty"`
	Reason string            `json:"reason"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// CommitInput is a batch of extracted memories from one dialogue turn.
type CommitInput struct {
	UserID     string            `json:"userId"`
	Payload    ExtractionPayload `json:"payload"`
	Dialogue   string            `json:"dialogue,omitempty"`
	Source     string            `json:"source,omitempty"`
	ObservedAt string            `json:"observedAt,omitempty"`
}

// CommitResult summarizes a batch commit.
type CommitResult struct {
	Accepted int               `json:"accepted"`
	Skipped  int               `json:"skipped"`
	Errors   int               `json:"errors"`
	Items    []IngestResult    `json:"items"`
	Issues   []ValidationIssue `json:"issues"`
}

func toStoredNodes(nodes []PersistedMemoryNode) []StoredMemoryNode {
	out := make([]StoredMemoryNode, 0, len(nodes))
	for _, n := range nodes {
		if n.ArchivedAt == "" {
			out = append(out, n.Stored())
		}
	}
	return out
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Ingest validates, scores, gates, and persists one memory candidate.
// Counters only move once the final decision is known; storage failures
// propagate unchanged with no counter mutation.
func (e *Engine) Ingest(ctx context.Context, input IngestInput) (IngestResult, error) {
	validation := ValidateCanonicalMemory(input.Memory, ValidateOptions{
		Source:     input.Source,
		ObservedAt: input.ObservedAt,
	})
	if !validation.OK || validation.Memory == nil {
		return IngestResult{Action: ActionSkip, Reason: "validation failed", Issues: validation.Issues}, nil
	}
	return e.ingestCanonical(ctx, input.UserID, *validation.Memory)
}

func (e *Engine) ingestCanonical(ctx context.Context, userID string, memory CanonicalMemory) (IngestResult, error) {
	existing, err := e.storage.ReadByPath(ctx, userID, memory.Path, false)
	if err != nil {
		return IngestResult{}, fmt.Errorf("engine: read path %s: %w", memory.Path, err)
	}
	stored := toStoredNodes(existing)

	score := ScoreWriteCandidate(stored, memory, e.Score)
	if !score.ShouldWrite {
		e.recordWrite(ActionSkip, true)
		return IngestResult{Action: ActionSkip, Path: memory.Path, Reason: score.Reason}, nil
	}

	decision := DecideWrite(stored, memory, e.Gate)
	if decision.Action == ActionSkip {
		if decision.Conflict {
			e.recordConflict(1)
		}
		e.recordWrite(ActionSkip, decision.Duplicate)
		result := IngestResult{Action: ActionSkip, Path: memory.Path, Reason: decision.Reason}
		if decision.Target != nil {
			result.ID = decision.Target.ID
		}
		return result, nil
	}

	if decision.Action == ActionInsert || len(stored) == 0 {
		// Archived nodes may already occupy version 1 at this path.
		allAtPath, err := e.storage.ReadByPath(ctx, userID, memory.Path, true)
		if err != nil {
			return IngestResult{}, fmt.Errorf("engine: read path history %s: %w", memory.Path, err)
		}
		nextVersion := 1
		for _, n := range allAtPath {
			if n.Version >= nextVersion {
				nextVersion = n.Version + 1
			}
		}
		created, err := e.insertSnapshot(ctx, userID, memory, nextVersion, "", false, "", 0)
		if err != nil {
			return IngestResult{}, err
		}
		e.recordWrite(ActionInsert, false)
		return IngestResult{Action: ActionInsert, Path: memory.Path, ID: created.ID, Reason: "inserted new memory"}, nil
	}

	// Re-resolve with the real persisted version before applying; the gate
	// only saw the unversioned view.
	target := existing[0]
	for _, n := range existing {
		if n.ID == decision.Target.ID {
			target = n
			break
		}
	}
	resolution := ResolveMemoryConflict(target.Versioned(), memory, e.Gate.Resolve)
	if resolution.Conflict {
		e.recordConflict(1)
	}

	switch resolution.Action {
	case KeepExisting:
		e.recordWrite(ActionSkip, false)
		return IngestResult{Action: ActionSkip, Path: memory.Path, ID: target.ID, Reason: resolution.Reason}, nil

	case FlagConflict:
		flag := true
		now := e.nowFunc()
		if err := e.storage.Update(ctx, userID, target.ID, NodePatch{ConflictFlag: &flag, UpdatedAt: &now}); err != nil {
			return IngestResult{}, fmt.Errorf("engine: flag conflict on %s: %w", target.ID, err)
		}
		e.recordWrite(ActionSkip, false)
		return IngestResult{Action: ActionSkip, Path: memory.Path, ID: target.ID, Reason: resolution.Reason}, nil
	}

	// Replace or merge: archive the old snapshot, insert the next version.
	if _, err := e.storage.Archive(ctx, userID, []string{target.ID}); err != nil {
		return IngestResult{}, fmt.Errorf("engine: archive superseded %s: %w", target.ID, err)
	}
	created, err := e.insertSnapshot(ctx, userID, memory, target.Version+1, target.ID, resolution.Conflict,
		resolution.Next.Value, resolution.Next.Confidence)
	if err != nil {
		return IngestResult{}, err
	}
	e.recordWrite(ActionUpdate, false)
	return IngestResult{Action: ActionUpdate, Path: memory.Path, ID: created.ID, Reason: resolution.Reason}, nil
}

func (e *Engine) insertSnapshot(ctx context.Context, userID string, memory CanonicalMemory, version int, supersedes string, conflictFlag bool, valueOverride string, confidenceOverride float64) (*PersistedMemoryNode, error) {
	now := e.nowFunc()
	value := memory.Value
	if valueOverride != "" {
		value = valueOverride
	}
	confidence := memory.Confidence
	if confidenceOverride != 0 {
		confidence = confidenceOverride
	}
	path := NormalizeMoryPath(memory.Path)
	memoryType := ExtractTypeFromPath(path)
	if memoryType == "" {
		memoryType = memory.Type
	}
	subject := memory.Subject
	if subject == "" {
		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			subject = path[idx+1:]
		}
		if subject == "" {
			subject = "unknown"
		}
	}

	node := &PersistedMemoryNode{
		UserID:       userID,
		Path:         path,
		MemoryType:   string(memoryType),
		Subject:      subject,
		Title:        memory.Title,
		Value:        value,
		Confidence:   clamp01(confidence),
		Importance:   DeriveImportance(memory),
		Utility:      DeriveUtility(memory),
		Version:      version,
		Supersedes:   supersedes,
		ConflictFlag: conflictFlag,
		Source:       memory.Source,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.storage.Insert(ctx, node); err != nil {
		return nil, fmt.Errorf("engine: insert snapshot at %s: %w", path, err)
	}
	return node, nil
}

// Commit validates and ingests a batch of extracted memories, charging the
// dialogue's estimated token cost.
func (e *Engine) Commit(ctx context.Context, input CommitInput) (CommitResult, error) {
	memories, issues := ValidateExtractionPayload(input.Payload, ValidateOptions{
		Source:     input.Source,
		ObservedAt: input.ObservedAt,
	})
	if input.Dialogue != "" {
		e.recordTokenCost(estimateTokens(input.Dialogue))
	}

	result := CommitResult{Items: []IngestResult{}, Issues: issues}
	for _, memory := range memories {
		item, err := e.ingestCanonical(ctx, input.UserID, memory)
		if err != nil {
			return CommitResult{}, err
		}
		result.Items = append(result.Items, item)
		if item.Action == ActionSkip {
			result.Skipped++
		} else {
			result.Accepted++
		}
	}
	result.Errors = len(issues)
	e.logger.Printf("engine: commit user=%s accepted=%d skipped=%d issues=%d",
		input.UserID, result.Accepted, result.Skipped, result.Errors)
	return result, nil
}

// Retrieve plans and executes memory recall for a query.
func (e *Engine) Retrieve(ctx context.Context, userID, query string, opts RetrieveOptions) (RetrievalResult, error) {
	result, err := ExecuteRetrieval(ctx, e.storage, userID, query, opts)
	if err != nil {
		return RetrievalResult{}, err
	}
	e.recordRetrieval(len(result.Hits))
	return result, nil
}

// ReadByPath returns active records at a path and touches their access
// counters.
func (e *Engine) ReadByPath(ctx context.Context, userID, rawPath string) ([]PersistedMemoryNode, error) {
	canonical := NormalizeMoryPath(rawPath)
	rows, err := e.storage.ReadByPath(ctx, userID, canonical, false)
	if err != nil {
		return nil, fmt.Errorf("engine: read path %s: %w", canonical, err)
	}
	now := e.nowFunc()
	for _, row := range rows {
		count := row.AccessCount + 1
		if err := e.storage.Update(ctx, userID, row.ID, NodePatch{
			AccessCount:    &count,
			LastAccessedAt: &now,
		}); err != nil {
			return nil, fmt.Errorf("engine: touch access on %s: %w", row.ID, err)
		}
	}
	return rows, nil
}

// ReadMemory renders the records at a path for tool consumption.
func (e *Engine) ReadMemory(ctx context.Context, userID, rawPath string) (string, []string, error) {
	canonical := NormalizeMoryPath(rawPath)
	rows, err := e.ReadByPath(ctx, userID, canonical)
	if err != nil {
		return "", nil, err
	}
	records := make([]string, len(rows))
	for i, row := range rows {
		records[i] = FormatMemoryRecord(row)
	}
	return canonical, records, nil
}

// Forget applies the retention policy for a user and counts the archived
// records.
func (e *Engine) Forget(ctx context.Context, userID string, policy ForgettingPolicy) (ForgettingPlan, error) {
	plan, err := ApplyForgettingPolicy(ctx, e.storage, userID, policy)
	if err != nil {
		return ForgettingPlan{}, err
	}
	e.recordArchived(len(plan.ArchivedIDs))
	e.logger.Printf("engine: forget user=%s kept=%d archived=%d", userID, len(plan.Keep), len(plan.ArchivedIDs))
	return plan, nil
}

// Consolidate compresses a user's episodic records into semantic rules
// and feeds the rules back through the write gate.
func (e *Engine) Consolidate(ctx context.Context, userID string, opts ConsolidateOptions) ([]IngestResult, error) {
	rows, err := e.storage.List(ctx, userID, ListOptions{MemoryTypes: []string{string(MemoryEvent)}})
	if err != nil {
		return nil, fmt.Errorf("engine: list episodic records: %w", err)
	}
	episodes := make([]EpisodicMemory, 0, len(rows))
	for _, row := range rows {
		episodes = append(episodes, EpisodicMemory{
			ID:         row.ID,
			Path:       row.Path,
			Type:       MemoryType(row.MemoryType),
			Subject:    row.Subject,
			Value:      row.Value,
			Confidence: row.Confidence,
			ObservedAt: row.UpdatedAt,
		})
	}

	rules := ConsolidateEpisodes(episodes, opts)
	results := make([]IngestResult, 0, len(rules))
	for _, rule := range rules {
		// The rule supersedes its evidence; archive the episodes first so
		// the write gate does not treat the representative value as a
		// duplicate of its own source.
		archived, err := e.storage.Archive(ctx, userID, rule.SourceIDs)
		if err != nil {
			return nil, fmt.Errorf("engine: archive consolidated episodes: %w", err)
		}
		e.recordArchived(archived)

		item, err := e.ingestCanonical(ctx, userID, ToCanonicalFromRule(rule))
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	if len(rules) > 0 {
		e.logger.Printf("engine: consolidate user=%s rules=%d", userID, len(rules))
	}
	return results, nil
}

// ExpireWorkspace archives session-scoped working memory older than the
// TTL. A non-positive ttlHours takes the 24h default.
func (e *Engine) ExpireWorkspace(ctx context.Context, userID string, ttlHours float64) (int, error) {
	rows, err := e.storage.List(ctx, userID, ListOptions{PathPrefixes: []string{workspacePrefix}})
	if err != nil {
		return 0, fmt.Errorf("engine: list workspace records: %w", err)
	}
	var stale []string
	for _, row := range rows {
		if IsWorkspacePath(row.Path) && ShouldExpireWorkingMemory(row.UpdatedAt, ttlHours) {
			stale = append(stale, row.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	archived, err := e.storage.Archive(ctx, userID, stale)
	if err != nil {
		return 0, fmt.Errorf("engine: expire workspace: %w", err)
	}
	e.recordArchived(archived)
	e.logger.Printf("engine: expired %d workspace records for user=%s", archived, userID)
	return archived, nil
}

// MetricsSnapshot returns a copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics.Snapshot()
}

func (e *Engine) recordWrite(action WriteAction, duplicate bool) {
	e.mu.Lock()
	e.metrics.RecordWrite(action, duplicate)
	e.mu.Unlock()
}

func (e *Engine) recordConflict(n int) {
	e.mu.Lock()
	e.metrics.RecordConflict(n)
	e.mu.Unlock()
}

func (e *Engine) recordRetrieval(hits int) {
	e.mu.Lock()
	e.metrics.RecordRetrieval(hits)
	e.mu.Unlock()
}

func (e *Engine) recordArchived(n int) {
	e.mu.Lock()
	e.metrics.RecordArchived(n)
	e.mu.Unlock()
}

func (e *Engine) recordTokenCost(tokens int) {
	e.mu.Lock()
	e.metrics.RecordTokenCost(tokens)
	e.mu.Unlock()
}
