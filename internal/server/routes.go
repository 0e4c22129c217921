package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/moryhq/mory/internal/engine"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string         `json:"user_id"`
		Memory     map[string]any `json:"memory"`
		Source     string         `json:"source"`
		ObservedAt string         `json:"observed_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	if req.Memory == nil {
		writeError(w, http.StatusBadRequest, "memory required")
		return
	}

	result, err := s.engine.Ingest(r.Context(), engine.IngestInput{
		UserID:     req.UserID,
		Memory:     req.Memory,
		Source:     req.Source,
		ObservedAt: req.ObservedAt,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if result.Action == engine.ActionInsert {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string           `json:"user_id"`
		Memories   []map[string]any `json:"memories"`
		Dialogue   string           `json:"dialogue"`
		Source     string           `json:"source"`
		ObservedAt string           `json:"observed_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	result, err := s.engine.Commit(r.Context(), engine.CommitInput{
		UserID:     req.UserID,
		Payload:    engine.ExtractionPayload{Memories: req.Memories},
		Dialogue:   req.Dialogue,
		Source:     req.Source,
		ObservedAt: req.ObservedAt,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReadByPath(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	path := r.URL.Query().Get("path")
	if userID == "" || path == "" {
		writeError(w, http.StatusBadRequest, "user_id and path required")
		return
	}

	canonical, records, err := s.engine.ReadMemory(r.Context(), userID, path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    canonical,
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	query := r.URL.Query().Get("q")
	if userID == "" || query == "" {
		writeError(w, http.StatusBadRequest, "user_id and q required")
		return
	}

	opts := engine.RetrieveOptions{}
	if k := r.URL.Query().Get("top_k"); k != "" {
		if n, err := strconv.Atoi(k); err == nil && n > 0 {
			opts.TopK = n
		}
	}

	result, err := s.engine.Retrieve(r.Context(), userID, query, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intent":         result.Plan.Intent,
		"count":          len(result.Hits),
		"hits":           result.Hits,
		"prompt_context": result.PromptContext,
	})
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID            string  `json:"user_id"`
		Capacity          int     `json:"capacity"`
		MinRetentionScore float64 `json:"min_retention_score"`
		HalfLifeDays      float64 `json:"half_life_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	capacity := req.Capacity
	if capacity <= 0 {
		capacity = s.cfg.Memory.Capacity
	}

	plan, err := s.engine.Forget(r.Context(), req.UserID, engine.ForgettingPolicy{
		Capacity:          capacity,
		MinRetentionScore: req.MinRetentionScore,
		HalfLifeDays:      req.HalfLifeDays,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kept":         len(plan.Keep),
		"archived":     len(plan.Archive),
		"archived_ids": plan.ArchivedIDs,
	})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"user_id"`
		MinSupport int    `json:"min_support"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	results, err := s.engine.Consolidate(r.Context(), req.UserID, engine.ConsolidateOptions{
		MinSupport: req.MinSupport,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": len(results),
		"items": results,
	})
}

func (s *Server) handleExpireWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string  `json:"user_id"`
		TTLHours float64 `json:"ttl_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	ttl := req.TTLHours
	if ttl <= 0 {
		ttl = s.cfg.Memory.WorkspaceTTLHours
	}

	expired, err := s.engine.ExpireWorkspace(r.Context(), req.UserID, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expired": expired})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.MetricsSnapshot())
}
