package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fezalogistics/feza/internal/assistant"
	"github.com/fezalogistics/feza/internal/audit"
	"github.com/fezalogistics/feza/internal/auth"
	"github.com/fezalogistics/feza/internal/observability"
)

const (
	maxAssistantBodyBytes = 64 << 10
	maxQueryChars         = 2000
	defaultHistoryLimit   = 20
	maxHistoryLimit       = 100
)

type assistantQueryRequest struct {
	Query string `json:"query"`
}

type assistantErrorResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	UserMessage string `json:"user_message,omitempty"`
}

// historyEntry is the caller-facing view of an audit entry. Internal error
// detail stays in the log table and the archive.
type historyEntry struct {
	ID            uuid.UUID    `json:"id"`
	SessionID     string       `json:"session_id,omitempty"`
	Query         string       `json:"user_query"`
	SQL           *string      `json:"sql_executed,omitempty"`
	Response      *string      `json:"ai_response,omitempty"`
	ResponseType  string       `json:"response_type"`
	ResultCount   int          `json:"result_count"`
	ElapsedMillis int64        `json:"elapsed_ms"`
	Status        audit.Status `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
}

func newHistoryEntry(entry audit.Entry) historyEntry {
	return historyEntry{
		ID:            entry.ID,
		SessionID:     entry.SessionID,
		Query:         entry.Query,
		SQL:           entry.SQL,
		Response:      entry.Response,
		ResponseType:  entry.ResponseType,
		ResultCount:   entry.ResultCount,
		ElapsedMillis: entry.ElapsedMillis,
		Status:        entry.Status,
		CreatedAt:     entry.CreatedAt,
	}
}

func handleAssistantQuery(deps Dependencies, limiter *assistantLimiter, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}
	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "USER_REQUIRED", err.Error(), false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAssistantUser); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request assistantQueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAssistantBodyBytes)).Decode(&request); err != nil {
		writeJSON(w, http.StatusBadRequest, assistantErrorResponse{Error: "Invalid request body"})
		return
	}
	question := strings.TrimSpace(request.Query)
	if question == "" {
		writeJSON(w, http.StatusBadRequest, assistantErrorResponse{Error: "Query is required"})
		return
	}
	if utf8.RuneCountInString(question) > maxQueryChars {
		writeJSON(w, http.StatusBadRequest, assistantErrorResponse{Error: "Query is too long"})
		return
	}

	release, ok := limiter.acquire(r.Context())
	if !ok {
		observability.IncrementAssistantRejected()
		writeJSON(w, http.StatusServiceUnavailable, assistantErrorResponse{
			Error:       "assistant busy",
			UserMessage: assistant.MessageBusy,
		})
		return
	}
	defer release()

	response := deps.Assistant.Ask(r.Context(), assistant.Request{
		UserID:    caller.UserID,
		SessionID: caller.SessionID,
		Query:     question,
	})
	writeJSON(w, http.StatusOK, response)
}

func handleAssistantHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "interaction history is not configured", false, nil)
		return
	}
	caller, ok := historyCaller(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxHistoryLimit {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 100", false, map[string]any{"limit": raw})
			return
		}
		limit = parsed
	}

	entries, err := deps.History.ListRecent(r.Context(), caller.UserID, limit)
	if err != nil {
		logHistoryError(deps, r, err)
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to load interaction history", true, nil)
		return
	}
	out := make([]historyEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, newHistoryEntry(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": caller.UserID,
		"entries": out,
	})
}

func handleAssistantHistoryEntry(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "interaction history is not configured", false, nil)
		return
	}
	caller, ok := historyCaller(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ID", "interaction id must be a UUID", false, nil)
		return
	}

	entry, err := deps.History.GetEntry(r.Context(), id)
	if errors.Is(err, audit.ErrNotFound) || (err == nil && entry.UserID != caller.UserID) {
		writeError(r.Context(), w, http.StatusNotFound, "NOT_FOUND", "interaction not found", false, nil)
		return
	}
	if err != nil {
		logHistoryError(deps, r, err)
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to load interaction", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, newHistoryEntry(entry))
}

func historyCaller(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	caller, err := callerFromRequest(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "USER_REQUIRED", err.Error(), false, nil)
		return auth.Identity{}, false
	}
	if err := requireRole(r, auth.RoleAssistantUser); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return auth.Identity{}, false
	}
	return caller, true
}

func logHistoryError(deps Dependencies, r *http.Request, err error) {
	if deps.Logger == nil {
		return
	}
	deps.Logger.ErrorContext(r.Context(), "history lookup failed",
		"trace_id", observability.TraceIDFromContext(r.Context()),
		"error", err,
	)
}
