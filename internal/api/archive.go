package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fezalogistics/feza/internal/archive"
	"github.com/fezalogistics/feza/internal/auth"
	"github.com/fezalogistics/feza/internal/nl2sql"
)

type archiveQueryRequest struct {
	SQL string `json:"sql"`
}

type archiveQueryResponse struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Stats   map[string]any   `json:"stats"`
}

func handleArchiveRun(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "archive service is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleArchiveAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	summary, err := deps.Archive.RunOnce(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "ARCHIVE_FAILED", "archive run failed", true, map[string]any{
			"details": err.Error(),
			"summary": summary,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "completed",
		"summary": summary,
	})
}

func handleArchiveQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "archive service is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleArchiveAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request archiveQueryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid archive query body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	result, err := deps.Archive.Query(r.Context(), request.SQL)
	switch {
	case err == nil:
	case nl2sql.IsPolicyViolation(err):
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only a single read-only SELECT statement is allowed", false, map[string]any{
			"reason": nl2sql.PolicyReason(err),
		})
		return
	case errors.Is(err, archive.ErrNoArchives):
		writeError(r.Context(), w, http.StatusNotFound, "NO_ARCHIVES", "no archived interaction logs yet", false, nil)
		return
	default:
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
		return
	}

	rows := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, archiveQueryResponse{
		Columns: result.Columns,
		Rows:    rows,
		Stats: map[string]any{
			"scanned_files": result.ScannedFiles,
			"scanned_bytes": result.ScannedBytes,
			"duration_ms":   result.Duration.Milliseconds(),
		},
	})
}
