package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fezalogistics/feza/internal/audit"
)

type dbTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

func (r *Repository) Append(ctx context.Context, entry audit.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `
INSERT INTO ai_chat_logs (
    id, user_id, session_id, user_query, sql_executed, ai_response,
    response_type, result_count, elapsed_ms, status, error_detail, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if _, err := r.db.ExecContext(ctx, query,
		entry.ID.String(),
		entry.UserID,
		entry.SessionID,
		entry.Query,
		entry.SQL,
		entry.Response,
		entry.ResponseType,
		entry.ResultCount,
		entry.ElapsedMillis,
		string(entry.Status),
		entry.ErrorDetail,
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("append interaction log: %w", err)
	}
	return nil
}

const entryColumns = `id, user_id, session_id, user_query, sql_executed, ai_response,
       response_type, result_count, elapsed_ms, status, error_detail, created_at`

func (r *Repository) ListRecent(ctx context.Context, userID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT ` + entryColumns + `
FROM ai_chat_logs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent interactions: %w", err)
	}
	return scanEntries(rows)
}

// ListBefore returns the oldest entries created before cutoff, oldest first.
func (r *Repository) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	query := `
SELECT ` + entryColumns + `
FROM ai_chat_logs
WHERE created_at < $1
ORDER BY created_at ASC, id ASC
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions before cutoff: %w", err)
	}
	return scanEntries(rows)
}

// ArchiveBatch records an uploaded archive object and removes the entries it
// holds in a single transaction.
func (r *Repository) ArchiveBatch(ctx context.Context, in audit.ArchiveBatchInput) (audit.ArchiveObject, error) {
	if strings.TrimSpace(in.ObjectPath) == "" {
		return audit.ArchiveObject{}, fmt.Errorf("object path is required")
	}
	if len(in.EntryIDs) == 0 {
		return audit.ArchiveObject{}, fmt.Errorf("at least one entry id is required")
	}

	var archived audit.ArchiveObject
	err := r.withTx(ctx, func(q dbTX) error {
		insertQuery := `
INSERT INTO ai_chat_log_archive (object_path, record_count, size_bytes, min_created_at, max_created_at, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING archive_id, created_at`
		archived = audit.ArchiveObject{
			ObjectPath:  in.ObjectPath,
			RecordCount: int64(len(in.EntryIDs)),
			SizeBytes:   in.SizeBytes,
			MinCreated:  in.MinCreated.UTC(),
			MaxCreated:  in.MaxCreated.UTC(),
			CreatedBy:   in.CreatedBy,
		}
		if err := q.QueryRowContext(ctx, insertQuery,
			archived.ObjectPath,
			archived.RecordCount,
			archived.SizeBytes,
			archived.MinCreated,
			archived.MaxCreated,
			archived.CreatedBy,
		).Scan(&archived.ArchiveID, &archived.CreatedAt); err != nil {
			return fmt.Errorf("insert archive object: %w", err)
		}

		result, err := q.ExecContext(ctx, `DELETE FROM ai_chat_logs WHERE id = ANY($1::uuid[])`, uuidArrayLiteral(in.EntryIDs))
		if err != nil {
			return fmt.Errorf("delete archived interactions: %w", err)
		}
		deleted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete archived interactions rows affected: %w", err)
		}
		if deleted != int64(len(in.EntryIDs)) {
			return fmt.Errorf("delete archived interactions: deleted %d rows, expected %d", deleted, len(in.EntryIDs))
		}
		return nil
	})
	if err != nil {
		return audit.ArchiveObject{}, err
	}
	return archived, nil
}

func (r *Repository) ListArchives(ctx context.Context) ([]audit.ArchiveObject, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT archive_id, object_path, record_count, size_bytes, min_created_at, max_created_at, created_by, created_at
FROM ai_chat_log_archive
ORDER BY min_created_at ASC, archive_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list archive objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []audit.ArchiveObject
	for rows.Next() {
		var object audit.ArchiveObject
		if err := rows.Scan(
			&object.ArchiveID,
			&object.ObjectPath,
			&object.RecordCount,
			&object.SizeBytes,
			&object.MinCreated,
			&object.MaxCreated,
			&object.CreatedBy,
			&object.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan archive object: %w", err)
		}
		out = append(out, object)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive objects: %w", err)
	}
	return out, nil
}

func (r *Repository) GetEntry(ctx context.Context, id uuid.UUID) (audit.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+entryColumns+`
FROM ai_chat_logs
WHERE id = $1`, id.String())
	if err != nil {
		return audit.Entry{}, fmt.Errorf("get interaction: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return audit.Entry{}, err
	}
	if len(entries) == 0 {
		return audit.Entry{}, audit.ErrNotFound
	}
	return entries[0], nil
}

func (r *Repository) withTx(ctx context.Context, fn func(q dbTX) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	defer func() { _ = rows.Close() }()

	var out []audit.Entry
	for rows.Next() {
		var (
			entry       audit.Entry
			id          string
			sqlExecuted sql.NullString
			response    sql.NullString
			errorDetail sql.NullString
			status      string
		)
		if err := rows.Scan(
			&id,
			&entry.UserID,
			&entry.SessionID,
			&entry.Query,
			&sqlExecuted,
			&response,
			&entry.ResponseType,
			&entry.ResultCount,
			&entry.ElapsedMillis,
			&status,
			&errorDetail,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse interaction id %q: %w", id, err)
		}
		entry.ID = parsed
		entry.Status = audit.Status(status)
		entry.SQL = nullStringPtr(sqlExecuted)
		entry.Response = nullStringPtr(response)
		entry.ErrorDetail = nullStringPtr(errorDetail)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func uuidArrayLiteral(ids []uuid.UUID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return "{" + strings.Join(parts, ",") + "}"
}
