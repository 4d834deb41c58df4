package archive

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/fezalogistics/feza/internal/audit"
)

type EncodeResult struct {
	Data        []byte
	RecordCount int64
	MinCreated  time.Time
	MaxCreated  time.Time
}

type parquetEntry struct {
	ID              string  `parquet:"id"`
	UserID          string  `parquet:"user_id"`
	SessionID       string  `parquet:"session_id"`
	UserQuery       string  `parquet:"user_query"`
	SQLExecuted     *string `parquet:"sql_executed"`
	AIResponse      *string `parquet:"ai_response"`
	ResponseType    string  `parquet:"response_type"`
	ResultCount     int64   `parquet:"result_count"`
	ElapsedMs       int64   `parquet:"elapsed_ms"`
	Status          string  `parquet:"status"`
	ErrorDetail     *string `parquet:"error_detail"`
	CreatedAtUnixMs int64   `parquet:"created_at_unix_ms"`
}

// EncodeEntries writes interaction-log entries as a single parquet file.
func EncodeEntries(entries []audit.Entry) (EncodeResult, error) {
	if len(entries) == 0 {
		return EncodeResult{}, fmt.Errorf("entries are required")
	}

	rows := make([]parquetEntry, 0, len(entries))
	var minCreated, maxCreated time.Time
	for i, entry := range entries {
		created := entry.CreatedAt.UTC()
		rows = append(rows, parquetEntry{
			ID:              entry.ID.String(),
			UserID:          entry.UserID,
			SessionID:       entry.SessionID,
			UserQuery:       entry.Query,
			SQLExecuted:     entry.SQL,
			AIResponse:      entry.Response,
			ResponseType:    entry.ResponseType,
			ResultCount:     int64(entry.ResultCount),
			ElapsedMs:       entry.ElapsedMillis,
			Status:          string(entry.Status),
			ErrorDetail:     entry.ErrorDetail,
			CreatedAtUnixMs: created.UnixMilli(),
		})
		if i == 0 || created.Before(minCreated) {
			minCreated = created
		}
		if i == 0 || created.After(maxCreated) {
			maxCreated = created
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetEntry](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return EncodeResult{
		Data:        buf.Bytes(),
		RecordCount: int64(len(rows)),
		MinCreated:  minCreated,
		MaxCreated:  maxCreated,
	}, nil
}
