package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type Status string

const (
	StatusSuccess        Status = "success"
	StatusBlocked        Status = "blocked"
	StatusError          Status = "error"
	StatusConversational Status = "conversational"
)

// Entry is one append-only record of an assistant interaction.
type Entry struct {
	ID            uuid.UUID `json:"id"`
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id"`
	Query         string    `json:"user_query"`
	SQL           *string   `json:"sql_executed,omitempty"`
	Response      *string   `json:"ai_response,omitempty"`
	ResponseType  string    `json:"response_type"`
	ResultCount   int       `json:"result_count"`
	ElapsedMillis int64     `json:"elapsed_ms"`
	Status        Status    `json:"status"`
	ErrorDetail   *string   `json:"error_detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

type ArchiveObject struct {
	ArchiveID   int64     `json:"archive_id"`
	ObjectPath  string    `json:"object_path"`
	RecordCount int64     `json:"record_count"`
	SizeBytes   int64     `json:"size_bytes"`
	MinCreated  time.Time `json:"min_created_at"`
	MaxCreated  time.Time `json:"max_created_at"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type ArchiveBatchInput struct {
	ObjectPath string
	EntryIDs   []uuid.UUID
	SizeBytes  int64
	MinCreated time.Time
	MaxCreated time.Time
	CreatedBy  string
}

func StringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
