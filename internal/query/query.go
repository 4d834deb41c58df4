package query

import (
	"context"
	"errors"
	"time"

	"github.com/fezalogistics/feza/internal/nl2sql"
)

var ErrExecution = errors.New("query execution failed")

// ExecutionError wraps any failure raised while running a validated
// statement. Detail is safe to log; it is never shown to end users.
type ExecutionError struct {
	Detail string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return ErrExecution.Error() + ": " + e.Detail
	}
	return ErrExecution.Error() + ": " + e.Detail + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

func Failed(detail string, err error) error {
	return &ExecutionError{Detail: detail, Err: err}
}

// Row maps column name to a scalar value: string, int64, float64, bool or nil.
type Row map[string]any

type TableFile struct {
	TableName     string
	ObjectPath    string
	FileSizeBytes int64
}

type Request struct {
	SQL   nl2sql.ValidatedSQL
	Files []TableFile
}

type Result struct {
	Columns      []string
	Rows         []Row
	ScannedFiles int
	ScannedBytes int64
	Duration     time.Duration
}

func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
