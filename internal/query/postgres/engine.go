package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/fezalogistics/feza/internal/query"
)

const defaultTimeout = 10 * time.Second

// Engine runs validated statements inside a read-only transaction that is
// always rolled back.
type Engine struct {
	db      *sql.DB
	timeout time.Duration
}

func NewEngine(db *sql.DB, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{db: db, timeout: timeout}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := strings.TrimSpace(request.SQL.String())
	if sqlText == "" {
		return query.Result{}, query.Failed("empty statement", nil)
	}
	if e.db == nil {
		return query.Result{}, query.Failed("database is not configured", nil)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return query.Result{}, query.Failed("begin read-only transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, query.Failed("execute statement", err)
	}
	columns, out, err := query.ScanRows(rows)
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{
		Columns:  columns,
		Rows:     out,
		Duration: time.Since(start),
	}, nil
}
