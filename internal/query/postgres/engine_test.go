package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/fezalogistics/feza/internal/nl2sql"
	"github.com/fezalogistics/feza/internal/query"
)

func TestExecuteReturnsRowsInStoreOrder(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := NewEngine(db, time.Second)
	paidAt := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	statement := "SELECT client_name, total, paid_at, note FROM clients ORDER BY total DESC LIMIT 2"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(statement)).
		WillReturnRows(sqlmock.NewRows([]string{"client_name", "total", "paid_at", "note"}).
			AddRow([]byte("Kigali Freight"), int64(900), paidAt, nil).
			AddRow("Acme", 450.5, paidAt, "late"))
	mock.ExpectRollback()

	result, err := engine.Execute(context.Background(), query.Request{SQL: nl2sql.ValidatedSQL(statement)})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 4 || result.Columns[0] != "client_name" {
		t.Fatalf("Columns = %#v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	first := result.Rows[0]
	if first["client_name"] != "Kigali Freight" {
		t.Fatalf("client_name = %#v", first["client_name"])
	}
	if first["total"] != int64(900) {
		t.Fatalf("total = %#v", first["total"])
	}
	if first["paid_at"] != "2025-03-14T09:30:00Z" {
		t.Fatalf("paid_at = %#v", first["paid_at"])
	}
	if first["note"] != nil {
		t.Fatalf("note = %#v", first["note"])
	}
	if result.Rows[1]["client_name"] != "Acme" {
		t.Fatalf("second row = %#v", result.Rows[1])
	}
	assertSQLMock(t, mock)
}

func TestExecuteWrapsStoreErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := NewEngine(db, time.Second)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT bogus FROM clients LIMIT 100")).
		WillReturnError(errors.New(`column "bogus" does not exist`))
	mock.ExpectRollback()

	_, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT bogus FROM clients LIMIT 100"})
	if !errors.Is(err, query.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	var execErr *query.ExecutionError
	if !errors.As(err, &execErr) || execErr.Detail != "execute statement" {
		t.Fatalf("unexpected error: %#v", err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteWrapsBeginErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	_, err := NewEngine(db, time.Second).Execute(context.Background(), query.Request{SQL: "SELECT 1 LIMIT 1"})
	if !errors.Is(err, query.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteRejectsEmptyStatement(t *testing.T) {
	db, _ := newSQLMock(t)
	_, err := NewEngine(db, 0).Execute(context.Background(), query.Request{})
	if !errors.Is(err, query.ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
