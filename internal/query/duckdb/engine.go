package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/fezalogistics/feza/internal/query"
	"github.com/fezalogistics/feza/internal/storage"
)

// Engine downloads archived parquet files into a scratch directory, exposes
// each table name as a view over them and runs the statement in an in-memory
// DuckDB instance.
type Engine struct {
	Store storage.ObjectStore
}

func NewEngine(store storage.ObjectStore) *Engine {
	return &Engine{Store: store}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := strings.TrimSpace(request.SQL.String())
	if sqlText == "" {
		return query.Result{}, query.Failed("empty statement", nil)
	}
	if len(request.Files) == 0 {
		return query.Result{}, query.Failed("no archived files available", nil)
	}
	if e.Store == nil {
		return query.Result{}, query.Failed("object store is not configured", nil)
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "feza-archive-query-")
	if err != nil {
		return query.Result{}, query.Failed("create scratch dir", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	groupedPaths := map[string][]string{}
	var scannedBytes int64
	for index, file := range request.Files {
		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(file.TableName), index))
		if err := e.download(ctx, file.ObjectPath, localPath); err != nil {
			return query.Result{}, err
		}
		groupedPaths[file.TableName] = append(groupedPaths[file.TableName], localPath)
		scannedBytes += file.FileSizeBytes
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, query.Failed("open duckdb", err)
	}
	defer func() { _ = db.Close() }()

	for tableName, localPaths := range groupedPaths {
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s, union_by_name = true)`, quoteIdent(tableName), quoteStringArray(localPaths))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			return query.Result{}, query.Failed(fmt.Sprintf("create view %q", tableName), err)
		}
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, query.Failed("execute statement", err)
	}
	columns, out, err := query.ScanRows(rows)
	if err != nil {
		return query.Result{}, err
	}

	return query.Result{
		Columns:      columns,
		Rows:         out,
		ScannedFiles: len(request.Files),
		ScannedBytes: scannedBytes,
		Duration:     time.Since(start),
	}, nil
}

func (e *Engine) download(ctx context.Context, objectPath, localPath string) error {
	reader, err := e.Store.Get(ctx, objectPath)
	if err != nil {
		return query.Failed(fmt.Sprintf("get object %q", objectPath), err)
	}
	if err := writeFile(localPath, reader); err != nil {
		_ = reader.Close()
		return query.Failed(fmt.Sprintf("write local parquet file %q", localPath), err)
	}
	if err := reader.Close(); err != nil {
		return query.Failed(fmt.Sprintf("close object %q", objectPath), err)
	}
	return nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}
