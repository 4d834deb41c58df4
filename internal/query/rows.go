package query

import (
	"database/sql"
	"time"
)

// ScanRows drains rows into ordered Row maps and closes rows.
func ScanRows(rows *sql.Rows) ([]string, []Row, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, Failed("read columns", err)
	}

	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, Failed("scan row", err)
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = NormalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, Failed("iterate rows", err)
	}
	return columns, out, nil
}

func NormalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	case int:
		return int64(typed)
	case int32:
		return int64(typed)
	case int16:
		return int64(typed)
	case int8:
		return int64(typed)
	case uint32:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint8:
		return int64(typed)
	case float32:
		return float64(typed)
	default:
		return typed
	}
}
