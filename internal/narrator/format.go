package narrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fezalogistics/feza/internal/query"
)

const fallbackMaxRows = 20

func formatInt(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// Fallback renders rows as labeled lines without calling the model.
func Fallback(result query.Result) string {
	if result.Empty() {
		return EmptyResultMessage
	}
	columns := columnsOf(result)

	var sb strings.Builder
	if len(result.Rows) == 1 {
		sb.WriteString("Here is what I found:\n")
		writeRow(&sb, columns, result.Rows[0])
		return strings.TrimRight(sb.String(), "\n")
	}

	fmt.Fprintf(&sb, "Here is what I found (%s results):\n", formatInt(int64(len(result.Rows))))
	for i, row := range result.Rows {
		if i == fallbackMaxRows {
			fmt.Fprintf(&sb, "\n...and %s more.", formatInt(int64(len(result.Rows)-fallbackMaxRows)))
			break
		}
		fmt.Fprintf(&sb, "\n%d.\n", i+1)
		writeRow(&sb, columns, row)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeRow(sb *strings.Builder, columns []string, row query.Row) {
	for _, column := range columns {
		fmt.Fprintf(sb, "%s: %s\n", Humanize(column), FormatValue(row[column]))
	}
}

// Humanize turns a column name such as paid_amount into "Paid Amount".
func Humanize(field string) string {
	field = strings.TrimSpace(strings.ReplaceAll(field, "_", " "))
	if field == "" {
		return "Value"
	}
	return cases.Title(language.English).String(strings.Join(strings.Fields(field), " "))
}

func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "N/A"
	case bool:
		if typed {
			return "Yes"
		}
		return "No"
	case int64:
		return formatInt(typed)
	case int:
		return formatInt(int64(typed))
	case float64:
		if typed == math.Trunc(typed) && math.Abs(typed) < 1e15 {
			return formatInt(int64(typed))
		}
		return message.NewPrinter(language.English).Sprintf("%.2f", typed)
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

func columnsOf(result query.Result) []string {
	if len(result.Columns) > 0 {
		return result.Columns
	}
	seen := map[string]struct{}{}
	var columns []string
	for _, row := range result.Rows {
		for column := range row {
			if _, ok := seen[column]; !ok {
				seen[column] = struct{}{}
				columns = append(columns, column)
			}
		}
	}
	slices.Sort(columns)
	return columns
}

type orderedRow struct {
	columns []string
	row     query.Row
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.row[column])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func orderedRows(columns []string, rows []query.Row) []orderedRow {
	if len(columns) == 0 {
		columns = columnsOf(query.Result{Rows: rows})
	}
	out := make([]orderedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, orderedRow{columns: columns, row: row})
	}
	return out
}
