package nl2sql

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const DefaultLimit = 100

var (
	ErrNoSQLFound       = errors.New("no SQL statement found in model output")
	ErrNotSelectOnly    = errors.New("only a single SELECT statement is allowed")
	ErrForbiddenKeyword = errors.New("statement contains a forbidden keyword")
)

var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER",
	"CREATE", "TRUNCATE", "REPLACE", "GRANT", "REVOKE",
}

var (
	codeFencePattern   = regexp.MustCompile("(?i)```(?:sql)?[ \\t]*")
	markerPattern      = regexp.MustCompile(`(?i)\bSQL:[ \t]*([^\n]+)`)
	selectStartPattern = regexp.MustCompile(`(?im)^[ \t]*SELECT\s`)
	blankLinePattern   = regexp.MustCompile(`\n[ \t]*\n`)
	selectOnlyPattern  = regexp.MustCompile(`(?i)^\s*SELECT\s+`)
	limitPattern       = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	forbiddenPattern   = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
)

type ForbiddenKeywordError struct {
	Word string
}

func (e *ForbiddenKeywordError) Error() string {
	return fmt.Sprintf("statement contains forbidden keyword %s", e.Word)
}

func (e *ForbiddenKeywordError) Is(target error) bool {
	return target == ErrForbiddenKeyword
}

// ValidatedSQL is a statement that passed every Guard gate. Only Guard
// constructs non-empty values of this type.
type ValidatedSQL string

func (v ValidatedSQL) String() string {
	return string(v)
}

type Guard struct {
	defaultLimit int
}

func NewGuard(defaultLimit int) *Guard {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Guard{defaultLimit: defaultLimit}
}

func (g *Guard) ExtractAndValidate(raw string) (ValidatedSQL, error) {
	candidate, err := ExtractCandidate(raw)
	if err != nil {
		return "", err
	}
	return g.Validate(candidate, raw)
}

// Validate applies the read-only gates to candidate. raw is the full model
// output the candidate came from; it is scanned for forbidden keywords too so
// that a second statement cut off during extraction still blocks the request.
func (g *Guard) Validate(candidate, raw string) (ValidatedSQL, error) {
	candidate = strings.TrimSpace(candidate)
	if !selectOnlyPattern.MatchString(candidate) {
		return "", ErrNotSelectOnly
	}
	for _, text := range []string{candidate, stripCodeFences(raw)} {
		if match := forbiddenPattern.FindString(text); match != "" {
			return "", &ForbiddenKeywordError{Word: strings.ToUpper(match)}
		}
	}
	if strings.Contains(candidate, ";") || strings.Contains(candidate, "--") || strings.Contains(candidate, "/*") {
		return "", ErrNotSelectOnly
	}
	return ValidatedSQL(EnsureLimit(candidate, g.defaultLimit)), nil
}

// ExtractCandidate pulls a single statement out of free model text.
func ExtractCandidate(raw string) (string, error) {
	text := stripCodeFences(raw)

	if match := markerPattern.FindStringSubmatch(text); match != nil {
		if candidate := cleanCandidate(match[1]); candidate != "" {
			return candidate, nil
		}
	}

	loc := selectStartPattern.FindStringIndex(text)
	if loc == nil {
		return "", ErrNoSQLFound
	}
	span := text[loc[0]:]
	if idx := strings.Index(span, ";"); idx >= 0 {
		span = span[:idx]
	}
	if blank := blankLinePattern.FindStringIndex(span); blank != nil {
		span = span[:blank[0]]
	}
	candidate := cleanCandidate(span)
	if candidate == "" {
		return "", ErrNoSQLFound
	}
	return candidate, nil
}

// EnsureLimit appends a LIMIT clause when none is present. Statements that
// already carry one are returned unchanged.
func EnsureLimit(sql string, limit int) string {
	if limitPattern.MatchString(sql) {
		return sql
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return sql + " LIMIT " + strconv.Itoa(limit)
}

func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrNotSelectOnly) || errors.Is(err, ErrForbiddenKeyword)
}

// PolicyReason is the metric label for a rejected statement.
func PolicyReason(err error) string {
	switch {
	case errors.Is(err, ErrForbiddenKeyword):
		return "forbidden_keyword"
	case errors.Is(err, ErrNotSelectOnly):
		return "not_select_only"
	case errors.Is(err, ErrNoSQLFound):
		return "no_sql_found"
	default:
		return "other"
	}
}

func stripCodeFences(value string) string {
	return codeFencePattern.ReplaceAllString(value, "")
}

func cleanCandidate(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimSuffix(value, ";")
	return strings.TrimSpace(value)
}
