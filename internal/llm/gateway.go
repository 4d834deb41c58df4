package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt        = errors.New("prompt is empty")
	ErrServiceUnavailable = errors.New("model service unavailable")
	ErrInvalidResponse    = errors.New("model returned an invalid response")
)

type Options struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stop        []string
}

type Gateway interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

type FailureKind string

const (
	FailureTimeout       FailureKind = "timeout"
	FailureConnection    FailureKind = "connection"
	FailureHTTPStatus    FailureKind = "http_status"
	FailureMalformedBody FailureKind = "malformed_body"
	FailureEmptyText     FailureKind = "empty_text"
)

// Failure describes one unsuccessful generation attempt.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Detail     string
	Err        error
}

func (f *Failure) Error() string {
	msg := string(f.Kind)
	if f.Kind == FailureHTTPStatus {
		msg = fmt.Sprintf("%s %d", msg, f.StatusCode)
	}
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Surface maps the last attempt failure onto the error callers branch on.
func (f *Failure) Surface() error {
	switch f.Kind {
	case FailureMalformedBody, FailureEmptyText:
		return &surfacedError{sentinel: ErrInvalidResponse, last: f}
	default:
		return &surfacedError{sentinel: ErrServiceUnavailable, last: f}
	}
}

type surfacedError struct {
	sentinel error
	last     *Failure
}

func (e *surfacedError) Error() string {
	return fmt.Sprintf("%s: %s", e.sentinel.Error(), e.last.Error())
}

func (e *surfacedError) Unwrap() []error {
	return []error{e.sentinel, e.last}
}
