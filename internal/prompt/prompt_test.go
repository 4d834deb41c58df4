package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/fezalogistics/feza/internal/insights"
)

func TestBuildOrdersSectionsAndEndsWithQuestion(t *testing.T) {
	builder := NewBuilder(DefaultConfig(100))
	got, err := builder.Build("  top 5 clients  ", nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	markers := []string{
		"financial assistant",
		"**GENERAL KNOWLEDGE MODE:**",
		"**DATABASE MODE:**",
		"**DATABASE SCHEMA:**",
		"**SQL RULES:**",
		"**RESPONSE STYLE:**",
		"**EXAMPLES:**",
		"User: top 5 clients\n\nAssistant:",
	}
	last := -1
	for _, marker := range markers {
		idx := strings.Index(got, marker)
		if idx < 0 {
			t.Fatalf("prompt missing %q", marker)
		}
		if idx <= last {
			t.Fatalf("marker %q out of order", marker)
		}
		last = idx
	}
	if !strings.HasSuffix(got, "User: top 5 clients\n\nAssistant:") {
		t.Fatalf("prompt should end with the question, got tail %q", got[len(got)-40:])
	}
	if strings.Contains(got, "LIVE BUSINESS CONTEXT") {
		t.Fatal("live context block should be omitted for an empty snapshot")
	}
}

func TestBuildIncludesLiveContextBeforeQuestion(t *testing.T) {
	builder := NewBuilder(DefaultConfig(100))
	got, err := builder.Build("how many clients?", insights.Snapshot{
		{Name: "Total clients", Value: "1,520"},
		{Name: "Clients PAID", Value: "1,500"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	block := strings.Index(got, "**LIVE BUSINESS CONTEXT:**")
	examples := strings.Index(got, "**EXAMPLES:**")
	question := strings.Index(got, "User: how many clients?\n\nAssistant:")
	if block < 0 || block < examples || block > question {
		t.Fatalf("unexpected block position block=%d examples=%d question=%d", block, examples, question)
	}
	if !strings.Contains(got, "- Total clients: 1,520\n- Clients PAID: 1,500\n") {
		t.Fatal("live metrics not rendered in order")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	builder := NewBuilder(DefaultConfig(100))
	first, _ := builder.Build("hello", nil)
	second, _ := builder.Build("hello", nil)
	if first != second {
		t.Fatal("Build() should be a pure function of its inputs")
	}
}

func TestBuildRejectsEmptyQuestion(t *testing.T) {
	_, err := NewBuilder(DefaultConfig(100)).Build(" \t\n", nil)
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestDefaultConfigDescribesEnumsAndLimit(t *testing.T) {
	got, _ := NewBuilder(DefaultConfig(25)).Build("x", nil)
	for _, want := range []string{"PARTIALLY PAID", "RWF", "at most 25 rows", "- Table: users"} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
