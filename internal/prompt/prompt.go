package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fezalogistics/feza/internal/insights"
)

var ErrEmptyQuestion = errors.New("question is empty")

type Table struct {
	Name    string
	Columns []string
}

type Example struct {
	Question string
	Answer   string
}

type ExampleGroup struct {
	Title    string
	Examples []Example
}

type Config struct {
	Persona       string
	ModeRules     []string
	Schema        []Table
	SQLRules      []string
	ResponseStyle []string
	Examples      []ExampleGroup
}

type Builder struct {
	cfg    Config
	static string
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, static: renderStatic(cfg)}
}

// Build returns the full prompt for one question. The static sections are
// rendered once; only the live context and the question vary per call.
func (b *Builder) Build(question string, live insights.Snapshot) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	var sb strings.Builder
	sb.WriteString(b.static)
	if !live.Empty() {
		sb.WriteString("\n\n**LIVE BUSINESS CONTEXT:**\n")
		for _, metric := range live {
			fmt.Fprintf(&sb, "- %s: %s\n", metric.Name, metric.Value)
		}
		sb.WriteString("Use these figures only as background; answer data questions with SQL.")
	}
	sb.WriteString("\n\nUser: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAssistant:")
	return sb.String(), nil
}

func renderStatic(cfg Config) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(cfg.Persona))

	for _, rule := range cfg.ModeRules {
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(rule))
	}

	if len(cfg.Schema) > 0 {
		sb.WriteString("\n\n**DATABASE SCHEMA:**")
		for _, table := range cfg.Schema {
			fmt.Fprintf(&sb, "\n- Table: %s\n  Columns: %s", table.Name, strings.Join(table.Columns, ", "))
		}
	}

	writeList(&sb, "SQL RULES", cfg.SQLRules)
	writeList(&sb, "RESPONSE STYLE", cfg.ResponseStyle)

	if len(cfg.Examples) > 0 {
		sb.WriteString("\n\n**EXAMPLES:**")
		for _, group := range cfg.Examples {
			if group.Title != "" {
				fmt.Fprintf(&sb, "\n\n%s:", group.Title)
			}
			for _, example := range group.Examples {
				fmt.Fprintf(&sb, "\nUser: %s\nAssistant: %s\n", example.Question, example.Answer)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n\n**%s:**", title)
	for _, item := range items {
		sb.WriteString("\n- ")
		sb.WriteString(item)
	}
}
