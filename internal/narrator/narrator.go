package narrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fezalogistics/feza/internal/llm"
	"github.com/fezalogistics/feza/internal/query"
)

const EmptyResultMessage = "I couldn't find any data for that. Could you try asking something else?"

const (
	defaultPreviewRows = 10
	defaultMaxTokens   = 400
)

const instructions = `You are a friendly, professional financial assistant.

Your task: convert the query results into a natural, conversational answer.

RESPONSE STYLE:
- Sound like a helpful colleague, not a robot
- Be concise but warm
- Include numbers with thousands separators and their currency (USD, EUR or RWF)
- Never mention SQL, tables or other technical details

EXAMPLES:
Q: Who is the latest person paid?
Results: [{"client_name": "John Doe"}]
Response: The latest person who was paid is John Doe.

Q: How much did we receive last week?
Results: [{"currency": "RWF", "total": 3400000}]
Response: Last week we received a total of 3,400,000 RWF.

Q: List top 5 clients
Results: [{"client_name": "John"}, {"client_name": "Mary"}, ...]
Response: Here are our top 5 clients: John, Mary, Felix, Kane and Alice.

Now convert these results:`

type Config struct {
	PreviewRows int
	// Options are passed to the gateway unchanged apart from a MaxTokens
	// default. A zero Temperature is honored.
	Options llm.Options
}

type Narrator struct {
	gateway     llm.Gateway
	previewRows int
	options     llm.Options
	logger      *slog.Logger
}

func New(gateway llm.Gateway, cfg Config, logger *slog.Logger) *Narrator {
	previewRows := cfg.PreviewRows
	if previewRows <= 0 {
		previewRows = defaultPreviewRows
	}
	options := cfg.Options
	if options.MaxTokens <= 0 {
		options.MaxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Narrator{gateway: gateway, previewRows: previewRows, options: options, logger: logger}
}

// Narrate never fails: an empty result gets the fixed apology and a model
// failure falls back to deterministic formatting.
func (n *Narrator) Narrate(ctx context.Context, question string, result query.Result) string {
	if result.Empty() {
		return EmptyResultMessage
	}
	if n.gateway == nil {
		return Fallback(result)
	}

	prompt, err := n.buildPrompt(question, result)
	if err != nil {
		n.logger.Warn("narration prompt failed, using fallback", "error", err)
		return Fallback(result)
	}
	text, err := n.gateway.Generate(ctx, prompt, n.options)
	if err != nil {
		n.logger.Warn("narration model call failed, using fallback", "error", err)
		return Fallback(result)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Fallback(result)
	}
	return text
}

func (n *Narrator) buildPrompt(question string, result query.Result) (string, error) {
	preview := result.Rows
	if len(preview) > n.previewRows {
		preview = preview[:n.previewRows]
	}
	payload, err := json.MarshalIndent(orderedRows(result.Columns, preview), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result preview: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\nUser Question: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nResults:\n")
	sb.Write(payload)
	if hidden := len(result.Rows) - len(preview); hidden > 0 {
		fmt.Fprintf(&sb, "\n(%d more rows not shown; total rows: %d)", hidden, len(result.Rows))
	}
	sb.WriteString("\n\nNatural Response:")
	return sb.String(), nil
}
