package parser

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/models"
)

// Completer sends a single prompt to a language model and returns the
// raw text of its answer.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const llmSystemPrompt = `You extract one bookkeeping entry from a chat message.
Answer with a single JSON object and nothing else:
{"amount": number, "category": string, "description": string, "type": "income" | "expense", "confidence": number between 0 and 1}
Use short lowercase English category names such as food, transport, shopping, entertainment, medical, education, housing, utilities, salary, other.
If the message is not about money spent or received, answer {"amount": 0, "confidence": 0}.`

// LLMParser is the last-resort parser backed by a language model.
// Every failure mode yields nil so the dispatcher can fall through to help.
type LLMParser struct {
	completer     Completer
	minConfidence float64
}

// NewLLMParser creates a parser that rejects answers whose reported
// confidence is below minConfidence.
func NewLLMParser(completer Completer, minConfidence float64) *LLMParser {
	return &LLMParser{completer: completer, minConfidence: minConfidence}
}

type llmAnswer struct {
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Confidence  *float64        `json:"confidence"`
}

// Parse asks the model to structure text.
func (p *LLMParser) Parse(ctx context.Context, text string) *Candidate {
	raw, err := p.completer.Complete(ctx, llmSystemPrompt, text)
	if err != nil {
		slog.Warn("LLM parse request failed", "error", err)
		return nil
	}

	var answer llmAnswer
	if err := json.Unmarshal([]byte(extractJSON(raw)), &answer); err != nil {
		slog.Warn("LLM returned malformed JSON", "error", err, "raw", truncate(raw, 200))
		return nil
	}

	if answer.Confidence != nil && *answer.Confidence < p.minConfidence {
		slog.Debug("LLM answer below confidence threshold",
			"confidence", *answer.Confidence,
			"min", p.minConfidence,
		)
		return nil
	}

	candidate, ok := validateAnswer(answer)
	if !ok {
		slog.Debug("LLM answer failed validation", "raw", truncate(raw, 200))
		return nil
	}
	return candidate
}

// validateAnswer applies the same constraints as the heuristic path:
// positive amount, non-empty category, known kind.
func validateAnswer(a llmAnswer) (*Candidate, bool) {
	amount, ok := models.NormalizeAmount(a.Amount)
	if !ok {
		return nil, false
	}
	category := strings.ToLower(strings.TrimSpace(a.Category))
	if category == "" {
		return nil, false
	}

	kind := models.Kind(strings.ToLower(strings.TrimSpace(a.Type)))
	if kind == "" {
		kind = models.KindExpense
	}
	if !kind.Valid() {
		return nil, false
	}

	return &Candidate{
		Amount:      amount,
		Kind:        kind,
		Category:    category,
		Description: strings.TrimSpace(a.Description),
		Source:      SourceLLM,
	}, true
}

// extractJSON strips Markdown code fences and any prose around the
// outermost JSON object.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Chain runs the heuristic parser and falls back to the LLM parser only
// when the heuristic finds nothing.
type Chain struct {
	heuristic *Heuristic
	llm       *LLMParser

	// OnFallback, if set, is called each time the LLM parser is consulted.
	OnFallback func()
}

// NewChain creates a parser chain. llm may be nil.
func NewChain(heuristic *Heuristic, llm *LLMParser) *Chain {
	return &Chain{heuristic: heuristic, llm: llm}
}

// Parse returns the first non-nil candidate, or nil.
func (c *Chain) Parse(ctx context.Context, text string) *Candidate {
	if candidate := c.heuristic.Parse(text); candidate != nil {
		return candidate
	}
	if c.llm == nil {
		return nil
	}
	if c.OnFallback != nil {
		c.OnFallback()
	}
	return c.llm.Parse(ctx, text)
}
