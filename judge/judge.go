// Package judge scores captured answers against reference answers with an
// LLM grader. Two backends are supported: any OpenAI-compatible chat API and
// Anthropic via llmkit.
package judge

import (
	"context"
	"fmt"

	"github.com/use-agent/chatprobe/config"
)

// Score is the grader's verdict on one answer.
type Score struct {
	// Passed is the binary correctness verdict.
	Passed bool `json:"passed"`

	// Value grades correctness in [0, 1].
	Value float64 `json:"score"`

	// Reasoning is the grader's short justification, kept for run reports.
	Reasoning string `json:"reasoning"`
}

// Judge grades an answer against a reference answer.
type Judge interface {
	Score(ctx context.Context, question, reference, answer string) (*Score, error)
}

// New builds a Judge for the configured provider.
func New(cfg config.JudgeConfig) (Judge, error) {
	switch cfg.Provider {
	case "openai":
		return newOpenAIJudge(cfg, nil), nil
	case "anthropic":
		return newAnthropicJudge(cfg), nil
	default:
		return nil, fmt.Errorf("unknown judge provider %q", cfg.Provider)
	}
}

const systemPrompt = `You are grading answers from a documentation chatbot for correctness.

You are given a question, a reference answer, and a submitted answer. Grade the
submitted answer ONLY on factual agreement with the reference answer. Extra
detail is fine; contradictions or missing key facts are not.

Return ONLY valid JSON matching this schema, no markdown fences or explanation:
{"passed": boolean, "score": number between 0 and 1, "reasoning": short string}`

// userPrompt renders the grading input. XML-ish tags keep the three parts
// unambiguous for the grader even when answers contain blank lines.
func userPrompt(question, reference, answer string) string {
	return fmt.Sprintf("<question>\n%s\n</question>\n\n<reference_answer>\n%s\n</reference_answer>\n\n<submitted_answer>\n%s\n</submitted_answer>",
		question, reference, answer)
}

// scoreSchema constrains structured-output backends to the verdict shape.
const scoreSchema = `{
  "type": "object",
  "properties": {
    "passed": {"type": "boolean"},
    "score": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string"}
  },
  "required": ["passed", "score", "reasoning"]
}`
