package judge

import (
	"context"
	"encoding/json"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
	"github.com/use-agent/chatprobe/config"
	"github.com/use-agent/chatprobe/models"
)

// anthropicJudge grades via the Anthropic API using llmkit's structured
// output support: the verdict schema is enforced server-side, so the
// response body is the verdict JSON directly.
type anthropicJudge struct {
	cfg config.JudgeConfig
}

func newAnthropicJudge(cfg config.JudgeConfig) *anthropicJudge {
	return &anthropicJudge{cfg: cfg}
}

func (j *anthropicJudge) Score(ctx context.Context, question, reference, answer string) (*Score, error) {
	settings := types.RequestSettings{
		Model:       j.cfg.Model,
		MaxTokens:   j.cfg.MaxTokens,
		Temperature: 0,
	}

	response, err := anthropic.PromptWithSettings(
		systemPrompt,
		userPrompt(question, reference, answer),
		scoreSchema,
		j.cfg.APIKey,
		settings,
	)
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeJudgeFailure, "anthropic judge failed", err)
	}
	if len(response.Content) == 0 {
		return nil, models.NewExtractError(models.ErrCodeJudgeFailure, "anthropic judge returned no content", nil)
	}

	var s Score
	if err := json.Unmarshal([]byte(response.Content[0].Text), &s); err != nil {
		return nil, models.NewExtractError(models.ErrCodeJudgeFailure, "failed to parse judge verdict", err)
	}
	return &s, nil
}
