package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/use-agent/chatprobe/config"
	"github.com/use-agent/chatprobe/models"
)

func testJudgeConfig(baseURL string) config.JudgeConfig {
	return config.JudgeConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		BaseURL:  baseURL,
		APIKey:   "test-key",
	}
}

// completionBody wraps a verdict string into the chat completion shape.
func completionBody(verdict string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": verdict}},
		},
	})
	return string(b)
}

func TestScoreSuccess(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`{"passed": true, "score": 0.9, "reasoning": "matches reference"}`)))
	}))
	defer srv.Close()

	j := newOpenAIJudge(testJudgeConfig(srv.URL), srv.Client())

	score, err := j.Score(context.Background(), "What is LangGraph?", "A stateful agent library.", "LangGraph builds stateful agents.")
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if !score.Passed || score.Value != 0.9 {
		t.Errorf("unexpected verdict: %+v", score)
	}
	if score.Reasoning != "matches reference" {
		t.Errorf("reasoning = %q", score.Reasoning)
	}

	if gotReq.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", gotReq.Temperature)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format not requested: %+v", gotReq.ResponseFormat)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestScoreAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer srv.Close()

	j := newOpenAIJudge(testJudgeConfig(srv.URL), srv.Client())

	_, err := j.Score(context.Background(), "q", "ref", "ans")
	var ee *models.ExtractError
	if !errors.As(err, &ee) || ee.Code != models.ErrCodeJudgeAuthFailure {
		t.Fatalf("expected %s, got %v", models.ErrCodeJudgeAuthFailure, err)
	}
	if ee.Message != "invalid api key" {
		t.Errorf("message = %q", ee.Message)
	}
}

func TestScoreRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
	}))
	defer srv.Close()

	j := newOpenAIJudge(testJudgeConfig(srv.URL), srv.Client())

	_, err := j.Score(context.Background(), "q", "ref", "ans")
	var ee *models.ExtractError
	if !errors.As(err, &ee) || ee.Code != models.ErrCodeJudgeRateLimited {
		t.Fatalf("expected %s, got %v", models.ErrCodeJudgeRateLimited, err)
	}
}

func TestScoreInvalidVerdictJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody("not json at all")))
	}))
	defer srv.Close()

	j := newOpenAIJudge(testJudgeConfig(srv.URL), srv.Client())

	_, err := j.Score(context.Background(), "q", "ref", "ans")
	var ee *models.ExtractError
	if !errors.As(err, &ee) || ee.Code != models.ErrCodeJudgeFailure {
		t.Fatalf("expected %s, got %v", models.ErrCodeJudgeFailure, err)
	}
}

func TestParseVerdictClampsScore(t *testing.T) {
	s, err := parseVerdict(`{"passed": false, "score": 1.7, "reasoning": "x"}`)
	if err != nil {
		t.Fatalf("parseVerdict returned error: %v", err)
	}
	if s.Value != 1 {
		t.Errorf("score = %v, want clamped 1", s.Value)
	}

	s, err = parseVerdict(`{"passed": false, "score": -0.3, "reasoning": "x"}`)
	if err != nil {
		t.Fatalf("parseVerdict returned error: %v", err)
	}
	if s.Value != 0 {
		t.Errorf("score = %v, want clamped 0", s.Value)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(config.JudgeConfig{Provider: "bard"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
