package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/chatprobe/config"
	"github.com/use-agent/chatprobe/judge"
	"github.com/use-agent/chatprobe/models"
	"github.com/use-agent/chatprobe/simhash"
	"github.com/use-agent/chatprobe/store"
	"github.com/use-agent/chatprobe/webhook"
)

// AskFunc captures one prompt-to-answer round trip. It never returns an
// error; failures arrive as failure-shaped responses.
type AskFunc func(ctx context.Context, req *models.AskRequest) *models.ChatResponse

// Runner executes a dataset against the target chat UI with bounded
// concurrency, grades each answer, and persists runs.
type Runner struct {
	cfg       config.EvalConfig
	targetURL string
	ask       AskFunc
	judge     judge.Judge  // nil: skip correctness grading
	store     *store.Store // nil: skip persistence

	// preflight is injectable so tests can skip the network check.
	preflight func(ctx context.Context, targetURL string) error
}

// NewRunner wires the eval harness. judge and st may be nil.
func NewRunner(cfg config.EvalConfig, targetURL string, ask AskFunc, j judge.Judge, st *store.Store) *Runner {
	return &Runner{
		cfg:       cfg,
		targetURL: targetURL,
		ask:       ask,
		judge:     j,
		store:     st,
		preflight: Preflight,
	}
}

// Run executes the full dataset: repetitions × examples, at most
// MaxConcurrency captures in flight. The preflight runs first; an
// unreachable target aborts the batch before any browser is launched.
func (r *Runner) Run(ctx context.Context, ds *Dataset) (*Report, error) {
	start := time.Now()

	if err := r.preflight(ctx, r.targetURL); err != nil {
		return nil, fmt.Errorf("target not ready: %w", err)
	}

	reps := r.cfg.Repetitions
	if reps < 1 {
		reps = 1
	}
	concurrency := r.cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	exp := &store.Experiment{
		Name:        fmt.Sprintf("%s-%s", r.cfg.ExperimentPrefix, start.Format("20060102-150405")),
		TargetURL:   r.targetURL,
		Dataset:     ds.Name,
		Concurrency: concurrency,
		Repetitions: reps,
		Status:      store.ExperimentRunning,
	}
	if r.store != nil {
		if err := r.store.CreateExperiment(exp); err != nil {
			return nil, fmt.Errorf("create experiment: %w", err)
		}
	}

	slog.Info("eval started",
		"experiment", exp.Name,
		"examples", len(ds.Examples),
		"repetitions", reps,
		"concurrency", concurrency,
	)

	var mu sync.Mutex
	var runs []store.Run

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, ex := range ds.Examples {
		for rep := 0; rep < reps; rep++ {
			ex := ex
			g.Go(func() error {
				run := r.runOne(gctx, exp.ID, ex)
				mu.Lock()
				runs = append(runs, run)
				mu.Unlock()
				return nil
			})
		}
	}
	// Goroutines never return errors; Wait only orders completion.
	_ = g.Wait()

	report := Summarize(exp, ds, runs, time.Since(start))

	if r.store != nil {
		if err := r.store.UpdateExperimentStatus(exp.ID, store.ExperimentCompleted, nil); err != nil {
			slog.Warn("failed to mark experiment completed", "error", err)
		}
	}

	if r.cfg.WebhookURL != "" {
		webhook.DeliverAsync(r.cfg.WebhookURL, r.cfg.WebhookSecret, &webhook.Event{
			Type:         "eval.completed",
			ExperimentID: exp.ID,
			Timestamp:    time.Now().Unix(),
			Data:         report,
		})
	}

	slog.Info("eval completed",
		"experiment", exp.Name,
		"total", report.Total,
		"successes", report.Successes,
		"pass_rate", report.PassRate,
		"duration", report.Duration,
	)
	return report, nil
}

// runOne captures one question, grades it, and persists the run. Grading
// failures degrade to ungraded runs; they never abort the batch.
func (r *Runner) runOne(ctx context.Context, experimentID string, ex Example) store.Run {
	started := time.Now()

	resp := r.ask(ctx, &models.AskRequest{Prompt: ex.Question})

	completed := time.Now()
	run := store.Run{
		ExperimentID: experimentID,
		Question:     ex.Question,
		Reference:    ex.Reference,
		Success:      resp.Success,
		DurationMs:   completed.Sub(started).Milliseconds(),
		StartedAt:    started,
		CompletedAt:  &completed,
	}

	if resp.Success {
		run.Answer = resp.Text
		if ch, ok := resp.Metadata["channel"].(string); ok {
			run.Channel = ch
		}
		if ex.Reference != "" {
			sim := simhash.Similarity(ex.Reference, resp.Text)
			run.Similarity = &sim
		}
		if r.judge != nil {
			score, err := r.judge.Score(ctx, ex.Question, ex.Reference, resp.Text)
			if err != nil {
				slog.Warn("judge scoring failed, run left ungraded",
					"question", ex.Question, "error", err)
			} else {
				run.Passed = &score.Passed
				run.Score = &score.Value
				run.Reasoning = score.Reasoning
			}
		}
	} else {
		errMsg := resp.Text
		if m, ok := resp.Metadata["error"].(string); ok {
			errMsg = m
		}
		run.Error = &errMsg
	}

	if r.store != nil {
		if err := r.store.SaveRun(&run); err != nil {
			slog.Warn("failed to persist run", "question", ex.Question, "error", err)
		}
	}
	return run
}
