package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/chatprobe/api"
	"github.com/use-agent/chatprobe/cache"
	"github.com/use-agent/chatprobe/cleaner"
	"github.com/use-agent/chatprobe/config"
	"github.com/use-agent/chatprobe/eval"
	"github.com/use-agent/chatprobe/extractor"
	"github.com/use-agent/chatprobe/judge"
	"github.com/use-agent/chatprobe/models"
	"github.com/use-agent/chatprobe/store"
)

func main() {
	root := &cobra.Command{
		Use:   "chatprobe",
		Short: "Capture answers from a hosted chat UI through a headless browser",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.AddCommand(serveCmd(), askCmd(), evalCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serveCmd runs the HTTP API server.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// ── 1. Load configuration ───────────────────────────────────────
			cfg := config.Load()

			// ── 2. Initialise structured logging ────────────────────────────
			initLogger(cfg.Log)
			slog.Info("chatprobe starting",
				"host", cfg.Server.Host,
				"port", cfg.Server.Port,
				"mode", cfg.Server.Mode,
				"target", cfg.Chat.TargetURL,
			)

			// ── 3. Initialise extractor ─────────────────────────────────────
			ext := extractor.New(cfg.Chat, cfg.Browser)

			// ── 4. Initialise cleaner + cache ───────────────────────────────
			cl := cleaner.NewCleaner()
			cc := cache.New(cfg.Cache.MaxEntries)

			// ── 4b. Open experiment store ───────────────────────────────────
			// A broken store disables the experiments endpoints but never
			// blocks answer capture.
			st, err := store.Open(cfg.Eval.DBPath)
			if err != nil {
				slog.Warn("experiment store unavailable", "path", cfg.Eval.DBPath, "error", err)
				st = nil
			} else {
				defer st.Close()
			}

			// ── 5. Setup router ─────────────────────────────────────────────
			startTime := time.Now()
			router := api.NewRouter(ext, cl, cfg, cc, st, startTime)

			// ── 6. Start HTTP server ────────────────────────────────────────
			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:    addr,
				Handler: router,
			}

			go func() {
				slog.Info("HTTP server listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("HTTP server error", "error", err)
					os.Exit(1)
				}
			}()

			// ── 7. Graceful shutdown ────────────────────────────────────────
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			sig := <-quit
			slog.Info("shutdown signal received", "signal", sig.String())

			// Give in-flight captures 10 seconds to complete; each one may
			// still be driving a browser.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("HTTP server forced shutdown", "error", err)
			} else {
				slog.Info("HTTP server drained gracefully")
			}

			slog.Info("chatprobe stopped")
			return nil
		},
	}
}

// askCmd runs one capture from the command line and prints the JSON response.
func askCmd() *cobra.Command {
	var (
		timeoutMs int
		format    string
		headed    bool
	)

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Submit one prompt and print the captured answer as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			initLogger(cfg.Log)

			req := &models.AskRequest{
				Prompt:    args[0],
				TimeoutMs: timeoutMs,
				Format:    format,
			}
			if headed {
				h := false
				req.Headless = &h
			}
			req.Defaults()

			ext := extractor.New(cfg.Chat, cfg.Browser)
			resp := ext.Extract(cmd.Context(), req)

			if format != "" && resp.Success && resp.RawMarkup != "" {
				rendered, err := cleaner.NewCleaner().Clean(resp.RawMarkup, cfg.Chat.TargetURL, format)
				if err != nil {
					slog.Warn("answer rendering failed", "format", format, "error", err)
				} else {
					if resp.Metadata == nil {
						resp.Metadata = map[string]any{}
					}
					resp.Metadata["rendered"] = rendered
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
			if !resp.Success {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "completion wait budget in milliseconds")
	cmd.Flags().StringVar(&format, "format", "", "render the answer markup: markdown, html, or text")
	cmd.Flags().BoolVar(&headed, "headed", false, "run the browser with a visible window")
	return cmd
}

// evalCmd runs the dataset evaluation harness and prints the report.
func evalCmd() *cobra.Command {
	var (
		datasetPath string
		concurrency int
		repetitions int
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run the evaluation dataset against the target and grade answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			initLogger(cfg.Log)

			if datasetPath != "" {
				cfg.Eval.DatasetPath = datasetPath
			}
			if concurrency > 0 {
				cfg.Eval.MaxConcurrency = concurrency
			}
			if repetitions > 0 {
				cfg.Eval.Repetitions = repetitions
			}

			ds, err := eval.LoadDataset(cfg.Eval.DatasetPath)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}

			var j judge.Judge
			if cfg.Judge.APIKey != "" {
				j, err = judge.New(cfg.Judge)
				if err != nil {
					return fmt.Errorf("initialise judge: %w", err)
				}
			} else {
				slog.Warn("no judge API key configured, runs will not be graded")
			}

			st, err := store.Open(cfg.Eval.DBPath)
			if err != nil {
				slog.Warn("experiment store unavailable, runs will not persist",
					"path", cfg.Eval.DBPath, "error", err)
				st = nil
			} else {
				defer st.Close()
			}

			ext := extractor.New(cfg.Chat, cfg.Browser)
			runner := eval.NewRunner(cfg.Eval, cfg.Chat.TargetURL, ext.Extract, j, st)

			report, err := runner.Run(cmd.Context(), ds)
			if err != nil {
				return err
			}
			fmt.Println(report.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "path to a YAML dataset (default: embedded)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel captures (default from config)")
	cmd.Flags().IntVar(&repetitions, "repetitions", 0, "runs per example (default from config)")
	return cmd
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
