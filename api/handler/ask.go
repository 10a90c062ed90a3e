package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/chatprobe/cache"
	"github.com/use-agent/chatprobe/cleaner"
	"github.com/use-agent/chatprobe/models"
)

// Asker runs one prompt-to-answer capture. Satisfied by *extractor.Extractor;
// narrowed to an interface so handler tests can script outcomes.
type Asker interface {
	Extract(ctx context.Context, req *models.AskRequest) *models.ChatResponse
}

// Ask returns a handler for POST /api/v1/ask.
//
// Capture outcomes always return HTTP 200: the body's success flag and
// metadata carry the result, failure-shaped or not. Non-2xx statuses are
// reserved for requests that never reached the browser (malformed input,
// auth, rate limiting).
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup (when the request opts in via max_age_ms).
//  3. Extract — drives the browser end to end.
//  4. Optional render: answer markup → markdown/html/text.
//  5. Cache store on success, respond 200.
func Ask(asker Asker, cl *cleaner.Cleaner, cc *cache.Cache, targetURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorEnvelope{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Cache lookup ─────────────────────────────────────────
		cacheKey := cache.Key(targetURL, req.Prompt)
		if cc != nil && req.MaxAgeMs > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAgeMs); hit {
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		// ── 3. Extract ──────────────────────────────────────────────
		resp := asker.Extract(c.Request.Context(), &req)
		if resp.Metadata == nil {
			resp.Metadata = map[string]any{}
		}
		resp.Metadata["duration_ms"] = time.Since(start).Milliseconds()

		// ── 4. Optional render of the answer markup ─────────────────
		if req.Format != "" && resp.Success && resp.RawMarkup != "" && cl != nil {
			rendered, err := cl.Clean(resp.RawMarkup, targetURL, req.Format)
			if err != nil {
				slog.Warn("answer rendering failed", "format", req.Format, "error", err)
			} else {
				resp.Metadata["rendered"] = rendered
			}
		}

		// ── 5. Cache store + respond ────────────────────────────────
		if cc != nil && req.MaxAgeMs > 0 {
			cc.Set(cacheKey, resp)
		}
		c.JSON(http.StatusOK, resp)
	}
}
