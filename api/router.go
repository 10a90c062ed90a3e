package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/chatprobe/api/handler"
	"github.com/use-agent/chatprobe/api/middleware"
	"github.com/use-agent/chatprobe/cache"
	"github.com/use-agent/chatprobe/cleaner"
	"github.com/use-agent/chatprobe/config"
	"github.com/use-agent/chatprobe/store"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(asker handler.Asker, cl *cleaner.Cleaner, cfg *config.Config, cc *cache.Cache, st *store.Store, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(cfg.Chat.TargetURL, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Ask — one prompt-to-answer capture.
	protected.POST("/ask", handler.Ask(asker, cl, cc, cfg.Chat.TargetURL))

	// Experiments — persisted eval history.
	protected.GET("/experiments", handler.ListExperiments(st))
	protected.GET("/experiments/:id", handler.GetExperiment(st))

	return r
}
