// internal/api/router.go
package api

import (
	"time"

	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/drawatale/drawatale-backend/internal/di"
	"github.com/drawatale/drawatale-backend/internal/services"
	"github.com/drawatale/drawatale-backend/internal/storage"
	"github.com/drawatale/drawatale-backend/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ServiceName identifies the HTTP server in traces.
const ServiceName = "drawatale-backend"

// Container keys registered by the router itself.
const (
	rateLimiterKey = "api.rate_limiter"
	socketsKey     = "api.websockets"
)

// SetupRouter 配置HTTP路由. Services are resolved from container.
func SetupRouter(container *di.Container, cfg *config.Config) (*gin.Engine, error) {
	handler, err := newHandler(container)
	if err != nil {
		return nil, err
	}

	limiter := NewRateLimiter()
	container.Register(rateLimiterKey, limiter)
	container.Register(socketsKey, handler.Sockets)

	r := gin.New()
	r.Use(RecoveryMiddleware(handler.Response))
	r.Use(RequestIDMiddleware())
	if cfg.OTelEnabled {
		r.Use(otelgin.Middleware(ServiceName))
	}
	r.Use(LoggingMiddleware(handler.Metrics))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	r.GET("/", handler.Root)

	api := r.Group("/api")
	api.Use(limiter.RateLimitByIP(cfg.RateLimitPerMinute, time.Minute, handler.Response))
	{
		api.GET("/health", handler.Health)
		api.GET("/quests", handler.ListQuests)
		api.POST("/auth/register", handler.Register)
		api.POST("/auth/login", handler.Login)
	}

	authed := api.Group("")
	authed.Use(AuthMiddleware(handler.UserService, handler.Response))
	{
		authed.GET("/auth/me", handler.Me)

		drawings := authed.Group("/drawings")
		{
			drawings.POST("", handler.CreateDrawing)
			drawings.GET("", handler.ListDrawings)
			drawings.GET("/:id", handler.GetDrawing)
			drawings.PUT("/:id", handler.UpdateDrawing)
			drawings.DELETE("/:id", handler.DeleteDrawing)
		}

		stories := authed.Group("/stories")
		{
			stories.POST("/generate",
				limiter.RateLimitByUser("story", cfg.StoryRateLimitPerMinute, time.Minute, handler.Response),
				handler.GenerateStory)
			stories.POST("", handler.CreateStory)
			stories.GET("", handler.ListStories)
		}

		authed.POST("/progress", handler.UpdateProgress)
		authed.GET("/progress", handler.ListProgress)

		ai := authed.Group("/ai")
		{
			ai.GET("/interests", handler.GetInterests)
			ai.GET("/recommendations", handler.GetRecommendations)
			ai.POST("/analyze-drawing", handler.AnalyzeDrawing)
			ai.GET("/drawing-hints", handler.GetDrawingHints)
		}

		llmGroup := authed.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/providers", handler.ListLLMProviders)
			llmGroup.PUT("/config", AdminMiddleware(cfg.AdminToken, handler.Response), handler.UpdateLLMConfig)
		}

		authed.GET("/metrics", handler.GetMetrics)

		ws := authed.Group("/ws")
		{
			ws.GET("/drawing-progress", handler.DrawingProgressWebSocket)
			ws.GET("/status", handler.GetWebSocketStatus)
		}
	}

	return r, nil
}

// Shutdown stops router background work and closes open websockets.
func Shutdown(container *di.Container) {
	if limiter, ok := container.Get(rateLimiterKey).(*RateLimiter); ok {
		limiter.Stop()
	}
	if sockets, ok := container.Get(socketsKey).(*WebSocketManager); ok {
		sockets.Shutdown()
	}
}

// CleanupExpiredConnections closes live sockets that stopped answering
// pings and reports how many were dropped.
func CleanupExpiredConnections(container *di.Container) int {
	sockets, err := di.Resolve[*WebSocketManager](container, socketsKey)
	if err != nil {
		return 0
	}
	return sockets.CleanupExpiredConnections()
}

func newHandler(container *di.Container) (*Handler, error) {
	h := &Handler{Sockets: NewWebSocketManager()}
	var err error

	if h.UserService, err = di.Resolve[*services.UserService](container, "user"); err != nil {
		return nil, err
	}
	if h.DrawingService, err = di.Resolve[*services.DrawingService](container, "drawing"); err != nil {
		return nil, err
	}
	if h.StoryService, err = di.Resolve[*services.StoryService](container, "story"); err != nil {
		return nil, err
	}
	if h.QuestService, err = di.Resolve[*services.QuestService](container, "quest"); err != nil {
		return nil, err
	}
	if h.AIService, err = di.Resolve[*services.AIService](container, "ai"); err != nil {
		return nil, err
	}
	if h.LLMService, err = di.Resolve[*services.LLMService](container, "llm"); err != nil {
		return nil, err
	}
	if h.LiveSessions, err = di.Resolve[*services.LiveSessionService](container, "live_sessions"); err != nil {
		return nil, err
	}
	if h.Store, err = di.Resolve[storage.Store](container, "store"); err != nil {
		return nil, err
	}
	if h.Metrics, err = di.Resolve[*utils.AppMetrics](container, "metrics"); err != nil {
		h.Metrics = utils.NewAppMetrics(nil)
	}
	h.Response = NewResponseHelper(h.Metrics)
	return h, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	if len(origins) == 0 {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	return cfg
}
