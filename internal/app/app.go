// internal/app/app.go
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/drawatale/drawatale-backend/internal/api"
	"github.com/drawatale/drawatale-backend/internal/auth"
	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/drawatale/drawatale-backend/internal/di"
	_ "github.com/drawatale/drawatale-backend/internal/llm/providers/anthropic"
	_ "github.com/drawatale/drawatale-backend/internal/llm/providers/google"
	_ "github.com/drawatale/drawatale-backend/internal/llm/providers/openai"
	"github.com/drawatale/drawatale-backend/internal/services"
	"github.com/drawatale/drawatale-backend/internal/storage"
	"github.com/drawatale/drawatale-backend/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	// 空闲直播会话的回收周期与最大空闲时间
	sessionSweepInterval = time.Minute
	sessionMaxIdle       = 30 * time.Minute

	tokenIssuer = "drawatale"
)

// App 应用程序结构. It owns the service container and every background
// worker started on its behalf.
type App struct {
	config    *config.Config
	container *di.Container
	store     storage.Store
	locks     *services.LockManager
	sessions  *services.LiveSessionService

	stopChan  chan struct{}
	closeOnce sync.Once
}

// New builds the storage backend and every service, registering them in a
// fresh container. The caller must Close the returned App.
func New(cfg *config.Config) (*App, error) {
	if err := createDirectories(cfg); err != nil {
		return nil, err
	}

	tables, err := config.LoadHeuristics(cfg.HeuristicsFile)
	if err != nil {
		return nil, fmt.Errorf("load heuristics: %w", err)
	}

	runtime, err := config.InitConfig(cfg.DataDir, cfg)
	if err != nil {
		return nil, fmt.Errorf("init runtime config: %w", err)
	}

	store, err := storage.Open(cfg.StorageDriver, cfg.DataDir, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}

	tokens, err := tokenConfig(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	metrics := utils.NewAppMetrics(nil)
	locks := services.NewLockManager()

	llmService := services.NewLLMService(runtime, metrics)
	generator := services.NewStoryGenerator(tables, llmService, services.GenerationOptions{
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     cfg.LLMTimeout,
	}, metrics)
	interests := services.NewInterestAnalyzer(tables)
	progress := services.NewProgressAnalyzer(tables)
	hints := services.NewHintService(tables)
	quests := services.NewQuestService(tables, store, locks)
	sessions := services.NewLiveSessionService(progress)

	container := di.NewContainer()
	container.Register("store", store)
	container.Register("metrics", metrics)
	container.Register("llm", llmService)
	container.Register("user", services.NewUserService(store, tokens))
	container.Register("drawing", services.NewDrawingService(store))
	container.Register("story", services.NewStoryService(store, store, interests, generator))
	container.Register("quest", quests)
	container.Register("ai", services.NewAIService(store, interests, progress, hints, quests))
	container.Register("live_sessions", sessions)

	a := &App{
		config:    cfg,
		container: container,
		store:     store,
		locks:     locks,
		sessions:  sessions,
		stopChan:  make(chan struct{}),
	}
	go a.sweepSessions(sessionSweepInterval)

	utils.GetLogger().Info("services initialized", map[string]interface{}{
		"storage":  cfg.StorageDriver,
		"llm":      llmService.GetReadyState(),
		"provider": llmService.GetProviderName(),
		"services": len(container.GetNames()),
	})
	return a, nil
}

// Container exposes the registered services.
func (a *App) Container() *di.Container {
	return a.container
}

// Router builds the HTTP handler tree on top of the container.
func (a *App) Router() (*gin.Engine, error) {
	return api.SetupRouter(a.container, a.config)
}

// Close stops background work and releases the store. It is safe to call
// more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.stopChan)
		api.Shutdown(a.container)
		a.locks.Stop()
		err = a.store.Close()
	})
	return err
}

func (a *App) sweepSessions(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.sweep()
		case <-a.stopChan:
			return
		}
	}
}

// sweep closes idle live sessions and sockets that missed their pings.
func (a *App) sweep() (sessions, sockets int) {
	sessions = a.sessions.CleanupIdleSessions(sessionMaxIdle)
	sockets = api.CleanupExpiredConnections(a.container)
	if sessions > 0 || sockets > 0 {
		utils.GetLogger().Info("idle live connections closed", map[string]interface{}{
			"sessions": sessions,
			"sockets":  sockets,
		})
	}
	return sessions, sockets
}

// tokenConfig falls back to a random per-process secret, which invalidates
// every token on restart.
func tokenConfig(cfg *config.Config) (*auth.TokenConfig, error) {
	secret := []byte(cfg.SecretKey)
	if len(secret) == 0 {
		key, err := auth.GenerateSecureKey(32)
		if err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		secret = key
		utils.GetLogger().Warn("SECRET_KEY not set, using a random signing key", nil)
	}

	expire := cfg.TokenExpireMinutes
	if expire <= 0 {
		expire = 30
	}
	return &auth.TokenConfig{
		Secret:     secret,
		Expiration: time.Duration(expire) * time.Minute,
		Issuer:     tokenIssuer,
	}, nil
}

// createDirectories 创建应用所需的目录结构
func createDirectories(cfg *config.Config) error {
	dirs := []string{cfg.DataDir}
	if cfg.LogDir != "" {
		dirs = append(dirs, cfg.LogDir)
	}
	if cfg.StorageDriver == "sqlite" && cfg.DatabaseURL != "" {
		dirs = append(dirs, filepath.Dir(cfg.DatabaseURL))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
