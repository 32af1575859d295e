// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/drawatale/drawatale-backend/internal/api"
	"github.com/drawatale/drawatale-backend/internal/app"
	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/drawatale/drawatale-backend/internal/observability"
	"github.com/drawatale/drawatale-backend/internal/utils"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. 加载基础配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 2. 日志
	logFile := ""
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
			log.Fatalf("create log directory: %v", err)
		}
		logFile = filepath.Join(cfg.LogDir, "server.log")
	}
	if err := utils.InitLogger(cfg.LogMode, logFile); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger := utils.GetLogger()
	defer logger.Sync()

	gin.SetMode(cfg.GinMode)

	// 3. 链路追踪
	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: api.ServiceName,
		Environment: cfg.GinMode,
		SampleRatio: cfg.OTelSampleRatio,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		logger.Fatalf("init tracing: %v", err)
	}

	// 4. 服务与路由
	application, err := app.New(cfg)
	if err != nil {
		logger.Fatalf("init services: %v", err)
	}

	router, err := application.Router()
	if err != nil {
		application.Close()
		logger.Fatalf("setup router: %v", err)
	}

	logger.Info("server starting", map[string]interface{}{
		"port":    cfg.Port,
		"storage": cfg.StorageDriver,
		"mode":    cfg.GinMode,
	})

	runServer(router, cfg.Port)

	if err := application.Close(); err != nil {
		logger.Error("close application", map[string]interface{}{"error": err})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("shutdown tracing", map[string]interface{}{"error": err})
	}
	logger.Info("server stopped", nil)
}

// runServer 启动HTTP服务, blocking until SIGINT or SIGTERM and then
// draining in-flight requests.
func runServer(router *gin.Engine, port string) {
	logger := utils.GetLogger()
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		logger.Error("server failed", map[string]interface{}{"error": err})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", map[string]interface{}{"error": err})
	}
}
