// Package main 是服务端的入口点
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"cryptsignal-chat/internal/api"
	"cryptsignal-chat/internal/cache"
	"cryptsignal-chat/internal/config"
	"cryptsignal-chat/internal/handler"
	"cryptsignal-chat/internal/logger"
	"cryptsignal-chat/internal/middleware"
	"cryptsignal-chat/internal/repository"
	"cryptsignal-chat/internal/server"
	"cryptsignal-chat/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 初始化数据库并迁移
	db, err := repository.OpenDatabase(cfg.Database, cfg.Server.Mode != "release")
	if err != nil {
		log.Fatal("Failed to init database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	// Redis 可选，未配置时不记录在线状态
	var presence server.Presence
	var redisCache *cache.RedisCache
	if cfg.Redis.Host != "" {
		redisCache, err = cache.NewRedisCache(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to init redis", zap.Error(err))
		}
		presence = redisCache
	} else {
		log.Info("Redis not configured, presence disabled")
	}

	// 初始化 Repository / Service 层
	store := repository.NewGormStore(db, clockwork.NewRealClock())
	aiClient := api.NewClient(cfg.AI.Endpoint, cfg.AI.Timeout, log)
	conversationService := service.NewConversationService(store, aiClient, log)

	// 初始化推送通道 Hub
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(conversationService, presence, log)
	go hub.Run(ctx) // 在单独的 goroutine 中运行

	// 初始化 Handler 层
	conversationHandler := handler.NewConversationHandler(conversationService)
	wsHandler := server.NewHandler(hub, cfg.Server.CORS)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORS)))

	registerRoutes(router, conversationHandler, wsHandler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// 同步问答需要等待上游 AI
		WriteTimeout: cfg.AI.Timeout + 10*time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			log.Warn("Failed to close redis", zap.Error(err))
		}
	}

	log.Info("Server exited")
}

// registerRoutes 注册所有路由
func registerRoutes(router *gin.Engine, conversationHandler *handler.ConversationHandler, wsHandler *server.Handler) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	conversationHandler.RegisterRoutes(router.Group("/api"))
	wsHandler.RegisterRoutes(router)
}
