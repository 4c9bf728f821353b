package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/askroute/backend/internal/api/handlers"
	"github.com/askroute/backend/internal/cache/redis"
	"github.com/askroute/backend/internal/classify"
	"github.com/askroute/backend/internal/history"
	"github.com/askroute/backend/internal/llm"
	"github.com/askroute/backend/internal/metrics"
	"github.com/askroute/backend/internal/middleware/ratelimit"
	"github.com/askroute/backend/internal/middleware/security"
	"github.com/askroute/backend/internal/middleware/validation"
	"github.com/askroute/backend/internal/router"
	"github.com/askroute/backend/internal/search/docs"
	"github.com/askroute/backend/internal/search/web"
	"github.com/askroute/backend/internal/source"
	"github.com/askroute/backend/internal/storage/sqlite"
	"github.com/askroute/backend/internal/strategy"
	"github.com/askroute/backend/internal/vector/milvus"
	"github.com/askroute/backend/pkg/config"
	appLogger "github.com/askroute/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting AskRoute API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	var milvusClient *milvus.Client
	if cfg.Milvus.Enabled {
		milvusClient, err = milvus.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer milvusClient.Close()

		err = milvusClient.EnsureCollection(context.Background())
		if err != nil {
			appLogger.Fatal("Failed to ensure collection", zap.Error(err))
		}
	}

	docsClient := docs.NewClient(cfg.Docs.Sites, cfg.Docs.MaxResults, cfg.Docs.TimeoutSec)
	webClient := web.NewClient(cfg.Web.SerpAPIKey, cfg.Web.MaxResults, cfg.Web.TimeoutSec)

	registry := source.NewRegistry()
	for _, s := range []source.Source{
		source.NewKnowledgeBase(sqliteClient, milvusClient, llmClient, 0),
		source.NewLLM(llmClient),
		source.NewDocs(docsClient),
		source.NewWeb(webClient),
	} {
		if err := registry.Register(s); err != nil {
			appLogger.Fatal("Failed to register source", zap.Error(err))
		}
	}

	if err := cfg.Routing.Validate(registry.Names()); err != nil {
		appLogger.Fatal("Invalid routing config", zap.Error(err))
	}

	responseCache, err := redis.NewCache(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		registry.Names(),
	)
	if err != nil {
		appLogger.Fatal("Failed to create Redis cache", zap.Error(err))
	}
	defer responseCache.Close()

	historyStore := history.New(sqliteClient, cfg.Routing.DefaultAccuracy)
	classifier := classify.New(cfg.Routing.Classifier)
	selector := strategy.NewSelector(registry, historyStore)

	queryRouter := router.New(registry, classifier, selector, responseCache, historyStore, cfg.Routing)

	config.Watch(registry.Names(),
		queryRouter.UpdateConfig,
		func(err error) {
			appLogger.Fatal("Config reload failed", zap.Error(err))
		},
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimit,
	})
	defer limiter.Stop()

	queryHandler := handlers.NewQueryHandler(queryRouter, historyStore)
	knowledgeHandler := handlers.NewKnowledgeHandler(sqliteClient, milvusClient, llmClient, responseCache)
	wsHandler := handlers.NewWebSocketHandler(queryRouter)

	api := app.Group("/api/v1", limiter.Middleware(), validation.Middleware(validation.Config{}))

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)
	api.Post("/feedback", queryHandler.HandleFeedback)
	api.Post("/knowledge", knowledgeHandler.UploadEntry)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	app.Get("/api/v1/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/api/v1/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ready",
			"sources": registry.Names(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
