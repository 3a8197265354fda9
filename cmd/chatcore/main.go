package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatcore/internal/blobstore"
	"chatcore/internal/blobstore/cached"
	"chatcore/internal/blobstore/memory"
	"chatcore/internal/blobstore/postgres"
	"chatcore/internal/chat"
	"chatcore/internal/children"
	"chatcore/internal/config"
	"chatcore/internal/middleware"
	"chatcore/internal/orchestrator"
	"chatcore/internal/providers"
	"chatcore/internal/providers/anthropic"
	"chatcore/internal/providers/gemini"
	"chatcore/internal/providers/openrouter"
	"chatcore/internal/store"
	"chatcore/internal/workers"
	"chatcore/internal/ws"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
)

func main() {
	// PHASE 1: configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// PHASE 2: structured logging
	logLevel := slog.LevelInfo
	if cfg.Server.Environment == "development" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	// PHASE 3: blob store backend, optionally fronted by a Redis label cache
	var backing blobstore.Store
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := postgres.New(cfg.Store)
		if err != nil {
			slog.Error("failed to connect blob store", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		backing = pg
	default:
		slog.Info("using in-memory blob store backend")
		backing = memory.New()
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("invalid redis URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}
	backing = cached.New(backing, redisClient)

	msgStore := store.New(backing)

	// PHASE 4: chat registry bootstrap
	registry := chat.New(msgStore)
	if _, err := registry.Bootstrap(context.Background()); err != nil {
		slog.Error("failed to bootstrap chat registry", "error", err)
		os.Exit(1)
	}

	// PHASE 5: worker pools and the child-actor bridge
	pool := workers.NewPoolManager(workers.PoolConfig{ChildNotifyWorkers: 4, Workers: 4})
	defer pool.Shutdown()

	var transport children.Transport
	if cfg.Children.TransportBaseURL != "" {
		transport = children.NewHTTPTransport(cfg.Children.TransportBaseURL)
	} else {
		transport = &children.LocalTransport{}
	}
	bridge := children.New(transport, pool, msgStore, registry)

	// PHASE 6: provider registry, adapters, and the turn orchestrator
	providerRegistry := providers.NewRegistry(defaultModels())
	adapters := buildAdapters(cfg.Providers)
	router := providers.NewStaticRouter(providerRegistry, adapters)
	orch := orchestrator.New(msgStore, registry, router, bridge, cfg.DefaultModelID)

	// PHASE 7: websocket hub and command handler
	hub := ws.NewHub()
	wsHandler := ws.NewHandler(hub, msgStore, registry, orch, providerRegistry, bridge, cfg.Children.ManifestDir)

	// PHASE 8: fiber app for the non-WS HTTP surface (health/status),
	// mounted alongside the gorilla/websocket endpoint on one net/http
	// server via fiber's own net/http adaptor.
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorHandler: middleware.ErrorHandler(),
	})
	app.Use(middleware.RequestID())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "pools": pool.GetStats()})
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/", adaptor.FiberApp(app))

	// PHASE 9: start serving
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		slog.Info("chatcore listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// PHASE 10: graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func defaultModels() []providers.ModelInfo {
	return []providers.ModelInfo{
		{ModelID: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.5 Sonnet", ProviderTag: "anthropic", MaxTokens: 8192, ToolsEnabled: true, CostPerMInput: 3.0, CostPerMOutput: 15.0},
		{ModelID: "gemini-1.5-pro", DisplayName: "Gemini 1.5 Pro", ProviderTag: "gemini", MaxTokens: 8192, ToolsEnabled: false, CostPerMInput: 1.25, CostPerMOutput: 5.0},
		{ModelID: "openai/gpt-4o", DisplayName: "GPT-4o (via OpenRouter)", ProviderTag: "openrouter", MaxTokens: 16384, ToolsEnabled: true, CostPerMInput: 2.5, CostPerMOutput: 10.0},
	}
}

func buildAdapters(cfgs []config.ProviderConfig) map[string]providers.Adapter {
	adapters := make(map[string]providers.Adapter)
	for _, p := range cfgs {
		timeout := time.Duration(p.Timeout) * time.Second
		switch p.Tag {
		case "anthropic":
			adapters["anthropic"] = anthropic.New(p.BaseURL, p.APIKey, timeout)
		case "gemini":
			adapters["gemini"] = gemini.New(p.BaseURL, p.APIKey, timeout)
		case "openrouter":
			adapters["openrouter"] = openrouter.New(p.BaseURL, p.APIKey, timeout)
		}
	}
	return adapters
}
