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

	"github.com/joho/godotenv"
	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/api"
	"github.com/nidhogg/honeycomb/internal/command"
	"github.com/nidhogg/honeycomb/internal/config"
	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/coordinator"
	"github.com/nidhogg/honeycomb/internal/notify"
	"github.com/nidhogg/honeycomb/internal/provider"
	"github.com/nidhogg/honeycomb/internal/store"
	"github.com/nidhogg/honeycomb/internal/task"
	"github.com/nidhogg/honeycomb/internal/worker"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/honeycomb.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting Honeycomb...", zap.String("config", cfgPath))

	ctx := context.Background()

	// Storage
	backend, err := store.Open(ctx, store.Options{
		Driver:     cfg.Storage.Driver,
		Path:       cfg.Storage.Path,
		DSN:        cfg.Storage.DSN,
		Migrations: cfg.Storage.Migrations,
	}, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer backend.Close()

	tasks := task.NewQueue(backend, logger)
	cx := contextdb.NewStore(backend, logger)

	// Agents keep their ids across restarts.
	agents := agent.NewRegistry(logger)
	agents.SetPersister(backend)
	if known, err := backend.ListAgents(ctx); err != nil {
		logger.Warn("failed to load agents from store", zap.Error(err))
	} else {
		agents.Preload(known)
	}

	// Providers
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		p, err := provider.New(pc.Provider(), logger)
		if err != nil {
			logger.Warn("skipping provider", zap.String("id", pc.ID), zap.Error(err))
			continue
		}
		router.Register(p)
	}
	if cfg.Routing.Default != "" {
		router.SetDefault(cfg.Routing.Default)
	}
	for route, id := range cfg.Routing.Routes {
		router.Bind(route, id)
	}
	for route, ids := range cfg.Routing.Fallbacks {
		router.SetFallbacks(route, ids)
	}

	// Work functions
	models := cfg.Agents.Models
	works := worker.NewRegistry()
	for _, wf := range []worker.WorkFunction{
		&worker.Writing{Chat: router, Model: models["writing"]},
		&worker.Coding{Chat: router, Model: models["coding"], Workdir: cfg.Agents.Workdir},
		&worker.Research{Chat: router, Model: models["research"]},
		&worker.Command{Workdir: cfg.Agents.Workdir},
		&worker.Summary{Chat: router, Model: models[coordinator.SummaryType]},
	} {
		if err := works.Register(wf); err != nil {
			logger.Fatal("failed to register work function", zap.Error(err))
		}
	}

	// Notifications
	events := notify.NewBroadcaster(logger)
	var redisStream *notify.RedisStream
	if cfg.Notify.RedisURL != "" {
		rs, err := notify.NewRedisStream(cfg.Notify.RedisURL, logger)
		if err != nil {
			logger.Warn("Redis unavailable, running without event stream", zap.Error(err))
		} else {
			redisStream = rs
			events.Add(rs)
		}
	}
	switch {
	case cfg.Notify.SlackWebhook != "":
		events.Add(notify.NewSlackWebhook(cfg.Notify.SlackWebhook, logger))
	case cfg.Notify.SlackToken != "" && cfg.Notify.SlackChannel != "":
		events.Add(notify.NewSlackBot(cfg.Notify.SlackToken, cfg.Notify.SlackChannel, logger))
	}
	if cfg.Notify.DiscordToken != "" && cfg.Notify.DiscordChannel != "" {
		d, err := notify.NewDiscord(cfg.Notify.DiscordToken, cfg.Notify.DiscordChannel, logger)
		if err != nil {
			logger.Warn("Discord unavailable", zap.Error(err))
		} else {
			events.Add(d)
		}
	}

	// Coordinator
	coord := coordinator.New(tasks, agents, works, cx, logger)
	coord.SetNotifier(events)
	coord.SetTaskTimeout(cfg.Coordinator.Timeout())

	for _, a := range cfg.Agents.Startup {
		if _, err := agents.Register(ctx, a.Name, a.Specialty); err != nil {
			logger.Fatal("failed to register agent", zap.String("name", a.Name), zap.Error(err))
		}
	}

	sweeper := coordinator.NewSweeper(coord, time.Duration(cfg.Coordinator.SweepInterval), logger)
	sweeper.Start()

	commands := command.NewRegistry()
	command.RegisterBuiltins(commands, command.Deps{
		Tasks:       tasks,
		Agents:      agents,
		Context:     cx,
		Coordinator: coord,
		Providers:   router,
	})

	handler := api.NewHandler(tasks, agents, cx, coord, commands, events, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Honeycomb listening", zap.String("port", port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Honeycomb...")
	sweeper.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if redisStream != nil {
		redisStream.Close()
	}
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	switch level {
	case "production", "json":
		logger, err = zap.NewProduction()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
