package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nidaan-ai/triage-gateway/internal/api"
	"github.com/nidaan-ai/triage-gateway/internal/audiostore"
	"github.com/nidaan-ai/triage-gateway/internal/bridge"
	"github.com/nidaan-ai/triage-gateway/internal/channel"
	"github.com/nidaan-ai/triage-gateway/internal/config"
	"github.com/nidaan-ai/triage-gateway/internal/convstore"
	"github.com/nidaan-ai/triage-gateway/internal/dedup"
	"github.com/nidaan-ai/triage-gateway/internal/ingress"
	"github.com/nidaan-ai/triage-gateway/internal/orchestrator"
	"github.com/nidaan-ai/triage-gateway/internal/reasoning"
	"github.com/nidaan-ai/triage-gateway/internal/reasoning/anthropic"
	"github.com/nidaan-ai/triage-gateway/internal/reasoning/openai"
	"github.com/nidaan-ai/triage-gateway/internal/server"
	"github.com/nidaan-ai/triage-gateway/internal/session"
	"github.com/nidaan-ai/triage-gateway/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("triage-gateway", logger)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	conversations, err := convstore.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open conversation store: %v", err)
	}
	defer conversations.Close()

	sessions, messageDedup, err := buildVolatileStores(cfg)
	if err != nil {
		log.Fatalf("failed to build session stores: %v", err)
	}

	speechOpts := []bridge.ClientOption{bridge.WithLogger(logger)}
	if cfg.Speech.BaseURL != "" {
		speechOpts = append(speechOpts, bridge.WithBaseURL(cfg.Speech.BaseURL))
	}
	if cfg.Speech.TTSVoice != "" {
		speechOpts = append(speechOpts, bridge.WithTTSVoice(cfg.Speech.TTSVoice, ""))
	}
	speech := bridge.NewClient(cfg.Speech.APIKey, speechOpts...)

	channelOpts := []channel.ClientOption{channel.WithLogger(logger)}
	if cfg.Channel.BaseURL != "" {
		channelOpts = append(channelOpts, channel.WithBaseURL(cfg.Channel.BaseURL))
	}
	messenger := channel.NewClient(cfg.Channel.AccessToken, cfg.Channel.PhoneNumberID, channelOpts...)

	analyzer := reasoning.NewAdapter(buildEngine(cfg, logger), reasoning.WithAdapterLogger(logger))

	audio := audiostore.New()

	pipeline := orchestrator.New(
		speech,
		analyzer,
		messenger,
		sessions,
		conversations,
		audio,
		orchestrator.WithFallbackLanguage(cfg.Pipeline.FallbackLanguage),
		orchestrator.WithLogger(logger),
	)

	webhook := ingress.NewHandler(cfg.Channel.VerifyToken, pipeline, messenger, messenger, messageDedup, logger)
	dashboard := api.NewHandler(conversations, audio, logger)

	srv := server.New(cfg.Server.Port, logger)
	srv.Router.Get("/webhook", webhook.Verify)
	srv.Router.Post("/webhook", webhook.Receive)
	dashboard.Mount(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func buildVolatileStores(cfg *config.Config) (session.Store, dedup.Cache, error) {
	if cfg.Storage.Driver == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		sessions, err := session.New(session.DriverRedis, session.WithRedisClient(client))
		if err != nil {
			return nil, nil, err
		}
		cache, err := dedup.New(dedup.DriverRedis, dedup.WithRedisClient(client))
		if err != nil {
			return nil, nil, err
		}
		return sessions, cache, nil
	}

	sessions, err := session.New(session.DriverMemory)
	if err != nil {
		return nil, nil, err
	}
	cache, err := dedup.New(dedup.DriverMemory)
	if err != nil {
		return nil, nil, err
	}
	return sessions, cache, nil
}

func buildEngine(cfg *config.Config, logger *slog.Logger) reasoning.Engine {
	if cfg.Reasoning.Provider == "openai" {
		opts := []openai.EngineOption{}
		if cfg.Reasoning.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Reasoning.Model))
		}
		if cfg.Reasoning.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Reasoning.BaseURL))
		}
		return openai.NewEngine(cfg.Reasoning.APIKey, opts...)
	}

	opts := []anthropic.EngineOption{anthropic.WithLogger(logger)}
	if cfg.Reasoning.Model != "" {
		opts = append(opts, anthropic.WithModel(cfg.Reasoning.Model))
	}
	if cfg.Reasoning.BaseURL != "" {
		opts = append(opts, anthropic.WithEngineBaseURL(cfg.Reasoning.BaseURL))
	}
	return anthropic.NewEngine(cfg.Reasoning.APIKey, opts...)
}
