package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Kassag-stack/visionly.ai/internal/config"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/adapter"
	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/repository"
	aiAdapters "github.com/Kassag-stack/visionly.ai/internal/infra/adapters/ai"
	"github.com/Kassag-stack/visionly.ai/internal/infra/adapters/notify"
	"github.com/Kassag-stack/visionly.ai/internal/infra/adapters/source"
	pg "github.com/Kassag-stack/visionly.ai/internal/infra/db/postgres"
	"github.com/Kassag-stack/visionly.ai/internal/infra/logging"
	"github.com/Kassag-stack/visionly.ai/internal/infra/memstore"
	"github.com/Kassag-stack/visionly.ai/internal/infra/metrics"
	red "github.com/Kassag-stack/visionly.ai/internal/infra/redis"
	"github.com/Kassag-stack/visionly.ai/internal/infra/sched"
	"github.com/Kassag-stack/visionly.ai/internal/infra/web"
	"github.com/Kassag-stack/visionly.ai/internal/infra/worker"
	"github.com/Kassag-stack/visionly.ai/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed checks)")
	flag.Parse()

	// .env is optional; config.yaml ${VAR} expansion picks these up.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Job store ----
	var jobs repository.JobRepository
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Store.PostgresURL, 10)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pool.Close()
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema setup failed")
		}
		jobs = pg.NewJobRepo(pool, pg.NewTxManager(pool))
		logger.Info().Msg("job store: postgres")
	default:
		jobs = memstore.NewJobRepo()
		logger.Info().Msg("job store: in-memory")
	}

	// ---- Redis (optional: cache, rate limit, sweep lock) ----
	var (
		jobCache usecase.JobCache
		limiter  usecase.SubmissionLimiter
		locker   red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		jobCache = red.NewJobCache(redisClient, cfg.Redis.TTL)
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
		logger.Info().Str("addr", cfg.Redis.URL).Msg("redis connected")
	}

	// ---- Source adapters ----
	registry := source.NewRegistry(cfg.Sources, logger)
	if len(registry.Names()) == 0 {
		logger.Fatal().Msg("no sources configured: set at least one sources.<name>.base_url")
	}
	logger.Info().Strs("sources", registry.Names()).Msg("source registry ready")

	// ---- AI adapter (openai -> gemini -> noop) ----
	var llm adapter.LLMAdapter
	switch cfg.AI.Provider {
	case "openai":
		llm, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.Model)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter failed")
		}
		logger.Info().Str("model", cfg.AI.Model).Msg("AI adapter: OpenAI")
	case "gemini":
		llm, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.Model, 1024)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter failed")
		}
		logger.Info().Str("model", cfg.AI.Model).Msg("AI adapter: Gemini")
	default:
		llm = aiAdapters.NewNoopAdapter()
		logger.Info().Msg("AI adapter: none (narratives disabled)")
	}

	// ---- Notifier ----
	var notifier adapter.Notifier
	if cfg.Notify.TelegramToken != "" && cfg.Notify.ChatID != 0 {
		notifier, err = notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.ChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier failed")
		}
		logger.Info().Int64("chat_id", cfg.Notify.ChatID).Msg("notifier: telegram")
	} else {
		notifier = notify.NewNoopNotifier(logger)
	}

	// ---- Use cases ----
	pool := worker.NewPool(cfg.Jobs.Workers, cfg.Jobs.QueueDepth, logger)
	pool.Start(ctx)
	defer pool.Stop()

	aggUC := usecase.NewAggregateUseCase(logger)
	vizUC := usecase.NewVisualizeUseCase(logger)
	narrativeUC := usecase.NewNarrativeUseCase(llm, cfg.AI, logger)
	orchestrator := usecase.NewOrchestratorUseCase(
		jobs, registry, pool, aggUC, vizUC, narrativeUC, notifier,
		jobCache, limiter, red.SubmissionKey,
		cfg.Jobs, cfg.RateLimit, logger,
	)
	statsUC := usecase.NewStatsUseCase(jobs)

	// ---- Retention sweeper ----
	sweeper := sched.NewRetentionWorker(cfg.Jobs.SweepInterval, cfg.Jobs.Retention, jobs, locker, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- HTTP servers ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	srv := web.NewServer(orchestrator, statsUC, auth, cfg.Admin.APIKey, logger)

	public := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	admin := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.AdminPort),
		Handler:           srv.AdminRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", public.Addr).Msg("public API listening")
		if err := public.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("public server error")
		}
	}()
	go func() {
		logger.Info().Str("addr", admin.Addr).Msg("admin API listening")
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = public.Shutdown(shutdownCtx)
	_ = admin.Shutdown(shutdownCtx)
	cancel()
}
