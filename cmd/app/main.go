package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"finiq-ai-pipeline/internal/config"
	"finiq-ai-pipeline/internal/domain/ports/adapter"
	"finiq-ai-pipeline/internal/domain/ports/repository"
	"finiq-ai-pipeline/internal/infra/adapters/agentsvc"
	"finiq-ai-pipeline/internal/infra/adapters/ai"
	"finiq-ai-pipeline/internal/infra/db/postgres"
	"finiq-ai-pipeline/internal/infra/logging"
	"finiq-ai-pipeline/internal/infra/memory"
	"finiq-ai-pipeline/internal/infra/metrics"
	"finiq-ai-pipeline/internal/infra/redis"
	"finiq-ai-pipeline/internal/infra/sched"
	"finiq-ai-pipeline/internal/infra/web"
	"finiq-ai-pipeline/internal/infra/worker"
	"finiq-ai-pipeline/internal/pipeline"
	"finiq-ai-pipeline/internal/ratelimit"
	"finiq-ai-pipeline/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Bool("dev", cfg.Runtime.Dev).Msg("starting")

	// Cache backend and generation locks. Redis when configured,
	// in-process otherwise.
	var (
		kv    repository.KVStore
		memKV *memory.KV
		locks repository.SubjectLock
	)
	if cfg.Redis.URL != "" {
		client, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		kv = client
		locks = redis.NewGenerationLock(client)
	} else {
		memKV = memory.NewKV()
		kv = memKV
		locks = memory.NewLock()
		logger.Info().Msg("redis url empty, using in-process cache and locks")
	}

	// Persistence. Without a database the blueprints live in memory and
	// the job archive is disabled: terminal jobs vanish after the
	// retention window.
	var (
		blueprints repository.BlueprintRepository
		archive    repository.JobArchive
		tm         repository.TransactionManager
	)
	if cfg.Database.URL != "" {
		pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		blueprints = postgres.NewBlueprintRepo(pool)
		archive = postgres.NewJobArchiveRepo(pool)
		tm = postgres.NewTxManager(pool)
	} else {
		blueprints = memory.NewBlueprintRepo()
		logger.Info().Msg("database url empty, blueprints held in memory")
	}

	cacheSvc := usecase.NewCacheService(kv, blueprints, cfg.Cache.StrategyTTL, logger)

	userLimiter := ratelimit.New(cfg.Limits.User.MaxRequests, cfg.Limits.User.Window)
	providerLimiter := ratelimit.New(cfg.Limits.Provider.MaxRequests, cfg.Limits.Provider.Window)

	model := buildModelClient(ctx, cfg, providerLimiter, logger)

	agents := pipeline.FinanceChain(model)
	var enrich, write, review pipeline.Agent
	var svcClients []*agentsvc.Client
	if cfg.Services.RetrieverURL != "" {
		c := agentsvc.NewClient("retriever", cfg.Services.RetrieverURL, cfg.Services.Timeout)
		enrich = agentsvc.EnrichmentAgent(c)
		svcClients = append(svcClients, c)
	}
	if cfg.Services.WriterURL != "" {
		c := agentsvc.NewClient("writer", cfg.Services.WriterURL, cfg.Services.Timeout)
		write = agentsvc.NarrativeAgent(c)
		svcClients = append(svcClients, c)
	}
	if cfg.Services.ReviewerURL != "" {
		c := agentsvc.NewClient("reviewer", cfg.Services.ReviewerURL, cfg.Services.Timeout)
		review = agentsvc.ReviewAgent(c)
		svcClients = append(svcClients, c)
	}
	agents = pipeline.WithServiceStages(agents, enrich, write, review)
	probeServices(ctx, svcClients, logger)

	runner := pipeline.NewRunner(cfg.Worker.AgentTimeout, logger)

	proc := worker.NewProcessor(worker.Config{
		QueueSize:  cfg.Worker.QueueSize,
		JobTimeout: cfg.Worker.JobTimeout,
		Retention:  cfg.Worker.Retention,
	}, runner, agents, locks, blueprints, archive, tm, cacheSvc, logger)
	proc.Start(ctx)

	if warmed, err := cacheSvc.WarmUp(ctx, nil); err != nil {
		logger.Warn().Err(err).Msg("cache warm-up failed")
	} else if warmed > 0 {
		logger.Info().Int("strategies", warmed).Msg("cache warmed")
	}

	retention := sched.NewRetentionWorker(cfg.Worker.SweepInterval, proc,
		[]*ratelimit.Limiter{userLimiter, providerLimiter}, memKV, logger)
	go func() {
		if err := retention.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("retention worker stopped")
		}
	}()

	blueprintSvc := usecase.NewBlueprintService(blueprints, proc, cacheSvc, logger)

	srv := web.NewServer(cfg, blueprintSvc, cacheSvc, userLimiter, logger)
	srv.Start()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	proc.Stop()
	cancel()
	logger.Info().Msg("bye")
}

// probeServices checks each downstream agent service once at startup.
// An unreachable service is logged, not fatal: the chain degrades to the
// core finance stages and jobs fail per-stage if the service stays down.
func probeServices(ctx context.Context, clients []*agentsvc.Client, logger *zerolog.Logger) {
	for _, c := range clients {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.Health(probeCtx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("service", c.Name()).Msg("agent service unreachable")
			continue
		}
		logger.Info().Str("service", c.Name()).Msg("agent service healthy")
	}
}

// buildModelClient assembles the model adapter chain: provider adapters
// behind fallback, then pacing, concurrency capping and metrics. In dev
// mode with no keys it returns the canned no-op client.
func buildModelClient(ctx context.Context, cfg *config.Config, pacing *ratelimit.Limiter, logger *zerolog.Logger) adapter.ModelClient {
	if cfg.AI.GeminiKey == "" && cfg.AI.OpenAIKey == "" {
		logger.Info().Msg("no model keys configured, using canned responses")
		return ai.NewNoopClient(150 * time.Millisecond)
	}

	var primary, secondary adapter.ModelClient
	provider := "gemini"
	if cfg.AI.GeminiKey != "" {
		g, err := ai.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		primary = g
	}
	if cfg.AI.OpenAIKey != "" {
		o, err := ai.NewOpenAIAdapter(cfg.AI.OpenAIKey, "")
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		if primary == nil {
			primary = o
			provider = "openai"
		} else {
			secondary = o
		}
	}

	var client adapter.ModelClient = ai.NewFallbackClient(primary, secondary, logger)
	client = ai.NewPacedClient(client, pacing, provider)
	client = ai.NewLimitedClient(client, cfg.AI.ConcurrentLimit)
	client = ai.NewInstrumentedClient(client, provider)
	return client
}
