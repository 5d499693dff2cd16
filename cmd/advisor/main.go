package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/irisfin/advisor/internal/advisor"
	"github.com/irisfin/advisor/internal/api"
	"github.com/irisfin/advisor/internal/broker"
	"github.com/irisfin/advisor/internal/config"
	"github.com/irisfin/advisor/internal/knowledge"
	"github.com/irisfin/advisor/internal/ledger"
	"github.com/irisfin/advisor/internal/llm"
	"github.com/irisfin/advisor/internal/memorystore"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.App.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().
		Str("name", cfg.App.Name).
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting IRIS advisor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Redis backs the session store and context cache. The advisor degrades
	// without it, so a failed connection is a warning, not a fatal.
	var redisClient *redis.Client
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unreachable, continuing without session store")
		_ = rc.Close()
	} else {
		redisClient = rc
	}
	store := memorystore.New(redisClient)
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	// Postgres holds the knowledge base. Optional for the same reason.
	var pool *pgxpool.Pool
	if p, err := pgxpool.New(ctx, cfg.Database.DSN()); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize database, continuing without knowledge base")
	} else if err := p.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Database unreachable, continuing without knowledge base")
		p.Close()
	} else {
		pool = p
	}
	defer func() {
		if pool != nil {
			pool.Close()
		}
	}()

	llmClient := llm.NewClient(llm.ClientConfig{
		Endpoint:        cfg.LLM.Endpoint,
		EmbedEndpoint:   cfg.LLM.EmbedEndpoint,
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.LLM.Model,
		ExtractionModel: cfg.LLM.ExtractionModel,
		EmbeddingModel:  cfg.LLM.EmbeddingModel,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		Timeout:         cfg.LLM.Timeout(),
	})

	brokerClient := broker.NewClient(broker.ClientConfig{
		BaseURL:           cfg.Broker.BaseURL,
		DataURL:           cfg.Broker.DataURL,
		APIKey:            cfg.Broker.APIKey,
		APISecret:         cfg.Broker.APISecret,
		Timeout:           cfg.Broker.Timeout(),
		RequestsPerSecond: cfg.Broker.RequestsPerSecond,
		BreakerMinReqs:    cfg.Broker.BreakerMinReqs,
		BreakerRatio:      cfg.Broker.BreakerRatio,
		BreakerOpenFor:    time.Duration(cfg.Broker.BreakerOpenSecs) * time.Second,
	})

	ledgerClient := ledger.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout())

	markets := advisor.NewMarketLookup(
		brokerClient,
		llmClient,
		knowledge.New(pool),
		cfg.Advisor.DefaultSymbol,
		cfg.Advisor.KnowledgeTopK,
	)
	contexts := advisor.NewContextBuilder(
		store,
		ledgerClient,
		cfg.Advisor.ContextTTL(),
		cfg.Advisor.TransactionLimit,
		cfg.Advisor.HistoryTurns,
	)
	desk := advisor.NewTradeDesk(llmClient, brokerClient, markets, cfg.Advisor.DefaultSymbol)
	synth := advisor.NewSynthesizer(llmClient)
	orch := advisor.NewOrchestrator(store, contexts, markets, desk, synth, cfg.Advisor.SessionTTL())

	server := api.NewServer(api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AppName:        cfg.App.Name,
		AppVersion:     cfg.App.Version,
		Orchestrator:   orch,
		Store:          store,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
		os.Exit(1)
	}

	log.Info().Msg("Advisor stopped")
}
