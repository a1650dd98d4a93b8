package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/loader"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"index", cfg.Indexer.Name,
		"mode", cfg.Search.Mode,
	)

	mode, err := store.ParseMode(cfg.Search.Mode)
	if err != nil {
		slog.Error("invalid search mode", "error", err)
		os.Exit(1)
	}
	tk, err := loader.NewTokenizer(cfg.Corpus)
	if err != nil {
		slog.Error("failed to build tokenizer", "error", err)
		os.Exit(1)
	}
	m := metrics.New(nil)

	holder := reload.NewHolder(
		func(dir, name string) (*store.ReverseIndex, error) {
			return store.Open(dir, name, mode, store.WithMetrics(m))
		},
		m,
		executor.WithNormalizer(tk.Normalize),
		executor.WithUniverseCache(cfg.Search.CacheUniverse),
		executor.WithDefaultWeight(cfg.Search.DefaultWeight),
		executor.WithMetrics(m),
	)
	defer holder.Close()

	// A missing index is not fatal: the service reports not-ready until a
	// generation is announced.
	if err := holder.Load("startup-"+uuid.NewString(), cfg.Indexer.DataDir, cfg.Indexer.Name); err != nil {
		slog.Warn("no index generation loaded at startup", "error", err)
	}

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis, "bsbi:"+cfg.Indexer.Name)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, cfg.Search.Timeout, m)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Kafka.Brokers) > 0 {
		// Every replica reloads, so each one consumes under its own group.
		group := cfg.Kafka.ConsumerGroup + "-" + uuid.NewString()
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, group,
			reload.HandleGenerationEvent(holder, cfg.Indexer.Name))
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("generation consumer error", "error", err)
			}
		}()
		slog.Info("listening for index generations", "topic", cfg.Kafka.Topics.IndexComplete, "group", group)
	}

	h := handler.New(holder, queryCache, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	checker := health.NewChecker()
	checker.Register("index", health.FromError(h.Ready))
	if redisClient != nil {
		checker.RegisterOptional("redis", health.FromError(redisClient.Ping))
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	limiter := middleware.NewClientLimiter(cfg.Server.RateLimit)
	if limiter != nil {
		go limiter.RunSweeper(ctx, 5*time.Minute)
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	chain = middleware.RateLimit(limiter)(chain)
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
