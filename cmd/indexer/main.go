package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/loader"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/pgsource"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/resilience"
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
	slog.Info("starting indexer",
		"format", cfg.Corpus.Format,
		"path", cfg.Corpus.Path,
		"index", cfg.Indexer.Name,
		"workers", cfg.Indexer.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	tk, err := loader.NewTokenizer(cfg.Corpus)
	if err != nil {
		return fmt.Errorf("building tokenizer: %w", err)
	}

	var pg *pgsource.Source
	if cfg.Corpus.Format == "postgres" {
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := pgsource.EnsureSchema(ctx, client); err != nil {
			return err
		}
		pg = pgsource.New(client, tk)
	}

	c, err := loader.Load(ctx, cfg.Corpus, cfg.Indexer.Name, tk, pg)
	if err != nil {
		return err
	}

	opts, err := indexer.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Metrics = m
	engine, err := indexer.NewEngine(opts)
	if err != nil {
		return err
	}
	res, err := engine.Build(ctx, c)
	if err != nil {
		return err
	}
	slog.Info("index generation written",
		"build_id", res.BuildID,
		"index", res.Files.Index,
		"documents", res.Documents,
		"terms", res.Terms,
		"postings", res.Postings,
		"duration", res.Duration,
	)

	if pg != nil {
		ids := make([]string, 0, c.Size())
		for _, doc := range c.Documents() {
			ids = append(ids, doc.ID)
		}
		corpus.SortIDs(ids)
		n, err := pg.MarkIndexed(ctx, res.BuildID, ids)
		if err != nil {
			return err
		}
		slog.Info("documents marked indexed", "build_id", res.BuildID, "rows", n)
	}

	if len(cfg.Kafka.Brokers) == 0 {
		slog.Info("kafka not configured, skipping generation announcement")
		return nil
	}
	return announce(ctx, cfg, res)
}

// announce tells running searchers that a new generation is ready.
func announce(ctx context.Context, cfg *config.Config, res *indexer.BuildResult) error {
	dir, err := filepath.Abs(cfg.Indexer.DataDir)
	if err != nil {
		return fmt.Errorf("resolving index dir: %w", err)
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()

	event := kafka.Event{Key: cfg.Indexer.Name, Value: res.Event(dir, cfg.Indexer.Name)}
	err = resilience.Retry(ctx, "announce-generation", resilience.RetryConfig{}, func() error {
		return producer.Publish(ctx, event)
	})
	if err != nil {
		return err
	}
	slog.Info("generation announced",
		"topic", cfg.Kafka.Topics.IndexComplete,
		"build_id", res.BuildID,
	)
	return nil
}
