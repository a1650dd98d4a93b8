// Command query runs boolean or vector queries against an index on disk.
// With -q it answers one query; otherwise it reads one query per line from
// stdin and prints one JSON result per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/loader"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/pgsource"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	modeFlag := flag.String("mode", "vector", "query mode: boolean or vector")
	weight := flag.String("weight", "", "weighting scheme for vector queries (default from config)")
	limit := flag.Int("limit", 10, "maximum results; 0 returns every match")
	query := flag.String("q", "", "query to run; read from stdin when empty")
	indexMode := flag.String("index-mode", "", "eager or lazy (default from config)")
	statsFrom := flag.String("stats", "index", "document statistics for ranking: index or corpus")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Logs go to stderr so stdout stays machine readable.
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	if *indexMode == "" {
		*indexMode = cfg.Search.Mode
	}
	if *weight == "" {
		*weight = cfg.Search.DefaultWeight
	}
	qmode, err := executor.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *statsFrom != "index" && *statsFrom != "corpus" {
		fmt.Fprintf(os.Stderr, "unknown -stats %q: want index or corpus\n", *statsFrom)
		os.Exit(2)
	}

	if err := run(ctx, cfg, *indexMode, *statsFrom == "corpus", executor.Request{Mode: qmode, Weight: *weight, Limit: *limit}, *query); err != nil {
		slog.Error("query failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, indexMode string, corpusStats bool, base executor.Request, query string) error {
	mode, err := store.ParseMode(indexMode)
	if err != nil {
		return err
	}
	tk, err := loader.NewTokenizer(cfg.Corpus)
	if err != nil {
		return err
	}
	idx, err := store.Open(cfg.Indexer.DataDir, cfg.Indexer.Name, mode)
	if err != nil {
		return err
	}
	defer idx.Close()

	opts := []executor.Option{
		executor.WithNormalizer(tk.Normalize),
		executor.WithUniverseCache(cfg.Search.CacheUniverse),
		executor.WithDefaultWeight(cfg.Search.DefaultWeight),
	}
	if corpusStats {
		c, err := loadCollection(ctx, cfg, tk)
		if err != nil {
			return err
		}
		opts = append(opts, executor.WithDocStats(corpus.Stats{Collection: c}))
	}
	exec := executor.New(idx, opts...)
	out := json.NewEncoder(os.Stdout)

	answer := func(q string) error {
		req := base
		req.Query = q
		var result *executor.SearchResult
		err := resilience.WithTimeout(ctx, cfg.Search.Timeout, "query", func(ctx context.Context) error {
			var err error
			result, err = exec.Execute(ctx, req)
			return err
		})
		if err != nil {
			return err
		}
		return out.Encode(result)
	}

	if query != "" {
		return answer(query)
	}
	return answerLines(ctx, os.Stdin, answer)
}

// loadCollection reads the configured corpus so vector queries rank with its
// current size and lengths instead of those captured at build time.
func loadCollection(ctx context.Context, cfg *config.Config, tk *tokenizer.Tokenizer) (corpus.Collection, error) {
	var pg *pgsource.Source
	if cfg.Corpus.Format == "postgres" {
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		pg = pgsource.New(client, tk)
	}
	return loader.Load(ctx, cfg.Corpus, cfg.Indexer.Name, tk, pg)
}

// answerLines runs every non-blank line of r. A bad query is reported and
// the loop moves on to the next line.
func answerLines(ctx context.Context, r io.Reader, answer func(string) error) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := answer(line); err != nil {
			slog.Warn("query rejected", "query", line, "error", err)
		}
	}
	return sc.Err()
}
