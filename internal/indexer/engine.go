// Package indexer runs the block sort-based build: assign term ids, invert
// every block into a sorted partial file, merge the partials into one index
// and write the sidecars the store needs to open it.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/mapper"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/merge"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

type Options struct {
	Dir  string
	Name string
	// Workers bounds how many blocks are mapped concurrently.
	Workers      int
	FanIn        int
	KeepPartials bool
	Mode         store.Mode
	Metrics      *metrics.Metrics
}

// OptionsFromConfig maps the indexer and search sections onto build options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := store.ParseMode(cfg.Search.Mode)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Dir:          cfg.Indexer.DataDir,
		Name:         cfg.Indexer.Name,
		Workers:      cfg.Indexer.Workers,
		FanIn:        cfg.Indexer.MergeFanIn,
		KeepPartials: cfg.Indexer.KeepPartials,
		Mode:         mode,
	}, nil
}

type BuildResult struct {
	BuildID   string
	Files     store.Files
	Documents int
	Blocks    int
	Terms     int
	Postings  int
	Passes    int
	Duration  time.Duration
}

type Engine struct {
	opts   Options
	logger *slog.Logger
	newID  func() string
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Name == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "index name must not be empty")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Mode == "" {
		opts.Mode = store.Lazy
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	return &Engine{
		opts:   opts,
		logger: slog.Default().With("component", "indexer", "index", opts.Name),
		newID:  uuid.NewString,
	}, nil
}

// Build indexes c and writes the generation files. Every file is staged
// under a build-specific name and published together once all of them are
// on disk, so a failed build leaves the previous generation untouched.
// Partials are removed on failure, and on success unless KeepPartials is set.
func (e *Engine) Build(ctx context.Context, c corpus.Collection) (res *BuildResult, err error) {
	start := time.Now()
	buildID := e.newID()
	files := store.FilesFor(e.opts.Dir, e.opts.Name)
	logger := e.logger.With("build_id", buildID)

	phase := time.Now()
	dict, err := dictionary.Build(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("building dictionary: %w", err)
	}
	e.opts.Metrics.ObservePhase("dictionary", time.Since(phase))
	logger.Info("dictionary built", "terms", dict.Len(), "documents", c.Size())

	partsDir := filepath.Join(e.opts.Dir, fmt.Sprintf("%s.parts-%s", e.opts.Name, buildID))
	if err := os.MkdirAll(partsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating partials directory: %w", err)
	}
	defer func() {
		if err != nil || !e.opts.KeepPartials {
			os.RemoveAll(partsDir)
		}
	}()

	phase = time.Now()
	blocks := corpus.Blocks(c)
	parts, err := e.mapBlocks(ctx, dict, blocks, partsDir)
	if err != nil {
		return nil, err
	}
	e.opts.Metrics.ObservePhase("map", time.Since(phase))

	phase = time.Now()
	staged := files.Staged(buildID)
	defer func() {
		for _, path := range staged.All() {
			os.Remove(path)
		}
	}()
	ms, err := merge.Reduce(ctx, parts, staged.Index, merge.Options{
		FanIn:        e.opts.FanIn,
		TempDir:      partsDir,
		TrackOffsets: true,
		Metrics:      e.opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("merging partials: %w", err)
	}
	if ms.Terms != dict.Len() || ms.LastTermID != dictLastID(dict) {
		return nil, apperrors.Newf(apperrors.ErrDictionaryInconsistency, http.StatusInternalServerError,
			"merged %d terms ending at id %d for a dictionary of %d", ms.Terms, ms.LastTermID, dict.Len())
	}
	e.opts.Metrics.ObservePhase("merge", time.Since(phase))

	phase = time.Now()
	if err := dict.Save(staged.Dict); err != nil {
		return nil, err
	}
	if err := store.NewDocStats(c).Save(staged.Docs); err != nil {
		return nil, err
	}
	if err := store.WriteOffsets(staged.Offsets, ms.Offsets); err != nil {
		return nil, err
	}
	if err := staged.Publish(files); err != nil {
		return nil, err
	}
	e.opts.Metrics.ObservePhase("write", time.Since(phase))

	res = &BuildResult{
		BuildID:   buildID,
		Files:     files,
		Documents: c.Size(),
		Blocks:    len(blocks),
		Terms:     ms.Terms,
		Postings:  ms.Postings,
		Passes:    ms.Passes,
		Duration:  time.Since(start),
	}
	logger.Info("index build complete",
		"documents", res.Documents,
		"blocks", res.Blocks,
		"terms", res.Terms,
		"postings", res.Postings,
		"merge_passes", res.Passes,
		"duration", res.Duration,
	)
	return res, nil
}

// mapBlocks writes one partial per block. Output paths are fixed by block
// position so the merge sees them in collection order whatever order the
// workers finish in.
func (e *Engine) mapBlocks(ctx context.Context, dict *dictionary.Dictionary, blocks []corpus.Collection, dir string) ([]string, error) {
	parts := make([]string, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, block := range blocks {
		parts[i] = filepath.Join(dir, fmt.Sprintf("block-%05d.part", i))
		g.Go(func() error {
			st, err := mapper.Map(gctx, dict, block, parts[i])
			if err != nil {
				return err
			}
			e.opts.Metrics.BlockMapped()
			e.logger.Debug("block mapped",
				"block", st.Block,
				"documents", st.Documents,
				"terms", st.Terms,
				"postings", st.Postings,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// Open opens the generation this engine writes.
func (e *Engine) Open() (*store.ReverseIndex, error) {
	return store.Open(e.opts.Dir, e.opts.Name, e.opts.Mode, store.WithMetrics(e.opts.Metrics))
}

// BuildIndex builds c and opens the result in opts.Mode.
func BuildIndex(ctx context.Context, c corpus.Collection, opts Options) (*store.ReverseIndex, error) {
	e, err := NewEngine(opts)
	if err != nil {
		return nil, err
	}
	if _, err := e.Build(ctx, c); err != nil {
		return nil, err
	}
	return e.Open()
}

func dictLastID(d *dictionary.Dictionary) index.TermID {
	return index.TermID(d.Len() - 1)
}
