// Package executor evaluates boolean and vector queries against an open
// index generation.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

type Mode string

const (
	Boolean Mode = "boolean"
	Vector  Mode = "vector"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Boolean, Vector:
		return Mode(s), nil
	case "":
		return Vector, nil
	default:
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "mode must be boolean or vector, got %q", s)
	}
}

type Request struct {
	Query  string
	Mode   Mode
	Weight string
	// Limit caps returned documents; TotalHits still counts all of them.
	Limit int
}

type SearchResult struct {
	Query     string             `json:"query"`
	Mode      Mode               `json:"mode"`
	Weight    string             `json:"weight,omitempty"`
	Index     string             `json:"index"`
	TotalHits int                `json:"total_hits"`
	DocIDs    []string           `json:"doc_ids,omitempty"`
	Results   []ranker.ScoredDoc `json:"results,omitempty"`
	TermStats map[string]int     `json:"term_stats"`
}

type Option func(*Executor)

func WithNormalizer(fn func(string) string) Option {
	return func(e *Executor) { e.normalize = fn }
}

func WithUniverseCache(on bool) Option {
	return func(e *Executor) { e.cacheUniverse = on }
}

func WithDefaultWeight(name string) Option {
	return func(e *Executor) { e.defaultWeight = name }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithDocStats replaces the statistics persisted with the index, for
// callers ranking against a collection they have loaded themselves.
func WithDocStats(s DocStats) Option {
	return func(e *Executor) { e.stats = s }
}

type Executor struct {
	idx           *store.ReverseIndex
	evaluator     *Evaluator
	stats         DocStats
	normalize     func(string) string
	cacheUniverse bool
	defaultWeight string
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func New(idx *store.ReverseIndex, opts ...Option) *Executor {
	e := &Executor{
		idx:           idx,
		stats:         idx.Stats(),
		normalize:     strings.ToLower,
		cacheUniverse: true,
		defaultWeight: "logtf-idf",
		logger:        slog.Default().With("component", "query-executor", "index", idx.Name()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.evaluator = NewEvaluator(idx, EvalNormalizer(e.normalize), EvalUniverseCache(e.cacheUniverse))
	return e
}

func (e *Executor) Index() *store.ReverseIndex { return e.idx }

func (e *Executor) Execute(ctx context.Context, req Request) (*SearchResult, error) {
	start := time.Now()
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query must not be empty")
	}
	var (
		res *SearchResult
		err error
	)
	switch req.Mode {
	case Boolean:
		res, err = e.executeBoolean(ctx, req)
	case Vector, "":
		req.Mode = Vector
		res, err = e.executeVector(ctx, req)
	default:
		_, err = ParseMode(string(req.Mode))
		return nil, err
	}
	hits := 0
	if res != nil {
		hits = res.TotalHits
	}
	e.metrics.QueryServed(string(req.Mode), hits, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("query executed",
		"query", req.Query,
		"mode", req.Mode,
		"total_hits", res.TotalHits,
		"duration", time.Since(start),
	)
	return res, nil
}

func (e *Executor) executeBoolean(ctx context.Context, req Request) (*SearchResult, error) {
	tree, err := parser.Parse(req.Query)
	if err != nil {
		return nil, err
	}
	ids, err := e.evaluator.EvaluateTree(ctx, tree)
	if err != nil {
		return nil, err
	}
	res := &SearchResult{
		Query:     req.Query,
		Mode:      Boolean,
		Index:     e.idx.Name(),
		TotalHits: len(ids),
		DocIDs:    ids,
		TermStats: e.termStats(parser.Terms(tree)),
	}
	if req.Limit > 0 && len(ids) > req.Limit {
		res.DocIDs = ids[:req.Limit]
	}
	if res.DocIDs == nil {
		res.DocIDs = []string{}
	}
	return res, nil
}

func (e *Executor) executeVector(ctx context.Context, req Request) (*SearchResult, error) {
	name := req.Weight
	if name == "" {
		name = e.defaultWeight
	}
	weight, err := ranker.ByName(name)
	if err != nil {
		return nil, err
	}
	lists, err := queryLists(ctx, e.idx, req.Query, e.normalize)
	if err != nil {
		return nil, err
	}
	docs, err := rankLists(lists, e.stats, weight)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Query:     req.Query,
		Mode:      Vector,
		Weight:    name,
		Index:     e.idx.Name(),
		TotalHits: len(docs),
		Results:   merger.TopK(docs, req.Limit),
		TermStats: e.termStats(strings.Fields(req.Query)),
	}, nil
}

// termStats maps each normalized query word to its document frequency,
// 0 for words the index does not hold.
func (e *Executor) termStats(words []string) map[string]int {
	out := make(map[string]int, len(words))
	for _, w := range words {
		term := e.normalize(w)
		pl, err := e.idx.Get(term)
		if err != nil {
			if !errors.Is(err, apperrors.ErrUnknownTerm) {
				e.logger.Warn("term stats lookup failed", "term", term, "error", err)
			}
			out[term] = 0
			continue
		}
		out[term] = pl.DocFreq
	}
	return out
}
