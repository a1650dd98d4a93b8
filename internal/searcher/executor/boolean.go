package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// Index is the read side of a ReverseIndex.
type Index interface {
	Get(term string) (index.PostingList, error)
	ForEach(fn func(term string, pl index.PostingList) error) error
	Stats() *store.DocStats
}

type EvalOption func(*Evaluator)

// EvalNormalizer sets how leaf terms are rewritten before lookup.
func EvalNormalizer(fn func(string) string) EvalOption {
	return func(e *Evaluator) { e.normalize = fn }
}

// EvalUniverseCache controls whether the set of all indexed documents is
// computed once per evaluator or on every negation.
func EvalUniverseCache(on bool) EvalOption {
	return func(e *Evaluator) { e.cacheUniverse = on }
}

// Evaluator answers boolean queries against one index. Documents are
// numbered by their rank in natural id order so that iterating a bitmap
// yields ids already sorted.
type Evaluator struct {
	idx           Index
	ids           []string
	ordinals      map[string]uint32
	normalize     func(string) string
	cacheUniverse bool
	logger        *slog.Logger

	once        sync.Once
	universe    *roaring.Bitmap
	universeErr error
}

func NewEvaluator(idx Index, opts ...EvalOption) *Evaluator {
	stats := idx.Stats()
	ids := make([]string, 0, len(stats.Lengths))
	for id := range stats.Lengths {
		ids = append(ids, id)
	}
	corpus.SortIDs(ids)
	ordinals := make(map[string]uint32, len(ids))
	for i, id := range ids {
		ordinals[id] = uint32(i)
	}
	e := &Evaluator{
		idx:           idx,
		ids:           ids,
		ordinals:      ordinals,
		normalize:     strings.ToLower,
		cacheUniverse: true,
		logger:        slog.Default().With("component", "boolean-evaluator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate parses expr and returns the matching document ids in natural
// order.
func (e *Evaluator) Evaluate(ctx context.Context, expr string) ([]string, error) {
	tree, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	return e.EvaluateTree(ctx, tree)
}

func (e *Evaluator) EvaluateTree(ctx context.Context, tree parser.Node) ([]string, error) {
	bm, err := e.eval(ctx, tree)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, e.ids[it.Next()])
	}
	return out, nil
}

func (e *Evaluator) eval(ctx context.Context, n parser.Node) (*roaring.Bitmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch v := n.(type) {
	case parser.Term:
		return e.leaf(v.Text)
	case parser.And:
		left, right, err := e.evalPair(ctx, v.Left, v.Right)
		if err != nil {
			return nil, err
		}
		return roaring.And(left, right), nil
	case parser.Or:
		left, right, err := e.evalPair(ctx, v.Left, v.Right)
		if err != nil {
			return nil, err
		}
		return roaring.Or(left, right), nil
	case parser.Not:
		child, err := e.eval(ctx, v.Child)
		if err != nil {
			return nil, err
		}
		universe, err := e.Universe()
		if err != nil {
			return nil, err
		}
		return roaring.AndNot(universe, child), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInternal, http.StatusInternalServerError, "unexpected node %T", n)
	}
}

func (e *Evaluator) evalPair(ctx context.Context, l, r parser.Node) (*roaring.Bitmap, *roaring.Bitmap, error) {
	left, err := e.eval(ctx, l)
	if err != nil {
		return nil, nil, err
	}
	right, err := e.eval(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (e *Evaluator) leaf(raw string) (*roaring.Bitmap, error) {
	term := e.normalize(raw)
	pl, err := e.idx.Get(term)
	if errors.Is(err, apperrors.ErrUnknownTerm) {
		e.logger.Debug("term not in dictionary", "term", term)
		return roaring.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return e.bitmap(pl)
}

func (e *Evaluator) bitmap(pl index.PostingList) (*roaring.Bitmap, error) {
	bm := roaring.New()
	for _, p := range pl.Postings {
		ord, ok := e.ordinals[p.DocID]
		if !ok {
			return nil, apperrors.Corruptf("term %d lists document %q missing from doc stats", pl.TermID, p.DocID)
		}
		bm.Add(ord)
	}
	return bm, nil
}

// Universe is every document that appears in at least one posting list.
// The returned bitmap must not be modified.
func (e *Evaluator) Universe() (*roaring.Bitmap, error) {
	if !e.cacheUniverse {
		return e.scanUniverse()
	}
	e.once.Do(func() {
		e.universe, e.universeErr = e.scanUniverse()
	})
	return e.universe, e.universeErr
}

func (e *Evaluator) scanUniverse() (*roaring.Bitmap, error) {
	all := roaring.New()
	err := e.idx.ForEach(func(term string, pl index.PostingList) error {
		bm, err := e.bitmap(pl)
		if err != nil {
			return err
		}
		all.Or(bm)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("computing document universe: %w", err)
	}
	return all, nil
}

// EvaluateBoolean runs expr against idx with default options.
func EvaluateBoolean(ctx context.Context, idx Index, expr string) ([]string, error) {
	return NewEvaluator(idx).Evaluate(ctx, expr)
}
