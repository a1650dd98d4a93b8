package executor

import (
	"context"
	"errors"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// DocStats supplies collection size and document lengths to the ranker.
// Both *store.DocStats and a loaded corpus adapter satisfy it.
type DocStats interface {
	Size() int
	DocLen(docID string) int
}

var _ DocStats = (*store.DocStats)(nil)

// queryLists splits query on whitespace, normalizes each word and keeps the
// posting lists of the words the index knows. Repeated words count twice.
func queryLists(ctx context.Context, idx Index, query string, normalize func(string) string) ([]index.PostingList, error) {
	var lists []index.PostingList
	for _, word := range strings.Fields(query) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pl, err := idx.Get(normalize(word))
		if errors.Is(err, apperrors.ErrUnknownTerm) {
			continue
		}
		if err != nil {
			return nil, err
		}
		lists = append(lists, pl)
	}
	return lists, nil
}

func rankLists(lists []index.PostingList, stats DocStats, weight ranker.WeightFunc) ([]ranker.ScoredDoc, error) {
	if len(lists) == 0 {
		return []ranker.ScoredDoc{}, nil
	}
	return ranker.Rank(lists, ranker.RankParams{TotalDocs: stats.Size(), QueryLen: len(lists)}, stats.DocLen, weight)
}

// RankVectorial returns every document sharing a term with query, best
// first. Words missing from the index are ignored.
func RankVectorial(ctx context.Context, idx Index, stats DocStats, query string, weight ranker.WeightFunc) ([]ranker.ScoredDoc, error) {
	lists, err := queryLists(ctx, idx, query, strings.ToLower)
	if err != nil {
		return nil, err
	}
	docs, err := rankLists(lists, stats, weight)
	if err != nil {
		return nil, err
	}
	return merger.TopK(docs, 0), nil
}
