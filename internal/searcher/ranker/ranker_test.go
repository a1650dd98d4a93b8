package ranker

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

func list(id index.TermID, postings ...index.Posting) index.PostingList {
	return index.PostingList{TermID: id, DocFreq: len(postings), Postings: postings}
}

func sorted(docs []ScoredDoc) []string {
	sort.Slice(docs, func(i, j int) bool { return Before(docs[i], docs[j]) })
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}
	return ids
}

func TestRankPrefersHigherTermFrequency(t *testing.T) {
	// doc1 holds x three times, doc2 holds x once and y twice.
	x := list(0, index.Posting{DocID: "doc1", Frequency: 3}, index.Posting{DocID: "doc2", Frequency: 1})
	lengths := map[string]int{"doc1": 3, "doc2": 3, "doc3": 2}
	docLen := func(id string) int { return lengths[id] }

	for _, name := range []string{"tf", "logtf", "tf-df"} {
		t.Run(name, func(t *testing.T) {
			weight, err := ByName(name)
			require.NoError(t, err)
			docs, err := Rank([]index.PostingList{x}, RankParams{TotalDocs: 3, QueryLen: 1}, docLen, weight)
			require.NoError(t, err)
			assert.Equal(t, []string{"doc1", "doc2"}, sorted(docs))
		})
	}
}

func TestRankCosineScores(t *testing.T) {
	a := list(0, index.Posting{DocID: "1", Frequency: 1}, index.Posting{DocID: "2", Frequency: 2})
	b := list(1, index.Posting{DocID: "2", Frequency: 2})
	weight, err := ByName("tf")
	require.NoError(t, err)

	docs, err := Rank([]index.PostingList{a, b}, RankParams{TotalDocs: 2, QueryLen: 2}, func(string) int { return 2 }, weight)
	require.NoError(t, err)
	byID := map[string]ScoredDoc{}
	for _, d := range docs {
		byID[d.DocID] = d
	}
	require.Len(t, byID, 2)
	// query vector (1,1); doc1 (1,0); doc2 (2,2)
	assert.InDelta(t, 1/math.Sqrt2, byID["1"].Score, 1e-9)
	assert.InDelta(t, 1.0, byID["2"].Score, 1e-9)
	assert.InDelta(t, 4.0, byID["2"].Dot, 1e-9)
}

func TestRankZeroWeightsScoreZero(t *testing.T) {
	// every document holds the term, so idf is 0
	a := list(0, index.Posting{DocID: "1", Frequency: 1}, index.Posting{DocID: "2", Frequency: 1})
	weight, err := ByName("idf")
	require.NoError(t, err)
	docs, err := Rank([]index.PostingList{a}, RankParams{TotalDocs: 2, QueryLen: 1}, func(string) int { return 1 }, weight)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Zero(t, d.Score)
	}
}

func TestRankPropagatesInvalidWeight(t *testing.T) {
	a := list(0, index.Posting{DocID: "1", Frequency: 1})
	weight, err := ByName("tf-idf-norm")
	require.NoError(t, err)
	_, err = Rank([]index.PostingList{a}, RankParams{TotalDocs: 1, QueryLen: 1}, func(string) int { return 0 }, weight)
	assert.ErrorIs(t, err, apperrors.ErrInvalidWeight)
}

func TestWeightGuards(t *testing.T) {
	cases := []struct {
		name              string
		tf, df, n, docLen int
	}{
		{"logtf", 0, 1, 1, 1},
		{"idf", 1, 0, 1, 1},
		{"idf", 1, 1, 0, 1},
		{"tf-df", 1, 0, 1, 1},
		{"tf-idf-norm", 1, 1, 2, 0},
		{"logtf-idf-norm", 1, 1, 2, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fn, err := ByName(tc.name)
			require.NoError(t, err)
			_, err = fn(tc.tf, tc.df, tc.n, tc.docLen)
			assert.ErrorIs(t, err, apperrors.ErrInvalidWeight)
		})
	}
}

func TestWeightValues(t *testing.T) {
	cases := []struct {
		name string
		want float64
	}{
		{"tf", 10},
		{"logtf", 2},
		{"idf", 1},
		{"tf-df", 5},
		{"tf-idf", 10},
		{"logtf-idf", 2},
		{"tf-idf-norm", 2},
		{"logtf-idf-norm", 0.4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fn, err := ByName(tc.name)
			require.NoError(t, err)
			got, err := fn(10, 2, 20, 5)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestByNameUnknown(t *testing.T) {
	_, err := ByName("bm25")
	assert.ErrorIs(t, err, apperrors.ErrInvalidWeight)
	assert.Len(t, Names(), 8)
}

func TestBeforeTieBreaks(t *testing.T) {
	assert.True(t, Before(ScoredDoc{DocID: "9", Score: 1, Dot: 2}, ScoredDoc{DocID: "1", Score: 1, Dot: 1}))
	assert.True(t, Before(ScoredDoc{DocID: "9", Score: 1}, ScoredDoc{DocID: "10", Score: 1}))
	assert.False(t, Before(ScoredDoc{DocID: "1", Score: 0.5}, ScoredDoc{DocID: "2", Score: 0.6}))
}
