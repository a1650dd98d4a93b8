// Package ranker scores documents by cosine similarity between weighted
// query and document term vectors.
package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
	// Dot is the unnormalised similarity, used to break score ties.
	Dot float64 `json:"-"`
}

// Before reports whether a ranks ahead of b: higher score, then higher dot
// product, then natural document id order.
func Before(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Dot != b.Dot {
		return a.Dot > b.Dot
	}
	return corpus.CompareIDs(a.DocID, b.DocID) < 0
}

type RankParams struct {
	// TotalDocs is N, the collection size.
	TotalDocs int
	// QueryLen is the length passed to the weight for query terms.
	QueryLen int
}

// Rank scores every document that appears in at least one of lists. The
// result is unordered; see Before and merger.TopK.
func Rank(lists []index.PostingList, params RankParams, docLen func(docID string) int, weight WeightFunc) ([]ScoredDoc, error) {
	var nq float64
	dot := make(map[string]float64)
	nd := make(map[string]float64)
	for _, pl := range lists {
		wq, err := weight(1, pl.DocFreq, params.TotalDocs, params.QueryLen)
		if err != nil {
			return nil, err
		}
		nq += wq * wq
		for _, p := range pl.Postings {
			wd, err := weight(p.Frequency, pl.DocFreq, params.TotalDocs, docLen(p.DocID))
			if err != nil {
				return nil, err
			}
			nd[p.DocID] += wd * wd
			dot[p.DocID] += wq * wd
		}
	}

	result := make([]ScoredDoc, 0, len(dot))
	for docID, s := range dot {
		var score float64
		if denom := math.Sqrt(nq) * math.Sqrt(nd[docID]); denom != 0 {
			score = s / denom
		}
		result = append(result, ScoredDoc{DocID: docID, Score: score, Dot: s})
	}
	return result, nil
}
