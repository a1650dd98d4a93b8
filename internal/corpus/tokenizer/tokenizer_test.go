package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
)

func terms(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Term
	}
	return out
}

func TestTokenizeDropsStopWordsAndPunctuation(t *testing.T) {
	tk := New(Options{})
	got := tk.Tokenize("The Sorting of External Files, on tape!")
	assert.Equal(t, []string{"sorting", "external", "files", "tape"}, terms(got))
	assert.Equal(t, 3, got[3].Position)
}

func TestTokenizeWithStemming(t *testing.T) {
	tk := New(Options{Stem: true})
	assert.Equal(t, []string{"sort", "comput"}, terms(tk.Tokenize("sorting computers")))
	assert.Equal(t, "sort", tk.Normalize("  Sorting "))
}

func TestCustomStopListAndMinLength(t *testing.T) {
	words, err := ReadStopList(strings.NewReader("algorithm\n\n  Tape \n"))
	require.NoError(t, err)

	tk := New(Options{StopWords: words, MinLength: 2})
	assert.Equal(t, []string{"the", "merge"}, terms(tk.Tokenize("the x algorithm TAPE merge")))
}

func TestBagCountsAcrossFields(t *testing.T) {
	tk := New(Options{})
	bag := tk.Bag("merge sort", "external merge")
	assert.Equal(t, corpus.TermBag{"merge": 2, "sort": 1, "external": 1}, bag)
}

func TestNormalizeKeepsStopWords(t *testing.T) {
	tk := New(Options{})
	assert.Equal(t, "the", tk.Normalize("THE"))
}
