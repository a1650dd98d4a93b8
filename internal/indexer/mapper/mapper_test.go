package mapper

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

func block(t *testing.T) *corpus.MemoryCollection {
	t.Helper()
	c := corpus.NewMemoryCollection("b0")
	require.NoError(t, c.Add(corpus.Document{ID: "1", Terms: corpus.TermBag{"zeta": 2, "alpha": 1}}))
	require.NoError(t, c.Add(corpus.Document{ID: "2", Terms: corpus.TermBag{"alpha": 3}}))
	return c
}

func readAll(t *testing.T, path string) []index.PostingList {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := index.NewRecordReader(f, path)
	var out []index.PostingList
	for {
		pl, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, pl)
	}
}

func TestMapWritesSortedPartial(t *testing.T) {
	dict := dictionary.New()
	dict.Assign("zeta")
	dict.Assign("alpha")
	dict.Assign("unused")

	out := filepath.Join(t.TempDir(), "parts", "block-00000.part")
	stats, err := Map(context.Background(), dict, block(t), out)
	require.NoError(t, err)
	assert.Equal(t, Stats{Block: "b0", Path: out, Documents: 2, Terms: 2, Postings: 3}, stats)

	lists := readAll(t, out)
	require.Len(t, lists, 2)
	assert.Equal(t, index.TermID(0), lists[0].TermID)
	assert.Equal(t, []index.Posting{{DocID: "1", Frequency: 2}}, lists[0].Postings)
	assert.Equal(t, index.TermID(1), lists[1].TermID)
	assert.Equal(t, 2, lists[1].DocFreq)
	assert.Equal(t, []string{"1", "2"}, lists[1].DocIDs())

	_, err = os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestMapFailsOnMissingTerm(t *testing.T) {
	dict := dictionary.New()
	dict.Assign("alpha")

	out := filepath.Join(t.TempDir(), "block.part")
	_, err := Map(context.Background(), dict, block(t), out)
	assert.ErrorIs(t, err, apperrors.ErrDictionaryInconsistency)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMapHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Map(ctx, dictionary.New(), block(t), filepath.Join(t.TempDir(), "x.part"))
	assert.ErrorIs(t, err, context.Canceled)
}
