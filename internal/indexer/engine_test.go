package indexer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

func sample(t *testing.T) *corpus.MemoryCollection {
	t.Helper()
	c := corpus.NewMemoryCollection("sample")
	docs := []corpus.Document{
		{ID: "1", Terms: corpus.TermBag{"information": 1, "retrieval": 2}},
		{ID: "2", Terms: corpus.TermBag{"retrieval": 1, "system": 1}},
		{ID: "3", Terms: corpus.TermBag{"information": 2, "system": 3, "database": 1}},
		{ID: "11", Terms: corpus.TermBag{"database": 4}},
	}
	for _, d := range docs {
		require.NoError(t, c.Add(d))
	}
	return c
}

func dump(t *testing.T, idx *store.ReverseIndex) map[string]index.PostingList {
	t.Helper()
	out := make(map[string]index.PostingList)
	require.NoError(t, idx.ForEach(func(term string, pl index.PostingList) error {
		out[term] = pl
		return nil
	}))
	return out
}

func TestBuildIndexSameResultForAnyBlocking(t *testing.T) {
	ctx := context.Background()
	one, err := BuildIndex(ctx, sample(t), Options{Dir: t.TempDir(), Name: "one", Mode: store.Eager})
	require.NoError(t, err)
	defer one.Close()

	two, err := BuildIndex(ctx, corpus.Partition(sample(t), 2), Options{
		Dir: t.TempDir(), Name: "two", Workers: 2, FanIn: 2, Mode: store.Lazy,
	})
	require.NoError(t, err)
	defer two.Close()

	perDoc, err := BuildIndex(ctx, corpus.Partition(sample(t), 1), Options{
		Dir: t.TempDir(), Name: "four", Workers: 3, FanIn: 2, Mode: store.Lazy,
	})
	require.NoError(t, err)
	defer perDoc.Close()

	want := dump(t, one)
	if diff := cmp.Diff(want, dump(t, two)); diff != "" {
		t.Errorf("two blocks differ (-one +two):\n%s", diff)
	}
	if diff := cmp.Diff(want, dump(t, perDoc)); diff != "" {
		t.Errorf("one doc per block differs (-one +four):\n%s", diff)
	}

	db, err := two.Get("database")
	require.NoError(t, err)
	assert.Equal(t, []index.Posting{{DocID: "3", Frequency: 1}, {DocID: "11", Frequency: 4}}, db.Postings)
}

func TestBuildIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(Options{Dir: dir, Name: "sample"})
	require.NoError(t, err)

	first, err := e.Build(context.Background(), sample(t))
	require.NoError(t, err)
	firstIndex, err := os.ReadFile(first.Files.Index)
	require.NoError(t, err)
	firstDict, err := os.ReadFile(first.Files.Dict)
	require.NoError(t, err)

	second, err := e.Build(context.Background(), sample(t))
	require.NoError(t, err)
	assert.NotEqual(t, first.BuildID, second.BuildID)
	secondIndex, err := os.ReadFile(second.Files.Index)
	require.NoError(t, err)
	secondDict, err := os.ReadFile(second.Files.Dict)
	require.NoError(t, err)

	assert.Equal(t, firstIndex, secondIndex)
	assert.JSONEq(t, string(firstDict), string(secondDict))
	var terms map[string]int
	require.NoError(t, json.Unmarshal(firstDict, &terms))
	assert.Len(t, terms, second.Terms)
	assert.Equal(t, first.Terms, second.Terms)
	assert.Equal(t, 4, second.Terms)
	assert.Equal(t, 4, second.Documents)
}

func TestBuildRemovesPartials(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(Options{Dir: dir, Name: "sample"})
	require.NoError(t, err)
	_, err = e.Build(context.Background(), corpus.Partition(sample(t), 2))
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "sample.parts-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestBuildKeepsPartialsWhenAsked(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(Options{Dir: dir, Name: "sample", KeepPartials: true})
	require.NoError(t, err)
	_, err = e.Build(context.Background(), corpus.Partition(sample(t), 2))
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "sample.parts-*", "block-*.part"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestBuildRejectsDuplicateDocumentAcrossBlocks(t *testing.T) {
	b0 := corpus.NewMemoryCollection("b0")
	require.NoError(t, b0.Add(corpus.Document{ID: "7", Terms: corpus.TermBag{"x": 1}}))
	b1 := corpus.NewMemoryCollection("b1")
	require.NoError(t, b1.Add(corpus.Document{ID: "7", Terms: corpus.TermBag{"y": 1}}))

	dir := t.TempDir()
	_, err := BuildIndex(context.Background(), corpus.NewMetaCollection("dup", b0, b1), Options{Dir: dir, Name: "dup"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateDocument)
	_, statErr := os.Stat(store.FilesFor(dir, "dup").Index)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	_, err := BuildIndex(ctx, sample(t), Options{Dir: dir, Name: "sample"})
	assert.ErrorIs(t, err, context.Canceled)
	matches, _ := filepath.Glob(filepath.Join(dir, "sample.parts-*"))
	assert.Empty(t, matches)
}

func TestEmptyCollectionBuildsEmptyIndex(t *testing.T) {
	idx, err := BuildIndex(context.Background(), corpus.NewMemoryCollection("empty"), Options{Dir: t.TempDir(), Name: "empty"})
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, 0, idx.Size())
	_, err = idx.Get("anything")
	assert.ErrorIs(t, err, apperrors.ErrUnknownTerm)
}

func TestBuildResultEvent(t *testing.T) {
	res := &BuildResult{BuildID: "b-1", Terms: 5, Documents: 4, Blocks: 2}
	ev := res.Event("/data", "cacm")
	assert.Equal(t, "b-1", ev.BuildID)
	assert.Equal(t, "cacm", ev.Name)
	assert.Equal(t, 2, ev.Blocks)
	assert.False(t, ev.CompletedAt.IsZero())
}

func TestFailedWriteKeepsPreviousGeneration(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEngine(Options{Dir: dir, Name: "sample"})
	require.NoError(t, err)
	first, err := e.Build(context.Background(), sample(t))
	require.NoError(t, err)

	before := make(map[string][]byte)
	for _, path := range first.Files.All() {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		before[path] = data
	}

	// A directory squatting on the staged offsets name fails the write
	// phase after the dictionary and lengths have been written.
	e.newID = func() string { return "broken" }
	require.NoError(t, os.Mkdir(first.Files.Staged("broken").Offsets, 0755))

	grown := sample(t)
	require.NoError(t, grown.Add(corpus.Document{ID: "12", Terms: corpus.TermBag{"zebra": 1}}))
	_, err = e.Build(context.Background(), grown)
	require.Error(t, err)

	for path, want := range before {
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%s changed by a failed build", filepath.Base(path))
	}
	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	idx, err := store.Open(dir, "sample", store.Eager)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, 4, idx.Stats().Size())
	_, err = idx.Get("zebra")
	assert.ErrorIs(t, err, apperrors.ErrUnknownTerm)
}
