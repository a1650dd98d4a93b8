package merge

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

func p(doc string, f int) index.Posting { return index.Posting{DocID: doc, Frequency: f} }

func list(id index.TermID, postings ...index.Posting) index.PostingList {
	return index.PostingList{TermID: id, DocFreq: len(postings), Postings: postings}
}

func writeInput(t *testing.T, dir, name string, lists ...index.PostingList) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := index.NewRecordWriter(f, false)
	for _, pl := range lists {
		require.NoError(t, w.Write(pl))
	}
	require.NoError(t, w.Flush())
	return path
}

func writeRaw(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readOutput(t *testing.T, path string) []index.PostingList {
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

// asSets drops posting order so results from different partitions compare.
func asSets(lists []index.PostingList) map[index.TermID]map[string]int {
	out := make(map[index.TermID]map[string]int, len(lists))
	for _, pl := range lists {
		out[pl.TermID] = pl.Frequencies()
	}
	return out
}

func TestReduceCombinesSharedTerms(t *testing.T) {
	dir := t.TempDir()
	a := writeInput(t, dir, "a.part", list(0, p("1", 2)), list(2, p("1", 1)))
	b := writeInput(t, dir, "b.part", list(0, p("3", 1)), list(1, p("3", 4)), list(2, p("4", 1)))
	c := writeInput(t, dir, "c.part", list(2, p("5", 7)))

	out := filepath.Join(dir, "out", "merged.index")
	stats, err := Reduce(context.Background(), []string{a, b, c}, out, Options{TrackOffsets: true})
	require.NoError(t, err)

	got := readOutput(t, out)
	want := []index.PostingList{
		list(0, p("1", 2), p("3", 1)),
		list(1, p("3", 4)),
		list(2, p("1", 1), p("4", 1), p("5", 7)),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged output mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, stats.Terms)
	assert.Equal(t, 6, stats.Postings)
	assert.Equal(t, index.TermID(2), stats.LastTermID)
	assert.Equal(t, 1, stats.Passes)
	require.Len(t, stats.Offsets, 4)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), stats.Offsets[3])
}

func TestReduceOutputStrictlyAscending(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for i := 0; i < 5; i++ {
		var lists []index.PostingList
		for id := index.TermID(i); id < 40; id += index.TermID(i + 1) {
			lists = append(lists, list(id, p(string(rune('a'+i)), 1)))
		}
		inputs = append(inputs, writeInput(t, dir, filepath.Base(t.Name())+string(rune('0'+i)), lists...))
	}
	out := filepath.Join(dir, "merged.index")
	_, err := Reduce(context.Background(), inputs, out, Options{})
	require.NoError(t, err)

	got := readOutput(t, out)
	ids := make([]int, len(got))
	for i, pl := range got {
		ids[i] = int(pl.TermID)
	}
	assert.True(t, sort.IntsAreSorted(ids))
	for i := 1; i < len(ids); i++ {
		assert.NotEqual(t, ids[i-1], ids[i])
	}
}

func TestReduceFanInMatchesSinglePass(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for i := 0; i < 7; i++ {
		doc := string(rune('a' + i))
		inputs = append(inputs, writeInput(t, dir, "in-"+doc,
			list(0, p(doc, 1)),
			list(index.TermID(1+i%3), p(doc, i+1)),
			list(10, p(doc, 2)),
		))
	}

	single := filepath.Join(dir, "single.index")
	_, err := Reduce(context.Background(), inputs, single, Options{})
	require.NoError(t, err)

	tmp := filepath.Join(dir, "tmp")
	require.NoError(t, os.MkdirAll(tmp, 0o755))
	multi := filepath.Join(dir, "multi.index")
	stats, err := Reduce(context.Background(), inputs, multi, Options{FanIn: 2, TempDir: tmp})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Passes) // 7 -> 4 -> 2 -> final

	if diff := cmp.Diff(asSets(readOutput(t, single)), asSets(readOutput(t, multi))); diff != "" {
		t.Errorf("fan-in merge differs (-single +multi):\n%s", diff)
	}
	leftovers, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "intermediate files are removed")
	for _, in := range inputs {
		_, err := os.Stat(in)
		assert.NoError(t, err, "inputs are left in place")
	}
}

func TestReduceRejectsUnsortedInput(t *testing.T) {
	dir := t.TempDir()
	bad := writeInput(t, dir, "bad.part", list(3, p("1", 1)), list(1, p("2", 1)))
	_, err := Reduce(context.Background(), []string{bad}, filepath.Join(dir, "out"), Options{})
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndexRecord)
	_, statErr := os.Stat(filepath.Join(dir, "out"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestReduceRejectsCorruptLine(t *testing.T) {
	dir := t.TempDir()
	good := writeInput(t, dir, "good.part", list(0, p("1", 1)))
	bad := writeRaw(t, dir, "bad.part", `{"v":1,"t":0,"df":1,"p":[{"d":"2","f":1}]}`+"\n"+`[1, [1, [["3", 1]]]]`+"\n")
	_, err := Reduce(context.Background(), []string{good, bad}, filepath.Join(dir, "out"), Options{})
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndexRecord)
}

func TestReduceRejectsOverlappingDocuments(t *testing.T) {
	dir := t.TempDir()
	a := writeInput(t, dir, "a.part", list(0, p("1", 1)))
	b := writeInput(t, dir, "b.part", list(0, p("1", 2)))
	_, err := Reduce(context.Background(), []string{a, b}, filepath.Join(dir, "out"), Options{})
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndexRecord)
}

func TestReduceRejectsFanInOfOne(t *testing.T) {
	_, err := Reduce(context.Background(), nil, filepath.Join(t.TempDir(), "out"), Options{FanIn: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestReduceEmptyInputs(t *testing.T) {
	dir := t.TempDir()
	empty := writeRaw(t, dir, "empty.part", "")
	out := filepath.Join(dir, "out")
	stats, err := Reduce(context.Background(), []string{empty}, out, Options{TrackOffsets: true})
	require.NoError(t, err)
	assert.Zero(t, stats.Terms)
	assert.Equal(t, []int64{0}, stats.Offsets)
}
