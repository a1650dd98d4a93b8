// Package merge combines sorted partial posting files into one file sorted
// by term id. Memory is bounded by one record per open input.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

type Options struct {
	// FanIn caps the number of files open at once. Zero merges every input
	// in one pass; otherwise it must be at least 2.
	FanIn int
	// TempDir receives intermediate files; defaults to the output directory.
	TempDir string
	// TrackOffsets records the byte offset of every output line.
	TrackOffsets bool
	Metrics      *metrics.Metrics
}

type Stats struct {
	Inputs     int
	Passes     int
	Terms      int
	Postings   int
	LastTermID index.TermID
	// Offsets has one entry per output line plus the end offset, when
	// TrackOffsets is set.
	Offsets  []int64
	Duration time.Duration
}

// Reduce merges inputs into outputPath. Records sharing a term id are
// combined by summing document frequencies and concatenating postings in
// input order. The inputs themselves are left in place.
func Reduce(ctx context.Context, inputs []string, outputPath string, opts Options) (Stats, error) {
	start := time.Now()
	logger := slog.Default().With("component", "merger")
	if opts.FanIn != 0 && opts.FanIn < 2 {
		return Stats{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "fan-in must be 0 or at least 2, got %d", opts.FanIn)
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = filepath.Dir(outputPath)
	}

	stats := Stats{Inputs: len(inputs), LastTermID: -1}
	current := inputs
	var intermediates []string
	defer func() {
		for _, p := range intermediates {
			os.Remove(p)
		}
	}()

	for opts.FanIn > 0 && len(current) > opts.FanIn {
		stats.Passes++
		next := make([]string, 0, (len(current)+opts.FanIn-1)/opts.FanIn)
		for i := 0; i < len(current); i += opts.FanIn {
			group := current[i:min(i+opts.FanIn, len(current))]
			path := filepath.Join(tempDir, fmt.Sprintf("merge-p%d-%05d.part", stats.Passes, len(next)))
			intermediates = append(intermediates, path)
			pass, err := mergeOnce(ctx, group, path, false)
			if err != nil {
				return Stats{}, err
			}
			opts.Metrics.Merged(pass.Terms, pass.Postings)
			next = append(next, path)
		}
		logger.Debug("intermediate merge pass complete",
			"pass", stats.Passes,
			"inputs", len(current),
			"outputs", len(next),
		)
		current = next
	}

	stats.Passes++
	final, err := mergeOnce(ctx, current, outputPath, opts.TrackOffsets)
	if err != nil {
		return Stats{}, err
	}
	opts.Metrics.Merged(final.Terms, final.Postings)
	stats.Terms = final.Terms
	stats.Postings = final.Postings
	stats.LastTermID = final.LastTermID
	stats.Offsets = final.Offsets
	stats.Duration = time.Since(start)
	logger.Info("merge complete",
		"inputs", stats.Inputs,
		"passes", stats.Passes,
		"terms", stats.Terms,
		"postings", stats.Postings,
		"duration", stats.Duration,
	)
	return stats, nil
}

// mergeOnce is a single k-way pass over inputs.
func mergeOnce(ctx context.Context, inputs []string, outputPath string, trackOffsets bool) (Stats, error) {
	stats := Stats{LastTermID: -1}
	buffers := make([]*buffer, 0, len(inputs))
	defer func() {
		for _, b := range buffers {
			b.close()
		}
	}()
	heap := binaryheap.NewWith(bufferComparator)
	for i, path := range inputs {
		b, err := openBuffer(i, path)
		if err != nil {
			return Stats{}, err
		}
		buffers = append(buffers, b)
		if err := b.fill(); err != nil {
			return Stats{}, err
		}
		if b.filled {
			heap.Push(b)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return Stats{}, fmt.Errorf("creating merge output directory: %w", err)
	}
	tmpPath := outputPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Stats{}, fmt.Errorf("creating merge output: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()
	w := index.NewRecordWriter(f, trackOffsets)

	group := make([]*buffer, 0, len(buffers))
	for !heap.Empty() {
		if stats.Terms%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return Stats{}, err
			}
		}
		group = group[:0]
		top, _ := heap.Pop()
		group = append(group, top.(*buffer))
		termID := group[0].head.TermID
		for {
			peek, ok := heap.Peek()
			if !ok || peek.(*buffer).head.TermID != termID {
				break
			}
			heap.Pop()
			group = append(group, peek.(*buffer))
		}

		combined, err := combine(group)
		if err != nil {
			return Stats{}, err
		}
		if err := w.Write(combined); err != nil {
			return Stats{}, err
		}
		stats.Terms++
		stats.Postings += combined.DocFreq
		stats.LastTermID = termID

		for _, b := range group {
			if err := b.fill(); err != nil {
				return Stats{}, err
			}
			if b.filled {
				heap.Push(b)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return Stats{}, fmt.Errorf("flushing merge output: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Stats{}, fmt.Errorf("syncing merge output: %w", err)
	}
	if err := f.Close(); err != nil {
		return Stats{}, fmt.Errorf("closing merge output: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return Stats{}, fmt.Errorf("renaming merge output: %w", err)
	}
	stats.Inputs = len(inputs)
	stats.Passes = 1
	stats.Offsets = w.Offsets()
	return stats, nil
}

// combine merges the heads of buffers that share one term id. A document
// listed by two inputs means the partitions overlapped.
func combine(group []*buffer) (index.PostingList, error) {
	if len(group) == 1 {
		return group[0].head, nil
	}
	out := index.PostingList{TermID: group[0].head.TermID}
	total := 0
	for _, b := range group {
		total += b.head.DocFreq
	}
	out.Postings = make([]index.Posting, 0, total)
	seen := make(map[string]string, total)
	for _, b := range group {
		for _, p := range b.head.Postings {
			if prev, dup := seen[p.DocID]; dup {
				return index.PostingList{}, fmt.Errorf("term %d: document %q in %s and %s: %w",
					out.TermID, p.DocID, prev, b.path, apperrors.ErrCorruptIndexRecord)
			}
			seen[p.DocID] = b.path
			out.Postings = append(out.Postings, p)
		}
		out.DocFreq += b.head.DocFreq
	}
	return out, nil
}
