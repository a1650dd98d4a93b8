// Package mapper turns one block of documents into a partial posting file
// sorted by term id. Only one block's postings are held in memory at a time.
package mapper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

type Stats struct {
	Block     string
	Path      string
	Documents int
	Terms     int
	Postings  int
}

// BlockIndex accumulates postings for one block keyed by term id.
type BlockIndex struct {
	lists    map[index.TermID]*index.PostingList
	docCount int
	postings int
}

func NewBlockIndex() *BlockIndex {
	return &BlockIndex{lists: make(map[index.TermID]*index.PostingList)}
}

// AddDocument appends one posting per term of doc. Every term must already
// be in dict; a missing one is ErrDictionaryInconsistency.
func (b *BlockIndex) AddDocument(dict *dictionary.Dictionary, doc corpus.Document) error {
	for term, freq := range doc.Terms {
		id, err := dict.Lookup(term)
		if err != nil {
			return fmt.Errorf("document %q term %q: %w", doc.ID, term, apperrors.ErrDictionaryInconsistency)
		}
		pl, ok := b.lists[id]
		if !ok {
			pl = &index.PostingList{TermID: id}
			b.lists[id] = pl
		}
		pl.Postings = append(pl.Postings, index.Posting{DocID: doc.ID, Frequency: freq})
		pl.DocFreq++
		b.postings++
	}
	b.docCount++
	return nil
}

// Snapshot returns the accumulated posting lists ascending by term id.
func (b *BlockIndex) Snapshot() []index.PostingList {
	lists := make([]index.PostingList, 0, len(b.lists))
	for _, pl := range b.lists {
		lists = append(lists, *pl)
	}
	sort.Slice(lists, func(i, j int) bool {
		return lists[i].TermID < lists[j].TermID
	})
	return lists
}

func (b *BlockIndex) DocCount() int { return b.docCount }

func (b *BlockIndex) TermCount() int { return len(b.lists) }

func (b *BlockIndex) PostingCount() int { return b.postings }

// Map indexes block and writes its partial posting file to outputPath,
// replacing any existing file. The file appears only once fully written.
func Map(ctx context.Context, dict *dictionary.Dictionary, block corpus.Collection, outputPath string) (Stats, error) {
	bi := NewBlockIndex()
	for i, doc := range block.Documents() {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return Stats{}, err
			}
		}
		if err := bi.AddDocument(dict, doc); err != nil {
			return Stats{}, fmt.Errorf("mapping block %s: %w", block.Name(), err)
		}
	}
	if err := writePartial(bi.Snapshot(), outputPath); err != nil {
		return Stats{}, fmt.Errorf("mapping block %s: %w", block.Name(), err)
	}
	return Stats{
		Block:     block.Name(),
		Path:      outputPath,
		Documents: bi.DocCount(),
		Terms:     bi.TermCount(),
		Postings:  bi.PostingCount(),
	}, nil
}

func writePartial(lists []index.PostingList, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("creating partial directory: %w", err)
	}
	tmpPath := outputPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating partial file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	w := index.NewRecordWriter(f, false)
	for _, pl := range lists {
		if err := w.Write(pl); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing partial file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing partial file: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return fmt.Errorf("renaming partial file: %w", err)
	}
	return nil
}
