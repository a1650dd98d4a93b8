// Package store opens a merged index generation for querying. Eager mode
// decodes every posting list up front; lazy mode keeps only the dictionary
// and a line offset table and decodes one record per lookup with ReadAt.
// Both modes are immutable once open and safe for concurrent readers.
package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/dictionary"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

type Mode string

const (
	Eager Mode = "eager"
	Lazy  Mode = "lazy"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Eager, Lazy:
		return Mode(s), nil
	default:
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown index mode %q", s)
	}
}

type Option func(*ReverseIndex)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *ReverseIndex) { r.metrics = m }
}

type ReverseIndex struct {
	name    string
	mode    Mode
	files   Files
	dict    *dictionary.Dictionary
	stats   *DocStats
	metrics *metrics.Metrics
	logger  *slog.Logger

	// eager
	lists []index.PostingList

	// lazy
	file    *os.File
	offsets []int64
}

// Open loads the generation name from dir. The record on line i must carry
// term id i and there must be exactly one line per dictionary entry.
func Open(dir, name string, mode Mode, opts ...Option) (*ReverseIndex, error) {
	r := &ReverseIndex{
		name:   name,
		mode:   mode,
		files:  FilesFor(dir, name),
		logger: slog.Default().With("component", "index-store", "index", name, "mode", string(mode)),
	}
	for _, opt := range opts {
		opt(r)
	}
	dict, err := dictionary.Load(r.files.Dict)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", name, err)
	}
	r.dict = dict
	stats, err := LoadDocStats(r.files.Docs)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", name, err)
	}
	r.stats = stats

	switch mode {
	case Eager:
		err = r.loadEager()
	case Lazy:
		err = r.openLazy()
	default:
		_, err = ParseMode(string(mode))
	}
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", name, err)
	}
	r.metrics.IndexLoaded(dict.Len())
	r.logger.Info("index opened", "terms", dict.Len(), "documents", stats.N)
	return r, nil
}

func (r *ReverseIndex) loadEager() error {
	f, err := os.Open(r.files.Index)
	if err != nil {
		return fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()
	lists := make([]index.PostingList, 0, r.dict.Len())
	err = readRecords(f, r.files.Index, func(pl index.PostingList) error {
		if int(pl.TermID) != len(lists) {
			return apperrors.Corruptf("line %d holds term %d", len(lists), pl.TermID)
		}
		lists = append(lists, pl)
		return nil
	})
	if err != nil {
		return err
	}
	if len(lists) != r.dict.Len() {
		return apperrors.Corruptf("index has %d records for %d terms", len(lists), r.dict.Len())
	}
	r.lists = lists
	return nil
}

func (r *ReverseIndex) openLazy() error {
	f, err := os.Open(r.files.Index)
	if err != nil {
		return fmt.Errorf("opening index file: %w", err)
	}
	offsets, err := ReadOffsets(r.files.Offsets)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("offsets sidecar missing, scanning index file")
		offsets, err = ScanOffsets(f)
	}
	if err != nil {
		f.Close()
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat index file: %w", err)
	}
	switch {
	case len(offsets)-1 != r.dict.Len():
		f.Close()
		return apperrors.Corruptf("offset table has %d lines for %d terms", len(offsets)-1, r.dict.Len())
	case offsets[len(offsets)-1] != info.Size():
		f.Close()
		return apperrors.Corruptf("offset table ends at %d, index file is %d bytes", offsets[len(offsets)-1], info.Size())
	}
	r.file = f
	r.offsets = offsets
	return nil
}

// Get returns the posting list of term. An unknown term yields
// ErrUnknownTerm, never an empty list. The returned list is shared and must
// not be modified.
func (r *ReverseIndex) Get(term string) (index.PostingList, error) {
	id, err := r.dict.Lookup(term)
	if err != nil {
		r.metrics.IndexLookup(string(r.mode), "unknown_term")
		return index.PostingList{}, err
	}
	pl, err := r.GetID(id)
	if err != nil {
		r.metrics.IndexLookup(string(r.mode), "error")
		return index.PostingList{}, err
	}
	r.metrics.IndexLookup(string(r.mode), "hit")
	return pl, nil
}

// GetID reads the record on line id.
func (r *ReverseIndex) GetID(id index.TermID) (index.PostingList, error) {
	if id < 0 || int(id) >= r.dict.Len() {
		return index.PostingList{}, fmt.Errorf("term id %d: %w", id, apperrors.ErrUnknownTerm)
	}
	if r.mode == Eager {
		return r.lists[id], nil
	}
	start, end := r.offsets[id], r.offsets[id+1]
	buf := make([]byte, end-start)
	if _, err := r.file.ReadAt(buf, start); err != nil {
		return index.PostingList{}, fmt.Errorf("reading term %d: %w", id, err)
	}
	pl, err := index.UnmarshalRecord(buf)
	if err != nil {
		return index.PostingList{}, fmt.Errorf("%s line %d: %w", r.files.Index, id, err)
	}
	if pl.TermID != id {
		return index.PostingList{}, apperrors.Corruptf("%s line %d holds term %d", r.files.Index, id, pl.TermID)
	}
	return pl, nil
}

// Keys returns every indexed term ordered by term id.
func (r *ReverseIndex) Keys() []string {
	return r.dict.Terms()
}

func (r *ReverseIndex) Size() int {
	return r.dict.Len()
}

// ForEach calls fn for every record in term id order and stops at the first
// error. Lazy mode streams the file sequentially.
func (r *ReverseIndex) ForEach(fn func(term string, pl index.PostingList) error) error {
	if r.mode == Eager {
		for _, pl := range r.lists {
			term, _ := r.dict.Term(pl.TermID)
			if err := fn(term, pl); err != nil {
				return err
			}
		}
		return nil
	}
	section := io.NewSectionReader(r.file, 0, r.offsets[len(r.offsets)-1])
	return readRecords(section, r.files.Index, func(pl index.PostingList) error {
		term, ok := r.dict.Term(pl.TermID)
		if !ok {
			return apperrors.Corruptf("%s: term %d not in dictionary", r.files.Index, pl.TermID)
		}
		return fn(term, pl)
	})
}

func (r *ReverseIndex) Stats() *DocStats { return r.stats }

func (r *ReverseIndex) Name() string { return r.name }

func (r *ReverseIndex) Mode() Mode { return r.mode }

func (r *ReverseIndex) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func readRecords(src io.Reader, name string, fn func(index.PostingList) error) error {
	rr := index.NewRecordReader(src, name)
	for {
		pl, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(pl); err != nil {
			return err
		}
	}
}
