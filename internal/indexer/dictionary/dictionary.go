// Package dictionary assigns dense integer ids to terms. A Dictionary is
// built by a single writer before mapping starts and is read-only afterwards,
// so concurrent Lookup calls need no locking.
package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

type Dictionary struct {
	ids   map[string]index.TermID
	terms []string
}

func New() *Dictionary {
	return &Dictionary{ids: make(map[string]index.TermID)}
}

// Assign returns the id of term, allocating the next id on first sight.
func (d *Dictionary) Assign(term string) index.TermID {
	if id, ok := d.ids[term]; ok {
		return id
	}
	id := index.TermID(len(d.terms))
	d.ids[term] = id
	d.terms = append(d.terms, term)
	return id
}

// Lookup returns ErrUnknownTerm when term was never assigned.
func (d *Dictionary) Lookup(term string) (index.TermID, error) {
	id, ok := d.ids[term]
	if !ok {
		return 0, fmt.Errorf("term %q: %w", term, apperrors.ErrUnknownTerm)
	}
	return id, nil
}

// Term is the reverse of Lookup.
func (d *Dictionary) Term(id index.TermID) (string, bool) {
	if id < 0 || int(id) >= len(d.terms) {
		return "", false
	}
	return d.terms[id], true
}

func (d *Dictionary) Len() int {
	return len(d.terms)
}

// Terms returns every term ordered by id.
func (d *Dictionary) Terms() []string {
	return append([]string(nil), d.terms...)
}

// Build assigns ids for every term of every document, block by block in
// collection order. Terms inside a document are visited in sorted order so
// the same collection always yields the same ids. A document id seen in two
// blocks fails with ErrDuplicateDocument.
func Build(ctx context.Context, c corpus.Collection) (*Dictionary, error) {
	d := New()
	owner := make(map[string]string, c.Size())
	for _, block := range corpus.Blocks(c) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, doc := range block.Documents() {
			if prev, dup := owner[doc.ID]; dup {
				return nil, fmt.Errorf("document %q in blocks %s and %s: %w",
					doc.ID, prev, block.Name(), apperrors.ErrDuplicateDocument)
			}
			owner[doc.ID] = block.Name()
			for _, term := range doc.Terms.SortedTerms() {
				d.Assign(term)
			}
		}
	}
	return d, nil
}

// Save writes the term to id table as one JSON object.
func (d *Dictionary) Save(path string) error {
	data, err := json.Marshal(d.ids)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating dictionary directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming dictionary: %w", err)
	}
	return nil
}

// Load reads a table written by Save. Ids must be unique and cover 0..n-1.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	var ids map[string]index.TermID
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, apperrors.Corruptf("dictionary %s: %v", path, err)
	}
	terms := make([]string, len(ids))
	filled := make([]bool, len(ids))
	for term, id := range ids {
		if id < 0 || int(id) >= len(ids) {
			return nil, apperrors.Corruptf("dictionary %s: term %q has id %d outside 0..%d", path, term, id, len(ids)-1)
		}
		if filled[id] {
			return nil, apperrors.Corruptf("dictionary %s: id %d assigned to %q and %q", path, id, terms[id], term)
		}
		terms[id] = term
		filled[id] = true
	}
	return &Dictionary{ids: ids, terms: terms}, nil
}
