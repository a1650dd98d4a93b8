// Package corpus holds the document model consumed by the index builder: a
// Document is an id plus a term bag, and a Collection is a stable, keyed set
// of documents that may be split into named blocks.
package corpus

import (
	"fmt"
	"net/http"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// TermBag maps a normalized term to its occurrence count within one document.
type TermBag map[string]int

// Len is the document length: the sum of all counts.
func (b TermBag) Len() int {
	n := 0
	for _, c := range b {
		n += c
	}
	return n
}

// SortedTerms returns the bag's keys in ascending order.
func (b TermBag) SortedTerms() []string {
	terms := make([]string, 0, len(b))
	for t := range b {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Add increments the count of every given term.
func (b TermBag) Add(terms ...string) {
	for _, t := range terms {
		b[t]++
	}
}

type Document struct {
	ID    string
	Terms TermBag
}

// Collection is a read-only set of documents iterated in a stable order.
type Collection interface {
	Name() string
	Size() int
	Documents() []Document
	Lookup(id string) (Document, bool)
}

// Blocked is implemented by collections partitioned into sub-collections.
type Blocked interface {
	Blocks() []Collection
}

// Blocks returns the blocks of c, or c itself as the only block.
func Blocks(c Collection) []Collection {
	if b, ok := c.(Blocked); ok {
		return b.Blocks()
	}
	return []Collection{c}
}

// DocLen returns the length of document id, or 0 when c does not hold it.
func DocLen(c Collection, id string) int {
	doc, ok := c.Lookup(id)
	if !ok {
		return 0
	}
	return doc.Terms.Len()
}

// Stats answers ranking statistics from a loaded collection rather than
// from the lengths persisted next to an index.
type Stats struct {
	Collection
}

func (s Stats) DocLen(id string) int { return DocLen(s.Collection, id) }

// MemoryCollection keeps its documents in insertion order.
type MemoryCollection struct {
	name string
	docs []Document
	byID map[string]int
}

func NewMemoryCollection(name string) *MemoryCollection {
	return &MemoryCollection{
		name: name,
		byID: make(map[string]int),
	}
}

// Add appends doc. Ids must be non-empty and unique within the collection,
// and every count in the bag must be at least 1.
func (c *MemoryCollection) Add(doc Document) error {
	if doc.ID == "" {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "collection %s: empty document id", c.name)
	}
	if _, exists := c.byID[doc.ID]; exists {
		return fmt.Errorf("collection %s: document %q: %w", c.name, doc.ID, apperrors.ErrDuplicateDocument)
	}
	for term, count := range doc.Terms {
		if term == "" || count < 1 {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"collection %s: document %q has invalid term bag entry %q=%d", c.name, doc.ID, term, count)
		}
	}
	if doc.Terms == nil {
		doc.Terms = TermBag{}
	}
	c.byID[doc.ID] = len(c.docs)
	c.docs = append(c.docs, doc)
	return nil
}

func (c *MemoryCollection) Name() string { return c.name }

func (c *MemoryCollection) Size() int { return len(c.docs) }

func (c *MemoryCollection) Documents() []Document { return c.docs }

func (c *MemoryCollection) Lookup(id string) (Document, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Document{}, false
	}
	return c.docs[i], true
}

// MetaCollection aggregates blocks. Lookup returns the first block's match.
type MetaCollection struct {
	name   string
	blocks []Collection
}

func NewMetaCollection(name string, blocks ...Collection) *MetaCollection {
	return &MetaCollection{name: name, blocks: blocks}
}

func (m *MetaCollection) Name() string { return m.name }

func (m *MetaCollection) Blocks() []Collection { return m.blocks }

func (m *MetaCollection) Size() int {
	n := 0
	for _, b := range m.blocks {
		n += b.Size()
	}
	return n
}

func (m *MetaCollection) Documents() []Document {
	docs := make([]Document, 0, m.Size())
	for _, b := range m.blocks {
		docs = append(docs, b.Documents()...)
	}
	return docs
}

func (m *MetaCollection) Lookup(id string) (Document, bool) {
	for _, b := range m.blocks {
		if doc, ok := b.Lookup(id); ok {
			return doc, true
		}
	}
	return Document{}, false
}

// Partition splits c into consecutive blocks of at most size documents.
// A non-positive size, or an already blocked collection, returns c unchanged.
func Partition(c Collection, size int) Collection {
	if size <= 0 || c.Size() <= size {
		return c
	}
	if _, ok := c.(Blocked); ok {
		return c
	}
	docs := c.Documents()
	blocks := make([]Collection, 0, (len(docs)+size-1)/size)
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		block := NewMemoryCollection(fmt.Sprintf("%s-%04d", c.Name(), len(blocks)))
		for _, doc := range docs[start:end] {
			// ids are already unique within c
			block.byID[doc.ID] = len(block.docs)
			block.docs = append(block.docs, doc)
		}
		blocks = append(blocks, block)
	}
	return NewMetaCollection(c.Name(), blocks...)
}
