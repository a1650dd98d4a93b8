// Package cacm reads the CACM test collection. Each record starts with an
// ".I <id>" line; field markers such as ".T" or ".W" sit on their own line
// and every following line belongs to that field until the next marker.
package cacm

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

type field int

const (
	fieldNone field = iota
	fieldTitle
	fieldSummary
	fieldPublicationDate
	fieldAuthors
	fieldAddDate
	fieldReferences
	fieldKeyWords
	fieldCitations
)

var fieldCodes = map[string]field{
	".T": fieldTitle,
	".W": fieldSummary,
	".B": fieldPublicationDate,
	".A": fieldAuthors,
	".N": fieldAddDate,
	".X": fieldReferences,
	".K": fieldKeyWords,
	".C": fieldCitations,
}

// Record is one parsed CACM entry. Only Title, Summary and KeyWords feed the
// term bag.
type Record struct {
	ID              string
	Title           string
	Summary         string
	PublicationDate string
	Authors         string
	AddDate         string
	References      string
	KeyWords        string
	Citations       string
}

func (r *Record) appendLine(f field, line string) {
	var dst *string
	switch f {
	case fieldTitle:
		dst = &r.Title
	case fieldSummary:
		dst = &r.Summary
	case fieldPublicationDate:
		dst = &r.PublicationDate
	case fieldAuthors:
		dst = &r.Authors
	case fieldAddDate:
		dst = &r.AddDate
	case fieldReferences:
		dst = &r.References
	case fieldKeyWords:
		dst = &r.KeyWords
	case fieldCitations:
		dst = &r.Citations
	default:
		return
	}
	if *dst == "" {
		*dst = line
	} else {
		*dst += "\n" + line
	}
}

// Parse reads every record from r in file order.
func Parse(r io.Reader) ([]Record, error) {
	var (
		records []Record
		current *Record
		active  = fieldNone
		lineNo  int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, ".I") && (len(line) == 2 || line[2] == ' ') {
			id := strings.TrimSpace(line[2:])
			if id == "" {
				return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
					"cacm line %d: record marker without id", lineNo)
			}
			records = append(records, Record{ID: id})
			current = &records[len(records)-1]
			active = fieldNone
			continue
		}
		if f, ok := fieldCodes[strings.TrimSpace(line)]; ok {
			active = f
			continue
		}
		if current == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"cacm line %d: content before first .I marker", lineNo)
		}
		current.appendLine(active, strings.TrimSpace(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning cacm input: %w", err)
	}
	return records, nil
}

// Load parses r and builds a collection whose term bags come from the
// title, summary and keyword fields.
func Load(name string, r io.Reader, tk *tokenizer.Tokenizer) (*corpus.MemoryCollection, error) {
	records, err := Parse(r)
	if err != nil {
		return nil, err
	}
	c := corpus.NewMemoryCollection(name)
	for _, rec := range records {
		doc := corpus.Document{
			ID:    rec.ID,
			Terms: tk.Bag(rec.Title, rec.Summary, rec.KeyWords),
		}
		if err := c.Add(doc); err != nil {
			return nil, fmt.Errorf("loading cacm record: %w", err)
		}
	}
	return c, nil
}

func LoadFile(name, path string, tk *tokenizer.Tokenizer) (*corpus.MemoryCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cacm file: %w", err)
	}
	defer f.Close()
	return Load(name, f, tk)
}
