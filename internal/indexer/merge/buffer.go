package merge

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// buffer holds the next unconsumed record of one sorted input file.
type buffer struct {
	pos    int
	path   string
	file   *os.File
	reader *index.RecordReader
	head   index.PostingList
	filled bool
	last   index.TermID
	read   int
}

func openBuffer(pos int, path string) (*buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening merge input: %w", err)
	}
	return &buffer{
		pos:    pos,
		path:   path,
		file:   f,
		reader: index.NewRecordReader(f, path),
		last:   -1,
	}, nil
}

// fill loads the next record. It leaves filled false once the input is
// exhausted and rejects inputs that are not strictly ascending.
func (b *buffer) fill() error {
	pl, err := b.reader.Next()
	if errors.Is(err, io.EOF) {
		b.filled = false
		return nil
	}
	if err != nil {
		return err
	}
	if pl.TermID <= b.last {
		return fmt.Errorf("%s line %d: term %d after %d: %w",
			b.path, b.reader.Line(), pl.TermID, b.last, apperrors.ErrCorruptIndexRecord)
	}
	b.last = pl.TermID
	b.head = pl
	b.filled = true
	b.read++
	return nil
}

func (b *buffer) close() error {
	return b.file.Close()
}

// bufferComparator orders buffers by head term id, then by input position
// so that combined postings keep input order.
func bufferComparator(a, b interface{}) int {
	x := a.(*buffer)
	y := b.(*buffer)
	switch {
	case x.head.TermID < y.head.TermID:
		return -1
	case x.head.TermID > y.head.TermID:
		return 1
	case x.pos < y.pos:
		return -1
	case x.pos > y.pos:
		return 1
	default:
		return 0
	}
}
