package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// RecordVersion is the only record schema version this build reads or writes.
const RecordVersion = 1

// record is the on-disk line form of a PostingList:
//
//	{"v":1,"t":42,"df":2,"p":[{"d":"7","f":3},{"d":"12","f":1}]}
type record struct {
	Version  *int      `json:"v"`
	TermID   *TermID   `json:"t"`
	DocFreq  *int      `json:"df"`
	Postings []Posting `json:"p"`
}

// MarshalRecord encodes pl as one newline-terminated line.
func MarshalRecord(pl PostingList) ([]byte, error) {
	if err := validate(pl); err != nil {
		return nil, err
	}
	v := RecordVersion
	postings := pl.Postings
	if postings == nil {
		postings = []Posting{}
	}
	data, err := json.Marshal(record{
		Version:  &v,
		TermID:   &pl.TermID,
		DocFreq:  &pl.DocFreq,
		Postings: postings,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling term %d: %w", pl.TermID, err)
	}
	return append(data, '\n'), nil
}

// UnmarshalRecord decodes one line, with or without its trailing newline.
// Unknown fields, missing fields, trailing data and any violated posting
// list invariant are reported as ErrCorruptIndexRecord.
func UnmarshalRecord(line []byte) (PostingList, error) {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	var rec record
	if err := dec.Decode(&rec); err != nil {
		return PostingList{}, apperrors.Corruptf("decoding record: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return PostingList{}, apperrors.Corruptf("trailing data after record")
	}
	switch {
	case rec.Version == nil || rec.TermID == nil || rec.DocFreq == nil || rec.Postings == nil:
		return PostingList{}, apperrors.Corruptf("record is missing a required field")
	case *rec.Version != RecordVersion:
		return PostingList{}, apperrors.Corruptf("unsupported record version %d", *rec.Version)
	}
	pl := PostingList{TermID: *rec.TermID, DocFreq: *rec.DocFreq, Postings: rec.Postings}
	if err := validate(pl); err != nil {
		return PostingList{}, err
	}
	return pl, nil
}

func validate(pl PostingList) error {
	if pl.TermID < 0 {
		return apperrors.Corruptf("negative term id %d", pl.TermID)
	}
	if pl.DocFreq != len(pl.Postings) {
		return apperrors.Corruptf("term %d: df %d != %d postings", pl.TermID, pl.DocFreq, len(pl.Postings))
	}
	seen := make(map[string]struct{}, len(pl.Postings))
	for _, p := range pl.Postings {
		if p.DocID == "" {
			return apperrors.Corruptf("term %d: empty document id", pl.TermID)
		}
		if p.Frequency < 1 {
			return apperrors.Corruptf("term %d: document %q has frequency %d", pl.TermID, p.DocID, p.Frequency)
		}
		if _, dup := seen[p.DocID]; dup {
			return apperrors.Corruptf("term %d: document %q listed twice", pl.TermID, p.DocID)
		}
		seen[p.DocID] = struct{}{}
	}
	return nil
}

// RecordWriter appends records to w and remembers the byte offset at which
// each line starts.
type RecordWriter struct {
	w       *bufio.Writer
	offset  int64
	offsets []int64
	track   bool
	count   int
}

// NewRecordWriter wraps w. When trackOffsets is set, Offsets returns the
// start of every written line followed by the end offset.
func NewRecordWriter(w io.Writer, trackOffsets bool) *RecordWriter {
	return &RecordWriter{w: bufio.NewWriterSize(w, 256*1024), track: trackOffsets}
}

func (rw *RecordWriter) Write(pl PostingList) error {
	line, err := MarshalRecord(pl)
	if err != nil {
		return err
	}
	if rw.track {
		rw.offsets = append(rw.offsets, rw.offset)
	}
	n, err := rw.w.Write(line)
	rw.offset += int64(n)
	rw.count++
	if err != nil {
		return fmt.Errorf("writing term %d: %w", pl.TermID, err)
	}
	return nil
}

func (rw *RecordWriter) Flush() error {
	return rw.w.Flush()
}

// Count is the number of records written so far.
func (rw *RecordWriter) Count() int {
	return rw.count
}

func (rw *RecordWriter) Offsets() []int64 {
	if !rw.track {
		return nil
	}
	return append(append([]int64(nil), rw.offsets...), rw.offset)
}

// RecordReader decodes records one line at a time.
type RecordReader struct {
	r    *bufio.Reader
	name string
	line int
}

// NewRecordReader reads records from r; name only labels errors.
func NewRecordReader(r io.Reader, name string) *RecordReader {
	return &RecordReader{r: bufio.NewReaderSize(r, 256*1024), name: name}
}

// Next returns the next record or io.EOF once the input is exhausted. Blank
// lines are corrupt.
func (rr *RecordReader) Next() (PostingList, error) {
	line, err := rr.r.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return PostingList{}, fmt.Errorf("reading %s: %w", rr.name, err)
	}
	if len(line) == 0 && errors.Is(err, io.EOF) {
		return PostingList{}, io.EOF
	}
	rr.line++
	pl, decErr := UnmarshalRecord(line)
	if decErr != nil {
		return PostingList{}, fmt.Errorf("%s line %d: %w", rr.name, rr.line, decErr)
	}
	return pl, nil
}

// Line is the 1-based number of the last line returned by Next.
func (rr *RecordReader) Line() int {
	return rr.line
}
