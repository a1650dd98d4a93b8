package index

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

func TestMarshalRecordFormat(t *testing.T) {
	line, err := MarshalRecord(PostingList{
		TermID:   3,
		DocFreq:  2,
		Postings: []Posting{{DocID: "7", Frequency: 3}, {DocID: "12", Frequency: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"v":1,"t":3,"df":2,"p":[{"d":"7","f":3},{"d":"12","f":1}]}`+"\n", string(line))

	pl, err := UnmarshalRecord(line)
	require.NoError(t, err)
	assert.Equal(t, TermID(3), pl.TermID)
	assert.Equal(t, map[string]int{"7": 3, "12": 1}, pl.Frequencies())
}

func TestUnmarshalRecordRejectsMalformedLines(t *testing.T) {
	cases := map[string]string{
		"not json":        `[3,[2,[["7",3]]]]`,
		"truncated":       `{"v":1,"t":3,"df":1,"p":[{"d":"7","f":3}`,
		"unknown field":   `{"v":1,"t":3,"df":1,"p":[{"d":"7","f":3}],"x":1}`,
		"unknown posting": `{"v":1,"t":3,"df":1,"p":[{"d":"7","f":3,"pos":[1]}]}`,
		"missing df":      `{"v":1,"t":3,"p":[{"d":"7","f":3}]}`,
		"missing p":       `{"v":1,"t":3,"df":0}`,
		"bad version":     `{"v":2,"t":3,"df":1,"p":[{"d":"7","f":3}]}`,
		"negative term":   `{"v":1,"t":-1,"df":1,"p":[{"d":"7","f":3}]}`,
		"df mismatch":     `{"v":1,"t":3,"df":2,"p":[{"d":"7","f":3}]}`,
		"zero frequency":  `{"v":1,"t":3,"df":1,"p":[{"d":"7","f":0}]}`,
		"empty doc id":    `{"v":1,"t":3,"df":1,"p":[{"d":"","f":1}]}`,
		"duplicate doc":   `{"v":1,"t":3,"df":2,"p":[{"d":"7","f":1},{"d":"7","f":2}]}`,
		"trailing value":  `{"v":1,"t":3,"df":1,"p":[{"d":"7","f":3}]} {}`,
		"blank":           ``,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalRecord([]byte(line))
			assert.ErrorIs(t, err, apperrors.ErrCorruptIndexRecord)
		})
	}
}

func TestMarshalRecordValidates(t *testing.T) {
	_, err := MarshalRecord(PostingList{TermID: 1, DocFreq: 3, Postings: []Posting{{DocID: "a", Frequency: 1}}})
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndexRecord)
}

func TestRecordWriterTracksOffsets(t *testing.T) {
	var buf bytes.Buffer
	w := NewRecordWriter(&buf, true)
	lists := []PostingList{
		{TermID: 0, DocFreq: 1, Postings: []Posting{{DocID: "1", Frequency: 2}}},
		{TermID: 1, DocFreq: 2, Postings: []Posting{{DocID: "1", Frequency: 1}, {DocID: "2", Frequency: 5}}},
	}
	for _, pl := range lists {
		require.NoError(t, w.Write(pl))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, 2, w.Count())

	offsets := w.Offsets()
	require.Len(t, offsets, 3)
	assert.EqualValues(t, 0, offsets[0])
	assert.EqualValues(t, buf.Len(), offsets[2])

	second, err := UnmarshalRecord(buf.Bytes()[offsets[1]:offsets[2]])
	require.NoError(t, err)
	assert.Equal(t, TermID(1), second.TermID)
}

func TestRecordReaderStreamsAndReportsLine(t *testing.T) {
	input := `{"v":1,"t":0,"df":1,"p":[{"d":"1","f":1}]}
{"v":1,"t":1,"df":1,"p":[{"d":"2","f":1}]}
{"v":1,"t":2,"df":1,"p":[{"d":"3"}]}
`
	r := NewRecordReader(strings.NewReader(input), "part-0")
	for want := TermID(0); want < 2; want++ {
		pl, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, want, pl.TermID)
	}
	_, err := r.Next()
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndexRecord)
	assert.ErrorContains(t, err, "part-0 line 3")
}

func TestRecordReaderAcceptsMissingFinalNewline(t *testing.T) {
	r := NewRecordReader(strings.NewReader(`{"v":1,"t":0,"df":1,"p":[{"d":"1","f":1}]}`), "x")
	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}
