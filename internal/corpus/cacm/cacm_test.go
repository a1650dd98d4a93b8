package cacm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

const sample = `.I 1
.T
Preliminary Report-International Algebraic Language
.B
CACM December, 1958
.A
Perlis, A. J.
.N
CA581203 JB March 22, 1978  8:28 PM
.X
100	5	1
.I 2
.T
Extraction of Roots by Repeated Subtractions
.W
The roots are extracted
by repeated subtractions.
.K
roots, subtraction
`

func TestParseMapsFieldCodes(t *testing.T) {
	recs, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "1", recs[0].ID)
	assert.Equal(t, "Preliminary Report-International Algebraic Language", recs[0].Title)
	assert.Equal(t, "CACM December, 1958", recs[0].PublicationDate)
	assert.Equal(t, "Perlis, A. J.", recs[0].Authors)
	assert.Equal(t, "100\t5\t1", recs[0].References)

	assert.Equal(t, "The roots are extracted\nby repeated subtractions.", recs[1].Summary)
	assert.Equal(t, "roots, subtraction", recs[1].KeyWords)
}

func TestLoadBuildsTermBagsFromIndexedFields(t *testing.T) {
	c, err := Load("cacm", strings.NewReader(sample), tokenizer.New(tokenizer.Options{}))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Size())

	doc, ok := c.Lookup("2")
	require.True(t, ok)
	assert.Equal(t, 3, doc.Terms["roots"])
	assert.Equal(t, 1, doc.Terms["subtraction"])
	_, hasStop := doc.Terms["the"]
	assert.False(t, hasStop)

	doc, _ = c.Lookup("1")
	_, hasAuthor := doc.Terms["perlis"]
	assert.False(t, hasAuthor, "authors are not indexed")
	assert.Equal(t, corpus.TermBag{"preliminary": 1, "report": 1, "international": 1, "algebraic": 1, "language": 1}, doc.Terms)
}

func TestParseRejectsContentBeforeFirstRecord(t *testing.T) {
	_, err := Parse(strings.NewReader("stray\n.I 1\n"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	_, err := Load("cacm", strings.NewReader(".I 1\n.T\na\n.I 1\n.T\nb\n"), tokenizer.New(tokenizer.Options{}))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateDocument)
}
