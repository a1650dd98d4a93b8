package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorUnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("decoding line 3: %w", Corruptf("df %d != postings %d", 2, 1))

	assert.True(t, Is(err, ErrCorruptIndexRecord))
	assert.False(t, Is(err, ErrParse))
	assert.Contains(t, err.Error(), "corrupt index record: df 2 != postings 1")
}

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"parse app error", Parsef("expected ')'"), http.StatusBadRequest},
		{"weight app error", InvalidWeightf("df is 0"), http.StatusUnprocessableEntity},
		{"wrapped sentinel", fmt.Errorf("lookup: %w", ErrUnknownTerm), http.StatusNotFound},
		{"not ready", ErrIndexNotReady, http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusCode(tc.err))
		})
	}
}
