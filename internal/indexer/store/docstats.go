package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// DocStats carries what the vector ranker needs from the collection: its
// size and every document length.
type DocStats struct {
	N       int            `json:"n"`
	Lengths map[string]int `json:"lengths"`
}

func NewDocStats(c corpus.Collection) *DocStats {
	docs := c.Documents()
	s := &DocStats{N: len(docs), Lengths: make(map[string]int, len(docs))}
	for _, doc := range docs {
		s.Lengths[doc.ID] = doc.Terms.Len()
	}
	return s
}

func (s *DocStats) Size() int {
	return s.N
}

func (s *DocStats) DocLen(id string) int {
	return s.Lengths[id]
}

func (s *DocStats) Save(path string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling doc stats: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing doc stats: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming doc stats: %w", err)
	}
	return nil
}

func LoadDocStats(path string) (*DocStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading doc stats: %w", err)
	}
	var s DocStats
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperrors.Corruptf("doc stats %s: %v", path, err)
	}
	if s.N != len(s.Lengths) {
		return nil, apperrors.Corruptf("doc stats %s: n=%d but %d lengths", path, s.N, len(s.Lengths))
	}
	return &s, nil
}
