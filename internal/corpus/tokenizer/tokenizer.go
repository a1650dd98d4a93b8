// Package tokenizer turns raw field text into normalized terms. It lower-cases
// input, splits on non-alphanumeric boundaries, removes stop-words and
// optionally applies the Snowball English stemmer.
package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
)

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

type Options struct {
	// StopWords replaces the built-in English list when non-nil.
	StopWords []string
	Stem      bool
	// MinLength drops shorter tokens; zero keeps everything.
	MinLength int
}

type Tokenizer struct {
	stop      map[string]struct{}
	stem      bool
	minLength int
}

func New(opts Options) *Tokenizer {
	words := opts.StopWords
	if words == nil {
		words = defaultStopWords
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			stop[w] = struct{}{}
		}
	}
	return &Tokenizer{stop: stop, stem: opts.Stem, minLength: opts.MinLength}
}

// LoadStopList reads one stop word per line.
func LoadStopList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop list: %w", err)
	}
	defer f.Close()
	return ReadStopList(f)
}

func ReadStopList(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stop list: %w", err)
	}
	return words, nil
}

// Tokenize breaks text into lowercased Tokens with stop-words removed.
func (t *Tokenizer) Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		term := t.normalize(word)
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: pos})
		pos++
	}
	return tokens
}

// Bag tokenizes every field and counts the resulting terms.
func (t *Tokenizer) Bag(fields ...string) corpus.TermBag {
	bag := corpus.TermBag{}
	for _, field := range fields {
		for _, tok := range t.Tokenize(field) {
			bag[tok.Term]++
		}
	}
	return bag
}

// Normalize maps a single query word onto the form used at index time. Stop
// words are kept so that an explicit boolean leaf still resolves to a term.
func (t *Tokenizer) Normalize(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if t.stem && word != "" {
		return t.stemWord(word)
	}
	return word
}

func (t *Tokenizer) normalize(word string) string {
	if len(word) < t.minLength {
		return ""
	}
	if _, isStop := t.stop[word]; isStop {
		return ""
	}
	if t.stem {
		return t.stemWord(word)
	}
	return word
}

func (t *Tokenizer) stemWord(word string) string {
	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil || stemmed == "" {
		return word
	}
	return stemmed
}
