// Package loader opens the collection named by the corpus configuration.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/cacm"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/dirsource"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/pgsource"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// NewTokenizer builds the tokenizer shared by indexing and querying. Both
// sides must agree on stemming or stemmed terms will never match.
func NewTokenizer(cfg config.CorpusConfig) (*tokenizer.Tokenizer, error) {
	opts := tokenizer.Options{Stem: cfg.Stem}
	if cfg.StopList != "" {
		words, err := tokenizer.LoadStopList(cfg.StopList)
		if err != nil {
			return nil, err
		}
		opts.StopWords = words
	}
	return tokenizer.New(opts), nil
}

// Load reads the configured collection and splits it into blocks of
// cfg.BlockSize documents when it is not already blocked. pg is only used
// by the postgres format.
func Load(ctx context.Context, cfg config.CorpusConfig, name string, tk *tokenizer.Tokenizer, pg *pgsource.Source) (corpus.Collection, error) {
	var (
		c   corpus.Collection
		err error
	)
	switch cfg.Format {
	case "cacm":
		c, err = cacm.LoadFile(name, cfg.Path, tk)
	case "dir":
		c, err = dirsource.Load(ctx, name, cfg.Path, tk)
	case "postgres":
		if pg == nil {
			return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "postgres corpus needs a database connection")
		}
		c, err = pg.Load(ctx, name)
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown corpus format %q", cfg.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s corpus: %w", cfg.Format, err)
	}
	c = corpus.Partition(c, cfg.BlockSize)
	slog.Default().Info("corpus loaded",
		"component", "corpus-loader",
		"format", cfg.Format,
		"documents", c.Size(),
		"blocks", len(corpus.Blocks(c)),
	)
	return c, nil
}
