// Package pgsource loads a collection from the documents table, one block
// per shard_id, and records which documents made it into a build.
package pgsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/postgres"
)

const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	shard_id   INTEGER NOT NULL DEFAULT 0,
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'pending',
	build_id   TEXT,
	indexed_at TIMESTAMPTZ
)`

const selectDocuments = `
SELECT id, shard_id, title, body
FROM documents
ORDER BY shard_id, id`

const markIndexed = `
UPDATE documents
SET status = 'indexed', build_id = $1, indexed_at = NOW()
WHERE id = ANY($2)`

type Source struct {
	client *postgres.Client
	tk     *tokenizer.Tokenizer
	logger *slog.Logger
}

func New(client *postgres.Client, tk *tokenizer.Tokenizer) *Source {
	return &Source{
		client: client,
		tk:     tk,
		logger: slog.Default().With("component", "pgsource"),
	}
}

func EnsureSchema(ctx context.Context, client *postgres.Client) error {
	if _, err := client.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Load reads every document inside one snapshot transaction. Title and body
// both feed the term bag.
func (s *Source) Load(ctx context.Context, name string) (*corpus.MetaCollection, error) {
	var blocks []corpus.Collection
	err := s.client.Snapshot(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, selectDocuments)
		if err != nil {
			return fmt.Errorf("querying documents: %w", err)
		}
		defer rows.Close()

		var (
			current *corpus.MemoryCollection
			shard   = -1
		)
		for rows.Next() {
			var (
				id, title, body string
				shardID         int
			)
			if err := rows.Scan(&id, &shardID, &title, &body); err != nil {
				return fmt.Errorf("scanning document row: %w", err)
			}
			if current == nil || shardID != shard {
				current = corpus.NewMemoryCollection(fmt.Sprintf("shard-%d", shardID))
				blocks = append(blocks, current)
				shard = shardID
			}
			if err := current.Add(corpus.Document{ID: id, Terms: s.tk.Bag(title, body)}); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("documents table is empty")
	}
	meta := corpus.NewMetaCollection(name, blocks...)
	s.logger.Info("collection loaded", "blocks", len(blocks), "documents", meta.Size())
	return meta, nil
}

// MarkIndexed flags ids as indexed by buildID and returns the number of rows
// updated.
func (s *Source) MarkIndexed(ctx context.Context, buildID string, ids []string) (int64, error) {
	var updated int64
	err := s.client.InTx(ctx, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, markIndexed, buildID, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("marking documents indexed: %w", err)
		}
		updated, err = res.RowsAffected()
		return err
	})
	return updated, err
}
