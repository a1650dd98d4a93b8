package pgsource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/postgres"
)

func newTestClient(t *testing.T) *postgres.Client {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	client, err := postgres.New(cfg.Postgres)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLoadGroupsByShardAndMarksIndexed(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, client))

	_, err := client.DB.ExecContext(ctx, `DELETE FROM documents WHERE id LIKE 'pgsource-test-%'`)
	require.NoError(t, err)
	_, err = client.DB.ExecContext(ctx, `
INSERT INTO documents (id, shard_id, title, body) VALUES
('pgsource-test-1', 0, 'External sorting', 'merge runs'),
('pgsource-test-2', 1, 'Inverted files', 'posting lists')`)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.DB.ExecContext(context.Background(), `DELETE FROM documents WHERE id LIKE 'pgsource-test-%'`)
	})

	src := New(client, tokenizer.New(tokenizer.Options{}))
	c, err := src.Load(ctx, "pg")
	require.NoError(t, err)

	doc, ok := c.Lookup("pgsource-test-2")
	require.True(t, ok)
	assert.Equal(t, corpus.TermBag{"inverted": 1, "files": 1, "posting": 1, "lists": 1}, doc.Terms)
	assert.GreaterOrEqual(t, len(corpus.Blocks(c)), 2)

	n, err := src.MarkIndexed(ctx, "build-1", []string{"pgsource-test-1", "pgsource-test-2"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
