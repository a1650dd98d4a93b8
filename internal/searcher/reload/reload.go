// Package reload holds the index generation a searcher serves and swaps in
// new generations announced on Kafka.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
)

// Generation is one opened index together with its query executor.
type Generation struct {
	ID       string
	Index    *store.ReverseIndex
	Executor *executor.Executor
	LoadedAt time.Time

	refs   sync.WaitGroup
	closed sync.Once
}

// Opener opens the generation named in dir.
type Opener func(dir, name string) (*store.ReverseIndex, error)

// Holder publishes the current generation to concurrent readers. Readers
// Acquire a generation and Release it when done; a replaced generation is
// closed once its last reader has released it.
type Holder struct {
	mu       sync.Mutex
	current  atomic.Pointer[Generation]
	open     Opener
	execOpts []executor.Option
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewHolder(open Opener, m *metrics.Metrics, execOpts ...executor.Option) *Holder {
	return &Holder{
		open:     open,
		execOpts: execOpts,
		metrics:  m,
		logger:   slog.Default().With("component", "index-reload"),
	}
}

// Acquire returns the current generation, or ErrIndexNotReady before the
// first successful load.
func (h *Holder) Acquire() (*Generation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := h.current.Load()
	if g == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	g.refs.Add(1)
	return g, nil
}

func (g *Generation) Release() {
	g.refs.Done()
}

// Current peeks at the served generation without holding it open.
func (h *Holder) Current() *Generation {
	return h.current.Load()
}

// Load opens dir/name and makes it current. The old generation keeps
// serving queries already in flight and is closed after they finish.
func (h *Holder) Load(id, dir, name string) error {
	idx, err := h.open(dir, name)
	if err != nil {
		h.metrics.IndexReloaded("error")
		return fmt.Errorf("loading generation %s: %w", id, err)
	}
	g := &Generation{
		ID:       id,
		Index:    idx,
		Executor: executor.New(idx, h.execOpts...),
		LoadedAt: time.Now().UTC(),
	}

	h.mu.Lock()
	old := h.current.Swap(g)
	h.mu.Unlock()

	h.metrics.IndexReloaded("ok")
	h.logger.Info("index generation loaded",
		"generation", id,
		"index", name,
		"terms", idx.Size(),
		"mode", idx.Mode(),
	)
	if old != nil {
		go old.retire(h.logger)
	}
	return nil
}

// Close retires the current generation.
func (h *Holder) Close() {
	h.mu.Lock()
	g := h.current.Swap(nil)
	h.mu.Unlock()
	if g != nil {
		g.retire(h.logger)
	}
}

func (g *Generation) retire(logger *slog.Logger) {
	g.refs.Wait()
	g.closed.Do(func() {
		if err := g.Index.Close(); err != nil {
			logger.Error("closing retired generation", "generation", g.ID, "error", err)
			return
		}
		logger.Info("retired index generation closed", "generation", g.ID)
	})
}

// HandleGenerationEvent returns a Kafka handler that loads every announced
// generation whose name matches the one this searcher serves. Malformed
// events are logged and skipped.
func HandleGenerationEvent(h *Holder, name string) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-reload")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.GenerationEvent](value)
		if err != nil {
			logger.Error("failed to decode generation event", "error", err, "key", string(key))
			return nil
		}
		if event.Name != name {
			logger.Debug("ignoring generation of another index", "index", event.Name)
			return nil
		}
		if cur := h.Current(); cur != nil && cur.ID == event.BuildID {
			return nil
		}
		return h.Load(event.BuildID, event.Dir, event.Name)
	}
}
