// Package dirsource loads a collection laid out as one sub-directory per
// block and one file per document, as in the Stanford CS276 corpus.
package dirsource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/corpus/tokenizer"
)

// Load reads every block under root. Document ids are "<block>/<file>" so
// they stay unique across blocks. Hidden entries and top-level files are
// skipped.
func Load(ctx context.Context, name, root string, tk *tokenizer.Tokenizer) (*corpus.MetaCollection, error) {
	logger := slog.Default().With("component", "dirsource", "root", root)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading corpus root: %w", err)
	}
	var blocks []corpus.Collection
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.IsDir() {
			logger.Debug("skipping top-level file", "file", entry.Name())
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		block, err := loadBlock(entry.Name(), filepath.Join(root, entry.Name()), tk)
		if err != nil {
			return nil, err
		}
		logger.Debug("block loaded", "block", entry.Name(), "documents", block.Size())
		blocks = append(blocks, block)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Name() < blocks[j].Name() })
	if len(blocks) == 0 {
		return nil, fmt.Errorf("corpus root %s contains no block directories", root)
	}
	return corpus.NewMetaCollection(name, blocks...), nil
}

func loadBlock(name, dir string, tk *tokenizer.Tokenizer) (*corpus.MemoryCollection, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading block %s: %w", name, err)
	}
	block := corpus.NewMemoryCollection(name)
	for _, f := range files {
		if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading document %s/%s: %w", name, f.Name(), err)
		}
		doc := corpus.Document{
			ID:    name + "/" + f.Name(),
			Terms: tk.Bag(string(data)),
		}
		if err := block.Add(doc); err != nil {
			return nil, err
		}
	}
	return block, nil
}
