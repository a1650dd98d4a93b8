package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Files names every file of one index generation.
type Files struct {
	Dict    string
	Index   string
	Offsets string
	Docs    string
}

func FilesFor(dir, name string) Files {
	base := filepath.Join(dir, name)
	return Files{
		Dict:    base + ".dict",
		Index:   base + ".index",
		Offsets: base + ".offsets",
		Docs:    base + ".docs",
	}
}

// Staged names the files a build writes before publishing them as f.
func (f Files) Staged(buildID string) Files {
	suffix := "." + buildID + ".tmp"
	return Files{
		Dict:    f.Dict + suffix,
		Index:   f.Index + suffix,
		Offsets: f.Offsets + suffix,
		Docs:    f.Docs + suffix,
	}
}

// All lists the files in the order Publish moves them. The index goes last
// so a generation only becomes visible once its sidecars are in place.
func (f Files) All() []string {
	return []string{f.Docs, f.Dict, f.Offsets, f.Index}
}

// Publish renames every file of f onto its counterpart in dst. All files
// must already exist; nothing is renamed when one is missing.
func (f Files) Publish(dst Files) error {
	src, to := f.All(), dst.All()
	for _, path := range src {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("staged generation incomplete: %w", err)
		}
	}
	for i := range src {
		if err := os.Rename(src[i], to[i]); err != nil {
			return fmt.Errorf("publishing %s: %w", filepath.Base(to[i]), err)
		}
	}
	return nil
}
