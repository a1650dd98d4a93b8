package indexer

import "time"

// GenerationEvent announces that a new index generation is on disk and can
// be opened by searchers sharing the data directory.
type GenerationEvent struct {
	BuildID     string    `json:"build_id"`
	Name        string    `json:"name"`
	Dir         string    `json:"dir"`
	Terms       int       `json:"terms"`
	Documents   int       `json:"documents"`
	Blocks      int       `json:"blocks"`
	CompletedAt time.Time `json:"completed_at"`
}

func (r *BuildResult) Event(dir, name string) GenerationEvent {
	return GenerationEvent{
		BuildID:     r.BuildID,
		Name:        name,
		Dir:         dir,
		Terms:       r.Terms,
		Documents:   r.Documents,
		Blocks:      r.Blocks,
		CompletedAt: time.Now().UTC(),
	}
}
