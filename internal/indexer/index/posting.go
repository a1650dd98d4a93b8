package index

// TermID is a dense term identifier assigned from 0 by the term dictionary.
type TermID int

type Posting struct {
	DocID     string `json:"d"`
	Frequency int    `json:"f"`
}

// PostingList is every posting of one term. DocFreq always equals
// len(Postings) and no document appears twice.
type PostingList struct {
	TermID   TermID
	DocFreq  int
	Postings []Posting
}

// DocIDs returns the document ids in posting order.
func (pl PostingList) DocIDs() []string {
	ids := make([]string, len(pl.Postings))
	for i, p := range pl.Postings {
		ids[i] = p.DocID
	}
	return ids
}

// Frequencies maps each document id to its term frequency.
func (pl PostingList) Frequencies() map[string]int {
	m := make(map[string]int, len(pl.Postings))
	for _, p := range pl.Postings {
		m[p.DocID] = p.Frequency
	}
	return m
}
