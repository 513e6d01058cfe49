package annotation

import (
	"sort"

	"github.com/inodb/vibe-neo/internal/intervaltree"
)

// Store holds every successfully loaded transcript Record, indexed by
// transcript id, and can build an intervaltree.Tree over their exons on
// demand. Grounded on the teacher's internal/cache/cache.go Cache type,
// generalized from "one transcript per position" single-value lookups
// to the spec's many-ids-per-interval index.
type Store struct {
	records map[string]*Record
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Add registers a Record. A later Add with the same transcript id
// replaces the earlier one.
func (s *Store) Add(r *Record) {
	s.records[r.TranscriptID] = r
}

// Get returns the Record for id, or nil if absent.
func (s *Store) Get(id string) *Record {
	return s.records[id]
}

// Len returns the number of transcripts in the store.
func (s *Store) Len() int {
	return len(s.records)
}

// TranscriptIDs returns a sorted list of every transcript id in the store.
func (s *Store) TranscriptIDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildIndex constructs an intervaltree.Tree mapping each transcript's
// exon intervals to its id, for routing variants to overlapping
// transcripts (spec.md §6 "Interval index").
func (s *Store) BuildIndex() *intervaltree.Tree {
	b := intervaltree.NewBuilder()
	for id, r := range s.records {
		for i := 0; i+1 < len(r.Exons); i += 2 {
			b.Add(r.Chrom, r.Exons[i], r.Exons[i+1], id)
		}
	}
	return b.Build()
}
