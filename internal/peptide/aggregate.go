// Package peptide aggregates the neopeptide hits surfaced by the
// haplotype router into the final peptide-to-metadata mapping of
// spec.md §6's output interface, de-duplicating repeats of the same
// peptide string across haplotype blocks and transcript copies.
package peptide

import (
	"sort"
	"strconv"

	"github.com/inodb/vibe-neo/internal/haplotype"
	"github.com/inodb/vibe-neo/internal/transcript"
)

// Source is one (chrom, pos, ref, alt, kind, vaf, warnings,
// transcript_id) tuple contributing to a peptide, matching spec.md §6's
// output row shape exactly.
type Source struct {
	Chrom        string
	Pos          int64
	Ref          string
	Alt          string
	Kind         transcript.Kind
	VAF          *float64
	Warnings     []string
	TranscriptID string
}

// Aggregator de-duplicates (peptide, metadata) pairs across haplotypes
// and transcript copies. Grounded on spec.md §2 component 6 ("Peptide
// aggregator (15%)"); the underlying map is the Go-native analogue of
// neoepiscope's peptide dict keyed by sequence.
type Aggregator struct {
	peptides map[string][]Source
	seen     map[string]map[string]struct{} // peptide -> dedup key -> present
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		peptides: make(map[string][]Source),
		seen:     make(map[string]map[string]struct{}),
	}
}

// AddHits folds a batch of router PeptideHits into the aggregator.
func (a *Aggregator) AddHits(hits []haplotype.PeptideHit) {
	for _, h := range hits {
		for _, v := range h.Variants {
			a.add(h.Peptide, Source{
				Chrom:        v.Chrom,
				Pos:          v.Pos,
				Ref:          v.Ref,
				Alt:          v.Alt,
				Kind:         v.Kind,
				VAF:          v.VAF,
				Warnings:     h.Warnings,
				TranscriptID: h.TranscriptID,
			})
		}
	}
}

func (a *Aggregator) add(peptideSeq string, src Source) {
	key := dedupKey(src)
	if a.seen[peptideSeq] == nil {
		a.seen[peptideSeq] = make(map[string]struct{})
	}
	if _, dup := a.seen[peptideSeq][key]; dup {
		return
	}
	a.seen[peptideSeq][key] = struct{}{}
	a.peptides[peptideSeq] = append(a.peptides[peptideSeq], src)
}

func dedupKey(s Source) string {
	return s.TranscriptID + "\x00" + s.Chrom + "\x00" + strconv.FormatInt(s.Pos, 10) + "\x00" + s.Ref + "\x00" + s.Alt + "\x00" + string(s.Kind)
}

// Peptides returns every distinct peptide string, sorted for
// deterministic output; Sources returns each one's contributing tuples.
func (a *Aggregator) Peptides() []string {
	out := make([]string, 0, len(a.peptides))
	for p := range a.peptides {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Sources returns the contributing (chrom, pos, ref, alt, kind, vaf,
// warnings, transcript_id) tuples for one peptide, or nil if the
// peptide was never observed.
func (a *Aggregator) Sources(peptideSeq string) []Source {
	return a.peptides[peptideSeq]
}

// Len returns the number of distinct peptides aggregated so far.
func (a *Aggregator) Len() int {
	return len(a.peptides)
}
