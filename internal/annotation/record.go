// Package annotation provides the immutable transcript CDS annotation
// record consumed by the transcript edit-and-translate engine, plus
// loaders that materialize it from GTF text and an optional DuckDB-backed
// store for reuse across runs.
package annotation

import (
	"fmt"
	"sort"
)

// Strand is the genomic strand a transcript is transcribed from.
type Strand int8

const (
	Plus  Strand = 1
	Minus Strand = -1
)

// Record is the immutable per-transcript CDS annotation: exon intervals,
// start/stop codon positions, and strand. Internally exon bounds are
// stored 0-based half-open as a flat sorted sequence
// Exons = [b0, b1, b2, b3, ...] where (b0,b1), (b2,b3), ... are the
// exons, per spec.md §3.
type Record struct {
	TranscriptID string
	Chrom        string
	Strand       Strand

	// Exons is the flat, sorted, 0-based half-open exon bound sequence.
	Exons []int64

	// StartCodonPos, StopCodonPos are 1-based genomic positions of the
	// first base of the start/stop codon.
	StartCodonPos int64
	StopCodonPos  int64

	// startCodon0, stopCodon0 are the 0-based equivalents, cached for
	// the hot path of reading-frame computation.
	startCodon0 int64
	stopCodon0  int64

	// startCodonIndex, stopCodonIndex are the index into Exons at or
	// after which the start/stop codon falls (bisect_left equivalent).
	startCodonIndex int
	stopCodonIndex  int
}

// Feature is a single GTF-style annotation row used to build a Record.
type Feature struct {
	Chrom   string
	Kind    string // "exon", "start_codon", "stop_codon"
	Start1  int64  // 1-based inclusive
	End1    int64  // 1-based inclusive
	Strand  Strand
}

// NewRecord builds an immutable Record from a transcript's Feature rows.
// Rows must share one chrom and strand. Returns an error for an
// unsupported feature kind (the *unsupported-feature-kind* error of
// spec.md §7); callers skip the transcript on error.
func NewRecord(transcriptID string, features []Feature) (*Record, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("annotation: transcript %s has no features", transcriptID)
	}

	r := &Record{TranscriptID: transcriptID}
	var chrom string
	var strand Strand
	haveChromStrand := false

	for _, f := range features {
		if !haveChromStrand {
			chrom, strand = f.Chrom, f.Strand
			haveChromStrand = true
		} else if f.Chrom != chrom || f.Strand != strand {
			return nil, fmt.Errorf("annotation: transcript %s mixes chrom/strand", transcriptID)
		}

		switch f.Kind {
		case "exon":
			// 0-based half-open: [start1-1, end1)
			r.Exons = append(r.Exons, f.Start1-1, f.End1)
		case "start_codon":
			r.StartCodonPos = f.Start1
			r.startCodon0 = f.Start1 - 1
		case "stop_codon":
			r.StopCodonPos = f.Start1
			r.stopCodon0 = f.Start1 - 1
		default:
			return nil, fmt.Errorf("annotation: unsupported feature kind %q for transcript %s", f.Kind, transcriptID)
		}
	}

	if r.StartCodonPos == 0 || r.StopCodonPos == 0 {
		// missing-annotation: caller should silently exclude the transcript.
		return nil, fmt.Errorf("annotation: transcript %s missing start or stop codon", transcriptID)
	}

	r.Chrom = chrom
	r.Strand = strand
	sort.Slice(r.Exons, func(i, j int) bool { return r.Exons[i] < r.Exons[j] })

	r.startCodonIndex = bisectLeft(r.Exons, r.startCodon0)
	r.stopCodonIndex = bisectLeft(r.Exons, r.stopCodon0)

	return r, nil
}

// bisectLeft returns the leftmost index at which x could be inserted in
// sorted slice a to keep it sorted (Python's bisect.bisect_left).
func bisectLeft(a []int64, x int64) int {
	lo, hi := 0, len(a)
	for lo < hi {
		mid := (lo + hi) / 2
		if a[mid] < x {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// StartCodonIndex and StopCodonIndex expose the cached bisect indices
// for use by the reading-frame computation in package transcript.
func (r *Record) StartCodonIndex() int { return r.startCodonIndex }
func (r *Record) StopCodonIndex() int  { return r.stopCodonIndex }
func (r *Record) StartCodon0() int64   { return r.startCodon0 }
func (r *Record) StopCodon0() int64    { return r.stopCodon0 }

// FirstExonBound and LastExonBound return the transcript's overall span,
// 0-based half-open.
func (r *Record) FirstExonBound() int64 { return r.Exons[0] }
func (r *Record) LastExonBound() int64  { return r.Exons[len(r.Exons)-1] }
