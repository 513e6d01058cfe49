package transcript

import (
	"sort"
	"strings"

	"github.com/inodb/vibe-neo/internal/annotation"
	"github.com/inodb/vibe-neo/internal/kmer"
)

// Inclusion controls how a mutation source participates in neopeptide
// enumeration: excluded entirely, applied as a comparable variant (the
// default), or folded into both the mutated and reference sequence so
// it becomes background and never registers as novel. Mirrors
// neoepiscope's include_somatic/include_germline 0/1/2 flags.
type Inclusion int

const (
	IncludeExclude      Inclusion = 0
	IncludeAsVariant    Inclusion = 1
	IncludeAsBackground Inclusion = 2
)

// StartCodonPolicy selects which alternate start codons neopeptide
// enumeration is willing to consider when the annotated start is
// missing or a novel upstream ATG appears (spec.md §4.5 step 4).
type StartCodonPolicy int

const (
	PolicyNovel StartCodonPolicy = iota
	PolicyAll
	PolicyNone
	PolicyReference
)

// NeopeptideOptions configures Transcript.Neopeptides.
type NeopeptideOptions struct {
	MinSize, MaxSize  int
	Somatic, Germline Inclusion
	StartCodonPolicy  StartCodonPolicy
	// ATGLimit caps how many start codons are translated from, the
	// annotated start included when it is chosen. Zero uses the default
	// of 2 (Open Question #3; see DESIGN.md).
	ATGLimit int
}

// NeopeptideResult is one surviving, non-reference k-mer together with
// the variants responsible for it and any transcript-level warnings
// (e.g. "nonstop").
type NeopeptideResult struct {
	Peptide  string
	Variants []VariantInfo
	Warnings []string
}

// variantWindow is a non-reference segment's position in the flattened
// mutated/reference coding sequences, used both for the silent-SNV
// check and for bounding k-mer emission.
type variantWindow struct {
	mutStart, mutEnd int
	refStart, refEnd int
	infos            []VariantInfo
	isSNV            bool
}

// mapInterval records how one contiguous stretch of the flattened
// mutated sequence corresponds to the flattened reference sequence:
// linear intervals (reference, or same-length substitutions, or
// background-folded edits) have a fixed offset; non-linear ones
// (insertions, deletions, visible indel edits) have none, so an ATG
// found inside one cannot be matched to a reference position.
type mapInterval struct {
	mutStart, mutEnd int
	refStart, refEnd int
	linear           bool
}

// Neopeptides returns the novel peptide k-mers this transcript's
// accumulated edits produce, grounded on spec.md §4.5 /
// neoepiscope's Transcript.neopeptides.
func (t *Transcript) Neopeptides(opts NeopeptideOptions) []NeopeptideResult {
	if opts.Somatic == opts.Germline && opts.Somatic != IncludeAsVariant {
		return nil
	}
	if !t.HasEdits() {
		return nil
	}
	if opts.MinSize < 2 {
		return nil
	}
	maxSize := opts.MaxSize
	if maxSize < opts.MinSize {
		maxSize = opts.MinSize
	}
	if t.Record.StartCodonPos == 0 || t.Record.StopCodonPos == 0 {
		return nil
	}
	includeSomatic := opts.Somatic != IncludeExclude
	includeGermline := opts.Germline != IncludeExclude
	if t.HasUndefinedFrameDeletion(includeSomatic, includeGermline) {
		return nil
	}

	segs, err := t.AnnotatedSeq(includeSomatic, includeGermline)
	if err != nil {
		return nil
	}

	mutSeq, refSeq, intervals, windows, shifts := t.flattenSequences(segs, opts)
	if len(windows) == 0 && len(shifts) == 0 {
		return nil
	}

	refStartIdx, ok := refCodingOffset(t.Record)
	if !ok {
		return nil
	}

	cands := findATGCandidates(mutSeq, refSeq, intervals, refStartIdx)
	if len(cands) == 0 {
		return nil
	}
	limit := opts.ATGLimit
	if limit <= 0 {
		limit = 2
	}
	starts := chooseStartCodons(cands, refStartIdx, opts.StartCodonPolicy, limit)
	if len(starts) == 0 {
		return nil
	}

	refPeptide := kmer.TranslateFromStart(refSeq[refStartIdx:])
	refKmerSets := make(map[int]map[string]struct{}, maxSize-opts.MinSize+1)
	for k := opts.MinSize; k <= maxSize; k++ {
		refKmerSets[k] = kmer.KmerSet(refPeptide, k)
	}

	var results []NeopeptideResult
	for _, mutStartIdx := range starts {
		results = append(results, t.neopeptidesFromStart(mutSeq, refSeq, mutStartIdx, refStartIdx, refPeptide, refKmerSets, windows, shifts, opts)...)
	}
	return results
}

// neopeptidesFromStart translates mutSeq from one chosen start codon and
// emits every surviving k-mer window for the variants and frame-shifts
// that fall downstream of it.
func (t *Transcript) neopeptidesFromStart(mutSeq, refSeq string, mutStartIdx, refStartIdx int, refPeptide string, refKmerSets map[int]map[string]struct{}, windows []variantWindow, shifts []frameShiftWindow, opts NeopeptideOptions) []NeopeptideResult {
	maxSize := opts.MaxSize
	if maxSize < opts.MinSize {
		maxSize = opts.MinSize
	}
	mutPeptide := kmer.TranslateFromStart(mutSeq[mutStartIdx:])

	var warnings []string
	if !kmer.ReachedStop(mutPeptide) {
		warnings = append(warnings, "nonstop")
	}

	var results []NeopeptideResult
	emit := func(aaStart, aaEnd int, infos []VariantInfo) {
		for k := opts.MinSize; k <= maxSize; k++ {
			winStart := aaStart - k + 1
			if winStart < 0 {
				winStart = 0
			}
			winEnd := aaEnd + k
			if winEnd > len(mutPeptide) {
				winEnd = len(mutPeptide)
			}
			for i := winStart; i+k <= winEnd; i++ {
				candidate := mutPeptide[i : i+k]
				if strings.ContainsRune(candidate, rune(kmer.StopAA)) {
					continue
				}
				if _, isRef := refKmerSets[k][candidate]; isRef {
					continue
				}
				results = append(results, NeopeptideResult{Peptide: candidate, Variants: infos, Warnings: warnings})
			}
		}
	}

	for _, w := range windows {
		codingStart := w.mutStart - mutStartIdx
		codingEnd := w.mutEnd - mutStartIdx
		if codingStart < 0 {
			continue
		}
		aaStart := codingStart / 3
		aaEnd := (codingEnd + 2) / 3

		if w.isSNV {
			refCoding := w.refStart - refStartIdx
			if refCoding >= 0 {
				refAA := refCoding / 3
				if aaStart < len(mutPeptide) && refAA < len(refPeptide) && mutPeptide[aaStart] == refPeptide[refAA] {
					// Silent SNV: codon unchanged, no neopeptide (spec.md §8
					// "no silent SNV peptides").
					continue
				}
			}
		}
		emit(aaStart, aaEnd, w.infos)
	}

	for _, fs := range shifts {
		codingStart := fs.mutStart - mutStartIdx
		if codingStart < 0 {
			codingStart = 0
		}
		codingEnd := fs.mutEnd
		if codingEnd < 0 || codingEnd > len(mutSeq) {
			codingEnd = len(mutSeq)
		}
		codingEnd -= mutStartIdx
		emit(codingStart/3, (codingEnd+2)/3, fs.infos)
	}

	return results
}

// frameShiftWindow is a region where the net coding length delta
// between mutated and reference sequence is nonzero, opened and closed
// per spec.md §4.5 step 5.
type frameShiftWindow struct {
	mutStart, mutEnd int // mutEnd == -1 while still open
	infos            []VariantInfo
}

// flattenSequences walks the annotated segments once, building the
// flattened mutated and reference coding sequences in lockstep,
// recording a mapInterval per segment for ATG correspondence, a
// variantWindow per visible (non-background) edit, and the list of
// frame-shift windows opened/closed by net length changes.
func (t *Transcript) flattenSequences(segs []Segment, opts NeopeptideOptions) (mutSeq, refSeq string, intervals []mapInterval, windows []variantWindow, shifts []frameShiftWindow) {
	var mutB, refB strings.Builder
	var delta int
	var openShift *frameShiftWindow

	for _, seg := range segs {
		mutStart, refStart := mutB.Len(), refB.Len()

		if seg.Origin == "R" {
			mutB.WriteString(seg.Seq)
			refB.WriteString(seg.Seq)
			intervals = append(intervals, mapInterval{mutStart, mutB.Len(), refStart, refB.Len(), true})
			continue
		}

		background := t.classBackground(seg.Origin, opts)
		mutB.WriteString(seg.Seq)

		if background {
			refB.WriteString(seg.Seq)
			intervals = append(intervals, mapInterval{mutStart, mutB.Len(), refStart, refB.Len(), true})
			continue
		}

		refPiece, err := t.referencePiece(seg)
		if err != nil {
			refPiece = ""
		}
		refB.WriteString(refPiece)

		linear := len(seg.Seq) == len(refPiece)
		intervals = append(intervals, mapInterval{mutStart, mutB.Len(), refStart, refB.Len(), linear})

		isSNV := len(seg.Infos) > 0 && seg.Infos[0].Kind == SNV
		windows = append(windows, variantWindow{
			mutStart: mutStart, mutEnd: mutB.Len(),
			refStart: refStart, refEnd: refB.Len(),
			infos: seg.Infos, isSNV: isSNV,
		})

		// A deletion's net effect on reading frame is exactly its exonic
		// base count mod 3, since reading frame is itself defined as
		// cumulative exonic distance from the start codon mod 3; a
		// splice-crossing deletion whose read_frame1 equals its
		// read_frame2 therefore has segDelta%3 == 0 and does not open a
		// shift here, with no separate frame lookup needed. Deletions
		// with an undefined frame at either endpoint never reach this
		// point: Neopeptides rejects the whole transcript copy via
		// HasUndefinedFrameDeletion before flattenSequences runs.
		segDelta := len(seg.Seq) - len(refPiece)
		delta += segDelta
		if segDelta != 0 {
			if openShift == nil && delta%3 != 0 {
				openShift = &frameShiftWindow{mutStart: mutStart, mutEnd: -1}
			}
			if openShift != nil {
				openShift.infos = append(openShift.infos, seg.Infos...)
				if delta%3 == 0 {
					openShift.mutEnd = mutB.Len()
					shifts = append(shifts, *openShift)
					openShift = nil
				}
			}
		}
	}

	if openShift != nil {
		openShift.mutEnd = mutB.Len()
		shifts = append(shifts, *openShift)
	}

	return mutB.String(), refB.String(), intervals, windows, shifts
}

// classBackground reports whether a segment's origin tag should be
// folded into the reference side rather than compared against it.
// Hybrid deletions ("GS"/"SG") fold into the background only when
// every contributing source does.
func (t *Transcript) classBackground(origin string, opts NeopeptideOptions) bool {
	for _, c := range origin {
		var incl Inclusion
		switch c {
		case 'S':
			incl = opts.Somatic
		case 'G':
			incl = opts.Germline
		default:
			return false
		}
		if incl != IncludeAsBackground {
			return false
		}
	}
	return len(origin) > 0
}

// referencePiece reconstructs the true reference bases a non-R segment
// stands in for, by re-fetching the genome at the segment's recorded
// genomic span (reverse-complemented to match coding orientation on
// the minus strand). This is simpler than threading neoepiscope's
// per-edit reference bases through merged hybrid deletions, at the
// cost of re-fetching rather than reusing cached reference strings
// already present in VariantInfo.Ref for single-source segments.
func (t *Transcript) referencePiece(seg Segment) (string, error) {
	if seg.RefLen == 0 {
		return "", nil
	}
	// GenomicPos is always the forward-strand start of the piece,
	// regardless of strand; AnnotatedSeq only reverses segment order
	// and complements Seq, it leaves GenomicPos as the forward coordinate.
	start0 := seg.GenomicPos - 1
	ref, err := t.Genome.FetchStretch(t.Record.Chrom, start0, int(seg.RefLen))
	if err != nil {
		return "", err
	}
	if t.Record.Strand == annotation.Minus {
		return kmer.ReverseComplement(ref), nil
	}
	return ref, nil
}

// refCodingOffset returns the 0-based offset of the annotated start
// codon's first transcribed base within the full (unedited) spliced
// transcript sequence spanning every exon, i.e. the index into refSeq
// at which translation normally begins.
func refCodingOffset(r *annotation.Record) (int, bool) {
	from := r.Exons[0]
	pos := r.StartCodon0()
	if r.Strand == annotation.Minus {
		from = r.LastExonBound() - 1
		pos = r.StartCodon0() + 2
	}
	dist, ok := r.CodingDistanceFrom(from, pos)
	if !ok {
		return 0, false
	}
	if dist < 0 {
		dist = -dist
	}
	return int(dist), true
}

type atgCandidate struct {
	mutPos, refPos int
	downstream     bool
	novel          bool
	missingFromMut bool
}

// findATGCandidates scans both flattened sequences for ATG triplets and
// pairs each against its counterpart on the other side via intervals,
// deduping candidates both scans agree on.
func findATGCandidates(mutSeq, refSeq string, intervals []mapInterval, refStartIdx int) []atgCandidate {
	seen := make(map[[2]int]bool)
	var cands []atgCandidate
	add := func(mutPos, refPos int) {
		key := [2]int{mutPos, refPos}
		if seen[key] {
			return
		}
		seen[key] = true
		cands = append(cands, atgCandidate{
			mutPos: mutPos, refPos: refPos,
			downstream:     refPos >= 0 && refPos >= refStartIdx,
			novel:          mutPos >= 0 && refPos < 0,
			missingFromMut: mutPos < 0 && refPos >= 0,
		})
	}
	for i := 0; i+3 <= len(mutSeq); i++ {
		if mutSeq[i:i+3] == "ATG" {
			add(i, locateInInterval(intervals, i, true))
		}
	}
	for i := 0; i+3 <= len(refSeq); i++ {
		if refSeq[i:i+3] == "ATG" {
			add(locateInInterval(intervals, i, false), i)
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		pi, pj := cands[i].mutPos, cands[j].mutPos
		if pi < 0 {
			pi = cands[i].refPos
		}
		if pj < 0 {
			pj = cands[j].refPos
		}
		return pi < pj
	})
	return cands
}

// locateInInterval maps a position on one side (mutated if fromMut,
// reference otherwise) to its counterpart on the other side, or -1 if
// it falls inside a non-linear (length-changing) interval.
func locateInInterval(intervals []mapInterval, pos int, fromMut bool) int {
	for _, iv := range intervals {
		if fromMut {
			if pos >= iv.mutStart && pos < iv.mutEnd {
				if !iv.linear {
					return -1
				}
				return pos - (iv.mutStart - iv.refStart)
			}
		} else {
			if pos >= iv.refStart && pos < iv.refEnd {
				if !iv.linear {
					return -1
				}
				return pos + (iv.mutStart - iv.refStart)
			}
		}
	}
	return -1
}

// chooseStartCodons returns up to limit candidate mutated-sequence start
// offsets, in priority order: the annotated start first if it is usable
// and the policy permits it, then policy-filtered alternates in
// left-to-right order. The cap mirrors neoepiscope's ATG_limit (Open
// Question #3; see DESIGN.md), bounding how many alternate translations
// are evaluated when the annotated start is missing or multiple
// upstream ATGs qualify.
func chooseStartCodons(cands []atgCandidate, refStartIdx int, policy StartCodonPolicy, limit int) []int {
	var starts []int
	if policy != PolicyNone {
		for _, c := range cands {
			if c.refPos == refStartIdx && c.mutPos >= 0 {
				starts = append(starts, c.mutPos)
				break
			}
		}
	}

	for _, c := range cands {
		if len(starts) >= limit {
			break
		}
		if c.mutPos < 0 || c.refPos == refStartIdx {
			continue
		}
		switch policy {
		case PolicyReference:
			continue
		case PolicyNone:
			if c.downstream {
				starts = append(starts, c.mutPos)
			}
		case PolicyNovel:
			if c.downstream || c.novel {
				starts = append(starts, c.mutPos)
			}
		case PolicyAll:
			starts = append(starts, c.mutPos)
		}
	}
	return starts
}
