package transcript

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inodb/vibe-neo/internal/annotation"
	"github.com/inodb/vibe-neo/internal/genome"
	"github.com/inodb/vibe-neo/internal/kmer"
)

// Transcript wraps an immutable annotation.Record with an accumulated
// EditStore representing one chromosomal copy (A or B) of a haplotype.
// Grounded on neoepiscope's Transcript class; split across this file
// (edit accumulation, save/reset, expressed edits, annotated sequence)
// and neopeptide.go (the neopeptide enumeration, §4.5).
type Transcript struct {
	Record *annotation.Record
	Genome genome.Accessor

	edits      EditStore
	checkpoint EditStore
	haveSave   bool
}

// New creates a Transcript over rec with no edits applied.
func New(rec *annotation.Record, g genome.Accessor) *Transcript {
	return &Transcript{Record: rec, Genome: g, edits: newEditStore()}
}

// ApplyEdit accumulates one phased edit. pos is 1-based genomic. For a
// V, seq is the alt base(s); for I, the inserted bases; for D, either a
// literal deletion length or the deleted reference bases. Grounded on
// neoepiscope's Transcript.edit / spec.md §4.1.
func (t *Transcript) ApplyEdit(pos int64, seq string, kind Kind, source Source, vaf *float64) error {
	chrom := t.Record.Chrom
	switch kind {
	case SNV:
		ref, err := t.Genome.FetchStretch(chrom, pos-1, len(seq))
		if err != nil {
			return err
		}
		for _, e := range t.edits.snvIns[pos-1] {
			if e.Kind == SNV && e.Source == source {
				return &duplicateSNVError{Pos: pos, Source: source}
			}
		}
		info := VariantInfo{Chrom: chrom, Pos: pos, Ref: ref, Alt: seq, Kind: SNV, VAF: vaf}
		t.edits.snvIns[pos-1] = append(t.edits.snvIns[pos-1], snvInsEdit{Seq: seq, Kind: SNV, Source: source, Info: info})
	case Insertion:
		info := VariantInfo{Chrom: chrom, Pos: pos, Ref: "", Alt: seq, Kind: Insertion, VAF: vaf}
		t.edits.snvIns[pos-1] = append(t.edits.snvIns[pos-1], snvInsEdit{Seq: seq, Kind: Insertion, Source: source, Info: info})
	case Deletion:
		size, literalLength := parseDeletionSize(seq)
		ref, err := t.Genome.FetchStretch(chrom, pos-1, size)
		if err != nil {
			return err
		}
		if !literalLength && !strings.EqualFold(ref, seq) {
			return &referenceMismatchError{Seq: seq, Pos: pos, Chrom: chrom, Reference: ref}
		}
		info := VariantInfo{Chrom: chrom, Pos: pos, Ref: ref, Alt: "", Kind: Deletion, VAF: vaf}
		t.edits.deletions = append(t.edits.deletions, deletionEdit{
			Start: pos - 1, End: pos - 1 + int64(size), Source: source, Info: info,
		})
	default:
		return fmt.Errorf("transcript: unsupported edit kind %q", kind)
	}
	return nil
}

// Save checkpoints the current edit set.
func (t *Transcript) Save() {
	t.checkpoint = t.edits.clone()
	t.haveSave = true
}

// Reset restores the transcript to its last save point, or to the
// reference (no edits) if toReference is true or no save point exists.
func (t *Transcript) Reset(toReference bool) {
	if toReference || !t.haveSave {
		t.edits = newEditStore()
		return
	}
	t.edits = t.checkpoint.clone()
}

// HasEdits reports whether any edit has been accumulated.
func (t *Transcript) HasEdits() bool {
	return !t.edits.isEmpty()
}

// ReadingFrame delegates to the static annotation.Record computation;
// edits do not affect genomic reading frame.
func (t *Transcript) ReadingFrame(pos1 int64) (int, bool) {
	return t.Record.ReadingFrame(pos1)
}

// HasUndefinedFrameDeletion reports whether any deletion selected by
// includeSomatic/includeGermline crosses a splice junction into intronic
// sequence at either endpoint, leaving its reading frame undefined
// (spec.md §7, Open Question #2). Grounded on neoepiscope's
// get_peptides_from_transcripts, which breaks out of neopeptide
// enumeration entirely for a transcript copy once read_frame1 or
// read_frame2 comes back None. Callers should skip the whole transcript
// copy for this block when this returns true, rather than call
// Neopeptides at all.
func (t *Transcript) HasUndefinedFrameDeletion(includeSomatic, includeGermline bool) bool {
	var active []deletionEdit
	for _, d := range t.edits.deletions {
		if d.Source == Somatic && !includeSomatic {
			continue
		}
		if d.Source == Germline && !includeGermline {
			continue
		}
		active = append(active, d)
	}
	for _, d := range mergeDeletions(active) {
		if _, ok := t.ReadingFrame(d.Start + 1); !ok {
			return true
		}
		if _, ok := t.ReadingFrame(d.End); !ok {
			return true
		}
	}
	return false
}

// block is one contiguous sub-range of the coding region after
// deletions have been carved out of the exon list: either untouched
// reference ("R") or a merged deletion tagged with its origin
// ("S", "G", "GS", or "SG").
type block struct {
	Start, End int64
	Origin     string
	Infos      []VariantInfo
}

// ExpressedEdits restricts the exon sequence to the transcript's full
// span, filters edits by source, merges overlapping deletions, and
// returns the filtered snv/ins edits plus the resulting block list.
// Grounded on spec.md §4.2 / neoepiscope's expressed_edits. Blocks are
// used here in place of the boundary-point-pair representation the
// original returns; they carry the same information (monotonic,
// non-overlapping, origin-tagged coverage of the coding region) in a
// form more directly usable for sequence assembly.
func (t *Transcript) ExpressedEdits(includeSomatic, includeGermline bool) (map[int64][]snvInsEdit, []block) {
	blocks := make([]block, 0, len(t.Record.Exons)/2)
	for i := 0; i+1 < len(t.Record.Exons); i += 2 {
		blocks = append(blocks, block{Start: t.Record.Exons[i], End: t.Record.Exons[i+1], Origin: "R"})
	}

	var active []deletionEdit
	for _, d := range t.edits.deletions {
		if d.Source == Somatic && !includeSomatic {
			continue
		}
		if d.Source == Germline && !includeGermline {
			continue
		}
		active = append(active, d)
	}
	merged := mergeDeletions(active)
	for _, d := range merged {
		blocks = carveDeletion(blocks, d)
	}

	filtered := make(map[int64][]snvInsEdit)
	for pos, edits := range t.edits.snvIns {
		inBlock := posInBlocks(blocks, pos)
		atBoundary := posAtBlockStart(blocks, pos)
		var kept []snvInsEdit
		for _, e := range edits {
			if e.Source == Somatic && !includeSomatic {
				continue
			}
			if e.Source == Germline && !includeGermline {
				continue
			}
			switch e.Kind {
			case SNV:
				if inBlock {
					kept = append(kept, e)
				}
			case Insertion:
				if inBlock || atBoundary {
					kept = append(kept, e)
				}
			}
		}
		if snvs := filterSomaticWinsOverGermline(kept); len(snvs) > 0 {
			filtered[pos] = snvs
		}
	}
	return filtered, blocks
}

// filterSomaticWinsOverGermline keeps at most one V per position: if a
// somatic and germline V collide, the somatic one wins (spec.md §4.2
// point 4); insertions are left untouched since multiple insertions at
// one position are legal.
func filterSomaticWinsOverGermline(edits []snvInsEdit) []snvInsEdit {
	var vs []snvInsEdit
	for _, e := range edits {
		if e.Kind == SNV {
			vs = append(vs, e)
		}
	}
	if len(vs) <= 1 {
		return edits
	}
	var somatic *snvInsEdit
	for i := range vs {
		if vs[i].Source == Somatic {
			somatic = &vs[i]
		}
	}
	var out []snvInsEdit
	for _, e := range edits {
		if e.Kind == SNV {
			if somatic != nil && e.Source != Somatic {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// mergedDeletion is the result of sweeping overlapping deletionEdits
// together.
type mergedDeletion struct {
	Start, End int64
	Origin     string
	Infos      []VariantInfo
}

// mergeDeletions sorts by (start, end) and sweeps, extending the
// current interval whenever the next one starts at or before its
// current end; a merge across sources produces a hybrid origin tag
// ("GS" or "SG", recording which source's interval opened first).
func mergeDeletions(deletions []deletionEdit) []mergedDeletion {
	if len(deletions) == 0 {
		return nil
	}
	sorted := append([]deletionEdit(nil), deletions...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	var out []mergedDeletion
	cur := mergedDeletion{Start: sorted[0].Start, End: sorted[0].End, Origin: string(sorted[0].Source), Infos: []VariantInfo{sorted[0].Info}}
	for _, d := range sorted[1:] {
		if d.Start <= cur.End {
			if d.End > cur.End {
				cur.End = d.End
			}
			if !strings.ContainsRune(cur.Origin, rune(d.Source)) {
				cur.Origin += string(d.Source)
			}
			cur.Infos = append(cur.Infos, d.Info)
		} else {
			out = append(out, cur)
			cur = mergedDeletion{Start: d.Start, End: d.End, Origin: string(d.Source), Infos: []VariantInfo{d.Info}}
		}
	}
	out = append(out, cur)
	return out
}

// carveDeletion splits any block overlapping d into a leading
// reference piece, the deletion piece itself, and a trailing reference
// piece, dropping the part of d that falls outside every block
// (intronic bases already excluded from the coding sequence).
func carveDeletion(blocks []block, d mergedDeletion) []block {
	var out []block
	for _, b := range blocks {
		os := maxInt64(b.Start, d.Start)
		oe := minInt64(b.End, d.End)
		if os >= oe {
			out = append(out, b)
			continue
		}
		if b.Start < os {
			out = append(out, block{Start: b.Start, End: os, Origin: "R"})
		}
		out = append(out, block{Start: os, End: oe, Origin: d.Origin, Infos: d.Infos})
		if oe < b.End {
			out = append(out, block{Start: oe, End: b.End, Origin: "R"})
		}
	}
	return out
}

func posInBlocks(blocks []block, pos int64) bool {
	for _, b := range blocks {
		if pos >= b.Start && pos < b.End {
			return true
		}
	}
	return false
}

func posAtBlockStart(blocks []block, pos int64) bool {
	for _, b := range blocks {
		if b.Start == pos {
			return true
		}
	}
	return false
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Segment is one piece of an annotated sequence: nucleotides, the
// origin that produced them ("R", "S", "G", "GS", "SG"), the variant
// info records responsible (empty for "R"), the 1-based genomic
// position of the segment's first base before any strand reversal, and
// RefLen, the number of reference bases this segment stands in for
// (used to keep a parallel reference sequence in sync during neopeptide
// enumeration).
type Segment struct {
	Seq        string
	Origin     string
	Infos      []VariantInfo
	GenomicPos int64
	RefLen     int64
}

// AnnotatedSeq walks the blocks produced by ExpressedEdits, fetches
// reference bases for each "R" block, splices in SNVs/insertions at
// their offsets, and emits zero-length marker segments for deletions.
// For the minus strand, the result is reversed and every segment's
// nucleotides reverse-complemented. Grounded on spec.md §4.3 /
// neoepiscope's annotated_seq.
func (t *Transcript) AnnotatedSeq(includeSomatic, includeGermline bool) ([]Segment, error) {
	edits, blocks := t.ExpressedEdits(includeSomatic, includeGermline)

	// Insertions anchored at the start of a block are shifted to the
	// end of the previous block so they are actually placed (spec.md
	// §4.3); the very first block has no predecessor to shift to.
	shifted := make(map[int64][]snvInsEdit, len(edits))
	for pos, es := range edits {
		shifted[pos] = es
	}
	for bi := 1; bi < len(blocks); bi++ {
		pos := blocks[bi].Start
		es, ok := shifted[pos]
		if !ok {
			continue
		}
		var ins, rest []snvInsEdit
		for _, e := range es {
			if e.Kind == Insertion {
				ins = append(ins, e)
			} else {
				rest = append(rest, e)
			}
		}
		if len(ins) == 0 {
			continue
		}
		prevEnd := blocks[bi-1].End
		shifted[prevEnd] = append(shifted[prevEnd], ins...)
		if len(rest) > 0 {
			shifted[pos] = rest
		} else {
			delete(shifted, pos)
		}
	}

	var segs []Segment
	for _, b := range blocks {
		if b.Origin != "R" {
			segs = append(segs, Segment{Seq: "", Origin: b.Origin, Infos: b.Infos, GenomicPos: b.Start + 1, RefLen: b.End - b.Start})
			continue
		}
		ref, err := t.Genome.FetchStretch(t.Record.Chrom, b.Start, int(b.End-b.Start))
		if err != nil {
			return nil, err
		}
		var positions []int64
		for pos := range shifted {
			if pos >= b.Start && pos < b.End {
				positions = append(positions, pos)
			}
		}
		sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

		last := b.Start
		for _, pos := range positions {
			if pos > last {
				piece := ref[last-b.Start : pos-b.Start]
				segs = append(segs, Segment{Seq: piece, Origin: "R", GenomicPos: last + 1, RefLen: int64(len(piece))})
			}
			var v, ins *snvInsEdit
			for i, e := range shifted[pos] {
				switch shifted[pos][i].Kind {
				case SNV:
					v = &shifted[pos][i]
				case Insertion:
					ins = &shifted[pos][i]
				}
				_ = e
			}
			if v != nil {
				segs = append(segs, Segment{Seq: v.Seq, Origin: string(v.Source), Infos: []VariantInfo{v.Info}, GenomicPos: pos + 1, RefLen: int64(len(v.Info.Ref))})
				last = pos + 1
			}
			if ins != nil {
				segs = append(segs, Segment{Seq: ins.Seq, Origin: string(ins.Source), Infos: []VariantInfo{ins.Info}, GenomicPos: pos + 1, RefLen: 0})
			}
		}
		if last < b.End {
			piece := ref[last-b.Start:]
			segs = append(segs, Segment{Seq: piece, Origin: "R", GenomicPos: last + 1, RefLen: int64(len(piece))})
		}
		// An insertion shifted to this block's end boundary falls one
		// past b.End, outside the [b.Start, b.End) scan above; append it
		// here so it is not silently dropped.
		for _, e := range shifted[b.End] {
			if e.Kind == Insertion {
				segs = append(segs, Segment{Seq: e.Seq, Origin: string(e.Source), Infos: []VariantInfo{e.Info}, GenomicPos: b.End + 1, RefLen: 0})
			}
		}
	}

	segs = mergeAdjacentSegments(segs)

	if t.Record.Strand == annotation.Minus {
		reversed := make([]Segment, len(segs))
		for i, s := range segs {
			reversed[len(segs)-1-i] = Segment{
				Seq:        kmer.ReverseComplement(s.Seq),
				Origin:     s.Origin,
				Infos:      s.Infos,
				GenomicPos: s.GenomicPos,
				RefLen:     s.RefLen,
			}
		}
		return reversed, nil
	}
	return segs, nil
}

// mergeAdjacentSegments concatenates consecutive segments sharing an
// origin tag, matching neoepiscope's _seq_append merge behavior so a
// long reference stretch is reported as one "R" segment.
func mergeAdjacentSegments(segs []Segment) []Segment {
	if len(segs) == 0 {
		return segs
	}
	out := []Segment{segs[0]}
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if last.Origin == s.Origin {
			last.Seq += s.Seq
			last.Infos = append(last.Infos, s.Infos...)
			last.RefLen += s.RefLen
			continue
		}
		out = append(out, s)
	}
	return out
}
