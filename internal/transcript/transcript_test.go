package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-neo/internal/annotation"
	"github.com/inodb/vibe-neo/internal/genome"
)

// plusStrandExon builds a single-exon plus-strand transcript on chr1:
// 10 bases of padding, a 30-base exon at [10,40) encoding
// ATG GCT GAT CGT AAA CCC GGG TTT TAA CCC, then 10 more bases of
// padding. Codon 8 (TAA) is the annotated stop.
func plusStrandExon(t *testing.T) (*annotation.Record, genome.Accessor) {
	t.Helper()
	chrom := "NNNNNNNNNN" + "ATGGCTGATCGTAAACCCGGGTTTTAACCC" + "NNNNNNNNNN"
	rec, err := annotation.NewRecord("ENST_PLUS", []annotation.Feature{
		{Chrom: "chr1", Kind: "exon", Start1: 11, End1: 40, Strand: annotation.Plus},
		{Chrom: "chr1", Kind: "start_codon", Start1: 11, End1: 13, Strand: annotation.Plus},
		{Chrom: "chr1", Kind: "stop_codon", Start1: 35, End1: 37, Strand: annotation.Plus},
	})
	require.NoError(t, err)
	acc := genome.NewMapAccessor(map[string]string{"chr1": chrom})
	return rec, acc
}

// minusStrandExon mirrors plusStrandExon but on the minus strand: the
// genomic (forward-strand) sequence is the reverse complement of the
// same coding sequence, laid out at [10,40) on chr2, transcribed
// right-to-left.
func minusStrandExon(t *testing.T) (*annotation.Record, genome.Accessor) {
	t.Helper()
	coding := "ATGGCTGATCGTAAACCCGGGTTTTAACCC"
	forward := reverseComplementForTest(coding)
	chrom := "NNNNNNNNNN" + forward + "NNNNNNNNNN"
	// On the minus strand the start codon's first transcribed base is
	// the highest genomic coordinate of its span: forward bases at
	// [10,13) hold the reverse complement of the stop-proximal end, and
	// forward bases at [37,40) hold the reverse complement of "ATG".
	rec, err := annotation.NewRecord("ENST_MINUS", []annotation.Feature{
		{Chrom: "chr2", Kind: "exon", Start1: 11, End1: 40, Strand: annotation.Minus},
		{Chrom: "chr2", Kind: "start_codon", Start1: 38, End1: 40, Strand: annotation.Minus},
		{Chrom: "chr2", Kind: "stop_codon", Start1: 14, End1: 16, Strand: annotation.Minus},
	})
	require.NoError(t, err)
	acc := genome.NewMapAccessor(map[string]string{"chr2": chrom})
	return rec, acc
}

func reverseComplementForTest(seq string) string {
	comp := map[byte]byte{'A': 'T', 'T': 'A', 'G': 'C', 'C': 'G'}
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		out[len(seq)-1-i] = comp[seq[i]]
	}
	return string(out)
}

func TestApplyEditDuplicateSNV(t *testing.T) {
	rec, acc := plusStrandExon(t)
	tr := New(rec, acc)

	require.NoError(t, tr.ApplyEdit(15, "T", SNV, Somatic, nil))
	err := tr.ApplyEdit(15, "A", SNV, Somatic, nil)
	assert.Error(t, err)
	var dup *duplicateSNVError
	assert.ErrorAs(t, err, &dup)
}

func TestApplyEditReferenceMismatch(t *testing.T) {
	rec, acc := plusStrandExon(t)
	tr := New(rec, acc)

	// Position 16 holds "T" (codon1's third base), not "A".
	err := tr.ApplyEdit(16, "A", Deletion, Somatic, nil)
	assert.Error(t, err)
	var mismatch *referenceMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestSaveResetRoundTrip(t *testing.T) {
	rec, acc := plusStrandExon(t)
	tr := New(rec, acc)

	require.NoError(t, tr.ApplyEdit(15, "T", SNV, Germline, nil))
	tr.Save()
	require.NoError(t, tr.ApplyEdit(25, "A", SNV, Somatic, nil))
	assert.True(t, tr.HasEdits())

	tr.Reset(false)
	segs, err := tr.AnnotatedSeq(true, true)
	require.NoError(t, err)
	assert.NotEmpty(t, segs)

	tr.Reset(true)
	assert.False(t, tr.HasEdits())
}

func TestAnnotatedSeqReferenceIdempotence(t *testing.T) {
	rec, acc := plusStrandExon(t)
	tr := New(rec, acc)

	segs, err := tr.AnnotatedSeq(true, true)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "R", segs[0].Origin)
	assert.Equal(t, "ATGGCTGATCGTAAACCCGGGTTTTAACCC", segs[0].Seq)
}

func TestAnnotatedSeqInsertionShiftedToPreviousExonEnd(t *testing.T) {
	// Two exons, [10,20) and [30,40), on chr1, joined by a 10-base
	// intron. An insertion anchored at the start of exon2 (0-based 30)
	// is shifted to the end of exon1 (0-based 20) rather than becoming
	// the first element of exon2's piece.
	chrom := "NNNNNNNNNN" + "AAAAAAAAAA" + "NNNNNNNNNN" + "CCCCCCCCCC" + "NNNNNNNNNN"
	rec, err := annotation.NewRecord("ENST_TWOEXON", []annotation.Feature{
		{Chrom: "chr1", Kind: "exon", Start1: 11, End1: 20, Strand: annotation.Plus},
		{Chrom: "chr1", Kind: "exon", Start1: 31, End1: 40, Strand: annotation.Plus},
		{Chrom: "chr1", Kind: "start_codon", Start1: 11, End1: 13, Strand: annotation.Plus},
		{Chrom: "chr1", Kind: "stop_codon", Start1: 35, End1: 37, Strand: annotation.Plus},
	})
	require.NoError(t, err)
	acc := genome.NewMapAccessor(map[string]string{"chr1": chrom})
	tr := New(rec, acc)

	require.NoError(t, tr.ApplyEdit(31, "GGG", Insertion, Somatic, nil))
	segs, err := tr.AnnotatedSeq(true, false)
	require.NoError(t, err)

	require.Len(t, segs, 3)
	assert.Equal(t, "AAAAAAAAAA", segs[0].Seq)
	assert.Equal(t, "GGG", segs[1].Seq)
	assert.Equal(t, string(Somatic), segs[1].Origin)
	assert.Equal(t, int64(21), segs[1].GenomicPos)
	assert.Equal(t, "CCCCCCCCCC", segs[2].Seq)
}

// twoExonSpliceJunction builds a two-exon plus-strand transcript on
// chr1 with an 18-base intron between exon1 [10,22) and exon2 [40,58),
// so a deletion that reads past the end of exon1 without reaching
// exon2 lands with its far endpoint in intronic sequence.
func twoExonSpliceJunction(t *testing.T) (*annotation.Record, genome.Accessor) {
	t.Helper()
	chrom := "NNNNNNNNNN" + "ATGGCTGATCGT" + "NNNNNNNNNNNNNNNNNN" + "AAACCCGGGTTTTAACCC" + "NNNNNNNNNN"
	rec, err := annotation.NewRecord("ENST_SPLICE", []annotation.Feature{
		{Chrom: "chr1", Kind: "exon", Start1: 11, End1: 22, Strand: annotation.Plus},
		{Chrom: "chr1", Kind: "exon", Start1: 41, End1: 58, Strand: annotation.Plus},
		{Chrom: "chr1", Kind: "start_codon", Start1: 11, End1: 13, Strand: annotation.Plus},
		{Chrom: "chr1", Kind: "stop_codon", Start1: 53, End1: 55, Strand: annotation.Plus},
	})
	require.NoError(t, err)
	acc := genome.NewMapAccessor(map[string]string{"chr1": chrom})
	return rec, acc
}

func TestHasUndefinedFrameDeletionSpliceCrossingIntoIntron(t *testing.T) {
	rec, acc := twoExonSpliceJunction(t)
	tr := New(rec, acc)

	// Starts at 1-based 20 (inside exon1) and runs 10 bases, ending at
	// 1-based 29, which falls in the intron (23-40) rather than exon2.
	require.NoError(t, tr.ApplyEdit(20, "10", Deletion, Somatic, nil))

	assert.True(t, tr.HasUndefinedFrameDeletion(true, true))
	assert.Nil(t, tr.Neopeptides(defaultOptions()))
}

func TestHasUndefinedFrameDeletionWithinSingleExonIsFalse(t *testing.T) {
	rec, acc := twoExonSpliceJunction(t)
	tr := New(rec, acc)

	require.NoError(t, tr.ApplyEdit(14, "4", Deletion, Somatic, nil))
	assert.False(t, tr.HasUndefinedFrameDeletion(true, true))
}

func TestHasUndefinedFrameDeletionIgnoresExcludedSource(t *testing.T) {
	rec, acc := twoExonSpliceJunction(t)
	tr := New(rec, acc)

	require.NoError(t, tr.ApplyEdit(20, "10", Deletion, Germline, nil))

	// The splice-crossing deletion is germline; excluding germline
	// entirely means it never reaches the frame check.
	assert.False(t, tr.HasUndefinedFrameDeletion(true, false))
	assert.True(t, tr.HasUndefinedFrameDeletion(true, true))
}

func TestExpressedEditsHybridDeletionMerge(t *testing.T) {
	rec, acc := plusStrandExon(t)
	tr := New(rec, acc)

	// Overlapping germline [19,25) and somatic [22,26) deletions (0-based,
	// codon3, codon4 and codon5's first base) should merge into one
	// hybrid "GS"/"SG" block.
	require.NoError(t, tr.ApplyEdit(20, "6", Deletion, Germline, nil))
	require.NoError(t, tr.ApplyEdit(23, "4", Deletion, Somatic, nil))

	_, blocks := tr.ExpressedEdits(true, true)
	var hybrid *block
	for i := range blocks {
		if blocks[i].Origin != "R" {
			hybrid = &blocks[i]
		}
	}
	require.NotNil(t, hybrid)
	assert.Len(t, hybrid.Origin, 2)
	assert.Contains(t, hybrid.Origin, "G")
	assert.Contains(t, hybrid.Origin, "S")
}
