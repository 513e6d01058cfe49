package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingFrameSingleExon(t *testing.T) {
	r, err := NewRecord("ENST1", singleExonFeatures())
	require.NoError(t, err)

	frame, ok := r.ReadingFrame(11) // first base of the start codon
	require.True(t, ok)
	assert.Equal(t, 0, frame)

	frame, ok = r.ReadingFrame(15) // 4 bases downstream
	require.True(t, ok)
	assert.Equal(t, 1, frame)
}

func TestReadingFrameOutsideExonIsFalse(t *testing.T) {
	features := []Feature{
		{Chrom: "chr1", Kind: "exon", Start1: 11, End1: 20, Strand: Plus},
		{Chrom: "chr1", Kind: "exon", Start1: 31, End1: 50, Strand: Plus},
		{Chrom: "chr1", Kind: "start_codon", Start1: 11, End1: 13, Strand: Plus},
		{Chrom: "chr1", Kind: "stop_codon", Start1: 45, End1: 47, Strand: Plus},
	}
	r, err := NewRecord("ENST_MULTI", features)
	require.NoError(t, err)

	// pos1=25 (0-based 24) falls in the intron between the two exons.
	_, ok := r.ReadingFrame(25)
	assert.False(t, ok)
}

func TestReadingFrameCrossesExonBoundary(t *testing.T) {
	features := []Feature{
		{Chrom: "chr1", Kind: "exon", Start1: 11, End1: 20, Strand: Plus},
		{Chrom: "chr1", Kind: "exon", Start1: 31, End1: 50, Strand: Plus},
		{Chrom: "chr1", Kind: "start_codon", Start1: 11, End1: 13, Strand: Plus},
		{Chrom: "chr1", Kind: "stop_codon", Start1: 45, End1: 47, Strand: Plus},
	}
	r, err := NewRecord("ENST_MULTI", features)
	require.NoError(t, err)

	// pos1=36 (0-based 35): 10 exonic bases in the first exon plus 5
	// bases into the second exon = 15 exonic bases from the start codon.
	frame, ok := r.ReadingFrame(36)
	require.True(t, ok)
	assert.Equal(t, 0, frame)
}

func TestReadingFrameMinusStrand(t *testing.T) {
	features := []Feature{
		{Chrom: "chr2", Kind: "exon", Start1: 11, End1: 40, Strand: Minus},
		{Chrom: "chr2", Kind: "start_codon", Start1: 38, End1: 40, Strand: Minus},
		{Chrom: "chr2", Kind: "stop_codon", Start1: 14, End1: 16, Strand: Minus},
	}
	r, err := NewRecord("ENST_MINUS", features)
	require.NoError(t, err)

	// pos1=38 is the start codon's own leftmost genomic base (Start1),
	// which always reads as frame 0 regardless of strand direction.
	frame, ok := r.ReadingFrame(38)
	require.True(t, ok)
	assert.Equal(t, 0, frame)

	// One genomic base to the right (pos0=38): the raw genomic distance
	// is +1, which negates to -1 on the minus strand and wraps to frame 2.
	frame, ok = r.ReadingFrame(39)
	require.True(t, ok)
	assert.Equal(t, 2, frame)

	// One genomic base to the left (pos0=36): the raw genomic distance
	// is -1, which negates to +1 on the minus strand.
	frame, ok = r.ReadingFrame(37)
	require.True(t, ok)
	assert.Equal(t, 1, frame)
}

func TestCodingDistanceFromSameExon(t *testing.T) {
	r, err := NewRecord("ENST1", singleExonFeatures())
	require.NoError(t, err)

	dist, ok := r.CodingDistanceFrom(10, 14)
	require.True(t, ok)
	assert.Equal(t, int64(4), dist)

	dist, ok = r.CodingDistanceFrom(14, 10)
	require.True(t, ok)
	assert.Equal(t, int64(-4), dist)
}

func TestCodingDistanceFromOutsideExonIsFalse(t *testing.T) {
	r, err := NewRecord("ENST1", singleExonFeatures())
	require.NoError(t, err)

	_, ok := r.CodingDistanceFrom(10, 5)
	assert.False(t, ok)
}
