package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-neo/internal/annotation"
	"github.com/inodb/vibe-neo/internal/genome"
)

func defaultOptions() NeopeptideOptions {
	return NeopeptideOptions{
		MinSize:          8,
		MaxSize:          8,
		Somatic:          IncludeAsVariant,
		Germline:         IncludeExclude,
		StartCodonPolicy: PolicyNovel,
	}
}

// TestNeopeptidesMissenseSNV covers scenario 1 (pure SNV, plus strand):
// a single non-silent somatic SNV should surface exactly the 8-mer
// spanning the altered codon, and nothing matching the reference.
func TestNeopeptidesMissenseSNV(t *testing.T) {
	rec, acc := plusStrandExon(t)
	tr := New(rec, acc)

	// Codon1 "GCT" (Ala) -> "GTT" (Val) by flipping its middle base.
	require.NoError(t, tr.ApplyEdit(15, "T", SNV, Somatic, nil))

	results := tr.Neopeptides(defaultOptions())
	require.NotEmpty(t, results)

	var peptides []string
	for _, r := range results {
		peptides = append(peptides, r.Peptide)
	}
	assert.Contains(t, peptides, "MVDRKPGF")
	for _, p := range peptides {
		assert.NotContains(t, p, "X")
	}
}

// TestNeopeptidesSilentSNVProducesNothing covers the "no silent SNV
// peptides" invariant of spec.md §8: a synonymous substitution must not
// surface any neopeptide.
func TestNeopeptidesSilentSNVProducesNothing(t *testing.T) {
	rec, acc := plusStrandExon(t)
	tr := New(rec, acc)

	// Codon4 "AAA" (Lys) -> "AAG" (still Lys): synonymous.
	require.NoError(t, tr.ApplyEdit(25, "G", SNV, Somatic, nil))

	results := tr.Neopeptides(defaultOptions())
	assert.Empty(t, results)
}

// TestNeopeptidesFrameShiftDeletionNonstop covers scenario 3: a
// deletion whose size is not a multiple of 3 shifts the reading frame
// for the remainder of the transcript, and since the shifted frame
// never reaches an in-frame stop before the sequence ends, a "nonstop"
// warning is attached to every surviving peptide.
func TestNeopeptidesFrameShiftDeletionNonstop(t *testing.T) {
	rec, acc := plusStrandExon(t)
	tr := New(rec, acc)

	// Delete a single base (0-based 15, codon1's third base): frame
	// shifts by -1 for everything downstream.
	require.NoError(t, tr.ApplyEdit(16, "1", Deletion, Somatic, nil))

	results := tr.Neopeptides(defaultOptions())
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Contains(t, r.Warnings, "nonstop")
	}
}

// TestNeopeptidesMinusStrandSNV covers scenario 6: the same missense
// logic applied on a minus-strand transcript, exercising the
// reverse-complement path through AnnotatedSeq and referencePiece.
func TestNeopeptidesMinusStrandSNV(t *testing.T) {
	rec, acc := minusStrandExon(t)
	tr := New(rec, acc)

	// codon1's middle base ("GCT" -> "GTT", the same Ala->Val change as
	// the plus-strand case) sits on the forward strand at 1-based
	// position 36; since the mutated sequence is reverse-complemented
	// back to coding orientation, the alt must be given as "A" (whose
	// complement is "T") rather than "T" directly.
	require.NoError(t, tr.ApplyEdit(36, "A", SNV, Somatic, nil))

	results := tr.Neopeptides(defaultOptions())
	require.NotEmpty(t, results)
	var peptides []string
	for _, r := range results {
		peptides = append(peptides, r.Peptide)
	}
	assert.Contains(t, peptides, "MVDRKPGF")
}

func TestNeopeptidesGuardClauses(t *testing.T) {
	rec, acc := plusStrandExon(t)
	tr := New(rec, acc)
	require.NoError(t, tr.ApplyEdit(15, "T", SNV, Somatic, nil))

	opts := defaultOptions()
	opts.Somatic = IncludeExclude
	opts.Germline = IncludeExclude
	assert.Nil(t, tr.Neopeptides(opts))

	opts = defaultOptions()
	opts.MinSize = 1
	assert.Nil(t, tr.Neopeptides(opts))

	emptyTr := New(rec, acc)
	assert.Nil(t, emptyTr.Neopeptides(defaultOptions()))
}

func TestNeopeptidesBackgroundInclusionSuppressesNovelty(t *testing.T) {
	rec, acc := plusStrandExon(t)
	tr := New(rec, acc)
	require.NoError(t, tr.ApplyEdit(15, "T", SNV, Germline, nil))

	opts := defaultOptions()
	opts.Somatic = IncludeExclude
	opts.Germline = IncludeAsBackground

	results := tr.Neopeptides(opts)
	assert.Empty(t, results)
}

func TestKmerFindATGCandidatesAndChooseStartCodons(t *testing.T) {
	mutSeq := "CCATGAAATAG"
	refSeq := "CCATGAAATAG"
	intervals := []mapInterval{{0, len(mutSeq), 0, len(refSeq), true}}
	cands := findATGCandidates(mutSeq, refSeq, intervals, 2)
	require.NotEmpty(t, cands)

	starts := chooseStartCodons(cands, 2, PolicyNovel, 1)
	require.Len(t, starts, 1)
	assert.Equal(t, 2, starts[0])
	frame := ((starts[0]-2)%3 + 3) % 3
	assert.Equal(t, 0, frame)
}
