package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAddGetLen(t *testing.T) {
	store := NewStore()
	assert.Equal(t, 0, store.Len())
	assert.Nil(t, store.Get("ENST1"))

	r, err := NewRecord("ENST1", singleExonFeatures())
	require.NoError(t, err)
	store.Add(r)

	assert.Equal(t, 1, store.Len())
	assert.Same(t, r, store.Get("ENST1"))
}

func TestStoreAddReplacesSameID(t *testing.T) {
	store := NewStore()
	r1, err := NewRecord("ENST1", singleExonFeatures())
	require.NoError(t, err)
	store.Add(r1)

	features2 := []Feature{
		{Chrom: "chr2", Kind: "exon", Start1: 1, End1: 30, Strand: Minus},
		{Chrom: "chr2", Kind: "start_codon", Start1: 25, End1: 27, Strand: Minus},
		{Chrom: "chr2", Kind: "stop_codon", Start1: 1, End1: 3, Strand: Minus},
	}
	r2, err := NewRecord("ENST1", features2)
	require.NoError(t, err)
	store.Add(r2)

	assert.Equal(t, 1, store.Len())
	assert.Same(t, r2, store.Get("ENST1"))
}

func TestStoreTranscriptIDsSorted(t *testing.T) {
	store := NewStore()
	for _, id := range []string{"ENST3", "ENST1", "ENST2"} {
		r, err := NewRecord(id, singleExonFeatures())
		require.NoError(t, err)
		store.Add(r)
	}

	assert.Equal(t, []string{"ENST1", "ENST2", "ENST3"}, store.TranscriptIDs())
}

func TestStoreBuildIndexFindsOverlappingTranscript(t *testing.T) {
	store := NewStore()
	r, err := NewRecord("ENST1", singleExonFeatures())
	require.NoError(t, err)
	store.Add(r)

	tree := store.BuildIndex()
	ids := tree.Query("chr1", 15, 16)
	assert.Equal(t, []string{"ENST1"}, ids)

	assert.Empty(t, tree.Query("chr1", 1000, 1001))
	assert.Empty(t, tree.Query("chr2", 15, 16))
}
