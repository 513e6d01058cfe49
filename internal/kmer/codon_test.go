package kmer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateCodon(t *testing.T) {
	assert.Equal(t, byte('M'), TranslateCodon("ATG"))
	assert.Equal(t, byte('X'), TranslateCodon("TAA"))
	assert.Equal(t, byte('X'), TranslateCodon("TAG"))
	assert.Equal(t, byte('X'), TranslateCodon("TGA"))
	assert.Equal(t, byte('X'), TranslateCodon("AT"))
	assert.Equal(t, byte('G'), TranslateCodon("ggg"))
}

func TestIsStartStopCodon(t *testing.T) {
	assert.True(t, IsStartCodon("atg"))
	assert.False(t, IsStartCodon("ATC"))
	assert.True(t, IsStopCodon("TGA"))
	assert.False(t, IsStopCodon("TGG"))
}

func TestReverseComplement(t *testing.T) {
	assert.Equal(t, "CAT", ReverseComplement("ATG"))
	assert.Equal(t, "NCAT", ReverseComplement("ATGN"))
}

func TestTranslateFromStart(t *testing.T) {
	assert.Equal(t, "MX", TranslateFromStart("ATGTAA"))
	assert.Equal(t, "MG", TranslateFromStart("ATGGGG"))
	// trailing partial codon ignored
	assert.Equal(t, "M", TranslateFromStart("ATGG"))
}
