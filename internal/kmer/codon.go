// Package kmer provides nucleotide-to-amino-acid translation and
// sliding-window peptide k-mer enumeration.
package kmer

import "strings"

// Standard genetic code: DNA codon to amino acid (single letter).
// Stop codons translate to 'X'.
var codonTable = map[string]byte{
	"TTT": 'F', "TTC": 'F', "TTA": 'L', "TTG": 'L',
	"TCT": 'S', "TCC": 'S', "TCA": 'S', "TCG": 'S',
	"TAT": 'Y', "TAC": 'Y', "TAA": 'X', "TAG": 'X',
	"TGT": 'C', "TGC": 'C', "TGA": 'X', "TGG": 'W',

	"CTT": 'L', "CTC": 'L', "CTA": 'L', "CTG": 'L',
	"CCT": 'P', "CCC": 'P', "CCA": 'P', "CCG": 'P',
	"CAT": 'H', "CAC": 'H', "CAA": 'Q', "CAG": 'Q',
	"CGT": 'R', "CGC": 'R', "CGA": 'R', "CGG": 'R',

	"ATT": 'I', "ATC": 'I', "ATA": 'I', "ATG": 'M',
	"ACT": 'T', "ACC": 'T', "ACA": 'T', "ACG": 'T',
	"AAT": 'N', "AAC": 'N', "AAA": 'K', "AAG": 'K',
	"AGT": 'S', "AGC": 'S', "AGA": 'R', "AGG": 'R',

	"GTT": 'V', "GTC": 'V', "GTA": 'V', "GTG": 'V',
	"GCT": 'A', "GCC": 'A', "GCA": 'A', "GCG": 'A',
	"GAT": 'D', "GAC": 'D', "GAA": 'E', "GAG": 'E',
	"GGT": 'G', "GGC": 'G', "GGA": 'G', "GGG": 'G',
}

var complementMap = map[byte]byte{
	'A': 'T', 'T': 'A', 'G': 'C', 'C': 'G',
	'a': 't', 't': 'a', 'g': 'c', 'c': 'g',
	'N': 'N', 'n': 'n',
}

// StopAA is the amino-acid placeholder emitted for a stop codon.
const StopAA = 'X'

// TranslateCodon translates a single DNA codon to its amino acid.
// Unrecognized triplets also return 'X', matching the teacher's
// codon.go fallback for unknown/ambiguous codons.
func TranslateCodon(codon string) byte {
	if len(codon) != 3 {
		return StopAA
	}
	if aa, ok := codonTable[strings.ToUpper(codon)]; ok {
		return aa
	}
	return StopAA
}

// IsStopCodon reports whether codon is TAA, TAG, or TGA.
func IsStopCodon(codon string) bool {
	switch strings.ToUpper(codon) {
	case "TAA", "TAG", "TGA":
		return true
	}
	return false
}

// IsStartCodon reports whether codon is the canonical start codon ATG.
func IsStartCodon(codon string) bool {
	return strings.ToUpper(codon) == "ATG"
}

// Complement returns the complementary base, or 'N' if unrecognized.
func Complement(base byte) byte {
	if c, ok := complementMap[base]; ok {
		return c
	}
	return 'N'
}

// ReverseComplement returns the reverse complement of a DNA sequence.
func ReverseComplement(seq string) string {
	n := len(seq)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = Complement(seq[n-1-i])
	}
	return string(out)
}

// TranslateFromStart translates seq, starting at offset 0, through the
// first in-frame stop codon (inclusive, emitted as 'X'). Trailing bases
// that don't fill a full codon are ignored. This mirrors neoepiscope's
// seq_to_peptide: translation halts at the first stop rather than
// continuing to the end of seq.
func TranslateFromStart(seq string) string {
	seq = strings.ToUpper(seq)
	n := len(seq)
	var out strings.Builder
	out.Grow(n / 3)
	for i := 0; i+3 <= n; i += 3 {
		aa := TranslateCodon(seq[i : i+3])
		out.WriteByte(aa)
		if aa == StopAA {
			break
		}
	}
	return out.String()
}

// ReachedStop reports whether a peptide produced by TranslateFromStart
// ends on an in-frame stop codon, as opposed to running off the end of
// the supplied sequence without finding one (the *nonstop-translation*
// case).
func ReachedStop(peptide string) bool {
	return len(peptide) > 0 && peptide[len(peptide)-1] == StopAA
}
