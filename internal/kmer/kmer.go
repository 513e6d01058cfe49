package kmer

// Kmerize returns every contiguous substring of peptide with length in
// [minSize, maxSize] that contains no stop-codon placeholder ('X').
// Grounded on neoepiscope's kmerize_peptide.
func Kmerize(peptide string, minSize, maxSize int) []string {
	if minSize < 1 {
		minSize = 1
	}
	if maxSize < minSize {
		maxSize = minSize
	}
	var out []string
	n := len(peptide)
	for size := minSize; size <= maxSize; size++ {
		if size > n {
			continue
		}
		for i := 0; i+size <= n; i++ {
			window := peptide[i : i+size]
			if containsStop(window) {
				continue
			}
			out = append(out, window)
		}
	}
	return out
}

func containsStop(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == StopAA {
			return true
		}
	}
	return false
}

// KmerSet returns the distinct k-mers of exactly size present in peptide.
func KmerSet(peptide string, size int) map[string]struct{} {
	set := make(map[string]struct{})
	for _, k := range Kmerize(peptide, size, size) {
		set[k] = struct{}{}
	}
	return set
}
