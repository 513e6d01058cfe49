package genome

import "strings"

// MapAccessor is an in-memory Accessor backed by a map of whole
// chromosome sequences. It is intended for tests and small synthetic
// genomes; production use should prefer FastaAccessor.
type MapAccessor map[string]string

// NewMapAccessor normalizes every sequence to uppercase and returns an
// Accessor backed by the given chrom -> sequence map.
func NewMapAccessor(chroms map[string]string) MapAccessor {
	m := make(MapAccessor, len(chroms))
	for chrom, seq := range chroms {
		m[chrom] = strings.ToUpper(seq)
	}
	return m
}

// FetchStretch implements Accessor.
func (m MapAccessor) FetchStretch(chrom string, start0 int64, length int) (string, error) {
	seq, ok := m[chrom]
	if !ok {
		return "", &ErrOutOfBounds{Chrom: chrom, Start0: start0, Length: length}
	}
	if start0 < 0 || length < 0 || start0+int64(length) > int64(len(seq)) {
		return "", &ErrOutOfBounds{Chrom: chrom, Start0: start0, Length: length}
	}
	return seq[start0 : start0+int64(length)], nil
}
