// Package intervaltree provides per-chromosome overlap queries mapping
// a genomic interval to the set of transcript ids whose exons intersect
// it. It is a generalization of the VEP cache's sorted-slice interval
// tree (intervals sorted by start plus a running maximum of their ends)
// to many (possibly overlapping) intervals per transcript id.
package intervaltree

import "sort"

// Tree is a per-chromosome interval index over half-open [Start, End)
// genomic intervals.
type Tree struct {
	byChrom map[string]*chromTree
}

type chromTree struct {
	intervals []interval
	maxEnd    []int64
}

type interval struct {
	start int64
	end   int64
	id    string
}

// New creates an empty interval index.
func New() *Tree {
	return &Tree{byChrom: make(map[string]*chromTree)}
}

// builder accumulates raw intervals before Build freezes the index.
type builder struct {
	byChrom map[string][]interval
}

// NewBuilder creates a builder for constructing a Tree incrementally.
func NewBuilder() *builder {
	return &builder{byChrom: make(map[string][]interval)}
}

// Add registers a half-open genomic interval [start, end) for id on chrom.
func (b *builder) Add(chrom string, start, end int64, id string) {
	b.byChrom[chrom] = append(b.byChrom[chrom], interval{start: start, end: end, id: id})
}

// Build freezes the accumulated intervals into a queryable Tree.
func (b *builder) Build() *Tree {
	t := &Tree{byChrom: make(map[string]*chromTree, len(b.byChrom))}
	for chrom, ivs := range b.byChrom {
		t.byChrom[chrom] = buildChromTree(ivs)
	}
	return t
}

func buildChromTree(ivs []interval) *chromTree {
	if len(ivs) == 0 {
		return &chromTree{}
	}
	sorted := make([]interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	// maxEnd[i] is the largest end among sorted[0..i], so Query's
	// right-to-left scan can stop once no earlier interval reaches start.
	maxEnd := make([]int64, len(sorted))
	maxEnd[0] = sorted[0].end
	for i := 1; i < len(sorted); i++ {
		maxEnd[i] = sorted[i].end
		if maxEnd[i-1] > maxEnd[i] {
			maxEnd[i] = maxEnd[i-1]
		}
	}
	return &chromTree{intervals: sorted, maxEnd: maxEnd}
}

// Query returns the set of distinct ids whose interval overlaps the
// half-open genomic range [start, end) on chrom.
func (t *Tree) Query(chrom string, start, end int64) []string {
	ct, ok := t.byChrom[chrom]
	if !ok || len(ct.intervals) == 0 {
		return nil
	}

	// Candidates must have interval.start < end; binary search the
	// rightmost index with start < end.
	hi := sort.Search(len(ct.intervals), func(i int) bool {
		return ct.intervals[i].start >= end
	})

	seen := make(map[string]struct{})
	var result []string
	for i := hi - 1; i >= 0; i-- {
		if ct.maxEnd[i] <= start {
			break
		}
		iv := ct.intervals[i]
		if iv.end > start && iv.start < end {
			if _, dup := seen[iv.id]; !dup {
				seen[iv.id] = struct{}{}
				result = append(result, iv.id)
			}
		}
	}
	return result
}
