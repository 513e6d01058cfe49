package haplotype

import (
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/inodb/vibe-neo/internal/annotation"
	"github.com/inodb/vibe-neo/internal/genome"
	"github.com/inodb/vibe-neo/internal/intervaltree"
	"github.com/inodb/vibe-neo/internal/transcript"
)

// PeptideHit is one neopeptide surfaced from routing a block through a
// specific transcript copy, carrying the transcript id alongside the
// (peptide, variants, warnings) result spec.md §6's output shape needs.
type PeptideHit struct {
	TranscriptID string
	Peptide      string
	Variants     []transcript.VariantInfo
	Warnings     []string
}

// copyPair is the A/B chromosomal copy of one transcript, reused across
// haplotype blocks (spec.md §4.1 "Used by the router so the A and B
// copies can be reused across haplotypes without re-parsing annotation").
// mu serializes the whole apply-collect-reset cycle a block runs against
// this pair, since ProcessBlocksParallel may hand two blocks that touch
// the same transcript id to different workers concurrently.
type copyPair struct {
	mu   sync.Mutex
	a, b *transcript.Transcript
}

// Router dispatches a phased haplotype block's variants onto the A/B
// Transcript copies of every transcript the block's variants overlap,
// and collects the neopeptides each copy produces. Grounded on
// neoepiscope's get_peptides_from_transcripts.
type Router struct {
	store *annotation.Store
	tree  *intervaltree.Tree
	g     genome.Accessor
	log   *zap.SugaredLogger

	mu    sync.Mutex
	pairs map[string]*copyPair
}

// NewRouter builds a Router over a populated annotation Store and its
// interval index. log may be nil to discard diagnostics.
func NewRouter(store *annotation.Store, tree *intervaltree.Tree, g genome.Accessor, log *zap.SugaredLogger) *Router {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Router{store: store, tree: tree, g: g, log: log, pairs: make(map[string]*copyPair)}
}

func (r *Router) getOrCreate(id string) *copyPair {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pairs[id]; ok {
		return p
	}
	rec := r.store.Get(id)
	p := &copyPair{a: transcript.New(rec, r.g), b: transcript.New(rec, r.g)}
	r.pairs[id] = p
	return p
}

// ProcessBlock applies every variant in block to the transcript copies
// it overlaps and returns the surviving neopeptides. A
// reference-mismatch or duplicate-variant error aborts the whole block
// (spec.md §7 propagation policy): already-touched copies are reset
// before returning so they remain reusable for the next block.
//
// Every transcript id the block touches is resolved up front and its
// pair locked for the whole apply-collect-reset cycle below, so a
// concurrent ProcessBlock call for a different block sharing one of
// these transcripts blocks until this one finishes rather than
// interleaving edits into the same EditStore. Ids are locked in sorted
// order so two blocks that both touch transcripts A and B can never
// deadlock waiting on each other in opposite order.
func (r *Router) ProcessBlock(block *Block, opts transcript.NeopeptideOptions) ([]PeptideHit, error) {
	type variantEdit struct {
		v    *Variant
		pos  int64
		seq  string
		kind transcript.Kind
		ids  []string
	}

	var edits []variantEdit
	idSet := make(map[string]struct{})
	for _, v := range block.Variants {
		pos, seq, kind := DeriveEdit(v)
		start0, end0 := variantSpan(pos, seq, kind)
		ids := r.tree.Query(v.Chrom, start0, end0)
		edits = append(edits, variantEdit{v: v, pos: pos, seq: seq, kind: kind, ids: ids})
		for _, id := range ids {
			idSet[id] = struct{}{}
		}
	}

	touched := make(map[string]*copyPair, len(idSet))
	sortedIDs := make([]string, 0, len(idSet))
	for id := range idSet {
		sortedIDs = append(sortedIDs, id)
	}
	sort.Strings(sortedIDs)
	for _, id := range sortedIDs {
		touched[id] = r.getOrCreate(id)
	}
	for _, id := range sortedIDs {
		touched[id].mu.Lock()
	}
	defer func() {
		for _, id := range sortedIDs {
			touched[id].mu.Unlock()
		}
	}()

	for _, e := range edits {
		source := transcript.Somatic
		if e.v.Germline {
			source = transcript.Germline
		}
		for _, id := range e.ids {
			pair := touched[id]
			if e.v.AlleleA == 1 {
				if err := pair.a.ApplyEdit(e.pos, e.seq, e.kind, source, e.v.VAF); err != nil {
					r.log.Errorw("aborting haplotype block", "transcript_id", id, "copy", "A", "error", err)
					r.resetAll(touched)
					return nil, err
				}
			}
			if e.v.AlleleB == 1 {
				if err := pair.b.ApplyEdit(e.pos, e.seq, e.kind, source, e.v.VAF); err != nil {
					r.log.Errorw("aborting haplotype block", "transcript_id", id, "copy", "B", "error", err)
					r.resetAll(touched)
					return nil, err
				}
			}
		}
	}

	var hits []PeptideHit
	for id, pair := range touched {
		hits = append(hits, r.collectHitsOrSkip(id, pair.a, "A", opts)...)
		hits = append(hits, r.collectHitsOrSkip(id, pair.b, "B", opts)...)
	}
	r.resetAll(touched)
	return hits, nil
}

// collectHitsOrSkip collects tr's neopeptides, unless one of its
// accumulated deletions crosses a splice junction with an undefined
// reading frame at either endpoint, in which case this transcript copy
// is skipped entirely for this block (spec.md §7, Open Question #2;
// grounded on neoepiscope's get_peptides_from_transcripts, which breaks
// out of peptide generation once a read frame comes back None).
func (r *Router) collectHitsOrSkip(id string, tr *transcript.Transcript, copyLabel string, opts transcript.NeopeptideOptions) []PeptideHit {
	includeSomatic := opts.Somatic != transcript.IncludeExclude
	includeGermline := opts.Germline != transcript.IncludeExclude
	if tr.HasUndefinedFrameDeletion(includeSomatic, includeGermline) {
		r.log.Infow("splice-crossing-deletion-with-undefined-frame", "transcript_id", id, "copy", copyLabel)
		return nil
	}
	return collectHits(id, tr, opts)
}

func collectHits(id string, tr *transcript.Transcript, opts transcript.NeopeptideOptions) []PeptideHit {
	results := tr.Neopeptides(opts)
	hits := make([]PeptideHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, PeptideHit{TranscriptID: id, Peptide: res.Peptide, Variants: res.Variants, Warnings: res.Warnings})
	}
	return hits
}

func (r *Router) resetAll(touched map[string]*copyPair) {
	for _, pair := range touched {
		pair.a.Reset(true)
		pair.b.Reset(true)
	}
}

// variantSpan returns the 0-based half-open genomic span an edit
// covers, used to find overlapping transcripts via the interval index.
func variantSpan(pos int64, seq string, kind transcript.Kind) (int64, int64) {
	start0 := pos - 1
	switch kind {
	case transcript.Deletion:
		return start0, start0 + int64(len(seq))
	case transcript.Insertion:
		return start0, start0 + 1
	default:
		return start0, start0 + int64(len(seq))
	}
}

// ProcessBlocksParallel distributes a stream of blocks across a worker
// pool built over a single shared Router; each worker takes the next
// block available on the channel. Two blocks
// naming the same transcript id are not given disjoint state: each
// copyPair's own mutex (locked for a whole ProcessBlock call in
// sorted-id order) is what actually prevents concurrent workers from
// interleaving edits into that transcript's EditStore, so blocks
// sharing a transcript serialize on that pair while blocks touching
// disjoint transcripts proceed fully in parallel. Grounded on the
// teacher's internal/annotate/parallel.go worker-pool pattern; if
// workers is 0, runtime.NumCPU() is used.
func (r *Router) ProcessBlocksParallel(blocks <-chan *Block, opts transcript.NeopeptideOptions, workers int) <-chan []PeptideHit {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make(chan []PeptideHit, 2*workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for block := range blocks {
				hits, err := r.ProcessBlock(block, opts)
				if err != nil {
					continue
				}
				out <- hits
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
