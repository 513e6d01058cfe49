// Package output provides peptide table formatters.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/inodb/vibe-neo/internal/peptide"
)

// TabWriter writes the aggregated peptide-to-sources mapping in
// tab-delimited format, one row per (peptide, source) pair. Adapted
// from the teacher's column-list/"-"-placeholder shape; the
// per-variant-annotation row becomes a per-contributing-variant row
// under a repeated peptide column, matching spec.md §6's
// "(chrom, pos, ref, alt, kind, vaf, warnings, transcript_id)" tuple.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited peptide table writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"peptide",
			"chrom",
			"pos",
			"ref",
			"alt",
			"kind",
			"vaf",
			"warnings",
			"transcript_id",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes one row for a single peptide source.
func (tw *TabWriter) Write(pep string, src peptide.Source) error {
	vaf := "-"
	if src.VAF != nil {
		vaf = fmt.Sprintf("%g", *src.VAF)
	}

	warnings := "-"
	if len(src.Warnings) > 0 {
		warnings = strings.Join(src.Warnings, ",")
	}

	transcriptID := src.TranscriptID
	if transcriptID == "" {
		transcriptID = "-"
	}

	values := []string{
		pep,
		src.Chrom,
		fmt.Sprintf("%d", src.Pos),
		src.Ref,
		src.Alt,
		string(src.Kind),
		vaf,
		warnings,
		transcriptID,
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteAggregator writes every peptide in agg, sorted by peptide
// string, each followed by one row per contributing source.
func (tw *TabWriter) WriteAggregator(agg *peptide.Aggregator) error {
	for _, pep := range agg.Peptides() {
		for _, src := range agg.Sources(pep) {
			if err := tw.Write(pep, src); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}
