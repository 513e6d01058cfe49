package annotation

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// GTFLoader loads transcript CDS annotation from a GENCODE-style GTF file.
// Grounded on the teacher's internal/cache/gtf_loader.go scanning and
// gzip-detection idiom, restructured around the flat Feature/Record model
// instead of VEP's per-exon Frame/Biotype bookkeeping -- this engine only
// needs exon bounds and start/stop codon positions, matching
// neoepiscope's gtf_to_cds.
type GTFLoader struct {
	path string
	log  *zap.SugaredLogger
}

// NewGTFLoader creates a loader for the GTF file at path. A nil logger
// falls back to zap's no-op logger.
func NewGTFLoader(path string, log *zap.SugaredLogger) *GTFLoader {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &GTFLoader{path: path, log: log}
}

// Load parses the GTF file and returns a Store of every transcript whose
// Record built without error. Rows of any feature kind other than exon,
// start_codon and stop_codon are ignored while parsing; transcripts
// missing start/stop codon annotation are skipped and logged, per the
// *missing-annotation* rule.
func (l *GTFLoader) Load() (*Store, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	featuresByTranscript, order, err := parseGTFFeatures(reader)
	if err != nil {
		return nil, err
	}

	store := NewStore()
	for _, id := range order {
		rec, err := NewRecord(id, featuresByTranscript[id])
		if err != nil {
			l.log.Warnw("skipping transcript", "transcript_id", id, "reason", err)
			continue
		}
		store.Add(rec)
	}
	return store, nil
}

// parseGTFFeatures scans GTF lines, keeping only the exon/start_codon/
// stop_codon rows relevant to the Record model, grouped by transcript_id
// in first-seen order (for deterministic Store construction).
func parseGTFFeatures(r io.Reader) (map[string][]Feature, []string, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	features := make(map[string][]Feature)
	var order []string
	seen := make(map[string]bool)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 9 {
			continue
		}

		kind := fields[2]
		if kind != "exon" && kind != "start_codon" && kind != "stop_codon" {
			continue
		}

		start, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}

		attrs := parseGTFAttributes(fields[8])
		transcriptID := stripVersion(attrs["transcript_id"])
		if transcriptID == "" {
			continue
		}

		if !seen[transcriptID] {
			seen[transcriptID] = true
			order = append(order, transcriptID)
		}

		features[transcriptID] = append(features[transcriptID], Feature{
			Chrom:  normalizeChrom(fields[0]),
			Kind:   kind,
			Start1: start,
			End1:   end,
			Strand: parseGTFStrand(fields[6]),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan GTF: %w", err)
	}
	return features, order, nil
}

// parseGTFAttributes parses the GTF attribute column: key "value"; ...
func parseGTFAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.Index(part, " ")
		if idx == -1 {
			continue
		}
		key := part[:idx]
		value := strings.Trim(strings.TrimSpace(part[idx+1:]), "\"")
		attrs[key] = value
	}
	return attrs
}

func parseGTFStrand(s string) Strand {
	if s == "-" {
		return Minus
	}
	return Plus
}

// stripVersion removes the version suffix from an Ensembl id, e.g.
// "ENST00000456328.2" -> "ENST00000456328".
func stripVersion(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}

// normalizeChrom strips a "chr" prefix so GTF, FASTA and haplotype input
// chromosome names line up regardless of source convention.
func normalizeChrom(chrom string) string {
	return strings.TrimPrefix(chrom, "chr")
}
