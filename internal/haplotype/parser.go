// Package haplotype parses phased-haplotype block files and routes
// their variants onto per-transcript edit stores, producing the final
// candidate neoepitope peptides. Grounded on neoepiscope's
// process_haplotypes / get_peptides_from_transcripts
// (original_source/neoepiscope/transcript.py), with file-reading
// idioms (gzip-aware bufio.Reader, ParseError with line context) taken
// from the teacher's internal/vcf/parser.go.
package haplotype

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/inodb/vibe-neo/internal/transcript"
)

// Variant is one parsed row of a BLOCK section.
type Variant struct {
	Idx              int
	AlleleA, AlleleB int
	Chrom            string
	Pos1             int64
	Ref, Alt         string
	GenotypeInfo     string
	Germline         bool
	VAF              *float64
}

// Block is one phased set of variants between a BLOCK line and its
// terminating "*" line.
type Block struct {
	Variants []Variant
}

// Parser reads BLOCK/"*"-delimited phased-haplotype files. Supports
// plain and gzipped input, matching vcf.Parser's gzip-magic-byte sniff.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int

	// VAFField is the 0-based colon-separated field within
	// genotype_info that holds the VAF, or -1 if VAF is not present in
	// this input.
	VAFField int
}

// NewParser opens path (or reads stdin if path is "-") for haplotype
// block parsing. VAFField selects which colon-separated subfield of
// genotype_info carries the VAF; pass -1 if the input carries none.
func NewParser(path string, vafField int) (*Parser, error) {
	if path == "-" {
		return &Parser{reader: bufio.NewReader(os.Stdin), VAFField: vafField}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open haplotype file: %w", err)
	}

	p := &Parser{file: file, VAFField: vafField}

	buf := make([]byte, 2)
	if _, err := file.Read(buf); err != nil {
		file.Close()
		return nil, fmt.Errorf("read haplotype file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek haplotype file: %w", err)
	}

	if buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	return p, nil
}

// Close closes the parser's underlying file, if any.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// Next reads the next block, returning nil, nil at end of file.
func (p *Parser) Next() (*Block, error) {
	var block *Block
	for {
		line, err := p.reader.ReadString('\n')
		atEOF := err == io.EOF
		if err != nil && !atEOF {
			return nil, fmt.Errorf("read haplotype line %d: %w", p.lineNumber, err)
		}
		line = strings.TrimRight(line, "\r\n")
		p.lineNumber++

		switch {
		case line == "" && atEOF:
			return block, nil
		case line == "":
			// blank line between blocks, ignore
		case line == "BLOCK":
			block = &Block{}
		case line == "*":
			if block != nil {
				return block, nil
			}
		default:
			if block == nil {
				return nil, &ParseError{Line: p.lineNumber, Message: "variant line outside BLOCK/* section"}
			}
			v, err := parseVariantLine(line, p.VAFField)
			if err != nil {
				return nil, &ParseError{Line: p.lineNumber, Message: err.Error()}
			}
			block.Variants = append(block.Variants, *v)
		}

		if atEOF {
			return block, nil
		}
	}
}

// parseVariantLine parses one tab-separated data row: idx, alleleA,
// alleleB, chrom, pos_1based, ref, alt, genotype_info.
func parseVariantLine(line string, vafField int) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, fmt.Errorf("expected 8 tab-separated fields, found %d", len(fields))
	}

	idx, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid idx: %s", fields[0])
	}
	alleleA, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("invalid alleleA: %s", fields[1])
	}
	alleleB, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("invalid alleleB: %s", fields[2])
	}
	pos, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid pos: %s", fields[4])
	}

	genotypeInfo := fields[7]
	v := &Variant{
		Idx:          idx,
		AlleleA:      alleleA,
		AlleleB:      alleleB,
		Chrom:        fields[3],
		Pos1:         pos,
		Ref:          fields[5],
		Alt:          fields[6],
		GenotypeInfo: genotypeInfo,
		Germline:     strings.HasSuffix(genotypeInfo, "*"),
	}

	if vafField >= 0 {
		parts := strings.Split(genotypeInfo, ":")
		if vafField < len(parts) {
			if f, err := strconv.ParseFloat(strings.TrimSuffix(parts[vafField], "*"), 64); err == nil {
				v.VAF = &f
			}
		}
	}

	return v, nil
}

// ParseError reports a malformed haplotype file line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("haplotype parse error at line %d: %s", e.Line, e.Message)
}

// DeriveEdit classifies a Variant into the genomic position, sequence
// argument, and transcript.Kind consumed by Transcript.ApplyEdit, per
// spec.md §6's length-based V/I/D derivation.
func DeriveEdit(v Variant) (pos int64, seq string, kind transcript.Kind) {
	refLen, altLen := len(v.Ref), len(v.Alt)
	switch {
	case refLen == altLen:
		return v.Pos1, v.Alt, transcript.SNV
	case refLen > altLen:
		return v.Pos1 + int64(altLen), v.Ref[altLen:], transcript.Deletion
	default:
		return v.Pos1 + int64(refLen), v.Alt[refLen:], transcript.Insertion
	}
}
