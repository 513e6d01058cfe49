package annotation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGTF = `#!genome-build test
chr1	HAVANA	exon	101	200	.	+	.	gene_id "ENSG1"; transcript_id "ENST00000001.4"; exon_number 1;
chr1	HAVANA	start_codon	101	103	.	+	0	gene_id "ENSG1"; transcript_id "ENST00000001.4";
chr1	HAVANA	exon	301	450	.	+	.	gene_id "ENSG1"; transcript_id "ENST00000001.4"; exon_number 2;
chr1	HAVANA	stop_codon	448	450	.	+	0	gene_id "ENSG1"; transcript_id "ENST00000001.4";
chr2	HAVANA	exon	10	60	.	-	.	gene_id "ENSG2"; transcript_id "ENST00000002.1"; exon_number 1;
chr2	HAVANA	five_prime_utr	55	60	.	-	.	gene_id "ENSG2"; transcript_id "ENST00000002.1";
`

func writeTempGTF(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.gtf")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestGTFLoaderLoad(t *testing.T) {
	path := writeTempGTF(t, testGTF)
	loader := NewGTFLoader(path, nil)

	store, err := loader.Load()
	require.NoError(t, err)

	// ENST00000002's "five_prime_utr" row is ignored, and with no
	// start_codon or stop_codon row its Record cannot be built, so it is
	// skipped.
	assert.Equal(t, 1, store.Len())

	rec := store.Get("ENST00000001")
	require.NotNil(t, rec)
	assert.Equal(t, "1", rec.Chrom)
	assert.Equal(t, Plus, rec.Strand)
	assert.Equal(t, []int64{100, 200, 300, 450}, rec.Exons)
	assert.Equal(t, int64(101), rec.StartCodonPos)
	assert.Equal(t, int64(448), rec.StopCodonPos)
}

func TestGTFLoaderSkipsTranscriptMissingCodons(t *testing.T) {
	path := writeTempGTF(t, testGTF)
	loader := NewGTFLoader(path, nil)

	store, err := loader.Load()
	require.NoError(t, err)
	assert.Nil(t, store.Get("ENST00000002"))
}

func TestGTFLoaderMissingFile(t *testing.T) {
	loader := NewGTFLoader("/nonexistent/path.gtf", nil)
	_, err := loader.Load()
	assert.Error(t, err)
}
