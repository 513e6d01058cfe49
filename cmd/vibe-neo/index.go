package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-neo/internal/annotation"
	"github.com/inodb/vibe-neo/internal/genome"
)

// GENCODE FTP URLs, used by --download to fetch annotation inputs
// before building the index.
const (
	gencodeBaseURL = "https://ftp.ebi.ac.uk/pub/databases/gencode/Gencode_human/release_46"
	gencodeVersion = "v46"
)

func newIndexCmd() *cobra.Command {
	var (
		gtfPath    string
		fastaPath  string
		outputPath string
		download   bool
		assembly   string
		cacheDir   string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build a persisted annotation store from a GTF + FASTA pair",
		Long: `Parses a GENCODE-style GTF annotation file into transcript CDS records and
persists them to a DuckDB-backed store, so a later "vibe-neo call" run can
load transcripts without re-parsing GTF text. Mirrors neoepiscope's index mode.`,
		Example: `  vibe-neo index --gtf gencode.gtf.gz --output transcripts.duckdb
  vibe-neo index --download --assembly GRCh38 --output transcripts.duckdb`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if download {
				fetched, fastaFetched, err := downloadGENCODE(assembly, cacheDir)
				if err != nil {
					return fmt.Errorf("download GENCODE files: %w", err)
				}
				gtfPath = fetched
				if fastaPath == "" {
					fastaPath = fastaFetched
				}
			}
			if gtfPath == "" {
				return fmt.Errorf("--gtf is required (or pass --download)")
			}
			if outputPath == "" {
				return fmt.Errorf("--output is required")
			}
			return runIndex(gtfPath, fastaPath, outputPath)
		},
	}

	cmd.Flags().StringVar(&gtfPath, "gtf", viper.GetString("index.gtf"), "GENCODE GTF annotation file (plain or gzipped)")
	cmd.Flags().StringVar(&fastaPath, "fasta", viper.GetString("index.fasta"), "Reference genome FASTA file (plain or gzipped); only loaded to validate it, not stored in the index")
	cmd.Flags().StringVar(&outputPath, "output", viper.GetString("index.output"), "Output DuckDB file path")
	cmd.Flags().BoolVar(&download, "download", false, "Fetch GENCODE GTF/FASTA files before indexing")
	cmd.Flags().StringVar(&assembly, "assembly", "GRCh38", "Genome assembly to fetch: GRCh37 or GRCh38")
	cmd.Flags().StringVar(&cacheDir, "download-dir", "", "Directory to download GENCODE files into (default: ~/.vibe-neo/<assembly>)")

	return cmd
}

func runIndex(gtfPath, fastaPath, outputPath string) error {
	logger.Infow("building annotation index", "gtf", gtfPath, "fasta", fastaPath, "output", outputPath)

	loader := annotation.NewGTFLoader(gtfPath, logger)
	store, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load GTF: %w", err)
	}
	logger.Infow("loaded transcripts", "count", store.Len())

	if fastaPath != "" {
		fa, err := genome.LoadFastaAccessor(fastaPath)
		if err != nil {
			logger.Warnw("could not validate reference FASTA", "path", fastaPath, "error", err)
		} else {
			logger.Infow("validated reference FASTA", "chromosomes", fa.ChromosomeCount())
		}
	}

	db, err := annotation.OpenDuckDBStore(outputPath)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer db.Close()

	if err := db.CreateSchema(); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := db.Save(store); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	count, err := db.TranscriptCount()
	if err != nil {
		return fmt.Errorf("verify index: %w", err)
	}
	logger.Infow("index built", "transcripts", count, "path", outputPath)
	fmt.Printf("Indexed %d transcripts to %s\n", count, outputPath)
	return nil
}

// getGENCODEURLs returns the GTF and FASTA URLs for the given assembly.
func getGENCODEURLs(assembly string) (gtfURL, fastaURL string) {
	switch strings.ToUpper(assembly) {
	case "GRCH37":
		gtfURL = fmt.Sprintf("%s/GRCh37_mapping/gencode.%slift37.annotation.gtf.gz", gencodeBaseURL, gencodeVersion)
		fastaURL = fmt.Sprintf("%s/GRCh37_mapping/gencode.%slift37.pc_transcripts.fa.gz", gencodeBaseURL, gencodeVersion)
	default:
		gtfURL = fmt.Sprintf("%s/gencode.%s.annotation.gtf.gz", gencodeBaseURL, gencodeVersion)
		fastaURL = fmt.Sprintf("%s/gencode.%s.pc_transcripts.fa.gz", gencodeBaseURL, gencodeVersion)
	}
	return
}

// downloadGENCODE fetches the GTF and FASTA files for assembly into
// cacheDir (defaulting to ~/.vibe-neo/<assembly>), returning their local
// paths.
func downloadGENCODE(assembly, cacheDir string) (gtfPath, fastaPath string, err error) {
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", fmt.Errorf("determine home directory: %w", err)
		}
		cacheDir = filepath.Join(home, ".vibe-neo", strings.ToLower(assembly))
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create cache directory: %w", err)
	}

	gtfURL, fastaURL := getGENCODEURLs(assembly)

	gtfPath = filepath.Join(cacheDir, filepath.Base(gtfURL))
	if err := downloadFile(gtfURL, gtfPath); err != nil {
		return "", "", fmt.Errorf("download GTF: %w", err)
	}

	fastaPath = filepath.Join(cacheDir, filepath.Base(fastaURL))
	if err := downloadFile(fastaURL, fastaPath); err != nil {
		return "", "", fmt.Errorf("download FASTA: %w", err)
	}

	return gtfPath, fastaPath, nil
}

// downloadFile downloads a file from url to destPath, skipping if it
// already exists.
func downloadFile(url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Printf("  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Printf("  Downloading %s...\n", filepath.Base(destPath))

	client := &http.Client{Timeout: 30 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	var downloaded int64
	pw := &progressWriter{total: resp.ContentLength, downloaded: &downloaded, lastPrint: time.Now()}
	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	f.Close()

	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Printf("    Done: %s\n", formatSize(downloaded))
	return nil
}

// progressWriter tracks download progress.
type progressWriter struct {
	total      int64
	downloaded *int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	*pw.downloaded += int64(n)

	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(*pw.downloaded) / float64(pw.total) * 100
			fmt.Printf("\r    Progress: %s / %s (%.1f%%)  ", formatSize(*pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Printf("\r    Progress: %s  ", formatSize(*pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}

	return n, nil
}

// formatSize formats bytes as a human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
