package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-neo/internal/annotation"
	"github.com/inodb/vibe-neo/internal/genome"
	"github.com/inodb/vibe-neo/internal/haplotype"
	"github.com/inodb/vibe-neo/internal/output"
	"github.com/inodb/vibe-neo/internal/peptide"
	"github.com/inodb/vibe-neo/internal/transcript"
)

func newCallCmd() *cobra.Command {
	var (
		indexPath    string
		gtfPath      string
		fastaPath    string
		haplotypes   string
		outputPath   string
		minSize      int
		maxSize      int
		somatic      string
		germline     string
		startPolicy  string
		atgLimit     int
		vafField     int
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Call candidate neoepitope peptides from phased haplotypes",
		Long: `Routes a phased-haplotype block file through an annotation store's
transcripts, applying each block's variants to per-transcript A/B copies
and translating the surviving peptides. Mirrors neoepiscope's call mode.`,
		Example: `  vibe-neo call --index transcripts.duckdb --fasta genome.fa --haplotypes phased.tsv --output peptides.tsv
  vibe-neo call --gtf gencode.gtf.gz --fasta genome.fa --haplotypes phased.tsv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(callConfig{
				indexPath:   indexPath,
				gtfPath:     gtfPath,
				fastaPath:   fastaPath,
				haplotypes:  haplotypes,
				outputPath:  outputPath,
				minSize:     minSize,
				maxSize:     maxSize,
				somatic:     somatic,
				germline:    germline,
				startPolicy: startPolicy,
				atgLimit:    atgLimit,
				vafField:    vafField,
				workers:     workers,
			})
		},
	}

	cmd.Flags().StringVar(&indexPath, "index", viper.GetString("call.index"), "Persisted DuckDB annotation store built by \"vibe-neo index\"")
	cmd.Flags().StringVar(&gtfPath, "gtf", viper.GetString("call.gtf"), "GENCODE GTF annotation file, used instead of --index")
	cmd.Flags().StringVar(&fastaPath, "fasta", viper.GetString("call.fasta"), "Reference genome FASTA file")
	cmd.Flags().StringVar(&haplotypes, "haplotypes", "", "Phased-haplotype block file (\"-\" for stdin)")
	cmd.Flags().StringVar(&outputPath, "output", "", "Output peptide table path (default: stdout)")
	cmd.Flags().IntVar(&minSize, "min-size", configIntOr("neopeptide.minsize", 8), "Minimum peptide k-mer size")
	cmd.Flags().IntVar(&maxSize, "max-size", configIntOr("neopeptide.maxsize", 11), "Maximum peptide k-mer size")
	cmd.Flags().StringVar(&somatic, "somatic-inclusion", "variant", "Somatic inclusion: variant, background, exclude")
	cmd.Flags().StringVar(&germline, "germline-inclusion", "background", "Germline inclusion: variant, background, exclude")
	cmd.Flags().StringVar(&startPolicy, "start-codon-policy", "novel", "Start codon policy: novel, all, none, reference")
	cmd.Flags().IntVar(&atgLimit, "atg-limit", configIntOr("neopeptide.atglimit", 2), "Maximum start codons to translate from, annotated start included")
	cmd.Flags().IntVar(&vafField, "vaf-field", configIntOr("haplotype.vaffield", -1), "0-based colon-separated VAF subfield within genotype_info, -1 if absent")
	cmd.Flags().IntVar(&workers, "workers", configIntOr("call.workers", 1), "Number of blocks to route concurrently (1 runs the sequential loop)")

	return cmd
}

// configIntOr returns the viper config value at key, or fallback if the
// key was never set (distinct from a genuinely configured 0).
func configIntOr(key string, fallback int) int {
	if !viper.IsSet(key) {
		return fallback
	}
	return viper.GetInt(key)
}

type callConfig struct {
	indexPath, gtfPath, fastaPath string
	haplotypes, outputPath        string
	minSize, maxSize              int
	somatic, germline             string
	startPolicy                   string
	atgLimit, vafField, workers   int
}

func runCall(cfg callConfig) error {
	if cfg.haplotypes == "" {
		return fmt.Errorf("--haplotypes is required")
	}

	store, err := loadStore(cfg.indexPath, cfg.gtfPath)
	if err != nil {
		return err
	}
	logger.Infow("loaded annotation store", "transcripts", store.Len())

	if cfg.fastaPath == "" {
		return fmt.Errorf("--fasta is required")
	}
	g, err := genome.LoadFastaAccessor(cfg.fastaPath)
	if err != nil {
		return fmt.Errorf("load reference FASTA: %w", err)
	}

	opts, err := parseNeopeptideOptions(cfg)
	if err != nil {
		return err
	}

	tree := store.BuildIndex()
	router := haplotype.NewRouter(store, tree, g, logger)

	parser, err := haplotype.NewParser(cfg.haplotypes, cfg.vafField)
	if err != nil {
		return fmt.Errorf("open haplotypes: %w", err)
	}
	defer parser.Close()

	agg := peptide.New()

	if cfg.workers > 1 {
		if err := runCallParallel(parser, router, opts, agg, cfg.workers); err != nil {
			return err
		}
	} else {
		for {
			block, err := parser.Next()
			if err != nil {
				return fmt.Errorf("parse haplotypes: %w", err)
			}
			if block == nil {
				break
			}
			hits, err := router.ProcessBlock(block, opts)
			if err != nil {
				logger.Warnw("skipping haplotype block", "error", err)
				continue
			}
			agg.AddHits(hits)
		}
	}

	logger.Infow("call complete", "peptides", agg.Len())
	return writePeptides(cfg.outputPath, agg)
}

func runCallParallel(parser *haplotype.Parser, router *haplotype.Router, opts transcript.NeopeptideOptions, agg *peptide.Aggregator, workers int) error {
	blocks := make(chan *haplotype.Block)
	errCh := make(chan error, 1)

	go func() {
		defer close(blocks)
		for {
			block, err := parser.Next()
			if err != nil {
				errCh <- fmt.Errorf("parse haplotypes: %w", err)
				return
			}
			if block == nil {
				return
			}
			blocks <- block
		}
	}()

	for hits := range router.ProcessBlocksParallel(blocks, opts, workers) {
		agg.AddHits(hits)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func loadStore(indexPath, gtfPath string) (*annotation.Store, error) {
	switch {
	case indexPath != "":
		db, err := annotation.OpenDuckDBStore(indexPath)
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		defer db.Close()
		return db.Load()
	case gtfPath != "":
		loader := annotation.NewGTFLoader(gtfPath, logger)
		return loader.Load()
	default:
		return nil, fmt.Errorf("either --index or --gtf is required")
	}
}

func parseNeopeptideOptions(cfg callConfig) (transcript.NeopeptideOptions, error) {
	somatic, err := parseInclusion(cfg.somatic)
	if err != nil {
		return transcript.NeopeptideOptions{}, fmt.Errorf("--somatic-inclusion: %w", err)
	}
	germline, err := parseInclusion(cfg.germline)
	if err != nil {
		return transcript.NeopeptideOptions{}, fmt.Errorf("--germline-inclusion: %w", err)
	}
	policy, err := parseStartCodonPolicy(cfg.startPolicy)
	if err != nil {
		return transcript.NeopeptideOptions{}, fmt.Errorf("--start-codon-policy: %w", err)
	}

	return transcript.NeopeptideOptions{
		MinSize:          cfg.minSize,
		MaxSize:          cfg.maxSize,
		Somatic:          somatic,
		Germline:         germline,
		StartCodonPolicy: policy,
		ATGLimit:         cfg.atgLimit,
	}, nil
}

func parseInclusion(s string) (transcript.Inclusion, error) {
	switch s {
	case "variant":
		return transcript.IncludeAsVariant, nil
	case "background":
		return transcript.IncludeAsBackground, nil
	case "exclude":
		return transcript.IncludeExclude, nil
	default:
		return 0, fmt.Errorf("unknown inclusion %q (want variant, background, or exclude)", s)
	}
}

func parseStartCodonPolicy(s string) (transcript.StartCodonPolicy, error) {
	switch s {
	case "novel":
		return transcript.PolicyNovel, nil
	case "all":
		return transcript.PolicyAll, nil
	case "none":
		return transcript.PolicyNone, nil
	case "reference":
		return transcript.PolicyReference, nil
	default:
		return 0, fmt.Errorf("unknown start codon policy %q (want novel, all, none, or reference)", s)
	}
}

func writePeptides(outputPath string, agg *peptide.Aggregator) error {
	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := output.NewTabWriter(out)
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAggregator(agg); err != nil {
		return fmt.Errorf("write peptides: %w", err)
	}
	return w.Flush()
}
