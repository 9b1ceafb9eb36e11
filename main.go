package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

type runOptions struct {
	markersPath string
	outPath     string
	clusters    []string
	models      []string
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "smartanno",
		Short:         "Annotate scRNA-seq expression clusters with cell-type labels via LLM APIs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfg := LoadConfig()
	root.AddCommand(newAnnotateCommand(cfg), newCompareCommand(cfg))
	return root
}

// addRunFlags registers the flags shared by both subcommands. Flag defaults
// come from the loaded config, so unset flags fall through to YAML or env
// values and flags win when given.
func addRunFlags(cmd *cobra.Command, cfg *Config, opts *runOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.markersPath, "markers", "", "marker-gene CSV (cluster, gene, p_val_adj, avg_log2FC)")
	flags.StringVar(&opts.outPath, "out", "", "output CSV path (optional)")
	flags.StringSliceVar(&opts.clusters, "clusters", nil, "restrict the run to these cluster IDs")
	flags.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "API key")
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "API base URL")
	flags.StringVar(&cfg.ProviderFormat, "format", cfg.ProviderFormat, "provider format override (openai, claude, gemini, responses)")
	flags.StringVar(&cfg.Background, "background", cfg.Background, "sample background text embedded in prompts")
	flags.IntVar(&cfg.TopGenes, "top-genes", cfg.TopGenes, "marker genes per cluster")
	flags.Float64Var(&cfg.PValCutoff, "p-cutoff", cfg.PValCutoff, "adjusted p-value cutoff")
	flags.Float64Var(&cfg.MinLog2FC, "min-log2fc", cfg.MinLog2FC, "minimum avg_log2FC")
	flags.StringSliceVar(&cfg.ExtraGenes, "genes", cfg.ExtraGenes, "extra genes appended to every cluster's list")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel workers")
	flags.IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "attempts per cluster")
	flags.IntVar(&cfg.RetryDelaySeconds, "retry-delay", cfg.RetryDelaySeconds, "seconds between attempts")
	flags.IntVar(&cfg.RequestTimeoutSeconds, "timeout", cfg.RequestTimeoutSeconds, "per-request timeout in seconds")
	flags.IntVar(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, "response token budget (0 = provider default)")
	flags.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "sampling temperature (chat formats)")
	flags.StringVar(&cfg.ReasoningEffort, "effort", cfg.ReasoningEffort, "reasoning effort (responses format)")
	flags.StringVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "output verbosity (responses format)")
	flags.StringVar(&cfg.TranscriptPath, "log", cfg.TranscriptPath, "append-only request/response transcript file")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "verbose diagnostics")
}

func newAnnotateCommand(cfg Config) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Annotate clusters with a single model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.applyDefaults()
			sets, err := loadGeneSets(cfg, opts)
			if err != nil {
				return err
			}
			rows, err := AnnotateClusters(cfg, sets, opts.clusters)
			if err != nil {
				return err
			}
			return finishRun(rows, opts, false)
		},
	}
	addRunFlags(cmd, &cfg, &opts)
	cmd.Flags().StringVar(&cfg.Model, "model", cfg.Model, "model name")
	cmd.MarkFlagRequired("markers")
	return cmd
}

func newCompareCommand(cfg Config) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Annotate clusters with several models and concatenate the tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.applyDefaults()
			sets, err := loadGeneSets(cfg, opts)
			if err != nil {
				return err
			}
			rows, err := AnnotateClustersMultiModel(cfg, opts.models, sets, opts.clusters)
			if err != nil {
				return err
			}
			return finishRun(rows, opts, true)
		},
	}
	addRunFlags(cmd, &cfg, &opts)
	cmd.Flags().StringSliceVar(&opts.models, "models", nil, "comma-separated model names")
	cmd.MarkFlagRequired("markers")
	cmd.MarkFlagRequired("models")
	return cmd
}

func loadGeneSets(cfg Config, opts runOptions) (GeneSets, error) {
	records, err := LoadMarkerCSV(opts.markersPath)
	if err != nil {
		return GeneSets{}, err
	}
	sets, err := BuildGeneSets(records, cfg)
	if err != nil {
		return GeneSets{}, err
	}
	log.Printf("Loaded %d clusters from %s", len(sets.Clusters), opts.markersPath)
	return sets, nil
}

func finishRun(rows []AnnotationRow, opts runOptions, withModel bool) error {
	fmt.Println(renderAnnotationTable(rows, withModel))
	summarizeConfidence(rows)
	if opts.outPath != "" {
		if err := WriteAnnotationCSV(opts.outPath, rows, withModel); err != nil {
			return err
		}
		log.Printf("Wrote %d rows to %s", len(rows), opts.outPath)
	}
	return nil
}

func summarizeConfidence(rows []AnnotationRow) {
	counts := map[string]int{}
	for _, row := range rows {
		counts[row.Confidence]++
	}
	var parts []string
	for _, tag := range []string{confidenceHigh, confidenceUnknown, confidenceFailed} {
		if counts[tag] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", tag, counts[tag]))
		}
	}
	log.Printf("Annotation confidence: %s", strings.Join(parts, " "))
}
