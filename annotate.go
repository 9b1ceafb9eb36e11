package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var errNoModels = errors.New("no models supplied")

// Error messages carrying a 4xx status are client errors, not transient
// upstream hiccups, so they end the retry loop immediately.
var clientErrorPattern = regexp.MustCompile(`\b4\d{2}\b`)

func buildPrompt(cfg Config, cluster string, genes []string) string {
	var b strings.Builder
	b.WriteString("You are an expert in single-cell RNA-seq analysis annotating expression clusters with cell types.\n")
	if strings.TrimSpace(cfg.Background) != "" {
		b.WriteString("Sample background: " + strings.TrimSpace(cfg.Background) + "\n")
	}
	fmt.Fprintf(&b, "Cluster %s is distinguished by these marker genes, ordered by fold change: %s\n", cluster, strings.Join(genes, ", "))
	b.WriteString("Identify the most likely cell type. Your reply must begin with the token >CellType (subtype)< before any other text, for example >T cell (cytotoxic)<. ")
	b.WriteString("If the identity cannot be determined, begin with >Uncertain (unknown)<. A short justification may follow the token.")
	return b.String()
}

// annotateCluster runs the bounded retry loop for one cluster. Each attempt
// is classified as success, retryable failure, or terminal client error;
// only the last attempt's outcome survives in the result.
func annotateCluster(client *http.Client, cfg Config, format, model, cluster string, genes []string, tlog *transcriptLog) AnnotationResult {
	prompt := buildPrompt(cfg, cluster, genes)
	result := AnnotationResult{Cluster: cluster, Status: statusError}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		result.Attempts = attempt
		tlog.logRequest(model, cluster, attempt, prompt)

		status, body, err := doProviderRequest(client, cfg, format, model, prompt)

		var failure string
		switch {
		case err != nil:
			if isTimeoutError(err) {
				failure = fmt.Sprintf("timeout after %s: %v", cfg.requestTimeout(), err)
			} else {
				failure = fmt.Sprintf("request failed: %v", err)
			}
		case status != http.StatusOK:
			failure = fmt.Sprintf("HTTP %d: %s", status, truncateText(string(body), 200))
		default:
			if text, ok := extractText(format, body); ok {
				result.Status = statusSuccess
				result.Content = text
				result.Message = "ok"
				tlog.logResponse(model, cluster, statusSuccess, text)
				return result
			}
			failure = "no usable text in response: " + truncateText(string(body), 200)
		}

		result.Message = failure
		tlog.logResponse(model, cluster, statusError, failure)
		if cfg.Verbose {
			log.Printf("annotate model=%s cluster=%s attempt=%d/%d failed: %s", model, cluster, attempt, maxRetries, failure)
		}

		if clientErrorPattern.MatchString(failure) {
			break
		}
		if attempt < maxRetries {
			time.Sleep(cfg.retryDelay())
		}
	}
	return result
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// truncateText cuts s to at most n bytes without splitting a multi-byte
// rune at the boundary.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// AnnotateClusters annotates every cluster in the gene sets (or the selected
// subset) with one model and returns one output row per cluster. Failures
// surface as failed-confidence rows, never as missing rows.
func AnnotateClusters(cfg Config, sets GeneSets, selected []string) ([]AnnotationRow, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errNoModels
	}
	format, err := resolveProviderFormat(cfg.Model, cfg.ProviderFormat)
	if err != nil {
		return nil, err
	}
	clusters, err := resolveSelection(sets, selected)
	if err != nil {
		return nil, err
	}

	tlog, err := openTranscriptLog(cfg.TranscriptPath)
	if err != nil {
		return nil, err
	}
	defer tlog.Close()
	tlog.writeHeader(cfg, []string{cfg.Model})

	results := dispatchAnnotations(cfg, format, cfg.Model, sets, clusters, tlog, progressLogger(cfg))
	rows := assembleRows(cfg.Model, sets, clusters, results, extractLabelLoose)
	warnOnTotalFailure(cfg.Model, rows)
	return rows, nil
}

// AnnotateClustersMultiModel runs the annotation once per model, strictly
// sequentially, and concatenates the per-model tables. One model failing
// outright yields failed rows for its clusters instead of aborting the run.
func AnnotateClustersMultiModel(cfg Config, models []string, sets GeneSets, selected []string) ([]AnnotationRow, error) {
	if len(models) == 0 {
		return nil, errNoModels
	}
	// A bad format override is a configuration error for the whole call,
	// not a per-model failure: reject it before any network activity.
	if cfg.ProviderFormat != "" {
		if _, err := resolveProviderFormat("", cfg.ProviderFormat); err != nil {
			return nil, err
		}
	}
	clusters, err := resolveSelection(sets, selected)
	if err != nil {
		return nil, err
	}

	tlog, err := openTranscriptLog(cfg.TranscriptPath)
	if err != nil {
		return nil, err
	}
	defer tlog.Close()
	tlog.writeHeader(cfg, models)

	var all []AnnotationRow
	for _, model := range models {
		rows, err := annotateOneModel(cfg, model, sets, clusters, tlog)
		if err != nil {
			log.Printf("warning: model %s failed, recording failed rows: %v", model, err)
			rows = failureRows(model, sets, clusters, err)
		}
		warnOnTotalFailure(model, rows)
		all = append(all, rows...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no model produced any result")
	}
	return all, nil
}

func annotateOneModel(cfg Config, model string, sets GeneSets, clusters []string, tlog *transcriptLog) ([]AnnotationRow, error) {
	format, err := resolveProviderFormat(model, cfg.ProviderFormat)
	if err != nil {
		return nil, err
	}
	results := dispatchAnnotations(cfg, format, model, sets, clusters, tlog, progressLogger(cfg))
	return assembleRows(model, sets, clusters, results, extractLabelStrict), nil
}

// failureRows covers every cluster of a model whose run failed before any
// per-cluster result existed, keeping the one-row-per-cluster invariant.
func failureRows(model string, sets GeneSets, clusters []string, cause error) []AnnotationRow {
	now := time.Now()
	rows := make([]AnnotationRow, 0, len(clusters))
	for _, cluster := range clusters {
		rows = append(rows, AnnotationRow{
			Cluster:    cluster,
			CellType:   confidenceFailed,
			Subtype:    confidenceFailed,
			Confidence: confidenceFailed,
			TopGenes:   strings.Join(sets.Genes[cluster], ";"),
			Status:     statusError,
			Message:    cause.Error(),
			Timestamp:  now,
			Model:      model,
		})
	}
	return rows
}

// warnOnTotalFailure flags the every-cluster-failed case, which almost
// always means bad credentials or a wrong endpoint rather than N unlucky
// requests.
func warnOnTotalFailure(model string, rows []AnnotationRow) {
	if len(rows) == 0 {
		return
	}
	for _, row := range rows {
		if row.Confidence != confidenceFailed {
			return
		}
	}
	log.Printf("WARNING: model %s: every cluster failed (%d/%d), check the API key and base URL", model, len(rows), len(rows))
}

func progressLogger(cfg Config) ProgressFunc {
	if !cfg.Verbose {
		return nil
	}
	return func(done, total int, cluster string) {
		log.Printf("annotate progress %d/%d (cluster %s)", done, total, cluster)
	}
}
