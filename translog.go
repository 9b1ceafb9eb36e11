package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const transcriptPreviewLen = 200

// transcriptLog is an optional append-only plain-text record of every
// request and response. Cluster tasks write concurrently within one model,
// so appends go through a mutex. A nil *transcriptLog is a no-op sink.
type transcriptLog struct {
	mu sync.Mutex
	f  *os.File
}

func openTranscriptLog(path string) (*transcriptLog, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening transcript log: %w", err)
	}
	return &transcriptLog{f: f}, nil
}

func (t *transcriptLog) writeHeader(cfg Config, models []string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.f, "==== annotation run %s ====\n", uuid.NewString())
	fmt.Fprintf(t.f, "started:    %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(t.f, "models:     %s\n", strings.Join(models, ", "))
	fmt.Fprintf(t.f, "background: %s\n", strings.TrimSpace(cfg.Background))
	fmt.Fprintf(t.f, "base_url:   %s\n", cfg.BaseURL)
	fmt.Fprintf(t.f, "params:     top_genes=%d workers=%d max_retries=%d timeout=%s\n\n",
		cfg.TopGenes, cfg.Workers, cfg.MaxRetries, cfg.requestTimeout())
}

func (t *transcriptLog) logRequest(model, cluster string, attempt int, prompt string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.f, "[%s] -> model=%s cluster=%s attempt=%d prompt: %s\n",
		time.Now().Format(time.RFC3339), model, cluster, attempt, truncateText(flattenPreview(prompt), transcriptPreviewLen))
}

func (t *transcriptLog) logResponse(model, cluster, status, text string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.f, "[%s] <- model=%s cluster=%s status=%s: %s\n",
		time.Now().Format(time.RFC3339), model, cluster, status, truncateText(flattenPreview(text), transcriptPreviewLen))
}

func (t *transcriptLog) Close() {
	if t == nil {
		return
	}
	t.f.Close()
}

func flattenPreview(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
