package main

import "time"

// Provider format tags. A format names the request/response JSON shape
// convention of an LLM API family, not a vendor endpoint: a gateway can
// serve a claude-shaped response from any URL.
const (
	formatOpenAI    = "openai"
	formatClaude    = "claude"
	formatGemini    = "gemini"
	formatResponses = "responses"
)

// Annotation result statuses.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// Confidence tags on output rows.
const (
	confidenceHigh    = "high"
	confidenceUnknown = "unknown"
	confidenceFailed  = "failed"
)

type MarkerRecord struct {
	Cluster string
	Gene    string
	PValAdj float64 // adjusted p-value from differential expression
	Log2FC  float64 // average log2 fold change
}

// GeneSets maps cluster ID to its ordered marker-gene list (top-N by fold
// change after significance filtering). Built once per run, read-only after.
type GeneSets struct {
	Clusters []string // first-seen order, for deterministic output
	Genes    map[string][]string
}

// AnnotationResult is the terminal outcome of one cluster's retry loop.
// Only the last attempt is retained.
type AnnotationResult struct {
	Cluster  string
	Status   string // statusSuccess or statusError
	Message  string
	Content  string // raw extracted response text, empty on failure
	Attempts int
}

// AnnotationRow is one line of the final output table.
type AnnotationRow struct {
	Cluster    string
	CellType   string
	Subtype    string
	Confidence string // confidenceHigh, confidenceUnknown, or confidenceFailed
	TopGenes   string // semicolon-joined gene list for the cluster
	RawContent string
	Status     string
	Message    string
	Attempts   int
	Timestamp  time.Time
	Model      string
}
