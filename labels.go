package main

import (
	"regexp"
	"strings"
	"time"
)

// Two extraction policies exist on purpose. The multi-model path requires a
// complete >...< token; the single-model path accepts an unterminated > at
// end of line, which tolerates models that drop the closing bracket.
var (
	strictTokenPattern = regexp.MustCompile(`>(.*?)<`)
	looseTokenPattern  = regexp.MustCompile(`>([^<\n]*)`)
	trailingPunct      = regexp.MustCompile(`[.,;:]+$`)
)

type labelExtractor func(content string) (string, bool)

func extractLabelStrict(content string) (string, bool) {
	m := strictTokenPattern.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return cleanLabel(m[1]), true
}

func extractLabelLoose(content string) (string, bool) {
	m := looseTokenPattern.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return cleanLabel(m[1]), true
}

func cleanLabel(label string) string {
	label = squishWhitespace(label)
	label = trailingPunct.ReplaceAllString(label, "")
	return strings.TrimSpace(label)
}

// splitLabel separates "T cell (activated)" into cell type and subtype.
// Without a parenthesized segment the subtype is "unknown". The literals
// "failed" and "unknown" pass through unparsed.
func splitLabel(label string) (string, string) {
	if label == confidenceFailed || label == confidenceUnknown {
		return label, label
	}
	open := strings.Index(label, "(")
	if open < 0 {
		return label, "unknown"
	}
	rest := label[open+1:]
	cellType := strings.TrimSpace(label[:open])
	if closeIdx := strings.Index(rest, ")"); closeIdx >= 0 {
		return cellType, strings.TrimSpace(rest[:closeIdx])
	}
	return cellType, strings.TrimSpace(rest)
}

// assembleRows joins per-cluster results with their gene lists into the
// final table, one row per cluster regardless of outcome.
func assembleRows(model string, sets GeneSets, clusters []string, results map[string]AnnotationResult, extract labelExtractor) []AnnotationRow {
	now := time.Now()
	rows := make([]AnnotationRow, 0, len(clusters))
	for _, cluster := range clusters {
		res, ok := results[cluster]
		if !ok {
			res = AnnotationResult{Cluster: cluster, Status: statusError, Message: "no result produced"}
		}
		row := AnnotationRow{
			Cluster:    cluster,
			TopGenes:   strings.Join(sets.Genes[cluster], ";"),
			RawContent: res.Content,
			Status:     res.Status,
			Message:    res.Message,
			Attempts:   res.Attempts,
			Timestamp:  now,
			Model:      model,
		}
		switch {
		case res.Status != statusSuccess:
			row.CellType = confidenceFailed
			row.Subtype = confidenceFailed
			row.Confidence = confidenceFailed
		default:
			if label, found := extract(res.Content); found {
				row.CellType, row.Subtype = splitLabel(label)
				row.Confidence = confidenceHigh
			} else {
				// Succeeded but unparseable: keep the squished answer so
				// the table still shows what the model said.
				row.CellType = squishWhitespace(res.Content)
				row.Subtype = "unknown"
				row.Confidence = confidenceUnknown
			}
		}
		rows = append(rows, row)
	}
	return rows
}
