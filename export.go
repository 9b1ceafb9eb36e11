package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// WriteAnnotationCSV exports the output table with a fixed column order.
// Multi-model tables carry a trailing model column.
func WriteAnnotationCSV(path string, rows []AnnotationRow, withModel bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"cluster", "cell_type", "subtype", "confidence", "top_genes", "raw_content", "status", "message", "attempts", "timestamp"}
	if withModel {
		header = append(header, "model")
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	for _, row := range rows {
		record := []string{
			row.Cluster,
			row.CellType,
			row.Subtype,
			row.Confidence,
			row.TopGenes,
			row.RawContent,
			row.Status,
			row.Message,
			strconv.Itoa(row.Attempts),
			row.Timestamp.Format(time.RFC3339),
		}
		if withModel {
			record = append(record, row.Model)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
