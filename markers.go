package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// LoadMarkerCSV reads a Seurat-style marker table. The header must contain
// cluster, gene, p_val_adj and avg_log2FC columns (case-insensitive, any
// order); extra columns are ignored.
func LoadMarkerCSV(path string) ([]MarkerRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening marker table: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing marker table %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("marker table %s has no data rows", path)
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[normalizeColumnName(name)] = i
	}
	clusterCol, ok := cols["cluster"]
	if !ok {
		return nil, fmt.Errorf("marker table %s: missing cluster column", path)
	}
	geneCol, ok := cols["gene"]
	if !ok {
		return nil, fmt.Errorf("marker table %s: missing gene column", path)
	}
	pvalCol, ok := cols["p_val_adj"]
	if !ok {
		return nil, fmt.Errorf("marker table %s: missing p_val_adj column", path)
	}
	fcCol, ok := cols["avg_log2fc"]
	if !ok {
		return nil, fmt.Errorf("marker table %s: missing avg_log2FC column", path)
	}

	var records []MarkerRecord
	for i, row := range rows[1:] {
		maxCol := clusterCol
		for _, c := range []int{geneCol, pvalCol, fcCol} {
			if c > maxCol {
				maxCol = c
			}
		}
		if len(row) <= maxCol {
			return nil, fmt.Errorf("marker table %s: row %d has %d fields", path, i+2, len(row))
		}
		pval, err := strconv.ParseFloat(strings.TrimSpace(row[pvalCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("marker table %s: row %d: bad p_val_adj %q", path, i+2, row[pvalCol])
		}
		fc, err := strconv.ParseFloat(strings.TrimSpace(row[fcCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("marker table %s: row %d: bad avg_log2FC %q", path, i+2, row[fcCol])
		}
		records = append(records, MarkerRecord{
			Cluster: strings.TrimSpace(row[clusterCol]),
			Gene:    strings.TrimSpace(row[geneCol]),
			PValAdj: pval,
			Log2FC:  fc,
		})
	}
	return records, nil
}

func normalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.Trim(name, `"`)))
}

// BuildGeneSets selects the prompt genes per cluster: significant,
// up-regulated markers sorted by descending fold change, truncated to topN,
// then any user-specified extra genes not already present. Cluster order is
// first-seen order in the marker table.
func BuildGeneSets(records []MarkerRecord, cfg Config) (GeneSets, error) {
	byCluster := map[string][]MarkerRecord{}
	var order []string
	for _, rec := range records {
		if rec.Cluster == "" || rec.Gene == "" {
			continue
		}
		if rec.PValAdj >= cfg.PValCutoff {
			continue
		}
		if rec.Log2FC < cfg.MinLog2FC {
			continue
		}
		if _, seen := byCluster[rec.Cluster]; !seen {
			order = append(order, rec.Cluster)
		}
		byCluster[rec.Cluster] = append(byCluster[rec.Cluster], rec)
	}
	if len(byCluster) == 0 {
		return GeneSets{}, fmt.Errorf("no clusters with significant markers (p_val_adj < %g, avg_log2FC >= %g)", cfg.PValCutoff, cfg.MinLog2FC)
	}

	sets := GeneSets{Clusters: order, Genes: make(map[string][]string, len(byCluster))}
	for _, cluster := range order {
		markers := byCluster[cluster]
		sort.SliceStable(markers, func(i, j int) bool {
			return markers[i].Log2FC > markers[j].Log2FC
		})
		var genes []string
		seen := map[string]bool{}
		for _, m := range markers {
			if seen[m.Gene] {
				continue
			}
			seen[m.Gene] = true
			genes = append(genes, m.Gene)
			if len(genes) >= cfg.TopGenes {
				break
			}
		}
		for _, extra := range cfg.ExtraGenes {
			if !seen[extra] {
				seen[extra] = true
				genes = append(genes, extra)
			}
		}
		sets.Genes[cluster] = genes
	}
	return sets, nil
}
