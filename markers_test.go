package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMarkerFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "markers.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleMarkers = `cluster,gene,p_val_adj,avg_log2FC,pct.1
0,CD3D,1e-50,2.5,0.9
0,CD3E,1e-40,2.1,0.8
0,JUNK,0.9,3.0,0.1
0,NEG,1e-30,-1.5,0.4
1,CD19,1e-60,3.2,0.95
1,MS4A1,1e-45,2.8,0.9
`

func TestLoadMarkerCSV(t *testing.T) {
	path := writeMarkerFile(t, sampleMarkers)
	records, err := LoadMarkerCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 6 {
		t.Fatalf("got %d records, want 6", len(records))
	}
	first := records[0]
	if first.Cluster != "0" || first.Gene != "CD3D" || first.Log2FC != 2.5 {
		t.Fatalf("unexpected first record: %+v", first)
	}
}

func TestLoadMarkerCSVMissingColumn(t *testing.T) {
	path := writeMarkerFile(t, "cluster,gene,p_val_adj\n0,CD3D,1e-5\n")
	_, err := LoadMarkerCSV(path)
	if err == nil {
		t.Fatal("expected error for missing avg_log2FC column")
	}
	if !strings.Contains(err.Error(), "avg_log2FC") {
		t.Fatalf("error does not name the missing column: %v", err)
	}
}

func TestBuildGeneSetsFiltersAndOrders(t *testing.T) {
	path := writeMarkerFile(t, sampleMarkers)
	records, err := LoadMarkerCSV(path)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{TopGenes: 10, PValCutoff: 0.05, MinLog2FC: 0.25}
	sets, err := BuildGeneSets(records, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if strings.Join(sets.Clusters, ",") != "0,1" {
		t.Fatalf("cluster order = %v", sets.Clusters)
	}
	// JUNK fails the p-value filter, NEG fails the fold-change filter.
	if got := strings.Join(sets.Genes["0"], ","); got != "CD3D,CD3E" {
		t.Fatalf("cluster 0 genes = %q", got)
	}
	// Sorted by descending fold change.
	if got := strings.Join(sets.Genes["1"], ","); got != "CD19,MS4A1" {
		t.Fatalf("cluster 1 genes = %q", got)
	}
}

func TestBuildGeneSetsTopNAndExtraGenes(t *testing.T) {
	path := writeMarkerFile(t, sampleMarkers)
	records, err := LoadMarkerCSV(path)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{TopGenes: 1, PValCutoff: 0.05, MinLog2FC: 0.25, ExtraGenes: []string{"ACTB", "CD19"}}
	sets, err := BuildGeneSets(records, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if got := strings.Join(sets.Genes["0"], ","); got != "CD3D,ACTB,CD19" {
		t.Fatalf("cluster 0 genes = %q", got)
	}
	// CD19 is already the top marker of cluster 1, so the extra-gene union
	// must not duplicate it.
	if got := strings.Join(sets.Genes["1"], ","); got != "CD19,ACTB" {
		t.Fatalf("cluster 1 genes = %q", got)
	}
}

func TestBuildGeneSetsNoSignificantMarkers(t *testing.T) {
	records := []MarkerRecord{{Cluster: "0", Gene: "X", PValAdj: 0.5, Log2FC: 1.0}}
	cfg := Config{TopGenes: 10, PValCutoff: 0.05, MinLog2FC: 0.25}
	if _, err := BuildGeneSets(records, cfg); err == nil {
		t.Fatal("expected error when everything is filtered out")
	}
}
