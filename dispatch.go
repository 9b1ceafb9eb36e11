package main

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Fixed delay before each job submission. This paces the upstream API at
// ramp-up; it is not a retry backoff.
const submissionPacing = 300 * time.Millisecond

// ProgressFunc observes completed clusters. Purely informational; the
// dispatcher never depends on it.
type ProgressFunc func(done, total int, cluster string)

// resolveSelection validates requested cluster IDs against the gene sets.
// No selection means all clusters. An entirely invalid selection is a
// configuration error; a partially invalid one proceeds with the valid
// subset after a warning naming the missing IDs.
func resolveSelection(sets GeneSets, selected []string) ([]string, error) {
	if len(selected) == 0 {
		return sets.Clusters, nil
	}
	var valid, missing []string
	for _, id := range selected {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := sets.Genes[id]; ok {
			valid = append(valid, id)
		} else {
			missing = append(missing, id)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("none of the selected clusters exist in the marker table: %s", strings.Join(missing, ", "))
	}
	if len(missing) > 0 {
		log.Printf("warning: skipping unknown clusters: %s", strings.Join(missing, ", "))
	}
	return valid, nil
}

// dispatchAnnotations fans the per-cluster annotation out over a bounded
// worker pool and collects results keyed by cluster. Every submitted
// cluster produces exactly one result; ordering is up to the caller.
func dispatchAnnotations(cfg Config, format, model string, sets GeneSets, clusters []string, tlog *transcriptLog, progress ProgressFunc) map[string]AnnotationResult {
	client := &http.Client{Timeout: cfg.requestTimeout()}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(clusters) {
		workers = len(clusters)
	}

	jobs := make(chan string)
	out := make(chan AnnotationResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cluster := range jobs {
				out <- annotateCluster(client, cfg, format, model, cluster, sets.Genes[cluster], tlog)
			}
		}()
	}

	go func() {
		for _, cluster := range clusters {
			time.Sleep(submissionPacing)
			jobs <- cluster
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make(map[string]AnnotationResult, len(clusters))
	done := 0
	for res := range out {
		results[res.Cluster] = res
		done++
		if progress != nil {
			progress(done, len(clusters), res.Cluster)
		}
	}
	return results
}
