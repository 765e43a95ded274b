// Package authz provides the proof authorization service.
//
// This file implements batch verification: a bounded worker pool that runs
// the full per-bundle pipeline concurrently and reports outcomes in input
// order.
package authz

import (
	"sync"

	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// BundleResult is the outcome for one bundle within a batch.
type BundleResult struct {
	// ID echoes the bundle's identifier, empty for a nil bundle.
	ID string

	// Kind echoes the bundle's circuit kind.
	Kind zkproof.Kind

	// Err is nil when the bundle was accepted.
	Err error
}

// BatchStats aggregates one batch run.
type BatchStats struct {
	Total    int
	Accepted int
	Rejected int
}

// VerifyBatch verifies bundles concurrently with the configured number of
// workers. Results are returned in input order. Identity bundles in a batch
// consume their nullifiers exactly as single verification does, so two
// copies of the same identity bundle cannot both be accepted.
func (s *Service) VerifyBatch(bundles []*Bundle) ([]BundleResult, BatchStats) {
	results := make([]BundleResult, len(bundles))
	if len(bundles) == 0 {
		return results, BatchStats{}
	}

	workers := s.config.VerifyWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(bundles) {
		workers = len(bundles)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				b := bundles[i]
				result := BundleResult{Err: s.VerifyBundle(b)}
				if b != nil {
					result.ID = b.ID
					result.Kind = b.Kind
				}
				results[i] = result
			}
		}()
	}
	for i := range bundles {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	stats := BatchStats{Total: len(bundles)}
	for _, result := range results {
		if result.Err == nil {
			stats.Accepted++
		} else {
			stats.Rejected++
		}
	}
	return results, stats
}
