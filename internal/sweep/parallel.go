package sweep

import (
	"fmt"
	"sync"
)

// Runner executes one sample and returns its trajectory. Each worker gets
// its own Runner instance, so implementations may keep scratch state.
type Runner func(s Sample) ([][]float64, error)

// Result pairs a sample with its trajectory or error. A failed sample is
// reported, never retried, and never aborts the batch.
type Result struct {
	Index      int
	Sample     Sample
	Trajectory [][]float64
	Err        error
}

// Run partitions samples into workers contiguous chunks (the last chunk
// absorbs the remainder), executes each chunk on its own goroutine with a
// Runner built by newRunner, and merges results by submission index. The
// only synchronization is the final join; workers share no mutable state
// beyond their disjoint slices of the result vector.
func Run(samples []Sample, workers int, newRunner func() Runner) []Result {
	results := make([]Result, len(samples))
	if len(samples) == 0 {
		return results
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(samples) {
		workers = len(samples)
	}

	chunk := len(samples) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if w == workers-1 {
			hi = len(samples)
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			run := newRunner()
			for i := lo; i < hi; i++ {
				results[i] = runOne(run, i, samples[i])
			}
		}(lo, hi)
	}
	wg.Wait()

	return results
}

// runOne isolates a single sample, converting panics into per-sample errors
// so a pathological input cannot take the worker's whole chunk down with it.
func runOne(run Runner, idx int, s Sample) (res Result) {
	res = Result{Index: idx, Sample: s}
	defer func() {
		if r := recover(); r != nil {
			res.Trajectory = nil
			res.Err = fmt.Errorf("sweep: sample %d panicked: %v", idx, r)
		}
	}()
	res.Trajectory, res.Err = run(s)
	return res
}
