package tdoa

import (
	"math/rand"
	"sync"
)

const defaultWorkers = 8

// runDescents runs the multi-start driver: the seed sequence is repeated
// cycles times and every (seed, cycle) pair is descended independently.
// Descents are mutually independent and run across a fixed worker pool
// fed by a jobs channel and joined with a WaitGroup. The returned slice is indexed by
// cycle*len(seeds)+seedIndex regardless of goroutine completion order, so
// clustering downstream stays reproducible for a fixed seed.
func runDescents(anchors []Anchor, speed float64, seeds []Vec3, cycles int, workers int, baseSeed int64) []Candidate {
	if workers <= 0 {
		workers = defaultWorkers
	}

	total := len(seeds) * cycles
	candidates := make([]Candidate, total)

	jobs := make(chan int, total)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				seedIdx := idx % len(seeds)
				rng := rand.New(rand.NewSource(baseSeed + int64(idx)))
				candidates[idx] = descend(seeds[seedIdx], anchors, speed, rng)
			}
		}()
	}

	for idx := 0; idx < total; idx++ {
		jobs <- idx
	}
	close(jobs)

	wg.Wait()

	return candidates
}
