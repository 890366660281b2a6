package tdoa

import "time"

// SolverConfig tunes the multi-start search. Cycles is the user-facing
// accuracy knob (spec §4.3); Workers and Seed control the concurrency and
// reproducibility of the descent fan-out.
type SolverConfig struct {
	Cycles  int   // number of passes over the seed sequence, >= 1
	Workers int   // worker pool size; 0 means a sensible default
	Seed    int64 // base RNG seed; descents derive per-task seeds from it
}

// DefaultSolverConfig returns recommended defaults: 10 cycles, 8 workers,
// a fixed seed for reproducibility.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Cycles:  10,
		Workers: defaultWorkers,
		Seed:    1,
	}
}

// Solver runs the TDoA localization pipeline: normalize -> seed -> descend
// -> cluster -> score.
type Solver struct {
	config SolverConfig
}

// NewSolver creates a Solver with the given configuration. A zero Cycles is
// treated as 1.
func NewSolver(config SolverConfig) *Solver {
	if config.Cycles < 1 {
		config.Cycles = 1
	}
	return &Solver{config: config}
}

// Config returns the solver's active configuration.
func (s *Solver) Config() SolverConfig {
	return s.config
}

// SolveStats reports the shape of a completed solve for logging and metrics.
type SolveStats struct {
	AnchorCount  int
	Descents     int
	ClusterCount int
	ResultCount  int
	Elapsed      time.Duration
}

// Solve runs one full localization pass over anchors at the given signal
// speed (metres per second), using the solver's configured cycle count, and
// returns the ranked candidate list. An empty, nil-error Result means every
// cluster failed the mean-weight filter — the caller should read that as
// "no confident estimate", not as a fault.
//
// Returns a *PreconditionError (fatal, no retry) if anchors is empty or any
// time difference is non-finite or negative.
func (s *Solver) Solve(anchors []Anchor, speed float64) (Result, SolveStats, error) {
	return s.solve(anchors, speed, s.config.Cycles)
}

// SolveWithCycles runs one localization pass like Solve, but overrides the
// solver's configured cycle count for this call only. A cycles value below
// 1 falls back to the solver's configured default. Callers use this to cap
// the search effort a single request may demand (for instance, a per-caller
// budget enforced by an authentication layer) without reconfiguring the
// whole solver.
func (s *Solver) SolveWithCycles(anchors []Anchor, speed float64, cycles int) (Result, SolveStats, error) {
	if cycles < 1 {
		cycles = s.config.Cycles
	}
	return s.solve(anchors, speed, cycles)
}

func (s *Solver) solve(anchors []Anchor, speed float64, cycles int) (Result, SolveStats, error) {
	start := time.Now()

	normalized, err := Normalize(anchors)
	if err != nil {
		return nil, SolveStats{}, err
	}

	seeds := generateSeeds(normalized)
	candidates := runDescents(normalized, speed, seeds, cycles, s.config.Workers, s.config.Seed)
	clusters := clusterCandidates(candidates)
	result := scoreAndFilter(clusters)

	stats := SolveStats{
		AnchorCount:  len(normalized),
		Descents:     len(candidates),
		ClusterCount: len(clusters),
		ResultCount:  len(result),
		Elapsed:      time.Since(start),
	}

	return result, stats, nil
}
