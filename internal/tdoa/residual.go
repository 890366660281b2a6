package tdoa

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Residual evaluates the hyperboloid cost surface at p for the given
// normalized anchor set and signal speed (metres per second). It is pure,
// deterministic, and never returns a negative or NaN value for finite
// inputs. Anchors must already be normalized (see Normalize) — anchors[0] is
// taken as the zero-time reference.
//
// Exported so diagnostic consumers (e.g. pkg/diagnostic) can sample the same
// cost surface the solver descends.
func Residual(p Vec3, anchors []Anchor, speed float64) float64 {
	if len(anchors) < 2 {
		return 0
	}

	d0 := distance(p, anchors[0].Position)

	terms := make([]float64, 0, len(anchors)-1)
	for _, a := range anchors[1:] {
		di := distance(p, a.Position) - speed*a.TimeDifference/1e9
		terms = append(terms, math.Abs(d0-di))
	}

	return floats.Sum(terms)
}

func distance(a, b Vec3) float64 {
	d := a.Sub(b)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}
