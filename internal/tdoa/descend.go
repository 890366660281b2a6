package tdoa

import "math/rand"

const (
	maxDescentIterations = 10000
	initialStep          = 1.0
	minStep              = 0.001
	noImprovementPatience = 100
)

// descend drives seed downhill on the residual surface using randomized-
// direction, adaptive-step direct search. It always terminates and returns
// some (point, cost); its returned cost is never greater than the cost at
// seed.
func descend(seed Vec3, anchors []Anchor, speed float64, rng *rand.Rand) Candidate {
	p := seed
	v := Residual(p, anchors, speed)
	lastImproved := 0

	for k := 0; k < maxDescentIterations; k++ {
		u := randomUnitVector(rng)
		step := initialStep

		for step > minStep {
			pNext := p.Add(u.Scale(step))
			vNext := Residual(pNext, anchors, speed)

			if vNext < v {
				p, v = pNext, vNext
				lastImproved = k
				break
			}
			step /= 2
		}

		if k-lastImproved > noImprovementPatience {
			break
		}
	}

	return Candidate{Point: p, Cost: v}
}
