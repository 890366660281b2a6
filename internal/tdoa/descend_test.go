package tdoa

import (
	"math/rand"
	"testing"
)

func TestDescendNeverWorsens(t *testing.T) {
	anchors := anchorsForSource(Vec3{0, 10, 0}, Vec3{10, 0, 0}, Vec3{10, 10, 5}, Vec3{0, 0, 5})
	rng := rand.New(rand.NewSource(42))

	for _, seed := range generateSeeds(anchors) {
		seedCost := Residual(seed, anchors, 3e8)
		result := descend(seed, anchors, 3e8, rng)
		if result.Cost > seedCost {
			t.Errorf("descend increased cost: seed cost %v, result cost %v", seedCost, result.Cost)
		}
	}
}

func TestDescendSingleAnchorReturnsSeedUnchanged(t *testing.T) {
	anchors := []Anchor{{Position: Vec3{1, 2, 3}, TimeDifference: 0}}
	seed := Vec3{1, 2, 3}
	rng := rand.New(rand.NewSource(1))

	result := descend(seed, anchors, 3e8, rng)
	if result.Point != seed {
		t.Errorf("descend with one anchor moved the point: got %+v, want %+v", result.Point, seed)
	}
	if result.Cost != 0 {
		t.Errorf("descend with one anchor cost = %v, want 0", result.Cost)
	}
}
