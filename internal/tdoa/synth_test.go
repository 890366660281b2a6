package tdoa

import "testing"

// synthesizeEntries builds an anchor set at the given positions whose time
// differences are derived exactly from a synthesized source location and
// signal speed, then normalizes it. Grounded in the original implementation's
// get_test_setup helper (tweedegolf/tdoa-solver), reused here instead of
// duplicating the setup in every scenario test.
func synthesizeEntries(t *testing.T, source Vec3, speed float64, positions ...Vec3) ([]Anchor, []Anchor) {
	t.Helper()

	raw := make([]Anchor, len(positions))
	for i, p := range positions {
		raw[i] = Anchor{
			Position:       p,
			TimeDifference: distance(p, source) * 1e9 / speed,
		}
	}

	normalized, err := Normalize(raw)
	if err != nil {
		t.Fatalf("synthesizeEntries: Normalize failed: %v", err)
	}

	return raw, normalized
}
