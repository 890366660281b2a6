package tdoa

import (
	"math"
	"sort"
)

// Normalize validates and canonicalizes an anchor set: time differences must
// all be finite and non-negative, and the result is sorted ascending by
// time difference with the smallest subtracted off so the earliest-receiving
// anchor has time difference zero. It operates on a copy; the caller's slice
// is left untouched.
//
// Returns a *PreconditionError if the anchor list is empty or any time
// difference is non-finite or negative.
func Normalize(anchors []Anchor) ([]Anchor, error) {
	if len(anchors) == 0 {
		return nil, &PreconditionError{Reason: "anchor set is empty", Err: ErrEmptyAnchorSet}
	}

	out := make([]Anchor, len(anchors))
	copy(out, anchors)

	for _, a := range out {
		if math.IsNaN(a.TimeDifference) || math.IsInf(a.TimeDifference, 0) || a.TimeDifference < 0 {
			return nil, &PreconditionError{Reason: "time difference is not finite and non-negative", Err: ErrInvalidTimeDifference}
		}
		if !finiteVec3(a.Position) {
			return nil, &PreconditionError{Reason: "anchor position is not finite", Err: ErrInvalidPosition}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimeDifference < out[j].TimeDifference
	})

	base := out[0].TimeDifference
	for i := range out {
		out[i].TimeDifference -= base
	}

	return out, nil
}

func finiteVec3(v Vec3) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
