package cms

import "math"

// DimensionsFromProb derives width/depth from the standard CMS error
// bounds: width = ceil(e/epsilon), depth = ceil(ln(1/delta)). epsilon
// bounds the relative over-count (as a fraction of total count seen);
// delta bounds the probability of exceeding that bound.
func DimensionsFromProb(epsilon, delta float64) (width, depth uint32) {
	if epsilon <= 0 {
		epsilon = 0.001
	}
	if delta <= 0 {
		delta = 0.01
	}

	width = uint32(math.Ceil(math.E / epsilon))
	depth = uint32(math.Ceil(math.Log(1 / delta)))

	if width < 1 {
		width = 1
	}
	if depth < 1 {
		depth = 1
	}
	return width, depth
}
