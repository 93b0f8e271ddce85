package sim

import "math"

// DistanceQuery is the collision oracle used by the motor ground-effect
// check and the range sensor. Cast returns the distance from origin to
// the first hit along dir (normalized), capped at maxDist; ok is false
// when nothing is hit within range.
type DistanceQuery interface {
	Cast(origin, dir Vec3, maxDist float64) (dist float64, ok bool)
}

// Box is an axis-aligned obstacle.
type Box struct {
	Min, Max Vec3
}

// World is a flat ground plane at GroundHeight plus axis-aligned boxes.
type World struct {
	GroundHeight float64
	Boxes        []Box
}

func (w *World) Cast(origin, dir Vec3, maxDist float64) (float64, bool) {
	best := math.Inf(1)

	// Ground plane y = GroundHeight.
	if dir.Y < -1e-9 {
		t := (w.GroundHeight - origin.Y) / dir.Y
		if t >= 0 && t < best {
			best = t
		}
	}

	for _, b := range w.Boxes {
		if t, hit := rayBox(origin, dir, b); hit && t < best {
			best = t
		}
	}

	if best <= maxDist {
		return best, true
	}
	return maxDist, false
}

// rayBox is the slab intersection test; returns the entry distance.
func rayBox(origin, dir Vec3, b Box) (float64, bool) {
	tMin := math.Inf(-1)
	tMax := math.Inf(1)

	slab := func(o, d, lo, hi float64) bool {
		if math.Abs(d) < 1e-12 {
			return o >= lo && o <= hi
		}
		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		return tMin <= tMax
	}

	if !slab(origin.X, dir.X, b.Min.X, b.Max.X) ||
		!slab(origin.Y, dir.Y, b.Min.Y, b.Max.Y) ||
		!slab(origin.Z, dir.Z, b.Min.Z, b.Max.Z) {
		return 0, false
	}
	if tMax < 0 {
		return 0, false
	}
	if tMin < 0 {
		tMin = 0
	}
	return tMin, true
}

// groundDistance is the downward clearance from a point, ok=false when the
// query finds nothing within maxDist.
func groundDistance(q DistanceQuery, pos Vec3, maxDist float64) (float64, bool) {
	if q == nil {
		return maxDist, false
	}
	return q.Cast(pos, Vec3{Y: -1}, maxDist)
}
