package sim

import (
	"math"
)

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(other Vec3) Vec3     { return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z} }
func (v Vec3) Sub(other Vec3) Vec3     { return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z} }
func (v Vec3) Mul(scalar float64) Vec3 { return Vec3{v.X * scalar, v.Y * scalar, v.Z * scalar} }

func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

func (v Vec3) Length() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

func (v Vec3) Normalize() Vec3 {
	length := v.Length()
	if length == 0 {
		return Vec3{0, 0, 0}
	}
	return Vec3{v.X / length, v.Y / length, v.Z / length}
}

// NormalizeSafe normalizes unless |v| < eps, in which case it returns (0,0,0).
func (v Vec3) NormalizeSafe(eps float64) Vec3 {
	if v.Length() < eps {
		return Vec3{0, 0, 0}
	}
	return v.Normalize()
}

func DegToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func RadToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// wrapAngle maps an angle in radians to (-pi, pi].
func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func sanitizeFinite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// Quat is a unit quaternion representing an orientation.
// Frames are right-handed: X right, Y up, Z forward.
type Quat struct {
	W, X, Y, Z float64
}

func IdentityQuat() Quat { return Quat{W: 1} }

// QuatFromAxisAngle builds a rotation of angle radians about a normalized axis.
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	half := angle * 0.5
	s := math.Sin(half)
	return Quat{
		W: math.Cos(half),
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
	}
}

// Mul composes rotations: (q.Mul(p)).Rotate(v) == q.Rotate(p.Rotate(v)).
func (q Quat) Mul(p Quat) Quat {
	return Quat{
		W: q.W*p.W - q.X*p.X - q.Y*p.Y - q.Z*p.Z,
		X: q.W*p.X + q.X*p.W + q.Y*p.Z - q.Z*p.Y,
		Y: q.W*p.Y - q.X*p.Z + q.Y*p.W + q.Z*p.X,
		Z: q.W*p.Z + q.X*p.Y - q.Y*p.X + q.Z*p.W,
	}
}

func (q Quat) Conjugate() Quat { return Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z} }

func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n < 1e-12 {
		return IdentityQuat()
	}
	inv := 1.0 / n
	return Quat{q.W * inv, q.X * inv, q.Y * inv, q.Z * inv}
}

// Rotate applies the rotation to a vector.
func (q Quat) Rotate(v Vec3) Vec3 {
	// v' = v + 2*cross(q.xyz, cross(q.xyz, v) + w*v)
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Mul(2)
	return v.Add(t.Mul(q.W)).Add(u.Cross(t))
}

// AxisAngle decomposes the rotation into a normalized axis and an angle
// wrapped to (-pi, pi]. A near-identity rotation yields a zero axis.
func (q Quat) AxisAngle() (Vec3, float64) {
	qn := q
	if qn.W < 0 {
		// Same rotation, short way around.
		qn = Quat{-qn.W, -qn.X, -qn.Y, -qn.Z}
	}
	angle := wrapAngle(2 * math.Acos(clamp(qn.W, -1, 1)))
	s := math.Sqrt(1 - clamp(qn.W*qn.W, 0, 1))
	if s < 1e-8 {
		return Vec3{}, 0
	}
	inv := 1.0 / s
	return Vec3{qn.X * inv, qn.Y * inv, qn.Z * inv}, angle
}

// Integrate advances the orientation by a body-frame angular velocity
// (rad/s) over dt and renormalizes.
func (q Quat) Integrate(omegaBody Vec3, dt float64) Quat {
	half := dt * 0.5
	dq := q.Mul(Quat{W: 0, X: omegaBody.X * half, Y: omegaBody.Y * half, Z: omegaBody.Z * half})
	return Quat{q.W + dq.W, q.X + dq.X, q.Y + dq.Y, q.Z + dq.Z}.Normalize()
}

// AttitudeFromEuler composes an orientation from stick-convention angles in
// radians: pitch positive nose up, yaw positive turning right, roll positive
// banking right. Composition order is yaw, then pitch, then roll.
func AttitudeFromEuler(pitch, yaw, roll float64) Quat {
	qYaw := QuatFromAxisAngle(Vec3{Y: 1}, yaw)
	qPitch := QuatFromAxisAngle(Vec3{X: 1}, -pitch)
	qRoll := QuatFromAxisAngle(Vec3{Z: 1}, -roll)
	return qYaw.Mul(qPitch).Mul(qRoll).Normalize()
}

// EulerFromAttitude is the inverse of AttitudeFromEuler. Angles are in
// radians with the same sign conventions.
func EulerFromAttitude(q Quat) (pitch, yaw, roll float64) {
	fwd := q.Rotate(Vec3{Z: 1})
	pitch = math.Asin(clamp(fwd.Y, -1, 1))
	yaw = math.Atan2(fwd.X, fwd.Z)
	// Remove yaw and pitch; what remains is the roll about body Z.
	qYawPitch := QuatFromAxisAngle(Vec3{Y: 1}, yaw).Mul(QuatFromAxisAngle(Vec3{X: 1}, -pitch))
	qRoll := qYawPitch.Conjugate().Mul(q).Normalize()
	roll = wrapAngle(-2 * math.Atan2(qRoll.Z, qRoll.W))
	return pitch, yaw, roll
}

// YawOf extracts only the heading component of an orientation.
func YawOf(q Quat) float64 {
	fwd := q.Rotate(Vec3{Z: 1})
	return math.Atan2(fwd.X, fwd.Z)
}

// HeadingQuat is the yaw-only rotation of an orientation, used to map
// local forward/right commands into the world frame.
func HeadingQuat(q Quat) Quat {
	return QuatFromAxisAngle(Vec3{Y: 1}, YawOf(q))
}
