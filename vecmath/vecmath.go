// Package vecmath provides 2D direction and angle helpers on top of mgl64.Vec2.
// It contains the directional constraint clamp at the heart of the FABRIK solver.
package vecmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/gokinetics/fabrik2d/utils"
)

// Normalize returns the unit vector pointing in the direction of v.
// A zero-magnitude vector cannot be normalized and results in an error.
func Normalize(v mgl64.Vec2) (mgl64.Vec2, error) {
	if v.LenSqr() == 0 {
		return mgl64.Vec2{}, errors.New("cannot normalize a zero-magnitude vector")
	}
	return v.Normalize(), nil
}

// RotateDeg returns v rotated anticlockwise by the given angle in degrees.
func RotateDeg(v mgl64.Vec2, degrees float64) mgl64.Vec2 {
	return mgl64.Rotate2D(utils.DegToRad(degrees)).Mul2x1(v)
}

// SignedAngleDeg returns the signed angle in degrees from a to b, in the range
// (-180, 180]. Positive angles are anticlockwise. Inputs are always normalized
// internally, so callers may pass vectors of any magnitude. If either input has
// zero magnitude the angle is reported as zero.
func SignedAngleDeg(a, b mgl64.Vec2) float64 {
	if a.LenSqr() == 0 || b.LenSqr() == 0 {
		return 0
	}
	a = a.Normalize()
	b = b.Normalize()

	// Guard the dot product against rounding outside acos's domain.
	dot := a.Dot(b)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	unsigned := utils.RadToDeg(math.Acos(dot))

	// The sign of the 2D cross product tells us the winding.
	if a.X()*b.Y()-b.X()*a.Y() < 0 {
		return -unsigned
	}
	return unsigned
}

// Constrain clamps direction to lie within the clockwise/anticlockwise limits
// (in degrees) measured from baseline. If the signed angle from baseline to
// direction exceeds the anticlockwise limit then the result is the baseline
// rotated anticlockwise by that limit; if it exceeds the clockwise limit then
// the result is the baseline rotated clockwise by that limit; otherwise the
// direction is returned unchanged.
func Constrain(direction, baseline mgl64.Vec2, clockwiseDeg, anticlockwiseDeg float64) mgl64.Vec2 {
	angle := SignedAngleDeg(baseline, direction)
	if angle > anticlockwiseDeg {
		return RotateDeg(baseline, anticlockwiseDeg)
	}
	if angle < -clockwiseDeg {
		return RotateDeg(baseline, -clockwiseDeg)
	}
	return direction
}

// AlmostEqual reports whether both components of a and b are within epsilon of
// each other.
func AlmostEqual(a, b mgl64.Vec2, epsilon float64) bool {
	return utils.Float64AlmostEqual(a.X(), b.X(), epsilon) &&
		utils.Float64AlmostEqual(a.Y(), b.Y(), epsilon)
}
