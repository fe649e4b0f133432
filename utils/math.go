// Package utils contains scalar math helpers shared across the module.
package utils

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Float64AlmostEqual reports whether two floats are within epsilon of each other.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return scalar.EqualWithinAbs(a, b, epsilon)
}

// AngleDiffDeg returns the closest difference from the two given
// angles. The arguments are commutative.
func AngleDiffDeg(a1, a2 float64) float64 {
	return float64(180) - math.Abs(math.Abs(a1-a2)-float64(180))
}
