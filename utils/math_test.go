package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDegRadConversions(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, DegToRad(-90), test.ShouldAlmostEqual, -math.Pi/2)
	test.That(t, RadToDeg(math.Pi), test.ShouldAlmostEqual, 180)
	test.That(t, RadToDeg(DegToRad(37.5)), test.ShouldAlmostEqual, 37.5)
}

func TestFloat64AlmostEqual(t *testing.T) {
	test.That(t, Float64AlmostEqual(1.0, 1.0005, 0.001), test.ShouldBeTrue)
	test.That(t, Float64AlmostEqual(1.0, 1.002, 0.001), test.ShouldBeFalse)
	test.That(t, Float64AlmostEqual(-5, -5, 0), test.ShouldBeTrue)
}

func TestAngleDiffDeg(t *testing.T) {
	test.That(t, AngleDiffDeg(10, 350), test.ShouldAlmostEqual, 20)
	test.That(t, AngleDiffDeg(350, 10), test.ShouldAlmostEqual, 20)
	test.That(t, AngleDiffDeg(90, 90), test.ShouldAlmostEqual, 0)
}
