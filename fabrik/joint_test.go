package fabrik

import (
	"testing"

	"go.viam.com/test"
)

func TestNewJoint(t *testing.T) {
	j, err := NewJoint(45, 90, LocalCoordinates)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, j.ClockwiseConstraintDeg(), test.ShouldEqual, 45)
	test.That(t, j.AnticlockwiseConstraintDeg(), test.ShouldEqual, 90)
	test.That(t, j.CoordinateSystem(), test.ShouldEqual, LocalCoordinates)

	_, err = NewJoint(-1, 90, LocalCoordinates)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewJoint(45, 181, LocalCoordinates)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestUnconstrainedJoint(t *testing.T) {
	j := UnconstrainedJoint()
	test.That(t, j.ClockwiseConstraintDeg(), test.ShouldEqual, 180.0)
	test.That(t, j.AnticlockwiseConstraintDeg(), test.ShouldEqual, 180.0)
	test.That(t, j.CoordinateSystem(), test.ShouldEqual, LocalCoordinates)
}

func TestJointSetters(t *testing.T) {
	j := UnconstrainedJoint()
	test.That(t, j.SetClockwiseConstraintDeg(30), test.ShouldBeNil)
	test.That(t, j.ClockwiseConstraintDeg(), test.ShouldEqual, 30)

	// Out-of-range angles are rejected, not clamped.
	err := j.SetClockwiseConstraintDeg(200)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, j.ClockwiseConstraintDeg(), test.ShouldEqual, 30)

	err = j.SetAnticlockwiseConstraintDeg(-0.5)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, j.AnticlockwiseConstraintDeg(), test.ShouldEqual, 180.0)

	j.SetCoordinateSystem(GlobalCoordinates)
	test.That(t, j.CoordinateSystem(), test.ShouldEqual, GlobalCoordinates)
}

func TestCoordinateSystemString(t *testing.T) {
	test.That(t, LocalCoordinates.String(), test.ShouldEqual, "local")
	test.That(t, GlobalCoordinates.String(), test.ShouldEqual, "global")
}
