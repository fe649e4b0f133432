// Package fabrik implements a 2D inverse kinematics solver using the FABRIK
// (Forward And Backward Reaching Inverse Kinematics) algorithm.
//
// Bones are assembled into chains, chains may be composed into structures and
// connected to bones of other chains, and the whole arrangement is solved
// iteratively for a target location while honoring per-joint rotational
// constraints.
//
// The algorithm itself can be found in:
// Aristidou, A., & Lasenby, J. (2011). FABRIK: a fast, iterative solver for
// the inverse kinematics problem. Graphical Models, 73(5), 243-260.
package fabrik

import "github.com/pkg/errors"

// CoordinateSystem determines what a joint's rotational constraint is
// measured against.
type CoordinateSystem int

const (
	// LocalCoordinates constrains a bone relative to the adjacent bone in
	// its chain.
	LocalCoordinates CoordinateSystem = iota
	// GlobalCoordinates constrains a bone relative to a fixed world-space
	// direction held on the bone itself.
	GlobalCoordinates
)

// String returns a human readable name for the coordinate system.
func (cs CoordinateSystem) String() string {
	switch cs {
	case LocalCoordinates:
		return "local"
	case GlobalCoordinates:
		return "global"
	default:
		return "unknown"
	}
}

const (
	// MinConstraintDeg is the smallest valid joint constraint angle. A zero
	// constraint locks the bone to its baseline direction.
	MinConstraintDeg = 0.0
	// MaxConstraintDeg is the largest valid joint constraint angle. A 180
	// degree constraint leaves the bone unconstrained in that winding.
	MaxConstraintDeg = 180.0
)

// Joint holds the rotational constraint of a single bone. Each bone owns
// exactly one joint, located at the bone's start, which limits how far the
// bone may rotate clockwise and anticlockwise from its constraint baseline.
type Joint struct {
	clockwiseDeg     float64
	anticlockwiseDeg float64
	coords           CoordinateSystem
}

// NewJoint creates a joint with the given clockwise and anticlockwise
// constraint angles in degrees, both of which must lie in [0, 180].
// Out-of-range angles are rejected rather than clamped so that caller bugs
// are not silently masked.
func NewJoint(clockwiseDeg, anticlockwiseDeg float64, coords CoordinateSystem) (Joint, error) {
	j := Joint{coords: coords}
	if err := j.SetClockwiseConstraintDeg(clockwiseDeg); err != nil {
		return Joint{}, err
	}
	if err := j.SetAnticlockwiseConstraintDeg(anticlockwiseDeg); err != nil {
		return Joint{}, err
	}
	return j, nil
}

// UnconstrainedJoint returns a joint free to rotate a half-turn in either
// direction, measured in local coordinates. This is the default joint given
// to every new bone.
func UnconstrainedJoint() Joint {
	return Joint{
		clockwiseDeg:     MaxConstraintDeg,
		anticlockwiseDeg: MaxConstraintDeg,
		coords:           LocalCoordinates,
	}
}

// ClockwiseConstraintDeg returns the clockwise constraint angle in degrees.
func (j Joint) ClockwiseConstraintDeg() float64 {
	return j.clockwiseDeg
}

// AnticlockwiseConstraintDeg returns the anticlockwise constraint angle in degrees.
func (j Joint) AnticlockwiseConstraintDeg() float64 {
	return j.anticlockwiseDeg
}

// CoordinateSystem returns the coordinate system the constraint is measured against.
func (j Joint) CoordinateSystem() CoordinateSystem {
	return j.coords
}

// SetClockwiseConstraintDeg sets the clockwise constraint angle in degrees.
// The angle must lie in [0, 180].
func (j *Joint) SetClockwiseConstraintDeg(angleDeg float64) error {
	if err := validateConstraintDeg(angleDeg); err != nil {
		return err
	}
	j.clockwiseDeg = angleDeg
	return nil
}

// SetAnticlockwiseConstraintDeg sets the anticlockwise constraint angle in
// degrees. The angle must lie in [0, 180].
func (j *Joint) SetAnticlockwiseConstraintDeg(angleDeg float64) error {
	if err := validateConstraintDeg(angleDeg); err != nil {
		return err
	}
	j.anticlockwiseDeg = angleDeg
	return nil
}

// SetCoordinateSystem sets the coordinate system the constraint is measured against.
func (j *Joint) SetCoordinateSystem(coords CoordinateSystem) {
	j.coords = coords
}

func validateConstraintDeg(angleDeg float64) error {
	if angleDeg < MinConstraintDeg || angleDeg > MaxConstraintDeg {
		return errors.Errorf("constraint angle %.2f out of range [%.0f, %.0f]",
			angleDeg, MinConstraintDeg, MaxConstraintDeg)
	}
	return nil
}
