package fabrik

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/gokinetics/fabrik2d/vecmath"
)

// Bone is a rigid segment between a start and an end location. The bone's
// length is fixed at construction and never recomputed from the endpoints;
// the solver is responsible for keeping the endpoints consistent with it as
// they are moved.
//
// Each bone owns a single Joint, located at its start, which constrains the
// bone's rotation relative to the adjacent bone in its chain (local
// coordinates) or to the bone's own world-space constraint direction (global
// coordinates).
type Bone struct {
	start  mgl64.Vec2
	end    mgl64.Vec2
	length float64
	joint  Joint

	// globalConstraintUV is the world-space baseline used when the joint is
	// constrained in global coordinates.
	globalConstraintUV mgl64.Vec2

	name string
}

// NewBone creates a bone spanning the two given locations. The bone's length
// is captured from the distance between them.
func NewBone(start, end mgl64.Vec2) (*Bone, error) {
	return &Bone{
		start:              start,
		end:                end,
		length:             end.Sub(start).Len(),
		joint:              UnconstrainedJoint(),
		globalConstraintUV: mgl64.Vec2{1, 0},
	}, nil
}

// NewBoneFromDirection creates a bone of the given length extending from
// start in the given direction. The direction may be of any magnitude but
// must be nonzero; the length must be non-negative.
func NewBoneFromDirection(start, direction mgl64.Vec2, length float64) (*Bone, error) {
	dir, err := vecmath.Normalize(direction)
	if err != nil {
		return nil, errors.Wrap(err, "bone direction")
	}
	if length < 0 {
		return nil, errors.Errorf("bone length must be non-negative, got %f", length)
	}
	return &Bone{
		start:              start,
		end:                start.Add(dir.Mul(length)),
		length:             length,
		joint:              UnconstrainedJoint(),
		globalConstraintUV: mgl64.Vec2{1, 0},
	}, nil
}

// NewConstrainedBone creates a bone as NewBoneFromDirection does, then applies
// the given clockwise/anticlockwise joint constraint angles in degrees.
func NewConstrainedBone(start, direction mgl64.Vec2, length, clockwiseDeg, anticlockwiseDeg float64) (*Bone, error) {
	b, err := NewBoneFromDirection(start, direction, length)
	if err != nil {
		return nil, err
	}
	joint, err := NewJoint(clockwiseDeg, anticlockwiseDeg, LocalCoordinates)
	if err != nil {
		return nil, err
	}
	b.joint = joint
	return b, nil
}

// Start returns the start location of the bone.
func (b *Bone) Start() mgl64.Vec2 {
	return b.start
}

// End returns the end location of the bone.
func (b *Bone) End() mgl64.Vec2 {
	return b.end
}

// SetStart moves the bone's start location. The bone's length is not updated.
func (b *Bone) SetStart(location mgl64.Vec2) {
	b.start = location
}

// SetEnd moves the bone's end location. The bone's length is not updated.
func (b *Bone) SetEnd(location mgl64.Vec2) {
	b.end = location
}

// Length returns the bone's length as fixed at construction.
func (b *Bone) Length() float64 {
	return b.length
}

// Direction returns the unit vector from the bone's start to its end. It is
// computed on every call rather than cached. If the bone's endpoints
// currently coincide, the zero vector is returned.
func (b *Bone) Direction() mgl64.Vec2 {
	dir, err := vecmath.Normalize(b.end.Sub(b.start))
	if err != nil {
		return mgl64.Vec2{}
	}
	return dir
}

// Joint returns the joint attached to this bone.
func (b *Bone) Joint() Joint {
	return b.joint
}

// SetJoint replaces the joint attached to this bone.
func (b *Bone) SetJoint(joint Joint) {
	b.joint = joint
}

// GlobalConstraintUV returns the world-space constraint direction used when
// the bone's joint is constrained in global coordinates.
func (b *Bone) GlobalConstraintUV() mgl64.Vec2 {
	return b.globalConstraintUV
}

// SetGlobalConstraintUV sets the world-space constraint direction. The vector
// is normalized before being stored; a zero vector is rejected.
func (b *Bone) SetGlobalConstraintUV(direction mgl64.Vec2) error {
	dir, err := vecmath.Normalize(direction)
	if err != nil {
		return errors.Wrap(err, "global constraint direction")
	}
	b.globalConstraintUV = dir
	return nil
}

// Name returns the bone's optional name.
func (b *Bone) Name() string {
	return b.name
}

// SetName sets the bone's optional name.
func (b *Bone) SetName(name string) {
	b.name = name
}

// Clone returns a deep copy of the bone. The copy shares no state with the
// original.
func (b *Bone) Clone() *Bone {
	clone := *b
	return &clone
}

// String returns a concise human readable description of the bone.
func (b *Bone) String() string {
	return fmt.Sprintf("bone %q start (%.3f, %.3f) end (%.3f, %.3f) length %.3f",
		b.name, b.start.X(), b.start.Y(), b.end.X(), b.end.Y(), b.length)
}
