package fabrik

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/gokinetics/fabrik2d/vecmath"
)

// BaseboneConstraintType describes how the first bone of a chain is
// constrained.
type BaseboneConstraintType int

const (
	// BaseboneNone leaves the base bone unconstrained.
	BaseboneNone BaseboneConstraintType = iota
	// BaseboneGlobalAbsolute constrains the base bone about a world-space
	// direction.
	BaseboneGlobalAbsolute
	// BaseboneLocalRelative constrains the base bone about the direction of
	// the host bone the chain is connected to.
	BaseboneLocalRelative
	// BaseboneLocalAbsolute constrains the base bone about a direction
	// expressed in the local coordinate space of the host bone.
	BaseboneLocalAbsolute
)

// String returns a human readable name for the basebone constraint type.
func (bct BaseboneConstraintType) String() string {
	switch bct {
	case BaseboneNone:
		return "none"
	case BaseboneGlobalAbsolute:
		return "global_absolute"
	case BaseboneLocalRelative:
		return "local_relative"
	case BaseboneLocalAbsolute:
		return "local_absolute"
	default:
		return "unknown"
	}
}

// ConnectionPoint selects which endpoint of a host bone a connected chain
// attaches to.
type ConnectionPoint int

const (
	// ConnectAtStart attaches a connected chain to the host bone's start.
	ConnectAtStart ConnectionPoint = iota
	// ConnectAtEnd attaches a connected chain to the host bone's end.
	ConnectAtEnd
)

// String returns a human readable name for the connection point.
func (cp ConnectionPoint) String() string {
	if cp == ConnectAtStart {
		return "start"
	}
	return "end"
}

// connection records which bone of which chain in a structure this chain is
// attached to. A nil connection means the chain stands alone.
type connection struct {
	chain int
	bone  int
}

const (
	defaultSolveDistanceThreshold = 1.0
	defaultMaxIterationAttempts   = 15
	defaultMinIterationChange     = 0.01

	// positionEpsilon is the tolerance used when deciding whether a target or
	// base location has moved since the previous solve.
	positionEpsilon = 0.001
)

// Chain is an ordered sequence of bones solved together toward a single
// target with the FABRIK algorithm. Bone 0 is the base bone, closest to the
// anchor; the last bone's end location is the end effector.
//
// A Chain is not safe for concurrent use; callers must serialize solve calls.
type Chain struct {
	bones       []*Bone
	chainLength float64

	baseLocation mgl64.Vec2
	fixedBase    bool

	baseboneConstraintType BaseboneConstraintType
	baseboneConstraintUV   mgl64.Vec2
	// baseboneRelativeConstraintUV is written only by the owning Structure
	// while solving connected chains in local-absolute mode.
	baseboneRelativeConstraintUV mgl64.Vec2

	connectionPoint ConnectionPoint
	conn            *connection

	solveDistanceThreshold float64
	maxIterationAttempts   int
	minIterationChange     float64

	useEmbeddedTarget bool
	embeddedTarget    mgl64.Vec2

	// solved is false until the first solve completes, so the first call can
	// never short-circuit on the cached locations below.
	solved               bool
	lastTargetLocation   mgl64.Vec2
	lastBaseLocation     mgl64.Vec2
	currentSolveDistance float64

	name string
}

// NewChain creates an empty chain with the default solve parameters: a solve
// distance threshold of 1.0, at most 15 iteration attempts, a minimum
// iteration change of 0.01, and a fixed base.
func NewChain() *Chain {
	return &Chain{
		fixedBase:              true,
		connectionPoint:        ConnectAtEnd,
		solveDistanceThreshold: defaultSolveDistanceThreshold,
		maxIterationAttempts:   defaultMaxIterationAttempts,
		minIterationChange:     defaultMinIterationChange,
		currentSolveDistance:   math.Inf(1),
	}
}

// AddBone appends a bone to the end of the chain. If it is the first bone,
// the chain's base location is captured from the bone's start and the
// basebone constraint direction defaults to the bone's direction.
func (c *Chain) AddBone(bone *Bone) {
	c.bones = append(c.bones, bone)
	if len(c.bones) == 1 {
		c.baseLocation = bone.Start()
		c.baseboneConstraintUV = bone.Direction()
	}
	c.updateChainLength()
}

// AddConsecutiveBone appends an unconstrained bone extending from the end of
// the last bone in the given direction. The chain must already contain a base
// bone.
func (c *Chain) AddConsecutiveBone(direction mgl64.Vec2, length float64) error {
	return c.AddConsecutiveConstrainedBone(direction, length, MaxConstraintDeg, MaxConstraintDeg)
}

// AddConsecutiveConstrainedBone appends a bone extending from the end of the
// last bone in the given direction, constrained by the given clockwise and
// anticlockwise angles relative to the previous bone. The chain must already
// contain a base bone.
func (c *Chain) AddConsecutiveConstrainedBone(direction mgl64.Vec2, length, clockwiseDeg, anticlockwiseDeg float64) error {
	if len(c.bones) == 0 {
		return errors.New("cannot add a consecutive bone to a chain with no base bone")
	}
	prevEnd := c.bones[len(c.bones)-1].End()
	bone, err := NewConstrainedBone(prevEnd, direction, length, clockwiseDeg, anticlockwiseDeg)
	if err != nil {
		return err
	}
	c.AddBone(bone)
	return nil
}

// RemoveBone removes the bone at the given zero-based index.
func (c *Chain) RemoveBone(boneIdx int) error {
	if boneIdx < 0 || boneIdx >= len(c.bones) {
		return newBoneOutOfRangeError(boneIdx, len(c.bones))
	}
	c.bones = append(c.bones[:boneIdx], c.bones[boneIdx+1:]...)
	c.updateChainLength()
	return nil
}

// Bone returns the bone at the given zero-based index.
func (c *Chain) Bone(boneIdx int) (*Bone, error) {
	if boneIdx < 0 || boneIdx >= len(c.bones) {
		return nil, newBoneOutOfRangeError(boneIdx, len(c.bones))
	}
	return c.bones[boneIdx], nil
}

// NumBones returns the number of bones in the chain.
func (c *Chain) NumBones() int {
	return len(c.bones)
}

// ChainLength returns the combined length of all bones in the chain. It is
// cached and updated whenever bones are added or removed.
func (c *Chain) ChainLength() float64 {
	return c.chainLength
}

// BaseLocation returns the start location of the first bone in the chain.
func (c *Chain) BaseLocation() (mgl64.Vec2, error) {
	if len(c.bones) == 0 {
		return mgl64.Vec2{}, ErrEmptyChain
	}
	return c.bones[0].Start(), nil
}

// EffectorLocation returns the end location of the last bone in the chain.
func (c *Chain) EffectorLocation() (mgl64.Vec2, error) {
	if len(c.bones) == 0 {
		return mgl64.Vec2{}, ErrEmptyChain
	}
	return c.bones[len(c.bones)-1].End(), nil
}

// FixedBase reports whether the base bone's start is pinned to the chain's
// base location on every solve.
func (c *Chain) FixedBase() bool {
	return c.fixedBase
}

// SetFixedBase sets whether the base bone's start is pinned to the chain's
// base location. A chain connected to another chain must remain in fixed base
// mode, as must a chain whose basebone constraint type is global-absolute.
func (c *Chain) SetFixedBase(fixed bool) error {
	if !fixed && c.conn != nil {
		return errors.New("a chain connected to another chain must remain in fixed base mode")
	}
	if !fixed && c.baseboneConstraintType == BaseboneGlobalAbsolute {
		return errors.New("a chain with a global-absolute basebone constraint must remain in fixed base mode")
	}
	c.fixedBase = fixed
	return nil
}

// BaseboneConstraintType returns the constraint type applied to the base bone.
func (c *Chain) BaseboneConstraintType() BaseboneConstraintType {
	return c.baseboneConstraintType
}

// SetBaseboneConstraintType sets the constraint type applied to the base bone.
func (c *Chain) SetBaseboneConstraintType(bct BaseboneConstraintType) {
	c.baseboneConstraintType = bct
}

// BaseboneConstraintUV returns the direction the base bone is constrained
// about.
func (c *Chain) BaseboneConstraintUV() mgl64.Vec2 {
	return c.baseboneConstraintUV
}

// SetBaseboneConstraintUV sets the direction the base bone is constrained
// about. The vector is normalized before being stored; a zero vector is
// rejected.
func (c *Chain) SetBaseboneConstraintUV(direction mgl64.Vec2) error {
	dir, err := vecmath.Normalize(direction)
	if err != nil {
		return errors.Wrap(err, "basebone constraint direction")
	}
	c.baseboneConstraintUV = dir
	return nil
}

// BaseboneRelativeConstraintUV returns the constraint direction derived from
// the host bone when this chain is connected in local-absolute mode. It is
// maintained by the owning Structure during solves.
func (c *Chain) BaseboneRelativeConstraintUV() mgl64.Vec2 {
	return c.baseboneRelativeConstraintUV
}

// ConnectionPoint returns which endpoint of a host bone this chain attaches
// to when connected.
func (c *Chain) ConnectionPoint() ConnectionPoint {
	return c.connectionPoint
}

// SetConnectionPoint sets which endpoint of a host bone this chain attaches
// to when connected.
func (c *Chain) SetConnectionPoint(cp ConnectionPoint) {
	c.connectionPoint = cp
}

// Connected reports whether this chain is connected to a bone in another
// chain of a structure.
func (c *Chain) Connected() bool {
	return c.conn != nil
}

// ConnectedChainIndex returns the index of the host chain this chain is
// connected to, or -1 if the chain is not connected.
func (c *Chain) ConnectedChainIndex() int {
	if c.conn == nil {
		return -1
	}
	return c.conn.chain
}

// ConnectedBoneIndex returns the index of the host bone this chain is
// connected to, or -1 if the chain is not connected.
func (c *Chain) ConnectedBoneIndex() int {
	if c.conn == nil {
		return -1
	}
	return c.conn.bone
}

// SolveDistanceThreshold returns the effector-to-target distance at or below
// which the chain is considered solved.
func (c *Chain) SolveDistanceThreshold() float64 {
	return c.solveDistanceThreshold
}

// SetSolveDistanceThreshold sets the effector-to-target distance at or below
// which the chain is considered solved. It must be non-negative.
func (c *Chain) SetSolveDistanceThreshold(threshold float64) error {
	if threshold < 0 {
		return errors.Errorf("solve distance threshold must be non-negative, got %f", threshold)
	}
	c.solveDistanceThreshold = threshold
	return nil
}

// MaxIterationAttempts returns the maximum number of forward/backward passes
// attempted per solve call.
func (c *Chain) MaxIterationAttempts() int {
	return c.maxIterationAttempts
}

// SetMaxIterationAttempts sets the maximum number of forward/backward passes
// attempted per solve call. It must be at least 1.
func (c *Chain) SetMaxIterationAttempts(attempts int) error {
	if attempts < 1 {
		return errors.Errorf("max iteration attempts must be at least 1, got %d", attempts)
	}
	c.maxIterationAttempts = attempts
	return nil
}

// MinIterationChange returns the minimum change in solve distance between
// passes below which the solve is considered stalled.
func (c *Chain) MinIterationChange() float64 {
	return c.minIterationChange
}

// SetMinIterationChange sets the minimum change in solve distance between
// passes below which the solve is considered stalled. It must be
// non-negative.
func (c *Chain) SetMinIterationChange(change float64) error {
	if change < 0 {
		return errors.Errorf("min iteration change must be non-negative, got %f", change)
	}
	c.minIterationChange = change
	return nil
}

// EmbeddedTargetMode reports whether the chain solves against its own stored
// target rather than a shared one.
func (c *Chain) EmbeddedTargetMode() bool {
	return c.useEmbeddedTarget
}

// SetEmbeddedTargetMode sets whether the chain solves against its own stored
// target rather than a shared one.
func (c *Chain) SetEmbeddedTargetMode(enabled bool) {
	c.useEmbeddedTarget = enabled
}

// EmbeddedTarget returns the chain's stored target location.
func (c *Chain) EmbeddedTarget() mgl64.Vec2 {
	return c.embeddedTarget
}

// UpdateEmbeddedTarget sets the chain's stored target location. Embedded
// target mode must be enabled first.
func (c *Chain) UpdateEmbeddedTarget(target mgl64.Vec2) error {
	if !c.useEmbeddedTarget {
		return ErrNoEmbeddedTarget
	}
	c.embeddedTarget = target
	return nil
}

// LastTargetLocation returns the target the chain was most recently solved
// for, and whether any solve has happened yet.
func (c *Chain) LastTargetLocation() (mgl64.Vec2, bool) {
	return c.lastTargetLocation, c.solved
}

// CurrentSolveDistance returns the effector-to-target distance of the most
// recent solve. Before the first solve it is +Inf.
func (c *Chain) CurrentSolveDistance() float64 {
	return c.currentSolveDistance
}

// Name returns the chain's optional name.
func (c *Chain) Name() string {
	return c.name
}

// SetName sets the chain's optional name.
func (c *Chain) SetName(name string) {
	c.name = name
}

// Clone returns a deep copy of the chain. The copy shares no state with the
// original: every bone is copied by value.
func (c *Chain) Clone() *Chain {
	clone := *c
	clone.bones = c.cloneBones()
	if c.conn != nil {
		connCopy := *c.conn
		clone.conn = &connCopy
	}
	return &clone
}

// String returns a concise human readable description of the chain.
func (c *Chain) String() string {
	fixed := "fixed"
	if !c.fixedBase {
		fixed = "free"
	}
	return fmt.Sprintf("chain %q: %d bones, length %.3f, %s base at (%.3f, %.3f)",
		c.name, len(c.bones), c.chainLength, fixed, c.baseLocation.X(), c.baseLocation.Y())
}

// SolveForEmbeddedTarget solves the chain for its stored embedded target.
// Embedded target mode must be enabled first.
func (c *Chain) SolveForEmbeddedTarget() (float64, error) {
	if !c.useEmbeddedTarget {
		return 0, ErrNoEmbeddedTarget
	}
	return c.SolveForTarget(c.embeddedTarget)
}

// SolveForTarget iteratively solves the chain for the given target location,
// mutating bone positions in place, and returns the distance between the end
// effector and the target for the best solution found.
//
// The call may return early if the target and base are unchanged since the
// previous solve (the cached distance is returned without recomputation), if
// a pass brings the effector within the solve distance threshold, or if the
// distance stops improving by at least the minimum iteration change. The
// chain is never left in a configuration worse than the one it started in
// for the given target.
func (c *Chain) SolveForTarget(target mgl64.Vec2) (float64, error) {
	if len(c.bones) == 0 {
		return 0, ErrEmptyChain
	}

	// Same target and base as the previous solve? The cached distance is
	// still valid.
	if c.solved &&
		vecmath.AlmostEqual(c.lastTargetLocation, target, positionEpsilon) &&
		vecmath.AlmostEqual(c.lastBaseLocation, c.baseLocation, positionEpsilon) {
		return c.currentSolveDistance, nil
	}

	// Snapshot the chain as it stands so we can revert if we only make
	// things worse. If the base has moved since the last solve the starting
	// configuration is not comparable, so any new solution must be accepted.
	startingSolution := c.cloneBones()
	startingDistance := math.Inf(1)
	if c.solved && vecmath.AlmostEqual(c.lastBaseLocation, c.baseLocation, positionEpsilon) {
		startingDistance = c.bones[len(c.bones)-1].End().Sub(target).Len()
	}

	var bestSolution []*Bone
	bestDistance := math.Inf(1)
	lastPassDistance := math.Inf(1)

	for i := 0; i < c.maxIterationAttempts; i++ {
		distance := c.solvePass(target)

		if distance < bestDistance {
			bestDistance = distance
			bestSolution = c.cloneBones()
			if distance <= c.solveDistanceThreshold {
				break
			}
		} else if math.Abs(distance-lastPassDistance) < c.minIterationChange {
			// No improvement and barely any movement: the solve has stalled.
			break
		}
		lastPassDistance = distance
	}

	if bestDistance < startingDistance {
		c.currentSolveDistance = bestDistance
		c.restoreBones(bestSolution)
	} else {
		c.currentSolveDistance = startingDistance
		c.restoreBones(startingSolution)
	}

	c.lastBaseLocation = c.baseLocation
	c.lastTargetLocation = target
	c.solved = true

	return c.currentSolveDistance, nil
}

// solvePass runs a single forward and backward FABRIK pass toward the target
// and returns the resulting effector-to-target distance.
func (c *Chain) solvePass(target mgl64.Vec2) float64 {
	numBones := len(c.bones)

	// Forward pass: from the end effector down to the base. Each bone's
	// reverse (end-to-start) direction is constrained, then its start is
	// repositioned and propagated inward as the previous bone's end.
	for i := numBones - 1; i >= 0; i-- {
		bone := c.bones[i]
		length := bone.Length()

		var constrained mgl64.Vec2
		if i != numBones-1 {
			// Interior bone: constrain against the reverse direction of the
			// next-outer bone (local) or this bone's own global constraint,
			// using the outer bone's joint limits. The forward pass always
			// constrains against the joint one step toward the effector.
			outerJoint := c.bones[i+1].Joint()
			reverse := bone.Direction().Mul(-1)

			var baseline mgl64.Vec2
			if bone.Joint().CoordinateSystem() == LocalCoordinates {
				baseline = c.bones[i+1].Direction().Mul(-1)
			} else {
				baseline = bone.GlobalConstraintUV().Mul(-1)
			}
			constrained = vecmath.Constrain(reverse, baseline,
				outerJoint.ClockwiseConstraintDeg(), outerJoint.AnticlockwiseConstraintDeg())
		} else {
			// End effector bone: snap its end to the target first.
			bone.SetEnd(target)
			reverse := bone.Direction().Mul(-1)

			if i > 0 {
				joint := bone.Joint()
				var baseline mgl64.Vec2
				if joint.CoordinateSystem() == LocalCoordinates {
					baseline = c.bones[i-1].Direction().Mul(-1)
				} else {
					baseline = bone.GlobalConstraintUV().Mul(-1)
				}
				constrained = vecmath.Constrain(reverse, baseline,
					joint.ClockwiseConstraintDeg(), joint.AnticlockwiseConstraintDeg())
			} else if bone.Joint().CoordinateSystem() == LocalCoordinates {
				// A single-bone chain constrained locally has nothing to
				// constrain against.
				constrained = reverse
			} else {
				joint := bone.Joint()
				baseline := bone.GlobalConstraintUV().Mul(-1)
				constrained = vecmath.Constrain(reverse, baseline,
					joint.ClockwiseConstraintDeg(), joint.AnticlockwiseConstraintDeg())
			}
		}

		bone.SetStart(bone.End().Add(constrained.Mul(length)))
		if i > 0 {
			c.bones[i-1].SetEnd(bone.Start())
		}
	}

	// Backward pass: from the base back up to the end effector. Each bone's
	// forward direction is constrained against the previous bone (or the
	// basebone constraint), using this bone's own joint limits, then its end
	// is repositioned and propagated outward as the next bone's start.
	for i := 0; i < numBones; i++ {
		bone := c.bones[i]
		length := bone.Length()

		if i != 0 {
			joint := bone.Joint()
			var baseline mgl64.Vec2
			if joint.CoordinateSystem() == LocalCoordinates {
				baseline = c.bones[i-1].Direction()
			} else {
				baseline = bone.GlobalConstraintUV()
			}
			constrained := vecmath.Constrain(bone.Direction(), baseline,
				joint.ClockwiseConstraintDeg(), joint.AnticlockwiseConstraintDeg())

			bone.SetEnd(bone.Start().Add(constrained.Mul(length)))
			if i < numBones-1 {
				c.bones[i+1].SetStart(bone.End())
			}
			continue
		}

		// Base bone: re-anchor the start, either snapping back to the fixed
		// base location or projecting backward from the end along the
		// current direction.
		if c.fixedBase {
			bone.SetStart(c.baseLocation)
		} else {
			bone.SetStart(bone.End().Sub(bone.Direction().Mul(length)))
		}

		if c.baseboneConstraintType == BaseboneNone {
			bone.SetEnd(bone.Start().Add(bone.Direction().Mul(length)))
		} else {
			// The basebone constraint direction is either fixed, or
			// dynamically refreshed by the owning Structure when this chain
			// is connected to another chain.
			joint := bone.Joint()
			baseline := c.baseboneConstraintUV
			if c.baseboneConstraintType == BaseboneLocalAbsolute {
				baseline = c.baseboneRelativeConstraintUV
			}
			constrained := vecmath.Constrain(bone.Direction(), baseline,
				joint.ClockwiseConstraintDeg(), joint.AnticlockwiseConstraintDeg())
			bone.SetEnd(bone.Start().Add(constrained.Mul(length)))
		}
		if numBones > 1 {
			c.bones[1].SetStart(bone.End())
		}
	}

	return c.bones[numBones-1].End().Sub(target).Len()
}

// cloneBones returns deep value-copies of the chain's bones. Snapshots taken
// during the solve loop must not alias the live chain.
func (c *Chain) cloneBones() []*Bone {
	bones := make([]*Bone, len(c.bones))
	for i, b := range c.bones {
		bones[i] = b.Clone()
	}
	return bones
}

// restoreBones copies the given snapshot back into the chain's bones in
// place, so that bone pointers previously handed out remain valid.
func (c *Chain) restoreBones(snapshot []*Bone) {
	for i, b := range snapshot {
		*c.bones[i] = *b
	}
}

// setBaseLocation is used by Structure to track a connected chain's base to
// its host bone, and by connectChain when registering a chain.
func (c *Chain) setBaseLocation(location mgl64.Vec2) {
	c.baseLocation = location
}

// setBaseboneRelativeConstraintUV is written by Structure during
// connected-chain solves in local-absolute mode.
func (c *Chain) setBaseboneRelativeConstraintUV(direction mgl64.Vec2) {
	c.baseboneRelativeConstraintUV = direction
}

// setConnection records the host chain and bone this chain is attached to.
func (c *Chain) setConnection(chainIdx, boneIdx int) {
	c.conn = &connection{chain: chainIdx, bone: boneIdx}
}

// updateChainLength recomputes the cached total length of the chain.
func (c *Chain) updateChainLength() {
	c.chainLength = 0
	for _, b := range c.bones {
		c.chainLength += b.Length()
	}
}
