package fabrik

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"go.viam.com/test"

	"github.com/gokinetics/fabrik2d/vecmath"
)

func hostChain(t *testing.T) *Chain {
	t.Helper()
	chain := NewChain()
	base, err := NewBone(mgl64.Vec2{0, 0}, mgl64.Vec2{5, 0})
	test.That(t, err, test.ShouldBeNil)
	chain.AddBone(base)
	test.That(t, chain.AddConsecutiveBone(mgl64.Vec2{1, 0}, 5), test.ShouldBeNil)
	return chain
}

// originChain builds a chain authored centered on the origin, as expected by
// ConnectChain.
func originChain(t *testing.T) *Chain {
	t.Helper()
	chain := NewChain()
	bone, err := NewBoneFromDirection(mgl64.Vec2{0, 0}, mgl64.Vec2{0, 1}, 3)
	test.That(t, err, test.ShouldBeNil)
	chain.AddBone(bone)
	return chain
}

func TestConnectChainValidation(t *testing.T) {
	s := NewStructure()
	s.AddChain(hostChain(t))

	err := s.ConnectChain(originChain(t), 3, 0)
	test.That(t, err, test.ShouldNotBeNil)
	err = s.ConnectChain(originChain(t), -1, 0)
	test.That(t, err, test.ShouldNotBeNil)
	err = s.ConnectChain(originChain(t), 0, 7)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, s.NumChains(), test.ShouldEqual, 1)
}

func TestConnectChainTranslatesCopy(t *testing.T) {
	s := NewStructure()
	s.AddChain(hostChain(t))

	original := originChain(t)
	test.That(t, s.ConnectChainAt(original, 0, 0, ConnectAtEnd), test.ShouldBeNil)
	test.That(t, s.NumChains(), test.ShouldEqual, 2)

	connected, err := s.Chain(1)
	test.That(t, err, test.ShouldBeNil)

	// The copy is translated to the host bone's end and marked connected.
	bone, err := connected.Bone(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vecmath.AlmostEqual(bone.Start(), mgl64.Vec2{5, 0}, 1e-9), test.ShouldBeTrue)
	test.That(t, vecmath.AlmostEqual(bone.End(), mgl64.Vec2{5, 3}, 1e-9), test.ShouldBeTrue)
	test.That(t, connected.Connected(), test.ShouldBeTrue)
	test.That(t, connected.ConnectedChainIndex(), test.ShouldEqual, 0)
	test.That(t, connected.ConnectedBoneIndex(), test.ShouldEqual, 0)
	test.That(t, connected.FixedBase(), test.ShouldBeTrue)

	// The caller's chain is untouched.
	origBone, err := original.Bone(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, origBone.Start(), test.ShouldResemble, mgl64.Vec2{0, 0})
	test.That(t, original.Connected(), test.ShouldBeFalse)
}

func TestConnectChainAtStart(t *testing.T) {
	s := NewStructure()
	s.AddChain(hostChain(t))

	test.That(t, s.ConnectChainAt(originChain(t), 0, 1, ConnectAtStart), test.ShouldBeNil)
	connected, err := s.Chain(1)
	test.That(t, err, test.ShouldBeNil)
	bone, err := connected.Bone(0)
	test.That(t, err, test.ShouldBeNil)
	// Host bone 1 starts at (5, 0).
	test.That(t, vecmath.AlmostEqual(bone.Start(), mgl64.Vec2{5, 0}, 1e-9), test.ShouldBeTrue)
}

func TestStructureSolvePropagatesHostMotion(t *testing.T) {
	s := NewStructure()
	host := hostChain(t)
	s.AddChain(host)

	dependent := originChain(t)
	dependent.SetBaseboneConstraintType(BaseboneLocalRelative)
	test.That(t, s.ConnectChainAt(dependent, 0, 0, ConnectAtEnd), test.ShouldBeNil)

	// Solving moves the host; the dependent chain's base must land exactly on
	// the host bone's post-solve end, proving propagation happened before the
	// dependent was solved.
	test.That(t, s.SolveForTarget(mgl64.Vec2{3, 7}), test.ShouldBeNil)

	hostSolved, err := s.Chain(0)
	test.That(t, err, test.ShouldBeNil)
	hostBone, err := hostSolved.Bone(0)
	test.That(t, err, test.ShouldBeNil)

	connected, err := s.Chain(1)
	test.That(t, err, test.ShouldBeNil)
	connectedBase, err := connected.BaseLocation()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vecmath.AlmostEqual(connectedBase, hostBone.End(), 1e-9), test.ShouldBeTrue)

	// LOCAL_RELATIVE: the dependent's constraint direction tracks the host
	// bone's direction.
	test.That(t, vecmath.AlmostEqual(connected.BaseboneConstraintUV(), hostBone.Direction(), 1e-9), test.ShouldBeTrue)
}

func TestStructureSolveLocalAbsolute(t *testing.T) {
	s := NewStructure()
	host := hostChain(t)
	s.AddChain(host)

	dependent := originChain(t)
	dependent.SetBaseboneConstraintType(BaseboneLocalAbsolute)
	test.That(t, dependent.SetBaseboneConstraintUV(mgl64.Vec2{0, 1}), test.ShouldBeNil)
	test.That(t, s.ConnectChainAt(dependent, 0, 0, ConnectAtEnd), test.ShouldBeNil)

	test.That(t, s.SolveForTarget(mgl64.Vec2{3, 7}), test.ShouldBeNil)

	hostSolved, err := s.Chain(0)
	test.That(t, err, test.ShouldBeNil)
	hostBone, err := hostSolved.Bone(0)
	test.That(t, err, test.ShouldBeNil)

	// The relative constraint is the chain's own constraint direction rotated
	// by the angle from world up to the host bone's direction.
	connected, err := s.Chain(1)
	test.That(t, err, test.ShouldBeNil)
	angle := vecmath.SignedAngleDeg(mgl64.Vec2{0, 1}, hostBone.Direction())
	want := vecmath.RotateDeg(mgl64.Vec2{0, 1}, angle)
	test.That(t, vecmath.AlmostEqual(connected.BaseboneRelativeConstraintUV(), want, 1e-9), test.ShouldBeTrue)
}

func TestStructureSolveEmbeddedTargets(t *testing.T) {
	s := NewStructure()
	shared := hostChain(t)
	s.AddChain(shared)

	embedded := hostChain(t)
	embedded.SetEmbeddedTargetMode(true)
	test.That(t, embedded.UpdateEmbeddedTarget(mgl64.Vec2{0, 9}), test.ShouldBeNil)
	s.AddChain(embedded)

	test.That(t, s.SolveForTarget(mgl64.Vec2{9, 0}), test.ShouldBeNil)

	sharedEffector, err := shared.EffectorLocation()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sharedEffector.Sub(mgl64.Vec2{9, 0}).Len(), test.ShouldBeLessThanOrEqualTo, 1.0)

	embeddedEffector, err := embedded.EffectorLocation()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, embeddedEffector.Sub(mgl64.Vec2{0, 9}).Len(), test.ShouldBeLessThanOrEqualTo, 1.0)
}

func TestStructureSetFixedBase(t *testing.T) {
	s := NewStructure()
	test.That(t, s.SetFixedBase(false), test.ShouldNotBeNil)

	s.AddChain(hostChain(t))
	test.That(t, s.SetFixedBase(false), test.ShouldBeNil)
	test.That(t, s.FixedBase(), test.ShouldBeFalse)

	chain, err := s.Chain(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, chain.FixedBase(), test.ShouldBeFalse)
}

func TestStructureChainIndexValidation(t *testing.T) {
	s := NewStructure()
	_, err := s.Chain(0)
	test.That(t, err, test.ShouldNotBeNil)

	s.AddChain(hostChain(t))
	_, err = s.Chain(1)
	test.That(t, err, test.ShouldNotBeNil)
	got, err := s.Chain(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldNotBeNil)
}
