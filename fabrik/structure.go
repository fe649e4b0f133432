package fabrik

import (
	"fmt"
	"strings"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/gokinetics/fabrik2d/vecmath"
)

// up is the world-space reference direction against which host-bone rotations
// are measured when propagating local-absolute basebone constraints.
var up = mgl64.Vec2{0, 1}

// Structure is an ordered collection of chains that are solved together.
// Chains in a structure may be connected to bones of other chains; a
// connected chain's base tracks its host bone, and its basebone constraint
// may be derived from the host bone's direction.
//
// Like Chain, a Structure is not safe for concurrent use.
type Structure struct {
	chains    []*Chain
	fixedBase bool
	logger    golog.Logger
}

// NewStructure creates an empty structure.
func NewStructure() *Structure {
	return &Structure{fixedBase: true}
}

// NewStructureWithLogger creates an empty structure that logs solve progress
// at debug level.
func NewStructureWithLogger(logger golog.Logger) *Structure {
	return &Structure{fixedBase: true, logger: logger}
}

// AddChain appends a chain to the structure without connecting it to any
// existing chain. All unconnected chains share the structure's solve target
// unless they have embedded targets enabled.
func (s *Structure) AddChain(chain *Chain) {
	s.chains = append(s.chains, chain)
}

// ConnectChain connects a chain to the given bone of an existing chain in
// this structure, attaching at the chain's own connection point setting.
//
// The supplied chain is deep-copied, so the caller's original is untouched;
// the structure exclusively owns the copy. The input chain is expected to be
// authored centered on the origin: on connection every bone of the copy is
// translated by the world location of the host connection point. The copy is
// forced into fixed base mode, since a connected chain's base always tracks
// its host.
//
// A chain must be connected to a host registered before it: the structure
// solves chains in registration order and propagates host motion into
// dependents within the same solve call.
func (s *Structure) ConnectChain(chain *Chain, hostChainIdx, hostBoneIdx int) error {
	if hostChainIdx < 0 || hostChainIdx >= len(s.chains) {
		return newChainOutOfRangeError(hostChainIdx, len(s.chains))
	}
	host := s.chains[hostChainIdx]
	hostBone, err := host.Bone(hostBoneIdx)
	if err != nil {
		return err
	}

	relative := chain.Clone()
	relative.setConnection(hostChainIdx, hostBoneIdx)

	var connectionLocation mgl64.Vec2
	if relative.ConnectionPoint() == ConnectAtStart {
		connectionLocation = hostBone.Start()
	} else {
		connectionLocation = hostBone.End()
	}
	relative.setBaseLocation(connectionLocation)

	// A connected chain's base is never independently movable.
	relative.fixedBase = true

	for i := 0; i < relative.NumBones(); i++ {
		bone := relative.bones[i]
		bone.SetStart(bone.Start().Add(connectionLocation))
		bone.SetEnd(bone.End().Add(connectionLocation))
	}

	s.AddChain(relative)
	return nil
}

// ConnectChainAt connects a chain as ConnectChain does, overriding the
// chain's connection point with the given one.
func (s *Structure) ConnectChainAt(chain *Chain, hostChainIdx, hostBoneIdx int, point ConnectionPoint) error {
	chain.SetConnectionPoint(point)
	return s.ConnectChain(chain, hostChainIdx, hostBoneIdx)
}

// SolveForTarget solves every chain in the structure, in registration order,
// for the given target location. Chains with embedded targets enabled are
// solved for their own stored target instead.
//
// Before each connected chain is solved, its base location is moved to its
// host bone's connection point and its basebone constraint direction is
// refreshed from the host bone's current direction, so host-chain motion from
// earlier in this same call is reflected in its dependents.
func (s *Structure) SolveForTarget(target mgl64.Vec2) error {
	for i, chain := range s.chains {
		constraintType := chain.BaseboneConstraintType()

		if chain.Connected() && constraintType != BaseboneGlobalAbsolute {
			host := s.chains[chain.ConnectedChainIndex()]
			hostBone, err := host.Bone(chain.ConnectedBoneIndex())
			if err != nil {
				return errors.Wrapf(err, "chain %d", i)
			}

			if chain.ConnectionPoint() == ConnectAtStart {
				chain.setBaseLocation(hostBone.Start())
			} else {
				chain.setBaseLocation(hostBone.End())
			}

			hostBoneUV := hostBone.Direction()
			switch constraintType {
			case BaseboneLocalRelative:
				if err := chain.SetBaseboneConstraintUV(hostBoneUV); err != nil {
					return errors.Wrapf(err, "chain %d", i)
				}
			case BaseboneLocalAbsolute:
				// Rotate the chain's own constraint direction into the host
				// bone's coordinate space.
				angleDeg := vecmath.SignedAngleDeg(up, hostBoneUV)
				chain.setBaseboneRelativeConstraintUV(
					vecmath.RotateDeg(chain.BaseboneConstraintUV(), angleDeg))
			}
		}

		var dist float64
		var err error
		if chain.EmbeddedTargetMode() {
			dist, err = chain.SolveForEmbeddedTarget()
		} else {
			dist, err = chain.SolveForTarget(target)
		}
		if err != nil {
			return errors.Wrapf(err, "chain %d", i)
		}
		if s.logger != nil {
			s.logger.Debugf("chain %d solved, residual distance %f", i, dist)
		}
	}
	return nil
}

// SetFixedBase sets fixed base mode on the first chain in the structure, and
// records it for structure-wide queries.
func (s *Structure) SetFixedBase(fixed bool) error {
	if len(s.chains) == 0 {
		return errors.New("structure contains no chains")
	}
	if err := s.chains[0].SetFixedBase(fixed); err != nil {
		return err
	}
	s.fixedBase = fixed
	return nil
}

// FixedBase reports the fixed base mode of the first chain in the structure.
func (s *Structure) FixedBase() bool {
	return s.fixedBase
}

// Chain returns the chain at the given zero-based index.
func (s *Structure) Chain(chainIdx int) (*Chain, error) {
	if chainIdx < 0 || chainIdx >= len(s.chains) {
		return nil, newChainOutOfRangeError(chainIdx, len(s.chains))
	}
	return s.chains[chainIdx], nil
}

// NumChains returns the number of chains in the structure.
func (s *Structure) NumChains() int {
	return len(s.chains)
}

// String returns a concise human readable description of the structure.
func (s *Structure) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "structure: %d chains\n", len(s.chains))
	for _, chain := range s.chains {
		sb.WriteString(chain.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
