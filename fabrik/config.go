package fabrik

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// StructureConfig represents all supported fields in a structure JSON file.
type StructureConfig struct {
	Chains []ChainConfig `json:"chains"`
}

// ChainConfig describes one chain of a structure.
type ChainConfig struct {
	Name string `json:"name,omitempty"`
	// Base is the [x, y] start location of the base bone. Chains that are
	// connected to a host should be authored centered on the origin and may
	// omit it.
	Base               []float64                 `json:"base,omitempty"`
	FixedBase          *bool                     `json:"fixed_base,omitempty"`
	Bones              []BoneConfig              `json:"bones"`
	BaseboneConstraint *BaseboneConstraintConfig `json:"basebone_constraint,omitempty"`
	Solve              *SolveConfig              `json:"solve,omitempty"`
	EmbeddedTarget     []float64                 `json:"embedded_target,omitempty"`
	Connect            *ConnectionConfig         `json:"connect,omitempty"`
}

// BoneConfig describes one bone of a chain by direction and length.
type BoneConfig struct {
	Name             string    `json:"name,omitempty"`
	Direction        []float64 `json:"direction"`
	Length           float64   `json:"length"`
	ClockwiseDeg     *float64  `json:"clockwise_deg,omitempty"`
	AnticlockwiseDeg *float64  `json:"anticlockwise_deg,omitempty"`
	// CoordinateSystem is "local" (default) or "global".
	CoordinateSystem string    `json:"coordinate_system,omitempty"`
	GlobalConstraint []float64 `json:"global_constraint,omitempty"`
}

// BaseboneConstraintConfig describes the constraint on a chain's base bone.
type BaseboneConstraintConfig struct {
	// Type is one of "none", "global_absolute", "local_relative" or
	// "local_absolute".
	Type      string    `json:"type"`
	Direction []float64 `json:"direction,omitempty"`
}

// SolveConfig overrides the chain's default solve parameters.
type SolveConfig struct {
	DistanceThreshold  *float64 `json:"distance_threshold,omitempty"`
	MaxIterations      *int     `json:"max_iterations,omitempty"`
	MinIterationChange *float64 `json:"min_iteration_change,omitempty"`
}

// ConnectionConfig attaches a chain to a bone of an earlier chain in the
// structure.
type ConnectionConfig struct {
	Chain int `json:"chain"`
	Bone  int `json:"bone"`
	// Point is "start" or "end" (default).
	Point string `json:"point,omitempty"`
}

// UnmarshalStructureJSON parses the given JSON data into a solvable Structure.
func UnmarshalStructureJSON(jsonData []byte) (*Structure, error) {
	if len(jsonData) == 0 {
		return nil, errors.New("no structure information")
	}
	var cfg StructureConfig
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal structure json")
	}
	return cfg.ParseConfig()
}

// ParseConfig converts the StructureConfig into a full Structure. Connected
// chains must reference chains that appear earlier in the list, matching the
// order in which the structure solves them.
func (cfg *StructureConfig) ParseConfig() (*Structure, error) {
	structure := NewStructure()
	for i, chainCfg := range cfg.Chains {
		chain, err := chainCfg.parseChain()
		if err != nil {
			return nil, errors.Wrapf(err, "chain %d", i)
		}
		if chainCfg.Connect == nil {
			structure.AddChain(chain)
			continue
		}
		point := ConnectAtEnd
		switch chainCfg.Connect.Point {
		case "", "end":
		case "start":
			point = ConnectAtStart
		default:
			return nil, errors.Errorf("chain %d: unknown connection point %q", i, chainCfg.Connect.Point)
		}
		if err := structure.ConnectChainAt(chain, chainCfg.Connect.Chain, chainCfg.Connect.Bone, point); err != nil {
			return nil, errors.Wrapf(err, "chain %d", i)
		}
	}
	return structure, nil
}

func (cfg *ChainConfig) parseChain() (*Chain, error) {
	if len(cfg.Bones) == 0 {
		return nil, ErrEmptyChain
	}

	base := mgl64.Vec2{}
	if cfg.Base != nil {
		var err error
		if base, err = parseVec2(cfg.Base); err != nil {
			return nil, errors.Wrap(err, "base")
		}
	}

	chain := NewChain()
	chain.SetName(cfg.Name)

	var errAll error
	for i, boneCfg := range cfg.Bones {
		var err error
		if i == 0 {
			err = cfg.addBaseBone(chain, base, boneCfg)
		} else {
			err = cfg.addConsecutiveBone(chain, boneCfg)
		}
		multierr.AppendInto(&errAll, errors.Wrapf(err, "bone %d", i))
	}
	if errAll != nil {
		return nil, errAll
	}

	if cfg.BaseboneConstraint != nil {
		if err := cfg.applyBaseboneConstraint(chain); err != nil {
			return nil, err
		}
	}
	if cfg.Solve != nil {
		if err := cfg.applySolveParams(chain); err != nil {
			return nil, err
		}
	}
	if cfg.EmbeddedTarget != nil {
		target, err := parseVec2(cfg.EmbeddedTarget)
		if err != nil {
			return nil, errors.Wrap(err, "embedded target")
		}
		chain.SetEmbeddedTargetMode(true)
		if err := chain.UpdateEmbeddedTarget(target); err != nil {
			return nil, err
		}
	}
	if cfg.FixedBase != nil && cfg.Connect == nil {
		if err := chain.SetFixedBase(*cfg.FixedBase); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

func (cfg *ChainConfig) addBaseBone(chain *Chain, base mgl64.Vec2, boneCfg BoneConfig) error {
	dir, err := parseVec2(boneCfg.Direction)
	if err != nil {
		return errors.Wrap(err, "direction")
	}
	cw, acw := constraintAngles(boneCfg)
	bone, err := NewConstrainedBone(base, dir, boneCfg.Length, cw, acw)
	if err != nil {
		return err
	}
	if err := configureBone(bone, boneCfg); err != nil {
		return err
	}
	chain.AddBone(bone)
	return nil
}

func (cfg *ChainConfig) addConsecutiveBone(chain *Chain, boneCfg BoneConfig) error {
	dir, err := parseVec2(boneCfg.Direction)
	if err != nil {
		return errors.Wrap(err, "direction")
	}
	cw, acw := constraintAngles(boneCfg)
	if err := chain.AddConsecutiveConstrainedBone(dir, boneCfg.Length, cw, acw); err != nil {
		return err
	}
	bone := chain.bones[chain.NumBones()-1]
	return configureBone(bone, boneCfg)
}

func (cfg *ChainConfig) applyBaseboneConstraint(chain *Chain) error {
	bc := cfg.BaseboneConstraint
	switch bc.Type {
	case "none":
		chain.SetBaseboneConstraintType(BaseboneNone)
	case "global_absolute":
		chain.SetBaseboneConstraintType(BaseboneGlobalAbsolute)
	case "local_relative":
		chain.SetBaseboneConstraintType(BaseboneLocalRelative)
	case "local_absolute":
		chain.SetBaseboneConstraintType(BaseboneLocalAbsolute)
	default:
		return errors.Errorf("unknown basebone constraint type %q", bc.Type)
	}
	if bc.Direction != nil {
		dir, err := parseVec2(bc.Direction)
		if err != nil {
			return errors.Wrap(err, "basebone constraint direction")
		}
		return chain.SetBaseboneConstraintUV(dir)
	}
	return nil
}

func (cfg *ChainConfig) applySolveParams(chain *Chain) error {
	sc := cfg.Solve
	if sc.DistanceThreshold != nil {
		if err := chain.SetSolveDistanceThreshold(*sc.DistanceThreshold); err != nil {
			return err
		}
	}
	if sc.MaxIterations != nil {
		if err := chain.SetMaxIterationAttempts(*sc.MaxIterations); err != nil {
			return err
		}
	}
	if sc.MinIterationChange != nil {
		if err := chain.SetMinIterationChange(*sc.MinIterationChange); err != nil {
			return err
		}
	}
	return nil
}

func configureBone(bone *Bone, boneCfg BoneConfig) error {
	bone.SetName(boneCfg.Name)
	joint := bone.Joint()
	switch boneCfg.CoordinateSystem {
	case "", "local":
	case "global":
		joint.SetCoordinateSystem(GlobalCoordinates)
		bone.SetJoint(joint)
	default:
		return errors.Errorf("unknown coordinate system %q", boneCfg.CoordinateSystem)
	}
	if boneCfg.GlobalConstraint != nil {
		dir, err := parseVec2(boneCfg.GlobalConstraint)
		if err != nil {
			return errors.Wrap(err, "global constraint")
		}
		return bone.SetGlobalConstraintUV(dir)
	}
	return nil
}

func constraintAngles(boneCfg BoneConfig) (float64, float64) {
	cw, acw := MaxConstraintDeg, MaxConstraintDeg
	if boneCfg.ClockwiseDeg != nil {
		cw = *boneCfg.ClockwiseDeg
	}
	if boneCfg.AnticlockwiseDeg != nil {
		acw = *boneCfg.AnticlockwiseDeg
	}
	return cw, acw
}

func parseVec2(values []float64) (mgl64.Vec2, error) {
	if len(values) != 2 {
		return mgl64.Vec2{}, errors.Errorf("expected 2 components, got %d", len(values))
	}
	return mgl64.Vec2{values[0], values[1]}, nil
}
