package fabrik

import "github.com/pkg/errors"

// ErrEmptyChain is returned when an operation requires a chain to contain at
// least one bone.
var ErrEmptyChain = errors.New("chain contains no bones")

// ErrNoEmbeddedTarget is returned when an embedded-target operation is
// attempted on a chain that does not have embedded target mode enabled.
var ErrNoEmbeddedTarget = errors.New("embedded target mode is not enabled on this chain")

// newBoneOutOfRangeError returns an error indicating a bone index does not
// exist in a chain. Bones are zero indexed.
func newBoneOutOfRangeError(boneIdx, numBones int) error {
	return errors.Errorf("bone %d does not exist, chain has %d bones", boneIdx, numBones)
}

// newChainOutOfRangeError returns an error indicating a chain index does not
// exist in a structure. Chains are zero indexed.
func newChainOutOfRangeError(chainIdx, numChains int) error {
	return errors.Errorf("chain %d does not exist, structure has %d chains", chainIdx, numChains)
}
