// Package zkproof provides zero-knowledge proof functionality for privacy-preserving
// emergency authorization.
package zkproof

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

const (
	// MerkleDepth is the height of the identity registry tree. A depth of 20
	// supports up to 2^20 registered identity commitments.
	MerkleDepth = 20
)

// IdentityCircuit proves that the prover holds the secret behind an identity
// commitment registered in the guardian Merkle tree, without revealing which
// leaf it is. It additionally derives a nullifier hash that lets verifiers
// reject replays of the same identity, and binds the proof to a specific
// emergency via the public emergency hash.
//
// Membership is reported through the IsValid output rather than asserted:
// a proof over a wrong root or wrong path is still a valid proof, but one
// that publicly states IsValid = 0. This keeps root mismatches distinguishable
// from malformed witnesses.
type IdentityCircuit struct {
	// Secret is the identity secret known only to the prover.
	Secret frontend.Variable `gnark:",secret"`

	// Nullifier is the per-identity replay protection scalar.
	Nullifier frontend.Variable `gnark:",secret"`

	// Siblings is the Merkle authentication path from the commitment leaf to
	// the root, ordered leaf-first.
	Siblings [MerkleDepth]frontend.Variable `gnark:",secret"`

	// MerkleIndex is the leaf position of the commitment, in [0, 2^MerkleDepth).
	MerkleIndex frontend.Variable `gnark:",secret"`

	// MerkleRoot is the registry root the membership claim is checked against.
	MerkleRoot frontend.Variable `gnark:",public"`

	// EmergencyHash binds this identity proof to one emergency declaration.
	EmergencyHash frontend.Variable `gnark:",public"`

	// NullifierHash is MiMC(Secret, Nullifier), published for replay tracking.
	NullifierHash frontend.Variable `gnark:",public"`

	// Commitment is MiMC(Secret, EmergencyHash, Nullifier), the leaf value.
	Commitment frontend.Variable `gnark:",public"`

	// IsValid is 1 if the commitment folds to MerkleRoot and 0 otherwise.
	IsValid frontend.Variable `gnark:",public"`
}

// Define declares the identity membership constraints.
func (c *IdentityCircuit) Define(api frontend.API) error {
	assertNonZero(api, c.Secret)
	assertNonZero(api, c.Nullifier)

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	h.Write(c.Secret, c.Nullifier)
	api.AssertIsEqual(h.Sum(), c.NullifierHash)

	h.Reset()
	h.Write(c.Secret, c.EmergencyHash, c.Nullifier)
	commitment := h.Sum()
	api.AssertIsEqual(commitment, c.Commitment)

	// Fold the commitment up the tree. The leaf enters the fold as-is, and
	// each index bit selects whether the running node is the left or right
	// input at that level.
	indexBits := api.ToBinary(c.MerkleIndex, MerkleDepth)
	current := commitment
	for i := 0; i < MerkleDepth; i++ {
		left := api.Select(indexBits[i], c.Siblings[i], current)
		right := api.Select(indexBits[i], current, c.Siblings[i])
		h.Reset()
		h.Write(left, right)
		current = h.Sum()
	}

	isValid := api.IsZero(api.Sub(current, c.MerkleRoot))
	api.AssertIsEqual(isValid, c.IsValid)

	return nil
}

// IdentityWitness holds the private inputs for an identity membership proof.
type IdentityWitness struct {
	// Secret is the identity secret, non-zero.
	Secret *big.Int

	// Nullifier is the replay protection scalar, non-zero.
	Nullifier *big.Int

	// Siblings is the Merkle path for the commitment leaf, exactly
	// MerkleDepth entries ordered leaf-first.
	Siblings []*big.Int

	// MerkleIndex is the leaf position, below 2^MerkleDepth.
	MerkleIndex uint64
}

// IdentityPublic holds the public inputs for an identity membership proof.
type IdentityPublic struct {
	// MerkleRoot is the registry root to check membership against.
	MerkleRoot *big.Int

	// EmergencyHash is the emergency this identity proof responds to.
	EmergencyHash *big.Int
}

// IdentityOutputs holds the public outputs derived from an identity witness.
type IdentityOutputs struct {
	// NullifierHash is MiMC(secret, nullifier).
	NullifierHash *big.Int

	// Commitment is MiMC(secret, emergencyHash, nullifier).
	Commitment *big.Int

	// Valid reports whether the commitment folds to the public root.
	Valid bool
}

// validate checks the witness against the circuit's hard constraints. These are
// the conditions that would make proof generation fail, so they are rejected
// up front with a typed error.
func (w *IdentityWitness) validate() error {
	if w.Secret == nil || w.Nullifier == nil {
		return fmt.Errorf("%w: secret and nullifier are required", ErrWitnessViolation)
	}
	if fieldIsZero(w.Secret) {
		return fmt.Errorf("%w: secret must be non-zero", ErrWitnessViolation)
	}
	if fieldIsZero(w.Nullifier) {
		return fmt.Errorf("%w: nullifier must be non-zero", ErrWitnessViolation)
	}
	if len(w.Siblings) != MerkleDepth {
		return fmt.Errorf("%w: merkle path has %d siblings, expected %d",
			ErrWitnessViolation, len(w.Siblings), MerkleDepth)
	}
	for i, s := range w.Siblings {
		if s == nil {
			return fmt.Errorf("%w: merkle sibling %d is nil", ErrWitnessViolation, i)
		}
	}
	if w.MerkleIndex >= 1<<MerkleDepth {
		return fmt.Errorf("%w: merkle index %d exceeds tree capacity %d",
			ErrWitnessViolation, w.MerkleIndex, uint64(1)<<MerkleDepth)
	}
	return nil
}

// validate checks that all public inputs are present.
func (p *IdentityPublic) validate() error {
	if p.MerkleRoot == nil || p.EmergencyHash == nil {
		return fmt.Errorf("%w: merkle root and emergency hash are required", ErrWitnessViolation)
	}
	return nil
}

// ComputeIdentityOutputs derives the public outputs for an identity witness
// natively, mirroring the circuit. The returned Valid flag reflects whether
// the commitment actually folds to the supplied root.
func ComputeIdentityOutputs(w IdentityWitness, pub IdentityPublic) (*IdentityOutputs, error) {
	nullifierHash, err := HashFields(w.Secret, w.Nullifier)
	if err != nil {
		return nil, fmt.Errorf("compute nullifier hash: %w", err)
	}

	commitment, err := HashFields(w.Secret, pub.EmergencyHash, w.Nullifier)
	if err != nil {
		return nil, fmt.Errorf("compute commitment: %w", err)
	}

	root, err := ComputeMerkleRoot(commitment, w.Siblings, w.MerkleIndex)
	if err != nil {
		return nil, fmt.Errorf("fold merkle path: %w", err)
	}

	return &IdentityOutputs{
		NullifierHash: nullifierHash,
		Commitment:    commitment,
		Valid:         fieldEqual(root, pub.MerkleRoot),
	}, nil
}

// ComputeMerkleRoot folds a leaf up a Merkle path to the root, matching the
// in-circuit fold. The leaf enters the fold without being re-hashed, and the
// index bits select the left/right position at each level.
func ComputeMerkleRoot(leaf *big.Int, siblings []*big.Int, index uint64) (*big.Int, error) {
	current := leaf
	for i, sibling := range siblings {
		var err error
		if index&(1<<uint(i)) != 0 {
			current, err = HashFields(sibling, current)
		} else {
			current, err = HashFields(current, sibling)
		}
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// assignment builds the full witness assignment for proving.
func (w *IdentityWitness) assignment(pub IdentityPublic, out *IdentityOutputs) *IdentityCircuit {
	var circuit IdentityCircuit
	circuit.Secret = w.Secret
	circuit.Nullifier = w.Nullifier
	for i, s := range w.Siblings {
		circuit.Siblings[i] = s
	}
	circuit.MerkleIndex = w.MerkleIndex

	circuit.MerkleRoot = pub.MerkleRoot
	circuit.EmergencyHash = pub.EmergencyHash
	circuit.NullifierHash = out.NullifierHash
	circuit.Commitment = out.Commitment
	circuit.IsValid = boolToInt(out.Valid)

	return &circuit
}

// publicAssignment builds the public-only assignment for verification.
func (p *IdentityPublic) publicAssignment(out IdentityOutputs) *IdentityCircuit {
	var circuit IdentityCircuit
	circuit.MerkleRoot = p.MerkleRoot
	circuit.EmergencyHash = p.EmergencyHash
	circuit.NullifierHash = out.NullifierHash
	circuit.Commitment = out.Commitment
	circuit.IsValid = boolToInt(out.Valid)
	return &circuit
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
