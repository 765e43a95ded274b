// Package zkproof provides zero-knowledge proof functionality for privacy-preserving
// emergency authorization.
package zkproof

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/frontend"
)

var (
	// ErrWitnessViolation is returned when witness or public inputs break a
	// circuit constraint. The check runs natively before proving, so callers
	// get a typed error instead of an expensive failed proof attempt.
	ErrWitnessViolation = errors.New("zkproof: witness violates circuit constraints")
)

// IdentityProver generates identity membership proofs.
type IdentityProver struct {
	compiled *CompiledCircuit
}

// NewIdentityProver creates a prover from a compiled identity circuit.
func NewIdentityProver(compiled *CompiledCircuit) *IdentityProver {
	return &IdentityProver{compiled: compiled}
}

// IdentityProof contains a generated identity proof and the public data
// needed to verify it.
type IdentityProof struct {
	// Proof is the serialized PlonK proof.
	Proof []byte

	// Public holds the public inputs the proof was generated against.
	Public IdentityPublic

	// Outputs holds the derived public outputs, including the validity flag.
	Outputs IdentityOutputs
}

// Prove generates a membership proof for the given witness. A commitment that
// does not fold to the public root is not an error: the resulting proof simply
// carries Valid = false, so verifiers can distinguish a stale root from a
// malformed witness.
func (p *IdentityProver) Prove(w IdentityWitness, pub IdentityPublic) (*IdentityProof, error) {
	if err := pub.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	outputs, err := ComputeIdentityOutputs(w, pub)
	if err != nil {
		return nil, err
	}

	proofBytes, err := prove(p.compiled, w.assignment(pub, outputs))
	if err != nil {
		return nil, err
	}

	return &IdentityProof{
		Proof:   proofBytes,
		Public:  pub,
		Outputs: *outputs,
	}, nil
}

// EmergencyProver generates emergency declaration proofs.
type EmergencyProver struct {
	compiled *CompiledCircuit
}

// NewEmergencyProver creates a prover from a compiled emergency circuit.
func NewEmergencyProver(compiled *CompiledCircuit) *EmergencyProver {
	return &EmergencyProver{compiled: compiled}
}

// EmergencyProof contains a generated emergency declaration proof and the
// public data needed to verify it.
type EmergencyProof struct {
	// Proof is the serialized PlonK proof.
	Proof []byte

	// Public holds the public inputs the proof was generated against.
	Public EmergencyPublic

	// Outputs holds the derived commitments and the validity tag.
	Outputs EmergencyOutputs
}

// Prove generates a declaration proof for the given witness. Witnesses outside
// the declared ranges or the public timestamp window fail with
// ErrWitnessViolation before any proving work is done.
func (p *EmergencyProver) Prove(w EmergencyWitness, pub EmergencyPublic) (*EmergencyProof, error) {
	if err := pub.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(pub); err != nil {
		return nil, err
	}

	outputs, err := ComputeEmergencyOutputs(w, pub)
	if err != nil {
		return nil, err
	}

	proofBytes, err := prove(p.compiled, w.assignment(pub, outputs))
	if err != nil {
		return nil, err
	}

	return &EmergencyProof{
		Proof:   proofBytes,
		Public:  pub,
		Outputs: *outputs,
	}, nil
}

// AuthorizationProver generates guardian authorization proofs.
type AuthorizationProver struct {
	compiled *CompiledCircuit
}

// NewAuthorizationProver creates a prover from a compiled authorization circuit.
func NewAuthorizationProver(compiled *CompiledCircuit) *AuthorizationProver {
	return &AuthorizationProver{compiled: compiled}
}

// AuthorizationProof contains a generated authorization proof and the public
// data needed to verify it.
type AuthorizationProof struct {
	// Proof is the serialized PlonK proof.
	Proof []byte

	// Public holds the public inputs the proof was generated against.
	Public AuthorizationPublic

	// Outputs holds the derived commitments and the authorization tag.
	Outputs AuthorizationOutputs
}

// Prove generates an authorization proof for the given witness. Policy gates
// are checked natively first: an emergency level below the public minimum, or
// a high-value amount at an insufficient level, fails with ErrWitnessViolation.
func (p *AuthorizationProver) Prove(w AuthorizationWitness, pub AuthorizationPublic) (*AuthorizationProof, error) {
	if err := w.validate(pub); err != nil {
		return nil, err
	}

	outputs, err := ComputeAuthorizationOutputs(w, pub)
	if err != nil {
		return nil, err
	}

	proofBytes, err := prove(p.compiled, w.assignment(pub, outputs))
	if err != nil {
		return nil, err
	}

	return &AuthorizationProof{
		Proof:   proofBytes,
		Public:  pub,
		Outputs: *outputs,
	}, nil
}

// prove runs the shared PlonK proving path: build the full witness from the
// assignment, prove against the compiled constraint system, and serialize.
func prove(compiled *CompiledCircuit, assignment frontend.Circuit) ([]byte, error) {
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}

	proof, err := plonk.Prove(compiled.ConstraintSystem, compiled.ProvingKey, witness)
	if err != nil {
		return nil, fmt.Errorf("generate proof: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}

	return buf.Bytes(), nil
}
