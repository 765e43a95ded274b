// Package zkproof provides zero-knowledge proof functionality for privacy-preserving
// emergency authorization.
package zkproof

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
)

var (
	// ErrVerificationRejected is returned when a proof does not verify against
	// the supplied public inputs and outputs.
	ErrVerificationRejected = errors.New("zkproof: proof rejected for the supplied public inputs")
)

// IdentityVerifier validates identity membership proofs.
type IdentityVerifier struct {
	compiled *CompiledCircuit
}

// NewIdentityVerifier creates a verifier from a compiled identity circuit.
func NewIdentityVerifier(compiled *CompiledCircuit) *IdentityVerifier {
	return &IdentityVerifier{compiled: compiled}
}

// Verify checks an identity proof against its public inputs and outputs.
// A verifying proof with Valid = false is still a success here: it proves the
// prover honestly reported that their commitment is not under the given root.
// Callers deciding whether to accept the response must check Outputs.Valid.
func (v *IdentityVerifier) Verify(proofBytes []byte, pub IdentityPublic, out IdentityOutputs) error {
	if pub.MerkleRoot == nil || pub.EmergencyHash == nil ||
		out.NullifierHash == nil || out.Commitment == nil {
		return fmt.Errorf("%w: missing public values", ErrVerificationRejected)
	}
	return verify(v.compiled, proofBytes, pub.publicAssignment(out))
}

// EmergencyVerifier validates emergency declaration proofs.
type EmergencyVerifier struct {
	compiled *CompiledCircuit
}

// NewEmergencyVerifier creates a verifier from a compiled emergency circuit.
func NewEmergencyVerifier(compiled *CompiledCircuit) *EmergencyVerifier {
	return &EmergencyVerifier{compiled: compiled}
}

// Verify checks an emergency declaration proof against its public inputs and
// outputs. Beyond the PlonK check, the validity tag is recomputed natively
// from the published hash and commitment so that verifiers never accept a tag
// the circuit did not derive.
func (v *EmergencyVerifier) Verify(proofBytes []byte, pub EmergencyPublic, out EmergencyOutputs) error {
	if pub.UserAddress == nil || out.EmergencyHash == nil || out.Commitment == nil ||
		out.SeverityCommitment == nil || out.ValidityTag == nil {
		return fmt.Errorf("%w: missing public values", ErrVerificationRejected)
	}

	tag, err := HashFields(out.EmergencyHash, out.Commitment)
	if err != nil {
		return fmt.Errorf("recompute validity tag: %w", err)
	}
	if !fieldEqual(tag, out.ValidityTag) {
		return fmt.Errorf("%w: validity tag does not match published hashes", ErrVerificationRejected)
	}

	return verify(v.compiled, proofBytes, pub.publicAssignment(out))
}

// AuthorizationVerifier validates guardian authorization proofs.
type AuthorizationVerifier struct {
	compiled *CompiledCircuit
}

// NewAuthorizationVerifier creates a verifier from a compiled authorization circuit.
func NewAuthorizationVerifier(compiled *CompiledCircuit) *AuthorizationVerifier {
	return &AuthorizationVerifier{compiled: compiled}
}

// Verify checks an authorization proof against its public inputs and outputs.
// The authorization tag is recomputed natively from the published auth hash
// and operation commitment before the PlonK check runs.
func (v *AuthorizationVerifier) Verify(proofBytes []byte, pub AuthorizationPublic, out AuthorizationOutputs) error {
	if pub.TargetAddress == nil || pub.Amount == nil || out.AuthHash == nil ||
		out.OperationCommitment == nil || out.GuardianCommitment == nil ||
		out.AuthorizationTag == nil {
		return fmt.Errorf("%w: missing public values", ErrVerificationRejected)
	}

	tag, err := HashFields(out.AuthHash, out.OperationCommitment)
	if err != nil {
		return fmt.Errorf("recompute authorization tag: %w", err)
	}
	if !fieldEqual(tag, out.AuthorizationTag) {
		return fmt.Errorf("%w: authorization tag does not match published hashes", ErrVerificationRejected)
	}

	return verify(v.compiled, proofBytes, pub.publicAssignment(out))
}

// verify runs the shared PlonK verification path: deserialize the proof,
// build the public-only witness, and verify against the compiled key.
func verify(compiled *CompiledCircuit, proofBytes []byte, assignment frontend.Circuit) error {
	if len(proofBytes) == 0 {
		return fmt.Errorf("%w: empty proof", ErrVerificationRejected)
	}

	proof := plonk.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("%w: deserialize proof: %v", ErrVerificationRejected, err)
	}

	publicWitness, err := buildPublicWitness(assignment)
	if err != nil {
		return fmt.Errorf("build public witness: %w", err)
	}

	if err := plonk.Verify(proof, compiled.VerifyingKey, publicWitness); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationRejected, err)
	}

	return nil
}

// buildPublicWitness constructs the public-only witness for verification.
func buildPublicWitness(assignment frontend.Circuit) (witness.Witness, error) {
	return frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
}
