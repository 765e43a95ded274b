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
	// EmergencyTypeMin and EmergencyTypeMax bound the emergency type code.
	EmergencyTypeMin = 1
	EmergencyTypeMax = 5

	// SeverityMin and SeverityMax bound the declared severity.
	SeverityMin = 1
	SeverityMax = 10
)

// EmergencyCircuit proves that a user declared a well-formed emergency without
// revealing its type, severity or exact time. The declaration must fall inside
// a publicly agreed timestamp window, and all private inputs stay hidden behind
// MiMC commitments. The emergency hash output is the value identity proofs
// later bind to, and the validity tag ties the public hash to the private
// commitment in a single recomputable value.
type EmergencyCircuit struct {
	// EmergencyType is the category code, in [EmergencyTypeMin, EmergencyTypeMax].
	EmergencyType frontend.Variable `gnark:",secret"`

	// Timestamp is the declaration time, inside the public window.
	Timestamp frontend.Variable `gnark:",secret"`

	// UserSecret is the declaring user's long-term secret, non-zero.
	UserSecret frontend.Variable `gnark:",secret"`

	// Nonce makes each declaration unique, non-zero.
	Nonce frontend.Variable `gnark:",secret"`

	// Severity grades the emergency, in [SeverityMin, SeverityMax].
	Severity frontend.Variable `gnark:",secret"`

	// UserAddress is the public address of the declaring user.
	UserAddress frontend.Variable `gnark:",public"`

	// MinTimestamp and MaxTimestamp bound the accepted declaration window,
	// inclusive on both ends.
	MinTimestamp frontend.Variable `gnark:",public"`
	MaxTimestamp frontend.Variable `gnark:",public"`

	// EmergencyHash is MiMC(EmergencyType, Timestamp, UserAddress, Nonce).
	EmergencyHash frontend.Variable `gnark:",public"`

	// Commitment is MiMC(EmergencyType, Timestamp, UserSecret, Nonce, Severity).
	Commitment frontend.Variable `gnark:",public"`

	// SeverityCommitment is MiMC(Severity, UserSecret, Nonce), opened later
	// during escalation review.
	SeverityCommitment frontend.Variable `gnark:",public"`

	// ValidityTag is MiMC(EmergencyHash, Commitment).
	ValidityTag frontend.Variable `gnark:",public"`
}

// Define declares the emergency declaration constraints.
func (c *EmergencyCircuit) Define(api frontend.API) error {
	assertInClosedRange(api, c.EmergencyType, EmergencyTypeMin, EmergencyTypeMax)
	assertInClosedRange(api, c.Severity, SeverityMin, SeverityMax)
	assertNonZero(api, c.UserSecret)
	assertNonZero(api, c.Nonce)

	// Window check is inclusive on both ends.
	api.AssertIsLessOrEqual(c.MinTimestamp, c.Timestamp)
	api.AssertIsLessOrEqual(c.Timestamp, c.MaxTimestamp)

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	h.Write(c.EmergencyType, c.Timestamp, c.UserAddress, c.Nonce)
	emergencyHash := h.Sum()
	api.AssertIsEqual(emergencyHash, c.EmergencyHash)

	h.Reset()
	h.Write(c.EmergencyType, c.Timestamp, c.UserSecret, c.Nonce, c.Severity)
	commitment := h.Sum()
	api.AssertIsEqual(commitment, c.Commitment)

	h.Reset()
	h.Write(c.Severity, c.UserSecret, c.Nonce)
	api.AssertIsEqual(h.Sum(), c.SeverityCommitment)

	h.Reset()
	h.Write(emergencyHash, commitment)
	api.AssertIsEqual(h.Sum(), c.ValidityTag)

	return nil
}

// EmergencyWitness holds the private inputs for an emergency declaration proof.
type EmergencyWitness struct {
	// EmergencyType is the category code, in [EmergencyTypeMin, EmergencyTypeMax].
	EmergencyType int

	// Timestamp is the declaration time as a unix timestamp in seconds.
	Timestamp int64

	// UserSecret is the declaring user's long-term secret, non-zero.
	UserSecret *big.Int

	// Nonce makes each declaration unique, non-zero.
	Nonce *big.Int

	// Severity grades the emergency, in [SeverityMin, SeverityMax].
	Severity int
}

// EmergencyPublic holds the public inputs for an emergency declaration proof.
type EmergencyPublic struct {
	// UserAddress is the public address of the declaring user.
	UserAddress *big.Int

	// MinTimestamp and MaxTimestamp bound the accepted window, inclusive.
	MinTimestamp int64
	MaxTimestamp int64
}

// EmergencyOutputs holds the public outputs derived from an emergency witness.
type EmergencyOutputs struct {
	// EmergencyHash is MiMC(type, timestamp, userAddress, nonce).
	EmergencyHash *big.Int

	// Commitment is MiMC(type, timestamp, userSecret, nonce, severity).
	Commitment *big.Int

	// SeverityCommitment is MiMC(severity, userSecret, nonce).
	SeverityCommitment *big.Int

	// ValidityTag is MiMC(emergencyHash, commitment).
	ValidityTag *big.Int
}

// validate checks the witness against the circuit's hard constraints.
func (w *EmergencyWitness) validate(pub EmergencyPublic) error {
	if w.EmergencyType < EmergencyTypeMin || w.EmergencyType > EmergencyTypeMax {
		return fmt.Errorf("%w: emergency type %d outside [%d, %d]",
			ErrWitnessViolation, w.EmergencyType, EmergencyTypeMin, EmergencyTypeMax)
	}
	if w.Severity < SeverityMin || w.Severity > SeverityMax {
		return fmt.Errorf("%w: severity %d outside [%d, %d]",
			ErrWitnessViolation, w.Severity, SeverityMin, SeverityMax)
	}
	if w.UserSecret == nil || fieldIsZero(w.UserSecret) {
		return fmt.Errorf("%w: user secret must be non-zero", ErrWitnessViolation)
	}
	if w.Nonce == nil || fieldIsZero(w.Nonce) {
		return fmt.Errorf("%w: nonce must be non-zero", ErrWitnessViolation)
	}
	if w.Timestamp < 0 || pub.MinTimestamp < 0 || pub.MaxTimestamp < 0 {
		return fmt.Errorf("%w: timestamps must be non-negative", ErrWitnessViolation)
	}
	if w.Timestamp < pub.MinTimestamp || w.Timestamp > pub.MaxTimestamp {
		return fmt.Errorf("%w: timestamp %d outside window [%d, %d]",
			ErrWitnessViolation, w.Timestamp, pub.MinTimestamp, pub.MaxTimestamp)
	}
	return nil
}

// validate checks that all public inputs are present.
func (p *EmergencyPublic) validate() error {
	if p.UserAddress == nil {
		return fmt.Errorf("%w: user address is required", ErrWitnessViolation)
	}
	return nil
}

// ComputeEmergencyOutputs derives the public outputs for an emergency witness
// natively, mirroring the circuit.
func ComputeEmergencyOutputs(w EmergencyWitness, pub EmergencyPublic) (*EmergencyOutputs, error) {
	emergencyType := big.NewInt(int64(w.EmergencyType))
	timestamp := big.NewInt(w.Timestamp)
	severity := big.NewInt(int64(w.Severity))

	emergencyHash, err := HashFields(emergencyType, timestamp, pub.UserAddress, w.Nonce)
	if err != nil {
		return nil, fmt.Errorf("compute emergency hash: %w", err)
	}

	commitment, err := HashFields(emergencyType, timestamp, w.UserSecret, w.Nonce, severity)
	if err != nil {
		return nil, fmt.Errorf("compute commitment: %w", err)
	}

	severityCommitment, err := HashFields(severity, w.UserSecret, w.Nonce)
	if err != nil {
		return nil, fmt.Errorf("compute severity commitment: %w", err)
	}

	validityTag, err := HashFields(emergencyHash, commitment)
	if err != nil {
		return nil, fmt.Errorf("compute validity tag: %w", err)
	}

	return &EmergencyOutputs{
		EmergencyHash:      emergencyHash,
		Commitment:         commitment,
		SeverityCommitment: severityCommitment,
		ValidityTag:        validityTag,
	}, nil
}

// assignment builds the full witness assignment for proving.
func (w *EmergencyWitness) assignment(pub EmergencyPublic, out *EmergencyOutputs) *EmergencyCircuit {
	var circuit EmergencyCircuit
	circuit.EmergencyType = w.EmergencyType
	circuit.Timestamp = w.Timestamp
	circuit.UserSecret = w.UserSecret
	circuit.Nonce = w.Nonce
	circuit.Severity = w.Severity

	circuit.UserAddress = pub.UserAddress
	circuit.MinTimestamp = pub.MinTimestamp
	circuit.MaxTimestamp = pub.MaxTimestamp
	circuit.EmergencyHash = out.EmergencyHash
	circuit.Commitment = out.Commitment
	circuit.SeverityCommitment = out.SeverityCommitment
	circuit.ValidityTag = out.ValidityTag

	return &circuit
}

// publicAssignment builds the public-only assignment for verification.
func (p *EmergencyPublic) publicAssignment(out EmergencyOutputs) *EmergencyCircuit {
	var circuit EmergencyCircuit
	circuit.UserAddress = p.UserAddress
	circuit.MinTimestamp = p.MinTimestamp
	circuit.MaxTimestamp = p.MaxTimestamp
	circuit.EmergencyHash = out.EmergencyHash
	circuit.Commitment = out.Commitment
	circuit.SeverityCommitment = out.SeverityCommitment
	circuit.ValidityTag = out.ValidityTag
	return &circuit
}
