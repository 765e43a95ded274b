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
	// OperationTypeMin and OperationTypeMax bound the operation type code.
	OperationTypeMin = 1
	OperationTypeMax = 10

	// EmergencyLevelMin and EmergencyLevelMax bound the escalation level.
	EmergencyLevelMin = 1
	EmergencyLevelMax = 3

	// HighValueThreshold is the amount above which an operation requires
	// escalation level 2 or higher.
	HighValueThreshold = 1000

	// EscalationLevel is the minimum level for high-value operations.
	EscalationLevel = 2
)

// AuthorizationCircuit proves that a guardian approved a specific operation
// during an active emergency without revealing who the guardian is or which
// operation type they approved. The policy gates are enforced in-circuit:
// the emergency level must meet the public minimum, and operations moving
// more than HighValueThreshold must run at EscalationLevel or above.
type AuthorizationCircuit struct {
	// GuardianSecret is the approving guardian's secret, non-zero.
	GuardianSecret frontend.Variable `gnark:",secret"`

	// OperationType is the approved operation code, in
	// [OperationTypeMin, OperationTypeMax].
	OperationType frontend.Variable `gnark:",secret"`

	// AuthNonce makes each approval unique, non-zero.
	AuthNonce frontend.Variable `gnark:",secret"`

	// GuardianIndex is the guardian's registry position, kept private.
	GuardianIndex frontend.Variable `gnark:",secret"`

	// TargetAddress is the operation's destination, non-zero.
	TargetAddress frontend.Variable `gnark:",public"`

	// Amount is the operation value, checked against HighValueThreshold.
	Amount frontend.Variable `gnark:",public"`

	// Timestamp is the approval time.
	Timestamp frontend.Variable `gnark:",public"`

	// EmergencyLevel is the active escalation level, in
	// [EmergencyLevelMin, EmergencyLevelMax].
	EmergencyLevel frontend.Variable `gnark:",public"`

	// MinAuthLevel is the policy floor the emergency level must meet.
	MinAuthLevel frontend.Variable `gnark:",public"`

	// AuthHash is MiMC(OperationType, TargetAddress, Amount, Timestamp).
	AuthHash frontend.Variable `gnark:",public"`

	// OperationCommitment is MiMC(OperationType, TargetAddress, Amount,
	// GuardianSecret, AuthNonce, EmergencyLevel).
	OperationCommitment frontend.Variable `gnark:",public"`

	// GuardianCommitment is MiMC(GuardianSecret, GuardianIndex, AuthNonce).
	GuardianCommitment frontend.Variable `gnark:",public"`

	// AuthorizationTag is MiMC(AuthHash, OperationCommitment).
	AuthorizationTag frontend.Variable `gnark:",public"`
}

// Define declares the authorization constraints.
func (c *AuthorizationCircuit) Define(api frontend.API) error {
	assertInClosedRange(api, c.OperationType, OperationTypeMin, OperationTypeMax)
	assertInClosedRange(api, c.EmergencyLevel, EmergencyLevelMin, EmergencyLevelMax)
	assertNonZero(api, c.GuardianSecret)
	assertNonZero(api, c.AuthNonce)
	assertNonZero(api, c.TargetAddress)

	api.AssertIsLessOrEqual(c.MinAuthLevel, c.EmergencyLevel)

	// High-value escalation gate: amounts above the threshold may only be
	// approved at EscalationLevel or higher. Encoded as a product so the
	// constraint holds exactly when either side of the gate is satisfied.
	aboveThreshold := isGreaterThan(api, c.Amount, HighValueThreshold)
	levelTooLow := isLessThan(api, c.EmergencyLevel, EscalationLevel)
	api.AssertIsEqual(api.Mul(aboveThreshold, levelTooLow), 0)

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	h.Write(c.OperationType, c.TargetAddress, c.Amount, c.Timestamp)
	authHash := h.Sum()
	api.AssertIsEqual(authHash, c.AuthHash)

	h.Reset()
	h.Write(c.OperationType, c.TargetAddress, c.Amount, c.GuardianSecret, c.AuthNonce, c.EmergencyLevel)
	operationCommitment := h.Sum()
	api.AssertIsEqual(operationCommitment, c.OperationCommitment)

	h.Reset()
	h.Write(c.GuardianSecret, c.GuardianIndex, c.AuthNonce)
	api.AssertIsEqual(h.Sum(), c.GuardianCommitment)

	h.Reset()
	h.Write(authHash, operationCommitment)
	api.AssertIsEqual(h.Sum(), c.AuthorizationTag)

	return nil
}

// AuthorizationWitness holds the private inputs for an authorization proof.
type AuthorizationWitness struct {
	// GuardianSecret is the approving guardian's secret, non-zero.
	GuardianSecret *big.Int

	// OperationType is the approved operation code, in
	// [OperationTypeMin, OperationTypeMax].
	OperationType int

	// AuthNonce makes each approval unique, non-zero.
	AuthNonce *big.Int

	// GuardianIndex is the guardian's registry position.
	GuardianIndex uint64
}

// AuthorizationPublic holds the public inputs for an authorization proof.
type AuthorizationPublic struct {
	// TargetAddress is the operation's destination, non-zero.
	TargetAddress *big.Int

	// Amount is the operation value.
	Amount *big.Int

	// Timestamp is the approval time as a unix timestamp in seconds.
	Timestamp int64

	// EmergencyLevel is the active escalation level, in
	// [EmergencyLevelMin, EmergencyLevelMax].
	EmergencyLevel int

	// MinAuthLevel is the policy floor the emergency level must meet.
	MinAuthLevel int
}

// AuthorizationOutputs holds the public outputs derived from an authorization
// witness.
type AuthorizationOutputs struct {
	// AuthHash is MiMC(opType, target, amount, timestamp).
	AuthHash *big.Int

	// OperationCommitment is MiMC(opType, target, amount, guardianSecret,
	// authNonce, level).
	OperationCommitment *big.Int

	// GuardianCommitment is MiMC(guardianSecret, guardianIndex, authNonce).
	GuardianCommitment *big.Int

	// AuthorizationTag is MiMC(authHash, operationCommitment).
	AuthorizationTag *big.Int
}

// validate checks the witness and public inputs against the circuit's hard
// constraints, including the escalation gate.
func (w *AuthorizationWitness) validate(pub AuthorizationPublic) error {
	if w.OperationType < OperationTypeMin || w.OperationType > OperationTypeMax {
		return fmt.Errorf("%w: operation type %d outside [%d, %d]",
			ErrWitnessViolation, w.OperationType, OperationTypeMin, OperationTypeMax)
	}
	if w.GuardianSecret == nil || fieldIsZero(w.GuardianSecret) {
		return fmt.Errorf("%w: guardian secret must be non-zero", ErrWitnessViolation)
	}
	if w.AuthNonce == nil || fieldIsZero(w.AuthNonce) {
		return fmt.Errorf("%w: auth nonce must be non-zero", ErrWitnessViolation)
	}
	if pub.TargetAddress == nil || fieldIsZero(pub.TargetAddress) {
		return fmt.Errorf("%w: target address must be non-zero", ErrWitnessViolation)
	}
	if pub.Amount == nil || pub.Amount.Sign() < 0 {
		return fmt.Errorf("%w: amount must be a non-negative value", ErrWitnessViolation)
	}
	if pub.Timestamp < 0 {
		return fmt.Errorf("%w: timestamp must be non-negative", ErrWitnessViolation)
	}
	if pub.EmergencyLevel < EmergencyLevelMin || pub.EmergencyLevel > EmergencyLevelMax {
		return fmt.Errorf("%w: emergency level %d outside [%d, %d]",
			ErrWitnessViolation, pub.EmergencyLevel, EmergencyLevelMin, EmergencyLevelMax)
	}
	if pub.EmergencyLevel < pub.MinAuthLevel {
		return fmt.Errorf("%w: emergency level %d below required minimum %d",
			ErrWitnessViolation, pub.EmergencyLevel, pub.MinAuthLevel)
	}
	if pub.Amount.Cmp(big.NewInt(HighValueThreshold)) > 0 && pub.EmergencyLevel < EscalationLevel {
		return fmt.Errorf("%w: amount %s exceeds %d and requires emergency level %d or higher",
			ErrWitnessViolation, pub.Amount, HighValueThreshold, EscalationLevel)
	}
	return nil
}

// ComputeAuthorizationOutputs derives the public outputs for an authorization
// witness natively, mirroring the circuit.
func ComputeAuthorizationOutputs(w AuthorizationWitness, pub AuthorizationPublic) (*AuthorizationOutputs, error) {
	opType := big.NewInt(int64(w.OperationType))
	timestamp := big.NewInt(pub.Timestamp)
	level := big.NewInt(int64(pub.EmergencyLevel))
	guardianIndex := new(big.Int).SetUint64(w.GuardianIndex)

	authHash, err := HashFields(opType, pub.TargetAddress, pub.Amount, timestamp)
	if err != nil {
		return nil, fmt.Errorf("compute auth hash: %w", err)
	}

	operationCommitment, err := HashFields(opType, pub.TargetAddress, pub.Amount, w.GuardianSecret, w.AuthNonce, level)
	if err != nil {
		return nil, fmt.Errorf("compute operation commitment: %w", err)
	}

	guardianCommitment, err := HashFields(w.GuardianSecret, guardianIndex, w.AuthNonce)
	if err != nil {
		return nil, fmt.Errorf("compute guardian commitment: %w", err)
	}

	authorizationTag, err := HashFields(authHash, operationCommitment)
	if err != nil {
		return nil, fmt.Errorf("compute authorization tag: %w", err)
	}

	return &AuthorizationOutputs{
		AuthHash:            authHash,
		OperationCommitment: operationCommitment,
		GuardianCommitment:  guardianCommitment,
		AuthorizationTag:    authorizationTag,
	}, nil
}

// assignment builds the full witness assignment for proving.
func (w *AuthorizationWitness) assignment(pub AuthorizationPublic, out *AuthorizationOutputs) *AuthorizationCircuit {
	var circuit AuthorizationCircuit
	circuit.GuardianSecret = w.GuardianSecret
	circuit.OperationType = w.OperationType
	circuit.AuthNonce = w.AuthNonce
	circuit.GuardianIndex = w.GuardianIndex

	circuit.TargetAddress = pub.TargetAddress
	circuit.Amount = pub.Amount
	circuit.Timestamp = pub.Timestamp
	circuit.EmergencyLevel = pub.EmergencyLevel
	circuit.MinAuthLevel = pub.MinAuthLevel
	circuit.AuthHash = out.AuthHash
	circuit.OperationCommitment = out.OperationCommitment
	circuit.GuardianCommitment = out.GuardianCommitment
	circuit.AuthorizationTag = out.AuthorizationTag

	return &circuit
}

// publicAssignment builds the public-only assignment for verification.
func (p *AuthorizationPublic) publicAssignment(out AuthorizationOutputs) *AuthorizationCircuit {
	var circuit AuthorizationCircuit
	circuit.TargetAddress = p.TargetAddress
	circuit.Amount = p.Amount
	circuit.Timestamp = p.Timestamp
	circuit.EmergencyLevel = p.EmergencyLevel
	circuit.MinAuthLevel = p.MinAuthLevel
	circuit.AuthHash = out.AuthHash
	circuit.OperationCommitment = out.OperationCommitment
	circuit.GuardianCommitment = out.GuardianCommitment
	circuit.AuthorizationTag = out.AuthorizationTag
	return &circuit
}
