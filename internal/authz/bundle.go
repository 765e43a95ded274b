// Package authz provides the proof authorization service.
//
// This file defines the ProofBundle envelope: the JSON document that carries
// a serialized proof together with its public inputs and outputs between the
// CLI, the inbox, and the keeper. Field elements travel in the same base58
// encoding the registry snapshot uses.
package authz

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// Bundle is the envelope for one proof in transit.
type Bundle struct {
	// ID uniquely identifies this bundle.
	ID string `json:"id"`

	// Kind names the circuit the proof was built for.
	Kind zkproof.Kind `json:"kind"`

	// Scheme tags the proving scheme, e.g. "plonk-bn254". Bundles from a
	// different scheme are rejected before verification.
	Scheme string `json:"scheme"`

	// CreatedAt is when the proof was generated. The timeliness policy
	// bounds how old a bundle may be at verification time.
	CreatedAt time.Time `json:"created_at"`

	// RootVersion is the registry snapshot version an identity proof was
	// built against. Zero for other kinds.
	RootVersion uint64 `json:"root_version,omitempty"`

	// Proof is the serialized PLONK proof.
	Proof []byte `json:"proof"`

	// Payload holds the kind-specific public inputs and outputs.
	Payload json.RawMessage `json:"payload"`
}

// Encode renders the bundle as JSON.
func (b *Bundle) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBundle parses a bundle from JSON.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	return &b, nil
}

// newBundle wraps a serialized proof and payload in a fresh envelope.
func newBundle(kind zkproof.Kind, proof []byte, payload any) (*Bundle, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Bundle{
		ID:        uuid.New().String(),
		Kind:      kind,
		Scheme:    zkproof.SchemeID,
		CreatedAt: time.Now().UTC(),
		Proof:     proof,
		Payload:   raw,
	}, nil
}

// encodeField renders a field element in the canonical base58 form shared
// with the registry snapshot.
func encodeField(v *big.Int) (string, error) {
	b, err := zkproof.FieldBytes(v)
	if err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}

// decodeField parses a base58 field element.
func decodeField(encoded string) (*big.Int, error) {
	b, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode field element: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("decode field element: got %d bytes, expected 32", len(b))
	}
	return zkproof.FieldFromBytes(b), nil
}

// IdentityPayload is the public face of an identity membership proof.
type IdentityPayload struct {
	MerkleRoot    string `json:"merkle_root"`
	EmergencyHash string `json:"emergency_hash"`
	NullifierHash string `json:"nullifier_hash"`
	Commitment    string `json:"commitment"`
	Valid         bool   `json:"valid"`
}

// NewIdentityBundle wraps an identity proof for transport, stamped with the
// registry snapshot version the witness path came from.
func NewIdentityBundle(result *zkproof.IdentityProof, rootVersion uint64) (*Bundle, error) {
	root, err := encodeField(result.Public.MerkleRoot)
	if err != nil {
		return nil, err
	}
	emergencyHash, err := encodeField(result.Public.EmergencyHash)
	if err != nil {
		return nil, err
	}
	nullifierHash, err := encodeField(result.Outputs.NullifierHash)
	if err != nil {
		return nil, err
	}
	commitment, err := encodeField(result.Outputs.Commitment)
	if err != nil {
		return nil, err
	}

	b, err := newBundle(zkproof.KindIdentity, result.Proof, IdentityPayload{
		MerkleRoot:    root,
		EmergencyHash: emergencyHash,
		NullifierHash: nullifierHash,
		Commitment:    commitment,
		Valid:         result.Outputs.Valid,
	})
	if err != nil {
		return nil, err
	}
	b.RootVersion = rootVersion
	return b, nil
}

// IdentityPayload decodes the payload of an identity bundle.
func (b *Bundle) IdentityPayload() (*IdentityPayload, error) {
	if b.Kind != zkproof.KindIdentity {
		return nil, fmt.Errorf("%w: bundle kind is %q", ErrBundleMalformed, b.Kind)
	}
	var p IdentityPayload
	if err := json.Unmarshal(b.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	return &p, nil
}

// PublicInputs reconstructs the circuit's public inputs from the payload.
func (p *IdentityPayload) PublicInputs() (zkproof.IdentityPublic, error) {
	root, err := decodeField(p.MerkleRoot)
	if err != nil {
		return zkproof.IdentityPublic{}, err
	}
	emergencyHash, err := decodeField(p.EmergencyHash)
	if err != nil {
		return zkproof.IdentityPublic{}, err
	}
	return zkproof.IdentityPublic{MerkleRoot: root, EmergencyHash: emergencyHash}, nil
}

// ProofOutputs reconstructs the circuit's outputs from the payload.
func (p *IdentityPayload) ProofOutputs() (zkproof.IdentityOutputs, error) {
	nullifierHash, err := decodeField(p.NullifierHash)
	if err != nil {
		return zkproof.IdentityOutputs{}, err
	}
	commitment, err := decodeField(p.Commitment)
	if err != nil {
		return zkproof.IdentityOutputs{}, err
	}
	return zkproof.IdentityOutputs{
		NullifierHash: nullifierHash,
		Commitment:    commitment,
		Valid:         p.Valid,
	}, nil
}

// EmergencyPayload is the public face of an emergency declaration proof.
type EmergencyPayload struct {
	UserAddress        string `json:"user_address"`
	MinTimestamp       int64  `json:"min_timestamp"`
	MaxTimestamp       int64  `json:"max_timestamp"`
	EmergencyHash      string `json:"emergency_hash"`
	Commitment         string `json:"commitment"`
	SeverityCommitment string `json:"severity_commitment"`
	ValidityTag        string `json:"validity_tag"`
}

// NewEmergencyBundle wraps an emergency declaration proof for transport.
func NewEmergencyBundle(result *zkproof.EmergencyProof) (*Bundle, error) {
	userAddress, err := encodeField(result.Public.UserAddress)
	if err != nil {
		return nil, err
	}
	emergencyHash, err := encodeField(result.Outputs.EmergencyHash)
	if err != nil {
		return nil, err
	}
	commitment, err := encodeField(result.Outputs.Commitment)
	if err != nil {
		return nil, err
	}
	severityCommitment, err := encodeField(result.Outputs.SeverityCommitment)
	if err != nil {
		return nil, err
	}
	validityTag, err := encodeField(result.Outputs.ValidityTag)
	if err != nil {
		return nil, err
	}

	return newBundle(zkproof.KindEmergency, result.Proof, EmergencyPayload{
		UserAddress:        userAddress,
		MinTimestamp:       result.Public.MinTimestamp,
		MaxTimestamp:       result.Public.MaxTimestamp,
		EmergencyHash:      emergencyHash,
		Commitment:         commitment,
		SeverityCommitment: severityCommitment,
		ValidityTag:        validityTag,
	})
}

// EmergencyPayload decodes the payload of an emergency bundle.
func (b *Bundle) EmergencyPayload() (*EmergencyPayload, error) {
	if b.Kind != zkproof.KindEmergency {
		return nil, fmt.Errorf("%w: bundle kind is %q", ErrBundleMalformed, b.Kind)
	}
	var p EmergencyPayload
	if err := json.Unmarshal(b.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	return &p, nil
}

// PublicInputs reconstructs the circuit's public inputs from the payload.
func (p *EmergencyPayload) PublicInputs() (zkproof.EmergencyPublic, error) {
	userAddress, err := decodeField(p.UserAddress)
	if err != nil {
		return zkproof.EmergencyPublic{}, err
	}
	return zkproof.EmergencyPublic{
		UserAddress:  userAddress,
		MinTimestamp: p.MinTimestamp,
		MaxTimestamp: p.MaxTimestamp,
	}, nil
}

// ProofOutputs reconstructs the circuit's outputs from the payload.
func (p *EmergencyPayload) ProofOutputs() (zkproof.EmergencyOutputs, error) {
	emergencyHash, err := decodeField(p.EmergencyHash)
	if err != nil {
		return zkproof.EmergencyOutputs{}, err
	}
	commitment, err := decodeField(p.Commitment)
	if err != nil {
		return zkproof.EmergencyOutputs{}, err
	}
	severityCommitment, err := decodeField(p.SeverityCommitment)
	if err != nil {
		return zkproof.EmergencyOutputs{}, err
	}
	validityTag, err := decodeField(p.ValidityTag)
	if err != nil {
		return zkproof.EmergencyOutputs{}, err
	}
	return zkproof.EmergencyOutputs{
		EmergencyHash:      emergencyHash,
		Commitment:         commitment,
		SeverityCommitment: severityCommitment,
		ValidityTag:        validityTag,
	}, nil
}

// AuthorizationPayload is the public face of an authorization proof.
type AuthorizationPayload struct {
	TargetAddress       string `json:"target_address"`
	Amount              string `json:"amount"`
	Timestamp           int64  `json:"timestamp"`
	EmergencyLevel      int    `json:"emergency_level"`
	MinAuthLevel        int    `json:"min_auth_level"`
	AuthHash            string `json:"auth_hash"`
	OperationCommitment string `json:"operation_commitment"`
	GuardianCommitment  string `json:"guardian_commitment"`
	AuthorizationTag    string `json:"authorization_tag"`
}

// NewAuthorizationBundle wraps an authorization proof for transport.
func NewAuthorizationBundle(result *zkproof.AuthorizationProof) (*Bundle, error) {
	targetAddress, err := encodeField(result.Public.TargetAddress)
	if err != nil {
		return nil, err
	}
	amount, err := encodeField(result.Public.Amount)
	if err != nil {
		return nil, err
	}
	authHash, err := encodeField(result.Outputs.AuthHash)
	if err != nil {
		return nil, err
	}
	operationCommitment, err := encodeField(result.Outputs.OperationCommitment)
	if err != nil {
		return nil, err
	}
	guardianCommitment, err := encodeField(result.Outputs.GuardianCommitment)
	if err != nil {
		return nil, err
	}
	authorizationTag, err := encodeField(result.Outputs.AuthorizationTag)
	if err != nil {
		return nil, err
	}

	return newBundle(zkproof.KindAuthorization, result.Proof, AuthorizationPayload{
		TargetAddress:       targetAddress,
		Amount:              amount,
		Timestamp:           result.Public.Timestamp,
		EmergencyLevel:      result.Public.EmergencyLevel,
		MinAuthLevel:        result.Public.MinAuthLevel,
		AuthHash:            authHash,
		OperationCommitment: operationCommitment,
		GuardianCommitment:  guardianCommitment,
		AuthorizationTag:    authorizationTag,
	})
}

// AuthorizationPayload decodes the payload of an authorization bundle.
func (b *Bundle) AuthorizationPayload() (*AuthorizationPayload, error) {
	if b.Kind != zkproof.KindAuthorization {
		return nil, fmt.Errorf("%w: bundle kind is %q", ErrBundleMalformed, b.Kind)
	}
	var p AuthorizationPayload
	if err := json.Unmarshal(b.Payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	return &p, nil
}

// PublicInputs reconstructs the circuit's public inputs from the payload.
func (p *AuthorizationPayload) PublicInputs() (zkproof.AuthorizationPublic, error) {
	targetAddress, err := decodeField(p.TargetAddress)
	if err != nil {
		return zkproof.AuthorizationPublic{}, err
	}
	amount, err := decodeField(p.Amount)
	if err != nil {
		return zkproof.AuthorizationPublic{}, err
	}
	return zkproof.AuthorizationPublic{
		TargetAddress:  targetAddress,
		Amount:         amount,
		Timestamp:      p.Timestamp,
		EmergencyLevel: p.EmergencyLevel,
		MinAuthLevel:   p.MinAuthLevel,
	}, nil
}

// ProofOutputs reconstructs the circuit's outputs from the payload.
func (p *AuthorizationPayload) ProofOutputs() (zkproof.AuthorizationOutputs, error) {
	authHash, err := decodeField(p.AuthHash)
	if err != nil {
		return zkproof.AuthorizationOutputs{}, err
	}
	operationCommitment, err := decodeField(p.OperationCommitment)
	if err != nil {
		return zkproof.AuthorizationOutputs{}, err
	}
	guardianCommitment, err := decodeField(p.GuardianCommitment)
	if err != nil {
		return zkproof.AuthorizationOutputs{}, err
	}
	authorizationTag, err := decodeField(p.AuthorizationTag)
	if err != nil {
		return zkproof.AuthorizationOutputs{}, err
	}
	return zkproof.AuthorizationOutputs{
		AuthHash:            authHash,
		OperationCommitment: operationCommitment,
		GuardianCommitment:  guardianCommitment,
		AuthorizationTag:    authorizationTag,
	}, nil
}
