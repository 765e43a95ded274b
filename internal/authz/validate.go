// Package authz provides the proof authorization service.
//
// This file handles structural bundle validation: every check that can run
// before any cryptography. A bundle that fails here never reaches the
// verifier.
package authz

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// ValidateBundle checks a bundle's structure: identity, scheme, kind,
// timestamps, proof bytes, and a fully decodable payload with canonical
// digests. Returns nil if the bundle is well-formed, or an error describing
// the first defect found.
func ValidateBundle(b *Bundle) error {
	if b == nil {
		return fmt.Errorf("%w: nil bundle", ErrBundleMalformed)
	}
	if b.ID == "" {
		return fmt.Errorf("%w: missing id", ErrBundleMalformed)
	}
	if _, err := uuid.Parse(b.ID); err != nil {
		return fmt.Errorf("%w: id is not a UUID: %v", ErrBundleMalformed, err)
	}
	if b.Scheme != zkproof.SchemeID {
		return fmt.Errorf("%w: bundle uses %q, we use %q",
			ErrSchemeMismatch, b.Scheme, zkproof.SchemeID)
	}
	if b.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing created_at", ErrBundleMalformed)
	}
	if len(b.Proof) == 0 {
		return fmt.Errorf("%w: empty proof", ErrBundleMalformed)
	}
	if len(b.Payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrBundleMalformed)
	}

	switch b.Kind {
	case zkproof.KindIdentity:
		return validateIdentityPayload(b)
	case zkproof.KindEmergency:
		return validateEmergencyPayload(b)
	case zkproof.KindAuthorization:
		return validateAuthorizationPayload(b)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, b.Kind)
	}
}

func validateIdentityPayload(b *Bundle) error {
	p, err := b.IdentityPayload()
	if err != nil {
		return err
	}
	if _, err := p.PublicInputs(); err != nil {
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	if _, err := p.ProofOutputs(); err != nil {
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	return nil
}

func validateEmergencyPayload(b *Bundle) error {
	p, err := b.EmergencyPayload()
	if err != nil {
		return err
	}
	if _, err := p.PublicInputs(); err != nil {
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	if _, err := p.ProofOutputs(); err != nil {
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	if p.MinTimestamp < 0 || p.MaxTimestamp < 0 {
		return fmt.Errorf("%w: negative window bound", ErrBundleMalformed)
	}
	if p.MinTimestamp > p.MaxTimestamp {
		return fmt.Errorf("%w: window min %d after max %d",
			ErrBundleMalformed, p.MinTimestamp, p.MaxTimestamp)
	}
	return nil
}

func validateAuthorizationPayload(b *Bundle) error {
	p, err := b.AuthorizationPayload()
	if err != nil {
		return err
	}
	if _, err := p.PublicInputs(); err != nil {
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	if _, err := p.ProofOutputs(); err != nil {
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	if p.Timestamp < 0 {
		return fmt.Errorf("%w: negative timestamp", ErrBundleMalformed)
	}
	if p.EmergencyLevel < zkproof.EmergencyLevelMin || p.EmergencyLevel > zkproof.EmergencyLevelMax {
		return fmt.Errorf("%w: emergency level %d out of range",
			ErrBundleMalformed, p.EmergencyLevel)
	}
	if p.MinAuthLevel < zkproof.EmergencyLevelMin || p.MinAuthLevel > zkproof.EmergencyLevelMax {
		return fmt.Errorf("%w: min auth level %d out of range",
			ErrBundleMalformed, p.MinAuthLevel)
	}
	return nil
}
