// Package authz provides the proof authorization service.
//
// This file defines error types for the authorization layer. All errors
// implement the standard error interface and can be used with errors.Is()
// and errors.As() for error matching.
package authz

// AuthzError represents a categorized error in the authorization layer.
// Using a string type allows for easy serialization and comparison
// while providing a stable operator-facing code.
type AuthzError string

// Authorization error constants.
// These errors cover the main failure modes of bundle handling.
const (
	// ErrProofGenerationFailed indicates that proof generation failed.
	// This can occur due to invalid witness values, circuit constraint
	// violations, or internal errors in the proving system.
	ErrProofGenerationFailed AuthzError = "proof_generation_failed"

	// ErrProofVerificationFailed indicates that proof verification failed.
	// This occurs when the PLONK proof does not verify against the bundle's
	// public inputs.
	ErrProofVerificationFailed AuthzError = "proof_verification_failed"

	// ErrSchemeMismatch indicates an incompatible proof scheme.
	// Bundles must carry the scheme tag this service was built for.
	ErrSchemeMismatch AuthzError = "incompatible_proof_scheme"

	// ErrUnknownKind indicates a bundle naming a circuit this service
	// does not know.
	ErrUnknownKind AuthzError = "unknown_circuit_kind"

	// ErrBundleMalformed indicates a structurally invalid bundle:
	// missing fields, undecodable payload, or non-canonical digests.
	ErrBundleMalformed AuthzError = "bundle_malformed"

	// ErrBundleExpired indicates a bundle older than the timeliness policy
	// allows for its emergency level.
	ErrBundleExpired AuthzError = "bundle_expired"

	// ErrBundleFromFuture indicates a bundle created further in the future
	// than the allowed clock skew.
	ErrBundleFromFuture AuthzError = "bundle_from_future"

	// ErrMembershipInvalid indicates an identity proof that verified
	// cryptographically but reports the commitment is not in the registry.
	// The proof is honest; the guardian is not eligible.
	ErrMembershipInvalid AuthzError = "membership_invalid"

	// ErrNullifierSpent indicates a replayed identity proof: its nullifier
	// hash has already been consumed.
	ErrNullifierSpent AuthzError = "nullifier_spent"

	// ErrRootVersionMismatch indicates an identity proof built against a
	// registry snapshot other than the current one.
	ErrRootVersionMismatch AuthzError = "root_version_mismatch"

	// ErrCircuitNotReady indicates that the circuits have not been compiled.
	// This occurs when using a service constructed with Enabled=false.
	ErrCircuitNotReady AuthzError = "circuit_not_compiled"
)

// Error implements the error interface for AuthzError.
// This allows AuthzError values to be used anywhere an error is expected.
func (e AuthzError) Error() string {
	return string(e)
}
