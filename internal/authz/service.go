// Package authz provides the proof authorization service.
//
// Service wraps the low-level circuit compilation, proving, and verification
// components behind the pipeline's policy: structural bundle validation,
// the timeliness window, the registry root check, and nullifier replay
// prevention.
//
// # Usage
//
// The service is configured via Config which controls:
//   - Whether circuits are compiled at startup
//   - Whether the timeliness policy applies at verification
//   - Batch verification parallelism
//
// The registry and nullifier store are injected as interfaces; a service
// built without them can still prove, and can verify emergency and
// authorization bundles, but refuses identity bundles.
//
// # Thread Safety
//
// Service is safe for concurrent use from multiple goroutines.
// Metrics are tracked using atomic operations.
package authz

import (
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/aegisvault/aegisvault/internal/nullifier"
	"github.com/aegisvault/aegisvault/pkg/emergency"
	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// Config contains configuration for the authorization service.
type Config struct {
	// Enabled determines whether circuits are compiled at startup.
	// When false, proof operations are unavailable.
	Enabled bool `toml:"enabled"`

	// RequireFreshProofs applies the timeliness policy at verification.
	// When false, bundle age is not checked.
	RequireFreshProofs bool `toml:"require_fresh_proofs"`

	// MaxFutureSkew is the tolerated clock skew for bundle creation times.
	MaxFutureSkew time.Duration `toml:"max_future_skew"`

	// VerifyWorkers is the number of parallel workers for batch
	// verification. More workers verify faster at the cost of memory.
	VerifyWorkers int `toml:"verify_workers"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Default behavior:
//   - Circuits compiled at startup
//   - Timeliness policy enforced
//   - 5 minute future skew tolerance
//   - 2 parallel verify workers
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		RequireFreshProofs: true,
		MaxFutureSkew:      DefaultMaxFutureSkew,
		VerifyWorkers:      2,
	}
}

// Validate checks the configuration for errors.
// Returns an error describing any invalid configuration values.
func (c Config) Validate() error {
	if c.Enabled {
		if c.MaxFutureSkew <= 0 {
			return fmt.Errorf("authz: max_future_skew must be positive")
		}
		if c.VerifyWorkers <= 0 {
			return fmt.Errorf("authz: verify_workers must be positive")
		}
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c Config) String() string {
	if !c.Enabled {
		return "Config{Enabled: false}"
	}
	return fmt.Sprintf("Config{Enabled: true, RequireFreshProofs: %v, MaxFutureSkew: %v, VerifyWorkers: %d}",
		c.RequireFreshProofs, c.MaxFutureSkew, c.VerifyWorkers)
}

// Registry supplies the current commitment tree root and its snapshot
// version. Identity bundles only verify against the current root.
type Registry interface {
	Root() (*big.Int, uint64)
}

// NullifierStore consumes nullifier hashes exactly once.
type NullifierStore interface {
	CheckAndInsert(nullifierHash *big.Int, rootVersion uint64) error
}

// counters is one circuit kind's metric set. Fields are touched only through
// the atomic package.
type counters struct {
	generated uint64
	verified  uint64
	failed    uint64
}

// KindStats is a point-in-time snapshot of one circuit's metrics.
type KindStats struct {
	// Generated counts proofs successfully generated.
	Generated uint64

	// Verified counts bundles that passed the full verification pipeline.
	Verified uint64

	// Failed counts proof operations that failed or were rejected.
	Failed uint64
}

// SuccessRate returns the fraction of settled verification attempts that
// passed, or 0 when nothing has been settled yet.
func (s KindStats) SuccessRate() float64 {
	attempts := s.Verified + s.Failed
	if attempts == 0 {
		return 0
	}
	return float64(s.Verified) / float64(attempts)
}

// Service provides proof generation and policy-checked verification for all
// three circuits.
type Service struct {
	config     Config
	registry   Registry
	nullifiers NullifierStore

	identityProver      *zkproof.IdentityProver
	emergencyProver     *zkproof.EmergencyProver
	authorizationProver *zkproof.AuthorizationProver

	identityVerifier      *zkproof.IdentityVerifier
	emergencyVerifier     *zkproof.EmergencyVerifier
	authorizationVerifier *zkproof.AuthorizationVerifier

	// Metrics tracked atomically, one counter set per circuit kind.
	counters map[zkproof.Kind]*counters
}

// NewService creates a Service with the given configuration and
// collaborators. registry and nullifiers may be nil for prove-only use.
//
// When config.Enabled is true, all three circuits are compiled (or fetched
// from the process-wide cache) at startup. This is a computationally
// expensive operation that takes several seconds on first use.
func NewService(config Config, registry Registry, nullifiers NullifierStore) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	svc := &Service{
		config:     config,
		registry:   registry,
		nullifiers: nullifiers,
		counters:   make(map[zkproof.Kind]*counters, 3),
	}
	for _, kind := range zkproof.Kinds() {
		svc.counters[kind] = &counters{}
	}

	if !config.Enabled {
		return svc, nil
	}

	for _, kind := range zkproof.Kinds() {
		compiled, err := zkproof.GetCompiledCircuit(kind)
		if err != nil {
			return nil, fmt.Errorf("compile %s circuit: %w", kind, err)
		}
		switch kind {
		case zkproof.KindIdentity:
			svc.identityProver = zkproof.NewIdentityProver(compiled)
			svc.identityVerifier = zkproof.NewIdentityVerifier(compiled)
		case zkproof.KindEmergency:
			svc.emergencyProver = zkproof.NewEmergencyProver(compiled)
			svc.emergencyVerifier = zkproof.NewEmergencyVerifier(compiled)
		case zkproof.KindAuthorization:
			svc.authorizationProver = zkproof.NewAuthorizationProver(compiled)
			svc.authorizationVerifier = zkproof.NewAuthorizationVerifier(compiled)
		}
	}

	return svc, nil
}

// IsEnabled returns true if the circuits are compiled and the service can
// prove and verify.
func (s *Service) IsEnabled() bool {
	return s.config.Enabled && s.identityVerifier != nil
}

// GetConfig returns a copy of the service configuration.
func (s *Service) GetConfig() Config {
	return s.config
}

// ProveIdentity generates a membership proof and wraps it for transport.
// rootVersion names the registry snapshot the witness path was taken from;
// the proof will only verify while that snapshot is current.
func (s *Service) ProveIdentity(w zkproof.IdentityWitness, pub zkproof.IdentityPublic, rootVersion uint64) (*Bundle, error) {
	if !s.IsEnabled() {
		return nil, ErrCircuitNotReady
	}

	result, err := s.identityProver.Prove(w, pub)
	if err != nil {
		s.fail(zkproof.KindIdentity)
		return nil, fmt.Errorf("%w: %w", ErrProofGenerationFailed, err)
	}
	s.recordGenerated(zkproof.KindIdentity)

	return NewIdentityBundle(result, rootVersion)
}

// ProveEmergency generates an emergency declaration proof and wraps it for
// transport.
func (s *Service) ProveEmergency(w zkproof.EmergencyWitness, pub zkproof.EmergencyPublic) (*Bundle, error) {
	if !s.IsEnabled() {
		return nil, ErrCircuitNotReady
	}

	result, err := s.emergencyProver.Prove(w, pub)
	if err != nil {
		s.fail(zkproof.KindEmergency)
		return nil, fmt.Errorf("%w: %w", ErrProofGenerationFailed, err)
	}
	s.recordGenerated(zkproof.KindEmergency)

	return NewEmergencyBundle(result)
}

// ProveAuthorization generates an authorization proof and wraps it for
// transport.
func (s *Service) ProveAuthorization(w zkproof.AuthorizationWitness, pub zkproof.AuthorizationPublic) (*Bundle, error) {
	if !s.IsEnabled() {
		return nil, ErrCircuitNotReady
	}

	result, err := s.authorizationProver.Prove(w, pub)
	if err != nil {
		s.fail(zkproof.KindAuthorization)
		return nil, fmt.Errorf("%w: %w", ErrProofGenerationFailed, err)
	}
	s.recordGenerated(zkproof.KindAuthorization)

	return NewAuthorizationBundle(result)
}

// VerifyBundle runs the full verification pipeline for one bundle:
// structural validation, the timeliness policy, cryptographic verification,
// and for identity bundles the registry root check and the nullifier spend.
//
// A nil return means the bundle is accepted; the nullifier of an accepted
// identity bundle is consumed and cannot be presented again.
func (s *Service) VerifyBundle(b *Bundle) error {
	if !s.IsEnabled() {
		return ErrCircuitNotReady
	}

	if err := ValidateBundle(b); err != nil {
		if b != nil {
			s.fail(b.Kind)
		}
		return err
	}

	if s.config.RequireFreshProofs {
		level := emergency.Level1
		if b.Kind == zkproof.KindAuthorization {
			p, err := b.AuthorizationPayload()
			if err != nil {
				s.fail(b.Kind)
				return err
			}
			level = emergency.Level(p.EmergencyLevel)
		}
		if err := CheckTimeliness(b.CreatedAt, level, time.Now().UTC(), s.config.MaxFutureSkew); err != nil {
			s.fail(b.Kind)
			return err
		}
	}

	switch b.Kind {
	case zkproof.KindIdentity:
		return s.verifyIdentity(b)
	case zkproof.KindEmergency:
		return s.verifyEmergency(b)
	default:
		return s.verifyAuthorization(b)
	}
}

func (s *Service) verifyIdentity(b *Bundle) error {
	if s.registry == nil || s.nullifiers == nil {
		s.fail(b.Kind)
		return fmt.Errorf("%w: identity verification needs a registry and a nullifier store", ErrCircuitNotReady)
	}

	p, err := b.IdentityPayload()
	if err != nil {
		s.fail(b.Kind)
		return err
	}
	pub, err := p.PublicInputs()
	if err != nil {
		s.fail(b.Kind)
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	out, err := p.ProofOutputs()
	if err != nil {
		s.fail(b.Kind)
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}

	currentRoot, version := s.registry.Root()
	if b.RootVersion != version {
		s.fail(b.Kind)
		return fmt.Errorf("%w: bundle built against snapshot %d, registry at %d",
			ErrRootVersionMismatch, b.RootVersion, version)
	}
	if pub.MerkleRoot.Cmp(currentRoot) != 0 {
		s.fail(b.Kind)
		return fmt.Errorf("%w: bundle root does not match the registry root", ErrRootVersionMismatch)
	}

	if err := s.identityVerifier.Verify(b.Proof, pub, out); err != nil {
		s.fail(b.Kind)
		return fmt.Errorf("%w: %w", ErrProofVerificationFailed, err)
	}

	if !out.Valid {
		s.fail(b.Kind)
		return fmt.Errorf("%w: commitment is not in the registry", ErrMembershipInvalid)
	}

	// Spend the nullifier only after the proof itself has been accepted, so
	// a bad bundle can never burn a good nullifier.
	if err := s.nullifiers.CheckAndInsert(out.NullifierHash, b.RootVersion); err != nil {
		s.fail(b.Kind)
		if errors.Is(err, nullifier.ErrReplayDetected) {
			return fmt.Errorf("%w: %v", ErrNullifierSpent, err)
		}
		return err
	}

	s.recordVerified(b.Kind)
	return nil
}

func (s *Service) verifyEmergency(b *Bundle) error {
	p, err := b.EmergencyPayload()
	if err != nil {
		s.fail(b.Kind)
		return err
	}
	pub, err := p.PublicInputs()
	if err != nil {
		s.fail(b.Kind)
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	out, err := p.ProofOutputs()
	if err != nil {
		s.fail(b.Kind)
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}

	if err := s.emergencyVerifier.Verify(b.Proof, pub, out); err != nil {
		s.fail(b.Kind)
		return fmt.Errorf("%w: %w", ErrProofVerificationFailed, err)
	}

	s.recordVerified(b.Kind)
	return nil
}

func (s *Service) verifyAuthorization(b *Bundle) error {
	p, err := b.AuthorizationPayload()
	if err != nil {
		s.fail(b.Kind)
		return err
	}
	pub, err := p.PublicInputs()
	if err != nil {
		s.fail(b.Kind)
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}
	out, err := p.ProofOutputs()
	if err != nil {
		s.fail(b.Kind)
		return fmt.Errorf("%w: %v", ErrBundleMalformed, err)
	}

	if err := s.authorizationVerifier.Verify(b.Proof, pub, out); err != nil {
		s.fail(b.Kind)
		return fmt.Errorf("%w: %w", ErrProofVerificationFailed, err)
	}

	s.recordVerified(b.Kind)
	return nil
}

// recordGenerated bumps the generation counter for a kind.
func (s *Service) recordGenerated(kind zkproof.Kind) {
	if c, ok := s.counters[kind]; ok {
		atomic.AddUint64(&c.generated, 1)
	}
}

// recordVerified bumps the successful verification counter for a kind.
func (s *Service) recordVerified(kind zkproof.Kind) {
	if c, ok := s.counters[kind]; ok {
		atomic.AddUint64(&c.verified, 1)
	}
}

// fail bumps the failure counter for a kind, tolerating unknown kinds.
func (s *Service) fail(kind zkproof.Kind) {
	if c, ok := s.counters[kind]; ok {
		atomic.AddUint64(&c.failed, 1)
	}
}

// Stats returns the current metrics for every circuit kind.
func (s *Service) Stats() map[zkproof.Kind]KindStats {
	out := make(map[zkproof.Kind]KindStats, len(s.counters))
	for kind, c := range s.counters {
		out[kind] = KindStats{
			Generated: atomic.LoadUint64(&c.generated),
			Verified:  atomic.LoadUint64(&c.verified),
			Failed:    atomic.LoadUint64(&c.failed),
		}
	}
	return out
}
