// Package zkproof provides zero-knowledge proof functionality for privacy-preserving
// emergency authorization.
package zkproof

import (
	"fmt"
	"io"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/scs"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/consensys/gnark/test/unsafekzg"
	"github.com/rs/zerolog"
)

// Kind names one of the three authorization circuits.
type Kind string

const (
	// KindIdentity is the identity membership circuit.
	KindIdentity Kind = "identity"

	// KindEmergency is the emergency declaration circuit.
	KindEmergency Kind = "emergency"

	// KindAuthorization is the guardian authorization circuit.
	KindAuthorization Kind = "authorization"
)

// SchemeID identifies the proving scheme and curve all three circuits use.
// Bundles record it so verifiers can reject proofs from incompatible builds.
const SchemeID = "plonk-bn254"

// Kinds lists all circuit kinds in pipeline order.
func Kinds() []Kind {
	return []Kind{KindIdentity, KindEmergency, KindAuthorization}
}

var (
	// compiledCircuits caches one compiled circuit per kind.
	compiledCircuits = make(map[Kind]*CompiledCircuit)
	// compileMu protects concurrent access to compiledCircuits.
	compileMu sync.Mutex
	// silenceOnce discards the gnark backend's own logging exactly once.
	silenceOnce sync.Once
)

// CompiledCircuit contains the compiled constraint system and cryptographic keys
// needed to generate and verify proofs of one kind. This is computed once at
// startup and shared by provers and verifiers.
type CompiledCircuit struct {
	// Kind names the circuit this artifact was compiled from.
	Kind Kind

	// ConstraintSystem is the compiled circuit in sparse constraint form.
	ConstraintSystem constraint.ConstraintSystem

	// ProvingKey is used to generate proofs.
	ProvingKey plonk.ProvingKey

	// VerifyingKey is used to verify proofs.
	VerifyingKey plonk.VerifyingKey
}

// newCircuit returns an empty circuit definition for the given kind.
func newCircuit(kind Kind) (frontend.Circuit, error) {
	switch kind {
	case KindIdentity:
		return &IdentityCircuit{}, nil
	case KindEmergency:
		return &EmergencyCircuit{}, nil
	case KindAuthorization:
		return &AuthorizationCircuit{}, nil
	default:
		return nil, fmt.Errorf("unknown circuit kind %q", kind)
	}
}

// CompileCircuit compiles the named circuit and generates proving/verifying keys.
// This is a computationally expensive operation and should only be done once at
// startup per kind.
//
// The function uses PlonK with the BN254 curve. It uses an unsafe SRS
// (Structured Reference String) suitable for development and testing. For
// production use, a proper trusted setup ceremony should be conducted.
func CompileCircuit(kind Kind) (*CompiledCircuit, error) {
	// gnark logs compilation progress through its own zerolog instance,
	// which would bypass the application log stream.
	silenceOnce.Do(func() {
		gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))
	})

	circuit, err := newCircuit(kind)
	if err != nil {
		return nil, err
	}

	// Compile to sparse constraint system (SCS) for PlonK
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), scs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("compile %s circuit: %w", kind, err)
	}

	// Note: unsafekzg.NewSRS is for development/testing only.
	srs, srsLagrange, err := unsafekzg.NewSRS(cs)
	if err != nil {
		return nil, fmt.Errorf("generate SRS: %w", err)
	}

	pk, vk, err := plonk.Setup(cs, srs, srsLagrange)
	if err != nil {
		return nil, fmt.Errorf("setup keys: %w", err)
	}

	return &CompiledCircuit{
		Kind:             kind,
		ConstraintSystem: cs,
		ProvingKey:       pk,
		VerifyingKey:     vk,
	}, nil
}

// GetCompiledCircuit returns a cached compiled circuit for the given kind,
// compiling it on first call. This is thread-safe and returns the same
// instance for all callers.
func GetCompiledCircuit(kind Kind) (*CompiledCircuit, error) {
	compileMu.Lock()
	defer compileMu.Unlock()

	if compiled, ok := compiledCircuits[kind]; ok {
		return compiled, nil
	}

	compiled, err := CompileCircuit(kind)
	if err != nil {
		return nil, err
	}

	compiledCircuits[kind] = compiled
	return compiled, nil
}

// ResetCompiledCircuits clears the cache of compiled circuits.
// This is mainly useful for testing.
func ResetCompiledCircuits() {
	compileMu.Lock()
	defer compileMu.Unlock()
	compiledCircuits = make(map[Kind]*CompiledCircuit)
}
