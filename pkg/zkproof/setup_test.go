// Package zkproof provides zero-knowledge proof functionality for privacy-preserving
// emergency authorization.
package zkproof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompileCircuit_AllKinds tests that each circuit kind compiles and yields
// a usable key pair.
func TestCompileCircuit_AllKinds(t *testing.T) {
	for _, kind := range Kinds() {
		kind := kind
		t.Run(string(kind), func(t *testing.T) {
			compiled, err := CompileCircuit(kind)
			require.NoError(t, err, "CompileCircuit should not return an error")
			require.NotNil(t, compiled, "compiled circuit should not be nil")

			assert.Equal(t, kind, compiled.Kind)
			assert.NotNil(t, compiled.ConstraintSystem, "constraint system should not be nil")
			assert.Greater(t, compiled.ConstraintSystem.GetNbConstraints(), 0, "should have constraints")
			assert.NotNil(t, compiled.ProvingKey, "proving key should not be nil")
			assert.NotNil(t, compiled.VerifyingKey, "verifying key should not be nil")

			t.Logf("%s circuit has %d constraints", kind, compiled.ConstraintSystem.GetNbConstraints())
		})
	}
}

// TestCompileCircuit_UnknownKind tests that an unknown kind is rejected.
func TestCompileCircuit_UnknownKind(t *testing.T) {
	compiled, err := CompileCircuit(Kind("hamming"))
	assert.Error(t, err)
	assert.Nil(t, compiled)
}

// TestGetCompiledCircuit_CachesPerKind tests that the cache returns the same
// instance per kind and distinct instances across kinds.
func TestGetCompiledCircuit_CachesPerKind(t *testing.T) {
	identity, err := GetCompiledCircuit(KindIdentity)
	require.NoError(t, err)

	identityAgain, err := GetCompiledCircuit(KindIdentity)
	require.NoError(t, err)
	require.Same(t, identity, identityAgain, "should return cached instance")

	emergency, err := GetCompiledCircuit(KindEmergency)
	require.NoError(t, err)
	require.NotSame(t, identity, emergency, "kinds should compile independently")
}

// TestResetCompiledCircuits tests that the cache is cleared.
func TestResetCompiledCircuits(t *testing.T) {
	compiled1, err := GetCompiledCircuit(KindIdentity)
	require.NoError(t, err)

	ResetCompiledCircuits()

	compiled2, err := GetCompiledCircuit(KindIdentity)
	require.NoError(t, err)

	assert.NotSame(t, compiled1, compiled2, "should return new instance after reset")
}

// TestGetCompiledCircuit_ConcurrentAccess tests thread safety of the cache.
func TestGetCompiledCircuit_ConcurrentAccess(t *testing.T) {
	ResetCompiledCircuits()

	done := make(chan struct{})
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		go func(i int) {
			kind := Kinds()[i%len(Kinds())]
			compiled, err := GetCompiledCircuit(kind)
			if err != nil {
				errs <- err
				return
			}
			if compiled == nil {
				errs <- assert.AnError
				return
			}
			done <- struct{}{}
		}(i)
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case err := <-errs:
			t.Errorf("concurrent access failed: %v", err)
		}
	}
}

// TestKinds_PipelineOrder tests that the kinds list covers the pipeline.
func TestKinds_PipelineOrder(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, 3)
	assert.Equal(t, KindIdentity, kinds[0])
	assert.Equal(t, KindEmergency, kinds[1])
	assert.Equal(t, KindAuthorization, kinds[2])
}

// BenchmarkCompileCircuit measures compilation and setup time per kind.
func BenchmarkCompileCircuit(b *testing.B) {
	for _, kind := range Kinds() {
		kind := kind
		b.Run(string(kind), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := CompileCircuit(kind); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkProve measures proof generation time for the emergency circuit.
func BenchmarkProve(b *testing.B) {
	compiled, err := GetCompiledCircuit(KindEmergency)
	if err != nil {
		b.Fatal(err)
	}

	prover := NewEmergencyProver(compiled)
	w := testEmergencyWitness()
	pub := testEmergencyPublic()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := prover.Prove(w, pub); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkVerify measures proof verification time for the emergency circuit.
func BenchmarkVerify(b *testing.B) {
	compiled, err := GetCompiledCircuit(KindEmergency)
	if err != nil {
		b.Fatal(err)
	}

	prover := NewEmergencyProver(compiled)
	verifier := NewEmergencyVerifier(compiled)

	result, err := prover.Prove(testEmergencyWitness(), testEmergencyPublic())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := verifier.Verify(result.Proof, result.Public, result.Outputs); err != nil {
			b.Fatal(err)
		}
	}
}
