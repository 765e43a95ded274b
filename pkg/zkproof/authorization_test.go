// Package zkproof provides zero-knowledge proof functionality for privacy-preserving
// emergency authorization.
package zkproof

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
)

// testAuthorizationWitness returns an approval witness that satisfies every
// circuit constraint against testAuthorizationPublic.
func testAuthorizationWitness() AuthorizationWitness {
	return AuthorizationWitness{
		GuardianSecret: big.NewInt(424242),
		OperationType:  5,
		AuthNonce:      big.NewInt(13579),
		GuardianIndex:  2,
	}
}

func testAuthorizationPublic() AuthorizationPublic {
	return AuthorizationPublic{
		TargetAddress:  big.NewInt(800001),
		Amount:         big.NewInt(500),
		Timestamp:      1700000050,
		EmergencyLevel: 2,
		MinAuthLevel:   1,
	}
}

// authorizationTestAssignment derives outputs natively and builds a full assignment.
func authorizationTestAssignment(t testing.TB, w AuthorizationWitness, pub AuthorizationPublic) *AuthorizationCircuit {
	t.Helper()
	out, err := ComputeAuthorizationOutputs(w, pub)
	if err != nil {
		t.Fatalf("compute outputs: %v", err)
	}
	return w.assignment(pub, out)
}

// TestAuthorizationCircuit_ValidApproval tests a low-value approval at an
// adequate emergency level.
func TestAuthorizationCircuit_ValidApproval(t *testing.T) {
	assert := test.NewAssert(t)

	witness := authorizationTestAssignment(t, testAuthorizationWitness(), testAuthorizationPublic())

	var circuit AuthorizationCircuit
	assert.ProverSucceeded(&circuit, witness, test.WithCurves(ecc.BN254))
}

// TestAuthorizationCircuit_HighValueAtEscalatedLevel tests that an amount above
// the threshold proves at level 2.
func TestAuthorizationCircuit_HighValueAtEscalatedLevel(t *testing.T) {
	assert := test.NewAssert(t)

	pub := testAuthorizationPublic()
	pub.Amount = big.NewInt(2000)
	pub.EmergencyLevel = 2

	witness := authorizationTestAssignment(t, testAuthorizationWitness(), pub)

	var circuit AuthorizationCircuit
	assert.ProverSucceeded(&circuit, witness, test.WithCurves(ecc.BN254))
}

// TestAuthorizationCircuit_RejectsHighValueAtLevelOne tests that an amount
// above the threshold cannot prove at level 1.
func TestAuthorizationCircuit_RejectsHighValueAtLevelOne(t *testing.T) {
	assert := test.NewAssert(t)

	pub := testAuthorizationPublic()
	pub.Amount = big.NewInt(2000)
	pub.EmergencyLevel = 1

	witness := authorizationTestAssignment(t, testAuthorizationWitness(), pub)

	var circuit AuthorizationCircuit
	assert.ProverFailed(&circuit, witness, test.WithCurves(ecc.BN254))
}

// TestAuthorizationCircuit_ThresholdBoundary tests that exactly the threshold
// amount passes at level 1 and one unit above it does not.
func TestAuthorizationCircuit_ThresholdBoundary(t *testing.T) {
	assert := test.NewAssert(t)
	var circuit AuthorizationCircuit

	atThreshold := testAuthorizationPublic()
	atThreshold.Amount = big.NewInt(HighValueThreshold)
	atThreshold.EmergencyLevel = 1
	assert.ProverSucceeded(&circuit,
		authorizationTestAssignment(t, testAuthorizationWitness(), atThreshold), test.WithCurves(ecc.BN254))

	oneOver := testAuthorizationPublic()
	oneOver.Amount = big.NewInt(HighValueThreshold + 1)
	oneOver.EmergencyLevel = 1
	assert.ProverFailed(&circuit,
		authorizationTestAssignment(t, testAuthorizationWitness(), oneOver), test.WithCurves(ecc.BN254))
}

// TestAuthorizationCircuit_RejectsLevelBelowMinimum tests the public policy
// floor on the emergency level.
func TestAuthorizationCircuit_RejectsLevelBelowMinimum(t *testing.T) {
	assert := test.NewAssert(t)

	pub := testAuthorizationPublic()
	pub.EmergencyLevel = 1
	pub.MinAuthLevel = 2

	witness := authorizationTestAssignment(t, testAuthorizationWitness(), pub)

	var circuit AuthorizationCircuit
	assert.ProverFailed(&circuit, witness, test.WithCurves(ecc.BN254))
}

// TestAuthorizationCircuit_RejectsOperationTypeOutOfRange tests the operation
// type bounds.
func TestAuthorizationCircuit_RejectsOperationTypeOutOfRange(t *testing.T) {
	assert := test.NewAssert(t)
	var circuit AuthorizationCircuit

	low := testAuthorizationWitness()
	low.OperationType = OperationTypeMin - 1
	assert.ProverFailed(&circuit,
		authorizationTestAssignment(t, low, testAuthorizationPublic()), test.WithCurves(ecc.BN254))

	high := testAuthorizationWitness()
	high.OperationType = OperationTypeMax + 1
	assert.ProverFailed(&circuit,
		authorizationTestAssignment(t, high, testAuthorizationPublic()), test.WithCurves(ecc.BN254))
}

// TestAuthorizationCircuit_RejectsZeroGuardianSecret tests that a zero guardian
// secret fails proving.
func TestAuthorizationCircuit_RejectsZeroGuardianSecret(t *testing.T) {
	assert := test.NewAssert(t)

	w := testAuthorizationWitness()
	w.GuardianSecret = big.NewInt(0)

	var circuit AuthorizationCircuit
	assert.ProverFailed(&circuit,
		authorizationTestAssignment(t, w, testAuthorizationPublic()), test.WithCurves(ecc.BN254))
}

// TestAuthorizationCircuit_RejectsZeroTargetAddress tests that a zero target
// address fails proving.
func TestAuthorizationCircuit_RejectsZeroTargetAddress(t *testing.T) {
	assert := test.NewAssert(t)

	pub := testAuthorizationPublic()
	pub.TargetAddress = big.NewInt(0)

	witness := authorizationTestAssignment(t, testAuthorizationWitness(), pub)

	var circuit AuthorizationCircuit
	assert.ProverFailed(&circuit, witness, test.WithCurves(ecc.BN254))
}

// TestAuthorizationCircuit_RejectsTamperedTag tests that an authorization tag
// not derived from the published hashes fails proving.
func TestAuthorizationCircuit_RejectsTamperedTag(t *testing.T) {
	assert := test.NewAssert(t)

	witness := authorizationTestAssignment(t, testAuthorizationWitness(), testAuthorizationPublic())
	witness.AuthorizationTag = big.NewInt(31337)

	var circuit AuthorizationCircuit
	assert.ProverFailed(&circuit, witness, test.WithCurves(ecc.BN254))
}

func TestComputeAuthorizationOutputs(t *testing.T) {
	w := testAuthorizationWitness()
	pub := testAuthorizationPublic()

	t.Run("matches manual hashes", func(t *testing.T) {
		out, err := ComputeAuthorizationOutputs(w, pub)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantHash := mustHash(t,
			big.NewInt(int64(w.OperationType)), pub.TargetAddress, pub.Amount, big.NewInt(pub.Timestamp))
		if out.AuthHash.Cmp(wantHash) != 0 {
			t.Fatal("auth hash mismatch")
		}

		wantTag := mustHash(t, out.AuthHash, out.OperationCommitment)
		if out.AuthorizationTag.Cmp(wantTag) != 0 {
			t.Fatal("authorization tag mismatch")
		}
	})

	t.Run("guardian commitment binds the index", func(t *testing.T) {
		out1, err := ComputeAuthorizationOutputs(w, pub)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		w2 := w
		w2.GuardianIndex = 3
		out2, err := ComputeAuthorizationOutputs(w2, pub)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if out1.GuardianCommitment.Cmp(out2.GuardianCommitment) == 0 {
			t.Fatal("different guardian indices should produce different commitments")
		}
		if out1.AuthHash.Cmp(out2.AuthHash) != 0 {
			t.Fatal("auth hash should not depend on the guardian")
		}
	})

	t.Run("operation commitment binds the level", func(t *testing.T) {
		pub2 := pub
		pub2.EmergencyLevel = 3

		out1, err := ComputeAuthorizationOutputs(w, pub)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out2, err := ComputeAuthorizationOutputs(w, pub2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if out1.OperationCommitment.Cmp(out2.OperationCommitment) == 0 {
			t.Fatal("different levels should produce different operation commitments")
		}
	})
}
