// Package zkproof provides zero-knowledge proof functionality for privacy-preserving
// emergency authorization.
package zkproof

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
)

// testEmergencyWitness returns a declaration witness that satisfies every
// circuit constraint against testEmergencyPublic.
func testEmergencyWitness() EmergencyWitness {
	return EmergencyWitness{
		EmergencyType: 3,
		Timestamp:     1700000000,
		UserSecret:    big.NewInt(5555),
		Nonce:         big.NewInt(7777),
		Severity:      7,
	}
}

func testEmergencyPublic() EmergencyPublic {
	return EmergencyPublic{
		UserAddress:  big.NewInt(900001),
		MinTimestamp: 1699999999,
		MaxTimestamp: 1700000100,
	}
}

// emergencyTestAssignment derives outputs natively and builds a full assignment.
func emergencyTestAssignment(t testing.TB, w EmergencyWitness, pub EmergencyPublic) *EmergencyCircuit {
	t.Helper()
	out, err := ComputeEmergencyOutputs(w, pub)
	if err != nil {
		t.Fatalf("compute outputs: %v", err)
	}
	return w.assignment(pub, out)
}

// TestEmergencyCircuit_ValidDeclaration tests a declaration inside the window
// with all inputs in range.
func TestEmergencyCircuit_ValidDeclaration(t *testing.T) {
	assert := test.NewAssert(t)

	witness := emergencyTestAssignment(t, testEmergencyWitness(), testEmergencyPublic())

	var circuit EmergencyCircuit
	assert.ProverSucceeded(&circuit, witness, test.WithCurves(ecc.BN254))
}

// TestEmergencyCircuit_WindowBoundaries tests that the timestamp window is
// inclusive on both ends.
func TestEmergencyCircuit_WindowBoundaries(t *testing.T) {
	assert := test.NewAssert(t)
	pub := testEmergencyPublic()

	atMin := testEmergencyWitness()
	atMin.Timestamp = pub.MinTimestamp
	var circuit EmergencyCircuit
	assert.ProverSucceeded(&circuit, emergencyTestAssignment(t, atMin, pub), test.WithCurves(ecc.BN254))

	atMax := testEmergencyWitness()
	atMax.Timestamp = pub.MaxTimestamp
	assert.ProverSucceeded(&circuit, emergencyTestAssignment(t, atMax, pub), test.WithCurves(ecc.BN254))
}

// TestEmergencyCircuit_RejectsTimestampBeforeWindow tests that a declaration
// one second before the window fails proving.
func TestEmergencyCircuit_RejectsTimestampBeforeWindow(t *testing.T) {
	assert := test.NewAssert(t)
	pub := testEmergencyPublic()

	w := testEmergencyWitness()
	w.Timestamp = pub.MinTimestamp - 1

	var circuit EmergencyCircuit
	assert.ProverFailed(&circuit, emergencyTestAssignment(t, w, pub), test.WithCurves(ecc.BN254))
}

// TestEmergencyCircuit_RejectsTimestampAfterWindow tests that a declaration
// one second after the window fails proving.
func TestEmergencyCircuit_RejectsTimestampAfterWindow(t *testing.T) {
	assert := test.NewAssert(t)
	pub := testEmergencyPublic()

	w := testEmergencyWitness()
	w.Timestamp = pub.MaxTimestamp + 1

	var circuit EmergencyCircuit
	assert.ProverFailed(&circuit, emergencyTestAssignment(t, w, pub), test.WithCurves(ecc.BN254))
}

// TestEmergencyCircuit_RejectsTypeOutOfRange tests the emergency type bounds.
func TestEmergencyCircuit_RejectsTypeOutOfRange(t *testing.T) {
	assert := test.NewAssert(t)
	var circuit EmergencyCircuit

	low := testEmergencyWitness()
	low.EmergencyType = EmergencyTypeMin - 1
	assert.ProverFailed(&circuit, emergencyTestAssignment(t, low, testEmergencyPublic()), test.WithCurves(ecc.BN254))

	high := testEmergencyWitness()
	high.EmergencyType = EmergencyTypeMax + 1
	assert.ProverFailed(&circuit, emergencyTestAssignment(t, high, testEmergencyPublic()), test.WithCurves(ecc.BN254))
}

// TestEmergencyCircuit_RejectsSeverityOutOfRange tests the severity bounds.
func TestEmergencyCircuit_RejectsSeverityOutOfRange(t *testing.T) {
	assert := test.NewAssert(t)
	var circuit EmergencyCircuit

	low := testEmergencyWitness()
	low.Severity = SeverityMin - 1
	assert.ProverFailed(&circuit, emergencyTestAssignment(t, low, testEmergencyPublic()), test.WithCurves(ecc.BN254))

	high := testEmergencyWitness()
	high.Severity = SeverityMax + 1
	assert.ProverFailed(&circuit, emergencyTestAssignment(t, high, testEmergencyPublic()), test.WithCurves(ecc.BN254))
}

// TestEmergencyCircuit_RejectsZeroNonce tests that a zero nonce fails proving.
func TestEmergencyCircuit_RejectsZeroNonce(t *testing.T) {
	assert := test.NewAssert(t)

	w := testEmergencyWitness()
	w.Nonce = big.NewInt(0)

	var circuit EmergencyCircuit
	assert.ProverFailed(&circuit, emergencyTestAssignment(t, w, testEmergencyPublic()), test.WithCurves(ecc.BN254))
}

// TestEmergencyCircuit_RejectsTamperedTag tests that a validity tag not derived
// from the published hash and commitment fails proving.
func TestEmergencyCircuit_RejectsTamperedTag(t *testing.T) {
	assert := test.NewAssert(t)

	witness := emergencyTestAssignment(t, testEmergencyWitness(), testEmergencyPublic())
	witness.ValidityTag = big.NewInt(31337)

	var circuit EmergencyCircuit
	assert.ProverFailed(&circuit, witness, test.WithCurves(ecc.BN254))
}

func TestComputeEmergencyOutputs(t *testing.T) {
	w := testEmergencyWitness()
	pub := testEmergencyPublic()

	t.Run("matches manual hashes", func(t *testing.T) {
		out, err := ComputeEmergencyOutputs(w, pub)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantHash := mustHash(t,
			big.NewInt(int64(w.EmergencyType)), big.NewInt(w.Timestamp), pub.UserAddress, w.Nonce)
		if out.EmergencyHash.Cmp(wantHash) != 0 {
			t.Fatal("emergency hash mismatch")
		}

		wantTag := mustHash(t, out.EmergencyHash, out.Commitment)
		if out.ValidityTag.Cmp(wantTag) != 0 {
			t.Fatal("validity tag mismatch")
		}
	})

	t.Run("severity commitment hides severity behind the secret", func(t *testing.T) {
		out1, err := ComputeEmergencyOutputs(w, pub)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		w2 := w
		w2.Severity = 8
		out2, err := ComputeEmergencyOutputs(w2, pub)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if out1.SeverityCommitment.Cmp(out2.SeverityCommitment) == 0 {
			t.Fatal("different severities should produce different commitments")
		}
		if out1.EmergencyHash.Cmp(out2.EmergencyHash) != 0 {
			t.Fatal("emergency hash should not depend on severity")
		}
	})

	t.Run("nonce separates identical declarations", func(t *testing.T) {
		out1, err := ComputeEmergencyOutputs(w, pub)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		w2 := w
		w2.Nonce = big.NewInt(8888)
		out2, err := ComputeEmergencyOutputs(w2, pub)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if out1.EmergencyHash.Cmp(out2.EmergencyHash) == 0 {
			t.Fatal("different nonces should produce different emergency hashes")
		}
	})
}
