// Package authz provides the proof authorization service.
package authz

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// mustEncodeField encodes a small integer as a canonical field digest.
func mustEncodeField(t *testing.T, v int64) string {
	t.Helper()
	encoded, err := encodeField(big.NewInt(v))
	require.NoError(t, err, "encodeField should not fail on a test value")
	return encoded
}

// fabricatedProof is a stand-in proof body for structural tests.
var fabricatedProof = []byte{0x01, 0x02, 0x03, 0x04}

// testEmergencyBundle builds a structurally valid emergency bundle whose
// proof bytes are fabricated.
func testEmergencyBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := newBundle(zkproof.KindEmergency, fabricatedProof, EmergencyPayload{
		UserAddress:        mustEncodeField(t, 900001),
		MinTimestamp:       1699999999,
		MaxTimestamp:       1700000100,
		EmergencyHash:      mustEncodeField(t, 111),
		Commitment:         mustEncodeField(t, 222),
		SeverityCommitment: mustEncodeField(t, 333),
		ValidityTag:        mustEncodeField(t, 444),
	})
	require.NoError(t, err, "newBundle should wrap a valid payload")
	return b
}

// testIdentityBundle builds a structurally valid identity bundle whose proof
// bytes are fabricated.
func testIdentityBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := newBundle(zkproof.KindIdentity, fabricatedProof, IdentityPayload{
		MerkleRoot:    mustEncodeField(t, 101),
		EmergencyHash: mustEncodeField(t, 102),
		NullifierHash: mustEncodeField(t, 103),
		Commitment:    mustEncodeField(t, 104),
		Valid:         true,
	})
	require.NoError(t, err)
	b.RootVersion = 3
	return b
}

// testAuthorizationBundle builds a structurally valid authorization bundle
// whose proof bytes are fabricated.
func testAuthorizationBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := newBundle(zkproof.KindAuthorization, fabricatedProof, AuthorizationPayload{
		TargetAddress:       mustEncodeField(t, 800001),
		Amount:              mustEncodeField(t, 500),
		Timestamp:           1700000050,
		EmergencyLevel:      2,
		MinAuthLevel:        1,
		AuthHash:            mustEncodeField(t, 201),
		OperationCommitment: mustEncodeField(t, 202),
		GuardianCommitment:  mustEncodeField(t, 203),
		AuthorizationTag:    mustEncodeField(t, 204),
	})
	require.NoError(t, err)
	return b
}

func TestNewBundleEnvelope(t *testing.T) {
	b := testEmergencyBundle(t)

	_, err := uuid.Parse(b.ID)
	assert.NoError(t, err, "bundle ID should be a UUID")
	assert.Equal(t, zkproof.KindEmergency, b.Kind)
	assert.Equal(t, zkproof.SchemeID, b.Scheme, "bundles should carry the scheme tag")
	assert.False(t, b.CreatedAt.IsZero(), "bundles should be timestamped")
	assert.Equal(t, fabricatedProof, b.Proof)
}

func TestBundleIDsAreUnique(t *testing.T) {
	a := testEmergencyBundle(t)
	b := testEmergencyBundle(t)
	assert.NotEqual(t, a.ID, b.ID, "each bundle should get a fresh ID")
}

func TestBundleEncodeDecodeRoundTrip(t *testing.T) {
	original := testAuthorizationBundle(t)

	data, err := original.Encode()
	require.NoError(t, err, "Encode should succeed")

	decoded, err := DecodeBundle(data)
	require.NoError(t, err, "DecodeBundle should parse Encode output")

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Kind, decoded.Kind)
	assert.Equal(t, original.Scheme, decoded.Scheme)
	assert.Equal(t, original.Proof, decoded.Proof)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt), "created_at should round-trip")

	want, err := original.AuthorizationPayload()
	require.NoError(t, err)
	got, err := decoded.AuthorizationPayload()
	require.NoError(t, err)
	assert.Equal(t, want, got, "payload should round-trip")
}

func TestDecodeBundleRejectsGarbage(t *testing.T) {
	_, err := DecodeBundle([]byte("{not json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBundleMalformed)
}

func TestPayloadAccessorsCheckKind(t *testing.T) {
	b := testEmergencyBundle(t)

	_, err := b.IdentityPayload()
	require.Error(t, err, "emergency bundle should not decode as identity")
	assert.ErrorIs(t, err, ErrBundleMalformed)

	_, err = b.AuthorizationPayload()
	require.Error(t, err, "emergency bundle should not decode as authorization")
	assert.ErrorIs(t, err, ErrBundleMalformed)

	_, err = b.EmergencyPayload()
	assert.NoError(t, err, "emergency bundle should decode as emergency")
}

func TestIdentityPayloadReconstruction(t *testing.T) {
	b := testIdentityBundle(t)

	p, err := b.IdentityPayload()
	require.NoError(t, err)

	pub, err := p.PublicInputs()
	require.NoError(t, err, "PublicInputs should decode")
	assert.Equal(t, int64(101), pub.MerkleRoot.Int64())
	assert.Equal(t, int64(102), pub.EmergencyHash.Int64())

	out, err := p.ProofOutputs()
	require.NoError(t, err, "ProofOutputs should decode")
	assert.Equal(t, int64(103), out.NullifierHash.Int64())
	assert.Equal(t, int64(104), out.Commitment.Int64())
	assert.True(t, out.Valid)
}

func TestAuthorizationPayloadReconstruction(t *testing.T) {
	b := testAuthorizationBundle(t)

	p, err := b.AuthorizationPayload()
	require.NoError(t, err)

	pub, err := p.PublicInputs()
	require.NoError(t, err)
	assert.Equal(t, int64(800001), pub.TargetAddress.Int64())
	assert.Equal(t, int64(500), pub.Amount.Int64())
	assert.Equal(t, int64(1700000050), pub.Timestamp)
	assert.Equal(t, 2, pub.EmergencyLevel)
	assert.Equal(t, 1, pub.MinAuthLevel)

	out, err := p.ProofOutputs()
	require.NoError(t, err)
	assert.Equal(t, int64(201), out.AuthHash.Int64())
	assert.Equal(t, int64(204), out.AuthorizationTag.Int64())
}

func TestFieldCodecRoundTrip(t *testing.T) {
	values := []*big.Int{
		big.NewInt(1),
		big.NewInt(1700000000),
		new(big.Int).Lsh(big.NewInt(1), 250),
	}

	for _, want := range values {
		encoded, err := encodeField(want)
		require.NoError(t, err)

		got, err := decodeField(encoded)
		require.NoError(t, err)
		assert.Equal(t, 0, want.Cmp(got), "field value should round-trip through base58")
	}
}

func TestDecodeFieldRejectsBadInput(t *testing.T) {
	_, err := decodeField("not-base58-0OIl")
	assert.Error(t, err, "non-base58 input should be rejected")

	_, err = decodeField("3yZe7d")
	assert.Error(t, err, "short input should be rejected")

	_, err = encodeField(nil)
	assert.Error(t, err, "nil field value should be rejected")
}
