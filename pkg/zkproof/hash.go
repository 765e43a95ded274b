// Package zkproof provides zero-knowledge proof functionality for privacy-preserving
// emergency authorization. It defines three PlonK circuits over BN254: identity
// membership (Merkle inclusion of an identity commitment), emergency declaration
// (typed, time-windowed emergency commitments), and operation authorization
// (guardian approval with level-gated escalation). All three bind their statements
// with the same circuit-friendly MiMC hash, mirrored natively in this package so
// provers and verifiers agree on every commitment byte for byte.
package zkproof

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

var (
	// ErrNilFieldValue is returned when a nil *big.Int is passed where a field
	// element is required.
	ErrNilFieldValue = errors.New("zkproof: nil field value")
)

// HashFields computes the MiMC hash of the given field elements, matching the
// in-circuit mimc gadget exactly. Inputs are reduced into the BN254 scalar field
// before hashing, so callers may pass arbitrary big integers.
//
// This is the single hash primitive shared by all three circuits. Every
// commitment, nullifier hash and binding tag in this package is a HashFields
// of some tuple, natively here and with the mimc gadget in-circuit.
func HashFields(inputs ...*big.Int) (*big.Int, error) {
	h := mimc.NewMiMC()
	for _, in := range inputs {
		if in == nil {
			return nil, ErrNilFieldValue
		}
		var elem fr.Element
		elem.SetBigInt(in)
		b := elem.Bytes()
		h.Write(b[:])
	}

	var result fr.Element
	result.SetBytes(h.Sum(nil))

	return result.BigInt(new(big.Int)), nil
}

// FieldBytes encodes a field element as a fixed 32-byte big-endian value,
// reduced into the BN254 scalar field. This is the canonical encoding used
// for registry snapshots and bundle serialization.
func FieldBytes(v *big.Int) ([]byte, error) {
	if v == nil {
		return nil, ErrNilFieldValue
	}
	var elem fr.Element
	elem.SetBigInt(v)
	b := elem.Bytes()
	out := make([]byte, len(b))
	copy(out, b[:])
	return out, nil
}

// FieldFromBytes decodes a big-endian byte value into a field element,
// reducing it into the BN254 scalar field.
func FieldFromBytes(b []byte) *big.Int {
	var elem fr.Element
	elem.SetBytes(b)
	return elem.BigInt(new(big.Int))
}

// fieldEqual reports whether two big integers represent the same BN254 scalar.
func fieldEqual(a, b *big.Int) bool {
	var ea, eb fr.Element
	ea.SetBigInt(a)
	eb.SetBigInt(b)
	return ea.Equal(&eb)
}

// fieldIsZero reports whether v reduces to zero in the BN254 scalar field.
func fieldIsZero(v *big.Int) bool {
	var elem fr.Element
	elem.SetBigInt(v)
	return elem.IsZero()
}
