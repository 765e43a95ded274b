// Package keystore manages guardian key material: a BIP-39 recoverable
// master seed and the field-element secrets and nullifiers derived from it.
// All derivations are deterministic, so recovering the mnemonic recovers
// every secret the guardian has ever used.
package keystore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// Derivation constants.
const (
	// identitySecretInfo separates the identity/emergency secret domain.
	identitySecretInfo = "aegisvault-identity-secret-v1"

	// guardianSecretInfo separates the authorization secret domain.
	guardianSecretInfo = "aegisvault-guardian-secret-v1"

	// nullifierInfo separates the per-counter nullifier domain.
	nullifierInfo = "aegisvault-nullifier-v1"

	// deriveLength is how many HKDF bytes feed each field derivation. Wide
	// reads keep the mod-r reduction statistically uniform.
	deriveLength = 64
)

// ErrInvalidMnemonic is returned when an invalid BIP-39 mnemonic phrase is provided.
var ErrInvalidMnemonic = errors.New("keystore: invalid mnemonic phrase")

// Keystore holds a guardian's master seed. It is safe for concurrent use:
// the seed never changes after construction.
type Keystore struct {
	seed      []byte
	createdAt time.Time
}

// New generates a fresh keystore with a BIP-39 mnemonic for recovery.
// The mnemonic is 24 words and should be written down by the guardian.
// Returns the keystore and the mnemonic string.
func New() (*Keystore, string, error) {
	entropy, err := bip39.NewEntropy(256) // 24 words
	if err != nil {
		return nil, "", err
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", err
	}

	ks, err := FromMnemonic(mnemonic)
	if err != nil {
		return nil, "", err
	}

	return ks, mnemonic, nil
}

// FromMnemonic recovers a keystore from a BIP-39 mnemonic. This is
// deterministic - the same mnemonic always yields the same secrets.
func FromMnemonic(mnemonic string) (*Keystore, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	// Derive seed from mnemonic (no passphrase)
	seed := bip39.NewSeed(mnemonic, "")

	return &Keystore{seed: seed, createdAt: time.Now().UTC()}, nil
}

// CreatedAt returns when this keystore instance was built or loaded.
func (k *Keystore) CreatedAt() time.Time {
	return k.createdAt
}

// IdentitySecret derives the secret used by the identity and emergency
// provers. It is stable across the keystore's lifetime.
func (k *Keystore) IdentitySecret() (*big.Int, error) {
	return k.derive(nil, identitySecretInfo)
}

// GuardianSecret derives the secret used by the authorization prover.
// It lives in its own HKDF domain so an authorization transcript reveals
// nothing about the identity secret.
func (k *Keystore) GuardianSecret() (*big.Int, error) {
	return k.derive(nil, guardianSecretInfo)
}

// Address returns the owner's public address, the hash of the identity
// secret. It can be shared freely and is what emergency declarations bind
// to as the public user address.
func (k *Keystore) Address() (*big.Int, error) {
	secret, err := k.IdentitySecret()
	if err != nil {
		return nil, err
	}
	return zkproof.HashFields(secret)
}

// NullifierAt derives the nullifier for the counter-th membership proof.
// Each counter value yields an independent nullifier; spending one never
// links to or invalidates another.
func (k *Keystore) NullifierAt(counter uint64) (*big.Int, error) {
	salt := make([]byte, 8)
	binary.BigEndian.PutUint64(salt, counter)
	return k.derive(salt, nullifierInfo)
}

// derive reads HKDF output for the given salt and domain info string and
// reduces it to a nonzero field element.
func (k *Keystore) derive(salt []byte, info string) (*big.Int, error) {
	reader := hkdf.New(sha256.New, k.seed, salt, []byte(info))

	buf := make([]byte, deriveLength)
	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			return nil, fmt.Errorf("derive %s: %w", info, err)
		}
		v := zkproof.FieldFromBytes(buf)
		if v.Sign() != 0 {
			return v, nil
		}
	}
}

// RandomNonce draws a fresh nonzero field element from the system entropy
// source. Nonces are single-use blinding values and are never derived from
// the seed, so two declarations of the same emergency stay unlinkable.
func RandomNonce() (*big.Int, error) {
	buf := make([]byte, deriveLength)
	for {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return nil, fmt.Errorf("draw nonce: %w", err)
		}
		v := zkproof.FieldFromBytes(buf)
		if v.Sign() != 0 {
			return v, nil
		}
	}
}
