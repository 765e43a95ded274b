// Package nullifier tracks consumed identity nullifiers so a membership proof
// cannot be replayed across responses. Every accepted identity proof consumes
// its nullifier hash exactly once; a second appearance is a replay.
//
// The store is safe for concurrent use.
package nullifier

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// Errors returned by the Store.
var (
	// ErrReplayDetected is returned when a nullifier hash was already consumed.
	ErrReplayDetected = errors.New("nullifier: nullifier hash already consumed")

	// ErrNilNullifier is returned when the nullifier hash is missing.
	ErrNilNullifier = errors.New("nullifier: nil nullifier hash")

	// ErrStoreAtCapacity is returned when the store holds MaxEntries records.
	ErrStoreAtCapacity = errors.New("nullifier: store at capacity")
)

// MaxEntries bounds the number of tracked nullifiers to prevent memory
// exhaustion from a flood of responses.
const MaxEntries = 1 << 20

// Store records consumed nullifier hashes keyed by their base58 digest.
type Store struct {
	mu   sync.RWMutex
	seen map[string]*record
}

// record holds the consumption metadata for one nullifier hash.
type record struct {
	nullifierHash *big.Int
	rootVersion   uint64
	seenAt        time.Time
}

// NewStore creates an empty nullifier store.
func NewStore() *Store {
	return &Store{seen: make(map[string]*record)}
}

// Key returns the base58 digest a nullifier hash is tracked under.
func Key(nullifierHash *big.Int) (string, error) {
	b, err := zkproof.FieldBytes(nullifierHash)
	if err != nil {
		return "", ErrNilNullifier
	}
	return base58.Encode(b), nil
}

// CheckAndInsert atomically consumes a nullifier hash. The first call for a
// given hash records the registry root version it was verified against and
// succeeds; every later call returns ErrReplayDetected.
func (s *Store) CheckAndInsert(nullifierHash *big.Int, rootVersion uint64) error {
	key, err := Key(nullifierHash)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return ErrReplayDetected
	}
	if len(s.seen) >= MaxEntries {
		return ErrStoreAtCapacity
	}

	s.seen[key] = &record{
		nullifierHash: new(big.Int).Set(nullifierHash),
		rootVersion:   rootVersion,
		seenAt:        time.Now().UTC(),
	}

	return nil
}

// Seen reports whether a nullifier hash has been consumed.
func (s *Store) Seen(nullifierHash *big.Int) bool {
	key, err := Key(nullifierHash)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.seen[key]
	return exists
}

// Size returns the number of consumed nullifiers.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Stats returns the total number of consumed nullifiers and a per-root-version
// breakdown.
func (s *Store) Stats() (total int, byRootVersion map[uint64]int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byRootVersion = make(map[uint64]int)
	for _, rec := range s.seen {
		byRootVersion[rec.rootVersion]++
	}
	return len(s.seen), byRootVersion
}
