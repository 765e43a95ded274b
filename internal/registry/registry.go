// Package registry maintains the guardian registry: the set of identity
// commitments allowed to respond to emergencies, arranged in the sparse
// commitment tree that membership proofs are checked against. The registry is
// loaded from a versioned JSON snapshot and can be hot-reloaded while the
// keeper runs; proofs only verify against the root version they were built
// for.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"

	"github.com/mr-tron/base58"

	"github.com/aegisvault/aegisvault/pkg/merkle"
	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

// Errors returned by the Registry.
var (
	// ErrWrongDepth is returned when a snapshot's tree depth does not match
	// the identity circuit.
	ErrWrongDepth = errors.New("registry: snapshot depth does not match circuit depth")

	// ErrDuplicateIndex is returned when a snapshot assigns two guardians the
	// same leaf.
	ErrDuplicateIndex = errors.New("registry: duplicate guardian index")

	// ErrBadCommitment is returned when a guardian commitment does not decode
	// to a usable field element.
	ErrBadCommitment = errors.New("registry: malformed guardian commitment")

	// ErrNoGuardian is returned when no guardian occupies the requested leaf.
	ErrNoGuardian = errors.New("registry: no guardian at index")
)

// Guardian is one registered identity commitment.
type Guardian struct {
	// Index is the leaf position in the commitment tree.
	Index uint64 `json:"index"`

	// Commitment is the base58-encoded 32-byte identity commitment.
	Commitment string `json:"commitment"`
}

// Snapshot is the on-disk registry format.
type Snapshot struct {
	// Version increases every time the guardian set changes.
	Version uint64 `json:"version"`

	// Depth is the commitment tree depth; zero means the circuit default.
	Depth int `json:"depth,omitempty"`

	// Guardians lists the registered commitments.
	Guardians []Guardian `json:"guardians"`
}

// Registry is the in-memory registry state. It is safe for concurrent use;
// Reload swaps the whole state under the lock.
type Registry struct {
	mu   sync.RWMutex
	path string

	version    uint64
	tree       *merkle.Tree
	byIndex    map[uint64]*big.Int
	indexByKey map[string]uint64
}

// Load reads a registry snapshot from path and builds the commitment tree.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the snapshot from disk. On any error the previous state is
// kept, so a malformed republish never takes a running keeper down.
func (r *Registry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read registry snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("parse registry snapshot: %w", err)
	}

	depth := snapshot.Depth
	if depth == 0 {
		depth = zkproof.MerkleDepth
	}
	if depth != zkproof.MerkleDepth {
		return fmt.Errorf("%w: got %d, expected %d", ErrWrongDepth, depth, zkproof.MerkleDepth)
	}

	tree, err := merkle.NewTree(depth)
	if err != nil {
		return err
	}

	byIndex := make(map[uint64]*big.Int, len(snapshot.Guardians))
	indexByKey := make(map[string]uint64, len(snapshot.Guardians))
	for _, g := range snapshot.Guardians {
		if _, exists := byIndex[g.Index]; exists {
			return fmt.Errorf("%w: %d", ErrDuplicateIndex, g.Index)
		}

		commitment, err := DecodeCommitment(g.Commitment)
		if err != nil {
			return fmt.Errorf("guardian %d: %w", g.Index, err)
		}
		if err := tree.Insert(g.Index, commitment); err != nil {
			return fmt.Errorf("guardian %d: %w", g.Index, err)
		}

		byIndex[g.Index] = commitment
		key, err := zkproof.FieldBytes(commitment)
		if err != nil {
			return fmt.Errorf("guardian %d: %w", g.Index, err)
		}
		indexByKey[base58.Encode(key)] = g.Index
	}

	r.mu.Lock()
	r.version = snapshot.Version
	r.tree = tree
	r.byIndex = byIndex
	r.indexByKey = indexByKey
	r.mu.Unlock()

	return nil
}

// Root returns the current tree root and the snapshot version it belongs to.
func (r *Registry) Root() (*big.Int, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tree.Root(), r.version
}

// Version returns the current snapshot version.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Size returns the number of registered guardians.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tree.Size()
}

// Commitment returns the commitment registered at a leaf.
func (r *Registry) Commitment(index uint64) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commitment, ok := r.byIndex[index]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoGuardian, index)
	}
	return new(big.Int).Set(commitment), nil
}

// FindCommitment returns the leaf index of a commitment, if registered.
func (r *Registry) FindCommitment(commitment *big.Int) (uint64, bool) {
	key, err := zkproof.FieldBytes(commitment)
	if err != nil {
		return 0, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	index, ok := r.indexByKey[base58.Encode(key)]
	return index, ok
}

// ProofFor returns the authentication path for the guardian at index,
// together with the root version the path belongs to.
func (r *Registry) ProofFor(index uint64) ([]*big.Int, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	siblings, err := r.tree.Proof(index)
	if err != nil {
		if errors.Is(err, merkle.ErrLeafNotSet) {
			return nil, 0, fmt.Errorf("%w: %d", ErrNoGuardian, index)
		}
		return nil, 0, err
	}
	return siblings, r.version, nil
}

// EncodeCommitment renders a commitment in the snapshot's base58 encoding.
func EncodeCommitment(commitment *big.Int) (string, error) {
	b, err := zkproof.FieldBytes(commitment)
	if err != nil {
		return "", ErrBadCommitment
	}
	return base58.Encode(b), nil
}

// DecodeCommitment parses a base58 commitment into a field element.
func DecodeCommitment(encoded string) (*big.Int, error) {
	b, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCommitment, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes, expected 32", ErrBadCommitment, len(b))
	}

	commitment := zkproof.FieldFromBytes(b)
	if commitment.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero commitment", ErrBadCommitment)
	}
	return commitment, nil
}
