// Package merkle implements the sparse commitment tree backing the identity
// registry. Empty nodes are zero at every level, so the authentication path of
// the first leaf in an otherwise empty tree is all zeros and the tree never
// hashes subtrees that contain no commitments. The fold matches the in-circuit
// membership check bit for bit.
package merkle

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/aegisvault/aegisvault/pkg/zkproof"
)

var (
	// ErrInvalidDepth is returned when the requested tree depth is unusable.
	ErrInvalidDepth = errors.New("merkle: depth must be between 1 and 32")

	// ErrIndexOutOfRange is returned when a leaf index does not fit the tree.
	ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")

	// ErrEmptyLeaf is returned when inserting a nil or zero leaf. Zero marks
	// an empty position, so a zero commitment would be indistinguishable from
	// an unregistered one.
	ErrEmptyLeaf = errors.New("merkle: leaf must be a non-zero field element")

	// ErrLeafNotSet is returned when requesting a proof for an empty position.
	ErrLeafNotSet = errors.New("merkle: no leaf at index")
)

// Tree is a fixed-depth sparse Merkle tree over BN254 field elements.
// Only occupied nodes are stored; everything else is implicitly zero.
// Tree is not safe for concurrent use.
type Tree struct {
	depth int
	size  int

	// nodes[level][position], level 0 holding the leaves.
	nodes []map[uint64]*big.Int
}

// NewTree creates an empty tree of the given depth, supporting 2^depth leaves.
func NewTree(depth int) (*Tree, error) {
	if depth < 1 || depth > 32 {
		return nil, ErrInvalidDepth
	}

	nodes := make([]map[uint64]*big.Int, depth+1)
	for i := range nodes {
		nodes[i] = make(map[uint64]*big.Int)
	}

	return &Tree{depth: depth, nodes: nodes}, nil
}

// Depth returns the tree depth.
func (t *Tree) Depth() int {
	return t.depth
}

// Size returns the number of occupied leaves.
func (t *Tree) Size() int {
	return t.size
}

// Capacity returns the number of addressable leaves.
func (t *Tree) Capacity() uint64 {
	return uint64(1) << uint(t.depth)
}

// Insert sets the leaf at index, replacing any existing value, and rehashes
// the path up to the root.
func (t *Tree) Insert(index uint64, leaf *big.Int) error {
	if index >= t.Capacity() {
		return ErrIndexOutOfRange
	}
	if leaf == nil {
		return ErrEmptyLeaf
	}

	var elem fr.Element
	elem.SetBigInt(leaf)
	if elem.IsZero() {
		return ErrEmptyLeaf
	}

	if _, occupied := t.nodes[0][index]; !occupied {
		t.size++
	}
	t.nodes[0][index] = elem.BigInt(new(big.Int))

	pos := index
	for level := 1; level <= t.depth; level++ {
		pos /= 2
		parent, err := zkproof.HashFields(t.node(level-1, 2*pos), t.node(level-1, 2*pos+1))
		if err != nil {
			return err
		}
		t.nodes[level][pos] = parent
	}

	return nil
}

// Leaf returns the leaf at index and whether it is occupied.
func (t *Tree) Leaf(index uint64) (*big.Int, bool) {
	leaf, ok := t.nodes[0][index]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(leaf), true
}

// Root returns the current root. An empty tree has root zero.
func (t *Tree) Root() *big.Int {
	return new(big.Int).Set(t.node(t.depth, 0))
}

// Proof returns the authentication path for the leaf at index, ordered
// leaf-first. The position must be occupied.
func (t *Tree) Proof(index uint64) ([]*big.Int, error) {
	if index >= t.Capacity() {
		return nil, ErrIndexOutOfRange
	}
	if _, ok := t.nodes[0][index]; !ok {
		return nil, ErrLeafNotSet
	}

	siblings := make([]*big.Int, t.depth)
	pos := index
	for level := 0; level < t.depth; level++ {
		siblings[level] = new(big.Int).Set(t.node(level, pos^1))
		pos /= 2
	}

	return siblings, nil
}

// node returns the stored node at (level, position), or zero when empty.
func (t *Tree) node(level int, pos uint64) *big.Int {
	if n, ok := t.nodes[level][pos]; ok {
		return n
	}
	return big.NewInt(0)
}

// VerifyProof folds a leaf up an authentication path and reports whether it
// reaches the given root.
func VerifyProof(root, leaf *big.Int, siblings []*big.Int, index uint64) bool {
	if root == nil || leaf == nil {
		return false
	}

	computed, err := zkproof.ComputeMerkleRoot(leaf, siblings, index)
	if err != nil {
		return false
	}

	var want, got fr.Element
	want.SetBigInt(root)
	got.SetBigInt(computed)
	return want.Equal(&got)
}
