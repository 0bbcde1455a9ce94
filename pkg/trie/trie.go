package trie

import (
	"errors"
	"fmt"

	"github.com/veritas-l2/hextrie/pkg/util"
	"github.com/veritas-l2/hextrie/pkg/util/slice"
)

// ErrNotFound is returned when the requested trie item is missing.
var ErrNotFound = errors.New("item not found")

// errValueOpaque is returned when the descent ends at a node whose value
// bytes were never supplied, only their digest.
var errValueOpaque = errors.New("value is opaque")

// emptyRootHash is the hash of the root branch of an empty trie.
var emptyRootHash = NewBranchNode().Hash()

// Trie is an uncompressed hexary Merkle trie. Keys descend nibble by
// nibble from the root branch, values live at the node addressed by the
// full path of their key: in a leaf if nothing extends the key, in the
// branch itself otherwise. Updates rewrite the node chain along the
// modified path and persist every rebuilt node, so older roots stay
// resolvable through the store.
type Trie struct {
	Store *NodeStore

	root Node
}

// NewTrie returns a trie rooted at the given hash backed by the given
// node store. A zero root hash means an empty trie.
func NewTrie(root util.Uint256, store *NodeStore) *Trie {
	var rootNode Node
	if root.Equals(nullHash) || root.Equals(emptyRootHash) {
		rootNode = NewBranchNode()
	} else {
		rootNode = NewProofNode(root)
	}
	return &Trie{
		Store: store,
		root:  rootNode,
	}
}

// Root returns the root hash of the trie.
func (t *Trie) Root() util.Uint256 {
	return t.root.Hash()
}

// Get returns the value stored under the given key. Keys that resolve to
// no node, stop at an empty slot or run into a foreign leaf yield
// ErrNotFound.
func (t *Trie) Get(key []byte) ([]byte, error) {
	if len(key) > MaxKeyLength {
		return nil, errors.New("key is too big")
	}
	path := toNibbles(key)
	curr, err := t.materialize(&t.root)
	if err != nil {
		return nil, err
	}
	for d := 0; d < len(path); d++ {
		b, ok := curr.(*BranchNode)
		if !ok {
			// A leaf of a shorter key blocks the descent.
			return nil, ErrNotFound
		}
		if b.Children[path[d]] == nil {
			return nil, ErrNotFound
		}
		curr, err = t.materialize(&b.Children[path[d]])
		if err != nil {
			return nil, err
		}
	}
	switch n := curr.(type) {
	case *LeafNode:
		if n.IsOpaque() {
			return nil, errValueOpaque
		}
		return slice.Copy(n.value), nil
	case *BranchNode:
		switch n.valueState {
		case valueNone:
			return nil, ErrNotFound
		case valueFull:
			return slice.Copy(n.value), nil
		default:
			return nil, errValueOpaque
		}
	default:
		panic("invalid node type")
	}
}

// Put stores the value under the given key, rebuilding the node chain
// along the key's path. Branches missing from the chain are created, a
// leaf sitting in the middle of the path is converted into a branch
// carrying its value. Every rebuilt node is persisted at once, which
// keeps all previous roots resolvable.
func (t *Trie) Put(key, value []byte) error {
	if len(key) > MaxKeyLength {
		return errors.New("key is too big")
	}
	if len(value) > MaxValueLength {
		return errors.New("value is too big")
	}
	if value == nil {
		// Stored values are byte strings, an empty one is still present.
		value = []byte{}
	}
	path := toNibbles(key)

	curr, err := t.materialize(&t.root)
	if err != nil {
		return err
	}
	b, ok := curr.(*BranchNode)
	if !ok {
		return fmt.Errorf("invalid root node of type %#x", curr.Type())
	}

	type step struct {
		branch *BranchNode
		index  byte
	}
	var (
		stack  []step
		bottom Node
		d      int
	)
descent:
	for d < len(path) {
		i := path[d]
		stack = append(stack, step{b, i})
		var child Node
		if b.Children[i] != nil {
			child, err = t.materialize(&b.Children[i])
			if err != nil {
				return err
			}
		}
		switch n := child.(type) {
		case nil:
			if d+1 == len(path) {
				bottom = NewLeafNode(value)
				break descent
			}
			nb := NewBranchNode()
			b.Children[i] = nb
			b, d = nb, d+1
		case *BranchNode:
			b, d = n, d+1
		case *LeafNode:
			if d+1 == len(path) {
				bottom = NewLeafNode(value)
				break descent
			}
			nb := newBranchFromLeaf(n)
			b.Children[i] = nb
			b, d = nb, d+1
		default:
			panic("invalid node type")
		}
	}
	if bottom == nil {
		// The path ends at a branch, the value is stored right in it.
		b.SetValue(value)
		bottom = b
	}

	// Rehash the modified chain bottom-up, fixing parent references and
	// persisting every rebuilt node.
	child := bottom
	for k := len(stack) - 1; k >= 0; k-- {
		br := stack[k].branch
		br.Children[stack[k].index] = child
		br.invalidateCache()
		setParent(child, br.Hash())
		if err := t.Store.Put(child); err != nil {
			return err
		}
		child = br
	}
	if err := t.Store.Put(child); err != nil {
		return err
	}
	t.root = child
	return nil
}

// materialize resolves the node in the given slot through the store if
// it's a proof node, replacing the stand-in with the real node. The
// replacement hashes to the very same value, so cached hashes up the
// chain stay valid.
func (t *Trie) materialize(slot *Node) (Node, error) {
	if p, ok := (*slot).(*ProofNode); ok {
		n, err := t.Store.Get(p.Hash())
		if err != nil {
			return nil, err
		}
		*slot = n
	}
	return *slot, nil
}

// pathNodes returns the materialized node chain visited when descending
// along the nibble path: the root first, then one node per consumed
// nibble. The chain stops early at an empty slot or at a blocking leaf.
func (t *Trie) pathNodes(path []byte) ([]Node, error) {
	nodes := make([]Node, 0, len(path)+1)
	curr, err := t.materialize(&t.root)
	if err != nil {
		return nil, err
	}
	nodes = append(nodes, curr)
	for d := 0; d < len(path); d++ {
		b, ok := curr.(*BranchNode)
		if !ok {
			break
		}
		if b.Children[path[d]] == nil {
			break
		}
		curr, err = t.materialize(&b.Children[path[d]])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, curr)
	}
	return nodes, nil
}

// setParent updates the parent back-reference of a branch or a leaf.
func setParent(n Node, h util.Uint256) {
	switch t := n.(type) {
	case *BranchNode:
		t.SetParent(h)
	case *LeafNode:
		t.SetParent(h)
	default:
		panic("invalid node type")
	}
}
