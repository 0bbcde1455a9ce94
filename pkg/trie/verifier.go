package trie

import (
	"errors"
	"fmt"

	"github.com/veritas-l2/hextrie/pkg/storage"
	"github.com/veritas-l2/hextrie/pkg/util"
)

// Soundness failures of a verification session. Each one is terminal: the
// session latches the first failure and refuses to continue, since the
// cryptographic guarantees depend on every check running.
var (
	// ErrMalformedProof means the bundle cannot certify what it claims
	// to certify. It says nothing about the claimed execution itself.
	ErrMalformedProof = errors.New("malformed proof")
	// ErrHashMismatch means loading a post-state entry changed the hash
	// of its stray trie. This is the definitive fraud signal.
	ErrHashMismatch = errors.New("stray trie hash changed")
	// ErrIncompletePreState means the replay tried to read a key the
	// pre-state says nothing about. The verifier never fabricates
	// values.
	ErrIncompletePreState = errors.New("key is missing from the pre-state")
)

// Verifier replays a recorded operation sequence against a skeleton trie
// built only from a proof bundle. The skeleton holds proof-node stand-ins
// for everything the bundle did not materialize, and a restricted store
// holds the received nodes. Every soundness check failure is terminal for
// the session, it is the verdict, not a transient fault.
type Verifier struct {
	trie    *Trie
	preRoot util.Uint256
	bundle  *Bundle
	reads   map[string][]byte
	written map[string]bool
	cursor  int
	err     error
}

// NewVerifier builds the skeleton trie from the bundle's pre-state and
// binds it to the claimed pre-execution root. The returned verifier
// exposes the trie capability: replaying the captured operation log
// through Get and Put checks the bundle against the claim.
func NewVerifier(preRoot util.Uint256, b *Bundle) (*Verifier, error) {
	if preRoot.Equals(nullHash) {
		preRoot = emptyRootHash
	}
	v := &Verifier{
		trie:    NewTrie(preRoot, NewNodeStore(storage.NewMemoryStore())),
		preRoot: preRoot,
		bundle:  b,
		reads:   make(map[string][]byte),
		written: make(map[string]bool),
	}
	if err := v.buildSkeleton(); err != nil {
		return nil, err
	}
	return v, nil
}

// buildSkeleton materializes the pre-state into a skeleton trie. Proof
// pairs go first: they pin subtree hashes and value digests, creating
// every branch chain the pre-state touches. Read pairs then place the
// resolved values. One fold of the result against the pre-execution root
// certifies all of it at once.
func (v *Verifier) buildSkeleton() error {
	for i := range v.bundle.Pairs {
		p := &v.bundle.Pairs[i]
		if !validPath(p.Path) {
			return fmt.Errorf("%w: invalid pair path", ErrMalformedProof)
		}
		if p.Value {
			v.placeValueDigest(p.Path, p.Hash)
			continue
		}
		if len(p.Path) == 0 {
			return fmt.Errorf("%w: slot pin without a slot", ErrMalformedProof)
		}
		v.placeSlotPin(p.Path, p.Hash)
	}
	for i := range v.bundle.Reads {
		r := &v.bundle.Reads[i]
		if len(r.Key) > MaxKeyLength || len(r.Value) > MaxValueLength {
			return fmt.Errorf("%w: oversized read pair", ErrMalformedProof)
		}
		v.reads[string(r.Key)] = r.Value
		if r.Value != nil {
			v.placeReadValue(toNibbles(r.Key), r.Value)
		}
	}
	// With no pair to hang material on, an untouched proof-node root can
	// only certify reads against an empty pre trie.
	if _, ok := v.trie.root.(*ProofNode); ok && len(v.bundle.Reads) > 0 {
		v.trie.root = NewBranchNode()
	}
	if h := foldHash(v.trie.root); !h.Equals(v.preRoot) {
		return fmt.Errorf("%w: pre-state does not fold to the pre-execution root", ErrMalformedProof)
	}
	return nil
}

// ensureBranch walks the skeleton along the prefix making sure there is a
// branch at every position: stand-ins and empty slots become empty
// branches to be filled by deeper material, a leaf is converted carrying
// its value over.
func (v *Verifier) ensureBranch(prefix []byte) *BranchNode {
	slot := &v.trie.root
	for d := 0; ; d++ {
		switch n := (*slot).(type) {
		case nil, *ProofNode:
			*slot = NewBranchNode()
		case *LeafNode:
			*slot = newBranchFromLeaf(n)
		case *BranchNode:
		}
		b := (*slot).(*BranchNode)
		if d == len(prefix) {
			return b
		}
		slot = &b.Children[prefix[d]]
	}
}

// placeSlotPin mounts a proof-node stand-in for the child slot at the
// path. Positions already holding materialized content are left alone,
// the binding fold certifies them either way.
func (v *Verifier) placeSlotPin(path []byte, h util.Uint256) {
	b := v.ensureBranch(path[:len(path)-1])
	i := path[len(path)-1]
	switch b.Children[i].(type) {
	case nil, *ProofNode:
		b.Children[i] = NewProofNode(h)
	}
}

// placeValueDigest pins the value digest of the node at the path. A
// branch gets an opaque value, any other occupant becomes an opaque leaf.
// If deeper material later proves the position is really a branch, the
// leaf conversion carries the digest over.
func (v *Verifier) placeValueDigest(path []byte, d util.Uint256) {
	if len(path) == 0 {
		v.ensureBranch(nil).SetValueDigest(d)
		return
	}
	b := v.ensureBranch(path[:len(path)-1])
	i := path[len(path)-1]
	if child, ok := b.Children[i].(*BranchNode); ok {
		child.SetValueDigest(d)
		return
	}
	b.Children[i] = NewOpaqueLeafNode(d)
}

// placeReadValue settles the resolved value of a read key at the end of
// its descent path.
func (v *Verifier) placeReadValue(path, value []byte) {
	if len(path) == 0 {
		v.ensureBranch(nil).SetValue(value)
		return
	}
	b := v.ensureBranch(path[:len(path)-1])
	i := path[len(path)-1]
	switch n := b.Children[i].(type) {
	case *BranchNode:
		n.SetValue(value)
	case *LeafNode:
		n.SetValue(value)
	default:
		b.Children[i] = NewLeafNode(value)
	}
}

// Get reads a key during the replay. Pre-state completeness is enforced
// first: a key neither present in the pre-state nor produced by an
// earlier replayed write cannot be resolved, the verifier refuses to
// fabricate a value for it. A provably absent key yields (nil, nil).
func (v *Verifier) Get(key []byte) ([]byte, error) {
	if v.err != nil {
		return nil, v.err
	}
	if _, ok := v.reads[string(key)]; !ok && !v.written[string(key)] {
		return nil, v.fail(fmt.Errorf("%w: get of %x", ErrIncompletePreState, key))
	}
	value, err := v.trie.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		// Opaque values and unresolvable stand-ins mean the bundle did
		// not carry enough material for this read.
		return nil, v.fail(fmt.Errorf("%w: %s", ErrMalformedProof, err))
	}
	return value, nil
}

// Put replays one write. It consumes the post-state entry at the cursor,
// checks that every entry node lies within the write's stray trie,
// installs the nodes, re-folds the stray trie to prove the installs
// changed nothing, and only then applies the write to the skeleton.
func (v *Verifier) Put(key, value []byte) error {
	if v.err != nil {
		return v.err
	}
	if v.cursor >= len(v.bundle.Entries) {
		return v.fail(fmt.Errorf("%w: no post-state entry left for the write", ErrMalformedProof))
	}
	if len(key) > MaxKeyLength || len(value) > MaxValueLength {
		return v.fail(fmt.Errorf("%w: oversized write", ErrMalformedProof))
	}
	entry := v.bundle.Entries[v.cursor]
	path := toNibbles(key)

	bPath, bNode := v.boundary(path)
	if bNode == nil {
		return v.fail(fmt.Errorf("%w: no stray trie root for the write", ErrMalformedProof))
	}
	_, bProof := bNode.(*ProofNode)
	h0 := foldHash(bNode)

	for i := range entry {
		e := &entry[i]
		if e.Node == nil || e.Node.Type() == ProofT {
			return v.fail(fmt.Errorf("%w: stand-in node in a post-state entry", ErrMalformedProof))
		}
		if !validPath(e.Path) || !extends(bPath, e.Path) ||
			(len(e.Path) == len(bPath) && !bProof) {
			return v.fail(fmt.Errorf("%w: entry node outside of its stray trie", ErrMalformedProof))
		}
		// Install a clone: the skeleton wires installed nodes into its
		// graph and the bundle must stay replayable as received.
		if err := v.install(e.Path, e.Node.Clone()); err != nil {
			return v.fail(err)
		}
	}

	// Loading the entry must leave the stray trie hash untouched. Any
	// difference here is definitive: the claimed execution is disproven.
	var h1 util.Uint256
	if bProof {
		h1 = foldHash(v.trie.root)
	} else {
		h1 = foldHash(bNode)
	}
	if !h1.Equals(h0) {
		return v.fail(fmt.Errorf("%w: from %s to %s", ErrHashMismatch, h0.StringLE(), h1.StringLE()))
	}

	if err := v.trie.Put(key, value); err != nil {
		// The restricted store lacks material the write descent needs.
		return v.fail(fmt.Errorf("%w: %s", ErrMalformedProof, err))
	}
	v.written[string(key)] = true
	v.cursor++
	return nil
}

// Root returns the current root hash of the skeleton trie.
func (v *Verifier) Root() util.Uint256 {
	return foldHash(v.trie.root)
}

// Err returns the latched soundness failure, if any.
func (v *Verifier) Err() error {
	return v.err
}

// AddTrustedNode seeds the restricted store with a node proven in an
// earlier round. Bundles minimized against a trusted hash set resolve
// such nodes through the store instead of carrying them again.
func (v *Verifier) AddTrustedNode(n Node) error {
	if n == nil || n.Type() == ProofT {
		return errors.New("a stand-in carries no material to trust")
	}
	return v.trie.Store.Put(n)
}

// boundary returns the deepest branch on the path that is materialized in
// the skeleton or resolvable through the restricted store, together with
// its nibble path. This branch is the stray trie root of a write along
// the path. When even the root has never been materialized, the root
// stand-in itself is returned and its hash pins the whole pre trie.
func (v *Verifier) boundary(path []byte) ([]byte, Node) {
	slot := &v.trie.root
	if !v.resolve(slot) {
		return path[:0], *slot
	}
	var (
		bPath []byte
		bNode Node
	)
	for d := 0; ; d++ {
		b, ok := (*slot).(*BranchNode)
		if !ok {
			break
		}
		bPath, bNode = path[:d], b
		if d == len(path) {
			break
		}
		slot = &b.Children[path[d]]
		if *slot == nil || !v.resolve(slot) {
			break
		}
	}
	return bPath, bNode
}

// knownDepth returns the number of leading positions of the path whose
// occupants are materialized in the skeleton or resolvable through the
// restricted store. Zero means even the root was never materialized.
func (v *Verifier) knownDepth(path []byte) int {
	slot := &v.trie.root
	known := 0
	for d := 0; ; d++ {
		if *slot == nil || !v.resolve(slot) {
			return known
		}
		known = d + 1
		b, ok := (*slot).(*BranchNode)
		if !ok || d == len(path) {
			return known
		}
		slot = &b.Children[path[d]]
	}
}

// install puts the node into the restricted store and mounts it at the
// given position of the skeleton. The position must exist: installs
// replace stand-ins (or previously materialized content) and never
// extend the trie, extension is what the applied write itself does.
func (v *Verifier) install(path []byte, n Node) error {
	if err := v.trie.Store.Put(n); err != nil {
		return err
	}
	slot := &v.trie.root
	for d := 0; d < len(path); d++ {
		if !v.resolve(slot) {
			return fmt.Errorf("%w: unreachable position %x", ErrMalformedProof, path[:d])
		}
		b, ok := (*slot).(*BranchNode)
		if !ok {
			return fmt.Errorf("%w: no branch at position %x", ErrMalformedProof, path[:d])
		}
		slot = &b.Children[path[d]]
		if *slot == nil {
			return fmt.Errorf("%w: nothing to replace at position %x", ErrMalformedProof, path[:d+1])
		}
	}
	*slot = n
	return nil
}

// resolve materializes a stand-in through the restricted store. It
// reports false when the store has no material for it, which bounds the
// reachable part of the skeleton.
func (v *Verifier) resolve(slot *Node) bool {
	if p, ok := (*slot).(*ProofNode); ok {
		n, err := v.trie.Store.Get(p.Hash())
		if err != nil {
			return false
		}
		*slot = n
	}
	return true
}

// fail latches the first soundness failure of the session.
func (v *Verifier) fail(err error) error {
	v.err = err
	return err
}

// foldHash computes the hash of a subtree from scratch, refreshing every
// cached hash on the way. Skeleton manipulation replaces slot occupants
// without propagating invalidation upwards, so cached hashes cannot be
// trusted here. Folding a stand-in yields its pinned hash.
func foldHash(n Node) util.Uint256 {
	switch b := n.(type) {
	case nil:
		return nullHash
	case *BranchNode:
		for i := range b.Children {
			if b.Children[i] != nil {
				foldHash(b.Children[i])
			}
		}
		b.invalidateCache()
		return b.Hash()
	default:
		return n.Hash()
	}
}
