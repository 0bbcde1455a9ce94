package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/veritas-l2/hextrie/pkg/util"
	"github.com/veritas-l2/hextrie/pkg/util/slice"
)

// errProverFinalized is returned on any use of a capture session after
// its bundle has been derived.
var errProverFinalized = errors.New("capture session is finalized")

type kv struct {
	key   []byte
	value []byte
}

// Prover records a single execution session over the backing trie and
// derives the proof bundle allowing anyone to replay the session against
// the pre-execution root alone. Reads are answered from the write list
// first, then from the trie, and only trie reads enter the read set:
// the replay reproduces values the session wrote by applying the very
// same writes. Writes are deferred until the bundle is derived, so the
// read set is always captured against the pre-execution state.
type Prover struct {
	trie      *Trie
	preRoot   util.Uint256
	reads     map[string][]byte
	readKeys  []string
	writes    []kv
	finalized bool
}

// NewProver starts a capture session over the given trie.
func NewProver(t *Trie) *Prover {
	return &Prover{
		trie:    t,
		preRoot: t.Root(),
		reads:   make(map[string][]byte),
	}
}

// PreRoot returns the root hash the capture session started from.
func (p *Prover) PreRoot() util.Uint256 {
	return p.preRoot
}

// Root returns the current root hash of the backing trie. Once the
// bundle is derived this is the post-execution root of the session.
func (p *Prover) Root() util.Uint256 {
	return p.trie.Root()
}

// Get reads a key through the capture session. A key the session has
// already written resolves to the latest written value, anything else is
// read from the pre-execution state and recorded in the read set, the
// first read of a key wins. A missing key yields (nil, nil) and a nil
// record: provable absence is part of the pre-state too.
func (p *Prover) Get(key []byte) ([]byte, error) {
	if p.finalized {
		return nil, errProverFinalized
	}
	if len(key) > MaxKeyLength {
		return nil, errors.New("key is too big")
	}
	for i := len(p.writes) - 1; i >= 0; i-- {
		if bytes.Equal(p.writes[i].key, key) {
			return slice.Copy(p.writes[i].value), nil
		}
	}
	value, err := p.trie.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		value = nil
	}
	if _, ok := p.reads[string(key)]; !ok {
		var rec []byte
		if value != nil {
			rec = slice.Copy(value)
		}
		p.reads[string(key)] = rec
		p.readKeys = append(p.readKeys, string(key))
	}
	return value, nil
}

// Put records a write. The backing trie is left untouched until the
// bundle is derived.
func (p *Prover) Put(key, value []byte) error {
	if p.finalized {
		return errProverFinalized
	}
	if len(key) > MaxKeyLength {
		return errors.New("key is too big")
	}
	if len(value) > MaxValueLength {
		return errors.New("value is too big")
	}
	p.writes = append(p.writes, kv{key: slice.Copy(key), value: slice.Copy(value)})
	return nil
}

// DeriveBundle closes the capture session: it folds the recorded reads
// into pre-state material, replays the session through a shadow verifier
// while emitting the post-state entries it consumes, applies the writes
// to the backing trie and minimizes the result. The session is
// single-use, nothing can be recorded after the bundle is derived.
func (p *Prover) DeriveBundle() (*Bundle, error) {
	if p.finalized {
		return nil, errProverFinalized
	}
	p.finalized = true

	b := &Bundle{Entries: make([][]ProofEntry, 0, len(p.writes))}
	seen := make(map[pinKey]bool)
	for _, k := range p.readKeys {
		b.Reads = append(b.Reads, ReadPair{Key: []byte(k), Value: p.reads[k]})
		if err := p.collectReadPairs(b, seen, toNibbles([]byte(k))); err != nil {
			return nil, err
		}
	}

	// The shadow verifier sees exactly what a real one will see. Any
	// failure here means the emission itself is broken, not the data.
	sv, err := NewVerifier(p.preRoot, b)
	if err != nil {
		return nil, fmt.Errorf("shadow replay rejected the pre-state: %w", err)
	}
	for _, k := range p.readKeys {
		if _, err := sv.Get([]byte(k)); err != nil {
			return nil, fmt.Errorf("shadow replay rejected a read: %w", err)
		}
	}
	for i := range p.writes {
		w := &p.writes[i]
		entry, err := p.emitEntry(sv, toNibbles(w.key))
		if err != nil {
			return nil, err
		}
		b.Entries = append(b.Entries, entry)
		if err := sv.Put(w.key, w.value); err != nil {
			return nil, fmt.Errorf("shadow replay rejected a write: %w", err)
		}
		if err := p.trie.Put(w.key, w.value); err != nil {
			return nil, err
		}
	}
	return minimizeBundle(p.preRoot, b, p.sessionOps(), nil), nil
}

// DeriveClaim finalizes the session into a publishable claim: the pre and
// post roots, the operation log normalized to reads before writes and the
// bundle supporting the replay.
func (p *Prover) DeriveClaim() (*Claim, error) {
	ops := p.sessionOps()
	b, err := p.DeriveBundle()
	if err != nil {
		return nil, err
	}
	return &Claim{
		PreRoot:  p.preRoot,
		PostRoot: p.trie.Root(),
		Ops:      ops,
		Bundle:   *b,
	}, nil
}

// emitEntry collects the post-state entry of the next write: an opaque
// copy of every node of the write's descent chain that the shadow
// skeleton cannot account for on its own.
func (p *Prover) emitEntry(sv *Verifier, path []byte) ([]ProofEntry, error) {
	nodes, err := p.trie.pathNodes(path)
	if err != nil {
		return nil, err
	}
	entry := []ProofEntry{}
	for d := sv.knownDepth(path); d < len(nodes); d++ {
		entry = append(entry, ProofEntry{Path: path[:d], Node: asOpaque(nodes[d])})
	}
	return entry, nil
}

// pinKey identifies a proof pair for deduplication.
type pinKey struct {
	path  string
	value bool
}

// collectReadPairs walks the descent path of a read key over the backing
// trie and emits the pairs certifying the outcome of the read: a hash
// pin for every sibling slot the descent passes by, a digest pin for
// every value it passes over and for the foreign leaf that blocks it.
// The pins force the skeleton to reproduce the exact shape of the walk,
// so the pre-state binding fold certifies present and absent keys alike.
func (p *Prover) collectReadPairs(b *Bundle, seen map[pinKey]bool, path []byte) error {
	add := func(pp ProofPair) {
		k := pinKey{path: string(pp.Path), value: pp.Value}
		if !seen[k] {
			seen[k] = true
			b.Pairs = append(b.Pairs, pp)
		}
	}
	curr, err := p.trie.materialize(&p.trie.root)
	if err != nil {
		return err
	}
	for d := 0; ; d++ {
		switch n := curr.(type) {
		case *BranchNode:
			if d == len(path) {
				// The read resolves right here, pin the branch shape. The
				// value, if any, is carried by the read pair itself.
				for i := range n.Children {
					if n.Children[i] != nil {
						add(ProofPair{Path: append(path[:d:d], byte(i)), Hash: n.Children[i].Hash()})
					}
				}
				return nil
			}
			for i := range n.Children {
				if byte(i) != path[d] && n.Children[i] != nil {
					add(ProofPair{Path: append(path[:d:d], byte(i)), Hash: n.Children[i].Hash()})
				}
			}
			if dg, ok := n.ValueDigest(); ok {
				add(ProofPair{Path: path[:d], Hash: dg, Value: true})
			}
			if n.Children[path[d]] == nil {
				return nil
			}
			curr, err = p.trie.materialize(&n.Children[path[d]])
			if err != nil {
				return err
			}
		case *LeafNode:
			if d < len(path) {
				// A foreign leaf blocks the descent. Its digest pin makes
				// the skeleton reproduce the leaf, proving the read key
				// has no node of its own.
				add(ProofPair{Path: path[:d], Hash: n.ValueDigest(), Value: true})
			}
			return nil
		default:
			panic("invalid node type")
		}
	}
}

// sessionOps synthesizes the replayable operation log of the session:
// all recorded reads, then the writes in order. Reads recorded by the
// session always predate the first write of their key, so hoisting them
// reproduces the very same values.
func (p *Prover) sessionOps() []Op {
	ops := make([]Op, 0, len(p.readKeys)+len(p.writes))
	for _, k := range p.readKeys {
		ops = append(ops, Op{Kind: OpGet, Key: []byte(k)})
	}
	for i := range p.writes {
		ops = append(ops, Op{Kind: OpPut, Key: p.writes[i].key, Value: p.writes[i].value})
	}
	return ops
}

// asOpaque returns a copy of the node ready for a post-state entry:
// children replaced by stand-ins, value bytes dropped in favour of their
// digest. The copy hashes to the very same value as the original.
func asOpaque(n Node) Node {
	switch t := n.(type) {
	case *BranchNode:
		b := NewBranchNode()
		for i := range t.Children {
			if t.Children[i] != nil {
				b.Children[i] = NewProofNode(t.Children[i].Hash())
			}
		}
		if d, ok := t.ValueDigest(); ok {
			b.SetValueDigest(d)
		}
		b.parent = t.parent
		return b
	case *LeafNode:
		l := NewOpaqueLeafNode(t.ValueDigest())
		l.parent = t.parent
		return l
	default:
		panic("invalid node type")
	}
}
