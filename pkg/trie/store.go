package trie

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/veritas-l2/hextrie/pkg/io"
	"github.com/veritas-l2/hextrie/pkg/storage"
	"github.com/veritas-l2/hextrie/pkg/util"
)

// nodeCacheSize is the number of decoded nodes kept in memory in front of
// the backing store.
const nodeCacheSize = 8192

// NodeStore is a content-addressed node map on top of a storage.Store.
// Nodes are keyed by their hash, so writing the same node twice is
// idempotent and stored material is never deleted. The cache keeps the
// serialized form: every Get decodes a fresh node, which the caller owns
// completely.
type NodeStore struct {
	ps    storage.Store
	cache *lru.Cache
}

// NewNodeStore creates a node store on top of the given backing store.
func NewNodeStore(ps storage.Store) *NodeStore {
	return NewNodeStoreSized(ps, nodeCacheSize)
}

// NewNodeStoreSized creates a node store with the given cache capacity.
// Non-positive capacity falls back to the default.
func NewNodeStoreSized(ps storage.Store, cacheSize int) *NodeStore {
	if cacheSize <= 0 {
		cacheSize = nodeCacheSize
	}
	cache, _ := lru.New(cacheSize) // Never errors for positive size.
	return &NodeStore{
		ps:    ps,
		cache: cache,
	}
}

// Get resolves a hash into a node. The returned node is decoded anew and
// shares nothing with other callers. A miss surfaces as
// storage.ErrKeyNotFound.
func (s *NodeStore) Get(h util.Uint256) (Node, error) {
	var data []byte
	if cached, ok := s.cache.Get(h); ok {
		data = cached.([]byte)
	} else {
		var err error
		data, err = s.ps.Get(makeStorageKey(h))
		if err != nil {
			return nil, err
		}
		s.cache.Add(h, data)
	}
	var no NodeObject
	r := io.NewBinReaderFromBuf(data)
	no.DecodeBinary(r)
	if r.Err != nil {
		return nil, fmt.Errorf("failed to decode node %s: %w", h.StringLE(), r.Err)
	}
	if no.Node.Type() == ProofT {
		return nil, fmt.Errorf("node %s is a proof node", h.StringLE())
	}
	no.Node.(flushedNode).setCache(data, h)
	return no.Node, nil
}

// Put stores a node under its content address.
func (s *NodeStore) Put(n Node) error {
	if n.Type() == ProofT {
		panic("can't store a proof node")
	}
	h := n.Hash()
	data := n.Bytes()
	if err := s.ps.Put(makeStorageKey(h), data); err != nil {
		return err
	}
	n.SetFlushed()
	s.cache.Add(h, data)
	return nil
}

// Walk visits every distinct node reachable from the given root once,
// parents before children. The root must resolve through the store.
func (s *NodeStore) Walk(root util.Uint256, f func(Node) error) error {
	return s.walk(root, make(map[util.Uint256]bool), f)
}

func (s *NodeStore) walk(h util.Uint256, visited map[util.Uint256]bool, f func(Node) error) error {
	if visited[h] {
		return nil
	}
	visited[h] = true
	n, err := s.Get(h)
	if err != nil {
		return err
	}
	if err := f(n); err != nil {
		return err
	}
	if b, ok := n.(*BranchNode); ok {
		for i := range b.Children {
			if b.Children[i] == nil {
				continue
			}
			if err := s.walk(b.Children[i].Hash(), visited, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// PutRoot persists a named root pointer.
func (s *NodeStore) PutRoot(name string, h util.Uint256) error {
	return s.ps.Put(makeRootKey(name), h.BytesBE())
}

// GetRoot resolves a named root pointer.
func (s *NodeStore) GetRoot(name string) (util.Uint256, error) {
	data, err := s.ps.Get(makeRootKey(name))
	if err != nil {
		return util.Uint256{}, err
	}
	return util.Uint256DecodeBytesBE(data)
}

// makeStorageKey creates a key for the node with the specified hash.
func makeStorageKey(h util.Uint256) []byte {
	return append([]byte{byte(storage.DataTrie)}, h.BytesBE()...)
}

// makeRootKey creates a key for a named root pointer.
func makeRootKey(name string) []byte {
	return append([]byte{byte(storage.DataTrieAux)}, name...)
}
