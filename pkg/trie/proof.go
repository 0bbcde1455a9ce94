package trie

import (
	"github.com/veritas-l2/hextrie/pkg/io"
	"github.com/veritas-l2/hextrie/pkg/storage"
	"github.com/veritas-l2/hextrie/pkg/util"
	"github.com/veritas-l2/hextrie/pkg/util/slice"
)

// GetProof returns a proof of existence of the given key: the serialized
// nodes of the descent chain from the root down to the node holding the
// value. ErrNotFound is returned when the trie stores nothing under the
// key.
func (t *Trie) GetProof(key []byte) ([][]byte, error) {
	if len(key) > MaxKeyLength {
		return nil, ErrNotFound
	}
	path := toNibbles(key)
	nodes, err := t.pathNodes(path)
	if err != nil {
		return nil, err
	}
	if len(nodes) != len(path)+1 || !hasFullValue(nodes[len(nodes)-1]) {
		return nil, ErrNotFound
	}
	proof := make([][]byte, len(nodes))
	for i := range nodes {
		proof[i] = slice.Copy(nodes[i].Bytes())
	}
	return proof, nil
}

// VerifyProof checks the proof against the given root hash and key and
// returns the value it proves. The proof is a set of serialized nodes as
// produced by GetProof, the order is not significant.
func VerifyProof(rhash util.Uint256, key []byte, proofs [][]byte) ([]byte, bool) {
	ns := NewNodeStore(storage.NewMemoryStore())
	for i := range proofs {
		var no NodeObject
		r := io.NewBinReaderFromBuf(proofs[i])
		no.DecodeBinary(r)
		if r.Err != nil || no.Node.Type() == ProofT {
			return nil, false
		}
		if err := ns.Put(no.Node); err != nil {
			return nil, false
		}
	}
	tr := NewTrie(rhash, ns)
	value, err := tr.Get(key)
	if err != nil {
		return nil, false
	}
	return slice.Copy(value), true
}

// hasFullValue reports whether the node stores value bytes, not just a
// digest.
func hasFullValue(n Node) bool {
	switch v := n.(type) {
	case *LeafNode:
		return v.valueState == valueFull
	case *BranchNode:
		return v.valueState == valueFull
	default:
		return false
	}
}
