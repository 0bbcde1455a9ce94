package trie

import (
	"encoding/json"
	"errors"

	"github.com/veritas-l2/hextrie/pkg/io"
	"github.com/veritas-l2/hextrie/pkg/util"
)

// ProofNode stands in for an unmaterialized subtree whose hash is trusted.
// It appears only inside proof bundles and skeleton tries, never in the
// authoritative trie.
type ProofNode struct {
	BaseNode
}

var _ Node = (*ProofNode)(nil)

// NewProofNode returns a new proof node with the specified hash.
func NewProofNode(h util.Uint256) *ProofNode {
	return &ProofNode{
		BaseNode: BaseNode{
			hash:      h,
			hashValid: true,
		},
	}
}

// Type implements Node interface.
func (p *ProofNode) Type() NodeType { return ProofT }

// Hash implements Node interface.
func (p *ProofNode) Hash() util.Uint256 {
	if !p.hashValid {
		panic("can't get the hash of an empty proof node")
	}
	return p.hash
}

// Bytes implements Node interface.
func (p *ProofNode) Bytes() []byte {
	return p.getBytes(p)
}

// EncodeBinary implements io.Serializable.
func (p *ProofNode) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(p.hash[:])
}

// DecodeBinary implements io.Serializable.
func (p *ProofNode) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(p.hash[:])
	p.hashValid = true
	p.bytesValid = false
}

// writeHashable is never called: a proof node's hash is its stored hash.
func (p *ProofNode) writeHashable(w *io.BinWriter) {
	panic("can't build the hash preimage of a proof node")
}

// MarshalJSON implements the json.Marshaler.
func (p *ProofNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"hash": p.Hash()})
}

// UnmarshalJSON implements the json.Unmarshaler.
func (p *ProofNode) UnmarshalJSON(data []byte) error {
	var m struct {
		Hash *util.Uint256 `json:"hash"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if m.Hash == nil {
		return errors.New("expected proof node")
	}
	*p = *NewProofNode(*m.Hash)
	return nil
}

// Clone implements Node interface.
func (p *ProofNode) Clone() Node {
	res := *p
	return &res
}
