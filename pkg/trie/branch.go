package trie

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/veritas-l2/hextrie/pkg/crypto/hash"
	"github.com/veritas-l2/hextrie/pkg/io"
	"github.com/veritas-l2/hextrie/pkg/util"
)

// childrenCount is the number of child slots in a branch node, one per
// hexadecimal digit.
const childrenCount = 16

// BranchNode represents a trie branch node. It has 16 child slots, an
// optional stored value and a back-reference to its parent branch. The
// back-reference is absent iff the node is the trie root.
type BranchNode struct {
	BaseNode
	Children [childrenCount]Node

	parent      util.Uint256
	valueState  byte
	value       []byte
	valueDigest util.Uint256
}

var _ Node = (*BranchNode)(nil)

// NewBranchNode returns a new branch node with all child slots empty.
func NewBranchNode() *BranchNode {
	return new(BranchNode)
}

// newBranchFromLeaf returns a branch node carrying the leaf's value, used
// when a put extends the trie below a position occupied by a leaf. An
// opaque leaf yields a branch with an opaque value.
func newBranchFromLeaf(l *LeafNode) *BranchNode {
	b := new(BranchNode)
	b.valueState = l.valueState
	b.value = l.value
	b.valueDigest = l.valueDigest
	return b
}

// Type implements Node interface.
func (b *BranchNode) Type() NodeType { return BranchT }

// Hash implements Node interface.
func (b *BranchNode) Hash() util.Uint256 {
	return b.getHash(b)
}

// Bytes implements Node interface.
func (b *BranchNode) Bytes() []byte {
	return b.getBytes(b)
}

// Value returns the value stored in the branch or nil if there is none or
// if only its digest is known.
func (b *BranchNode) Value() []byte {
	if b.valueState != valueFull {
		return nil
	}
	return b.value
}

// HasValue reports whether the branch stores a value, full or opaque.
func (b *BranchNode) HasValue() bool {
	return b.valueState != valueNone
}

// ValueDigest returns the digest of the stored value and whether the
// branch stores one at all.
func (b *BranchNode) ValueDigest() (util.Uint256, bool) {
	return b.valueDigest, b.valueState != valueNone
}

// SetValue stores the value in the branch.
func (b *BranchNode) SetValue(value []byte) {
	b.valueState = valueFull
	b.value = value
	b.valueDigest = hash.DoubleSha256(value)
	b.invalidateCache()
}

// SetValueDigest stores the digest of a value whose bytes are not
// available. The branch hash is unaffected by the missing bytes since the
// preimage commits to the digest.
func (b *BranchNode) SetValueDigest(d util.Uint256) {
	b.valueState = valueOpaque
	b.value = nil
	b.valueDigest = d
	b.invalidateCache()
}

// Parent returns the hash of the parent branch and whether the node has
// one. The root branch has none.
func (b *BranchNode) Parent() (util.Uint256, bool) {
	return b.parent, !b.parent.Equals(nullHash)
}

// SetParent updates the parent back-reference. It is not a part of the
// hash preimage, so only the serialized form is invalidated.
func (b *BranchNode) SetParent(h util.Uint256) {
	b.parent = h
	b.invalidateBytes()
}

// EncodeBinary implements io.Serializable.
func (b *BranchNode) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(b.parent[:])
	w.WriteB(b.valueState)
	switch b.valueState {
	case valueFull:
		w.WriteVarBytes(b.value)
	case valueOpaque:
		w.WriteBytes(b.valueDigest[:])
	}
	for i := range b.Children {
		h := childHash(b.Children[i])
		w.WriteBytes(h[:])
	}
}

// DecodeBinary implements io.Serializable.
func (b *BranchNode) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(b.parent[:])
	b.valueState = r.ReadB()
	switch b.valueState {
	case valueNone:
		b.value = nil
		b.valueDigest = util.Uint256{}
	case valueFull:
		b.value = r.ReadVarBytes(MaxValueLength)
		b.valueDigest = hash.DoubleSha256(b.value)
	case valueOpaque:
		b.value = nil
		r.ReadBytes(b.valueDigest[:])
	default:
		r.Err = fmt.Errorf("invalid value marker: %x", b.valueState)
		return
	}
	for i := range b.Children {
		var h util.Uint256
		r.ReadBytes(h[:])
		if h.Equals(nullHash) {
			b.Children[i] = nil
		} else {
			b.Children[i] = NewProofNode(h)
		}
	}
	b.invalidateCache()
}

// writeHashable writes the hash preimage: the shape tag, the 16 child slot
// hashes and the value digest (NULL when the branch stores no value).
func (b *BranchNode) writeHashable(w *io.BinWriter) {
	w.WriteB(byte(BranchT))
	for i := range b.Children {
		h := childHash(b.Children[i])
		w.WriteBytes(h[:])
	}
	if b.valueState == valueNone {
		w.WriteBytes(nullHash[:])
	} else {
		w.WriteBytes(b.valueDigest[:])
	}
}

// MarshalJSON implements the json.Marshaler.
func (b *BranchNode) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"children": b.Children,
	}
	if !b.parent.Equals(nullHash) {
		m["parent"] = b.parent
	}
	switch b.valueState {
	case valueFull:
		m["value"] = hex.EncodeToString(b.value)
	case valueOpaque:
		m["digest"] = b.valueDigest
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements the json.Unmarshaler.
func (b *BranchNode) UnmarshalJSON(data []byte) error {
	var m struct {
		Children []json.RawMessage `json:"children"`
		Parent   *util.Uint256     `json:"parent"`
		Value    *string           `json:"value"`
		Digest   *util.Uint256     `json:"digest"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m.Children) != childrenCount {
		return errors.New("expected 16 children")
	}
	*b = BranchNode{}
	for i := range m.Children {
		if string(m.Children[i]) == "null" {
			continue
		}
		var no NodeObject
		if err := no.UnmarshalJSON(m.Children[i]); err != nil {
			return err
		}
		b.Children[i] = no.Node
	}
	if m.Parent != nil {
		b.parent = *m.Parent
	}
	switch {
	case m.Value != nil:
		value, err := hex.DecodeString(*m.Value)
		if err != nil {
			return err
		}
		b.SetValue(value)
	case m.Digest != nil:
		b.SetValueDigest(*m.Digest)
	}
	return nil
}

// Clone implements Node interface.
func (b *BranchNode) Clone() Node {
	res := *b
	return &res
}

// childHash returns the content address of a child slot, NULL for an
// empty one.
func childHash(n Node) util.Uint256 {
	if n == nil {
		return nullHash
	}
	return n.Hash()
}
