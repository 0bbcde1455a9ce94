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

// LeafNode represents a trie leaf node storing the value of a single key.
// A leaf always has a parent branch, it is never the root.
type LeafNode struct {
	BaseNode
	parent      util.Uint256
	valueState  byte
	value       []byte
	valueDigest util.Uint256
}

var _ Node = (*LeafNode)(nil)

// NewLeafNode returns a new leaf node storing the given value.
func NewLeafNode(value []byte) *LeafNode {
	return &LeafNode{
		valueState:  valueFull,
		value:       value,
		valueDigest: hash.DoubleSha256(value),
	}
}

// NewOpaqueLeafNode returns a leaf node committing to a value by digest
// only. Such leaves appear in proof bundles where the value bytes are
// not needed to check hashes.
func NewOpaqueLeafNode(digest util.Uint256) *LeafNode {
	return &LeafNode{
		valueState:  valueOpaque,
		valueDigest: digest,
	}
}

// Type implements Node interface.
func (n *LeafNode) Type() NodeType { return LeafT }

// Hash implements Node interface.
func (n *LeafNode) Hash() util.Uint256 {
	return n.getHash(n)
}

// Bytes implements Node interface.
func (n *LeafNode) Bytes() []byte {
	return n.getBytes(n)
}

// Value returns the stored value or nil if only its digest is known.
func (n *LeafNode) Value() []byte {
	if n.valueState != valueFull {
		return nil
	}
	return n.value
}

// IsOpaque reports whether only the value digest is known.
func (n *LeafNode) IsOpaque() bool {
	return n.valueState == valueOpaque
}

// ValueDigest returns the digest of the stored value.
func (n *LeafNode) ValueDigest() util.Uint256 {
	return n.valueDigest
}

// SetValue replaces an opaque value with its full bytes. The leaf hash is
// unchanged when the bytes match the digest.
func (n *LeafNode) SetValue(value []byte) {
	n.valueState = valueFull
	n.value = value
	n.valueDigest = hash.DoubleSha256(value)
	n.invalidateCache()
}

// Parent returns the hash of the parent branch.
func (n *LeafNode) Parent() util.Uint256 {
	return n.parent
}

// SetParent updates the parent back-reference. It is not a part of the
// hash preimage, so only the serialized form is invalidated.
func (n *LeafNode) SetParent(h util.Uint256) {
	n.parent = h
	n.invalidateBytes()
}

// EncodeBinary implements io.Serializable.
func (n *LeafNode) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(n.parent[:])
	w.WriteB(n.valueState)
	switch n.valueState {
	case valueFull:
		w.WriteVarBytes(n.value)
	case valueOpaque:
		w.WriteBytes(n.valueDigest[:])
	default:
		w.Err = fmt.Errorf("invalid value marker: %x", n.valueState)
	}
}

// DecodeBinary implements io.Serializable.
func (n *LeafNode) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(n.parent[:])
	n.valueState = r.ReadB()
	switch n.valueState {
	case valueFull:
		n.value = r.ReadVarBytes(MaxValueLength)
		n.valueDigest = hash.DoubleSha256(n.value)
	case valueOpaque:
		n.value = nil
		r.ReadBytes(n.valueDigest[:])
	default:
		r.Err = fmt.Errorf("invalid value marker: %x", n.valueState)
		return
	}
	n.invalidateCache()
}

// writeHashable writes the hash preimage: the shape tag and the value
// digest.
func (n *LeafNode) writeHashable(w *io.BinWriter) {
	w.WriteB(byte(LeafT))
	w.WriteBytes(n.valueDigest[:])
}

// MarshalJSON implements the json.Marshaler.
func (n *LeafNode) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	if !n.parent.Equals(nullHash) {
		m["parent"] = n.parent
	}
	if n.valueState == valueFull {
		m["value"] = hex.EncodeToString(n.value)
	} else {
		m["digest"] = n.valueDigest
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements the json.Unmarshaler.
func (n *LeafNode) UnmarshalJSON(data []byte) error {
	var m struct {
		Children []json.RawMessage `json:"children"`
		Parent   *util.Uint256     `json:"parent"`
		Value    *string           `json:"value"`
		Digest   *util.Uint256     `json:"digest"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if m.Children != nil {
		return errors.New("expected leaf node")
	}
	*n = LeafNode{}
	switch {
	case m.Value != nil:
		value, err := hex.DecodeString(*m.Value)
		if err != nil {
			return err
		}
		n.SetValue(value)
	case m.Digest != nil:
		n.valueState = valueOpaque
		n.valueDigest = *m.Digest
	default:
		return errors.New("leaf node needs a value or a digest")
	}
	if m.Parent != nil {
		n.parent = *m.Parent
	}
	return nil
}

// Clone implements Node interface.
func (n *LeafNode) Clone() Node {
	res := *n
	return &res
}
