package trie

import (
	"encoding/json"
	"fmt"

	"github.com/veritas-l2/hextrie/pkg/io"
	"github.com/veritas-l2/hextrie/pkg/util"
)

// NodeType represents a node type.
type NodeType byte

// Node types definitions. The type tag doubles as the shape tag of the
// node's hash preimage.
const (
	BranchT NodeType = 0x01
	LeafT   NodeType = 0x02
	ProofT  NodeType = 0x03
)

// Value markers used in the node wire form. An opaque value is committed
// by its digest only, the bytes themselves are not carried.
const (
	valueNone   byte = 0x00
	valueFull   byte = 0x01
	valueOpaque byte = 0x02
)

// MaxKeyLength is the max length of the key to put in the trie
// before transforming to nibbles.
const MaxKeyLength = 512

// maxPathLength is the max length of a nibble path.
const maxPathLength = MaxKeyLength * 2

// MaxValueLength is the max length of a value to put in the trie.
const MaxValueLength = 1 << 20

// nullHash marks an absent node. It never collides with the hash of a
// real node.
var nullHash = util.Uint256{}

// Node represents common interface of all trie nodes.
type Node interface {
	BaseNodeIface
	io.Serializable
	json.Marshaler
	json.Unmarshaler
	Clone() Node
	writeHashable(*io.BinWriter)
}

// NodeObject represents a Node together with its type.
// It is used for serialization/deserialization where type info
// is also expected.
type NodeObject struct {
	Node
}

// EncodeBinary implements io.Serializable.
func (n NodeObject) EncodeBinary(w *io.BinWriter) {
	encodeNodeWithType(n.Node, w)
}

// DecodeBinary implements io.Serializable.
func (n *NodeObject) DecodeBinary(r *io.BinReader) {
	typ := NodeType(r.ReadB())
	switch typ {
	case BranchT:
		n.Node = new(BranchNode)
	case LeafT:
		n.Node = new(LeafNode)
	case ProofT:
		n.Node = new(ProofNode)
	default:
		r.Err = fmt.Errorf("invalid node type: %x", typ)
		return
	}
	n.Node.DecodeBinary(r)
}

// MarshalJSON implements the json.Marshaler.
func (n NodeObject) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Node)
}

// UnmarshalJSON implements the json.Unmarshaler.
func (n *NodeObject) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	err := json.Unmarshal(data, &m)
	if err != nil {
		return err
	}
	switch {
	case m["children"] != nil:
		n.Node = new(BranchNode)
	case m["value"] != nil || m["digest"] != nil:
		n.Node = new(LeafNode)
	case m["hash"] != nil:
		n.Node = new(ProofNode)
	default:
		return fmt.Errorf("invalid node fields: %s", data)
	}
	return n.Node.UnmarshalJSON(data)
}

// encodeNodeWithType encodes node together with its type.
func encodeNodeWithType(n Node, w *io.BinWriter) {
	w.WriteB(byte(n.Type()))
	n.EncodeBinary(w)
}

// toBytes is a helper for serializing node.
func toBytes(n Node) []byte {
	buf := io.NewBufBinWriter()
	encodeNodeWithType(n, buf.BinWriter)
	return buf.Bytes()
}
