package trie

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veritas-l2/hextrie/internal/testserdes"
	"github.com/veritas-l2/hextrie/pkg/crypto/hash"
	"github.com/veritas-l2/hextrie/pkg/util"
)

func getTestFuncEncode(ok bool, expected, actual Node) func(t *testing.T) {
	return func(t *testing.T) {
		t.Run("IO", func(t *testing.T) {
			data, err := testserdes.EncodeBinary(expected)
			require.NoError(t, err)
			err = testserdes.DecodeBinary(data, actual)
			if !ok {
				require.Error(t, err)
				return
			}
			// Full children collapse to stand-ins on the wire, so the
			// shapes are compared by type and hash.
			require.NoError(t, err)
			require.Equal(t, expected.Type(), actual.Type())
			require.Equal(t, expected.Hash(), actual.Hash())
		})
		t.Run("JSON", func(t *testing.T) {
			data, err := json.Marshal(expected)
			require.NoError(t, err)
			err = json.Unmarshal(data, actual)
			if !ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, expected.Type(), actual.Type())
			require.Equal(t, expected.Hash(), actual.Hash())
		})
	}
}

func TestNode_Serializable(t *testing.T) {
	t.Run("Leaf", func(t *testing.T) {
		t.Run("Good", getTestFuncEncode(true, NewLeafNode([]byte{0x01, 0x02, 0x03}), new(LeafNode)))
		t.Run("Empty", getTestFuncEncode(true, NewLeafNode([]byte{}), new(LeafNode)))
		t.Run("Opaque", getTestFuncEncode(true, NewOpaqueLeafNode(hash.DoubleSha256([]byte("abc"))), new(LeafNode)))
		t.Run("BigValue", func(t *testing.T) {
			data, err := testserdes.EncodeBinary(NewLeafNode(make([]byte, MaxValueLength+1)))
			require.NoError(t, err)
			require.Error(t, testserdes.DecodeBinary(data, new(LeafNode)))
		})
	})
	t.Run("Branch", func(t *testing.T) {
		b := NewBranchNode()
		b.Children[0] = NewLeafNode([]byte("value1"))
		b.Children[5] = NewProofNode(hash.DoubleSha256([]byte("pinned")))
		t.Run("Good", getTestFuncEncode(true, b, new(BranchNode)))

		withValue := NewBranchNode()
		withValue.Children[0xF] = NewLeafNode([]byte("child"))
		withValue.SetValue([]byte("own value"))
		t.Run("WithValue", getTestFuncEncode(true, withValue, new(BranchNode)))

		opaque := NewBranchNode()
		opaque.Children[0xF] = NewLeafNode([]byte("child"))
		opaque.SetValueDigest(hash.DoubleSha256([]byte("own value")))
		t.Run("OpaqueValue", getTestFuncEncode(true, opaque, new(BranchNode)))

		t.Run("Empty", getTestFuncEncode(true, NewBranchNode(), new(BranchNode)))
	})
	t.Run("Proof", func(t *testing.T) {
		t.Run("Good", getTestFuncEncode(true, NewProofNode(hash.DoubleSha256([]byte{0x01})), new(ProofNode)))
	})
	t.Run("WithParent", func(t *testing.T) {
		l := NewLeafNode([]byte("child"))
		l.SetParent(hash.DoubleSha256([]byte("parent")))
		t.Run("Leaf", getTestFuncEncode(true, l, new(LeafNode)))

		b := NewBranchNode()
		b.Children[3] = NewLeafNode([]byte("x"))
		b.SetParent(hash.DoubleSha256([]byte("parent")))
		t.Run("Branch", getTestFuncEncode(true, b, new(BranchNode)))
	})
}

func TestNodeObject_DecodeBinary(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		objs := []NodeObject{
			{Node: NewLeafNode([]byte("data"))},
			{Node: NewProofNode(hash.DoubleSha256([]byte("h")))},
			{Node: NewBranchNode()},
		}
		for i := range objs {
			data, err := testserdes.EncodeBinary(objs[i])
			require.NoError(t, err)
			actual := new(NodeObject)
			require.NoError(t, testserdes.DecodeBinary(data, actual))
			require.Equal(t, objs[i].Node.Type(), actual.Node.Type())
			require.Equal(t, objs[i].Node.Hash(), actual.Node.Hash())
		}
	})
	t.Run("InvalidType", func(t *testing.T) {
		require.Error(t, testserdes.DecodeBinary([]byte{0xFF}, new(NodeObject)))
	})
	t.Run("Truncated", func(t *testing.T) {
		data, err := testserdes.EncodeBinary(NodeObject{Node: NewProofNode(hash.DoubleSha256([]byte("h")))})
		require.NoError(t, err)
		require.Error(t, testserdes.DecodeBinary(data[:len(data)-1], new(NodeObject)))
	})
}

func TestNode_MarshalUnmarshalJSON(t *testing.T) {
	t.Run("Leaf", func(t *testing.T) {
		testserdes.MarshalUnmarshalJSON(t, NewLeafNode([]byte{0xAB, 0xCD}), new(LeafNode))
	})
	t.Run("OpaqueLeaf", func(t *testing.T) {
		testserdes.MarshalUnmarshalJSON(t, NewOpaqueLeafNode(hash.DoubleSha256([]byte("v"))), new(LeafNode))
	})
	t.Run("Proof", func(t *testing.T) {
		testserdes.MarshalUnmarshalJSON(t, NewProofNode(hash.DoubleSha256([]byte("p"))), new(ProofNode))
	})
	t.Run("Branch", func(t *testing.T) {
		b := NewBranchNode()
		b.Children[2] = NewLeafNode([]byte{0x01})
		b.Children[7] = NewProofNode(hash.DoubleSha256([]byte("sub")))
		b.SetValue([]byte{0x02})
		testserdes.MarshalUnmarshalJSON(t, b, new(BranchNode))
	})
}

func TestInvalidJSON(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"InvalidChildrenCount", []byte(`{"children":[]}`)},
		{"InvalidHash", []byte(`{"hash":"not a hash"}`)},
		{"InvalidValue", []byte(`{"value":"not a hex"}`)},
		{"NoFields", []byte(`{"parent":"0000000000000000000000000000000000000000000000000000000000000000"}`)},
		{"NotAnObject", []byte(`[]`)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var obj NodeObject
			require.Error(t, json.Unmarshal(tc.data, &obj))
		})
	}
	t.Run("ChildrenInLeaf", func(t *testing.T) {
		require.Error(t, json.Unmarshal([]byte(`{"children":[],"value":"00"}`), new(LeafNode)))
	})
	t.Run("EmptyLeaf", func(t *testing.T) {
		require.Error(t, json.Unmarshal([]byte(`{}`), new(LeafNode)))
	})
}

func TestNode_HashStability(t *testing.T) {
	value := []byte("some value")
	digest := hash.DoubleSha256(value)

	t.Run("opaque leaf keeps the hash", func(t *testing.T) {
		full := NewLeafNode(value)
		opaque := NewOpaqueLeafNode(digest)
		require.Equal(t, full.Hash(), opaque.Hash())
	})
	t.Run("opaque branch value keeps the hash", func(t *testing.T) {
		b1 := NewBranchNode()
		b1.Children[4] = NewLeafNode([]byte("child"))
		b1.SetValue(value)

		b2 := NewBranchNode()
		b2.Children[4] = NewLeafNode([]byte("child"))
		b2.SetValueDigest(digest)

		require.Equal(t, b1.Hash(), b2.Hash())
	})
	t.Run("proof child keeps the branch hash", func(t *testing.T) {
		child := NewLeafNode([]byte("child"))
		b1 := NewBranchNode()
		b1.Children[9] = child

		b2 := NewBranchNode()
		b2.Children[9] = NewProofNode(child.Hash())

		require.Equal(t, b1.Hash(), b2.Hash())
	})
	t.Run("parent is not committed", func(t *testing.T) {
		l := NewLeafNode(value)
		h := l.Hash()
		before := l.Bytes()
		l.SetParent(hash.DoubleSha256([]byte("parent")))
		require.Equal(t, h, l.Hash())
		require.NotEqual(t, before, l.Bytes())
	})
	t.Run("empty value is still a value", func(t *testing.T) {
		bare := NewBranchNode()
		withEmpty := NewBranchNode()
		withEmpty.SetValue([]byte{})
		require.NotEqual(t, bare.Hash(), withEmpty.Hash())
	})
	t.Run("restoring opaque bytes keeps the hash", func(t *testing.T) {
		opaque := NewOpaqueLeafNode(digest)
		h := opaque.Hash()
		opaque.SetValue(value)
		require.Equal(t, h, opaque.Hash())
		require.Equal(t, value, opaque.Value())
	})
}
