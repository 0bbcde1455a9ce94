package trie

import (
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/veritas-l2/hextrie/pkg/io"
	"github.com/veritas-l2/hextrie/pkg/util"
)

const (
	// maxBundleItems limits the read and proof pair counts of a single
	// bundle on the wire.
	maxBundleItems = 0x100000
	// maxBundleEntries limits the post-state entry count of a single
	// bundle on the wire.
	maxBundleEntries = 0x10000
	// maxEntryNodes limits the node count of a single post-state entry.
	// An honest entry holds at most one node per descent position.
	maxEntryNodes = maxPathLength + 1
)

// ReadPair records a key read during capture together with the value it
// resolved to. A nil value records a read of an absent key.
type ReadPair struct {
	Key   []byte
	Value []byte
}

// ProofPair pins a hash into the pre-state skeleton. With the Value
// marker unset it pins the occupant of the child slot addressed by Path,
// with the marker set it pins the value digest of the node at Path. The
// marker distinguishes the two, since both kinds can legitimately appear
// for the same path.
type ProofPair struct {
	Path  []byte
	Hash  util.Uint256
	Value bool
}

// ProofEntry carries one node of a post-state entry, addressed by its
// nibble path.
type ProofEntry struct {
	Path []byte
	Node Node
}

// Bundle is a fraud-proof bundle. Reads and Pairs form the pre-state
// certifying every captured read against the pre-execution root, Entries
// is the post-state: one node list per write, in write order.
type Bundle struct {
	Reads   []ReadPair
	Pairs   []ProofPair
	Entries [][]ProofEntry
}

// EncodeBinary implements io.Serializable.
func (p *ReadPair) EncodeBinary(w *io.BinWriter) {
	w.WriteVarBytes(p.Key)
	if p.Value == nil {
		w.WriteB(0)
		return
	}
	w.WriteB(1)
	w.WriteVarBytes(p.Value)
}

// DecodeBinary implements io.Serializable.
func (p *ReadPair) DecodeBinary(r *io.BinReader) {
	p.Key = r.ReadVarBytes(MaxKeyLength)
	switch f := r.ReadB(); f {
	case 0:
		p.Value = nil
	case 1:
		p.Value = r.ReadVarBytes(MaxValueLength)
	default:
		if r.Err == nil {
			r.Err = errors.New("invalid read pair marker")
		}
	}
}

// MarshalJSON implements the json.Marshaler.
func (p ReadPair) MarshalJSON() ([]byte, error) {
	m := map[string]any{"key": hex.EncodeToString(p.Key)}
	if p.Value != nil {
		m["value"] = hex.EncodeToString(p.Value)
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements the json.Unmarshaler.
func (p *ReadPair) UnmarshalJSON(data []byte) error {
	var m struct {
		Key   string  `json:"key"`
		Value *string `json:"value"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	key, err := hex.DecodeString(m.Key)
	if err != nil {
		return err
	}
	p.Key = key
	p.Value = nil
	if m.Value != nil {
		if p.Value, err = hex.DecodeString(*m.Value); err != nil {
			return err
		}
	}
	return nil
}

// EncodeBinary implements io.Serializable.
func (p *ProofPair) EncodeBinary(w *io.BinWriter) {
	w.WriteVarBytes(p.Path)
	w.WriteBytes(p.Hash[:])
	w.WriteBool(p.Value)
}

// DecodeBinary implements io.Serializable.
func (p *ProofPair) DecodeBinary(r *io.BinReader) {
	p.Path = r.ReadVarBytes(maxPathLength)
	r.ReadBytes(p.Hash[:])
	p.Value = r.ReadBool()
}

// MarshalJSON implements the json.Marshaler.
func (p ProofPair) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"path": hex.EncodeToString(p.Path),
		"hash": p.Hash,
	}
	if p.Value {
		m["value"] = true
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements the json.Unmarshaler.
func (p *ProofPair) UnmarshalJSON(data []byte) error {
	var m struct {
		Path  string       `json:"path"`
		Hash  util.Uint256 `json:"hash"`
		Value bool         `json:"value"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	path, err := hex.DecodeString(m.Path)
	if err != nil {
		return err
	}
	p.Path = path
	p.Hash = m.Hash
	p.Value = m.Value
	return nil
}

// EncodeBinary implements io.Serializable.
func (p *ProofEntry) EncodeBinary(w *io.BinWriter) {
	w.WriteVarBytes(p.Path)
	encodeNodeWithType(p.Node, w)
}

// DecodeBinary implements io.Serializable.
func (p *ProofEntry) DecodeBinary(r *io.BinReader) {
	p.Path = r.ReadVarBytes(maxPathLength)
	var no NodeObject
	no.DecodeBinary(r)
	p.Node = no.Node
}

// MarshalJSON implements the json.Marshaler.
func (p ProofEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"path": hex.EncodeToString(p.Path),
		"node": p.Node,
	})
}

// UnmarshalJSON implements the json.Unmarshaler.
func (p *ProofEntry) UnmarshalJSON(data []byte) error {
	var m struct {
		Path string          `json:"path"`
		Node json.RawMessage `json:"node"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	path, err := hex.DecodeString(m.Path)
	if err != nil {
		return err
	}
	var no NodeObject
	if err := no.UnmarshalJSON(m.Node); err != nil {
		return err
	}
	p.Path = path
	p.Node = no.Node
	return nil
}

// EncodeBinary implements io.Serializable.
func (b *Bundle) EncodeBinary(w *io.BinWriter) {
	w.WriteArray(b.Reads)
	w.WriteArray(b.Pairs)
	w.WriteVarUint(uint64(len(b.Entries)))
	for i := range b.Entries {
		w.WriteArray(b.Entries[i])
	}
}

// DecodeBinary implements io.Serializable.
func (b *Bundle) DecodeBinary(r *io.BinReader) {
	r.ReadArray(&b.Reads, maxBundleItems)
	r.ReadArray(&b.Pairs, maxBundleItems)
	n := r.ReadVarUint()
	if n > maxBundleEntries {
		r.Err = errors.New("too many post-state entries")
		return
	}
	if r.Err != nil {
		return
	}
	b.Entries = make([][]ProofEntry, n)
	for i := range b.Entries {
		r.ReadArray(&b.Entries[i], maxEntryNodes)
	}
}

// MarshalJSON implements the json.Marshaler.
func (b Bundle) MarshalJSON() ([]byte, error) {
	type aux struct {
		Reads   []ReadPair     `json:"reads"`
		Pairs   []ProofPair    `json:"pairs"`
		Entries [][]ProofEntry `json:"entries"`
	}
	return json.Marshal(aux{Reads: b.Reads, Pairs: b.Pairs, Entries: b.Entries})
}

// UnmarshalJSON implements the json.Unmarshaler.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var m struct {
		Reads   []ReadPair     `json:"reads"`
		Pairs   []ProofPair    `json:"pairs"`
		Entries [][]ProofEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	b.Reads = m.Reads
	b.Pairs = m.Pairs
	b.Entries = m.Entries
	return nil
}
