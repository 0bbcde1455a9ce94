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

// OpKind is the kind of a replayable trie operation.
type OpKind byte

// Replayable operation kinds.
const (
	OpGet OpKind = 0x01
	OpPut OpKind = 0x02
)

// maxClaimOps caps the operation log length of a decoded claim.
const maxClaimOps = 0x10000

// Op is one operation of a recorded execution session.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// EncodeBinary implements io.Serializable.
func (o *Op) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(o.Kind))
	w.WriteVarBytes(o.Key)
	if o.Kind == OpPut {
		w.WriteVarBytes(o.Value)
	}
}

// DecodeBinary implements io.Serializable.
func (o *Op) DecodeBinary(r *io.BinReader) {
	o.Kind = OpKind(r.ReadB())
	o.Key = r.ReadVarBytes(MaxKeyLength)
	o.Value = nil
	switch o.Kind {
	case OpGet:
	case OpPut:
		o.Value = r.ReadVarBytes(MaxValueLength)
	default:
		if r.Err == nil {
			r.Err = errors.New("invalid operation kind")
		}
	}
}

// MarshalJSON implements the json.Marshaler.
func (o Op) MarshalJSON() ([]byte, error) {
	m := map[string]any{"key": hex.EncodeToString(o.Key)}
	switch o.Kind {
	case OpGet:
		m["kind"] = "get"
	case OpPut:
		m["kind"] = "put"
		m["value"] = hex.EncodeToString(o.Value)
	default:
		return nil, errors.New("invalid operation kind")
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements the json.Unmarshaler.
func (o *Op) UnmarshalJSON(data []byte) error {
	var m struct {
		Kind  string  `json:"kind"`
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
	o.Key = key
	o.Value = nil
	switch m.Kind {
	case "get":
		o.Kind = OpGet
	case "put":
		o.Kind = OpPut
		if m.Value == nil {
			return errors.New("put operation without a value")
		}
		if o.Value, err = hex.DecodeString(*m.Value); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid operation kind %q", m.Kind)
	}
	return nil
}

// Claim is a published statement about one execution session: starting
// from PreRoot, replaying Ops yields PostRoot. The attached bundle makes
// the statement checkable by anyone holding nothing but the claim.
type Claim struct {
	PreRoot  util.Uint256
	PostRoot util.Uint256
	Ops      []Op
	Bundle   Bundle
}

// ID returns the hash identifying the claim in a dispute.
func (c *Claim) ID() util.Uint256 {
	buf := io.NewBufBinWriter()
	c.EncodeBinary(buf.BinWriter)
	if buf.Err != nil {
		panic(buf.Err)
	}
	return hash.DoubleSha256(buf.Bytes())
}

// EncodeBinary implements io.Serializable.
func (c *Claim) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(c.PreRoot[:])
	w.WriteBytes(c.PostRoot[:])
	w.WriteArray(c.Ops)
	c.Bundle.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (c *Claim) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(c.PreRoot[:])
	r.ReadBytes(c.PostRoot[:])
	r.ReadArray(&c.Ops, maxClaimOps)
	c.Bundle.DecodeBinary(r)
}

// MarshalJSON implements the json.Marshaler.
func (c Claim) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"preroot":  c.PreRoot,
		"postroot": c.PostRoot,
		"ops":      c.Ops,
		"bundle":   c.Bundle,
	})
}

// UnmarshalJSON implements the json.Unmarshaler.
func (c *Claim) UnmarshalJSON(data []byte) error {
	var m struct {
		PreRoot  util.Uint256 `json:"preroot"`
		PostRoot util.Uint256 `json:"postroot"`
		Ops      []Op         `json:"ops"`
		Bundle   Bundle       `json:"bundle"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	c.PreRoot = m.PreRoot
	c.PostRoot = m.PostRoot
	c.Ops = m.Ops
	c.Bundle = m.Bundle
	return nil
}

// Verdict is the outcome of checking a claim against its bundle.
type Verdict byte

const (
	// VerdictInvalid means the bundle cannot support the claim either
	// way: the replay had to stop before anything was proven or
	// disproven. The claim is rejected without being branded fraud.
	VerdictInvalid Verdict = iota
	// VerdictHonest means the replay reproduced the claimed
	// post-execution root exactly.
	VerdictHonest
	// VerdictFraud means the replay disproved the claim.
	VerdictFraud
)

// String implements the fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case VerdictHonest:
		return "honest"
	case VerdictFraud:
		return "fraud"
	case VerdictInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("verdict(%d)", byte(v))
	}
}

// VerifyClaim replays the claim's operation log against a skeleton trie
// built from the claim's bundle and maps the outcome to a verdict. Nodes
// proven in earlier dispute rounds may be supplied as trusted material,
// minimized bundles resolve them through the store instead of carrying
// them again.
//
// A hash invariance break during the replay is the definitive fraud
// signal, and so is a completed replay ending at a root different from
// the claimed one. Everything else that stops the replay makes the
// claim invalid: such a bundle proves nothing about the execution.
func VerifyClaim(c *Claim, trusted []Node) (Verdict, error) {
	v, err := NewVerifier(c.PreRoot, &c.Bundle)
	if err != nil {
		return VerdictInvalid, err
	}
	for _, n := range trusted {
		if err := v.AddTrustedNode(n); err != nil {
			return VerdictInvalid, err
		}
	}
	for i := range c.Ops {
		op := &c.Ops[i]
		switch op.Kind {
		case OpGet:
			_, err = v.Get(op.Key)
		case OpPut:
			err = v.Put(op.Key, op.Value)
		default:
			return VerdictInvalid, fmt.Errorf("invalid operation kind %d", op.Kind)
		}
		if err != nil {
			if errors.Is(err, ErrHashMismatch) {
				return VerdictFraud, err
			}
			return VerdictInvalid, err
		}
	}
	if v.cursor != len(c.Bundle.Entries) {
		return VerdictInvalid, fmt.Errorf("%w: %d post-state entries left unconsumed",
			ErrMalformedProof, len(c.Bundle.Entries)-v.cursor)
	}
	if v.Root().Equals(c.PostRoot) {
		return VerdictHonest, nil
	}
	return VerdictFraud, nil
}
