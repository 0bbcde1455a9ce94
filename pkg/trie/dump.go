package trie

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4"
	"github.com/veritas-l2/hextrie/pkg/io"
)

// Dump record framing.
const (
	dumpMagic           = 0x44545848 // "HXTD"
	dumpVersion    byte = 1
	dumpRaw        byte = 0
	dumpLZ4        byte = 1
	maxDumpPayload      = 1 << 26
	maxDumpNodes        = 0x100000
)

// SaveClaim writes the claim to the writer as a single framed,
// compressed dump record.
func SaveClaim(w *io.BinWriter, c *Claim) error {
	buf := io.NewBufBinWriter()
	c.EncodeBinary(buf.BinWriter)
	if buf.Err != nil {
		return buf.Err
	}
	writeDumpRecord(w, buf.Bytes())
	return w.Err
}

// LoadClaim reads a claim written by SaveClaim.
func LoadClaim(r *io.BinReader) (*Claim, error) {
	data := readDumpRecord(r)
	if r.Err != nil {
		return nil, r.Err
	}
	br := io.NewBinReaderFromBuf(data)
	c := new(Claim)
	c.DecodeBinary(br)
	if br.Err != nil {
		return nil, br.Err
	}
	return c, nil
}

// SaveNodes writes a set of trusted nodes as a single framed, compressed
// dump record.
func SaveNodes(w *io.BinWriter, nodes []Node) error {
	buf := io.NewBufBinWriter()
	buf.WriteVarUint(uint64(len(nodes)))
	for _, n := range nodes {
		encodeNodeWithType(n, buf.BinWriter)
	}
	if buf.Err != nil {
		return buf.Err
	}
	writeDumpRecord(w, buf.Bytes())
	return w.Err
}

// LoadNodes reads a node set written by SaveNodes. Stand-in nodes are
// rejected, a dump of hashes proves nothing.
func LoadNodes(r *io.BinReader) ([]Node, error) {
	data := readDumpRecord(r)
	if r.Err != nil {
		return nil, r.Err
	}
	br := io.NewBinReaderFromBuf(data)
	count := br.ReadVarUint()
	if br.Err != nil {
		return nil, br.Err
	}
	if count > maxDumpNodes {
		return nil, fmt.Errorf("too many nodes in a dump: %d", count)
	}
	nodes := make([]Node, 0, count)
	for i := uint64(0); i < count; i++ {
		var no NodeObject
		no.DecodeBinary(br)
		if br.Err != nil {
			return nil, br.Err
		}
		if no.Node.Type() == ProofT {
			return nil, errors.New("dump carries a stand-in node")
		}
		nodes = append(nodes, no.Node)
	}
	return nodes, nil
}

// writeDumpRecord frames the payload: compressed when it helps, raw
// otherwise.
func writeDumpRecord(w *io.BinWriter, payload []byte) {
	if len(payload) > maxDumpPayload {
		w.Err = errors.New("dump record is too big")
		return
	}
	w.WriteU32LE(dumpMagic)
	w.WriteB(dumpVersion)
	dest := make([]byte, lz4.CompressBlockBound(len(payload)))
	size, err := lz4.CompressBlock(payload, dest, nil)
	if err != nil {
		w.Err = err
		return
	}
	if size == 0 || size >= len(payload) {
		w.WriteB(dumpRaw)
		w.WriteVarBytes(payload)
		return
	}
	w.WriteB(dumpLZ4)
	w.WriteU32LE(uint32(len(payload)))
	w.WriteVarBytes(dest[:size])
}

// readDumpRecord reads one framed record and returns its payload.
func readDumpRecord(r *io.BinReader) []byte {
	if m := r.ReadU32LE(); m != dumpMagic {
		if r.Err == nil {
			r.Err = errors.New("not a dump record")
		}
		return nil
	}
	if v := r.ReadB(); v != dumpVersion && r.Err == nil {
		r.Err = fmt.Errorf("unsupported dump version %d", v)
		return nil
	}
	switch f := r.ReadB(); f {
	case dumpRaw:
		return r.ReadVarBytes(maxDumpPayload)
	case dumpLZ4:
		usize := r.ReadU32LE()
		comp := r.ReadVarBytes(maxDumpPayload)
		if r.Err != nil {
			return nil
		}
		if usize > maxDumpPayload {
			r.Err = errors.New("dump record is too big")
			return nil
		}
		dest := make([]byte, usize)
		size, err := lz4.UncompressBlock(comp, dest)
		if err != nil {
			r.Err = err
			return nil
		}
		if size != int(usize) {
			r.Err = errors.New("dump record size mismatch")
			return nil
		}
		return dest[:size]
	default:
		if r.Err == nil {
			r.Err = fmt.Errorf("invalid dump flag %d", f)
		}
	}
	return nil
}
