package trie

import (
	"errors"

	"github.com/veritas-l2/hextrie/pkg/util"
)

// replayClass says how a bundle replay ended.
type replayClass byte

const (
	// replayClean means the whole operation log was replayed and every
	// post-state entry was consumed.
	replayClean replayClass = iota
	// replayFraud means the replay tripped the hash invariance check.
	replayFraud
	// replayStopped means the replay latched any other failure.
	replayStopped
)

// replayResult is the observable outcome of replaying an operation log
// against a bundle: how the replay ended and the root it ended at.
type replayResult struct {
	class replayClass
	root  util.Uint256
}

// MinimizeClaim shrinks the claim's bundle to the minimal material still
// producing the claim's verdict. Nodes of the trusted set may back the
// dropped material, the minimized bundle then verifies only when the
// same trusted set is supplied.
func MinimizeClaim(c *Claim, trusted []Node) *Bundle {
	return minimizeBundle(c.PreRoot, &c.Bundle, c.Ops, trusted)
}

// minimizeBundle shrinks the bundle to the minimal material preserving
// the replay outcome of the operation log. The outcome to preserve is
// the bundle's own standalone replay, trial replays resolve dropped
// material through the trusted set. Exact duplicates go first, then
// greedy rounds try dropping every proof pair, every post-state entry
// wholesale and every entry node individually: a drop survives only if
// a trial replay still ends the same way at the same root. The
// wholesale attempt matters for trusted material, it voids a whole
// descent chain at once while any partial chain is rejected by the
// entry bounds check. Rounds run to a fixpoint, one drop can make
// another one possible. The input bundle is left untouched.
func minimizeBundle(preRoot util.Uint256, b *Bundle, ops []Op, trusted []Node) *Bundle {
	m := &Bundle{
		Reads:   dedupReads(b.Reads),
		Pairs:   dedupPairs(b.Pairs),
		Entries: make([][]ProofEntry, len(b.Entries)),
	}
	for i := range b.Entries {
		m.Entries[i] = append([]ProofEntry{}, b.Entries[i]...)
	}
	base := replayOutcome(preRoot, m, ops, nil)
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(m.Pairs); {
			old := m.Pairs
			next := make([]ProofPair, 0, len(old)-1)
			next = append(next, old[:i]...)
			next = append(next, old[i+1:]...)
			m.Pairs = next
			if replayOutcome(preRoot, m, ops, trusted) == base {
				changed = true
				continue
			}
			m.Pairs = old
			i++
		}
		for ei := range m.Entries {
			if len(m.Entries[ei]) > 0 {
				old := m.Entries[ei]
				m.Entries[ei] = []ProofEntry{}
				if replayOutcome(preRoot, m, ops, trusted) == base {
					changed = true
				} else {
					m.Entries[ei] = old
				}
			}
			for i := 0; i < len(m.Entries[ei]); {
				old := m.Entries[ei]
				next := make([]ProofEntry, 0, len(old)-1)
				next = append(next, old[:i]...)
				next = append(next, old[i+1:]...)
				m.Entries[ei] = next
				if replayOutcome(preRoot, m, ops, trusted) == base {
					changed = true
					continue
				}
				m.Entries[ei] = old
				i++
			}
		}
	}
	return m
}

// replayOutcome replays the operation log against a fresh verifier built
// from the bundle and reports how it ended. The root is folded even for
// a latched session, its shape is deterministic either way.
func replayOutcome(preRoot util.Uint256, b *Bundle, ops []Op, trusted []Node) replayResult {
	v, err := NewVerifier(preRoot, b)
	if err != nil {
		return replayResult{class: replayStopped}
	}
	for _, n := range trusted {
		if v.AddTrustedNode(n) != nil {
			return replayResult{class: replayStopped}
		}
	}
	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case OpGet:
			_, err = v.Get(op.Key)
		case OpPut:
			err = v.Put(op.Key, op.Value)
		default:
			return replayResult{class: replayStopped, root: v.Root()}
		}
		if err != nil {
			if errors.Is(err, ErrHashMismatch) {
				return replayResult{class: replayFraud, root: v.Root()}
			}
			return replayResult{class: replayStopped, root: v.Root()}
		}
	}
	if v.cursor != len(b.Entries) {
		return replayResult{class: replayStopped, root: v.Root()}
	}
	return replayResult{class: replayClean, root: v.Root()}
}

// dedupReads drops byte-identical read pairs, first stays.
func dedupReads(reads []ReadPair) []ReadPair {
	type readKey struct {
		key     string
		present bool
		value   string
	}
	seen := make(map[readKey]bool, len(reads))
	out := make([]ReadPair, 0, len(reads))
	for i := range reads {
		k := readKey{
			key:     string(reads[i].Key),
			present: reads[i].Value != nil,
			value:   string(reads[i].Value),
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, reads[i])
		}
	}
	return out
}

// dedupPairs drops byte-identical proof pairs, first stays. Pairs
// differing in any component are kept: conflicting pins at the same
// position resolve by order, so only exact duplicates are safe to drop
// blindly.
func dedupPairs(pairs []ProofPair) []ProofPair {
	type pairKey struct {
		path  string
		hash  util.Uint256
		value bool
	}
	seen := make(map[pairKey]bool, len(pairs))
	out := make([]ProofPair, 0, len(pairs))
	for i := range pairs {
		k := pairKey{path: string(pairs[i].Path), hash: pairs[i].Hash, value: pairs[i].Value}
		if !seen[k] {
			seen[k] = true
			out = append(out, pairs[i])
		}
	}
	return out
}
