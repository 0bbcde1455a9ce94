package trie

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veritas-l2/hextrie/pkg/crypto/hash"
)

func TestMinimizeClaim_DropsRedundantMaterial(t *testing.T) {
	c := deriveTestClaim(t, newTestTrie(t), func(p *Prover) {
		_, err := p.Get([]byte{0xAC, 0x01})
		require.NoError(t, err)
		require.NoError(t, p.Put([]byte{0xAC, 0x9F}, []byte("w")))
	})
	requireVerdict(t, VerdictHonest, c, nil)

	baseReads := len(c.Bundle.Reads)
	basePairs := len(c.Bundle.Pairs)
	baseNodes := len(c.Bundle.Entries[0])
	require.NotZero(t, baseNodes)

	c.Bundle.Reads = append(c.Bundle.Reads, c.Bundle.Reads[0])
	c.Bundle.Pairs = append(c.Bundle.Pairs, c.Bundle.Pairs[0])
	c.Bundle.Entries[0] = append(c.Bundle.Entries[0], c.Bundle.Entries[0][0])
	requireVerdict(t, VerdictHonest, c, nil)

	m := MinimizeClaim(c, nil)
	require.Len(t, m.Reads, baseReads)
	require.Len(t, m.Pairs, basePairs)
	require.Len(t, m.Entries, len(c.Bundle.Entries))
	require.Len(t, m.Entries[0], baseNodes)

	// The claim still verifies with the minimized bundle.
	mc := *c
	mc.Bundle = *m
	requireVerdict(t, VerdictHonest, &mc, nil)

	// The input bundle is left as it was.
	require.Len(t, c.Bundle.Reads, baseReads+1)
	require.Len(t, c.Bundle.Pairs, basePairs+1)
	require.Len(t, c.Bundle.Entries[0], baseNodes+1)
}

func TestMinimizeClaim_TrustedMaterial(t *testing.T) {
	newClaim := func(t *testing.T) *Claim {
		return deriveTestClaim(t, newTestTrie(t), func(p *Prover) {
			require.NoError(t, p.Put([]byte{0xAC, 0x77}, []byte("w")))
		})
	}

	t.Run("whole chain trusted", func(t *testing.T) {
		c := newClaim(t)
		require.NotEmpty(t, c.Bundle.Entries[0])

		var trusted []Node
		for i := range c.Bundle.Entries[0] {
			trusted = append(trusted, c.Bundle.Entries[0][i].Node.Clone())
		}

		m := MinimizeClaim(c, trusted)
		require.Empty(t, m.Entries[0])

		mc := *c
		mc.Bundle = *m
		requireVerdict(t, VerdictHonest, &mc, trusted)
		// Without the trusted material the write has nothing to descend
		// through.
		requireVerdict(t, VerdictInvalid, &mc, nil)
	})
	t.Run("deepest node trusted", func(t *testing.T) {
		c := newClaim(t)
		entry := c.Bundle.Entries[0]
		require.Len(t, entry, 3)
		trusted := []Node{entry[len(entry)-1].Node.Clone()}

		m := MinimizeClaim(c, trusted)
		require.Len(t, m.Entries[0], 2)

		mc := *c
		mc.Bundle = *m
		requireVerdict(t, VerdictHonest, &mc, trusted)
		requireVerdict(t, VerdictInvalid, &mc, nil)
	})
	t.Run("trusted material bounds the entries", func(t *testing.T) {
		// A bundle still carrying material the store resolves on its own
		// oversteps the deepened stray trie boundary. Claims verify
		// against the trust context they were minimized for.
		c := newClaim(t)
		var trusted []Node
		for i := range c.Bundle.Entries[0] {
			trusted = append(trusted, c.Bundle.Entries[0][i].Node.Clone())
		}
		requireVerdict(t, VerdictHonest, c, nil)
		requireVerdict(t, VerdictInvalid, c, trusted)
	})
}

func TestMinimizeClaim_PreservesFraud(t *testing.T) {
	c := deriveTestClaim(t, newTestTrie(t), func(p *Prover) {
		require.NoError(t, p.Put([]byte{0xAC, 0x77}, []byte("w")))
	})
	entry := c.Bundle.Entries[0]
	require.NotEmpty(t, entry)
	entry[len(entry)-1].Node = NewOpaqueLeafNode(hash.DoubleSha256([]byte("forged")))
	requireVerdict(t, VerdictFraud, c, nil)

	m := MinimizeClaim(c, nil)
	mc := *c
	mc.Bundle = *m
	verdict, err := VerifyClaim(&mc, nil)
	require.ErrorIs(t, err, ErrHashMismatch)
	require.Equal(t, VerdictFraud, verdict)

	// Nothing that would erase the fraud signal may be dropped.
	require.Len(t, m.Entries[0], len(entry))
}

func TestMinimizeClaim_Idempotent(t *testing.T) {
	c := deriveTestClaim(t, newTestTrie(t), func(p *Prover) {
		_, err := p.Get([]byte{0xAC, 0x01})
		require.NoError(t, err)
		require.NoError(t, p.Put([]byte{0xAC, 0x9F}, []byte("w")))
	})
	m1 := MinimizeClaim(c, nil)

	mc := *c
	mc.Bundle = *m1
	m2 := MinimizeClaim(&mc, nil)
	require.Equal(t, len(m1.Reads), len(m2.Reads))
	require.Equal(t, len(m1.Pairs), len(m2.Pairs))
	for i := range m1.Entries {
		require.Equal(t, len(m1.Entries[i]), len(m2.Entries[i]))
	}
}

func TestMinimizeClaim_EmptySession(t *testing.T) {
	c := &Claim{PostRoot: emptyRootHash}
	m := MinimizeClaim(c, nil)
	require.Empty(t, m.Reads)
	require.Empty(t, m.Pairs)
	require.Empty(t, m.Entries)
}
