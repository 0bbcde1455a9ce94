package trie

import "bytes"

// toNibbles mangles the key by splitting every byte into two, containing
// the high and the low half-byte. The result is the descent path for the
// key, twice as long as the key itself.
func toNibbles(key []byte) []byte {
	result := make([]byte, len(key)*2)
	for i := range key {
		result[i*2] = key[i] >> 4
		result[i*2+1] = key[i] & 0x0F
	}
	return result
}

// extends reports whether nibble path b lies within the subtree rooted at
// path a, i.e. whether a is a prefix of b. Every path extends itself.
func extends(a, b []byte) bool {
	return bytes.HasPrefix(b, a)
}

// validPath reports whether every element of the path is a nibble. Paths
// received from the outside must be checked before they are used as
// child slot indices.
func validPath(path []byte) bool {
	for _, i := range path {
		if i >= 0x10 {
			return false
		}
	}
	return len(path) <= maxPathLength
}
