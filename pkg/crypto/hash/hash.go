// Package hash contains wrappers for Sha256 and RipeMD160 hashing functions.
package hash

import (
	"crypto/sha256"

	"github.com/veritas-l2/hextrie/pkg/util"
	"golang.org/x/crypto/ripemd160"
)

// Sha256 hashes the incoming byte slice using the sha256 algorithm.
func Sha256(data []byte) util.Uint256 {
	hash := sha256.Sum256(data)
	return hash
}

// DoubleSha256 performs sha256 twice on the given data. This is the function
// trie nodes are addressed by.
func DoubleSha256(data []byte) util.Uint256 {
	h1 := sha256.Sum256(data)
	hash := sha256.Sum256(h1[:])
	return hash
}

// RipeMD160 performs the RIPEMD160 hash algorithm on the given data.
func RipeMD160(data []byte) util.Uint160 {
	hasher := ripemd160.New()
	_, _ = hasher.Write(data)

	hash, _ := util.Uint160DecodeBytesBE(hasher.Sum(nil))
	return hash
}

// Hash160 performs sha256 and then ripemd160 on the given data, producing
// a compact 20-byte identifier.
func Hash160(data []byte) util.Uint160 {
	h1 := Sha256(data)
	return RipeMD160(h1.BytesBE())
}

// Checksum returns the checksum for a given piece of data using sha256 twice
// as the hash algorithm.
func Checksum(data []byte) []byte {
	hash := DoubleSha256(data)
	return hash.BytesBE()[:4]
}