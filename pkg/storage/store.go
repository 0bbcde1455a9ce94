package storage

import (
	"errors"
	"fmt"

	"github.com/veritas-l2/hextrie/pkg/storage/dbconfig"
)

// KeyPrefix is a constant byte added prior to a key in the data store.
type KeyPrefix uint8

// KeyPrefix constants.
const (
	// DataTrie is the prefix for trie nodes keyed by node hash.
	DataTrie KeyPrefix = 0x03
	// DataTrieAux is the prefix for auxiliary trie data like named roots.
	DataTrieAux KeyPrefix = 0x04
	// DataClaim is the prefix for stored claims keyed by claim ID.
	DataClaim KeyPrefix = 0x05
	// SYSVersion is the prefix of the storage scheme version.
	SYSVersion KeyPrefix = 0xf0
)

// ErrKeyNotFound is an error returned by Store implementations
// when a certain key is not found.
var ErrKeyNotFound = errors.New("key not found")

// Store is anything that can persist and retrieve the trie state.
// The required semantics for the interfaces are:
//   - Get returns ErrKeyNotFound if the key is missing, the value otherwise.
//   - Put/Delete never fail for transient per-key reasons, an error from them
//     means the store itself is broken.
//   - Seek traverses all keys with the given prefix in ascending order, the
//     key and value slices passed to f are only valid until f returns.
type Store interface {
	Batch() Batch
	Delete(k []byte) error
	Get([]byte) ([]byte, error)
	Put(k, v []byte) error
	PutBatch(Batch) error
	Seek(k []byte, f func(k, v []byte))
	Close() error
}

// Batch represents an abstraction on top of batch operations.
// Each Store implementation is responsible for casting a Batch
// to its appropriate type. Batches can only be used in a single
// thread.
type Batch interface {
	Delete(k []byte)
	Put(k, v []byte)
}

// Bytes returns the bytes representation of KeyPrefix.
func (k KeyPrefix) Bytes() []byte {
	return []byte{byte(k)}
}

// AppendPrefix appends byteslice b to the given KeyPrefix.
func AppendPrefix(k KeyPrefix, b []byte) []byte {
	dest := make([]byte, len(b)+1)
	dest[0] = byte(k)
	copy(dest[1:], b)
	return dest
}

// NewStore creates storage with preselected in configuration database type.
func NewStore(cfg dbconfig.DBConfiguration) (Store, error) {
	var store Store
	var err error
	switch cfg.Type {
	case dbconfig.LevelDB:
		store, err = NewLevelDBStore(cfg.LevelDBOptions)
	case dbconfig.InMemoryDB:
		store = NewMemoryStore()
	case dbconfig.BoltDB:
		store, err = NewBoltDBStore(cfg.BoltDBOptions)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
	return store, err
}
