package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veritas-l2/hextrie/pkg/storage/dbconfig"
)

func TestStorageNames(t *testing.T) {
	tmp := t.TempDir()
	cfg := dbconfig.DBConfiguration{
		LevelDBOptions: dbconfig.LevelDBOptions{
			DataDirectoryPath: filepath.Join(tmp, "level"),
		},
		BoltDBOptions: dbconfig.BoltDBOptions{
			FilePath: filepath.Join(tmp, "bolt"),
		},
	}
	for _, name := range []string{dbconfig.BoltDB, dbconfig.LevelDB, dbconfig.InMemoryDB} {
		t.Run(name, func(t *testing.T) {
			cfg.Type = name
			s, err := NewStore(cfg)
			require.NoError(t, err)
			require.NoError(t, s.Close())
		})
	}
	t.Run("unknown", func(t *testing.T) {
		cfg.Type = "bogusdb"
		_, err := NewStore(cfg)
		require.Error(t, err)
	})
}

func TestAppendPrefix(t *testing.T) {
	require.Equal(t, []byte{byte(DataTrie)}, DataTrie.Bytes())
	require.Equal(t, []byte{byte(DataTrie), 0xaa, 0xbb}, AppendPrefix(DataTrie, []byte{0xaa, 0xbb}))
	require.Equal(t, []byte{byte(SYSVersion)}, AppendPrefix(SYSVersion, nil))
}

func TestVersion(t *testing.T) {
	s := NewMemoryStore()
	_, err := Version(s)
	require.Equal(t, ErrKeyNotFound, err)
	require.NoError(t, PutVersion(s, "0.1.0"))
	v, err := Version(s)
	require.NoError(t, err)
	require.Equal(t, "0.1.0", v)
	require.NoError(t, s.Close())
}
