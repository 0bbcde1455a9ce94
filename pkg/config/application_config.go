package config

import (
	"fmt"
	"time"

	"github.com/veritas-l2/hextrie/pkg/storage/dbconfig"
)

// ApplicationConfiguration config specific to the node.
type ApplicationConfiguration struct {
	DBConfiguration dbconfig.DBConfiguration `yaml:"DBConfiguration"`
	LogLevel        string                   `yaml:"LogLevel"`
	LogPath         string                   `yaml:"LogPath"`
	// NodeCacheSize is the number of decoded trie nodes kept in memory in
	// front of the backing store, 0 leaves the built-in default.
	NodeCacheSize int                  `yaml:"NodeCacheSize"`
	Prometheus    BasicService         `yaml:"Prometheus"`
	Pprof         BasicService         `yaml:"Pprof"`
	Dispute       DisputeConfiguration `yaml:"Dispute"`
}

func defaultApplicationConfiguration() ApplicationConfiguration {
	return ApplicationConfiguration{
		DBConfiguration: dbconfig.DBConfiguration{
			Type: dbconfig.InMemoryDB,
		},
		LogLevel: "info",
		Dispute: DisputeConfiguration{
			SpoolPath:    "spool",
			PollInterval: 5 * time.Second,
		},
	}
}

// Validate checks ApplicationConfiguration for internal consistency. It
// returns an error if the configuration is invalid.
func (a *ApplicationConfiguration) Validate() error {
	switch a.DBConfiguration.Type {
	case dbconfig.InMemoryDB, dbconfig.LevelDB, dbconfig.BoltDB:
	default:
		return fmt.Errorf("unknown storage type: %s", a.DBConfiguration.Type)
	}
	if a.NodeCacheSize < 0 {
		return fmt.Errorf("NodeCacheSize can't be negative")
	}
	return a.Dispute.Validate()
}
