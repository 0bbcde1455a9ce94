package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFileName is the name of the configuration file Load looks for
// inside its path argument.
const DefaultConfigFileName = "hextrie.yml"

// Version is the version of the tool, set at build time.
var Version string

// Config is the top level configuration structure.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// Load attempts to load the config from the given directory using the
// default configuration file name.
func Load(path string) (Config, error) {
	return LoadFile(filepath.Join(path, DefaultConfigFileName))
}

// LoadFile loads config from the provided path. Omitted settings keep their
// defaults and unknown keys are rejected.
func LoadFile(configPath string) (Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	config := Config{
		ApplicationConfiguration: defaultApplicationConfiguration(),
	}
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	if err = decoder.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err = config.ApplicationConfiguration.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
