package config

import (
	"fmt"
	"time"
)

// DisputeConfiguration is a config for the dispute service watching a spool
// directory for claim files.
type DisputeConfiguration struct {
	// SpoolPath is the directory polled for incoming "*.claim" files.
	// Processed files are moved to the "done" and "invalid" subdirectories.
	SpoolPath string `yaml:"SpoolPath"`
	// PollInterval is the delay between spool directory scans.
	PollInterval time.Duration `yaml:"PollInterval"`
}

// Validate checks DisputeConfiguration for internal consistency. It returns
// an error if the configuration is invalid.
func (d *DisputeConfiguration) Validate() error {
	if d.SpoolPath == "" {
		return fmt.Errorf("SpoolPath can't be empty")
	}
	if d.PollInterval <= 0 {
		return fmt.Errorf("PollInterval must be positive")
	}
	return nil
}
