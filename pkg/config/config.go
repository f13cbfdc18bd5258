// Package config holds the flat, struct-tagged configuration shared by the
// consensus and execution components, loaded by cmd/consensusd from flags
// and validated once at startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config enumerates every tunable named in the substrate's external
// interface contract.
type Config struct {
	// DataDir is the directory holding the bbolt-backed block, commit, and
	// object stores.
	DataDir string `yaml:"data_dir"`

	// CommitteeSize is the number of authorities in the committee.
	CommitteeSize int `yaml:"committee_size"`

	// WaveLength is the consensus wave length; must be >= 3.
	WaveLength int `yaml:"wave_length"`

	// LeaderSwapThreshold is the stake-% cap, in [0,33], for the swap
	// table's good_nodes/bad_nodes pools.
	LeaderSwapThreshold int `yaml:"leader_swap_threshold"`

	// CommitsPerSchedule is how many commits accumulate into a reputation
	// window before the swap table is rebuilt.
	CommitsPerSchedule int `yaml:"commits_per_schedule"`

	// CheckpointBufferSize bounds the ingestion regulator's in-order
	// delivery buffer.
	CheckpointBufferSize int `yaml:"checkpoint_buffer_size"`

	// IngestConcurrency bounds concurrent checkpoint fetches.
	IngestConcurrency int `yaml:"ingest_concurrency"`

	// RetryIntervalMS is the fixed backoff between retried fetches.
	RetryIntervalMS int `yaml:"retry_interval_ms"`

	// MaxOutputObjectsPerTx guards temporary-store output size.
	MaxOutputObjectsPerTx int `yaml:"max_output_objects_per_tx"`
}

// Default returns a Config with the values used across the spec's
// boundary-case tests: minimum wave length, round-robin-friendly
// committee size, and conservative ingestion tuning.
func Default() Config {
	return Config{
		DataDir:               "./data",
		CommitteeSize:         4,
		WaveLength:            3,
		LeaderSwapThreshold:   10,
		CommitsPerSchedule:    100,
		CheckpointBufferSize:  64,
		IngestConcurrency:     8,
		RetryIntervalMS:       500,
		MaxOutputObjectsPerTx: 2048,
	}
}

// Load reads a yaml-encoded Config from path, starting from Default so
// an omitted field keeps its default value rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration-key bounds enumerated in the
// substrate's external interface contract.
func (c Config) Validate() error {
	if c.WaveLength < 3 {
		return fmt.Errorf("wave_length must be >= 3, got %d", c.WaveLength)
	}
	if c.LeaderSwapThreshold < 0 || c.LeaderSwapThreshold > 33 {
		return fmt.Errorf("leader_swap_threshold must be in [0,33], got %d", c.LeaderSwapThreshold)
	}
	if c.CommitteeSize <= 0 {
		return fmt.Errorf("committee_size must be positive, got %d", c.CommitteeSize)
	}
	if c.CommitsPerSchedule <= 0 {
		return fmt.Errorf("commits_per_schedule must be positive, got %d", c.CommitsPerSchedule)
	}
	if c.CheckpointBufferSize <= 0 {
		return fmt.Errorf("checkpoint_buffer_size must be positive, got %d", c.CheckpointBufferSize)
	}
	if c.IngestConcurrency <= 0 {
		return fmt.Errorf("ingest_concurrency must be positive, got %d", c.IngestConcurrency)
	}
	if c.RetryIntervalMS <= 0 {
		return fmt.Errorf("retry_interval_ms must be positive, got %d", c.RetryIntervalMS)
	}
	if c.MaxOutputObjectsPerTx <= 0 {
		return fmt.Errorf("max_output_objects_per_tx must be positive, got %d", c.MaxOutputObjectsPerTx)
	}
	return nil
}
