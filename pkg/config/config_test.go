package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPassesValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestValidateRejectsShortWaveLength(t *testing.T) {
	cfg := Default()
	cfg.WaveLength = 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected wave_length < 3 to be rejected")
	}
}

func TestValidateRejectsOutOfRangeSwapThreshold(t *testing.T) {
	cfg := Default()
	cfg.LeaderSwapThreshold = 34
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected leader_swap_threshold > 33 to be rejected")
	}
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "committee_size: 7\nwave_length: 4\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CommitteeSize != 7 {
		t.Fatalf("CommitteeSize = %d, want 7", cfg.CommitteeSize)
	}
	if cfg.WaveLength != 4 {
		t.Fatalf("WaveLength = %d, want 4", cfg.WaveLength)
	}
	if cfg.CheckpointBufferSize != Default().CheckpointBufferSize {
		t.Fatalf("CheckpointBufferSize = %d, want default %d unchanged", cfg.CheckpointBufferSize, Default().CheckpointBufferSize)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
