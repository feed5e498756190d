// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesAllocDefaultThreshold(t *testing.T) {
	cfg := Default()
	if cfg.GCDebtThreshold != 1024 {
		t.Fatalf("GCDebtThreshold = %d, want 1024", cfg.GCDebtThreshold)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pr47.toml")
	contents := "gc_debt_threshold = 4096\ninitial_stack_capacity = 512\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GCDebtThreshold != 4096 {
		t.Fatalf("GCDebtThreshold = %d, want 4096", cfg.GCDebtThreshold)
	}
	if cfg.InitialStackCapacity != 512 {
		t.Fatalf("InitialStackCapacity = %d, want 512", cfg.InitialStackCapacity)
	}
	if cfg.MaxHeapObjects != 0 {
		t.Fatalf("MaxHeapObjects = %d, want the default 0 (not overridden)", cfg.MaxHeapObjects)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected an error loading a missing file")
	}
}
