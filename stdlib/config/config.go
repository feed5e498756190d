// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package config loads the execution core's tunables from a TOML file, the
// way the teacher node loads its own configuration (spec.md's ambient
// configuration layer: GC debt threshold, initial stack capacity, and an
// optional heap ceiling).
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"
)

// tomlSettings mirrors the teacher node's own config-loading convention:
// keys and Go field names are compared lower-cased, and each Config field
// carries an explicit `toml:"..."` tag giving its snake_case key.
var tomlSettings = toml.Config{
	NormFieldName: func(typ reflect.Type, keyOrField string) string {
		return strings.ToLower(keyOrField)
	},
	FieldToKey: func(typ reflect.Type, field string) string {
		return strings.ToLower(field)
	},
}

// Config holds the knobs a host supplies when standing up a VM; the field
// comments say which of them the VM reads.
type Config struct {
	// GCDebtThreshold is the number of allocations between collections
	// (0 selects alloc.DefaultDebtThreshold).
	GCDebtThreshold int `toml:"gc_debt_threshold"`
	// InitialStackCapacity is a Value-slot count for each coroutine's
	// Stack. It is carried in the config only: executor.New reserves 256
	// slots for every Stack and does not read this field.
	InitialStackCapacity int `toml:"initial_stack_capacity"`
	// MaxHeapObjects is a cap on the number of live managed objects; 0
	// means unbounded. The allocator does not read this field, so the cap
	// is not enforced.
	MaxHeapObjects int `toml:"max_heap_objects"`
}

// Default returns the configuration a VM starts with when the host supplies
// no file.
func Default() Config {
	return Config{
		GCDebtThreshold:      1024,
		InitialStackCapacity: 256,
		MaxHeapObjects:       0,
	}
}

// Load reads and decodes a TOML configuration file at path, filling in any
// field left at its zero value with Default()'s value.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	if err := tomlSettings.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return cfg, nil
}
