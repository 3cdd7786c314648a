// Copyright 2024 The bcos-sync Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0

// Package config loads the node configuration this module runs with: a
// TOML file on disk, overlaid with CLI flag values, following go-ethereum's
// own cmd/geth convention of a struct decoded straight off a TOML document.
package config

import (
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
)

// NodeConfig is the on-disk/CLI configuration surface for a bcossyncd
// instance. Each field is read from the TOML key named in its toml tag;
// keys are matched exactly, case included (see tomlSettings).
type NodeConfig struct {
	// NodeID identifies this node. It is handed to the sync core as its
	// NodeID and appears in some of the core's log lines.
	NodeID string `toml:"nodeId"`

	// MaxDownloadingBlockQueueSize bounds both the ingress buffer of
	// undecoded batches (a batch pushed while it is full is dropped) and
	// the decoded-block heap (batches stay buffered while the heap is full).
	MaxDownloadingBlockQueueSize int `toml:"maxDownloadingBlockQueueSize"`

	// MetricsAddr is the address the Prometheus HTTP handler listens on,
	// empty to disable it.
	MetricsAddr string `toml:"metricsAddr"`

	// LogVerbosity is one of "debug", "info", "warn", "error".
	LogVerbosity string `toml:"logVerbosity"`
}

// DefaultConfig mirrors the defaults cmd/geth bakes into its own
// config struct for any field the TOML file omits.
func DefaultConfig() NodeConfig {
	return NodeConfig{
		NodeID:                       "node0",
		MaxDownloadingBlockQueueSize: 1024,
		MetricsAddr:                  "",
		LogVerbosity:                 "info",
	}
}

// tomlSettings follows cmd/geth's own config.go: field names pass through
// unchanged (no case-folding games) and an unrecognized key is reported
// rather than silently ignored, so a typo'd TOML key fails fast at load
// time instead of silently keeping a zero-value field.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// LoadFile decodes a TOML config file at path on top of DefaultConfig.
func LoadFile(path string) (NodeConfig, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Overlay applies non-zero-value CLI overrides on top of cfg, the same
// "file first, flags win" precedence cmd/geth uses.
func (cfg NodeConfig) Overlay(nodeID string, maxQueue int, metricsAddr string, logVerbosity string) NodeConfig {
	if nodeID != "" {
		cfg.NodeID = nodeID
	}
	if maxQueue > 0 {
		cfg.MaxDownloadingBlockQueueSize = maxQueue
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if logVerbosity != "" {
		cfg.LogVerbosity = logVerbosity
	}
	return cfg
}
