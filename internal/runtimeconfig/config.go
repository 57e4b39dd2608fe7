// SPDX-License-Identifier: GPL-3.0-or-later

// Package runtimeconfig loads the daemon's YAML configuration document
//: runtime identity, loader extensions, fabric connection parameters,
// and codec feature flags. Kept outside the core package since the core
// treats configuration loading as an external collaborator.
package runtimeconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the default filesystem location for the runtime
// configuration document.
const DefaultPath = "/etc/flowmesh/runtime.yaml"

// FabricConfig holds the connection parameters for the pub/sub fabric.
type FabricConfig struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
}

// LoaderConfig names the directories a [flowmesh.Loader] searches for
// dynamically-loadable components.
type LoaderConfig struct {
	Extensions []string `yaml:"extensions"`
}

// Codec selects the wire codec used across connectors and fabric values.
// One of "cbor", "json", "binary".
type Codec string

const (
	CodecCBOR   Codec = "cbor"
	CodecJSON   Codec = "json"
	CodecBinary Codec = "binary"
)

// RuntimeConfig is the daemon's top-level configuration document.
type RuntimeConfig struct {
	RuntimeName string       `yaml:"runtime_name"`
	RuntimeUUID string       `yaml:"runtime_uuid"`
	Loader      LoaderConfig `yaml:"loader"`
	Fabric      FabricConfig `yaml:"fabric"`
	Codec       Codec        `yaml:"codec"`
	Workers     int          `yaml:"workers"`
}

// Load reads and parses the YAML document at path.
func Load(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runtimeconfig: read %s: %w", path, err)
	}

	var cfg RuntimeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("runtimeconfig: parse %s: %w", path, err)
	}
	if cfg.Codec == "" {
		cfg.Codec = CodecCBOR
	}
	return &cfg, nil
}
