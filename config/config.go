// Package config loads the static cluster membership a Node is built
// from (§6): a mapping NodeId → (address, advertised resources). Node
// membership is fixed for the run — there is no live reload, matching the
// Non-goal of dynamic cluster membership.
package config

import (
	"fmt"
	"os"

	"dfut/internal/core"

	"gopkg.in/yaml.v3"
)

// Peer describes one cluster member: where to reach it, and what it
// advertises it can run.
type Peer struct {
	Addr      string            `yaml:"addr"`
	Resources core.ResourceConfig `yaml:"resources,omitempty"`
}

// Cluster is the full membership table consumed at Node.New.
type Cluster map[core.NodeId]Peer

// Load reads and parses a cluster config file.
func Load(path string) (Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cluster config: %w", err)
	}

	var cluster Cluster
	if err := yaml.Unmarshal(data, &cluster); err != nil {
		return nil, fmt.Errorf("parse cluster config: %w", err)
	}
	return cluster, nil
}

// Save writes cluster to path.
func Save(path string, cluster Cluster) error {
	data, err := yaml.Marshal(cluster)
	if err != nil {
		return fmt.Errorf("marshal cluster config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write cluster config: %w", err)
	}
	return nil
}
