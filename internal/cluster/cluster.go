// Package cluster resolves the node's role in a cluster topology from an
// operator-supplied cluster config file.
package cluster

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Role designates a cluster member's function.
type Role string

const (
	RoleAggregator Role = "aggregator"
	RoleDbLeaf     Role = "dbleaf"
	RoleStringLeaf Role = "string"
)

// LeafHost describes one cluster member. Immutable once parsed.
type LeafHost struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required,min=1,max=65535"`
	Role Role   `yaml:"role" validate:"required,oneof=aggregator dbleaf string"`
}

// Topology is the role-partitioned view of the cluster config consumed by the
// query engine. DbLeaves and StringLeaves are disjoint: they are partitioned
// solely by role.
type Topology struct {
	DbLeaves     []LeafHost
	StringLeaves []LeafHost
	Clustered    bool
}

// ErrExclusiveFlags is returned when both cluster and string-servers modes are
// requested at once.
var ErrExclusiveFlags = errors.New("cluster and string-servers are mutually exclusive")

// ParseConfig parses cluster config text into leaf descriptors. Each entry is
// validated before any are returned.
func ParseConfig(data []byte) ([]LeafHost, error) {
	var leaves []LeafHost
	if err := yaml.Unmarshal(data, &leaves); err != nil {
		return nil, fmt.Errorf("parse cluster config: %w", err)
	}
	for i, leaf := range leaves {
		if err := validateLeaf(leaf); err != nil {
			return nil, fmt.Errorf("cluster config entry %d (%s): %w", i, leaf.Host, err)
		}
	}
	return leaves, nil
}

// ParseConfigFile reads and parses a cluster config file.
func ParseConfigFile(path string) ([]LeafHost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cluster config: %w", err)
	}
	return ParseConfig(data)
}

// Resolve partitions leaves into the topology this node will consume.
// When either mode flag is set, exactly one must be; neither set is a valid
// non-clustered startup. String leaves are partitioned whenever any cluster
// flag is present, db leaves only in cluster (aggregator) mode.
func Resolve(leaves []LeafHost, wantCluster, wantStringServers bool) (Topology, error) {
	if !wantCluster && !wantStringServers {
		return Topology{}, nil
	}
	if wantCluster == wantStringServers {
		return Topology{}, ErrExclusiveFlags
	}

	t := Topology{Clustered: true}
	if wantCluster {
		t.DbLeaves = filterByRole(leaves, RoleDbLeaf)
	}
	t.StringLeaves = filterByRole(leaves, RoleStringLeaf)
	return t, nil
}

func filterByRole(leaves []LeafHost, role Role) []LeafHost {
	var out []LeafHost
	for _, leaf := range leaves {
		if leaf.Role == role {
			out = append(out, leaf)
		}
	}
	return out
}
