package kvpaxos

import (
	"errors"
	"fmt"
)

var errNoNodes = errors.New("config: no nodes")

// Config describes the cluster as seen by a client or a transporter.
// It is immutable once built.
type Config struct {
	nodes  []string
	quorum int
}

// NewConfig builds a config over the given node addresses. The quorum is a
// strict majority of the nodes.
func NewConfig(nodes []string) (*Config, error) {
	if len(nodes) == 0 {
		return nil, errNoNodes
	}
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n == "" {
			return nil, errors.New("config: empty node address")
		}
		if seen[n] {
			return nil, fmt.Errorf("config: duplicate node %q", n)
		}
		seen[n] = true
	}
	c := &Config{
		nodes:  make([]string, len(nodes)),
		quorum: len(nodes)/2 + 1,
	}
	copy(c.nodes, nodes)
	return c, nil
}

// Size returns the number of nodes.
func (c *Config) Size() int {
	return len(c.nodes)
}

// Quorum returns the minimum number of successful replies an operation needs.
func (c *Config) Quorum() int {
	return c.quorum
}

// Node returns the address of node i.
func (c *Config) Node(i int) string {
	return c.nodes[i]
}

// Nodes returns a copy of all node addresses.
func (c *Config) Nodes() []string {
	nodes := make([]string, len(c.nodes))
	copy(nodes, c.nodes)
	return nodes
}
