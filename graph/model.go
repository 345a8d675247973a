// Package graph defines the editable effect topology and compiles it into
// deterministic evaluation plans.
package graph

// Mode selects how the topology is interpreted.
type Mode string

const (
	// ModeLinear orders nodes as a single serial chain.
	ModeLinear Mode = "linear"
	// ModeManual uses explicit user connections.
	ModeManual Mode = "manual"
	// ModeSplit runs two independent manual graphs, one per stereo lane.
	ModeSplit Mode = "split"
)

// Lane identifies one independent sub-graph in split mode.
type Lane string

const (
	LaneLeft  Lane = "left"
	LaneRight Lane = "right"
)

const (
	// StartNodeID is the reserved virtual source node. It is never processed
	// by a kernel; it carries the dry input into the graph.
	StartNodeID = "_start"
	// EndNodeID is the reserved virtual sink node whose accumulated input is
	// the graph output.
	EndNodeID = "_end"
)

// Node is one effect instance in the topology.
type Node struct {
	ID      string
	Type    string
	Enabled bool
	Lane    Lane
	X, Y    float64
	Params  map[string]float64
}

// Connection is a directed, gain-weighted edge between two nodes.
// Multiple edges into one node are summed after scaling by each edge gain.
type Connection struct {
	ID   string
	From string
	To   string
	Gain float64
}

// Config is the full editable topology: one of three modes plus the node and
// connection sets they draw from. It is a plain value; the engine copies it
// into immutable snapshots on publish.
type Config struct {
	Mode        Mode
	Nodes       []Node
	Connections []Connection

	// Chain is the externally supplied node order for ModeLinear.
	// Connections are ignored in that mode.
	Chain []string

	// AutoConnectEnd adds a unity edge from every dangling node to the end
	// sentinel in manual and split modes.
	AutoConnectEnd bool
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	out := c

	out.Nodes = make([]Node, len(c.Nodes))
	for i, n := range c.Nodes {
		out.Nodes[i] = n
		if n.Params != nil {
			params := make(map[string]float64, len(n.Params))
			for k, v := range n.Params {
				params[k] = v
			}

			out.Nodes[i].Params = params
		}
	}

	out.Connections = append([]Connection(nil), c.Connections...)
	out.Chain = append([]string(nil), c.Chain...)

	return out
}

// Node returns the node with the given ID, or nil.
func (c *Config) Node(id string) *Node {
	for i := range c.Nodes {
		if c.Nodes[i].ID == id {
			return &c.Nodes[i]
		}
	}

	return nil
}

// RemoveNode deletes a node and every connection touching it.
// Returns true if the node existed.
func (c *Config) RemoveNode(id string) bool {
	found := false

	nodes := c.Nodes[:0]
	for _, n := range c.Nodes {
		if n.ID == id {
			found = true
			continue
		}

		nodes = append(nodes, n)
	}

	c.Nodes = nodes

	if !found {
		return false
	}

	conns := c.Connections[:0]
	for _, conn := range c.Connections {
		if conn.From == id || conn.To == id {
			continue
		}

		conns = append(conns, conn)
	}

	c.Connections = conns

	chain := c.Chain[:0]
	for _, cid := range c.Chain {
		if cid == id {
			continue
		}

		chain = append(chain, cid)
	}

	c.Chain = chain

	return true
}

// Lanes returns the lanes the config evaluates: both lanes in split mode,
// the left lane alone otherwise.
func (c Config) Lanes() []Lane {
	if c.Mode == ModeSplit {
		return []Lane{LaneLeft, LaneRight}
	}

	return []Lane{LaneLeft}
}

// IsVirtual reports whether id names one of the reserved sentinel nodes.
func IsVirtual(id string) bool {
	return id == StartNodeID || id == EndNodeID
}
