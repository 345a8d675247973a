package graph

import "errors"

// ErrCycle is returned when the topology contains a directed cycle.
// Compilation fails closed: the affected lane renders silence.
var ErrCycle = errors.New("graph: topology contains cycle")

// Producer is one weighted input of a node: the last-computed buffer of From
// scaled by Gain, summed in edge insertion order.
type Producer struct {
	From string
	Gain float64
}

// Plan is a validated, immutable evaluation plan for one lane: the live nodes
// in topological order plus each node's weighted producers.
type Plan struct {
	Lane  Lane
	Order []string
	Nodes map[string]Node
	// Producers lists the weighted inputs per node in edge insertion order.
	Producers map[string][]Producer
	consumers map[string][]string
}

// Consumers returns the IDs of the nodes fed by the given node.
func (p *Plan) Consumers(id string) []string {
	if p == nil {
		return nil
	}

	return p.consumers[id]
}

// Live reports whether the node takes part in evaluation.
func (p *Plan) Live(id string) bool {
	if p == nil {
		return false
	}

	for _, oid := range p.Order {
		if oid == id {
			return true
		}
	}

	return false
}

type edge struct {
	from string
	to   string
	gain float64
}

// Compile turns a config into an evaluation plan for one lane.
//
// Virtual start/end sentinels are materialized per lane. Linear mode
// synthesizes unity edges along the supplied chain order; manual and split
// modes use the explicit connections, dropping edges whose endpoints no longer
// exist. Cycles reject the whole lane with ErrCycle. Nodes unreachable from
// the start sentinel are excluded from the order but keep their kernel state.
func Compile(cfg Config, lane Lane) (*Plan, error) {
	nodeOrder, nodes := laneNodes(cfg, lane)
	edges := laneEdges(cfg, lane, nodes)

	order, err := topoSort(nodeOrder, edges)
	if err != nil {
		return nil, err
	}

	live := reachableFromStart(edges)

	plan := &Plan{
		Lane:      lane,
		Nodes:     nodes,
		Producers: make(map[string][]Producer, len(nodes)),
		consumers: make(map[string][]string, len(nodes)),
	}

	for _, id := range order {
		if !live[id] {
			continue
		}

		plan.Order = append(plan.Order, id)
	}

	for _, e := range edges {
		if !live[e.from] || !live[e.to] {
			continue
		}

		plan.Producers[e.to] = append(plan.Producers[e.to], Producer{From: e.from, Gain: e.gain})
		plan.consumers[e.from] = append(plan.consumers[e.from], e.to)
	}

	return plan, nil
}

// laneNodes collects the lane's user nodes plus the two sentinels,
// preserving config insertion order for deterministic traversal.
func laneNodes(cfg Config, lane Lane) ([]string, map[string]Node) {
	nodes := make(map[string]Node, len(cfg.Nodes)+2)
	order := make([]string, 0, len(cfg.Nodes)+2)

	add := func(n Node) {
		if _, ok := nodes[n.ID]; ok {
			return
		}

		nodes[n.ID] = n
		order = append(order, n.ID)
	}

	add(Node{ID: StartNodeID, Enabled: true, Lane: lane})

	for _, n := range cfg.Nodes {
		if IsVirtual(n.ID) {
			continue
		}

		if cfg.Mode == ModeSplit && n.Lane != lane {
			continue
		}

		add(n)
	}

	add(Node{ID: EndNodeID, Enabled: true, Lane: lane})

	return order, nodes
}

func laneEdges(cfg Config, lane Lane, nodes map[string]Node) []edge {
	if cfg.Mode == ModeLinear {
		return linearEdges(cfg, nodes)
	}

	edges := make([]edge, 0, len(cfg.Connections)+1)

	for _, conn := range cfg.Connections {
		if conn.From == "" || conn.To == "" || conn.From == conn.To {
			continue
		}

		// Dangling endpoints referencing removed nodes are a configuration
		// error resolved by dropping the edge, never by failing the lane.
		if _, ok := nodes[conn.From]; !ok {
			continue
		}

		if _, ok := nodes[conn.To]; !ok {
			continue
		}

		edges = append(edges, edge{from: conn.From, to: conn.To, gain: conn.Gain})
	}

	if cfg.AutoConnectEnd {
		edges = append(edges, autoConnectEdges(cfg, lane, nodes, edges)...)
	}

	if len(edges) == 0 {
		edges = append(edges, edge{from: StartNodeID, to: EndNodeID, gain: 1})
	}

	return edges
}

// linearEdges synthesizes start -> n0 -> ... -> nk -> end with unity gains
// from the externally supplied chain order. User connections are ignored.
func linearEdges(cfg Config, nodes map[string]Node) []edge {
	edges := make([]edge, 0, len(cfg.Chain)+1)
	prev := StartNodeID

	for _, id := range cfg.Chain {
		if IsVirtual(id) {
			continue
		}

		if _, ok := nodes[id]; !ok {
			continue
		}

		edges = append(edges, edge{from: prev, to: id, gain: 1})
		prev = id
	}

	edges = append(edges, edge{from: prev, to: EndNodeID, gain: 1})

	return edges
}

// autoConnectEdges adds a unity edge to the end sentinel from every lane node
// that has no outgoing edge.
func autoConnectEdges(cfg Config, lane Lane, nodes map[string]Node, existing []edge) []edge {
	hasOutgoing := make(map[string]bool, len(nodes))
	for _, e := range existing {
		hasOutgoing[e.from] = true
	}

	var added []edge

	for _, n := range cfg.Nodes {
		if IsVirtual(n.ID) {
			continue
		}

		if cfg.Mode == ModeSplit && n.Lane != lane {
			continue
		}

		if hasOutgoing[n.ID] {
			continue
		}

		added = append(added, edge{from: n.ID, to: EndNodeID, gain: 1})
	}

	return added
}

// topoSort runs Kahn's algorithm over the lane. The queue is seeded and
// drained in node insertion order so the result is deterministic.
func topoSort(nodeOrder []string, edges []edge) ([]string, error) {
	indegree := make(map[string]int, len(nodeOrder))
	outgoing := make(map[string][]string, len(nodeOrder))

	for _, id := range nodeOrder {
		indegree[id] = 0
	}

	for _, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], e.to)
		indegree[e.to]++
	}

	queue := make([]string, 0, len(nodeOrder))
	for _, id := range nodeOrder {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(nodeOrder))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, to := range outgoing[id] {
			indegree[to]--
			if indegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(order) != len(nodeOrder) {
		return nil, ErrCycle
	}

	return order, nil
}

// reachableFromStart marks every node with a path from the start sentinel.
// Everything else is dead code: excluded from evaluation, state untouched.
func reachableFromStart(edges []edge) map[string]bool {
	forward := make(map[string][]string)
	for _, e := range edges {
		forward[e.from] = append(forward[e.from], e.to)
	}

	live := map[string]bool{StartNodeID: true}
	stack := []string{StartNodeID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, to := range forward[id] {
			if live[to] {
				continue
			}

			live[to] = true
			stack = append(stack, to)
		}
	}

	return live
}
