package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, typ string) Node {
	return Node{ID: id, Type: typ, Enabled: true, Lane: LaneLeft}
}

func conn(from, to string, gain float64) Connection {
	return Connection{ID: from + ">" + to, From: from, To: to, Gain: gain}
}

func TestCompileEmptyGraph(t *testing.T) {
	plan, err := Compile(Config{Mode: ModeManual}, LaneLeft)
	require.NoError(t, err)

	assert.Equal(t, []string{StartNodeID, EndNodeID}, plan.Order)
	assert.Equal(t, []Producer{{From: StartNodeID, Gain: 1}}, plan.Producers[EndNodeID])
}

func TestCompileLinearChain(t *testing.T) {
	cfg := Config{
		Mode:  ModeLinear,
		Nodes: []Node{node("a", "bassboost"), node("b", "delay")},
		Chain: []string{"a", "b"},
		// User connections are ignored in linear mode.
		Connections: []Connection{conn("b", "a", 1)},
	}

	plan, err := Compile(cfg, LaneLeft)
	require.NoError(t, err)

	assert.Equal(t, []string{StartNodeID, "a", "b", EndNodeID}, plan.Order)
	assert.Equal(t, []Producer{{From: "a", Gain: 1}}, plan.Producers["b"])
	assert.Equal(t, []Producer{{From: "b", Gain: 1}}, plan.Producers[EndNodeID])
}

func TestCompileLinearSkipsUnknownChainIDs(t *testing.T) {
	cfg := Config{
		Mode:  ModeLinear,
		Nodes: []Node{node("a", "bassboost")},
		Chain: []string{"missing", "a"},
	}

	plan, err := Compile(cfg, LaneLeft)
	require.NoError(t, err)

	assert.Equal(t, []string{StartNodeID, "a", EndNodeID}, plan.Order)
}

func TestCompileManualFanOutFanIn(t *testing.T) {
	cfg := Config{
		Mode:  ModeManual,
		Nodes: []Node{node("a", "delay"), node("b", "reverb")},
		Connections: []Connection{
			conn(StartNodeID, "a", 1),
			conn(StartNodeID, "b", 0.5),
			conn("a", EndNodeID, 0.7),
			conn("b", EndNodeID, 0.3),
		},
	}

	plan, err := Compile(cfg, LaneLeft)
	require.NoError(t, err)

	require.Len(t, plan.Producers[EndNodeID], 2)
	assert.Equal(t, Producer{From: "a", Gain: 0.7}, plan.Producers[EndNodeID][0])
	assert.Equal(t, Producer{From: "b", Gain: 0.3}, plan.Producers[EndNodeID][1])

	assert.ElementsMatch(t, []string{"a", "b"}, plan.Consumers(StartNodeID))
}

func TestCompileRejectsCycle(t *testing.T) {
	cfg := Config{
		Mode:  ModeManual,
		Nodes: []Node{node("a", "delay"), node("b", "reverb")},
		Connections: []Connection{
			conn(StartNodeID, "a", 1),
			conn("a", "b", 1),
			conn("b", "a", 1),
			conn("a", EndNodeID, 1),
		},
	}

	_, err := Compile(cfg, LaneLeft)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestCompileDropsDanglingConnections(t *testing.T) {
	cfg := Config{
		Mode:  ModeManual,
		Nodes: []Node{node("a", "delay")},
		Connections: []Connection{
			conn(StartNodeID, "a", 1),
			conn("a", EndNodeID, 1),
			conn("ghost", "a", 1),
			conn("a", "a", 1),
		},
	}

	plan, err := Compile(cfg, LaneLeft)
	require.NoError(t, err)

	assert.Equal(t, []Producer{{From: StartNodeID, Gain: 1}}, plan.Producers["a"])
}

func TestCompileAutoConnectEnd(t *testing.T) {
	cfg := Config{
		Mode:           ModeManual,
		AutoConnectEnd: true,
		Nodes:          []Node{node("a", "delay")},
		Connections: []Connection{
			conn(StartNodeID, "a", 1),
		},
	}

	plan, err := Compile(cfg, LaneLeft)
	require.NoError(t, err)

	assert.Equal(t, []Producer{{From: "a", Gain: 1}}, plan.Producers[EndNodeID])
}

func TestCompilePrunesUnreachableNodes(t *testing.T) {
	orphan := node("orphan", "reverb")

	cfg := Config{
		Mode:  ModeManual,
		Nodes: []Node{node("a", "delay"), orphan},
		Connections: []Connection{
			conn(StartNodeID, "a", 1),
			conn("a", EndNodeID, 1),
			conn("orphan", EndNodeID, 1),
		},
	}

	plan, err := Compile(cfg, LaneLeft)
	require.NoError(t, err)

	assert.False(t, plan.Live("orphan"))
	assert.Equal(t, []string{StartNodeID, "a", EndNodeID}, plan.Order)
	// The orphan's weighted edge into End must not survive pruning.
	assert.Equal(t, []Producer{{From: "a", Gain: 1}}, plan.Producers[EndNodeID])
}

func TestCompileSplitLanesAreIndependent(t *testing.T) {
	left := node("l", "delay")
	right := node("r", "reverb")
	right.Lane = LaneRight

	cfg := Config{
		Mode:  ModeSplit,
		Nodes: []Node{left, right},
		Connections: []Connection{
			conn(StartNodeID, "l", 1),
			conn("l", EndNodeID, 1),
			{ID: "c3", From: StartNodeID, To: "r", Gain: 1},
			{ID: "c4", From: "r", To: EndNodeID, Gain: 1},
		},
	}

	lp, err := Compile(cfg, LaneLeft)
	require.NoError(t, err)

	rp, err := Compile(cfg, LaneRight)
	require.NoError(t, err)

	assert.True(t, lp.Live("l"))
	assert.False(t, lp.Live("r"))
	assert.True(t, rp.Live("r"))
	assert.False(t, rp.Live("l"))
}

func TestCompileDeterministic(t *testing.T) {
	cfg := Config{
		Mode:  ModeManual,
		Nodes: []Node{node("a", "delay"), node("b", "reverb"), node("c", "chorus")},
		Connections: []Connection{
			conn(StartNodeID, "a", 1),
			conn(StartNodeID, "b", 1),
			conn("a", "c", 0.5),
			conn("b", "c", 0.5),
			conn("c", EndNodeID, 1),
		},
	}

	first, err := Compile(cfg, LaneLeft)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := Compile(cfg, LaneLeft)
		require.NoError(t, err)
		assert.Equal(t, first.Order, again.Order)
	}
}
