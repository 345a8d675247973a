package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseConfig() Config {
	return Config{
		Mode: ModeManual,
		Nodes: []Node{
			{ID: "a", Type: "bassboost", Enabled: true, Lane: LaneLeft, Params: map[string]float64{"amount": 0.5}},
		},
		Connections: []Connection{
			{ID: "c1", From: StartNodeID, To: "a", Gain: 1},
			{ID: "c2", From: "a", To: EndNodeID, Gain: 0.8},
		},
	}
}

func TestSignatureStableAcrossRepublishes(t *testing.T) {
	cfg := baseConfig()
	first := Signature(cfg)

	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Signature(cfg.Clone()))
	}
}

func TestSignatureIgnoresParameterValues(t *testing.T) {
	cfg := baseConfig()
	before := Signature(cfg)

	cfg.Nodes[0].Params["amount"] = 0.9

	assert.Equal(t, before, Signature(cfg))
}

func TestSignatureIgnoresConnectionGains(t *testing.T) {
	cfg := baseConfig()
	before := Signature(cfg)
	gainBefore := GainSignature(cfg)

	cfg.Connections[1].Gain = 0.1

	assert.Equal(t, before, Signature(cfg))
	assert.NotEqual(t, gainBefore, GainSignature(cfg))
}

func TestSignatureChangesOnStructure(t *testing.T) {
	cfg := baseConfig()
	before := Signature(cfg)

	enabled := cfg.Clone()
	enabled.Nodes[0].Enabled = false
	assert.NotEqual(t, before, Signature(enabled))

	mode := cfg.Clone()
	mode.Mode = ModeLinear
	assert.NotEqual(t, before, Signature(mode))

	added := cfg.Clone()
	added.Nodes = append(added.Nodes, Node{ID: "b", Type: "delay", Enabled: true, Lane: LaneLeft})
	assert.NotEqual(t, before, Signature(added))

	rewired := cfg.Clone()
	rewired.Connections[1].To = "a"
	assert.NotEqual(t, before, Signature(rewired))
}

func TestSignatureChangesOnChainOrder(t *testing.T) {
	cfg := Config{
		Mode:  ModeLinear,
		Nodes: []Node{{ID: "a", Enabled: true}, {ID: "b", Enabled: true}},
		Chain: []string{"a", "b"},
	}

	before := Signature(cfg)

	cfg.Chain = []string{"b", "a"}

	assert.NotEqual(t, before, Signature(cfg))
}
