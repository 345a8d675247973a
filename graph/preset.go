package graph

import (
	"encoding/json"
	"fmt"
)

// PresetVersion is the current persisted graph format version.
// Decoding accepts any version up to the current one; missing fields take
// defaults so older records keep loading as the schema evolves.
const PresetVersion = 2

const (
	wiringAuto   = "auto"
	wiringManual = "manual"
)

type presetNode struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	X       float64            `json:"x,omitempty"`
	Y       float64            `json:"y,omitempty"`
	Lane    string             `json:"lane,omitempty"`
	Enabled *bool              `json:"enabled,omitempty"`
	Params  map[string]float64 `json:"params,omitempty"`
}

type presetConnection struct {
	ID   string   `json:"id,omitempty"`
	From string   `json:"from"`
	To   string   `json:"to"`
	Gain *float64 `json:"gain,omitempty"`
}

type presetRecord struct {
	Version       int                `json:"version"`
	Mode          string             `json:"mode"`
	Wiring        string             `json:"wiring,omitempty"`
	Nodes         []presetNode       `json:"nodes"`
	Connections   []presetConnection `json:"connections,omitempty"`
	Chain         []string           `json:"chain,omitempty"`
	StartIDs      map[string]string  `json:"startIds,omitempty"`
	EndIDs        map[string]string  `json:"endIds,omitempty"`
	HasNodeParams bool               `json:"hasNodeParams"`
}

// EncodePreset serializes a config into the versioned preset record.
func EncodePreset(cfg Config) ([]byte, error) {
	rec := presetRecord{
		Version: PresetVersion,
		Mode:    string(cfg.Mode),
		Wiring:  wiringManual,
		Chain:   cfg.Chain,
	}

	if cfg.AutoConnectEnd {
		rec.Wiring = wiringAuto
	}

	for _, n := range cfg.Nodes {
		enabled := n.Enabled
		pn := presetNode{
			ID:      n.ID,
			Type:    n.Type,
			X:       n.X,
			Y:       n.Y,
			Lane:    string(n.Lane),
			Enabled: &enabled,
			Params:  n.Params,
		}

		if len(n.Params) > 0 {
			rec.HasNodeParams = true
		}

		rec.Nodes = append(rec.Nodes, pn)
	}

	for _, c := range cfg.Connections {
		gain := c.Gain
		rec.Connections = append(rec.Connections, presetConnection{
			ID:   c.ID,
			From: c.From,
			To:   c.To,
			Gain: &gain,
		})
	}

	rec.StartIDs = map[string]string{string(LaneLeft): StartNodeID, string(LaneRight): StartNodeID}
	rec.EndIDs = map[string]string{string(LaneLeft): EndNodeID, string(LaneRight): EndNodeID}

	return json.MarshalIndent(rec, "", "  ")
}

// DecodePreset parses a versioned preset record into a config.
//
// Decoding is tolerant by contract: absent enabled flags default to true,
// absent gains to 1.0, absent lanes to left, and an absent mode to linear.
// Only records from a newer format version are rejected.
func DecodePreset(data []byte) (Config, error) {
	var rec presetRecord

	err := json.Unmarshal(data, &rec)
	if err != nil {
		return Config{}, fmt.Errorf("graph: invalid preset: %w", err)
	}

	if rec.Version > PresetVersion {
		return Config{}, fmt.Errorf("graph: preset version %d newer than supported %d", rec.Version, PresetVersion)
	}

	cfg := Config{
		Mode:           decodeMode(rec.Mode),
		Chain:          rec.Chain,
		AutoConnectEnd: rec.Wiring == wiringAuto,
	}

	for _, pn := range rec.Nodes {
		if pn.ID == "" || pn.Type == "" {
			continue
		}

		n := Node{
			ID:      pn.ID,
			Type:    pn.Type,
			X:       pn.X,
			Y:       pn.Y,
			Lane:    decodeLane(pn.Lane),
			Enabled: true,
			Params:  pn.Params,
		}

		if pn.Enabled != nil {
			n.Enabled = *pn.Enabled
		}

		cfg.Nodes = append(cfg.Nodes, n)
	}

	for _, pc := range rec.Connections {
		if pc.From == "" || pc.To == "" {
			continue
		}

		c := Connection{
			ID:   pc.ID,
			From: remapSentinel(pc.From, rec),
			To:   remapSentinel(pc.To, rec),
			Gain: 1,
		}

		if pc.Gain != nil {
			c.Gain = clampGain(*pc.Gain)
		}

		cfg.Connections = append(cfg.Connections, c)
	}

	return cfg, nil
}

func decodeMode(s string) Mode {
	switch Mode(s) {
	case ModeManual:
		return ModeManual
	case ModeSplit:
		return ModeSplit
	default:
		return ModeLinear
	}
}

func decodeLane(s string) Lane {
	if Lane(s) == LaneRight {
		return LaneRight
	}

	return LaneLeft
}

// remapSentinel maps persisted lane-specific start/end IDs onto the reserved
// sentinel IDs so older records with custom I/O node names keep loading.
func remapSentinel(id string, rec presetRecord) string {
	for _, sid := range rec.StartIDs {
		if id == sid {
			return StartNodeID
		}
	}

	for _, eid := range rec.EndIDs {
		if id == eid {
			return EndNodeID
		}
	}

	return id
}

func clampGain(g float64) float64 {
	if g < 0 {
		return 0
	}

	if g > 1 {
		return 1
	}

	return g
}
