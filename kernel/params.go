package kernel

import "math"

// Params holds the resolved numeric parameters for one kernel invocation.
type Params struct {
	Num map[string]float64
}

// NewParams wraps a parameter map. A nil map is valid and yields defaults.
func NewParams(num map[string]float64) Params {
	return Params{Num: num}
}

// GetNum extracts a numeric parameter, returning def if missing or non-finite.
func (p Params) GetNum(key string, def float64) float64 {
	if p.Num == nil {
		return def
	}

	v, ok := p.Num[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}

	return v
}

// GetBool extracts a boolean parameter stored as 0/1, returning def if missing.
func (p Params) GetBool(key string, def bool) bool {
	if p.Num == nil {
		return def
	}

	v, ok := p.Num[key]
	if !ok || math.IsNaN(v) {
		return def
	}

	return v >= 0.5
}

// Scope addresses one persistent kernel state slot. Per-node effects carry
// their node ID; legacy single-instance effects use the global sentinel so a
// whole process shares one state per effect type.
type Scope struct {
	nodeID string
}

// GlobalScope returns the legacy single-instance sentinel.
func GlobalScope() Scope {
	return Scope{}
}

// NodeScope addresses the state slot of one graph node.
func NodeScope(nodeID string) Scope {
	return Scope{nodeID: nodeID}
}

// Global reports whether the scope is the legacy sentinel.
func (s Scope) Global() bool {
	return s.nodeID == ""
}

// NodeID returns the owning node ID, or "" for the global sentinel.
func (s Scope) NodeID() string {
	return s.nodeID
}
