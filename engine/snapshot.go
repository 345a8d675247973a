package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-fxgraph/graph"
	"github.com/cwbudde/algo-fxgraph/kernel"
)

// Snapshot is the immutable aggregate handed from the control side to the
// render side. It carries the topology, both signatures, and the per-lane
// evaluation plans with their processors already bound, so the render thread
// neither allocates nor compiles. Processor configuration is staged, not
// applied: the render side runs the staged calls once, at the buffer boundary
// where the snapshot takes effect, so a reconfiguration never touches a
// kernel mid-block.
//
// The control side never mutates a snapshot after publishing; every edit
// produces a new one.
type Snapshot struct {
	Config graph.Config

	// Signature hashes the structure: mode, node identities, types, enabled
	// flags, connection endpoints. Equal signatures render identically up to
	// parameter and gain values.
	Signature string

	// GainSignature additionally hashes connection gains. A snapshot whose
	// Signature matches the previous one but whose GainSignature differs is
	// a pure gain edit and gets the short blend instead of a full crossfade.
	GainSignature string

	// Plans maps each active lane to its compiled plan. A nil plan marks a
	// lane whose compilation failed; it renders silence.
	Plans map[graph.Lane]*graph.Plan

	// procs holds the bound processor per live effect node, keyed by lane.
	// A missing entry means the node passes audio through unprocessed.
	procs map[graph.Lane]map[string]kernel.Processor

	// globals are the enabled legacy single-instance effects in their fixed
	// application order, run on the summed output after the graph.
	globals []globalBinding

	// configs are the deferred Configure calls for every bound processor,
	// applied by applyConfigs on the render side.
	configs    []pendingConfig
	configured bool
}

// globalBinding is one enabled legacy effect with its bound processor.
type globalBinding struct {
	effectType string
	proc       kernel.Processor
}

// pendingConfig is one deferred processor configuration, staged at publish
// time and applied at the buffer boundary where its snapshot takes effect.
type pendingConfig struct {
	lane   graph.Lane
	id     string
	global bool
	ctx    kernel.Context
	proc   kernel.Processor
	params kernel.Params
}

// applyConfigs runs the staged configurations. Only the render side calls
// this, once per snapshot, before the first kernel of the buffer runs. A
// rejected configuration unbinds its processor so the node passes through.
func (s *Snapshot) applyConfigs(log *logrus.Logger) {
	if s == nil || s.configured {
		return
	}

	s.configured = true

	for _, pc := range s.configs {
		err := pc.proc.Configure(pc.ctx, pc.params)
		if err == nil {
			continue
		}

		if pc.global {
			s.dropGlobal(pc.id)
		} else {
			delete(s.procs[pc.lane], pc.id)
		}

		log.WithFields(logrus.Fields{
			"node":  pc.id,
			"error": err,
		}).Warn("kernel configuration rejected, node passes through")
	}
}

func (s *Snapshot) dropGlobal(effectType string) {
	kept := s.globals[:0]

	for _, g := range s.globals {
		if g.effectType != effectType {
			kept = append(kept, g)
		}
	}

	s.globals = kept
}

// Plan returns the compiled plan for a lane, or nil when the lane failed to
// compile or does not exist in this snapshot's mode.
func (s *Snapshot) Plan(lane graph.Lane) *graph.Plan {
	if s == nil {
		return nil
	}

	return s.Plans[lane]
}

// Processor returns the bound processor for a node in a lane, or nil.
func (s *Snapshot) Processor(lane graph.Lane, nodeID string) kernel.Processor {
	if s == nil {
		return nil
	}

	return s.procs[lane][nodeID]
}

// GlobalEffect is the editable state of one legacy single-instance effect.
type GlobalEffect struct {
	Enabled bool
	Params  map[string]float64
}

// globalOrder fixes the application order of legacy effects. It follows the
// classic serial chain: tone shaping first, dynamics, then time-based and
// character effects, spatial and pitch last.
var globalOrder = []string{
	kernel.TypeBassBoost,
	kernel.TypeClarity,
	kernel.TypeDeMud,
	kernel.TypeEQ10,
	kernel.TypeCompressor,
	kernel.TypeBitCrusher,
	kernel.TypeSaturation,
	kernel.TypeDistortion,
	kernel.TypeChorus,
	kernel.TypeFlanger,
	kernel.TypePhaser,
	kernel.TypeTremolo,
	kernel.TypeDelay,
	kernel.TypeReverb,
	kernel.TypeStereoWidth,
	kernel.TypeResampler,
	kernel.TypePitchShift,
}
