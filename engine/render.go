package engine

import (
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-fxgraph/dsp/core"
	"github.com/cwbudde/algo-fxgraph/graph"
	"github.com/cwbudde/algo-fxgraph/internal/metrics"
	"github.com/cwbudde/algo-fxgraph/kernel"
)

// renderState is the render thread's private working set. Nothing here is
// shared: the only cross-thread traffic is the snapshot pointer load, the
// levels write, and the reset drain, each behind its own short section.
type renderState struct {
	cfg Config

	active *Snapshot

	// old is non-nil while a structural crossfade is in flight.
	old     *Snapshot
	fadePos int

	// gainOld is non-nil while a gain-only blend is in flight.
	gainOld *Snapshot
	gainPos int

	frames   int
	channels int

	nodeBufs map[bufKey][][]float64
	silent   [][]float64
	tmp      []float64
	gainTmp  []float64
	wRamp    []float64
	inCopy   [][]float64
	outOld   [][]float64
	outNew   [][]float64

	levelScratch map[string]float64
	resetScratch []kernel.Scope
}

// bufKey includes the channel count so the one- and two-channel shapes of the
// same node coexist while a split and a full-width plan crossfade.
type bufKey struct {
	lane     graph.Lane
	id       string
	channels int
}

func (r *renderState) init(cfg Config) {
	r.cfg = cfg
	r.nodeBufs = make(map[bufKey][][]float64)
	r.levelScratch = make(map[string]float64)
}

// ensure sizes the scratch buffers for the current block shape. Reallocation
// only happens when the shape changes, never in steady state.
func (r *renderState) ensure(channels, frames int) {
	if channels == r.channels && frames == r.frames {
		return
	}

	r.channels = channels
	r.frames = frames
	r.nodeBufs = make(map[bufKey][][]float64)
	r.silent = core.EnsureBlock(nil, channels, frames)
	r.tmp = make([]float64, frames)
	r.gainTmp = make([]float64, frames)
	r.wRamp = make([]float64, frames)
	r.inCopy = core.EnsureBlock(nil, channels, frames)
	r.outOld = core.EnsureBlock(nil, channels, frames)
	r.outNew = core.EnsureBlock(nil, channels, frames)
}

func (r *renderState) bufFor(lane graph.Lane, id string, channels int) [][]float64 {
	key := bufKey{lane: lane, id: id, channels: channels}

	buf, ok := r.nodeBufs[key]
	if !ok {
		buf = core.EnsureBlock(nil, channels, r.frames)
		r.nodeBufs[key] = buf
	}

	return buf
}

// Process runs one buffer through the active topology in place. The block is
// deinterleaved, one slice per channel, all channels the same length.
// Snapshot changes take effect here, at the buffer boundary, never mid-block.
func (e *Engine) Process(block [][]float64) {
	if len(block) == 0 || len(block[0]) == 0 {
		return
	}

	frames := len(block[0])
	r := &e.render
	r.ensure(len(block), frames)

	e.drainResets()

	latest := e.snapshot.Load()
	latest.applyConfigs(e.log)

	if r.active == nil {
		r.active = latest
	}

	if latest != r.active {
		switch {
		case latest.Signature != r.active.Signature:
			r.old = r.active
			r.fadePos = 0
			r.gainOld = nil

			metrics.Crossfades.Inc()
		case latest.GainSignature != r.active.GainSignature:
			r.gainOld = r.active
			r.gainPos = 0
		}

		r.active = latest
	}

	for k := range r.levelScratch {
		delete(r.levelScratch, k)
	}

	r.fillGainRamp(frames)

	if r.old != nil {
		r.processTransition(block, frames)
	} else {
		core.CopyBlock(r.inCopy, block)
		r.evalSnapshot(r.active, r.inCopy, block, r.gainOld)
	}

	r.advanceGainRamp(frames)

	r.applyGlobals(r.active, block)

	e.publishLevels(r.levelScratch)
}

// fillGainRamp precomputes the per-sample blend weight for an in-flight gain
// edit. The ramp starts at the position reached by the previous buffer, so
// the first post-edit sample still carries the old gain.
func (r *renderState) fillGainRamp(frames int) {
	if r.gainOld == nil {
		return
	}

	window := float64(r.cfg.GainFadeSamples)

	for i := 0; i < frames; i++ {
		w := (float64(r.gainPos) + float64(i)) / window
		if w > 1 {
			w = 1
		}

		r.wRamp[i] = w
	}
}

// advanceGainRamp moves the gain window forward and retires the blend once
// the window has fully elapsed.
func (r *renderState) advanceGainRamp(frames int) {
	if r.gainOld == nil {
		return
	}

	r.gainPos += frames
	if r.gainPos >= r.cfg.GainFadeSamples {
		r.gainOld = nil
	}
}

// processTransition evaluates both the outgoing and incoming plans and
// crossfades sample by sample across the transition window. On completion
// the old snapshot is dropped and rendering returns to the stable path. A
// gain edit landing mid-transition still blends: the incoming plan's
// evaluation ramps its edge gains independently of the structural fade.
func (r *renderState) processTransition(block [][]float64, frames int) {
	core.CopyBlock(r.inCopy, block)

	r.evalSnapshot(r.old, r.inCopy, r.outOld, nil)
	r.evalSnapshot(r.active, r.inCopy, r.outNew, r.gainOld)

	window := float64(r.cfg.TransitionSamples)

	for ch := range block {
		dst := block[ch]
		from := r.outOld[ch]
		to := r.outNew[ch]

		for i := 0; i < frames; i++ {
			t := (float64(r.fadePos) + float64(i)) / window
			if t > 1 {
				t = 1
			}

			dst[i] = from[i]*(1-t) + to[i]*t
		}
	}

	r.fadePos += frames
	if r.fadePos >= r.cfg.TransitionSamples {
		r.old = nil
	}
}

// evalSnapshot renders a snapshot from in into dst. In split mode the lanes
// run independently, one per stereo channel; extra channels pass through.
func (r *renderState) evalSnapshot(snap *Snapshot, in, dst [][]float64, gainOld *Snapshot) {
	if snap.Config.Mode == graph.ModeSplit {
		r.evalLane(snap, graph.LaneLeft, in[:1], dst[:1], gainOld)

		if len(dst) > 1 {
			r.evalLane(snap, graph.LaneRight, in[1:2], dst[1:2], gainOld)
		}

		for ch := 2; ch < len(dst); ch++ {
			copy(dst[ch], in[ch])
		}

		return
	}

	r.evalLane(snap, graph.LaneLeft, in, dst, gainOld)
}

// evalLane walks one compiled plan in topological order. Each node's input
// is the gain-weighted sum of its producers' buffers in edge insertion
// order; enabled nodes then process that sum in place. The end sentinel's
// sum is the lane output. A nil plan renders silence.
func (r *renderState) evalLane(snap *Snapshot, lane graph.Lane, in, dst [][]float64, gainOld *Snapshot) {
	plan := snap.Plans[lane]
	if plan == nil {
		core.ZeroBlock(dst)
		return
	}

	var oldPlan *graph.Plan
	if gainOld != nil {
		oldPlan = gainOld.Plans[lane]
	}

	wrote := false

	for _, id := range plan.Order {
		if id == graph.StartNodeID {
			continue
		}

		buf := r.bufFor(lane, id, len(in))
		r.sumProducers(plan, oldPlan, lane, id, in, buf)

		if id == graph.EndNodeID {
			core.CopyBlock(dst, buf)

			wrote = true

			continue
		}

		node := plan.Nodes[id]
		proc := snap.procs[lane][id]

		if node.Enabled && proc != nil {
			r.levelScratch[id] = proc.Process(buf)
		} else {
			r.levelScratch[id] = 0
		}
	}

	if !wrote {
		core.ZeroBlock(dst)
	}
}

// sumProducers accumulates a node's weighted inputs into buf. With an old
// plan present each edge gain ramps sample by sample between its old and new
// value along wRamp; the structures are identical whenever the gain blend is
// active, so producers line up positionally.
func (r *renderState) sumProducers(plan, oldPlan *graph.Plan, lane graph.Lane, id string, in, buf [][]float64) {
	producers := plan.Producers[id]
	if len(producers) == 0 {
		core.ZeroBlock(buf)
		return
	}

	var oldProducers []graph.Producer
	if oldPlan != nil {
		oldProducers = oldPlan.Producers[id]
	}

	for i, p := range producers {
		src := r.sourceBuf(lane, p.From, in, len(buf))

		from := p.Gain
		if i < len(oldProducers) && oldProducers[i].From == p.From {
			from = oldProducers[i].Gain
		}

		for ch := range buf {
			if from == p.Gain {
				if i == 0 {
					vecmath.ScaleBlock(buf[ch], src[ch], p.Gain)
					continue
				}

				vecmath.ScaleBlock(r.tmp, src[ch], p.Gain)
				vecmath.AddBlockInPlace(buf[ch], r.tmp)

				continue
			}

			// (from + (to-from)*w[s]) * src[s], split into the constant
			// part and the ramped part.
			vecmath.ScaleBlock(r.tmp, src[ch], from)
			vecmath.ScaleBlock(r.gainTmp, src[ch], p.Gain-from)

			if i == 0 {
				vecmath.MulAddBlock(buf[ch], r.gainTmp, r.wRamp, r.tmp)
				continue
			}

			vecmath.MulAddBlock(r.tmp, r.gainTmp, r.wRamp, r.tmp)
			vecmath.AddBlockInPlace(buf[ch], r.tmp)
		}
	}
}

func (r *renderState) sourceBuf(lane graph.Lane, id string, in [][]float64, channels int) [][]float64 {
	if id == graph.StartNodeID {
		return in
	}

	if buf, ok := r.nodeBufs[bufKey{lane: lane, id: id, channels: channels}]; ok {
		return buf
	}

	return r.silent[:channels]
}

// applyGlobals runs the legacy single-instance chain on the summed output.
func (r *renderState) applyGlobals(snap *Snapshot, block [][]float64) {
	for _, g := range snap.globals {
		r.levelScratch[g.effectType] = g.proc.Process(block)
	}
}

// drainResets applies pending state clears before the first kernel runs, so
// a reset is atomic with respect to a whole block.
func (e *Engine) drainResets() {
	e.resetMu.Lock()

	all := e.resetAllPending
	e.resetAllPending = false

	scopes := e.render.resetScratch[:0]
	for scope := range e.resets {
		scopes = append(scopes, scope)
		delete(e.resets, scope)
	}
	e.resetMu.Unlock()

	if all {
		e.states.resetAll()
	} else {
		for _, scope := range scopes {
			e.states.reset(scope)
		}
	}

	e.render.resetScratch = scopes[:0]
}

// publishLevels copies the per-node RMS values gathered this buffer into the
// shared map read by the control side.
func (e *Engine) publishLevels(levels map[string]float64) {
	e.levelMu.Lock()

	for k := range e.levels {
		if _, ok := levels[k]; !ok {
			delete(e.levels, k)
		}
	}

	for k, v := range levels {
		e.levels[k] = v
	}

	e.levelMu.Unlock()
}
