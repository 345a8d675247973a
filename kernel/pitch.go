package kernel

import (
	"github.com/cwbudde/algo-fxgraph/dsp/core"
)

// PitchProcessor is the narrow contract of the external pitch-shift engine.
// Implementations work on interleaved frames and may return fewer frames than
// requested while their internal latency primes.
type PitchProcessor interface {
	Configure(sampleRate float64, channels int) error
	SetPitchSemitones(semitones float64)
	SetMinimumProcessFrames(frames int)
	// Process consumes interleaved input frames and writes up to
	// len(out)/channels interleaved output frames, returning the frame count
	// actually produced.
	Process(in []float64, out []float64) int
	Reset()
	MinimumProcessFrames() int
}

// pitchShift adapts the external PitchProcessor to the block contract:
// it interleaves input into the processor, deinterleaves whatever output has
// accumulated, and mutes until a priming threshold of two times the
// processor's minimum frame count has been produced, hiding the engine's
// latency as silence instead of artifacts.
type pitchShift struct {
	ctx       Context
	semitones float64

	proc       PitchProcessor
	configured bool

	inScratch  []float64
	outScratch []float64
	outFIFO    []float64

	producedFrames int
	primed         bool
}

func newPitchShift(ctx Context, newProc func() PitchProcessor) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &pitchShift{ctx: ctx}
	if newProc != nil {
		k.proc = newProc()
	}

	return k, nil
}

func (k *pitchShift) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	semitones := core.Clamp(p.GetNum("semitones", 0), -12, 12)

	if k.proc != nil {
		if !k.configured || ctx.SampleRate != k.ctx.SampleRate || ctx.Channels != k.ctx.Channels {
			err := k.proc.Configure(ctx.SampleRate, ctx.Channels)
			if err != nil {
				// External engine failure degrades to silence, never upward.
				k.configured = false
				k.ctx = ctx
				k.semitones = semitones

				return nil
			}

			k.configured = true
			k.resetStreams()
		}

		k.proc.SetPitchSemitones(semitones)
	}

	k.ctx = ctx
	k.semitones = semitones

	return nil
}

func (k *pitchShift) resetStreams() {
	k.outFIFO = k.outFIFO[:0]
	k.producedFrames = 0
	k.primed = false
}

func (k *pitchShift) primingThreshold() int {
	if k.proc == nil {
		return 0
	}

	return 2 * k.proc.MinimumProcessFrames()
}

func (k *pitchShift) Process(block [][]float64) float64 {
	if k.semitones == 0 {
		return 0
	}

	frames := blockFrames(block)
	channels := len(block)

	if frames == 0 || channels == 0 {
		return 0
	}

	if k.proc == nil || !k.configured {
		core.ZeroBlock(block)
		return 0
	}

	k.inScratch = core.EnsureLen(k.inScratch, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			k.inScratch[i*channels+ch] = block[ch][i]
		}
	}

	k.outScratch = core.EnsureLen(k.outScratch, 2*frames*channels)

	produced := k.proc.Process(k.inScratch, k.outScratch)
	if produced > 0 {
		k.outFIFO = append(k.outFIFO, k.outScratch[:produced*channels]...)
		k.producedFrames += produced
	}

	if !k.primed && k.producedFrames >= k.primingThreshold() {
		k.primed = true
	}

	if !k.primed {
		core.ZeroBlock(block)
		return 0
	}

	available := len(k.outFIFO) / channels

	emit := frames
	if available < emit {
		emit = available
	}

	for i := 0; i < emit; i++ {
		for ch := 0; ch < channels; ch++ {
			block[ch][i] = k.outFIFO[i*channels+ch]
		}
	}

	// Starved frames degrade to silence rather than repeating stale audio.
	for i := emit; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			block[ch][i] = 0
		}
	}

	k.outFIFO = k.outFIFO[:copy(k.outFIFO, k.outFIFO[emit*channels:])]

	return core.BlockRMS(block)
}

func (k *pitchShift) Reset() {
	if k.proc != nil {
		k.proc.Reset()
	}

	k.resetStreams()
}

func blockFrames(block [][]float64) int {
	if len(block) == 0 {
		return 0
	}

	frames := len(block[0])
	for _, ch := range block[1:] {
		if len(ch) < frames {
			frames = len(ch)
		}
	}

	return frames
}
