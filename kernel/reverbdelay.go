package kernel

import (
	"math"

	"github.com/cwbudde/algo-fxgraph/dsp/core"
	"github.com/cwbudde/algo-fxgraph/dsp/delayline"
)

// Schroeder comb/allpass tunings in samples, calibrated for 44.1 kHz.
// Actual buffer lengths scale with the room size parameter and sample rate.
var (
	reverbCombTunings    = [4]int{1116, 1277, 1422, 1617}
	reverbAllpassTunings = [2]int{556, 341}
)

const (
	defaultReverbSize = 0.7
	defaultReverbDamp = 0.45

	reverbStereoSpread = 23
)

type reverbComb struct {
	buffer      []float64
	index       int
	feedback    float64
	filterStore float64
	dampA       float64
	dampB       float64
}

func (c *reverbComb) process(input float64) float64 {
	output := c.buffer[c.index]

	c.filterStore = core.FlushDenormals(output*c.dampB + c.filterStore*c.dampA)
	c.buffer[c.index] = input + c.filterStore*c.feedback

	c.index++
	if c.index >= len(c.buffer) {
		c.index = 0
	}

	return output
}

func (c *reverbComb) reset() {
	for i := range c.buffer {
		c.buffer[i] = 0
	}

	c.index = 0
	c.filterStore = 0
}

type reverbAllpass struct {
	buffer []float64
	index  int
}

func (a *reverbAllpass) process(input float64) float64 {
	bufOut := a.buffer[a.index]
	output := bufOut - input
	a.buffer[a.index] = input + bufOut*0.5

	a.index++
	if a.index >= len(a.buffer) {
		a.index = 0
	}

	return output
}

func (a *reverbAllpass) reset() {
	for i := range a.buffer {
		a.buffer[i] = 0
	}

	a.index = 0
}

type reverbChannel struct {
	combs   [4]reverbComb
	allpass [2]reverbAllpass
}

// reverbKernel is a Schroeder-style comb/allpass network per channel, with
// buffer lengths derived from the size parameter in seconds.
type reverbKernel struct {
	ctx  Context
	mix  float64
	size float64
	damp float64

	channels []reverbChannel
}

func newReverb(ctx Context) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &reverbKernel{size: -1, damp: defaultReverbDamp}
	k.ctx = ctx

	return k, nil
}

func (k *reverbKernel) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	mix := core.Clamp(p.GetNum("mix", 0), 0, 1)
	size := core.Clamp(p.GetNum("size", defaultReverbSize), 0.1, 3)
	damp := core.Clamp(p.GetNum("damp", defaultReverbDamp), 0, 0.99)

	needRebuild := len(k.channels) != ctx.Channels ||
		ctx.SampleRate != k.ctx.SampleRate ||
		size != k.size

	k.ctx = ctx
	k.mix = mix
	k.size = size

	if needRebuild {
		k.rebuild()
	}

	if damp != k.damp || needRebuild {
		k.damp = damp
		for ch := range k.channels {
			for i := range k.channels[ch].combs {
				k.channels[ch].combs[i].dampA = damp
				k.channels[ch].combs[i].dampB = 1 - damp
			}
		}
	}

	return nil
}

// rebuild sizes the comb and allpass buffers from the size parameter. The
// feedback grows with size so larger rooms decay longer.
func (k *reverbKernel) rebuild() {
	scale := k.ctx.SampleRate / 44100 * k.size / defaultReverbSize
	feedback := core.Clamp(0.68+0.14*math.Min(k.size, 2), 0, 0.96)

	k.channels = make([]reverbChannel, k.ctx.Channels)

	for ch := range k.channels {
		spread := ch * reverbStereoSpread

		for i, tuning := range reverbCombTunings {
			size := int(float64(tuning+spread) * scale)
			if size < 8 {
				size = 8
			}

			k.channels[ch].combs[i] = reverbComb{
				buffer:   make([]float64, size),
				feedback: feedback,
				dampA:    k.damp,
				dampB:    1 - k.damp,
			}
		}

		for i, tuning := range reverbAllpassTunings {
			size := int(float64(tuning+spread) * scale)
			if size < 8 {
				size = 8
			}

			k.channels[ch].allpass[i] = reverbAllpass{buffer: make([]float64, size)}
		}
	}
}

func (k *reverbKernel) Process(block [][]float64) float64 {
	if k.mix <= 0 {
		return 0
	}

	for ch := range block {
		if ch >= len(k.channels) {
			break
		}

		buf := block[ch]
		rc := &k.channels[ch]

		for i, dry := range buf {
			wet := 0.0
			for c := range rc.combs {
				wet += rc.combs[c].process(dry * 0.25)
			}

			for a := range rc.allpass {
				wet = rc.allpass[a].process(wet)
			}

			buf[i] = dry*(1-k.mix) + wet*k.mix
		}
	}

	return core.BlockRMS(block)
}

func (k *reverbKernel) Reset() {
	for ch := range k.channels {
		for i := range k.channels[ch].combs {
			k.channels[ch].combs[i].reset()
		}

		for i := range k.channels[ch].allpass {
			k.channels[ch].allpass[i].reset()
		}
	}
}

const (
	maxDelaySeconds     = 2.0
	defaultDelaySeconds = 0.35
)

// delayKernel is a feedback delay with per-channel circular buffers sized
// from the time parameter in seconds.
type delayKernel struct {
	ctx      Context
	mix      float64
	seconds  float64
	feedback float64

	lines []*delayline.Line
}

func newDelay(ctx Context) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &delayKernel{seconds: defaultDelaySeconds}
	k.ctx = ctx

	return k, nil
}

func (k *delayKernel) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	k.mix = core.Clamp(p.GetNum("mix", 0), 0, 1)
	k.seconds = core.Clamp(p.GetNum("time", defaultDelaySeconds), 0.01, maxDelaySeconds)
	k.feedback = core.Clamp(p.GetNum("feedback", 0.35), 0, 0.95)

	required := int(maxDelaySeconds*ctx.SampleRate) + 4

	if len(k.lines) != ctx.Channels {
		k.lines = make([]*delayline.Line, ctx.Channels)
		for ch := range k.lines {
			line, err := delayline.New(required)
			if err != nil {
				return err
			}

			k.lines[ch] = line
		}
	} else if ctx.SampleRate != k.ctx.SampleRate {
		for ch := range k.lines {
			k.lines[ch].Resize(required)
		}
	}

	k.ctx = ctx

	return nil
}

func (k *delayKernel) Process(block [][]float64) float64 {
	if k.mix <= 0 {
		return 0
	}

	delay := k.seconds * k.ctx.SampleRate

	for ch := range block {
		if ch >= len(k.lines) {
			break
		}

		buf := block[ch]
		line := k.lines[ch]

		for i, dry := range buf {
			wet := line.ReadLinear(delay)
			line.Write(dry + wet*k.feedback)
			buf[i] = dry*(1-k.mix) + wet*k.mix
		}
	}

	return core.BlockRMS(block)
}

func (k *delayKernel) Reset() {
	for ch := range k.lines {
		k.lines[ch].Reset()
	}
}
