package kernel

import (
	"math"

	"github.com/cwbudde/algo-fxgraph/dsp/core"
	"github.com/cwbudde/algo-fxgraph/dsp/delayline"
)

const twoPi = 2 * math.Pi

// lfo is a sine low-frequency oscillator with per-sample phase accumulation.
type lfo struct {
	phase float64
}

// next advances the oscillator and returns sin(phase) in [-1, 1].
func (l *lfo) next(rateHz, sampleRate float64) float64 {
	value := math.Sin(l.phase)

	l.phase += rateHz * twoPi / sampleRate
	if l.phase >= twoPi {
		l.phase -= twoPi
	}

	return value
}

func (l *lfo) reset() {
	l.phase = 0
}

// modVariant selects the numeric contract of an LFO-modulated delay kernel.
type modVariant int

const (
	modChorus modVariant = iota
	modFlanger
)

type modDelayTuning struct {
	baseMs    float64
	depthMs   float64
	rateHz    float64
	feedback  float64
	phaseStep float64 // per-channel LFO offset in radians
}

func tuningFor(variant modVariant) modDelayTuning {
	if variant == modFlanger {
		return modDelayTuning{baseMs: 3, depthMs: 2.5, rateHz: 0.25, feedback: 0.5, phaseStep: math.Pi / 2}
	}

	return modDelayTuning{baseMs: 20, depthMs: 7, rateHz: 0.8, feedback: 0, phaseStep: math.Pi / 2}
}

// modDelay implements chorus and flanger: a sine LFO modulating the read
// position of a short delay line, read with linear interpolation.
type modDelay struct {
	variant modVariant
	ctx     Context

	mix      float64
	rateHz   float64
	depthMs  float64
	feedback float64

	lines []*delayline.Line
	lfos  []lfo
}

func newModDelay(ctx Context, variant modVariant) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &modDelay{variant: variant}
	k.ctx = ctx

	return k, nil
}

func (k *modDelay) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	tuning := tuningFor(k.variant)

	k.mix = core.Clamp(p.GetNum("mix", 0), 0, 1)
	k.rateHz = core.Clamp(p.GetNum("rate", tuning.rateHz), 0.01, 10)
	k.depthMs = core.Clamp(p.GetNum("depth", tuning.depthMs), 0, tuning.baseMs)
	k.feedback = core.Clamp(p.GetNum("feedback", tuning.feedback), 0, 0.9)

	required := int((tuning.baseMs+tuning.depthMs)/1000*ctx.SampleRate) + 8

	if len(k.lines) != ctx.Channels {
		k.lines = make([]*delayline.Line, ctx.Channels)
		k.lfos = make([]lfo, ctx.Channels)

		for ch := range k.lines {
			line, err := delayline.New(required)
			if err != nil {
				return err
			}

			k.lines[ch] = line
			k.lfos[ch].phase = tuning.phaseStep * float64(ch)
		}
	} else if ctx.SampleRate != k.ctx.SampleRate {
		for ch := range k.lines {
			k.lines[ch].Resize(required)
		}
	}

	k.ctx = ctx

	return nil
}

func (k *modDelay) Process(block [][]float64) float64 {
	if k.mix <= 0 {
		return 0
	}

	tuning := tuningFor(k.variant)
	baseSamples := tuning.baseMs / 1000 * k.ctx.SampleRate
	depthSamples := k.depthMs / 1000 * k.ctx.SampleRate

	for ch := range block {
		if ch >= len(k.lines) {
			break
		}

		buf := block[ch]
		line := k.lines[ch]
		osc := &k.lfos[ch]

		for i, dry := range buf {
			mod := osc.next(k.rateHz, k.ctx.SampleRate)
			delay := baseSamples + depthSamples*0.5*(1+mod)

			wet := line.ReadLinear(delay)
			line.Write(dry + wet*k.feedback)
			buf[i] = dry*(1-k.mix) + wet*k.mix
		}
	}

	return core.BlockRMS(block)
}

func (k *modDelay) Reset() {
	tuning := tuningFor(k.variant)

	for ch := range k.lines {
		k.lines[ch].Reset()
		k.lfos[ch].reset()
		k.lfos[ch].phase = tuning.phaseStep * float64(ch)
	}
}

const (
	phaserStages  = 4
	phaserMinFreq = 300.0
	phaserMaxFreq = 2400.0
)

// onePoleAllpass is a first-order allpass section whose coefficient is swept
// by the phaser LFO.
type onePoleAllpass struct {
	x1, y1 float64
}

func (a *onePoleAllpass) process(x, coef float64) float64 {
	y := -coef*x + a.x1 + coef*a.y1
	a.x1 = x
	a.y1 = core.FlushDenormals(y)

	return y
}

func (a *onePoleAllpass) reset() {
	a.x1 = 0
	a.y1 = 0
}

// phaser sweeps a cascade of first-order allpass sections with a sine LFO
// and mixes the shifted signal back against the dry input.
type phaser struct {
	ctx Context

	depth    float64
	rateHz   float64
	feedback float64

	stages [][phaserStages]onePoleAllpass
	lfos   []lfo
	last   []float64
}

func newPhaser(ctx Context) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &phaser{}
	k.resize(ctx)

	return k, nil
}

func (k *phaser) resize(ctx Context) {
	if len(k.stages) != ctx.Channels {
		k.stages = make([][phaserStages]onePoleAllpass, ctx.Channels)
		k.lfos = make([]lfo, ctx.Channels)
		k.last = make([]float64, ctx.Channels)
	}

	k.ctx = ctx
}

func (k *phaser) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	k.resize(ctx)

	k.depth = core.Clamp(p.GetNum("depth", 0), 0, 1)
	k.rateHz = core.Clamp(p.GetNum("rate", 0.5), 0.01, 8)
	k.feedback = core.Clamp(p.GetNum("feedback", 0.2), 0, 0.9)

	return nil
}

func (k *phaser) Process(block [][]float64) float64 {
	if k.depth <= 0 {
		return 0
	}

	for ch := range block {
		if ch >= len(k.stages) {
			break
		}

		buf := block[ch]
		osc := &k.lfos[ch]

		for i, dry := range buf {
			mod := 0.5 * (1 + osc.next(k.rateHz, k.ctx.SampleRate))
			freq := phaserMinFreq + (phaserMaxFreq-phaserMinFreq)*mod*k.depth

			tan := math.Tan(math.Pi * freq / k.ctx.SampleRate)
			coef := (tan - 1) / (tan + 1)

			wet := dry + k.last[ch]*k.feedback
			for s := range k.stages[ch] {
				wet = k.stages[ch][s].process(wet, coef)
			}

			k.last[ch] = wet
			buf[i] = dry + wet*k.depth*0.5
		}
	}

	return core.BlockRMS(block)
}

func (k *phaser) Reset() {
	for ch := range k.stages {
		for s := range k.stages[ch] {
			k.stages[ch][s].reset()
		}

		k.lfos[ch].reset()
		k.last[ch] = 0
	}
}

// tremoloKernel applies sine LFO amplitude modulation.
type tremoloKernel struct {
	ctx Context

	depth  float64
	rateHz float64

	lfos []lfo
}

func newTremolo(ctx Context) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &tremoloKernel{}
	k.resize(ctx)

	return k, nil
}

func (k *tremoloKernel) resize(ctx Context) {
	if len(k.lfos) != ctx.Channels {
		k.lfos = make([]lfo, ctx.Channels)
	}

	k.ctx = ctx
}

func (k *tremoloKernel) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	k.resize(ctx)

	k.depth = core.Clamp(p.GetNum("depth", 0), 0, 1)
	k.rateHz = core.Clamp(p.GetNum("rate", 4), 0.05, 20)

	return nil
}

func (k *tremoloKernel) Process(block [][]float64) float64 {
	if k.depth <= 0 {
		return 0
	}

	for ch := range block {
		if ch >= len(k.lfos) {
			break
		}

		buf := block[ch]
		osc := &k.lfos[ch]

		for i, x := range buf {
			mod := 0.5 * (1 + osc.next(k.rateHz, k.ctx.SampleRate))
			gain := (1 - k.depth) + k.depth*mod
			buf[i] = x * gain
		}
	}

	return core.BlockRMS(block)
}

func (k *tremoloKernel) Reset() {
	for ch := range k.lfos {
		k.lfos[ch].reset()
	}
}
