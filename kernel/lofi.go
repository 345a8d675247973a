package kernel

import (
	"math"

	"github.com/cwbudde/algo-fxgraph/dsp/core"
)

// bitCrusher quantizes amplitude to 2^bits - 1 levels and holds each value
// for downsample steps (sample-and-hold), per channel.
type bitCrusher struct {
	ctx Context

	mix        float64
	bits       float64
	downsample int

	levels float64

	holdCounter []int
	holdValue   []float64
}

func newBitCrusher(ctx Context) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &bitCrusher{bits: 8, downsample: 1, levels: math.Exp2(8) - 1}
	k.resize(ctx)

	return k, nil
}

func (k *bitCrusher) resize(ctx Context) {
	if len(k.holdCounter) != ctx.Channels {
		k.holdCounter = make([]int, ctx.Channels)
		k.holdValue = make([]float64, ctx.Channels)
	}

	k.ctx = ctx
}

func (k *bitCrusher) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	k.resize(ctx)

	k.mix = core.Clamp(p.GetNum("mix", 0), 0, 1)
	k.bits = core.Clamp(p.GetNum("bits", 8), 1, 16)
	k.downsample = int(core.Clamp(p.GetNum("downsample", 1), 1, 64))
	k.levels = math.Exp2(k.bits) - 1

	return nil
}

func (k *bitCrusher) Process(block [][]float64) float64 {
	if k.mix <= 0 {
		return 0
	}

	for ch := range block {
		if ch >= len(k.holdCounter) {
			break
		}

		buf := block[ch]

		for i, dry := range buf {
			k.holdCounter[ch]++
			if k.holdCounter[ch] >= k.downsample {
				k.holdCounter[ch] = 0
				k.holdValue[ch] = math.Round(dry*k.levels) / k.levels
			}

			buf[i] = dry*(1-k.mix) + k.holdValue[ch]*k.mix
		}
	}

	return core.BlockRMS(block)
}

func (k *bitCrusher) Reset() {
	for ch := range k.holdCounter {
		k.holdCounter[ch] = 0
		k.holdValue[ch] = 0
	}
}

// shaperVariant selects the waveshaping curve.
type shaperVariant int

const (
	// shaperTape is a normalized tanh curve: unity slope at low drive,
	// progressively rounded peaks as drive rises.
	shaperTape shaperVariant = iota
	// shaperHard pushes harder into the tanh knee without normalization.
	shaperHard
)

const (
	shaperTapeMaxDrive = 6.0
	shaperHardMaxDrive = 14.0
)

// waveshaper implements tape saturation and distortion as tanh-based
// waveshapers with independent drive and mix.
type waveshaper struct {
	variant shaperVariant
	ctx     Context

	drive float64
	mix   float64
}

func newWaveshaper(ctx Context, variant shaperVariant) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	return &waveshaper{variant: variant, ctx: ctx}, nil
}

func (k *waveshaper) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	k.ctx = ctx
	k.drive = core.Clamp(p.GetNum("drive", 0), 0, 1)
	k.mix = core.Clamp(p.GetNum("mix", 1), 0, 1)

	return nil
}

func (k *waveshaper) Process(block [][]float64) float64 {
	if k.drive <= 0 || k.mix <= 0 {
		return 0
	}

	var shape func(float64) float64

	if k.variant == shaperTape {
		gain := 1 + k.drive*(shaperTapeMaxDrive-1)
		norm := math.Tanh(gain)
		shape = func(x float64) float64 { return math.Tanh(x*gain) / norm }
	} else {
		gain := 1 + k.drive*(shaperHardMaxDrive-1)
		shape = func(x float64) float64 { return math.Tanh(x * gain) }
	}

	for _, buf := range block {
		for i, dry := range buf {
			buf[i] = dry*(1-k.mix) + shape(dry)*k.mix
		}
	}

	return core.BlockRMS(block)
}

func (k *waveshaper) Reset() {}
