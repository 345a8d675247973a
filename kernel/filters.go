package kernel

import (
	"math"

	"github.com/cwbudde/algo-fxgraph/dsp/biquad"
	"github.com/cwbudde/algo-fxgraph/dsp/core"
)

// shelfVariant selects the fixed numeric contract of one single-filter kernel.
type shelfVariant int

const (
	// shelfBassBoost maps amount in [0,1] to a 0-24 dB low shelf at 80 Hz
	// plus up to +35% linear makeup gain.
	shelfBassBoost shelfVariant = iota
	// shelfClarity maps amount to a 0-12 dB high shelf at 3 kHz.
	shelfClarity
	// shelfDeMud maps amount to a 0 to -8 dB peaking cut at 250 Hz, Q 1.5.
	shelfDeMud
)

// shelfKernel is a single-biquad tone-shaping kernel with one filter memory
// per channel.
type shelfKernel struct {
	variant  shelfVariant
	ctx      Context
	amount   float64
	makeup   float64
	sections []biquad.Section
}

func newShelfKernel(ctx Context, variant shelfVariant) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &shelfKernel{variant: variant, makeup: 1}
	k.resize(ctx)

	return k, nil
}

func (k *shelfKernel) resize(ctx Context) {
	if len(k.sections) != ctx.Channels {
		k.sections = make([]biquad.Section, ctx.Channels)
	}

	k.ctx = ctx
}

func (k *shelfKernel) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	sampleRateChanged := ctx.SampleRate != k.ctx.SampleRate
	k.resize(ctx)

	amount := core.Clamp(p.GetNum("amount", 0), 0, 1)
	if amount == k.amount && !sampleRateChanged {
		return nil
	}

	k.amount = amount
	k.makeup = 1

	var coeffs biquad.Coefficients

	switch k.variant {
	case shelfBassBoost:
		coeffs = biquad.LowShelf(80, 24*amount, 1/math.Sqrt2, ctx.SampleRate)
		k.makeup = 1 + 0.35*amount
	case shelfClarity:
		coeffs = biquad.HighShelf(3000, 12*amount, 1/math.Sqrt2, ctx.SampleRate)
	case shelfDeMud:
		coeffs = biquad.Peak(250, -8*amount, 1.5, ctx.SampleRate)
	}

	for ch := range k.sections {
		k.sections[ch].Coefficients = coeffs
	}

	return nil
}

func (k *shelfKernel) Process(block [][]float64) float64 {
	if k.amount <= 0 {
		return 0
	}

	for ch := range block {
		if ch >= len(k.sections) {
			break
		}

		k.sections[ch].ProcessBlock(block[ch])

		if k.makeup != 1 {
			buf := block[ch]
			for i := range buf {
				buf[i] *= k.makeup
			}
		}
	}

	return core.BlockRMS(block)
}

func (k *shelfKernel) Reset() {
	for ch := range k.sections {
		k.sections[ch].Reset()
	}
}

// eq10Centers are the ten band centers of the graphic EQ.
var eq10Centers = [10]float64{31, 62, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

const eq10BandQ = 1.1

// eq10 is a ten-band graphic equalizer: ten independent peaking filters per
// channel, each with gain in [-12, +12] dB.
type eq10 struct {
	ctx    Context
	gains  [10]float64
	active bool
	chains []*biquad.Chain
}

func newEQ10(ctx Context) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &eq10{}
	k.resize(ctx)

	return k, nil
}

func (k *eq10) resize(ctx Context) {
	if len(k.chains) != ctx.Channels {
		k.chains = make([]*biquad.Chain, ctx.Channels)
		for ch := range k.chains {
			k.chains[ch] = biquad.NewChain(make([]biquad.Coefficients, len(eq10Centers)))
		}

		k.rebuild(ctx.SampleRate)
	}

	k.ctx = ctx
}

func (k *eq10) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	sampleRateChanged := ctx.SampleRate != k.ctx.SampleRate
	k.resize(ctx)

	changed := sampleRateChanged

	for band := range eq10Centers {
		gain := core.Clamp(p.GetNum(bandKey(band), 0), -12, 12)
		if gain != k.gains[band] {
			k.gains[band] = gain
			changed = true
		}
	}

	if changed {
		k.rebuild(ctx.SampleRate)
	}

	return nil
}

func (k *eq10) rebuild(sampleRate float64) {
	k.active = false

	for band, freq := range eq10Centers {
		coeffs := biquad.Identity()
		if k.gains[band] != 0 {
			coeffs = biquad.Peak(freq, k.gains[band], eq10BandQ, sampleRate)
			k.active = true
		}

		for ch := range k.chains {
			k.chains[ch].Section(band).Coefficients = coeffs
		}
	}
}

func (k *eq10) Process(block [][]float64) float64 {
	if !k.active {
		return 0
	}

	for ch := range block {
		if ch >= len(k.chains) {
			break
		}

		k.chains[ch].ProcessBlock(block[ch])
	}

	return core.BlockRMS(block)
}

func (k *eq10) Reset() {
	for ch := range k.chains {
		k.chains[ch].Reset()
	}
}

func bandKey(band int) string {
	return "band" + string(rune('0'+band))
}
