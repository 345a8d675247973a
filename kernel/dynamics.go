package kernel

import (
	"math"

	"github.com/cwbudde/algo-fxgraph/dsp/core"
)

const (
	// compressorThreshold is the fixed amplitude above which limiting starts.
	compressorThreshold = 0.5

	compressorAttackMs  = 5.0
	compressorReleaseMs = 80.0
)

// compressor applies soft-knee-like limiting above a fixed 0.5 amplitude
// threshold with ratio 1 + 3*strength. The gain is smoothed by an
// attack/release envelope so the reduction never steps audibly.
type compressor struct {
	ctx      Context
	strength float64
	ratio    float64

	attackCoef  float64
	releaseCoef float64

	// Per-channel smoothed gain and envelope state.
	gain []float64
	env  []float64
}

func newCompressor(ctx Context) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &compressor{ratio: 1}
	k.resize(ctx)

	return k, nil
}

func (k *compressor) resize(ctx Context) {
	if len(k.gain) != ctx.Channels {
		k.gain = make([]float64, ctx.Channels)
		k.env = make([]float64, ctx.Channels)

		for ch := range k.gain {
			k.gain[ch] = 1
		}
	}

	if ctx.SampleRate != k.ctx.SampleRate {
		k.attackCoef = smoothingCoef(compressorAttackMs, ctx.SampleRate)
		k.releaseCoef = smoothingCoef(compressorReleaseMs, ctx.SampleRate)
	}

	k.ctx = ctx
}

func (k *compressor) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	k.resize(ctx)

	k.strength = core.Clamp(p.GetNum("strength", 0), 0, 1)
	k.ratio = 1 + 3*k.strength

	return nil
}

func (k *compressor) Process(block [][]float64) float64 {
	if k.strength <= 0 {
		return 0
	}

	for ch := range block {
		if ch >= len(k.gain) {
			break
		}

		buf := block[ch]
		gain := k.gain[ch]
		env := k.env[ch]

		for i, x := range buf {
			level := math.Abs(x)
			if level > env {
				env += (level - env) * k.attackCoef
			} else {
				env += (level - env) * k.releaseCoef
			}

			target := 1.0
			if env > compressorThreshold {
				limited := compressorThreshold + (env-compressorThreshold)/k.ratio
				target = limited / env
			}

			if target < gain {
				gain += (target - gain) * k.attackCoef
			} else {
				gain += (target - gain) * k.releaseCoef
			}

			buf[i] = x * gain
		}

		k.gain[ch] = core.FlushDenormals(gain)
		k.env[ch] = core.FlushDenormals(env)
	}

	return core.BlockRMS(block)
}

func (k *compressor) Reset() {
	for ch := range k.gain {
		k.gain[ch] = 1
		k.env[ch] = 0
	}
}

// smoothingCoef converts a time constant in milliseconds to a one-pole
// smoothing coefficient at the given sample rate.
func smoothingCoef(ms, sampleRate float64) float64 {
	if ms <= 0 || sampleRate <= 0 {
		return 1
	}

	return 1 - math.Exp(-1/(ms/1000*sampleRate))
}
