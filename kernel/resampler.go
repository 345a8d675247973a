package kernel

import (
	"math"

	"github.com/cwbudde/algo-fxgraph/dsp/core"
)

const (
	resamplerBufferSeconds = 0.5
	resamplerGuardSamples  = 64
	resamplerFadeSamples   = 64
)

type resamplerChannel struct {
	buffer   []float64
	writePos int
	readPos  float64

	// Safety-margin crossfade state: when the read pointer drifts inside the
	// guard distance of the write pointer it is recentered, blending the old
	// and new read positions to avoid a phase discontinuity.
	fadeFrom   float64
	fadeRemain int
}

func (c *resamplerChannel) readLinear(pos float64) float64 {
	size := len(c.buffer)
	if size == 0 {
		return 0
	}

	p := int(math.Floor(pos))
	t := pos - float64(p)

	i0 := p % size
	if i0 < 0 {
		i0 += size
	}

	i1 := i0 + 1
	if i1 >= size {
		i1 = 0
	}

	return c.buffer[i0] + t*(c.buffer[i1]-c.buffer[i0])
}

// resampler plays a ring buffer back at a non-unity read-phase increment.
// A ratio above 1 reads faster (upward shift), below 1 slower.
type resampler struct {
	ctx   Context
	ratio float64

	channels []resamplerChannel
}

func newResampler(ctx Context) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	k := &resampler{ratio: 1}
	k.resize(ctx)

	return k, nil
}

func (k *resampler) resize(ctx Context) {
	size := int(resamplerBufferSeconds * ctx.SampleRate)
	if size < 4*resamplerGuardSamples {
		size = 4 * resamplerGuardSamples
	}

	if len(k.channels) != ctx.Channels || (len(k.channels) > 0 && len(k.channels[0].buffer) != size) {
		k.channels = make([]resamplerChannel, ctx.Channels)
		for ch := range k.channels {
			k.channels[ch].buffer = make([]float64, size)
			k.channels[ch].readPos = float64(size / 2)
		}
	}

	k.ctx = ctx
}

func (k *resampler) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	k.resize(ctx)
	k.ratio = core.Clamp(p.GetNum("ratio", 1), 0.5, 2)

	return nil
}

func (k *resampler) Process(block [][]float64) float64 {
	if math.Abs(k.ratio-1) <= 1e-9 {
		return 0
	}

	for ch := range block {
		if ch >= len(k.channels) {
			break
		}

		buf := block[ch]
		rc := &k.channels[ch]
		size := len(rc.buffer)
		nominal := float64(size / 2)

		for i, in := range buf {
			rc.buffer[rc.writePos] = in
			rc.writePos++

			if rc.writePos >= size {
				rc.writePos = 0
			}

			distance := float64(rc.writePos) - rc.readPos
			for distance < 0 {
				distance += float64(size)
			}

			if distance < resamplerGuardSamples || distance > float64(size)-resamplerGuardSamples {
				rc.fadeFrom = rc.readPos
				rc.fadeRemain = resamplerFadeSamples

				rc.readPos = float64(rc.writePos) - nominal
				for rc.readPos < 0 {
					rc.readPos += float64(size)
				}
			}

			out := rc.readLinear(rc.readPos)

			if rc.fadeRemain > 0 {
				t := 1 - float64(rc.fadeRemain)/resamplerFadeSamples
				out = rc.readLinear(rc.fadeFrom)*(1-t) + out*t

				rc.fadeFrom += k.ratio
				if rc.fadeFrom >= float64(size) {
					rc.fadeFrom -= float64(size)
				}

				rc.fadeRemain--
			}

			rc.readPos += k.ratio
			if rc.readPos >= float64(size) {
				rc.readPos -= float64(size)
			}

			buf[i] = out
		}
	}

	return core.BlockRMS(block)
}

func (k *resampler) Reset() {
	for ch := range k.channels {
		rc := &k.channels[ch]
		for i := range rc.buffer {
			rc.buffer[i] = 0
		}

		rc.writePos = 0
		rc.readPos = float64(len(rc.buffer) / 2)
		rc.fadeFrom = 0
		rc.fadeRemain = 0
	}
}
