package kernel

import "github.com/cwbudde/algo-fxgraph/dsp/core"

// stereoWidth adjusts stereo image width via mid/side decomposition with a
// side-channel gain of 1 + width. Mono blocks pass through unchanged.
type stereoWidth struct {
	ctx   Context
	width float64
}

func newStereoWidth(ctx Context) (Processor, error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}

	return &stereoWidth{ctx: ctx}, nil
}

func (k *stereoWidth) Configure(ctx Context, p Params) error {
	if err := ctx.validate(); err != nil {
		return err
	}

	k.ctx = ctx
	k.width = core.Clamp(p.GetNum("width", 0), 0, 1)

	return nil
}

func (k *stereoWidth) Process(block [][]float64) float64 {
	if k.width <= 0 || len(block) < 2 {
		return 0
	}

	left := block[0]
	right := block[1]
	sideGain := 1 + k.width

	n := len(left)
	if len(right) < n {
		n = len(right)
	}

	for i := 0; i < n; i++ {
		mid := 0.5 * (left[i] + right[i])
		side := 0.5 * (left[i] - right[i]) * sideGain

		left[i] = mid + side
		right[i] = mid - side
	}

	return core.BlockRMS(block)
}

func (k *stereoWidth) Reset() {}
