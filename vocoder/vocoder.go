// Package vocoder implements a streaming STFT phase vocoder that satisfies
// the engine's external pitch-shift contract: configure, set pitch, process
// interleaved frames (possibly returning fewer while priming), reset.
package vocoder

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
)

const (
	defaultFrameSize = 1024
	analysisHopDiv   = 4

	normFloor = 1e-12
)

// channelState holds the per-channel STFT stream state.
type channelState struct {
	input []float64
	ready []float64

	prevPhase []float64
	sumPhase  []float64

	spectrum  []complex128
	synthesis []complex128
	timeFrame []complex128

	magnitudes []float64
	instFreqs  []float64

	olaAccum []float64
}

// Vocoder is a streaming phase-vocoder pitch shifter.
//
// Frames are analyzed with a Hann window at a quarter-frame hop, shifted in
// the frequency domain by linear bin interpolation with per-bin phase
// accumulation, and overlap-added back into a ready queue. Output only
// becomes available once a full analysis frame has accumulated, which is the
// latency the engine's priming mute hides.
type Vocoder struct {
	sampleRate float64
	channels   int
	frameSize  int
	hop        int

	pitchRatio float64
	minFrames  int

	plan         *algofft.Plan[complex128]
	windowCoeffs []float64
	omega        []float64
	olaNorm      float64

	states []channelState
}

// New creates an unconfigured vocoder. Configure must be called before Process.
func New() *Vocoder {
	return &Vocoder{
		frameSize:  defaultFrameSize,
		pitchRatio: 1,
	}
}

// Configure sets the stream format and (re)builds all internal state.
func (v *Vocoder) Configure(sampleRate float64, channels int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("vocoder: sample rate must be > 0 and finite: %f", sampleRate)
	}

	if channels < 1 {
		return fmt.Errorf("vocoder: channel count must be >= 1: %d", channels)
	}

	if v.plan == nil || sampleRate != v.sampleRate || channels != v.channels {
		plan, err := algofft.NewPlan64(v.frameSize)
		if err != nil {
			return fmt.Errorf("vocoder: create FFT plan: %w", err)
		}

		v.plan = plan
		v.sampleRate = sampleRate
		v.channels = channels
		v.hop = v.frameSize / analysisHopDiv
		v.minFrames = v.frameSize
		v.rebuild()
	}

	return nil
}

func (v *Vocoder) rebuild() {
	v.windowCoeffs = make([]float64, v.frameSize)
	for i := range v.windowCoeffs {
		v.windowCoeffs[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(v.frameSize)))
	}

	half := v.frameSize / 2

	v.omega = make([]float64, half+1)
	for k := range v.omega {
		v.omega[k] = 2 * math.Pi * float64(k) / float64(v.frameSize)
	}

	// Squared-Hann overlap-add normalization at quarter-frame hop.
	v.olaNorm = 3.0 / 8.0 * float64(v.frameSize) / float64(v.hop)

	v.states = make([]channelState, v.channels)
	for ch := range v.states {
		v.states[ch] = channelState{
			prevPhase:  make([]float64, half+1),
			sumPhase:   make([]float64, half+1),
			spectrum:   make([]complex128, v.frameSize),
			synthesis:  make([]complex128, v.frameSize),
			timeFrame:  make([]complex128, v.frameSize),
			magnitudes: make([]float64, half+1),
			instFreqs:  make([]float64, half+1),
		}
	}
}

// SetPitchSemitones sets the shift amount; 0 is unity.
func (v *Vocoder) SetPitchSemitones(semitones float64) {
	v.pitchRatio = math.Exp2(semitones / 12)
}

// SetMinimumProcessFrames overrides the minimum frame count reported to the
// caller; the engine primes on twice this value.
func (v *Vocoder) SetMinimumProcessFrames(frames int) {
	if frames > 0 {
		v.minFrames = frames
	}
}

// MinimumProcessFrames returns the minimum number of frames the vocoder
// needs before producing output.
func (v *Vocoder) MinimumProcessFrames() int {
	return v.minFrames
}

// Process consumes interleaved input frames and writes up to
// len(out)/channels interleaved output frames, returning the count produced.
// While the analysis window fills, fewer (or zero) frames come back.
func (v *Vocoder) Process(in []float64, out []float64) int {
	if v.plan == nil || v.channels == 0 {
		return 0
	}

	frames := len(in) / v.channels
	for ch := 0; ch < v.channels; ch++ {
		st := &v.states[ch]
		for i := 0; i < frames; i++ {
			st.input = append(st.input, in[i*v.channels+ch])
		}
	}

	for v.states[0].hasFullFrame(v.frameSize) {
		for ch := range v.states {
			v.processFrame(&v.states[ch])
		}
	}

	available := v.states[0].readyFrames()
	for ch := 1; ch < v.channels; ch++ {
		if a := v.states[ch].readyFrames(); a < available {
			available = a
		}
	}

	capacity := len(out) / v.channels

	produce := available
	if produce > capacity {
		produce = capacity
	}

	for ch := 0; ch < v.channels; ch++ {
		st := &v.states[ch]
		for i := 0; i < produce; i++ {
			out[i*v.channels+ch] = st.ready[i]
		}

		st.ready = st.ready[:copy(st.ready, st.ready[produce:])]
	}

	return produce
}

func (st *channelState) readyFrames() int {
	return len(st.ready)
}

func (st *channelState) hasFullFrame(frameSize int) bool {
	return len(st.input) >= frameSize
}

// processFrame runs one analysis/synthesis hop: window, forward FFT, bin
// shift with phase accumulation, inverse FFT, overlap-add. It consumes hop
// input samples and releases hop normalized output samples.
func (v *Vocoder) processFrame(st *channelState) {
	half := v.frameSize / 2
	hopF := float64(v.hop)
	ratio := v.pitchRatio

	for i := 0; i < v.frameSize; i++ {
		st.spectrum[i] = complex(st.input[i]*v.windowCoeffs[i], 0)
	}

	err := v.plan.Forward(st.spectrum, st.spectrum)
	if err != nil {
		// A plan sized at construction never fails on matching buffers;
		// degrade to silence if it somehow does.
		v.releaseSilence(st)
		return
	}

	for k := 0; k <= half; k++ {
		re := real(st.spectrum[k])
		im := imag(st.spectrum[k])
		st.magnitudes[k] = math.Hypot(re, im)
		phase := math.Atan2(im, re)

		delta := wrapPhase(phase - st.prevPhase[k] - v.omega[k]*hopF)
		st.instFreqs[k] = v.omega[k] + delta/hopF
		st.prevPhase[k] = phase
	}

	// Bin shifting with linear interpolation, then per-bin phase accumulation.
	for k := 0; k <= half; k++ {
		srcK := float64(k) / ratio

		mag := 0.0
		freq := v.omega[k]

		if srcK < float64(half) {
			lo := int(srcK)
			frac := srcK - float64(lo)

			hi := lo + 1
			if hi > half {
				hi = half
			}

			mag = st.magnitudes[lo]*(1-frac) + st.magnitudes[hi]*frac
			freq = (st.instFreqs[lo]*(1-frac) + st.instFreqs[hi]*frac) * ratio
		}

		st.sumPhase[k] += freq * hopF
		st.synthesis[k] = complex(mag*math.Cos(st.sumPhase[k]), mag*math.Sin(st.sumPhase[k]))
	}

	// Mirror for a real-valued inverse transform.
	st.synthesis[0] = complex(real(st.synthesis[0]), 0)
	st.synthesis[half] = complex(real(st.synthesis[half]), 0)

	for k := 1; k < half; k++ {
		s := st.synthesis[k]
		st.synthesis[v.frameSize-k] = complex(real(s), -imag(s))
	}

	err = v.plan.Inverse(st.timeFrame, st.synthesis)
	if err != nil {
		v.releaseSilence(st)
		return
	}

	v.overlapAdd(st)
}

// overlapAdd folds the synthesized frame into the pending tail and releases
// the oldest hop of fully-accumulated samples into the ready queue.
func (v *Vocoder) overlapAdd(st *channelState) {
	if st.olaAccum == nil {
		st.olaAccum = make([]float64, v.frameSize)
	}

	for i := 0; i < v.frameSize; i++ {
		st.olaAccum[i] += real(st.timeFrame[i]) * v.windowCoeffs[i]
	}

	norm := v.olaNorm
	if norm < normFloor {
		norm = 1
	}

	for i := 0; i < v.hop; i++ {
		st.ready = append(st.ready, st.olaAccum[i]/norm)
	}

	copy(st.olaAccum, st.olaAccum[v.hop:])
	for i := v.frameSize - v.hop; i < v.frameSize; i++ {
		st.olaAccum[i] = 0
	}

	st.input = st.input[:copy(st.input, st.input[v.hop:])]
}

func (v *Vocoder) releaseSilence(st *channelState) {
	for i := 0; i < v.hop; i++ {
		st.ready = append(st.ready, 0)
	}

	st.input = st.input[:copy(st.input, st.input[v.hop:])]
}

// Reset clears all stream and phase state while keeping the configuration.
func (v *Vocoder) Reset() {
	for ch := range v.states {
		st := &v.states[ch]
		st.input = st.input[:0]
		st.ready = st.ready[:0]

		for k := range st.prevPhase {
			st.prevPhase[k] = 0
			st.sumPhase[k] = 0
		}

		if st.olaAccum != nil {
			for i := range st.olaAccum {
				st.olaAccum[i] = 0
			}
		}
	}
}

func wrapPhase(phase float64) float64 {
	for phase > math.Pi {
		phase -= 2 * math.Pi
	}

	for phase < -math.Pi {
		phase += 2 * math.Pi
	}

	return phase
}
