package core

// EnsureLen returns a slice with the requested length, reusing buf capacity if possible.
func EnsureLen(buf []float64, n int) []float64 {
	if n <= 0 {
		return buf[:0]
	}

	if cap(buf) >= n {
		return buf[:n]
	}

	return make([]float64, n)
}

// EnsureBlock returns a deinterleaved block with the requested channel count
// and frame length, reusing existing channel capacity where possible.
func EnsureBlock(block [][]float64, channels, frames int) [][]float64 {
	if cap(block) < channels {
		grown := make([][]float64, channels)
		copy(grown, block)
		block = grown
	}

	block = block[:channels]
	for ch := range block {
		block[ch] = EnsureLen(block[ch], frames)
	}

	return block
}

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// ZeroBlock sets all channels of a deinterleaved block to 0.
func ZeroBlock(block [][]float64) {
	for _, ch := range block {
		Zero(ch)
	}
}

// CopyBlock copies src channels into dst. Channel counts and lengths must match;
// shorter destinations truncate.
func CopyBlock(dst, src [][]float64) {
	for ch := range dst {
		if ch >= len(src) {
			return
		}

		copy(dst[ch], src[ch])
	}
}

// Interleave packs a deinterleaved float64 block into interleaved float32 frames.
// dst must hold frames*channels values.
func Interleave(dst []float32, block [][]float64, frames int) {
	channels := len(block)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			dst[i*channels+ch] = float32(block[ch][i])
		}
	}
}

// Deinterleave unpacks interleaved float32 frames into a deinterleaved float64 block.
func Deinterleave(block [][]float64, src []float32, frames int) {
	channels := len(block)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			block[ch][i] = float64(src[i*channels+ch])
		}
	}
}
