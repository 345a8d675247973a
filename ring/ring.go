// Package ring bridges the irregular hardware callback cadence to the
// engine's internal buffer granularity with a bounded circular buffer of
// interleaved frames.
package ring

import (
	"fmt"
	"sync"
)

// Buffer is a bounded circular buffer of interleaved float32 frames.
//
// Write never blocks and never grows the buffer: when full, the oldest
// frames are dropped. Read returns up to the requested frame count and
// nothing while the priming threshold has not accumulated; the consumer is
// expected to substitute silence for missing frames rather than stall.
type Buffer struct {
	mu sync.Mutex

	buf      []float32
	channels int

	head int // read position in samples
	n    int // samples stored

	primeFrames int
	primed      bool

	droppedFrames uint64
	underruns     uint64
}

// New creates a bridge holding capacityFrames interleaved frames. Reads stay
// silent until primingFrames have accumulated; zero disables priming.
func New(capacityFrames, channels, primingFrames int) (*Buffer, error) {
	if capacityFrames <= 0 {
		return nil, fmt.Errorf("ring: capacity must be > 0 frames: %d", capacityFrames)
	}

	if channels < 1 {
		return nil, fmt.Errorf("ring: channel count must be >= 1: %d", channels)
	}

	if primingFrames < 0 || primingFrames > capacityFrames {
		return nil, fmt.Errorf("ring: priming must be in [0, %d] frames: %d", capacityFrames, primingFrames)
	}

	return &Buffer{
		buf:         make([]float32, capacityFrames*channels),
		channels:    channels,
		primeFrames: primingFrames,
		primed:      primingFrames == 0,
	}, nil
}

// WriteFrames appends interleaved samples, dropping the oldest buffered
// frames when capacity is exceeded. Bounded memory is an invariant: the
// buffer never grows past its construction capacity.
func (b *Buffer) WriteFrames(samples []float32) {
	samples = samples[:len(samples)/b.channels*b.channels]

	b.mu.Lock()
	defer b.mu.Unlock()

	// An oversized write keeps only its newest tail.
	if len(samples) > len(b.buf) {
		b.droppedFrames += uint64((len(samples) - len(b.buf)) / b.channels)
		samples = samples[len(samples)-len(b.buf):]
	}

	overflow := b.n + len(samples) - len(b.buf)
	if overflow > 0 {
		b.head = (b.head + overflow) % len(b.buf)
		b.n -= overflow
		b.droppedFrames += uint64(overflow / b.channels)
	}

	tail := (b.head + b.n) % len(b.buf)
	first := copy(b.buf[tail:], samples)
	copy(b.buf, samples[first:])
	b.n += len(samples)

	if !b.primed && b.n >= b.primeFrames*b.channels {
		b.primed = true
	}
}

// ReadFrames fills dst with up to len(dst)/channels frames and returns the
// frame count delivered. It returns 0 while priming or starved; dst is not
// zeroed, the caller substitutes silence for frames not delivered.
func (b *Buffer) ReadFrames(dst []float32) int {
	want := len(dst) / b.channels * b.channels

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.primed {
		return 0
	}

	if b.n == 0 {
		b.underruns++
		b.primed = b.primeFrames == 0

		return 0
	}

	if want > b.n {
		want = b.n
	}

	first := len(b.buf) - b.head
	if first > want {
		first = want
	}

	copy(dst[:first], b.buf[b.head:b.head+first])
	copy(dst[first:want], b.buf[:want-first])

	b.head = (b.head + want) % len(b.buf)
	b.n -= want

	return want / b.channels
}

// Len returns the number of buffered frames.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.n / b.channels
}

// Cap returns the buffer capacity in frames.
func (b *Buffer) Cap() int {
	return len(b.buf) / b.channels
}

// Channels returns the interleaved channel count.
func (b *Buffer) Channels() int {
	return b.channels
}

// DroppedFrames returns the total frames discarded by overflowing writes.
func (b *Buffer) DroppedFrames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.droppedFrames
}

// Underruns returns the number of reads that found the buffer empty.
func (b *Buffer) Underruns() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.underruns
}

// Reset discards all buffered frames and restarts priming.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = 0
	b.n = 0
	b.primed = b.primeFrames == 0
}
