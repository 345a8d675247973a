package delayline

import (
	"fmt"
	"math"
)

// Line is a circular delay line with integer and fractional reads.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a delay line of fixed size in samples.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delayline: size must be > 0: %d", size)
	}

	return &Line{buffer: make([]float64, size)}, nil
}

// Len returns the internal buffer size.
func (d *Line) Len() int {
	return len(d.buffer)
}

// Resize grows or shrinks the line to size samples, clearing its contents.
// A no-op when the size already matches.
func (d *Line) Resize(size int) {
	if size <= 0 || size == len(d.buffer) {
		return
	}

	d.buffer = make([]float64, size)
	d.writePos = 0
}

// Write writes one sample.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample
	d.writePos++

	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read reads an integer delay in samples behind the write position.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	if size == 0 {
		return 0
	}

	readPos := (d.writePos - delay + size) % size
	if readPos < 0 {
		readPos += size
	}

	return d.buffer[readPos]
}

// ReadLinear reads a fractional delay with linear interpolation.
func (d *Line) ReadLinear(delay float64) float64 {
	size := len(d.buffer)
	if size == 0 {
		return 0
	}

	if delay < 0 {
		delay = 0
	}

	maxDelay := float64(size - 2)
	if delay > maxDelay {
		delay = maxDelay
	}

	p := int(math.Floor(delay))
	t := delay - float64(p)

	x0 := d.Read(p)
	x1 := d.Read(p + 1)

	return x0 + t*(x1-x0)
}

// ReadHermite reads a fractional delay with cubic Hermite interpolation.
func (d *Line) ReadHermite(delay float64) float64 {
	size := len(d.buffer)
	if size == 0 {
		return 0
	}

	if delay < 0 {
		delay = 0
	}

	maxDelay := float64(size - 3)
	if delay > maxDelay {
		delay = maxDelay
	}

	p := int(math.Floor(delay))
	t := delay - float64(p)

	xm1 := d.Read(max(0, p-1))
	x0 := d.Read(p)
	x1 := d.Read(p + 1)
	x2 := d.Read(p + 2)

	return hermite4(t, xm1, x0, x1, x2)
}

// Reset clears line state.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}

	d.writePos = 0
}

// hermite4 computes cubic 4-point interpolation from x0 to x1 using
// neighbor points xm1 and x2.
func hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)

	return ((c3*t+c2)*t+c1)*t + c0
}
