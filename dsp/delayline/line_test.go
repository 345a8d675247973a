package delayline

import (
	"math"
	"testing"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero size")
	}

	if _, err := New(-4); err == nil {
		t.Fatal("expected error for negative size")
	}

	d, err := New(16)
	if err != nil {
		t.Fatalf("New(16): %v", err)
	}

	if d.Len() != 16 {
		t.Fatalf("Len = %d, want 16", d.Len())
	}
}

func TestIntegerRead(t *testing.T) {
	d, _ := New(8)

	for i := 1; i <= 5; i++ {
		d.Write(float64(i))
	}

	tests := []struct {
		delay int
		want  float64
	}{
		{1, 5},
		{2, 4},
		{5, 1},
	}

	for _, tt := range tests {
		if got := d.Read(tt.delay); got != tt.want {
			t.Errorf("Read(%d) = %v, want %v", tt.delay, got, tt.want)
		}
	}
}

func TestReadLinearInterpolates(t *testing.T) {
	d, _ := New(8)

	d.Write(1)
	d.Write(3)

	// Halfway between the last two writes.
	if got := d.ReadLinear(1.5); math.Abs(got-2) > 1e-12 {
		t.Fatalf("ReadLinear(1.5) = %v, want 2", got)
	}
}

func TestReadHermitePassesThroughKnots(t *testing.T) {
	d, _ := New(16)

	values := []float64{0, 0.5, -0.25, 1, 0.75}
	for _, v := range values {
		d.Write(v)
	}

	// At integer delays the interpolator must return the stored samples.
	for i := 1; i <= 3; i++ {
		want := values[len(values)-i]
		if got := d.ReadHermite(float64(i)); math.Abs(got-want) > 1e-12 {
			t.Fatalf("ReadHermite(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestWrapAround(t *testing.T) {
	d, _ := New(4)

	for i := 1; i <= 10; i++ {
		d.Write(float64(i))
	}

	if got := d.Read(1); got != 10 {
		t.Fatalf("Read(1) after wrap = %v, want 10", got)
	}

	if got := d.Read(4); got != 7 {
		t.Fatalf("Read(4) after wrap = %v, want 7", got)
	}
}

func TestResizeClears(t *testing.T) {
	d, _ := New(4)
	d.Write(1)

	d.Resize(8)

	if d.Len() != 8 {
		t.Fatalf("Len after Resize = %d, want 8", d.Len())
	}

	if got := d.Read(1); got != 0 {
		t.Fatalf("Read after Resize = %v, want 0", got)
	}
}

func TestReset(t *testing.T) {
	d, _ := New(4)
	d.Write(0.5)
	d.Reset()

	for i := 1; i <= 4; i++ {
		if got := d.Read(i); got != 0 {
			t.Fatalf("Read(%d) after Reset = %v, want 0", i, got)
		}
	}
}
