package core

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		value, min, max, want float64
	}{
		{0.5, 0, 1, 0.5},
		{-1, 0, 1, 0},
		{2, 0, 1, 1},
		{0, 0, 1, 0},
		{1, 0, 1, 1},
	}

	for _, tt := range tests {
		if got := Clamp(tt.value, tt.min, tt.max); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.value, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestDBLinearRoundTrip(t *testing.T) {
	for _, db := range []float64{-60, -12, -6, 0, 6, 12, 24} {
		lin := DBToLinear(db)
		if got := LinearToDB(lin); math.Abs(got-db) > 1e-9 {
			t.Errorf("round trip %v dB: got %v", db, got)
		}
	}

	if got := DBToLinear(6.0206); math.Abs(got-2) > 1e-3 {
		t.Errorf("DBToLinear(6.0206) = %v, want ~2", got)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", got)
	}

	buf := []float64{1, -1, 1, -1}
	if got := RMS(buf); math.Abs(got-1) > 1e-12 {
		t.Fatalf("RMS(square) = %v, want 1", got)
	}

	sine := make([]float64, 48000)
	for i := range sine {
		sine[i] = math.Sin(2 * math.Pi * 100 * float64(i) / 48000)
	}

	if got := RMS(sine); math.Abs(got-1/math.Sqrt2) > 1e-3 {
		t.Fatalf("RMS(sine) = %v, want %v", got, 1/math.Sqrt2)
	}
}

func TestBlockRMS(t *testing.T) {
	block := [][]float64{
		{1, -1, 1, -1},
		{0, 0, 0, 0},
	}

	want := math.Sqrt(0.5)
	if got := BlockRMS(block); math.Abs(got-want) > 1e-12 {
		t.Fatalf("BlockRMS = %v, want %v", got, want)
	}
}

func TestFlushDenormals(t *testing.T) {
	if got := FlushDenormals(1e-32); got != 0 {
		t.Fatalf("FlushDenormals(1e-32) = %v, want 0", got)
	}

	if got := FlushDenormals(0.5); got != 0.5 {
		t.Fatalf("FlushDenormals(0.5) = %v, want 0.5", got)
	}
}

func TestEnsureLen(t *testing.T) {
	buf := EnsureLen(nil, 8)
	if len(buf) != 8 {
		t.Fatalf("len = %d, want 8", len(buf))
	}

	buf[0] = 1

	same := EnsureLen(buf, 8)
	if &same[0] != &buf[0] {
		t.Fatal("EnsureLen reallocated for same length")
	}

	grown := EnsureLen(buf, 16)
	if len(grown) != 16 {
		t.Fatalf("len after grow = %d, want 16", len(grown))
	}
}

func TestEnsureBlock(t *testing.T) {
	block := EnsureBlock(nil, 2, 4)

	if len(block) != 2 || len(block[0]) != 4 || len(block[1]) != 4 {
		t.Fatalf("unexpected shape %dx%d", len(block), len(block[0]))
	}
}

func TestInterleaveDeinterleaveRoundTrip(t *testing.T) {
	block := [][]float64{
		{0.1, 0.2, 0.3},
		{-0.1, -0.2, -0.3},
	}

	inter := make([]float32, 6)
	Interleave(inter, block, 3)

	want := []float32{0.1, -0.1, 0.2, -0.2, 0.3, -0.3}
	for i := range want {
		if inter[i] != want[i] {
			t.Fatalf("interleaved[%d] = %v, want %v", i, inter[i], want[i])
		}
	}

	out := EnsureBlock(nil, 2, 3)
	Deinterleave(out, inter, 3)

	for ch := range out {
		for i := range out[ch] {
			if math.Abs(out[ch][i]-block[ch][i]) > 1e-6 {
				t.Fatalf("ch %d sample %d: got %v, want %v", ch, i, out[ch][i], block[ch][i])
			}
		}
	}
}

func TestZeroBlock(t *testing.T) {
	block := [][]float64{{1, 2}, {3, 4}}
	ZeroBlock(block)

	for ch := range block {
		for i := range block[ch] {
			if block[ch][i] != 0 {
				t.Fatalf("ch %d sample %d not zeroed", ch, i)
			}
		}
	}
}
