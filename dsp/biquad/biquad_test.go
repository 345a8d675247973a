package biquad

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestIdentityPassthrough(t *testing.T) {
	s := NewSection(Identity())

	input := []float64{1, 0, -1, 0.5, 0.25}
	for _, x := range input {
		if y := s.ProcessSample(x); y != x {
			t.Fatalf("identity section altered sample: got %v, want %v", y, x)
		}
	}
}

func TestProcessBlockMatchesProcessSample(t *testing.T) {
	c := Coefficients{B0: 0.2, B1: 0.3, B2: 0.1, A1: -0.4, A2: 0.05}

	perSample := NewSection(c)
	block := NewSection(c)

	input := make([]float64, 64)
	for i := range input {
		input[i] = math.Sin(float64(i) * 0.3)
	}

	want := make([]float64, len(input))
	for i, x := range input {
		want[i] = perSample.ProcessSample(x)
	}

	got := append([]float64(nil), input...)
	block.ProcessBlock(got)

	for i := range got {
		if !almostEqual(got[i], want[i], 1e-12) {
			t.Fatalf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSectionReset(t *testing.T) {
	s := NewSection(Coefficients{B0: 0.5, B1: 0.5})

	s.ProcessSample(1)

	if d0, d1 := s.State(); d0 == 0 && d1 == 0 {
		t.Fatal("expected nonzero state after processing")
	}

	s.Reset()

	if d0, d1 := s.State(); d0 != 0 || d1 != 0 {
		t.Fatalf("state not cleared: d0=%v d1=%v", d0, d1)
	}
}

func TestSectionSetState(t *testing.T) {
	s := NewSection(Identity())
	s.SetState(0.25, -0.5)

	d0, d1 := s.State()
	if d0 != 0.25 || d1 != -0.5 {
		t.Fatalf("state not restored: d0=%v d1=%v", d0, d1)
	}
}

func TestChainCascade(t *testing.T) {
	coeffs := []Coefficients{
		{B0: 0.5, B1: 0.5},
		{B0: 0.5, B1: 0.5},
	}

	chain := NewChain(coeffs)
	if chain.NumSections() != 2 {
		t.Fatalf("NumSections = %d, want 2", chain.NumSections())
	}

	a := NewSection(coeffs[0])
	b := NewSection(coeffs[1])

	input := []float64{1, -1, 0.5, 0, 0.25, -0.75}
	for i, x := range input {
		want := b.ProcessSample(a.ProcessSample(x))
		if got := chain.ProcessSample(x); !almostEqual(got, want, 1e-12) {
			t.Fatalf("sample %d: got %v, want %v", i, got, want)
		}
	}
}

func TestChainReset(t *testing.T) {
	chain := NewChain([]Coefficients{{B0: 0.5, B1: 0.5}})
	chain.ProcessSample(1)
	chain.Reset()

	if d0, d1 := chain.Section(0).State(); d0 != 0 || d1 != 0 {
		t.Fatalf("chain state not cleared: d0=%v d1=%v", d0, d1)
	}
}

func TestLowShelfUnityAtZeroGain(t *testing.T) {
	c := LowShelf(80, 0, 0.707, 48000)

	s := NewSection(c)

	// With 0 dB gain the shelf must be audibly transparent.
	for i := 0; i < 256; i++ {
		x := math.Sin(2 * math.Pi * 1000 * float64(i) / 48000)
		y := s.ProcessSample(x)

		if !almostEqual(y, x, 1e-6) {
			t.Fatalf("sample %d: got %v, want %v", i, y, x)
		}
	}
}

func TestLowShelfBoostsLowFrequencies(t *testing.T) {
	c := LowShelf(200, 12, 0.707, 48000)
	s := NewSection(c)

	low := rmsGainAt(s, 50, 48000)

	s = NewSection(c)
	high := rmsGainAt(s, 8000, 48000)

	if low <= high {
		t.Fatalf("low shelf gain at 50 Hz (%v) not above 8 kHz (%v)", low, high)
	}

	if low < 3 { // 12 dB ~ 4x
		t.Fatalf("50 Hz gain %v, want near 4", low)
	}
}

func TestHighShelfBoostsHighFrequencies(t *testing.T) {
	c := HighShelf(3000, 12, 0.707, 48000)
	s := NewSection(c)

	low := rmsGainAt(s, 100, 48000)

	s = NewSection(c)
	high := rmsGainAt(s, 12000, 48000)

	if high <= low {
		t.Fatalf("high shelf gain at 12 kHz (%v) not above 100 Hz (%v)", high, low)
	}
}

func TestPeakCutAtCenter(t *testing.T) {
	c := Peak(250, -8, 1.5, 48000)
	s := NewSection(c)

	center := rmsGainAt(s, 250, 48000)

	if center >= 1 {
		t.Fatalf("peaking cut gain at center %v, want < 1", center)
	}

	want := math.Pow(10, -8.0/20)
	if !almostEqual(center, want, 0.05) {
		t.Fatalf("center gain %v, want near %v", center, want)
	}
}

func TestAllpassUnityMagnitude(t *testing.T) {
	c := Allpass(1000, 0.707, 48000)

	for _, freq := range []float64{100, 1000, 5000, 15000} {
		s := NewSection(c)
		if g := rmsGainAt(s, freq, 48000); !almostEqual(g, 1, 0.02) {
			t.Fatalf("allpass gain at %v Hz = %v, want 1", freq, g)
		}
	}
}

// rmsGainAt measures steady-state RMS gain for a sine at the given
// frequency, discarding the transient.
func rmsGainAt(s *Section, freq, sampleRate float64) float64 {
	const n = 9600

	var sumIn, sumOut float64

	for i := 0; i < n; i++ {
		x := math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
		y := s.ProcessSample(x)

		if i < n/2 {
			continue
		}

		sumIn += x * x
		sumOut += y * y
	}

	return math.Sqrt(sumOut / sumIn)
}
