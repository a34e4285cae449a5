package irsynth

import (
	"math"
	"testing"

	pdefd "github.com/cwbudde/algo-pde/fd"
	pdepoisson "github.com/cwbudde/algo-pde/poisson"
)

func TestGenerateCabinetBasic(t *testing.T) {
	cfg := DefaultCabinetConfig()
	cfg.Seed = 42
	cfg.NormalizePeak = 0.8

	ir, err := GenerateCabinet(cfg)
	if err != nil {
		t.Fatalf("GenerateCabinet: %v", err)
	}
	if len(ir) != int(math.Round(cfg.DurationS*float64(cfg.SampleRate))) {
		t.Fatalf("unexpected output length: %d", len(ir))
	}

	maxAbs := 0.0
	energy := 0.0
	for i := range ir {
		v := float64(ir[i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite sample at %d", i)
		}
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
		energy += v * v
	}
	if energy <= 1e-8 {
		t.Fatal("expected non-zero energy")
	}
	if maxAbs > 0.81 {
		t.Fatalf("unexpected normalization peak: %.6f", maxAbs)
	}
}

func TestGenerateCabinetDeterministicForSeed(t *testing.T) {
	cfg := DefaultCabinetConfig()
	cfg.SampleRate = 32000
	cfg.DurationS = 0.05
	cfg.Modes = 24
	cfg.Seed = 99

	ir1, err := GenerateCabinet(cfg)
	if err != nil {
		t.Fatalf("first GenerateCabinet: %v", err)
	}
	ir2, err := GenerateCabinet(cfg)
	if err != nil {
		t.Fatalf("second GenerateCabinet: %v", err)
	}
	if len(ir1) != len(ir2) {
		t.Fatal("length mismatch")
	}
	for i := range ir1 {
		if ir1[i] != ir2[i] {
			t.Fatalf("non-deterministic output at index %d", i)
		}
	}
}

func TestModeLadderTracksEigenspectrum(t *testing.T) {
	freqs := modeLadder(95.0, 24000.0, 48)
	if len(freqs) == 0 || len(freqs) > 48 {
		t.Fatalf("unexpected ladder size: %d", len(freqs))
	}
	if freqs[0] != 95.0 {
		t.Fatalf("first mode = %g, want the box resonance 95", freqs[0])
	}
	for i := 1; i < len(freqs); i++ {
		if freqs[i] <= freqs[i-1] {
			t.Fatalf("ladder not strictly increasing at %d: %g <= %g", i, freqs[i], freqs[i-1])
		}
		if freqs[i] > 24000.0 {
			t.Fatalf("mode %d above limit: %g", i, freqs[i])
		}
	}

	// The discrete spectrum saturates, so spacing shrinks toward the top.
	firstGap := freqs[1] - freqs[0]
	lastGap := freqs[len(freqs)-1] - freqs[len(freqs)-2]
	if lastGap >= firstGap {
		t.Fatalf("expected compressing mode spacing: first gap %g, last gap %g", firstGap, lastGap)
	}
}

func TestAlgoPDEEigenspectrumSanity(t *testing.T) {
	const n = 64
	const h = 1.0 / 64.0

	periodic := pdefd.Eigenvalues(n, h, pdepoisson.Periodic)
	if len(periodic) != n {
		t.Fatalf("unexpected periodic eigenvalue count: %d", len(periodic))
	}
	if math.Abs(periodic[0]) > 1e-12 {
		t.Fatalf("expected periodic zero mode at index 0, got %g", periodic[0])
	}

	dirichlet := pdefd.Eigenvalues(n, h, pdepoisson.Dirichlet)
	if len(dirichlet) != n {
		t.Fatalf("unexpected dirichlet eigenvalue count: %d", len(dirichlet))
	}
	if dirichlet[0] <= 0 {
		t.Fatalf("expected strictly positive first dirichlet eigenvalue, got %g", dirichlet[0])
	}
	for i := 1; i < len(dirichlet); i++ {
		if dirichlet[i] < dirichlet[i-1] {
			t.Fatalf("expected non-decreasing dirichlet eigenspectrum at %d: %g < %g", i, dirichlet[i], dirichlet[i-1])
		}
	}
}

func TestGenerateCabinetBrightnessTiltsSpectrum(t *testing.T) {
	cfg := DefaultCabinetConfig()
	cfg.Seed = 7

	cfg.Brightness = 2.0
	bright, err := GenerateCabinet(cfg)
	if err != nil {
		t.Fatalf("GenerateCabinet bright: %v", err)
	}

	cfg.Brightness = 0.4
	dark, err := GenerateCabinet(cfg)
	if err != nil {
		t.Fatalf("GenerateCabinet dark: %v", err)
	}

	// Same seed means identical mode placement and jitter; only the
	// spectral tilt differs. Compare the high-band share of each IR.
	sr := cfg.SampleRate
	brightShare := bandEnergy(bright, sr, 2000, 3000) / bandEnergy(bright, sr, 150, 250)
	darkShare := bandEnergy(dark, sr, 2000, 3000) / bandEnergy(dark, sr, 150, 250)
	if brightShare < 2.0*darkShare {
		t.Fatalf("brightness did not tilt spectrum: bright share %g, dark share %g", brightShare, darkShare)
	}
}

func TestGenerateCabinetRejectsBadConfig(t *testing.T) {
	mutations := []struct {
		name string
		mut  func(*CabinetConfig)
	}{
		{"low sample rate", func(c *CabinetConfig) { c.SampleRate = 4000 }},
		{"zero duration", func(c *CabinetConfig) { c.DurationS = 0 }},
		{"zero modes", func(c *CabinetConfig) { c.Modes = 0 }},
		{"zero brightness", func(c *CabinetConfig) { c.Brightness = 0 }},
		{"zero resonance", func(c *CabinetConfig) { c.ResonanceHz = 0 }},
		{"zero breakup", func(c *CabinetConfig) { c.BreakupHz = 0 }},
		{"negative direct", func(c *CabinetConfig) { c.DirectLevel = -0.1 }},
		{"zero low decay", func(c *CabinetConfig) { c.LowDecayS = 0 }},
		{"negative early count", func(c *CabinetConfig) { c.EarlyCount = -1 }},
		{"negative late level", func(c *CabinetConfig) { c.LateLevel = -0.1 }},
		{"zero room decay", func(c *CabinetConfig) { c.RoomDecayS = 0 }},
		{"zero peak", func(c *CabinetConfig) { c.NormalizePeak = 0 }},
	}
	for _, m := range mutations {
		cfg := DefaultCabinetConfig()
		m.mut(&cfg)
		if _, err := GenerateCabinet(cfg); err == nil {
			t.Fatalf("%s: expected validation error", m.name)
		}
	}
}

// bandEnergy sums squared DFT magnitudes over bins covering [f0, f1] Hz.
func bandEnergy(ir []float32, sampleRate int, f0 float64, f1 float64) float64 {
	n := len(ir)
	binHz := float64(sampleRate) / float64(n)
	k0 := int(f0 / binHz)
	k1 := int(f1 / binHz)
	var total float64
	for k := k0; k <= k1; k++ {
		var re, im float64
		w := 2.0 * math.Pi * float64(k) / float64(n)
		for i := 0; i < n; i++ {
			re += float64(ir[i]) * math.Cos(w*float64(i))
			im -= float64(ir[i]) * math.Sin(w*float64(i))
		}
		total += re*re + im*im
	}
	return total
}
