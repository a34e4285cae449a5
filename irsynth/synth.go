// Package irsynth generates synthetic speaker-cabinet impulse responses.
// A generated IR loads straight into the chain's cabinet stage; the cab-ir
// tool writes it to WAV and the fitting tool searches its parameter space.
package irsynth

import (
	"fmt"
	"math"
	"math/rand"

	pdefd "github.com/cwbudde/algo-pde/fd"
	pdepoisson "github.com/cwbudde/algo-pde/poisson"
)

// CabinetConfig controls synthetic cabinet IR generation.
//
// The IR models a close-mic'd guitar cabinet in three layers: the direct
// cone response, a ladder of box and cone resonances with frequency
// dependent decay, and a short ambience tail for box edge reflections and
// room spill. BreakupHz marks where cone motion stops being pistonic;
// decay shortens above it.
type CabinetConfig struct {
	SampleRate int
	DurationS  float64 // Typically 0.02-0.15s
	Modes      int     // Max resonant modes to include (typically 16-96)
	Seed       int64

	Brightness  float64 // Spectral tilt: >1 keeps more energy above the breakup region
	ResonanceHz float64 // Box resonance, bottom of the mode ladder
	BreakupHz   float64 // Cone breakup frequency, decay shortens above it
	DirectLevel float64
	LowDecayS   float64 // Decay time for modes below BreakupHz
	HighDecayS  float64 // Decay time for modes above BreakupHz

	EarlyCount int     // Box edge reflections in the first milliseconds
	LateLevel  float64 // Diffuse room spill level; 0 = dry close mic
	RoomDecayS float64

	FadeOutS      float64 // Cosine fade-out at the end; 0 = no fade
	NormalizePeak float64
}

// DefaultCabinetConfig returns a 4x12-style closed-back cabinet.
func DefaultCabinetConfig() CabinetConfig {
	return CabinetConfig{
		SampleRate:    48000,
		DurationS:     0.08,
		Modes:         48,
		Seed:          1,
		Brightness:    1.0,
		ResonanceHz:   95.0,
		BreakupHz:     3200.0,
		DirectLevel:   0.5,
		LowDecayS:     0.045,
		HighDecayS:    0.008,
		EarlyCount:    8,
		LateLevel:     0.02,
		RoomDecayS:    0.12,
		FadeOutS:      0.004,
		NormalizePeak: 0.9,
	}
}

func (c *CabinetConfig) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.Modes < 1 {
		return fmt.Errorf("modes must be >= 1")
	}
	if c.Brightness <= 0 {
		return fmt.Errorf("brightness must be > 0")
	}
	if c.ResonanceHz <= 0 {
		return fmt.Errorf("resonance Hz must be > 0")
	}
	if c.BreakupHz <= 0 {
		return fmt.Errorf("breakup Hz must be > 0")
	}
	if c.DirectLevel < 0 {
		return fmt.Errorf("direct level must be >= 0")
	}
	if c.LowDecayS <= 0 || c.HighDecayS <= 0 {
		return fmt.Errorf("decay seconds must be > 0")
	}
	if c.EarlyCount < 0 {
		return fmt.Errorf("early count must be >= 0")
	}
	if c.LateLevel < 0 {
		return fmt.Errorf("late level must be >= 0")
	}
	if c.RoomDecayS <= 0 {
		return fmt.Errorf("room decay must be > 0")
	}
	if c.NormalizePeak <= 0 {
		return fmt.Errorf("normalize peak must be > 0")
	}
	return nil
}

// GenerateCabinet synthesizes a mono cabinet IR according to cfg.
func GenerateCabinet(cfg CabinetConfig) ([]float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := int(math.Round(cfg.DurationS * float64(cfg.SampleRate)))
	if n < 1 {
		n = 1
	}
	buf := make([]float64, n)

	rng := rand.New(rand.NewSource(cfg.Seed))

	// Direct cone response.
	buf[0] += cfg.DirectLevel

	maxF := 0.47 * float64(cfg.SampleRate)
	if maxF < 500.0 {
		maxF = 500.0
	}

	// Resonant modes on the eigenspectrum ladder with 2-way decay around
	// the breakup frequency.
	logBreakup := math.Log(cfg.BreakupHz)
	rolloff := 0.7 + 0.9/cfg.Brightness
	for _, f := range modeLadder(cfg.ResonanceHz, maxF, cfg.Modes) {
		amp := 0.9 / math.Pow(1.0+f/900.0, rolloff)
		amp *= 0.7 + 0.6*rng.Float64() // amplitude jitter

		// Sigmoid blend: 0 = pure LowDecayS, 1 = pure HighDecayS.
		blend := 1.0 / (1.0 + math.Exp(-3.0*(math.Log(f)-logBreakup)))
		tau := cfg.LowDecayS*(1.0-blend) + cfg.HighDecayS*blend
		decay := math.Exp(-1.0 / (tau * float64(cfg.SampleRate)))

		phi := rng.Float64() * 2.0 * math.Pi
		addModeRec(buf, amp, f, phi, decay, cfg.SampleRate)
	}

	// Box edge reflections in the first few milliseconds.
	for i := 0; i < cfg.EarlyCount; i++ {
		t := 0.0008 + 0.007*rng.Float64()
		idx := int(t * float64(cfg.SampleRate))
		if idx <= 0 || idx >= n {
			continue
		}
		buf[idx] += (0.10 + 0.35*rng.Float64()) * math.Exp(-t*250.0)
	}

	// Diffuse room spill.
	if cfg.LateLevel > 0 {
		lp := 0.0
		for i := 0; i < n; i++ {
			t := float64(i) / float64(cfg.SampleRate)
			env := math.Exp(-t / (0.75 * cfg.RoomDecayS))
			lp = 0.985*lp + 0.015*rng.NormFloat64()
			buf[i] += cfg.LateLevel * env * lp
		}
	}

	// Remove tiny DC drift.
	highpassDC(buf, 0.995)
	applyFadeOut(buf, cfg.FadeOutS, cfg.SampleRate)

	peak := maxAbs(buf)
	if peak < 1e-12 {
		peak = 1e-12
	}
	s := cfg.NormalizePeak / peak
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(buf[i] * s)
	}
	return out, nil
}

// modeLadder maps the Dirichlet Laplacian eigenspectrum onto mode
// frequencies: f_k = f1 * sqrt(lambda_k / lambda_1). The discrete spectrum
// crowds toward its upper edge, which packs resonances into the mids the
// way cone breakup does. Frequencies above maxF are dropped.
func modeLadder(f1 float64, maxF float64, modes int) []float64 {
	if modes < 1 {
		return nil
	}
	h := 1.0 / float64(modes)
	lam := pdefd.Eigenvalues(modes, h, pdepoisson.Dirichlet)
	if len(lam) == 0 || lam[0] <= 0 {
		return nil
	}
	out := make([]float64, 0, len(lam))
	for _, l := range lam {
		f := f1 * math.Sqrt(l/lam[0])
		if f > maxF {
			break
		}
		out = append(out, f)
	}
	return out
}

func addModeRec(out []float64, amp float64, freq float64, phase float64, decay float64, sampleRate int) {
	if len(out) == 0 {
		return
	}
	w := 2.0 * math.Pi * freq / float64(sampleRate)
	cw := math.Cos(w)
	x0 := math.Cos(phase)
	x1 := math.Cos(phase + w)
	env := 1.0

	out[0] += amp * env * x0
	env *= decay
	if len(out) == 1 {
		return
	}
	out[1] += amp * env * x1
	env *= decay
	for i := 2; i < len(out); i++ {
		x2 := 2.0*cw*x1 - x0
		x0 = x1
		x1 = x2
		out[i] += amp * env * x2
		env *= decay
	}
}

func highpassDC(x []float64, r float64) {
	if len(x) == 0 {
		return
	}
	prevIn := 0.0
	prevOut := 0.0
	for i := range x {
		y := x[i] - prevIn + r*prevOut
		prevIn = x[i]
		prevOut = y
		x[i] = y
	}
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		a := math.Abs(v)
		if a > m {
			m = a
		}
	}
	return m
}

// applyFadeOut applies a cosine fade-out to the last fadeS seconds of buf.
func applyFadeOut(buf []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(buf) == 0 {
		return
	}
	fadeSamples := int(math.Round(fadeS * float64(sampleRate)))
	if fadeSamples > len(buf) {
		fadeSamples = len(buf)
	}
	start := len(buf) - fadeSamples
	for i := 0; i < fadeSamples; i++ {
		t := float64(i) / float64(fadeSamples) // 0..1
		gain := 0.5 * (1.0 + math.Cos(t*math.Pi))
		buf[start+i] *= gain
	}
}
