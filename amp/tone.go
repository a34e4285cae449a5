package amp

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// Tone-stack frequency territory: the bass knob sweeps a highpass corner
// across [31, 650] Hz, the treble knob a lowpass corner across [650, 1319]
// Hz, and the middle knob controls the width of a notch fixed at the
// midpoint of the full range.
const (
	toneMinHz   = 31.0
	toneCrossHz = 650.0
	toneMaxHz   = 1319.0

	toneQ = 1 / math.Sqrt2
)

// HighPass is the bass knob: turning it down moves the highpass corner up,
// cutting more low end. The knob position is squared to compensate for
// logarithmic pitch perception.
type HighPass struct {
	sampleRate float64
	value      float64
	freq       float64
	section    *biquad.Section
	port       *Port
}

// NewHighPass creates the bass filter, knob centered.
func NewHighPass(sampleRate float64) *HighPass {
	h := &HighPass{
		sampleRate: sampleRate,
		section:    biquad.NewSection(biquad.Coefficients{}),
	}
	h.port = &Port{owner: h}
	h.SetValue(0.5)
	return h
}

func (h *HighPass) SetValue(v float64) {
	h.value = core.Clamp(v, 0, 1)
	inv := 1 - h.value
	h.freq = mapRange(inv*inv, 0, 1, toneMinHz, toneCrossHz)
	h.section.Coefficients = design.Highpass(h.freq, toneQ, h.sampleRate)
}

func (h *HighPass) Value() float64 { return h.value }

// Frequency returns the computed corner frequency in Hz.
func (h *HighPass) Frequency() float64 { return h.freq }

func (h *HighPass) In() *Port  { return h.port }
func (h *HighPass) Out() *Port { return h.port }

func (h *HighPass) processBlock(in, out []float64) {
	h.section.ProcessBlockTo(out, in)
}

func (h *HighPass) reset() { h.section.Reset() }

// LowPass is the treble knob: turning it up moves the lowpass corner up,
// letting more top end through.
type LowPass struct {
	sampleRate float64
	value      float64
	freq       float64
	section    *biquad.Section
	port       *Port
}

// NewLowPass creates the treble filter, knob centered.
func NewLowPass(sampleRate float64) *LowPass {
	l := &LowPass{
		sampleRate: sampleRate,
		section:    biquad.NewSection(biquad.Coefficients{}),
	}
	l.port = &Port{owner: l}
	l.SetValue(0.5)
	return l
}

func (l *LowPass) SetValue(v float64) {
	l.value = core.Clamp(v, 0, 1)
	l.freq = mapRange(l.value*l.value, 0, 1, toneCrossHz, toneMaxHz)
	l.section.Coefficients = design.Lowpass(l.freq, toneQ, l.sampleRate)
}

func (l *LowPass) Value() float64 { return l.value }

// Frequency returns the computed corner frequency in Hz.
func (l *LowPass) Frequency() float64 { return l.freq }

func (l *LowPass) In() *Port  { return l.port }
func (l *LowPass) Out() *Port { return l.port }

func (l *LowPass) processBlock(in, out []float64) {
	l.section.ProcessBlockTo(out, in)
}

func (l *LowPass) reset() { l.section.Reset() }

// BandStop is the middle knob: a notch at a fixed center whose width
// narrows as the knob is turned up.
type BandStop struct {
	sampleRate float64
	value      float64
	center     float64
	q          float64
	section    *biquad.Section
	port       *Port
}

// NewBandStop creates the middle filter, knob centered. The notch center
// is fixed at construction.
func NewBandStop(sampleRate float64) *BandStop {
	b := &BandStop{
		sampleRate: sampleRate,
		center:     mapRange(0.5, 0, 1, toneMinHz, toneMaxHz),
		section:    biquad.NewSection(biquad.Coefficients{}),
	}
	b.port = &Port{owner: b}
	b.SetValue(0.5)
	return b
}

func (b *BandStop) SetValue(v float64) {
	b.value = core.Clamp(v, 0, 1)
	q := 0.1 + math.Min(0.9, b.value)
	b.q = 10 * q * q
	b.section.Coefficients = design.Notch(b.center, b.q, b.sampleRate)
}

func (b *BandStop) Value() float64 { return b.value }

// Frequency returns the fixed notch center in Hz.
func (b *BandStop) Frequency() float64 { return b.center }

// Q returns the computed notch quality factor.
func (b *BandStop) Q() float64 { return b.q }

func (b *BandStop) In() *Port  { return b.port }
func (b *BandStop) Out() *Port { return b.port }

func (b *BandStop) processBlock(in, out []float64) {
	b.section.ProcessBlockTo(out, in)
}

func (b *BandStop) reset() { b.section.Reset() }
