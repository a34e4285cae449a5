package amp

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/delay"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// Reverb voicing: tap spacing thins out towards the tail, tap gain falls
// off linearly with delay time, and four high-Q allpass stages smear the
// tap comb into a diffuse wash.
var (
	reverbTapSeconds = []float64{0, 0.116, 0.188, 0.277, 0.356, 0.422, 0.491, 0.557, 0.617, 0.800, 1.100}
	reverbAllpassHz  = []float64{225, 556, 441, 341}
)

const (
	reverbTapGainBase  = 1.2
	reverbAllpassScale = 5.0
	reverbAllpassQ     = 1000.0
)

// Reverb is a fixed multi-tap delay feeding a serial allpass diffusion
// chain, mixed in parallel with the dry path. Only the wet gain responds
// to the knob; the tap and allpass layout is part of the amp's voicing.
type Reverb struct {
	value   float64
	line    *delay.Line
	taps    []reverbTap
	diffuse []*biquad.Section
	inPort  *Port
	outPort *Port
}

type reverbTap struct {
	samples int
	gain    float64
}

// NewReverb creates the reverb for the given sample rate.
func NewReverb(sampleRate float64) (*Reverb, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("reverb sample rate must be positive and finite: %f", sampleRate)
	}

	longest := reverbTapSeconds[len(reverbTapSeconds)-1]
	line, err := delay.New(int(math.Round(longest*sampleRate)) + 2)
	if err != nil {
		return nil, err
	}

	r := &Reverb{value: 0.5, line: line}
	r.inPort = &Port{owner: r}
	r.outPort = &Port{owner: r}

	for _, t := range reverbTapSeconds {
		r.taps = append(r.taps, reverbTap{
			samples: int(math.Round(t * sampleRate)),
			gain:    reverbTapGainBase - t,
		})
	}
	for _, f := range reverbAllpassHz {
		c := design.Allpass(f*reverbAllpassScale, reverbAllpassQ, sampleRate)
		r.diffuse = append(r.diffuse, biquad.NewSection(c))
	}
	return r, nil
}

// SetValue adjusts the final wet-mix gain. The tap and allpass topology is
// not reconfigurable at runtime.
func (r *Reverb) SetValue(v float64) {
	r.value = core.Clamp(v, 0, 1)
}

func (r *Reverb) Value() float64 { return r.value }

func (r *Reverb) In() *Port  { return r.inPort }
func (r *Reverb) Out() *Port { return r.outPort }

func (r *Reverb) processBlock(in, out []float64) {
	for i, x := range in {
		r.line.Write(x)
		var wet float64
		for _, t := range r.taps {
			wet += t.gain * r.line.Read(t.samples+1)
		}
		for _, ap := range r.diffuse {
			wet = ap.ProcessSample(wet)
		}
		out[i] = core.FlushDenormals(wet * r.value)
	}
}

func (r *Reverb) reset() {
	r.line.Reset()
	for _, ap := range r.diffuse {
		ap.Reset()
	}
}
