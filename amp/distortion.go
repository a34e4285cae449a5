package amp

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

const (
	distortionCurveLen = 2048

	// maxDrive keeps the shaping factor finite: at 1.0 the curve
	// steepness diverges.
	maxDrive = 0.985
)

// Distortion is a soft-clipping waveshaper. The transfer curve is sampled
// into a fixed table that is fully recomputed whenever the knob moves;
// processing maps each input sample through the table with linear
// interpolation between adjacent entries.
type Distortion struct {
	value float64
	curve [distortionCurveLen]float64
	port  *Port
}

// NewDistortion creates the distortion stage, knob centered.
func NewDistortion() *Distortion {
	d := &Distortion{}
	d.port = &Port{owner: d}
	d.SetValue(0.5)
	return d
}

// SetValue recomputes the transfer curve. Values outside [0, maxDrive]
// are clamped to the nearest boundary before the curve is built.
func (d *Distortion) SetValue(v float64) {
	d.value = core.Clamp(v, 0, maxDrive)
	a := math.Sin(d.value * math.Pi / 2)
	k := 2 * a / (1 - a)
	for i := range d.curve {
		x := float64(i)*2/float64(distortionCurveLen-1) - 1
		d.curve[i] = (1 + k) * x / (1 + k*math.Abs(x))
	}
}

func (d *Distortion) Value() float64 { return d.value }

// Curve returns the live transfer table.
func (d *Distortion) Curve() []float64 { return d.curve[:] }

func (d *Distortion) In() *Port  { return d.port }
func (d *Distortion) Out() *Port { return d.port }

func (d *Distortion) processBlock(in, out []float64) {
	scale := float64(distortionCurveLen - 1)
	for i, x := range in {
		pos := (core.Clamp(x, -1, 1) + 1) / 2 * scale
		idx := int(pos)
		if idx >= distortionCurveLen-1 {
			out[i] = d.curve[distortionCurveLen-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = d.curve[idx] + (d.curve[idx+1]-d.curve[idx])*frac
	}
}

func (d *Distortion) reset() {}
