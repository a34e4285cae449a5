package amp

import "github.com/cwbudde/algo-dsp/dsp/core"

// Amplification is the gain factor applied at full volume.
const Amplification = 10.0

// Volume is the master gain stage. While on, the applied gain is
// controlValue*Amplification; in standby the gain is forced to zero
// regardless of the knob.
type Volume struct {
	value float64
	on    bool
	gain  float64
	port  *Port
}

// NewVolume creates the volume stage, knob centered, in standby.
func NewVolume() *Volume {
	v := &Volume{value: 0.5}
	v.port = &Port{owner: v}
	v.update()
	return v
}

func (v *Volume) SetValue(value float64) {
	v.value = core.Clamp(value, 0, 1)
	v.update()
}

func (v *Volume) Value() float64 { return v.value }

// SetOn switches the stage between live (true) and standby (false).
func (v *Volume) SetOn(on bool) {
	v.on = on
	v.update()
}

func (v *Volume) On() bool { return v.on }

// Gain returns the physical gain currently applied to the signal.
func (v *Volume) Gain() float64 { return v.gain }

func (v *Volume) update() {
	if v.on {
		v.gain = v.value * Amplification
	} else {
		v.gain = 0
	}
}

func (v *Volume) In() *Port  { return v.port }
func (v *Volume) Out() *Port { return v.port }

func (v *Volume) processBlock(in, out []float64) {
	for i, x := range in {
		out[i] = x * v.gain
	}
}

func (v *Volume) reset() {}
