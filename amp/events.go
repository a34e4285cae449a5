package amp

import "strings"

// Switch identifies a front-panel toggle.
type Switch int

const (
	SwitchPower Switch = iota
	SwitchSound
)

var switchNames = [...]string{"POWER", "SOUND"}

func (s Switch) String() string {
	if s < 0 || int(s) >= len(switchNames) {
		return "UNKNOWN"
	}
	return switchNames[s]
}

// ParseSwitch maps a panel name (case-insensitive) to its switch.
func ParseSwitch(name string) (Switch, bool) {
	for i, n := range switchNames {
		if strings.EqualFold(name, n) {
			return Switch(i), true
		}
	}
	return 0, false
}

// Knob identifies a front-panel rotary control.
type Knob int

const (
	KnobVolume Knob = iota
	KnobDistortion
	KnobBass
	KnobMiddle
	KnobTreble
	KnobReverb
)

var knobNames = [...]string{"VOLUME", "DISTORTION", "BASS", "MIDDLE", "TREBLE", "REVERB"}

func (k Knob) String() string {
	if k < 0 || int(k) >= len(knobNames) {
		return "UNKNOWN"
	}
	return knobNames[k]
}

// ParseKnob maps a panel name (case-insensitive) to its knob.
func ParseKnob(name string) (Knob, bool) {
	for i, n := range knobNames {
		if strings.EqualFold(name, n) {
			return Knob(i), true
		}
	}
	return 0, false
}

// Knobs lists every knob in panel order.
func Knobs() []Knob {
	return []Knob{KnobVolume, KnobDistortion, KnobBass, KnobMiddle, KnobTreble, KnobReverb}
}

// OnSwitchFailure registers a listener for switch failures. The only
// failure emitted today is SwitchPower when microphone permission is
// denied; listeners typically revert the visible switch position.
// Listeners run synchronously on the goroutine driving the amp.
func (a *Amp) OnSwitchFailure(fn func(Switch)) {
	a.onFailure = append(a.onFailure, fn)
}

func (a *Amp) emitSwitchFailure(s Switch) {
	for _, fn := range a.onFailure {
		fn(s)
	}
}
