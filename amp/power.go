package amp

import (
	"context"
	"fmt"
)

// Phase is the power-connection state of the amp input.
type Phase int

const (
	PhaseOff Phase = iota
	PhaseConnecting
	PhaseConnected
)

func (p Phase) String() string {
	switch p {
	case PhaseOff:
		return "off"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	}
	return "unknown"
}

// setPower drives the POWER switch. Turning on acquires the microphone
// stream on first use, blocking until the device grants or refuses, and
// connects it to the chain entry; turning off removes the stream's edge
// from the graph but keeps the handle for instant reconnect.
func (a *Amp) setPower(ctx context.Context, on bool) error {
	if on {
		return a.powerOn(ctx)
	}
	a.powerOff()
	return nil
}

func (a *Amp) powerOn(ctx context.Context) error {
	if a.phase != PhaseOff {
		// Already connected, or a request is in flight.
		return nil
	}
	if a.stream == nil {
		a.phase = PhaseConnecting
		stream, err := a.mic.Open(ctx)
		if err != nil {
			a.phase = PhaseOff
			a.emitSwitchFailure(SwitchPower)
			return fmt.Errorf("microphone: %w", err)
		}
		a.stream = stream
		a.src.SetStream(stream)
	}
	if err := a.graph.Connect(a.src.Out(), a.comp1.In()); err != nil {
		a.phase = PhaseOff
		return err
	}
	a.phase = PhaseConnected
	return nil
}

func (a *Amp) powerOff() {
	if a.phase != PhaseConnected {
		return
	}
	a.graph.Disconnect(a.src.Out(), a.comp1.In())
	a.phase = PhaseOff
}

// setSound drives the SOUND switch: true releases standby (volume stage
// live), false engages it (gain forced to zero).
func (a *Amp) setSound(on bool) {
	a.sound = on
	a.vol.SetOn(on)
}

// Phase returns the power-connection phase.
func (a *Amp) Phase() Phase { return a.phase }

// Power reports whether the input stream is connected to the chain.
func (a *Amp) Power() bool { return a.phase == PhaseConnected }

// Sound reports whether standby is released (volume stage live).
func (a *Amp) Sound() bool { return a.sound }
