package amp

import (
	"context"
	"errors"
	"testing"

	"github.com/cwbudde/algo-amp/capture"
)

// fakeDevice counts Open calls and can be told to refuse access.
type fakeDevice struct {
	opens int
	err   error
}

func (d *fakeDevice) Open(ctx context.Context) (capture.Stream, error) {
	d.opens++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, d.err
	}
	return &silentStream{}, nil
}

type silentStream struct{ closed bool }

func (s *silentStream) Read(dst []float32) (int, error) {
	for i := range dst {
		dst[i] = 0
	}
	return len(dst), nil
}

func (s *silentStream) Close() error {
	s.closed = true
	return nil
}

func countEdges(g *Graph, from, to *Port) int {
	count := 0
	for _, e := range g.edges {
		if e.from == from && e.to == to {
			count++
		}
	}
	return count
}

func newFakeAmp(t *testing.T, dev capture.Device) *Amp {
	t.Helper()
	a, err := New(48000, dev)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestPowerOnConnectsMicToChain(t *testing.T) {
	dev := &fakeDevice{}
	a := newFakeAmp(t, dev)

	if a.Phase() != PhaseOff {
		t.Fatalf("expected fresh amp powered off, got %v", a.Phase())
	}
	if a.graph.Connected(a.src.Out(), a.comp1.In()) {
		t.Fatalf("expected no mic edge before power on")
	}

	if err := a.HandleSwitch(context.Background(), SwitchPower, true); err != nil {
		t.Fatalf("power on: %v", err)
	}
	if a.Phase() != PhaseConnected || !a.Power() {
		t.Fatalf("expected connected phase, got %v", a.Phase())
	}
	if !a.graph.Connected(a.src.Out(), a.comp1.In()) {
		t.Fatalf("expected mic connected to the chain entry")
	}
	if dev.opens != 1 {
		t.Fatalf("expected a single device open, got %d", dev.opens)
	}
}

func TestPowerOnDeniedEmitsOneFailure(t *testing.T) {
	dev := &fakeDevice{err: capture.ErrPermissionDenied}
	a := newFakeAmp(t, dev)

	var failures []Switch
	a.OnSwitchFailure(func(s Switch) { failures = append(failures, s) })

	err := a.HandleSwitch(context.Background(), SwitchPower, true)
	if err == nil {
		t.Fatalf("expected denied power on to fail")
	}
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if a.Phase() != PhaseOff {
		t.Fatalf("expected amp back off after denial, got %v", a.Phase())
	}
	if a.graph.Connected(a.src.Out(), a.comp1.In()) {
		t.Fatalf("expected no mic edge after denial")
	}
	if len(failures) != 1 || failures[0] != SwitchPower {
		t.Fatalf("expected exactly one POWER failure event, got %v", failures)
	}

	// A later attempt may succeed: denial is recoverable.
	dev.err = nil
	if err := a.HandleSwitch(context.Background(), SwitchPower, true); err != nil {
		t.Fatalf("retry after denial: %v", err)
	}
	if !a.Power() {
		t.Fatalf("expected retry to connect")
	}
	if len(failures) != 1 {
		t.Fatalf("expected no further failure events, got %v", failures)
	}
}

func TestPowerOnTwiceIsNoOp(t *testing.T) {
	dev := &fakeDevice{}
	a := newFakeAmp(t, dev)

	ctx := context.Background()
	if err := a.HandleSwitch(ctx, SwitchPower, true); err != nil {
		t.Fatalf("power on: %v", err)
	}
	if err := a.HandleSwitch(ctx, SwitchPower, true); err != nil {
		t.Fatalf("second power on: %v", err)
	}
	if dev.opens != 1 {
		t.Fatalf("expected a single device open, got %d", dev.opens)
	}
	if got := countEdges(a.graph, a.src.Out(), a.comp1.In()); got != 1 {
		t.Fatalf("expected a single mic edge, got %d", got)
	}
}

func TestPowerOffKeepsStreamForReconnect(t *testing.T) {
	dev := &fakeDevice{}
	a := newFakeAmp(t, dev)
	ctx := context.Background()

	if err := a.HandleSwitch(ctx, SwitchPower, true); err != nil {
		t.Fatalf("power on: %v", err)
	}
	if err := a.HandleSwitch(ctx, SwitchPower, false); err != nil {
		t.Fatalf("power off: %v", err)
	}
	if a.Phase() != PhaseOff {
		t.Fatalf("expected off phase, got %v", a.Phase())
	}
	if a.graph.Connected(a.src.Out(), a.comp1.In()) {
		t.Fatalf("expected mic edge removed on power off")
	}
	if a.stream == nil {
		t.Fatalf("expected stream handle retained across power off")
	}

	if err := a.HandleSwitch(ctx, SwitchPower, true); err != nil {
		t.Fatalf("power on again: %v", err)
	}
	if dev.opens != 1 {
		t.Fatalf("expected reconnect to reuse the stream, got %d opens", dev.opens)
	}
	if !a.graph.Connected(a.src.Out(), a.comp1.In()) {
		t.Fatalf("expected mic edge restored")
	}
}

func TestPowerOffWhileOffIsNoOp(t *testing.T) {
	a := newFakeAmp(t, &fakeDevice{})
	if err := a.HandleSwitch(context.Background(), SwitchPower, false); err != nil {
		t.Fatalf("power off while off: %v", err)
	}
	if a.Phase() != PhaseOff {
		t.Fatalf("expected amp to stay off, got %v", a.Phase())
	}
}

// reentrantDevice issues a second power-on from inside Open, standing in
// for a toggle arriving while the connect request is still in flight.
type reentrantDevice struct {
	a        *Amp
	opens    int
	midPhase Phase
	midErr   error
}

func (d *reentrantDevice) Open(ctx context.Context) (capture.Stream, error) {
	d.opens++
	d.midPhase = d.a.Phase()
	d.midErr = d.a.HandleSwitch(ctx, SwitchPower, true)
	return &silentStream{}, nil
}

func TestPowerOnWhileConnectingIsNoOp(t *testing.T) {
	dev := &reentrantDevice{}
	a := newFakeAmp(t, dev)
	dev.a = a

	if err := a.HandleSwitch(context.Background(), SwitchPower, true); err != nil {
		t.Fatalf("power on: %v", err)
	}
	if dev.midPhase != PhaseConnecting {
		t.Fatalf("expected connecting phase during open, got %v", dev.midPhase)
	}
	if dev.midErr != nil {
		t.Fatalf("expected in-flight power on to be a no-op, got %v", dev.midErr)
	}
	if dev.opens != 1 {
		t.Fatalf("expected a single device open, got %d", dev.opens)
	}
	if !a.Power() {
		t.Fatalf("expected amp connected after open completed")
	}
}

func TestPowerOnHonorsContext(t *testing.T) {
	dev := &fakeDevice{}
	a := newFakeAmp(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.HandleSwitch(ctx, SwitchPower, true)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if a.Phase() != PhaseOff {
		t.Fatalf("expected amp off after canceled connect, got %v", a.Phase())
	}
}

func TestSoundSwitchTogglesStandby(t *testing.T) {
	a := newFakeAmp(t, &fakeDevice{})

	if a.Sound() {
		t.Fatalf("expected fresh amp in standby")
	}
	if err := a.HandleSwitch(context.Background(), SwitchSound, true); err != nil {
		t.Fatalf("sound on: %v", err)
	}
	if !a.Sound() || !a.vol.On() {
		t.Fatalf("expected standby released")
	}
	if err := a.HandleSwitch(context.Background(), SwitchSound, false); err != nil {
		t.Fatalf("sound off: %v", err)
	}
	if a.Sound() || a.vol.On() {
		t.Fatalf("expected standby engaged")
	}
}

func TestHandleSwitchRejectsUnknown(t *testing.T) {
	a := newFakeAmp(t, &fakeDevice{})
	if err := a.HandleSwitch(context.Background(), Switch(99), true); err == nil {
		t.Fatalf("expected unknown switch to be rejected")
	}
}
