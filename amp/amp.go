// Package amp implements a virtual guitar-amplifier signal chain: a fixed
// graph of effect stages (compression, distortion, volume, tone stack,
// reverb), the exact knob-to-parameter transforms that voice it, and the
// power/standby switching that gates microphone input through it.
package amp

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-amp/capture"
)

// ErrUnsupportedEnvironment reports that no compatible audio backend is
// available on this system. It is fatal at startup and not recoverable.
var ErrUnsupportedEnvironment = errors.New("unsupported audio environment")

// DefaultBlockSize is the render block size used by New.
const DefaultBlockSize = 512

// Amp is the amplifier aggregate: the signal graph, its effect nodes, the
// power/standby switches and the microphone hookup. All methods must be
// driven from a single goroutine; the render path only reads parameter
// snapshots already computed by the control path.
type Amp struct {
	sampleRate int
	blockSize  int

	graph  *Graph
	comp1  *Compressor
	dist   *Distortion
	vol    *Volume
	bass   *HighPass
	middle *BandStop
	treble *LowPass
	comp2  *Compressor
	reverb *Reverb
	src    *source

	mic    capture.Device
	stream capture.Stream
	phase  Phase
	sound  bool

	cabinet *CabinetConvolver
	meter   *Meter

	onFailure []func(Switch)
}

// New creates an amp with the default block size. The capture device is
// only opened on the first power-on.
func New(sampleRate int, mic capture.Device) (*Amp, error) {
	return NewWithBlockSize(sampleRate, DefaultBlockSize, mic)
}

// NewWithBlockSize creates an amp rendering blocks of blockSize samples.
func NewWithBlockSize(sampleRate, blockSize int, mic capture.Device) (*Amp, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive: %d", blockSize)
	}
	if mic == nil {
		return nil, fmt.Errorf("nil capture device")
	}

	fs := float64(sampleRate)
	comp1, err := NewCompressor(fs)
	if err != nil {
		return nil, err
	}
	dist := NewDistortion()
	vol := NewVolume()
	bass := NewHighPass(fs)
	middle := NewBandStop(fs)
	treble := NewLowPass(fs)
	comp2, err := NewCompressor(fs)
	if err != nil {
		return nil, err
	}
	reverb, err := NewReverb(fs)
	if err != nil {
		return nil, err
	}
	src := newSource(blockSize)

	graph, err := NewGraph(blockSize)
	if err != nil {
		return nil, err
	}
	for _, n := range []Node{src, comp1, dist, vol, bass, middle, treble, comp2, reverb} {
		graph.Add(n)
	}

	// Serial chain into the destination, reverb in parallel around the
	// final compressor: comp1 → dist → vol → bass → middle → treble →
	// comp2 → dest, with comp2 → reverb → dest alongside.
	wiring := []struct{ from, to *Port }{
		{comp1.Out(), dist.In()},
		{dist.Out(), vol.In()},
		{vol.Out(), bass.In()},
		{bass.Out(), middle.In()},
		{middle.Out(), treble.In()},
		{treble.Out(), comp2.In()},
		{comp2.Out(), graph.Destination()},
		{comp2.Out(), reverb.In()},
		{reverb.Out(), graph.Destination()},
	}
	for _, w := range wiring {
		if err := graph.Connect(w.from, w.to); err != nil {
			return nil, err
		}
	}

	return &Amp{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		graph:      graph,
		comp1:      comp1,
		dist:       dist,
		vol:        vol,
		bass:       bass,
		middle:     middle,
		treble:     treble,
		comp2:      comp2,
		reverb:     reverb,
		src:        src,
		mic:        mic,
		meter:      newMeter(sampleRate),
	}, nil
}

func (a *Amp) SampleRate() int { return a.sampleRate }
func (a *Amp) BlockSize() int  { return a.blockSize }

// Input returns the chain's entry port, where the microphone stream is
// attached on power-on.
func (a *Amp) Input() *Port { return a.comp1.In() }

// Graph exposes the signal-routing runtime.
func (a *Amp) Graph() *Graph { return a.graph }

// Node accessors for the six knob stages.
func (a *Amp) Volume() *Volume         { return a.vol }
func (a *Amp) Distortion() *Distortion { return a.dist }
func (a *Amp) Bass() *HighPass         { return a.bass }
func (a *Amp) Middle() *BandStop       { return a.middle }
func (a *Amp) Treble() *LowPass        { return a.treble }
func (a *Amp) Reverb() *Reverb         { return a.reverb }

// HandleKnob routes a knob move to the matching node's SetValue.
// Unknown knobs are ignored.
func (a *Amp) HandleKnob(k Knob, v float64) {
	switch k {
	case KnobVolume:
		a.vol.SetValue(v)
	case KnobDistortion:
		a.dist.SetValue(v)
	case KnobBass:
		a.bass.SetValue(v)
	case KnobMiddle:
		a.middle.SetValue(v)
	case KnobTreble:
		a.treble.SetValue(v)
	case KnobReverb:
		a.reverb.SetValue(v)
	}
}

// KnobValue returns the raw control value of a knob, or 0 for unknown
// knobs.
func (a *Amp) KnobValue(k Knob) float64 {
	switch k {
	case KnobVolume:
		return a.vol.Value()
	case KnobDistortion:
		return a.dist.Value()
	case KnobBass:
		return a.bass.Value()
	case KnobMiddle:
		return a.middle.Value()
	case KnobTreble:
		return a.treble.Value()
	case KnobReverb:
		return a.reverb.Value()
	}
	return 0
}

// HandleSwitch routes a front-panel toggle. SwitchPower may block on the
// first power-on while the capture device decides; SwitchSound is always
// immediate.
func (a *Amp) HandleSwitch(ctx context.Context, s Switch, on bool) error {
	switch s {
	case SwitchPower:
		return a.setPower(ctx, on)
	case SwitchSound:
		a.setSound(on)
		return nil
	}
	return fmt.Errorf("unknown switch: %d", int(s))
}

// LoadCabinetIR installs a speaker-cabinet impulse response as a master
// stage after the chain. Loading replaces any previous cabinet.
func (a *Amp) LoadCabinetIR(path string) error {
	cab := NewCabinetConvolver(a.sampleRate)
	if err := cab.SetIRFromWAV(path); err != nil {
		return err
	}
	a.cabinet = cab
	return nil
}

// SetCabinet installs (or, with nil, removes) a cabinet stage.
func (a *Amp) SetCabinet(c *CabinetConvolver) { a.cabinet = c }

// Cabinet returns the installed cabinet stage, or nil.
func (a *Amp) Cabinet() *CabinetConvolver { return a.cabinet }

// Meter returns the output level meter.
func (a *Amp) Meter() *Meter { return a.meter }

// RenderBlock renders dst worth of output samples, chunking internally by
// the amp block size. The source contributes silence while powered off.
func (a *Amp) RenderBlock(dst []float64) {
	for len(dst) > 0 {
		n := len(dst)
		if n > a.blockSize {
			n = a.blockSize
		}
		block := dst[:n]
		a.graph.RenderBlock(block)
		if a.cabinet != nil {
			a.cabinet.ProcessBlock(block)
		}
		a.meter.update(block)
		dst = dst[n:]
	}
}

// Reset clears all processing state (filter memories, delay lines,
// compressor envelopes, meter) without touching knob or switch positions.
func (a *Amp) Reset() {
	a.graph.Reset()
	if a.cabinet != nil {
		a.cabinet.Reset()
	}
	a.meter.reset()
}
