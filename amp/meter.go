package amp

import (
	"math"

	"github.com/cwbudde/algo-approx"
	"github.com/cwbudde/algo-dsp/dsp/core"
)

const meterReleaseSeconds = 0.3

// Meter tracks the level of rendered output: instantaneous RMS of the
// last block and a peak envelope with a ~300 ms release.
type Meter struct {
	sampleRate float64
	rms        float64
	peak       float64
}

func newMeter(sampleRate int) *Meter {
	return &Meter{sampleRate: float64(sampleRate)}
}

func (m *Meter) update(block []float64) {
	if len(block) == 0 {
		return
	}
	dt := float64(len(block)) / m.sampleRate
	m.peak *= float64(approx.FastExp(float32(-dt / meterReleaseSeconds)))

	var sum float64
	for _, x := range block {
		sum += x * x
		if ax := math.Abs(x); ax > m.peak {
			m.peak = ax
		}
	}
	m.rms = math.Sqrt(sum / float64(len(block)))
}

// RMS returns the root-mean-square level of the last rendered block.
func (m *Meter) RMS() float64 { return m.rms }

// Peak returns the current peak envelope.
func (m *Meter) Peak() float64 { return m.peak }

// RMSDB and PeakDB return the same levels in dBFS.
func (m *Meter) RMSDB() float64  { return core.LinearToDB(m.rms) }
func (m *Meter) PeakDB() float64 { return core.LinearToDB(m.peak) }

func (m *Meter) reset() {
	m.rms = 0
	m.peak = 0
}
