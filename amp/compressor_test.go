package amp

import (
	"math"
	"testing"
)

func TestNewCompressorRejectsBadSampleRate(t *testing.T) {
	if _, err := NewCompressor(0); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}

func TestCompressorIgnoresKnob(t *testing.T) {
	c, err := NewCompressor(48000)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	c.SetValue(0.9)
	if c.Value() != 0 {
		t.Fatalf("expected knobless stage, got value %f", c.Value())
	}
	if c.In() != c.Out() {
		t.Fatalf("expected a single shared port")
	}
}

func TestCompressorSquashesDynamicRange(t *testing.T) {
	level := func(amp float64) float64 {
		c, err := NewCompressor(48000)
		if err != nil {
			t.Fatalf("NewCompressor: %v", err)
		}
		n := 48000
		in := make([]float64, n)
		for i := range in {
			in[i] = amp * math.Sin(2.0*math.Pi*220.0*float64(i)/48000.0)
		}
		out := make([]float64, n)
		c.processBlock(in, out)
		return blockRMS(out[3*n/4:])
	}

	loud := level(0.9)
	quiet := level(0.05)
	if loud <= 0 || quiet <= 0 {
		t.Fatalf("expected signal through the compressor: loud %g quiet %g", loud, quiet)
	}
	inRatio := 0.9 / 0.05
	outRatio := loud / quiet
	if outRatio >= inRatio*0.75 {
		t.Fatalf("expected compressed range: in ratio %g, out ratio %g", inRatio, outRatio)
	}
}

func TestCompressorSilenceStaysSilent(t *testing.T) {
	c, err := NewCompressor(48000)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	in := make([]float64, 1024)
	out := make([]float64, 1024)
	c.processBlock(in, out)
	if got := maxAbs(out); got != 0 {
		t.Fatalf("expected silence out for silence in, got peak %g", got)
	}
}
