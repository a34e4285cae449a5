package amp

import (
	"math"
	"testing"
)

func TestHighPassCutoffCurve(t *testing.T) {
	hp := NewHighPass(48000)
	if hp.Value() != 0.5 {
		t.Fatalf("expected initial knob 0.5, got %f", hp.Value())
	}
	if math.Abs(hp.Frequency()-185.75) > 1e-9 {
		t.Fatalf("expected 185.75 Hz at knob center, got %f", hp.Frequency())
	}

	hp.SetValue(0)
	if math.Abs(hp.Frequency()-650) > 1e-9 {
		t.Fatalf("expected 650 Hz at knob 0, got %f", hp.Frequency())
	}
	hp.SetValue(1)
	if math.Abs(hp.Frequency()-31) > 1e-9 {
		t.Fatalf("expected 31 Hz at knob 1, got %f", hp.Frequency())
	}
}

func TestHighPassCutoffDecreasesWithKnob(t *testing.T) {
	hp := NewHighPass(48000)
	prev := math.Inf(1)
	for v := 0.0; v <= 1.0001; v += 0.1 {
		hp.SetValue(v)
		f := hp.Frequency()
		if f < 31-1e-9 || f > 650+1e-9 {
			t.Fatalf("cutoff out of range at knob %f: %f", v, f)
		}
		if f >= prev {
			t.Fatalf("expected cutoff to fall as knob rises: knob %f gave %f after %f", v, f, prev)
		}
		prev = f
	}
}

func TestHighPassAttenuatesBelowCutoff(t *testing.T) {
	hp := NewHighPass(48000)
	hp.SetValue(0) // cutoff at 650 Hz

	low := filterGainAt(t, hp, 100, 48000)
	high := filterGainAt(t, hp, 2000, 48000)
	if low > 0.1 {
		t.Fatalf("expected strong attenuation at 100 Hz, got gain %f", low)
	}
	if high < 0.9 {
		t.Fatalf("expected 2 kHz to pass, got gain %f", high)
	}
}

func TestLowPassCutoffCurve(t *testing.T) {
	lp := NewLowPass(48000)
	if math.Abs(lp.Frequency()-817.25) > 1e-9 {
		t.Fatalf("expected 817.25 Hz at knob center, got %f", lp.Frequency())
	}

	lp.SetValue(0)
	if math.Abs(lp.Frequency()-650) > 1e-9 {
		t.Fatalf("expected 650 Hz at knob 0, got %f", lp.Frequency())
	}
	lp.SetValue(1)
	if math.Abs(lp.Frequency()-1319) > 1e-9 {
		t.Fatalf("expected 1319 Hz at knob 1, got %f", lp.Frequency())
	}
}

func TestLowPassCutoffIncreasesWithKnob(t *testing.T) {
	lp := NewLowPass(48000)
	prev := math.Inf(-1)
	for v := 0.0; v <= 1.0001; v += 0.1 {
		lp.SetValue(v)
		f := lp.Frequency()
		if f < 650-1e-9 || f > 1319+1e-9 {
			t.Fatalf("cutoff out of range at knob %f: %f", v, f)
		}
		if f <= prev {
			t.Fatalf("expected cutoff to rise with knob: knob %f gave %f after %f", v, f, prev)
		}
		prev = f
	}
}

func TestLowPassAttenuatesAboveCutoff(t *testing.T) {
	lp := NewLowPass(48000)
	lp.SetValue(1) // cutoff at 1319 Hz

	low := filterGainAt(t, lp, 300, 48000)
	high := filterGainAt(t, lp, 8000, 48000)
	if low < 0.9 {
		t.Fatalf("expected 300 Hz to pass, got gain %f", low)
	}
	if high > 0.1 {
		t.Fatalf("expected strong attenuation at 8 kHz, got gain %f", high)
	}
}

func TestBandStopCenterIsFixed(t *testing.T) {
	bs := NewBandStop(48000)
	if math.Abs(bs.Frequency()-675) > 1e-9 {
		t.Fatalf("expected notch centered at 675 Hz, got %f", bs.Frequency())
	}
	bs.SetValue(0.1)
	bs.SetValue(0.9)
	if math.Abs(bs.Frequency()-675) > 1e-9 {
		t.Fatalf("expected center unchanged by knob, got %f", bs.Frequency())
	}
}

func TestBandStopQCurve(t *testing.T) {
	bs := NewBandStop(48000)
	cases := []struct {
		knob float64
		want float64
	}{
		{0, 0.1},
		{0.5, 3.6},
		{0.95, 10.0},
		{1, 10.0},
	}
	for _, c := range cases {
		bs.SetValue(c.knob)
		if math.Abs(bs.Q()-c.want) > 1e-9 {
			t.Fatalf("knob %f: got Q %f want %f", c.knob, bs.Q(), c.want)
		}
	}
}

func TestBandStopNotchesCenterOnly(t *testing.T) {
	bs := NewBandStop(48000)
	bs.SetValue(0.95)

	center := filterGainAt(t, bs, 675, 48000)
	low := filterGainAt(t, bs, 100, 48000)
	high := filterGainAt(t, bs, 3000, 48000)
	if center > 0.2 {
		t.Fatalf("expected deep notch at 675 Hz, got gain %f", center)
	}
	if low < 0.9 {
		t.Fatalf("expected 100 Hz to pass, got gain %f", low)
	}
	if high < 0.9 {
		t.Fatalf("expected 3 kHz to pass, got gain %f", high)
	}
}

func TestHighPassSetValueKeepsFilterState(t *testing.T) {
	const sr = 48000.0
	ref := NewHighPass(sr)
	hp := NewHighPass(sr)

	in := sineBlock(200, sr, 512)
	want := make([]float64, len(in))
	ref.processBlock(in, want)

	got := make([]float64, len(in))
	hp.processBlock(in[:256], got[:256])
	hp.SetValue(hp.Value())
	hp.processBlock(in[256:], got[256:])

	for i := range want {
		if math.Abs(want[i]-got[i]) > 1e-12 {
			t.Fatalf("sample %d diverged after knob touch: got %g want %g", i, got[i], want[i])
		}
	}
}
