package amp

import "testing"

// Applying the same control value twice must leave a node in the same
// physical state as applying it once.
func TestSetValueTwiceMatchesOnce(t *testing.T) {
	const fs = 48000.0
	const v = 0.7

	t.Run("volume", func(t *testing.T) {
		once, twice := NewVolume(), NewVolume()
		once.SetOn(true)
		twice.SetOn(true)
		once.SetValue(v)
		twice.SetValue(v)
		twice.SetValue(v)
		if twice.Gain() != once.Gain() || twice.Value() != once.Value() {
			t.Fatalf("repeated SetValue gave gain %f value %f, want %f / %f",
				twice.Gain(), twice.Value(), once.Gain(), once.Value())
		}
	})

	t.Run("bass", func(t *testing.T) {
		once, twice := NewHighPass(fs), NewHighPass(fs)
		once.SetValue(v)
		twice.SetValue(v)
		twice.SetValue(v)
		if twice.Frequency() != once.Frequency() || twice.section.Coefficients != once.section.Coefficients {
			t.Fatal("highpass state diverged after repeated SetValue")
		}
	})

	t.Run("middle", func(t *testing.T) {
		once, twice := NewBandStop(fs), NewBandStop(fs)
		once.SetValue(v)
		twice.SetValue(v)
		twice.SetValue(v)
		if twice.Q() != once.Q() || twice.section.Coefficients != once.section.Coefficients {
			t.Fatal("bandstop state diverged after repeated SetValue")
		}
	})

	t.Run("treble", func(t *testing.T) {
		once, twice := NewLowPass(fs), NewLowPass(fs)
		once.SetValue(v)
		twice.SetValue(v)
		twice.SetValue(v)
		if twice.Frequency() != once.Frequency() || twice.section.Coefficients != once.section.Coefficients {
			t.Fatal("lowpass state diverged after repeated SetValue")
		}
	})

	t.Run("distortion", func(t *testing.T) {
		once, twice := NewDistortion(), NewDistortion()
		once.SetValue(v)
		twice.SetValue(v)
		twice.SetValue(v)
		if twice.curve != once.curve {
			t.Fatal("distortion curve diverged after repeated SetValue")
		}
	})

	t.Run("reverb", func(t *testing.T) {
		once, err := NewReverb(fs)
		if err != nil {
			t.Fatalf("NewReverb: %v", err)
		}
		twice, err := NewReverb(fs)
		if err != nil {
			t.Fatalf("NewReverb: %v", err)
		}
		once.SetValue(v)
		twice.SetValue(v)
		twice.SetValue(v)
		if twice.Value() != once.Value() {
			t.Fatalf("repeated SetValue gave wet gain %f, want %f", twice.Value(), once.Value())
		}
	})
}

func TestPortOwnerIdentity(t *testing.T) {
	d := NewDistortion()
	if d.In() != d.Out() {
		t.Fatal("single-stage node must share one port for in and out")
	}
	if d.In().Owner() != Node(d) {
		t.Fatal("port does not report its owning node")
	}

	r, err := NewReverb(48000)
	if err != nil {
		t.Fatalf("NewReverb: %v", err)
	}
	if r.In() == r.Out() {
		t.Fatal("composite node must expose distinct in and out ports")
	}
}
