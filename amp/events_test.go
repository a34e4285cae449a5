package amp

import "testing"

func TestParseSwitch(t *testing.T) {
	cases := []struct {
		name string
		want Switch
		ok   bool
	}{
		{"POWER", SwitchPower, true},
		{"power", SwitchPower, true},
		{"Sound", SwitchSound, true},
		{"GAIN", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseSwitch(c.name)
		if ok != c.ok || (ok && got != c.want) {
			t.Fatalf("ParseSwitch(%q) = %v, %v; want %v, %v", c.name, got, ok, c.want, c.ok)
		}
	}
}

func TestParseKnobCoversPanel(t *testing.T) {
	for _, k := range Knobs() {
		got, ok := ParseKnob(k.String())
		if !ok || got != k {
			t.Fatalf("ParseKnob(%q) = %v, %v; want %v", k.String(), got, ok, k)
		}
	}
	if _, ok := ParseKnob("presence"); ok {
		t.Fatalf("expected unknown knob name to be rejected")
	}
}

func TestSwitchKnobStrings(t *testing.T) {
	if SwitchPower.String() != "POWER" || SwitchSound.String() != "SOUND" {
		t.Fatalf("unexpected switch names: %s, %s", SwitchPower, SwitchSound)
	}
	if Knob(42).String() != "UNKNOWN" || Switch(42).String() != "UNKNOWN" {
		t.Fatalf("expected out-of-range values to print UNKNOWN")
	}
	if len(Knobs()) != len(knobNames) {
		t.Fatalf("expected %d knobs, got %d", len(knobNames), len(Knobs()))
	}
}
