// Package preset loads and saves amp settings: a flat JSON record of the
// six knob positions. Validation is all-or-nothing; a record with any
// missing or non-numeric field is rejected without touching the amp.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-amp/amp"
)

// ErrInvalidConfig reports a malformed preset record. No field of a
// rejected record is applied.
var ErrInvalidConfig = errors.New("invalid preset")

// File is the JSON schema for amp presets. Every field is required and
// must be a number.
type File struct {
	Volume     *float64 `json:"volume"`
	Distortion *float64 `json:"distortion"`
	Bass       *float64 `json:"bass"`
	Middle     *float64 `json:"middle"`
	Treble     *float64 `json:"treble"`
	Reverb     *float64 `json:"reverb"`
}

// LoadJSON loads and validates a preset file.
func LoadJSON(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse validates a raw preset record.
func Parse(b []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, field := range []struct {
		name  string
		value *float64
	}{
		{"volume", f.Volume},
		{"distortion", f.Distortion},
		{"bass", f.Bass},
		{"middle", f.Middle},
		{"treble", f.Treble},
		{"reverb", f.Reverb},
	} {
		if field.value == nil {
			return nil, fmt.Errorf("%w: missing numeric field %q", ErrInvalidConfig, field.name)
		}
	}
	return &f, nil
}

// Apply sets all six knobs on the amp. Values outside [0,1] are clamped
// by the nodes themselves.
func Apply(a *amp.Amp, f *File) {
	a.HandleKnob(amp.KnobVolume, *f.Volume)
	a.HandleKnob(amp.KnobDistortion, *f.Distortion)
	a.HandleKnob(amp.KnobBass, *f.Bass)
	a.HandleKnob(amp.KnobMiddle, *f.Middle)
	a.HandleKnob(amp.KnobTreble, *f.Treble)
	a.HandleKnob(amp.KnobReverb, *f.Reverb)
}

// Snapshot captures the amp's current knob positions as a preset record.
func Snapshot(a *amp.Amp) *File {
	knob := func(k amp.Knob) *float64 {
		v := a.KnobValue(k)
		return &v
	}
	return &File{
		Volume:     knob(amp.KnobVolume),
		Distortion: knob(amp.KnobDistortion),
		Bass:       knob(amp.KnobBass),
		Middle:     knob(amp.KnobMiddle),
		Treble:     knob(amp.KnobTreble),
		Reverb:     knob(amp.KnobReverb),
	}
}

// SaveJSON writes a preset file, creating parent directories as needed.
func SaveJSON(path string, f *File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}
