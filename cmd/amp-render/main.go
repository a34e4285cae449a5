package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-amp/amp"
	"github.com/cwbudde/algo-amp/capture"
	"github.com/cwbudde/algo-amp/internal/wavio"
	"github.com/cwbudde/algo-amp/preset"
)

func main() {
	input := flag.String("input", "", "Input WAV path (guitar or mic signal)")
	output := flag.String("output", "output.wav", "Output WAV file path")
	sampleRate := flag.Int("sample-rate", 48000, "Engine sample rate in Hz")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	cabIR := flag.String("cab-ir", "", "Cabinet IR WAV path (optional)")
	standby := flag.Bool("standby", false, "Leave the SOUND switch off (renders silence)")
	tail := flag.Float64("tail", 0.5, "Extra seconds rendered after the input ends so the reverb rings out")
	normalize := flag.Float64("normalize", 0.0, "Peak-normalize output to this level; 0 disables")
	volume := knobFlag("volume", "VOLUME knob override")
	distortion := knobFlag("distortion", "DISTORTION knob override")
	bass := knobFlag("bass", "BASS knob override")
	middle := knobFlag("middle", "MIDDLE knob override")
	treble := knobFlag("treble", "TREBLE knob override")
	reverb := knobFlag("reverb", "REVERB knob override")
	flag.Parse()

	if *input == "" {
		die("missing -input WAV path")
	}
	if *tail < 0 {
		*tail = 0
	}

	mic := capture.NewWAVFile(*input, *sampleRate)
	a, err := amp.New(*sampleRate, mic)
	if err != nil {
		die("engine init failed: %v", err)
	}

	if *presetPath != "" {
		p, err := preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
		preset.Apply(a, p)
	}
	applyKnob(a, amp.KnobVolume, *volume)
	applyKnob(a, amp.KnobDistortion, *distortion)
	applyKnob(a, amp.KnobBass, *bass)
	applyKnob(a, amp.KnobMiddle, *middle)
	applyKnob(a, amp.KnobTreble, *treble)
	applyKnob(a, amp.KnobReverb, *reverb)

	if *cabIR != "" {
		if err := a.LoadCabinetIR(*cabIR); err != nil {
			die("failed to load cabinet IR: %v", err)
		}
	}

	a.OnSwitchFailure(func(s amp.Switch) {
		fmt.Fprintf(os.Stderr, "switch %s failed\n", s)
	})

	ctx := context.Background()
	if err := a.HandleSwitch(ctx, amp.SwitchPower, true); err != nil {
		die("power on failed: %v", err)
	}
	if !*standby {
		if err := a.HandleSwitch(ctx, amp.SwitchSound, true); err != nil {
			die("sound on failed: %v", err)
		}
	}

	totalFrames := mic.Frames() + int(*tail*float64(*sampleRate))
	if totalFrames < 1 {
		die("input %s has no frames", *input)
	}

	fmt.Printf("Rendering %d frames at %d Hz (input: %s)...\n", totalFrames, *sampleRate, *input)

	blockSize := a.BlockSize()
	block := make([]float64, blockSize)
	samples := make([]float32, 0, totalFrames)
	peak := 0.0
	for rendered := 0; rendered < totalFrames; {
		n := blockSize
		if rendered+n > totalFrames {
			n = totalFrames - rendered
		}
		chunk := block[:n]
		a.RenderBlock(chunk)
		for _, v := range chunk {
			if x := math.Abs(v); x > peak {
				peak = x
			}
			samples = append(samples, float32(v))
		}
		rendered += n
	}

	if *normalize > 0 && peak > 1e-12 {
		s := float32(*normalize / peak)
		for i := range samples {
			samples[i] *= s
		}
	} else if peak > 1.0 {
		fmt.Fprintf(os.Stderr, "warning: peak %.2f exceeds full scale, output will clip (use -normalize)\n", peak)
	}

	if err := wavio.WriteMonoWAV(*output, samples, *sampleRate); err != nil {
		die("failed to write output: %v", err)
	}

	if peak < 1e-12 {
		peak = 1e-12
	}
	fmt.Printf("Successfully wrote %s (%d frames, peak %.1f dBFS)\n", *output, totalFrames, 20.0*math.Log10(peak))
}

func knobFlag(name string, usage string) *float64 {
	return flag.Float64(name, -1, usage+" in [0,1]; negative keeps the preset/default value")
}

func applyKnob(a *amp.Amp, k amp.Knob, v float64) {
	if v >= 0 {
		a.HandleKnob(k, v)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
