package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-amp/internal/wavio"
	"github.com/cwbudde/algo-amp/irsynth"
)

func main() {
	cfg := irsynth.DefaultCabinetConfig()

	output := flag.String("output", "assets/ir/cab_48k.wav", "Output WAV path")
	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Output sample rate")
	flag.Float64Var(&cfg.DurationS, "duration", cfg.DurationS, "IR length in seconds")
	flag.IntVar(&cfg.Modes, "modes", cfg.Modes, "Number of damped modes")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flag.Float64Var(&cfg.Brightness, "brightness", cfg.Brightness, "Spectral brightness control (>0)")
	flag.Float64Var(&cfg.ResonanceHz, "resonance", cfg.ResonanceHz, "Box resonance frequency in Hz")
	flag.Float64Var(&cfg.BreakupHz, "breakup", cfg.BreakupHz, "Cone breakup frequency in Hz")
	flag.Float64Var(&cfg.DirectLevel, "direct", cfg.DirectLevel, "Direct impulse level")
	flag.Float64Var(&cfg.LowDecayS, "low-decay", cfg.LowDecayS, "Decay time below breakup (s)")
	flag.Float64Var(&cfg.HighDecayS, "high-decay", cfg.HighDecayS, "Decay time above breakup (s)")
	flag.IntVar(&cfg.EarlyCount, "early", cfg.EarlyCount, "Number of box edge reflections")
	flag.Float64Var(&cfg.LateLevel, "late", cfg.LateLevel, "Diffuse room-spill level")
	flag.Float64Var(&cfg.RoomDecayS, "room-decay", cfg.RoomDecayS, "Room-spill decay time (s)")
	flag.Float64Var(&cfg.FadeOutS, "fade", cfg.FadeOutS, "Cosine fade-out length (s)")
	flag.Float64Var(&cfg.NormalizePeak, "normalize", cfg.NormalizePeak, "Peak normalization target")
	flag.Parse()

	ir, err := irsynth.GenerateCabinet(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cab-ir error: %v\n", err)
		os.Exit(1)
	}

	if err := wavio.WriteMonoWAV(*output, ir, cfg.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "wav write error: %v\n", err)
		os.Exit(1)
	}

	peak, rms := stats(ir)
	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("SampleRate: %d Hz, Duration: %.3f s, Samples: %d\n", cfg.SampleRate, cfg.DurationS, len(ir))
	fmt.Printf("Peak: %.6f, RMS: %.6f\n", peak, rms)
}

func stats(ir []float32) (peak float64, rms float64) {
	if len(ir) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range ir {
		v := float64(s)
		if a := math.Abs(v); a > peak {
			peak = a
		}
		sum += v * v
	}
	return peak, math.Sqrt(sum / float64(len(ir)))
}
