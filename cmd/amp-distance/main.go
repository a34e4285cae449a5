package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-amp/amp"
	"github.com/cwbudde/algo-amp/analysis"
	"github.com/cwbudde/algo-amp/capture"
	"github.com/cwbudde/algo-amp/internal/wavio"
	"github.com/cwbudde/algo-amp/preset"
)

func main() {
	referencePath := flag.String("reference", "", "Reference WAV path")
	candidatePath := flag.String("candidate", "", "Candidate WAV path; if empty, render candidate through the amp from -input")
	inputPath := flag.String("input", "", "Input WAV for the rendered candidate (dry guitar signal)")
	presetPath := flag.String("preset", "", "Preset JSON path for the rendered candidate")
	cabIR := flag.String("cab-ir", "", "Cabinet IR WAV path for the rendered candidate")
	sampleRate := flag.Int("sample-rate", 48000, "Analysis sample rate in Hz")
	tail := flag.Float64("tail", 0.5, "Extra seconds rendered after the input ends")
	writeCandidate := flag.String("write-candidate", "", "Optional path to write the rendered candidate WAV")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	flag.Parse()

	if *referencePath == "" {
		die("missing -reference WAV path")
	}

	ref, refSR, err := wavio.ReadWAVMono(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	ref, err = wavio.ResampleIfNeeded(ref, refSR, *sampleRate)
	if err != nil {
		die("failed to resample reference: %v", err)
	}

	var cand []float64
	switch {
	case *candidatePath != "":
		candRaw, candSR, err := wavio.ReadWAVMono(*candidatePath)
		if err != nil {
			die("failed to read candidate: %v", err)
		}
		cand, err = wavio.ResampleIfNeeded(candRaw, candSR, *sampleRate)
		if err != nil {
			die("failed to resample candidate: %v", err)
		}
	case *inputPath != "":
		raw, mono, err := renderCandidate(*inputPath, *presetPath, *cabIR, *sampleRate, *tail)
		if err != nil {
			die("failed to render candidate: %v", err)
		}
		cand = mono
		if *writeCandidate != "" {
			if err := wavio.WriteMonoWAV(*writeCandidate, raw, *sampleRate); err != nil {
				die("failed to write candidate wav: %v", err)
			}
		}
	default:
		die("need -candidate or -input")
	}

	metrics := analysis.Compare(ref, cand, *sampleRate)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Reference frames: %d\n", metrics.ReferenceFrames)
	fmt.Printf("Candidate frames: %d\n", metrics.CandidateFrames)
	fmt.Printf("Aligned frames:   %d\n", metrics.AlignedFrames)
	fmt.Printf("Lag:              %d samples (%.3f ms)\n", metrics.LagSamples, 1000.0*float64(metrics.LagSamples)/float64(metrics.SampleRate))
	fmt.Println()
	fmt.Printf("Component        Raw          Norm   Weight  Contribution\n")
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	printComp := func(name string, raw string, norm, weight float64, dominant bool) {
		contrib := norm * weight
		marker := ""
		if dominant {
			marker = " ◄"
		}
		fmt.Printf("%-16s %-12s %5.1f%%  ×%.2f   → %.4f%s\n", name, raw, norm*100, weight, contrib, marker)
	}
	printComp("Time RMSE", fmt.Sprintf("%.6f", metrics.TimeRMSE), metrics.TimeNorm, analysis.WeightTime, metrics.Dominant == "time")
	printComp("Envelope RMSE", fmt.Sprintf("%.1f dB", metrics.EnvelopeRMSEDB), metrics.EnvelopeNorm, analysis.WeightEnvelope, metrics.Dominant == "envelope")
	printComp("Spectral dist", fmt.Sprintf("%.1f dB", metrics.LogSpectralDistDB), metrics.SpectralNorm, analysis.WeightSpectral, metrics.Dominant == "spectral")
	printComp("Centroid diff", fmt.Sprintf("%.0f Hz", metrics.CentroidDiffHz), metrics.CentroidNorm, analysis.WeightCentroid, metrics.Dominant == "centroid")
	printComp("Crest diff", fmt.Sprintf("%.1f dB", metrics.CrestDiffDB), metrics.CrestNorm, analysis.WeightCrest, metrics.Dominant == "crest")
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", metrics.Score)
	fmt.Printf("Similarity:       %.2f%%\n", metrics.Similarity*100.0)
	fmt.Printf("Dominant factor:  %s\n", metrics.Dominant)
}

func renderCandidate(inputPath string, presetPath string, cabIR string, sampleRate int, tailS float64) ([]float32, []float64, error) {
	mic := capture.NewWAVFile(inputPath, sampleRate)
	a, err := amp.New(sampleRate, mic)
	if err != nil {
		return nil, nil, err
	}
	if presetPath != "" {
		p, err := preset.LoadJSON(presetPath)
		if err != nil {
			return nil, nil, err
		}
		preset.Apply(a, p)
	}
	if cabIR != "" {
		if err := a.LoadCabinetIR(cabIR); err != nil {
			return nil, nil, err
		}
	}

	ctx := context.Background()
	if err := a.HandleSwitch(ctx, amp.SwitchPower, true); err != nil {
		return nil, nil, err
	}
	if err := a.HandleSwitch(ctx, amp.SwitchSound, true); err != nil {
		return nil, nil, err
	}

	if tailS < 0 {
		tailS = 0
	}
	totalFrames := mic.Frames() + int(tailS*float64(sampleRate))
	if totalFrames < 1 {
		return nil, nil, fmt.Errorf("input %s has no frames", inputPath)
	}

	blockSize := a.BlockSize()
	block := make([]float64, blockSize)
	mono := make([]float64, 0, totalFrames)
	raw := make([]float32, 0, totalFrames)
	for rendered := 0; rendered < totalFrames; {
		n := blockSize
		if rendered+n > totalFrames {
			n = totalFrames - rendered
		}
		chunk := block[:n]
		a.RenderBlock(chunk)
		for _, v := range chunk {
			mono = append(mono, v)
			raw = append(raw, float32(v))
		}
		rendered += n
	}
	return raw, mono, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
