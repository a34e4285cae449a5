package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-amp/analysis"
	"github.com/cwbudde/algo-amp/internal/wavio"
	"github.com/cwbudde/algo-amp/preset"
)

type runReport struct {
	ReferencePath   string             `json:"reference_path"`
	InputPath       string             `json:"input_path"`
	PresetPath      string             `json:"preset_path,omitempty"`
	OutputPreset    string             `json:"output_preset"`
	OutputIR        string             `json:"output_ir,omitempty"`
	SampleRate      int                `json:"sample_rate"`
	TailSeconds     float64            `json:"tail_seconds"`
	DurationSec     float64            `json:"elapsed_seconds"`
	Evaluations     int                `json:"evaluations"`
	MayflyVariant   string             `json:"mayfly_variant"`
	BestScore       float64            `json:"best_score"`
	BestSimilarity  float64            `json:"best_similarity"`
	BestMetrics     analysis.Metrics   `json:"best_metrics"`
	BestKnobs       map[string]float64 `json:"best_knobs"`
	CheckpointCount int                `json:"checkpoint_count"`
	TopCandidates   []topCandidate     `json:"top_candidates,omitempty"`
}

func writeOutputs(
	outputIR string,
	outputPreset string,
	reportPath string,
	referencePath string,
	inputPath string,
	presetPath string,
	sampleRate int,
	tailSeconds float64,
	elapsed float64,
	evals int,
	variant string,
	defs []knobDef,
	best candidate,
	bestM analysis.Metrics,
	bestPreset *preset.File,
	bestCabIR []float32,
	checkpoints int,
	top []topCandidate,
) error {
	if outputIR != "" && len(bestCabIR) > 0 {
		if err := wavio.WriteMonoWAV(outputIR, bestCabIR, sampleRate); err != nil {
			return err
		}
	}

	if err := preset.SaveJSON(outputPreset, bestPreset); err != nil {
		return err
	}

	knobs := make(map[string]float64, len(defs))
	for i, d := range defs {
		knobs[d.Name] = best.Vals[i]
	}

	rep := runReport{
		ReferencePath:   referencePath,
		InputPath:       inputPath,
		PresetPath:      presetPath,
		OutputPreset:    outputPreset,
		OutputIR:        outputIR,
		SampleRate:      sampleRate,
		TailSeconds:     tailSeconds,
		DurationSec:     elapsed,
		Evaluations:     evals,
		MayflyVariant:   variant,
		BestScore:       bestM.Score,
		BestSimilarity:  bestM.Similarity,
		BestMetrics:     bestM,
		BestKnobs:       knobs,
		CheckpointCount: checkpoints,
		TopCandidates:   top,
	}

	if reportPath == "" {
		reportPath = outputPreset + ".report.json"
	}
	return writeJSON(reportPath, rep)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}
