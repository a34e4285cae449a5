package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-amp/amp"
	"github.com/cwbudde/algo-amp/capture"
	"github.com/cwbudde/algo-amp/internal/wavio"
	"github.com/cwbudde/algo-amp/preset"
)

func main() {
	referencePath := flag.String("reference", "reference/target.wav", "Reference WAV path (the tone to match)")
	inputPath := flag.String("input", "reference/di.wav", "Dry input WAV fed through each candidate amp")
	presetPath := flag.String("preset", "", "Base preset JSON path (empty starts from the amp defaults)")
	outputIR := flag.String("output-ir", "", "Path to write best synthesized cabinet IR WAV (required when the cab group is active)")
	outputPreset := flag.String("output-preset", "assets/presets/fitted.json", "Path to write best fitted preset JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	optimize := flag.String("optimize", "knobs", "Comma-separated knob groups to optimize: knobs, cab")
	cabIRPath := flag.String("cab-ir", "", "Fixed cabinet IR WAV used while fitting (ignored when the cab group is active)")
	sampleRate := flag.Int("sample-rate", 48000, "Render/analysis sample rate")
	tail := flag.Float64("tail", 0.5, "Extra seconds rendered past the input for reverb and cabinet tails")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 120.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 10000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 20, "Print progress every N evaluations")
	checkpointEvery := flag.Int("checkpoint-every", 1, "Write checkpoint every N best-score improvements")
	optSampleRate := flag.Int("opt-sample-rate", 0, "Optimization-loop sample rate (0 uses --sample-rate)")
	renderBlockSize := flag.Int("render-block-size", 128, "Audio render block size for candidate evaluation")
	refineTopK := flag.Int("refine-top-k", 3, "After optimization, re-evaluate best N candidates at full settings")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in report")
	resume := flag.Bool("resume", true, "Resume from previous best_knobs report when available")
	resumeReport := flag.String("resume-report", "", "Optional report JSON path to resume from (default: current report path)")
	workers := flag.String("workers", "1", "Parallel optimization workers running independent Mayfly rounds (number or 'auto')")

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	flag.Parse()

	groups, err := parseOptimizeGroups(*optimize)
	if err != nil {
		die("invalid --optimize: %v", err)
	}

	if needsCabSynthesis(groups) && *outputIR == "" {
		die("--output-ir is required when the cab group is active")
	}
	if *outputPreset == "" {
		die("output-preset must not be empty")
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *tail < 0 {
		*tail = 0
	}
	if *reportEvery < 1 {
		*reportEvery = 1
	}
	if *checkpointEvery < 1 {
		*checkpointEvery = 1
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	if *topK < 1 {
		*topK = 1
	}
	if *optSampleRate <= 0 {
		*optSampleRate = *sampleRate
	}
	if *renderBlockSize < 16 {
		*renderBlockSize = 16
	}
	if *refineTopK < 1 {
		*refineTopK = 1
	}
	if *refineTopK > *topK {
		*refineTopK = *topK
	}
	parsedWorkers, err := parseWorkersFlag(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}

	basePreset, err := loadBasePreset(*presetPath, *sampleRate)
	if err != nil {
		die("failed to load preset: %v", err)
	}

	refRaw, refSR, err := wavio.ReadWAVMono(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	refOpt, err := wavio.ResampleIfNeeded(refRaw, refSR, *optSampleRate)
	if err != nil {
		die("failed to resample optimization reference: %v", err)
	}
	refFull, err := wavio.ResampleIfNeeded(refRaw, refSR, *sampleRate)
	if err != nil {
		die("failed to resample full reference: %v", err)
	}

	inRaw, inSR, err := wavio.ReadWAVMono(*inputPath)
	if err != nil {
		die("failed to read input: %v", err)
	}
	inOpt, err := wavio.ResampleIfNeeded(inRaw, inSR, *optSampleRate)
	if err != nil {
		die("failed to resample optimization input: %v", err)
	}
	inFull, err := wavio.ResampleIfNeeded(inRaw, inSR, *sampleRate)
	if err != nil {
		die("failed to resample full input: %v", err)
	}

	var baseCabOpt, baseCabFull []float32
	if *cabIRPath != "" && !needsCabSynthesis(groups) {
		irRaw, irSR, err := wavio.ReadWAVMono(*cabIRPath)
		if err != nil {
			die("failed to read cabinet IR: %v", err)
		}
		irOpt, err := wavio.ResampleIfNeeded(irRaw, irSR, *optSampleRate)
		if err != nil {
			die("failed to resample cabinet IR: %v", err)
		}
		irFull, err := wavio.ResampleIfNeeded(irRaw, irSR, *sampleRate)
		if err != nil {
			die("failed to resample cabinet IR: %v", err)
		}
		baseCabOpt = toFloat32(irOpt)
		baseCabFull = toFloat32(irFull)
	}

	defs, initCand := initCandidate(basePreset, *optSampleRate, groups)
	if *resume {
		resumePath := *resumeReport
		if resumePath == "" {
			if *reportPath != "" {
				resumePath = *reportPath
			} else {
				resumePath = *outputPreset + ".report.json"
			}
		}
		if resumed, ok, err := loadCandidateFromReport(resumePath, defs, initCand); err != nil {
			fmt.Fprintf(os.Stderr, "resume skipped (%s): %v\n", resumePath, err)
		} else if ok {
			initCand = resumed
			fmt.Printf("Resumed candidate from %s\n", resumePath)
		}
	}

	cfg := &optimizationConfig{
		reference:        refOpt,
		finalReference:   refFull,
		input:            toFloat32(inOpt),
		finalInput:       toFloat32(inFull),
		baseCabIR:        baseCabOpt,
		finalBaseCabIR:   baseCabFull,
		basePreset:       basePreset,
		defs:             defs,
		initCandidate:    initCand,
		sampleRate:       *optSampleRate,
		finalSampleRate:  *sampleRate,
		seed:             *seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		checkpointEvery:  *checkpointEvery,
		tailSeconds:      *tail,
		renderBlockSize:  *renderBlockSize,
		refineTopK:       *refineTopK,
		mayflyVariant:    *mayflyVariant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          parsedWorkers,
		topK:             *topK,
		groups:           groups,
		outputIR:         *outputIR,
		outputPreset:     *outputPreset,
		reportPath:       *reportPath,
		referencePath:    *referencePath,
		inputPath:        *inputPath,
		presetPath:       *presetPath,
	}

	result, err := runOptimization(cfg)
	if err != nil {
		die("optimization failed: %v", err)
	}

	if err := writeOutputs(
		*outputIR,
		*outputPreset,
		*reportPath,
		*referencePath,
		*inputPath,
		*presetPath,
		*sampleRate,
		*tail,
		result.elapsed,
		result.evals,
		strings.ToLower(*mayflyVariant),
		defs,
		result.best,
		result.bestMetrics,
		result.bestPreset,
		result.bestCabIR,
		result.checkpoints,
		result.top,
	); err != nil {
		die("failed to write outputs: %v", err)
	}

	fmt.Printf("Done evals=%d elapsed=%.1fs best_score=%.4f best_similarity=%.2f%% variant=%s\n", result.evals, result.elapsed, result.bestMetrics.Score, result.bestMetrics.Similarity*100.0, strings.ToLower(*mayflyVariant))
}

func parseWorkersFlag(raw string) (int, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("want a positive number or 'auto', got %q", raw)
	}
	return n, nil
}

// loadBasePreset reads the base preset, or snapshots a fresh amp so the
// search starts from the engine's own knob defaults.
func loadBasePreset(path string, sampleRate int) (*preset.File, error) {
	if path != "" {
		return preset.LoadJSON(path)
	}
	a, err := amp.New(sampleRate, capture.NewBuffer(nil))
	if err != nil {
		return nil, err
	}
	return preset.Snapshot(a), nil
}

func loadCandidateFromReport(path string, defs []knobDef, fallback candidate) (candidate, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, false, nil
		}
		return fallback, false, err
	}

	var rep struct {
		BestKnobs map[string]float64 `json:"best_knobs"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return fallback, false, err
	}
	if len(rep.BestKnobs) == 0 {
		return fallback, false, nil
	}

	vals := make([]float64, len(fallback.Vals))
	copy(vals, fallback.Vals)
	updated := false
	for i, d := range defs {
		if v, ok := rep.BestKnobs[d.Name]; ok {
			vals[i] = clamp(v, d.Min, d.Max)
			if d.IsInt {
				vals[i] = math.Round(vals[i])
			}
			updated = true
		}
	}
	if !updated {
		return fallback, false, nil
	}
	return candidate{Vals: vals}, true, nil
}
