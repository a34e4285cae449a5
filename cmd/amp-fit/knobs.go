package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-amp/irsynth"
	"github.com/cwbudde/algo-amp/preset"
)

type knobDef struct {
	Name  string
	Min   float64
	Max   float64
	IsInt bool
}

type candidate struct {
	Vals []float64
}

// parseOptimizeGroups parses a comma-separated string of group names.
// Valid groups: knobs, cab.
func parseOptimizeGroups(raw string) (map[string]bool, error) {
	valid := map[string]bool{"knobs": true, "cab": true}
	groups := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !valid[s] {
			return nil, fmt.Errorf("unknown optimize group %q (valid: knobs, cab)", s)
		}
		groups[s] = true
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no optimize groups specified")
	}
	return groups, nil
}

// needsCabSynthesis returns true if the cab group is in the active groups.
func needsCabSynthesis(groups map[string]bool) bool {
	return groups["cab"]
}

func initCandidate(base *preset.File, sampleRate int, groups map[string]bool) ([]knobDef, candidate) {
	cabCfg := irsynth.DefaultCabinetConfig()
	cabCfg.SampleRate = sampleRate

	defs := make([]knobDef, 0, 16)
	vals := make([]float64, 0, 16)
	addKnob := func(def knobDef, val float64) {
		for _, d := range defs {
			if d.Name == def.Name {
				return
			}
		}
		defs = append(defs, def)
		vals = append(vals, val)
	}

	// Front-panel knob group.
	if groups["knobs"] {
		addKnob(knobDef{Name: "volume", Min: 0, Max: 1}, *base.Volume)
		addKnob(knobDef{Name: "distortion", Min: 0, Max: 1}, *base.Distortion)
		addKnob(knobDef{Name: "bass", Min: 0, Max: 1}, *base.Bass)
		addKnob(knobDef{Name: "middle", Min: 0, Max: 1}, *base.Middle)
		addKnob(knobDef{Name: "treble", Min: 0, Max: 1}, *base.Treble)
		addKnob(knobDef{Name: "reverb", Min: 0, Max: 1}, *base.Reverb)
	}

	// Cabinet IR group knobs.
	if groups["cab"] {
		addKnob(knobDef{Name: "cab_modes", Min: 8, Max: 96, IsInt: true}, float64(cabCfg.Modes))
		addKnob(knobDef{Name: "cab_brightness", Min: 0.3, Max: 2.5}, cabCfg.Brightness)
		addKnob(knobDef{Name: "cab_resonance", Min: 60, Max: 160}, cabCfg.ResonanceHz)
		addKnob(knobDef{Name: "cab_breakup", Min: 1500, Max: 6000}, cabCfg.BreakupHz)
		addKnob(knobDef{Name: "cab_direct", Min: 0.1, Max: 1.2}, cabCfg.DirectLevel)
		addKnob(knobDef{Name: "cab_low_decay", Min: 0.01, Max: 0.12}, cabCfg.LowDecayS)
		addKnob(knobDef{Name: "cab_high_decay", Min: 0.002, Max: 0.03}, cabCfg.HighDecayS)
		addKnob(knobDef{Name: "cab_late", Min: 0.0, Max: 0.1}, cabCfg.LateLevel)
		addKnob(knobDef{Name: "cab_duration", Min: 0.02, Max: 0.15}, cabCfg.DurationS)
	}

	for i := range vals {
		vals[i] = clamp(vals[i], defs[i].Min, defs[i].Max)
		if defs[i].IsInt {
			vals[i] = math.Round(vals[i])
		}
	}
	return defs, candidate{Vals: vals}
}

func applyCandidate(
	base *preset.File,
	sampleRate int,
	defs []knobDef,
	c candidate,
) (irsynth.CabinetConfig, *preset.File) {
	cabCfg := irsynth.DefaultCabinetConfig()
	cabCfg.SampleRate = sampleRate
	pf := clonePresetFile(base)

	for i, def := range defs {
		v := c.Vals[i]
		switch def.Name {
		// Front-panel knobs.
		case "volume":
			pf.Volume = &v
		case "distortion":
			pf.Distortion = &v
		case "bass":
			pf.Bass = &v
		case "middle":
			pf.Middle = &v
		case "treble":
			pf.Treble = &v
		case "reverb":
			pf.Reverb = &v
		// Cabinet IR knobs.
		case "cab_modes":
			cabCfg.Modes = int(math.Round(v))
		case "cab_brightness":
			cabCfg.Brightness = v
		case "cab_resonance":
			cabCfg.ResonanceHz = v
		case "cab_breakup":
			cabCfg.BreakupHz = v
		case "cab_direct":
			cabCfg.DirectLevel = v
		case "cab_low_decay":
			cabCfg.LowDecayS = v
		case "cab_high_decay":
			cabCfg.HighDecayS = v
		case "cab_late":
			cabCfg.LateLevel = v
		case "cab_duration":
			cabCfg.DurationS = v
		}
	}

	if cabCfg.Modes < 1 {
		cabCfg.Modes = 1
	}
	return cabCfg, pf
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		v := defs[i].Min + x*(defs[i].Max-defs[i].Min)
		if defs[i].IsInt {
			v = math.Round(v)
		}
		vals[i] = v
	}
	return candidate{Vals: vals}
}
