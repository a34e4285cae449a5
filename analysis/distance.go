// Package analysis measures how closely a processed signal matches a
// reference recording. Compare blends waveform, envelope, and spectral
// distances into a single score an optimizer can minimize.
package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

// Metrics contains distance and similarity measurements between two audio signals.
type Metrics struct {
	SampleRate int `json:"sample_rate"`

	ReferenceFrames int `json:"reference_frames"`
	CandidateFrames int `json:"candidate_frames"`
	AlignedFrames   int `json:"aligned_frames"`
	LagSamples      int `json:"lag_samples"`

	TimeRMSE          float64 `json:"time_rmse"`
	EnvelopeRMSEDB    float64 `json:"envelope_rmse_db"`
	LogSpectralDistDB float64 `json:"log_spectral_dist_db"`
	CentroidDiffHz    float64 `json:"centroid_diff_hz"`
	CrestDiffDB       float64 `json:"crest_diff_db"`

	// Normalized sub-metrics in [0,1] and the component contributing the
	// most to the score.
	TimeNorm     float64 `json:"time_norm"`
	EnvelopeNorm float64 `json:"envelope_norm"`
	SpectralNorm float64 `json:"spectral_norm"`
	CentroidNorm float64 `json:"centroid_norm"`
	CrestNorm    float64 `json:"crest_norm"`
	Dominant     string  `json:"dominant"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// Score weights per normalized component.
const (
	WeightTime     = 0.25
	WeightEnvelope = 0.20
	WeightSpectral = 0.35
	WeightCentroid = 0.10
	WeightCrest    = 0.10
)

const (
	stftSize = 2048
	stftHop  = 1024
)

// Compare returns objective distance metrics and a combined score in [0,1],
// 0 meaning indistinguishable. Signals are silence-trimmed, loudness
// normalized, and lag-aligned before measuring, so playback level and
// chain latency do not dominate the result.
func Compare(reference []float64, candidate []float64, sampleRate int) Metrics {
	m := Metrics{
		SampleRate:      sampleRate,
		ReferenceFrames: len(reference),
		CandidateFrames: len(candidate),
	}
	if sampleRate <= 0 || len(reference) == 0 || len(candidate) == 0 {
		m.Score = 1.0
		m.Similarity = 0.0
		return m
	}

	ref := trimLeadingSilence(reference, 1e-6)
	cand := trimLeadingSilence(candidate, 1e-6)
	if len(ref) == 0 || len(cand) == 0 {
		m.Score = 1.0
		m.Similarity = 0.0
		return m
	}

	ref = normalizeRMS(ref, 0.1)
	cand = normalizeRMS(cand, 0.1)

	// Chain latency is at most a convolver partition plus a block, far
	// below an eighth of a second.
	maxLag := sampleRate / 8
	if maxLag > len(ref)-1 {
		maxLag = len(ref) - 1
	}
	if maxLag > len(cand)-1 {
		maxLag = len(cand) - 1
	}
	if maxLag < 1 {
		maxLag = 1
	}
	lag := estimateLag(ref, cand, maxLag)
	m.LagSamples = lag

	refA, candA := alignByLag(ref, cand, lag)
	n := len(refA)
	if len(candA) < n {
		n = len(candA)
	}
	if n < 256 {
		m.Score = 1.0
		m.Similarity = 0.0
		return m
	}
	maxFrames := sampleRate * 10
	if maxFrames > 0 && n > maxFrames {
		n = maxFrames
	}
	refA = refA[:n]
	candA = candA[:n]
	m.AlignedFrames = n

	m.TimeRMSE = rmse(refA, candA)

	refEnv := rmsEnvelope(refA, 256, 128)
	candEnv := rmsEnvelope(candA, 256, 128)
	envN := len(refEnv)
	if len(candEnv) < envN {
		envN = len(candEnv)
	}
	if envN > 0 {
		var sum float64
		for i := 0; i < envN; i++ {
			d := linToDB(refEnv[i]) - linToDB(candEnv[i])
			sum += d * d
		}
		m.EnvelopeRMSEDB = math.Sqrt(sum / float64(envN))
	}

	m.LogSpectralDistDB, m.CentroidDiffHz = stftDistance(refA, candA, sampleRate)
	m.CrestDiffDB = math.Abs(crestDB(refA) - crestDB(candA))

	// The spectral term carries the most weight: tone-stack and drive
	// changes live there.
	m.TimeNorm = clamp01(m.TimeRMSE / 0.25)
	m.EnvelopeNorm = clamp01(m.EnvelopeRMSEDB / 30.0)
	m.SpectralNorm = clamp01(m.LogSpectralDistDB / 30.0)
	m.CentroidNorm = clamp01(m.CentroidDiffHz / 2000.0)
	m.CrestNorm = clamp01(m.CrestDiffDB / 20.0)
	m.Score = clamp01(WeightTime*m.TimeNorm +
		WeightEnvelope*m.EnvelopeNorm +
		WeightSpectral*m.SpectralNorm +
		WeightCentroid*m.CentroidNorm +
		WeightCrest*m.CrestNorm)
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))
	m.Dominant = dominantComponent(m)

	return m
}

func dominantComponent(m Metrics) string {
	best := "time"
	bestC := WeightTime * m.TimeNorm
	if c := WeightEnvelope * m.EnvelopeNorm; c > bestC {
		best, bestC = "envelope", c
	}
	if c := WeightSpectral * m.SpectralNorm; c > bestC {
		best, bestC = "spectral", c
	}
	if c := WeightCentroid * m.CentroidNorm; c > bestC {
		best, bestC = "centroid", c
	}
	if c := WeightCrest * m.CrestNorm; c > bestC {
		best, bestC = "crest", c
	}
	return best
}

// stftDistance averages the per-frame log-spectral distance in dB and the
// spectral centroid gap in Hz over hopped Hann-windowed frames. Each call
// builds its own FFT plan so concurrent Compare calls stay independent.
func stftDistance(a []float64, b []float64, sampleRate int) (float64, float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < stftSize {
		return 0, 0
	}
	plan, err := algofft.NewPlanReal64(stftSize)
	if err != nil {
		return 0, 0
	}

	hann := make([]float64, stftSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(stftSize-1))
	}

	specA := make([]complex128, stftSize/2+1)
	specB := make([]complex128, stftSize/2+1)
	bufA := make([]float64, stftSize)
	bufB := make([]float64, stftSize)
	bins := stftSize / 2
	binHz := float64(sampleRate) / float64(stftSize)

	var lsdSum, centA, centB float64
	frames := 0
	for pos := 0; pos+stftSize <= n; pos += stftHop {
		for i := 0; i < stftSize; i++ {
			bufA[i] = a[pos+i] * hann[i]
			bufB[i] = b[pos+i] * hann[i]
		}
		plan.Forward(specA, bufA)
		plan.Forward(specB, bufB)

		var frameSum float64
		var wA, sA, wB, sB float64
		for k := 1; k < bins; k++ {
			ma := cmplx.Abs(specA[k])
			mb := cmplx.Abs(specB[k])
			d := linToDB(ma) - linToDB(mb)
			frameSum += d * d
			freq := float64(k) * binHz
			wA += freq * ma
			sA += ma
			wB += freq * mb
			sB += mb
		}
		lsdSum += math.Sqrt(frameSum / float64(bins-1))
		if sA > 0 && sB > 0 {
			centA += wA / sA
			centB += wB / sB
		}
		frames++
	}
	if frames == 0 {
		return 0, 0
	}
	return lsdSum / float64(frames), math.Abs(centA-centB) / float64(frames)
}

// crestDB is the peak-to-RMS ratio in dB. Heavy compression or clipping
// pushes it down, so the gap between two signals tracks how differently
// their dynamics were squashed.
func crestDB(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var peak float64
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	r := rms1(x)
	if r <= 1e-12 || peak <= 1e-12 {
		return 0
	}
	return 20.0 * math.Log10(peak/r)
}

func trimLeadingSilence(x []float64, threshold float64) []float64 {
	for i := 0; i < len(x); i++ {
		if math.Abs(x[i]) > threshold {
			return x[i:]
		}
	}
	return nil
}

func normalizeRMS(x []float64, target float64) []float64 {
	if len(x) == 0 {
		return x
	}
	r := rms1(x)
	if r <= 1e-12 {
		return append([]float64(nil), x...)
	}
	g := target / r
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] * g
	}
	return out
}

func estimateLag(ref []float64, cand []float64, maxLag int) int {
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	step := 2
	if len(ref) > 200000 || len(cand) > 200000 {
		step = 4
	}
	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		s := dotAtLag(ref, cand, lag, step)
		if s > best {
			best = s
			bestLag = lag
		}
	}
	return bestLag
}

func dotAtLag(a []float64, b []float64, lag int, step int) float64 {
	var ai, bi int
	if lag >= 0 {
		ai = lag
	} else {
		bi = -lag
	}
	n := len(a) - ai
	if len(b)-bi < n {
		n = len(b) - bi
	}
	if n <= 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i += step {
		sum += a[ai+i] * b[bi+i]
	}
	return sum
}

func alignByLag(ref []float64, cand []float64, lag int) ([]float64, []float64) {
	if lag >= 0 {
		if lag >= len(ref) {
			return nil, nil
		}
		return ref[lag:], cand
	}
	o := -lag
	if o >= len(cand) {
		return nil, nil
	}
	return ref, cand[o:]
}

func rmse(a []float64, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(n))
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
