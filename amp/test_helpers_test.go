package amp

import (
	"math"
	"os"
	"testing"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"

	"github.com/cwbudde/algo-amp/capture"
)

func sineBlock(freq, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2.0 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func blockRMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func maxAbs(samples []float64) float64 {
	var max float64
	for _, s := range samples {
		if a := math.Abs(s); a > max {
			max = a
		}
	}
	return max
}

func dftBinMagnitude(samples []float64, bin int) float64 {
	n := len(samples)
	var re float64
	var im float64
	for i := 0; i < n; i++ {
		phase := -2.0 * math.Pi * float64(bin*i) / float64(n)
		re += samples[i] * math.Cos(phase)
		im += samples[i] * math.Sin(phase)
	}
	return math.Hypot(re, im)
}

// filterGainAt drives a fresh sine through the node and reports the
// steady-state output/input RMS ratio, skipping the first half so the
// filter transient has died down.
func filterGainAt(t *testing.T, n Node, freq, sampleRate float64) float64 {
	t.Helper()
	n.reset()
	total := int(sampleRate / 2)
	in := sineBlock(freq, sampleRate, total)
	out := make([]float64, total)
	n.processBlock(in, out)
	return blockRMS(out[total/2:]) / blockRMS(in[total/2:])
}

func impulseResponse(n Node, length int) []float64 {
	n.reset()
	in := make([]float64, length)
	in[0] = 1
	out := make([]float64, length)
	n.processBlock(in, out)
	return out
}

func directConvolve(x []float32, h []float32) []float32 {
	y := make([]float32, len(x)+len(h)-1)
	for i := 0; i < len(x); i++ {
		for j := 0; j < len(h); j++ {
			y[i+j] += x[i] * h[j]
		}
	}
	return y
}

func maxAbsDiff(a []float32, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	max := 0.0
	for i := 0; i < n; i++ {
		d := math.Abs(float64(a[i] - b[i]))
		if d > max {
			max = d
		}
	}
	return max
}

func newTestAmp(t *testing.T, samples []float32) *Amp {
	t.Helper()
	a, err := New(48000, capture.NewBuffer(samples))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func renderSamples(a *Amp, n int) []float64 {
	out := make([]float64, n)
	a.RenderBlock(out)
	return out
}

func writeTempWAV(t *testing.T, samples []float32, sampleRate int) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "amp-*.wav")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("wav write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("wav close: %v", err)
	}
	return f.Name()
}
