package capture

import (
	"context"
	"fmt"
	"os"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
)

// WAVFile plays a WAV file back as a capture stream: decoded at Open,
// mixed down to mono and resampled to the device rate. With Loop set the
// stream wraps around instead of ending.
type WAVFile struct {
	Path       string
	SampleRate int
	Loop       bool

	frames int
}

// NewWAVFile creates a WAV-file device delivering samples at sampleRate.
func NewWAVFile(path string, sampleRate int) *WAVFile {
	return &WAVFile{Path: path, SampleRate: sampleRate}
}

// Frames returns the stream length in samples at the device rate. It is
// known only after the first successful Open.
func (w *WAVFile) Frames() int { return w.frames }

func (w *WAVFile) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mono, srcRate, err := decodeWAVMono(w.Path)
	if err != nil {
		return nil, err
	}
	if srcRate != w.SampleRate {
		r, err := dspresample.NewForRates(
			float64(srcRate),
			float64(w.SampleRate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return nil, err
		}
		mono = r.Process(mono)
	}

	data := make([]float32, len(mono))
	for i, v := range mono {
		data[i] = float32(v)
	}
	w.frames = len(data)
	if w.Loop {
		return &loopStream{data: data}, nil
	}
	return &bufferStream{data: data}, nil
}

type loopStream struct {
	data []float32
	pos  int
}

func (s *loopStream) Read(dst []float32) (int, error) {
	if len(s.data) == 0 {
		return 0, nil
	}
	total := 0
	for total < len(dst) {
		n := copy(dst[total:], s.data[s.pos:])
		total += n
		s.pos += n
		if s.pos >= len(s.data) {
			s.pos = 0
		}
	}
	return total, nil
}

func (s *loopStream) Close() error { return nil }

func decodeWAVMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}
	if buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("invalid wav sample-rate: %d", buf.Format.SampleRate)
	}

	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	if frames == 0 {
		return nil, 0, fmt.Errorf("empty wav data: %s", path)
	}
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}
	return out, buf.Format.SampleRate, nil
}
