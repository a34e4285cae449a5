package amp

import (
	"fmt"
	"os"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
)

// CabinetConvolver colors the rendered output with a speaker-cabinet
// impulse response using partitioned convolution. It sits after the
// signal graph as an optional master stage.
type CabinetConvolver struct {
	sampleRate int
	partSize   int
	irLen      int

	ola *dspconv.StreamingOverlapAddT[float32, complex64]

	in32  []float32
	out32 []float32
}

// NewCabinetConvolver creates a cabinet stage with an identity response.
func NewCabinetConvolver(sampleRate int) *CabinetConvolver {
	c := &CabinetConvolver{
		sampleRate: sampleRate,
		partSize:   128,
	}
	c.SetIR([]float32{1.0})
	return c
}

// IRLen returns the length of the loaded impulse response in samples.
func (c *CabinetConvolver) IRLen() int { return c.irLen }

// SetIR installs a mono impulse response.
func (c *CabinetConvolver) SetIR(ir []float32) {
	if len(ir) == 0 {
		ir = []float32{1.0}
	}
	ola, err := dspconv.NewStreamingOverlapAdd32(ir, c.partSize)
	if err != nil {
		return
	}
	c.ola = ola
	c.irLen = len(ir)
	c.in32 = make([]float32, c.partSize)
	c.out32 = make([]float32, c.partSize)
	c.Reset()
}

// SetIRFromWAV loads a mono or stereo IR from a WAV file, mixing stereo
// down and resampling to the engine rate when needed.
func (c *CabinetConvolver) SetIRFromWAV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return fmt.Errorf("invalid wav buffer: %s", path)
	}
	srcRate := buf.Format.SampleRate
	if srcRate <= 0 {
		return fmt.Errorf("invalid wav sample-rate: %d", srcRate)
	}

	numCh := buf.Format.NumChannels
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return fmt.Errorf("empty wav data: %s", path)
	}
	ir := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < numCh; ch++ {
			sum += buf.Data[i*numCh+ch]
		}
		ir[i] = sum / float32(numCh)
	}

	ir, err = c.resampleIfNeeded(ir, srcRate)
	if err != nil {
		return err
	}
	c.SetIR(ir)
	return nil
}

// ProcessBlock convolves buf with the cabinet response in place.
func (c *CabinetConvolver) ProcessBlock(buf []float64) {
	processed := 0
	for processed < len(buf) {
		blockEnd := processed + c.partSize
		if blockEnd > len(buf) {
			blockEnd = len(buf)
		}
		blockLen := blockEnd - processed

		for i := 0; i < c.partSize; i++ {
			if i < blockLen {
				c.in32[i] = float32(buf[processed+i])
			} else {
				c.in32[i] = 0
			}
		}
		if err := c.ola.ProcessBlockTo(c.out32, c.in32); err != nil {
			// Pass through for this block.
			processed = blockEnd
			continue
		}
		for i := 0; i < blockLen; i++ {
			buf[processed+i] = float64(c.out32[i])
		}
		processed = blockEnd
	}
}

// Reset clears convolver history and overlap buffers.
func (c *CabinetConvolver) Reset() {
	if c.ola != nil {
		c.ola.Reset()
	}
}

func (c *CabinetConvolver) resampleIfNeeded(in []float32, inRate int) ([]float32, error) {
	if inRate == c.sampleRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(inRate),
		float64(c.sampleRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}

	in64 := make([]float64, len(in))
	for i, v := range in {
		in64[i] = float64(v)
	}
	out64 := r.Process(in64)
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return out, nil
}
