package amp

import "github.com/cwbudde/algo-dsp/dsp/effects/dynamics"

// Compressor is a fixed dynamics stage with engine-default parameters,
// inserted at both ends of the serial chain as noise suppression. It has
// no knob; SetValue is a no-op kept for the shared node contract.
type Compressor struct {
	comp *dynamics.Compressor
	port *Port
}

func NewCompressor(sampleRate float64) (*Compressor, error) {
	comp, err := dynamics.NewCompressor(sampleRate)
	if err != nil {
		return nil, err
	}
	c := &Compressor{comp: comp}
	c.port = &Port{owner: c}
	return c, nil
}

func (c *Compressor) SetValue(float64) {}
func (c *Compressor) Value() float64   { return 0 }

func (c *Compressor) In() *Port  { return c.port }
func (c *Compressor) Out() *Port { return c.port }

func (c *Compressor) processBlock(in, out []float64) {
	copy(out, in)
	c.comp.ProcessInPlace(out)
}

func (c *Compressor) reset() { c.comp.Reset() }
