package amp

import (
	"github.com/cwbudde/algo-dsp/dsp/core"

	"github.com/cwbudde/algo-amp/capture"
)

// source adapts a capture stream into a graph node. With no stream bound,
// or once the stream runs dry, it produces silence; read errors are
// swallowed the same way, matching live-microphone semantics where dropouts
// mute rather than fail.
type source struct {
	stream capture.Stream
	in32   []float32
	port   *Port
}

func newSource(blockSize int) *source {
	s := &source{in32: make([]float32, blockSize)}
	s.port = &Port{owner: s}
	return s
}

func (s *source) SetStream(stream capture.Stream) { s.stream = stream }

func (s *source) SetValue(float64) {}
func (s *source) Value() float64   { return 0 }

func (s *source) In() *Port  { return s.port }
func (s *source) Out() *Port { return s.port }

func (s *source) processBlock(_, out []float64) {
	if s.stream == nil {
		core.Zero(out)
		return
	}
	buf := s.in32[:len(out)]
	n, _ := s.stream.Read(buf)
	if n < 0 {
		n = 0
	}
	toFloat64(buf[:n], out[:n])
	core.Zero(out[n:])
}

func (s *source) reset() {}
