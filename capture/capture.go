// Package capture acquires microphone-style input streams for the amp.
// A Device hands out Streams of mono float32 samples at the engine rate;
// opening a device blocks until the underlying system grants or refuses
// access.
package capture

import (
	"context"
	"errors"
	"io"
)

// ErrPermissionDenied reports that the user or system refused access to
// the input device. It is recoverable: the caller may retry a later Open.
var ErrPermissionDenied = errors.New("capture permission denied")

// Device is an input source that can be opened for capture. Open blocks
// until the device is granted (returning a live stream) or refused.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream delivers mono float32 samples. Read may return fewer samples
// than requested; it returns 0, io.EOF once the source is exhausted.
type Stream interface {
	Read(dst []float32) (int, error)
	Close() error
}

// Buffer is an in-memory device for offline rendering and tests. Every
// Open starts a fresh pass over the same samples.
type Buffer struct {
	Samples []float32
}

// NewBuffer creates a buffer device over the given samples.
func NewBuffer(samples []float32) *Buffer {
	return &Buffer{Samples: samples}
}

func (b *Buffer) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &bufferStream{data: b.Samples}, nil
}

type bufferStream struct {
	data []float32
	pos  int
}

func (s *bufferStream) Read(dst []float32) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(dst, s.data[s.pos:])
	s.pos += n
	return n, nil
}

func (s *bufferStream) Close() error {
	s.pos = len(s.data)
	return nil
}
