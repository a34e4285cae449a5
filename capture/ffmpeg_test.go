package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"testing/iotest"
)

func TestDeviceOpenErrorClassification(t *testing.T) {
	cases := []struct {
		stderr     string
		wantDenied bool
	}{
		{"[alsa @ 0x55] cannot open audio device default (Permission denied)", true},
		{"ACCESS DENIED by policy", true},
		{"[alsa @ 0x55] cannot open audio device (Device or resource busy)", true},
		{"[alsa @ 0x55] No such device", false},
		{"", false},
	}
	for _, c := range cases {
		err := deviceOpenError(c.stderr, io.EOF)
		if err == nil {
			t.Fatalf("stderr %q: expected an error", c.stderr)
		}
		if got := errors.Is(err, ErrPermissionDenied); got != c.wantDenied {
			t.Fatalf("stderr %q: denied=%v want %v (err: %v)", c.stderr, got, c.wantDenied, err)
		}
	}
}

func TestDeviceOpenErrorKeepsDetail(t *testing.T) {
	err := deviceOpenError("boom: device exploded", io.EOF)
	if !strings.Contains(err.Error(), "device exploded") {
		t.Fatalf("expected stderr detail in error, got %v", err)
	}

	cause := errors.New("short read")
	err = deviceOpenError("", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause wrapped when stderr empty, got %v", err)
	}
}

func TestFFmpegStreamParsesFloat32LE(t *testing.T) {
	want := []float32{0.5, -1.0, 0.125}
	raw := make([]byte, len(want)*4)
	for i, v := range want {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	s := &ffmpegStream{
		cancel: func() {},
		stdout: io.NopCloser(bytes.NewReader(raw)),
	}

	dst := make([]float32, 2)
	if n, err := s.Read(dst); n != 2 || err != nil {
		t.Fatalf("first read: n=%d err=%v", n, err)
	}
	if dst[0] != want[0] || dst[1] != want[1] {
		t.Fatalf("unexpected samples: %v", dst[:2])
	}

	if n, err := s.Read(dst); n != 1 || err != nil {
		t.Fatalf("tail read: n=%d err=%v", n, err)
	}
	if dst[0] != want[2] {
		t.Fatalf("unexpected tail sample: %f", dst[0])
	}

	if n, err := s.Read(dst); n != 0 || err != io.EOF {
		t.Fatalf("expected EOF: n=%d err=%v", n, err)
	}
}

func TestFFmpegStreamCarriesPartialFrames(t *testing.T) {
	want := float32(0.75)
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, math.Float32bits(want))

	// Deliver the four bytes one at a time.
	s := &ffmpegStream{
		cancel: func() {},
		stdout: io.NopCloser(iotest.OneByteReader(bytes.NewReader(raw))),
	}
	dst := make([]float32, 1)
	if n, err := s.Read(dst); n != 1 || err != nil {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}
	if dst[0] != want {
		t.Fatalf("unexpected sample: %f", dst[0])
	}
}
