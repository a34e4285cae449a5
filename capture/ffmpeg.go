package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

const ffmpegExecutableName = "ffmpeg"

// FFmpeg captures the system microphone by spawning ffmpeg and reading
// mono f32le samples from its stdout. Open blocks until the first samples
// arrive (the device was granted) or the process exits (refused or
// misconfigured).
type FFmpeg struct {
	SampleRate  int
	InputFormat string // e.g. "alsa", "pulse", "avfoundation"
	InputDevice string // e.g. "default", ":0"
	ExePath     string // optional override for the ffmpeg binary
}

// NewFFmpeg creates a microphone device with platform-default input
// format and device names.
func NewFFmpeg(sampleRate int) *FFmpeg {
	f := &FFmpeg{SampleRate: sampleRate}
	switch runtime.GOOS {
	case "darwin":
		f.InputFormat = "avfoundation"
		f.InputDevice = ":0"
	default:
		f.InputFormat = "alsa"
		f.InputDevice = "default"
	}
	return f
}

func (f *FFmpeg) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exe := f.ExePath
	if exe == "" {
		path, err := exec.LookPath(ffmpegExecutableName)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found: %w", err)
		}
		exe = path
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", f.InputFormat,
		"-i", f.InputDevice,
		"-f", "f32le",
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", "1",
		"pipe:1",
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, exe, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// Wait for the first chunk: data means the device was granted, an
	// immediate exit means it was refused or does not exist.
	type firstRead struct {
		data []byte
		err  error
	}
	firstCh := make(chan firstRead, 1)
	go func() {
		buf := make([]byte, 4096)
		n, err := stdout.Read(buf)
		firstCh <- firstRead{data: buf[:n], err: err}
	}()

	select {
	case <-ctx.Done():
		cancel()
		_ = cmd.Wait()
		return nil, ctx.Err()
	case first := <-firstCh:
		if first.err != nil && len(first.data) == 0 {
			cancel()
			_ = cmd.Wait()
			return nil, deviceOpenError(stderr.String(), first.err)
		}
		s := &ffmpegStream{
			cancel: cancel,
			cmd:    cmd,
			stdout: stdout,
			rem:    first.data,
		}
		return s, nil
	}
}

// deviceOpenError classifies an ffmpeg startup failure. A refused device
// maps to ErrPermissionDenied so callers can treat it as a deniable
// permission request.
func deviceOpenError(stderr string, cause error) error {
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "device or resource busy") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(stderr))
	}
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("ffmpeg capture failed: %s", msg)
	}
	return fmt.Errorf("ffmpeg capture failed: %w", cause)
}

type ffmpegStream struct {
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stdout io.ReadCloser
	rem    []byte
}

func (s *ffmpegStream) Read(dst []float32) (int, error) {
	want := len(dst) * 4
	for len(s.rem) < want {
		buf := make([]byte, want-len(s.rem))
		n, err := s.stdout.Read(buf)
		s.rem = append(s.rem, buf[:n]...)
		if err != nil {
			break
		}
	}

	frames := len(s.rem) / 4
	if frames == 0 {
		return 0, io.EOF
	}
	if frames > len(dst) {
		frames = len(dst)
	}
	for i := 0; i < frames; i++ {
		bits := binary.LittleEndian.Uint32(s.rem[i*4:])
		dst[i] = math.Float32frombits(bits)
	}
	s.rem = s.rem[frames*4:]
	return frames, nil
}

func (s *ffmpegStream) Close() error {
	s.cancel()
	_ = s.stdout.Close()
	_ = s.cmd.Wait()
	return nil
}
