package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cwbudde/algo-amp/amp"
	"github.com/cwbudde/algo-amp/capture"
	"github.com/cwbudde/algo-amp/preset"
)

func main() {
	sampleRate := flag.Int("sample-rate", 48000, "Engine sample rate in Hz")
	blockSize := flag.Int("block-size", amp.DefaultBlockSize, "Render block size in frames")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	cabIR := flag.String("cab-ir", "", "Cabinet IR WAV path (optional)")
	wavPath := flag.String("wav", "", "Loop a WAV file as the input instead of the microphone")
	standby := flag.Bool("standby", false, "Start with the SOUND switch off")
	bufferMS := flag.Int("buffer-ms", 10, "Playback buffer in milliseconds")
	flag.Parse()

	if *bufferMS < 1 {
		*bufferMS = 1
	}

	var mic capture.Device
	if *wavPath != "" {
		wf := capture.NewWAVFile(*wavPath, *sampleRate)
		wf.Loop = true
		mic = wf
	} else {
		mic = capture.NewFFmpeg(*sampleRate)
	}

	a, err := amp.NewWithBlockSize(*sampleRate, *blockSize, mic)
	if err != nil {
		die("failed to build amp: %v", err)
	}
	if *presetPath != "" {
		pf, err := preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
		preset.Apply(a, pf)
	}
	if *cabIR != "" {
		if err := a.LoadCabinetIR(*cabIR); err != nil {
			die("failed to load cabinet IR: %v", err)
		}
	}
	a.OnSwitchFailure(func(s amp.Switch) {
		fmt.Fprintf(os.Stderr, "switch %s refused\n", s)
	})

	ctx := context.Background()
	if err := a.HandleSwitch(ctx, amp.SwitchPower, true); err != nil {
		die("power on failed: %v", err)
	}
	if err := a.HandleSwitch(ctx, amp.SwitchSound, !*standby); err != nil {
		die("sound switch failed: %v", err)
	}

	out := &ampReader{amp: a, buf: make([]float64, *blockSize)}
	player, err := startPlayback(out, *sampleRate, *bufferMS)
	if err != nil {
		die("audio output unavailable: %v", err)
	}
	defer player.Close()

	fmt.Printf("Amp live at %d Hz. Commands: power|sound on|off, <knob> <0..1>, status, meter, preset <path>, quit\n", *sampleRate)
	runConsole(out)
}

// startPlayback opens the audio backend and starts pulling rendered
// samples from src. The backend owns the goroutine that calls Read.
func startPlayback(src io.Reader, sampleRate, bufferMS int) (*oto.Player, error) {
	octx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(bufferMS) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", amp.ErrUnsupportedEnvironment, err)
	}
	<-ready
	player := octx.NewPlayer(src)
	player.Play()
	return player, nil
}

// ampReader adapts the amp render loop to the pull-model byte stream the
// audio backend consumes. The backend's reader goroutine and the console
// share the amp, so every access goes through the mutex.
type ampReader struct {
	mu  sync.Mutex
	amp *amp.Amp
	buf []float64
}

func (r *ampReader) Read(p []byte) (int, error) {
	nb := len(p) / 4 * 4
	if nb == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	filled := 0
	for filled < nb {
		n := (nb - filled) / 4
		if n > len(r.buf) {
			n = len(r.buf)
		}
		block := r.buf[:n]
		r.amp.RenderBlock(block)
		for _, v := range block {
			binary.LittleEndian.PutUint32(p[filled:], math.Float32bits(float32(v)))
			filled += 4
		}
	}
	return nb, nil
}

// withAmp runs fn while holding the render lock.
func (r *ampReader) withAmp(fn func(*amp.Amp)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.amp)
}

func runConsole(r *ampReader) {
	ctx := context.Background()
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch cmd := strings.ToLower(fields[0]); cmd {
		case "quit", "exit":
			return
		case "meter":
			r.withAmp(func(a *amp.Amp) {
				m := a.Meter()
				fmt.Printf("rms=%.1f dBFS peak=%.1f dBFS\n", m.RMSDB(), m.PeakDB())
			})
		case "status":
			r.withAmp(func(a *amp.Amp) {
				fmt.Printf("phase=%s sound=%s\n", a.Phase(), onOffString(a.Sound()))
				for _, k := range amp.Knobs() {
					fmt.Printf("  %s=%.2f\n", strings.ToLower(k.String()), a.KnobValue(k))
				}
			})
		case "preset":
			if len(fields) != 2 {
				fmt.Println("usage: preset <path>")
				continue
			}
			pf, err := preset.LoadJSON(fields[1])
			if err != nil {
				fmt.Printf("preset: %v\n", err)
				continue
			}
			r.withAmp(func(a *amp.Amp) { preset.Apply(a, pf) })
			fmt.Println("preset applied")
		default:
			handleControl(ctx, r, fields)
		}
	}
}

// handleControl dispatches "<switch> on|off" and "<knob> <value>" lines.
func handleControl(ctx context.Context, r *ampReader, fields []string) {
	name := strings.ToLower(fields[0])
	if sw, ok := amp.ParseSwitch(fields[0]); ok {
		on, valid := parseOnOff(fields[1:])
		if !valid {
			fmt.Printf("usage: %s on|off\n", name)
			return
		}
		var err error
		r.withAmp(func(a *amp.Amp) { err = a.HandleSwitch(ctx, sw, on) })
		if err != nil {
			fmt.Printf("%s: %v\n", name, err)
			return
		}
		fmt.Printf("%s=%s\n", name, onOffString(on))
		return
	}
	if k, ok := amp.ParseKnob(fields[0]); ok {
		if len(fields) != 2 {
			fmt.Printf("usage: %s <0..1>\n", name)
			return
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			fmt.Printf("usage: %s <0..1>\n", name)
			return
		}
		var after float64
		r.withAmp(func(a *amp.Amp) {
			a.HandleKnob(k, v)
			after = a.KnobValue(k)
		})
		fmt.Printf("%s=%.2f\n", name, after)
		return
	}
	fmt.Printf("unknown command %q\n", fields[0])
}

func parseOnOff(args []string) (on, valid bool) {
	if len(args) != 1 {
		return false, false
	}
	switch strings.ToLower(args[0]) {
	case "on", "1", "true":
		return true, true
	case "off", "0", "false":
		return false, true
	}
	return false, false
}

func onOffString(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
