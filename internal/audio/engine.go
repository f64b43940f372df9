package audio

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/large-farva/cadence/internal/clock"
)

// Output opens the byte stream that rendered PCM is written to. The stream
// is closed when the engine stops or the context is cancelled.
type Output func(ctx context.Context) (io.WriteCloser, error)

// EngineOptions configures a live audio engine.
type EngineOptions struct {
	Clock  clock.Clock
	Click  ClickParams
	Frame  time.Duration // render granularity, default 10ms
	Output Output
	Logger *log.Logger
}

// Engine is the live Sink. It maps clock timestamps onto an absolute
// sample index, so a click lands on the exact sample its timestamp names
// no matter how late the render loop wakes up.
type Engine struct {
	clock        clock.Clock
	click        ClickParams
	frame        time.Duration
	frameSamples int
	lead         int64
	output       Output
	log          *log.Logger

	mu       sync.Mutex
	mixer    *Mixer
	open     bool
	closed   bool
	origin   float64
	rendered int64
	status   Status
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEngine builds an engine. Nothing is opened until Open is called.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.NewMonotonic()
	}
	if opts.Click.SampleRate <= 0 {
		opts.Click = DefaultClick()
	}
	if opts.Frame <= 0 {
		opts.Frame = 10 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	frameSamples := int(math.Round(opts.Frame.Seconds() * float64(opts.Click.SampleRate)))
	if frameSamples < 1 {
		frameSamples = 1
	}
	return &Engine{
		clock:        opts.Clock,
		click:        opts.Click,
		frame:        opts.Frame,
		frameSamples: frameSamples,
		lead:         int64(2 * frameSamples),
		output:       opts.Output,
		log:          opts.Logger,
		mixer:        NewMixer(RenderClick(opts.Click)),
		status:       Status{State: StateDisabled},
	}
}

// Open starts the output stream and the render loop. Calling Open on an
// already running engine is a no-op; calling it after an output failure
// retries.
func (e *Engine) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.open {
		return nil
	}
	if e.output == nil {
		e.status = Status{State: StateDisabled, Error: "no audio output configured"}
		return fmt.Errorf("open audio output: %s", e.status.Error)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w, err := e.output(ctx)
	if err != nil {
		cancel()
		e.status = Status{State: StateDegraded, Error: err.Error(), Late: e.status.Late}
		return fmt.Errorf("open audio output: %w", err)
	}

	e.origin = e.clock.Now()
	e.rendered = 0
	e.mixer = NewMixer(e.mixer.template)
	e.open = true
	e.cancel = cancel
	e.done = make(chan struct{})
	e.status = Status{State: StateOK, Late: e.status.Late}

	go e.run(ctx, w, e.done)
	return nil
}

// Schedule queues one click at clock time at.
func (e *Engine) Schedule(at float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !e.open {
		return ErrNotOpen
	}
	idx := int64(math.Round((at - e.origin) * float64(e.click.SampleRate)))
	if idx < e.rendered {
		e.status.Late++
		return fmt.Errorf("%w: %.1fms behind", ErrLate, float64(e.rendered-idx)*1000/float64(e.click.SampleRate))
	}
	e.mixer.Add(idx)
	return nil
}

// Status reports the current health of the output path.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Close stops the render loop and closes the output. It is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}

// run renders frames up to the clock's current position plus a small lead
// and writes them out. It exits on cancellation or the first write error.
func (e *Engine) run(ctx context.Context, w io.WriteCloser, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := w.Close(); err != nil && ctx.Err() == nil {
			e.log.Printf("[warn] audio: close output: %v", err)
		}
	}()

	t := time.NewTicker(e.frame)
	defer t.Stop()

	buf := make([]float64, e.frameSamples)
	var pcm []byte
	rate := float64(e.click.SampleRate)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		for {
			e.mu.Lock()
			target := int64(math.Ceil((e.clock.Now()-e.origin)*rate)) + e.lead
			if e.rendered >= target {
				e.mu.Unlock()
				break
			}
			clear(buf)
			e.mixer.Mix(e.rendered, buf)
			e.rendered += int64(len(buf))
			e.mu.Unlock()

			pcm = PCM16(buf, pcm)
			if _, err := w.Write(pcm); err != nil {
				e.mu.Lock()
				e.open = false
				e.status = Status{State: StateDegraded, Error: err.Error(), Late: e.status.Late}
				cancel := e.cancel
				e.cancel = nil
				e.mu.Unlock()
				if cancel != nil {
					cancel()
				}
				e.log.Printf("[error] audio: output write failed, continuing silently: %v", err)
				return
			}
		}
	}
}

// CommandOutput pipes raw PCM into an external player such as aplay.
func CommandOutput(name string, args ...string) Output {
	return func(ctx context.Context) (io.WriteCloser, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", name, err)
		}
		return &cmdOutput{ctx: ctx, stdin: stdin, cmd: cmd}, nil
	}
}

// AplayArgs returns the arguments that make aplay accept the engine's
// raw mono S16_LE stream. The ALSA buffer is held to four render frames so
// a click sounds within a few frames of its scheduled time; aplay's default
// buffer delays playback by up to half a second.
func AplayArgs(sampleRate int, frame time.Duration) []string {
	if frame <= 0 {
		frame = 10 * time.Millisecond
	}
	return []string{
		"-q", "-t", "raw", "-f", "S16_LE", "-c", "1", "-r", fmt.Sprint(sampleRate),
		"--period-time=" + fmt.Sprint(frame.Microseconds()),
		"--buffer-time=" + fmt.Sprint(4*frame.Microseconds()),
	}
}

type cmdOutput struct {
	ctx   context.Context
	stdin io.WriteCloser
	cmd   *exec.Cmd
}

func (c *cmdOutput) Write(p []byte) (int, error) {
	return c.stdin.Write(p)
}

func (c *cmdOutput) Close() error {
	_ = c.stdin.Close()
	err := c.cmd.Wait()
	if c.ctx.Err() != nil {
		return nil
	}
	return err
}

// WAVOutput records the live click stream to a WAV file in real time.
func WAVOutput(path string, sampleRate int) Output {
	return func(context.Context) (io.WriteCloser, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create wav: %w", err)
		}
		if err := WriteWAVHeader(f, uint32(sampleRate), 0); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write wav header: %w", err)
		}
		return &wavFile{f: f}, nil
	}
}

// WriterOutput wraps an io.Writer that needs no closing.
func WriterOutput(w io.Writer) Output {
	return func(context.Context) (io.WriteCloser, error) {
		return nopCloser{w}, nil
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
