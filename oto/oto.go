package oto

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/lumix"
)

const (
	bytesPerFrame  = 8 // stereo float32
	defaultLatency = 50 * time.Millisecond
)

type (
	// Context is a lumix.AudioContext on the default output device. The
	// device allows only one context per process.
	Context struct {
		ctx        *oto.Context
		sampleRate int
		latency    time.Duration
	}

	// playback pulls a lumix.AudioSource for the oto player. Read runs on the
	// goroutine of the device.
	playback struct {
		source  lumix.AudioSource
		buf     lumix.AudioBuffer
		pending []byte
		player  *oto.Player

		mu     sync.Mutex
		err    error
		done   chan struct{}
		closed bool
	}
)

var errClosed = errors.New("playback closed")

// NewContext opens the default output device. latency is the size of the
// device buffer; zero picks a default.
func NewContext(sampleRate int, latency time.Duration) (*Context, error) {
	if latency <= 0 {
		latency = defaultLatency
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   latency,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx, sampleRate: sampleRate, latency: latency}, nil
}

func (c *Context) SampleRate() int { return c.sampleRate }

// Play starts pulling audio from r until the returned CloserWaiter is closed
// or r returns an error.
func (c *Context) Play(r lumix.AudioSource) lumix.CloserWaiter {
	p := &playback{source: r, done: make(chan struct{})}
	p.player = c.ctx.NewPlayer(p)
	p.player.SetBufferSize(int(c.latency.Seconds()*float64(c.sampleRate)) * bytesPerFrame)
	p.player.Play()
	return p
}

// Suspend pauses the output device, e.g. when nothing is playing.
func (c *Context) Suspend() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (c *Context) Resume() error {
	if err := c.ctx.Resume(); err != nil {
		return fmt.Errorf("cannot resume oto context: %w", err)
	}
	return nil
}

func (p *playback) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		frames := max(len(b)/bytesPerFrame, 1)
		p.buf = p.buf.Resize(frames)
		if err := p.source(p.buf); err != nil {
			p.finish(err)
			return 0, err
		}
		// reuse the capacity of the previous buffer
		p.pending = Float32LE(p.buf, p.pending[:0])
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *playback) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.err = err
	close(p.done)
}

// Close stops pulling the source.
func (p *playback) Close() error {
	p.player.Pause()
	p.finish(nil)
	return nil
}

// Wait blocks until the playback has stopped and returns the error that
// stopped it, if any.
func (p *playback) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	if errors.Is(p.err, io.EOF) {
		return nil
	}
	return p.err
}
