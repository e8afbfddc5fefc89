package lumix

import (
	"fmt"
	"io"
	"math"
	"unsafe"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type (
	// AudioBuffer is a buffer of stereo audio samples of variable length, each
	// sample represented by [2]float32. [0] is left channel, [1] is right
	AudioBuffer [][2]float32

	// Format describes the sample rate and channel count of a stream. All
	// streams inside the engine are stereo AudioBuffers, so Channels tells
	// what the stream originally was before it was upmixed.
	Format struct {
		SampleRate int
		Channels   int
	}

	// AudioSource is a function that fills the given buffer with audio. The
	// audio callback of the output device calls it repeatedly. It should
	// always fill the whole buffer.
	AudioSource func(buf AudioBuffer) error

	// AudioContext represents the low-level audio drivers. There should be at
	// most one AudioContext at a time. Play starts pulling audio from the
	// given source until the returned CloserWaiter is closed.
	AudioContext interface {
		Play(r AudioSource) CloserWaiter
		SampleRate() int
	}

	// CloserWaiter is an io.Closer that can also be waited for, until the
	// underlying goroutine has actually finished.
	CloserWaiter interface {
		Close() error
		Wait() error
	}

	// CaptureSource is an input device stream, used for recording. ReadAudio
	// blocks until some audio is available and returns the number of frames
	// read; io.EOF ends the capture.
	CaptureSource interface {
		ReadAudio(buf AudioBuffer) (n int, err error)
		Format() Format
		Close() error
	}
)

// Stereo is the format every engine stream is processed in.
func Stereo(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: 2}
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch", f.SampleRate, f.Channels)
}

// Clear zeroes the buffer.
func (b AudioBuffer) Clear() {
	clear(b)
}

// Flat returns the same memory as an interleaved []float32 of length
// 2*len(b), so that vectorized routines can operate on all the samples at once.
func (b AudioBuffer) Flat() []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice(&b[0][0], 2*len(b))
}

// Resize returns a buffer of length n, reusing the capacity of b if possible.
// The contents are not cleared.
func (b AudioBuffer) Resize(n int) AudioBuffer {
	if cap(b) >= n {
		return b[:n]
	}
	return append(b[:cap(b)], make(AudioBuffer, n-cap(b))...)
}

// Wav writes the buffer as a stereo .wav file. If pcm16 is set to true, the
// samples are written as 16-bit integers; otherwise 32-bit integers. Samples
// are clamped to [-1,1].
func (b AudioBuffer) Wav(w io.WriteSeeker, sampleRate int, pcm16 bool) error {
	bitDepth, scale := 32, float64(math.MaxInt32)
	if pcm16 {
		bitDepth, scale = 16, float64(math.MaxInt16)
	}
	enc := wav.NewEncoder(w, sampleRate, bitDepth, 2, 1)
	data := make([]int, 2*len(b))
	for i, v := range b.Flat() {
		data[i] = int(clamp(float64(v), -1, 1) * scale)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("cannot write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("cannot finalize wav file: %w", err)
	}
	return nil
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
