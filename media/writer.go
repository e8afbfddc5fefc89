package media

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/vsariola/lumix"
)

// WAVWriter streams stereo audio into a 16-bit .wav file. The file is not
// valid until Close has been called.
type WAVWriter struct {
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	frames int
}

func NewWAVWriter(w io.WriteSeeker, sampleRate int) *WAVWriter {
	return &WAVWriter{
		enc: wav.NewEncoder(w, sampleRate, 16, 2, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}
}

// Write appends the buffer to the file. Samples are clamped to [-1,1].
func (w *WAVWriter) Write(b lumix.AudioBuffer) error {
	flat := b.Flat()
	if cap(w.buf.Data) < len(flat) {
		w.buf.Data = make([]int, len(flat))
	}
	w.buf.Data = w.buf.Data[:len(flat)]
	for i, v := range flat {
		w.buf.Data[i] = int(math.Max(-1, math.Min(1, float64(v))) * math.MaxInt16)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("cannot write wav data: %w", err)
	}
	w.frames += len(b)
	return nil
}

// Frames returns the number of frames written so far.
func (w *WAVWriter) Frames() int { return w.frames }

// Close writes the headers. It does not close the underlying writer.
func (w *WAVWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("cannot finalize wav file: %w", err)
	}
	return nil
}
