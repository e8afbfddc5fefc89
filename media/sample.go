// Package media loads audio files into memory and writes recordings.
package media

import (
	"fmt"
	"io"

	"github.com/vsariola/lumix"
)

type (
	// Sample is audio decoded into memory, as interleaved float32 samples.
	// It implements lumix.Media.
	Sample struct {
		name   string
		format lumix.Format
		data   []float32
	}

	sampleReader struct {
		s   *Sample
		pos int // in frames
	}
)

// NewSample returns a Sample of the interleaved data. The data is not copied.
func NewSample(name string, format lumix.Format, data []float32) (*Sample, error) {
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid format %v", format)
	}
	if len(data)%format.Channels != 0 {
		return nil, fmt.Errorf("%d samples is not a whole number of %d channel frames", len(data), format.Channels)
	}
	return &Sample{name: name, format: format, data: data}, nil
}

func (s *Sample) Name() string        { return s.name }
func (s *Sample) Format() lumix.Format { return s.format }
func (s *Sample) Frames() int          { return len(s.data) / s.format.Channels }
func (s *Sample) Data() []float32      { return s.data }

func (s *Sample) Open() (lumix.MediaSource, error) {
	return &sampleReader{s: s}, nil
}

func (r *sampleReader) Format() lumix.Format { return r.s.format }
func (r *sampleReader) Close() error         { return nil }

func (r *sampleReader) Seek(frame int) error {
	if frame < 0 {
		return fmt.Errorf("negative frame %d", frame)
	}
	r.pos = min(frame, r.s.Frames())
	return nil
}

func (r *sampleReader) Read(dst []float32) (int, error) {
	ch := r.s.format.Channels
	frames := min(len(dst)/ch, r.s.Frames()-r.pos)
	if frames <= 0 {
		return 0, io.EOF
	}
	copy(dst, r.s.data[r.pos*ch:(r.pos+frames)*ch])
	r.pos += frames
	return frames, nil
}
