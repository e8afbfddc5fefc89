package engine

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"

	"github.com/vsariola/lumix"
)

type (
	// voice is a mixer input that plays one fired clip. Voices are removed by
	// StopSounds; other inputs of a mixer, like the tracks routed into a
	// group, are not.
	voice interface {
		Input
		stop()
		close() error
	}

	// mediaVoice plays a MediaSource, upmixing mono to stereo. It finishes
	// when the media, shortened by the end trim, is exhausted.
	mediaVoice struct {
		src       lumix.MediaSource
		channels  int
		format    lumix.Format
		remaining int // frames
		tmp       []float32
		stopped   atomic.Bool
	}

	// sequenceVoice plays a Sequence by forwarding its events to the
	// instrument of a MIDI engine. It produces no audio itself: the
	// instrument renders in the plugin chain right after the mixer.
	sequenceVoice struct {
		fwd      *forwarder
		seq      *lumix.Sequence
		format   lumix.Format
		pos      float64 // in seconds at lumix.ReferenceTempo
		next     int
		speed    atomic.Uint64 // math.Float64bits of tempo/lumix.ReferenceTempo
		stopped  atomic.Bool
		held     noteSet
		onFinish func()
	}
)

func newMediaVoice(src lumix.MediaSource, frames, bufferFrames int) *mediaVoice {
	f := src.Format()
	return &mediaVoice{
		src:       src,
		channels:  f.Channels,
		format:    lumix.Stereo(f.SampleRate),
		remaining: frames,
		tmp:       make([]float32, bufferFrames*f.Channels),
	}
}

func (v *mediaVoice) Format() lumix.Format { return v.format }
func (v *mediaVoice) stop()                { v.stopped.Store(true) }
func (v *mediaVoice) close() error         { return v.src.Close() }

func (v *mediaVoice) Read(buf lumix.AudioBuffer) error {
	if v.stopped.Load() || v.remaining <= 0 {
		buf.Clear()
		return io.EOF
	}
	n := 0
	var err error
	for n < len(buf) && v.remaining > 0 {
		want := min(len(buf)-n, v.remaining)
		if len(v.tmp) < want*v.channels {
			v.tmp = make([]float32, want*v.channels)
		}
		var got int
		got, err = v.src.Read(v.tmp[:want*v.channels])
		for i := range got {
			if v.channels == 1 {
				s := v.tmp[i]
				buf[n+i] = [2]float32{s, s}
			} else {
				buf[n+i] = [2]float32{v.tmp[2*i], v.tmp[2*i+1]}
			}
		}
		n += got
		v.remaining -= got
		if err != nil || got == 0 {
			break
		}
	}
	clear(buf[n:])
	if err != nil && !errors.Is(err, io.EOF) {
		v.remaining = 0
		return fmt.Errorf("cannot read media: %w", err)
	}
	if err != nil || v.remaining <= 0 || n < len(buf) {
		v.remaining = 0
		return io.EOF
	}
	return nil
}

func newSequenceVoice(fwd *forwarder, seq *lumix.Sequence, format lumix.Format, offset, speed float64, onFinish func()) *sequenceVoice {
	v := &sequenceVoice{
		fwd:      fwd,
		seq:      seq,
		format:   format,
		pos:      offset,
		next:     seq.Search(offset),
		onFinish: onFinish,
	}
	v.setSpeed(speed)
	return v
}

// setSpeed changes the playback speed; it can be called while playing.
func (v *sequenceVoice) setSpeed(speed float64) { v.speed.Store(math.Float64bits(speed)) }

func (v *sequenceVoice) Format() lumix.Format { return v.format }
func (v *sequenceVoice) stop()                { v.stopped.Store(true) }
func (v *sequenceVoice) close() error         { return nil }

func (v *sequenceVoice) Read(buf lumix.AudioBuffer) error {
	buf.Clear()
	if v.stopped.Load() {
		return v.finish()
	}
	speed := math.Float64frombits(v.speed.Load())
	end := v.pos + float64(len(buf))*speed/float64(v.format.SampleRate)
	events := v.seq.Events
	for v.next < len(events) && events[v.next].Time < end {
		v.fwd.dispatch(events[v.next], &v.held)
		v.next++
	}
	v.pos = end
	if v.next >= len(events) && v.pos >= v.seq.Length {
		return v.finish()
	}
	return nil
}

func (v *sequenceVoice) finish() error {
	v.fwd.release(&v.held)
	if v.onFinish != nil {
		v.onFinish()
		v.onFinish = nil
	}
	return io.EOF
}
