package lumix

import (
	"slices"
	"sort"
)

type (
	// Media is a piece of audio that can be played, e.g. a decoded audio file
	// or a recording. Every Open returns an independent reader, so the same
	// media can play in many voices at once.
	Media interface {
		Name() string
		Format() Format
		Frames() int
		Open() (MediaSource, error)
	}

	// MediaSource is a seekable reader of PCM audio.
	MediaSource interface {
		Format() Format
		// Seek moves the read position to the given frame.
		Seek(frame int) error
		// Read reads interleaved samples, Format().Channels per frame, into
		// dst and returns the number of frames read. At the end of the media,
		// it returns 0, io.EOF.
		Read(dst []float32) (frames int, err error)
		Close() error
	}

	// Sequence is a list of MIDI events sorted by time. Event times are in
	// seconds at ReferenceTempo, so a sequence follows the tempo of the
	// timeline by playing it back at speed tempo/ReferenceTempo.
	Sequence struct {
		Name   string
		Events []MIDIEvent
		Length float64 // in seconds at ReferenceTempo
		// Tempos is the tempo map the sequence was authored with. It is
		// informative only; the event times already account for it.
		Tempos []TempoChange
	}

	MIDIEvent struct {
		Time    float64 // in seconds at ReferenceTempo
		Kind    MIDIEventKind
		Channel int
		Data1   int // key or controller
		Data2   int // velocity or value
	}

	MIDIEventKind int

	TempoChange struct {
		Time float64 // in seconds at ReferenceTempo
		BPM  float64
	}
)

const (
	NoteOnEvent MIDIEventKind = iota
	NoteOffEvent
	ControlChangeEvent
)

const (
	ControllerVolume  = 7
	ControllerSustain = 64
)

// Duration returns the length of the media in seconds.
func Duration(m Media) float64 {
	f := m.Format()
	if f.SampleRate <= 0 {
		return 0
	}
	return float64(m.Frames()) / float64(f.SampleRate)
}

// Sort sorts the events by time, keeping the order of simultaneous events.
// Length is extended to cover the last event.
func (s *Sequence) Sort() {
	slices.SortStableFunc(s.Events, func(a, b MIDIEvent) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	if n := len(s.Events); n > 0 && s.Events[n-1].Time > s.Length {
		s.Length = s.Events[n-1].Time
	}
}

// Search returns the index of the first event at or after time t.
func (s *Sequence) Search(t float64) int {
	return sort.Search(len(s.Events), func(i int) bool { return s.Events[i].Time >= t })
}
