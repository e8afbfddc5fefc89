package engine

import (
	"github.com/google/uuid"
	"github.com/vsariola/lumix"
)

type (
	// Clip places a piece of media (an audio clip) or a MIDI sequence (a MIDI
	// clip) on the timeline of a track. Clips are only touched by the control
	// thread.
	Clip struct {
		ID      uuid.UUID
		Name    string
		Enabled bool

		// Media is set for audio clips. TrimStart and TrimEnd, in seconds,
		// cut the beginning and the end of the media.
		Media     lumix.Media
		TrimStart float64
		TrimEnd   float64

		// Sequence is set for MIDI clips.
		Sequence *lumix.Sequence

		startTick          int64 // changed only by Track.MoveClip, to keep the track sorted
		hasPlayed          bool
		deleteRequested    bool
		duplicateRequested bool
	}
)

func NewAudioClip(media lumix.Media, startTick int64) *Clip {
	return &Clip{ID: uuid.New(), Name: media.Name(), startTick: max(startTick, 0), Enabled: true, Media: media}
}

func NewMidiClip(seq *lumix.Sequence, startTick int64) *Clip {
	return &Clip{ID: uuid.New(), Name: seq.Name, startTick: max(startTick, 0), Enabled: true, Sequence: seq}
}

// Kind returns the kind of track the clip can be placed on.
func (c *Clip) Kind() TrackKind {
	if c.Sequence != nil {
		return MidiTrack
	}
	return AudioTrack
}

// StartTick returns the tick where the clip starts. Use Track.MoveClip to
// change it.
func (c *Clip) StartTick() int64 { return c.startTick }

// HasPlayed reports whether the clip has been fired (or skipped, if
// disabled) during the current transport run.
func (c *Clip) HasPlayed() bool { return c.hasPlayed }

// DurationTicks returns the length of the clip on the timeline. Audio clips
// last as long as their trimmed media at the current tempo; MIDI clips follow
// the tempo, so their length in ticks is fixed.
func (c *Clip) DurationTicks(t *lumix.Transport) int64 {
	if c.Sequence != nil {
		return t.SecondsToTicks(c.Sequence.Length, false)
	}
	if c.Media == nil {
		return 0
	}
	return max(t.SecondsToTicks(lumix.Duration(c.Media)-c.TrimStart-c.TrimEnd, true), 0)
}

// EndTick returns the tick where the clip ends.
func (c *Clip) EndTick(t *lumix.Transport) int64 { return c.startTick + c.DurationTicks(t) }

// RequestDelete marks the clip to be removed by the next Drain of its track.
func (c *Clip) RequestDelete() { c.deleteRequested = true }

// RequestDuplicate marks the clip to be duplicated by the next Drain of its
// track. The copy is placed right after the original.
func (c *Clip) RequestDuplicate() { c.duplicateRequested = true }

func (c *Clip) duplicate(t *lumix.Transport) *Clip {
	ret := *c
	ret.ID = uuid.New()
	ret.startTick = c.EndTick(t)
	ret.hasPlayed, ret.deleteRequested, ret.duplicateRequested = false, false, false
	return &ret
}
