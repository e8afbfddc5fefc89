package engine

import (
	"errors"
	"fmt"

	"github.com/vsariola/lumix"
)

type (
	// ClipScheduler fires the clips the transport has reached. It polls: it
	// is run once per control thread frame, so a clip may start audibly late
	// by up to one frame. The lateness is compensated by starting the media
	// from the offset the clip should already be at; the timing jitter is
	// not.
	ClipScheduler struct{}

	// FiredClip is a clip fired by the scheduler.
	FiredClip struct {
		Track  *Track
		Clip   *Clip
		Offset float64 // seconds into the clip, at the current tempo
	}
)

// Schedule fires every clip of every enabled track whose start tick has been
// reached and that has not played during this run of the transport. A
// disabled clip is marked as played without firing. A clip whose fire fails
// is marked as played too, so the failure is reported only once; the errors
// are joined.
func (ClipScheduler) Schedule(t *lumix.Transport, tracks []*Track) ([]FiredClip, error) {
	if !t.Running() {
		return nil, nil
	}
	var fired []FiredClip
	var errs []error
	cur := t.CurrentTick()
	for _, track := range tracks {
		if !track.enabled || track.kind == GroupTrack {
			continue
		}
		for _, c := range track.clips {
			if c.startTick > cur {
				break // sorted by start tick
			}
			if c.hasPlayed {
				continue
			}
			c.hasPlayed = true
			if !c.Enabled {
				continue
			}
			offset := t.TicksToSeconds(cur, true) - t.TicksToSeconds(c.startTick, true)
			if err := fire(t, track, c, offset); err != nil {
				errs = append(errs, fmt.Errorf("cannot fire %s on %s: %w", c.Name, track.Name, err))
				continue
			}
			fired = append(fired, FiredClip{Track: track, Clip: c, Offset: offset})
		}
	}
	return fired, errors.Join(errs...)
}

func fire(t *lumix.Transport, track *Track, c *Clip, offset float64) error {
	switch e := track.engine.(type) {
	case *AudioEngine:
		if c.Media == nil {
			return errors.New("audio clip has no media")
		}
		return e.Fire(c.Media, offset+c.TrimStart, c.TrimEnd)
	case *MidiEngine:
		if c.Sequence == nil {
			return errors.New("MIDI clip has no sequence")
		}
		// the sequence is timed at the reference tempo
		return e.Fire(c.Sequence, offset*t.Tempo()/lumix.ReferenceTempo, t.Tempo())
	}
	return fmt.Errorf("a %v track cannot fire clips", track.kind)
}
