package engine

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/vsariola/lumix"
)

type (
	// Track is an audio, MIDI or group track of a Session. Each track is routed
	// into exactly one bus: the master or a group track.
	Track struct {
		ID            uuid.UUID
		Name          string
		RecordOnStart bool

		kind    TrackKind
		session *Session
		engine  TrackEngine
		parent  *Track // nil: routed into the master
		members []*Track
		clips   []*Clip
		enabled bool
		solo    bool
	}

	TrackKind int
)

const (
	AudioTrack TrackKind = iota
	MidiTrack
	GroupTrack
)

func (k TrackKind) String() string {
	switch k {
	case AudioTrack:
		return "audio"
	case MidiTrack:
		return "midi"
	case GroupTrack:
		return "group"
	}
	return "unknown"
}

func (t *Track) Kind() TrackKind     { return t.kind }
func (t *Track) Engine() TrackEngine { return t.engine }
func (t *Track) Enabled() bool       { return t.enabled }
func (t *Track) Solo() bool          { return t.solo }

// Parent returns the group the track is routed into, or nil if it is routed
// into the master.
func (t *Track) Parent() *Track { return t.parent }

// Members returns the tracks routed into a group track.
func (t *Track) Members() []*Track { return slices.Clone(t.members) }

// GroupKind returns the kind of the tracks a group accepts: the kind of its
// first member. ok is false if the group is empty and accepts any kind.
func (t *Track) GroupKind() (kind TrackKind, ok bool) {
	if len(t.members) == 0 {
		return 0, false
	}
	return t.members[0].kind, true
}

// Chain returns the plugin chain of the track.
func (t *Track) Chain() *PluginChain { return t.engine.Base().Chain() }

// Audio returns the audio engine of an audio track, nil for other kinds.
func (t *Track) Audio() *AudioEngine {
	e, _ := t.engine.(*AudioEngine)
	return e
}

// Midi returns the MIDI engine of a MIDI track, nil for other kinds.
func (t *Track) Midi() *MidiEngine {
	e, _ := t.engine.(*MidiEngine)
	return e
}

// SetEnabled enables or mutes the track. A disabled track is silenced by its
// MuteGate and its clips are not fired.
func (t *Track) SetEnabled(enabled bool) {
	t.enabled = enabled
	t.session.refreshGates()
}

// SetSolo solos the track: while any track routed into the same bus is
// soloed, the tracks of that bus that are not soloed are muted.
func (t *Track) SetSolo(solo bool) {
	t.solo = solo
	t.session.refreshGates()
}

func (t *Track) SetVolume(db lumix.Decibel) { t.engine.Base().SetVolume(db) }
func (t *Track) Volume() lumix.Decibel      { return t.engine.Base().Stereo().Volume() }
func (t *Track) SetPan(pan float64)         { t.engine.Base().SetPan(pan) }
func (t *Track) Pan() float64               { return t.engine.Base().Stereo().Pan() }

// Clips returns the clips ordered by their start tick.
func (t *Track) Clips() []*Clip { return slices.Clone(t.clips) }

// AddClip places the clip on the track. The kind of the clip must match the
// kind of the track.
func (t *Track) AddClip(c *Clip) error {
	if t.kind == GroupTrack || c.Kind() != t.kind {
		return &lumix.ConfigurationError{Op: "add clip " + c.Name, Err: fmt.Errorf("a %v clip cannot be placed on a %v track", c.Kind(), t.kind)}
	}
	if slices.Contains(t.clips, c) {
		return nil
	}
	t.insertClip(c)
	return nil
}

func (t *Track) insertClip(c *Clip) {
	// after the clips starting at the same tick, to keep the insertion order
	i, _ := slices.BinarySearchFunc(t.clips, c.startTick+1, func(e *Clip, tick int64) int {
		return cmp.Compare(e.startTick, tick)
	})
	t.clips = slices.Insert(t.clips, i, c)
}

// MoveClip changes the start tick of the clip, keeping the clips sorted.
func (t *Track) MoveClip(c *Clip, startTick int64) bool {
	if !t.RemoveClip(c) {
		return false
	}
	c.startTick = max(startTick, 0)
	t.insertClip(c)
	return true
}

// RemoveClip removes the clip from the track. A clip that is already playing
// keeps playing until it ends or the transport is stopped.
func (t *Track) RemoveClip(c *Clip) bool {
	i := slices.Index(t.clips, c)
	if i < 0 {
		return false
	}
	t.clips = slices.Delete(t.clips, i, i+1)
	return true
}

// Drain applies the pending delete and duplicate requests of the clips and
// of the slots of the plugin chain.
func (t *Track) Drain() error {
	var dups []*Clip
	for _, c := range slices.Clone(t.clips) {
		if c.deleteRequested {
			t.RemoveClip(c)
			continue
		}
		if c.duplicateRequested {
			c.duplicateRequested = false
			dups = append(dups, c.duplicate(t.session.transport))
		}
	}
	for _, d := range dups {
		t.insertClip(d)
	}
	if err := t.Chain().Drain(); err != nil {
		return fmt.Errorf("track %s: %w", t.Name, err)
	}
	return nil
}

// bus returns the mixer the track is routed into.
func (t *Track) bus() *Mixer {
	if t.parent == nil {
		return t.session.master.Mixer()
	}
	return t.parent.engine.Base().Mixer()
}

// isAncestorOf reports whether other is routed, directly or through other
// groups, into t.
func (t *Track) isAncestorOf(other *Track) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == t {
			return true
		}
	}
	return false
}

func (t *Track) checkGroupMember(track *Track) error {
	op := "route " + track.Name + " to " + t.Name
	if t.kind != GroupTrack {
		return &lumix.RoutingError{Op: op, Err: errors.New("not a group track")}
	}
	if t == track || track.isAncestorOf(t) {
		return &lumix.RoutingError{Op: op, Err: lumix.ErrRoutingCycle}
	}
	if kind, ok := t.GroupKind(); ok && kind != track.kind && !(len(t.members) == 1 && t.members[0] == track) {
		return &lumix.RoutingError{Op: op, Err: fmt.Errorf("%w: group has %v tracks, track is %v", lumix.ErrKindMismatch, kind, track.kind)}
	}
	return nil
}
