// Package midiseq reads standard MIDI files into lumix.Sequences.
package midiseq

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/vsariola/lumix"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Load reads the standard MIDI file at path. All the tracks are merged into
// one sequence.
func Load(path string) (*lumix.Sequence, error) {
	rd, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read MIDI file %s: %w", path, err)
	}
	return FromSMF(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), rd)
}

// Read is like Load, but reads the file from r.
func Read(name string, r io.Reader) (*lumix.Sequence, error) {
	rd, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("cannot read MIDI file %s: %w", name, err)
	}
	return FromSMF(name, rd)
}

// FromSMF converts a parsed file into a sequence. Ticks are converted to
// seconds at lumix.ReferenceTempo, so the sequence keeps its musical
// positions when played at any tempo; the tempo map of the file is only
// recorded in Tempos.
func FromSMF(name string, sm *smf.SMF) (*lumix.Sequence, error) {
	mt, ok := sm.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errors.New("SMPTE time format is not supported")
	}
	ppq := float64(mt.Resolution())
	if ppq <= 0 {
		return nil, errors.New("invalid MIDI file resolution")
	}
	seconds := func(ticks int64) float64 {
		return float64(ticks) / ppq * 60 / lumix.ReferenceTempo
	}
	seq := &lumix.Sequence{Name: name}
	for _, track := range sm.Tracks {
		var abs int64
		for _, ev := range track {
			abs += int64(ev.Delta)
			if e, ok := Event(midi.Message(ev.Message), seconds(abs)); ok {
				seq.Events = append(seq.Events, e)
			}
		}
		seq.Length = max(seq.Length, seconds(abs))
	}
	for _, tc := range sm.TempoChanges() {
		seq.Tempos = append(seq.Tempos, lumix.TempoChange{Time: seconds(tc.AbsTicks), BPM: tc.BPM})
	}
	seq.Sort()
	return seq, nil
}

// Event converts a note or control change message into an event at time t.
// Other messages are ignored.
func Event(msg midi.Message, t float64) (lumix.MIDIEvent, bool) {
	var ch, key, vel, ctrl, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return lumix.MIDIEvent{Time: t, Kind: lumix.NoteOnEvent, Channel: int(ch), Data1: int(key), Data2: int(vel)}, true
	case msg.GetNoteEnd(&ch, &key):
		return lumix.MIDIEvent{Time: t, Kind: lumix.NoteOffEvent, Channel: int(ch), Data1: int(key)}, true
	case msg.GetControlChange(&ch, &ctrl, &val):
		return lumix.MIDIEvent{Time: t, Kind: lumix.ControlChangeEvent, Channel: int(ch), Data1: int(ctrl), Data2: int(val)}, true
	}
	return lumix.MIDIEvent{}, false
}
