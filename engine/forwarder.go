package engine

import (
	"sync/atomic"

	"github.com/vsariola/lumix"
)

const (
	controllerAllNotesOff = 123
	midiChannels          = 16
)

type (
	// forwarder delivers MIDI events to the instrument of a plugin chain. It
	// is only used from the audio callback. The instrument is looked up for
	// every event, so events sent while the chain has no instrument are
	// dropped.
	forwarder struct {
		chain   *PluginChain
		sustain atomic.Bool
		volume  atomic.Int32 // last volume controller value + 1, 0 if none
		silence atomic.Bool  // set by the control thread to release everything
	}

	// noteSet tracks the notes a source is holding down, so they can be
	// released when the source stops.
	noteSet [midiChannels][128]bool

	// liveInput feeds MIDI events received from an input device to the
	// instrument. It stays connected to the mixer of a MIDI engine for its
	// whole life and produces silence itself.
	liveInput struct {
		fwd    *forwarder
		format lumix.Format
		events chan lumix.MIDIEvent
		held   noteSet
	}
)

func (f *forwarder) dispatch(ev lumix.MIDIEvent, held *noteSet) {
	inst := f.chain.Instrument()
	ch := ev.Channel & 0x0f
	switch ev.Kind {
	case lumix.NoteOnEvent:
		if ev.Data2 == 0 {
			f.noteOff(inst, ch, ev.Data1, held)
			return
		}
		if inst == nil {
			return
		}
		inst.NoteOn(ch, ev.Data1&0x7f, ev.Data2)
		held[ch][ev.Data1&0x7f] = true
	case lumix.NoteOffEvent:
		f.noteOff(inst, ch, ev.Data1, held)
	case lumix.ControlChangeEvent:
		switch ev.Data1 {
		case lumix.ControllerSustain:
			on := ev.Data2 >= 64
			f.sustain.Store(on)
			if inst != nil {
				inst.Sustain(on)
			}
		case lumix.ControllerVolume:
			f.volume.Store(int32(ev.Data2) + 1)
		default:
			if inst != nil {
				inst.ControlChange(ch, ev.Data1, ev.Data2)
			}
		}
	}
}

func (f *forwarder) noteOff(inst lumix.Instrument, ch, key int, held *noteSet) {
	key &= 0x7f
	held[ch][key] = false
	if inst != nil {
		inst.NoteOff(ch, key)
	}
}

// release sends a note off for every note in held.
func (f *forwarder) release(held *noteSet) {
	inst := f.chain.Instrument()
	for ch := range held {
		for key, on := range held[ch] {
			if !on {
				continue
			}
			held[ch][key] = false
			if inst != nil {
				inst.NoteOff(ch, key)
			}
		}
	}
}

// silenceAll releases every note on every channel and lifts the sustain
// pedal. Used when the voices were discarded without getting the chance to
// release their notes.
func (f *forwarder) silenceAll() {
	inst := f.chain.Instrument()
	f.sustain.Store(false)
	if inst == nil {
		return
	}
	inst.Sustain(false)
	for ch := range midiChannels {
		inst.ControlChange(ch, controllerAllNotesOff, 0)
	}
}

func newLiveInput(fwd *forwarder, format lumix.Format, capacity int) *liveInput {
	return &liveInput{fwd: fwd, format: format, events: make(chan lumix.MIDIEvent, capacity)}
}

func (l *liveInput) Format() lumix.Format { return l.format }

func (l *liveInput) Read(buf lumix.AudioBuffer) error {
	buf.Clear()
	if l.fwd.silence.Swap(false) {
		l.fwd.silenceAll()
		l.held = noteSet{}
	}
	// only what was queued before this buffer, so a flood of events cannot
	// keep the callback here
	for range len(l.events) {
		l.fwd.dispatch(<-l.events, &l.held)
	}
	return nil
}
