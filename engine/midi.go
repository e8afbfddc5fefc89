package engine

import (
	"strings"

	"github.com/vsariola/lumix"
)

type (
	// MIDIContext lists the MIDI input devices of the system.
	MIDIContext interface {
		Inputs(yield func(input MIDIInputDevice) bool)
		Close()
		Support() MIDISupport
	}

	// MIDIInputDevice is a MIDI input port. While open, the note and
	// controller messages it receives are delivered to the target.
	MIDIInputDevice interface {
		Open(target MIDIReceiver) error
		Close() error
		IsOpen() bool
		String() string
	}

	// MIDIReceiver accepts live MIDI events. ReceiveMIDI is called from the
	// driver thread and must not block; it reports false if the event was
	// dropped. *MidiEngine is a MIDIReceiver.
	MIDIReceiver interface {
		ReceiveMIDI(ev lumix.MIDIEvent) bool
	}

	MIDISupport int
)

const (
	MIDISupportNotCompiled MIDISupport = iota
	MIDISupportNoDriver
	MIDISupported
)

// NullMIDIContext is a mockup MIDIContext if you don't want to create a real
// one.
type NullMIDIContext struct{}

func (m NullMIDIContext) Inputs(yield func(input MIDIInputDevice) bool) {}
func (m NullMIDIContext) Close()                                        {}
func (m NullMIDIContext) Support() MIDISupport                          { return MIDISupportNotCompiled }

func (s MIDISupport) String() string {
	switch s {
	case MIDISupportNotCompiled:
		return "not compiled"
	case MIDISupportNoDriver:
		return "no driver"
	}
	return "supported"
}

// FindMIDIInput returns the first input of the context whose name starts
// with prefix.
func FindMIDIInput(c MIDIContext, prefix string) (input MIDIInputDevice, ok bool) {
	for i := range c.Inputs {
		if strings.HasPrefix(i.String(), prefix) {
			return i, true
		}
	}
	return nil, false
}
