//go:build !cgo

package cmd

import (
	"github.com/vsariola/lumix/engine"
)

func NewMidiContext() engine.MIDIContext {
	// with no cgo, we cannot use MIDI, so return a null context
	return engine.NullMIDIContext{}
}
