//go:build cgo

package cmd

import (
	"github.com/vsariola/lumix/engine"
	"github.com/vsariola/lumix/engine/gomidi"
)

func NewMidiContext() engine.MIDIContext {
	return gomidi.NewContext()
}
