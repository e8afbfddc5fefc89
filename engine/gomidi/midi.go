// Package gomidi implements engine.MIDIContext with the rtmidi driver of
// gitlab.com/gomidi/midi. It needs cgo.
package gomidi

import (
	"errors"
	"fmt"

	"github.com/vsariola/lumix/engine"
	"github.com/vsariola/lumix/midiseq"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	RTMIDIContext struct {
		driver       *rtmididrv.Driver
		currentIn    drivers.In
		stop         func()
		inputDevices []RTMIDIDevice
		initialized  bool
	}

	RTMIDIDevice struct {
		context *RTMIDIContext
		in      drivers.In
	}
)

// NewContext opens the driver. If that fails, the context has no inputs and
// reports MIDISupportNoDriver.
func NewContext() *RTMIDIContext {
	m := RTMIDIContext{}
	// there's not much we can do if this fails, so just use m.driver = nil to
	// indicate no driver available
	m.driver, _ = rtmididrv.New()
	return &m
}

func (c *RTMIDIContext) Inputs(yield func(engine.MIDIInputDevice) bool) {
	if !c.initialized {
		c.initInputDevices()
	}
	for _, device := range c.inputDevices {
		if !yield(device) {
			break
		}
	}
}

func (c *RTMIDIContext) initInputDevices() {
	if c.driver == nil {
		return
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return
	}
	for _, in := range ins {
		c.inputDevices = append(c.inputDevices, RTMIDIDevice{context: c, in: in})
	}
	c.initialized = true
}

func (c *RTMIDIContext) Support() engine.MIDISupport {
	if c.driver == nil {
		return engine.MIDISupportNoDriver
	}
	return engine.MIDISupported
}

func (c *RTMIDIContext) Close() {
	if c.driver == nil {
		return
	}
	c.closeCurrent()
	c.driver.Close()
}

func (c *RTMIDIContext) closeCurrent() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	c.currentIn = nil
}

// Open the input device, closing the currently open one if necessary.
func (d RTMIDIDevice) Open(target engine.MIDIReceiver) error {
	c := d.context
	if c.driver == nil {
		return errors.New("no driver available")
	}
	c.closeCurrent()
	if err := d.in.Open(); err != nil {
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	stop, err := midi.ListenTo(d.in, func(msg midi.Message, timestampms int32) {
		// the timestamp is ignored: events are played at the start of the
		// next buffer
		if ev, ok := midiseq.Event(msg, 0); ok {
			target.ReceiveMIDI(ev)
		}
	})
	if err != nil {
		d.in.Close()
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	c.currentIn, c.stop = d.in, stop
	return nil
}

func (d RTMIDIDevice) Close() error {
	if d.context.currentIn == d.in {
		d.context.closeCurrent()
	}
	return nil
}

func (d RTMIDIDevice) IsOpen() bool   { return d.context.currentIn == d.in && d.in.IsOpen() }
func (d RTMIDIDevice) String() string { return d.in.String() }
