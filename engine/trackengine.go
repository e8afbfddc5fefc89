package engine

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vsariola/lumix"
)

const (
	liveQueueLength  = 256
	recordingTimeout = 5 * time.Second
)

type (
	// TrackEngine is the capability every track engine has: an output that
	// can be routed into a bus, and a way to silence it.
	TrackEngine interface {
		Output() Input
		Base() *Engine
		StopSounds()
		Close() error
	}

	// Engine is the signal chain shared by all the track engine variants: a
	// Mixer summing the voices (or the tracks routed into a group), then the
	// PluginChain, StereoStage, MeterStage and MuteGate, always in that order.
	Engine struct {
		format lumix.Format
		mixer  *Mixer
		chain  *PluginChain
		stereo *StereoStage
		meter  *MeterStage
		gate   *MuteGate // nil for the master
		stages []Stage
		report func(error) // nil: errors are returned to the reader
	}

	// AudioEngine plays audio clips and records audio.
	AudioEngine struct {
		*Engine
		bufferFrames int
		recorder     *Recorder
	}

	// MidiEngine plays MIDI sequences through the instrument of its plugin
	// chain. At most one sequence plays at a time.
	MidiEngine struct {
		*Engine
		fwd     *forwarder
		playing atomic.Bool
		live    *liveInput
	}

	// GroupEngine is a bus that tracks can be routed into. It never
	// originates audio.
	GroupEngine struct {
		*Engine
	}

	// MasterEngine is the root bus feeding the output device. It has no mute.
	MasterEngine struct {
		*Engine
	}

	engineConfig struct {
		format       lumix.Format
		bufferFrames int
		meterWindow  int // in frames
		trackID      uuid.UUID
		name         string
		broker       *Broker
	}
)

func newEngine(cfg engineConfig, gated bool) *Engine {
	e := &Engine{
		format: cfg.format,
		mixer:  NewMixer(cfg.format),
		chain:  NewPluginChain(),
		stereo: NewStereoStage(),
	}
	var notify func(Level)
	if cfg.broker != nil {
		id, ch := cfg.trackID, cfg.broker.ToControl
		notify = func(l Level) { TrySend(ch, any(LevelMsg{TrackID: id, Level: l})) }
	}
	e.meter = NewMeterStage(cfg.meterWindow, notify)
	e.stages = []Stage{e.chain, e.stereo, e.meter}
	if gated {
		e.gate = &MuteGate{}
		e.stages = append(e.stages, e.gate)
		if cfg.broker != nil {
			name, ch := cfg.name, cfg.broker.ToControl
			e.report = func(err error) {
				TrySend(ch, any(&Alert{Name: "TrackFailed", Priority: Error, Message: name + ": " + err.Error(), Duration: defaultAlertDuration}))
			}
		}
	}
	return e
}

func (e *Engine) Format() lumix.Format       { return e.format }
func (e *Engine) Output() Input              { return e }
func (e *Engine) Base() *Engine              { return e }
func (e *Engine) Mixer() *Mixer              { return e.mixer }
func (e *Engine) Chain() *PluginChain        { return e.chain }
func (e *Engine) Stereo() *StereoStage       { return e.stereo }
func (e *Engine) Meter() *MeterStage         { return e.meter }
func (e *Engine) Gate() *MuteGate            { return e.gate }
func (e *Engine) Stages() []Stage            { return e.stages }
func (e *Engine) Level() Level               { return e.meter.Peak() }
func (e *Engine) SetVolume(db lumix.Decibel) { e.stereo.SetVolume(db) }
func (e *Engine) SetPan(pan float64)         { e.stereo.SetPan(pan) }

// Read pulls one buffer through the whole chain. Failing inputs are left out
// of the mix; if a stage fails, the buffer is silenced. A track engine posts
// its errors as a TrackFailed alert and returns nil, so a failing track only
// silences itself and never the bus it is routed into. The master returns
// its errors.
func (e *Engine) Read(buf lumix.AudioBuffer) error {
	// the voices forward MIDI events to the instrument while the mixer is
	// read, so the whole pull counts as one pass of the chain
	e.chain.epoch.enter()
	defer e.chain.epoch.exit()
	inputErr := e.mixer.Read(buf)
	var stageErr error
	for _, s := range e.stages {
		if stageErr = s.Process(buf); stageErr != nil {
			buf.Clear()
			break
		}
	}
	err := errors.Join(inputErr, stageErr)
	if err != nil && e.report != nil {
		e.report(err)
		return nil
	}
	return err
}

// StopSounds discards all the voices playing in the mixer, immediately and
// without fading.
func (e *Engine) StopSounds() {
	e.mixer.RemoveFunc(func(in Input) bool {
		v, ok := in.(voice)
		if ok {
			v.stop()
		}
		return ok
	}, func(in Input) { in.(voice).close() })
}

// Voices returns the number of voices in the mixer.
func (e *Engine) Voices() int {
	n := 0
	for _, in := range e.mixer.Inputs() {
		if _, ok := in.(voice); ok {
			n++
		}
	}
	return n
}

// collect prunes the finished voices and releases what the audio callback no
// longer uses.
func (e *Engine) collect() {
	e.mixer.Prune(func(in Input) {
		if v, ok := in.(voice); ok {
			v.close()
		}
	})
	e.mixer.Collect()
	e.chain.Collect()
}

// Close stops the voices and closes all the processors. The engine must no
// longer be routed anywhere.
func (e *Engine) Close() error {
	e.StopSounds()
	e.mixer.Collect()
	return e.chain.Close()
}

func newAudioEngine(cfg engineConfig) *AudioEngine {
	return &AudioEngine{Engine: newEngine(cfg, true), bufferFrames: cfg.bufferFrames}
}

// Fire starts playing media from offset seconds, stopping endTrim seconds
// before its end. Mono media is upmixed to stereo; any other channel count
// than one or two, or a sample rate different from the engine, is rejected
// with a *lumix.ConfigurationError before anything plays.
func (a *AudioEngine) Fire(media lumix.Media, offset, endTrim float64) error {
	f := media.Format()
	if f.Channels != 1 && f.Channels != 2 {
		return &lumix.ConfigurationError{Op: "fire " + media.Name(), Err: fmt.Errorf("%w: %d channels", lumix.ErrFormatMismatch, f.Channels)}
	}
	if f.SampleRate != a.format.SampleRate {
		return &lumix.ConfigurationError{Op: "fire " + media.Name(), Err: fmt.Errorf("%w: media is %d Hz, engine is %d Hz", lumix.ErrFormatMismatch, f.SampleRate, a.format.SampleRate)}
	}
	start := int(math.Round(max(offset, 0) * float64(f.SampleRate)))
	end := media.Frames() - int(math.Round(max(endTrim, 0)*float64(f.SampleRate)))
	if start >= end {
		return nil
	}
	src, err := media.Open()
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", media.Name(), err)
	}
	if err := src.Seek(start); err != nil {
		src.Close()
		return fmt.Errorf("cannot seek %s: %w", media.Name(), err)
	}
	v := newMediaVoice(src, end-start, a.bufferFrames)
	if err := a.mixer.AddInput(v); err != nil {
		src.Close()
		return err
	}
	return nil
}

// StartRecording starts capturing audio from capture into a new file at path.
func (a *AudioEngine) StartRecording(capture lumix.CaptureSource, path string, startTick int64, broker *Broker) error {
	if a.recorder != nil {
		return errors.New("already recording")
	}
	r, err := StartRecorder(capture, path, startTick, broker)
	if err != nil {
		return err
	}
	a.recorder = r
	return nil
}

// Recording reports whether the engine is recording.
func (a *AudioEngine) Recording() bool { return a.recorder != nil }

// StopRecording stops the capture and waits until the file is complete.
func (a *AudioEngine) StopRecording() (*Take, error) {
	if a.recorder == nil {
		return nil, errors.New("not recording")
	}
	r := a.recorder
	a.recorder = nil
	return r.Stop(recordingTimeout)
}

func (a *AudioEngine) Close() error {
	var err error
	if a.recorder != nil {
		_, err = a.StopRecording()
	}
	return errors.Join(err, a.Engine.Close())
}

func newMidiEngine(cfg engineConfig) *MidiEngine {
	m := &MidiEngine{Engine: newEngine(cfg, true)}
	m.fwd = &forwarder{chain: m.chain}
	m.live = newLiveInput(m.fwd, cfg.format, liveQueueLength)
	m.mixer.AddInput(m.live)
	return m
}

// ReceiveMIDI queues an event from a live input device for the next buffer.
// It never blocks; it reports false if the queue is full and the event was
// dropped.
func (m *MidiEngine) ReceiveMIDI(ev lumix.MIDIEvent) bool {
	return TrySend(m.live.events, ev)
}

// Fire starts playing seq from offset, in seconds at lumix.ReferenceTempo,
// at speed tempo/lumix.ReferenceTempo. Firing while a sequence is playing
// does nothing.
func (m *MidiEngine) Fire(seq *lumix.Sequence, offset, tempo float64) error {
	if tempo <= 0 {
		return &lumix.ConfigurationError{Op: "fire " + seq.Name, Err: fmt.Errorf("tempo must be positive, got %v", tempo)}
	}
	if !m.playing.CompareAndSwap(false, true) {
		return nil
	}
	v := newSequenceVoice(m.fwd, seq, m.format, max(offset, 0), tempo/lumix.ReferenceTempo, func() { m.playing.Store(false) })
	if err := m.mixer.AddInput(v); err != nil {
		m.playing.Store(false)
		return err
	}
	return nil
}

// SetTempo changes the speed of the playing sequence to follow a new tempo.
func (m *MidiEngine) SetTempo(tempo float64) {
	if tempo <= 0 {
		return
	}
	for _, in := range m.mixer.Inputs() {
		if v, ok := in.(*sequenceVoice); ok {
			v.setSpeed(tempo / lumix.ReferenceTempo)
		}
	}
}

// Playing reports whether a sequence is playing.
func (m *MidiEngine) Playing() bool { return m.playing.Load() }

// Sustain reports whether the sustain pedal is down.
func (m *MidiEngine) Sustain() bool { return m.fwd.sustain.Load() }

// VolumeCC returns the last value of the volume controller, or -1 if none has
// been received. It is observed only; it does not change the volume.
func (m *MidiEngine) VolumeCC() int { return int(m.fwd.volume.Load()) - 1 }

// StopSounds discards the playing sequence. The notes it was holding are
// released on the next buffer.
func (m *MidiEngine) StopSounds() {
	m.Engine.StopSounds()
	m.fwd.silence.Store(true)
	m.playing.Store(false)
}

func newGroupEngine(cfg engineConfig) *GroupEngine {
	return &GroupEngine{Engine: newEngine(cfg, true)}
}

// StopSounds does nothing: a group has no voices of its own, and the tracks
// routed into it are stopped separately.
func (g *GroupEngine) StopSounds() {}

func newMasterEngine(cfg engineConfig) *MasterEngine {
	return &MasterEngine{Engine: newEngine(cfg, false)}
}

// Close of the master leaves the routed tracks alone: they are closed with
// their tracks.
func (m *MasterEngine) Close() error { return m.chain.Close() }
