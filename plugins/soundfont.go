package plugins

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/vsariola/lumix"
)

type (
	// SoundFont is an instrument playing a SoundFont 2 file with the
	// meltysynth synthesizer.
	SoundFont struct {
		font       *meltysynth.SoundFont
		settings   *meltysynth.SynthesizerSettings
		synth      synthesizer
		left       []float32
		right      []float32
		sampleRate int
	}

	// synthesizer is the subset of meltysynth.Synthesizer the instrument uses.
	synthesizer interface {
		ProcessMidiMessage(channel int32, command int32, data1, data2 int32)
		NoteOn(channel, key, vel int32)
		NoteOff(channel, key int32)
		Render(left, right []float32)
	}
)

// newSynthesizer constructs a meltysynth synthesizer. Tests may override this
// to inject a mock implementation.
var newSynthesizer = func(sf *meltysynth.SoundFont, settings *meltysynth.SynthesizerSettings) (synthesizer, error) {
	return meltysynth.NewSynthesizer(sf, settings)
}

const controlChange = 0xB0

// LoadSoundFont reads the .sf2 file at path.
func LoadSoundFont(path string, sampleRate int) (*SoundFont, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	font, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cannot parse soundfont %s: %w", path, err)
	}
	return NewSoundFont(font, sampleRate)
}

// NewSoundFont creates an instrument of an already parsed font. Many
// instruments can share the same font.
func NewSoundFont(font *meltysynth.SoundFont, sampleRate int) (*SoundFont, error) {
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	synth, err := newSynthesizer(font, settings)
	if err != nil {
		return nil, fmt.Errorf("cannot create synthesizer: %w", err)
	}
	return &SoundFont{font: font, settings: settings, synth: synth, sampleRate: sampleRate}, nil
}

func (s *SoundFont) NoteOn(channel, key, velocity int) {
	s.synth.NoteOn(int32(channel), int32(key), int32(velocity))
}

func (s *SoundFont) NoteOff(channel, key int) {
	s.synth.NoteOff(int32(channel), int32(key))
}

func (s *SoundFont) ControlChange(channel, controller, value int) {
	s.synth.ProcessMidiMessage(int32(channel), controlChange, int32(controller), int32(value))
}

// Sustain presses or releases the sustain pedal on all channels.
func (s *SoundFont) Sustain(on bool) {
	var v int32
	if on {
		v = 127
	}
	for ch := range int32(16) {
		s.synth.ProcessMidiMessage(ch, controlChange, lumix.ControllerSustain, v)
	}
}

// Process renders the synthesizer over the contents of the buffer.
func (s *SoundFont) Process(buf lumix.AudioBuffer) error {
	if len(s.left) < len(buf) {
		s.left = make([]float32, len(buf))
		s.right = make([]float32, len(buf))
	}
	left, right := s.left[:len(buf)], s.right[:len(buf)]
	s.synth.Render(left, right)
	for i := range buf {
		buf[i] = [2]float32{left[i], right[i]}
	}
	return nil
}

func (s *SoundFont) Close() error { return nil }

// Clone creates a new synthesizer sharing the same font.
func (s *SoundFont) Clone() (lumix.Processor, error) {
	return NewSoundFont(s.font, s.sampleRate)
}
