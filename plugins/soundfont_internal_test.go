package plugins

import (
	"testing"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/vsariola/lumix"
)

type mockSynth struct {
	on, off  int
	messages [][4]int32
}

func (m *mockSynth) ProcessMidiMessage(channel, command, data1, data2 int32) {
	m.messages = append(m.messages, [4]int32{channel, command, data1, data2})
}
func (m *mockSynth) NoteOn(channel, key, vel int32) { m.on++ }
func (m *mockSynth) NoteOff(channel, key int32)     { m.off++ }
func (m *mockSynth) Render(left, right []float32) {
	for i := range left {
		left[i], right[i] = 0.25, -0.25
	}
}

func TestSoundFontInstrument(t *testing.T) {
	orig := newSynthesizer
	mock := &mockSynth{}
	newSynthesizer = func(*meltysynth.SoundFont, *meltysynth.SynthesizerSettings) (synthesizer, error) {
		return mock, nil
	}
	defer func() { newSynthesizer = orig }()
	sf, err := NewSoundFont(&meltysynth.SoundFont{}, 44100)
	if err != nil {
		t.Fatalf("NewSoundFont failed: %v", err)
	}
	var inst lumix.Instrument = sf
	inst.NoteOn(0, 60, 100)
	inst.NoteOff(0, 60)
	inst.Sustain(true)
	inst.ControlChange(2, 1, 64)
	if mock.on != 1 || mock.off != 1 {
		t.Fatalf("got %d note ons and %d note offs", mock.on, mock.off)
	}
	if len(mock.messages) != 17 {
		t.Fatalf("expected 16 sustain messages and one control change, got %d", len(mock.messages))
	}
	if last := mock.messages[16]; last != [4]int32{2, 0xB0, 1, 64} {
		t.Fatalf("unexpected control change %v", last)
	}
	buf := lumix.AudioBuffer{{1, 1}, {1, 1}, {1, 1}}
	if err := inst.Process(buf); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	for _, s := range buf {
		if s != [2]float32{0.25, -0.25} {
			t.Fatalf("instrument should overwrite the buffer, got %v", s)
		}
	}
}
