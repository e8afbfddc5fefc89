package engine_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/vsariola/lumix"
	"github.com/vsariola/lumix/engine"
)

type (
	constInput struct {
		value  [2]float32
		format lumix.Format
	}

	gainEffect struct {
		gain   float32
		closed bool
	}

	failingEffect struct{}

	failingInput struct{ format lumix.Format }
)

func (c *constInput) Format() lumix.Format { return c.format }
func (c *constInput) Read(buf lumix.AudioBuffer) error {
	for i := range buf {
		buf[i] = c.value
	}
	return nil
}

func (g *gainEffect) Process(buf lumix.AudioBuffer) error {
	for i := range buf {
		buf[i][0] *= g.gain
		buf[i][1] *= g.gain
	}
	return nil
}
func (g *gainEffect) Close() error { g.closed = true; return nil }

func (failingEffect) Process(lumix.AudioBuffer) error { return errors.New("boom") }
func (failingEffect) Close() error                    { return nil }

func (f failingInput) Format() lumix.Format { return f.format }
func (f failingInput) Read(buf lumix.AudioBuffer) error {
	buf[0] = [2]float32{9, 9}
	return errors.New("device lost")
}

func TestMixerSumsInputs(t *testing.T) {
	format := lumix.Stereo(44100)
	m := engine.NewMixer(format)
	a := &constInput{value: [2]float32{0.25, -0.5}, format: format}
	b := &constInput{value: [2]float32{0.125, 0.75}, format: format}
	for _, in := range []engine.Input{a, b, a} { // adding twice does nothing
		if err := m.AddInput(in); err != nil {
			t.Fatalf("AddInput failed: %v", err)
		}
	}
	buf := make(lumix.AudioBuffer, 64)
	if err := m.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i, s := range buf {
		if s != [2]float32{0.375, 0.25} {
			t.Fatalf("sample %d was %v, expected the sum of the inputs", i, s)
		}
	}
	released := false
	if !m.RemoveInput(b, func() { released = true }) {
		t.Fatal("RemoveInput did not find the input")
	}
	if !released {
		t.Fatal("the input should be released right away when the mixer is not being read")
	}
	if err := m.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if buf[0] != a.value {
		t.Fatalf("after removing b, got %v", buf[0])
	}
}

func TestMixerKeepsMixingPastFailingInput(t *testing.T) {
	format := lumix.Stereo(44100)
	m := engine.NewMixer(format)
	m.AddInput(failingInput{format: format})
	m.AddInput(&constInput{value: [2]float32{0.25, 0.25}, format: format})
	buf := make(lumix.AudioBuffer, 16)
	if err := m.Read(buf); err == nil {
		t.Fatal("the error of the failing input should be reported")
	}
	for i, v := range buf {
		if v != [2]float32{0.25, 0.25} {
			t.Fatalf("sample %d was %v, expected only the working input", i, v)
		}
	}
}

func TestMixerRejectsFormatMismatch(t *testing.T) {
	m := engine.NewMixer(lumix.Stereo(44100))
	err := m.AddInput(&constInput{format: lumix.Stereo(48000)})
	var cerr *lumix.ConfigurationError
	if !errors.As(err, &cerr) || !errors.Is(err, lumix.ErrFormatMismatch) {
		t.Fatalf("expected a ConfigurationError wrapping ErrFormatMismatch, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatal("the rejected input was added")
	}
}

func TestMuteGate(t *testing.T) {
	var g engine.MuteGate
	buf := lumix.AudioBuffer{{1, -1}, {0.5, 0.5}}
	g.Process(buf)
	if buf[0] != [2]float32{1, -1} {
		t.Fatal("an open gate should pass the audio through")
	}
	g.SetMuted(true)
	g.Process(buf)
	for _, s := range buf {
		if s != [2]float32{} {
			t.Fatalf("a muted gate should output silence, got %v", s)
		}
	}
}

func TestStereoStage(t *testing.T) {
	tests := []struct {
		volume      lumix.Decibel
		pan         float64
		left, right float32
	}{
		{0, 0, 1, 1},
		{0, 0.5, 0.5, 1},
		{0, -0.25, 1, 0.75},
		{0, -2, 1, 0}, // clamped
		{-6.0206, 1, 0, 0.5},
	}
	for _, tt := range tests {
		s := engine.NewStereoStage()
		s.SetVolume(tt.volume)
		s.SetPan(tt.pan)
		l, r := s.Gains()
		if !almostEqual(l, tt.left) || !almostEqual(r, tt.right) {
			t.Fatalf("volume %v pan %v: gains were %v %v, expected %v %v", tt.volume, tt.pan, l, r, tt.left, tt.right)
		}
	}
}

func TestMeterStage(t *testing.T) {
	var levels []engine.Level
	m := engine.NewMeterStage(4, func(l engine.Level) { levels = append(levels, l) })
	buf := lumix.AudioBuffer{{0.1, -0.2}, {-0.9, 0}, {0, 0}, {0, 0.3}, {0.2, -0.4}, {0, 0}, {0, 0}, {0, 0}, {1, 1}, {0, 0}}
	orig := append(lumix.AudioBuffer{}, buf...)
	m.Process(buf)
	if len(levels) != 2 {
		t.Fatalf("expected two complete windows, got %d", len(levels))
	}
	if levels[0] != (engine.Level{0.9, 0.3}) || levels[1] != (engine.Level{0.2, 0.4}) {
		t.Fatalf("unexpected levels %v", levels)
	}
	if m.Peak() != levels[1] {
		t.Fatalf("peak was %v, expected the last complete window", m.Peak())
	}
	for i := range buf {
		if buf[i] != orig[i] {
			t.Fatal("the meter should not change the audio")
		}
	}
}

func TestPluginChainSkipsDisabledEffects(t *testing.T) {
	c := engine.NewPluginChain()
	disabled := c.AddEffect("half", &gainEffect{gain: 0.5})
	c.AddEffect("triple", &gainEffect{gain: 3})
	disabled.SetEnabled(false)
	buf := lumix.AudioBuffer{{0.1, 0.2}}
	if err := c.Process(buf); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !almostEqual(buf[0][0], 0.3) || !almostEqual(buf[0][1], 0.6) {
		t.Fatalf("got %v, expected only the enabled effect", buf[0])
	}
}

func TestPluginChainRemoveClosesProcessor(t *testing.T) {
	c := engine.NewPluginChain()
	g := &gainEffect{gain: 2}
	slot := c.AddEffect("double", g)
	if !c.RemoveEffect(slot) || !g.closed {
		t.Fatal("a removed effect should be closed once the chain is not processing")
	}
	if c.RemoveEffect(slot) {
		t.Fatal("removing twice should report false")
	}
}

func TestPluginChainLoadFailure(t *testing.T) {
	c := engine.NewPluginChain()
	_, err := c.LoadEffect("broken", func() (lumix.Processor, error) { return nil, errors.New("no such file") })
	var rerr *lumix.ResourceError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected a ResourceError, got %v", err)
	}
	if len(c.Effects()) != 0 {
		t.Fatal("a failed load should not insert a slot")
	}
	if _, err := c.SetInstrument("effect", &gainEffect{}); err == nil {
		t.Fatal("an effect should not be accepted as an instrument")
	}
}

func TestPluginChainDrain(t *testing.T) {
	c := engine.NewPluginChain()
	a := c.AddEffect("a", &gainEffect{gain: 2})
	b := c.AddEffect("b", &gainEffect{gain: 3})
	a.RequestDelete()
	b.RequestDuplicate()
	// gainEffect cannot be cloned
	if err := c.Drain(); err == nil {
		t.Fatal("expected an error for duplicating a processor that cannot be cloned")
	}
	if e := c.Effects(); len(e) != 1 || e[0] != b {
		t.Fatalf("unexpected effects after drain: %v", e)
	}
}

func TestEngineSilencesOnError(t *testing.T) {
	s := newSession(t, false)
	tr, _ := s.AddTrack(engine.AudioTrack, "a")
	fireConst(t, s, tr, 0.5)
	tr.Chain().AddEffect("fail", failingEffect{})
	buf := make(lumix.AudioBuffer, 32)
	if err := s.Process(buf); err != nil {
		t.Fatalf("Process should not return errors, got %v", err)
	}
	for _, v := range buf {
		if v != [2]float32{} {
			t.Fatalf("a failing track should be silent, got %v", v)
		}
	}
	s.Update(0)
}

func TestFailingTrackOnlySilencesItself(t *testing.T) {
	s := newSession(t, false)
	var alerts []engine.Alert
	s.OnAlert = func(a engine.Alert) { alerts = append(alerts, a) }
	group, _ := s.AddTrack(engine.GroupTrack, "group")
	good, _ := s.AddTrack(engine.AudioTrack, "good")
	member, _ := s.AddTrack(engine.AudioTrack, "member")
	bad, _ := s.AddTrack(engine.AudioTrack, "bad")
	for _, tr := range []*engine.Track{member, bad} {
		if err := s.AddTrackToGroup(group, tr); err != nil {
			t.Fatalf("AddTrackToGroup failed: %v", err)
		}
	}
	fireConst(t, s, good, 0.25)
	fireConst(t, s, member, 0.125)
	fireConst(t, s, bad, 0.5)
	bad.Chain().AddEffect("fail", failingEffect{})
	for range 3 {
		// the effect keeps failing on every buffer
		expectConst(t, process(t, s), 0.375)
	}
	s.Update(0)
	if len(alerts) == 0 {
		t.Fatal("the failing track should raise an alert")
	}
	for _, a := range alerts {
		if a.Name != "TrackFailed" || a.Priority != engine.Error || !strings.HasPrefix(a.Message, "bad: ") {
			t.Fatalf("unexpected alert %+v", a)
		}
	}
}

func almostEqual(a, b float32) bool {
	d := a - b
	return d < 1e-4 && d > -1e-4
}
