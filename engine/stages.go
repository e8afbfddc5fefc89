package engine

import (
	"math"
	"sync/atomic"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/lumix"
)

type (
	// Stage processes a buffer in place.
	Stage interface {
		Process(buf lumix.AudioBuffer) error
	}

	// StereoStage applies the volume and the pan of a track. The pan law is
	// linear: panning right attenuates only the left channel and vice versa.
	StereoStage struct {
		volume atomic.Uint64 // math.Float64bits of the volume in dB
		pan    atomic.Uint64 // math.Float64bits of the pan in [-1,1]
	}

	// MeterStage measures the peak absolute sample value of each channel over
	// a fixed window and reports it every time the window is complete. The
	// audio passes through unchanged.
	MeterStage struct {
		window int // in frames
		count  int
		peak   Level
		last   [2]atomic.Uint32 // math.Float32bits of the last complete window
		tmp    []float32
		notify func(Level)
		reset  atomic.Bool
	}

	// Level is the linear peak of the left and right channel.
	Level [2]float32

	// MuteGate silences the audio while muted. It is always the last stage of
	// a track, so a muted track never shows up in the meter of its bus.
	MuteGate struct {
		muted atomic.Bool
	}
)

func NewStereoStage() *StereoStage { return &StereoStage{} }

func (s *StereoStage) SetVolume(db lumix.Decibel) {
	s.volume.Store(math.Float64bits(float64(db)))
}

func (s *StereoStage) Volume() lumix.Decibel {
	return lumix.Decibel(math.Float64frombits(s.volume.Load()))
}

// SetPan sets the pan, clamped to [-1,1]; -1 is hard left.
func (s *StereoStage) SetPan(pan float64) {
	s.pan.Store(math.Float64bits(math.Max(-1, math.Min(1, pan))))
}

func (s *StereoStage) Pan() float64 { return math.Float64frombits(s.pan.Load()) }

// Gains returns the left and right gain factors.
func (s *StereoStage) Gains() (left, right float32) {
	v := s.Volume().Linear()
	pan := float32(s.Pan())
	left, right = v, v
	if pan > 0 {
		left *= 1 - pan
	}
	if pan < 0 {
		right *= 1 + pan
	}
	return
}

func (s *StereoStage) Process(buf lumix.AudioBuffer) error {
	left, right := s.Gains()
	if left == 1 && right == 1 {
		return nil
	}
	for i := range buf {
		buf[i][0] *= left
		buf[i][1] *= right
	}
	return nil
}

// NewMeterStage returns a meter with the given window length in frames.
// notify is called from the audio callback and must not block; it can be nil.
func NewMeterStage(window int, notify func(Level)) *MeterStage {
	return &MeterStage{window: max(window, 1), notify: notify}
}

// Peak returns the peak level of the last complete window.
func (m *MeterStage) Peak() Level {
	return Level{math.Float32frombits(m.last[0].Load()), math.Float32frombits(m.last[1].Load())}
}

func (m *MeterStage) Process(buf lumix.AudioBuffer) error {
	if m.reset.Swap(false) {
		m.count = 0
		m.peak = Level{}
		for c := range 2 {
			m.last[c].Store(0)
		}
	}
	for len(buf) > 0 {
		n := min(len(buf), m.window-m.count)
		m.measure(buf[:n])
		buf = buf[n:]
		m.count += n
		if m.count < m.window {
			break
		}
		for c := range 2 {
			m.last[c].Store(math.Float32bits(m.peak[c]))
		}
		if m.notify != nil {
			m.notify(m.peak)
		}
		m.count = 0
		m.peak = Level{}
	}
	return nil
}

func (m *MeterStage) measure(chunk lumix.AudioBuffer) {
	if len(m.tmp) < len(chunk) {
		m.tmp = append(m.tmp, make([]float32, len(chunk)-len(m.tmp))...)
	}
	tmp := m.tmp[:len(chunk)]
	for c := range 2 {
		// deinterleave the channel
		for i := range chunk {
			tmp[i] = chunk[i][c]
		}
		vek32.Abs_Inplace(tmp)
		if p := vek32.Max(tmp); p > m.peak[c] {
			m.peak[c] = p
		}
	}
}

// Reset clears the meter before the next buffer is measured. It can be called
// from the control thread.
func (m *MeterStage) Reset() { m.reset.Store(true) }

func (g *MuteGate) SetMuted(muted bool) { g.muted.Store(muted) }
func (g *MuteGate) Muted() bool         { return g.muted.Load() }

func (g *MuteGate) Process(buf lumix.AudioBuffer) error {
	if g.muted.Load() {
		buf.Clear()
	}
	return nil
}

// Decibels converts the level to dB.
func (l Level) Decibels() [2]lumix.Decibel {
	return [2]lumix.Decibel{lumix.ToDecibel(l[0]), lumix.ToDecibel(l[1])}
}
