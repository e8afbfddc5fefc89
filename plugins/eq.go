package plugins

import (
	"math"
	"sync/atomic"

	"github.com/vsariola/lumix"
)

type (
	// SimpleEq is a single band equalizer: one biquad filter per channel.
	SimpleEq struct {
		sampleRate float64
		params     atomic.Pointer[EqParams]
		current    *EqParams // the params the coefficients were computed for
		coeffs     biquad
		state      [2]biquadState
	}

	EqParams struct {
		Mode      EqMode
		Frequency float64 // Hz
		Q         float64 // for the shelves, the shelf slope
		Gain      lumix.Decibel
	}

	EqMode int

	biquad      struct{ b0, b1, b2, a1, a2 float64 }
	biquadState struct{ x1, x2, y1, y2 float64 }
)

const (
	EqOff EqMode = iota
	EqLowPass
	EqHighPass
	EqLowShelf
	EqHighShelf
)

var eqModeNames = [...]string{"off", "lowpass", "highpass", "lowshelf", "highshelf"}

func (m EqMode) String() string {
	if m < 0 || int(m) >= len(eqModeNames) {
		return "unknown"
	}
	return eqModeNames[m]
}

// DefaultEqParams is a 4 kHz filter with Q 0.71 and no gain, switched off.
func DefaultEqParams() EqParams {
	return EqParams{Mode: EqOff, Frequency: 4000, Q: 0.71}
}

func NewSimpleEq(sampleRate int) *SimpleEq {
	e := &SimpleEq{sampleRate: float64(sampleRate)}
	p := DefaultEqParams()
	e.params.Store(&p)
	return e
}

func (e *SimpleEq) Params() EqParams { return *e.params.Load() }

// SetParams can be called while the audio callback is processing. The
// frequency is clamped below the Nyquist frequency.
func (e *SimpleEq) SetParams(p EqParams) {
	p.Frequency = max(10, min(p.Frequency, e.sampleRate*0.49))
	if p.Q <= 0 {
		p.Q = DefaultEqParams().Q
	}
	e.params.Store(&p)
}

func (e *SimpleEq) Process(buf lumix.AudioBuffer) error {
	p := e.params.Load()
	if p.Mode == EqOff {
		return nil
	}
	if p != e.current {
		e.coeffs = p.coefficients(e.sampleRate)
		if e.current == nil || e.current.Mode != p.Mode {
			e.state = [2]biquadState{}
		}
		e.current = p
	}
	for i := range buf {
		for c := range 2 {
			buf[i][c] = float32(e.coeffs.transform(&e.state[c], float64(buf[i][c])))
		}
	}
	return nil
}

func (e *SimpleEq) Close() error { return nil }

func (e *SimpleEq) Clone() (lumix.Processor, error) {
	ret := NewSimpleEq(int(e.sampleRate))
	ret.SetParams(e.Params())
	return ret, nil
}

// coefficients follow the audio EQ cookbook of Robert Bristow-Johnson.
func (p *EqParams) coefficients(sampleRate float64) biquad {
	w0 := 2 * math.Pi * p.Frequency / sampleRate
	cos, sin := math.Cos(w0), math.Sin(w0)
	var b0, b1, b2, a0, a1, a2 float64
	switch p.Mode {
	case EqLowPass, EqHighPass:
		alpha := sin / (2 * p.Q)
		a0, a1, a2 = 1+alpha, -2*cos, 1-alpha
		if p.Mode == EqLowPass {
			b0, b1, b2 = (1-cos)/2, 1-cos, (1-cos)/2
		} else {
			b0, b1, b2 = (1+cos)/2, -(1 + cos), (1+cos)/2
		}
	case EqLowShelf, EqHighShelf:
		a := math.Pow(10, float64(p.Gain)/40)
		alpha := sin / 2 * math.Sqrt((a+1/a)*(1/p.Q-1)+2)
		sq := 2 * math.Sqrt(a) * alpha
		if p.Mode == EqLowShelf {
			b0 = a * ((a + 1) - (a-1)*cos + sq)
			b1 = 2 * a * ((a - 1) - (a+1)*cos)
			b2 = a * ((a + 1) - (a-1)*cos - sq)
			a0 = (a + 1) + (a-1)*cos + sq
			a1 = -2 * ((a - 1) + (a+1)*cos)
			a2 = (a + 1) + (a-1)*cos - sq
		} else {
			b0 = a * ((a + 1) + (a-1)*cos + sq)
			b1 = -2 * a * ((a - 1) + (a+1)*cos)
			b2 = a * ((a + 1) + (a-1)*cos - sq)
			a0 = (a + 1) - (a-1)*cos + sq
			a1 = 2 * ((a - 1) - (a+1)*cos)
			a2 = (a + 1) - (a-1)*cos - sq
		}
	default:
		return biquad{b0: 1}
	}
	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

func (b *biquad) transform(s *biquadState, x float64) float64 {
	y := b.b0*x + b.b1*s.x1 + b.b2*s.x2 - b.a1*s.y1 - b.a2*s.y2
	s.x2, s.x1 = s.x1, x
	s.y2, s.y1 = s.y1, y
	return y
}
