package plugins

import (
	"sync/atomic"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/lumix"
)

type (
	// Utility is a gain, pan and stereo image effect.
	Utility struct {
		params atomic.Pointer[UtilityParams]
	}

	UtilityParams struct {
		Gain lumix.Decibel
		// Pan is in [-1,1], using the same linear law as the track pan.
		Pan float64
		// Width in percent scales the side signal by (Width+100)/100: -100 is
		// mono, 0 leaves the image as is, 100 doubles the side signal.
		Width       float64
		Mono        bool
		InvertLeft  bool
		InvertRight bool
	}
)

func NewUtility() *Utility {
	u := &Utility{}
	u.params.Store(&UtilityParams{})
	return u
}

func (u *Utility) Params() UtilityParams { return *u.params.Load() }

// SetParams can be called while the audio callback is processing.
func (u *Utility) SetParams(p UtilityParams) {
	p.Pan = max(-1, min(1, p.Pan))
	p.Width = max(-100, min(100, p.Width))
	u.params.Store(&p)
}

func (u *Utility) Process(buf lumix.AudioBuffer) error {
	p := u.params.Load()
	if p.Mono || p.Width != 0 {
		side := float32((p.Width + 100) / 100)
		if p.Mono {
			side = 0
		}
		for i, s := range buf {
			mid, sd := (s[0]+s[1])/2, (s[0]-s[1])/2*side
			buf[i] = [2]float32{mid + sd, mid - sd}
		}
	}
	left, right := p.Gain.Linear(), p.Gain.Linear()
	if p.InvertLeft {
		left = -left
	}
	if p.InvertRight {
		right = -right
	}
	if p.Pan > 0 {
		left *= float32(1 - p.Pan)
	}
	if p.Pan < 0 {
		right *= float32(1 + p.Pan)
	}
	if left == right {
		vek32.MulNumber_Inplace(buf.Flat(), left)
		return nil
	}
	for i := range buf {
		buf[i][0] *= left
		buf[i][1] *= right
	}
	return nil
}

func (u *Utility) Close() error { return nil }

func (u *Utility) Clone() (lumix.Processor, error) {
	ret := NewUtility()
	ret.SetParams(u.Params())
	return ret, nil
}
