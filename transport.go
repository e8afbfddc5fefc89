package lumix

import (
	"fmt"
	"math"
)

const (
	// ReferenceTempo is the tempo used for tempo-independent conversions, e.g.
	// the raw length of media before it is scheduled.
	ReferenceTempo = 120.0

	// BeatsPerBar is the number of beats in a bar. The timeline does not
	// support time signatures, so it is fixed.
	BeatsPerBar = 4

	DefaultPPQ            = 960
	DefaultGridResolution = 4
)

// Transport is the clock of the timeline. It counts ticks while running,
// driven by the elapsed wall-clock time and the current tempo, and converts
// between ticks, seconds and musical time.
//
// The tempo is global and instantaneous: changing it rescales the future
// advance and all conversions, but ticks that already elapsed are not
// reinterpreted.
//
// Transport is not safe for concurrent use; it belongs to the control thread.
type Transport struct {
	ppq            int
	gridResolution int
	tempo          float64

	position         float64 // in ticks, fractional part kept so that advancing does not drift
	lastRunStartTick int64
	running          bool
}

// NewTransport returns a stopped transport at tick 0. ppq is the number of
// ticks per quarter note, tempo is in beats per minute.
func NewTransport(ppq int, tempo float64) (*Transport, error) {
	if ppq <= 0 {
		return nil, &ConfigurationError{Op: "new transport", Err: fmt.Errorf("ppq must be positive, got %d", ppq)}
	}
	if tempo <= 0 || math.IsNaN(tempo) || math.IsInf(tempo, 0) {
		return nil, &ConfigurationError{Op: "new transport", Err: fmt.Errorf("tempo must be positive, got %v", tempo)}
	}
	return &Transport{ppq: ppq, tempo: tempo, gridResolution: DefaultGridResolution}, nil
}

func (t *Transport) PPQ() int                { return t.ppq }
func (t *Transport) Tempo() float64          { return t.tempo }
func (t *Transport) Running() bool           { return t.running }
func (t *Transport) CurrentTick() int64      { return int64(t.position) }
func (t *Transport) LastRunStartTick() int64 { return t.lastRunStartTick }
func (t *Transport) GridResolution() int     { return t.gridResolution }

// TicksPerBar is 4*PPQ; see BeatsPerBar.
func (t *Transport) TicksPerBar() int64 { return int64(BeatsPerBar * t.ppq) }

// SetTempo changes the tempo immediately.
func (t *Transport) SetTempo(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return &ConfigurationError{Op: "set tempo", Err: fmt.Errorf("tempo must be positive, got %v", bpm)}
	}
	t.tempo = bpm
	return nil
}

// SetGridResolution sets the snapping grid, in beats. It is independent of
// BeatsPerBar.
func (t *Transport) SetGridResolution(beats int) error {
	if beats <= 0 {
		return &ConfigurationError{Op: "set grid resolution", Err: fmt.Errorf("grid resolution must be positive, got %d", beats)}
	}
	t.gridResolution = beats
	return nil
}

// Start starts the clock and remembers the current tick, so that Stop can
// return to it. Starting a running transport does nothing.
func (t *Transport) Start() {
	if t.running {
		return
	}
	t.lastRunStartTick = t.CurrentTick()
	t.running = true
}

// Stop stops the clock. The position returns to the tick where the last run
// started or, if moveToStart is true, to 0, in which case the remembered start
// tick is cleared as well. Stopping also works on a stopped transport, e.g. to
// return to the start.
func (t *Transport) Stop(moveToStart bool) {
	t.running = false
	if moveToStart {
		t.lastRunStartTick = 0
		t.position = 0
		return
	}
	t.position = float64(t.lastRunStartTick)
}

// Advance moves the clock forward by the elapsed wall-clock time, using the
// current tempo. It does nothing while stopped. It should be called once per
// control frame with the time elapsed since the previous call.
func (t *Transport) Advance(elapsedSeconds float64) {
	if !t.running || elapsedSeconds <= 0 {
		return
	}
	t.position += elapsedSeconds * t.tempo / 60 * float64(t.ppq)
}

// Seek moves the playhead. The transport must be stopped. Negative ticks
// are clamped to 0.
func (t *Transport) Seek(tick int64) error {
	if t.running {
		return ErrNotStopped
	}
	t.position = float64(max(tick, 0))
	return nil
}

// TicksToSeconds converts ticks to seconds at the current tempo or, if
// useTempo is false, at ReferenceTempo.
func (t *Transport) TicksToSeconds(ticks int64, useTempo bool) float64 {
	return float64(ticks) / float64(t.ppq) * 60 / t.bpm(useTempo)
}

// SecondsToTicks converts seconds to ticks, rounding to the nearest tick, at
// the current tempo or, if useTempo is false, at ReferenceTempo.
func (t *Transport) SecondsToTicks(seconds float64, useTempo bool) int64 {
	return int64(math.Round(seconds * t.bpm(useTempo) / 60 * float64(t.ppq)))
}

// MusicalTime converts ticks to 0-based bars, beats and ticks.
func (t *Transport) MusicalTime(ticks int64) MusicalTime {
	tpb := t.TicksPerBar()
	bars := ticks / tpb
	rem := ticks % tpb
	return MusicalTime{
		Bars:  int(bars),
		Beats: int(rem / int64(t.ppq)),
		Ticks: int(rem % int64(t.ppq)),
	}
}

// Ticks converts a 0-based musical time to ticks.
func (t *Transport) Ticks(m MusicalTime) int64 {
	return int64(m.Bars)*t.TicksPerBar() + int64(m.Beats)*int64(t.ppq) + int64(m.Ticks)
}

// Normalize carries overflowing ticks into beats and beats into bars.
func (t *Transport) Normalize(m MusicalTime) MusicalTime {
	return t.MusicalTime(t.Ticks(m))
}

// SnapToGrid rounds the tick to the nearest multiple of PPQ*GridResolution.
func (t *Transport) SnapToGrid(tick int64) int64 {
	grid := int64(t.ppq * t.gridResolution)
	return int64(math.Round(float64(tick)/float64(grid))) * grid
}

func (t *Transport) bpm(useTempo bool) float64 {
	if useTempo {
		return t.tempo
	}
	return ReferenceTempo
}
