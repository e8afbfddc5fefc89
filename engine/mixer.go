package engine

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/lumix"
)

type (
	// Source fills buffers with audio. Read always fills the whole buffer. A
	// source that has nothing more to play fills the rest of the buffer with
	// silence and returns io.EOF.
	Source interface {
		Read(buf lumix.AudioBuffer) error
	}

	// Input is a Source that can be connected to a Mixer.
	Input interface {
		Source
		Format() lumix.Format
	}

	// Mixer sums any number of inputs of the same format. Inputs can be added
	// and removed from the control thread while the audio callback is reading
	// the mixer: the list of inputs is an immutable snapshot that is replaced
	// on every change.
	//
	// An input that returns io.EOF is finished: it is no longer read and Prune
	// removes it.
	Mixer struct {
		format lumix.Format

		mu     sync.Mutex // serializes the writers
		inputs atomic.Pointer[[]*mixerInput]

		epoch     epoch
		graveyard graveyard

		scratch lumix.AudioBuffer // only touched by the audio callback
	}

	mixerInput struct {
		Input
		finished atomic.Bool
	}
)

func NewMixer(format lumix.Format) *Mixer {
	m := &Mixer{format: format}
	m.inputs.Store(&[]*mixerInput{})
	return m
}

func (m *Mixer) Format() lumix.Format { return m.format }

// Len returns the number of inputs, finished or not.
func (m *Mixer) Len() int { return len(*m.inputs.Load()) }

// Inputs returns the current inputs.
func (m *Mixer) Inputs() []Input {
	snapshot := *m.inputs.Load()
	ret := make([]Input, len(snapshot))
	for i, in := range snapshot {
		ret[i] = in.Input
	}
	return ret
}

// Contains reports whether in is an input of the mixer.
func (m *Mixer) Contains(in Input) bool {
	return slices.ContainsFunc(*m.inputs.Load(), func(mi *mixerInput) bool { return mi.Input == in })
}

// AddInput connects in to the mixer. The format of the input must be the same
// as the format of the mixer; otherwise a *lumix.ConfigurationError is
// returned and nothing changes. Adding an input that is already connected does
// nothing.
func (m *Mixer) AddInput(in Input) error {
	if f := in.Format(); f != m.format {
		return &lumix.ConfigurationError{
			Op:  "add mixer input",
			Err: fmt.Errorf("%w: input is %v, mixer is %v", lumix.ErrFormatMismatch, f, m.format),
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old := *m.inputs.Load()
	if slices.ContainsFunc(old, func(mi *mixerInput) bool { return mi.Input == in }) {
		return nil
	}
	next := make([]*mixerInput, len(old), len(old)+1)
	copy(next, old)
	next = append(next, &mixerInput{Input: in})
	m.inputs.Store(&next)
	return nil
}

// RemoveInput disconnects in from the mixer and reports whether it was
// connected. release, if not nil, is called once the audio callback can no
// longer be reading the input.
func (m *Mixer) RemoveInput(in Input, release func()) bool {
	removed := m.remove(func(mi *mixerInput) bool { return mi.Input == in })
	if len(removed) == 0 {
		return false
	}
	if release != nil {
		m.graveyard.bury(&m.epoch, release)
	}
	return true
}

// RemoveFunc disconnects all the inputs for which del returns true. release,
// if not nil, is called for each of them once the audio callback can no longer
// be reading them.
func (m *Mixer) RemoveFunc(del func(Input) bool, release func(Input)) []Input {
	removed := m.remove(func(mi *mixerInput) bool { return del(mi.Input) })
	m.release(removed, release)
	return removed
}

// Prune disconnects the finished inputs, calling release for each of them
// once the audio callback can no longer be reading them.
func (m *Mixer) Prune(release func(Input)) []Input {
	removed := m.remove(func(mi *mixerInput) bool { return mi.finished.Load() })
	m.release(removed, release)
	return removed
}

// Collect runs the releases whose inputs the audio callback can no longer be
// reading. Returns the number of releases still pending.
func (m *Mixer) Collect() int { return m.graveyard.collect(&m.epoch) }

func (m *Mixer) remove(del func(*mixerInput) bool) []Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := *m.inputs.Load()
	next := make([]*mixerInput, 0, len(old))
	var removed []Input
	for _, mi := range old {
		if del(mi) {
			removed = append(removed, mi.Input)
			continue
		}
		next = append(next, mi)
	}
	if len(removed) > 0 {
		m.inputs.Store(&next)
	}
	return removed
}

func (m *Mixer) release(removed []Input, release func(Input)) {
	if len(removed) == 0 || release == nil {
		return
	}
	m.graveyard.bury(&m.epoch, func() {
		for _, in := range removed {
			release(in)
		}
	})
}

// Read sums all the unfinished inputs into buf. If an input fails, it is left
// out of this buffer and the other inputs are still mixed. The errors of the
// failing inputs are joined and returned; the mix in buf is valid even then.
func (m *Mixer) Read(buf lumix.AudioBuffer) error {
	m.epoch.enter()
	defer m.epoch.exit()
	buf.Clear()
	if len(m.scratch) < len(buf) {
		m.scratch = m.scratch.Resize(len(buf))
	}
	scratch := m.scratch[:len(buf)]
	var errs []error
	for _, in := range *m.inputs.Load() {
		if in.finished.Load() {
			continue
		}
		err := in.Read(scratch)
		if err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, err)
			continue
		}
		vek32.Add_Inplace(buf.Flat(), scratch.Flat())
		if err != nil {
			in.finished.Store(true)
		}
	}
	return errors.Join(errs...)
}
