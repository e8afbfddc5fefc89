package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vsariola/lumix"
)

type (
	// PluginChain is an optional instrument followed by an ordered list of
	// effects. The instrument runs first, then each effect in order, each
	// transforming the buffer in place. Disabled slots are skipped.
	//
	// Slots can be added and removed from the control thread while the audio
	// callback is processing: the slots are an immutable snapshot replaced on
	// every change. A removed processor is closed only once the audio callback
	// has finished the pass that might still be using it.
	PluginChain struct {
		mu    sync.Mutex // serializes the writers
		state atomic.Pointer[chainState]

		epoch     epoch
		graveyard graveyard
	}

	chainState struct {
		instrument *Slot
		effects    []*Slot
	}

	// Slot holds one processor in a PluginChain.
	Slot struct {
		ID        uuid.UUID
		Name      string
		processor lumix.Processor

		enabled            atomic.Bool
		deleteRequested    atomic.Bool
		duplicateRequested atomic.Bool
	}

	// Loader creates a processor, e.g. by loading a plugin.
	Loader func() (lumix.Processor, error)
)

func NewPluginChain() *PluginChain {
	c := &PluginChain{}
	c.state.Store(&chainState{})
	return c
}

func newSlot(name string, p lumix.Processor) *Slot {
	s := &Slot{ID: uuid.New(), Name: name, processor: p}
	s.enabled.Store(true)
	return s
}

func (s *Slot) Processor() lumix.Processor { return s.processor }
func (s *Slot) Enabled() bool              { return s.enabled.Load() }

// SetEnabled enables or bypasses the slot. A bypassed slot stays in the
// chain but is not processed.
func (s *Slot) SetEnabled(enabled bool) { s.enabled.Store(enabled) }

// RequestDelete marks the slot to be removed by the next Drain.
func (s *Slot) RequestDelete() { s.deleteRequested.Store(true) }

// RequestDuplicate marks the slot to be duplicated by the next Drain.
func (s *Slot) RequestDuplicate() { s.duplicateRequested.Store(true) }

// Process runs the enabled instrument and effects on buf.
func (c *PluginChain) Process(buf lumix.AudioBuffer) error {
	c.epoch.enter()
	defer c.epoch.exit()
	st := c.state.Load()
	if st.instrument != nil && st.instrument.Enabled() {
		if err := st.instrument.processor.Process(buf); err != nil {
			return fmt.Errorf("instrument %s failed: %w", st.instrument.Name, err)
		}
	}
	for _, s := range st.effects {
		if !s.Enabled() {
			continue
		}
		if err := s.processor.Process(buf); err != nil {
			return fmt.Errorf("effect %s failed: %w", s.Name, err)
		}
	}
	return nil
}

// InstrumentSlot returns the instrument slot, or nil if there is none.
func (c *PluginChain) InstrumentSlot() *Slot { return c.state.Load().instrument }

// Instrument returns the instrument of the chain, unwrapping its processor if
// needed, or nil if there is none.
func (c *PluginChain) Instrument() lumix.Instrument {
	s := c.state.Load().instrument
	if s == nil {
		return nil
	}
	inst, _ := lumix.Underlying[lumix.Instrument](s.processor)
	return inst
}

// Effects returns the effect slots in processing order.
func (c *PluginChain) Effects() []*Slot {
	return slices.Clone(c.state.Load().effects)
}

// SetInstrument puts p in the instrument slot. p must implement
// lumix.Instrument, directly or through lumix.Wrapper. The previous instrument
// is closed once the audio callback no longer uses it.
func (c *PluginChain) SetInstrument(name string, p lumix.Processor) (*Slot, error) {
	if _, ok := lumix.Underlying[lumix.Instrument](p); !ok {
		return nil, &lumix.ConfigurationError{Op: "set instrument", Err: fmt.Errorf("%s is not an instrument", name)}
	}
	slot := newSlot(name, p)
	c.update(func(st *chainState) []*Slot {
		old := st.instrument
		st.instrument = slot
		if old == nil {
			return nil
		}
		return []*Slot{old}
	})
	return slot, nil
}

// LoadInstrument creates the instrument with load and puts it in the
// instrument slot. If loading fails, a *lumix.ResourceError is returned and
// the chain is unchanged.
func (c *PluginChain) LoadInstrument(name string, load Loader) (*Slot, error) {
	p, err := load()
	if err != nil {
		return nil, &lumix.ResourceError{Op: "load instrument " + name, Err: err}
	}
	slot, err := c.SetInstrument(name, p)
	if err != nil {
		p.Close()
		return nil, err
	}
	return slot, nil
}

// RemoveInstrument empties the instrument slot. It reports whether there was
// an instrument.
func (c *PluginChain) RemoveInstrument() bool {
	removed := c.update(func(st *chainState) []*Slot {
		if st.instrument == nil {
			return nil
		}
		old := st.instrument
		st.instrument = nil
		return []*Slot{old}
	})
	return len(removed) > 0
}

// AddEffect appends p to the end of the chain.
func (c *PluginChain) AddEffect(name string, p lumix.Processor) *Slot {
	return c.InsertEffect(-1, name, p)
}

// InsertEffect inserts p at the given position; an index out of range
// appends.
func (c *PluginChain) InsertEffect(index int, name string, p lumix.Processor) *Slot {
	slot := newSlot(name, p)
	c.update(func(st *chainState) []*Slot {
		if index < 0 || index > len(st.effects) {
			index = len(st.effects)
		}
		st.effects = slices.Insert(st.effects, index, slot)
		return nil
	})
	return slot
}

// LoadEffect creates the effect with load and appends it. If loading fails, a
// *lumix.ResourceError is returned and no slot is inserted.
func (c *PluginChain) LoadEffect(name string, load Loader) (*Slot, error) {
	p, err := load()
	if err != nil {
		return nil, &lumix.ResourceError{Op: "load effect " + name, Err: err}
	}
	return c.AddEffect(name, p), nil
}

// RemoveEffect removes the slot from the chain and closes its processor once
// the audio callback no longer uses it. It reports whether the slot was found.
func (c *PluginChain) RemoveEffect(slot *Slot) bool {
	removed := c.update(func(st *chainState) []*Slot {
		i := slices.Index(st.effects, slot)
		if i < 0 {
			return nil
		}
		st.effects = slices.Delete(st.effects, i, i+1)
		return []*Slot{slot}
	})
	return len(removed) > 0
}

// MoveEffect moves the slot to the given position.
func (c *PluginChain) MoveEffect(slot *Slot, index int) bool {
	found := false
	c.update(func(st *chainState) []*Slot {
		i := slices.Index(st.effects, slot)
		if i < 0 {
			return nil
		}
		found = true
		st.effects = slices.Delete(st.effects, i, i+1)
		index = max(0, min(index, len(st.effects)))
		st.effects = slices.Insert(st.effects, index, slot)
		return nil
	})
	return found
}

// Drain applies the pending delete and duplicate requests of the slots.
// Duplicating needs a processor implementing lumix.Cloner; the duplicate is
// inserted right after the original. Errors of failed duplications are
// joined.
func (c *PluginChain) Drain() error {
	st := c.state.Load()
	var errs []error
	if s := st.instrument; s != nil {
		s.duplicateRequested.Store(false) // a chain has only one instrument
		if s.deleteRequested.Load() {
			c.RemoveInstrument()
		}
	}
	for _, s := range st.effects {
		if s.deleteRequested.Load() {
			c.RemoveEffect(s)
			continue
		}
		if !s.duplicateRequested.Swap(false) {
			continue
		}
		cloner, ok := s.processor.(lumix.Cloner)
		if !ok {
			errs = append(errs, &lumix.ResourceError{Op: "duplicate " + s.Name, Err: errors.New("processor cannot be duplicated")})
			continue
		}
		p, err := cloner.Clone()
		if err != nil {
			errs = append(errs, &lumix.ResourceError{Op: "duplicate " + s.Name, Err: err})
			continue
		}
		dup := c.InsertEffect(slices.Index(c.state.Load().effects, s)+1, s.Name, p)
		dup.SetEnabled(s.Enabled())
	}
	return errors.Join(errs...)
}

// Collect closes the removed processors the audio callback no longer uses.
// Returns the number of processors still waiting to be closed.
func (c *PluginChain) Collect() int { return c.graveyard.collect(&c.epoch) }

// Close removes and closes all the processors. The chain must no longer be
// reachable from the audio callback.
func (c *PluginChain) Close() error {
	c.graveyard.collect(&c.epoch)
	old := c.state.Swap(&chainState{})
	var errs []error
	if old.instrument != nil {
		errs = append(errs, old.instrument.processor.Close())
	}
	for _, s := range old.effects {
		errs = append(errs, s.processor.Close())
	}
	return errors.Join(errs...)
}

func (c *PluginChain) update(f func(st *chainState) []*Slot) []*Slot {
	c.mu.Lock()
	old := c.state.Load()
	next := &chainState{instrument: old.instrument, effects: slices.Clone(old.effects)}
	removed := f(next)
	c.state.Store(next)
	c.mu.Unlock()
	if len(removed) > 0 {
		c.graveyard.bury(&c.epoch, func() {
			for _, s := range removed {
				s.processor.Close()
			}
		})
	}
	return removed
}
