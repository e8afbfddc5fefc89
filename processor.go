package lumix

type (
	// Processor is an effect or an instrument in a plugin chain. Process is
	// called from the audio callback and transforms the buffer in place; it
	// must not block. Close releases any resources the processor holds and is
	// only called once the audio callback no longer references the
	// processor.
	Processor interface {
		Process(buf AudioBuffer) error
		Close() error
	}

	// Instrument is a Processor that synthesizes audio from note events. Its
	// Process overwrites the buffer. The event methods are called from the
	// audio callback, right before Process.
	Instrument interface {
		Processor
		NoteOn(channel, key, velocity int)
		NoteOff(channel, key int)
		ControlChange(channel, controller, value int)
		Sustain(on bool)
	}

	// Cloner is implemented by processors that can be duplicated.
	Cloner interface {
		Clone() (Processor, error)
	}

	// Wrapper is implemented by processors that wrap another processor, e.g.
	// a hosted native plugin behind an adapter.
	Wrapper interface {
		Underlying() Processor
	}
)

// Underlying finds a processor of type T from p, unwrapping Wrappers until
// one is found.
func Underlying[T any](p Processor) (ret T, ok bool) {
	for p != nil {
		if ret, ok = p.(T); ok {
			return ret, true
		}
		w, isWrapper := p.(Wrapper)
		if !isWrapper {
			break
		}
		p = w.Underlying()
	}
	return ret, false
}
