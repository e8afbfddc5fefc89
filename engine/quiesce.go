package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

type (
	// epoch lets the control thread find out when the audio callback can no
	// longer see a snapshot that was replaced. The audio callback brackets
	// every pass with enter and exit; nested passes on the same thread only
	// count once.
	epoch struct {
		depth  atomic.Int32
		passes atomic.Uint64
	}

	// graveyard holds the releases of replaced resources until the audio
	// callback has finished the pass that might still reference them.
	graveyard struct {
		mu      sync.Mutex
		pending []retired
	}

	retired struct {
		pass    uint64
		release func()
	}
)

func (e *epoch) enter() { e.depth.Add(1) }

func (e *epoch) exit() {
	if e.depth.Load() == 1 {
		e.passes.Add(1)
	}
	e.depth.Add(-1)
}

// bury must be called after the snapshot referencing the resource has been
// replaced. If the audio callback is not inside a pass, the resource is
// released immediately; otherwise it is released by a later collect, once the
// current pass has finished.
func (g *graveyard) bury(e *epoch, release func()) {
	pass := e.passes.Load()
	if e.depth.Load() == 0 {
		release()
		return
	}
	g.mu.Lock()
	g.pending = append(g.pending, retired{pass: pass, release: release})
	g.mu.Unlock()
}

// collect releases everything that is no longer referenced and returns the
// number of releases still pending.
func (g *graveyard) collect(e *epoch) int {
	g.mu.Lock()
	passes, idle := e.passes.Load(), e.depth.Load() == 0
	var ready []func()
	kept := g.pending[:0]
	for _, r := range g.pending {
		if idle || passes > r.pass {
			ready = append(ready, r.release)
			continue
		}
		kept = append(kept, r)
	}
	clear(g.pending[len(kept):])
	g.pending = kept
	n := len(kept)
	g.mu.Unlock()
	for _, f := range ready {
		f()
	}
	return n
}

// flush waits until everything has been released or the timeout expires.
// Returns false on timeout.
func (g *graveyard) flush(e *epoch, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for g.collect(e) > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}
