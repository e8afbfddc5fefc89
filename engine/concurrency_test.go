package engine_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vsariola/lumix"
	"github.com/vsariola/lumix/engine"
)

type (
	// countingEffect counts the buffers it processes after being closed.
	countingEffect struct {
		closed    atomic.Bool
		lateCalls *atomic.Int64
		closes    *atomic.Int64
	}

	// blockingEffect holds the audio callback inside Process until released.
	blockingEffect struct {
		entered chan struct{}
		release chan struct{}
		once    sync.Once
		closed  atomic.Bool
		late    atomic.Bool
	}
)

func (c *countingEffect) Process(buf lumix.AudioBuffer) error {
	if c.closed.Load() {
		c.lateCalls.Add(1)
	}
	return nil
}

func (c *countingEffect) Close() error {
	if !c.closed.Swap(true) {
		c.closes.Add(1)
	}
	return nil
}

func (b *blockingEffect) Process(buf lumix.AudioBuffer) error {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	if b.closed.Load() {
		b.late.Store(true)
	}
	return nil
}

func (b *blockingEffect) Close() error { b.closed.Store(true); return nil }

func TestRemovedEffectClosedAfterPass(t *testing.T) {
	s := newSession(t, false)
	tr, _ := s.AddTrack(engine.AudioTrack, "a")
	b := &blockingEffect{entered: make(chan struct{}), release: make(chan struct{})}
	slot := tr.Chain().AddEffect("block", b)
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make(lumix.AudioBuffer, 64)
		s.Process(buf)
	}()
	<-b.entered
	if !tr.Chain().RemoveEffect(slot) {
		t.Fatal("RemoveEffect did not find the slot")
	}
	s.Update(0)
	if b.closed.Load() {
		t.Fatal("the effect was closed while the audio callback was still using it")
	}
	close(b.release)
	<-done
	s.Update(0)
	if !b.closed.Load() || b.late.Load() {
		t.Fatal("the effect should be closed once the pass has finished")
	}
}

func TestEditsWhileProcessing(t *testing.T) {
	s := newSession(t, false)
	group, _ := s.AddTrack(engine.GroupTrack, "group")
	a, _ := s.AddTrack(engine.AudioTrack, "a")
	b, _ := s.AddTrack(engine.AudioTrack, "b")
	fireConst(t, s, a, 0.25)
	fireConst(t, s, b, 0.125)

	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make(lumix.AudioBuffer, 64)
		for !stop.Load() {
			s.Process(buf)
		}
	}()

	var lateCalls, closes atomic.Int64
	removed := 0
	for i := range 3000 {
		tr := a
		if i%2 == 1 {
			tr = b
		}
		e := &countingEffect{lateCalls: &lateCalls, closes: &closes}
		slot := tr.Chain().AddEffect("count", e)
		if i%3 == 0 {
			if err := s.AddTrackToGroup(group, tr); err != nil {
				t.Fatalf("AddTrackToGroup failed: %v", err)
			}
		} else if err := s.AddTrackToMaster(tr); err != nil {
			t.Fatalf("AddTrackToMaster failed: %v", err)
		}
		if tr.Chain().RemoveEffect(slot) {
			removed++
		}
		s.Update(0)
	}
	stop.Store(true)
	wg.Wait()
	s.Update(0)

	if n := lateCalls.Load(); n != 0 {
		t.Fatalf("closed effects were processed %d times", n)
	}
	if n := closes.Load(); n != int64(removed) {
		t.Fatalf("%d of %d removed effects were closed", n, removed)
	}
}
