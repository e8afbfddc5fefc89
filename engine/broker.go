package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vsariola/lumix"
)

type (
	// Broker carries messages from the audio callback to the control thread.
	// The audio callback only ever sends with TrySend, so it never blocks; if
	// the channel is full, the message is dropped. The broker also has a
	// sync.Pool for *lumix.AudioBuffers, so buffers can be passed around
	// without allocating new memory every time.
	Broker struct {
		ToControl chan any // *Alert, LevelMsg

		bufferPool sync.Pool
	}

	// LevelMsg is sent by the meter of a track (or the master, with MasterID
	// as TrackID) every time a metering window is complete.
	LevelMsg struct {
		TrackID uuid.UUID
		Level   Level
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToControl:  make(chan any, 1024),
		bufferPool: sync.Pool{New: func() any { return &lumix.AudioBuffer{} }},
	}
}

// GetAudioBuffer returns an audio buffer from the buffer pool, with length n.
// The contents are not cleared. After using the buffer, it should be returned
// to the pool with PutAudioBuffer.
func (b *Broker) GetAudioBuffer(n int) *lumix.AudioBuffer {
	buf := b.bufferPool.Get().(*lumix.AudioBuffer)
	*buf = buf.Resize(n)
	return buf
}

// PutAudioBuffer returns an audio buffer to the buffer pool. Its length is
// resetted (but capacity kept) before returning it to the pool.
func (b *Broker) PutAudioBuffer(buf *lumix.AudioBuffer) {
	if len(*buf) > 0 {
		*buf = (*buf)[:0]
	}
	b.bufferPool.Put(buf)
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
