package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vsariola/lumix"
	"github.com/vsariola/lumix/media"
)

const recorderBufferFrames = 1024

type (
	// Recorder captures audio from an input device into a .wav file on its
	// own goroutine.
	Recorder struct {
		capture   lumix.CaptureSource
		file      *os.File
		writer    *media.WAVWriter
		startTick int64
		stop      chan struct{}
		done      chan error
		broker    *Broker
	}

	// Take is a finished recording.
	Take struct {
		Path      string
		StartTick int64
		Frames    int
		Format    lumix.Format
	}
)

// StartRecorder creates the file at path and starts capturing. startTick is
// the transport position the recording belongs to.
func StartRecorder(capture lumix.CaptureSource, path string, startTick int64, broker *Broker) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &lumix.ResourceError{Op: "start recording", Err: err}
	}
	r := &Recorder{
		capture:   capture,
		file:      f,
		writer:    media.NewWAVWriter(f, capture.Format().SampleRate),
		startTick: startTick,
		stop:      make(chan struct{}),
		done:      make(chan error, 1),
		broker:    broker,
	}
	go r.run()
	return r, nil
}

func (r *Recorder) run() {
	buf := make(lumix.AudioBuffer, recorderBufferFrames)
	var err error
loop:
	for {
		select {
		case <-r.stop:
			break loop
		default:
		}
		var n int
		n, err = r.capture.ReadAudio(buf)
		if n > 0 {
			if werr := r.writer.Write(buf[:n]); werr != nil {
				err = werr
			}
		}
		if errors.Is(err, io.EOF) {
			err = nil
			break loop
		}
		if err != nil {
			select {
			case <-r.stop: // the read was interrupted by Stop
				err = nil
				break loop
			default:
			}
			if r.broker != nil {
				TrySend(r.broker.ToControl, any(&Alert{Name: "RecordingFailed", Priority: Error, Message: err.Error()}))
			}
			break loop
		}
	}
	r.done <- errors.Join(err, r.writer.Close(), r.file.Close())
}

// Stop ends the capture and waits until the file has been written, at most
// timeout. The capture source is closed, which also unblocks a pending read.
func (r *Recorder) Stop(timeout time.Duration) (*Take, error) {
	close(r.stop)
	cerr := r.capture.Close()
	err, ok := TimeoutReceive(r.done, timeout)
	if !ok {
		return nil, fmt.Errorf("recording to %s did not finish in %v", r.file.Name(), timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("recording to %s failed: %w", r.file.Name(), err)
	}
	take := &Take{
		Path:      r.file.Name(),
		StartTick: r.startTick,
		Frames:    r.writer.Frames(),
		Format:    lumix.Stereo(r.capture.Format().SampleRate),
	}
	return take, cerr
}
