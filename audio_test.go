package lumix_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/vsariola/lumix"
)

func TestFlatSharesMemory(t *testing.T) {
	buf := make(lumix.AudioBuffer, 3)
	flat := buf.Flat()
	if len(flat) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(flat))
	}
	flat[3] = 0.5
	if buf[1][1] != 0.5 {
		t.Fatalf("Flat should alias the buffer, got %v", buf)
	}
	if lumix.AudioBuffer(nil).Flat() != nil {
		t.Fatal("Flat of an empty buffer should be nil")
	}
}

func TestResizeKeepsCapacity(t *testing.T) {
	buf := make(lumix.AudioBuffer, 4, 16)
	if r := buf.Resize(10); len(r) != 10 || cap(r) != 16 {
		t.Fatalf("resize within capacity should not reallocate: len %d cap %d", len(r), cap(r))
	}
	if r := buf.Resize(20); len(r) != 20 {
		t.Fatalf("resize beyond capacity should grow, got len %d", len(r))
	}
}

func TestWavExport(t *testing.T) {
	buf := lumix.AudioBuffer{{0, 0}, {0.5, -0.5}, {2, -2}}
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := buf.Wav(f, 44100, true); err != nil {
		t.Fatalf("cannot export wav: %v", err)
	}
	f.Close()
	f, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("cannot decode exported wav: %v", err)
	}
	if dec.NumChans != 2 || dec.SampleRate != 44100 || dec.BitDepth != 16 {
		t.Fatalf("unexpected format: %d ch, %d Hz, %d bit", dec.NumChans, dec.SampleRate, dec.BitDepth)
	}
	want := []int{0, 0, 16383, -16383, 32767, -32767}
	if len(pcm.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(pcm.Data))
	}
	for i, v := range want {
		if pcm.Data[i] != v {
			t.Errorf("sample %d: got %d, want %d", i, pcm.Data[i], v)
		}
	}
}

func TestDecibel(t *testing.T) {
	if g := lumix.Decibel(0).Linear(); g != 1 {
		t.Fatalf("0 dB should be unity gain, got %v", g)
	}
	if g := lumix.Decibel(-20).Linear(); g < 0.0999 || g > 0.1001 {
		t.Fatalf("-20 dB should be 0.1, got %v", g)
	}
	if d := lumix.ToDecibel(0); d != lumix.MinDecibel {
		t.Fatalf("silence should be MinDecibel, got %v", d)
	}
}

type (
	innerProc struct{}
	wrapperProc struct{ inner lumix.Processor }
)

func (innerProc) Process(lumix.AudioBuffer) error     { return nil }
func (innerProc) Close() error                        { return nil }
func (w wrapperProc) Process(lumix.AudioBuffer) error { return nil }
func (w wrapperProc) Close() error                    { return nil }
func (w wrapperProc) Underlying() lumix.Processor     { return w.inner }

func TestUnderlying(t *testing.T) {
	p := wrapperProc{inner: wrapperProc{inner: innerProc{}}}
	if _, ok := lumix.Underlying[innerProc](p); !ok {
		t.Fatal("Underlying should find the innermost processor")
	}
	if _, ok := lumix.Underlying[lumix.Instrument](p); ok {
		t.Fatal("no instrument is wrapped")
	}
}
