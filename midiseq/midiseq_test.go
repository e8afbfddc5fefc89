package midiseq_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/vsariola/lumix"
	"github.com/vsariola/lumix/midiseq"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func encode(t *testing.T) *bytes.Buffer {
	t.Helper()
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(480)
	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(100))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		t.Fatalf("cannot add tempo track: %v", err)
	}
	var notes smf.Track
	notes.Add(0, midi.NoteOn(0, 60, 100))
	notes.Add(480, midi.NoteOff(0, 60))
	notes.Add(0, midi.ControlChange(0, 64, 127))
	notes.Add(240, midi.NoteOn(1, 62, 0))
	notes.Close(240)
	if err := sm.Add(notes); err != nil {
		t.Fatalf("cannot add note track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := sm.WriteTo(&buf); err != nil {
		t.Fatalf("cannot write smf: %v", err)
	}
	return &buf
}

func TestRead(t *testing.T) {
	seq, err := midiseq.Read("riff", encode(t))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	want := []lumix.MIDIEvent{
		{Time: 0, Kind: lumix.NoteOnEvent, Channel: 0, Data1: 60, Data2: 100},
		{Time: 0.5, Kind: lumix.NoteOffEvent, Channel: 0, Data1: 60},
		{Time: 0.5, Kind: lumix.ControlChangeEvent, Channel: 0, Data1: lumix.ControllerSustain, Data2: 127},
		{Time: 0.75, Kind: lumix.NoteOffEvent, Channel: 1, Data1: 62}, // note on with zero velocity
	}
	if len(seq.Events) != len(want) {
		t.Fatalf("got %d events, expected %d: %v", len(seq.Events), len(want), seq.Events)
	}
	for i, e := range seq.Events {
		if e != want[i] {
			t.Fatalf("event %d was %+v, expected %+v", i, e, want[i])
		}
	}
	if math.Abs(seq.Length-1) > 1e-9 {
		t.Fatalf("length was %v, expected 1 second at the reference tempo", seq.Length)
	}
	if len(seq.Tempos) != 1 || math.Abs(seq.Tempos[0].BPM-100) > 1e-6 {
		t.Fatalf("tempo map was %v", seq.Tempos)
	}
	if seq.Name != "riff" {
		t.Fatalf("name was %q", seq.Name)
	}
}

func TestEventIgnoresOtherMessages(t *testing.T) {
	if _, ok := midiseq.Event(midi.ProgramChange(0, 5), 0); ok {
		t.Fatal("program change should be ignored")
	}
}
