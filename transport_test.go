package lumix_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/vsariola/lumix"
)

func newTransport(t *testing.T, tempo float64) *lumix.Transport {
	t.Helper()
	tr, err := lumix.NewTransport(lumix.DefaultPPQ, tempo)
	if err != nil {
		t.Fatalf("cannot create transport: %v", err)
	}
	return tr
}

func TestTicksSecondsRoundTrip(t *testing.T) {
	for _, tempo := range []float64{60, 87.5, 120, 133, 174} {
		tr := newTransport(t, tempo)
		for _, ticks := range []int64{0, 1, 7, 959, 960, 3840, 123457, 10000000} {
			for _, useTempo := range []bool{false, true} {
				got := tr.SecondsToTicks(tr.TicksToSeconds(ticks, useTempo), useTempo)
				if got != ticks {
					t.Errorf("tempo %v, useTempo %v: round trip of %d ticks gave %d", tempo, useTempo, ticks, got)
				}
			}
		}
	}
}

func TestTicksToSecondsLinear(t *testing.T) {
	tr := newTransport(t, 120)
	if got := tr.TicksToSeconds(960, true); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("one beat at 120 bpm should be 0.5 s, got %v", got)
	}
	one := tr.TicksToSeconds(1000, true)
	if got := tr.TicksToSeconds(3000, true); math.Abs(got-3*one) > 1e-9 {
		t.Errorf("ticksToSeconds is not linear in ticks: %v vs %v", got, 3*one)
	}
	if err := tr.SetTempo(240); err != nil {
		t.Fatalf("cannot set tempo: %v", err)
	}
	if got := tr.TicksToSeconds(1000, true); math.Abs(got-one/2) > 1e-9 {
		t.Errorf("doubling the tempo should halve the time: %v vs %v", got, one/2)
	}
	if got := tr.TicksToSeconds(960, false); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("reference tempo conversion should ignore the tempo, got %v", got)
	}
}

func TestSnapToGrid(t *testing.T) {
	tr := newTransport(t, 120)
	if err := tr.SetGridResolution(1); err != nil {
		t.Fatal(err)
	}
	var tests = []struct {
		tick, want int64
	}{
		{0, 0},
		{479, 0},
		{480, 960},
		{961, 960},
		{1500, 1920},
		{-100, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("snap %d", tt.tick), func(t *testing.T) {
			got := tr.SnapToGrid(tt.tick)
			if got != tt.want {
				t.Errorf("SnapToGrid(%d) = %d, want %d", tt.tick, got, tt.want)
			}
			if again := tr.SnapToGrid(got); again != got {
				t.Errorf("SnapToGrid is not idempotent: %d -> %d", got, again)
			}
		})
	}
	if err := tr.SetGridResolution(4); err != nil {
		t.Fatal(err)
	}
	for tick := int64(0); tick < 20000; tick += 333 {
		s := tr.SnapToGrid(tick)
		if s%3840 != 0 || tr.SnapToGrid(s) != s {
			t.Fatalf("SnapToGrid(%d) = %d is not a stable bar boundary", tick, s)
		}
	}
}

func TestTransportStartStop(t *testing.T) {
	tr := newTransport(t, 120)
	if err := tr.Seek(1920); err != nil {
		t.Fatalf("seek while stopped failed: %v", err)
	}
	tr.Start()
	tr.Advance(1.0)
	if got := tr.CurrentTick(); got != 1920+1920 {
		t.Fatalf("advancing 1 s at 120 bpm from 1920 should give 3840, got %d", got)
	}
	if err := tr.Seek(0); !errors.Is(err, lumix.ErrNotStopped) {
		t.Fatalf("seek while running should fail with ErrNotStopped, got %v", err)
	}
	tr.Stop(false)
	if tr.Running() {
		t.Fatal("transport should be stopped")
	}
	if got := tr.CurrentTick(); got != 1920 {
		t.Fatalf("stop(false) should return to the last start tick 1920, got %d", got)
	}
	tr.Advance(1.0)
	if got := tr.CurrentTick(); got != 1920 {
		t.Fatalf("advance while stopped should not move the clock, got %d", got)
	}
	tr.Start()
	tr.Advance(0.25)
	tr.Stop(true)
	if tr.CurrentTick() != 0 || tr.LastRunStartTick() != 0 {
		t.Fatalf("stop(true) should reset to 0, got tick %d start %d", tr.CurrentTick(), tr.LastRunStartTick())
	}
}

func TestAdvanceDoesNotDrift(t *testing.T) {
	tr := newTransport(t, 133)
	tr.Start()
	for i := 0; i < 6000; i++ {
		tr.Advance(1.0 / 60)
	}
	want := tr.SecondsToTicks(100, true)
	if got := tr.CurrentTick(); got < want-1 || got > want {
		t.Fatalf("after 100 s of 60 Hz frames the tick should be about %d, got %d", want, got)
	}
}

func TestMusicalTimeConversion(t *testing.T) {
	tr := newTransport(t, 120)
	var tests = []struct {
		ticks   int64
		want    lumix.MusicalTime
		display string
	}{
		{0, lumix.MusicalTime{}, "1.1.1"},
		{960, lumix.MusicalTime{Beats: 1}, "1.2.1"},
		{3840, lumix.MusicalTime{Bars: 1}, "2.1.1"},
		{3840*2 + 960*3 + 15, lumix.MusicalTime{Bars: 2, Beats: 3, Ticks: 15}, "3.4.16"},
	}
	for _, tt := range tests {
		got := tr.MusicalTime(tt.ticks)
		if got != tt.want {
			t.Errorf("MusicalTime(%d) = %+v, want %+v", tt.ticks, got, tt.want)
		}
		if s := got.String(); s != tt.display {
			t.Errorf("display of %d = %q, want %q", tt.ticks, s, tt.display)
		}
		if back := tr.Ticks(got); back != tt.ticks {
			t.Errorf("Ticks(MusicalTime(%d)) = %d", tt.ticks, back)
		}
	}
}

func TestMusicalTimeArithmetic(t *testing.T) {
	tr := newTransport(t, 120)
	a := lumix.MusicalTime{Bars: 1, Beats: 3, Ticks: 900}
	b := lumix.MusicalTime{Beats: 1, Ticks: 100}
	sum := tr.Normalize(a.Add(b))
	if want := (lumix.MusicalTime{Bars: 2, Beats: 1, Ticks: 40}); sum != want {
		t.Fatalf("normalized sum = %+v, want %+v", sum, want)
	}
	if diff := tr.Normalize(sum.Sub(b)); diff != a {
		t.Fatalf("sum - b = %+v, want %+v", diff, a)
	}
	if !b.Less(a) || a.Less(b) || a.Compare(a) != 0 {
		t.Fatal("ordering of musical times is wrong")
	}
}

func TestParseDisplayTime(t *testing.T) {
	d, err := lumix.ParseDisplayTime("2.3.5")
	if err != nil {
		t.Fatal(err)
	}
	if m := d.MusicalTime(); m != (lumix.MusicalTime{Bars: 1, Beats: 2, Ticks: 4}) {
		t.Fatalf("unexpected 0-based time %+v", m)
	}
	d, err = lumix.ParseDisplayTime("5")
	if err != nil || d != (lumix.DisplayTime{Bars: 5, Beats: 1, Ticks: 1}) {
		t.Fatalf("ParseDisplayTime(\"5\") = %+v, %v", d, err)
	}
	for _, bad := range []string{"0.1.1", "1.1.1.1", "a.b", ""} {
		if _, err := lumix.ParseDisplayTime(bad); err == nil {
			t.Errorf("ParseDisplayTime(%q) should fail", bad)
		}
	}
}

func TestTransportRejectsBadTempo(t *testing.T) {
	if _, err := lumix.NewTransport(0, 120); err == nil {
		t.Fatal("zero ppq should be rejected")
	}
	tr := newTransport(t, 120)
	var cfgErr *lumix.ConfigurationError
	if err := tr.SetTempo(-1); !errors.As(err, &cfgErr) {
		t.Fatalf("negative tempo should be a ConfigurationError, got %v", err)
	}
	if tr.Tempo() != 120 {
		t.Fatal("rejected tempo should not change the transport")
	}
}
