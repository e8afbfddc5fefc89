package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vsariola/lumix"
	"github.com/vsariola/lumix/config"
	"go.uber.org/zap"
)

func TestParsePlacement(t *testing.T) {
	tests := []struct {
		arg  string
		pos  lumix.DisplayTime
		path string
		ok   bool
	}{
		{"1.1.1:drums.wav", lumix.DisplayTime{Bars: 1, Beats: 1, Ticks: 1}, "drums.wav", true},
		{"3:dir/a:b.wav", lumix.DisplayTime{Bars: 3, Beats: 1, Ticks: 1}, "dir/a:b.wav", true},
		{"2.3:x.mid", lumix.DisplayTime{Bars: 2, Beats: 3, Ticks: 1}, "x.mid", true},
		{"drums.wav", lumix.DisplayTime{}, "", false},
		{"0:drums.wav", lumix.DisplayTime{}, "", false},
		{"1:", lumix.DisplayTime{}, "", false},
	}
	for _, tt := range tests {
		p, err := parsePlacement(tt.arg)
		if (err == nil) != tt.ok {
			t.Errorf("%q: unexpected error %v", tt.arg, err)
			continue
		}
		if tt.ok && (p.pos != tt.pos || p.path != tt.path) {
			t.Errorf("%q: got %v %q, expected %v %q", tt.arg, p.pos, p.path, tt.pos, tt.path)
		}
	}
}

func TestBuildArrangement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := make(lumix.AudioBuffer, 22050).Wav(f, 44100, true); err != nil {
		t.Fatalf("cannot write the fixture: %v", err)
	}
	f.Close()
	c := config.Default()
	c.DefaultEffects = false
	c.RecordDir = dir
	a := arrangement{audio: []string{"2:" + path}}
	s, err := a.build(c, zap.NewNop())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer s.Close()
	tracks := s.Tracks()
	if len(tracks) != 1 || tracks[0].Name != "tone" {
		t.Fatalf("expected one track named after the file, got %v", tracks)
	}
	clips := tracks[0].Clips()
	if len(clips) != 1 || clips[0].StartTick() != 4*960 {
		t.Fatalf("expected the clip at the start of bar 2, got %v", clips)
	}
	// four beats to reach bar 2, then half a second of audio
	if l := length(s); l < 2.499 || l > 2.501 {
		t.Fatalf("length was %v, expected 2.5 seconds", l)
	}
	var sb strings.Builder
	if err := renderStatus(&sb, s); err != nil {
		t.Fatalf("renderStatus failed: %v", err)
	}
	want := "1.1.1 120.0 BPM [........] Audio tone [........]"
	if sb.String() != want {
		t.Fatalf("status was %q, expected %q", sb.String(), want)
	}
}

func TestBuildRejectsMissingFiles(t *testing.T) {
	a := arrangement{audio: []string{"1:" + filepath.Join(t.TempDir(), "missing.wav")}}
	if _, err := a.build(config.Default(), zap.NewNop()); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestMeter(t *testing.T) {
	tests := []struct {
		level [2]float32
		lit   int
	}{
		{[2]float32{0, 0}, 0},
		{[2]float32{0.5, 0.25}, 4},
		{[2]float32{0.1, 1}, 8},
		{[2]float32{3, 0}, 8},
	}
	for _, tt := range tests {
		m := newMeter(tt.level)
		if m.Lit != tt.lit || m.Lit+m.Unlit != meterWidth {
			t.Errorf("level %v: got %+v, expected %d lit", tt.level, m, tt.lit)
		}
	}
}
