package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vsariola/lumix"
	"github.com/vsariola/lumix/config"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lumix.yml")
	yml := "sample_rate: 48000\ntempo: 90\ndefault_effects: false\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	env := filepath.Join(dir, ".env")
	if err := os.WriteFile(env, []byte("LUMIX_PPQ=480\nLUMIX_TEMPO=100\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LUMIX_TEMPO", "140")
	c, err := config.Load(path, env)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.SampleRate != 48000 || c.DefaultEffects || c.Log.Level != "debug" {
		t.Errorf("the YAML file was not applied: %+v", c)
	}
	if c.PPQ != 480 {
		t.Errorf("the .env file was not applied, ppq %d", c.PPQ)
	}
	if c.Tempo != 140 {
		t.Errorf("the environment should override the files, tempo %v", c.Tempo)
	}
	if c.BufferFrames != 512 || c.GridResolution != 4 {
		t.Errorf("missing settings should keep their defaults: %+v", c)
	}
	opts := c.SessionOptions(nil)
	if opts.SampleRate != 48000 || opts.PPQ != 480 || opts.MeterWindow != 100*time.Millisecond {
		t.Errorf("unexpected session options %+v", opts)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := config.Load(filepath.Join(dir, "none.yml"), filepath.Join(dir, "none.env"))
	if err != nil {
		t.Fatalf("missing files should not be an error: %v", err)
	}
	if c.SampleRate != config.Default().SampleRate {
		t.Fatal("expected the defaults")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"zero tempo", "LUMIX_TEMPO", "0"},
		{"negative ppq", "LUMIX_PPQ", "-1"},
		{"zero buffer", "LUMIX_BUFFER_FRAMES", "0"},
		{"zero grid", "LUMIX_GRID_RESOLUTION", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := config.Load("", filepath.Join(t.TempDir(), ".env"))
			var cerr *lumix.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected a ConfigurationError, got %v", err)
			}
		})
	}
	t.Setenv("LUMIX_SAMPLE_RATE", "fast")
	if _, err := config.Load("", filepath.Join(t.TempDir(), ".env")); err == nil {
		t.Fatal("expected a parse error")
	}
}
