// Package config loads the engine configuration from a YAML file, an
// optional .env file and LUMIX_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/vsariola/lumix"
	"github.com/vsariola/lumix/engine"
	"github.com/vsariola/lumix/logging"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const envPrefix = "LUMIX_"

type Config struct {
	SampleRate      int            `yaml:"sample_rate"`
	BufferFrames    int            `yaml:"buffer_frames"`
	PPQ             int            `yaml:"ppq"`
	Tempo           float64        `yaml:"tempo"`
	GridResolution  int            `yaml:"grid_resolution"`
	MeterWindowMs   int            `yaml:"meter_window_ms"`
	OutputLatencyMs int            `yaml:"output_latency_ms"`
	DefaultEffects  bool           `yaml:"default_effects"`
	RecordDir       string         `yaml:"record_dir"`
	SoundFont       string         `yaml:"soundfont"`
	MIDIInput       string         `yaml:"midi_input"` // device name prefix
	Log             logging.Config `yaml:"log"`
}

// envVars maps the environment variables, without the prefix, to the fields
// they override.
var envVars = map[string]func(c *Config, v string) error{
	"SAMPLE_RATE":       intVar(func(c *Config) *int { return &c.SampleRate }),
	"BUFFER_FRAMES":     intVar(func(c *Config) *int { return &c.BufferFrames }),
	"PPQ":               intVar(func(c *Config) *int { return &c.PPQ }),
	"GRID_RESOLUTION":   intVar(func(c *Config) *int { return &c.GridResolution }),
	"METER_WINDOW_MS":   intVar(func(c *Config) *int { return &c.MeterWindowMs }),
	"OUTPUT_LATENCY_MS": intVar(func(c *Config) *int { return &c.OutputLatencyMs }),
	"TEMPO": func(c *Config, v string) (err error) {
		c.Tempo, err = strconv.ParseFloat(v, 64)
		return
	},
	"DEFAULT_EFFECTS": func(c *Config, v string) (err error) {
		c.DefaultEffects, err = strconv.ParseBool(v)
		return
	},
	"RECORD_DIR": stringVar(func(c *Config) *string { return &c.RecordDir }),
	"SOUNDFONT":  stringVar(func(c *Config) *string { return &c.SoundFont }),
	"MIDI_INPUT": stringVar(func(c *Config) *string { return &c.MIDIInput }),
	"LOG_LEVEL":  stringVar(func(c *Config) *string { return &c.Log.Level }),
	"LOG_FILE":   stringVar(func(c *Config) *string { return &c.Log.OutputPath }),
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) (err error) {
		*field(c), err = strconv.Atoi(v)
		return
	}
}

func stringVar(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func Default() Config {
	return Config{
		SampleRate:      44100,
		BufferFrames:    512,
		PPQ:             lumix.DefaultPPQ,
		Tempo:           lumix.ReferenceTempo,
		GridResolution:  lumix.DefaultGridResolution,
		MeterWindowMs:   100,
		OutputLatencyMs: 50,
		DefaultEffects:  true,
		RecordDir:       os.TempDir(),
		Log:             logging.DefaultConfig(),
	}
}

// Load reads the configuration. A missing YAML file or .env file is not an
// error; an empty path skips the file. envFile defaults to ".env".
func Load(path string, envFile string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return c, fmt.Errorf("cannot read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return c, fmt.Errorf("cannot parse %s: %w", path, err)
			}
		}
	}
	if envFile == "" {
		envFile = ".env"
	}
	vars, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return c, fmt.Errorf("cannot read %s: %w", envFile, err)
	}
	for name, set := range envVars {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			v, ok = vars[envPrefix+name]
		}
		if !ok {
			continue
		}
		if err := set(&c, v); err != nil {
			return c, fmt.Errorf("cannot parse %s%s: %w", envPrefix, name, err)
		}
	}
	return c, c.Validate()
}

// Validate reports the first invalid setting as a *lumix.ConfigurationError.
func (c Config) Validate() error {
	checks := []struct {
		ok   bool
		name string
		val  any
	}{
		{c.SampleRate > 0, "sample_rate", c.SampleRate},
		{c.BufferFrames > 0, "buffer_frames", c.BufferFrames},
		{c.PPQ > 0, "ppq", c.PPQ},
		{c.Tempo > 0, "tempo", c.Tempo},
		{c.GridResolution > 0, "grid_resolution", c.GridResolution},
		{c.MeterWindowMs > 0, "meter_window_ms", c.MeterWindowMs},
		{c.OutputLatencyMs >= 0, "output_latency_ms", c.OutputLatencyMs},
	}
	for _, check := range checks {
		if !check.ok {
			return &lumix.ConfigurationError{Op: "load config", Err: fmt.Errorf("invalid %s: %v", check.name, check.val)}
		}
	}
	return nil
}

// SessionOptions returns the options of an engine.Session using this
// configuration.
func (c Config) SessionOptions(logger *zap.Logger) engine.Options {
	return engine.Options{
		SampleRate:     c.SampleRate,
		BufferFrames:   c.BufferFrames,
		PPQ:            c.PPQ,
		Tempo:          c.Tempo,
		GridResolution: c.GridResolution,
		MeterWindow:    time.Duration(c.MeterWindowMs) * time.Millisecond,
		DefaultEffects: c.DefaultEffects,
		RecordDir:      c.RecordDir,
		Logger:         logger,
	}
}

func (c Config) OutputLatency() time.Duration {
	return time.Duration(c.OutputLatencyMs) * time.Millisecond
}
