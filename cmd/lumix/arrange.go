package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vsariola/lumix"
	"github.com/vsariola/lumix/config"
	"github.com/vsariola/lumix/engine"
	"github.com/vsariola/lumix/media"
	"github.com/vsariola/lumix/midiseq"
	"github.com/vsariola/lumix/plugins"
	"go.uber.org/zap"
)

type (
	// arrangement is the part of the command line describing what to play.
	arrangement struct {
		audio     []string
		midi      []string
		soundFont string
		tempo     float64
	}

	// placement is a file placed on the timeline.
	placement struct {
		pos  lumix.DisplayTime
		path string
	}
)

func (a *arrangement) register(c *cobra.Command) {
	f := c.Flags()
	f.StringArrayVar(&a.audio, "audio", nil, "place an audio file (.wav, .mp3) on its own track, as POS:FILE where POS is bars.beats.ticks, e.g. 1.1.1:drums.wav")
	f.StringArrayVar(&a.midi, "midi", nil, "place a MIDI file on its own track, as POS:FILE")
	f.StringVar(&a.soundFont, "soundfont", "", "SoundFont (.sf2) played by the MIDI tracks; overrides the configuration")
	f.Float64Var(&a.tempo, "tempo", 0, "tempo in BPM; overrides the configuration")
}

// parsePlacement parses POS:FILE. Only the first colon separates the
// position, so the file name may contain colons.
func parsePlacement(s string) (placement, error) {
	pos, path, ok := strings.Cut(s, ":")
	if !ok || path == "" {
		return placement{}, fmt.Errorf("invalid placement %q: expected POS:FILE", s)
	}
	d, err := lumix.ParseDisplayTime(pos)
	if err != nil {
		return placement{}, fmt.Errorf("invalid placement %q: %w", s, err)
	}
	return placement{pos: d, path: path}, nil
}

func parsePlacements(args []string) ([]placement, error) {
	ret := make([]placement, 0, len(args))
	for _, a := range args {
		p, err := parsePlacement(a)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// build creates a session with one track per placed file.
func (a *arrangement) build(cfg config.Config, logger *zap.Logger) (*engine.Session, error) {
	if a.tempo > 0 {
		cfg.Tempo = a.tempo
	}
	if a.soundFont != "" {
		cfg.SoundFont = a.soundFont
	}
	audio, err := parsePlacements(a.audio)
	if err != nil {
		return nil, err
	}
	midi, err := parsePlacements(a.midi)
	if err != nil {
		return nil, err
	}
	s, err := engine.NewSession(cfg.SessionOptions(logger))
	if err != nil {
		return nil, err
	}
	if err := a.placeAudio(s, audio, logger); err != nil {
		s.Close()
		return nil, err
	}
	if err := a.placeMidi(s, midi, cfg.SoundFont, logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (a *arrangement) placeAudio(s *engine.Session, ps []placement, logger *zap.Logger) error {
	paths := make([]string, len(ps))
	for i, p := range ps {
		paths[i] = p.path
	}
	samples, err := media.LoadAll(paths...)
	if err != nil {
		return err
	}
	for i, sample := range samples {
		t, err := s.AddTrack(engine.AudioTrack, sample.Name())
		if err != nil {
			return err
		}
		tick := s.Transport().Ticks(ps[i].pos.MusicalTime())
		if err := t.AddClip(engine.NewAudioClip(sample, tick)); err != nil {
			return err
		}
		logger.Info("audio placed",
			zap.String("file", ps[i].path),
			zap.Stringer("at", ps[i].pos),
			zap.Stringer("format", sample.Format()),
			zap.String("size", humanize.Bytes(uint64(4*len(sample.Data())))))
	}
	return nil
}

func (a *arrangement) placeMidi(s *engine.Session, ps []placement, soundFont string, logger *zap.Logger) error {
	for _, p := range ps {
		seq, err := midiseq.Load(p.path)
		if err != nil {
			return err
		}
		t, err := s.AddTrack(engine.MidiTrack, seq.Name)
		if err != nil {
			return err
		}
		if err := loadInstrument(t, s.Options().SampleRate, soundFont); err != nil {
			if !errors.Is(err, lumix.ErrNoInstrument) {
				return err
			}
			logger.Warn("MIDI track is silent", zap.String("track", t.Name), zap.Error(err))
		}
		tick := s.Transport().Ticks(p.pos.MusicalTime())
		if err := t.AddClip(engine.NewMidiClip(seq, tick)); err != nil {
			return err
		}
		logger.Info("MIDI placed",
			zap.String("file", p.path),
			zap.Stringer("at", p.pos),
			zap.Int("events", len(seq.Events)),
			zap.Float64("length", seq.Length))
	}
	return nil
}

func loadInstrument(t *engine.Track, sampleRate int, soundFont string) error {
	if soundFont == "" {
		return fmt.Errorf("%w: no soundfont configured", lumix.ErrNoInstrument)
	}
	_, err := t.Chain().LoadInstrument("SoundFont", func() (lumix.Processor, error) {
		return plugins.New("soundfont", sampleRate, plugins.Options{"path": soundFont})
	})
	return err
}

// length returns the end of the last clip, in seconds at the current tempo.
func length(s *engine.Session) float64 {
	t := s.Transport()
	var end int64
	for _, track := range s.Tracks() {
		for _, c := range track.Clips() {
			end = max(end, c.EndTick(t))
		}
	}
	return t.TicksToSeconds(end-t.CurrentTick(), true)
}
