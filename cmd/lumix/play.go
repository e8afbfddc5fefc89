package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/vsariola/lumix/cmd"
	"github.com/vsariola/lumix/engine"
	"github.com/vsariola/lumix/oto"
	"go.uber.org/zap"
)

const (
	controlFrame  = 10 * time.Millisecond
	statusRefresh = 100 * time.Millisecond
	playTail      = time.Second
)

var (
	playArrangement arrangement
	playDuration    float64
	playMidiInput   string
	playQuiet       bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play an arrangement through the default output device",
	Example: `  lumix play --audio 1:drums.wav --audio 5:bass.mp3
  lumix play --midi 1:song.mid --soundfont piano.sf2 --midi-input "Launchkey"`,
	RunE: func(c *cobra.Command, args []string) error {
		s, err := playArrangement.build(cfg, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		midiContext := cmd.NewMidiContext()
		defer midiContext.Close()
		if err := openMidiInput(s, midiContext); err != nil {
			return err
		}
		audioContext, err := oto.NewContext(cfg.SampleRate, cfg.OutputLatency())
		if err != nil {
			return err
		}
		duration := playDuration
		if duration <= 0 {
			duration = length(s) + playTail.Seconds()
		}
		ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt)
		defer stop()
		player := audioContext.Play(s.Process)
		err = run(ctx, s, time.Duration(duration*float64(time.Second)))
		player.Close()
		return errors.Join(err, player.Wait())
	},
}

func init() {
	playArrangement.register(playCmd)
	f := playCmd.Flags()
	f.Float64Var(&playDuration, "duration", 0, "seconds to play; 0 plays until the last clip ends")
	f.StringVar(&playMidiInput, "midi-input", "", "play the first MIDI track live from the input whose name starts with this; overrides the configuration")
	f.BoolVarP(&playQuiet, "quiet", "q", false, "do not print the status line")
	rootCmd.AddCommand(playCmd)
}

// openMidiInput connects the configured MIDI input to the first MIDI track,
// adding one if there is none.
func openMidiInput(s *engine.Session, mc engine.MIDIContext) error {
	prefix := playMidiInput
	if prefix == "" {
		prefix = cfg.MIDIInput
	}
	if prefix == "" {
		return nil
	}
	input, ok := engine.FindMIDIInput(mc, prefix)
	if !ok {
		logger.Warn("no MIDI input found", zap.String("prefix", prefix), zap.Stringer("support", mc.Support()))
		return nil
	}
	var track *engine.Track
	for _, t := range s.Tracks() {
		if t.Kind() == engine.MidiTrack {
			track = t
			break
		}
	}
	if track == nil {
		var err error
		if track, err = s.AddTrack(engine.MidiTrack, input.String()); err != nil {
			return err
		}
		if err := loadInstrument(track, cfg.SampleRate, soundFontOf(playArrangement)); err != nil {
			return err
		}
	}
	if err := input.Open(track.Midi()); err != nil {
		return fmt.Errorf("cannot open MIDI input %s: %w", input, err)
	}
	logger.Info("MIDI input opened", zap.Stringer("input", input), zap.String("track", track.Name))
	return nil
}

func soundFontOf(a arrangement) string {
	if a.soundFont != "" {
		return a.soundFont
	}
	return cfg.SoundFont
}

// run is the control thread: it updates the session every control frame
// until the duration has elapsed or ctx is done.
func run(ctx context.Context, s *engine.Session, duration time.Duration) error {
	if err := s.Start(); err != nil {
		return err
	}
	ticker := time.NewTicker(controlFrame)
	defer ticker.Stop()
	start := time.Now()
	last, lastStatus := start, time.Time{}
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr)
			return nil
		case now := <-ticker.C:
			if err := s.Update(now.Sub(last).Seconds()); err != nil {
				logger.Warn("update failed", zap.Error(err))
			}
			last = now
			if !playQuiet && now.Sub(lastStatus) >= statusRefresh {
				fmt.Fprint(os.Stderr, "\r")
				renderStatus(os.Stderr, s)
				lastStatus = now
			}
			if now.Sub(start) >= duration {
				if !playQuiet {
					fmt.Fprintln(os.Stderr)
				}
				return s.Stop(false)
			}
		}
	}
}
