//go:build plugin

package main

import (
	"os"
	"path/filepath"

	"github.com/vsariola/lumix"
	"github.com/vsariola/lumix/config"
	"github.com/vsariola/lumix/engine"
	"github.com/vsariola/lumix/logging"
	"github.com/vsariola/lumix/midiseq"
	"github.com/vsariola/lumix/plugins"
	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"
	"pipelined.dev/audio/vst2"
)

const (
	pluginID   = 'L'<<24 | 'M'<<16 | 'X'<<8 | 'S'
	pluginName = "Lumix SoundFont"
)

// instrument is a session with a single MIDI track playing the events the
// host sends.
type instrument struct {
	session *engine.Session
	track   *engine.Track
	host    vst2.Host
	events  []vst2.MIDIEvent
	logger  *zap.Logger
}

func newInstrument(h vst2.Host) (*instrument, error) {
	dir := ""
	if configDir, err := os.UserConfigDir(); err == nil {
		dir = filepath.Join(configDir, "Lumix")
	}
	cfg, err := config.Load(filepath.Join(dir, "lumix.yml"), filepath.Join(dir, ".env"))
	if err != nil {
		return nil, err
	}
	// the host owns stdout and stderr
	cfg.Log.Console = false
	if cfg.Log.OutputPath == "" && dir != "" {
		cfg.Log.OutputPath = filepath.Join(dir, "lumix-vsti.log")
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	opts := cfg.SessionOptions(logger)
	opts.DefaultEffects = false
	s, err := engine.NewSession(opts)
	if err != nil {
		return nil, err
	}
	t, err := s.AddTrack(engine.MidiTrack, pluginName)
	if err != nil {
		s.Close()
		return nil, err
	}
	if cfg.SoundFont != "" {
		_, err := t.Chain().LoadInstrument("SoundFont", func() (lumix.Processor, error) {
			return plugins.New("soundfont", cfg.SampleRate, plugins.Options{"path": cfg.SoundFont})
		})
		if err != nil {
			logger.Error("cannot load the soundfont", zap.String("path", cfg.SoundFont), zap.Error(err))
		}
	} else {
		logger.Warn("no soundfont configured, the instrument is silent")
	}
	return &instrument{session: s, track: t, host: h, logger: logger}, nil
}

func (i *instrument) tempo() (bpm float64, ok bool) {
	timeInfo := i.host.GetTimeInfo(vst2.TempoValid)
	if timeInfo == nil || timeInfo.Flags&vst2.TempoValid == 0 || timeInfo.Tempo == 0 {
		return 0, false
	}
	return timeInfo.Tempo, true
}

func (i *instrument) process(out vst2.FloatBuffer) {
	if bpm, ok := i.tempo(); ok && bpm != i.session.Transport().Tempo() {
		i.session.SetTempo(bpm)
	}
	receiver := i.track.Midi()
	for _, ev := range i.events {
		if e, ok := midiseq.Event(midi.Message(ev.Data[:]), 0); ok {
			receiver.ReceiveMIDI(e)
		}
	}
	i.events = i.events[:0] // reset buffer, but keep the allocated memory
	broker := i.session.Broker()
	buf := broker.GetAudioBuffer(out.Frames)
	defer broker.PutAudioBuffer(buf)
	i.session.Process(*buf)
	left, right := out.Channel(0), out.Channel(1)
	for j, s := range *buf {
		left[j], right[j] = s[0], s[1]
	}
	if err := i.session.Update(float64(out.Frames) / float64(i.session.Options().SampleRate)); err != nil {
		i.logger.Warn("update failed", zap.Error(err))
	}
}

func init() {
	var (
		version = int32(100)
	)
	vst2.PluginAllocator = func(h vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
		inst, err := newInstrument(h)
		if err != nil {
			// the host gives no way to report the error; play silence
			return vst2.Plugin{}, vst2.Dispatcher{}
		}
		return vst2.Plugin{
				UniqueID:         pluginID,
				Version:          version,
				InputChannels:    0,
				OutputChannels:   2,
				Name:             pluginName,
				Vendor:           "vsariola/lumix",
				Category:         vst2.PluginCategorySynth,
				Flags:            vst2.PluginIsSynth,
				ProcessFloatFunc: func(in, out vst2.FloatBuffer) { inst.process(out) },
			}, vst2.Dispatcher{
				CanDoFunc: func(pcds vst2.PluginCanDoString) vst2.CanDoResponse {
					switch pcds {
					case vst2.PluginCanReceiveEvents, vst2.PluginCanReceiveMIDIEvent, vst2.PluginCanReceiveTimeInfo:
						return vst2.YesCanDo
					}
					return vst2.NoCanDo
				},
				ProcessEventsFunc: func(ev *vst2.EventsPtr) {
					for i := 0; i < ev.NumEvents(); i++ {
						if v, ok := ev.Event(i).(*vst2.MIDIEvent); ok {
							inst.events = append(inst.events, *v)
						}
					}
				},
				CloseFunc: func() {
					inst.session.Close()
					inst.logger.Sync()
				},
			}
	}
}

func main() {}
