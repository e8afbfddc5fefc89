package engine

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vsariola/lumix"
	"github.com/vsariola/lumix/media"
	"github.com/vsariola/lumix/plugins"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type (
	// Session owns the transport, the tracks and the routing between them.
	// All its methods are called from the control thread, except Process,
	// which is the audio callback.
	Session struct {
		opts      Options
		transport *lumix.Transport
		master    *MasterEngine
		tracks    []*Track
		broker    *Broker
		scheduler ClipScheduler
		logger    *zap.Logger
		levels    map[uuid.UUID]Level

		alertLimiter *rate.Limiter
		suppressed   int

		newCapture func() (lumix.CaptureSource, error)

		// OnAlert and OnLevel, if set, are called from Update for every alert
		// raised and every level measured since the previous Update.
		OnAlert func(Alert)
		OnLevel func(trackID uuid.UUID, level Level)
	}

	Options struct {
		SampleRate     int
		BufferFrames   int // frames per audio callback
		PPQ            int
		Tempo          float64
		GridResolution int
		MeterWindow    time.Duration
		// DefaultEffects adds a Utility and a SimpleEq to every new audio and
		// MIDI track.
		DefaultEffects bool
		RecordDir      string
		Logger         *zap.Logger
	}
)

var defaultEffects = [...]string{"Utility", "SimpleEq"}

// MasterID identifies the master in the levels.
var MasterID = uuid.Nil

func DefaultOptions() Options {
	return Options{
		SampleRate:     44100,
		BufferFrames:   512,
		PPQ:            lumix.DefaultPPQ,
		Tempo:          lumix.ReferenceTempo,
		GridResolution: lumix.DefaultGridResolution,
		MeterWindow:    100 * time.Millisecond,
		DefaultEffects: true,
		RecordDir:      os.TempDir(),
	}
}

func NewSession(opts Options) (*Session, error) {
	if opts.SampleRate <= 0 || opts.BufferFrames <= 0 {
		return nil, &lumix.ConfigurationError{Op: "create session", Err: fmt.Errorf("invalid sample rate %d or buffer size %d", opts.SampleRate, opts.BufferFrames)}
	}
	t, err := lumix.NewTransport(opts.PPQ, opts.Tempo)
	if err != nil {
		return nil, err
	}
	if err := t.SetGridResolution(opts.GridResolution); err != nil {
		return nil, err
	}
	s := &Session{
		opts:         opts,
		transport:    t,
		broker:       NewBroker(),
		logger:       opts.Logger,
		levels:       map[uuid.UUID]Level{},
		alertLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.master = newMasterEngine(s.engineConfig(MasterID))
	s.logger.Debug("session created",
		zap.Int("sampleRate", opts.SampleRate),
		zap.Int("bufferFrames", opts.BufferFrames),
		zap.Int("ppq", opts.PPQ),
		zap.Float64("tempo", opts.Tempo))
	return s, nil
}

func (s *Session) engineConfig(id uuid.UUID) engineConfig {
	return engineConfig{
		format:       lumix.Stereo(s.opts.SampleRate),
		bufferFrames: s.opts.BufferFrames,
		meterWindow:  int(s.opts.MeterWindow.Seconds() * float64(s.opts.SampleRate)),
		trackID:      id,
		broker:       s.broker,
	}
}

func (s *Session) Options() Options            { return s.opts }
func (s *Session) Transport() *lumix.Transport { return s.transport }
func (s *Session) Master() *MasterEngine       { return s.master }
func (s *Session) Broker() *Broker             { return s.broker }
func (s *Session) Tracks() []*Track            { return slices.Clone(s.tracks) }
func (s *Session) Format() lumix.Format        { return lumix.Stereo(s.opts.SampleRate) }

// Level returns the last level measured on the track, or on the master with
// MasterID.
func (s *Session) Level(trackID uuid.UUID) Level { return s.levels[trackID] }

// Track finds a track by its ID.
func (s *Session) Track(id uuid.UUID) (*Track, bool) {
	i := slices.IndexFunc(s.tracks, func(t *Track) bool { return t.ID == id })
	if i < 0 {
		return nil, false
	}
	return s.tracks[i], true
}

// SetCaptureSource sets the function opening the input device for
// recording.
func (s *Session) SetCaptureSource(open func() (lumix.CaptureSource, error)) {
	s.newCapture = open
}

// AddTrack creates a track and routes it into the master.
func (s *Session) AddTrack(kind TrackKind, name string) (*Track, error) {
	t := &Track{ID: uuid.New(), Name: name, kind: kind, session: s, enabled: true}
	cfg := s.engineConfig(t.ID)
	cfg.name = name
	switch kind {
	case AudioTrack:
		t.engine = newAudioEngine(cfg)
	case MidiTrack:
		t.engine = newMidiEngine(cfg)
	case GroupTrack:
		t.engine = newGroupEngine(cfg)
	default:
		return nil, &lumix.ConfigurationError{Op: "add track " + name, Err: fmt.Errorf("unknown track kind %d", kind)}
	}
	if s.opts.DefaultEffects && kind != GroupTrack {
		for _, effect := range defaultEffects {
			_, err := t.Chain().LoadEffect(effect, func() (lumix.Processor, error) {
				return plugins.New(effect, s.opts.SampleRate, nil)
			})
			if err != nil {
				t.engine.Close()
				return nil, err
			}
		}
	}
	if err := s.master.Mixer().AddInput(t.engine.Output()); err != nil {
		t.engine.Close()
		return nil, err
	}
	s.tracks = append(s.tracks, t)
	s.refreshGates()
	s.logger.Debug("track added", zap.String("track", t.Name), zap.Stringer("kind", kind), zap.Stringer("id", t.ID))
	return t, nil
}

// AddTrackToMaster routes the track directly into the master.
func (s *Session) AddTrackToMaster(t *Track) error {
	if t.session != s {
		return &lumix.RoutingError{Op: "route " + t.Name + " to master", Err: lumix.ErrTrackNotFound}
	}
	return s.route(t, nil)
}

// AddTrackToGroup routes the track into the group. The first track routed
// into an empty group decides the kind of tracks the group accepts; routing a
// track of another kind, or a track that would make the routing cyclic,
// fails with a *lumix.RoutingError and changes nothing.
func (s *Session) AddTrackToGroup(group, t *Track) error {
	if t.session != s || group.session != s {
		return &lumix.RoutingError{Op: "route " + t.Name + " to " + group.Name, Err: lumix.ErrTrackNotFound}
	}
	if err := group.checkGroupMember(t); err != nil {
		return err
	}
	return s.route(t, group)
}

func (s *Session) route(t, parent *Track) error {
	if t.parent == parent {
		return nil
	}
	out := t.engine.Output()
	old := t.bus()
	if t.parent != nil {
		t.parent.members = slices.DeleteFunc(t.parent.members, func(m *Track) bool { return m == t })
	}
	old.RemoveInput(out, nil)
	t.parent = parent
	if parent != nil {
		parent.members = append(parent.members, t)
	}
	if err := t.bus().AddInput(out); err != nil {
		return err
	}
	s.refreshGates()
	s.logger.Debug("track routed", zap.String("track", t.Name), zap.String("bus", busName(parent)))
	return nil
}

func busName(parent *Track) string {
	if parent == nil {
		return "master"
	}
	return parent.Name
}

// RemoveTrack removes the track from its bus and closes its engine once the
// audio callback no longer uses it. The members of a removed group are
// routed into the master.
func (s *Session) RemoveTrack(t *Track) error {
	i := slices.Index(s.tracks, t)
	if i < 0 {
		return &lumix.RoutingError{Op: "remove track " + t.Name, Err: lumix.ErrTrackNotFound}
	}
	for _, m := range slices.Clone(t.members) {
		if err := s.route(m, nil); err != nil {
			return err
		}
	}
	if t.parent != nil {
		t.parent.members = slices.DeleteFunc(t.parent.members, func(m *Track) bool { return m == t })
	}
	eng := t.engine
	t.bus().RemoveInput(eng.Output(), func() {
		if err := eng.Close(); err != nil {
			s.logger.Warn("closing track failed", zap.String("track", t.Name), zap.Error(err))
		}
	})
	s.tracks = slices.Delete(s.tracks, i, i+1)
	delete(s.levels, t.ID)
	s.refreshGates()
	s.logger.Debug("track removed", zap.String("track", t.Name))
	return nil
}

// refreshGates updates the MuteGates: a track is audible if it is enabled
// and either nothing routed into the same bus is soloed, or it is soloed
// itself.
func (s *Session) refreshGates() {
	soloed := map[*Track]bool{}
	for _, t := range s.tracks {
		if t.solo {
			soloed[t.parent] = true
		}
	}
	for _, t := range s.tracks {
		audible := t.enabled && (!soloed[t.parent] || t.solo)
		if g := t.engine.Base().Gate(); g != nil {
			g.SetMuted(!audible)
		}
	}
}

// SetTempo changes the tempo of the transport and of the playing sequences.
func (s *Session) SetTempo(bpm float64) error {
	if err := s.transport.SetTempo(bpm); err != nil {
		return err
	}
	for _, t := range s.tracks {
		if m := t.Midi(); m != nil {
			m.SetTempo(bpm)
		}
	}
	return nil
}

// Start starts the transport, and the recording of the tracks that record
// on start.
func (s *Session) Start() error {
	if s.transport.Running() {
		return nil
	}
	s.transport.Start()
	s.logger.Info("transport started", zap.Int64("tick", s.transport.CurrentTick()))
	var errs []error
	for _, t := range s.tracks {
		if t.RecordOnStart && t.kind == AudioTrack && s.newCapture != nil {
			errs = append(errs, s.StartRecording(t))
		}
	}
	return errors.Join(errs...)
}

// Stop stops the transport, discards all the playing voices, stops the
// recordings and resets the clips so they can play again. The position
// returns to where the last run started or, if moveToStart is set, to 0.
func (s *Session) Stop(moveToStart bool) error {
	s.transport.Stop(moveToStart)
	var errs []error
	for _, t := range s.tracks {
		t.engine.StopSounds()
		if a := t.Audio(); a != nil && a.Recording() {
			if _, err := s.StopRecording(t); err != nil {
				errs = append(errs, err)
			}
		}
		for _, c := range t.clips {
			c.hasPlayed = false
		}
	}
	s.logger.Info("transport stopped", zap.Int64("tick", s.transport.CurrentTick()))
	return errors.Join(errs...)
}

// StartRecording starts recording the input device into a new file in the
// record directory.
func (s *Session) StartRecording(t *Track) error {
	a := t.Audio()
	if a == nil {
		return &lumix.ConfigurationError{Op: "record on " + t.Name, Err: fmt.Errorf("a %v track cannot record audio", t.kind)}
	}
	if s.newCapture == nil {
		return &lumix.ResourceError{Op: "record on " + t.Name, Err: errors.New("no capture device")}
	}
	capture, err := s.newCapture()
	if err != nil {
		return &lumix.ResourceError{Op: "open capture device", Err: err}
	}
	path := filepath.Join(s.opts.RecordDir, uuid.NewString()+".wav")
	if err := a.StartRecording(capture, path, s.transport.CurrentTick(), s.broker); err != nil {
		capture.Close()
		return err
	}
	s.logger.Info("recording started", zap.String("track", t.Name), zap.String("path", path))
	return nil
}

// StopRecording stops the recording and places it on the track as a new
// clip, starting from the tick where the recording started.
func (s *Session) StopRecording(t *Track) (*Clip, error) {
	a := t.Audio()
	if a == nil || !a.Recording() {
		return nil, fmt.Errorf("track %s is not recording", t.Name)
	}
	take, err := a.StopRecording()
	if err != nil {
		return nil, err
	}
	sample, err := media.Load(take.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot load recording: %w", err)
	}
	c := NewAudioClip(sample, take.StartTick)
	if err := t.AddClip(c); err != nil {
		return nil, err
	}
	s.logger.Info("recording stopped",
		zap.String("track", t.Name),
		zap.String("path", take.Path),
		zap.Int("frames", take.Frames),
		zap.Int64("startTick", take.StartTick))
	return c, nil
}

// Update runs one control frame: it advances the transport by the elapsed
// wall-clock seconds, fires the clips that were reached, applies the pending
// delete and duplicate requests, releases what the audio callback has let go
// of and handles the messages from the audio callback.
func (s *Session) Update(elapsed float64) error {
	s.transport.Advance(elapsed)
	var errs []error
	fired, err := s.scheduler.Schedule(s.transport, s.tracks)
	if err != nil {
		errs = append(errs, err)
	}
	for _, f := range fired {
		s.logger.Debug("clip fired", zap.String("track", f.Track.Name), zap.String("clip", f.Clip.Name), zap.Float64("offset", f.Offset))
	}
	for _, t := range s.tracks {
		if err := t.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.master.Chain().Drain(); err != nil {
		errs = append(errs, err)
	}
	for _, t := range s.tracks {
		t.engine.Base().collect()
	}
	s.master.collect()
	s.drainBroker()
	return errors.Join(errs...)
}

func (s *Session) drainBroker() {
	for {
		select {
		case msg := <-s.broker.ToControl:
			switch m := msg.(type) {
			case *Alert:
				s.alert(*m)
			case LevelMsg:
				s.levels[m.TrackID] = m.Level
				if s.OnLevel != nil {
					s.OnLevel(m.TrackID, m.Level)
				}
			}
		default:
			return
		}
	}
}

func (s *Session) alert(a Alert) {
	if s.OnAlert != nil {
		s.OnAlert(a)
	}
	if !s.alertLimiter.Allow() {
		s.suppressed++
		return
	}
	fields := []zap.Field{zap.String("name", a.Name), zap.String("message", a.Message)}
	if s.suppressed > 0 {
		fields = append(fields, zap.Int("suppressed", s.suppressed))
		s.suppressed = 0
	}
	switch a.Priority {
	case Error:
		s.logger.Error("alert", fields...)
	case Warning:
		s.logger.Warn("alert", fields...)
	default:
		s.logger.Info("alert", fields...)
	}
}

// Process is the audio callback: it pulls one buffer through the master. A
// failing track is silenced on its own and raises a TrackFailed alert. If a
// stage of the master fails, the buffer is silent and a ProcessFailed alert
// is sent instead. The error is never returned, so the output device keeps
// going.
func (s *Session) Process(buf lumix.AudioBuffer) error {
	if err := s.master.Read(buf); err != nil {
		TrySend(s.broker.ToControl, any(&Alert{Name: "ProcessFailed", Priority: Error, Message: err.Error(), Duration: defaultAlertDuration}))
	}
	return nil
}

// Bounce renders the given number of seconds from the current position
// offline, without an output device, and writes them as a .wav file. Update
// and Process are called alternately, one buffer at a time, so the clips
// fire as they would during playback. The transport is stopped afterwards.
// It must not be called while an output device is pulling Process.
func (s *Session) Bounce(w io.WriteSeeker, seconds float64, pcm16 bool) error {
	sr := float64(s.opts.SampleRate)
	total := int(math.Round(seconds * sr))
	out := make(lumix.AudioBuffer, total)
	if err := s.Start(); err != nil {
		return err
	}
	var errs []error
	elapsed := 0.0
	for pos := 0; pos < total; {
		if err := s.Update(elapsed); err != nil {
			errs = append(errs, err)
		}
		n := min(s.opts.BufferFrames, total-pos)
		if err := s.Process(out[pos : pos+n]); err != nil {
			errs = append(errs, err)
		}
		pos += n
		elapsed = float64(n) / sr
	}
	errs = append(errs, s.Stop(false))
	if err := out.Wav(w, s.opts.SampleRate, pcm16); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("bounce finished", zap.Float64("seconds", seconds), zap.Int("frames", total))
	return errors.Join(errs...)
}

// Close stops the transport and closes all the tracks. The audio callback
// must no longer be pulling Process.
func (s *Session) Close() error {
	errs := []error{s.Stop(false)}
	for _, t := range s.tracks {
		t.bus().RemoveInput(t.engine.Output(), nil)
		errs = append(errs, t.engine.Close())
	}
	s.tracks = nil
	s.master.Mixer().Collect()
	errs = append(errs, s.master.Close())
	return errors.Join(errs...)
}
