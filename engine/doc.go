/*
Package engine contains the real-time audio graph of lumix and the control
logic driving it.

Two threads of execution meet here. The control thread owns the Session: it
advances the Transport once per frame with Session.Update, which also fires
the clips the playhead has reached, and it performs all the edits: adding and
removing tracks, routing tracks into groups, inserting and removing plugins.
The audio callback calls Session.Process to pull one buffer at a time from
the master engine, which pulls from the track engines routed into it, and so
on down to the voices playing in the mixers.

The audio callback never blocks and never takes a lock. Everything it reads
(mixer inputs, plugin slots) is an immutable snapshot behind an
atomic.Pointer; the control thread replaces snapshots copy-on-write. Anything
that needs releasing after being removed from a snapshot is released only
once the audio callback has finished the pass that might still see it. The
audio callback reports back to the control thread only through the Broker,
with non-blocking sends.

Each track engine processes its audio in a fixed order: Mixer, PluginChain,
StereoStage, MeterStage and MuteGate.
*/
package engine
