// Package audioclass implements the streaming core of a USB Audio
// Class 1.0 speaker function: the circular buffer engine that absorbs
// one isochronous PCM packet per USB frame and feeds a playback sink
// in rate-adjusted half-buffer periods, and the control request state
// machine for the SET_CUR / GET_CUR mute control on the shared control
// endpoint.
//
// Descriptor tables, enumeration and the physical codec are out of
// scope; they are reached through the Transport, PlaybackSink,
// ControlPort and MuteSink collaborator interfaces.
package audioclass
