package electrum

import "github.com/sirupsen/logrus"

// Hooks fans structured diagnostics out across the five channels spec.md §6
// names: action (outbound frames), events (lifecycle transitions), errors
// (transport/protocol failures), server (inbound frames/handshake detail),
// and status (connection/cluster readiness transitions). Each channel is
// just a "channel" field on a logrus entry, grounded in the field-tagged
// logging idiom nabbar-golib's logger/hooksyslog package uses over
// *logrus.Logger. A nil Hooks or a nil underlying logger disables output
// entirely, mirroring the teacher's `if c.log != nil` guard.
type Hooks struct {
	log logrus.FieldLogger
}

// NewHooks wraps log (which may be nil) into a Hooks. A nil log means every
// channel is silently dropped.
func NewHooks(log logrus.FieldLogger) *Hooks {
	return &Hooks{log: log}
}

func (h *Hooks) entry(channel string) logrus.FieldLogger {
	if h == nil || h.log == nil {
		return nil
	}
	return h.log.WithField("channel", channel)
}

// Action logs an outbound wire frame.
func (h *Hooks) Action(format string, args ...any) {
	if e := h.entry("action"); e != nil {
		e.Debugf(format, args...)
	}
}

// Events logs a lifecycle transition (connect, disconnect, subscription
// added/removed).
func (h *Hooks) Events(format string, args ...any) {
	if e := h.entry("events"); e != nil {
		e.Debugf(format, args...)
	}
}

// Errors logs a transport or protocol failure.
func (h *Hooks) Errors(format string, args ...any) {
	if e := h.entry("errors"); e != nil {
		e.Errorf(format, args...)
	}
}

// Server logs an inbound frame or handshake detail.
func (h *Hooks) Server(format string, args ...any) {
	if e := h.entry("server"); e != nil {
		e.Debugf(format, args...)
	}
}

// Status logs a readiness/connectivity state transition.
func (h *Hooks) Status(format string, args ...any) {
	if e := h.entry("status"); e != nil {
		e.Infof(format, args...)
	}
}
