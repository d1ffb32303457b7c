package engine

import (
	"strconv"
	"strings"
	"time"

	"recsync/internal/config"
	"recsync/internal/wire"
)

// Response body keys of a session-start transaction.
const (
	sessionKeyCredential        = "session"
	sessionKeyWelcome           = "welcome"
	sessionKeyUserInfo          = "userinfo"
	sessionKeyUpdateCheckPeriod = "updatecheckperiod"
	sessionKeyUpdatePeriod      = "updateperiod"
	sessionKeyKeepAlivePeriod   = "keepaliveperiod"
	sessionKeyLifetime          = "sessionlifetime"
)

// CredentialKey is the cache key holding the last negotiated session
// credential across restarts.
const CredentialKey = "session/credential"

// session tracks the negotiated state of the server session. Periods start
// from configuration and are replaced by the values the server offers during
// session start; unparsable or non-positive offers keep the previous value.
type session struct {
	credential string
	welcome    string
	userInfo   string

	started         bool
	startedAt       time.Time
	lastActivity    time.Time
	lastUpdateCheck time.Time
	regenQueued     bool

	updateCheckPeriod time.Duration
	updatePeriod      time.Duration
	keepAlivePeriod   time.Duration
	lifetime          time.Duration
}

func newSession(cfg *config.Config) session {
	return session{
		updateCheckPeriod: time.Duration(cfg.Engine.UpdateCheckPeriod) * time.Second,
		updatePeriod:      time.Duration(cfg.Engine.UpdatePeriod) * time.Second,
		keepAlivePeriod:   time.Duration(cfg.Engine.KeepAlivePeriod) * time.Second,
		lifetime:          time.Duration(cfg.Engine.SessionLifetime) * time.Second,
	}
}

// adopt applies a session-start response body. The body is a field-separated
// list of key=value pairs. Recognized numeric keys replace the current
// periods when they parse to a positive integer number of seconds; anything
// else keeps the previous value. Credential, welcome, and user-info are
// adopted verbatim.
func (s *session) adopt(body string, now time.Time) {
	for _, part := range wire.SplitRecord(body, wire.FieldSeparator) {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case sessionKeyCredential:
			s.credential = value
		case sessionKeyWelcome:
			s.welcome = value
		case sessionKeyUserInfo:
			s.userInfo = value
		case sessionKeyUpdateCheckPeriod:
			s.updateCheckPeriod = adoptPeriod(value, s.updateCheckPeriod)
		case sessionKeyUpdatePeriod:
			s.updatePeriod = adoptPeriod(value, s.updatePeriod)
		case sessionKeyKeepAlivePeriod:
			s.keepAlivePeriod = adoptPeriod(value, s.keepAlivePeriod)
		case sessionKeyLifetime:
			s.lifetime = adoptPeriod(value, s.lifetime)
		}
	}

	s.started = true
	s.startedAt = now
	s.lastActivity = now
	s.lastUpdateCheck = now
	s.regenQueued = false
}

// adoptPeriod parses a server-offered period in seconds, keeping the
// previous value on parse failure or a non-positive offer.
func adoptPeriod(value string, previous time.Duration) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return previous
	}
	return time.Duration(seconds) * time.Second
}

// regenerationDue reports whether 90% of the negotiated lifetime has elapsed
// since session start.
func (s *session) regenerationDue(now time.Time) bool {
	if !s.started || s.regenQueued {
		return false
	}
	return now.Sub(s.startedAt) >= s.lifetime*9/10
}

// keepAliveDue reports whether half the keep-alive period has passed with no
// session activity.
func (s *session) keepAliveDue(now time.Time) bool {
	if !s.started {
		return false
	}
	return now.Sub(s.lastActivity) >= s.keepAlivePeriod/2
}

// updateCheckDue reports whether the update-check period has elapsed.
func (s *session) updateCheckDue(now time.Time) bool {
	if !s.started {
		return false
	}
	return now.Sub(s.lastUpdateCheck) >= s.updateCheckPeriod
}

// invalidate drops the credential and all per-session progress, forcing a
// fresh session start.
func (s *session) invalidate() {
	s.credential = ""
	s.welcome = ""
	s.started = false
	s.startedAt = time.Time{}
	s.regenQueued = false
}
