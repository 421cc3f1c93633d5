package model

// SessionState is the lifecycle of a live session as seen by one actor.
// A consumer cannot tell ENDED from EXPIRED: both read as not found.
type SessionState string

const (
	SessionStateNone    SessionState = "none"
	SessionStateActive  SessionState = "active"
	SessionStateEnded   SessionState = "ended"
	SessionStateExpired SessionState = "expired"
)

// SessionEventType names the events pushed to subscribers of a session.
type SessionEventType string

const (
	SessionEventConnected SessionEventType = "connected"
	SessionEventState     SessionEventType = "state"
	SessionEventEnded     SessionEventType = "ended"
)
