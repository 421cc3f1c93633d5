package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smartpreach/smartpreach-server/internal/util"
)

type EventType string

const (
	EventSessionCreate   EventType = "session_create"
	EventSessionUpdate   EventType = "session_update"
	EventSessionEnd      EventType = "session_end"
	EventSessionExpire   EventType = "session_expire"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
)

type Event struct {
	Type      EventType
	SessionID string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

type requestInfoKey struct{}

type requestInfo struct {
	ip        string
	userAgent string
}

// WithRequest stores the caller's address and user agent so that audit
// lines written deeper in the call chain can attribute the action.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, requestInfo{
		ip:        getClientIP(r),
		userAgent: r.UserAgent(),
	})
}

func Log(ctx context.Context, event Event) {
	if info, ok := ctx.Value(requestInfoKey{}).(requestInfo); ok {
		if event.IP == "" {
			event.IP = info.ip
		}
		if event.UserAgent == "" {
			event.UserAgent = info.userAgent
		}
	}

	logger := log.With().
		Str("audit", "session").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.SessionID != "" {
		logger = logger.With().Str("session_id", util.MaskSessionID(event.SessionID)).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("session audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case []string:
		return e.Strs(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	Log(WithRequest(r.Context(), r), event)
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
