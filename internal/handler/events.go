package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smartpreach/smartpreach-server/internal/model"
	"github.com/smartpreach/smartpreach-server/internal/service"
	"github.com/smartpreach/smartpreach-server/internal/sse"
	"github.com/smartpreach/smartpreach-server/internal/util"
)

// EventsHandler streams a session's state changes as Server-Sent Events.
type EventsHandler struct {
	broker            *sse.Broker
	sessionService    *service.LiveSessionService
	heartbeatInterval time.Duration
}

func NewEventsHandler(broker *sse.Broker, sessionService *service.LiveSessionService) *EventsHandler {
	return &EventsHandler{
		broker:            broker,
		sessionService:    sessionService,
		heartbeatInterval: sse.HeartbeatInterval,
	}
}

// GET /api/live-session/events?sessionId=
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := r.URL.Query().Get("sessionId")

	// Subscribe before reading the row so a change committed in between
	// still reaches this stream.
	client := h.broker.Subscribe(sessionID)
	defer h.broker.Unsubscribe(client)

	session, err := h.sessionService.Get(ctx, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	masked := util.MaskSessionID(session.ID)
	log.Info().
		Str("sessionId", masked).
		Str("clientId", client.ID).
		Msg("sse connection established")

	if err := h.sendEvent(w, flusher, model.SessionEventConnected, map[string]any{
		"sessionId": session.ID,
		"clientId":  client.ID,
	}); err != nil {
		return
	}
	// The first state lets a client render without a separate GET.
	if err := h.sendEvent(w, flusher, model.SessionEventState, session); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("sessionId", masked).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("sessionId", masked).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}
			if event.Type == model.SessionEventEnded {
				log.Info().
					Str("sessionId", masked).
					Msg("session ended, closing sse connection")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("sessionId", masked).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType model.SessionEventType, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
