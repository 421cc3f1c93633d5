package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/smartpreach/smartpreach-server/internal/audit"
	apperrors "github.com/smartpreach/smartpreach-server/internal/errors"
	"github.com/smartpreach/smartpreach-server/internal/model"
	"github.com/smartpreach/smartpreach-server/internal/service"
	"github.com/smartpreach/smartpreach-server/internal/sse"
	"github.com/smartpreach/smartpreach-server/internal/util"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 8 * 1024
	wsCommandTimeout = 10 * time.Second
)

const wsFrameError = "error"

// wsFrame is both the outgoing event envelope and the incoming command.
type wsFrame struct {
	Type        string                     `json:"type"`
	Data        json.RawMessage            `json:"data,omitempty"`
	Updates     map[string]json.RawMessage `json:"updates,omitempty"`
	IfUpdatedAt *int64                     `json:"ifUpdatedAt,omitempty"`
}

// WebSocketHandler pushes session events over a WebSocket and accepts
// update commands on the same connection.
type WebSocketHandler struct {
	broker         *sse.Broker
	sessionService *service.LiveSessionService
	upgrader       websocket.Upgrader
}

func NewWebSocketHandler(broker *sse.Broker, sessionService *service.LiveSessionService, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		broker:         broker,
		sessionService: sessionService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// GET /api/live-session/ws?sessionId=
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")

	client := h.broker.Subscribe(sessionID)
	defer h.broker.Unsubscribe(client)

	session, err := h.sessionService.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	masked := util.MaskSessionID(session.ID)
	log.Info().
		Str("sessionId", masked).
		Str("clientId", client.ID).
		Msg("websocket connection established")

	// The request context is tied to the hijacked connection only loosely,
	// so commands run on a context owned by this handler.
	ctx, cancel := context.WithCancel(audit.WithRequest(context.Background(), r))
	defer cancel()

	replies := make(chan wsFrame, 16)
	readDone := make(chan struct{})
	go h.readPump(ctx, conn, session.ID, replies, readDone)

	if err := writeFrame(conn, eventFrame(model.SessionEventConnected, map[string]any{
		"sessionId": session.ID,
		"clientId":  client.ID,
	})); err != nil {
		return
	}
	if err := writeFrame(conn, eventFrame(model.SessionEventState, session)); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			log.Info().Str("sessionId", masked).Msg("websocket connection closed by client")
			return

		case <-client.Done:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case event := <-client.Events:
			if err := writeFrame(conn, wsFrame{Type: string(event.Type), Data: event.Data}); err != nil {
				log.Warn().Err(err).Str("sessionId", masked).Msg("failed to write websocket event")
				return
			}
			if event.Type == model.SessionEventEnded {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}

		case reply := <-replies:
			if err := writeFrame(conn, reply); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Str("sessionId", masked).Msg("websocket ping failed, closing connection")
				return
			}
		}
	}
}

// readPump applies update commands until the connection fails. Successful
// updates need no reply: the resulting state event reaches every client,
// this one included.
func (h *WebSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, sessionID string, replies chan<- wsFrame, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if err := h.handleCommand(ctx, sessionID, message); err != nil {
			select {
			case replies <- errorFrame(err):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleCommand(ctx context.Context, sessionID string, message []byte) error {
	var frame wsFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return apperrors.InvalidRequest("Invalid JSON frame")
	}
	if frame.Type != "update" {
		return apperrors.InvalidRequest("Unsupported frame type")
	}

	params, err := parseUpdates(frame.Updates)
	if err != nil {
		return err
	}
	params.ExpectedUpdatedAt = frame.IfUpdatedAt

	cmdCtx, cancel := context.WithTimeout(ctx, wsCommandTimeout)
	defer cancel()

	_, err = h.sessionService.Update(cmdCtx, sessionID, params)
	return err
}

func eventFrame(eventType model.SessionEventType, data any) wsFrame {
	raw, _ := json.Marshal(data)
	return wsFrame{Type: string(eventType), Data: raw}
}

func errorFrame(err error) wsFrame {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("An unexpected error occurred")
	}
	raw, _ := json.Marshal(map[string]any{
		"error": appErr.Message,
		"code":  appErr.Code,
	})
	return wsFrame{Type: wsFrameError, Data: raw}
}

func writeFrame(conn *websocket.Conn, frame wsFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(frame)
}
