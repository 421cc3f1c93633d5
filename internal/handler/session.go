package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/smartpreach/smartpreach-server/internal/audit"
	apperrors "github.com/smartpreach/smartpreach-server/internal/errors"
	"github.com/smartpreach/smartpreach-server/internal/model"
	"github.com/smartpreach/smartpreach-server/internal/service"
	"github.com/smartpreach/smartpreach-server/internal/util"
)

type LiveSessionHandler struct {
	sessionService *service.LiveSessionService
	events         http.Handler
	ws             http.Handler
	qr             http.Handler
	createLimit    func(http.Handler) http.Handler
	requestTimeout time.Duration
}

type LiveSessionHandlerConfig struct {
	Events         http.Handler
	WebSocket      http.Handler
	QR             http.Handler
	CreateLimit    func(http.Handler) http.Handler
	RequestTimeout time.Duration
}

func NewLiveSessionHandler(sessionService *service.LiveSessionService, cfg LiveSessionHandlerConfig) *LiveSessionHandler {
	return &LiveSessionHandler{
		sessionService: sessionService,
		events:         cfg.Events,
		ws:             cfg.WebSocket,
		qr:             cfg.QR,
		createLimit:    cfg.CreateLimit,
		requestTimeout: cfg.RequestTimeout,
	}
}

// Routes mounts under /api/live-session. The request timeout only covers
// the JSON endpoints; the event streams stay open.
func (h *LiveSessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	if h.events != nil {
		r.Get("/events", h.events.ServeHTTP)
	}
	if h.ws != nil {
		r.Get("/ws", h.ws.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		if h.requestTimeout > 0 {
			r.Use(chimiddleware.Timeout(h.requestTimeout))
		}

		create := http.Handler(http.HandlerFunc(h.CreateSession))
		if h.createLimit != nil {
			create = h.createLimit(create)
		}
		r.Method(http.MethodPost, "/", create)
		r.Get("/", h.GetSession)
		r.Put("/", h.UpdateSession)
		r.Delete("/", h.DeleteSession)

		if h.qr != nil {
			r.Get("/qr", h.qr.ServeHTTP)
		}
	})

	return r
}

type createSessionRequest struct {
	PresentationID *int64 `json:"presentationId" validate:"omitempty,gt=0"`
}

type updateSessionRequest struct {
	SessionID   string                     `json:"sessionId" validate:"required"`
	Updates     map[string]json.RawMessage `json:"updates"`
	IfUpdatedAt *int64                     `json:"ifUpdatedAt" validate:"omitempty,gt=0"`
}

// POST /api/live-session
func (h *LiveSessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := audit.WithRequest(r.Context(), r)

	// The body is optional for create.
	var req createSessionRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, apperrors.InvalidRequest("Invalid JSON body"))
			return
		}
	}
	if err := validateStruct(&req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessionService.Create(ctx, req.PresentationID)
	if err != nil {
		log.Error().Err(err).Msg("failed to create live session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": session.ID,
		"session":   session,
	})
}

// GET /api/live-session?sessionId=
func (h *LiveSessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")

	session, err := h.sessionService.Get(r.Context(), sessionID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			log.Error().Err(err).Str("sessionId", util.MaskSessionID(sessionID)).Msg("failed to get live session")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": session,
	})
}

// PUT /api/live-session
func (h *LiveSessionHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	ctx := audit.WithRequest(r.Context(), r)

	var req updateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	params, err := parseUpdates(req.Updates)
	if err != nil {
		writeError(w, err)
		return
	}
	params.ExpectedUpdatedAt = req.IfUpdatedAt

	session, err := h.sessionService.Update(ctx, req.SessionID, params)
	if err != nil {
		code := apperrors.GetCode(err)
		if code != apperrors.ErrCodeNotFound && code != apperrors.ErrCodeConflict && code != apperrors.ErrCodeInvalidInput {
			log.Error().Err(err).Str("sessionId", util.MaskSessionID(req.SessionID)).Msg("failed to update live session")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": session,
	})
}

// DELETE /api/live-session?sessionId=
func (h *LiveSessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := audit.WithRequest(r.Context(), r)
	sessionID := r.URL.Query().Get("sessionId")

	if err := h.sessionService.Delete(ctx, sessionID); err != nil {
		log.Error().Err(err).Str("sessionId", util.MaskSessionID(sessionID)).Msg("failed to delete live session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// updateFields lists the accepted columns with their camelCase alias. When a
// body carries both spellings the column name wins.
var updateFields = []struct{ column, alias string }{
	{"current_reference", "currentReference"},
	{"presentation_id", "presentationId"},
	{"slide_index", "slideIndex"},
	{"font_size", "fontSize"},
	{"is_blackout", "isBlackout"},
}

// parseUpdates maps the sparse "updates" object onto update params. Unknown
// keys are ignored and a JSON null clears a nullable column.
func parseUpdates(raw map[string]json.RawMessage) (model.UpdateLiveSessionParams, error) {
	var params model.UpdateLiveSessionParams

	for _, field := range updateFields {
		value, ok := raw[field.column]
		if !ok {
			if value, ok = raw[field.alias]; !ok {
				continue
			}
		}
		isNull := string(value) == "null"

		switch field.column {
		case "current_reference":
			if isNull {
				params.ClearReference = true
				continue
			}
			var ref string
			if err := json.Unmarshal(value, &ref); err != nil {
				return params, apperrors.InvalidInput("current_reference", "must be a string")
			}
			params.CurrentReference = &ref

		case "presentation_id":
			if isNull {
				params.ClearPresentation = true
				continue
			}
			var id int64
			if err := json.Unmarshal(value, &id); err != nil {
				return params, apperrors.InvalidInput("presentation_id", "must be an integer")
			}
			params.PresentationID = &id

		case "slide_index":
			if isNull {
				continue
			}
			var idx int
			if err := json.Unmarshal(value, &idx); err != nil {
				return params, apperrors.InvalidInput("slide_index", "must be an integer")
			}
			params.SlideIndex = &idx

		case "font_size":
			if isNull {
				continue
			}
			var size int
			if err := json.Unmarshal(value, &size); err != nil {
				return params, apperrors.InvalidInput("font_size", "must be an integer")
			}
			params.FontSize = &size

		case "is_blackout":
			if isNull {
				continue
			}
			var blackout bool
			if err := json.Unmarshal(value, &blackout); err != nil {
				return params, apperrors.InvalidInput("is_blackout", "must be a boolean")
			}
			params.IsBlackout = &blackout
		}
	}

	return params, nil
}
