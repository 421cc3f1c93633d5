package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	apperrors "github.com/smartpreach/smartpreach-server/internal/errors"
	"github.com/smartpreach/smartpreach-server/internal/service"
	"github.com/smartpreach/smartpreach-server/internal/util"
)

const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// QRHandler renders the remote-control join link of a session as a PNG.
type QRHandler struct {
	sessionService *service.LiveSessionService
	publicBaseURL  string
}

func NewQRHandler(sessionService *service.LiveSessionService, publicBaseURL string) *QRHandler {
	return &QRHandler{
		sessionService: sessionService,
		publicBaseURL:  strings.TrimRight(publicBaseURL, "/"),
	}
}

// GET /api/live-session/qr?sessionId=&size=
func (h *QRHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < minQRSize || parsed > maxQRSize {
			writeError(w, apperrors.InvalidInput("size", "must be an integer between 128 and 1024"))
			return
		}
		size = parsed
	}

	session, err := h.sessionService.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	png, err := qrcode.Encode(h.remoteURL(r, session.ID), qrcode.Medium, size)
	if err != nil {
		log.Error().Err(err).Str("sessionId", util.MaskSessionID(session.ID)).Msg("failed to encode qr code")
		writeError(w, apperrors.Internal("Failed to render QR code"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// remoteURL falls back to the request's own host when no public base URL
// is configured.
func (h *QRHandler) remoteURL(r *http.Request, sessionID string) string {
	base := h.publicBaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/remote/" + sessionID
}
