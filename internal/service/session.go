package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smartpreach/smartpreach-server/internal/audit"
	apperrors "github.com/smartpreach/smartpreach-server/internal/errors"
	"github.com/smartpreach/smartpreach-server/internal/model"
	"github.com/smartpreach/smartpreach-server/internal/repository"
	"github.com/smartpreach/smartpreach-server/internal/sse"
	"github.com/smartpreach/smartpreach-server/internal/util"
)

// Generated ids practically never collide; a few attempts cover the rest.
const createSessionAttempts = 3

type LiveSessionService struct {
	repo   repository.LiveSessionRepository
	broker *sse.Broker
	now    func() time.Time
}

type Option func(*LiveSessionService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *LiveSessionService) {
		s.now = now
	}
}

func NewLiveSessionService(repo repository.LiveSessionRepository, broker *sse.Broker, opts ...Option) *LiveSessionService {
	s := &LiveSessionService{
		repo:   repo,
		broker: broker,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session with default display state.
func (s *LiveSessionService) Create(ctx context.Context, presentationID *int64) (*model.LiveSession, error) {
	if presentationID != nil && *presentationID <= 0 {
		return nil, apperrors.InvalidInput("presentationId", "must be a positive integer")
	}

	var session *model.LiveSession
	for attempt := 1; attempt <= createSessionAttempts; attempt++ {
		id, err := util.GenerateSessionID()
		if err != nil {
			return nil, apperrors.Internal("Failed to generate session id").WithCause(err)
		}

		session, err = s.repo.Create(ctx, model.CreateLiveSessionParams{
			ID:             id,
			PresentationID: presentationID,
			Now:            s.now().Unix(),
		})
		if errors.Is(err, repository.ErrDuplicateID) {
			log.Warn().Int("attempt", attempt).Msg("live session id collision, regenerating")
			continue
		}
		if err != nil {
			return nil, apperrors.StoreUnavailable(fmt.Errorf("create live session: %w", err))
		}
		break
	}
	if session == nil {
		return nil, apperrors.Internal("Failed to allocate a unique session id")
	}

	log.Info().
		Str("sessionId", util.MaskSessionID(session.ID)).
		Msg("live session created")

	details := map[string]interface{}{}
	if presentationID != nil {
		details["presentationId"] = *presentationID
	}
	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionCreate,
		SessionID: session.ID,
		Details:   details,
	})

	return session, nil
}

// Get returns the session or a NOT_FOUND error when it ended, expired or never existed.
func (s *LiveSessionService) Get(ctx context.Context, id string) (*model.LiveSession, error) {
	if id == "" {
		return nil, apperrors.MissingRequired("sessionId")
	}
	if !util.IsValidSessionID(id) {
		return nil, apperrors.NotFound("Live session")
	}

	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("find live session: %w", err))
	}
	if session == nil {
		return nil, apperrors.NotFound("Live session")
	}
	return session, nil
}

// Update applies a sparse, last-write-wins change. An empty change set
// returns the current row untouched. Unknown ids are NOT_FOUND and no row
// is created.
func (s *LiveSessionService) Update(ctx context.Context, id string, params model.UpdateLiveSessionParams) (*model.LiveSession, error) {
	if id == "" {
		return nil, apperrors.MissingRequired("sessionId")
	}

	params, err := normalizeUpdate(params)
	if err != nil {
		return nil, err
	}

	if !util.IsValidSessionID(id) {
		return nil, apperrors.NotFound("Live session")
	}

	session, err := s.repo.Update(ctx, id, params, s.now().Unix())
	if errors.Is(err, repository.ErrStaleUpdate) {
		return nil, apperrors.Conflict("Live session changed since it was last read")
	}
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("update live session: %w", err))
	}
	if session == nil {
		return nil, apperrors.NotFound("Live session")
	}

	if params.IsEmpty() {
		return session, nil
	}

	s.publish(ctx, session.ID, model.SessionEventState, session)

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionUpdate,
		SessionID: session.ID,
		Details: map[string]interface{}{
			"fields":    changedFields(params),
			"updatedAt": session.UpdatedAt,
		},
	})

	return session, nil
}

// Delete ends a session. Deleting an unknown id succeeds.
func (s *LiveSessionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.MissingRequired("sessionId")
	}
	if !util.IsValidSessionID(id) {
		return nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("delete live session: %w", err))
	}

	s.publish(ctx, id, model.SessionEventEnded, endedPayload{SessionID: id, State: model.SessionStateEnded})

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionEnd,
		SessionID: id,
	})

	return nil
}

// CleanupExpired removes sessions created more than maxAge ago, regardless
// of recent activity, and returns how many were removed.
func (s *LiveSessionService) CleanupExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		maxAge = model.DefaultSessionMaxAge
	}
	cutoff := s.now().Add(-maxAge).Unix()

	ids, err := s.repo.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, apperrors.StoreUnavailable(fmt.Errorf("delete expired live sessions: %w", err))
	}

	for _, id := range ids {
		s.publish(ctx, id, model.SessionEventEnded, endedPayload{SessionID: id, State: model.SessionStateExpired})
	}

	if len(ids) > 0 {
		audit.Log(ctx, audit.Event{
			Type: audit.EventSessionExpire,
			Details: map[string]interface{}{
				"count":  int64(len(ids)),
				"cutoff": cutoff,
			},
		})
	}

	return int64(len(ids)), nil
}

type endedPayload struct {
	SessionID string             `json:"sessionId"`
	State     model.SessionState `json:"state"`
}

// publish is best effort: a lost event is recovered by the next poll.
func (s *LiveSessionService) publish(ctx context.Context, sessionID string, eventType model.SessionEventType, payload any) {
	if s.broker == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal session event")
		return
	}

	if err := s.broker.Publish(ctx, sessionID, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Warn().
			Err(err).
			Str("sessionId", util.MaskSessionID(sessionID)).
			Str("eventType", string(eventType)).
			Msg("failed to publish session event")
	}
}

func normalizeUpdate(params model.UpdateLiveSessionParams) (model.UpdateLiveSessionParams, error) {
	if params.CurrentReference != nil && !params.ClearReference {
		ref := strings.TrimSpace(*params.CurrentReference)
		if ref == "" {
			params.CurrentReference = nil
			params.ClearReference = true
		} else {
			if len(ref) > model.MaxReferenceLength {
				return params, apperrors.InvalidInput("current_reference", fmt.Sprintf("must be at most %d characters", model.MaxReferenceLength))
			}
			params.CurrentReference = &ref
		}
	}
	if params.FontSize != nil && (*params.FontSize < model.MinFontSize || *params.FontSize > model.MaxFontSize) {
		return params, apperrors.InvalidInput("font_size", fmt.Sprintf("must be between %d and %d", model.MinFontSize, model.MaxFontSize))
	}
	if params.SlideIndex != nil && *params.SlideIndex < 0 {
		return params, apperrors.InvalidInput("slide_index", "must not be negative")
	}
	if params.PresentationID != nil && !params.ClearPresentation && *params.PresentationID <= 0 {
		return params, apperrors.InvalidInput("presentation_id", "must be a positive integer")
	}
	return params, nil
}

func changedFields(p model.UpdateLiveSessionParams) []string {
	var fields []string
	if p.PresentationID != nil || p.ClearPresentation {
		fields = append(fields, "presentation_id")
	}
	if p.CurrentReference != nil || p.ClearReference {
		fields = append(fields, "current_reference")
	}
	if p.SlideIndex != nil {
		fields = append(fields, "slide_index")
	}
	if p.FontSize != nil {
		fields = append(fields, "font_size")
	}
	if p.IsBlackout != nil {
		fields = append(fields, "is_blackout")
	}
	return fields
}
