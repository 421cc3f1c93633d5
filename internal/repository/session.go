package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/smartpreach/smartpreach-server/internal/model"
)

var (
	// ErrDuplicateID is returned by Create when the generated id is already taken.
	ErrDuplicateID = errors.New("live session id already exists")
	// ErrStaleUpdate is returned by Update when params.ExpectedUpdatedAt no
	// longer matches the row.
	ErrStaleUpdate = errors.New("live session changed since expected version")
)

type LiveSessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.LiveSession, error)
	Create(ctx context.Context, params model.CreateLiveSessionParams) (*model.LiveSession, error)
	// Update applies only the fields present in params and returns the new row,
	// or nil when no row has that id. Rows are never created here.
	Update(ctx context.Context, id string, params model.UpdateLiveSessionParams, now int64) (*model.LiveSession, error)
	Delete(ctx context.Context, id string) error
	// DeleteCreatedBefore removes rows by creation age and returns their ids.
	DeleteCreatedBefore(ctx context.Context, cutoff int64) ([]string, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) LiveSessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

type liveSessionRepo struct {
	db sessionDB
}

func NewLiveSessionRepository(db *sqlx.DB) LiveSessionRepository {
	return &liveSessionRepo{db: db}
}

func (r *liveSessionRepo) WithTx(tx *sqlx.Tx) LiveSessionRepository {
	return &liveSessionRepo{db: tx}
}

func (r *liveSessionRepo) FindByID(ctx context.Context, id string) (*model.LiveSession, error) {
	var session model.LiveSession
	err := r.db.GetContext(ctx, &session, r.db.Rebind(`
		SELECT * FROM live_sessions WHERE id = ?
	`), id)
	return HandleNotFound(&session, err)
}

func (r *liveSessionRepo) Create(ctx context.Context, params model.CreateLiveSessionParams) (*model.LiveSession, error) {
	var session model.LiveSession
	err := r.db.GetContext(ctx, &session, r.db.Rebind(`
		INSERT INTO live_sessions (id, presentation_id, current_reference, slide_index, font_size, is_blackout, created_at, updated_at)
		VALUES (?, ?, NULL, 0, ?, 0, ?, ?)
		RETURNING *
	`), params.ID, params.PresentationID, model.DefaultFontSize, params.Now, params.Now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateID
		}
		return nil, err
	}
	return &session, nil
}

func (r *liveSessionRepo) Update(ctx context.Context, id string, params model.UpdateLiveSessionParams, now int64) (*model.LiveSession, error) {
	if params.IsEmpty() {
		session, err := r.FindByID(ctx, id)
		if err != nil || session == nil {
			return session, err
		}
		if params.ExpectedUpdatedAt != nil && *params.ExpectedUpdatedAt != session.UpdatedAt {
			return nil, ErrStaleUpdate
		}
		return session, nil
	}

	var sets []string
	var args []interface{}

	switch {
	case params.ClearPresentation:
		sets = append(sets, "presentation_id = NULL")
	case params.PresentationID != nil:
		sets = append(sets, "presentation_id = ?")
		args = append(args, *params.PresentationID)
	}
	switch {
	case params.ClearReference:
		sets = append(sets, "current_reference = NULL")
	case params.CurrentReference != nil:
		sets = append(sets, "current_reference = ?")
		args = append(args, *params.CurrentReference)
	}
	if params.SlideIndex != nil {
		sets = append(sets, "slide_index = ?")
		args = append(args, *params.SlideIndex)
	}
	if params.FontSize != nil {
		sets = append(sets, "font_size = ?")
		args = append(args, *params.FontSize)
	}
	if params.IsBlackout != nil {
		sets = append(sets, "is_blackout = ?")
		args = append(args, boolToInt(*params.IsBlackout))
	}

	// updated_at is the only change signal consumers have, so it must move
	// forward even when two writes land within the same second.
	sets = append(sets, "updated_at = CASE WHEN ? > updated_at THEN ? ELSE updated_at + 1 END")
	args = append(args, now, now, id)

	query := "UPDATE live_sessions SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if params.ExpectedUpdatedAt != nil {
		query += " AND updated_at = ?"
		args = append(args, *params.ExpectedUpdatedAt)
	}
	query += " RETURNING *"

	var session model.LiveSession
	err := r.db.GetContext(ctx, &session, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		if params.ExpectedUpdatedAt == nil {
			return nil, nil
		}
		// Either the row is gone or the precondition failed.
		existing, findErr := r.FindByID(ctx, id)
		if findErr != nil || existing == nil {
			return nil, findErr
		}
		return nil, ErrStaleUpdate
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *liveSessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM live_sessions WHERE id = ?
	`), id)
	return err
}

func (r *liveSessionRepo) DeleteCreatedBefore(ctx context.Context, cutoff int64) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`
		DELETE FROM live_sessions WHERE created_at < ? RETURNING id
	`), cutoff)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
