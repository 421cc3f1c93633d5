package model

import "time"

// Session id shape: 12 characters over a 62-character alphabet, about 71 bits.
// Ids are bearer capabilities for a single service, not long-term credentials.
const (
	SessionIDLength   = 12
	SessionIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

const (
	DefaultFontSize = 100
	MinFontSize     = 50
	MaxFontSize     = 200
	FontSizeStep    = 10

	MaxReferenceLength = 200

	DefaultSessionMaxAge = 24 * time.Hour
)

// LiveSession is the remote-control state shared by the presenter display
// and any number of remote clients holding the id.
type LiveSession struct {
	ID               string  `db:"id" json:"id"`
	PresentationID   *int64  `db:"presentation_id" json:"presentation_id"`
	CurrentReference *string `db:"current_reference" json:"current_reference"`
	SlideIndex       int     `db:"slide_index" json:"slide_index"`
	FontSize         int     `db:"font_size" json:"font_size"`
	IsBlackout       bool    `db:"is_blackout" json:"is_blackout"`
	CreatedAt        int64   `db:"created_at" json:"created_at"`
	UpdatedAt        int64   `db:"updated_at" json:"updated_at"`
}

// Reference returns the current reference or "" when none is set.
func (s *LiveSession) Reference() string {
	if s == nil || s.CurrentReference == nil {
		return ""
	}
	return *s.CurrentReference
}

type CreateLiveSessionParams struct {
	ID             string
	PresentationID *int64
	Now            int64
}

// UpdateLiveSessionParams is a sparse update: nil fields are left untouched.
// The Clear flags set a nullable column to NULL and win over a value.
type UpdateLiveSessionParams struct {
	PresentationID    *int64
	ClearPresentation bool
	CurrentReference  *string
	ClearReference    bool
	SlideIndex        *int
	FontSize          *int
	IsBlackout        *bool

	// ExpectedUpdatedAt is an optional precondition, not a column: when set,
	// the update only applies if the row's updated_at still equals it.
	ExpectedUpdatedAt *int64
}

// IsEmpty reports whether no column would change. The precondition does not count.
func (p UpdateLiveSessionParams) IsEmpty() bool {
	return p.PresentationID == nil && !p.ClearPresentation &&
		p.CurrentReference == nil && !p.ClearReference &&
		p.SlideIndex == nil && p.FontSize == nil && p.IsBlackout == nil
}

// ClampFontSize bounds a font scale percentage to what the display supports.
func ClampFontSize(size int) int {
	if size < MinFontSize {
		return MinFontSize
	}
	if size > MaxFontSize {
		return MaxFontSize
	}
	return size
}
