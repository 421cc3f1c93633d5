package remote

import (
	"strings"

	"github.com/smartpreach/smartpreach-server/internal/model"
)

// State is the locally mirrored part of a live session.
type State struct {
	Reference  string
	SlideIndex int
	FontSize   int
	IsBlackout bool
	UpdatedAt  int64
}

func stateFromSession(s *model.LiveSession) State {
	return State{
		Reference:  s.Reference(),
		SlideIndex: s.SlideIndex,
		FontSize:   s.FontSize,
		IsBlackout: s.IsBlackout,
		UpdatedAt:  s.UpdatedAt,
	}
}

// Command is a remote-control action. Apply returns the optimistic local
// state and the sparse update to send; empty updates mean nothing to do.
type Command interface {
	Apply(s State) (State, Updates)
}

type NextVerse struct{}

func (NextVerse) Apply(s State) (State, Updates) {
	return stepReference(s, Reference.Next)
}

type PrevVerse struct{}

func (PrevVerse) Apply(s State) (State, Updates) {
	return stepReference(s, Reference.Prev)
}

func stepReference(s State, step func(Reference) Reference) (State, Updates) {
	ref, err := ParseReference(s.Reference)
	if err != nil {
		return s, nil
	}
	s.Reference = step(ref).String()
	return s, Updates{"current_reference": s.Reference}
}

// SetReference navigates to a reference; an empty one clears it.
type SetReference struct {
	Reference string
}

func (c SetReference) Apply(s State) (State, Updates) {
	ref := strings.TrimSpace(c.Reference)
	if parsed, err := ParseReference(ref); err == nil {
		ref = parsed.String()
	}
	s.Reference = ref
	if ref == "" {
		return s, Updates{"current_reference": nil}
	}
	return s, Updates{"current_reference": ref}
}

type ToggleBlackout struct{}

func (ToggleBlackout) Apply(s State) (State, Updates) {
	s.IsBlackout = !s.IsBlackout
	return s, Updates{"is_blackout": s.IsBlackout}
}

type SetBlackout struct {
	On bool
}

func (c SetBlackout) Apply(s State) (State, Updates) {
	s.IsBlackout = c.On
	return s, Updates{"is_blackout": c.On}
}

type FontUp struct{}

func (FontUp) Apply(s State) (State, Updates) {
	return SetFontSize{Size: currentFont(s) + model.FontSizeStep}.Apply(s)
}

type FontDown struct{}

func (FontDown) Apply(s State) (State, Updates) {
	return SetFontSize{Size: currentFont(s) - model.FontSizeStep}.Apply(s)
}

// SetFontSize clamps to the allowed range before sending.
type SetFontSize struct {
	Size int
}

func (c SetFontSize) Apply(s State) (State, Updates) {
	size := model.ClampFontSize(c.Size)
	if size == s.FontSize {
		return s, nil
	}
	s.FontSize = size
	return s, Updates{"font_size": size}
}

type SetSlide struct {
	Index int
}

func (c SetSlide) Apply(s State) (State, Updates) {
	s.SlideIndex = max(c.Index, 0)
	return s, Updates{"slide_index": s.SlideIndex}
}

func currentFont(s State) int {
	if s.FontSize == 0 {
		return model.DefaultFontSize
	}
	return s.FontSize
}
