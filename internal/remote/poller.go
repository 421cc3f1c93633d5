package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smartpreach/smartpreach-server/internal/model"
	"github.com/smartpreach/smartpreach-server/internal/util"
)

const (
	DefaultPollInterval      = 1000 * time.Millisecond
	DefaultReferenceDebounce = 300 * time.Millisecond
)

// SessionAPI is the part of Client the poller needs.
type SessionAPI interface {
	Get(ctx context.Context, sessionID string) (*model.LiveSession, error)
	Update(ctx context.Context, sessionID string, updates Updates, ifUpdatedAt *int64) (*model.LiveSession, error)
}

type PollerConfig struct {
	Interval time.Duration
	Debounce time.Duration

	// OnReference runs the expensive work for a new reference, such as a
	// scripture lookup. It is debounced and called from its own goroutine.
	OnReference func(ctx context.Context, reference string)
	// OnDisplay receives font size and blackout on every successful poll.
	OnDisplay func(state State)
	// OnConnection is called when the connected flag flips.
	OnConnection func(connected bool)
}

// Poller mirrors one live session by polling it at a fixed interval.
// Failed polls only flip the connected flag; the next tick retries.
type Poller struct {
	api       SessionAPI
	sessionID string
	cfg       PollerConfig

	mu            sync.Mutex
	state         State
	connected     bool
	lastProcessed string
	pendingRef    string
	debounce      *time.Timer
	debounceGen   uint64
	// pendingWrites counts Sends whose Update has not returned yet.
	pendingWrites int
	runCtx        context.Context
}

func NewPoller(api SessionAPI, sessionID string, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultReferenceDebounce
	}
	return &Poller{
		api:       api,
		sessionID: sessionID,
		cfg:       cfg,
		runCtx:    context.Background(),
	}
}

// Run polls until ctx is cancelled. Cancellation also aborts the request
// in flight and any pending debounced reference.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	p.runCtx = ctx
	p.mu.Unlock()

	defer p.stopDebounce()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	_ = p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = p.poll(ctx)
		}
	}
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Refresh polls once and reports the error a tick would swallow.
func (p *Poller) Refresh(ctx context.Context) error {
	return p.poll(ctx)
}

func (p *Poller) poll(ctx context.Context) error {
	session, err := p.api.Get(ctx, p.sessionID)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			log.Debug().Err(err).Str("sessionId", util.MaskSessionID(p.sessionID)).Msg("poll failed")
		}
		p.setConnected(false)
		return err
	}

	p.setConnected(true)
	p.apply(session)
	return nil
}

// apply folds a server snapshot into local state. A snapshot older than
// one already seen is a late response and is dropped. While a write is in
// flight the snapshot must be strictly newer, otherwise it predates the
// optimistic change and would undo it.
func (p *Poller) apply(session *model.LiveSession) {
	p.mu.Lock()
	p.applyLocked(session)
}

// applyLocked expects p.mu held and releases it.
func (p *Poller) applyLocked(session *model.LiveSession) {
	if session.UpdatedAt < p.state.UpdatedAt ||
		(p.pendingWrites > 0 && session.UpdatedAt == p.state.UpdatedAt) {
		p.mu.Unlock()
		return
	}
	p.state = stateFromSession(session)
	state := p.state
	p.scheduleReferenceLocked(state.Reference)
	p.mu.Unlock()

	if p.cfg.OnDisplay != nil {
		p.cfg.OnDisplay(state)
	}
}

// Send applies cmd to local state first, then writes it to the server.
// A failed write is logged and not retried; the next poll restores the
// server's view.
func (p *Poller) Send(ctx context.Context, cmd Command) error {
	p.mu.Lock()
	next, updates := cmd.Apply(p.state)
	if len(updates) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.state = next
	p.pendingWrites++
	p.scheduleReferenceLocked(next.Reference)
	p.mu.Unlock()

	if p.cfg.OnDisplay != nil {
		p.cfg.OnDisplay(next)
	}

	session, err := p.api.Update(ctx, p.sessionID, updates, nil)

	p.mu.Lock()
	p.pendingWrites--
	if err != nil {
		p.mu.Unlock()
		log.Warn().Err(err).Str("sessionId", util.MaskSessionID(p.sessionID)).Msg("failed to send remote command")
		if errors.Is(err, ErrSessionNotFound) {
			p.setConnected(false)
		}
		return err
	}
	if session == nil {
		p.mu.Unlock()
		return nil
	}
	p.applyLocked(session)
	return nil
}

func (p *Poller) setConnected(connected bool) {
	p.mu.Lock()
	changed := p.connected != connected
	p.connected = connected
	p.mu.Unlock()

	if changed && p.cfg.OnConnection != nil {
		p.cfg.OnConnection(connected)
	}
}

// scheduleReferenceLocked (re)arms the debounce when ref differs from the
// last reference handed to OnReference.
func (p *Poller) scheduleReferenceLocked(ref string) {
	if ref == p.lastProcessed {
		p.cancelDebounceLocked()
		return
	}
	if ref == p.pendingRef && p.debounce != nil {
		return
	}

	p.cancelDebounceLocked()
	p.pendingRef = ref
	gen := p.debounceGen
	p.debounce = time.AfterFunc(p.cfg.Debounce, func() { p.fireReference(gen) })
}

func (p *Poller) cancelDebounceLocked() {
	if p.debounce != nil {
		p.debounce.Stop()
		p.debounce = nil
	}
	p.pendingRef = ""
	p.debounceGen++
}

func (p *Poller) fireReference(gen uint64) {
	p.mu.Lock()
	ref := p.pendingRef
	ctx := p.runCtx
	if gen != p.debounceGen || p.debounce == nil || ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	p.lastProcessed = ref
	p.pendingRef = ""
	p.debounce = nil
	p.mu.Unlock()

	if p.cfg.OnReference != nil {
		p.cfg.OnReference(ctx, ref)
	}
}

func (p *Poller) stopDebounce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelDebounceLocked()
}
