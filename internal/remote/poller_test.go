package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpreach/smartpreach-server/internal/model"
)

// fakeAPI serves a scripted session and records updates.
type fakeAPI struct {
	mu        sync.Mutex
	session   *model.LiveSession
	getErr    error
	updateErr error
	updates   []Updates
	gets      int
}

func (f *fakeAPI) Get(ctx context.Context, sessionID string) (*model.LiveSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	copied := *f.session
	return &copied, nil
}

func (f *fakeAPI) Update(ctx context.Context, sessionID string, updates Updates, ifUpdatedAt *int64) (*model.LiveSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updates)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if ref, ok := updates["current_reference"].(string); ok {
		f.session.CurrentReference = &ref
	}
	if size, ok := updates["font_size"].(int); ok {
		f.session.FontSize = size
	}
	if on, ok := updates["is_blackout"].(bool); ok {
		f.session.IsBlackout = on
	}
	f.session.UpdatedAt++
	copied := *f.session
	return &copied, nil
}

func (f *fakeAPI) set(fn func(s *model.LiveSession)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.session)
}

func (f *fakeAPI) setGetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{session: &model.LiveSession{
		ID:        "abcDEF123456",
		FontSize:  100,
		CreatedAt: 1000,
		UpdatedAt: 1000,
	}}
}

type recorder struct {
	mu          sync.Mutex
	references  []string
	displays    []State
	connections []bool
}

func (r *recorder) config(interval, debounce time.Duration) PollerConfig {
	return PollerConfig{
		Interval: interval,
		Debounce: debounce,
		OnReference: func(ctx context.Context, ref string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.references = append(r.references, ref)
		},
		OnDisplay: func(s State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.displays = append(r.displays, s)
		},
		OnConnection: func(connected bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.connections = append(r.connections, connected)
		},
	}
}

func (r *recorder) snapshot() ([]string, []State, []bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.references...), append([]State(nil), r.displays...), append([]bool(nil), r.connections...)
}

func startPoller(t *testing.T, p *Poller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestPoller_ConnectionFlag(t *testing.T) {
	api := newFakeAPI()
	rec := &recorder{}
	p := NewPoller(api, "abcDEF123456", rec.config(10*time.Millisecond, 10*time.Millisecond))
	startPoller(t, p)

	require.Eventually(t, p.Connected, time.Second, 5*time.Millisecond)

	api.setGetErr(errors.New("network unreachable"))
	require.Eventually(t, func() bool { return !p.Connected() }, time.Second, 5*time.Millisecond)

	api.setGetErr(nil)
	require.Eventually(t, p.Connected, time.Second, 5*time.Millisecond)

	api.setGetErr(ErrSessionNotFound)
	require.Eventually(t, func() bool { return !p.Connected() }, time.Second, 5*time.Millisecond)

	_, _, connections := rec.snapshot()
	assert.Equal(t, []bool{true, false, true, false}, connections)
}

func TestPoller_DisplayAppliedEveryPoll(t *testing.T) {
	api := newFakeAPI()
	rec := &recorder{}
	p := NewPoller(api, "abcDEF123456", rec.config(10*time.Millisecond, time.Hour))
	startPoller(t, p)

	api.set(func(s *model.LiveSession) {
		s.FontSize = 150
		s.IsBlackout = true
		s.UpdatedAt++
	})

	require.Eventually(t, func() bool {
		_, displays, _ := rec.snapshot()
		return len(displays) >= 3 && displays[len(displays)-1].FontSize == 150
	}, time.Second, 5*time.Millisecond)

	assert.True(t, p.State().IsBlackout)
}

func TestPoller_DebouncedReference(t *testing.T) {
	api := newFakeAPI()
	rec := &recorder{}
	p := NewPoller(api, "abcDEF123456", rec.config(5*time.Millisecond, 80*time.Millisecond))
	startPoller(t, p)

	setRef := func(ref string) {
		api.set(func(s *model.LiveSession) {
			s.CurrentReference = &ref
			s.UpdatedAt++
		})
	}

	// Rapid changes within the debounce window collapse into one lookup.
	setRef("John 3:16")
	time.Sleep(20 * time.Millisecond)
	setRef("John 3:17")
	time.Sleep(20 * time.Millisecond)
	setRef("John 3:18")

	require.Eventually(t, func() bool {
		refs, _, _ := rec.snapshot()
		return len(refs) == 1
	}, time.Second, 5*time.Millisecond)

	refs, _, _ := rec.snapshot()
	assert.Equal(t, []string{"John 3:18"}, refs)

	// The same reference polled again is not reprocessed.
	time.Sleep(150 * time.Millisecond)
	refs, _, _ = rec.snapshot()
	assert.Len(t, refs, 1)
}

func TestPoller_SendIsOptimistic(t *testing.T) {
	api := newFakeAPI()
	api.set(func(s *model.LiveSession) {
		ref := "John 3:16"
		s.CurrentReference = &ref
	})

	rec := &recorder{}
	p := NewPoller(api, "abcDEF123456", rec.config(time.Hour, 10*time.Millisecond))
	require.NoError(t, p.Refresh(context.Background()))

	// The local state changes before the write lands.
	api.mu.Lock()
	require.NoError(t, sendAsync(p, NextVerse{}))
	assert.Equal(t, "John 3:17", p.State().Reference)
	api.mu.Unlock()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.updates) == 1
	}, time.Second, 5*time.Millisecond)

	api.mu.Lock()
	assert.Equal(t, Updates{"current_reference": "John 3:17"}, api.updates[0])
	api.mu.Unlock()
}

func TestPoller_PollDuringWriteKeepsOptimisticState(t *testing.T) {
	api := newFakeAPI()
	api.set(func(s *model.LiveSession) {
		ref := "John 3:16"
		s.CurrentReference = &ref
	})

	p := NewPoller(api, "abcDEF123456", PollerConfig{Interval: time.Hour, Debounce: time.Hour})
	require.NoError(t, p.Refresh(context.Background()))

	done := make(chan error, 1)
	api.mu.Lock()
	before := p.State()
	go func() { done <- p.Send(context.Background(), NextVerse{}) }()
	require.Eventually(t, func() bool { return p.State() != before }, time.Second, time.Millisecond)

	// A poll issued before the write reaches the server carries the same
	// updated_at as local state and must not roll the change back.
	ref := "John 3:16"
	p.apply(&model.LiveSession{ID: "abcDEF123456", CurrentReference: &ref, FontSize: 100, UpdatedAt: 1000})
	assert.Equal(t, "John 3:17", p.State().Reference)
	api.mu.Unlock()

	require.NoError(t, <-done)
	assert.Equal(t, "John 3:17", p.State().Reference)
	assert.Equal(t, int64(1001), p.State().UpdatedAt)

	// With no write in flight a same-version snapshot is accepted again.
	p.apply(&model.LiveSession{ID: "abcDEF123456", CurrentReference: &ref, FontSize: 100, UpdatedAt: 1001})
	assert.Equal(t, "John 3:16", p.State().Reference)
}

// sendAsync starts Send and waits until its optimistic apply is visible.
func sendAsync(p *Poller, cmd Command) error {
	before := p.State()
	go func() { _ = p.Send(context.Background(), cmd) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.State() != before {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return errors.New("optimistic apply not observed")
}

func TestPoller_SendFailureIsNotRetried(t *testing.T) {
	api := newFakeAPI()
	api.updateErr = errors.New("store unavailable")

	p := NewPoller(api, "abcDEF123456", PollerConfig{Interval: time.Hour})
	require.NoError(t, p.Refresh(context.Background()))

	err := p.Send(context.Background(), FontUp{})

	assert.Error(t, err)
	assert.Equal(t, 110, p.State().FontSize)
	assert.Len(t, api.updates, 1)
}

func TestPoller_NoOpCommandSendsNothing(t *testing.T) {
	api := newFakeAPI()
	api.set(func(s *model.LiveSession) { s.FontSize = model.MaxFontSize })

	p := NewPoller(api, "abcDEF123456", PollerConfig{Interval: time.Hour})
	require.NoError(t, p.Refresh(context.Background()))

	require.NoError(t, p.Send(context.Background(), FontUp{}))
	assert.Empty(t, api.updates)
}

func TestPoller_DiscardsStaleSnapshots(t *testing.T) {
	api := newFakeAPI()
	p := NewPoller(api, "abcDEF123456", PollerConfig{Interval: time.Hour})

	p.apply(&model.LiveSession{FontSize: 150, UpdatedAt: 2000})
	p.apply(&model.LiveSession{FontSize: 90, UpdatedAt: 1500})

	assert.Equal(t, 150, p.State().FontSize)
	assert.Equal(t, int64(2000), p.State().UpdatedAt)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	api := newFakeAPI()
	p := NewPoller(api, "abcDEF123456", PollerConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	api.mu.Lock()
	gets := api.gets
	api.mu.Unlock()
	time.Sleep(20 * time.Millisecond)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, gets, api.gets)
}
