package activity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahin/boardsync/internal/debounce"
	"github.com/nahin/boardsync/internal/model"
	"github.com/nahin/boardsync/internal/storage/memory"
)

type fakeSender struct {
	mu      sync.Mutex
	events  []model.ActivityEvent
	actions []model.LegacyAction
	err     error
}

func (f *fakeSender) PostActivity(_ context.Context, event model.ActivityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSender) PostAction(_ context.Context, action model.LegacyAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeSender) Events() []model.ActivityEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ActivityEvent(nil), f.events...)
}

func (f *fakeSender) Actions() []model.LegacyAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.LegacyAction(nil), f.actions...)
}

// fakeIdentity lets a test flip login state between schedule and send.
type fakeIdentity struct {
	mu    sync.Mutex
	ident *model.Identity
}

func (f *fakeIdentity) Identity(context.Context) *model.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ident
}

func (f *fakeIdentity) set(ident *model.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ident = ident
}

func loggedIn() *fakeIdentity {
	return &fakeIdentity{ident: &model.Identity{
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}}
}

type trackerFixture struct {
	tracker *Tracker
	sender  *fakeSender
	ids     *fakeIdentity
	sched   *debounce.Scheduler
	clock   *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

func newFixture(t *testing.T, opts Options) *trackerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := debounce.NewScheduler(logger)
	t.Cleanup(sched.Stop)

	sender := &fakeSender{}
	ids := loggedIn()
	tracker, err := NewTracker(memory.New(), ids, sender, nil, sched, logger, opts)
	require.NoError(t, err)

	clock := &fakeClock{at: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tracker.now = clock.now

	return &trackerFixture{tracker: tracker, sender: sender, ids: ids, sched: sched, clock: clock}
}

func TestSessionIDPersistsAcrossTrackers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := debounce.NewScheduler(logger)
	defer sched.Stop()
	kv := memory.New()

	first, err := NewTracker(kv, loggedIn(), &fakeSender{}, nil, sched, logger, Options{})
	require.NoError(t, err)
	second, err := NewTracker(kv, loggedIn(), &fakeSender{}, nil, sched, logger, Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, first.SessionID())
	assert.Equal(t, first.SessionID(), second.SessionID(),
		"trackers on the same store must share one session id")
}

func TestViewSessionEmitsBothEventsOnlyAtStop(t *testing.T) {
	f := newFixture(t, Options{})

	view := f.tracker.StartView("42")
	assert.Empty(t, f.sender.Events(), "nothing may be sent at view start")

	f.clock.advance(12 * time.Second)
	view.Stop(EngagementState{IsLiked: model.Bool(true)})

	events := f.sender.Events()
	require.Len(t, events, 2)

	start := events[0]
	assert.Equal(t, model.EventViewGameStart, start.Type)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), start.Timestamp,
		"START carries the original start timestamp, sent retroactively")

	end := events[1]
	assert.Equal(t, model.EventViewGameEnd, end.Type)
	assert.Equal(t, 12, end.Data["duration"])
	assert.Equal(t, true, end.Data["isLiked"])
	_, hasFavorite := end.Data["isFavorite"]
	assert.False(t, hasFavorite, "unknown engagement fields stay absent")

	assert.Equal(t, start.SessionID, end.SessionID)
	assert.Equal(t, "user-1", end.UserID)
	assert.NotEqual(t, start.ID, end.ID)
}

func TestViewSessionStopTwice(t *testing.T) {
	f := newFixture(t, Options{})
	view := f.tracker.StartView("42")
	view.Stop(EngagementState{})
	view.Stop(EngagementState{})
	assert.Len(t, f.sender.Events(), 2, "second Stop must be ignored")
}

func TestViewDurationFloorsSubSecond(t *testing.T) {
	f := newFixture(t, Options{})
	view := f.tracker.StartView("42")
	f.clock.advance(3*time.Second + 900*time.Millisecond)
	view.Stop(EngagementState{})

	end := f.sender.Events()[1]
	assert.Equal(t, 3, end.Data["duration"])
}

func TestTrackLikeDebounces(t *testing.T) {
	f := newFixture(t, Options{ActionDelay: time.Hour})

	// Rapid like/unlike/like: one event, final value.
	f.tracker.TrackLike("42", true)
	f.tracker.TrackLike("42", false)
	f.tracker.TrackLike("42", true)

	assert.Empty(t, f.sender.Events(), "nothing sends before the delay elapses")
	f.sched.FlushAll()

	events := f.sender.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventLikeGame, events[0].Type)
	assert.Equal(t, true, events[0].Data["isLiked"])
}

func TestTrackKeysAreIndependent(t *testing.T) {
	f := newFixture(t, Options{ActionDelay: time.Hour, SearchDelay: time.Hour})

	f.tracker.TrackLike("42", true)
	f.tracker.TrackFavorite("42", true)
	f.tracker.TrackLike("43", true)
	f.tracker.TrackRating("42", 4.5)
	f.tracker.TrackSearch("azul")
	f.tracker.TrackFilter(map[string]any{"maxPlayers": 4})

	f.sched.FlushAll()
	assert.Len(t, f.sender.Events(), 6,
		"each (action, game) pair and each of search/filter keeps its own timer")
}

func TestSearchCoalescesToFinalQuery(t *testing.T) {
	f := newFixture(t, Options{SearchDelay: time.Hour})

	for _, q := range []string{"a", "az", "azu", "azul"} {
		f.tracker.TrackSearch(q)
	}
	f.sched.FlushAll()

	events := f.sender.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "azul", events[0].Data["query"])
}

func TestAuthCheckedAtSendTime(t *testing.T) {
	f := newFixture(t, Options{ActionDelay: time.Hour})

	// Logged in when the event is scheduled...
	f.tracker.TrackLike("42", true)
	// ...but logged out by the time the timer fires.
	f.ids.set(nil)
	f.sched.FlushAll()

	assert.Empty(t, f.sender.Events(), "event must be dropped at send time")
}

func TestAnonymousViewSessionSendsNothing(t *testing.T) {
	f := newFixture(t, Options{})
	f.ids.set(nil)

	view := f.tracker.StartView("42")
	f.clock.advance(5 * time.Second)
	view.Stop(EngagementState{})

	assert.Empty(t, f.sender.Events())
}

func TestNilSenderIsNoOp(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := debounce.NewScheduler(logger)
	defer sched.Stop()

	tracker, err := NewTracker(memory.New(), loggedIn(), nil, nil, sched, logger, Options{ActionDelay: time.Hour})
	require.NoError(t, err)

	tracker.TrackLike("42", true)
	sched.FlushAll() // must not panic
}

func TestSendFailureDropsEvent(t *testing.T) {
	f := newFixture(t, Options{ActionDelay: time.Hour})
	f.sender.err = errors.New("http 500")

	f.tracker.TrackLike("42", true)
	f.sched.FlushAll()

	assert.Empty(t, f.sender.Events())
	// No retry: flushing again sends nothing, the event is gone.
	f.sender.err = nil
	f.sched.FlushAll()
	assert.Empty(t, f.sender.Events())
}

func TestLegacyMirror(t *testing.T) {
	f := newFixture(t, Options{ActionDelay: time.Hour, LegacyActions: true})

	f.tracker.TrackLike("42", true)
	f.sched.FlushAll()

	actions := f.sender.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "like", actions[0].ActionType)
	assert.Equal(t, "true", actions[0].ActionValue)
	assert.Equal(t, model.GameID("42"), actions[0].BoardgameID)
	assert.Equal(t, "user-1", actions[0].UserID)
}

func TestLegacyMirrorDisabledByDefault(t *testing.T) {
	f := newFixture(t, Options{ActionDelay: time.Hour})
	f.tracker.TrackLike("42", true)
	f.sched.FlushAll()
	assert.Empty(t, f.sender.Actions())
}

func TestUnknownEventTypeDropped(t *testing.T) {
	f := newFixture(t, Options{})

	f.tracker.send(model.EventType("DRAG_GAME"), map[string]any{"gameId": "42"})
	assert.Empty(t, f.sender.Events(), "types outside the closed set never reach the wire")

	f.tracker.send(model.EventLikeGame, map[string]any{"gameId": "42", "isLiked": true})
	assert.Len(t, f.sender.Events(), 1)
}
