// Package activity records session-scoped user interaction events and
// flushes them to the remote activity endpoint, best effort.
//
// Telemetry here is not correctness-critical: a failed send is logged and
// the event dropped — no retry, no outbox. View events are deliberately
// deferred to page exit so the END event can carry the view's final
// engagement state; a page that unmounts without calling Stop simply never
// reports that view.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/nahin/boardsync/internal/debounce"
	"github.com/nahin/boardsync/internal/model"
	"github.com/nahin/boardsync/internal/storage"
)

// Sender is the slice of the API client the tracker needs. A nil Sender
// means no remote endpoint is configured: every tracking call is a no-op.
type Sender interface {
	PostActivity(ctx context.Context, event model.ActivityEvent) error
	PostAction(ctx context.Context, action model.LegacyAction) error
}

// IdentitySource resolves the current identity. Checked at send time, not
// schedule time — login state can change during the debounce window.
type IdentitySource interface {
	Identity(ctx context.Context) *model.Identity
}

// GameNamer resolves a game's display name for the legacy action shape.
// Optional; nil leaves legacy GameName empty.
type GameNamer interface {
	Game(ctx context.Context, id model.GameID) (model.Game, bool)
}

// Options tunes the tracker's debounce delays. Delays are policy, not
// semantics: long enough to batch rapid toggling into one call while the
// user experiments, short enough that telemetry is not hours late.
type Options struct {
	// ActionDelay debounces like/favorite/rating events. Default 10s.
	ActionDelay time.Duration
	// SearchDelay debounces search and filter events. Default 5s.
	SearchDelay time.Duration
	// SendTimeout bounds each remote send. Default 5s.
	SendTimeout time.Duration
	// LegacyActions mirrors every event to /recommendations/actions.
	LegacyActions bool
}

func (o *Options) fillDefaults() {
	if o.ActionDelay == 0 {
		o.ActionDelay = 10 * time.Second
	}
	if o.SearchDelay == 0 {
		o.SearchDelay = 5 * time.Second
	}
	if o.SendTimeout == 0 {
		o.SendTimeout = 5 * time.Second
	}
}

// Tracker emits activity events under one session id. The session id is
// generated once per store lifetime and reused by every tracker built on
// the same store.
type Tracker struct {
	ids       IdentitySource
	sender    Sender
	namer     GameNamer
	sched     *debounce.Scheduler
	validate  *validator.Validate
	logger    *slog.Logger
	opts      Options
	sessionID string

	// now is time.Now outside of tests.
	now func() time.Time
}

func NewTracker(store storage.KeyValueStore, ids IdentitySource, sender Sender, namer GameNamer, sched *debounce.Scheduler, logger *slog.Logger, opts Options) (*Tracker, error) {
	opts.fillDefaults()

	sessionID, err := loadOrCreateSessionID(store)
	if err != nil {
		return nil, fmt.Errorf("activity: session id: %w", err)
	}

	return &Tracker{
		ids:       ids,
		sender:    sender,
		namer:     namer,
		sched:     sched,
		validate:  validator.New(),
		logger:    logger.With(slog.String("component", "activity")),
		opts:      opts,
		sessionID: sessionID,
		now:       time.Now,
	}, nil
}

func loadOrCreateSessionID(store storage.KeyValueStore) (string, error) {
	ctx := context.Background()
	if id, err := store.Get(ctx, storage.KeySessionID); err == nil && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	if err := store.Set(ctx, storage.KeySessionID, id); err != nil {
		return "", err
	}
	return id, nil
}

// SessionID returns the tracker's session identifier.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// ViewSession is one game-detail view in progress. Nothing is emitted at
// start; Stop emits both the START and END events.
type ViewSession struct {
	tracker   *Tracker
	gameID    model.GameID
	startedAt time.Time

	mu      sync.Mutex
	stopped bool
}

// EngagementState is the slice of the preference record known at view
// exit. Nil fields are omitted from the END event.
type EngagementState struct {
	IsLiked    *bool
	IsFavorite *bool
	UserRating *float64
}

// StartView begins a view session for gameID, capturing the start
// timestamp. No event is sent until Stop.
func (t *Tracker) StartView(gameID model.GameID) *ViewSession {
	return &ViewSession{
		tracker:   t,
		gameID:    gameID,
		startedAt: t.now(),
	}
}

// Stop ends the view session and emits VIEW_GAME_START (carrying the
// original start timestamp, retroactively) followed by VIEW_GAME_END
// (start, end, floored-seconds duration, and whatever engagement state is
// known). Second and later Stops are ignored.
func (v *ViewSession) Stop(final EngagementState) {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	v.mu.Unlock()

	t := v.tracker
	endedAt := t.now()
	duration := int(endedAt.Sub(v.startedAt).Seconds())

	t.sendAt(model.EventViewGameStart, v.startedAt, map[string]any{
		"gameId": v.gameID,
	})

	endData := map[string]any{
		"gameId":    v.gameID,
		"startedAt": v.startedAt,
		"endedAt":   endedAt,
		"duration":  duration,
	}
	if final.IsLiked != nil {
		endData["isLiked"] = *final.IsLiked
	}
	if final.IsFavorite != nil {
		endData["isFavorite"] = *final.IsFavorite
	}
	if final.UserRating != nil {
		endData["userRating"] = *final.UserRating
	}
	t.sendAt(model.EventViewGameEnd, endedAt, endData)
}

// TrackLike schedules a LIKE_GAME event, debounced per game so rapid
// like/unlike clicking collapses to one event carrying the final value.
func (t *Tracker) TrackLike(gameID model.GameID, liked bool) {
	t.sched.Schedule("activity:like:"+gameID.String(), t.opts.ActionDelay, func() {
		t.send(model.EventLikeGame, map[string]any{"gameId": gameID, "isLiked": liked})
	})
}

// TrackFavorite schedules a FAVORITE_GAME event; same debouncing as likes.
func (t *Tracker) TrackFavorite(gameID model.GameID, favorite bool) {
	t.sched.Schedule("activity:favorite:"+gameID.String(), t.opts.ActionDelay, func() {
		t.send(model.EventFavoriteGame, map[string]any{"gameId": gameID, "isFavorite": favorite})
	})
}

// TrackRating schedules a RATE_GAME event; a star-drag settles into one
// event with the final rating.
func (t *Tracker) TrackRating(gameID model.GameID, rating float64) {
	t.sched.Schedule("activity:rate:"+gameID.String(), t.opts.ActionDelay, func() {
		t.send(model.EventRateGame, map[string]any{"gameId": gameID, "userRating": rating})
	})
}

// TrackSearch schedules a SEARCH_GAME event under one shared key: further
// keystrokes cancel and restart the timer, so only the query as it stands
// after the user pauses is ever sent.
func (t *Tracker) TrackSearch(query string) {
	t.sched.Schedule("activity:search", t.opts.SearchDelay, func() {
		t.send(model.EventSearchGame, map[string]any{"query": query})
	})
}

// TrackFilter schedules a FILTER_GAME event under one shared key.
func (t *Tracker) TrackFilter(filters map[string]any) {
	t.sched.Schedule("activity:filter", t.opts.SearchDelay, func() {
		t.send(model.EventFilterGame, map[string]any{"filters": filters})
	})
}

func (t *Tracker) send(eventType model.EventType, data map[string]any) {
	t.sendAt(eventType, t.now(), data)
}

// sendAt builds and transmits one event. All gating lives here, at send
// time: an anonymous identity or a missing endpoint drops the event
// silently (logged at debug), whatever the state was when it got
// scheduled.
func (t *Tracker) sendAt(eventType model.EventType, timestamp time.Time, data map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), t.opts.SendTimeout)
	defer cancel()

	if t.sender == nil {
		return
	}
	if !model.ValidEventTypes[eventType] {
		t.logger.Error("unknown activity event type, dropped",
			slog.String("type", string(eventType)))
		return
	}
	ident := t.ids.Identity(ctx)
	if ident == nil {
		t.logger.Debug("dropping activity event, no authenticated identity",
			slog.String("type", string(eventType)))
		return
	}

	event := model.ActivityEvent{
		ID:        xid.New().String(),
		Type:      eventType,
		Data:      data,
		Timestamp: timestamp,
		UserID:    ident.UserID,
		SessionID: t.sessionID,
	}
	if err := t.validate.Struct(event); err != nil {
		t.logger.Error("activity event failed validation, dropped",
			slog.String("type", string(eventType)),
			slog.String("error", err.Error()))
		return
	}

	if err := t.sender.PostActivity(ctx, event); err != nil {
		t.logger.Error("activity send failed, event dropped",
			slog.String("type", string(eventType)),
			slog.String("error", err.Error()))
	}

	if t.opts.LegacyActions {
		action := t.legacyFor(ctx, event)
		if err := t.sender.PostAction(ctx, action); err != nil {
			t.logger.Error("legacy action send failed, dropped",
				slog.String("type", string(eventType)),
				slog.String("error", err.Error()))
		}
	}
}

// legacyFor maps an event onto the flat /recommendations/actions shape.
func (t *Tracker) legacyFor(ctx context.Context, event model.ActivityEvent) model.LegacyAction {
	action := model.LegacyAction{
		UserID:    event.UserID,
		Timestamp: event.Timestamp,
	}
	if id, ok := event.Data["gameId"].(model.GameID); ok {
		action.BoardgameID = id
		if t.namer != nil {
			if game, found := t.namer.Game(ctx, id); found {
				action.GameName = game.Name
			}
		}
	}

	switch event.Type {
	case model.EventLikeGame:
		action.ActionType = "like"
		action.ActionValue = fmt.Sprint(event.Data["isLiked"])
	case model.EventFavoriteGame:
		action.ActionType = "favorite"
		action.ActionValue = fmt.Sprint(event.Data["isFavorite"])
	case model.EventRateGame:
		action.ActionType = "rate"
		action.ActionValue = fmt.Sprint(event.Data["userRating"])
	case model.EventSearchGame:
		action.ActionType = "search"
		action.ActionValue = fmt.Sprint(event.Data["query"])
	case model.EventFilterGame:
		action.ActionType = "filter"
		if raw, err := json.Marshal(event.Data["filters"]); err == nil {
			action.ActionValue = string(raw)
		}
	case model.EventViewGameStart, model.EventViewGameEnd:
		action.ActionType = "view"
		if d, ok := event.Data["duration"]; ok {
			action.ActionValue = fmt.Sprint(d)
		}
	}
	return action
}
