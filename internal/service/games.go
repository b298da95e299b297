// Package service contains the business logic layer: it resolves the
// caller's identity once per user action, applies mutations optimistically
// to the local cache, and hands the remote half of each mutation to the
// debounced sync engine.
//
// The optimistic update protocol, per toggle:
//
//	Unconfirmed-Applied  — local value flipped, remote call scheduled
//	Confirmed            — remote call succeeded, nothing else to do
//	Reverted             — remote call failed AND the call site asked for
//	                       RollbackOnFailure: the pre-toggle value is
//	                       restored and the failure surfaced via the hook
//
// Rollback is required for list-removal call sites (removing a favorite
// inside the favorites view, where a silently failed removal leaves the UI
// permanently wrong); general browse toggles keep the optimistic local
// value and settle for a log line, since the user can just re-toggle.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/nahin/boardsync/internal/apperror"
	"github.com/nahin/boardsync/internal/auth"
	"github.com/nahin/boardsync/internal/catalog"
	"github.com/nahin/boardsync/internal/debounce"
	"github.com/nahin/boardsync/internal/model"
	"github.com/nahin/boardsync/internal/prefs"
)

// RollbackPolicy selects what happens to the local value when the remote
// sync of a toggle fails.
type RollbackPolicy int

const (
	// KeepLocalOnFailure: the optimistic local value stays authoritative
	// for the UI; the only visible failure is a log line.
	KeepLocalOnFailure RollbackPolicy = iota
	// RollbackOnFailure: the local value reverts to its pre-toggle state
	// and the failure hook fires so the view can recompute itself.
	RollbackOnFailure
)

// StateSyncer is the slice of the API client the service needs.
type StateSyncer interface {
	UpdateGameState(ctx context.Context, gameID model.GameID, update model.PreferencePatch) error
}

// ActivityTracker is what the service reports interactions to.
type ActivityTracker interface {
	TrackLike(gameID model.GameID, liked bool)
	TrackFavorite(gameID model.GameID, favorite bool)
	TrackRating(gameID model.GameID, rating float64)
	TrackSearch(query string)
	TrackFilter(filters map[string]any)
}

// Options tunes the service.
type Options struct {
	// SyncDelay debounces remote preference syncs. Default 250ms — short
	// enough to feel instant, long enough to absorb a double-click.
	SyncDelay time.Duration
	// SyncTimeout bounds each remote updateState call. Default 5s.
	SyncTimeout time.Duration
}

func (o *Options) fillDefaults() {
	if o.SyncDelay == 0 {
		o.SyncDelay = 250 * time.Millisecond
	}
	if o.SyncTimeout == 0 {
		o.SyncTimeout = 5 * time.Second
	}
}

// GameService orchestrates preference mutations end to end.
type GameService struct {
	tokens  *auth.TokenStore
	cache   *prefs.Cache
	catalog *catalog.Snapshot
	syncer  StateSyncer
	tracker ActivityTracker
	sched   *debounce.Scheduler
	logger  *slog.Logger
	opts    Options

	// onSyncFailure fires after a rollback so the owning view can
	// re-derive its state. Optional.
	onSyncFailure func(gameID model.GameID, err error)
}

func NewGameService(tokens *auth.TokenStore, cache *prefs.Cache, snap *catalog.Snapshot, syncer StateSyncer, tracker ActivityTracker, sched *debounce.Scheduler, logger *slog.Logger, opts Options) *GameService {
	opts.fillDefaults()
	return &GameService{
		tokens:  tokens,
		cache:   cache,
		catalog: snap,
		syncer:  syncer,
		tracker: tracker,
		sched:   sched,
		logger:  logger.With(slog.String("component", "games")),
		opts:    opts,
	}
}

// OnSyncFailure registers the rollback notification hook.
func (s *GameService) OnSyncFailure(fn func(gameID model.GameID, err error)) {
	s.onSyncFailure = fn
}

// ToggleFavorite flips the favorite bit optimistically and schedules the
// remote sync. policy picks the failure behavior per call site: browse
// views pass KeepLocalOnFailure, the favorites view passes
// RollbackOnFailure.
func (s *GameService) ToggleFavorite(ctx context.Context, gameID model.GameID, policy RollbackPolicy) (model.PreferenceRecord, error) {
	ident := s.tokens.Identity(ctx)
	if ident == nil {
		return model.PreferenceRecord{}, apperror.AuthRequired("toggle favorite")
	}

	prev := s.cache.Record(ctx, ident.UserID, gameID)
	newPrefs, err := s.cache.ToggleFavorite(ctx, ident.UserID, gameID)
	if err != nil {
		return model.PreferenceRecord{}, err
	}
	rec := newPrefs[gameID]

	s.scheduleStateSync(ident.UserID, gameID, "favorite", prev.IsFavorite, policy)
	s.tracker.TrackFavorite(gameID, rec.IsFavorite)
	return rec, nil
}

// ToggleLike flips the like bit optimistically. Likes only ever appear in
// browse contexts, so they always keep the local value on failure.
func (s *GameService) ToggleLike(ctx context.Context, gameID model.GameID) (model.PreferenceRecord, error) {
	ident := s.tokens.Identity(ctx)
	if ident == nil {
		return model.PreferenceRecord{}, apperror.AuthRequired("toggle like")
	}

	newPrefs, err := s.cache.ToggleLike(ctx, ident.UserID, gameID)
	if err != nil {
		return model.PreferenceRecord{}, err
	}
	rec := newPrefs[gameID]

	s.scheduleStateSync(ident.UserID, gameID, "like", false, KeepLocalOnFailure)
	s.tracker.TrackLike(gameID, rec.IsLiked)
	return rec, nil
}

// SetRating stores a star rating: 0 to 5 in half-star steps.
func (s *GameService) SetRating(ctx context.Context, gameID model.GameID, rating float64) (model.PreferenceRecord, error) {
	if rating < 0 || rating > 5 {
		return model.PreferenceRecord{}, apperror.ValidationFailed("rating",
			"rating must be between 0 and 5")
	}
	if math.Mod(rating*2, 1) != 0 {
		return model.PreferenceRecord{}, apperror.ValidationFailed("rating",
			fmt.Sprintf("rating must be a half-star increment, got %v", rating))
	}

	ident := s.tokens.Identity(ctx)
	if ident == nil {
		return model.PreferenceRecord{}, apperror.AuthRequired("rate game")
	}

	newPrefs, err := s.cache.SetRating(ctx, ident.UserID, gameID, rating)
	if err != nil {
		return model.PreferenceRecord{}, err
	}
	rec := newPrefs[gameID]

	s.scheduleStateSync(ident.UserID, gameID, "rate", false, KeepLocalOnFailure)
	s.tracker.TrackRating(gameID, rating)
	return rec, nil
}

// scheduleStateSync arms (or re-arms) the per-(action, game) sync timer.
// The payload is built inside the callback, from the cache as it stands at
// fire time — a burst of toggles collapses into one call carrying the
// final record.
//
// prevValue is the toggled field's pre-toggle value as of this scheduling
// call; when a rollback is needed it restores exactly that.
func (s *GameService) scheduleStateSync(userID string, gameID model.GameID, action string, prevValue bool, policy RollbackPolicy) {
	if s.syncer == nil {
		return
	}
	key := action + ":" + gameID.String()
	s.sched.Schedule(key, s.opts.SyncDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.SyncTimeout)
		defer cancel()

		rec := s.cache.Record(ctx, userID, gameID)
		err := s.syncer.UpdateGameState(ctx, gameID, model.PatchFromRecord(rec))
		if err == nil {
			return
		}

		syncErr := apperror.SyncFailed(action, gameID.String(), err)
		if policy != RollbackOnFailure {
			// The optimistic local value stays authoritative for the UI.
			s.logger.Error("state sync failed, keeping local value",
				slog.String("action", action),
				slog.String("gameId", gameID.String()),
				slog.String("error", err.Error()))
			return
		}

		s.logger.Error("state sync failed, rolling back",
			slog.String("action", action),
			slog.String("gameId", gameID.String()),
			slog.String("error", err.Error()))

		var patch model.PreferencePatch
		switch action {
		case "favorite":
			patch.IsFavorite = model.Bool(prevValue)
		case "like":
			patch.IsLiked = model.Bool(prevValue)
		}
		if _, rbErr := s.cache.SetPreference(ctx, userID, gameID, patch); rbErr != nil {
			s.logger.Error("rollback write failed",
				slog.String("gameId", gameID.String()),
				slog.String("error", rbErr.Error()))
		}
		if s.onSyncFailure != nil {
			s.onSyncFailure(gameID, syncErr)
		}
	})
}

// Search filters the catalog snapshot by a case-insensitive name match and
// reports the query to the tracker (which debounces it down to the final
// query after the user pauses typing).
func (s *GameService) Search(ctx context.Context, query string) []model.Game {
	s.tracker.TrackSearch(query)

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.catalog.Games(ctx)
	}
	var matches []model.Game
	for _, g := range s.catalog.Games(ctx) {
		if strings.Contains(strings.ToLower(g.Name), query) {
			matches = append(matches, g)
		}
	}
	return matches
}

// SetFilters reports a filter change. Filtering itself is a view concern;
// the core only owns the telemetry.
func (s *GameService) SetFilters(filters map[string]any) {
	s.tracker.TrackFilter(filters)
}

// Favorites derives the current user's favorites list from the snapshot.
func (s *GameService) Favorites(ctx context.Context) ([]model.Game, error) {
	ident := s.tokens.Identity(ctx)
	if ident == nil {
		return nil, apperror.AuthRequired("list favorites")
	}
	return s.catalog.ListFavorites(ctx, ident.UserID), nil
}

// Logout clears the session: the logging-out user's preference sub-map and
// the token. Other users' cached preferences stay. Pending sync timers are
// left alone — anything that fires after this is dropped by the send-time
// auth checks.
func (s *GameService) Logout(ctx context.Context) error {
	ident := s.tokens.Identity(ctx)
	if ident != nil {
		if err := s.cache.ClearUser(ctx, ident.UserID); err != nil {
			return err
		}
	}
	return s.tokens.ClearToken(ctx)
}
