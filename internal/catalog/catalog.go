// Package catalog keeps the locally cached copy of "all games last
// fetched" and derives views from it. The snapshot is not authoritative:
// it goes stale against the backend and is overwritten wholesale on every
// full fetch.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/nahin/boardsync/internal/apperror"
	"github.com/nahin/boardsync/internal/model"
	"github.com/nahin/boardsync/internal/prefs"
	"github.com/nahin/boardsync/internal/storage"
)

// Fetcher is the slice of the API client the catalog needs.
type Fetcher interface {
	AllBoardgames(ctx context.Context) ([]model.Game, error)
	Favorites(ctx context.Context, userID string) ([]model.Game, error)
}

// Snapshot is the catalog store plus the favorites derivation.
type Snapshot struct {
	store   storage.KeyValueStore
	fetcher Fetcher
	prefs   *prefs.Cache
	logger  *slog.Logger

	// group collapses concurrent RefreshAll calls into one fetch.
	group singleflight.Group
}

func NewSnapshot(store storage.KeyValueStore, fetcher Fetcher, cache *prefs.Cache, logger *slog.Logger) *Snapshot {
	return &Snapshot{
		store:   store,
		fetcher: fetcher,
		prefs:   cache,
		logger:  logger.With(slog.String("component", "catalog")),
	}
}

// Games returns the cached snapshot. Empty when nothing has been fetched
// yet or the stored value is corrupt (logged, not propagated).
func (s *Snapshot) Games(ctx context.Context) []model.Game {
	raw, err := s.store.Get(ctx, storage.KeyAllGames)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("reading catalog snapshot", slog.String("error", err.Error()))
		}
		return nil
	}
	var games []model.Game
	if err := json.Unmarshal([]byte(raw), &games); err != nil {
		corrupt := apperror.StorageCorrupt(storage.KeyAllGames, err)
		s.logger.Error("catalog snapshot corrupt, treating as empty",
			slog.String("error", corrupt.Error()))
		return nil
	}
	return games
}

// Game looks one game up in the snapshot.
func (s *Snapshot) Game(ctx context.Context, id model.GameID) (model.Game, bool) {
	for _, g := range s.Games(ctx) {
		if g.ID == id {
			return g, true
		}
	}
	return model.Game{}, false
}

// RefreshAll fetches the full catalog and overwrites the snapshot.
// Concurrent callers share one in-flight fetch.
func (s *Snapshot) RefreshAll(ctx context.Context) ([]model.Game, error) {
	v, err, _ := s.group.Do(storage.KeyAllGames, func() (any, error) {
		games, err := s.fetcher.AllBoardgames(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(games)
		if err != nil {
			return nil, err
		}
		if err := s.store.Set(ctx, storage.KeyAllGames, string(raw)); err != nil {
			return nil, err
		}
		s.logger.Info("catalog snapshot refreshed", slog.Int("games", len(games)))
		return games, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Game), nil
}

// ListFavorites filters the snapshot by the user's favorite bits and caches
// the derived list. Preference entries whose game is missing from the
// current snapshot are simply excluded — the snapshot may predate or
// postdate the preference.
func (s *Snapshot) ListFavorites(ctx context.Context, userID string) []model.Game {
	if userID == "" {
		return nil
	}
	userPrefs := s.prefs.ReadUserPreferences(ctx, userID)

	var favorites []model.Game
	for _, g := range s.Games(ctx) {
		if userPrefs[g.ID].IsFavorite {
			favorites = append(favorites, g)
		}
	}

	if raw, err := json.Marshal(favorites); err == nil {
		if err := s.store.Set(ctx, storage.KeyFavoriteGames, string(raw)); err != nil {
			s.logger.Error("caching favorites list", slog.String("error", err.Error()))
		}
	}
	return favorites
}

// FetchRemoteFavorites asks the backend for its view of the user's
// favorites. Used to reconcile after the local snapshot has gone stale.
func (s *Snapshot) FetchRemoteFavorites(ctx context.Context, userID string) ([]model.Game, error) {
	if userID == "" {
		return nil, apperror.AuthRequired("fetch favorites")
	}
	return s.fetcher.Favorites(ctx, userID)
}

// ReconcileFavorites pulls the backend's favorites list and marks any game
// it carries that the local cache does not, then re-derives the local list.
// Remote wins on additions only: a local favorite the backend lacks is a
// pending (debounced or failed) sync, not something to undo.
func (s *Snapshot) ReconcileFavorites(ctx context.Context, userID string) ([]model.Game, error) {
	remote, err := s.FetchRemoteFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}

	userPrefs := s.prefs.ReadUserPreferences(ctx, userID)
	for _, g := range remote {
		if userPrefs[g.ID].IsFavorite {
			continue
		}
		if _, err := s.prefs.SetPreference(ctx, userID, g.ID, model.PreferencePatch{
			IsFavorite: model.Bool(true),
		}); err != nil {
			return nil, err
		}
		s.logger.Info("favorite adopted from backend",
			slog.String("userId", userID), slog.String("gameId", g.ID.String()))
	}
	return s.ListFavorites(ctx, userID), nil
}
