// Package prefs is the local preference cache: every user's per-game
// favorite/like/rating state, persisted as one JSON blob in the key-value
// store.
//
// The blob is a two-level map, userId → gameId → PreferenceRecord, and is
// always keyed by the stable decoded user id — never by the raw token
// string, which rotates. Any one operation only ever reads or writes the
// sub-map of the user it was given; the blob keeps other users' sub-maps
// untouched (and uncollected — stale users' data lingering in the blob is
// accepted).
//
// Every write is a read-modify-write of the whole blob. Within one process
// the store serializes those; across processes sharing one database file
// this is a classic lost-update hazard with no locking or versioning. That
// matches the product's consistency bar and is deliberately not hardened
// here.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nahin/boardsync/internal/apperror"
	"github.com/nahin/boardsync/internal/model"
	"github.com/nahin/boardsync/internal/storage"
)

// UserPreferences is one user's sub-map: gameId → record.
type UserPreferences map[model.GameID]model.PreferenceRecord

type blob map[string]UserPreferences

// Cache reads and writes the preference blob. Never returns an error to
// readers: a corrupt blob is logged and read as empty, per the rule that
// worst case is a UI that didn't update, never an exception.
type Cache struct {
	store  storage.KeyValueStore
	logger *slog.Logger
	now    func() time.Time
}

func NewCache(store storage.KeyValueStore, logger *slog.Logger) *Cache {
	return &Cache{
		store:  store,
		logger: logger.With(slog.String("component", "prefs")),
		now:    time.Now,
	}
}

// ReadUserPreferences returns the user's sub-map. Empty (never nil) when
// the user is anonymous, the blob is missing, or the blob is corrupt.
func (c *Cache) ReadUserPreferences(ctx context.Context, userID string) UserPreferences {
	if userID == "" {
		return UserPreferences{}
	}
	all := c.readBlob(ctx)
	prefs, ok := all[userID]
	if !ok {
		return UserPreferences{}
	}
	return prefs
}

// Record returns the user's record for one game. Absence reads as the zero
// record — absent and false/zero are the same thing.
func (c *Cache) Record(ctx context.Context, userID string, gameID model.GameID) model.PreferenceRecord {
	return c.ReadUserPreferences(ctx, userID)[gameID]
}

// WriteUserPreferences replaces the user's sub-map wholesale, preserving
// every other user's sub-map.
func (c *Cache) WriteUserPreferences(ctx context.Context, userID string, prefs UserPreferences) error {
	if userID == "" {
		return apperror.AuthRequired("write preferences")
	}
	all := c.readBlob(ctx)
	all[userID] = prefs
	return c.writeBlob(ctx, all)
}

// SetPreference merges patch into the user's record for gameID, stamps
// LastUpdated, persists, and returns the user's new full sub-map.
// Idempotent: re-applying a patch whose fields are already set yields the
// same stored record (fields overwrite, nothing accumulates).
func (c *Cache) SetPreference(ctx context.Context, userID string, gameID model.GameID, patch model.PreferencePatch) (UserPreferences, error) {
	if userID == "" {
		return nil, apperror.AuthRequired("set preference")
	}
	all := c.readBlob(ctx)
	prefs, ok := all[userID]
	if !ok {
		prefs = UserPreferences{}
		all[userID] = prefs
	}

	rec := patch.Apply(prefs[gameID])
	if rec.IsZero() {
		// A fully cleared record and an absent one read identically, so
		// don't let unfavorite/unlike churn grow the blob.
		delete(prefs, gameID)
	} else {
		rec.LastUpdated = c.now()
		prefs[gameID] = rec
	}

	if err := c.writeBlob(ctx, all); err != nil {
		return nil, err
	}
	return prefs, nil
}

// ToggleFavorite flips the favorite bit and returns the new sub-map, or
// (nil, nil) for an anonymous caller — a silent no-op, logged.
func (c *Cache) ToggleFavorite(ctx context.Context, userID string, gameID model.GameID) (UserPreferences, error) {
	return c.toggle(ctx, userID, gameID, "favorite")
}

// ToggleLike flips the like bit; same contract as ToggleFavorite.
func (c *Cache) ToggleLike(ctx context.Context, userID string, gameID model.GameID) (UserPreferences, error) {
	return c.toggle(ctx, userID, gameID, "like")
}

func (c *Cache) toggle(ctx context.Context, userID string, gameID model.GameID, kind string) (UserPreferences, error) {
	if userID == "" {
		c.logger.Debug("anonymous toggle skipped",
			slog.String("kind", kind), slog.String("gameId", gameID.String()))
		return nil, nil
	}
	cur := c.Record(ctx, userID, gameID)
	var patch model.PreferencePatch
	switch kind {
	case "favorite":
		patch.IsFavorite = model.Bool(!cur.IsFavorite)
	case "like":
		patch.IsLiked = model.Bool(!cur.IsLiked)
	}
	return c.SetPreference(ctx, userID, gameID, patch)
}

// SetRating stores a star rating. Range checks live in the service layer;
// the cache stores whatever it is told, like any storage layer should.
func (c *Cache) SetRating(ctx context.Context, userID string, gameID model.GameID, rating float64) (UserPreferences, error) {
	if userID == "" {
		return nil, nil
	}
	return c.SetPreference(ctx, userID, gameID, model.PreferencePatch{UserRating: model.Float(rating)})
}

// ClearUser drops only this user's sub-map (logout). Other users' data
// stays in the blob.
func (c *Cache) ClearUser(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	all := c.readBlob(ctx)
	if _, ok := all[userID]; !ok {
		return nil
	}
	delete(all, userID)
	return c.writeBlob(ctx, all)
}

func (c *Cache) readBlob(ctx context.Context) blob {
	raw, err := c.store.Get(ctx, storage.KeyGameStates)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			c.logger.Error("reading preference blob", slog.String("error", err.Error()))
		}
		return blob{}
	}
	var all blob
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		corrupt := apperror.StorageCorrupt(storage.KeyGameStates, err)
		c.logger.Error("preference blob corrupt, treating as empty",
			slog.String("error", corrupt.Error()))
		return blob{}
	}
	if all == nil {
		return blob{}
	}
	return all
}

func (c *Cache) writeBlob(ctx context.Context, all blob) error {
	raw, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, storage.KeyGameStates, string(raw))
}
