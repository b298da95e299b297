// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — plain values with JSON tags,
// no behaviour beyond what the wire formats need.
package model

import (
	"encoding/json"
	"time"
)

// GameID is a board game identifier. The backend is inconsistent about the
// wire type — some endpoints return numeric ids, others strings — so we
// normalize to the decimal string form at the JSON boundary and use strings
// everywhere else.
type GameID string

// UnmarshalJSON accepts both `"42"` and `42`.
func (id *GameID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = GameID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = GameID(n.String())
	return nil
}

func (id GameID) String() string { return string(id) }

// Game is one entry of the catalog snapshot — a locally cached copy of a
// board game as last fetched from the backend. Not authoritative; the whole
// snapshot is overwritten on every full fetch.
type Game struct {
	ID          GameID   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	MinPlayers  int      `json:"minPlayers,omitempty"`
	MaxPlayers  int      `json:"maxPlayers,omitempty"`
	PlayTimeMin int      `json:"playTime,omitempty"`
	Complexity  float64  `json:"complexity,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	AvgRating   float64  `json:"avgRating,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

// PreferenceRecord is one user's state for one game. Absent fields and zero
// values mean the same thing on read: a missing record reads as the zero
// record.
type PreferenceRecord struct {
	IsFavorite  bool      `json:"isFavorite"`
	IsLiked     bool      `json:"isLiked"`
	UserRating  float64   `json:"userRating"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// IsZero reports whether the record carries no state worth persisting.
func (r PreferenceRecord) IsZero() bool {
	return !r.IsFavorite && !r.IsLiked && r.UserRating == 0
}

// PreferencePatch is a partial update to a PreferenceRecord. Nil fields are
// left untouched on merge; applying the same patch twice yields the same
// record as applying it once.
//
// The same shape goes over the wire as the `updateData` body of
// POST /api/games/updateState, with LastUpdated stamped so the server could
// reject out-of-order writes.
type PreferencePatch struct {
	IsFavorite  *bool      `json:"isFavorite,omitempty"`
	IsLiked     *bool      `json:"isLiked,omitempty"`
	UserRating  *float64   `json:"userRating,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// Apply merges the patch into rec and returns the result.
func (p PreferencePatch) Apply(rec PreferenceRecord) PreferenceRecord {
	if p.IsFavorite != nil {
		rec.IsFavorite = *p.IsFavorite
	}
	if p.IsLiked != nil {
		rec.IsLiked = *p.IsLiked
	}
	if p.UserRating != nil {
		rec.UserRating = *p.UserRating
	}
	if p.LastUpdated != nil {
		rec.LastUpdated = *p.LastUpdated
	}
	return rec
}

// PatchFromRecord builds a full-record patch, used when the sync engine
// pushes the current state of a record at timer-fire time.
func PatchFromRecord(rec PreferenceRecord) PreferencePatch {
	fav, liked, rating, updated := rec.IsFavorite, rec.IsLiked, rec.UserRating, rec.LastUpdated
	return PreferencePatch{
		IsFavorite:  &fav,
		IsLiked:     &liked,
		UserRating:  &rating,
		LastUpdated: &updated,
	}
}

// Bool, Float are small helpers for building patches inline.
func Bool(v bool) *bool { return &v }
func Float(v float64) *float64 { return &v }
