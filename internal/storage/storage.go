// Package storage defines the persistent key-value capability the client
// core runs on — the Go equivalent of the browser's local storage. Every
// component receives a KeyValueStore as an injected dependency; nothing in
// the core reaches for a package-level store. That keeps the storage
// backend swappable (sqlite on disk, memory in tests) and the tests free of
// real files.
package storage

import "context"

// Well-known keys. Values are JSON-encoded strings, mirroring the local
// storage layout of the web client this core syncs for.
const (
	// KeyToken holds the opaque bearer token string (not JSON-wrapped).
	KeyToken = "token"
	// KeyGameStates holds the preference blob:
	// {userId: {gameId: PreferenceRecord}}.
	KeyGameStates = "gameStates"
	// KeyAllGames holds the full catalog snapshot as a JSON array.
	KeyAllGames = "allGames"
	// KeyFavoriteGames holds the last derived favorites list.
	KeyFavoriteGames = "favoriteGames"
	// KeySessionID holds the random session identifier, generated once per
	// store lifetime.
	KeySessionID = "sessionId"
)

// KeyValueStore is the persistence contract. Get returns an error wrapping
// apperror.ErrNotFound when the key is absent; Set overwrites
// unconditionally; Remove of a missing key is a no-op.
//
// Implementations must serialize concurrent writers within one process.
// Nothing here guards against a second process (or browser tab) clobbering
// a read-modify-write — that lost-update hazard is an accepted part of the
// product's consistency bar and is documented where callers do the
// read-modify-write.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
