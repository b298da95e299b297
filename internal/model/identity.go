package model

import "time"

// Identity is the set of claims decoded from a bearer token: who the user
// is and when the token stops being valid. It is always re-derived from the
// raw token, never stored on its own — if the token goes away, so does the
// identity.
//
// A nil *Identity means "anonymous": preference and activity operations are
// skipped for anonymous callers.
type Identity struct {
	UserID    string         `json:"id"`
	ExpiresAt time.Time      `json:"exp"`
	Claims    map[string]any `json:"-"` // remaining opaque claims, kept for debugging
}

// Expired reports whether the identity's token has expired at the given
// instant. A zero ExpiresAt counts as expired — tokens without an expiry
// claim are not trusted.
func (i *Identity) Expired(now time.Time) bool {
	return i.ExpiresAt.IsZero() || !i.ExpiresAt.After(now)
}
