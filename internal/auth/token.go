// Package auth resolves the caller's identity from the persisted bearer
// token.
//
// The client side of the product never verifies token signatures — it has
// no secret. Verification is the backend's job; here the token is only a
// carrier for the user id and expiry, so we decode its claims segment
// without checking the signature. A token that fails to decode, or whose
// expiry has passed, yields a nil Identity: the caller is anonymous and
// every preference or activity operation downstream becomes a no-op.
package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nahin/boardsync/internal/apperror"
	"github.com/nahin/boardsync/internal/model"
	"github.com/nahin/boardsync/internal/storage"
)

// TokenStore reads and writes the raw bearer token in the key-value store
// and derives identities from it. Reads have no side effects; callers own
// the redirect-on-unauthenticated policy.
type TokenStore struct {
	store  storage.KeyValueStore
	logger *slog.Logger

	// now is time.Now outside of tests.
	now func() time.Time
}

func NewTokenStore(store storage.KeyValueStore, logger *slog.Logger) *TokenStore {
	return &TokenStore{
		store:  store,
		logger: logger.With(slog.String("component", "auth")),
		now:    time.Now,
	}
}

// Token returns the raw persisted token string, and false when none is
// stored.
func (t *TokenStore) Token(ctx context.Context) (string, bool) {
	raw, err := t.store.Get(ctx, storage.KeyToken)
	if err != nil || raw == "" {
		return "", false
	}
	return raw, true
}

// SetToken persists a freshly issued token (login).
func (t *TokenStore) SetToken(ctx context.Context, token string) error {
	return t.store.Set(ctx, storage.KeyToken, token)
}

// ClearToken removes the persisted token (logout).
func (t *TokenStore) ClearToken(ctx context.Context) error {
	return t.store.Remove(ctx, storage.KeyToken)
}

// Identity resolves the current identity, or nil when the caller is
// anonymous: no token, undecodable token, or expired token. Decode failures
// are logged here and never propagated — resolve once at the boundary of a
// user action and pass the result down explicitly.
func (t *TokenStore) Identity(ctx context.Context) *model.Identity {
	raw, ok := t.Token(ctx)
	if !ok {
		return nil
	}
	ident, err := DecodeIdentity(raw)
	if err != nil {
		t.logger.Error("bearer token did not decode, treating as anonymous",
			slog.String("error", err.Error()))
		return nil
	}
	if ident.Expired(t.now()) {
		t.logger.Debug("bearer token expired, treating as anonymous",
			slog.String("userId", ident.UserID),
			slog.Time("expiresAt", ident.ExpiresAt))
		return nil
	}
	return ident
}

// IsAuthenticated reports whether a valid, unexpired identity exists.
func (t *TokenStore) IsAuthenticated(ctx context.Context) bool {
	return t.Identity(ctx) != nil
}

// DecodeIdentity parses the claims segment of a JWT without verifying its
// signature. The user id is taken from the first of the "sub", "id" or
// "userId" claims — token issuers have used all three over the product's
// lifetime.
func DecodeIdentity(token string) (*model.Identity, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, apperror.Decode(err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperror.Decode(jwt.ErrTokenMalformed)
	}

	ident := &model.Identity{Claims: claims}
	for _, key := range []string{"sub", "id", "userId"} {
		if v, ok := claims[key].(string); ok && v != "" {
			ident.UserID = v
			break
		}
	}
	if ident.UserID == "" {
		return nil, apperror.Decode(jwt.ErrTokenInvalidSubject)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ident.ExpiresAt = exp.Time
	}
	return ident, nil
}
